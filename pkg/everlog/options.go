package everlog

type options struct {
	home     string
	trace    *bool
	llm      *bool
	model    string
	progress func(percent int, stage string)
}

// Option configures an Everlog instance.
type Option func(*options)

// WithHome sets the everlog home directory. Default: EVERLOG_HOME or
// ~/everlog.
func WithHome(dir string) Option {
	return func(o *options) { o.home = dir }
}

// WithTrace overrides the configured per-stage trace setting.
func WithTrace(enabled bool) Option {
	return func(o *options) { o.trace = &enabled }
}

// WithLLM overrides the configured LLM labeling setting.
func WithLLM(enabled bool) Option {
	return func(o *options) { o.llm = &enabled }
}

// WithModel overrides the configured LLM model.
func WithModel(model string) Option {
	return func(o *options) { o.model = model }
}

// WithProgress registers a callback invoked at run milestones with a
// percentage and a stage name.
func WithProgress(fn func(percent int, stage string)) Option {
	return func(o *options) { o.progress = fn }
}
