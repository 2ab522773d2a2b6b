// Package trace persists each pipeline stage's output as JSONL so a
// run can be inspected or diffed after the fact. Tracing is best
// effort: a failed write logs a warning and never fails the run.
package trace

import (
	"fmt"
	"log/slog"
	"path/filepath"

	"github.com/pronoun-studio/everlog/internal/engine"
	"github.com/pronoun-studio/everlog/internal/jsonl"
)

// Writer dumps stage outputs into one directory per run.
type Writer struct {
	dir string
	log *slog.Logger
}

// New creates a Writer rooted at dir. A nil Writer is valid and
// writes nothing, so callers can hold one unconditionally.
func New(dir string) *Writer {
	return &Writer{dir: dir, log: slog.Default().With("component", "trace")}
}

// Dir returns the run's trace directory.
func (w *Writer) Dir() string {
	if w == nil {
		return ""
	}
	return w.dir
}

// WriteResult dumps every populated stage of res, one file per stage.
func (w *Writer) WriteResult(res *engine.Result) {
	if w == nil || res == nil {
		return
	}
	w.write(engine.StageRaw, asAny(res.Events))
	if res.Normalized != nil {
		w.write(engine.StageNormalized, asAny(res.Normalized))
	}
	if res.Segments != nil {
		w.write(engine.StageSegments, asAny(res.Segments))
	}
	if res.Compacted != nil {
		w.write(engine.StageCompacted, asAny(res.Compacted))
	}
	if res.HourPacks != nil {
		w.write(engine.StageHourPacks, asAny(res.HourPacks))
	}
}

// WriteExtra appends a named non-stage artifact (LLM transcripts,
// report metadata) alongside the stage files. Repeated calls for the
// same name accumulate, so incremental emitters keep their history.
func (w *Writer) WriteExtra(name string, records ...any) {
	if w == nil {
		return
	}
	path := filepath.Join(w.dir, name+".jsonl")
	for _, rec := range records {
		if err := jsonl.Append(path, rec); err != nil {
			w.log.Warn("trace write failed", "path", path, "error", err)
			return
		}
	}
}

func (w *Writer) write(stage engine.Stage, records []any) {
	path := filepath.Join(w.dir, fmt.Sprintf("stage-%02d-%s.jsonl", int(stage), stage))
	if err := jsonl.WriteFile(path, records...); err != nil {
		w.log.Warn("trace write failed", "path", path, "error", err)
	}
}

func asAny[T any](in []T) []any {
	out := make([]any, len(in))
	for i := range in {
		out[i] = in[i]
	}
	return out
}
