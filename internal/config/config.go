package config

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"
)

// Config holds everlog's operational settings. The on-disk form is
// config.json under the everlog home directory; EVERLOG_* environment
// variables override individual fields at load time.
type Config struct {
	IntervalSec int      `json:"interval_sec"`
	Pipeline    Pipeline `json:"pipeline"`
	LLM         LLM      `json:"llm"`
	Output      Output   `json:"output"`
	Exclude     Exclude  `json:"exclude"`
}

// Pipeline holds distillation tuning knobs.
type Pipeline struct {
	// GapThresholdSec closes a segment when the inter-event gap
	// exceeds it even if the context key is unchanged. Zero means
	// derive from the sampling interval: max(120, 2.5×interval).
	GapThresholdSec int `json:"gap_threshold_sec"`
	// Trace enables per-stage JSONL dumps under trace/<date>/<run>/.
	Trace bool `json:"trace"`
}

// LLM holds summarizer call settings.
type LLM struct {
	Enabled      bool   `json:"enabled"`
	Model        string `json:"model"`
	BaseURL      string `json:"base_url"`
	TimeoutSec   int    `json:"timeout_sec"`
	MinActiveSec int    `json:"min_active_sec"`
	MaxHours     int    `json:"max_hours"`
}

// Output holds report destination settings.
type Output struct {
	Format     string `json:"format"` // "file", "stdout"
	WebhookURL string `json:"webhook_url,omitempty"`
}

// Exclude mirrors the capture agent's exclusion rules. The pipeline
// never evaluates them (events arrive filtered); they are kept here so
// config.json round-trips wholesale between the agent and this tool.
type Exclude struct {
	Apps           []string `json:"apps"`
	DomainKeywords []string `json:"domain_keywords"`
	TextKeywords   []string `json:"text_keywords"`
}

// Default returns the configuration used when no config.json exists.
func Default() Config {
	return Config{
		IntervalSec: 300,
		Pipeline:    Pipeline{},
		LLM: LLM{
			Model:        "gpt-5-nano",
			TimeoutSec:   180,
			MinActiveSec: 120,
			MaxHours:     24,
		},
		Output:  Output{Format: "file"},
		Exclude: Exclude{Apps: []string{"1Password"}},
	}
}

// GapThreshold resolves the effective gap threshold in seconds.
func (c Config) GapThreshold() int {
	if c.Pipeline.GapThresholdSec > 0 {
		return c.Pipeline.GapThresholdSec
	}
	g := c.IntervalSec * 5 / 2
	if g < 120 {
		g = 120
	}
	return g
}

// Load reads config.json from dir (creating it with defaults when
// missing) and applies environment overrides.
func Load(dir string) (Config, error) {
	cfg, err := LoadFile(dir)
	if err != nil {
		return Config{}, err
	}
	applyEnv(&cfg)
	if cfg.IntervalSec <= 0 {
		cfg.IntervalSec = 300
	}
	return cfg, nil
}

// LoadFile reads config.json from dir (creating it with defaults when
// missing) without applying environment overrides. Use it when the
// result is edited and written back.
func LoadFile(dir string) (Config, error) {
	path := filepath.Join(dir, "config.json")
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case err == nil:
		if err := json.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("config: parse %s: %w", path, err)
		}
	case os.IsNotExist(err):
		if err := Save(dir, cfg); err != nil {
			return Config{}, err
		}
	default:
		return Config{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	return cfg, nil
}

// Set assigns one dotted key ("llm.model", "pipeline.trace") on cfg
// from its string form.
func Set(cfg *Config, key, value string) error {
	parseBool := func() (bool, error) {
		b, err := strconv.ParseBool(value)
		if err != nil {
			return false, fmt.Errorf("config: %s wants true/false, got %q", key, value)
		}
		return b, nil
	}
	parseInt := func() (int, error) {
		n, err := strconv.Atoi(value)
		if err != nil {
			return 0, fmt.Errorf("config: %s wants an integer, got %q", key, value)
		}
		return n, nil
	}

	var err error
	switch key {
	case "interval_sec":
		cfg.IntervalSec, err = parseInt()
	case "pipeline.gap_threshold_sec":
		cfg.Pipeline.GapThresholdSec, err = parseInt()
	case "pipeline.trace":
		cfg.Pipeline.Trace, err = parseBool()
	case "llm.enabled":
		cfg.LLM.Enabled, err = parseBool()
	case "llm.model":
		cfg.LLM.Model = value
	case "llm.base_url":
		cfg.LLM.BaseURL = value
	case "llm.timeout_sec":
		cfg.LLM.TimeoutSec, err = parseInt()
	case "llm.min_active_sec":
		cfg.LLM.MinActiveSec, err = parseInt()
	case "llm.max_hours":
		cfg.LLM.MaxHours, err = parseInt()
	case "output.format":
		if value != "file" && value != "stdout" {
			return fmt.Errorf("config: output.format wants file or stdout, got %q", value)
		}
		cfg.Output.Format = value
	case "output.webhook_url":
		cfg.Output.WebhookURL = value
	default:
		return fmt.Errorf("config: unknown key %q", key)
	}
	return err
}

// Save writes cfg as indented JSON to dir/config.json.
func Save(dir string, cfg Config) error {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return fmt.Errorf("config: mkdir %s: %w", dir, err)
	}
	data, err := json.MarshalIndent(cfg, "", "  ")
	if err != nil {
		return fmt.Errorf("config: marshal: %w", err)
	}
	path := filepath.Join(dir, "config.json")
	if err := os.WriteFile(path, append(data, '\n'), 0o644); err != nil {
		return fmt.Errorf("config: write %s: %w", path, err)
	}
	return nil
}

func applyEnv(cfg *Config) {
	cfg.IntervalSec = getenvInt("EVERLOG_INTERVAL_SEC", cfg.IntervalSec)
	cfg.Pipeline.GapThresholdSec = getenvInt("EVERLOG_GAP_THRESHOLD_SEC", cfg.Pipeline.GapThresholdSec)
	cfg.Pipeline.Trace = getenvBool("EVERLOG_TRACE", cfg.Pipeline.Trace)
	cfg.LLM.Enabled = getenvBool("EVERLOG_HOURLY_LLM", cfg.LLM.Enabled)
	cfg.LLM.Model = getenv("EVERLOG_LLM_MODEL", cfg.LLM.Model)
	cfg.LLM.BaseURL = getenv("OPENAI_API_BASE", cfg.LLM.BaseURL)
	cfg.LLM.TimeoutSec = getenvInt("EVERLOG_LLM_TIMEOUT_SEC", cfg.LLM.TimeoutSec)
	cfg.LLM.MinActiveSec = getenvInt("EVERLOG_HOURLY_LLM_MIN_SEC", cfg.LLM.MinActiveSec)
	cfg.LLM.MaxHours = getenvInt("EVERLOG_HOURLY_LLM_MAX_HOURS", cfg.LLM.MaxHours)
	cfg.Output.Format = getenv("EVERLOG_OUTPUT", cfg.Output.Format)
	cfg.Output.WebhookURL = getenv("EVERLOG_WEBHOOK_URL", cfg.Output.WebhookURL)
}

func getenv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}

func getenvInt(key string, fallback int) int {
	v := os.Getenv(key)
	if v == "" {
		return fallback
	}
	n, err := strconv.Atoi(v)
	if err != nil {
		return fallback
	}
	return n
}

func getenvBool(key string, fallback bool) bool {
	switch os.Getenv(key) {
	case "1", "true", "TRUE", "yes", "YES":
		return true
	case "0", "false", "FALSE", "no", "NO":
		return false
	default:
		return fallback
	}
}
