package config

import (
	"fmt"
	"os"
	"path/filepath"
)

// Paths locates everlog's on-disk layout: day logs from the capture
// agent, generated reports, and per-run stage traces.
type Paths struct {
	Home  string
	Logs  string
	Out   string
	Trace string
}

// DefaultHome resolves the everlog home directory: EVERLOG_HOME if
// set, otherwise ~/everlog.
func DefaultHome() (string, error) {
	if h := os.Getenv("EVERLOG_HOME"); h != "" {
		return h, nil
	}
	home, err := os.UserHomeDir()
	if err != nil {
		return "", fmt.Errorf("config: resolve home dir: %w", err)
	}
	return filepath.Join(home, "everlog"), nil
}

// NewPaths derives the standard layout under home.
func NewPaths(home string) Paths {
	return Paths{
		Home:  home,
		Logs:  filepath.Join(home, "logs"),
		Out:   filepath.Join(home, "out"),
		Trace: filepath.Join(home, "trace"),
	}
}

// DayLog returns the capture log path for a date ("YYYY-MM-DD").
func (p Paths) DayLog(date string) string {
	return filepath.Join(p.Logs, date+".jsonl")
}

// RunOut returns the versioned output directory for one run.
func (p Paths) RunOut(date, runID string) string {
	return filepath.Join(p.Out, date, runID)
}

// RunTrace returns the stage-trace directory for one run.
func (p Paths) RunTrace(date, runID string) string {
	return filepath.Join(p.Trace, date, runID)
}

// EnsureDirs creates the top-level directories.
func (p Paths) EnsureDirs() error {
	for _, dir := range []string{p.Logs, p.Out, p.Trace} {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("config: mkdir %s: %w", dir, err)
		}
	}
	return nil
}
