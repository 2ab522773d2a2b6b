package trace

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/pronoun-studio/everlog/internal/engine"
	"github.com/pronoun-studio/everlog/internal/model"
)

func TestWriteResultDumpsPopulatedStages(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)

	res := &engine.Result{
		Events: []model.CaptureEvent{
			{ID: "e1", Timestamp: time.Date(2026, 2, 9, 9, 0, 0, 0, time.Local)},
		},
		Normalized: []model.NormalizedEvent{{EventID: "e1"}},
		Segments:   []model.Segment{{ID: 0}},
	}
	w.WriteResult(res)

	for _, name := range []string{
		"stage-00-raw.jsonl",
		"stage-01-entities.jsonl",
		"stage-02-segment.jsonl",
	} {
		if _, err := os.Stat(filepath.Join(dir, name)); err != nil {
			t.Errorf("expected %s: %v", name, err)
		}
	}
	// Stages the run never reached must not leave files.
	for _, name := range []string{"stage-03-compacted.jsonl", "stage-04-hour-pack.jsonl"} {
		if _, err := os.Stat(filepath.Join(dir, name)); !os.IsNotExist(err) {
			t.Errorf("expected no %s, stat err %v", name, err)
		}
	}
}

func TestWriteExtra(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	w.WriteExtra("stage-05-hour-llm", map[string]any{"model": "gpt-5-nano"})

	data, err := os.ReadFile(filepath.Join(dir, "stage-05-hour-llm.jsonl"))
	if err != nil {
		t.Fatalf("expected extra file: %v", err)
	}
	if len(data) == 0 {
		t.Fatal("expected non-empty extra file")
	}
}

func TestWriteExtraAccumulates(t *testing.T) {
	dir := t.TempDir()
	w := New(dir)
	w.WriteExtra("stage-05-hour-llm", map[string]any{"hour": "09:00"})
	w.WriteExtra("stage-05-hour-llm", map[string]any{"hour": "10:00"})

	data, err := os.ReadFile(filepath.Join(dir, "stage-05-hour-llm.jsonl"))
	if err != nil {
		t.Fatalf("expected extra file: %v", err)
	}
	if got := strings.Count(string(data), "\n"); got != 2 {
		t.Fatalf("expected 2 appended records, got %d lines: %q", got, data)
	}
	if !strings.Contains(string(data), "09:00") || !strings.Contains(string(data), "10:00") {
		t.Fatalf("expected both records retained, got %q", data)
	}
}

func TestNilWriterIsInert(t *testing.T) {
	var w *Writer
	w.WriteResult(&engine.Result{})
	w.WriteExtra("anything")
	if got := w.Dir(); got != "" {
		t.Fatalf("expected empty dir, got %q", got)
	}
}
