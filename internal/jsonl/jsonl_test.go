package jsonl

import (
	"encoding/json"
	"errors"
	"os"
	"path/filepath"
	"testing"
)

type record struct {
	Name string `json:"name"`
	N    int    `json:"n"`
}

func TestWriteFileThenForEachLine(t *testing.T) {
	path := filepath.Join(t.TempDir(), "out", "records.jsonl")
	want := []record{{Name: "a", N: 1}, {Name: "b", N: 2}}
	if err := WriteFile(path, want[0], want[1]); err != nil {
		t.Fatalf("write: %v", err)
	}

	var got []record
	err := ForEachLine(path, func(line []byte) error {
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		got = append(got, r)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(got) != 2 || got[0] != want[0] || got[1] != want[1] {
		t.Fatalf("expected %v, got %v", want, got)
	}
}

func TestForEachLineMissingFileIsEmpty(t *testing.T) {
	calls := 0
	err := ForEachLine(filepath.Join(t.TempDir(), "absent.jsonl"), func([]byte) error {
		calls++
		return nil
	})
	if err != nil {
		t.Fatalf("expected nil error, got %v", err)
	}
	if calls != 0 {
		t.Fatalf("expected no callbacks, got %d", calls)
	}
}

func TestForEachLineSkipsBlankLines(t *testing.T) {
	path := filepath.Join(t.TempDir(), "gaps.jsonl")
	if err := os.WriteFile(path, []byte("{\"n\":1}\n\n{\"n\":2}\n"), 0o644); err != nil {
		t.Fatal(err)
	}
	calls := 0
	if err := ForEachLine(path, func([]byte) error { calls++; return nil }); err != nil {
		t.Fatalf("scan: %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected 2 callbacks, got %d", calls)
	}
}

func TestForEachLineCallbackErrorStops(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop.jsonl")
	if err := WriteFile(path, record{N: 1}, record{N: 2}, record{N: 3}); err != nil {
		t.Fatal(err)
	}
	boom := errors.New("boom")
	calls := 0
	err := ForEachLine(path, func([]byte) error {
		calls++
		if calls == 2 {
			return boom
		}
		return nil
	})
	if !errors.Is(err, boom) {
		t.Fatalf("expected callback error, got %v", err)
	}
	if calls != 2 {
		t.Fatalf("expected scan to stop after 2 lines, got %d", calls)
	}
}

func TestAppend(t *testing.T) {
	path := filepath.Join(t.TempDir(), "day", "log.jsonl")
	if err := Append(path, record{Name: "a", N: 1}); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := Append(path, record{Name: "b", N: 2}); err != nil {
		t.Fatalf("append: %v", err)
	}
	var names []string
	err := ForEachLine(path, func(line []byte) error {
		var r record
		if err := json.Unmarshal(line, &r); err != nil {
			return err
		}
		names = append(names, r.Name)
		return nil
	})
	if err != nil {
		t.Fatalf("scan: %v", err)
	}
	if len(names) != 2 || names[0] != "a" || names[1] != "b" {
		t.Fatalf("expected appended order [a b], got %v", names)
	}
}

func TestWriteFileReplacesExisting(t *testing.T) {
	path := filepath.Join(t.TempDir(), "replace.jsonl")
	if err := WriteFile(path, record{N: 1}, record{N: 2}); err != nil {
		t.Fatal(err)
	}
	if err := WriteFile(path, record{N: 3}); err != nil {
		t.Fatal(err)
	}
	lines := 0
	if err := ForEachLine(path, func([]byte) error { lines++; return nil }); err != nil {
		t.Fatal(err)
	}
	if lines != 1 {
		t.Fatalf("expected 1 line after rewrite, got %d", lines)
	}
}
