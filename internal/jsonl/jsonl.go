// Package jsonl reads and writes newline-delimited JSON, the exchange
// format between the capture agent and this tool. One line is one
// record; files are append-only.
package jsonl

import (
	"bufio"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
)

// maxLineSize bounds a single record. OCR text for a many-display
// capture can run long; 4MB leaves ample headroom.
const maxLineSize = 4 << 20

// ForEachLine calls fn for every non-blank line of the file at path.
// A missing file is treated as empty, not an error. fn receives the
// raw line; returning an error stops the scan.
func ForEachLine(path string, fn func(line []byte) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	defer f.Close()

	sc := bufio.NewScanner(f)
	sc.Buffer(make([]byte, 64*1024), maxLineSize)
	for sc.Scan() {
		line := sc.Bytes()
		if len(line) == 0 {
			continue
		}
		if err := fn(line); err != nil {
			return err
		}
	}
	if err := sc.Err(); err != nil {
		return fmt.Errorf("jsonl: scan %s: %w", path, err)
	}
	return nil
}

// WriteFile writes one JSON line per record to path, creating parent
// directories and replacing any existing file.
func WriteFile(path string, records ...any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jsonl: mkdir for %s: %w", path, err)
	}
	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("jsonl: create %s: %w", path, err)
	}
	w := bufio.NewWriter(f)
	enc := json.NewEncoder(w)
	for _, rec := range records {
		if err := enc.Encode(rec); err != nil {
			f.Close()
			return fmt.Errorf("jsonl: encode for %s: %w", path, err)
		}
	}
	if err := w.Flush(); err != nil {
		f.Close()
		return fmt.Errorf("jsonl: flush %s: %w", path, err)
	}
	if err := f.Close(); err != nil {
		return fmt.Errorf("jsonl: close %s: %w", path, err)
	}
	return nil
}

// Append appends one record as a JSON line to path, creating parent
// directories as needed.
func Append(path string, rec any) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("jsonl: mkdir for %s: %w", path, err)
	}
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("jsonl: marshal for %s: %w", path, err)
	}
	f, err := os.OpenFile(path, os.O_CREATE|os.O_WRONLY|os.O_APPEND, 0o644)
	if err != nil {
		return fmt.Errorf("jsonl: open %s: %w", path, err)
	}
	defer f.Close()
	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("jsonl: write %s: %w", path, err)
	}
	return nil
}
