// Package jsonl implements the durable file formats shared by checkpoints,
// the geocode cache, edge sets and profile stores: an fsync-per-batch JSON-lines
// journal and an atomic whole-file snapshot.
package jsonl

import (
	"bufio"
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"sort"
	"sync"
)

// maxLine bounds a single record; edge sets of large accounts run to megabytes
const maxLine = 64 << 20

// Appender appends records to a JSON-lines file. Every Append call issues one
// write and one fsync, so a record either reaches disk whole or, after a crash,
// leaves a torn final line that Read discards.
type Appender struct {
	mu   sync.Mutex
	path string
	f    *os.File
}

// OpenAppender opens path for appending, creating parent directories. A torn
// tail left by an earlier crash is terminated so the next record starts on a
// fresh line.
func OpenAppender(path string) (*Appender, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory for %s: %w", path, err)
	}

	f, err := os.OpenFile(path, os.O_CREATE|os.O_RDWR|os.O_APPEND, 0644)
	if err != nil {
		return nil, fmt.Errorf("failed to open %s: %w", path, err)
	}

	if err := terminateTail(f); err != nil {
		f.Close()
		return nil, err
	}

	return &Appender{path: path, f: f}, nil
}

func terminateTail(f *os.File) error {
	info, err := f.Stat()
	if err != nil {
		return fmt.Errorf("failed to stat %s: %w", f.Name(), err)
	}
	if info.Size() == 0 {
		return nil
	}

	last := make([]byte, 1)
	if _, err := f.ReadAt(last, info.Size()-1); err != nil {
		return fmt.Errorf("failed to read tail of %s: %w", f.Name(), err)
	}
	if last[0] == '\n' {
		return nil
	}
	if _, err := f.Write([]byte{'\n'}); err != nil {
		return fmt.Errorf("failed to terminate tail of %s: %w", f.Name(), err)
	}
	return f.Sync()
}

// Path returns the file being appended to
func (a *Appender) Path() string {
	return a.path
}

// Append encodes records one per line and makes them durable before returning
func (a *Appender) Append(records ...interface{}) error {
	if len(records) == 0 {
		return nil
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	for _, r := range records {
		if err := enc.Encode(r); err != nil {
			return fmt.Errorf("failed to encode record: %w", err)
		}
	}

	a.mu.Lock()
	defer a.mu.Unlock()

	if a.f == nil {
		return fmt.Errorf("append to closed journal %s", a.path)
	}
	if _, err := a.f.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("failed to append to %s: %w", a.path, err)
	}
	if err := a.f.Sync(); err != nil {
		return fmt.Errorf("failed to sync %s: %w", a.path, err)
	}
	return nil
}

func (a *Appender) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.f == nil {
		return nil
	}
	err := a.f.Close()
	a.f = nil
	return err
}

// Stats describes what Read saw
type Stats struct {
	Records int
	Corrupt int
}

// Read decodes every line of path into a fresh T and hands it to fn. A missing
// file is empty. Lines that fail to decode are counted and skipped: the final
// one is the expected result of a crash mid-append.
func Read[T any](path string, fn func(T) error) (Stats, error) {
	var stats Stats

	f, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return stats, nil
		}
		return stats, fmt.Errorf("failed to open %s: %w", path, err)
	}
	defer f.Close()

	scanner := bufio.NewScanner(f)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLine)
	for scanner.Scan() {
		line := bytes.TrimSpace(scanner.Bytes())
		if len(line) == 0 {
			continue
		}
		var rec T
		if err := json.Unmarshal(line, &rec); err != nil {
			stats.Corrupt++
			continue
		}
		if err := fn(rec); err != nil {
			return stats, err
		}
		stats.Records++
	}
	if err := scanner.Err(); err != nil {
		return stats, fmt.Errorf("failed to read %s: %w", path, err)
	}
	return stats, nil
}

// ReadGlob runs Read over every file matching pattern in lexical order.
// Segmented journals written by independent processes are read this way.
func ReadGlob[T any](pattern string, fn func(T) error) (Stats, error) {
	var total Stats
	paths, err := filepath.Glob(pattern)
	if err != nil {
		return total, fmt.Errorf("bad pattern %s: %w", pattern, err)
	}
	sort.Strings(paths)
	for _, p := range paths {
		st, err := Read(p, fn)
		total.Records += st.Records
		total.Corrupt += st.Corrupt
		if err != nil {
			return total, err
		}
	}
	return total, nil
}

// WriteAtomic replaces path with whatever write produces. The content is
// synced to a temporary sibling and renamed over path, so readers observe
// either the old or the new file.
func WriteAtomic(path string, write func(w io.Writer) error) error {
	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0755); err != nil {
		return fmt.Errorf("failed to create directory: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return fmt.Errorf("failed to create temporary file: %w", err)
	}
	tmpPath := tmp.Name()

	bw := bufio.NewWriter(tmp)
	if err := write(bw); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return err
	}
	if err := bw.Flush(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		os.Remove(tmpPath)
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return fmt.Errorf("failed to replace %s: %w", path, err)
	}

	syncDir(dir)
	return nil
}

// WriteLines atomically replaces path with one JSON record per line
func WriteLines[T any](path string, records []T) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetEscapeHTML(false)
		for _, r := range records {
			if err := enc.Encode(r); err != nil {
				return fmt.Errorf("failed to encode record: %w", err)
			}
		}
		return nil
	})
}

// WriteJSON atomically replaces path with v as indented JSON
func WriteJSON(path string, v interface{}) error {
	return WriteAtomic(path, func(w io.Writer) error {
		enc := json.NewEncoder(w)
		enc.SetIndent("", "  ")
		enc.SetEscapeHTML(false)
		if err := enc.Encode(v); err != nil {
			return fmt.Errorf("failed to encode %s: %w", path, err)
		}
		return nil
	})
}

// ReadJSON decodes path into v. It reports false when the file does not exist.
func ReadJSON(path string, v interface{}) (bool, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return false, nil
		}
		return false, fmt.Errorf("failed to read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return true, fmt.Errorf("failed to decode %s: %w", path, err)
	}
	return true, nil
}

func syncDir(dir string) {
	d, err := os.Open(dir)
	if err != nil {
		return
	}
	_ = d.Sync()
	d.Close()
}
