// Package store manages the canonical on-disk bulk JSON document shaped
// {"data": [record, ...]}. Writes stream item by item so multi-megabyte
// payloads never sit fully in memory, and every rewrite goes through a
// sibling temp file plus atomic rename.
package store

import (
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
)

// ErrNotFound is returned when the store file does not exist.
var ErrNotFound = errors.New("bulk store not found")

// Writer streams records into a new store file as a JSON array under the
// "data" key. Close finishes the document; until then the file on disk is
// incomplete and must not be read.
type Writer struct {
	f     *os.File
	count int
	wrote bool
}

// NewWriter creates (or truncates) the store file at path and writes the
// array preamble.
func NewWriter(path string) (*Writer, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, fmt.Errorf("failed to create store directory: %w", err)
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("failed to create store file: %w", err)
	}
	if _, err := f.WriteString(`{"data":[`); err != nil {
		f.Close()
		return nil, fmt.Errorf("failed to write store preamble: %w", err)
	}
	return &Writer{f: f}, nil
}

// Append writes one raw record into the array.
func (w *Writer) Append(record json.RawMessage) error {
	if w.wrote {
		if _, err := w.f.WriteString(","); err != nil {
			return fmt.Errorf("failed to write separator: %w", err)
		}
	}
	if _, err := w.f.Write(record); err != nil {
		return fmt.Errorf("failed to write record: %w", err)
	}
	w.wrote = true
	w.count++
	return nil
}

// Count returns the number of records appended so far.
func (w *Writer) Count() int {
	return w.count
}

// Close terminates the JSON document and closes the file.
func (w *Writer) Close() error {
	if _, err := w.f.WriteString(`]}`); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to write store epilogue: %w", err)
	}
	if err := w.f.Sync(); err != nil {
		w.f.Close()
		return fmt.Errorf("failed to sync store: %w", err)
	}
	return w.f.Close()
}

// Abort closes the file without finishing the document. The partial file is
// left behind; callers treat aborted runs as unusable and re-fetch.
func (w *Writer) Abort() error {
	return w.f.Close()
}

// Stream reads the store's data array item by item, invoking fn for each raw
// record. Memory use is bounded by the largest single record.
func Stream(path string, fn func(record json.RawMessage) error) error {
	f, err := os.Open(path)
	if err != nil {
		if os.IsNotExist(err) {
			return fmt.Errorf("%w: %s", ErrNotFound, path)
		}
		return fmt.Errorf("failed to open store: %w", err)
	}
	defer f.Close()

	return stream(f, fn)
}

func stream(r io.Reader, fn func(record json.RawMessage) error) error {
	dec := json.NewDecoder(r)

	// {
	if err := expectDelim(dec, '{'); err != nil {
		return err
	}

	for dec.More() {
		keyTok, err := dec.Token()
		if err != nil {
			return fmt.Errorf("failed to read store key: %w", err)
		}
		key, ok := keyTok.(string)
		if !ok {
			return fmt.Errorf("unexpected token %v in store object", keyTok)
		}
		if key != "data" {
			// skip unknown top-level values wholesale
			var skip json.RawMessage
			if err := dec.Decode(&skip); err != nil {
				return fmt.Errorf("failed to skip store key %q: %w", key, err)
			}
			continue
		}

		// [
		if err := expectDelim(dec, '['); err != nil {
			return err
		}
		for dec.More() {
			var record json.RawMessage
			if err := dec.Decode(&record); err != nil {
				return fmt.Errorf("failed to decode store record: %w", err)
			}
			if err := fn(record); err != nil {
				return err
			}
		}
		// ]
		if err := expectDelim(dec, ']'); err != nil {
			return err
		}
	}

	return nil
}

func expectDelim(dec *json.Decoder, want json.Delim) error {
	tok, err := dec.Token()
	if err != nil {
		return fmt.Errorf("failed to read store token: %w", err)
	}
	if d, ok := tok.(json.Delim); !ok || d != want {
		return fmt.Errorf("malformed store: expected %q, got %v", want, tok)
	}
	return nil
}

// MergeFunc decides whether a staged record should be appended given the
// identifiers already present in the store. It returns the record to append
// or nil to skip.
type MergeFunc func(record json.RawMessage) json.RawMessage

// Merge rewrites the store at path, copying every existing record verbatim
// and then appending each staged record the filter accepts. The existing
// records are offered to observe first so the filter can collect seen
// identifiers. The rewrite lands in a sibling temp file that replaces the
// original atomically; a crash at any point leaves the original intact.
func Merge(path string, staged []json.RawMessage, observe func(record json.RawMessage), filter MergeFunc) (int, error) {
	tmpPath := path + ".tmp"
	w, err := NewWriter(tmpPath)
	if err != nil {
		return 0, err
	}

	copyErr := Stream(path, func(record json.RawMessage) error {
		if observe != nil {
			observe(record)
		}
		return w.Append(record)
	})
	if copyErr != nil {
		w.Abort()
		os.Remove(tmpPath)
		return 0, copyErr
	}

	appended := 0
	for _, record := range staged {
		keep := record
		if filter != nil {
			keep = filter(record)
		}
		if keep == nil {
			continue
		}
		if err := w.Append(keep); err != nil {
			w.Abort()
			os.Remove(tmpPath)
			return 0, err
		}
		appended++
	}

	if err := w.Close(); err != nil {
		os.Remove(tmpPath)
		return 0, err
	}

	if err := os.Rename(tmpPath, path); err != nil {
		os.Remove(tmpPath)
		return 0, fmt.Errorf("failed to replace store: %w", err)
	}

	return appended, nil
}
