package snapshot

import (
	"bytes"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
)

// WriteFile encodes entries and replaces the file at path with the result.
//
// The snapshot is written to a temporary file in the same directory, synced
// and renamed over path, so readers never observe a half-written file. The
// parent directory is created if needed. It returns the size written.
func WriteFile(path string, entries []Entry) (int64, error) {
	var buf bytes.Buffer
	if err := Encode(&buf, entries); err != nil {
		return 0, err
	}

	dir := filepath.Dir(path)
	if err := os.MkdirAll(dir, 0750); err != nil {
		return 0, fmt.Errorf("snapshot: create dir: %w", err)
	}

	tmp, err := os.CreateTemp(dir, filepath.Base(path)+".*.tmp")
	if err != nil {
		return 0, fmt.Errorf("snapshot: create temp file: %w", err)
	}
	tempPath := tmp.Name()
	defer os.Remove(tempPath)

	if _, err := tmp.Write(buf.Bytes()); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("snapshot: write: %w", err)
	}
	if err := tmp.Sync(); err != nil {
		tmp.Close()
		return 0, fmt.Errorf("snapshot: sync: %w", err)
	}
	if err := tmp.Close(); err != nil {
		return 0, fmt.Errorf("snapshot: close: %w", err)
	}
	if err := os.Rename(tempPath, path); err != nil {
		return 0, fmt.Errorf("snapshot: rename: %w", err)
	}

	return int64(buf.Len()), nil
}

// ReadFile decodes the snapshot at path.
//
// A missing or empty file yields no entries and no error. Format errors are
// returned alongside whatever was decoded before the violation.
func ReadFile(path string) ([]Entry, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if errors.Is(err, fs.ErrNotExist) {
			return nil, nil
		}
		return nil, fmt.Errorf("snapshot: read %s: %w", path, err)
	}
	if len(data) == 0 {
		return nil, nil
	}
	return Decode(bytes.NewReader(data))
}
