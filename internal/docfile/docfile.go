// Package docfile reads and writes the JSON documents kept in the CSV Data
// directory.
package docfile

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/nmfs-ost/dismap/internal/domain"
)

// Write encodes v with sorted map keys and four-space indentation,
// overwriting path. Equal values always produce identical bytes.
func Write(path string, v any) error {
	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "    ")
	if err := enc.Encode(v); err != nil {
		return fmt.Errorf("encode %s: %w", filepath.Base(path), err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create %s: %w", filepath.Dir(path), err)
	}
	if err := os.WriteFile(path, buf.Bytes(), 0o644); err != nil { //nolint:gosec // shared project output
		return fmt.Errorf("write %s: %w", path, err)
	}
	return nil
}

// Read decodes path into v. A missing file is a MissingResourceError.
func Read(path string, v any) error {
	data, err := os.ReadFile(path) //nolint:gosec // path is derived from config
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return domain.ErrMissingResource("%s not found", path)
		}
		return fmt.Errorf("read %s: %w", path, err)
	}
	if err := json.Unmarshal(data, v); err != nil {
		return fmt.Errorf("parse %s: %w", path, err)
	}
	return nil
}

// Exists reports whether path is present.
func Exists(path string) (bool, error) {
	_, err := os.Stat(path)
	if err == nil {
		return true, nil
	}
	if errors.Is(err, os.ErrNotExist) {
		return false, nil
	}
	return false, fmt.Errorf("stat %s: %w", path, err)
}
