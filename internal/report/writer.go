package report

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"
	"path/filepath"

	"github.com/spf13/afero"

	"github.com/steveyegge/debtneg/internal/types"
)

// DefaultOutputPath is where analyze writes its report unless told otherwise.
const DefaultOutputPath = "output_analysis.json"

// Encode renders the report as two-space indented JSON with a trailing newline.
func Encode(rep *types.Report) ([]byte, error) {
	var buf bytes.Buffer
	if err := WriteJSON(&buf, rep); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}

// WriteJSON writes the report as two-space indented JSON.
func WriteJSON(w io.Writer, rep *types.Report) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(rep); err != nil {
		return fmt.Errorf("encoding report: %w", err)
	}
	return nil
}

// WriteFile writes the report to path, replacing it atomically.
func WriteFile(fs afero.Fs, path string, rep *types.Report) error {
	data, err := Encode(rep)
	if err != nil {
		return err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := fs.MkdirAll(dir, 0o755); err != nil {
			return fmt.Errorf("creating report directory: %w", err)
		}
	}

	// Write atomically using temp file + rename
	tmpPath := path + ".tmp"
	if err := afero.WriteFile(fs, tmpPath, data, 0o644); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}
	if err := fs.Rename(tmpPath, path); err != nil {
		_ = fs.Remove(tmpPath)
		return fmt.Errorf("committing report: %w", err)
	}
	return nil
}

// ReadFile loads a report written by WriteFile.
func ReadFile(fs afero.Fs, path string) (*types.Report, error) {
	data, err := afero.ReadFile(fs, path)
	if err != nil {
		return nil, fmt.Errorf("reading report: %w", err)
	}
	var rep types.Report
	if err := json.Unmarshal(data, &rep); err != nil {
		return nil, fmt.Errorf("parsing report %s: %w", path, err)
	}
	return &rep, nil
}
