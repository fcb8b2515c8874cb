// Package scanner collects the bounded evidence set the classification oracle sees.
//
// A scan walks one repository and captures readable text content under two caps:
// a per-file cap (longer files are truncated and flagged, never dropped) and a
// total cap across the snapshot (further files are skipped once it is reached).
// A fixed list of priority files, such as build manifests, is read first and
// always included. Nothing a scan encounters is fatal: unreadable files and
// missing roots become warnings on the snapshot.
package scanner

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"strings"
	"unicode/utf8"

	"github.com/spf13/afero"
	"github.com/steveyegge/debtneg/internal/types"
)

// Scanner produces RepositorySnapshots from a filesystem.
type Scanner struct {
	fs     afero.Fs
	config Config
}

// New creates a scanner over the given filesystem.
func New(fs afero.Fs, cfg Config) (*Scanner, error) {
	if fs == nil {
		return nil, fmt.Errorf("filesystem is required")
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid scanner config: %w", err)
	}
	return &Scanner{fs: fs, config: cfg}, nil
}

// NewOS creates a scanner over the real filesystem.
func NewOS(cfg Config) (*Scanner, error) {
	return New(afero.NewOsFs(), cfg)
}

// Config returns the scanner limits.
func (s *Scanner) Config() Config {
	return s.config
}

// scanState accumulates a snapshot while walking.
type scanState struct {
	snap  *types.RepositorySnapshot
	seen  map[string]bool
	dirs  []string
	total int
}

func (st *scanState) warn(format string, args ...any) {
	msg := fmt.Sprintf(format, args...)
	st.snap.Warnings = append(st.snap.Warnings, msg)
	slog.Debug("scan warning", "repository", st.snap.Name, "warning", msg)
}

// Scan captures one repository. The only error it returns is context cancellation;
// a missing or unreadable root yields an empty snapshot with a warning.
func (s *Scanner) Scan(ctx context.Context, root string) (*types.RepositorySnapshot, error) {
	clean := filepath.Clean(root)
	st := &scanState{
		snap: &types.RepositorySnapshot{
			Name: filepath.Base(clean),
			Path: clean,
		},
		seen: make(map[string]bool),
	}

	info, err := s.fs.Stat(clean)
	switch {
	case err != nil:
		st.warn("repository path unreadable: %v", err)
		return s.finish(st), nil
	case !info.IsDir():
		st.warn("repository path is not a directory: %s", clean)
		return s.finish(st), nil
	}

	// Priority files first, in their fixed order. They always fit.
	for _, name := range s.config.PriorityFiles {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		full := filepath.Join(clean, name)
		fi, err := s.fs.Stat(full)
		if err != nil || !fi.Mode().IsRegular() {
			continue
		}
		s.capture(st, full, name, fi, s.config.MaxFileBytes, true)
	}

	walkErr := afero.Walk(s.fs, clean, func(p string, fi os.FileInfo, err error) error {
		if ctxErr := ctx.Err(); ctxErr != nil {
			return ctxErr
		}

		rel, relErr := filepath.Rel(clean, p)
		if relErr != nil {
			return nil
		}
		rel = filepath.ToSlash(rel)

		if err != nil {
			if rel != "." {
				st.warn("skipped %s: %v", rel, err)
			}
			if fi != nil && fi.IsDir() {
				return filepath.SkipDir
			}
			return nil
		}

		if fi.IsDir() {
			if rel == "." {
				return nil
			}
			if s.config.skipsDir(fi.Name()) {
				return filepath.SkipDir
			}
			st.dirs = append(st.dirs, rel)
			return nil
		}

		if !fi.Mode().IsRegular() || st.seen[rel] || !s.config.wantsFile(fi.Name()) {
			return nil
		}

		remaining := s.config.MaxTotalBytes - st.total
		if remaining <= 0 {
			st.snap.SkippedFiles++
			return nil
		}
		limit := s.config.MaxFileBytes
		if remaining < limit {
			limit = remaining
		}
		s.capture(st, p, rel, fi, limit, false)
		return nil
	})

	if walkErr != nil {
		if errors.Is(walkErr, context.Canceled) || errors.Is(walkErr, context.DeadlineExceeded) {
			return nil, walkErr
		}
		st.warn("walk stopped early: %v", walkErr)
	}

	if st.snap.SkippedFiles > 0 {
		st.warn("total cap of %d bytes reached, %d files skipped", s.config.MaxTotalBytes, st.snap.SkippedFiles)
	}

	return s.finish(st), nil
}

// capture reads at most limit bytes of a file into the snapshot.
func (s *Scanner) capture(st *scanState, full, rel string, fi os.FileInfo, limit int, priority bool) {
	content, captured, truncated, err := readCapped(s.fs, full, limit)
	if err != nil {
		st.warn("skipped %s: %v", rel, err)
		return
	}
	if bytes.IndexByte(captured, 0) >= 0 {
		st.warn("skipped %s: binary content", rel)
		return
	}
	if !utf8.Valid(captured) {
		st.warn("%s: invalid UTF-8 replaced", rel)
		content = strings.ToValidUTF8(content, "?")
	}

	st.seen[rel] = true
	st.total += len(captured)
	st.snap.Files = append(st.snap.Files, types.SnapshotFile{
		Path:      rel,
		Content:   content,
		Bytes:     len(captured),
		Size:      fi.Size(),
		Lines:     strings.Count(content, "\n"),
		Truncated: truncated,
		Priority:  priority,
	})
}

// readCapped reads up to limit bytes. When the file is longer the result is
// truncated on a UTF-8 boundary and flagged.
func readCapped(fs afero.Fs, name string, limit int) (string, []byte, bool, error) {
	f, err := fs.Open(name)
	if err != nil {
		return "", nil, false, err
	}
	defer f.Close()

	buf, err := io.ReadAll(io.LimitReader(f, int64(limit)+1))
	if err != nil {
		return "", nil, false, err
	}

	truncated := len(buf) > limit
	if truncated {
		buf = trimToRuneBoundary(buf[:limit])
	}
	return string(buf), buf, truncated, nil
}

// trimToRuneBoundary drops a multi-byte rune split by the cut.
func trimToRuneBoundary(b []byte) []byte {
	for i := 0; i < utf8.UTFMax && len(b) > 0; i++ {
		r, size := utf8.DecodeLastRune(b)
		if r != utf8.RuneError || size > 1 {
			return b
		}
		b = b[:len(b)-1]
	}
	return b
}

func (s *Scanner) finish(st *scanState) *types.RepositorySnapshot {
	st.snap.TotalBytes = st.total
	st.snap.RepoType, st.snap.Signals = DetectRepoType(st.snap.Files, st.dirs)
	slog.Debug("scan complete",
		"repository", st.snap.Name,
		"files", len(st.snap.Files),
		"bytes", st.snap.TotalBytes,
		"truncated", st.snap.TruncatedCount(),
		"type", st.snap.RepoType)
	return st.snap
}

// topLevel returns the first path component.
func topLevel(rel string) string {
	if i := strings.IndexByte(rel, '/'); i >= 0 {
		return rel[:i]
	}
	return path.Clean(rel)
}
