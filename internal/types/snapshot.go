package types

import (
	"path"
	"strings"
)

// SnapshotFile is one captured file of a repository snapshot.
type SnapshotFile struct {
	Path      string `json:"path"`
	Content   string `json:"content"`
	Bytes     int    `json:"bytes"` // bytes captured (never above the per-file cap)
	Size      int64  `json:"size"`  // size on disk
	Lines     int    `json:"lines"`
	Truncated bool   `json:"truncated"`
	Priority  bool   `json:"priority,omitempty"`
}

// Language returns the file extension without the dot, or the base name for
// extension-less files like Dockerfile.
func (f SnapshotFile) Language() string {
	if ext := path.Ext(f.Path); ext != "" {
		return strings.TrimPrefix(ext, ".")
	}
	return path.Base(f.Path)
}

// RepositorySnapshot is the bounded capture of one repository handed to the oracle.
// It is produced once per scan and not modified afterwards.
type RepositorySnapshot struct {
	Name         string         `json:"repository"`
	Path         string         `json:"repo_path"`
	RepoType     RepoType       `json:"repo_type"`
	Files        []SnapshotFile `json:"files"`
	TotalBytes   int            `json:"total_bytes"`
	SkippedFiles int            `json:"skipped_files"`
	Signals      []string       `json:"signals,omitempty"`
	Warnings     []string       `json:"warnings,omitempty"`
}

// File looks up a captured file by its repository-relative path.
func (s *RepositorySnapshot) File(p string) (SnapshotFile, bool) {
	for _, f := range s.Files {
		if f.Path == p {
			return f, true
		}
	}
	return SnapshotFile{}, false
}

// TruncatedCount returns how many captured files were cut at the per-file cap.
func (s *RepositorySnapshot) TruncatedCount() int {
	n := 0
	for _, f := range s.Files {
		if f.Truncated {
			n++
		}
	}
	return n
}

// Languages counts captured files per language.
func (s *RepositorySnapshot) Languages() map[string]int {
	langs := make(map[string]int)
	for _, f := range s.Files {
		langs[f.Language()]++
	}
	return langs
}

// TotalLines sums line counts across captured files.
func (s *RepositorySnapshot) TotalLines() int {
	n := 0
	for _, f := range s.Files {
		n += f.Lines
	}
	return n
}

// IsEmpty reports whether nothing was captured.
func (s *RepositorySnapshot) IsEmpty() bool {
	return len(s.Files) == 0
}
