package health

import (
	"path"
	"regexp"
	"strings"

	"github.com/steveyegge/debtneg/internal/types"
)

// ShouldExcludePath checks if a path matches any exclude patterns.
// Patterns can be:
//   - Directory prefixes: "vendor/" matches "vendor/foo.go"
//   - File suffixes: "_test.go" matches "foo_test.go"
//   - Anywhere in path: "node_modules/" matches "web/node_modules/x.js"
func ShouldExcludePath(relPath string, patterns []string) bool {
	for _, pattern := range patterns {
		// Match pattern at path component boundaries to avoid false matches
		// e.g., "vendor/" matches "vendor/foo" but not "vendorized/bar"
		if strings.HasPrefix(relPath, pattern) ||
			strings.Contains(relPath, "/"+pattern) ||
			strings.HasSuffix(relPath, pattern) {
			return true
		}
	}
	return false
}

var testPathPatterns = []string{"test/", "tests/", "testdata/", "__tests__/", "node_modules/", "vendor/"}

// isTestPath reports whether a file is test code or third-party code.
func isTestPath(p string) bool {
	if ShouldExcludePath(p, testPathPatterns) {
		return true
	}
	base := path.Base(p)
	return strings.HasPrefix(base, "test_") ||
		strings.Contains(base, "_test.") ||
		strings.Contains(base, ".test.") ||
		strings.Contains(base, ".spec.") ||
		strings.HasSuffix(strings.TrimSuffix(base, path.Ext(base)), "Test")
}

// hasExt reports whether the file has one of the extensions.
func hasExt(p string, exts ...string) bool {
	ext := strings.ToLower(path.Ext(p))
	for _, e := range exts {
		if ext == e {
			return true
		}
	}
	return false
}

// estimatedLines returns the file's line count. For truncated files the
// captured count is scaled to the size on disk.
func estimatedLines(f types.SnapshotFile) (int, bool) {
	lines := f.Lines
	if f.Content != "" && !strings.HasSuffix(f.Content, "\n") {
		lines++
	}
	if !f.Truncated || f.Bytes <= 0 || f.Size <= int64(f.Bytes) {
		return lines, false
	}
	return int(int64(lines) * f.Size / int64(f.Bytes)), true
}

// lineOf returns the 1-based line of a byte offset.
func lineOf(content string, offset int) int {
	if offset > len(content) {
		offset = len(content)
	}
	return strings.Count(content[:offset], "\n") + 1
}

// firstMatchLine returns the line of the first match, or 0.
func firstMatchLine(re *regexp.Regexp, content string) int {
	loc := re.FindStringIndex(content)
	if loc == nil {
		return 0
	}
	return lineOf(content, loc[0])
}
