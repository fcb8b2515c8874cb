package health

import (
	"context"
	"fmt"
	"regexp"
	"strconv"
	"strings"
	"time"

	"github.com/steveyegge/debtneg/internal/types"
)

const (
	// godClassLines is the file length above which a source file is a god class.
	godClassLines = 500

	// godFunctionLines is the body length above which a function is a god function.
	godFunctionLines = 300
)

var (
	sourceExts = []string{".py", ".java", ".js", ".ts", ".go", ".rb", ".scala", ".kt", ".cs"}

	// Hand-written notes like "2,300 lines in one function".
	oneFunctionMarkerRe = regexp.MustCompile(`(\d[\d,]*)\s+lines in one function`)
	pythonDefRe         = regexp.MustCompile(`^(\s*)(?:async\s+)?def\s+(\w+)`)
	goFuncRe            = regexp.MustCompile(`^func\s+(?:\([^)]*\)\s*)?(\w+)`)
)

// GodClassMonitor finds oversized source files and functions.
type GodClassMonitor struct {
	// Source file extensions to examine
	Extensions []string
}

// NewGodClassMonitor creates a monitor with the default source extensions.
func NewGodClassMonitor() *GodClassMonitor {
	return &GodClassMonitor{Extensions: sourceExts}
}

// Name implements Monitor.
func (m *GodClassMonitor) Name() string {
	return "god_class_monitor"
}

// Philosophy implements Monitor.
func (m *GodClassMonitor) Philosophy() string {
	return "Files should be focused on a single responsibility. " +
		"Large files that do many things are harder to test and change."
}

type fileSize struct {
	file      types.SnapshotFile
	lines     int
	estimated bool
}

// Check implements Monitor.
func (m *GodClassMonitor) Check(ctx context.Context, snap *types.RepositorySnapshot) (*MonitorResult, error) {
	startTime := time.Now()

	var sizes []fileSize
	for _, f := range snap.Files {
		if !hasExt(f.Path, m.Extensions...) || isTestPath(f.Path) {
			continue
		}
		lines, estimated := estimatedLines(f)
		sizes = append(sizes, fileSize{file: f, lines: lines, estimated: estimated})
	}

	values := make([]int, len(sizes))
	for i, s := range sizes {
		values[i] = s.lines
	}
	dist := NewDistribution(values)

	var issues []DiscoveredIssue
	for _, s := range sizes {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if s.lines > godClassLines {
			issues = append(issues, m.godClass(s, dist))
		}
		if issue, ok := m.godFunction(s.file); ok {
			issues = append(issues, issue)
		}
	}

	return &MonitorResult{
		IssuesFound: issues,
		Context: fmt.Sprintf("Scanned %d source files (mean: %.0f lines, p95: %.0f, max: %.0f)",
			dist.Count, dist.Mean, dist.P95, dist.Max),
		CheckedAt: startTime,
		Stats: CheckStats{
			FilesScanned: len(sizes),
			IssuesFound:  len(issues),
			Duration:     time.Since(startTime),
		},
	}, nil
}

func (m *GodClassMonitor) godClass(s fileSize, dist Distribution) DiscoveredIssue {
	desc := fmt.Sprintf("%d lines - should be split", s.lines)
	if s.estimated {
		desc = fmt.Sprintf("~%d lines (estimated from %d bytes) - should be split", s.lines, s.file.Size)
	}
	return DiscoveredIssue{
		FilePath:       s.file.Path,
		DebtType:       types.DebtGodClass,
		Severity:       types.SeverityHigh,
		Description:    desc,
		BusinessImpact: "Every change touches the same file, slowing reviews and raising merge conflicts",
		AnnualCost:     50000,
		FixEffortWeeks: 2,
		Evidence: map[string]any{
			"lines":        s.lines,
			"estimated":    s.estimated,
			"mean_lines":   dist.Mean,
			"stddev_lines": dist.StdDev,
			"outlier":      dist.IsUpperOutlier(float64(s.lines), 2.0),
		},
	}
}

func (m *GodClassMonitor) godFunction(f types.SnapshotFile) (DiscoveredIssue, bool) {
	name, length, line := "", 0, 0
	if match := oneFunctionMarkerRe.FindStringSubmatchIndex(f.Content); match != nil {
		n, err := strconv.Atoi(strings.ReplaceAll(f.Content[match[2]:match[3]], ",", ""))
		if err == nil && n > godFunctionLines {
			length, line = n, lineOf(f.Content, match[0])
		}
	}
	if length == 0 {
		switch {
		case hasExt(f.Path, ".py"):
			name, length, line = longestPythonFunction(f.Content)
		case hasExt(f.Path, ".go"):
			name, length, line = longestGoFunction(f.Content)
		}
		if length <= godFunctionLines {
			return DiscoveredIssue{}, false
		}
	}

	desc := fmt.Sprintf("%d lines in one function - cannot be tested", length)
	if name != "" {
		desc = fmt.Sprintf("%s is %d lines - cannot be tested", name, length)
	}
	return DiscoveredIssue{
		FilePath:       f.Path,
		LineStart:      line,
		DebtType:       types.DebtGodFunction,
		Severity:       types.SeverityCritical,
		Description:    desc,
		BusinessImpact: "Untestable logic that only its author can safely change",
		AnnualCost:     80000,
		FixEffortWeeks: 3,
		Evidence: map[string]any{
			"function": name,
			"lines":    length,
		},
	}, true
}

// longestPythonFunction measures each def by indentation and returns the longest.
func longestPythonFunction(content string) (name string, length, line int) {
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		m := pythonDefRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		indent := leadingSpace(m[1])
		end := i
		for j := i + 1; j < len(lines); j++ {
			trimmed := strings.TrimSpace(lines[j])
			if trimmed == "" {
				continue
			}
			if leadingSpace(lines[j]) <= indent {
				break
			}
			end = j
		}
		if n := end - i + 1; n > length {
			name, length, line = m[2], n, i+1
		}
	}
	return name, length, line
}

// longestGoFunction measures top-level funcs up to their closing brace.
func longestGoFunction(content string) (name string, length, line int) {
	lines := strings.Split(content, "\n")
	for i := 0; i < len(lines); i++ {
		m := goFuncRe.FindStringSubmatch(lines[i])
		if m == nil {
			continue
		}
		end := i
		for j := i + 1; j < len(lines) && !strings.HasSuffix(strings.TrimSpace(lines[i]), "}"); j++ {
			if strings.HasPrefix(lines[j], "}") {
				end = j
				break
			}
			end = j
		}
		if n := end - i + 1; n > length {
			name, length, line = m[1], n, i+1
		}
	}
	return name, length, line
}

func leadingSpace(s string) int {
	n := 0
	for _, r := range s {
		switch r {
		case ' ':
			n++
		case '\t':
			n += 4
		default:
			return n
		}
	}
	return n
}
