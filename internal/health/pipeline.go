package health

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"sort"
	"strings"
	"time"

	"github.com/steveyegge/debtneg/internal/types"
)

// sprawlLimit is how many copies of one job may coexist in a directory.
const sprawlLimit = 2

var (
	// Version-ish suffixes: etl_pipeline_v2_final -> etl_pipeline.
	versionSuffixRe = regexp.MustCompile(`(?i)(?:[_-](?:v\d+|final|old|new|backup|bak|copy|fixed|tmp|temp|\d+))+$`)
	storageSizeRe   = regexp.MustCompile(`(?i)\b\d+(?:\.\d+)?\s*(?:TB|PB)\b`)

	pipelineExts = []string{".py", ".sql", ".scala", ".sh", ".yaml", ".yml"}
)

// PipelineMonitor finds copied ETL jobs and unexplained bulk storage.
type PipelineMonitor struct{}

// NewPipelineMonitor creates a data pipeline monitor.
func NewPipelineMonitor() *PipelineMonitor {
	return &PipelineMonitor{}
}

// Name implements Monitor.
func (m *PipelineMonitor) Name() string {
	return "pipeline_monitor"
}

// Philosophy implements Monitor.
func (m *PipelineMonitor) Philosophy() string {
	return "A pipeline should have one living version, and stored data should have an owner."
}

// Check implements Monitor.
func (m *PipelineMonitor) Check(ctx context.Context, snap *types.RepositorySnapshot) (*MonitorResult, error) {
	startTime := time.Now()
	if snap.RepoType != types.RepoDataPipeline && snap.RepoType != types.RepoMixed {
		return skipped(startTime, snap.RepoType), nil
	}

	groups := make(map[string][]string)
	var issues []DiscoveredIssue
	scanned := 0
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !hasExt(f.Path, pipelineExts...) || isTestPath(f.Path) {
			continue
		}
		scanned++
		if !strings.Contains(f.Path, "migration") {
			key := sprawlKey(f.Path)
			groups[key] = append(groups[key], f.Path)
		}

		if issue, ok := m.storageHoarding(f); ok {
			issues = append(issues, issue)
		}
	}

	keys := make([]string, 0, len(groups))
	for k := range groups {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		if files := groups[k]; len(files) > sprawlLimit {
			issues = append(issues, m.versionSprawl(files))
		}
	}

	return &MonitorResult{
		IssuesFound: issues,
		Context:     fmt.Sprintf("Scanned %d pipeline files in %d job groups", scanned, len(groups)),
		CheckedAt:   startTime,
		Stats: CheckStats{
			FilesScanned: scanned,
			IssuesFound:  len(issues),
			Duration:     time.Since(startTime),
		},
	}, nil
}

// sprawlKey groups files that are versions of the same job.
func sprawlKey(p string) string {
	ext := strings.ToLower(path.Ext(p))
	stem := strings.TrimSuffix(path.Base(p), path.Ext(p))
	stem = strings.ToLower(versionSuffixRe.ReplaceAllString(stem, ""))
	return path.Join(path.Dir(p), stem) + ext
}

func (m *PipelineMonitor) versionSprawl(files []string) DiscoveredIssue {
	sorted := append([]string(nil), files...)
	sort.Strings(sorted)

	dir := path.Dir(sorted[0]) + "/"
	if dir == "./" {
		dir = sprawlKey(sorted[0])
	}
	stem := strings.TrimSuffix(path.Base(sprawlKey(sorted[0])), path.Ext(sorted[0]))
	return DiscoveredIssue{
		FilePath:       dir,
		DebtType:       types.DebtVersionSprawl,
		Severity:       types.SeverityHigh,
		Description:    fmt.Sprintf("%d versions of %s found", len(sorted), stem),
		BusinessImpact: "Nobody knows which copy is live, so fixes land in the wrong one",
		AnnualCost:     78000,
		FixEffortWeeks: 3,
		Evidence: map[string]any{
			"files": sorted,
		},
	}
}

func (m *PipelineMonitor) storageHoarding(f types.SnapshotFile) (DiscoveredIssue, bool) {
	match := storageSizeRe.FindStringIndex(f.Content)
	if match == nil || !strings.Contains(strings.ToLower(f.Content), "archive") {
		return DiscoveredIssue{}, false
	}
	size := f.Content[match[0]:match[1]]
	return DiscoveredIssue{
		FilePath:       f.Path,
		LineStart:      lineOf(f.Content, match[0]),
		DebtType:       types.DebtStorageHoarding,
		Severity:       types.SeverityCritical,
		Description:    fmt.Sprintf("Archive of %s with unknown contents", size),
		BusinessImpact: "Paying every month to store data nobody reads",
		AnnualCost:     216000,
		FixEffortWeeks: 4,
		Evidence: map[string]any{
			"size": size,
		},
	}, true
}
