package health

import (
	"context"
	"fmt"
	"path"
	"regexp"
	"strings"
	"time"

	"github.com/steveyegge/debtneg/internal/types"
)

const (
	// staleModelDays is how long a model may go without retraining.
	staleModelDays = 90

	// magicFeatureLimit is how many feature_N names a file may carry before it counts as undocumented.
	magicFeatureLimit = 10
)

var (
	lastTrainedRe  = regexp.MustCompile(`(?i)Last (?:run|trained?):\s*(\d{4}-\d{2}-\d{2})`)
	magicFeatureRe = regexp.MustCompile(`feature_\d+`)
)

// MLMonitor finds stale models and anonymous feature columns in ML code.
type MLMonitor struct {
	// Now returns the reference time for staleness. Defaults to time.Now.
	Now func() time.Time
}

// NewMLMonitor creates an ML monitor using the wall clock.
func NewMLMonitor() *MLMonitor {
	return &MLMonitor{Now: time.Now}
}

// Name implements Monitor.
func (m *MLMonitor) Name() string {
	return "ml_monitor"
}

// Philosophy implements Monitor.
func (m *MLMonitor) Philosophy() string {
	return "Models decay as the world changes, and features nobody can explain " +
		"cannot be debugged or trusted."
}

// Check implements Monitor.
func (m *MLMonitor) Check(ctx context.Context, snap *types.RepositorySnapshot) (*MonitorResult, error) {
	startTime := time.Now()
	if snap.RepoType != types.RepoML && snap.RepoType != types.RepoMixed {
		return skipped(startTime, snap.RepoType), nil
	}
	now := time.Now
	if m.Now != nil {
		now = m.Now
	}
	today := now().UTC().Truncate(24 * time.Hour)

	var issues []DiscoveredIssue
	scanned := 0
	for _, f := range snap.Files {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		if !hasExt(f.Path, ".py", ".ipynb") {
			continue
		}
		base := strings.ToLower(path.Base(f.Path))
		if strings.Contains(base, "train") {
			scanned++
			if issue, ok := m.staleness(f, today); ok {
				issues = append(issues, issue)
			}
		}
		if strings.Contains(base, "feature") {
			scanned++
			if issue, ok := m.magicFeatures(f); ok {
				issues = append(issues, issue)
			}
		}
	}

	return &MonitorResult{
		IssuesFound: issues,
		Context:     fmt.Sprintf("Scanned %d training and feature files", scanned),
		CheckedAt:   startTime,
		Stats: CheckStats{
			FilesScanned: scanned,
			IssuesFound:  len(issues),
			Duration:     time.Since(startTime),
		},
	}, nil
}

func (m *MLMonitor) staleness(f types.SnapshotFile, today time.Time) (DiscoveredIssue, bool) {
	match := lastTrainedRe.FindStringSubmatchIndex(f.Content)
	if match == nil {
		return DiscoveredIssue{}, false
	}
	dateStr := f.Content[match[2]:match[3]]
	lastRun, err := time.Parse("2006-01-02", dateStr)
	if err != nil {
		return DiscoveredIssue{}, false
	}
	daysAgo := int(today.Sub(lastRun).Hours() / 24)
	if daysAgo <= staleModelDays {
		return DiscoveredIssue{}, false
	}
	return DiscoveredIssue{
		FilePath:       f.Path,
		LineStart:      lineOf(f.Content, match[0]),
		DebtType:       types.DebtModelStaleness,
		Severity:       types.SeverityCritical,
		Description:    fmt.Sprintf("Model last trained %d days ago", daysAgo),
		BusinessImpact: "Predictions drift from reality and lose accuracy every month",
		AnnualCost:     564000,
		FixEffortWeeks: 1,
		Evidence: map[string]any{
			"last_trained": dateStr,
			"days_ago":     daysAgo,
		},
	}, true
}

func (m *MLMonitor) magicFeatures(f types.SnapshotFile) (DiscoveredIssue, bool) {
	count := len(magicFeatureRe.FindAllStringIndex(f.Content, -1))
	if count <= magicFeatureLimit {
		return DiscoveredIssue{}, false
	}
	return DiscoveredIssue{
		FilePath:       f.Path,
		LineStart:      firstMatchLine(magicFeatureRe, f.Content),
		DebtType:       types.DebtUndocumentedFeatures,
		Severity:       types.SeverityHigh,
		Description:    fmt.Sprintf("%d undocumented features found", count),
		BusinessImpact: "Nobody can explain or safely change what the model consumes",
		AnnualCost:     144000,
		FixEffortWeeks: 2,
		Evidence: map[string]any{
			"magic_features": count,
		},
	}, true
}
