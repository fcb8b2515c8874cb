package health

import (
	"context"
	"fmt"
	"math"
	"sort"
	"time"

	"github.com/steveyegge/debtneg/internal/types"
)

// Monitor is one heuristic debt detector.
// Monitors only read the snapshot; they never touch the filesystem.
type Monitor interface {
	// Name returns the unique identifier for this monitor.
	Name() string

	// Philosophy returns the principle the monitor checks for.
	Philosophy() string

	// Check examines the snapshot and returns discovered issues.
	Check(ctx context.Context, snap *types.RepositorySnapshot) (*MonitorResult, error)
}

// MonitorResult contains issues discovered by a monitor.
type MonitorResult struct {
	IssuesFound []DiscoveredIssue

	// Context describes what was examined, for debug logs.
	Context string

	CheckedAt time.Time
	Stats     CheckStats
}

// DiscoveredIssue is a debt finding with the evidence that produced it.
type DiscoveredIssue struct {
	// Location in the repository
	FilePath  string
	LineStart int

	DebtType       types.DebtType
	Severity       types.Severity
	Description    string
	BusinessImpact string

	// Flat estimates; zero means the monitor has no estimate.
	AnnualCost     float64
	FixEffortWeeks float64

	// RiskFlag marks security or compliance exposure.
	RiskFlag bool

	// Supporting data (metrics, matched text)
	Evidence map[string]any
}

// Location renders "path:line", "path" or "dir/".
func (d DiscoveredIssue) Location() string {
	if d.LineStart > 0 {
		return fmt.Sprintf("%s:%d", d.FilePath, d.LineStart)
	}
	return d.FilePath
}

// ToRaw converts the issue into the oracle finding shape.
func (d DiscoveredIssue) ToRaw() types.RawFinding {
	raw := types.RawFinding{
		Type:           string(d.DebtType),
		Severity:       string(d.Severity),
		Location:       d.Location(),
		Description:    d.Description,
		BusinessImpact: d.BusinessImpact,
	}
	if d.AnnualCost > 0 {
		cost := d.AnnualCost
		raw.AnnualCost = &cost
	}
	if d.FixEffortWeeks > 0 {
		effort := d.FixEffortWeeks
		raw.FixEffortWeeks = &effort
	}
	if d.RiskFlag {
		risk := true
		raw.RiskFlag = &risk
	}
	return raw
}

// skipped is the result of a monitor that does not apply to the repository type.
func skipped(startTime time.Time, repoType types.RepoType) *MonitorResult {
	return &MonitorResult{
		Context:   fmt.Sprintf("Not applicable to %s repositories", repoType),
		CheckedAt: startTime,
	}
}

// CheckStats tracks statistics from a monitor check.
type CheckStats struct {
	FilesScanned int
	IssuesFound  int
	Duration     time.Duration
}

// Distribution represents a statistical distribution of values.
type Distribution struct {
	Mean   float64
	Median float64
	StdDev float64
	P95    float64 // 95th percentile
	Min    float64
	Max    float64
	Count  int
}

// NewDistribution computes the distribution of values.
func NewDistribution(values []int) Distribution {
	if len(values) == 0 {
		return Distribution{}
	}

	sorted := append([]int(nil), values...)
	sort.Ints(sorted)

	sum := 0
	for _, v := range sorted {
		sum += v
	}
	mean := float64(sum) / float64(len(sorted))

	variance := 0.0
	for _, v := range sorted {
		diff := float64(v) - mean
		variance += diff * diff
	}

	// Percentile with bounds checking for small datasets
	p95Idx := int(float64(len(sorted)) * 0.95)
	if p95Idx >= len(sorted) {
		p95Idx = len(sorted) - 1
	}

	return Distribution{
		Mean:   mean,
		Median: float64(sorted[len(sorted)/2]),
		StdDev: math.Sqrt(variance / float64(len(sorted))),
		P95:    float64(sorted[p95Idx]),
		Min:    float64(sorted[0]),
		Max:    float64(sorted[len(sorted)-1]),
		Count:  len(sorted),
	}
}

// IsUpperOutlier returns true if the value is N standard deviations above the mean.
func (d Distribution) IsUpperOutlier(value float64, numStdDevs float64) bool {
	if d.StdDev == 0 {
		return false
	}
	return value > d.Mean+(numStdDevs*d.StdDev)
}
