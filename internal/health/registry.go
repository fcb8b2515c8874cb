package health

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/steveyegge/debtneg/internal/types"
)

// MonitorRegistry holds the heuristic monitors and their run history.
type MonitorRegistry struct {
	mu       sync.RWMutex
	monitors map[string]Monitor
	state    map[string]*MonitorRunState
}

// MonitorRunState tracks the execution history for a single monitor.
type MonitorRunState struct {
	LastRun        time.Time
	LastIssueCount int
	Runs           int
	Failures       int
	LastError      string
}

// NewMonitorRegistry creates an empty registry.
func NewMonitorRegistry() *MonitorRegistry {
	return &MonitorRegistry{
		monitors: make(map[string]Monitor),
		state:    make(map[string]*MonitorRunState),
	}
}

// Register adds a monitor to the registry.
func (r *MonitorRegistry) Register(monitor Monitor) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	name := monitor.Name()
	if _, exists := r.monitors[name]; exists {
		return fmt.Errorf("monitor %q already registered", name)
	}

	r.monitors[name] = monitor
	r.state[name] = &MonitorRunState{}
	return nil
}

// GetMonitor returns a registered monitor by name.
func (r *MonitorRegistry) GetMonitor(name string) (Monitor, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	monitor, exists := r.monitors[name]
	return monitor, exists
}

// ListMonitors returns all registered monitor names, sorted.
func (r *MonitorRegistry) ListMonitors() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()

	names := make([]string, 0, len(r.monitors))
	for name := range r.monitors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GetMonitorState returns a copy of the run state for a monitor.
func (r *MonitorRegistry) GetMonitorState(name string) (MonitorRunState, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	state, exists := r.state[name]
	if !exists {
		return MonitorRunState{}, false
	}
	return *state, true
}

// RunMonitor executes a specific monitor and records the outcome.
func (r *MonitorRegistry) RunMonitor(ctx context.Context, name string, snap *types.RepositorySnapshot) (*MonitorResult, error) {
	monitor, exists := r.GetMonitor(name)
	if !exists {
		return nil, fmt.Errorf("monitor %q not registered", name)
	}

	start := time.Now()
	result, err := monitor.Check(ctx, snap)
	r.recordRun(name, result, err)
	if err != nil {
		return nil, fmt.Errorf("monitor %s: %w", name, err)
	}
	result.Stats.Duration = time.Since(start)
	return result, nil
}

// RunAll runs every monitor in name order and concatenates their issues.
// A failing monitor is logged and skipped; only context cancellation aborts.
func (r *MonitorRegistry) RunAll(ctx context.Context, snap *types.RepositorySnapshot) ([]DiscoveredIssue, error) {
	var issues []DiscoveredIssue
	for _, name := range r.ListMonitors() {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		result, err := r.RunMonitor(ctx, name, snap)
		if err != nil {
			slog.Warn("health monitor failed", "monitor", name, "repository", snap.Name, "error", err)
			continue
		}
		slog.Debug("health monitor finished",
			"monitor", name,
			"repository", snap.Name,
			"issues", len(result.IssuesFound),
			"context", result.Context)
		issues = append(issues, result.IssuesFound...)
	}
	return issues, nil
}

func (r *MonitorRegistry) recordRun(name string, result *MonitorResult, err error) {
	r.mu.Lock()
	defer r.mu.Unlock()

	state, exists := r.state[name]
	if !exists {
		state = &MonitorRunState{}
		r.state[name] = state
	}
	state.Runs++
	if err != nil {
		state.Failures++
		state.LastError = err.Error()
		return
	}
	state.LastRun = result.CheckedAt
	state.LastIssueCount = len(result.IssuesFound)
	state.LastError = ""
}
