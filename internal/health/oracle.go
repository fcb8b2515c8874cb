package health

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/steveyegge/debtneg/internal/types"
)

// Oracle classifies repositories with the heuristic monitors instead of a model.
type Oracle struct {
	registry *MonitorRegistry
}

// NewOracle creates an oracle with every built-in monitor registered.
func NewOracle() (*Oracle, error) {
	return NewOracleWith(
		NewDependencyAuditor(),
		NewGodClassMonitor(),
		NewSecurityMonitor(),
		NewMLMonitor(),
		NewPipelineMonitor(),
	)
}

// NewOracleWith creates an oracle over the given monitors.
func NewOracleWith(monitors ...Monitor) (*Oracle, error) {
	registry := NewMonitorRegistry()
	for _, m := range monitors {
		if err := registry.Register(m); err != nil {
			return nil, fmt.Errorf("registering monitor: %w", err)
		}
	}
	return &Oracle{registry: registry}, nil
}

// Name identifies the oracle in reports.
func (o *Oracle) Name() string {
	return "heuristic"
}

// Registry exposes the monitors for inspection.
func (o *Oracle) Registry() *MonitorRegistry {
	return o.registry
}

// ClassifyRepository runs every monitor against the snapshot.
func (o *Oracle) ClassifyRepository(ctx context.Context, snap *types.RepositorySnapshot) ([]types.RawFinding, error) {
	if snap == nil || snap.IsEmpty() {
		return nil, nil
	}

	issues, err := o.registry.RunAll(ctx, snap)
	if err != nil {
		return nil, err
	}

	findings := make([]types.RawFinding, 0, len(issues))
	for _, issue := range issues {
		findings = append(findings, issue.ToRaw())
	}
	slog.Debug("heuristic classification complete",
		"repository", snap.Name,
		"monitors", len(o.registry.ListMonitors()),
		"findings", len(findings))
	return findings, nil
}
