package negotiation

import (
	"fmt"
	"sort"

	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/types"
)

// Risk model defaults. These are policy, not measurements: the build-now option
// always carries the same regression risk whatever the data says.
const (
	DefaultRegressionRisk      = 65.0
	DefaultBuildNowSuccessRate = 35.0
	DefaultRefactorSuccessRate = 92.0
)

// RiskProfile holds the fixed success and regression rates of the two options (percent).
type RiskProfile struct {
	BuildNowRegressionRisk float64 `json:"build_now_regression_risk" yaml:"build_now_regression_risk" mapstructure:"build_now_regression_risk" validate:"gte=0,lte=100"`
	BuildNowSuccessRate    float64 `json:"build_now_success_rate" yaml:"build_now_success_rate" mapstructure:"build_now_success_rate" validate:"gte=0,lte=100"`
	RefactorSuccessRate    float64 `json:"refactor_success_rate" yaml:"refactor_success_rate" mapstructure:"refactor_success_rate" validate:"gte=0,lte=100"`
}

// DefaultRiskProfile returns the 65/35/92 profile.
func DefaultRiskProfile() RiskProfile {
	return RiskProfile{
		BuildNowRegressionRisk: DefaultRegressionRisk,
		BuildNowSuccessRate:    DefaultBuildNowSuccessRate,
		RefactorSuccessRate:    DefaultRefactorSuccessRate,
	}
}

// Validate checks every rate is a percentage
func (p RiskProfile) Validate() error {
	rates := []struct {
		name  string
		value float64
	}{
		{"build_now_regression_risk", p.BuildNowRegressionRisk},
		{"build_now_success_rate", p.BuildNowSuccessRate},
		{"refactor_success_rate", p.RefactorSuccessRate},
	}
	for _, r := range rates {
		if r.value < 0 || r.value > 100 {
			return fmt.Errorf("%s must be between 0 and 100, got %.1f", r.name, r.value)
		}
	}
	return nil
}

// SubsetStrategy picks the findings a partial refactor would address.
type SubsetStrategy interface {
	Name() string
	Select(findings []types.DebtFinding) []types.DebtFinding
}

// SeverityAtLeast keeps findings at or above a minimum severity.
type SeverityAtLeast struct {
	Min types.Severity
}

// Name implements SubsetStrategy.
func (s SeverityAtLeast) Name() string {
	if s.Min == types.SeverityCritical {
		return StrategyCriticalOnly
	}
	return string(s.Min) + "_and_above"
}

// Select implements SubsetStrategy.
func (s SeverityAtLeast) Select(findings []types.DebtFinding) []types.DebtFinding {
	var out []types.DebtFinding
	for _, f := range findings {
		if f.Severity.Weight() >= s.Min.Weight() {
			out = append(out, f)
		}
	}
	return out
}

// RiskOnly keeps the security-class findings.
type RiskOnly struct{}

// Name implements SubsetStrategy.
func (RiskOnly) Name() string { return StrategyRiskOnly }

// Select implements SubsetStrategy.
func (RiskOnly) Select(findings []types.DebtFinding) []types.DebtFinding {
	var out []types.DebtFinding
	for _, f := range findings {
		if f.RiskFlag {
			out = append(out, f)
		}
	}
	return out
}

// BestPayback keeps the findings whose own payback is fastest, adding them in
// order of annual cost per effort week until the subset no longer breaks even
// within the horizon. Zero-effort findings always come first.
type BestPayback struct {
	WeeklyBurn   float64
	HorizonWeeks int
}

// Name implements SubsetStrategy.
func (BestPayback) Name() string { return StrategyBestPayback }

// Select implements SubsetStrategy.
func (b BestPayback) Select(findings []types.DebtFinding) []types.DebtFinding {
	ranked := append([]types.DebtFinding(nil), findings...)
	sort.SliceStable(ranked, func(i, j int) bool {
		return paybackRatio(ranked[i]) > paybackRatio(ranked[j])
	})

	var out []types.DebtFinding
	var spend, savings float64
	for _, f := range ranked {
		nextSpend := spend + f.FixEffortWeeks*b.WeeklyBurn
		nextSavings := savings + f.AnnualCost
		if nextSavings <= 0 {
			continue
		}
		weeks := nextSpend / (nextSavings / cost.WeeksPerYear)
		if b.HorizonWeeks > 0 && weeks > float64(b.HorizonWeeks) {
			break
		}
		out = append(out, f)
		spend, savings = nextSpend, nextSavings
	}
	return out
}

func paybackRatio(f types.DebtFinding) float64 {
	if f.FixEffortWeeks <= 0 {
		if f.AnnualCost > 0 {
			return 1e18
		}
		return 0
	}
	return f.AnnualCost / f.FixEffortWeeks
}

// Strategy names accepted in configuration.
const (
	StrategyCriticalOnly = "critical_only"
	StrategyHighAndAbove = "high_and_above"
	StrategyRiskOnly     = "risk_only"
	StrategyBestPayback  = "best_payback"
)

// StrategyByName resolves a configured strategy. weeklyBurn and horizon are
// only used by best_payback.
func StrategyByName(name string, weeklyBurn float64, horizonWeeks int) (SubsetStrategy, error) {
	switch name {
	case "", StrategyCriticalOnly:
		return SeverityAtLeast{Min: types.SeverityCritical}, nil
	case StrategyHighAndAbove:
		return SeverityAtLeast{Min: types.SeverityHigh}, nil
	case StrategyRiskOnly:
		return RiskOnly{}, nil
	case StrategyBestPayback:
		return BestPayback{WeeklyBurn: weeklyBurn, HorizonWeeks: horizonWeeks}, nil
	}
	return nil, fmt.Errorf("unknown partial refactor strategy %q", name)
}
