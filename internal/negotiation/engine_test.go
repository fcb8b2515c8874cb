package negotiation

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/types"
)

func newEngine(t *testing.T, cfg Config) *Engine {
	t.Helper()
	e, err := New(cfg)
	require.NoError(t, err)
	return e
}

func debt(dt types.DebtType, sev types.Severity, annual, effort float64) types.DebtFinding {
	return types.DebtFinding{Type: dt, Category: types.CategoryOf(dt), Severity: sev, AnnualCost: annual, FixEffortWeeks: effort, Estimated: true}
}

var backlog = []types.FeatureTicket{
	{Key: "PLAT-101", Title: "Add real-time fraud alerts", Priority: "High", StoryPoints: 8},
	{Key: "PLAT-102", Title: "Dynamic pricing engine", Priority: "Critical", StoryPoints: 13},
	{Key: "PLAT-104", Title: "Upgrade payment gateway to Stripe v3", Priority: "Medium", StoryPoints: 5},
}

func TestNegotiate_EmptyFindingsBuildsNow(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	model := cost.Aggregate(nil, cost.DefaultParams())

	result := e.Negotiate(model, nil, backlog, nil)

	assert.Equal(t, types.RecommendBuildNow, result.OverallRecommendation)
	assert.True(t, result.BreakEvenWeeks.Never)
	assert.True(t, result.OptionB.BreakEvenWeeks.Never)
	assert.Nil(t, result.Partial)
	assert.Equal(t, 100, result.HealthScore)
	for _, a := range result.FeatureAnalysis {
		assert.Empty(t, a.BlockedBy)
		assert.Equal(t, types.RiskLow, a.RiskIfBuiltNow)
		assert.Equal(t, types.RecommendBuildNow, a.Recommendation)
	}
}

func TestNegotiate_GodLibraryRefactorsFirst(t *testing.T) {
	findings := []types.DebtFinding{debt(types.DebtGodLibrary, types.SeverityCritical, 268_000, 3)}
	model := cost.Aggregate(findings, cost.Params{TeamSize: 5, WeeklyRate: 8_000, WorkStreams: 1})

	result := newEngine(t, DefaultConfig()).Negotiate(model, findings, backlog, map[string][]string{
		"PLAT-101": {"god_library"},
	})

	assert.Equal(t, types.RecommendRefactorFirst, result.OverallRecommendation)
	assert.Equal(t, types.WeeksOf(24), result.OptionB.BreakEvenWeeks)
	assert.Contains(t, result.RecommendationReason, "$120,000")

	// 8, 13 and 5 points at 10 points per week: 1 + 2 + 1.
	assert.Equal(t, 4, result.OptionA.FeatureWeeks)
	assert.Equal(t, 4, result.OptionA.TotalWeeks, "build-now timeline never includes remediation")
	assert.Equal(t, 3, result.OptionB.RefactorWeeks)
	assert.Equal(t, 7, result.OptionB.TotalWeeks)

	assert.Equal(t, DefaultRegressionRisk, result.OptionA.RegressionRisk)
	assert.Equal(t, DefaultBuildNowSuccessRate, result.OptionA.SuccessRate)
	assert.Equal(t, DefaultRefactorSuccessRate, result.OptionB.SuccessRate)
	assert.InDelta(t, 268_000.0/12, result.OptionA.OngoingMonthlyCost, 1e-6)
	assert.Equal(t, types.RiskHigh, result.OptionA.RiskLevel)
}

func TestNegotiate_TicketRisk(t *testing.T) {
	findings := []types.DebtFinding{
		debt(types.DebtModelStaleness, types.SeverityCritical, 564_000, 1),
		debt(types.DebtGodClass, types.SeverityHigh, 50_000, 2),
		debt(types.DebtCodeDuplication, types.SeverityMedium, 8_000, 1),
	}
	model := cost.Aggregate(findings, cost.DefaultParams())
	blockers := map[string][]string{
		"PLAT-101": {"model_staleness", "god_class", "inference_bottleneck"},
		"PLAT-102": {"God Class", "code_duplication"},
		"PLAT-104": {"code_duplication"},
	}

	result := newEngine(t, DefaultConfig()).Negotiate(model, findings, backlog, blockers)
	require.Len(t, result.FeatureAnalysis, 3)

	fraud := result.FeatureAnalysis[0]
	assert.Equal(t, []types.DebtType{types.DebtGodClass, types.DebtModelStaleness}, fraud.BlockedBy,
		"types absent from the findings are dropped")
	assert.Equal(t, types.RiskHigh, fraud.RiskIfBuiltNow)
	assert.Equal(t, types.RecommendRefactorFirst, fraud.Recommendation)

	pricing := result.FeatureAnalysis[1]
	assert.Equal(t, types.RiskMedium, pricing.RiskIfBuiltNow)
	assert.Equal(t, types.RecommendPartialRefactor, pricing.Recommendation)

	gateway := result.FeatureAnalysis[2]
	assert.Equal(t, types.RiskLow, gateway.RiskIfBuiltNow)
	assert.Equal(t, types.RecommendBuildNow, gateway.Recommendation)

	assert.Contains(t, result.OptionA.Risks, "PLAT-101 is blocked by critical debt")
	assert.Contains(t, result.OptionB.Benefits, "Unblocks 3 of 3 features")
}

func TestNegotiate_PartialRefactorWithinHorizon(t *testing.T) {
	findings := []types.DebtFinding{
		debt(types.DebtHardcodedCredentials, types.SeverityCritical, 100_000, 1),
		debt(types.DebtTestDebt, types.SeverityMedium, 10_000, 20),
	}
	model := cost.Aggregate(findings, cost.DefaultParams())
	// 21 weeks × $50K = $1.05M against $110K/yr: break-even far beyond a year.
	require.Equal(t, types.WeeksOf(497), model.BreakEvenWeeks)

	cfg := DefaultConfig()
	cfg.HorizonWeeks = 52
	result := newEngine(t, cfg).Negotiate(model, findings, nil, nil)

	assert.Equal(t, types.RecommendPartialRefactor, result.OverallRecommendation)
	require.NotNil(t, result.Partial)
	assert.Equal(t, StrategyCriticalOnly, result.Partial.Strategy)
	assert.Equal(t, 1, result.Partial.FindingCount)
	assert.True(t, result.Partial.Favorable)
	assert.Equal(t, types.WeeksOf(26), result.Partial.CostModel.BreakEvenWeeks)
}

func TestNegotiate_PaybackBeyondHorizonStillRefactors(t *testing.T) {
	findings := []types.DebtFinding{
		debt(types.DebtGodClass, types.SeverityHigh, 40_000, 10),
		debt(types.DebtTestDebt, types.SeverityMedium, 10_000, 20),
	}
	model := cost.Aggregate(findings, cost.DefaultParams())

	cfg := DefaultConfig()
	cfg.HorizonWeeks = 52
	result := newEngine(t, cfg).Negotiate(model, findings, nil, nil)

	assert.Equal(t, types.RecommendRefactorFirst, result.OverallRecommendation, "savings are positive")
	assert.Contains(t, result.RecommendationReason, "beyond the 52-week horizon")
	assert.Nil(t, result.Partial, "critical-only subset is empty")
}

func TestNegotiate_UnlimitedHorizonPrefersRefactor(t *testing.T) {
	findings := []types.DebtFinding{debt(types.DebtTestDebt, types.SeverityMedium, 1_000, 50)}
	model := cost.Aggregate(findings, cost.DefaultParams())

	result := newEngine(t, DefaultConfig()).Negotiate(model, findings, nil, nil)
	assert.Equal(t, types.RecommendRefactorFirst, result.OverallRecommendation)
}

func TestFeatureWeeks(t *testing.T) {
	e := newEngine(t, DefaultConfig())
	assert.Equal(t, 1, e.FeatureWeeks(0), "missing estimate counts as default points")
	assert.Equal(t, 1, e.FeatureWeeks(8))
	assert.Equal(t, 2, e.FeatureWeeks(13))
	assert.Equal(t, 1, e.FeatureWeeks(10))
}

func TestNew_RejectsInvalidProfile(t *testing.T) {
	_, err := New(Config{Profile: RiskProfile{BuildNowRegressionRisk: 120, BuildNowSuccessRate: 35, RefactorSuccessRate: 92}})
	assert.Error(t, err)

	_, err = New(Config{HorizonWeeks: -1})
	assert.Error(t, err)
}

func TestStrategies(t *testing.T) {
	findings := []types.DebtFinding{
		debt(types.DebtSQLInjectionRisk, types.SeverityCritical, 200_000, 1),
		debt(types.DebtGodClass, types.SeverityHigh, 50_000, 2),
		debt(types.DebtCodeDuplication, types.SeverityMedium, 8_000, 1),
	}
	findings[0].RiskFlag = true

	s, err := StrategyByName(StrategyHighAndAbove, 0, 0)
	require.NoError(t, err)
	assert.Len(t, s.Select(findings), 2)
	assert.Equal(t, StrategyHighAndAbove, s.Name())

	s, err = StrategyByName(StrategyRiskOnly, 0, 0)
	require.NoError(t, err)
	assert.Len(t, s.Select(findings), 1)

	// The injection fix pays back in 13 weeks; adding the god class pushes it past 20.
	s, err = StrategyByName(StrategyBestPayback, 50_000, 20)
	require.NoError(t, err)
	picked := s.Select(findings)
	require.Len(t, picked, 1)
	assert.Equal(t, types.DebtSQLInjectionRisk, picked[0].Type)

	s, err = StrategyByName(StrategyBestPayback, 50_000, 0)
	require.NoError(t, err)
	assert.Len(t, s.Select(findings), 3)

	_, err = StrategyByName("yolo", 0, 0)
	assert.Error(t, err)
}
