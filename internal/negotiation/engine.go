// Package negotiation compares shipping the backlog on the current codebase
// (option A) against paying down debt first (option B).
//
// The options use a fixed risk model (see RiskProfile): the data decides the
// timelines and the money, never the success rates. The only semantic input is
// the ticket-to-debt-type mapping, which is supplied by the caller.
package negotiation

import (
	"fmt"
	"log/slog"
	"math"
	"strings"

	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/types"
)

const (
	// DefaultPointsPerWeek is the team's feature velocity.
	DefaultPointsPerWeek = 10

	// DefaultStoryPoints is assumed for tickets with no estimate.
	DefaultStoryPoints = 3
)

// Config parameterizes the engine.
type Config struct {
	Profile RiskProfile

	// Strategy picks the subset evaluated for partial_refactor. Nil means critical-only.
	Strategy SubsetStrategy

	// HorizonWeeks is the longest acceptable break-even. 0 means any finite break-even is acceptable.
	HorizonWeeks int

	PointsPerWeek      int
	DefaultStoryPoints int
}

// DefaultConfig returns the engine defaults.
func DefaultConfig() Config {
	return Config{
		Profile:            DefaultRiskProfile(),
		Strategy:           SeverityAtLeast{Min: types.SeverityCritical},
		PointsPerWeek:      DefaultPointsPerWeek,
		DefaultStoryPoints: DefaultStoryPoints,
	}
}

// Engine produces negotiation results. It holds no state between calls.
type Engine struct {
	cfg Config
}

// New creates an engine, filling unset fields with defaults.
func New(cfg Config) (*Engine, error) {
	d := DefaultConfig()
	if cfg.Profile == (RiskProfile{}) {
		cfg.Profile = d.Profile
	}
	if err := cfg.Profile.Validate(); err != nil {
		return nil, fmt.Errorf("invalid risk profile: %w", err)
	}
	if cfg.Strategy == nil {
		cfg.Strategy = d.Strategy
	}
	if cfg.HorizonWeeks < 0 {
		return nil, fmt.Errorf("horizon_weeks must be non-negative, got %d", cfg.HorizonWeeks)
	}
	if cfg.PointsPerWeek <= 0 {
		cfg.PointsPerWeek = d.PointsPerWeek
	}
	if cfg.DefaultStoryPoints <= 0 {
		cfg.DefaultStoryPoints = d.DefaultStoryPoints
	}
	return &Engine{cfg: cfg}, nil
}

// Config returns the effective configuration.
func (e *Engine) Config() Config {
	return e.cfg
}

// Negotiate builds both options, the per-ticket analysis and the overall
// recommendation. blockers maps ticket keys to debt type slugs; types that do
// not occur in findings are ignored.
func (e *Engine) Negotiate(model types.CostModel, findings []types.DebtFinding, tickets []types.FeatureTicket, blockers map[string][]string) types.NegotiationResult {
	worst := worstSeverityByType(findings)

	analysis := make([]types.FeatureAssessment, 0, len(tickets))
	featureWeeks := 0
	for _, t := range tickets {
		a := e.assess(t, blockers[t.Key], worst)
		featureWeeks += a.FeatureWeeks
		analysis = append(analysis, a)
	}

	result := types.NegotiationResult{
		HealthScore:     model.HealthScore,
		BreakEvenWeeks:  model.BreakEvenWeeks,
		OptionA:         e.buildNow(model, findings, analysis, featureWeeks),
		OptionB:         e.refactorFirst(model, analysis, featureWeeks),
		FeatureAnalysis: analysis,
	}

	result.Partial = e.partial(model, findings)
	result.OverallRecommendation, result.RecommendationReason = e.decide(model, result.Partial)

	slog.Debug("negotiation complete", "result", result.Headline())
	return result
}

// FeatureWeeks converts story points into whole weeks of feature work.
func (e *Engine) FeatureWeeks(points int) int {
	if points <= 0 {
		points = e.cfg.DefaultStoryPoints
	}
	return int(math.Ceil(float64(points) / float64(e.cfg.PointsPerWeek)))
}

func (e *Engine) assess(t types.FeatureTicket, mapped []string, worst map[types.DebtType]types.Severity) types.FeatureAssessment {
	var blockedBy []types.DebtType
	for _, slug := range mapped {
		dt := types.NormalizeDebtType(slug)
		if _, present := worst[dt]; present {
			blockedBy = append(blockedBy, dt)
		}
	}
	blockedBy = types.SortDebtTypes(blockedBy)

	var blockerSeverities []types.Severity
	for _, dt := range blockedBy {
		blockerSeverities = append(blockerSeverities, worst[dt])
	}
	risk := riskFromBlockers(blockerSeverities)

	a := types.FeatureAssessment{
		Key:            t.Key,
		Title:          t.Title,
		StoryPoints:    t.StoryPoints,
		FeatureWeeks:   e.FeatureWeeks(t.StoryPoints),
		BlockedBy:      blockedBy,
		RiskIfBuiltNow: risk,
	}

	names := make([]string, 0, len(blockedBy))
	for _, dt := range blockedBy {
		names = append(names, string(dt))
	}
	switch risk {
	case types.RiskHigh:
		a.Recommendation = types.RecommendRefactorFirst
		a.Reasoning = fmt.Sprintf("Blocked by critical debt (%s). Building now means working around it.", strings.Join(names, ", "))
	case types.RiskMedium:
		a.Recommendation = types.RecommendPartialRefactor
		a.Reasoning = fmt.Sprintf("Slowed by high-severity debt (%s). Fix the blockers alongside the feature.", strings.Join(names, ", "))
	default:
		a.Recommendation = types.RecommendBuildNow
		if len(blockedBy) == 0 {
			a.Reasoning = "No known debt blocks this feature."
		} else {
			a.Reasoning = fmt.Sprintf("Only medium debt in the way (%s). Safe to build now.", strings.Join(names, ", "))
		}
	}
	if a.BlockedBy == nil {
		a.BlockedBy = []types.DebtType{}
	}
	return a
}

// riskFromBlockers: high if any blocker is critical, medium if only high ones, else low.
func riskFromBlockers(severities []types.Severity) types.RiskLevel {
	if len(severities) == 0 {
		return types.RiskLow
	}
	switch types.MaxSeverity(severities...) {
	case types.SeverityCritical:
		return types.RiskHigh
	case types.SeverityHigh:
		return types.RiskMedium
	}
	return types.RiskLow
}

func (e *Engine) buildNow(model types.CostModel, findings []types.DebtFinding, analysis []types.FeatureAssessment, featureWeeks int) types.BuildNowOption {
	var severities []types.Severity
	for _, f := range findings {
		severities = append(severities, f.Severity)
	}

	opt := types.BuildNowOption{
		Label:              "Build Features Now",
		FeatureWeeks:       featureWeeks,
		TotalWeeks:         featureWeeks,
		SuccessRate:        e.cfg.Profile.BuildNowSuccessRate,
		RegressionRisk:     e.cfg.Profile.BuildNowRegressionRisk,
		RiskLevel:          riskFromBlockers(severities),
		OngoingMonthlyCost: model.AnnualSavings / 12,
	}

	opt.Risks = append(opt.Risks, fmt.Sprintf("%.0f%% regression risk", opt.RegressionRisk))
	if model.Severity.Critical > 0 {
		opt.Risks = append(opt.Risks, fmt.Sprintf("%d critical debt items stay in production", model.Severity.Critical))
	}
	if model.AnnualSavings > 0 {
		opt.Risks = append(opt.Risks, fmt.Sprintf("Debt keeps costing %s per month", types.FormatUSD(opt.OngoingMonthlyCost)))
	}
	for _, a := range analysis {
		if a.RiskIfBuiltNow == types.RiskHigh {
			opt.Risks = append(opt.Risks, fmt.Sprintf("%s is blocked by critical debt", a.Key))
		}
	}
	return opt
}

func (e *Engine) refactorFirst(model types.CostModel, analysis []types.FeatureAssessment, featureWeeks int) types.RefactorFirstOption {
	opt := types.RefactorFirstOption{
		Label:           "Refactor First, Then Build",
		RefactorWeeks:   model.CalendarRefactorWeeks,
		FeatureWeeks:    featureWeeks,
		TotalWeeks:      model.CalendarRefactorWeeks + featureWeeks,
		SuccessRate:     e.cfg.Profile.RefactorSuccessRate,
		RiskLevel:       types.RiskLow,
		RefactoringCost: model.RefactoringCost,
		AnnualSavings:   model.AnnualSavings,
		BreakEvenWeeks:  model.BreakEvenWeeks,
	}

	if model.AnnualSavings > 0 {
		opt.Benefits = append(opt.Benefits, fmt.Sprintf("Saves %s per year", types.FormatUSD(model.AnnualSavings)))
	}
	if model.BreakEvenWeeks.Finite() && model.AnnualSavings > 0 {
		opt.Benefits = append(opt.Benefits, fmt.Sprintf("Pays for itself in %s weeks", model.BreakEvenWeeks))
	}
	unblocked := 0
	for _, a := range analysis {
		if len(a.BlockedBy) > 0 {
			unblocked++
		}
	}
	if unblocked > 0 {
		opt.Benefits = append(opt.Benefits, fmt.Sprintf("Unblocks %d of %d features", unblocked, len(analysis)))
	}
	if opt.Benefits == nil {
		opt.Benefits = []string{}
	}
	return opt
}

// partial evaluates the strategy subset. It returns nil when the subset is not
// a strict, non-empty subset of the findings.
func (e *Engine) partial(model types.CostModel, findings []types.DebtFinding) *types.PartialRefactor {
	subset := e.cfg.Strategy.Select(findings)
	if len(subset) == 0 || len(subset) >= len(findings) {
		return nil
	}

	params := cost.Params{TeamSize: model.TeamSize, WeeklyRate: model.WeeklyRate, WorkStreams: model.WorkStreams}
	sub := cost.Aggregate(subset, params)
	return &types.PartialRefactor{
		Strategy:     e.cfg.Strategy.Name(),
		FindingCount: len(subset),
		Favorable:    sub.AnnualSavings > 0 && sub.BreakEvenWeeks.Within(e.cfg.HorizonWeeks),
		CostModel:    sub,
	}
}

func (e *Engine) decide(model types.CostModel, partial *types.PartialRefactor) (types.Recommendation, string) {
	if model.AnnualSavings <= 0 {
		return types.RecommendBuildNow, "No debt with a measurable annual cost was found, so there is nothing to pay down first."
	}

	if model.BreakEvenWeeks.Within(e.cfg.HorizonWeeks) {
		return types.RecommendRefactorFirst, fmt.Sprintf(
			"Refactoring costs %s and removes %s of annual drag, paying for itself in %s weeks. "+
				"Success odds rise from %.0f%% to %.0f%%.",
			types.FormatUSD(model.RefactoringCost), types.FormatUSD(model.AnnualSavings), model.BreakEvenWeeks,
			e.cfg.Profile.BuildNowSuccessRate, e.cfg.Profile.RefactorSuccessRate)
	}

	if partial != nil && partial.Favorable {
		return types.RecommendPartialRefactor, fmt.Sprintf(
			"The full refactor breaks even in %s weeks, beyond the %d-week horizon. "+
				"Fixing the %d %s findings first breaks even in %s weeks.",
			model.BreakEvenWeeks, e.cfg.HorizonWeeks, partial.FindingCount,
			strings.ReplaceAll(partial.Strategy, "_", " "), partial.CostModel.BreakEvenWeeks)
	}

	// Savings are positive; the payback just lands beyond the horizon.
	return types.RecommendRefactorFirst, fmt.Sprintf(
		"The refactor breaks even in %s weeks, beyond the %d-week horizon, and no smaller subset pays back in time. "+
			"Success odds still rise from %.0f%% to %.0f%%.",
		model.BreakEvenWeeks, e.cfg.HorizonWeeks,
		e.cfg.Profile.BuildNowSuccessRate, e.cfg.Profile.RefactorSuccessRate)
}

// worstSeverityByType returns, per debt type present, its highest severity.
func worstSeverityByType(findings []types.DebtFinding) map[types.DebtType]types.Severity {
	worst := make(map[types.DebtType]types.Severity, len(findings))
	for _, f := range findings {
		worst[f.Type] = types.MaxSeverity(worst[f.Type], f.Severity)
	}
	return worst
}
