package types

import "fmt"

// FeatureTicket is one backlog item competing for engineering time.
type FeatureTicket struct {
	Key         string `json:"key" validate:"required"`
	Title       string `json:"title"`
	Priority    string `json:"priority"`
	StoryPoints int    `json:"story_points" validate:"gte=0"`
	Status      string `json:"status,omitempty"`
	Description string `json:"description,omitempty"`
}

// RiskLevel grades the risk of building on the current codebase.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// Recommendation is the outcome of a negotiation, overall or per ticket.
type Recommendation string

const (
	RecommendRefactorFirst   Recommendation = "refactor_first"
	RecommendBuildNow        Recommendation = "build_now"
	RecommendPartialRefactor Recommendation = "partial_refactor"
)

// IsValid checks if the recommendation value is valid
func (r Recommendation) IsValid() bool {
	switch r {
	case RecommendRefactorFirst, RecommendBuildNow, RecommendPartialRefactor:
		return true
	}
	return false
}

// BuildNowOption is option A: ship features on the current codebase.
type BuildNowOption struct {
	Label              string    `json:"label"`
	FeatureWeeks       int       `json:"feature_weeks"`
	TotalWeeks         int       `json:"total_weeks"`
	SuccessRate        float64   `json:"success_rate"`
	RegressionRisk     float64   `json:"regression_risk"`
	RiskLevel          RiskLevel `json:"risk_level"`
	Risks              []string  `json:"risks"`
	OngoingMonthlyCost float64   `json:"ongoing_monthly_cost"`
}

// RefactorFirstOption is option B: pay down debt, then build.
type RefactorFirstOption struct {
	Label           string    `json:"label"`
	RefactorWeeks   int       `json:"refactor_weeks"`
	FeatureWeeks    int       `json:"feature_weeks"`
	TotalWeeks      int       `json:"total_weeks"`
	SuccessRate     float64   `json:"success_rate"`
	RiskLevel       RiskLevel `json:"risk_level"`
	Benefits        []string  `json:"benefits"`
	RefactoringCost float64   `json:"refactoring_cost"`
	AnnualSavings   float64   `json:"annual_savings"`
	BreakEvenWeeks  Weeks     `json:"break_even_weeks"`
}

// FeatureAssessment is the blocking analysis for one ticket.
type FeatureAssessment struct {
	Key            string         `json:"key"`
	Title          string         `json:"title"`
	StoryPoints    int            `json:"story_points"`
	FeatureWeeks   int            `json:"feature_weeks"`
	BlockedBy      []DebtType     `json:"blocked_by"`
	RiskIfBuiltNow RiskLevel      `json:"risk_if_built_now"`
	Recommendation Recommendation `json:"recommendation"`
	Reasoning      string         `json:"reasoning"`
}

// PartialRefactor records the subset evaluated for a partial_refactor outcome.
type PartialRefactor struct {
	Strategy     string    `json:"strategy"`
	FindingCount int       `json:"finding_count"`
	Favorable    bool      `json:"favorable"`
	CostModel    CostModel `json:"cost_model"`
}

// NegotiationResult is the terminal output of the pipeline.
type NegotiationResult struct {
	OverallRecommendation Recommendation      `json:"overall_recommendation"`
	RecommendationReason  string              `json:"recommendation_reason"`
	HealthScore           int                 `json:"health_score"`
	BreakEvenWeeks        Weeks               `json:"break_even_weeks"`
	OptionA               BuildNowOption      `json:"option_a"`
	OptionB               RefactorFirstOption `json:"option_b"`
	FeatureAnalysis       []FeatureAssessment `json:"feature_analysis"`
	Partial               *PartialRefactor    `json:"partial_refactor,omitempty"`
}

// Headline summarizes the decision in one line for logs.
func (n NegotiationResult) Headline() string {
	return fmt.Sprintf("%s (break-even %s weeks, %d tickets analyzed)",
		n.OverallRecommendation, n.BreakEvenWeeks, len(n.FeatureAnalysis))
}
