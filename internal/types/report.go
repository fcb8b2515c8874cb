package types

import "time"

// Report is the single structured artifact a run produces.
// Identical inputs yield identical JSON except for GeneratedAt.
type Report struct {
	RunID                string               `json:"run_id"`
	GeneratedAt          time.Time            `json:"generated_at"`
	Repositories         []string             `json:"repositories"`
	Summary              Summary              `json:"summary"`
	RepositoriesAnalysis []RepositoryAnalysis `json:"repositories_analysis"`
	BacklogSource        string               `json:"backlog_source"`
	Features             []FeatureTicket      `json:"features"`
	Negotiation          NegotiationResult    `json:"negotiation"`
	Recommendations      []RemediationPlan    `json:"recommendations"`
	Warnings             []string             `json:"warnings,omitempty"`
}

// Summary is the portfolio-wide scan summary.
type Summary struct {
	TotalDebtItems         int     `json:"total_debt_items"`
	Critical               int     `json:"critical"`
	High                   int     `json:"high"`
	Medium                 int     `json:"medium"`
	TotalAnnualCost        float64 `json:"total_annual_cost"`
	RefactoringEffortWeeks float64 `json:"refactoring_effort_weeks"`
	RefactoringCost        float64 `json:"refactoring_cost"`
	BreakEvenWeeks         Weeks   `json:"break_even_weeks"`
	ROIYear1Percent        Percent `json:"roi_year_1_percent"`
	HealthScore            int     `json:"health_score"`
}

// RepositoryAnalysis is the per-repository section of the report.
type RepositoryAnalysis struct {
	Repository     string        `json:"repository"`
	Path           string        `json:"repo_path"`
	RepoType       RepoType      `json:"repo_type"`
	Oracle         string        `json:"oracle"`
	FilesScanned   int           `json:"files_scanned"`
	TruncatedFiles int           `json:"truncated_files"`
	TotalBytes     int           `json:"total_bytes"`
	DebtItems      []DebtFinding `json:"debt_items"`
	CostModel      CostModel     `json:"cost_model"`
	Warnings       []string      `json:"warnings,omitempty"`
}

// RemediationPlan groups findings into a prioritized piece of refactoring work.
type RemediationPlan struct {
	Priority      int     `json:"priority"`
	Title         string  `json:"title"`
	EffortWeeks   float64 `json:"effort_weeks"`
	AnnualSavings float64 `json:"annual_savings"`
	Items         []int   `json:"items"`
}

// AllFindings flattens the per-repository findings in report order.
func (r *Report) AllFindings() []DebtFinding {
	var out []DebtFinding
	for _, a := range r.RepositoriesAnalysis {
		out = append(out, a.DebtItems...)
	}
	return out
}
