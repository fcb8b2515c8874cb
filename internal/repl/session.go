package repl

import (
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/types"
)

// Session is the what-if state: which findings of a report would be fixed,
// under which team assumptions. Indexes match the report's finding order.
type Session struct {
	report   *types.Report
	findings []types.DebtFinding
	selected []bool
	params   cost.Params
}

// NewSession starts with every finding selected.
func NewSession(rep *types.Report, params cost.Params) (*Session, error) {
	if rep == nil {
		return nil, fmt.Errorf("report is required")
	}
	if err := params.Validate(); err != nil {
		return nil, fmt.Errorf("invalid cost parameters: %w", err)
	}
	findings := rep.AllFindings()
	s := &Session{
		report:   rep,
		findings: findings,
		selected: make([]bool, len(findings)),
		params:   params,
	}
	s.Reset()
	return s, nil
}

// Len returns the number of findings.
func (s *Session) Len() int { return len(s.findings) }

// Finding returns finding i.
func (s *Session) Finding(i int) types.DebtFinding { return s.findings[i] }

// IsSelected reports whether finding i is part of the what-if refactor.
func (s *Session) IsSelected(i int) bool { return s.selected[i] }

// SelectedCount returns how many findings are selected.
func (s *Session) SelectedCount() int {
	n := 0
	for _, on := range s.selected {
		if on {
			n++
		}
	}
	return n
}

// Params returns the team assumptions in use.
func (s *Session) Params() cost.Params { return s.params }

// SetParams replaces the team assumptions.
func (s *Session) SetParams(p cost.Params) error {
	if err := p.Validate(); err != nil {
		return err
	}
	s.params = p
	return nil
}

// Reset selects every finding.
func (s *Session) Reset() {
	for i := range s.selected {
		s.selected[i] = true
	}
}

// Set marks the matching findings selected or not and returns how many changed.
func (s *Session) Set(match Matcher, on bool) int {
	changed := 0
	for i, f := range s.findings {
		if match(i, f) && s.selected[i] != on {
			s.selected[i] = on
			changed++
		}
	}
	return changed
}

// Only selects exactly the matching findings and returns how many that is.
func (s *Session) Only(match Matcher) int {
	n := 0
	for i, f := range s.findings {
		s.selected[i] = match(i, f)
		if s.selected[i] {
			n++
		}
	}
	return n
}

// Model is the cost model of the selected findings.
func (s *Session) Model() types.CostModel {
	return cost.AggregateSelected(s.findings, s.params, func(i int, _ types.DebtFinding) bool {
		return s.selected[i]
	})
}

// Baseline is the cost model of every finding under the current parameters.
func (s *Session) Baseline() types.CostModel {
	return cost.Aggregate(s.findings, s.params)
}

// Plans returns the report's remediation plans.
func (s *Session) Plans() []types.RemediationPlan { return s.report.Recommendations }

// Matcher selects findings by position and content.
type Matcher func(i int, f types.DebtFinding) bool

// ParseSelector turns one command argument into a Matcher. It accepts an
// index ("3"), a range ("2-5"), a comma list ("1,4"), "all", "risk", a
// severity, a category, "plan:N" for a remediation plan, a debt type, or a
// repository name.
func (s *Session) ParseSelector(arg string) (Matcher, error) {
	arg = strings.ToLower(strings.TrimSpace(arg))
	if arg == "" {
		return nil, fmt.Errorf("empty selector")
	}

	if arg == "all" {
		return func(int, types.DebtFinding) bool { return true }, nil
	}
	if arg == "risk" {
		return func(_ int, f types.DebtFinding) bool { return f.RiskFlag || types.IsRiskType(f.Type) }, nil
	}
	if strings.HasPrefix(arg, "plan:") {
		return s.planSelector(strings.TrimPrefix(arg, "plan:"))
	}
	if arg[0] >= '0' && arg[0] <= '9' {
		return s.indexSelector(arg)
	}
	switch arg {
	case string(types.SeverityCritical), string(types.SeverityHigh), string(types.SeverityMedium):
		sev := types.Severity(arg)
		return func(_ int, f types.DebtFinding) bool { return f.Severity == sev }, nil
	case string(types.CategorySoftware), string(types.CategoryML), string(types.CategoryDataPipeline), string(types.CategoryUncategorized):
		cat := types.DebtCategory(arg)
		return func(_ int, f types.DebtFinding) bool { return f.Category == cat }, nil
	}

	dt := types.NormalizeDebtType(arg)
	for _, f := range s.findings {
		if f.Type == dt {
			return func(_ int, f types.DebtFinding) bool { return f.Type == dt }, nil
		}
	}
	for _, f := range s.findings {
		if strings.EqualFold(f.Repository, arg) {
			return func(_ int, f types.DebtFinding) bool { return strings.EqualFold(f.Repository, arg) }, nil
		}
	}
	return nil, fmt.Errorf("unknown selector %q", arg)
}

func (s *Session) indexSelector(arg string) (Matcher, error) {
	want := make(map[int]bool)
	for _, part := range strings.Split(arg, ",") {
		lo, hi, err := s.parseRange(part)
		if err != nil {
			return nil, err
		}
		for i := lo; i <= hi; i++ {
			want[i] = true
		}
	}
	return func(i int, _ types.DebtFinding) bool { return want[i] }, nil
}

func (s *Session) parseRange(part string) (int, int, error) {
	bounds := strings.SplitN(strings.TrimSpace(part), "-", 2)
	lo, err := strconv.Atoi(bounds[0])
	if err != nil {
		return 0, 0, fmt.Errorf("invalid index %q", part)
	}
	hi := lo
	if len(bounds) == 2 {
		if hi, err = strconv.Atoi(bounds[1]); err != nil {
			return 0, 0, fmt.Errorf("invalid index %q", part)
		}
	}
	if lo > hi {
		lo, hi = hi, lo
	}
	if lo < 0 || hi >= len(s.findings) {
		return 0, 0, fmt.Errorf("index %q out of range (0-%d)", part, len(s.findings)-1)
	}
	return lo, hi, nil
}

func (s *Session) planSelector(arg string) (Matcher, error) {
	priority, err := strconv.Atoi(arg)
	if err != nil {
		return nil, fmt.Errorf("invalid plan %q", arg)
	}
	for _, plan := range s.report.Recommendations {
		if plan.Priority != priority {
			continue
		}
		items := make(map[int]bool, len(plan.Items))
		for _, i := range plan.Items {
			items[i] = true
		}
		return func(i int, _ types.DebtFinding) bool { return items[i] }, nil
	}

	available := make([]string, 0, len(s.report.Recommendations))
	for _, plan := range s.report.Recommendations {
		available = append(available, strconv.Itoa(plan.Priority))
	}
	sort.Strings(available)
	return nil, fmt.Errorf("no plan with priority %d (have: %s)", priority, strings.Join(available, ", "))
}
