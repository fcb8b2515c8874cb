package repl

import (
	"fmt"
	"strconv"
	"strings"

	"github.com/fatih/color"

	"github.com/steveyegge/debtneg/internal/types"
)

// cmdList shows findings, optionally filtered
func (r *REPL) cmdList(args []string) error {
	s := r.session
	match := Matcher(func(int, types.DebtFinding) bool { return true })
	if len(args) > 0 {
		m, err := s.ParseSelector(strings.Join(args, ","))
		if err != nil {
			return err
		}
		match = m
	}

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan(fmt.Sprintf("Findings (%d of %d selected)", s.SelectedCount(), s.Len())))

	shown := 0
	for i := 0; i < s.Len(); i++ {
		f := s.Finding(i)
		if !match(i, f) {
			continue
		}
		shown++
		mark := " "
		if s.IsSelected(i) {
			mark = "*"
		}
		fmt.Fprintf(r.out, "%s %3d. [%s] %s %s %s/yr, %s wk\n",
			mark, i, severityColor(f.Severity)(string(f.Severity)), f.Type,
			gray(f.Repository+":"+f.Location), types.FormatUSD(f.AnnualCost), formatWeeks(f.FixEffortWeeks))
	}
	if shown == 0 {
		fmt.Fprintln(r.out, "  (no matching findings)")
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdDrop deselects findings
func (r *REPL) cmdDrop(args []string) error {
	return r.toggle(args, false)
}

// cmdAdd reselects findings
func (r *REPL) cmdAdd(args []string) error {
	return r.toggle(args, true)
}

func (r *REPL) toggle(args []string, on bool) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: %s SELECTOR...", map[bool]string{true: "add", false: "drop"}[on])
	}
	changed := 0
	for _, arg := range args {
		match, err := r.session.ParseSelector(arg)
		if err != nil {
			return err
		}
		changed += r.session.Set(match, on)
	}
	verb := "Dropped"
	if on {
		verb = "Added"
	}
	fmt.Fprintf(r.out, "%s %d finding(s); %d of %d selected\n", verb, changed, r.session.SelectedCount(), r.session.Len())
	return r.printModelLine()
}

// cmdOnly selects exactly one group
func (r *REPL) cmdOnly(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: only SELECTOR")
	}
	match, err := r.session.ParseSelector(strings.Join(args, ","))
	if err != nil {
		return err
	}
	n := r.session.Only(match)
	fmt.Fprintf(r.out, "Selected %d of %d findings\n", n, r.session.Len())
	return r.printModelLine()
}

// cmdReset selects everything again
func (r *REPL) cmdReset(args []string) error {
	r.session.Reset()
	fmt.Fprintf(r.out, "All %d findings selected\n", r.session.Len())
	return r.printModelLine()
}

// cmdModel compares the selection with the full refactor
func (r *REPL) cmdModel(args []string) error {
	sel := r.session.Model()
	all := r.session.Baseline()
	p := r.session.Params()

	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("What-if Cost Model"))
	fmt.Fprintf(r.out, "%s\n", yellow(fmt.Sprintf("Team: %d engineers at %s/week, %d work stream(s)",
		p.TeamSize, types.FormatUSD(p.WeeklyRate), p.WorkStreams)))
	fmt.Fprintln(r.out)

	rows := []struct {
		label    string
		selected string
		full     string
	}{
		{"Findings", strconv.Itoa(sel.FindingCount), strconv.Itoa(all.FindingCount)},
		{"Effort (weeks)", formatWeeks(sel.RefactoringEffortWeeks), formatWeeks(all.RefactoringEffortWeeks)},
		{"Calendar weeks", strconv.Itoa(sel.CalendarRefactorWeeks), strconv.Itoa(all.CalendarRefactorWeeks)},
		{"Refactoring cost", types.FormatUSD(sel.RefactoringCost), types.FormatUSD(all.RefactoringCost)},
		{"Annual savings", types.FormatUSD(sel.AnnualSavings), types.FormatUSD(all.AnnualSavings)},
		{"Break-even (weeks)", sel.BreakEvenWeeks.String(), all.BreakEvenWeeks.String()},
		{"Year-1 ROI", sel.ROIYear1Percent.String(), all.ROIYear1Percent.String()},
		{"Health score", strconv.Itoa(sel.HealthScore), strconv.Itoa(all.HealthScore)},
	}
	fmt.Fprintf(r.out, "  %-20s %14s %14s\n", "", "Selected", "All")
	for _, row := range rows {
		fmt.Fprintf(r.out, "  %-20s %14s %14s\n", row.label, row.selected, row.full)
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdPlans lists the report's remediation plans
func (r *REPL) cmdPlans(args []string) error {
	plans := r.session.Plans()
	if len(plans) == 0 {
		fmt.Fprintln(r.out, "No remediation plans in this report")
		return nil
	}
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintln(r.out)
	for _, plan := range plans {
		fmt.Fprintf(r.out, "  %s %s: %d findings, %s weeks, saves %s/yr\n",
			green(fmt.Sprintf("plan:%d", plan.Priority)), plan.Title, len(plan.Items),
			formatWeeks(plan.EffortWeeks), types.FormatUSD(plan.AnnualSavings))
	}
	fmt.Fprintln(r.out)
	return nil
}

// cmdSet changes the team assumptions
func (r *REPL) cmdSet(args []string) error {
	if len(args) == 0 {
		return fmt.Errorf("usage: set team=N rate=USD streams=N")
	}
	p := r.session.Params()
	for _, arg := range args {
		key, value, ok := strings.Cut(arg, "=")
		if !ok {
			return fmt.Errorf("expected key=value, got %q", arg)
		}
		var err error
		switch strings.ToLower(key) {
		case "team", "team_size":
			p.TeamSize, err = strconv.Atoi(value)
		case "rate", "weekly_rate":
			p.WeeklyRate, err = strconv.ParseFloat(strings.TrimPrefix(value, "$"), 64)
		case "streams", "work_streams":
			p.WorkStreams, err = strconv.Atoi(value)
		default:
			return fmt.Errorf("unknown setting %q (team, rate, streams)", key)
		}
		if err != nil {
			return fmt.Errorf("invalid value for %s: %w", key, err)
		}
	}
	if err := r.session.SetParams(p); err != nil {
		return err
	}
	return r.printModelLine()
}

func (r *REPL) printModelLine() error {
	m := r.session.Model()
	fmt.Fprintf(r.out, "  cost %s, saves %s/yr, break-even %s weeks, ROI %s\n",
		types.FormatUSD(m.RefactoringCost), types.FormatUSD(m.AnnualSavings),
		m.BreakEvenWeeks, m.ROIYear1Percent)
	return nil
}

func severityColor(s types.Severity) func(a ...interface{}) string {
	switch s {
	case types.SeverityCritical:
		return color.New(color.FgRed, color.Bold).SprintFunc()
	case types.SeverityHigh:
		return color.New(color.FgYellow).SprintFunc()
	default:
		return color.New(color.FgGreen).SprintFunc()
	}
}

func formatWeeks(v float64) string {
	if v == float64(int64(v)) {
		return strconv.FormatInt(int64(v), 10)
	}
	return strconv.FormatFloat(v, 'f', 1, 64)
}
