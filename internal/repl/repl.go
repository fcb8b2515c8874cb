// Package repl is the interactive what-if shell behind "debtneg explore":
// deselect and reselect findings from a saved report and watch the cost
// model change.
package repl

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/chzyer/readline"
	"github.com/fatih/color"

	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/types"
)

// errExit ends the loop without an error.
var errExit = errors.New("exit")

// REPL represents the interactive shell
type REPL struct {
	session     *Session
	rl          *readline.Instance
	out         io.Writer
	historyFile string
	commands    map[string]CommandHandler
}

// CommandHandler handles a specific command
type CommandHandler func(args []string) error

// Config holds REPL configuration
type Config struct {
	Report *types.Report
	// Params are the starting team assumptions. Zero means the report's own.
	Params cost.Params
	// Out receives command output. Default: stdout.
	Out io.Writer
	// HistoryFile persists input history; empty keeps it in memory.
	HistoryFile string
}

// New creates a new REPL instance
func New(cfg *Config) (*REPL, error) {
	if cfg.Report == nil {
		return nil, fmt.Errorf("report is required")
	}

	params := cfg.Params
	if params == (cost.Params{}) {
		params = reportParams(cfg.Report)
	}
	session, err := NewSession(cfg.Report, params)
	if err != nil {
		return nil, err
	}

	out := cfg.Out
	if out == nil {
		out = os.Stdout
	}

	r := &REPL{
		session:     session,
		out:         out,
		historyFile: cfg.HistoryFile,
		commands:    make(map[string]CommandHandler),
	}

	// Register built-in commands
	r.registerCommands()

	return r, nil
}

// reportParams recovers the team assumptions a report was computed with.
func reportParams(rep *types.Report) cost.Params {
	for _, a := range rep.RepositoriesAnalysis {
		m := a.CostModel
		if m.TeamSize > 0 && m.WeeklyRate > 0 && m.WorkStreams > 0 {
			return cost.Params{TeamSize: m.TeamSize, WeeklyRate: m.WeeklyRate, WorkStreams: m.WorkStreams}
		}
	}
	return cost.DefaultParams()
}

// Session exposes the what-if state.
func (r *REPL) Session() *Session { return r.session }

// Run starts the REPL loop
func (r *REPL) Run(ctx context.Context) error {
	cyan := color.New(color.FgCyan).SprintFunc()

	rl, err := readline.NewEx(&readline.Config{
		Prompt:            cyan("debtneg> "),
		HistoryFile:       r.historyFile,
		AutoComplete:      r.completer(),
		InterruptPrompt:   "^C",
		EOFPrompt:         "exit",
		HistorySearchFold: true,
	})
	if err != nil {
		return fmt.Errorf("failed to create readline: %w", err)
	}
	defer rl.Close()

	r.rl = rl

	r.printWelcome()

	for {
		if err := ctx.Err(); err != nil {
			return err
		}

		line, err := rl.Readline()
		if err != nil {
			if err == readline.ErrInterrupt {
				// Ctrl+C - just show prompt again
				continue
			} else if err == io.EOF {
				fmt.Fprintln(r.out, "\nGoodbye!")
				return nil
			}
			return err
		}

		if err := r.processInput(line); err != nil {
			if errors.Is(err, errExit) {
				return nil
			}
			red := color.New(color.FgRed).SprintFunc()
			fmt.Fprintf(r.out, "%s %v\n", red("Error:"), err)
		}
	}
}

// processInput processes a single line of input
func (r *REPL) processInput(line string) error {
	parts := strings.Fields(strings.TrimSpace(line))
	if len(parts) == 0 {
		return nil
	}

	command := strings.ToLower(parts[0])
	args := parts[1:]

	if handler, ok := r.commands[command]; ok {
		return handler(args)
	}
	return fmt.Errorf("unknown command %q (type 'help')", command)
}

// registerCommands registers all built-in commands
func (r *REPL) registerCommands() {
	r.commands["help"] = r.cmdHelp
	r.commands["?"] = r.cmdHelp
	r.commands["exit"] = r.cmdExit
	r.commands["quit"] = r.cmdExit
	r.commands["list"] = r.cmdList
	r.commands["ls"] = r.cmdList
	r.commands["drop"] = r.cmdDrop
	r.commands["add"] = r.cmdAdd
	r.commands["only"] = r.cmdOnly
	r.commands["reset"] = r.cmdReset
	r.commands["model"] = r.cmdModel
	r.commands["plans"] = r.cmdPlans
	r.commands["set"] = r.cmdSet
}

func (r *REPL) completer() *readline.PrefixCompleter {
	selectors := []readline.PrefixCompleterInterface{
		readline.PcItem("all"),
		readline.PcItem("risk"),
		readline.PcItem("critical"),
		readline.PcItem("high"),
		readline.PcItem("medium"),
	}
	seen := make(map[types.DebtType]bool)
	for i := 0; i < r.session.Len(); i++ {
		dt := r.session.Finding(i).Type
		if !seen[dt] {
			seen[dt] = true
			selectors = append(selectors, readline.PcItem(string(dt)))
		}
	}
	return readline.NewPrefixCompleter(
		readline.PcItem("list", selectors...),
		readline.PcItem("drop", selectors...),
		readline.PcItem("add", selectors...),
		readline.PcItem("only", selectors...),
		readline.PcItem("reset"),
		readline.PcItem("model"),
		readline.PcItem("plans"),
		readline.PcItem("set", readline.PcItem("team="), readline.PcItem("rate="), readline.PcItem("streams=")),
		readline.PcItem("help"),
		readline.PcItem("exit"),
	)
}

// printWelcome prints the welcome message
func (r *REPL) printWelcome() {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n", cyan("debtneg what-if explorer"))
	fmt.Fprintf(r.out, "Report %s: %d findings across %d repositories, all selected\n",
		r.session.report.RunID, r.session.Len(), len(r.session.report.Repositories))
	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Type 'help' for available commands, 'exit' to quit")
	fmt.Fprintln(r.out)
}

// cmdHelp shows help information
func (r *REPL) cmdHelp(args []string) error {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s\n\n", cyan("Available Commands:"))

	commands := []struct {
		name string
		desc string
	}{
		{"list [SEL]", "List findings (selected ones marked with *)"},
		{"drop SEL...", "Leave findings out of the refactor"},
		{"add SEL...", "Put findings back in"},
		{"only SEL", "Select exactly the matching findings"},
		{"reset", "Select every finding again"},
		{"model", "Show the cost model of the selection"},
		{"plans", "Show the remediation plans"},
		{"set K=V...", "Change team=, rate= or streams="},
		{"help, ?", "Show this help message"},
		{"exit, quit", "Exit the explorer"},
	}
	for _, cmd := range commands {
		fmt.Fprintf(r.out, "  %-14s %s\n", green(cmd.name), cmd.desc)
	}

	fmt.Fprintln(r.out)
	fmt.Fprintln(r.out, "Selectors: an index (3), range (2-5), list (1,4), all, risk,")
	fmt.Fprintln(r.out, "a severity, a category, plan:N, a debt type or a repository name.")
	fmt.Fprintln(r.out)
	return nil
}

// cmdExit exits the REPL
func (r *REPL) cmdExit(args []string) error {
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(r.out, "\n%s Goodbye!\n", green("✓"))
	return errExit
}
