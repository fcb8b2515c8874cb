package main

import (
	"context"
	"fmt"
	"io"

	"github.com/fatih/color"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/steveyegge/debtneg/internal/ai"
	"github.com/steveyegge/debtneg/internal/backlog"
	"github.com/steveyegge/debtneg/internal/config"
	"github.com/steveyegge/debtneg/internal/health"
	"github.com/steveyegge/debtneg/internal/negotiation"
	"github.com/steveyegge/debtneg/internal/pipeline"
	"github.com/steveyegge/debtneg/internal/report"
	"github.com/steveyegge/debtneg/internal/scanner"
	"github.com/steveyegge/debtneg/internal/types"
)

// analyzeFlags maps config keys to the analyze command's flags.
var analyzeFlags = map[string]string{
	"backlog.source":         "jira",
	"backlog.token":          "jira-token",
	"cost.team_size":         "team-size",
	"cost.weekly_rate":       "weekly-rate",
	"cost.work_streams":      "work-streams",
	"output.path":            "output",
	"output.format":          "format",
	"analysis.offline":       "offline",
	"analysis.blockers_file": "blockers",
	"analysis.workers":       "workers",
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze REPO...",
	Short: "Scan repositories, price their debt and negotiate against the backlog",
	Long: `Scan one or more repositories for technical debt, build a cost model, fetch the
feature backlog and decide whether to refactor first or build features now.

The full report is always written as JSON to --output. Stdout gets a colored
summary, or the same JSON with --format=json.

Without an Anthropic API key (ANTHROPIC_API_KEY or ai.api_key), or with
--offline, findings come from the built-in heuristic monitors.

Without --jira the built-in demo backlog is used. --jira also accepts a path to a
JSON file of tickets.

Example:
  debtneg analyze ./api ./ml-platform --team-size 8 --weekly-rate 12000
  debtneg analyze . --offline --format json > report.json`,
	Args: cobra.MinimumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, analyzeFlags)
		if err != nil {
			return err
		}
		return runAnalyze(cmd.Context(), cfg, args, cmd.OutOrStdout(), cmd.ErrOrStderr())
	},
}

func init() {
	d := config.Default()
	f := analyzeCmd.Flags()
	f.String("jira", "", "Jira search URL or tickets JSON file (default: demo backlog)")
	f.String("jira-token", "", "Jira API token (prefer DEBTNEG_BACKLOG_TOKEN)")
	f.Int("team-size", d.Cost.TeamSize, "engineers on the team")
	f.Float64("weekly-rate", d.Cost.WeeklyRate, "cost of one engineer-week in USD")
	f.Int("work-streams", d.Cost.WorkStreams, "parallel refactoring work streams")
	f.StringP("output", "o", d.Output.Path, "path of the JSON report")
	f.String("format", d.Output.Format, "stdout format: summary or json")
	f.Bool("offline", false, "use the heuristic oracle even when an API key is set")
	f.String("blockers", "", "JSON file mapping ticket keys to blocking debt types")
	f.Int("workers", d.Analysis.Workers, "repositories analyzed in parallel")
	rootCmd.AddCommand(analyzeCmd)
}

// oracles are the classification collaborators chosen for a run.
type oracles struct {
	classifier pipeline.Classifier
	mapper     pipeline.BlockerMapper
	budget     *ai.Budget
}

// chooseOracles picks the Anthropic supervisor when a key is available and
// the run is not offline, else the heuristic monitors.
func chooseOracles(cfg config.Config) (oracles, error) {
	if cfg.Analysis.Offline || cfg.AnthropicKey() == "" {
		o, err := health.NewOracle()
		if err != nil {
			return oracles{}, fmt.Errorf("heuristic oracle: %w", err)
		}
		return oracles{classifier: o}, nil
	}

	budget, err := ai.NewBudget(cfg.Budget)
	if err != nil {
		return oracles{}, err
	}
	sup, err := ai.NewSupervisor(cfg.SupervisorConfig(budget))
	if err != nil {
		return oracles{}, fmt.Errorf("AI oracle: %w", err)
	}
	return oracles{classifier: sup, mapper: sup, budget: budget}, nil
}

// newRunner wires the pipeline from configuration.
func newRunner(cfg config.Config, o oracles) (*pipeline.Runner, error) {
	scan, err := scanner.NewOS(cfg.Scanner)
	if err != nil {
		return nil, err
	}
	negCfg, err := cfg.NegotiationEngineConfig()
	if err != nil {
		return nil, err
	}
	engine, err := negotiation.New(negCfg)
	if err != nil {
		return nil, err
	}
	return pipeline.NewRunner(pipeline.Deps{
		Scanner: scan,
		Oracle:  o.classifier,
		Mapper:  o.mapper,
		Backlog: backlog.NewFetcher(cfg.FetcherConfig()),
		Engine:  engine,
	}, cfg.PipelineConfig())
}

func runAnalyze(ctx context.Context, cfg config.Config, repos []string, stdout, stderr io.Writer) error {
	fs := afero.NewOsFs()

	var blockers map[string][]string
	if cfg.Analysis.BlockersFile != "" {
		var err error
		if blockers, err = pipeline.LoadBlockers(fs, cfg.Analysis.BlockersFile); err != nil {
			return err
		}
	}

	o, err := chooseOracles(cfg)
	if err != nil {
		return err
	}
	runner, err := newRunner(cfg, o)
	if err != nil {
		return err
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	green := color.New(color.FgGreen).SprintFunc()
	fmt.Fprintf(stderr, "%s Analyzing %d repositories with the %s oracle...\n",
		gray("→"), len(repos), oracleLabel(o))

	rep, err := runner.Run(ctx, pipeline.Request{
		Repositories:  repos,
		BacklogSource: cfg.Backlog.Source,
		BacklogToken:  cfg.Backlog.Token,
		Blockers:      blockers,
	})
	if err != nil {
		return err
	}

	if err := report.WriteFile(fs, cfg.Output.Path, rep); err != nil {
		return err
	}
	fmt.Fprintf(stderr, "%s Report written to %s\n", green("✓"), cfg.Output.Path)
	printBudget(stderr, o.budget)

	return writeReport(stdout, cfg.Output.Format, rep)
}

func writeReport(w io.Writer, format string, rep *types.Report) error {
	if format == "json" {
		return report.WriteJSON(w, rep)
	}
	report.PrintSummary(w, rep)
	return nil
}

func oracleLabel(o oracles) string {
	if n, ok := o.classifier.(interface{ Name() string }); ok {
		return n.Name()
	}
	return "default"
}

func printBudget(w io.Writer, b *ai.Budget) {
	if b == nil {
		return
	}
	s := b.Stats()
	gray := color.New(color.FgHiBlack).SprintFunc()
	fmt.Fprintf(w, "%s AI usage: %d calls, %d input / %d output tokens, $%.4f (%s)\n",
		gray("→"), s.Calls, s.InputTokens, s.OutputTokens, s.CostUSD, s.Status)
}
