package main

import (
	"os"
	"path/filepath"

	"github.com/spf13/afero"
	"github.com/spf13/cobra"

	"github.com/steveyegge/debtneg/internal/cost"
	"github.com/steveyegge/debtneg/internal/repl"
	"github.com/steveyegge/debtneg/internal/report"
)

var exploreCmd = &cobra.Command{
	Use:   "explore [REPORT]",
	Short: "Interactively drop findings from a report and watch the cost model change",
	Long: `Open a what-if shell over a saved report. Every finding starts selected;
drop and add findings by index, severity, category, debt type, repository or
remediation plan, and compare the resulting refactoring cost, savings and
break-even with the full refactor.

Team assumptions start from the report and can be changed with 'set'.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		path := report.DefaultOutputPath
		if len(args) > 0 {
			path = args[0]
		}
		rep, err := report.ReadFile(afero.NewOsFs(), path)
		if err != nil {
			return err
		}

		var params cost.Params
		if cmd.Flags().Changed("team-size") || cmd.Flags().Changed("weekly-rate") || cmd.Flags().Changed("work-streams") {
			cfg, err := loadConfig(cmd, map[string]string{
				"cost.team_size":    "team-size",
				"cost.weekly_rate":  "weekly-rate",
				"cost.work_streams": "work-streams",
			})
			if err != nil {
				return err
			}
			params = cfg.Cost
		}

		r, err := repl.New(&repl.Config{
			Report:      rep,
			Params:      params,
			Out:         cmd.OutOrStdout(),
			HistoryFile: historyFile(),
		})
		if err != nil {
			return err
		}
		return r.Run(cmd.Context())
	},
}

func init() {
	d := cost.DefaultParams()
	exploreCmd.Flags().Int("team-size", d.TeamSize, "override the report's team size")
	exploreCmd.Flags().Float64("weekly-rate", d.WeeklyRate, "override the report's weekly rate")
	exploreCmd.Flags().Int("work-streams", d.WorkStreams, "override the report's work streams")
	rootCmd.AddCommand(exploreCmd)
}

// historyFile keeps explore history next to the user's other dotfiles.
func historyFile() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ""
	}
	return filepath.Join(home, ".debtneg_history")
}
