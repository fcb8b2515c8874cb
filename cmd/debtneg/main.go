// Command debtneg scans repositories for technical debt, prices it, and
// negotiates refactoring against the feature backlog.
package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"github.com/spf13/pflag"

	"github.com/steveyegge/debtneg/internal/config"
)

var (
	// cfgFile is an explicit config file; empty searches . and $HOME.
	cfgFile string
	verbose bool
	tracing bool

	// shutdownTracing flushes spans; set by setupTracing.
	shutdownTracing = func(context.Context) error { return nil }
)

var rootCmd = &cobra.Command{
	Use:   "debtneg",
	Short: "Negotiate technical debt against the feature backlog",
	Long: `debtneg scans repositories for technical debt, turns the findings into a
cost model, and decides whether to refactor before building the next features.

Example:
  debtneg analyze ./billing ./ranker --jira "https://acme.atlassian.net/rest/api/2/search?jql=..."
  debtneg explore output_analysis.json`,
	SilenceUsage: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		setupLogging(verbose)
		if tracing {
			shutdown, err := setupTracing(cmd.Context())
			if err != nil {
				return fmt.Errorf("tracing: %w", err)
			}
			shutdownTracing = shutdown
		}
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		flushTracing()
	},
}

func init() {
	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", "", "config file (default ./"+config.FileName+" or $HOME/"+config.FileName+")")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "enable debug logging to stderr")
	rootCmd.PersistentFlags().BoolVar(&tracing, "trace", false, "print OpenTelemetry spans to stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		flushTracing()
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}

// setupLogging routes slog to stderr: warnings only, or everything with --verbose.
func setupLogging(verbose bool) {
	level := slog.LevelWarn
	if verbose {
		level = slog.LevelDebug
	}
	slog.SetDefault(slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: level})))
}

func flushTracing() {
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := shutdownTracing(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "Warning: flushing traces: %v\n", err)
	}
	shutdownTracing = func(context.Context) error { return nil }
}

// loadConfig layers defaults, the config file, .env, the environment and the
// named flags of cmd. flags maps config keys to flag names.
func loadConfig(cmd *cobra.Command, flags map[string]string) (config.Config, error) {
	bound := make(map[string]*pflag.Flag, len(flags))
	for key, name := range flags {
		if f := cmd.Flags().Lookup(name); f != nil {
			bound[key] = f
		}
	}
	cfg, err := config.Load(config.LoadOptions{File: cfgFile, Flags: bound})
	if err != nil {
		return config.Config{}, err
	}
	slog.Debug("configuration loaded", "config", cfg.String())
	return cfg, nil
}
