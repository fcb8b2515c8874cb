package main

import (
	"encoding/json"
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"github.com/steveyegge/debtneg/internal/scanner"
	"github.com/steveyegge/debtneg/internal/types"
)

var scanCmd = &cobra.Command{
	Use:   "scan REPO",
	Short: "Print the evidence snapshot of a repository as JSON",
	Long: `Capture the files an oracle would see for one repository and print the
snapshot as JSON. Useful for checking scanner limits and exclusions.`,
	Args: cobra.ExactArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		cfg, err := loadConfig(cmd, nil)
		if err != nil {
			return err
		}
		s, err := scanner.NewOS(cfg.Scanner)
		if err != nil {
			return err
		}
		snap, err := s.Scan(cmd.Context(), args[0])
		if err != nil {
			return err
		}
		return writeSnapshot(cmd.OutOrStdout(), snap)
	},
}

func init() {
	rootCmd.AddCommand(scanCmd)
}

func writeSnapshot(w io.Writer, snap *types.RepositorySnapshot) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	if err := enc.Encode(snap); err != nil {
		return fmt.Errorf("encoding snapshot: %w", err)
	}
	return nil
}
