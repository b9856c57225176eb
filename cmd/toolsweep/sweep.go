package main

import (
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/pdiddy/toolsweep/internal/cache"
	"github.com/pdiddy/toolsweep/internal/sweep"
	"github.com/pdiddy/toolsweep/pkg/types"
)

var sweepCmd = &cobra.Command{
	Use:   "sweep",
	Short: "Consolidate extraction artifacts into one table",
	Long: `Sweep walks every analysis artifact under --cache_path, joins it with the
article metadata saved alongside, and writes one consolidated table with a
row per article, as TSV, JSON, or YAML. Damaged artifacts are reported on
stderr and skipped; DOIs whose extraction failed never produced an artifact
and are excluded.`,
	Args: cobra.NoArgs,
	RunE: runSweep,
}

func init() {
	sweepCmd.Flags().String("output", "-", "destination file, - for stdout")
	sweepCmd.Flags().String("format", "tsv", "table format: tsv, json, or yaml")

	rootCmd.AddCommand(sweepCmd)
}

func runSweep(cmd *cobra.Command, args []string) error {
	cfg := types.SweepConfig{
		CachePath: cachePath(cmd),
		Output:    stringSetting(cmd, "output", "sweep.output"),
		Format:    stringSetting(cmd, "format", "sweep.format"),
	}

	store, err := cache.Open(cfg.CachePath)
	if err != nil {
		return err
	}
	defer store.Close()

	cleanup := setupLogging(cfg.CachePath)
	defer cleanup()

	var out io.Writer = os.Stdout
	if cfg.Output != "" && cfg.Output != "-" {
		f, err := os.Create(cfg.Output)
		if err != nil {
			return fmt.Errorf("creating output file: %w", err)
		}
		defer f.Close()
		out = f
	}

	// Progress goes to stderr so a table written to stdout stays clean.
	return sweep.Run(cmd.Context(), store, cfg.Format, out, os.Stderr)
}
