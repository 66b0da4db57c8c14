package main

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/report"
	"github.com/evalops/evalsync/internal/storage"
	"github.com/evalops/evalsync/internal/syncer"
	"github.com/evalops/evalsync/internal/types"
)

var (
	syncData         string
	syncOutput       string
	syncPerson       string
	syncYear         int
	syncForce        bool
	syncIgnoreErrors bool
	syncWorkers      int
	syncBatchSize    int
	syncModel        string
	syncNormalize    bool
	syncLayout       string
	syncNoReports    bool
)

var syncCmd = &cobra.Command{
	Use:   "sync",
	Short: "Incrementally process the evaluation tree",
	Long: `Discover (person, year) units under the data directory, reprocess the ones
whose files changed since the last pass, and refresh the per-year cohort
reports in the output directory.

File fingerprints live in the sync ledger, so a second pass over an
unchanged tree is a fast no-op. Use --force to reprocess everything.

By default the first fatal unit (unreadable or malformed JSON) aborts the
pass without landing any of its results; --ignore-errors records such units
as failed and keeps going.

Example:
  evalsync sync
  evalsync sync --data ./people --year 2024
  evalsync sync --force --workers 8
  evalsync sync --person maria --ignore-errors`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store := openStore(ctx)
		defer store.Close()

		opts := syncer.Options{
			DataDir:      stringOr(syncData, cfg.DataDir),
			Orientation:  layoutFromFlag(syncLayout),
			Person:       syncPerson,
			Year:         syncYear,
			Force:        syncForce,
			IgnoreErrors: boolSetting(cmd, "ignore-errors", syncIgnoreErrors, cfg.IgnoreErrors),
			Workers:      intSetting(cmd, "workers", syncWorkers, cfg.Workers),
			BatchSize:    intSetting(cmd, "batch-size", syncBatchSize, cfg.BatchSize),
			Model:        modelFromFlag(syncModel),
			Normalize:    boolSetting(cmd, "normalize", syncNormalize, cfg.Normalize),
		}

		s, err := syncer.New(store, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		result, err := s.Sync(ctx)
		if err != nil {
			if result != nil {
				printSyncResult(result)
			}
			fmt.Fprintf(os.Stderr, "Error: sync failed: %v\n", err)
			os.Exit(1)
		}

		printSyncResult(result)

		if !syncNoReports {
			outputDir := stringOr(syncOutput, cfg.OutputDir)
			writeYearReports(ctx, store, outputDir, result)
		}
	},
}

func init() {
	rootCmd.AddCommand(syncCmd)
	syncCmd.Flags().StringVar(&syncData, "data", "", "Evaluation tree root (default from config)")
	syncCmd.Flags().StringVar(&syncOutput, "output", "", "Report output directory (default from config)")
	syncCmd.Flags().StringVar(&syncPerson, "person", "", "Only sync units of this person")
	syncCmd.Flags().IntVar(&syncYear, "year", 0, "Only sync units of this year")
	syncCmd.Flags().BoolVar(&syncForce, "force", false, "Reprocess every unit regardless of fingerprints")
	syncCmd.Flags().BoolVar(&syncIgnoreErrors, "ignore-errors", false, "Record fatal units as failed instead of aborting")
	syncCmd.Flags().IntVar(&syncWorkers, "workers", 0, "Worker pool size (0 = one per CPU)")
	syncCmd.Flags().IntVar(&syncBatchSize, "batch-size", 0, "Units in flight per dispatch wave (0 = all at once)")
	syncCmd.Flags().StringVar(&syncModel, "model", "", "Scoring model: nps or legacy (default from config)")
	syncCmd.Flags().BoolVar(&syncNormalize, "normalize", true, "Add the 0-100 view to NPS scores")
	syncCmd.Flags().StringVar(&syncLayout, "layout", "", "Tree layout: year-first or person-first (default auto)")
	syncCmd.Flags().BoolVar(&syncNoReports, "no-reports", false, "Skip writing per-year report files")
}

// printSyncResult renders one pass summary to stdout.
func printSyncResult(result *syncer.Report) {
	green := color.New(color.FgGreen).SprintFunc()
	yellow := color.New(color.FgYellow).SprintFunc()
	red := color.New(color.FgRed).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	headline := green("✓")
	if result.Failed > 0 {
		headline = red("✗")
	} else if result.Issues > 0 {
		headline = yellow("⚠")
	}

	fmt.Printf("\n%s Synced %d units in %v\n", headline,
		result.Discovered, result.Duration().Round(time.Millisecond))
	fmt.Printf("  %d processed, %d unchanged, %d with issues, %d failed\n",
		result.Processed, result.Unchanged, result.Issues, result.Failed)
	fmt.Printf("  %s\n", gray(fmt.Sprintf("run %s, model %s", result.RunID, result.Model)))

	for _, unit := range result.FailedUnits() {
		fmt.Printf("  %s %s/%d: %v\n", red("✗"), unit.Person, unit.Year, unit.Err)
	}
	for _, unit := range result.IssueUnits() {
		fmt.Printf("  %s %s/%d: %d diagnostics\n", yellow("⚠"), unit.Person, unit.Year, len(unit.Diagnostics))
	}
	fmt.Println()
}

// writeYearReports refreshes the markdown and CSV summaries of every year the
// pass aggregated. Attendance and payment figures come from the stored
// records, so filtered passes still report whole cohorts.
func writeYearReports(ctx context.Context, store storage.Storage, outputDir string, result *syncer.Report) {
	if outputDir == "" || len(result.Cohorts) == 0 {
		return
	}

	gray := color.New(color.FgHiBlack).SprintFunc()
	for _, year := range result.Years() {
		records, err := yearRecords(ctx, store, year)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to load records for %d: %v\n", year, err)
		}
		paths, err := report.WriteYear(outputDir, result.Cohorts[year], records)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: failed to write reports for %d: %v\n", year, err)
			continue
		}
		for _, path := range paths {
			fmt.Printf("  %s %s\n", gray("wrote"), path)
		}
	}
	fmt.Println()
}

// yearRecords loads the stored records of one year, keyed by person.
func yearRecords(ctx context.Context, store storage.Storage, year int) (map[string]*types.PersonYearRecord, error) {
	results, err := store.ListUnitResultsByYear(ctx, year)
	if err != nil {
		return nil, err
	}
	records := make(map[string]*types.PersonYearRecord, len(results))
	for _, result := range results {
		record, err := result.DecodeRecord()
		if err != nil || record == nil {
			continue
		}
		records[result.Person] = record
	}
	return records, nil
}
