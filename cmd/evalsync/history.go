package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/schema"
	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

var (
	historyData      string
	historyLayout    string
	historyModel     string
	historyNormalize bool
)

var historyCmd = &cobra.Command{
	Use:   "history <person>",
	Short: "Show one person's trajectory across years",
	Long: `Score every evaluated year of one person and print the year-over-year
deltas. Deltas only compare behaviors evaluated in both years; behaviors
present in just one year are flagged instead of silently skewing the
change.

Example:
  evalsync history maria`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()
		person := args[0]

		records := loadPersonRecords(ctx, person)
		if len(records) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No evaluation units found for %s.\n\n", yellow("ℹ"), person)
			return
		}

		analyzer, err := analysis.New(modelFromFlag(historyModel), boolSetting(cmd, "normalize", historyNormalize, cfg.Normalize))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		history := analyzer.History(person, records)
		if history == nil {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s Nothing scorable for %s.\n\n", yellow("ℹ"), person)
			return
		}

		printHistory(history)
	},
}

// loadPersonRecords returns every stored record of one person, falling back
// to the tree when the ledger has none.
func loadPersonRecords(ctx context.Context, person string) []*types.PersonYearRecord {
	store := openStore(ctx)
	defer store.Close()

	results, err := store.ListUnitResultsByPerson(ctx, person)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read ledger: %v\n", err)
		os.Exit(1)
	}

	var records []*types.PersonYearRecord
	for _, result := range results {
		record, err := result.DecodeRecord()
		if err != nil || record == nil {
			continue
		}
		records = append(records, record)
	}
	if len(records) > 0 {
		return records
	}

	dataDir := stringOr(historyData, cfg.DataDir)
	resolver, err := structure.NewResolver(dataDir, layoutFromFlag(historyLayout))
	if err != nil {
		if errors.Is(err, structure.ErrEmptyTree) {
			return nil
		}
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}

	units, err := resolver.Units()
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
	for _, unit := range units {
		if unit.Person != person {
			continue
		}
		record, err := schema.Normalize(unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", unit, err)
			continue
		}
		records = append(records, record)
	}
	return records
}

// printHistory renders the per-year scores, the deltas between consecutive
// years, and the overall change.
func printHistory(history *analysis.History) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan(history.Person))

	for _, year := range history.Years {
		score := history.ByYear[year]
		fmt.Printf("  %d  %s vs %s  %+.2f\n",
			year, fmtScore(score.Collaborator), fmtScore(score.Group), score.Difference)
	}

	for _, delta := range history.Deltas {
		fmt.Printf("\n  %d → %d: %+.2f over %d matched behaviors\n",
			delta.FromYear, delta.ToYear, delta.Delta, delta.Matched)

		drivers := make([]string, 0, len(delta.PerDriver))
		for driver := range delta.PerDriver {
			drivers = append(drivers, driver)
		}
		sort.Strings(drivers)
		for _, driver := range drivers {
			fmt.Printf("    %-40s %+.2f\n", driver, delta.PerDriver[driver])
		}
		for _, unmatched := range delta.Unmatched {
			fmt.Printf("    %s %s\n", gray("!"), unmatched)
		}
	}

	if len(history.Years) >= 2 {
		fmt.Printf("\n  Overall change %d to %d: %+.2f\n",
			history.Years[0], history.Years[len(history.Years)-1], history.Improvement)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(historyCmd)
	historyCmd.Flags().StringVar(&historyData, "data", "", "Evaluation tree root (default from config)")
	historyCmd.Flags().StringVar(&historyLayout, "layout", "", "Tree layout: year-first or person-first (default auto)")
	historyCmd.Flags().StringVar(&historyModel, "model", "", "Scoring model: nps or legacy (default from config)")
	historyCmd.Flags().BoolVar(&historyNormalize, "normalize", true, "Add the 0-100 view to NPS scores")
}
