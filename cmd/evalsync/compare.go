package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"strconv"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/analysis"
	"github.com/evalops/evalsync/internal/report"
	"github.com/evalops/evalsync/internal/schema"
	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

var (
	compareData      string
	compareLayout    string
	compareModel     string
	compareNormalize bool
	compareOutput    string
)

var compareCmd = &cobra.Command{
	Use:   "compare <year>",
	Short: "Rank a year's cohort",
	Long: `Score every unit evaluated in the given year and print the cohort ranked
by collaborator score: collaborator vs group, difference, and category.

Records come from the sync ledger when present, otherwise straight from the
data directory. With --output, the comparative markdown and CSV files are
written there as well.

Example:
  evalsync compare 2024
  evalsync compare 2024 --model legacy --output ./reports`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		year, err := strconv.Atoi(args[0])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid year %q\n", args[0])
			os.Exit(1)
		}

		records := loadYearRecords(ctx, year)
		if len(records) == 0 {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s No evaluation units found for %d.\n\n", yellow("ℹ"), year)
			return
		}

		analyzer, err := analysis.New(modelFromFlag(compareModel), boolSetting(cmd, "normalize", compareNormalize, cfg.Normalize))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		list := make([]*types.PersonYearRecord, 0, len(records))
		for _, record := range records {
			list = append(list, record)
		}
		cohort := analyzer.CompareYear(year, list)
		printCohort(cohort)

		if compareOutput != "" {
			paths, err := report.WriteYear(compareOutput, cohort, records)
			if err != nil {
				fmt.Fprintf(os.Stderr, "Error: %v\n", err)
				os.Exit(1)
			}
			gray := color.New(color.FgHiBlack).SprintFunc()
			for _, path := range paths {
				fmt.Printf("  %s %s\n", gray("wrote"), path)
			}
			fmt.Println()
		}
	},
}

// loadYearRecords returns the year's records keyed by person, preferring the
// ledger and falling back to the tree.
func loadYearRecords(ctx context.Context, year int) map[string]*types.PersonYearRecord {
	store := openStore(ctx)
	defer store.Close()

	records, err := yearRecords(ctx, store, year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read ledger: %v\n", err)
		os.Exit(1)
	}
	if len(records) > 0 {
		return records
	}

	dataDir := stringOr(compareData, cfg.DataDir)
	resolver, err := structure.NewResolver(dataDir, layoutFromFlag(compareLayout))
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
	records = make(map[string]*types.PersonYearRecord)
	for _, unit := range units {
		if unit.Year != year {
			continue
		}
		record, err := schema.Normalize(unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: skipping %s: %v\n", unit, err)
			continue
		}
		records[unit.Person] = record
	}
	return records
}

// printCohort renders the ranked cohort table.
func printCohort(cohort *analysis.Cohort) {
	cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
	gray := color.New(color.FgHiBlack).SprintFunc()

	fmt.Printf("\n%s\n\n", cyan(fmt.Sprintf("Cohort %d", cohort.Year)))

	for _, p := range cohort.People {
		line := fmt.Sprintf("%2d. %-30s %s vs %s  %+.2f",
			p.Rank, personLabel(p.Person, p.DisplayName),
			fmtScore(p.Collaborator), fmtScore(p.Group), p.Difference)
		if p.Collaborator.Category != types.CategoryNone {
			line += fmt.Sprintf("  %s", categoryColor(p.Collaborator.Category)(string(p.Collaborator.Category)))
		}
		fmt.Println(line)
	}

	if len(cohort.Skipped) > 0 {
		fmt.Printf("\n%s nothing scorable: %v\n", gray("skipped"), cohort.Skipped)
	}
	fmt.Println()
}

func init() {
	rootCmd.AddCommand(compareCmd)
	compareCmd.Flags().StringVar(&compareData, "data", "", "Evaluation tree root (default from config)")
	compareCmd.Flags().StringVar(&compareLayout, "layout", "", "Tree layout: year-first or person-first (default auto)")
	compareCmd.Flags().StringVar(&compareModel, "model", "", "Scoring model: nps or legacy (default from config)")
	compareCmd.Flags().BoolVar(&compareNormalize, "normalize", true, "Add the 0-100 view to NPS scores")
	compareCmd.Flags().StringVar(&compareOutput, "output", "", "Also write comparative report files here")
}
