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
	"github.com/evalops/evalsync/internal/schema"
	"github.com/evalops/evalsync/internal/structure"
	"github.com/evalops/evalsync/internal/types"
)

var (
	scoreData      string
	scoreLayout    string
	scoreModel     string
	scoreNormalize bool
)

var scoreCmd = &cobra.Command{
	Use:   "score <person> <year>",
	Short: "Score one evaluation unit with a full breakdown",
	Long: `Score one (person, year) unit and print the per-behavior and per-driver
breakdown with categories.

The record comes from the sync ledger when present; otherwise the unit is
read straight from the data directory, so scoring works without a prior
sync.

Example:
  evalsync score maria 2024
  evalsync score maria 2024 --model legacy`,
	Args: cobra.ExactArgs(2),
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		person := args[0]
		year, err := strconv.Atoi(args[1])
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: invalid year %q\n", args[1])
			os.Exit(1)
		}

		record := loadRecord(ctx, person, year)
		if record == nil {
			fmt.Fprintf(os.Stderr, "Error: no evaluation unit found for %s/%d\n", person, year)
			os.Exit(1)
		}

		analyzer, err := analysis.New(modelFromFlag(scoreModel), boolSetting(cmd, "normalize", scoreNormalize, cfg.Normalize))
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		score := analyzer.ScorePerson(record)
		if score == nil {
			yellow := color.New(color.FgYellow).SprintFunc()
			fmt.Printf("\n%s Nothing scorable for %s/%d.\n\n", yellow("ℹ"), person, year)
			return
		}

		printPersonScore(score)
	},
}

// loadRecord fetches the unit's record from the ledger, falling back to
// normalizing it straight from the tree.
func loadRecord(ctx context.Context, person string, year int) *types.PersonYearRecord {
	store := openStore(ctx)
	defer store.Close()

	result, err := store.GetUnitResult(ctx, person, year)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Error: failed to read ledger: %v\n", err)
		os.Exit(1)
	}
	if result != nil {
		record, err := result.DecodeRecord()
		if err == nil && record != nil {
			return record
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Warning: stored record for %s/%d is unreadable: %v\n", person, year, err)
		}
	}

	dataDir := stringOr(scoreData, cfg.DataDir)
	resolver, err := structure.NewResolver(dataDir, layoutFromFlag(scoreLayout))
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
		if unit.Person != person || unit.Year != year {
			continue
		}
		record, err := schema.Normalize(unit)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		return record
	}
	return nil
}

func init() {
	rootCmd.AddCommand(scoreCmd)
	scoreCmd.Flags().StringVar(&scoreData, "data", "", "Evaluation tree root (default from config)")
	scoreCmd.Flags().StringVar(&scoreLayout, "layout", "", "Tree layout: year-first or person-first (default auto)")
	scoreCmd.Flags().StringVar(&scoreModel, "model", "", "Scoring model: nps or legacy (default from config)")
	scoreCmd.Flags().BoolVar(&scoreNormalize, "normalize", true, "Add the 0-100 view to NPS scores")
}
