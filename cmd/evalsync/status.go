package main

import (
	"context"
	"fmt"
	"os"
	"sort"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/types"
)

var statusRuns int

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show ledger status and recent sync runs",
	Long:  `Display the latest sync run, recent run history, and what the ledger holds.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store := openStore(ctx)
		defer store.Close()

		cyan := color.New(color.FgCyan, color.Bold).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		fmt.Printf("\n%s\n\n", cyan("=== evalsync Ledger Status ==="))

		// Latest run
		fmt.Printf("%s\n", yellow("Last Run:"))
		latest, err := store.LatestRun(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to get latest run: %v\n", err)
			os.Exit(1)
		}
		if latest == nil {
			fmt.Printf("  %s\n", gray("No sync runs yet. Run 'evalsync sync'."))
		} else {
			statusIcon := green("✓")
			if latest.Error != "" {
				statusIcon = red("✗")
			} else if latest.FinishedAt == nil {
				statusIcon = yellow("⚡")
			}
			fmt.Printf("  %s %s\n", statusIcon, latest.StartedAt.Format("2006-01-02 15:04:05"))
			fmt.Printf("    Run:      %s\n", latest.ID)
			fmt.Printf("    Data:     %s (model %s", latest.DataDir, latest.Model)
			if latest.Force {
				fmt.Printf(", forced")
			}
			fmt.Printf(", %d workers)\n", latest.Workers)
			fmt.Printf("    Units:    %d discovered, %d processed, %d unchanged, %d issues, %d failed\n",
				latest.Discovered, latest.Processed, latest.Unchanged, latest.Issues, latest.Failed)
			if latest.FinishedAt != nil {
				fmt.Printf("    Took:     %v\n", latest.Duration().Round(time.Millisecond))
			}
			if latest.Error != "" {
				fmt.Printf("    Error:    %s\n", red(latest.Error))
			}
		}
		fmt.Println()

		// Recent runs
		runs, err := store.ListRuns(ctx, statusRuns)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list runs: %v\n", err)
			os.Exit(1)
		}
		if len(runs) > 1 {
			fmt.Printf("%s\n", yellow("Recent Runs:"))
			for _, run := range runs {
				icon := green("✓")
				if run.Error != "" {
					icon = red("✗")
				} else if run.FinishedAt == nil {
					icon = yellow("⚡")
				}
				fmt.Printf("  %s %s  %d processed, %d unchanged, %d issues, %d failed\n",
					icon, run.StartedAt.Format("2006-01-02 15:04:05"),
					run.Processed, run.Unchanged, run.Issues, run.Failed)
			}
			fmt.Println()
		}

		// Ledger contents
		fmt.Printf("%s\n", yellow("Ledger:"))
		states, err := store.ListUnitStates(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list unit states: %v\n", err)
			os.Exit(1)
		}
		results, err := store.ListUnitResults(ctx)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to list results: %v\n", err)
			os.Exit(1)
		}

		outcomes := map[types.UnitOutcome]int{}
		for _, state := range states {
			outcomes[state.Outcome]++
		}
		years := map[int]int{}
		for _, result := range results {
			years[result.Year]++
		}

		fmt.Printf("  %d fingerprinted files", len(states))
		if len(outcomes) > 0 {
			fmt.Printf(" (")
			first := true
			for _, outcome := range []types.UnitOutcome{types.OutcomeProcessed, types.OutcomeUnchanged, types.OutcomeIssues, types.OutcomeFailed} {
				if outcomes[outcome] == 0 {
					continue
				}
				if !first {
					fmt.Printf(", ")
				}
				fmt.Printf("%d %s", outcomes[outcome], outcome)
				first = false
			}
			fmt.Printf(")")
		}
		fmt.Println()

		fmt.Printf("  %d stored unit results", len(results))
		if len(years) > 0 {
			sorted := make([]int, 0, len(years))
			for year := range years {
				sorted = append(sorted, year)
			}
			sort.Ints(sorted)
			fmt.Printf(" (")
			for i, year := range sorted {
				if i > 0 {
					fmt.Printf(", ")
				}
				fmt.Printf("%d: %d", year, years[year])
			}
			fmt.Printf(")")
		}
		fmt.Println()
		fmt.Println()
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().IntVar(&statusRuns, "runs", 5, "How many recent runs to show")
}
