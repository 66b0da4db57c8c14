package main

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/loader"
	"github.com/evalops/evalsync/internal/schema"
	"github.com/evalops/evalsync/internal/structure"
)

var (
	validateData   string
	validateLayout string
	validatePerson string
	validateYear   int
	validateQuiet  bool
)

var validateCmd = &cobra.Command{
	Use:   "validate",
	Short: "Check every evaluation file without touching the ledger",
	Long: `Walk the evaluation tree and report the status of every JSON file:

  ok      parses and matches the expected shape
  issues  parses, but structural defects were found (itemized)
  error   unreadable or not valid JSON

Evaluation files get a full structural diagnosis; companion files are only
checked for valid JSON. Exits non-zero when any file has the error status.

Example:
  evalsync validate
  evalsync validate --data ./people --year 2024
  evalsync validate --quiet`,
	Run: func(cmd *cobra.Command, args []string) {
		dataDir := stringOr(validateData, cfg.DataDir)

		resolver, err := structure.NewResolver(dataDir, layoutFromFlag(validateLayout))
		if errors.Is(err, structure.ErrEmptyTree) {
			fmt.Printf("No evaluation units under %s.\n", dataDir)
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		units, err := resolver.Units()
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		yellow := color.New(color.FgYellow).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		gray := color.New(color.FgHiBlack).SprintFunc()

		okCount, issueCount, errorCount := 0, 0, 0
		for _, unit := range units {
			if validatePerson != "" && unit.Person != validatePerson {
				continue
			}
			if validateYear != 0 && unit.Year != validateYear {
				continue
			}

			for _, file := range unit.Files {
				rel, relErr := filepath.Rel(dataDir, file)
				if relErr != nil {
					rel = file
				}

				if filepath.Base(file) == schema.EvaluationFile {
					result := loader.Load(file)
					switch {
					case result.Fatal():
						errorCount++
						fmt.Printf("%s %s: %s\n", red("✗"), rel, result.Message())
					case len(result.Diagnostics) > 0:
						issueCount++
						fmt.Printf("%s %s\n", yellow("⚠"), rel)
						for _, diag := range result.Diagnostics {
							fmt.Printf("    %s\n", gray(diag.String()))
						}
					default:
						okCount++
						if !validateQuiet {
							fmt.Printf("%s %s\n", green("✓"), rel)
						}
					}
					continue
				}

				if _, err := loader.ReadDoc(file); err != nil {
					errorCount++
					fmt.Printf("%s %s: %v\n", red("✗"), rel, err)
				} else {
					okCount++
					if !validateQuiet {
						fmt.Printf("%s %s\n", green("✓"), rel)
					}
				}
			}
		}

		fmt.Printf("\n%d ok, %d with issues, %d errors\n", okCount, issueCount, errorCount)
		if errorCount > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(validateCmd)
	validateCmd.Flags().StringVar(&validateData, "data", "", "Evaluation tree root (default from config)")
	validateCmd.Flags().StringVar(&validateLayout, "layout", "", "Tree layout: year-first or person-first (default auto)")
	validateCmd.Flags().StringVar(&validatePerson, "person", "", "Only validate units of this person")
	validateCmd.Flags().IntVar(&validateYear, "year", 0, "Only validate units of this year")
	validateCmd.Flags().BoolVar(&validateQuiet, "quiet", false, "Only print files with issues or errors")
}
