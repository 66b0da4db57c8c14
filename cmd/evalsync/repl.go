package main

import (
	"context"
	"fmt"
	"os"

	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/repl"
)

var (
	replModel     string
	replNormalize bool
)

var replCmd = &cobra.Command{
	Use:   "repl",
	Short: "Start an interactive scoring shell",
	Long: `Start an interactive shell over the sync ledger.

The shell answers scoring questions without re-reading the tree:
- 'people' and 'years' list what the ledger holds
- 'score <person> <year>' breaks one evaluation down by driver
- 'compare <year>' ranks a cohort
- 'history <person>' tracks someone across years

Type 'help' in the shell for the full command list.`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx := context.Background()

		store := openStore(ctx)
		defer store.Close()

		r, err := repl.New(&repl.Config{
			Store:     store,
			Model:     modelFromFlag(replModel),
			Normalize: boolSetting(cmd, "normalize", replNormalize, cfg.Normalize),
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: failed to start shell: %v\n", err)
			os.Exit(1)
		}

		if err := r.Run(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(replCmd)
	replCmd.Flags().StringVar(&replModel, "model", "", "Scoring model: nps or legacy (default from config)")
	replCmd.Flags().BoolVar(&replNormalize, "normalize", true, "Add the 0-100 view to NPS scores")
}
