package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/structure"
)

var (
	adaptData      string
	adaptLayout    string
	adaptLink      bool
	adaptOverwrite bool
)

var adaptCmd = &cobra.Command{
	Use:   "adapt <target-dir>",
	Short: "Materialize a canonical year-first tree",
	Long: `Rebuild the evaluation tree under a new root in the canonical
<year>/<person> layout, for consumers that cannot read inverted trees.

Files are copied with their modification times preserved, so incremental
sync fingerprints keep working on the copy. With --link, symlinks are
created instead of copies. Existing target files are left alone unless
--overwrite is set.

Example:
  evalsync adapt ./canonical --data ./inverted
  evalsync adapt ./canonical --link`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		target := args[0]
		dataDir := stringOr(adaptData, cfg.DataDir)

		resolver, err := structure.NewResolver(dataDir, layoutFromFlag(adaptLayout))
		if errors.Is(err, structure.ErrEmptyTree) {
			fmt.Printf("No evaluation units under %s, nothing to adapt.\n", dataDir)
			return
		}
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		mode := structure.AdaptCopy
		if adaptLink {
			mode = structure.AdaptLink
		}

		result, err := structure.Adapt(resolver, target, mode, adaptOverwrite)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		green := color.New(color.FgGreen).SprintFunc()
		red := color.New(color.FgRed).SprintFunc()
		fmt.Printf("\n%s Adapted %s into %s: %s\n", green("✓"), dataDir, target, result.Describe())
		for _, issue := range result.Issues {
			fmt.Printf("  %s %s\n", red("✗"), issue)
		}
		fmt.Println()

		if result.Failed > 0 {
			os.Exit(1)
		}
	},
}

func init() {
	rootCmd.AddCommand(adaptCmd)
	adaptCmd.Flags().StringVar(&adaptData, "data", "", "Evaluation tree root (default from config)")
	adaptCmd.Flags().StringVar(&adaptLayout, "layout", "", "Source tree layout: year-first or person-first (default auto)")
	adaptCmd.Flags().BoolVar(&adaptLink, "link", false, "Symlink files instead of copying them")
	adaptCmd.Flags().BoolVar(&adaptOverwrite, "overwrite", false, "Replace files already present in the target")
}
