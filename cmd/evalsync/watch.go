package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/evalops/evalsync/internal/syncer"
	"github.com/evalops/evalsync/internal/watch"
)

var (
	watchData         string
	watchOutput       string
	watchLayout       string
	watchModel        string
	watchNormalize    bool
	watchWorkers      int
	watchBatchSize    int
	watchIgnoreErrors bool
	watchNoReports    bool
	watchDebounce     time.Duration
	watchMaxPerMin    int
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Re-run incremental sync whenever the tree changes",
	Long: `Run one sync pass, then keep watching the data directory and re-sync
whenever evaluation files change.

Changes are debounced until the tree stays quiet, and passes are rate
limited so editor save storms or bulk copies cannot trigger a sync per
file. Fingerprints keep each pass incremental either way.

Example:
  evalsync watch
  evalsync watch --data ./people --debounce 5s
  evalsync watch --max-per-minute 2`,
	Run: func(cmd *cobra.Command, args []string) {
		ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
		defer stop()

		store := openStore(ctx)
		defer store.Close()

		opts := syncer.Options{
			DataDir:      stringOr(watchData, cfg.DataDir),
			Orientation:  layoutFromFlag(watchLayout),
			IgnoreErrors: boolSetting(cmd, "ignore-errors", watchIgnoreErrors, cfg.IgnoreErrors),
			Workers:      intSetting(cmd, "workers", watchWorkers, cfg.Workers),
			BatchSize:    intSetting(cmd, "batch-size", watchBatchSize, cfg.BatchSize),
			Model:        modelFromFlag(watchModel),
			Normalize:    boolSetting(cmd, "normalize", watchNormalize, cfg.Normalize),
		}

		s, err := syncer.New(store, opts)
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		outputDir := stringOr(watchOutput, cfg.OutputDir)
		runPass := func(ctx context.Context) {
			result, err := s.Sync(ctx)
			if err != nil {
				if ctx.Err() != nil {
					return
				}
				fmt.Fprintf(os.Stderr, "Warning: sync failed: %v\n", err)
				if result == nil {
					return
				}
			}
			printSyncResult(result)
			if !watchNoReports && err == nil {
				writeYearReports(ctx, store, outputDir, result)
			}
		}

		runPass(ctx)
		if ctx.Err() != nil {
			return
		}

		debounce := watchDebounce
		if !cmd.Flags().Changed("debounce") {
			debounce = cfg.Watch.DebounceDuration()
		}
		maxPerMin := intSetting(cmd, "max-per-minute", watchMaxPerMin, cfg.Watch.MaxPerMinute)

		w, err := watch.New(watch.Options{
			Dir:          opts.DataDir,
			Debounce:     debounce,
			MaxPerMinute: maxPerMin,
			OnChange:     runPass,
		})
		if err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}
		if err := w.Start(ctx); err != nil {
			fmt.Fprintf(os.Stderr, "Error: %v\n", err)
			os.Exit(1)
		}

		cyan := color.New(color.FgCyan).SprintFunc()
		fmt.Printf("%s Watching %s (debounce %v, at most %d syncs/min). Ctrl-C to stop.\n",
			cyan("👁"), opts.DataDir, debounce, maxPerMin)

		<-ctx.Done()
		w.Stop()
		fmt.Println("\nStopped.")
	},
}

func init() {
	rootCmd.AddCommand(watchCmd)
	watchCmd.Flags().StringVar(&watchData, "data", "", "Evaluation tree root (default from config)")
	watchCmd.Flags().StringVar(&watchOutput, "output", "", "Report output directory (default from config)")
	watchCmd.Flags().StringVar(&watchLayout, "layout", "", "Tree layout: year-first or person-first (default auto)")
	watchCmd.Flags().StringVar(&watchModel, "model", "", "Scoring model: nps or legacy (default from config)")
	watchCmd.Flags().BoolVar(&watchNormalize, "normalize", true, "Add the 0-100 view to NPS scores")
	watchCmd.Flags().IntVar(&watchWorkers, "workers", 0, "Worker pool size (0 = one per CPU)")
	watchCmd.Flags().IntVar(&watchBatchSize, "batch-size", 0, "Units in flight per dispatch wave (0 = all at once)")
	watchCmd.Flags().BoolVar(&watchIgnoreErrors, "ignore-errors", false, "Record fatal units as failed instead of aborting the pass")
	watchCmd.Flags().BoolVar(&watchNoReports, "no-reports", false, "Skip writing per-year report files")
	watchCmd.Flags().DurationVar(&watchDebounce, "debounce", 2*time.Second, "Quiet period before a change triggers a sync")
	watchCmd.Flags().IntVar(&watchMaxPerMin, "max-per-minute", 0, "Rate limit on change-triggered syncs (default from config)")
}
