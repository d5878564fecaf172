package cmd

import (
	"fmt"
	"sync"
	"time"

	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"

	"github.com/TuringFantasy/simple-dedupe/duplicates"
	"github.com/TuringFantasy/simple-dedupe/signalhandler"
)

var indexCmd = &cobra.Command{
	Use:   "index",
	Short: "Build or load the match index offline",
	Long: `Build the match index over the image directory and persist it, so the
HTTP service can answer /duplicate/{id} without a warm-up call.

An index that is already persisted and current is loaded instead of rebuilt.
With index.fingerprint enabled (the default), a persisted index whose image
directory has since changed, or that has no meta recorded, counts as stale and
is rebuilt. Set index.fingerprint: false (or DEDUPE_INDEX_FINGERPRINT=false) to
treat the presence of a persisted index as the only cache hit signal.

Examples:
  # Build once, reuse afterwards
  simple-dedupe index

  # Discard the persisted index and build from scratch
  simple-dedupe index --rebuild`,
	RunE: runIndex,
}

func init() {
	rootCmd.AddCommand(indexCmd)

	indexCmd.Flags().Bool("rebuild", false, "Discard the persisted index before building")
	indexCmd.Flags().Int("workers", 0, "Parallel extraction and matching workers (overrides config)")
}

// stageBars shows one progress bar per build stage
type stageBars struct {
	mu      sync.Mutex
	current string
	bar     *progressbar.ProgressBar
}

func (s *stageBars) update(stage string, done, total int) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if stage != s.current || s.bar == nil {
		if s.bar != nil {
			s.bar.Finish()
			fmt.Println()
		}
		description, unit := "Extracting features", "images"
		if stage == duplicates.StageMatch {
			description, unit = "Matching pairs", "pairs"
		}
		s.current = stage
		s.bar = progressbar.NewOptions(total,
			progressbar.OptionSetDescription(description),
			progressbar.OptionShowCount(),
			progressbar.OptionShowIts(),
			progressbar.OptionSetItsString(unit),
			progressbar.OptionShowElapsedTimeOnFinish(),
			progressbar.OptionSetPredictTime(true),
			progressbar.OptionFullWidth(),
		)
	}
	s.bar.Set(done)
}

func (s *stageBars) finish() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.bar != nil {
		s.bar.Finish()
		fmt.Println()
	}
}

func runIndex(cmd *cobra.Command, args []string) error {
	rebuild := mustGetBool(cmd, "rebuild")

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	if cmd.Flags().Changed("workers") {
		cfg.Build.Workers = mustGetInt(cmd, "workers")
		if err := cfg.Validate(); err != nil {
			return err
		}
	}

	bars := &stageBars{}
	a, err := newApp(cfg, bars.update)
	if err != nil {
		return err
	}
	defer a.Close()

	ctx, cancel := signalhandler.NotifyContext(cmd.Context())
	defer cancel()

	if rebuild {
		if err := a.cache.Invalidate(ctx); err != nil {
			return fmt.Errorf("discarding persisted index: %w", err)
		}
		fmt.Println("Discarded persisted match index")
	}

	startTime := time.Now()
	table, err := a.cache.LoadOrBuild(ctx)
	bars.finish()
	if err != nil {
		return fmt.Errorf("building match index: %w", err)
	}

	rows := a.resolver.ResolveAll(table)
	fmt.Printf("Match index ready: %d pairs, %d flagged (threshold %d)\n", len(table), len(rows), a.resolver.Threshold())
	fmt.Printf("Total execution time: %v\n", time.Since(startTime).Round(time.Millisecond))
	return nil
}
