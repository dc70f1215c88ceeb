package main

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/config"
	"github.com/dgnsrekt/gexdash/internal/export"
	"github.com/dgnsrekt/gexdash/internal/market"
	"github.com/dgnsrekt/gexdash/internal/notify"
	"github.com/dgnsrekt/gexdash/internal/staging"
)

const runLayout = "2006-01-02_1504"

func snapshotCmd() *cobra.Command {
	var (
		dryRun  bool
		force   bool
		tickers []string
		expiry  string
		days    int
		output  string
		workers int
		run     string
	)

	cmd := &cobra.Command{
		Use:   "snapshot",
		Short: "Export dashboard snapshots for a batch of tickers",
		Long: `Run one refresh cycle per ticker and write view.json, board.json,
price.png and gex.png under OUTPUT/RUN/TICKER. Runs are staged and only
committed once every ticker has finished.

Examples:
  # Tickers from config
  gexdash snapshot

  # Override tickers and lookback
  gexdash snapshot --tickers SPY,QQQ,/ES --days 90

  # Dry run to see what would be exported
  gexdash snapshot --dry-run`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			clock := market.NewExchangeClock(cfg.Dashboard.Timezone)
			now := clock.Now()
			if !force && !clock.IsMarketDay(now) {
				logger.Info("not a market day, skipping snapshot", zap.String("date", now.Format("2006-01-02")))
				return nil
			}

			if len(tickers) == 0 {
				tickers = cfg.Snapshot.Tickers
			}
			if days <= 0 {
				days = cfg.Dashboard.LookbackDays
			}
			if output == "" {
				output = cfg.Snapshot.OutputDir
			}
			if workers <= 0 {
				workers = cfg.Snapshot.Workers
			}
			if run == "" {
				run = now.Format(runLayout)
			}

			tasks, err := buildTasks(tickers, expiry, days)
			if err != nil {
				return err
			}
			logger.Info("generated tasks", zap.Int("count", len(tasks)), zap.String("run", run))

			if dryRun {
				for _, t := range tasks {
					fmt.Printf("Would snapshot: %s -> %s\n", t, t.OutputDir(filepath.Join(output, run)))
				}
				return nil
			}

			m, _ := newMetrics()
			opts := sessionOptions(m)
			mgr := export.NewManager(newFetcher(m), staging.NewManager(output), opts, workers, logger)
			notifier := notify.New(cfg.Notify, logger)

			start := time.Now()
			result, err := mgr.Execute(ctx, run, tasks)
			duration := time.Since(start)

			if err != nil || result.Failed > 0 {
				if result == nil {
					result = &export.BatchResult{Run: run, Total: len(tasks)}
				}
				if nerr := notifier.SendFailure(ctx, result, duration, err); nerr != nil {
					logger.Warn("failure notification not sent", zap.Error(nerr))
				}
			} else if nerr := notifier.SendSuccess(ctx, result, duration); nerr != nil {
				logger.Warn("success notification not sent", zap.Error(nerr))
			}
			if err != nil {
				return err
			}

			logger.Info("snapshot complete",
				zap.String("run", run),
				zap.Int("total", result.Total),
				zap.Int("success", result.Success),
				zap.Int("skipped", result.Skipped),
				zap.Int("failed", result.Failed),
				zap.Duration("duration", duration),
			)
			for _, e := range result.Errors {
				logger.Error("task failed", zap.String("error", e))
			}
			if result.Failed > 0 {
				return fmt.Errorf("%d of %d snapshots failed", result.Failed, result.Total)
			}
			return nil
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "show what would be exported")
	cmd.Flags().BoolVar(&force, "force", false, "export even when the market is closed today")
	cmd.Flags().StringSliceVar(&tickers, "tickers", nil, "tickers to export (default from config)")
	cmd.Flags().StringVar(&expiry, "expiry", "", "expiration for every ticker (default nearest)")
	cmd.Flags().IntVar(&days, "days", 0, "candle lookback in days (default from config)")
	cmd.Flags().StringVarP(&output, "output", "o", "", "output directory (default from config)")
	cmd.Flags().IntVar(&workers, "workers", 0, "concurrent exports (default from config)")
	cmd.Flags().StringVar(&run, "run", "", "run directory name (default current time)")

	return cmd
}

// buildTasks normalizes and validates tickers, dropping duplicates.
func buildTasks(tickers []string, expiry string, days int) ([]export.Task, error) {
	seen := make(map[string]bool)
	var tasks []export.Task
	for _, raw := range tickers {
		t := config.NormalizeTicker(strings.TrimSpace(raw))
		if err := config.ValidateTicker(t); err != nil {
			return nil, err
		}
		if seen[t] {
			continue
		}
		seen[t] = true
		tasks = append(tasks, export.Task{Ticker: t, Expiry: expiry, LookbackDays: days})
	}
	if len(tasks) == 0 {
		return nil, fmt.Errorf("no tickers to snapshot")
	}
	return tasks, nil
}
