package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/api"
	"github.com/dgnsrekt/gexdash/internal/config"
	"github.com/dgnsrekt/gexdash/internal/fetch"
	"github.com/dgnsrekt/gexdash/internal/logging"
	"github.com/dgnsrekt/gexdash/internal/market"
	"github.com/dgnsrekt/gexdash/internal/metrics"
	"github.com/dgnsrekt/gexdash/internal/session"
)

var (
	cfgFile string
	verbose bool
	logger  *zap.Logger
	cfg     *config.Config
)

func main() {
	rootCmd := &cobra.Command{
		Use:          "gexdash",
		Short:        "Gamma exposure dashboard for equities and futures",
		SilenceUsage: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			// Skip config loading for help commands
			if cmd.Name() == "help" || cmd.Name() == "completion" {
				var err error
				logger, err = logging.New(verbose, nil)
				return err
			}

			var err error
			cfg, err = config.Load(cfgFile)
			if err != nil {
				return err
			}

			logger, err = logging.New(verbose, &cfg.Logging)
			return err
		},
		PersistentPostRun: func(cmd *cobra.Command, args []string) {
			if logger != nil {
				_ = logger.Sync()
			}
		},
	}

	rootCmd.PersistentFlags().StringVarP(&cfgFile, "config", "c", os.Getenv("GEXDASH_CONFIG"), "config file path (or set GEXDASH_CONFIG)")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "verbose output")

	rootCmd.AddCommand(serveCmd())
	rootCmd.AddCommand(watchCmd())
	rootCmd.AddCommand(snapshotCmd())

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		os.Exit(1)
	}
}

// newFetcher builds the rate-limited API client and the fan-out orchestrator
// on top of it.
func newFetcher(m *metrics.Metrics) *fetch.Orchestrator {
	client := api.NewClient(
		cfg.API.BaseURL,
		cfg.API.APIKey,
		cfg.API.RatePerSecond,
		cfg.API.Timeout(),
		logger,
	)
	return fetch.New(client, logger, m)
}

// sessionOptions maps the dashboard config onto session defaults.
func sessionOptions(m *metrics.Metrics) session.Options {
	return session.Options{
		LookbackDays: cfg.Dashboard.LookbackDays,
		PollInterval: cfg.Dashboard.PollInterval(),
		CycleTimeout: cfg.Dashboard.CycleTimeout(),
		Clock:        market.NewExchangeClock(cfg.Dashboard.Timezone),
		Logger:       logger,
		Metrics:      m,
	}
}

// newMetrics registers the dashboard collectors on a private registry.
func newMetrics() (*metrics.Metrics, *prometheus.Registry) {
	reg := prometheus.NewRegistry()
	return metrics.New(reg), reg
}
