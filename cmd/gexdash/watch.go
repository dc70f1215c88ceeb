package main

import (
	"errors"
	"os"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/metrics"
	"github.com/dgnsrekt/gexdash/internal/render"
	"github.com/dgnsrekt/gexdash/internal/session"
)

func watchCmd() *cobra.Command {
	var (
		expiry string
		days   int
	)

	cmd := &cobra.Command{
		Use:   "watch [TICKER]",
		Short: "Render the dashboard in the terminal and follow live quotes",
		Long: `Load one ticker, print the summary panel, strike table and value-area
bar, then keep polling the live quote until interrupted.

Examples:
  # Default ticker from config
  gexdash watch

  # Futures with a specific expiration and a 90-day candle window
  gexdash watch /ES --expiry 2026-10-23 --days 90`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()

			ticker := cfg.Dashboard.DefaultTicker
			if len(args) == 1 {
				ticker = args[0]
			}

			m := metrics.NewNop()
			opts := sessionOptions(m)
			opts.ID = "watch"
			if days > 0 {
				opts.LookbackDays = days
			}

			sess := session.New(newFetcher(m), render.NewTerminalRenderer(os.Stdout), opts)
			defer sess.Close()

			if err := sess.SubmitTicker(ctx, ticker); err != nil {
				return err
			}
			if expiry != "" {
				if err := sess.ChangeExpiry(ctx, expiry); err != nil {
					if errors.Is(err, session.ErrInvalidSelection) {
						logger.Error("expiration not available",
							zap.String("expiry", expiry),
							zap.Strings("expirations", sess.View().Model.Expirations),
						)
					}
					return err
				}
			}

			logger.Info("watching", zap.String("ticker", sess.View().Model.Ticker), zap.Duration("poll", opts.PollInterval))
			<-ctx.Done()
			return nil
		},
	}

	cmd.Flags().StringVar(&expiry, "expiry", "", "expiration date YYYY-MM-DD (default nearest)")
	cmd.Flags().IntVar(&days, "days", 0, "candle lookback in days (default from config)")

	return cmd
}
