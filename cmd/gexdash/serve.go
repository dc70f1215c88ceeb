package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/dgnsrekt/gexdash/internal/server"
)

func serveCmd() *cobra.Command {
	var port string

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve the dashboard over HTTP",
		Long: `Serve the dashboard: one session per browser page, chart images and
view model JSON over HTTP, live updates over a websocket.

Examples:
  gexdash serve
  gexdash serve --port 9090`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			ctx := cmd.Context()
			if port == "" {
				port = cfg.Server.Port
			}

			m, reg := newMetrics()
			srv, err := server.New(server.Deps{
				Fetcher:   newFetcher(m),
				Options:   sessionOptions(m),
				Metrics:   m,
				Gatherer:  reg,
				Logger:    logger,
				DisableWS: !cfg.Server.WSEnabled,
			})
			if err != nil {
				return err
			}

			hubDone := make(chan struct{})
			go func() {
				srv.Run(ctx)
				close(hubDone)
			}()

			httpServer := &http.Server{
				Addr:         ":" + port,
				Handler:      srv.Handler(),
				ReadTimeout:  30 * time.Second,
				WriteTimeout: cfg.Dashboard.CycleTimeout() + 30*time.Second,
			}

			errCh := make(chan error, 1)
			go func() {
				logger.Info("starting server",
					zap.String("addr", httpServer.Addr),
					zap.String("api", cfg.API.BaseURL),
					zap.Bool("websocket", cfg.Server.WSEnabled),
				)
				if err := httpServer.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
					errCh <- err
				}
				close(errCh)
			}()

			select {
			case err := <-errCh:
				if err != nil {
					logger.Error("server error", zap.Error(err))
					return err
				}
			case <-ctx.Done():
			}

			logger.Info("shutting down server...")

			shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
			defer cancel()
			if err := httpServer.Shutdown(shutdownCtx); err != nil {
				logger.Error("server shutdown error", zap.Error(err))
			}
			<-hubDone

			logger.Info("server stopped")
			return nil
		},
	}

	cmd.Flags().StringVar(&port, "port", "", "listen port (default from config)")

	return cmd
}
