package cmd

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 10 * time.Second

// newScrapeCmd creates the 'scrape' subcommand, which runs the monitoring
// loop (or a single cycle with --once) alongside the ops HTTP server.
func newScrapeCmd() *cobra.Command {
	var once bool

	cmd := &cobra.Command{
		Use:   "scrape",
		Short: "Runs the listing monitoring loop",
		Long: `Starts the periodic monitoring loop: every interval, due watch tasks are
loaded, grouped by canonical search URL, fetched, extracted, deduplicated,
and persisted. The ops HTTP server (health, metrics, status, blocklist)
runs alongside. With --once a single cycle is executed and the process
exits.`,

		RunE: func(cmd *cobra.Command, _ []string) error {
			return runScrape(cmd, once)
		},
	}
	cmd.Flags().BoolVar(&once, "once", false, "run a single cycle and exit")
	return cmd
}

func runScrape(cmd *cobra.Command, once bool) error {
	appInstance, err := resolveApp(cmd.Context())
	if err != nil {
		return err
	}
	logger := appInstance.Logger()

	ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", appInstance.Config().Server.Port),
		Handler:           appInstance.Server().Handler(),
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("ops server started", zap.String("addr", srv.Addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("ops server error", zap.Error(err))
			stop()
		}
	}()
	appInstance.Server().SetReady(true)

	var runErr error
	if once {
		runErr = appInstance.Orchestrator().RunCycle(ctx)
	} else {
		runErr = appInstance.Orchestrator().Run(ctx)
	}

	appInstance.Server().SetReady(false)
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("ops server shutdown error", zap.Error(err))
	}

	if runErr != nil && !errors.Is(runErr, context.Canceled) {
		return fmt.Errorf("run monitor: %w", runErr)
	}
	logger.Info("scrape command finished")
	return nil
}
