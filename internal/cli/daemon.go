package cli

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/lu-zhengda/mailrules/internal/app"
)

func newDaemonCmd() *cobra.Command {
	var rulesFlag string
	var onceFlag bool

	cmd := &cobra.Command{
		Use:   "daemon",
		Short: "Fetch and process on a schedule",
		Long:  "Run fetch and process on the [daemon] schedule, reloading the rules file when it changes.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := setup()
			if err != nil {
				return err
			}
			defer logger.Sync()

			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()

			path := rulesPath(cfg, rulesFlag, nil)
			watcher, err := app.NewRulesWatcher(path, logger, rulesOptions(cfg, logger)...)
			if err != nil {
				return rulesError(path, err)
			}

			p, err := newGmail(cfg, logger)
			if err != nil {
				return err
			}
			db, err := openStore(ctx, cfg, logger)
			if err != nil {
				return err
			}
			defer db.Close()

			d := app.NewDaemon(
				app.NewFetcher(p, db, logger),
				app.NewProcessor(db, p, logger),
				watcher,
				cfg.Daemon.Schedule,
				cfg.Fetch.MaxEmails,
				logger,
			)
			if onceFlag {
				return d.RunOnce(ctx)
			}

			if cfg.Daemon.WatchRules {
				go func() {
					if err := watcher.Watch(ctx); err != nil {
						logger.Error("rules watcher stopped", zap.Error(err))
					}
				}()
			}
			if cfg.Metrics.Listen != "" {
				srv := serveMetrics(cfg.Metrics.Listen, logger)
				defer func() {
					shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
					defer cancel()
					srv.Shutdown(shutdownCtx)
				}()
			}
			return d.Run(ctx)
		},
	}

	cmd.Flags().StringVarP(&rulesFlag, "rules", "r", "", "rules file (JSON or YAML)")
	cmd.Flags().BoolVar(&onceFlag, "once", false, "run fetch and process once, then exit")
	return cmd
}

// serveMetrics exposes the Prometheus registry on addr at /metrics.
func serveMetrics(addr string, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.Handler())
	srv := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}
	go func() {
		logger.Info("serving metrics", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
