package main

import (
	"context"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/robfig/cron/v3"
	"github.com/rotisserie/eris"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"github.com/sells-group/bulletin-cli/internal/api"
	"github.com/sells-group/bulletin-cli/internal/monitoring"
	"github.com/sells-group/bulletin-cli/internal/pipeline"
)

var servePort int

var serveCmd = &cobra.Command{
	Use:   "serve",
	Short: "Serve events, run history and metrics over HTTP",
	Long:  "Starts the HTTP API. With server.refresh_cron set, the events pipeline also runs on that schedule and saves its results.",
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx, stop := signal.NotifyContext(cmd.Context(), syscall.SIGINT, syscall.SIGTERM)
		defer stop()

		env, err := initPipeline(ctx, "serve")
		if err != nil {
			return err
		}
		defer env.Close()

		opts := api.Options{
			Store:          env.Store,
			LookbackHours:  cfg.Monitoring.LookbackWindowHours,
			EventsPath:     cfg.Data.EventsPath,
			Gatherer:       env.Registry,
			AllowedOrigins: cfg.Server.AllowedOrigins,
		}
		if env.Store != nil {
			opts.Collector = monitoring.NewCollector(env.Store)
			if cfg.Monitoring.WebhookURL != "" {
				checker := monitoring.NewChecker(opts.Collector, monitoring.NewAlerter(cfg.Monitoring), cfg.Monitoring)
				go checker.Run(ctx)
			}
		}
		handler := api.NewRouter(opts)

		if spec := cfg.Server.RefreshCron; spec != "" {
			sched, err := startRefresh(spec, refreshEvents(ctx, env.Pipeline))
			if err != nil {
				return err
			}
			defer func() { <-sched.Stop().Done() }()
			zap.L().Info("events refresh scheduled", zap.String("cron", spec))
		}

		return startServer(ctx, handler, resolvePort(servePort, cfg.Server.Port))
	},
}

// resolvePort prefers the --port flag over the configured port.
func resolvePort(flagPort, cfgPort int) int {
	if flagPort != 0 {
		return flagPort
	}
	return cfgPort
}

// startServer serves handler on port until ctx is cancelled, then shuts
// down gracefully.
func startServer(ctx context.Context, handler http.Handler, port int) error {
	srv := &http.Server{
		Addr:              fmt.Sprintf(":%d", port),
		Handler:           handler,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		zap.L().Info("shutting down server")
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	zap.L().Info("starting server", zap.Int("port", port))
	if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		return eris.Wrap(err, "server listen")
	}
	return nil
}

// startRefresh runs job on the cron spec. A run still in progress when the
// next tick fires makes that tick a no-op.
func startRefresh(spec string, job func()) (*cron.Cron, error) {
	logger := cronLogger{}
	c := cron.New(
		cron.WithLogger(logger),
		cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
	)
	if _, err := c.AddFunc(spec, job); err != nil {
		return nil, eris.Wrapf(err, "parse refresh cron %q", spec)
	}
	c.Start()
	return c, nil
}

// refreshEvents returns a job that reloads the church dataset and runs the
// events pipeline with write enabled.
func refreshEvents(ctx context.Context, p *pipeline.Pipeline) func() {
	return func() {
		log := zap.L().With(zap.String("job", "events_refresh"))

		entities, err := loadEntities()
		if err != nil {
			log.Error("load churches", zap.Error(err))
			return
		}
		out, closeOut, err := openReport(cfg.Report.Output)
		if err != nil {
			log.Error("open report", zap.Error(err))
			return
		}
		defer closeOut() //nolint:errcheck

		result, err := p.Events(ctx, entities, out, true)
		if err != nil {
			log.Error("events refresh failed", zap.Error(err))
			return
		}
		log.Info("events refreshed",
			zap.Int("new", result.EventsNew),
			zap.Int("updated", result.EventsUpdated),
			zap.Int("total", result.EventsTotal),
		)
	}
}

// cronLogger routes cron's scheduler logs through zap.
type cronLogger struct{}

func (cronLogger) Info(msg string, keysAndValues ...any) {
	zap.S().Debugw("cron: "+msg, keysAndValues...)
}

func (cronLogger) Error(err error, msg string, keysAndValues ...any) {
	zap.S().Errorw("cron: "+msg, append(keysAndValues, "error", err)...)
}

func init() {
	serveCmd.Flags().IntVar(&servePort, "port", 0, "server port (default from config)")
	rootCmd.AddCommand(serveCmd)
}
