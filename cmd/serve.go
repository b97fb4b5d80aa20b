package cmd

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/spf13/cobra"

	"github.com/BoronSpoon/equipment-reservation/internal/config"
	"github.com/BoronSpoon/equipment-reservation/internal/logging"
	"github.com/BoronSpoon/equipment-reservation/internal/server"
)

// serveOptions override the server section of the configuration.
type serveOptions struct {
	addr        string
	metricsAddr string
	noMetrics   bool
	noDaily     bool
}

func newServeCmd() *cobra.Command {
	var opts serveOptions

	cmd := &cobra.Command{
		Use:   "serve",
		Short: "Serve calendar and spreadsheet edit notifications",
		Long: `Start the notification server. Calendar push notifications and spreadsheet
edit notifications are queued and processed one at a time:

  POST /notifications/calendar    Google Calendar push channel; the channel
                                  token must be the write calendar id
  POST /notifications/directory   {"sheet": "...", "row": n, "column": n}

Health probes are served on /healthz and /readyz, Prometheus metrics on a
separate port. The final log copy runs once a day at server.daily_log_hour.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			applyServeOptions(cfg, opts, cmd.Flags().Changed)
			return runServe(cmd.Context(), cfg, opts)
		},
	}

	cmd.Flags().StringVar(&opts.addr, "addr", server.DefaultAddr, "Notification server address (overrides server.addr)")
	cmd.Flags().StringVar(&opts.metricsAddr, "metrics-addr", server.DefaultMetricsAddr, "Metrics server address (overrides server.metrics_addr)")
	cmd.Flags().BoolVar(&opts.noMetrics, "no-metrics", false, "Do not start the metrics server")
	cmd.Flags().BoolVar(&opts.noDaily, "no-daily-log", false, "Do not schedule the daily final log copy")

	return cmd
}

// applyServeOptions copies explicitly set flags into cfg.
func applyServeOptions(cfg *config.Config, opts serveOptions, changed func(string) bool) {
	if changed("addr") {
		cfg.Server.Addr = opts.addr
	}
	if changed("metrics-addr") {
		cfg.Server.MetricsAddr = opts.metricsAddr
	}
	if opts.noDaily {
		cfg.Server.DailyLogHour = -1
	}
}

func runServe(ctx context.Context, cfg *config.Config, opts serveOptions) error {
	a, err := newApp(ctx, cfg)
	if err != nil {
		return err
	}
	defer func() {
		if err := a.Close(context.Background()); err != nil {
			slog.Warn("error during shutdown", logging.Err(err))
		}
	}()

	logger := slog.Default()
	dispatcher := server.NewDispatcher(cfg.Server.QueueSize, logger)
	health := server.NewHealthChecker(dispatcher)
	notifications := server.NewNotificationHandler(server.NotificationConfig{
		Syncer:          a.engine,
		Directory:       a.directory,
		Dispatcher:      dispatcher,
		UsersSheet:      cfg.Spreadsheets.UsersSheet,
		PropertiesSheet: cfg.Spreadsheets.PropertiesSheet,
		Secret:          cfg.Server.NotificationSecret,
		Logger:          logger,
		Metrics:         a.provider.Metrics(),
	})
	srv := server.New(server.Config{Addr: cfg.Server.Addr, Notifications: notifications, Health: health})
	if err := srv.Listen(); err != nil {
		return err
	}

	var metricsServer *server.MetricsServer
	if !opts.noMetrics && a.provider.Enabled() {
		metricsServer, err = server.NewMetricsServer(server.MetricsServerConfig{
			Addr:                    cfg.Server.MetricsAddr,
			InstrumentationProvider: a.provider,
		})
		if err != nil {
			return fmt.Errorf("failed to create metrics server: %w", err)
		}
		if err := metricsServer.Listen(); err != nil {
			return err
		}
	}

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() { errs <- srv.Start() }()
	if metricsServer != nil {
		go func() { errs <- metricsServer.Start() }()
	}

	workerDone := make(chan struct{})
	go func() {
		defer close(workerDone)
		_ = dispatcher.Run(ctx)
	}()

	if cfg.Server.DailyLogHour >= 0 {
		scheduler := server.NewDailyScheduler(a.daily, a.directory, dispatcher, cfg.Server.DailyLogHour, a.loc, logger)
		go func() { _ = scheduler.Run(ctx) }()
	}

	logger.Info("reservesync serving",
		slog.String("addr", srv.Addr()),
		slog.Int("queue_size", dispatcher.Capacity()),
		slog.Int("daily_log_hour", cfg.Server.DailyLogHour))

	var serveErr error
	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case serveErr = <-errs:
		logger.Error("server stopped unexpectedly", logging.Err(serveErr))
	}

	health.SetShuttingDown()
	shutdownCtx, stop := context.WithTimeout(context.Background(), server.DefaultShutdownTimeout)
	defer stop()

	var shutdownErrs []error
	shutdownErrs = append(shutdownErrs, srv.Shutdown(shutdownCtx))
	if metricsServer != nil {
		shutdownErrs = append(shutdownErrs, metricsServer.Shutdown(shutdownCtx))
	}

	dispatcher.Close()
	if n := dispatcher.Pending(); n > 0 {
		logger.Warn("dropping queued jobs", slog.Int("pending", n))
	}
	cancel()
	<-workerDone

	return errors.Join(append(shutdownErrs, serveErr)...)
}
