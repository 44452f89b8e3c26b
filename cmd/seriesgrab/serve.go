package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/google/uuid"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"

	"github.com/iconidentify/seriesgrab/internal/api"
	"github.com/iconidentify/seriesgrab/internal/api/handler"
	"github.com/iconidentify/seriesgrab/internal/config"
	"github.com/iconidentify/seriesgrab/internal/downloader"
	"github.com/iconidentify/seriesgrab/internal/metrics"
	"github.com/iconidentify/seriesgrab/internal/repository"
	"github.com/iconidentify/seriesgrab/internal/service"
	"github.com/iconidentify/seriesgrab/internal/worker"
	"github.com/iconidentify/seriesgrab/pkg/aria2"
	"github.com/iconidentify/seriesgrab/pkg/site"
)

const (
	shutdownTimeout  = 30 * time.Second
	retentionSweep   = 6 * time.Hour
	daemonStopWindow = 5 * time.Second
)

func newServeCmd(opts *globalOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the download service and its control API",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.Load(opts.configPath)
			if err != nil {
				return err
			}
			logger, err := newLogger(os.Stdout, opts.logLevel, opts.logFormat)
			if err != nil {
				return err
			}
			slog.SetDefault(logger)
			return serve(cmd.Context(), cfg, logger)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, logger *slog.Logger) error {
	logger.Info("starting seriesgrab", "version", Version, "build_time", BuildTime)

	downloadsDir, err := cfg.Storage.ResolveDownloadsDir()
	if err != nil {
		return err
	}
	stateDir, err := cfg.Storage.ResolveStateDir()
	if err != nil {
		return err
	}
	if err := os.MkdirAll(stateDir, 0755); err != nil {
		return fmt.Errorf("create state directory: %w", err)
	}

	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	m := metrics.New(reg)

	// aria2
	daemonCfg := aria2.DaemonConfig{
		Binary:        cfg.Daemon.Binary,
		Port:          cfg.Daemon.RPCPort,
		Secret:        cfg.Daemon.Secret,
		MaxConcurrent: cfg.Daemon.MaxConcurrent,
		UserAgent:     cfg.Daemon.UserAgent,
		HostPID:       os.Getpid(),
	}
	if daemonCfg.Secret == "" {
		daemonCfg.Secret = uuid.NewString()
	}
	rpc := aria2.NewClient(aria2.Config{
		Endpoint: daemonCfg.Endpoint(),
		Secret:   daemonCfg.Secret,
		Timeout:  cfg.Daemon.RPCTimeout,
	})

	var supervisor downloader.Supervisor
	if cfg.Daemon.Managed {
		supervisor = aria2.NewDaemon(daemonCfg, logger)
	}

	// Site
	siteClient, err := site.NewClient(site.Config{
		BaseURL:       cfg.Site.BaseURL,
		SessionCookie: cfg.Site.SessionCookie,
		UserAgent:     cfg.Site.UserAgent,
		Timeout:       cfg.Site.Timeout,
	})
	if err != nil {
		return fmt.Errorf("create site client: %w", err)
	}
	resolver := downloader.NewSiteResolver(siteClient)

	// State
	registry := repository.NewInMemoryDownloadRegistry()
	positions, err := repository.NewSQLitePositionRepository(filepath.Join(stateDir, "positions.db"))
	if err != nil {
		return fmt.Errorf("open position store: %w", err)
	}
	defer positions.Close()

	notifications, err := service.NewNotificationService(service.NotificationServiceConfig{
		RingBufferSize:  cfg.Notify.RingBufferSize,
		PersistToSQLite: cfg.Notify.Persist,
		SQLitePath:      filepath.Join(stateDir, "notifications.db"),
		RetentionDays:   cfg.Notify.RetentionDays,
	}, m, logger)
	if err != nil {
		return fmt.Errorf("create notification service: %w", err)
	}
	defer notifications.Close()

	dl := downloader.New(downloader.Config{
		DownloadsDir:   downloadsDir,
		AppFolder:      cfg.Storage.AppFolder,
		MinFreeBytes:   cfg.Storage.MinFreeBytes,
		PollInterval:   cfg.Daemon.PollInterval,
		StartupTimeout: cfg.Daemon.StartupTimeout,
		PurchaseURL:    cfg.Site.PurchaseURL,
	}, downloader.Dependencies{
		RPC:        rpc,
		Supervisor: supervisor,
		Registry:   registry,
		Resolver:   resolver,
		Account:    resolver,
		Positions:  positions,
		Notifier:   notifications,
		Metrics:    m,
	}, logger)

	if err := dl.Start(ctx); err != nil {
		return fmt.Errorf("start downloader: %w", err)
	}
	logger.Info("downloader started",
		"downloads_dir", downloadsDir,
		"app_folder", cfg.Storage.AppFolder,
		"managed_daemon", cfg.Daemon.Managed,
	)

	var tasks []worker.Task
	if cfg.Notify.Persist && cfg.Notify.RetentionDays > 0 {
		tasks = append(tasks, worker.Task{
			Name:       "notification-retention",
			Interval:   retentionSweep,
			RunAtStart: true,
			Run:        notifications.CleanupOld,
		})
	}
	scheduler := worker.NewScheduler(logger, tasks...)
	scheduler.Start()

	router := api.NewRouter(api.Handlers{
		Health:        handler.NewHealthHandler(dl, registry, downloadsDir),
		Downloads:     handler.NewDownloadHandler(dl, logger),
		Notifications: handler.NewNotificationHandler(notifications, dl, logger),
		Metrics:       promhttp.HandlerFor(reg, promhttp.HandlerOpts{Registry: reg}),
	}, cfg.Server.APIKey, logger)

	srv := api.NewServer(cfg.Server.Address(), router, api.ServerTimeouts{
		Read:  cfg.Server.ReadTimeout,
		Write: cfg.Server.WriteTimeout,
	})

	serverErr := make(chan error, 1)
	go func() {
		logger.Info("server listening", "addr", srv.Addr())
		serverErr <- srv.Start()
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	defer signal.Stop(quit)

	var runErr error
	select {
	case sig := <-quit:
		logger.Info("shutting down", "signal", sig.String())
	case err := <-serverErr:
		if err != nil {
			runErr = fmt.Errorf("server: %w", err)
			logger.Error("server failed", "error", err)
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Error("server shutdown failed", "error", err)
	}
	if err := scheduler.Stop(daemonStopWindow); err != nil {
		logger.Warn("scheduler stop failed", "error", err)
	}
	if err := dl.Terminate(daemonStopWindow); err != nil {
		logger.Warn("downloader stop failed", "error", err)
	}

	logger.Info("shutdown complete")
	return runErr
}
