package main

import (
	"context"
	"fmt"
	"log/slog"
	"os/signal"
	"syscall"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/EndeeLabs/endee-web-ui/internal/auth"
	"github.com/EndeeLabs/endee-web-ui/internal/controller"
	"github.com/EndeeLabs/endee-web-ui/internal/repository/factory"
	"github.com/EndeeLabs/endee-web-ui/internal/scheduler"
	"github.com/EndeeLabs/endee-web-ui/internal/server"
	"github.com/EndeeLabs/endee-web-ui/internal/session"
)

const shutdownTimeout = 30 * time.Second

func runServe(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	ctx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	logger := slog.Default()

	logger.Info("starting endee console",
		"backend", cfg.Backend,
		"http_port", cfg.HTTPPort,
		"grpc_port", cfg.GRPCPort,
		"environment", cfg.Environment,
	)

	store, err := factory.Open(ctx, cfg.DatabaseURL)
	if err != nil {
		return fmt.Errorf("failed to open repository: %w", err)
	}
	defer store.Close()

	newBackend := backendFactory(cfg, store)

	// probes and scheduled backups run with the configured token, not a user's
	probe, err := newBackend(defaultToken(cfg))
	if err != nil {
		return fmt.Errorf("failed to build backend: %w", err)
	}
	defer probe.Close()

	tickets := auth.NewTicketManager(&auth.TicketConfig{
		Secret: cfg.TicketSecret,
		Expiry: cfg.TicketExpiry,
		Issuer: "endee-console",
	})

	sessions := session.NewRegistry(session.Config{
		Factory:      newBackend,
		Preferences:  store,
		DismissAfter: cfg.NoticeDismissAfter,
		Console:      controller.Config{PollInterval: cfg.JobPollInterval},
		Tickets: func(id string) controller.TicketIssuer {
			return tickets.ForSession(id)
		},
		Logger: logger,
	}, cfg.SessionTTL)
	defer sessions.Close()

	grpcServer := server.NewGRPCServer(server.GRPCServerConfig{
		Port:   cfg.GRPCPort,
		Logger: logger,
	})
	watcher := server.NewHealthWatcher(probe.Health, cfg.HealthCheckInterval, grpcServer.Health(), logger)

	httpServer, err := server.NewHTTPServer(server.HTTPServerConfig{
		Port:           cfg.HTTPPort,
		Logger:         logger,
		Sessions:       sessions,
		Tickets:        tickets,
		Readiness:      watcher,
		AllowedOrigins: cfg.AllowedOrigins,
	})
	if err != nil {
		return fmt.Errorf("failed to create HTTP server: %w", err)
	}

	g, gctx := errgroup.WithContext(ctx)

	g.Go(httpServer.Start)
	g.Go(grpcServer.Start)
	g.Go(func() error { return watcher.Run(gctx) })

	if cfg.ScheduledBackups() {
		sched := scheduler.New(probe, cfg.BackupScheduleIndexes, logger)
		g.Go(func() error { return sched.Run(gctx, cfg.BackupSchedule) })
	}

	g.Go(func() error {
		<-gctx.Done()
		if ctx.Err() != nil {
			logger.Info("received shutdown signal")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()

		if err := httpServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("HTTP shutdown error", "error", err)
		}
		if err := grpcServer.Shutdown(shutdownCtx); err != nil {
			logger.Error("gRPC shutdown error", "error", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return err
	}

	logger.Info("endee console stopped")
	return nil
}
