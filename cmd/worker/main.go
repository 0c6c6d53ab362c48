// Package main is the long-running gamification worker.
//
// The worker owns the daily streak maintenance run: once per day, shortly
// after the streak-day cutover, it scans every user and applies freezes or
// breaks streaks for the days that were missed.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/TEJ42000/ALLMS-sub004/config"
	"github.com/TEJ42000/ALLMS-sub004/internal/bootstrap"
	"github.com/TEJ42000/ALLMS-sub004/internal/infrastructure/scheduler"
	"github.com/TEJ42000/ALLMS-sub004/pkg/logger"
)

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	if err := run(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "fatal error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("failed to load config: %w", err)
	}

	log := bootstrap.NewLogger(cfg)
	defer func() { _ = log.Sync() }()

	log.Info("starting gamification worker",
		logger.String("env", string(cfg.App.Environment)),
		logger.Bool("debug", cfg.App.Debug),
		logger.String("timezone", cfg.Gamification.Timezone),
	)

	app, err := bootstrap.New(ctx, cfg, log)
	if err != nil {
		return err
	}
	defer func() {
		closeCtx, cancel := context.WithTimeout(context.Background(), cfg.App.ShutdownTimeout)
		defer cancel()
		if err := app.Close(closeCtx); err != nil {
			log.Error("shutdown finished with errors", logger.Err(err))
		}
	}()

	sched, err := app.NewScheduler()
	if err != nil {
		return err
	}
	sched.OnJobComplete(func(r scheduler.JobResult) {
		if !r.Success {
			log.Error("scheduled job failed",
				logger.String("job", r.JobName),
				logger.Duration("duration", r.Duration),
				logger.Err(r.Error),
			)
		}
	})
	if !cfg.Maintenance.Enabled {
		log.Warn("maintenance disabled, streaks will only be resolved on activity")
	}

	if err := sched.Start(ctx); err != nil {
		return err
	}
	log.Info("gamification worker is running")

	<-ctx.Done()
	log.Info("received shutdown signal, stopping",
		logger.Duration("timeout", cfg.App.ShutdownTimeout),
	)

	if err := sched.Stop(); err != nil {
		log.Warn("scheduler stop", logger.Err(err))
	}
	log.Info("shutdown completed")
	return nil
}
