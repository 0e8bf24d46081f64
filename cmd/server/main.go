package main

import (
	"context"
	"errors"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/robfig/cron/v3"
	"go.uber.org/zap"

	"school-secretary/internal/api"
	"school-secretary/internal/app"
	"school-secretary/internal/config"
	"school-secretary/internal/logging"
	"school-secretary/internal/tz"
)

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatal(err)
	}

	logger, err := logging.New(cfg.Env, cfg.LogLevel)
	if err != nil {
		log.Fatalf("logger: %v", err)
	}
	defer logger.Sync()

	if err := cfg.Validate(); err != nil {
		logger.Fatal("invalid config", zap.Error(err))
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	a, err := app.New(ctx, cfg, logger)
	if err != nil {
		logger.Fatal("init", zap.Error(err))
	}
	defer a.Close()

	sched, err := newScheduler(ctx, cfg, a, logger.Named("cron"))
	if err != nil {
		logger.Fatal("scheduler", zap.Error(err))
	}
	sched.Start()

	h := &api.Handler{Enroll: a.Enroll, Sync: a.Sync, Digest: a.Digest, Logger: logger.Named("api")}
	srv := &http.Server{
		Addr:              cfg.HTTPAddr,
		Handler:           api.NewRouter(h, cfg.AdminToken, logger.Named("http")),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		logger.Info("http listening", zap.String("addr", cfg.HTTPAddr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("http server", zap.Error(err))
			stop()
		}
	}()

	<-ctx.Done()
	logger.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.Warn("http shutdown", zap.Error(err))
	}
	// wait for an in-flight digest run
	<-sched.Stop().Done()
}

// newScheduler triggers one digest run per DIGEST_SCHEDULE tick, evaluated in DIGEST_SCHEDULE_TZ.
func newScheduler(ctx context.Context, cfg config.Config, a *app.App, logger *zap.Logger) (*cron.Cron, error) {
	loc, err := tz.Load(cfg.DigestScheduleTZ)
	if err != nil {
		return nil, err
	}

	c := cron.New(
		cron.WithLocation(loc),
		cron.WithChain(cron.SkipIfStillRunning(cron.DiscardLogger)),
	)
	_, err = c.AddFunc(cfg.DigestSchedule, func() {
		sum, err := a.Digest.Run(ctx)
		if err != nil {
			logger.Error("digest run", zap.Error(err))
			return
		}
		logger.Info("digest run",
			zap.Int("processed", sum.Processed),
			zap.Int("failed", sum.Failed),
			zap.Int("total", sum.Total),
		)
	})
	if err != nil {
		return nil, err
	}
	logger.Info("digest scheduled", zap.String("spec", cfg.DigestSchedule), zap.String("tz", loc.String()))
	return c, nil
}
