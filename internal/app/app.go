// Package app wires configuration into the services shared by the binaries.
package app

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"school-secretary/internal/config"
	"school-secretary/internal/credential"
	"school-secretary/internal/digest"
	"school-secretary/internal/enroll"
	"school-secretary/internal/httpx"
	"school-secretary/internal/providers/canvas"
	"school-secretary/internal/providers/gcal"
	"school-secretary/internal/providers/resend"
	"school-secretary/internal/store"
	"school-secretary/internal/sync"
)

type App struct {
	Config config.Config
	Logger *zap.Logger

	Users  store.UserRepository
	Creds  *credential.Cache
	Canvas *canvas.Client
	Mailer *resend.Client

	Sync   *sync.Service
	Digest *digest.Runner
	Enroll *enroll.Service
}

// OpenStore opens the repository selected by cfg.StoreDriver.
func OpenStore(ctx context.Context, cfg config.Config) (store.UserRepository, error) {
	switch cfg.StoreDriver {
	case "postgres":
		s, err := store.OpenPostgres(ctx, cfg.DatabaseURL)
		if err != nil {
			return nil, err
		}
		return s, nil
	case "bolt":
		s, err := store.OpenBolt(cfg.BoltPath)
		if err != nil {
			return nil, err
		}
		return s, nil
	default:
		return nil, fmt.Errorf("app: unknown store driver %q", cfg.StoreDriver)
	}
}

// New builds every service from cfg. Call Close when done.
func New(ctx context.Context, cfg config.Config, logger *zap.Logger) (*App, error) {
	users, err := OpenStore(ctx, cfg)
	if err != nil {
		return nil, err
	}

	httpClient := httpx.NewClient(cfg.HTTPTimeout)
	creds := credential.New(cfg.GoogleClientID, cfg.GoogleClientSecret, cfg.GoogleTokenURL, httpClient, users, cfg.TokenRefreshBuffer, logger.Named("credential"))
	calendar := gcal.New(cfg.GoogleCalendarEndpoint, cfg.HTTPTimeout)

	cv := canvas.New(cfg.CanvasBaseURL, cfg.CanvasToken)
	cv.HTTP = httpClient
	cv.Policy = httpx.DefaultPolicy().WithAttempts(cfg.HTTPMaxAttempts)

	mailer := resend.New(cfg.ResendBaseURL, cfg.ResendAPIKey, cfg.HTTPTimeout)

	a := &App{
		Config: cfg,
		Logger: logger,
		Users:  users,
		Creds:  creds,
		Canvas: cv,
		Mailer: mailer,
	}
	a.Sync = &sync.Service{
		Source: canvas.Provider{C: cv},
		Creds:  creds,
		Engine: sync.NewEngine(calendar, cfg.SyncDelay, logger.Named("sync")),
		Logger: logger.Named("sync"),
	}
	a.Digest = &digest.Runner{
		Users:         users,
		Creds:         creds,
		Fetcher:       &digest.Fetcher{Calendar: calendar},
		Mailer:        mailer,
		From:          cfg.DigestFrom,
		PublicBaseURL: cfg.PublicBaseURL,
		Concurrency:   cfg.DigestConcurrency,
		Logger:        logger.Named("digest"),
	}
	a.Enroll = &enroll.Service{
		Users:           users,
		Mailer:          mailer,
		From:            cfg.WelcomeFrom,
		DefaultTimezone: cfg.DefaultTimezone,
		Logger:          logger.Named("enroll"),
	}
	return a, nil
}

func (a *App) Close() error {
	return a.Users.Close()
}
