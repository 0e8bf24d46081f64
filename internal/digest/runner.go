package digest

import (
	"context"
	"fmt"
	"time"

	"go.uber.org/zap"

	"school-secretary/internal/concurrency"
	"school-secretary/internal/domain"
	"school-secretary/internal/logging"
	"school-secretary/internal/providers"
	"school-secretary/internal/tz"
)

// Credentials yields a usable access token for a user.
type Credentials interface {
	GetValidAccessToken(ctx context.Context, u *domain.DigestUser) (string, error)
}

// EnabledUsers lists the users a run delivers to.
type EnabledUsers interface {
	ListEnabled(ctx context.Context) ([]domain.DigestUser, error)
}

// Summary aggregates one run across users.
type Summary struct {
	Processed int      `json:"processed"`
	Failed    int      `json:"failed"`
	Total     int      `json:"total"`
	Errors    []string `json:"errors,omitempty"`
}

// delivery is one user's outcome; the zero value means the user was never attempted.
type delivery struct {
	ran bool
	err error
}

type Runner struct {
	Users   EnabledUsers
	Creds   Credentials
	Fetcher *Fetcher
	Mailer  providers.Mailer

	From          string
	PublicBaseURL string

	// Concurrency bounds users in flight; 1 delivers sequentially.
	Concurrency int
	Now         func() time.Time
	Logger      *zap.Logger
}

// Run loads every enabled user and delivers their digest.
func (r *Runner) Run(ctx context.Context) (Summary, error) {
	users, err := r.Users.ListEnabled(ctx)
	if err != nil {
		return Summary{}, fmt.Errorf("digest: list enabled users: %w", err)
	}
	return r.RunAll(ctx, users), nil
}

// RunAll delivers a digest to each user. A user's failure is recorded as
// "<email>: <message>" and never stops the others.
func (r *Runner) RunAll(ctx context.Context, users []domain.DigestUser) Summary {
	log := logging.OrNop(r.Logger)
	log.Info("digest run started", zap.Int("users", len(users)))

	opts := concurrency.DefaultOptions()
	if r.Concurrency > 0 {
		opts.MaxWorkers = r.Concurrency
	}
	outcomes, _ := concurrency.ProcessParallel(ctx, users, opts,
		func(ctx context.Context, i int, u domain.DigestUser) (delivery, error) {
			return delivery{ran: true, err: r.deliver(ctx, &u)}, nil
		})

	sum := Summary{Total: len(users)}
	for i, out := range outcomes {
		u := users[i]
		err := out.err
		if !out.ran {
			err = fmt.Errorf("not attempted: %w", context.Cause(ctx))
		}
		if err != nil {
			sum.Failed++
			sum.Errors = append(sum.Errors, fmt.Sprintf("%s: %s", u.Email, err.Error()))
			log.Warn("digest failed", zap.String("user", u.ID), zap.String("email", u.Email), zap.Error(err))
			continue
		}
		sum.Processed++
	}

	log.Info("digest run complete",
		zap.Int("processed", sum.Processed),
		zap.Int("failed", sum.Failed),
		zap.Int("total", sum.Total),
	)
	return sum
}

func (r *Runner) deliver(ctx context.Context, u *domain.DigestUser) error {
	loc, err := tz.Load(u.TimeZone)
	if err != nil {
		return err
	}

	token, err := r.Creds.GetValidAccessToken(ctx, u)
	if err != nil {
		return err
	}

	events, err := r.Fetcher.FetchWindow(ctx, token, loc.String())
	if err != nil {
		return err
	}

	now := r.now()
	set := Bucket(events, loc, now)
	body := Render(set.Today, set.ThisWeek, loc, UnsubscribeURL(r.PublicBaseURL, u.ID))

	err = r.Mailer.Send(ctx, providers.Message{
		From:    r.From,
		To:      u.Email,
		Subject: Subject(now, loc),
		Text:    body,
	})
	if err != nil {
		return err
	}

	logging.OrNop(r.Logger).Info("digest sent",
		zap.String("user", u.ID),
		zap.Int("today", len(set.Today)),
		zap.Int("this_week", len(set.ThisWeek)),
	)
	return nil
}

func (r *Runner) now() time.Time {
	if r.Now != nil {
		return r.Now()
	}
	return time.Now()
}
