// Package enroll handles digest sign-up and the enable/disable lifecycle.
package enroll

import (
	"context"
	"errors"
	"regexp"
	"strings"

	"github.com/google/uuid"
	"go.uber.org/zap"

	"school-secretary/internal/credential"
	"school-secretary/internal/domain"
	"school-secretary/internal/logging"
	"school-secretary/internal/providers"
	"school-secretary/internal/store"
	"school-secretary/internal/tz"
)

var emailRe = regexp.MustCompile(`^[^\s@]+@[^\s@]+\.[^\s@]+$`)

// ErrNotFound is returned when no user matches the id.
var ErrNotFound = errors.New("enroll: user not found")

const welcomeSubject = "You're all set, we've got you"

const welcomeBody = `Hey!

You're all set. Starting with your next digest, you'll get a simple rundown of what's due — today and this week.

No more checking five tabs. No more "wait, when was that due?"

See you at the next one.

—school-secretary`

type Users interface {
	Get(ctx context.Context, id string) (domain.DigestUser, error)
	UpsertByEmail(ctx context.Context, u domain.DigestUser) (domain.DigestUser, error)
	SetEnabled(ctx context.Context, id string, enabled bool) (domain.DigestUser, error)
}

type Service struct {
	Users  Users
	Mailer providers.Mailer // nil skips the welcome email
	From   string

	DefaultTimezone string
	Logger          *zap.Logger
}

// Signup enables the digest for email, creating the user on first sign-up.
// The welcome email is best effort.
func (s *Service) Signup(ctx context.Context, email string, refreshToken domain.RefreshToken, timeZone string) (domain.DigestUser, error) {
	email = strings.TrimSpace(email)
	if email == "" {
		return domain.DigestUser{}, &domain.ValidationError{Field: "email", Msg: "required"}
	}
	if !emailRe.MatchString(email) {
		return domain.DigestUser{}, &domain.ValidationError{Field: "email", Msg: "invalid format"}
	}
	if err := credential.ValidateRefreshToken(refreshToken); err != nil {
		return domain.DigestUser{}, err
	}

	timeZone = strings.TrimSpace(timeZone)
	if timeZone == "" {
		timeZone = s.DefaultTimezone
	}
	if _, err := tz.Load(timeZone); err != nil {
		return domain.DigestUser{}, err
	}

	u, err := s.Users.UpsertByEmail(ctx, domain.DigestUser{
		Email:        email,
		RefreshToken: refreshToken,
		TimeZone:     timeZone,
		Enabled:      true,
	})
	if err != nil {
		return domain.DigestUser{}, err
	}

	log := logging.OrNop(s.Logger)
	log.Info("user enrolled", zap.String("user", u.ID))

	if s.Mailer != nil {
		err := s.Mailer.Send(ctx, providers.Message{From: s.From, To: u.Email, Subject: welcomeSubject, Text: welcomeBody})
		if err != nil {
			log.Warn("welcome email failed", zap.String("user", u.ID), zap.Error(err))
		}
	}
	return u, nil
}

// Unsubscribe turns the digest off for id.
func (s *Service) Unsubscribe(ctx context.Context, id string) error {
	_, err := s.SetEnabled(ctx, id, false)
	return err
}

// SetEnabled flips the digest flag and returns the updated user.
func (s *Service) SetEnabled(ctx context.Context, id string, enabled bool) (domain.DigestUser, error) {
	if err := ValidateID(id); err != nil {
		return domain.DigestUser{}, err
	}
	u, err := s.Users.SetEnabled(ctx, id, enabled)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DigestUser{}, ErrNotFound
	}
	if err != nil {
		return domain.DigestUser{}, err
	}
	logging.OrNop(s.Logger).Info("digest toggled", zap.String("user", u.ID), zap.Bool("enabled", enabled))
	return u, nil
}

// Status returns the user behind id.
func (s *Service) Status(ctx context.Context, id string) (domain.DigestUser, error) {
	if err := ValidateID(id); err != nil {
		return domain.DigestUser{}, err
	}
	u, err := s.Users.Get(ctx, id)
	if errors.Is(err, store.ErrNotFound) {
		return domain.DigestUser{}, ErrNotFound
	}
	return u, err
}

// ValidateID requires a UUID user id.
func ValidateID(id string) error {
	if strings.TrimSpace(id) == "" {
		return &domain.ValidationError{Field: "id", Msg: "required"}
	}
	if _, err := uuid.Parse(id); err != nil {
		return &domain.ValidationError{Field: "id", Msg: "invalid user id format"}
	}
	return nil
}
