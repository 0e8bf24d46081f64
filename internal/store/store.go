// Package store persists enrolled digest users.
package store

import (
	"context"
	"errors"
	"strings"

	"school-secretary/internal/domain"
)

var ErrNotFound = errors.New("store: user not found")

// UserRepository is the keyed user-record store. Emails are unique and
// compared case-insensitively.
type UserRepository interface {
	ListEnabled(ctx context.Context) ([]domain.DigestUser, error)
	Get(ctx context.Context, id string) (domain.DigestUser, error)
	// UpsertByEmail inserts u, or updates the existing record with the same
	// email keeping its id and creation time. The stored record is returned.
	UpsertByEmail(ctx context.Context, u domain.DigestUser) (domain.DigestUser, error)
	// UpdateCredential replaces only the cached access credential of id.
	UpdateCredential(ctx context.Context, id string, cred domain.Credential) error
	// SetEnabled flips only the digest flag of id and returns the stored record.
	SetEnabled(ctx context.Context, id string, enabled bool) (domain.DigestUser, error)
	Close() error
}

// NormalizeEmail is the uniqueness key for a user.
func NormalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}
