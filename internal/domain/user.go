package domain

import (
	"strings"
	"time"
)

// RefreshToken is the long-lived exchange credential. It never leaves the
// credential cache or the user repository.
type RefreshToken string

// LooksShortLived reports whether the value is shaped like a Google access
// token rather than a refresh token.
func (t RefreshToken) LooksShortLived() bool {
	return strings.HasPrefix(strings.TrimSpace(string(t)), "ya29.")
}

// Credential is a short-lived bearer token with its absolute expiry.
type Credential struct {
	AccessToken string
	ExpiresAt   time.Time
}

// ValidAt reports whether the credential can be used at now with the given buffer.
func (c Credential) ValidAt(now time.Time, buffer time.Duration) bool {
	if c.AccessToken == "" || c.ExpiresAt.IsZero() {
		return false
	}
	return now.Add(buffer).Before(c.ExpiresAt)
}

// DigestUser is an enrolled digest recipient.
type DigestUser struct {
	ID           string       `json:"id"`
	Email        string       `json:"email"`
	RefreshToken RefreshToken `json:"refresh_token"`
	Credential   Credential   `json:"credential"`
	TimeZone     string       `json:"timezone"`
	Enabled      bool         `json:"enabled"`
	CreatedAt    time.Time    `json:"created_at"`
	UpdatedAt    time.Time    `json:"updated_at"`
}
