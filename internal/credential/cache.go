// Package credential keeps a user's short-lived access token fresh by
// exchanging the long-lived refresh token with the identity provider.
package credential

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/oauth2"

	"school-secretary/internal/domain"
	"school-secretary/internal/logging"
)

// Updater persists a refreshed credential and nothing else of the user.
type Updater interface {
	UpdateCredential(ctx context.Context, id string, cred domain.Credential) error
}

type Cache struct {
	OAuth  oauth2.Config
	HTTP   *http.Client
	Repo   Updater
	Buffer time.Duration
	Now    func() time.Time
	Logger *zap.Logger
}

// New builds a Cache whose exchange goes to tokenURL with client credentials in the form body.
func New(clientID, clientSecret, tokenURL string, httpClient *http.Client, repo Updater, buffer time.Duration, logger *zap.Logger) *Cache {
	return &Cache{
		OAuth: oauth2.Config{
			ClientID:     clientID,
			ClientSecret: clientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: tokenURL, AuthStyle: oauth2.AuthStyleInParams},
		},
		HTTP:   httpClient,
		Repo:   repo,
		Buffer: buffer,
		Logger: logger,
	}
}

func (c *Cache) now() time.Time {
	if c.Now != nil {
		return c.Now()
	}
	return time.Now()
}

// GetValidAccessToken returns the cached access token while now+Buffer is
// before its expiry. Otherwise it performs exactly one refresh exchange,
// stores the credential on u and in the repository, and returns the new token.
func (c *Cache) GetValidAccessToken(ctx context.Context, u *domain.DigestUser) (string, error) {
	if err := ValidateRefreshToken(u.RefreshToken); err != nil {
		return "", err
	}

	now := c.now()
	if u.Credential.ValidAt(now, c.Buffer) {
		return u.Credential.AccessToken, nil
	}

	tok, err := c.exchange(ctx, u.RefreshToken)
	if err != nil {
		return "", err
	}

	expiresAt := tok.Expiry
	if tok.ExpiresIn > 0 {
		expiresAt = now.Add(time.Duration(tok.ExpiresIn) * time.Second)
	}
	u.Credential = domain.Credential{AccessToken: tok.AccessToken, ExpiresAt: expiresAt}

	log := logging.OrNop(c.Logger)
	if c.Repo != nil {
		if err := c.Repo.UpdateCredential(ctx, u.ID, u.Credential); err != nil {
			// The token is still usable for this run; the next run refreshes again.
			log.Warn("persist refreshed credential failed", zap.String("user", u.ID), zap.Error(err))
		}
	}
	log.Debug("access token refreshed", zap.String("user", u.ID), zap.Time("expires_at", expiresAt))
	return tok.AccessToken, nil
}

func (c *Cache) exchange(ctx context.Context, rt domain.RefreshToken) (*oauth2.Token, error) {
	if c.HTTP != nil {
		ctx = context.WithValue(ctx, oauth2.HTTPClient, c.HTTP)
	}
	tok, err := c.OAuth.TokenSource(ctx, &oauth2.Token{RefreshToken: string(rt)}).Token()
	if err != nil {
		var rerr *oauth2.RetrieveError
		if errors.As(err, &rerr) {
			status := 0
			if rerr.Response != nil {
				status = rerr.Response.StatusCode
			}
			return nil, &domain.AuthError{Status: status, Body: string(rerr.Body), Msg: "token refresh failed"}
		}
		return nil, &domain.AuthError{Msg: "token refresh failed: " + err.Error()}
	}
	if tok.AccessToken == "" {
		return nil, &domain.AuthError{Msg: "token refresh failed: response missing access_token"}
	}
	return tok, nil
}

// ValidateRefreshToken rejects a missing refresh token and one that is really
// a short-lived access token.
func ValidateRefreshToken(rt domain.RefreshToken) error {
	if strings.TrimSpace(string(rt)) == "" {
		return &domain.ValidationError{Field: "refresh_token", Msg: "required"}
	}
	if rt.LooksShortLived() {
		return &domain.ValidationError{Field: "refresh_token", Msg: "got a short-lived access token, a refresh token is required"}
	}
	return nil
}
