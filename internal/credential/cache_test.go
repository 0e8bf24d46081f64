package credential

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"school-secretary/internal/domain"
	"school-secretary/internal/store"
)

type credentialUpdate struct {
	id   string
	cred domain.Credential
}

type memRepo struct {
	updates []credentialUpdate
}

func (m *memRepo) UpdateCredential(_ context.Context, id string, cred domain.Credential) error {
	m.updates = append(m.updates, credentialUpdate{id: id, cred: cred})
	return nil
}

func tokenServer(t *testing.T, status int, body string) (*httptest.Server, *int32) {
	t.Helper()
	var calls int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		assert.NoError(t, r.ParseForm())
		assert.Equal(t, "refresh_token", r.PostForm.Get("grant_type"))
		assert.Equal(t, "1//refresh", r.PostForm.Get("refresh_token"))
		assert.Equal(t, "client-id", r.PostForm.Get("client_id"))
		assert.Equal(t, "client-secret", r.PostForm.Get("client_secret"))

		w.Header().Set("Content-Type", "application/json")
		w.WriteHeader(status)
		w.Write([]byte(body))
	}))
	t.Cleanup(srv.Close)
	return srv, &calls
}

func newCache(srv *httptest.Server, repo Updater, now time.Time) *Cache {
	c := New("client-id", "client-secret", srv.URL, srv.Client(), repo, time.Minute, nil)
	c.Now = func() time.Time { return now }
	return c
}

func TestFreshTokenIsReturnedWithoutRefresh(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"new","expires_in":3600}`)
	repo := &memRepo{}
	c := newCache(srv, repo, now)

	u := &domain.DigestUser{
		ID:           "u1",
		RefreshToken: "1//refresh",
		Credential:   domain.Credential{AccessToken: "cached", ExpiresAt: now.Add(10 * time.Minute)},
	}
	got, err := c.GetValidAccessToken(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, "cached", got)
	require.Equal(t, int32(0), atomic.LoadInt32(calls))
	require.Empty(t, repo.updates)
}

func TestExpiredTokenRefreshesOnceThenCaches(t *testing.T) {
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"new","expires_in":3600,"token_type":"Bearer"}`)
	repo := &memRepo{}
	c := newCache(srv, repo, now)

	u := &domain.DigestUser{
		ID:           "u1",
		RefreshToken: "1//refresh",
		Credential:   domain.Credential{AccessToken: "old", ExpiresAt: now.Add(30 * time.Second)},
	}
	got, err := c.GetValidAccessToken(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, "new", got)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))
	require.Equal(t, now.Add(time.Hour), u.Credential.ExpiresAt)
	require.Equal(t, domain.RefreshToken("1//refresh"), u.RefreshToken)

	require.Len(t, repo.updates, 1)
	require.Equal(t, "u1", repo.updates[0].id)
	require.Equal(t, "new", repo.updates[0].cred.AccessToken)

	got, err = c.GetValidAccessToken(context.Background(), u)
	require.NoError(t, err)
	require.Equal(t, "new", got)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))
}

func TestRefreshFailureIsAuthError(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusBadRequest, `{"error":"invalid_grant","error_description":"Token has been expired or revoked."}`)
	c := newCache(srv, &memRepo{}, time.Now())

	u := &domain.DigestUser{ID: "u1", RefreshToken: "1//refresh"}
	_, err := c.GetValidAccessToken(context.Background(), u)

	var aerr *domain.AuthError
	require.True(t, errors.As(err, &aerr), "got %v", err)
	require.Equal(t, http.StatusBadRequest, aerr.Status)
	require.Contains(t, aerr.Body, "invalid_grant")
	require.Contains(t, err.Error(), "400")
}

func TestMissingAccessTokenIsAuthError(t *testing.T) {
	srv, _ := tokenServer(t, http.StatusOK, `{"expires_in":3600}`)
	c := newCache(srv, &memRepo{}, time.Now())

	_, err := c.GetValidAccessToken(context.Background(), &domain.DigestUser{RefreshToken: "1//refresh"})

	var aerr *domain.AuthError
	require.True(t, errors.As(err, &aerr), "got %v", err)
}

func TestShortLivedOrMissingRefreshTokenFailsFast(t *testing.T) {
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"new","expires_in":3600}`)
	c := newCache(srv, &memRepo{}, time.Now())

	for _, rt := range []domain.RefreshToken{"", "ya29.a0Af-short-lived"} {
		_, err := c.GetValidAccessToken(context.Background(), &domain.DigestUser{RefreshToken: rt})
		var verr *domain.ValidationError
		require.True(t, errors.As(err, &verr), "refresh token %q: got %v", rt, err)
		require.Equal(t, "refresh_token", verr.Field)
	}
	require.Equal(t, int32(0), atomic.LoadInt32(calls))
}

func TestRefreshFromStaleSnapshotKeepsUnsubscribe(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2026, 10, 19, 8, 0, 0, 0, time.UTC)
	srv, calls := tokenServer(t, http.StatusOK, `{"access_token":"new","expires_in":3600}`)

	users, err := store.OpenBolt(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { users.Close() })

	u, err := users.UpsertByEmail(ctx, domain.DigestUser{Email: "a@example.com", RefreshToken: "1//refresh", TimeZone: "UTC", Enabled: true})
	require.NoError(t, err)

	enabled, err := users.ListEnabled(ctx)
	require.NoError(t, err)
	require.Len(t, enabled, 1)
	snapshot := enabled[0]

	_, err = users.SetEnabled(ctx, u.ID, false)
	require.NoError(t, err)

	got, err := newCache(srv, users, now).GetValidAccessToken(ctx, &snapshot)
	require.NoError(t, err)
	require.Equal(t, "new", got)
	require.Equal(t, int32(1), atomic.LoadInt32(calls))

	stored, err := users.Get(ctx, u.ID)
	require.NoError(t, err)
	require.False(t, stored.Enabled, "refresh must not re-enable an unsubscribed user")
	require.Equal(t, "new", stored.Credential.AccessToken)
	require.True(t, stored.Credential.ExpiresAt.Equal(now.Add(time.Hour)))
}
