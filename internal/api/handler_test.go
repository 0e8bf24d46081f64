package api

import (
	"bytes"
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"
	"github.com/stretchr/testify/require"

	"school-secretary/internal/digest"
	"school-secretary/internal/domain"
	"school-secretary/internal/enroll"
	"school-secretary/internal/store"
	"school-secretary/internal/sync"
)

type fakeSyncer struct {
	res    sync.Result
	err    error
	user   *domain.DigestUser
	course int64
}

func (f *fakeSyncer) SyncCourse(_ context.Context, u *domain.DigestUser, courseID int64) (sync.Result, error) {
	f.user, f.course = u, courseID
	return f.res, f.err
}

type fakeDigest struct {
	sum digest.Summary
}

func (f *fakeDigest) Run(context.Context) (digest.Summary, error) { return f.sum, nil }

func newTestRouter(t *testing.T, syncer CourseSyncer, dg DigestTrigger, adminToken string) (*gin.Engine, *enroll.Service) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	s, err := store.OpenBolt(filepath.Join(t.TempDir(), "users.db"))
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })

	svc := &enroll.Service{Users: s, DefaultTimezone: "America/Los_Angeles"}
	h := &Handler{Enroll: svc, Sync: syncer, Digest: dg}
	return NewRouter(h, adminToken, nil), svc
}

func do(r http.Handler, method, path string, body any, header map[string]string) *httptest.ResponseRecorder {
	var buf bytes.Buffer
	if body != nil {
		_ = json.NewEncoder(&buf).Encode(body)
	}
	req := httptest.NewRequest(method, path, &buf)
	req.Header.Set("Content-Type", "application/json")
	for k, v := range header {
		req.Header.Set(k, v)
	}
	w := httptest.NewRecorder()
	r.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSyncer{}, &fakeDigest{}, "")
	w := do(r, http.MethodGet, "/health", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), "ok")
}

func TestSignupAndSettings(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSyncer{}, &fakeDigest{}, "")

	w := do(r, http.MethodPost, "/api/signup", gin.H{"email": "s@example.com", "google_refresh_token": "1//r"}, nil)
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())

	var out struct {
		Success bool   `json:"success"`
		UserID  string `json:"user_id"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &out))
	require.True(t, out.Success)

	w = do(r, http.MethodGet, "/api/settings/"+out.UserID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"enabled":true`)
	require.Contains(t, w.Body.String(), `"timezone":"America/Los_Angeles"`)

	w = do(r, http.MethodPost, "/api/settings/"+out.UserID+"/disable", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"enabled":false`)

	w = do(r, http.MethodPost, "/api/settings/"+out.UserID+"/enable", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.Contains(t, w.Body.String(), `"enabled":true`)
}

func TestSignupRejectsBadInput(t *testing.T) {
	r, _ := newTestRouter(t, &fakeSyncer{}, &fakeDigest{}, "")

	w := do(r, http.MethodPost, "/api/signup", gin.H{"email": "nope", "google_refresh_token": "1//r"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "invalid email")

	w = do(r, http.MethodPost, "/api/signup", gin.H{"email": "a@example.com", "google_refresh_token": "ya29.access"}, nil)
	require.Equal(t, http.StatusBadRequest, w.Code)
	require.Contains(t, w.Body.String(), "refresh_token")
}

func TestUnsubscribe(t *testing.T) {
	r, svc := newTestRouter(t, &fakeSyncer{}, &fakeDigest{}, "")
	u, err := svc.Signup(context.Background(), "a@example.com", "1//r", "UTC")
	require.NoError(t, err)

	w := do(r, http.MethodGet, "/unsubscribe?id="+u.ID, nil, nil)
	require.Equal(t, http.StatusOK, w.Code)

	got, err := svc.Status(context.Background(), u.ID)
	require.NoError(t, err)
	require.False(t, got.Enabled)

	require.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/unsubscribe", nil, nil).Code)
	require.Equal(t, http.StatusBadRequest, do(r, http.MethodGet, "/unsubscribe?id=123", nil, nil).Code)
	require.Equal(t, http.StatusNotFound, do(r, http.MethodGet, "/unsubscribe?id="+uuid.NewString(), nil, nil).Code)
}

func TestSyncCourse(t *testing.T) {
	syncer := &fakeSyncer{res: sync.Result{SuccessCount: 2, Errors: []string{}}}
	r, svc := newTestRouter(t, syncer, &fakeDigest{}, "secret")
	u, err := svc.Signup(context.Background(), "a@example.com", "1//r", "UTC")
	require.NoError(t, err)

	body := gin.H{"user_id": u.ID, "course_id": 42}
	require.Equal(t, http.StatusUnauthorized, do(r, http.MethodPost, "/api/sync", body, nil).Code)

	w := do(r, http.MethodPost, "/api/sync", body, map[string]string{"X-Admin-Token": "secret"})
	require.Equal(t, http.StatusOK, w.Code, w.Body.String())
	require.Contains(t, w.Body.String(), `"successCount":2`)
	require.Equal(t, int64(42), syncer.course)
	require.Equal(t, u.ID, syncer.user.ID)

	syncer.err = &domain.AuthError{Status: 400, Body: "invalid_grant", Msg: "token refresh failed"}
	w = do(r, http.MethodPost, "/api/sync", body, map[string]string{"X-Admin-Token": "secret"})
	require.Equal(t, http.StatusUnauthorized, w.Code)
	require.Contains(t, w.Body.String(), "invalid_grant")
}

func TestRunDigest(t *testing.T) {
	dg := &fakeDigest{sum: digest.Summary{Processed: 3, Failed: 1, Total: 4, Errors: []string{"x@example.com: boom"}}}
	r, _ := newTestRouter(t, &fakeSyncer{}, dg, "")

	w := do(r, http.MethodPost, "/api/digest/run", nil, nil)
	require.Equal(t, http.StatusOK, w.Code)
	require.JSONEq(t, `{"processed":3,"failed":1,"total":4,"errors":["x@example.com: boom"]}`, w.Body.String())
}
