package app

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"school-secretary/internal/config"
)

func TestNewWiresBoltStack(t *testing.T) {
	cfg := config.Default()
	cfg.BoltPath = filepath.Join(t.TempDir(), "users.db")
	cfg.DigestConcurrency = 3
	cfg.Normalize()

	a, err := New(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	require.NotNil(t, a.Sync.Engine)
	require.Equal(t, 3, a.Digest.Concurrency)
	require.Equal(t, cfg.PublicBaseURL, a.Digest.PublicBaseURL)
	require.Equal(t, cfg.HTTPMaxAttempts, a.Canvas.Policy.MaxAttempts)
	require.Equal(t, "America/Los_Angeles", a.Enroll.DefaultTimezone)
}

func TestOpenStoreUnknownDriver(t *testing.T) {
	cfg := config.Default()
	cfg.StoreDriver = "sqlite"
	_, err := OpenStore(context.Background(), cfg)
	require.Error(t, err)
}
