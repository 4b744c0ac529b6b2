package app

import (
	"context"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/vadiminshakov/colonyfeed/config"
	"github.com/vadiminshakov/colonyfeed/internal/domain"
)

func testConfig(t *testing.T, backend string) config.Config {
	t.Helper()

	dir := t.TempDir()
	return config.Config{
		// nothing listens on port 1, so every connect fails fast
		RPCEndpoint:      "http://127.0.0.1:1",
		ColonyAddress:    common.HexToAddress("0x364B3153A24bb9ECa28B8c7aCeB15E3942eb4fc5"),
		ReputationOracle: "http://127.0.0.1:1/reputation",
		ReputationRPS:    10,
		Assets:           domain.DefaultAssets(),
		Domains:          domain.DefaultSubdivisions(),
		Listen:           "127.0.0.1:0",
		Funds:            config.FeedConfig{Interval: time.Hour, MaxAge: time.Hour, CachePath: filepath.Join(dir, "funds.json")},
		Users:            config.FeedConfig{Interval: time.Hour, MaxAge: time.Hour, CachePath: filepath.Join(dir, "users.json")},
		Storage:          config.StorageConfig{Backend: backend, WALDir: filepath.Join(dir, "wal")},
		FetchTimeout:     time.Second,
		MaxConcurrency:   2,
		Retry:            config.RetryConfig{MaxRetries: 0, InitialInterval: time.Millisecond},
	}
}

func TestNew_ServesEmptyStores(t *testing.T) {
	a, err := New(testConfig(t, config.BackendFile), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	for _, target := range []string{"/api/domains", "/api/users"} {
		rec := httptest.NewRecorder()
		a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
		assert.Equal(t, http.StatusInternalServerError, rec.Code, target)
	}

	rec := httptest.NewRecorder()
	a.Server().Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/healthz", nil))
	assert.Equal(t, http.StatusOK, rec.Code)
}

func TestNew_WALBackend(t *testing.T) {
	cfg := testConfig(t, config.BackendWAL)
	a, err := New(cfg, zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	for _, name := range []string{"funds", "users"} {
		info, err := os.Stat(filepath.Join(cfg.Storage.WALDir, name))
		require.NoError(t, err)
		assert.True(t, info.IsDir())
	}
}

func TestNew_UnknownBackend(t *testing.T) {
	_, err := New(testConfig(t, "redis"), zap.NewNop())
	assert.Error(t, err)
}

func TestRun_FailedCyclesKeepServing(t *testing.T) {
	a, err := New(testConfig(t, config.BackendFile), zap.NewNop())
	require.NoError(t, err)
	defer a.Close()

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		done <- a.Run(ctx)
	}()

	require.Eventually(t, func() bool {
		return a.funds.Status().Failures >= 1 && a.users.Status().Failures >= 1
	}, 5*time.Second, 10*time.Millisecond)

	assert.Contains(t, a.funds.Status().LastError, "connect to colony")
	_, err = os.Stat(a.cfg.Funds.CachePath)
	assert.True(t, os.IsNotExist(err), "failed cycles must not create the cache")

	cancel()
	select {
	case err := <-done:
		assert.NoError(t, err)
	case <-time.After(5 * time.Second):
		t.Fatal("run did not return after cancel")
	}
}
