package server

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/JakeFAU/jobboard-harvester/internal/board"
	"github.com/JakeFAU/jobboard-harvester/internal/config"
)

func loadConfig(t *testing.T) *config.Config {
	t.Helper()
	t.Setenv("HARVESTER_PROXY_API_KEY", "test-key")
	cfg, err := config.Load("")
	require.NoError(t, err)
	return &cfg
}

func TestBuildInMemory(t *testing.T) {
	cfg := loadConfig(t)

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	require.NotNil(t, app.Discovery())
	require.NotNil(t, app.Scrape())

	rec := httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/readyz", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	rec = httptest.NewRecorder()
	app.Handler().ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/v1/jobs", nil))
	require.Equal(t, http.StatusOK, rec.Code)
}

func TestMigrateWithoutDatabase(t *testing.T) {
	cfg := loadConfig(t)

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()

	require.ErrorIs(t, app.Migrate(context.Background()), board.ErrConfig)
	require.ErrorIs(t, app.SetCredits(context.Background(), "u1", nil), board.ErrConfig)
}

func TestBuildLocalStorage(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Storage.Backend = "local"
	cfg.Storage.Local.BaseDir = t.TempDir()
	cfg.Storage.SnapshotEmptyPages = true

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	app.Close()
}

func TestBuildUnreachableRedisIsNotFatal(t *testing.T) {
	cfg := loadConfig(t)
	cfg.Redis.Addr = "127.0.0.1:1"

	app, err := Build(context.Background(), cfg, zap.NewNop())
	require.NoError(t, err)
	defer app.Close()
	require.Nil(t, app.cache)
}
