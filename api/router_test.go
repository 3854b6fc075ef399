package api

import (
	"context"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/config"
	"github.com/meghashyamc/docindex/db/kvdb"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/meghashyamc/docindex/validation"
	"github.com/stretchr/testify/require"
)

func setupTestRouter(t *testing.T, assert *require.Assertions) *gin.Engine {
	t.Setenv("KVDB_PATH", filepath.Join(t.TempDir(), "metadata.db"))
	cfg, err := config.Load("test")
	assert.NoError(err)

	testLogger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	kvDB, err := kvdb.New(testLogger, cfg)
	assert.NoError(err)
	suggestDB := searchdb.New(testLogger)
	validator, err := validation.New(testLogger)
	assert.NoError(err)

	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(func() {
		cancel()
		suggestDB.Close()
		kvDB.Close()
	})

	m := metrics.New()
	indexService := index.New(ctx, testLogger, suggestDB, kvDB, m, time.Minute)
	searchService := search.New(testLogger, indexService, suggestDB, nil, m)

	gin.SetMode(gin.TestMode)
	router := newRouter(m)
	setupRoutes(router, routeDependencies{
		logger:        testLogger,
		indexService:  indexService,
		searchService: searchService,
		validator:     validator,
		metrics:       m,
		mode:          termindex.ModeAnd,
	})
	return router
}

func serve(router *gin.Engine, method string, path string) *httptest.ResponseRecorder {
	w := httptest.NewRecorder()
	req := httptest.NewRequest(method, path, nil)
	router.ServeHTTP(w, req)
	return w
}

func TestHealth(t *testing.T) {
	assert := require.New(t)
	router := setupTestRouter(t, assert)

	w := serve(router, http.MethodGet, "/health")
	assert.Equal(http.StatusOK, w.Code)
	assert.Equal("OK", w.Body.String())
}

func TestCORSPreflight(t *testing.T) {
	assert := require.New(t)
	router := setupTestRouter(t, assert)

	w := serve(router, http.MethodOptions, "/search")
	assert.Equal(http.StatusNoContent, w.Code)
	assert.Equal("X-Pagination-Total-Count", w.Header().Get("Access-Control-Expose-Headers"))
}

func TestMetricsRoute(t *testing.T) {
	assert := require.New(t)
	router := setupTestRouter(t, assert)

	serve(router, http.MethodGet, "/health")
	serve(router, http.MethodGet, "/documents/3")
	serve(router, http.MethodGet, "/no-such-route")

	w := serve(router, http.MethodGet, "/metrics")
	assert.Equal(http.StatusOK, w.Code)

	body := w.Body.String()
	assert.True(strings.Contains(body, `http_requests_total{method="GET",path="/health",status="200"} 1`), body)
	assert.True(strings.Contains(body, `http_requests_total{method="GET",path="/documents/:id",status="503"} 1`), body)
	assert.True(strings.Contains(body, `path="unmatched"`), body)
}
