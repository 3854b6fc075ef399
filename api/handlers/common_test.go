// Common test helpers
package handlers

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"net/url"
	"os"
	"path/filepath"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/meghashyamc/docindex/config"
	"github.com/meghashyamc/docindex/db/kvdb"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/services/index"
	"github.com/meghashyamc/docindex/services/search"
	"github.com/meghashyamc/docindex/validation"
	"github.com/stretchr/testify/require"
)

const testPayloadDir = "testdata"

var defaultTestRequestHeaders = map[string]string{"Content-Type": "application/json"}

type testCase struct {
	name             string
	path             string
	requestHeaders   map[string]string
	requestBody      map[string]any
	queryParams      map[string]string
	expectedStatus   int
	expectedResponse map[string]any
}

type testServer struct {
	router       *gin.Engine
	indexService *index.Service
	suggestDB    *searchdb.BleveDB
}

func newTestLogger() logger.Logger {

	opts := &slog.HandlerOptions{
		Level:     slog.LevelDebug,
		AddSource: true,
	}
	handler := slog.NewJSONHandler(os.Stderr, opts)
	return slog.New(handler)
}

// setupTestServer wires every handler against a fresh metadata store. When
// loadIndex is set the fixture payload is live before the first request.
func setupTestServer(t *testing.T, assert *require.Assertions, loadIndex bool) *testServer {
	t.Setenv("KVDB_PATH", filepath.Join(t.TempDir(), "metadata.db"))

	cfg, err := config.Load("test")
	assert.NoError(err, "could not load config")

	testLogger := newTestLogger()

	kvDB, err := kvdb.New(testLogger, cfg)
	assert.NoError(err, "could not create kv database")
	suggestDB := searchdb.New(testLogger)
	validator, err := validation.New(testLogger)
	assert.NoError(err, "could not create validator")

	ctx, cancel := context.WithCancel(context.Background())
	m := metrics.New()
	indexService := index.New(ctx, testLogger, suggestDB, kvDB, m, cfg.GetMaxLoadTime())
	searchService := search.New(testLogger, indexService, suggestDB, search.NewNoopCache(), m)

	if loadIndex {
		_, err := indexService.LoadSync(ctx, mustGetAbsolutePath(testPayloadDir))
		assert.NoError(err, "could not load test search index")
	}

	gin.SetMode(gin.TestMode)
	router := gin.New()

	SetupIndex(router, testLogger, indexService, validator)
	SetupSearch(router, testLogger, searchService, validator, SearchDefaults{Mode: termindex.ModeAnd})
	SetupObjects(router, testLogger, searchService, validator)

	t.Cleanup(func() {
		cancel()
		assert.NoError(suggestDB.Close(), "could not close search database")
		assert.NoError(kvDB.Close(), "could not close kv database")
	})

	return &testServer{router: router, indexService: indexService, suggestDB: suggestDB}
}

func makeTestHTTPRequest(router *gin.Engine, assert *require.Assertions, method string, endpoint string, headers map[string]string, requestBodyMap map[string]interface{}, queryParams map[string]string) *httptest.ResponseRecorder {

	var err error
	w := httptest.NewRecorder()

	if len(queryParams) > 0 {
		values := url.Values{}
		for key, value := range queryParams {
			values.Set(key, value)
		}
		endpoint = endpoint + "?" + values.Encode()
	}
	var jsonBody []byte
	var req *http.Request
	if requestBodyMap != nil {
		jsonBody, err = json.Marshal(requestBodyMap)
		assert.NoError(err)
	}

	slog.Info("Making test request", "method", method, "endpoint", endpoint, "headers", headers, "body", string(jsonBody))

	if len(jsonBody) > 0 {
		req, err = http.NewRequest(method, endpoint, bytes.NewBuffer(jsonBody))
	} else {
		req, err = http.NewRequest(method, endpoint, nil)
	}
	assert.NoError(err)

	for key, value := range headers {
		req.Header.Set(key, value)
	}
	router.ServeHTTP(w, req)

	return w
}

// decodeData unmarshals the data field of a response envelope into target.
func decodeData(assert *require.Assertions, w *httptest.ResponseRecorder, target any) {
	envelope := struct {
		Data   json.RawMessage `json:"data"`
		Errors []string        `json:"errors"`
	}{}
	assert.NoError(json.Unmarshal(w.Body.Bytes(), &envelope), "could not unmarshal gotten response")
	assert.NoError(json.Unmarshal(envelope.Data, target), "could not unmarshal response data")
}

func runTestCases(t *testing.T, server *testServer, method string, testCases []testCase) {
	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			w := makeTestHTTPRequest(server.router, assert, method, testCase.path, testCase.requestHeaders, testCase.requestBody, testCase.queryParams)
			assert.Equal(testCase.expectedStatus, w.Code, "response gotten was %s", w.Body.String())

			if testCase.expectedResponse != nil {
				var responseMap map[string]any
				assert.NoError(json.Unmarshal(w.Body.Bytes(), &responseMap))
				for key, expected := range testCase.expectedResponse {
					assert.Equal(expected, responseMap[key])
				}
			}
		})
	}
}

func mustGetAbsolutePath(relativePath string) string {
	absPath, err := filepath.Abs(relativePath)
	if err != nil {
		panic(err)
	}
	return absPath
}
