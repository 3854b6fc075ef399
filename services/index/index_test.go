package index

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/meghashyamc/docindex/db/kvdb"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/payload"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/require"
)

const (
	testPayloadPath = "testdata/searchindex.js"
	brokenPath      = "testdata/broken.js"
)

type memoryStore struct {
	mu   sync.Mutex
	data map[string]map[string]string
}

func newMemoryStore() *memoryStore {
	return &memoryStore{data: map[string]map[string]string{}}
}

func (m *memoryStore) Set(bucket string, key string, value string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.data[bucket] == nil {
		m.data[bucket] = map[string]string{}
	}
	m.data[bucket][key] = value
	return nil
}

func (m *memoryStore) Get(bucket string, key string) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	value, ok := m.data[bucket][key]
	if !ok {
		return "", &kvdb.NotFoundError{Bucket: bucket, Key: key}
	}
	return value, nil
}

func (m *memoryStore) Delete(bucket string, key string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	delete(m.data[bucket], key)
	return nil
}

func (m *memoryStore) GetAllKeys(bucket string) ([]string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	keys := make([]string, 0, len(m.data[bucket]))
	for key := range m.data[bucket] {
		keys = append(keys, key)
	}
	sort.Strings(keys)
	return keys, nil
}

type testService struct {
	*Service
	suggest *searchdb.BleveDB
	metrics *metrics.Metrics
}

func newTestService(t *testing.T) *testService {
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)

	logger := slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
	suggest := searchdb.New(logger)
	t.Cleanup(func() { suggest.Close() })
	m := metrics.New()

	return &testService{
		Service: New(ctx, logger, suggest, newMemoryStore(), m, time.Minute),
		suggest: suggest,
		metrics: m,
	}
}

func writePayload(t *testing.T, path string) {
	data, err := os.ReadFile(testPayloadPath)
	require.NoError(t, err)
	require.NoError(t, os.MkdirAll(filepath.Dir(path), 0o755))
	require.NoError(t, os.WriteFile(path, data, 0o644))
}

func TestCurrentBeforeLoad(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	snapshot, err := s.Current()
	assert.Nil(snapshot)
	assert.ErrorIs(err, ErrNoSnapshot)
}

func TestLoadSync(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	snapshot, err := s.LoadSync(context.Background(), testPayloadPath)
	assert.NoError(err)
	assert.Equal(4, snapshot.Index.Stats().Documents)

	current, err := s.Current()
	assert.NoError(err)
	assert.Same(snapshot, current)

	count, err := s.suggest.GetDocCount()
	assert.NoError(err)
	assert.Equal(uint64(4+11), count, "pages and objects are suggestible")

	assert.Equal(float64(4), testutil.ToFloat64(s.metrics.IndexDocuments))
	assert.Equal(float64(13), testutil.ToFloat64(s.metrics.IndexTerms))
	assert.Equal(float64(11), testutil.ToFloat64(s.metrics.IndexObjects))
	assert.Equal(float64(1), testutil.ToFloat64(s.metrics.IndexLoadsTotal.WithLabelValues(metrics.LoadStatusSuccess)))

	history, err := s.History()
	assert.NoError(err)
	assert.Len(history, 1)
	assert.Equal(snapshot.Generation, history[0].Generation)
	assert.Equal(snapshot.Checksum, history[0].Checksum)
	assert.Equal(testPayloadPath, history[0].Source)
	assert.Equal(11, history[0].Objects)
}

func TestReloadSwapsSnapshot(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	first, err := s.LoadSync(context.Background(), testPayloadPath)
	assert.NoError(err)
	second, err := s.LoadSync(context.Background(), testPayloadPath)
	assert.NoError(err)

	assert.NotEqual(first.Generation, second.Generation)
	current, err := s.Current()
	assert.NoError(err)
	assert.Same(second, current)

	// The replaced snapshot still answers queries for readers holding it
	assert.Equal([]termindex.DocID{0, 1, 2, 3}, first.Index.Lookup("ocr"))

	history, err := s.History()
	assert.NoError(err)
	assert.Len(history, 2)
	assert.False(history[0].LoadedAt.Before(history[1].LoadedAt), "history is newest first")
}

func TestFailedLoadKeepsLiveSnapshot(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	live, err := s.LoadSync(context.Background(), testPayloadPath)
	assert.NoError(err)

	_, err = s.LoadSync(context.Background(), brokenPath)
	assert.ErrorIs(err, payload.ErrMalformedIndex)

	_, err = s.LoadSync(context.Background(), filepath.Join(t.TempDir(), "missing"))
	assert.ErrorIs(err, payload.ErrIndexNotFound)

	current, err := s.Current()
	assert.NoError(err)
	assert.Same(live, current)
	assert.Equal(float64(2), testutil.ToFloat64(s.metrics.IndexLoadsTotal.WithLabelValues(metrics.LoadStatusFailure)))
}

func TestLoadAsync(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	assert.NoError(s.Load(testPayloadPath, "req-ok"))
	assert.Eventually(func() bool {
		status, err := s.Status("req-ok")
		return err == nil && status == ProgressStatusComplete
	}, 5*time.Second, 10*time.Millisecond)

	_, err := s.Current()
	assert.NoError(err)

	assert.NoError(s.Load(brokenPath, "req-broken"), "a finished load frees the service before reporting its status")
	assert.Eventually(func() bool {
		status, err := s.Status("req-broken")
		return err == nil && status == ProgressStatusFailed
	}, 5*time.Second, 10*time.Millisecond)

	assert.NoError(s.Load(testPayloadPath, "req-after-failure"))
	assert.Eventually(func() bool {
		status, err := s.Status("req-after-failure")
		return err == nil && status == ProgressStatusComplete
	}, 5*time.Second, 10*time.Millisecond)
}

func TestLoadAfterServiceStopped(t *testing.T) {
	assert := require.New(t)

	ctx, cancel := context.WithCancel(context.Background())
	logger := slog.New(slog.NewJSONHandler(os.Stderr, nil))
	suggest := searchdb.New(logger)
	t.Cleanup(func() { suggest.Close() })
	s := New(ctx, logger, suggest, newMemoryStore(), metrics.New(), time.Minute)

	cancel()
	var requestID string
	attempt := 0
	assert.Eventually(func() bool {
		attempt++
		requestID = fmt.Sprintf("req-stopped-%d", attempt)
		return errors.Is(s.Load(testPayloadPath, requestID), ErrServiceStopped)
	}, 5*time.Second, 10*time.Millisecond)
	assert.False(s.busy.Load(), "a rejected load does not hold the service")

	status, err := s.Status(requestID)
	assert.NoError(err)
	assert.Equal(ProgressStatusFailed, status)
}

func TestHistoryIsPruned(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)
	s.historyLimit = 2

	var generations []string
	for range 3 {
		snapshot, err := s.LoadSync(context.Background(), testPayloadPath)
		assert.NoError(err)
		generations = append(generations, snapshot.Generation)
	}

	history, err := s.History()
	assert.NoError(err)
	assert.Len(history, 2)
	kept := []string{history[0].Generation, history[1].Generation}
	assert.ElementsMatch(generations[1:], kept)

	_, err = s.metadataStore.Get(kvdb.SnapshotsBucket, generations[0])
	assert.ErrorIs(err, kvdb.ErrNotFound)
}

func TestLoadWhileBusy(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	s.busy.Store(true)
	assert.ErrorIs(s.Load(testPayloadPath, "req-1"), ErrLoadInProgress)
	_, err := s.LoadSync(context.Background(), testPayloadPath)
	assert.ErrorIs(err, ErrLoadInProgress)

	_, err = s.Status("req-1")
	assert.Error(err, "rejected requests are not recorded")
}

func TestStatusUnknownRequest(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	_, err := s.Status("does-not-exist")
	assert.ErrorIs(err, kvdb.ErrNotFound)
}

func TestDiscoverPayload(t *testing.T) {
	s := newTestService(t)

	testCases := []struct {
		name     string
		files    []string
		expected string
	}{
		{
			name:     "RootFile",
			files:    []string{"searchindex.js"},
			expected: "searchindex.js",
		},
		{
			name:     "ShallowestWins",
			files:    []string{"docs/build/html/searchindex.js", "docs/html/searchindex.js"},
			expected: "docs/html/searchindex.js",
		},
		{
			name:     "JSONVariant",
			files:    []string{"out/searchindex.json"},
			expected: "out/searchindex.json",
		},
		{
			name:     "HiddenAndStaticFoldersSkipped",
			files:    []string{".cache/searchindex.js", "_static/searchindex.js", "site/html/searchindex.js"},
			expected: "site/html/searchindex.js",
		},
	}

	for _, testCase := range testCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			root := t.TempDir()
			for _, file := range testCase.files {
				writePayload(t, filepath.Join(root, file))
			}

			found, err := DiscoverPayload(s.logger, root)
			assert.NoError(err)
			assert.Equal(filepath.Join(root, testCase.expected), found)
		})
	}
}

func TestDiscoverPayloadErrors(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	root := t.TempDir()
	writePayload(t, filepath.Join(root, ".git", "searchindex.js"))

	_, err := DiscoverPayload(s.logger, root)
	assert.ErrorIs(err, payload.ErrIndexNotFound)

	_, err = DiscoverPayload(s.logger, filepath.Join(root, "missing"))
	assert.ErrorIs(err, payload.ErrIndexNotFound)

	file := filepath.Join(root, "custom.js")
	writePayload(t, file)
	found, err := DiscoverPayload(s.logger, file)
	assert.NoError(err)
	assert.Equal(file, found, "a file path is used as is")
}

func TestLoadFromDirectory(t *testing.T) {
	assert := require.New(t)
	s := newTestService(t)

	root := t.TempDir()
	writePayload(t, filepath.Join(root, "build", "html", "searchindex.js"))

	snapshot, err := s.LoadSync(context.Background(), root)
	assert.NoError(err)
	assert.Equal(filepath.Join(root, "build", "html", "searchindex.js"), snapshot.Source)
}
