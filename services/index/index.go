package index

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/docindex/db/kvdb"
	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/payload"
)

// SuggestIndexer represents the search database operations needed when a
// new snapshot goes live
type SuggestIndexer interface {
	Rebuild(entries []searchdb.Entry) error
}

const (
	ProgressStatusQueued       = 0
	ProgressStatusDiscovered   = 10
	ProgressStatusParsed       = 50
	ProgressStatusSuggestBuilt = 80
	ProgressStatusComplete     = 100
	ProgressStatusFailed       = -1

	defaultMaxLoadTime = 5 * time.Minute
	// snapshot records kept by History, older ones are pruned
	defaultHistoryLimit = 20
)

var (
	ErrLoadInProgress = errors.New("index load already in progress")
	ErrNoSnapshot     = errors.New("no search index loaded")
	ErrServiceStopped = errors.New("index service stopped")
)

type Service struct {
	logger        logger.Logger
	suggest       SuggestIndexer
	metadataStore MetadataStore
	metrics       *metrics.Metrics
	maxLoadTime   time.Duration
	historyLimit  int

	current atomic.Pointer[payload.Snapshot]
	busy    atomic.Bool
	loadC   chan loadRequest
	done    <-chan struct{}
}

type loadRequest struct {
	path      string
	requestID string
}

func New(ctx context.Context, logger logger.Logger, suggest SuggestIndexer, metadataStore MetadataStore, m *metrics.Metrics, maxLoadTime time.Duration) *Service {
	if maxLoadTime <= 0 {
		maxLoadTime = defaultMaxLoadTime
	}

	indexService := &Service{
		logger:        logger,
		suggest:       suggest,
		metadataStore: metadataStore,
		metrics:       m,
		maxLoadTime:   maxLoadTime,
		historyLimit:  defaultHistoryLimit,
		loadC:         make(chan loadRequest),
		done:          ctx.Done(),
	}

	go indexService.run(ctx)
	return indexService
}

// Load queues a load of the payload at path. Progress is reported under
// requestID and can be read with Status.
func (s *Service) Load(path string, requestID string) error {
	if !s.busy.CompareAndSwap(false, true) {
		s.logger.Warn("request to load index while a load is already in progress", "request_id", requestID)
		return ErrLoadInProgress
	}

	s.setRequestStatus(requestID, ProgressStatusQueued)
	// This leads to s.load being called
	select {
	case s.loadC <- loadRequest{path: path, requestID: requestID}:
		return nil
	case <-s.done:
		s.busy.Store(false)
		s.setRequestStatus(requestID, ProgressStatusFailed)
		return ErrServiceStopped
	}
}

// LoadSync loads the payload at path and makes it live before returning.
func (s *Service) LoadSync(ctx context.Context, path string) (*payload.Snapshot, error) {
	if !s.busy.CompareAndSwap(false, true) {
		return nil, ErrLoadInProgress
	}

	loadCtx, cancel := context.WithTimeout(ctx, s.maxLoadTime)
	defer cancel()

	return s.load(loadCtx, path, uuid.New().String())
}

// Current returns the live snapshot.
func (s *Service) Current() (*payload.Snapshot, error) {
	snapshot := s.current.Load()
	if snapshot == nil {
		return nil, ErrNoSnapshot
	}
	return snapshot, nil
}

// Status retrieves the progress status of a load request
func (s *Service) Status(requestID string) (int, error) {
	value, err := s.metadataStore.Get(kvdb.RequestsBucket, requestID)
	if err != nil {
		return 0, fmt.Errorf("request not found: %w", err)
	}

	status, err := strconv.Atoi(value)
	if err != nil {
		return 0, fmt.Errorf("invalid status value: %w", err)
	}

	return status, nil
}

// History lists every snapshot that went live, newest first.
func (s *Service) History() ([]kvdb.SnapshotRecord, error) {
	keys, err := s.metadataStore.GetAllKeys(kvdb.SnapshotsBucket)
	if err != nil {
		s.logger.Error("failed to get all keys from database", "err", err.Error())
		return nil, fmt.Errorf("failed to get all keys from database: %w", err)
	}

	records := make([]kvdb.SnapshotRecord, 0, len(keys))
	for _, key := range keys {
		value, err := s.metadataStore.Get(kvdb.SnapshotsBucket, key)
		if err != nil {
			return nil, err
		}

		var record kvdb.SnapshotRecord
		if err := json.Unmarshal([]byte(value), &record); err != nil {
			s.logger.Error("failed to unmarshal snapshot record", "generation", key, "err", err.Error())
			return nil, fmt.Errorf("failed to unmarshal snapshot record %s: %w", key, err)
		}
		records = append(records, record)
	}

	sort.Slice(records, func(i, j int) bool {
		return records[i].LoadedAt.After(records[j].LoadedAt)
	})

	return records, nil
}

func (s *Service) run(ctx context.Context) {
	for {
		select {
		case req := <-s.loadC:
			loadCtx, cancel := context.WithTimeout(ctx, s.maxLoadTime)
			s.load(loadCtx, req.path, req.requestID)
			cancel()
		case <-ctx.Done():
			s.logger.Info("index service stopped", "reason", ctx.Err())
			return
		}
	}
}

// load runs one load and frees the busy flag. The flag is cleared before
// the final status is written, so a client that sees the status can load
// again straight away.
func (s *Service) load(ctx context.Context, path string, requestID string) (*payload.Snapshot, error) {
	snapshot, err := s.doLoad(ctx, path, requestID)

	status := ProgressStatusComplete
	if err != nil {
		s.logger.Error("failed to load index", "request_id", requestID, "path", path, "err", err.Error())
		s.metrics.IndexLoadsTotal.WithLabelValues(metrics.LoadStatusFailure).Inc()
		status = ProgressStatusFailed
		snapshot = nil
	} else {
		s.metrics.IndexLoadsTotal.WithLabelValues(metrics.LoadStatusSuccess).Inc()
	}

	s.busy.Store(false)
	s.setRequestStatus(requestID, status)
	return snapshot, err
}

func (s *Service) doLoad(ctx context.Context, path string, requestID string) (*payload.Snapshot, error) {
	s.logger.Info("loading search index", "request_id", requestID, "path", path)

	payloadPath, err := DiscoverPayload(s.logger, path)
	if err != nil {
		return nil, err
	}
	s.setRequestStatus(requestID, ProgressStatusDiscovered)

	snapshot, err := s.parse(ctx, payloadPath)
	if err != nil {
		return nil, err
	}
	s.setRequestStatus(requestID, ProgressStatusParsed)

	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := s.suggest.Rebuild(searchdb.NewEntries(snapshot.Index)); err != nil {
		return nil, fmt.Errorf("failed to rebuild suggest index: %w", err)
	}
	s.setRequestStatus(requestID, ProgressStatusSuggestBuilt)

	s.current.Store(snapshot)

	stats := snapshot.Index.Stats()
	s.metrics.IndexDocuments.Set(float64(stats.Documents))
	s.metrics.IndexTerms.Set(float64(stats.Terms))
	s.metrics.IndexObjects.Set(float64(stats.Objects))

	s.recordSnapshot(snapshot)
	s.pruneHistory()

	s.logger.Info("search index is live",
		"request_id", requestID,
		"generation", snapshot.Generation,
		"source", snapshot.Source,
		"documents", stats.Documents,
		"terms", stats.Terms,
		"objects", stats.Objects,
	)

	return snapshot, nil
}

// parse runs payload.Load so that a load that outlives ctx is abandoned.
func (s *Service) parse(ctx context.Context, payloadPath string) (*payload.Snapshot, error) {
	type result struct {
		snapshot *payload.Snapshot
		err      error
	}

	resultC := make(chan result, 1)
	go func() {
		snapshot, err := payload.Load(payloadPath)
		resultC <- result{snapshot: snapshot, err: err}
	}()

	select {
	case res := <-resultC:
		return res.snapshot, res.err
	case <-ctx.Done():
		return nil, fmt.Errorf("loading %s cancelled: %w", payloadPath, ctx.Err())
	}
}

func (s *Service) recordSnapshot(snapshot *payload.Snapshot) {
	stats := snapshot.Index.Stats()
	record := kvdb.SnapshotRecord{
		Generation: snapshot.Generation,
		Source:     snapshot.Source,
		Checksum:   snapshot.Checksum,
		Documents:  stats.Documents,
		Terms:      stats.Terms,
		Objects:    stats.Objects,
		LoadedAt:   snapshot.LoadedAt,
	}

	data, err := json.Marshal(record)
	if err != nil {
		s.logger.Error("failed to marshal snapshot record", "generation", snapshot.Generation, "err", err.Error())
		return
	}

	if err := s.metadataStore.Set(kvdb.SnapshotsBucket, snapshot.Generation, string(data)); err != nil {
		s.logger.Error("failed to record snapshot", "generation", snapshot.Generation, "err", err.Error())
	}
}

func (s *Service) pruneHistory() {
	records, err := s.History()
	if err != nil {
		return
	}

	for _, record := range records[min(len(records), s.historyLimit):] {
		if err := s.metadataStore.Delete(kvdb.SnapshotsBucket, record.Generation); err != nil {
			s.logger.Error("failed to prune snapshot record", "generation", record.Generation, "err", err.Error())
			continue
		}
		s.logger.Debug("pruned snapshot record", "generation", record.Generation)
	}
}

func (s *Service) setRequestStatus(requestID string, status int) {
	if err := s.metadataStore.Set(kvdb.RequestsBucket, requestID, strconv.Itoa(status)); err != nil {
		s.logger.Error("failed to update request status", "request_id", requestID, "progress", status, "err", err.Error())
	}
}
