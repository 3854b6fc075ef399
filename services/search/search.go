package search

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/meghashyamc/docindex/db/searchdb"
	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/meghashyamc/docindex/logger"
	"github.com/meghashyamc/docindex/metrics"
	"github.com/meghashyamc/docindex/payload"
)

const (
	DefaultLimit = 10
	MaxLimit     = 100

	defaultSuggestLimit = 10
)

var (
	ErrTermNotFound     = errors.New("term not found")
	ErrObjectNotFound   = errors.New("object not found")
	ErrDocumentNotFound = errors.New("document not found")
)

// SnapshotProvider returns the live search index.
type SnapshotProvider interface {
	Current() (*payload.Snapshot, error)
}

type Suggester interface {
	Suggest(queryString string, limit int) (*searchdb.Response, error)
	GetDocCount() (uint64, error)
}

type Request struct {
	Query   string
	Mode    termindex.Mode
	Partial bool
	Limit   int
	Offset  int
}

type Response struct {
	Documents  []termindex.Hit       `json:"documents"`
	Objects    []termindex.ObjectHit `json:"objects"`
	Total      int                   `json:"total"`
	Generation string                `json:"generation"`
	SearchTime string                `json:"search_time"`
}

type LookupResponse struct {
	Term      string               `json:"term"`
	Documents []termindex.Document `json:"documents"`
}

type ObjectResponse struct {
	Object   termindex.Object   `json:"object"`
	Document termindex.Document `json:"document"`
}

type DocumentResponse struct {
	Document termindex.Document `json:"document"`
	Objects  []termindex.Object `json:"objects"`
}

type StatsResponse struct {
	termindex.Stats
	Suggestions uint64    `json:"suggestions"`
	Generation  string    `json:"generation"`
	Source      string    `json:"source"`
	Checksum    string    `json:"checksum"`
	LoadedAt    time.Time `json:"loaded_at"`
}

type Service struct {
	logger    logger.Logger
	snapshots SnapshotProvider
	suggester Suggester
	cache     Cache
	metrics   *metrics.Metrics
}

func New(logger logger.Logger, snapshots SnapshotProvider, suggester Suggester, cache Cache, m *metrics.Metrics) *Service {
	if cache == nil {
		cache = NewNoopCache()
	}
	return &Service{
		logger:    logger,
		snapshots: snapshots,
		suggester: suggester,
		cache:     cache,
		metrics:   m,
	}
}

// Search answers a free text query with ranked pages and matching objects.
func (s *Service) Search(ctx context.Context, req Request) (*Response, error) {
	start := time.Now()

	snapshot, err := s.snapshots.Current()
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(metrics.ResultTypeError).Inc()
		return nil, err
	}

	req = normalizeRequest(req)
	response, cacheStatus, err := s.cache.GetOrCompute(ctx, cacheKey(snapshot.Generation, req), func() (*Response, error) {
		return s.search(snapshot, req), nil
	})
	if err != nil {
		s.metrics.SearchQueriesTotal.WithLabelValues(metrics.ResultTypeError).Inc()
		s.logger.Error("search failed", "query", req.Query, "err", err.Error())
		return nil, err
	}

	elapsed := time.Since(start)
	result := *response
	result.SearchTime = elapsed.String()
	response = &result

	s.metrics.SearchLatency.WithLabelValues(cacheStatus).Observe(elapsed.Seconds())
	s.metrics.SearchResultsCount.Observe(float64(response.Total))
	if response.Total == 0 && len(response.Objects) == 0 {
		s.metrics.SearchQueriesTotal.WithLabelValues(metrics.ResultTypeZeroResult).Inc()
	} else {
		s.metrics.SearchQueriesTotal.WithLabelValues(metrics.ResultTypeHit).Inc()
	}

	s.logger.Debug("search completed", "query", req.Query, "mode", req.Mode, "total", response.Total, "cache", cacheStatus, "took", elapsed.String())
	return response, nil
}

func (s *Service) search(snapshot *payload.Snapshot, req Request) *Response {
	ix := snapshot.Index
	hits := ix.Query(req.Query, termindex.QueryOptions{Mode: req.Mode, Partial: req.Partial})

	response := &Response{
		Documents:  paginate(hits, req.Offset, req.Limit),
		Objects:    []termindex.ObjectHit{},
		Total:      len(hits),
		Generation: snapshot.Generation,
	}

	words := includedWords(req.Query)
	if len(words) > 0 {
		objects := ix.FindObjects(words[0], words[1:])
		response.Objects = objects[:min(len(objects), req.Limit)]
	}

	return response
}

// includedWords drops the '-' prefixed words, which only filter pages.
func includedWords(query string) []string {
	var words []string
	for _, word := range strings.Fields(query) {
		if !strings.HasPrefix(word, "-") {
			words = append(words, word)
		}
	}
	return words
}

// Lookup resolves a single term to the pages it occurs on. An unknown term
// yields an empty set, not ErrTermNotFound.
func (s *Service) Lookup(term string) (*LookupResponse, error) {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	ix := snapshot.Index
	term = strings.ToLower(strings.TrimSpace(term))
	ids := ix.Lookup(term)
	documents := make([]termindex.Document, 0, len(ids))
	for _, id := range ids {
		if doc, ok := ix.Document(id); ok {
			documents = append(documents, doc)
		}
	}

	return &LookupResponse{Term: term, Documents: documents}, nil
}

func (s *Service) Object(fullName string) (*ObjectResponse, error) {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	obj, ok := snapshot.Index.Object(fullName)
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrObjectNotFound, fullName)
	}
	doc, _ := snapshot.Index.Document(obj.Doc)

	return &ObjectResponse{Object: obj, Document: doc}, nil
}

// FindObjects searches the object registry on its own.
func (s *Service) FindObjects(query string, limit int) ([]termindex.ObjectHit, error) {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	words := includedWords(query)
	if len(words) == 0 {
		return []termindex.ObjectHit{}, nil
	}

	objects := snapshot.Index.FindObjects(words[0], words[1:])
	return objects[:min(len(objects), normalizeLimit(limit))], nil
}

func (s *Service) Document(id int) (*DocumentResponse, error) {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	doc, ok := snapshot.Index.Document(termindex.DocID(id))
	if !ok {
		return nil, fmt.Errorf("%w: %d", ErrDocumentNotFound, id)
	}

	return &DocumentResponse{Document: doc, Objects: snapshot.Index.ObjectsOnPage(doc.ID)}, nil
}

// Suggest completes a partially typed page title or object name.
func (s *Service) Suggest(prefix string, limit int) (*searchdb.Response, error) {
	if _, err := s.snapshots.Current(); err != nil {
		return nil, err
	}
	if limit <= 0 {
		limit = defaultSuggestLimit
	}
	return s.suggester.Suggest(strings.TrimSpace(prefix), min(limit, MaxLimit))
}

func (s *Service) Stats() (*StatsResponse, error) {
	snapshot, err := s.snapshots.Current()
	if err != nil {
		return nil, err
	}

	suggestions, err := s.suggester.GetDocCount()
	if err != nil {
		s.logger.Error("failed to count suggest entries", "err", err.Error())
		return nil, fmt.Errorf("failed to count suggest entries: %w", err)
	}

	return &StatsResponse{
		Stats:       snapshot.Index.Stats(),
		Suggestions: suggestions,
		Generation:  snapshot.Generation,
		Source:      snapshot.Source,
		Checksum:    snapshot.Checksum,
		LoadedAt:    snapshot.LoadedAt,
	}, nil
}

func normalizeRequest(req Request) Request {
	req.Query = strings.TrimSpace(req.Query)
	if req.Mode == "" {
		req.Mode = termindex.ModeAnd
	}
	req.Limit = normalizeLimit(req.Limit)
	req.Offset = max(req.Offset, 0)
	return req
}

func normalizeLimit(limit int) int {
	if limit <= 0 {
		return DefaultLimit
	}
	return min(limit, MaxLimit)
}

func paginate(hits []termindex.Hit, offset int, limit int) []termindex.Hit {
	if offset >= len(hits) {
		return []termindex.Hit{}
	}
	return hits[offset:min(offset+limit, len(hits))]
}
