package searchdb

import (
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/keyword"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/standard"
	"github.com/blevesearch/bleve/v2/mapping"
	"github.com/blevesearch/bleve/v2/search/query"
	"github.com/meghashyamc/docindex/logger"
)

const IndexingBatchSize = 100

const minFuzzyQueryLength = 4

const (
	indexFieldLabel   = "label"
	indexFieldName    = "name"
	indexFieldDocName = "docname"
	indexFieldKind    = "kind"
	indexFieldDoc     = "doc"
	indexFieldAnchor  = "anchor"
)

// BleveDB keeps an in-memory bleve index of page titles and object names.
// The index is replaced wholesale by Rebuild.
type BleveDB struct {
	logger logger.Logger
	mu     sync.RWMutex
	index  bleve.Index
}

func New(logger logger.Logger) *BleveDB {
	return &BleveDB{logger: logger}
}

func (b *BleveDB) Rebuild(entries []Entry) error {
	index, err := bleve.NewMemOnly(createIndexMapping())
	if err != nil {
		b.logger.Error("could not create suggest index", "err", err.Error())
		return fmt.Errorf("could not create suggest index: %w", err)
	}

	batch := index.NewBatch()
	for i, entry := range entries {
		if err := batch.Index(entry.ID, entry); err != nil {
			b.logger.Error("could not index suggest entry", "id", entry.ID, "err", err.Error())
			index.Close()
			return err
		}

		// Execute batch when it reaches the batch size
		if (i+1)%IndexingBatchSize == 0 {
			if err := index.Batch(batch); err != nil {
				index.Close()
				return err
			}
			batch = index.NewBatch()
		}
	}

	if batch.Size() > 0 {
		if err := index.Batch(batch); err != nil {
			b.logger.Error("could not index suggest entries", "err", err.Error())
			index.Close()
			return err
		}
	}

	b.mu.Lock()
	previous := b.index
	b.index = index
	b.mu.Unlock()

	if previous != nil {
		if err := previous.Close(); err != nil {
			b.logger.Warn("could not close previous suggest index", "err", err.Error())
		}
	}

	return nil
}

func createIndexMapping() mapping.IndexMapping {

	indexMapping := bleve.NewIndexMapping()
	docMapping := bleve.NewDocumentMapping()

	labelFieldMapping := bleve.NewTextFieldMapping()
	labelFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldLabel, labelFieldMapping)

	nameFieldMapping := bleve.NewTextFieldMapping()
	nameFieldMapping.Analyzer = standard.Name
	docMapping.AddFieldMappingsAt(indexFieldName, nameFieldMapping)

	// Not analyzed, exact match only
	docNameFieldMapping := bleve.NewTextFieldMapping()
	docNameFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(indexFieldDocName, docNameFieldMapping)

	kindFieldMapping := bleve.NewTextFieldMapping()
	kindFieldMapping.Analyzer = keyword.Name
	docMapping.AddFieldMappingsAt(indexFieldKind, kindFieldMapping)

	docFieldMapping := bleve.NewNumericFieldMapping()
	docMapping.AddFieldMappingsAt(indexFieldDoc, docFieldMapping)

	// Stored for display, never searched
	anchorFieldMapping := bleve.NewTextFieldMapping()
	anchorFieldMapping.Index = false
	docMapping.AddFieldMappingsAt(indexFieldAnchor, anchorFieldMapping)

	indexMapping.AddDocumentMapping("_default", docMapping)

	return indexMapping
}

func (b *BleveDB) Suggest(queryString string, limit int) (*Response, error) {
	start := time.Now()

	b.mu.RLock()
	defer b.mu.RUnlock()

	queryString = strings.ToLower(strings.TrimSpace(queryString))
	if b.index == nil || queryString == "" {
		return &Response{Results: []Result{}, SearchTime: time.Since(start).String()}, nil
	}

	searchRequest := bleve.NewSearchRequestOptions(buildSuggestQuery(queryString), limit, 0, false)
	searchRequest.Fields = []string{indexFieldLabel, indexFieldDocName, indexFieldKind, indexFieldDoc, indexFieldAnchor}

	searchResult, err := b.index.Search(searchRequest)
	if err != nil {
		b.logger.Error("suggest failed", "err", err.Error())
		return nil, fmt.Errorf("suggest failed: %w", err)
	}

	results := make([]Result, len(searchResult.Hits))
	for i, hit := range searchResult.Hits {
		result := Result{
			ID:    hit.ID,
			Score: hit.Score,
		}

		if label, ok := hit.Fields[indexFieldLabel].(string); ok {
			result.Label = label
		}
		if docName, ok := hit.Fields[indexFieldDocName].(string); ok {
			result.DocName = docName
		}
		if kind, ok := hit.Fields[indexFieldKind].(string); ok {
			result.Kind = kind
		}
		if doc, ok := hit.Fields[indexFieldDoc].(float64); ok {
			result.Doc = int(doc)
		}
		if anchor, ok := hit.Fields[indexFieldAnchor].(string); ok {
			result.Anchor = anchor
		}

		results[i] = result
	}

	return &Response{
		Results:    results,
		Total:      searchResult.Total,
		SearchTime: time.Since(start).String(),
	}, nil
}

func buildSuggestQuery(queryString string) query.Query {

	const (
		boostForLabel       = 3.0
		boostForName        = 2.0
		boostForPrefixMatch = 2.0
		boostForDocName     = 1.0
		boostForFuzzyMatch  = 0.5
	)

	disjunctQuery := bleve.NewDisjunctionQuery()

	labelQuery := bleve.NewMatchQuery(queryString)
	labelQuery.SetField(indexFieldLabel)
	labelQuery.SetBoost(boostForLabel)
	disjunctQuery.AddQuery(labelQuery)

	nameQuery := bleve.NewMatchQuery(queryString)
	nameQuery.SetField(indexFieldName)
	nameQuery.SetBoost(boostForName)
	disjunctQuery.AddQuery(nameQuery)

	for _, field := range []string{indexFieldLabel, indexFieldName} {
		prefixQuery := bleve.NewPrefixQuery(queryString)
		prefixQuery.SetField(field)
		prefixQuery.SetBoost(boostForPrefixMatch)
		disjunctQuery.AddQuery(prefixQuery)
	}

	docNameQuery := bleve.NewPrefixQuery(queryString)
	docNameQuery.SetField(indexFieldDocName)
	docNameQuery.SetBoost(boostForDocName)
	disjunctQuery.AddQuery(docNameQuery)

	if len(queryString) >= minFuzzyQueryLength {
		fuzzyQuery := bleve.NewFuzzyQuery(queryString)
		fuzzyQuery.SetField(indexFieldName)
		fuzzyQuery.SetFuzziness(1)
		fuzzyQuery.SetBoost(boostForFuzzyMatch)
		disjunctQuery.AddQuery(fuzzyQuery)
	}

	return disjunctQuery
}

func (b *BleveDB) GetDocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.index == nil {
		return 0, nil
	}
	return b.index.DocCount()
}

func (b *BleveDB) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.index != nil {
		if err := b.index.Close(); err != nil {
			b.logger.Error("could not close suggest index", "err", err.Error())
			return err
		}
		b.index = nil
	}
	return nil
}
