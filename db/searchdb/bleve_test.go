package searchdb

import (
	"log/slog"
	"os"
	"testing"

	"github.com/meghashyamc/docindex/db/termindex"
	"github.com/stretchr/testify/require"
)

func newTestLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelDebug}))
}

func newTestTermIndex() *termindex.Index {
	return termindex.New(termindex.Data{
		Documents: []termindex.Document{
			{ID: 0, Name: "index", File: "index.rst", Title: "DocTR: Document Text Recognition"},
			{ID: 1, Name: "models", File: "models.rst", Title: "doctr.models"},
			{ID: 2, Name: "datasets", File: "datasets.rst", Title: "doctr.datasets"},
		},
		Terms: map[string][]termindex.DocID{"ocr": {0, 1, 2}},
		Objects: []termindex.Object{
			{Prefix: "doctr.models", Name: "ocr_predictor", FullName: "doctr.models.ocr_predictor", Doc: 1, Kind: "function", Anchor: "doctr.models.ocr_predictor"},
			{Prefix: "doctr.datasets", Name: "FUNSD", FullName: "doctr.datasets.FUNSD", Doc: 2, Kind: "class", Anchor: "doctr.datasets.FUNSD"},
			{Prefix: "doctr.datasets", Name: "CORD", FullName: "doctr.datasets.CORD", Doc: 2, Kind: "class", Anchor: "doctr.datasets.CORD"},
		},
	})
}

func resultIDs(response *Response) []string {
	ids := make([]string, 0, len(response.Results))
	for _, result := range response.Results {
		ids = append(ids, result.ID)
	}
	return ids
}

func TestNewEntries(t *testing.T) {
	assert := require.New(t)

	entries := NewEntries(newTestTermIndex())
	assert.Len(entries, 6)
	assert.Equal(Entry{ID: "page:1", Kind: KindPage, Label: "doctr.models", Name: "models", DocName: "models", Doc: 1}, entries[1])
	assert.Equal(Entry{
		ID:      "object:doctr.datasets.CORD",
		Kind:    "class",
		Label:   "doctr.datasets.CORD",
		Name:    "CORD",
		DocName: "datasets",
		Doc:     2,
		Anchor:  "doctr.datasets.CORD",
	}, entries[3])
}

var suggestTestCases = []struct {
	name     string
	query    string
	expected []string
}{
	{name: "ObjectPrefix", query: "fun", expected: []string{"object:doctr.datasets.FUNSD"}},
	{name: "ObjectPrefixUpperCase", query: "OCR_PRED", expected: []string{"object:doctr.models.ocr_predictor"}},
	{name: "PageName", query: "models", expected: []string{"page:1"}},
	{name: "TitleWord", query: "recognition", expected: []string{"page:0"}},
	{name: "FuzzyObjectName", query: "funsf", expected: []string{"object:doctr.datasets.FUNSD"}},
	{name: "FullNamePrefix", query: "doctr.datasets.c", expected: []string{"object:doctr.datasets.CORD"}},
}

func TestSuggest(t *testing.T) {
	assert := require.New(t)
	db := New(newTestLogger())
	defer db.Close()

	assert.NoError(db.Rebuild(NewEntries(newTestTermIndex())))

	for _, testCase := range suggestTestCases {
		t.Run(testCase.name, func(t *testing.T) {
			assert := require.New(t)
			response, err := db.Suggest(testCase.query, 10)
			assert.NoError(err)
			ids := resultIDs(response)
			for _, expected := range testCase.expected {
				assert.Contains(ids, expected)
			}
		})
	}
}

func TestSuggestResultFields(t *testing.T) {
	assert := require.New(t)
	db := New(newTestLogger())
	defer db.Close()

	assert.NoError(db.Rebuild(NewEntries(newTestTermIndex())))

	response, err := db.Suggest("cord", 10)
	assert.NoError(err)
	assert.NotEmpty(response.Results)

	result := response.Results[0]
	assert.Equal("object:doctr.datasets.CORD", result.ID)
	assert.Equal("class", result.Kind)
	assert.Equal("doctr.datasets.CORD", result.Label)
	assert.Equal("datasets", result.DocName)
	assert.Equal(2, result.Doc)
	assert.Equal("doctr.datasets.CORD", result.Anchor)
	assert.Greater(result.Score, 0.0)
}

func TestSuggestLimitAndEmpty(t *testing.T) {
	assert := require.New(t)
	db := New(newTestLogger())
	defer db.Close()

	response, err := db.Suggest("doctr", 10)
	assert.NoError(err)
	assert.Empty(response.Results, "no results before the first rebuild")

	assert.NoError(db.Rebuild(NewEntries(newTestTermIndex())))

	response, err = db.Suggest("doctr", 1)
	assert.NoError(err)
	assert.Len(response.Results, 1)

	response, err = db.Suggest("   ", 10)
	assert.NoError(err)
	assert.Empty(response.Results)
}

func TestRebuildReplacesIndex(t *testing.T) {
	assert := require.New(t)
	db := New(newTestLogger())
	defer db.Close()

	count, err := db.GetDocCount()
	assert.NoError(err)
	assert.Zero(count)

	entries := NewEntries(newTestTermIndex())
	assert.NoError(db.Rebuild(entries))
	count, err = db.GetDocCount()
	assert.NoError(err)
	assert.Equal(uint64(len(entries)), count)

	assert.NoError(db.Rebuild(entries[:2]))
	count, err = db.GetDocCount()
	assert.NoError(err)
	assert.Equal(uint64(2), count)

	response, err := db.Suggest("fun", 10)
	assert.NoError(err)
	assert.Empty(response.Results, "entries from the previous build are gone")
}
