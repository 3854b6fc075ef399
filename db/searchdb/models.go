package searchdb

import (
	"fmt"

	"github.com/meghashyamc/docindex/db/termindex"
)

const KindPage = "page"

// Entry is one suggestible item: a documentation page or an object.
type Entry struct {
	ID      string `json:"id"`
	Kind    string `json:"kind"`
	Label   string `json:"label"`
	Name    string `json:"name"`
	DocName string `json:"docname"`
	Doc     int    `json:"doc"`
	Anchor  string `json:"anchor"`
}

type Result struct {
	ID      string  `json:"id"`
	Kind    string  `json:"kind"`
	Label   string  `json:"label"`
	DocName string  `json:"docname"`
	Doc     int     `json:"doc"`
	Anchor  string  `json:"anchor,omitempty"`
	Score   float64 `json:"score"`
}

type Response struct {
	Results    []Result `json:"results"`
	Total      uint64   `json:"total"`
	SearchTime string   `json:"search_time"`
}

// NewEntries lists every page and object of ix as suggest entries.
func NewEntries(ix *termindex.Index) []Entry {
	docs := ix.Documents()
	objects := ix.Objects()
	entries := make([]Entry, 0, len(docs)+len(objects))

	for _, doc := range docs {
		entries = append(entries, Entry{
			ID:      fmt.Sprintf("page:%d", doc.ID),
			Kind:    KindPage,
			Label:   doc.Title,
			Name:    doc.Name,
			DocName: doc.Name,
			Doc:     int(doc.ID),
		})
	}

	for _, obj := range objects {
		entries = append(entries, Entry{
			ID:      "object:" + obj.FullName,
			Kind:    obj.Kind,
			Label:   obj.FullName,
			Name:    obj.Name,
			DocName: docs[obj.Doc].Name,
			Doc:     int(obj.Doc),
			Anchor:  obj.Anchor,
		})
	}

	return entries
}
