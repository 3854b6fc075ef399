// Package termindex holds the read-only lookup structures built from a
// documentation search payload: the term index (term -> documents) and the
// objects registry (symbol -> page and anchor).
//
// An Index never changes after New returns. All methods are safe for
// concurrent use and return copies, so callers cannot alter the index.
package termindex

import (
	"errors"
	"fmt"
	"slices"
	"sort"
	"strings"
)

const (
	ScoreTitle        = 15
	ScorePartialTitle = 7
	ScoreTerm         = 5
	ScorePartialTerm  = 2

	minPartialTermLength = 3
)

type Mode string

const (
	ModeAnd Mode = "and"
	ModeOr  Mode = "or"
)

var ErrInvalidMode = errors.New("invalid query mode")

func ParseMode(mode string) (Mode, error) {
	switch Mode(strings.ToLower(strings.TrimSpace(mode))) {
	case "", ModeAnd:
		return ModeAnd, nil
	case ModeOr:
		return ModeOr, nil
	}
	return "", fmt.Errorf("%w: %q", ErrInvalidMode, mode)
}

type QueryOptions struct {
	Mode    Mode
	Partial bool
}

type Index struct {
	docs       []Document
	terms      map[string][]DocID
	titleTerms map[string][]DocID
	objects    []Object
	byName     map[string]int
	byDoc      map[DocID][]int
}

func New(data Data) *Index {
	ix := &Index{
		docs:       slices.Clone(data.Documents),
		terms:      normalizePostings(data.Terms),
		titleTerms: normalizePostings(data.TitleTerms),
		objects:    slices.Clone(data.Objects),
		byName:     make(map[string]int, len(data.Objects)),
		byDoc:      make(map[DocID][]int),
	}

	sort.SliceStable(ix.objects, func(i, j int) bool {
		return ix.objects[i].FullName < ix.objects[j].FullName
	})
	for i, obj := range ix.objects {
		if _, ok := ix.byName[obj.FullName]; !ok {
			ix.byName[obj.FullName] = i
		}
		ix.byDoc[obj.Doc] = append(ix.byDoc[obj.Doc], i)
	}

	return ix
}

// normalizePostings sorts every posting list ascending and drops duplicates.
func normalizePostings(table map[string][]DocID) map[string][]DocID {
	normalized := make(map[string][]DocID, len(table))
	for term, docs := range table {
		postings := slices.Clone(docs)
		slices.Sort(postings)
		normalized[strings.ToLower(term)] = mergeSorted(normalized[strings.ToLower(term)], slices.Compact(postings))
	}
	return normalized
}

// Lookup returns the documents containing term, in the body or in a page
// title. An unknown term yields an empty slice.
func (ix *Index) Lookup(term string) []DocID {
	term = strings.ToLower(strings.TrimSpace(term))
	if term == "" {
		return []DocID{}
	}
	return mergeSorted(ix.terms[term], ix.titleTerms[term])
}

// Query tokenizes query and combines the posting lists of its terms.
func (ix *Index) Query(query string, opts QueryOptions) []Hit {
	var included, excluded []Term
	for _, term := range Tokenize(query) {
		if term.Excluded {
			excluded = append(excluded, term)
		} else {
			included = append(included, term)
		}
	}
	if len(included) == 0 {
		return []Hit{}
	}

	type accumulator struct {
		score   int
		matched []string
	}
	found := make(map[DocID]*accumulator)
	for _, term := range included {
		for doc, score := range ix.termScores(term, opts.Partial) {
			acc, ok := found[doc]
			if !ok {
				acc = &accumulator{}
				found[doc] = acc
			}
			acc.score += score
			acc.matched = append(acc.matched, term.Text)
		}
	}

	blocked := make(map[DocID]struct{})
	for _, term := range excluded {
		for doc := range ix.termScores(term, false) {
			blocked[doc] = struct{}{}
		}
	}

	hits := make([]Hit, 0, len(found))
	for doc, acc := range found {
		if _, ok := blocked[doc]; ok {
			continue
		}
		if opts.Mode != ModeOr && len(acc.matched) < len(included) {
			continue
		}
		hits = append(hits, Hit{Document: ix.docs[doc], Score: acc.score, Matched: acc.matched})
	}

	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		if len(hits[i].Matched) != len(hits[j].Matched) {
			return len(hits[i].Matched) > len(hits[j].Matched)
		}
		return hits[i].Document.ID < hits[j].Document.ID
	})

	return hits
}

// termScores gives the best score of term in every document it occurs in.
func (ix *Index) termScores(term Term, partial bool) map[DocID]int {
	scores := make(map[DocID]int)
	exact := false

	for _, key := range term.keys() {
		if docs, ok := ix.titleTerms[key]; ok {
			exact = true
			raiseScores(scores, docs, ScoreTitle)
		}
		if docs, ok := ix.terms[key]; ok {
			exact = true
			raiseScores(scores, docs, ScoreTerm)
		}
	}

	if exact || !partial || len(term.Text) < minPartialTermLength {
		return scores
	}

	for key, docs := range ix.titleTerms {
		if strings.Contains(key, term.Text) {
			raiseScores(scores, docs, ScorePartialTitle)
		}
	}
	for key, docs := range ix.terms {
		if strings.Contains(key, term.Text) {
			raiseScores(scores, docs, ScorePartialTerm)
		}
	}

	return scores
}

func raiseScores(scores map[DocID]int, docs []DocID, score int) {
	for _, doc := range docs {
		scores[doc] = max(scores[doc], score)
	}
}

func (ix *Index) Document(id DocID) (Document, bool) {
	if id < 0 || int(id) >= len(ix.docs) {
		return Document{}, false
	}
	return ix.docs[id], true
}

func (ix *Index) Documents() []Document {
	return slices.Clone(ix.docs)
}

// TermKeys lists every searchable term, body and title tables combined.
func (ix *Index) TermKeys() []string {
	keys := make([]string, 0, len(ix.terms)+len(ix.titleTerms))
	for term := range ix.terms {
		keys = append(keys, term)
	}
	for term := range ix.titleTerms {
		if _, ok := ix.terms[term]; !ok {
			keys = append(keys, term)
		}
	}
	slices.Sort(keys)
	return keys
}

func (ix *Index) Stats() Stats {
	return Stats{
		Documents:  len(ix.docs),
		Terms:      len(ix.terms),
		TitleTerms: len(ix.titleTerms),
		Objects:    len(ix.objects),
	}
}

// mergeSorted unions two ascending, duplicate-free lists into a new one.
func mergeSorted(a, b []DocID) []DocID {
	merged := make([]DocID, 0, len(a)+len(b))
	i, j := 0, 0
	for i < len(a) && j < len(b) {
		switch {
		case a[i] < b[j]:
			merged = append(merged, a[i])
			i++
		case a[i] > b[j]:
			merged = append(merged, b[j])
			j++
		default:
			merged = append(merged, a[i])
			i++
			j++
		}
	}
	merged = append(merged, a[i:]...)
	return append(merged, b[j:]...)
}
