package termindex

import (
	"strings"
	"unicode"

	porterstemmer "github.com/blevesearch/go-porterstemmer"
)

// Term is a normalised query word.
type Term struct {
	Text     string `json:"text"`
	Stem     string `json:"stem"`
	Excluded bool   `json:"excluded"`
}

var stopWords = map[string]struct{}{
	"a": {}, "and": {}, "are": {}, "as": {}, "at": {}, "be": {}, "but": {},
	"by": {}, "for": {}, "if": {}, "in": {}, "into": {}, "is": {}, "it": {},
	"near": {}, "no": {}, "not": {}, "of": {}, "on": {}, "or": {}, "such": {},
	"that": {}, "the": {}, "their": {}, "then": {}, "there": {}, "these": {},
	"they": {}, "this": {}, "to": {}, "was": {}, "will": {}, "with": {},
}

// Tokenize lower-cases the query and splits it into terms. Underscores
// are part of a word, matching identifiers like ocr_predictor. A whitespace
// separated word prefixed with '-' yields excluded terms. Stop words and
// purely numeric tokens are dropped, duplicates are kept once.
func Tokenize(query string) []Term {
	var terms []Term
	seen := make(map[Term]struct{})

	for _, field := range strings.Fields(strings.ToLower(query)) {
		excluded := false
		if strings.HasPrefix(field, "-") {
			excluded = true
			field = strings.TrimLeft(field, "-")
		}

		words := strings.FieldsFunc(field, func(r rune) bool {
			return !unicode.IsLetter(r) && !unicode.IsDigit(r) && r != '_'
		})
		for _, word := range words {
			if strings.Trim(word, "_") == "" || isStopWord(word) || isNumeric(word) {
				continue
			}
			term := Term{Text: word, Stem: porterstemmer.StemString(word), Excluded: excluded}
			if _, ok := seen[term]; ok {
				continue
			}
			seen[term] = struct{}{}
			terms = append(terms, term)
		}
	}

	return terms
}

// keys returns the table keys this term may be stored under, stem first.
func (t Term) keys() []string {
	if t.Stem == "" || t.Stem == t.Text {
		return []string{t.Text}
	}
	return []string{t.Stem, t.Text}
}

func isStopWord(word string) bool {
	_, ok := stopWords[word]
	return ok
}

func isNumeric(word string) bool {
	for _, r := range word {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}
