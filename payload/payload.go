// Package payload reads the search index a documentation generator writes
// next to the rendered pages (searchindex.js) and turns it into an
// immutable Snapshot.
package payload

import (
	"bytes"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"time"

	"github.com/google/uuid"
	"github.com/meghashyamc/docindex/db/termindex"
)

const maxPayloadSize = 64 * 1024 * 1024

// fileNames are the names a generator gives the payload file.
var fileNames = map[string]struct{}{
	"searchindex.js":   {},
	"searchindex.json": {},
}

var (
	jsWrapperPrefix = []byte("Search.setIndex(")
	jsWrapperSuffix = []byte(")")
)

// Snapshot is one loaded payload. It is never modified after Parse.
type Snapshot struct {
	Index      *termindex.Index
	Generation string
	Source     string
	Checksum   string
	LoadedAt   time.Time
}

// IsPayloadFile reports whether path names a payload file.
func IsPayloadFile(path string) bool {
	_, ok := fileNames[filepath.Base(path)]
	return ok
}

// Postings is a term's document list. The payload stores a term that occurs
// in a single document as a bare integer.
type Postings []int

func (p *Postings) UnmarshalJSON(data []byte) error {
	if bytes.Equal(bytes.TrimSpace(data), []byte("null")) {
		return errors.New("postings must not be null")
	}

	var single int
	if err := json.Unmarshal(data, &single); err == nil {
		*p = Postings{single}
		return nil
	}

	var many []int
	if err := json.Unmarshal(data, &many); err != nil {
		return fmt.Errorf("postings must be a document id or a list of document ids, got %s", data)
	}
	*p = many
	return nil
}

type rawIndex struct {
	DocNames   []string                   `json:"docnames"`
	FileNames  []string                   `json:"filenames"`
	Titles     []string                   `json:"titles"`
	Terms      map[string]Postings        `json:"terms"`
	TitleTerms map[string]Postings        `json:"titleterms"`
	Objects    map[string]json.RawMessage `json:"objects"`
	ObjNames   map[string][]string        `json:"objnames"`
	ObjTypes   map[string]string          `json:"objtypes"`
}

// Load reads and parses the payload file at path.
func Load(path string) (*Snapshot, error) {
	file, err := os.Open(path)
	if err != nil {
		if errors.Is(err, os.ErrNotExist) {
			return nil, &LoadError{Source: path, Err: fmt.Errorf("%w: %w", ErrIndexNotFound, err)}
		}
		return nil, &LoadError{Source: path, Err: err}
	}
	defer file.Close()

	data, err := io.ReadAll(io.LimitReader(file, maxPayloadSize+1))
	if err != nil {
		return nil, &LoadError{Source: path, Err: err}
	}
	if len(data) > maxPayloadSize {
		return nil, malformed(path, fmt.Errorf("payload is larger than %d bytes", maxPayloadSize))
	}

	return parse(data, path)
}

// Parse builds a snapshot from payload bytes, either plain JSON or wrapped
// in a Search.setIndex(...) call.
func Parse(data []byte) (*Snapshot, error) {
	return parse(data, "")
}

func parse(data []byte, source string) (*Snapshot, error) {
	body, err := unwrap(data)
	if err != nil {
		return nil, malformed(source, err)
	}

	var raw rawIndex
	if err := json.Unmarshal(body, &raw); err != nil {
		return nil, malformed(source, err)
	}

	objects, objectErrs := decodeObjects(raw.Objects)
	if err := validate(&raw, objects, objectErrs); err != nil {
		return nil, malformed(source, err)
	}

	checksum := sha256.Sum256(data)
	return &Snapshot{
		Index:      termindex.New(buildData(&raw, objects)),
		Generation: uuid.New().String(),
		Source:     source,
		Checksum:   hex.EncodeToString(checksum[:]),
		LoadedAt:   time.Now().UTC(),
	}, nil
}

func unwrap(data []byte) ([]byte, error) {
	body := bytes.TrimSpace(data)
	body = bytes.TrimSpace(bytes.TrimSuffix(body, []byte(";")))

	if !bytes.HasPrefix(body, jsWrapperPrefix) {
		return body, nil
	}
	if !bytes.HasSuffix(body, jsWrapperSuffix) {
		return nil, errors.New("unterminated Search.setIndex call")
	}
	return body[len(jsWrapperPrefix) : len(body)-len(jsWrapperSuffix)], nil
}

func buildData(raw *rawIndex, objects []rawObject) termindex.Data {
	documents := make([]termindex.Document, len(raw.DocNames))
	for i, name := range raw.DocNames {
		documents[i] = termindex.Document{
			ID:    termindex.DocID(i),
			Name:  name,
			File:  raw.FileNames[i],
			Title: raw.Titles[i],
		}
	}

	registry := make([]termindex.Object, 0, len(objects))
	for _, obj := range objects {
		registry = append(registry, resolveObject(raw, obj))
	}

	return termindex.Data{
		Documents:  documents,
		Terms:      toPostingTable(raw.Terms),
		TitleTerms: toPostingTable(raw.TitleTerms),
		Objects:    registry,
	}
}

func toPostingTable(table map[string]Postings) map[string][]termindex.DocID {
	converted := make(map[string][]termindex.DocID, len(table))
	for term, postings := range table {
		docs := make([]termindex.DocID, len(postings))
		for i, doc := range postings {
			docs[i] = termindex.DocID(doc)
		}
		converted[term] = docs
	}
	return converted
}
