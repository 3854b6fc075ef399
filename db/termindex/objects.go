package termindex

import (
	"slices"
	"sort"
	"strings"
)

const (
	ScoreObjectName        = 11
	ScoreObjectPartialName = 6
)

// priority 0 is "important", 1 "normal", 2 "unimportant"; anything else
// gets no bonus.
var objectPriorityBonus = map[int]int{0: 15, 1: 5, 2: -5}

// Object resolves a fully-qualified name exactly.
func (ix *Index) Object(fullName string) (Object, bool) {
	i, ok := ix.byName[fullName]
	if !ok {
		return Object{}, false
	}
	return ix.objects[i], true
}

// ObjectsOnPage returns the objects documented on page doc, by full name.
func (ix *Index) ObjectsOnPage(doc DocID) []Object {
	positions := ix.byDoc[doc]
	objects := make([]Object, 0, len(positions))
	for _, i := range positions {
		objects = append(objects, ix.objects[i])
	}
	return objects
}

// FindObjects matches query case-insensitively against object full names.
// When otherTerms is not empty, each of them must also occur in the
// object's prefix, name, kind description or page title.
func (ix *Index) FindObjects(query string, otherTerms []string) []ObjectHit {
	query = strings.ToLower(strings.TrimSpace(query))
	if query == "" {
		return []ObjectHit{}
	}

	hits := make([]ObjectHit, 0)
	for _, obj := range ix.objects {
		fullName := strings.ToLower(obj.FullName)
		if !strings.Contains(fullName, query) {
			continue
		}

		doc := ix.docs[obj.Doc]
		if !containsAll(objectHaystack(obj, doc), otherTerms) {
			continue
		}

		score := 0
		parts := strings.Split(fullName, ".")
		last := parts[len(parts)-1]
		switch {
		case fullName == query || last == query:
			score += ScoreObjectName
		case strings.Contains(last, query):
			score += ScoreObjectPartialName
		}
		score += objectPriorityBonus[obj.Priority]

		hits = append(hits, ObjectHit{Object: obj, Document: doc, Score: score})
	}

	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return strings.ToLower(hits[i].Object.FullName) < strings.ToLower(hits[j].Object.FullName)
	})

	return hits
}

// Objects returns every registered object, sorted by full name.
func (ix *Index) Objects() []Object {
	return slices.Clone(ix.objects)
}

func objectHaystack(obj Object, doc Document) string {
	description := obj.Description
	if description == "" {
		description = obj.Kind
	}
	return strings.ToLower(strings.Join([]string{obj.Prefix, obj.Name, description, doc.Title}, " "))
}

func containsAll(haystack string, needles []string) bool {
	for _, needle := range needles {
		if !strings.Contains(haystack, strings.ToLower(needle)) {
			return false
		}
	}
	return true
}
