package payload

import (
	"errors"
	"fmt"
	"sort"

	"github.com/hashicorp/go-multierror"
)

// validate reports every violation it finds rather than the first one.
func validate(raw *rawIndex, objects []rawObject, objectErrs []error) error {
	var result *multierror.Error

	if raw.DocNames == nil {
		return multierror.Append(result, errors.New("missing docnames")).ErrorOrNil()
	}
	numDocs := len(raw.DocNames)

	if raw.FileNames == nil {
		result = multierror.Append(result, errors.New("missing filenames"))
	} else if len(raw.FileNames) != numDocs {
		result = multierror.Append(result, fmt.Errorf("filenames has %d entries, docnames has %d", len(raw.FileNames), numDocs))
	}

	if raw.Titles == nil {
		result = multierror.Append(result, errors.New("missing titles"))
	} else if len(raw.Titles) != numDocs {
		result = multierror.Append(result, fmt.Errorf("titles has %d entries, docnames has %d", len(raw.Titles), numDocs))
	}

	if raw.Terms == nil {
		result = multierror.Append(result, errors.New("missing terms"))
	}
	if raw.Objects == nil {
		result = multierror.Append(result, errors.New("missing objects"))
	}

	result = multierror.Append(result, validatePostings("terms", raw.Terms, numDocs)...)
	result = multierror.Append(result, validatePostings("titleterms", raw.TitleTerms, numDocs)...)
	result = multierror.Append(result, objectErrs...)

	for _, obj := range objects {
		if obj.doc < 0 || obj.doc >= numDocs {
			result = multierror.Append(result, fmt.Errorf("object %q references unknown document %d", obj.fullName(), obj.doc))
		}
		if _, ok := lookupKind(raw, obj.objType); !ok {
			result = multierror.Append(result, fmt.Errorf("object %q has unknown type %d", obj.fullName(), obj.objType))
		}
	}

	return result.ErrorOrNil()
}

func validatePostings(table string, postings map[string]Postings, numDocs int) []error {
	var errs []error

	terms := make([]string, 0, len(postings))
	for term := range postings {
		terms = append(terms, term)
	}
	sort.Strings(terms)

	for _, term := range terms {
		docs := postings[term]
		if len(docs) == 0 {
			errs = append(errs, fmt.Errorf("%s: term %q has no documents", table, term))
			continue
		}
		for _, doc := range docs {
			if doc < 0 || doc >= numDocs {
				errs = append(errs, fmt.Errorf("%s: term %q references unknown document %d", table, term, doc))
			}
		}
	}

	return errs
}
