package payload

import (
	"errors"
	"fmt"
)

var (
	ErrIndexNotFound  = errors.New("search index not found")
	ErrMalformedIndex = errors.New("malformed search index")
)

type LoadError struct {
	Source string
	Err    error
}

func (e *LoadError) Error() string {
	if e.Source == "" {
		return fmt.Sprintf("could not load search index: %s", e.Err)
	}
	return fmt.Sprintf("could not load search index from %s: %s", e.Source, e.Err)
}

func (e *LoadError) Unwrap() error {
	return e.Err
}

func malformed(source string, err error) *LoadError {
	return &LoadError{Source: source, Err: fmt.Errorf("%w: %w", ErrMalformedIndex, err)}
}
