package patient

import (
	"errors"
	"sort"
	"strings"
)

var (
	ErrDuplicateEmail = errors.New("email address already exists")
	ErrNotFound       = errors.New("patient not found")
	ErrInvalidDate    = errors.New("invalid date")
)

// ValidationError carries one message per rejected input field.
type ValidationError struct {
	Fields map[string]string
	cause  error
}

func (e *ValidationError) Error() string {
	keys := make([]string, 0, len(e.Fields))
	for k := range e.Fields {
		keys = append(keys, k)
	}
	sort.Strings(keys)

	parts := make([]string, 0, len(keys))
	for _, k := range keys {
		parts = append(parts, k+": "+e.Fields[k])
	}
	return "validation failed: " + strings.Join(parts, "; ")
}

func (e *ValidationError) Unwrap() error {
	return e.cause
}
