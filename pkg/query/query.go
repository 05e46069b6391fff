package query

import (
	"path/filepath"

	"github.com/pkg/errors"

	"github.com/bmatcuk/doublestar/v4"
)

// Query matches root-relative paths against a glob expression. Expressions
// use forward slashes regardless of platform and support doublestar ("**")
// patterns for recursive matching.
type Query struct {
	// pattern is the validated glob expression.
	pattern string
}

// New validates the specified glob expression and creates a query from it.
func New(pattern string) (*Query, error) {
	// Ensure that the expression is non-empty.
	if pattern == "" {
		return nil, errors.New("empty expression")
	}

	// Ensure that the expression is a valid pattern.
	if !doublestar.ValidatePattern(pattern) {
		return nil, errors.Errorf("invalid expression: %s", pattern)
	}

	// Success.
	return &Query{pattern: pattern}, nil
}

// Pattern returns the query's glob expression.
func (q *Query) Pattern() string {
	return q.pattern
}

// Matches returns whether or not the specified root-relative path matches the
// query. The path may use the platform separator; it is normalized before
// matching.
func (q *Query) Matches(path string) bool {
	matched, err := doublestar.Match(q.pattern, filepath.ToSlash(path))
	return err == nil && matched
}
