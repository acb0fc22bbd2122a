// Package match evaluates glob patterns against bucket names.
//
// Listings served from the cache can be narrowed with include and exclude
// patterns; the cache contents themselves are never filtered, only the
// served view.
package match

import (
	"errors"

	"github.com/bmatcuk/doublestar/v4"
)

// Matcher evaluates include/exclude glob patterns against bucket names.
//
//   - Include patterns: the name must match at least one. An empty include
//     list matches every name.
//   - Exclude patterns: the name must not match any.
//
// A Matcher is safe for concurrent use after creation.
type Matcher struct {
	includes []string
	excludes []string
}

// Config configures a Matcher.
type Config struct {
	// Includes are glob patterns that names must match (at least one).
	// Optional: if empty, all names are included.
	Includes []string

	// Excludes are glob patterns that names must not match (any).
	// Optional: if empty, no excludes are applied.
	Excludes []string
}

// ErrInvalidPattern is returned when a pattern cannot be compiled.
var ErrInvalidPattern = errors.New("invalid glob pattern")

// PatternError wraps pattern-related errors with context.
type PatternError struct {
	Pattern string
	Err     error
}

func (e *PatternError) Error() string {
	return "pattern " + e.Pattern + ": " + e.Err.Error()
}

func (e *PatternError) Unwrap() error {
	return e.Err
}

// New creates a Matcher from the given configuration.
//
// Returns an error if any pattern is invalid (cannot be compiled).
func New(cfg Config) (*Matcher, error) {
	for _, raw := range append(append([]string{}, cfg.Includes...), cfg.Excludes...) {
		if !doublestar.ValidatePattern(raw) {
			return nil, &PatternError{Pattern: raw, Err: ErrInvalidPattern}
		}
	}

	return &Matcher{
		includes: append([]string{}, cfg.Includes...),
		excludes: append([]string{}, cfg.Excludes...),
	}, nil
}

// Match returns true if the bucket name passes the include/exclude patterns.
//
// Names are matched as-is: bucket names are opaque strings and any
// character is valid in them.
func (m *Matcher) Match(name string) bool {
	if len(m.includes) > 0 {
		matched := false
		for _, inc := range m.includes {
			if ok, err := doublestar.Match(inc, name); err == nil && ok {
				matched = true
				break
			}
		}
		if !matched {
			return false
		}
	}

	for _, exc := range m.excludes {
		if ok, err := doublestar.Match(exc, name); err == nil && ok {
			return false
		}
	}

	return true
}

// IncludePatterns returns the raw include patterns.
func (m *Matcher) IncludePatterns() []string {
	return append([]string{}, m.includes...)
}

// ExcludePatterns returns the raw exclude patterns.
func (m *Matcher) ExcludePatterns() []string {
	return append([]string{}, m.excludes...)
}
