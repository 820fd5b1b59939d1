package listing

import (
	"errors"
	"fmt"
)

// ErrRefreshAborted is returned to waiters whose refresh was abandoned
// because the session that would have completed it went away.
var ErrRefreshAborted = errors.New("listing refresh aborted")

// UsageError reports query text that cannot be turned into a Query.
type UsageError struct {
	Reason string
	Err    error
}

func (e *UsageError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("usage: %s: %v", e.Reason, e.Err)
	}
	return "usage: " + e.Reason
}

func (e *UsageError) Unwrap() error { return e.Err }

// ParseError reports a protocol record that does not decode into an Entry.
type ParseError struct {
	Fields []string
	Reason string
	Err    error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("parse list record %q: %s: %v", e.Fields, e.Reason, e.Err)
	}
	return fmt.Sprintf("parse list record %q: %s", e.Fields, e.Reason)
}

func (e *ParseError) Unwrap() error { return e.Err }

func usageErrorf(err error, format string, args ...any) error {
	return &UsageError{Reason: fmt.Sprintf(format, args...), Err: err}
}
