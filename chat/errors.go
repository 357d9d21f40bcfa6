package chat

import (
	"errors"
	"fmt"
	"strings"
)

// ErrNoQuestion is returned when a request carries no question text.
var ErrNoQuestion = errors.New("question is required")

// ErrModelUnconfigured is returned when no completion service is wired.
var ErrModelUnconfigured = errors.New("completion service is not configured")

// ModelCallError wraps a failed completion call so the API layer can
// distinguish it from source failures.
type ModelCallError struct {
	err error
}

func (e *ModelCallError) Error() string {
	return fmt.Sprintf("completion call failed: %v", e.err)
}

func (e *ModelCallError) Unwrap() error {
	return e.err
}

// IsModelCallError reports whether err is a failed completion call.
func IsModelCallError(err error) bool {
	var mce *ModelCallError
	return errors.As(err, &mce)
}

// SourceFailure records one source that could not be fetched.
type SourceFailure struct {
	// Name is the source's display name.
	Name string

	// Err is the underlying fetch error.
	Err error
}

// SourcesError aggregates fetch failures when no source produced data.
// Remediation hints from the underlying errors are preserved so the
// user sees actionable sharing-settings guidance.
type SourcesError struct {
	Failures []SourceFailure
}

func (e *SourcesError) Error() string {
	parts := make([]string, len(e.Failures))
	for i, f := range e.Failures {
		parts[i] = fmt.Sprintf("%s: %v", f.Name, f.Err)
	}
	return "no data source available: " + strings.Join(parts, "; ")
}

// Unwrap exposes the underlying fetch errors so errors.As can reach
// per-source detail such as remediation hints.
func (e *SourcesError) Unwrap() []error {
	errs := make([]error, len(e.Failures))
	for i, f := range e.Failures {
		errs[i] = f.Err
	}
	return errs
}

// IsSourcesError reports whether err means every source fetch failed.
func IsSourcesError(err error) bool {
	var se *SourcesError
	return errors.As(err, &se)
}
