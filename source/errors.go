package source

import (
	"errors"
	"fmt"
)

// Unavailable reports that a source could not be fetched at all, as
// opposed to a source that exists but currently has zero data rows.
// Callers surface Remediation to the user so a permissions problem is
// actionable rather than a silent empty result.
type Unavailable struct {
	// Source names the failing source for consolidated diagnostics.
	Source string

	// Remediation is the user-facing instruction (sharing settings,
	// publishing steps) for recovering access.
	Remediation string

	err error
}

func (e *Unavailable) Error() string {
	if e.err != nil {
		return fmt.Sprintf("source %q unavailable: %v", e.Source, e.err)
	}
	return fmt.Sprintf("source %q unavailable", e.Source)
}

func (e *Unavailable) Unwrap() error {
	return e.err
}

// NewUnavailable wraps an error as a source-unavailable condition.
func NewUnavailable(sourceName, remediation string, err error) error {
	return &Unavailable{Source: sourceName, Remediation: remediation, err: err}
}

// IsUnavailable reports whether err is a source-unavailable condition.
func IsUnavailable(err error) bool {
	var u *Unavailable
	return errors.As(err, &u)
}

// AsUnavailable extracts the Unavailable detail from an error chain.
func AsUnavailable(err error) (*Unavailable, bool) {
	var u *Unavailable
	ok := errors.As(err, &u)
	return u, ok
}

// Remediation messages for the common failure modes.
const (
	RemediationSheetSharing = "시트의 공유 설정을 '링크가 있는 모든 사용자'로 변경했는지 확인해주세요."
	RemediationDocSharing   = "문서의 공유 설정을 확인하거나 GOOGLE_API_KEY를 설정해주세요."
)
