package heureka

import (
	"errors"
	"fmt"
)

var (
	// ErrLoginFailed matches every failed login attempt.
	ErrLoginFailed = errors.New("login failed")

	// ErrLoginExhausted is the user-facing failure after every login attempt
	// failed. The underlying cause is wrapped alongside it.
	ErrLoginExhausted = errors.New("could not log in to the Heureka shop administration, check the credentials and the country setting")

	// ErrSessionInvalid marks a statistics page that does not look
	// authenticated. It triggers a fresh login and a retry of the same date.
	ErrSessionInvalid = errors.New("session invalid")

	// ErrTableStructure marks a malformed statistics table. On this site it
	// cannot be told apart from an expired session and takes the same path.
	ErrTableStructure = fmt.Errorf("unexpected table structure: %w", ErrSessionInvalid)
)

// LoginError records which step of the browser flow failed.
type LoginError struct {
	Step string
	Err  error
}

func (e *LoginError) Error() string {
	return fmt.Sprintf("login failed at %s: %v", e.Step, e.Err)
}

func (e *LoginError) Unwrap() []error {
	return []error{ErrLoginFailed, e.Err}
}

// HTTPStatusError is a non-success answer from the statistics endpoint that
// is not an authentication problem.
type HTTPStatusError struct {
	StatusCode int
	URL        string
}

func (e *HTTPStatusError) Error() string {
	return fmt.Sprintf("stats request %s: http status %d", e.URL, e.StatusCode)
}

func outcomeLabel(err error) string {
	var statusErr *HTTPStatusError
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrTableStructure):
		return "table_structure"
	case errors.Is(err, ErrSessionInvalid):
		return "session_invalid"
	case errors.Is(err, ErrLoginFailed):
		return "login_failed"
	case errors.As(err, &statusErr):
		return "http_status"
	default:
		return "other"
	}
}
