package judges

import (
	"errors"
	"fmt"
)

var (
	// ErrAuthenticationFailed means that judge rejected credentials.
	ErrAuthenticationFailed = errors.New("authentication failed")
	// ErrAuthenticationRequired means that operation was attempted
	// on a session that is not authenticated.
	ErrAuthenticationRequired = errors.New("authentication required")
	// ErrSessionLimitLoopExceeded means that judge kept asking to release
	// older sessions after all allowed attempts.
	ErrSessionLimitLoopExceeded = errors.New("session limit loop exceeded")
	// ErrUnsupportedLanguage means that language can not be resolved.
	ErrUnsupportedLanguage = errors.New("unsupported language")
	// ErrFileNotFound means that there is no local file for problem.
	ErrFileNotFound = errors.New("file not found")
	// ErrProblemNotFound means that judge does not know problem.
	ErrProblemNotFound = errors.New("problem not found")
	// ErrSubmissionRejected means that judge refused submission.
	ErrSubmissionRejected = errors.New("submission rejected")
	// ErrNetworkFailure means that page can not be fetched.
	ErrNetworkFailure = errors.New("network failure")
	// ErrParseFailure means that page does not have expected structure.
	ErrParseFailure = errors.New("parse failure")
	// ErrPollTimeout means that verdict did not become terminal in time.
	ErrPollTimeout = errors.New("poll timeout")
)

// LanguageError represents language resolution miss.
type LanguageError struct {
	// Key contains unresolved extension or language name.
	Key string
}

func (e *LanguageError) Error() string {
	return fmt.Sprintf("unsupported language %q", e.Key)
}

func (e *LanguageError) Is(err error) bool {
	return err == ErrUnsupportedLanguage
}

// NetworkError represents failed round trip.
type NetworkError struct {
	// Code contains HTTP status code or zero for transport errors.
	Code int
	Err  error
}

func (e *NetworkError) Error() string {
	if e.Code != 0 {
		return fmt.Sprintf("network failure: status %d: %v", e.Code, e.Err)
	}
	return fmt.Sprintf("network failure: %v", e.Err)
}

func (e *NetworkError) Unwrap() error {
	return e.Err
}

func (e *NetworkError) Is(err error) bool {
	return err == ErrNetworkFailure
}

// StatusCode returns HTTP status code.
func (e *NetworkError) StatusCode() int {
	return e.Code
}

func parseError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrParseFailure, fmt.Sprintf(format, args...))
}

func rejectedError(format string, args ...any) error {
	return fmt.Errorf("%w: %s", ErrSubmissionRejected, fmt.Sprintf(format, args...))
}
