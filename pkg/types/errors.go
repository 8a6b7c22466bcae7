package types

import (
	"errors"
	"fmt"
	"strings"
)

// ErrorKind classifies failures from the hosting and backend APIs.
type ErrorKind string

// Error kinds.
const (
	KindValidation   ErrorKind = "validation"
	KindAuthRequired ErrorKind = "auth_required"
	KindRateLimited  ErrorKind = "rate_limited"
	KindNotFound     ErrorKind = "not_found"
	KindUpstream     ErrorKind = "upstream"
	KindNetwork      ErrorKind = "network"
)

// Sentinels for errors.Is matching against an *Error's Kind.
var (
	ErrValidation   = errors.New("validation error")
	ErrAuthRequired = errors.New("authentication required")
	ErrRateLimited  = errors.New("rate limit exceeded")
	ErrNotFound     = errors.New("not found")
	ErrUpstream     = errors.New("upstream unavailable")
	ErrNetwork      = errors.New("network error")
)

var sentinels = map[ErrorKind]error{
	KindValidation:   ErrValidation,
	KindAuthRequired: ErrAuthRequired,
	KindRateLimited:  ErrRateLimited,
	KindNotFound:     ErrNotFound,
	KindUpstream:     ErrUpstream,
	KindNetwork:      ErrNetwork,
}

// Error is the error value returned by the API clients.
// Message is human-readable and safe to show in a banner.
type Error struct {
	Err          error           `json:"-"`
	RateLimit    *RateLimitState `json:"rateLimitInfo,omitempty"`
	Kind         ErrorKind       `json:"kind"`
	Message      string          `json:"error"`
	StatusCode   int             `json:"statusCode,omitempty"`
	WaitMinutes  int             `json:"waitMinutes,omitempty"`
	RequiresAuth bool            `json:"requiresAuth,omitempty"`
}

func (e *Error) Error() string {
	if e.Err != nil && !strings.HasSuffix(e.Message, e.Err.Error()) {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is the sentinel for this error's kind.
func (e *Error) Is(target error) bool {
	return sentinels[e.Kind] == target
}

// NewError creates an *Error of the given kind.
func NewError(kind ErrorKind, msg string) *Error {
	return &Error{Kind: kind, Message: msg}
}

// Validationf creates a validation error.
func Validationf(format string, args ...any) *Error {
	return &Error{Kind: KindValidation, Message: fmt.Sprintf(format, args...)}
}

// NetworkError wraps a transport failure. The message carries the cause.
func NetworkError(err error) *Error {
	msg := "network error"
	if err != nil {
		msg += ": " + err.Error()
	}
	return &Error{Kind: KindNetwork, Message: msg, Err: err}
}

// KindOf returns the kind of err, or "" when err is not an *Error.
func KindOf(err error) ErrorKind {
	var e *Error
	if errors.As(err, &e) {
		return e.Kind
	}
	return ""
}
