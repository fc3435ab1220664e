package aeris

import (
	"errors"
	"fmt"
	"net/http"
)

// errAmbiguousJoin is returned by URL.Join (spec.md §3).
var errAmbiguousJoin = errors.New("aeris: cannot join an absolute URL carrying a query or fragment")

// HTTPError is an expected error mapped to a specific HTTP status by the
// exception handler registry (spec.md §7): never logged as an internal
// error.
type HTTPError struct {
	Status  int
	Message string
	Cause   error
}

// NewHTTPError returns an *HTTPError with the given status and message.
func NewHTTPError(status int, message string) *HTTPError {
	if message == "" {
		message = http.StatusText(status)
	}
	return &HTTPError{Status: status, Message: message}
}

func (e *HTTPError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

func (e *HTTPError) Unwrap() error { return e.Cause }

// BadRequest returns a 400 *HTTPError.
func BadRequest(message string) *HTTPError { return NewHTTPError(http.StatusBadRequest, message) }

// MissingParameterError is raised by a binder when a required parameter
// has no value and no default (spec.md §4.2).
type MissingParameterError struct {
	Source string
	Name   string
}

func (e *MissingParameterError) Error() string {
	return fmt.Sprintf("missing required %s parameter %q", e.Source, e.Name)
}

// MissingBodyError is raised when a required body binder finds an empty
// body (spec.md §4.2 body-binder algorithm).
type MissingBodyError struct{}

func (e *MissingBodyError) Error() string { return "request body is required but was empty" }

// InvalidRequestBodyError wraps a body decoding/conversion failure.
type InvalidRequestBodyError struct {
	Parameter string
	Cause     error
}

func (e *InvalidRequestBodyError) Error() string {
	return fmt.Sprintf("invalid request body for parameter %q: %v", e.Parameter, e.Cause)
}

func (e *InvalidRequestBodyError) Unwrap() error { return e.Cause }

// UnsupportedMediaTypeError is returned when a required body binder can't
// match the request's Content-Type (spec.md §4.2, §7) — maps to 415.
type UnsupportedMediaTypeError struct {
	ContentType string
}

func (e *UnsupportedMediaTypeError) Error() string {
	return fmt.Sprintf("unsupported media type: %q", e.ContentType)
}

// UnauthorizedError maps to 401 with no WWW-Authenticate header (e.g. an
// authorization policy that requires authentication but found none).
type UnauthorizedError struct{ Reason string }

func (e *UnauthorizedError) Error() string { return e.Reason }

// AuthenticateChallengeError maps to 401 with a WWW-Authenticate header
// assembled from Scheme/Realm/Parameters (spec.md §4.4, §7).
type AuthenticateChallengeError struct {
	Scheme     string
	Realm      string
	Parameters map[string]string
}

func (e *AuthenticateChallengeError) Error() string {
	return fmt.Sprintf("authentication challenge: %s", e.Scheme)
}

// WWWAuthenticate renders the challenge as a WWW-Authenticate header value.
func (e *AuthenticateChallengeError) WWWAuthenticate() string {
	v := e.Scheme
	if e.Realm != "" {
		v += fmt.Sprintf(` realm="%s"`, e.Realm)
	}
	for k, val := range e.Parameters {
		v += fmt.Sprintf(`, %s="%s"`, k, val)
	}
	return v
}

// ForbiddenError maps to 403 (spec.md §4.4, §7).
type ForbiddenError struct{ Reason string }

func (e *ForbiddenError) Error() string { return e.Reason }

// RateLimitExceededError maps to 429 with a static message (spec.md §7).
type RateLimitExceededError struct{}

func (e *RateLimitExceededError) Error() string { return "rate limit exceeded" }

// MessageAbortedError is raised when a streamed receive observes a
// disconnect mid-read (spec.md §3 Content.ASGI, §5 Cancellation). It is
// swallowed by the orchestrator and terminates the handler quietly.
type MessageAbortedError struct{}

func (e *MessageAbortedError) Error() string { return "message aborted: client disconnected" }

// WebSocketDisconnectError is raised by WebSocket.Receive* when a
// websocket.disconnect event arrives (spec.md §4.6).
type WebSocketDisconnectError struct{ Code int }

func (e *WebSocketDisconnectError) Error() string {
	return fmt.Sprintf("websocket disconnected: code=%d", e.Code)
}

// InvalidWebSocketStateError is raised when an operation is attempted
// while the WebSocket is not in the required state (spec.md §4.6).
type InvalidWebSocketStateError struct {
	Party    string
	Expected WebSocketState
	Current  WebSocketState
}

func (e *InvalidWebSocketStateError) Error() string {
	return fmt.Sprintf(
		"invalid websocket state: party=%s expected=%s current=%s",
		e.Party, e.Expected, e.Current,
	)
}

// ValidationError wraps a struct-tag validation failure (go-playground
// validator) raised while binding a body model (DESIGN.md: binder.go).
type ValidationError struct {
	Cause error
}

func (e *ValidationError) Error() string { return fmt.Sprintf("validation failed: %v", e.Cause) }
func (e *ValidationError) Unwrap() error { return e.Cause }

// CSRFError maps to 401 with a Reason header identifying which
// anti-forgery check failed — the missing-cookie and invalid-token cases
// are distinct per spec.md §6 "CSRF" and scenario S4 (never a bare 403).
type CSRFError struct{ Reason string }

func (e *CSRFError) Error() string { return e.Reason }

// statusForError maps an error produced anywhere in the pipeline to an
// HTTP status code, following the default taxonomy of spec.md §4.5 / §7.
// A status of 0 means "no default mapping — treat as 500".
func statusForError(err error) int {
	switch e := err.(type) {
	case *HTTPError:
		return e.Status
	case *MissingParameterError, *MissingBodyError, *InvalidRequestBodyError, *ValidationError:
		return http.StatusBadRequest
	case *UnauthorizedError, *CSRFError:
		return http.StatusUnauthorized
	case *AuthenticateChallengeError:
		return http.StatusUnauthorized
	case *ForbiddenError:
		return http.StatusForbidden
	case *UnsupportedMediaTypeError:
		return http.StatusUnsupportedMediaType
	case *RateLimitExceededError:
		return http.StatusTooManyRequests
	default:
		_ = e
		return 0
	}
}
