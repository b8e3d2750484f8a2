// Package errors classifies backend failures into the typed errors surfaced to callers.
package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strings"
)

// Sentinel error kinds. An *APIError matches exactly one of them via errors.Is.
var (
	ErrValidation     = errors.New("validation failed")
	ErrAuth           = errors.New("authentication failed")
	ErrPermission     = errors.New("permission denied")
	ErrNotFound       = errors.New("resource not found")
	ErrConflict       = errors.New("conflict")
	ErrRateLimit      = errors.New("rate limit exceeded")
	ErrServer         = errors.New("server error")
	ErrNetwork        = errors.New("network error")
	ErrReauthRequired = errors.New("re-authentication required")
)

// APIError is a classified failure of one backend call.
type APIError struct {
	Method     string
	Path       string
	StatusCode int    // 0 when no response was received
	Message    string // human-readable, server-supplied when available
	Kind       error  // one of the sentinel kinds
	Err        error  // underlying cause, if any
}

func (e *APIError) Error() string {
	var b strings.Builder
	fmt.Fprintf(&b, "%s %s: %s", e.Method, e.Path, e.Kind)
	if e.StatusCode != 0 {
		fmt.Fprintf(&b, " (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		b.WriteString(": ")
		b.WriteString(e.Message)
	}
	if e.Err != nil {
		fmt.Fprintf(&b, ": %v", e.Err)
	}
	return b.String()
}

// Unwrap exposes both the kind and the cause to errors.Is / errors.As.
func (e *APIError) Unwrap() []error {
	errs := make([]error, 0, 2)
	if e.Kind != nil {
		errs = append(errs, e.Kind)
	}
	if e.Err != nil {
		errs = append(errs, e.Err)
	}
	return errs
}

// KindForStatus maps an HTTP status to an error kind. It returns nil below 400.
func KindForStatus(status int) error {
	switch {
	case status < 400:
		return nil
	case status == http.StatusBadRequest, status == http.StatusUnprocessableEntity:
		return ErrValidation
	case status == http.StatusUnauthorized:
		return ErrAuth
	case status == http.StatusForbidden:
		return ErrPermission
	case status == http.StatusNotFound:
		return ErrNotFound
	case status == http.StatusConflict:
		return ErrConflict
	case status == http.StatusTooManyRequests:
		return ErrRateLimit
	case status >= 500:
		return ErrServer
	default:
		return ErrValidation
	}
}

// FromResponse builds the error for a non-2xx response. body is the raw
// response body; a FastAPI style {"detail": ...} becomes the message.
func FromResponse(method, path string, status int, body []byte) *APIError {
	kind := KindForStatus(status)
	msg := DetailMessage(body)
	if msg == "" {
		msg = defaultMessage(kind)
	}
	return &APIError{Method: method, Path: path, StatusCode: status, Message: msg, Kind: kind}
}

// Network builds the error for a request that never got a response.
func Network(method, path string, cause error) *APIError {
	return &APIError{
		Method:  method,
		Path:    path,
		Message: "unable to reach the server",
		Kind:    ErrNetwork,
		Err:     cause,
	}
}

// DetailMessage extracts "detail" from an error body. detail may be a string
// or a list of {msg} objects (request validation errors).
func DetailMessage(body []byte) string {
	var envelope struct {
		Detail  json.RawMessage `json:"detail"`
		Message string          `json:"message"`
	}
	if len(body) == 0 || json.Unmarshal(body, &envelope) != nil {
		return ""
	}
	if len(envelope.Detail) > 0 {
		var s string
		if json.Unmarshal(envelope.Detail, &s) == nil {
			return s
		}
		var items []struct {
			Msg string `json:"msg"`
		}
		if json.Unmarshal(envelope.Detail, &items) == nil {
			msgs := make([]string, 0, len(items))
			for _, it := range items {
				if it.Msg != "" {
					msgs = append(msgs, it.Msg)
				}
			}
			return strings.Join(msgs, "; ")
		}
	}
	return envelope.Message
}

func defaultMessage(kind error) string {
	switch kind {
	case ErrValidation:
		return "request rejected"
	case ErrAuth:
		return "please sign in again"
	case ErrPermission:
		return "you do not have access to this resource"
	case ErrNotFound:
		return "not found"
	case ErrConflict:
		return "the resource was changed by someone else"
	case ErrRateLimit:
		return "too many requests, slow down"
	case ErrServer:
		return "server error, try again later"
	default:
		return "request failed"
	}
}

// IsRetryable reports whether err is likely transient and worth retrying.
func IsRetryable(err error) bool {
	return errors.Is(err, ErrRateLimit) || errors.Is(err, ErrServer) || errors.Is(err, ErrNetwork)
}

// KindName returns a short label for err's kind, used in metrics and logs.
func KindName(err error) string {
	switch {
	case err == nil:
		return "ok"
	case errors.Is(err, ErrReauthRequired):
		return "reauth"
	case errors.Is(err, ErrValidation):
		return "validation"
	case errors.Is(err, ErrAuth):
		return "auth"
	case errors.Is(err, ErrPermission):
		return "permission"
	case errors.Is(err, ErrNotFound):
		return "not_found"
	case errors.Is(err, ErrConflict):
		return "conflict"
	case errors.Is(err, ErrRateLimit):
		return "rate_limit"
	case errors.Is(err, ErrServer):
		return "server"
	case errors.Is(err, ErrNetwork):
		return "network"
	default:
		return "other"
	}
}

// UserMessage returns the text to show the user for err.
func UserMessage(err error) string {
	var apiErr *APIError
	if errors.As(err, &apiErr) && apiErr.Message != "" {
		return apiErr.Message
	}
	if err == nil {
		return ""
	}
	return err.Error()
}
