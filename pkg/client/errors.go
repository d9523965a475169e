package client

import (
	"context"
	"fmt"
	"net"

	"github.com/go-go-golems/ragchat/pkg/api"
	"github.com/pkg/errors"
)

// Kind classifies a failure at the backend boundary.
type Kind string

const (
	// KindTimeout means the call did not complete within the client timeout.
	KindTimeout Kind = "timeout"
	// KindUnreachable covers DNS failures, refused connections and dropped sockets.
	KindUnreachable Kind = "unreachable"
	// KindCanceled means the caller's context was cancelled before the call completed.
	KindCanceled Kind = "canceled"
	// KindBackend means the backend answered with a non-2xx status or a body
	// that does not match the expected shape.
	KindBackend Kind = "backend"
)

// TransportError is the single error type returned for anything that went
// wrong between the client and the backend.
type TransportError struct {
	Kind   Kind
	Method string
	Path   string
	// Status is the HTTP status code for KindBackend, zero otherwise.
	Status int
	// Payload is the backend's structured error body, when it sent one.
	Payload *api.APIError
	Body    []byte
	Err     error
}

func (e *TransportError) Error() string {
	if e == nil {
		return ""
	}
	prefix := fmt.Sprintf("%s %s", e.Method, e.Path)
	switch e.Kind {
	case KindTimeout:
		return prefix + ": request timed out"
	case KindCanceled:
		return prefix + ": request canceled"
	case KindUnreachable:
		if e.Err != nil {
			return prefix + ": backend unreachable: " + e.Err.Error()
		}
		return prefix + ": backend unreachable"
	default:
		msg := fmt.Sprintf("%s: backend error (status %d)", prefix, e.Status)
		if text := e.Payload.Text(); text != "" {
			msg += ": " + text
		} else if e.Err != nil {
			msg += ": " + e.Err.Error()
		}
		return msg
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// Reason is a short human-readable description suitable for a status line.
func (e *TransportError) Reason() string {
	if e == nil {
		return ""
	}
	switch e.Kind {
	case KindTimeout:
		return "The request timed out. Please try again."
	case KindCanceled:
		return "The request was canceled."
	case KindUnreachable:
		return "Failed to connect to API server. Please ensure the backend is running."
	default:
		if text := e.Payload.Text(); text != "" {
			return text
		}
		if e.Status >= 200 && e.Status < 300 {
			return "The backend returned an unexpected response."
		}
		return fmt.Sprintf("Request failed with status code %d", e.Status)
	}
}

// AsTransportError extracts a *TransportError from err's chain.
func AsTransportError(err error) (*TransportError, bool) {
	var te *TransportError
	if errors.As(err, &te) && te != nil {
		return te, true
	}
	return nil, false
}

func isKind(err error, k Kind) bool {
	te, ok := AsTransportError(err)
	return ok && te.Kind == k
}

// IsTimeout reports whether err is a transport timeout.
func IsTimeout(err error) bool { return isKind(err, KindTimeout) }

// IsUnreachable reports whether err is a network-level failure.
func IsUnreachable(err error) bool { return isKind(err, KindUnreachable) }

// IsCanceled reports whether err is a call abandoned by its caller.
func IsCanceled(err error) bool { return isKind(err, KindCanceled) }

// IsBackendError reports whether err carries a backend error response.
func IsBackendError(err error) bool { return isKind(err, KindBackend) }

// classify maps a low-level error from net/http into a transport error kind.
func classify(err error) Kind {
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	var ne net.Error
	if errors.As(err, &ne) && ne.Timeout() {
		return KindTimeout
	}
	return KindUnreachable
}
