package upstream

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind classifies provider failures.
type Kind int

const (
	// KindUnavailable covers network faults, timeouts and non-2xx responses.
	KindUnavailable Kind = iota
	// KindMalformed is a 2xx response missing the fields we depend on.
	KindMalformed
)

func (k Kind) String() string {
	switch k {
	case KindUnavailable:
		return "unavailable"
	case KindMalformed:
		return "malformed"
	default:
		return fmt.Sprintf("kind(%d)", int(k))
	}
}

// Error is returned by every Client operation.
type Error struct {
	Provider   string
	Kind       Kind
	StatusCode int    // zero when no response was received
	Message    string // provider supplied message, if any
	Err        error
}

func (e *Error) Error() string {
	msg := fmt.Sprintf("%s provider %s", e.Provider, e.Kind)
	if e.StatusCode != 0 {
		msg += fmt.Sprintf(" (status %d)", e.StatusCode)
	}
	if e.Message != "" {
		msg += ": " + e.Message
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error { return e.Err }

// IsNotFound reports whether err carries a 404 from a provider.
func IsNotFound(err error) bool {
	var upErr *Error
	return errors.As(err, &upErr) && upErr.StatusCode == http.StatusNotFound
}

// IsTimeout reports whether err stems from a deadline or a network timeout.
func IsTimeout(err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}
