package pricebook

import (
	"errors"
	"fmt"
	"strings"
)

// Kind classifies a backend call failure.
type Kind string

const (
	// KindConnection covers dial/transport failures before a response arrives.
	KindConnection Kind = "connection"
	// KindTimeout covers client timeouts and deadline expiry.
	KindTimeout Kind = "timeout"
	// KindStatus covers non-2xx responses from the backend.
	KindStatus Kind = "status"
	// KindDecode covers responses whose body is not valid JSON.
	KindDecode Kind = "decode"
)

// Error is a structured backend call failure. Callers branch on Kind
// (or the Is* helpers) to render transport-specific messages; the
// Error() text is what flows into the catch-all "Error:" surface.
type Error struct {
	Kind       Kind
	StatusCode int
	Message    string
	Cause      error
}

func (e *Error) Error() string {
	if e == nil {
		return ""
	}
	msg := strings.TrimSpace(e.Message)
	switch {
	case e.Kind == KindStatus && e.StatusCode != 0:
		return fmt.Sprintf("backend returned status %d: %s", e.StatusCode, msg)
	case msg == "":
		return string(e.Kind)
	default:
		return msg
	}
}

// Unwrap exposes the wrapped cause for errors.Is/errors.As.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Cause
}

// IsTimeout reports whether err is a backend timeout failure.
func IsTimeout(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindTimeout
}

// IsConnection reports whether err is a transport-level failure that
// never produced a response.
func IsConnection(err error) bool {
	var be *Error
	return errors.As(err, &be) && be.Kind == KindConnection
}
