package adapter

import (
	"context"
	"errors"
	"fmt"
	"net"
	"syscall"
)

// Kind classifies adapter failures.
type Kind string

const (
	// KindConnectivity means the backend could not be reached at all.
	KindConnectivity Kind = "connectivity"
	// KindTimeout means the backend was reached but did not answer in time.
	KindTimeout Kind = "timeout"
	// KindStatus means the backend answered with an error status.
	KindStatus Kind = "status"
	// KindProtocol means the backend answered with something unusable.
	KindProtocol Kind = "protocol"
)

// Error wraps provider errors with classification metadata.
type Error struct {
	Backend   string
	Kind      Kind
	Status    int
	Temporary bool
	Err       error
}

func (e *Error) Error() string {
	if e == nil {
		return "adapter error"
	}
	msg := fmt.Sprintf("%s %s error", e.Backend, e.Kind)
	if e.Status != 0 {
		msg = fmt.Sprintf("%s (status=%d)", msg, e.Status)
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// classify converts a transport error into an *Error. Errors that are
// already classified pass through unchanged.
func classify(backend string, err error) error {
	if err == nil {
		return nil
	}
	var ae *Error
	if errors.As(err, &ae) {
		return err
	}
	kind := KindProtocol
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case isTimeout(err):
		kind = KindTimeout
	case isConnect(err):
		kind = KindConnectivity
	}
	return &Error{Backend: backend, Kind: kind, Temporary: kind == KindTimeout, Err: err}
}

func statusError(backend string, status int, err error) error {
	return &Error{
		Backend:   backend,
		Kind:      KindStatus,
		Status:    status,
		Temporary: status == 429 || status >= 500,
		Err:       err,
	}
}

func isTimeout(err error) bool {
	var netErr net.Error
	return errors.As(err, &netErr) && netErr.Timeout()
}

func isConnect(err error) bool {
	if errors.Is(err, syscall.ECONNREFUSED) || errors.Is(err, syscall.ECONNRESET) || errors.Is(err, syscall.EHOSTUNREACH) {
		return true
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) && opErr.Op == "dial" {
		return true
	}
	var dnsErr *net.DNSError
	return errors.As(err, &dnsErr)
}

// IsUnreachable reports whether err means the backend could not be reached.
func IsUnreachable(err error) bool {
	var ae *Error
	return errors.As(err, &ae) && ae.Kind == KindConnectivity
}

// IsTimeout reports whether err means the backend timed out.
func IsTimeout(err error) bool {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Kind == KindTimeout
	}
	return errors.Is(err, context.DeadlineExceeded)
}

// IsTransient reports whether an error is safe to retry.
func IsTransient(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) {
		return false
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	var ae *Error
	if errors.As(err, &ae) {
		if ae.Temporary || ae.Kind == KindTimeout {
			return true
		}
		if ae.Status == 429 || (ae.Status >= 500 && ae.Status <= 599) {
			return true
		}
		return false
	}
	return isTimeout(err)
}
