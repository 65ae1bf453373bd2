package executor

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/url"
	"syscall"
)

// NetworkKind classifies transport failures.
type NetworkKind string

const (
	KindTimeout NetworkKind = "timeout"
	KindConnect NetworkKind = "connect"
	KindOther   NetworkKind = "other"
)

// NetworkError is a failure to get any HTTP response at all.
type NetworkError struct {
	Kind NetworkKind
	URL  string
	Err  error
}

func (e *NetworkError) Error() string {
	return fmt.Sprintf("%s error calling %s: %v", e.Kind, e.URL, e.Err)
}

func (e *NetworkError) Unwrap() error { return e.Err }

// Transient reports whether a retry may succeed.
func (e *NetworkError) Transient() bool {
	return e.Kind == KindTimeout || e.Kind == KindConnect
}

// StatusError is a non-2xx response. It is never retried.
type StatusError struct {
	URL        string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body != "" {
		return fmt.Sprintf("provider returned HTTP %d: %s", e.StatusCode, e.Body)
	}
	return fmt.Sprintf("provider returned HTTP %d", e.StatusCode)
}

// DecodeError is a 2xx response whose body is not JSON.
type DecodeError struct {
	URL string
	Err error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("provider response is not valid JSON: %v", e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// IsTransient reports whether err is a retryable network failure.
func IsTransient(err error) bool {
	var ne *NetworkError
	return errors.As(err, &ne) && ne.Transient()
}

func classifyNetwork(rawURL string, err error) *NetworkError {
	// url.Error repeats the full URL, query string included.
	var ue *url.Error
	if errors.As(err, &ue) && ue.Err != nil {
		err = ue.Err
	}
	kind := KindOther
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		kind = KindTimeout
	case errors.As(err, &netErr) && netErr.Timeout():
		kind = KindTimeout
	case isConnect(err):
		kind = KindConnect
	}
	return &NetworkError{Kind: kind, URL: redact(rawURL), Err: err}
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

// redact drops query strings, which often carry API keys.
func redact(rawURL string) string {
	u, err := url.Parse(rawURL)
	if err != nil {
		return rawURL
	}
	u.RawQuery = ""
	u.User = nil
	return u.String()
}
