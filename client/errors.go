package client

import (
	"context"
	"errors"
	"fmt"
	"net"
	"net/http"
)

// Kind labels the cause of a TransportError.
type Kind string

const (
	KindTimeout     Kind = "timeout"
	KindCanceled    Kind = "canceled"
	KindConnection  Kind = "connection"
	KindForbidden   Kind = "forbidden"
	KindNotFound    Kind = "not_found"
	KindRateLimited Kind = "rate_limited"
	KindStatus      Kind = "status"
	KindDecode      Kind = "decode"
	KindOther       Kind = "other"
)

// TransportError is returned for network failures, non-2xx responses and
// bodies that cannot be decoded.
type TransportError struct {
	Kind       Kind
	Method     string
	URL        string
	StatusCode int
	Err        error
}

func (e *TransportError) Error() string {
	return fmt.Sprintf("%s %s: %s: %v", e.Method, e.URL, e.Kind, e.Err)
}

func (e *TransportError) Unwrap() error {
	return e.Err
}

// IsNotFound reports whether err is a 404 from the backend.
func IsNotFound(err error) bool {
	return KindOf(err) == KindNotFound
}

// KindOf returns the kind of a TransportError in err's chain, or "other".
func KindOf(err error) Kind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return KindOther
}

// Classify maps a request failure to a Kind. statusCode is 0 when no
// response was received.
func Classify(err error, statusCode int) Kind {
	if errors.Is(err, context.DeadlineExceeded) {
		return KindTimeout
	}
	if errors.Is(err, context.Canceled) {
		return KindCanceled
	}
	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return KindTimeout
	}
	var opErr *net.OpError
	if errors.As(err, &opErr) {
		return KindConnection
	}

	switch statusCode {
	case 0:
		return KindOther
	case http.StatusForbidden:
		return KindForbidden
	case http.StatusNotFound:
		return KindNotFound
	case http.StatusTooManyRequests:
		return KindRateLimited
	default:
		return KindStatus
	}
}
