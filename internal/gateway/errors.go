package gateway

import (
	"context"
	"errors"
	"fmt"
	"net"
)

// Kind classifies a failed backend call.
type Kind string

const (
	KindNetworkUnreachable Kind = "network_unreachable"
	KindHTTPError          Kind = "http_error"
	KindMalformedResponse  Kind = "malformed_response"
	KindTimeout            Kind = "timeout"
	// KindRejected is a well-formed reply whose status field is not "success".
	KindRejected Kind = "rejected"
)

// TransportError is the only error type returned by Gateway methods.
type TransportError struct {
	Op      string // backend operation, ex: "initialize"
	Kind    Kind
	Status  int    // HTTP status, only for KindHTTPError
	Message string // backend-provided or derived detail
	Err     error
}

func (e *TransportError) Error() string {
	switch e.Kind {
	case KindHTTPError:
		if e.Message != "" {
			return fmt.Sprintf("%s: backend returned HTTP %d: %s", e.Op, e.Status, e.Message)
		}
		return fmt.Sprintf("%s: backend returned HTTP %d", e.Op, e.Status)
	case KindTimeout:
		return fmt.Sprintf("%s: backend did not answer in time", e.Op)
	case KindNetworkUnreachable:
		return fmt.Sprintf("%s: unable to connect to the server: %v", e.Op, e.Err)
	case KindMalformedResponse:
		return fmt.Sprintf("%s: malformed response: %s", e.Op, e.Message)
	default:
		return fmt.Sprintf("%s: %s", e.Op, e.Message)
	}
}

func (e *TransportError) Unwrap() error { return e.Err }

// KindOf returns the Kind of a TransportError anywhere in err's chain, or "".
func KindOf(err error) Kind {
	var te *TransportError
	if errors.As(err, &te) {
		return te.Kind
	}
	return ""
}

// IsTimeout reports whether err is a gateway timeout.
func IsTimeout(err error) bool {
	return KindOf(err) == KindTimeout
}

func transportFailure(op string, err error) *TransportError {
	kind := KindNetworkUnreachable
	var ne net.Error
	if errors.Is(err, context.DeadlineExceeded) || (errors.As(err, &ne) && ne.Timeout()) {
		kind = KindTimeout
	}
	return &TransportError{Op: op, Kind: kind, Err: err}
}

func malformed(op string, format string, args ...any) *TransportError {
	return &TransportError{Op: op, Kind: KindMalformedResponse, Message: fmt.Sprintf(format, args...)}
}
