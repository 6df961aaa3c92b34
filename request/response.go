package request

import (
	"fmt"
	"net/http"

	"github.com/dpup/oauthkit/errors"
	"github.com/dpup/oauthkit/univalue"
	"google.golang.org/grpc/codes"
)

// ErrRequest marks transport and HTTP level failures.
var ErrRequest = errors.NewC("request failed", codes.Unavailable)

// Response is a completed exchange with its body already parsed.
type Response struct {
	StatusCode int
	Header     http.Header
	Raw        []byte

	// Value is the parsed body, or univalue.Missing when ParseErr is set.
	Value    univalue.Value
	ParseErr error
}

// OK reports a 2xx status.
func (r *Response) OK() bool {
	return r.StatusCode >= 200 && r.StatusCode < 300
}

// Err returns an *Error for non-2xx responses.
func (r *Response) Err() error {
	if r.OK() {
		return nil
	}
	return &Error{StatusCode: r.StatusCode, Header: r.Header, Body: r.Raw}
}

// Error is a failed request. StatusCode is 0 when no response was received.
type Error struct {
	StatusCode int
	Header     http.Header
	Body       []byte
	Cause      error
}

func (e *Error) Error() string {
	if e.StatusCode == 0 {
		return fmt.Sprintf("request failed: %v", e.Cause)
	}
	body := string(e.Body)
	if len(body) > 200 {
		body = body[:200] + "..."
	}
	return fmt.Sprintf("request failed: status %d: %s", e.StatusCode, body)
}

func (e *Error) Unwrap() error {
	return e.Cause
}

// Is matches ErrRequest.
func (e *Error) Is(target error) bool {
	return target == ErrRequest
}

// Code maps the HTTP status onto a gRPC code.
func (e *Error) Code() codes.Code {
	switch {
	case e.StatusCode == 0:
		if errors.Is(e.Cause, errDeadline) {
			return codes.DeadlineExceeded
		}
		return codes.Unavailable
	case e.StatusCode == http.StatusBadRequest:
		return codes.InvalidArgument
	case e.StatusCode == http.StatusUnauthorized:
		return codes.Unauthenticated
	case e.StatusCode == http.StatusForbidden:
		return codes.PermissionDenied
	case e.StatusCode == http.StatusNotFound:
		return codes.NotFound
	case e.StatusCode == http.StatusTooManyRequests:
		return codes.ResourceExhausted
	case e.StatusCode >= 500:
		return codes.Unavailable
	default:
		return codes.Unknown
	}
}
