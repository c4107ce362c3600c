package http

import (
	"fmt"

	"github.com/cockroachdb/errors"
)

// ErrNoRequest is returned by Decode when the stream ends (or times out)
// before the first byte of a request arrives. It is a normal close, not a
// decode failure.
var ErrNoRequest = errors.New("connection closed before a request was received")

// DecodeError reports a request that could not be parsed off the stream.
// Code is the HTTP status the failure maps to.
type DecodeError struct {
	Code    int
	Message string
	cause   error
}

// NewDecodeError creates a decode error with an optional underlying cause.
func NewDecodeError(code int, message string, cause error) *DecodeError {
	return &DecodeError{Code: code, Message: message, cause: cause}
}

func (e *DecodeError) Error() string {
	if e.cause != nil {
		return fmt.Sprintf("decode %d: %s: %v", e.Code, e.Message, e.cause)
	}
	return fmt.Sprintf("decode %d: %s", e.Code, e.Message)
}

func (e *DecodeError) Unwrap() error { return e.cause }

// AsDecodeError unwraps err looking for a *DecodeError.
func AsDecodeError(err error) (*DecodeError, bool) {
	var derr *DecodeError
	ok := errors.As(err, &derr)
	return derr, ok
}

// ResponseError is returned by a handler that wants a specific response sent
// in place of a success, e.g. a validation failure.
type ResponseError struct {
	Response *Response
}

// NewResponseError wraps resp so a handler can return it as an error.
func NewResponseError(resp *Response) error {
	return &ResponseError{Response: resp}
}

func (e *ResponseError) Error() string {
	if e.Response == nil {
		return "handler responded with a nil response"
	}
	return fmt.Sprintf("handler responded with status %d", e.Response.StatusCode)
}

// AsResponseError unwraps err looking for a *ResponseError.
func AsResponseError(err error) (*ResponseError, bool) {
	var rerr *ResponseError
	ok := errors.As(err, &rerr)
	return rerr, ok
}
