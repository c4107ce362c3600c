package core

import (
	"time"

	"github.com/cockroachdb/errors"
)

// Built-in response bodies
const (
	BodyNotFound      = "<h1>404</h1>"
	BodyInternalError = "<h1>500</h1>"
)

// Accept retry backoff bounds
const (
	minAcceptBackoff = 5 * time.Millisecond
	maxAcceptBackoff = time.Second
)

// Error definitions
var (
	// ErrRegistrationClosed is the panic value of a route or plugin
	// registration made after the engine was built.
	ErrRegistrationClosed = errors.New("registration is closed once the engine is built")

	// ErrNilResponse is the opaque handler failure recorded when a handler
	// returns neither a response nor an error.
	ErrNilResponse = errors.New("handler returned a nil response")
)
