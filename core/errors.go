package core

import (
	"strconv"

	"github.com/searchktools/tiny-server/core/http"
)

// notFound answers a request no route matched.
func notFound() *http.Response {
	return http.HTML(404, BodyNotFound)
}

// internalError answers a request whose handler failed without a response
// of its own.
func internalError() *http.Response {
	return http.HTML(500, BodyInternalError)
}

// handlerErrorResponse maps a handler failure to the response to send. A
// *http.ResponseError carries that response; anything else is opaque.
func handlerErrorResponse(err error) *http.Response {
	if rerr, ok := http.AsResponseError(err); ok && rerr.Response != nil {
		return rerr.Response
	}
	return internalError()
}

// decodeErrorResponse maps a decode failure to the response sent before the
// connection closes. A nil result means close without responding, which
// legacy mode does for every code but 405 and 500.
func decodeErrorResponse(derr *http.DecodeError, legacy bool) *http.Response {
	switch derr.Code {
	case 405:
		return &http.Response{StatusCode: 405}
	case 500:
		return internalError()
	}
	if legacy {
		return nil
	}

	code := derr.Code
	if code < 400 || code > 599 {
		code = 400
	}
	return http.HTML(code, "<h1>"+strconv.Itoa(code)+"</h1>")
}
