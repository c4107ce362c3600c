package http

import (
	"bufio"
	"maps"
	nethttp "net/http"
	"slices"
	"strconv"
	"strings"

	"github.com/cockroachdb/errors"
)

// Encode writes resp to w and flushes it. req may be nil when the response
// answers a request that could not be decoded; the connection is then
// announced as closing. Content-Length and Connection are always computed
// here, whatever the response header says.
func Encode(w *bufio.Writer, req *Request, resp *Response) error {
	proto := "HTTP/1.1"
	if req != nil && req.Proto == "HTTP/1.0" {
		proto = "HTTP/1.0"
	}
	keepAlive := req != nil && req.KeepAlive
	code := resp.StatusCode

	w.WriteString(proto)
	w.WriteByte(' ')
	w.WriteString(strconv.Itoa(code))
	w.WriteByte(' ')
	w.WriteString(statusText(code))
	w.WriteString("\r\n")

	for _, key := range slices.Sorted(maps.Keys(resp.Header)) {
		if key == "Content-Length" || key == "Connection" {
			continue
		}
		writeHeader(w, key, resp.Header[key])
	}

	bodyAllowed := code >= 200 && code != 204 && code != 304
	if bodyAllowed {
		writeHeader(w, "Content-Length", strconv.Itoa(len(resp.Body)))
	}
	switch {
	case !keepAlive:
		writeHeader(w, "Connection", "close")
	case proto == "HTTP/1.0":
		writeHeader(w, "Connection", "keep-alive")
	}
	w.WriteString("\r\n")

	if bodyAllowed && (req == nil || req.Method != "HEAD") {
		w.Write(resp.Body)
	}

	return errors.Wrap(w.Flush(), "failed to write response")
}

// headerNewlines turns line breaks in header fields into spaces so a value
// echoed from a request cannot start a header line of its own.
var headerNewlines = strings.NewReplacer("\r\n", " ", "\r", " ", "\n", " ")

func writeHeader(w *bufio.Writer, key, value string) {
	headerNewlines.WriteString(w, key)
	w.WriteString(": ")
	headerNewlines.WriteString(w, value)
	w.WriteString("\r\n")
}

// statusText returns the HTTP status text for the given code
func statusText(code int) string {
	if text := nethttp.StatusText(code); text != "" {
		return text
	}
	return "Unknown"
}
