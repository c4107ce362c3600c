package middleware

import (
	"strings"

	"github.com/google/uuid"
	"github.com/samber/lo"

	"github.com/searchktools/tiny-server/core/http"
)

// HeaderRequestID carries the request identifier.
const HeaderRequestID = "X-Request-Id"

// RequestID tags every request with an identifier. An identifier sent by the
// client is kept; otherwise a UUIDv7 is generated. The identifier is echoed
// on the response.
type RequestID struct {
	Generate func() string
}

// NewRequestID creates a RequestID plugin generating UUIDv7 identifiers
func NewRequestID() *RequestID {
	return &RequestID{
		Generate: func() string {
			return uuid.Must(uuid.NewV7()).String()
		},
	}
}

func (p *RequestID) PreRequest(req *http.Request) *http.Response {
	if req.Header.Get(HeaderRequestID) == "" {
		req.Header.Set(HeaderRequestID, p.Generate())
	}
	return nil
}

func (p *RequestID) PostResponse(req *http.Request, resp *http.Response) {
	if id := req.Header.Get(HeaderRequestID); id != "" {
		resp.SetHeader(HeaderRequestID, id)
	}
}

// CORS adds cross-origin headers and answers preflight requests itself.
type CORS struct {
	AllowOrigins []string
	AllowMethods []string
	AllowHeaders []string
}

// NewCORS creates a CORS plugin allowing any origin
func NewCORS() *CORS {
	return &CORS{
		AllowOrigins: []string{"*"},
		AllowMethods: []string{"GET", "POST", "OPTIONS"},
		AllowHeaders: []string{"Content-Type", "Authorization"},
	}
}

func (p *CORS) allowedOrigin(origin string) (string, bool) {
	if lo.Contains(p.AllowOrigins, "*") {
		return "*", true
	}
	if origin != "" && lo.Contains(p.AllowOrigins, origin) {
		return origin, true
	}
	return "", false
}

func (p *CORS) PreRequest(req *http.Request) *http.Response {
	if req.Method != "OPTIONS" {
		return nil
	}
	return http.NewResponse(204, nil)
}

func (p *CORS) PostResponse(req *http.Request, resp *http.Response) {
	origin, ok := p.allowedOrigin(req.Header.Get("Origin"))
	if !ok {
		return
	}
	resp.SetHeader("Access-Control-Allow-Origin", origin)
	if origin != "*" {
		resp.SetHeader("Vary", "Origin")
	}
	if req.Method == "OPTIONS" {
		resp.SetHeader("Access-Control-Allow-Methods", strings.Join(lo.Uniq(p.AllowMethods), ", "))
		resp.SetHeader("Access-Control-Allow-Headers", strings.Join(lo.Uniq(p.AllowHeaders), ", "))
	}
}
