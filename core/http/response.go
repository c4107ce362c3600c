package http

// Common content types
const (
	ContentTypeHTML = "text/html;charset=utf-8"
	ContentTypeText = "text/plain;charset=utf-8"
)

// Response is the structured reply handed to the encoder. Plugins may mutate
// it in place during the post-response pass.
type Response struct {
	StatusCode int
	Header     Header
	Body       []byte
}

// HandlerFunc serves one request. A non-nil error is either a *ResponseError,
// whose response is sent as is, or an opaque failure answered with a generic
// 500.
type HandlerFunc func(req *Request) (*Response, error)

// NewResponse creates a response with an empty header map.
func NewResponse(status int, body []byte) *Response {
	return &Response{
		StatusCode: status,
		Header:     make(Header, 2),
		Body:       body,
	}
}

// Text creates a plain text response.
func Text(status int, s string) *Response {
	resp := NewResponse(status, []byte(s))
	resp.Header.Set("Content-Type", ContentTypeText)
	return resp
}

// HTML creates an html response.
func HTML(status int, s string) *Response {
	resp := NewResponse(status, []byte(s))
	resp.Header.Set("Content-Type", ContentTypeHTML)
	return resp
}

// SetHeader sets a response header, allocating the map on first use.
func (r *Response) SetHeader(key, value string) {
	if r.Header == nil {
		r.Header = make(Header, 2)
	}
	r.Header.Set(key, value)
}
