package http

import "net/textproto"

// Header maps canonical MIME header keys to a single value.
// Repeated request headers are folded with ", " by the decoder.
type Header map[string]string

// Get returns the value for key, matched case-insensitively.
func (h Header) Get(key string) string {
	if h == nil {
		return ""
	}
	return h[textproto.CanonicalMIMEHeaderKey(key)]
}

// Set stores value under the canonical form of key.
func (h Header) Set(key, value string) {
	h[textproto.CanonicalMIMEHeaderKey(key)] = value
}

// Add appends value to an existing entry, comma separated.
func (h Header) Add(key, value string) {
	key = textproto.CanonicalMIMEHeaderKey(key)
	if prev, ok := h[key]; ok && prev != "" {
		h[key] = prev + ", " + value
		return
	}
	h[key] = value
}

// Del removes key.
func (h Header) Del(key string) {
	delete(h, textproto.CanonicalMIMEHeaderKey(key))
}

// Has reports whether key is present.
func (h Header) Has(key string) bool {
	_, ok := h[textproto.CanonicalMIMEHeaderKey(key)]
	return ok
}

// Clone returns a copy of h. A nil header clones to nil.
func (h Header) Clone() Header {
	if h == nil {
		return nil
	}
	out := make(Header, len(h))
	for k, v := range h {
		out[k] = v
	}
	return out
}
