package lfs

import (
	"net/http"
	"strings"
)

// Header is a header mapping whose keys are lower-cased on insertion, so
// lookups are case-insensitive regardless of how the platform spelled them.
type Header map[string]string

// NewHeader copies values into a new Header.
func NewHeader(values map[string]string) Header {
	h := make(Header, len(values))
	for k, v := range values {
		h.Set(k, v)
	}

	return h
}

// HeaderFromHTTP flattens a net/http header, joining repeated values.
func HeaderFromHTTP(header http.Header) Header {
	h := make(Header, len(header))
	for k, v := range header {
		h.Set(k, strings.Join(v, ", "))
	}

	return h
}

func (h Header) Set(key, value string) {
	h[strings.ToLower(key)] = value
}

func (h Header) Get(key string) string {
	return h[strings.ToLower(key)]
}
