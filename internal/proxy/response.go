package proxy

import (
	"encoding/json"
	"io"
	"net/http"
	"strings"
)

// BodyKind classifies how a downstream body must be relayed.
type BodyKind string

const (
	BodyJSON   BodyKind = "json"
	BodyText   BodyKind = "text"
	BodyStream BodyKind = "stream"
)

// ServiceResponse is the typed wrapper for a downstream result. Buffered
// kinds carry Body; BodyStream carries Stream, which the caller must close
// after relaying.
type ServiceResponse struct {
	Status int
	Header http.Header
	Kind   BodyKind
	Body   []byte
	Stream io.ReadCloser
	// Fallback marks a synthetic breaker-open response that never
	// reached the downstream service.
	Fallback bool
}

// Fallback is the synthetic response returned when a service's breaker is
// open: the caller gets an immediate, clearly labeled failure instead of
// waiting on a downed dependency.
func Fallback(service string) *ServiceResponse {
	payload, _ := json.Marshal(map[string]any{
		"ok":    false,
		"error": service + " service temporarily unavailable",
	})
	header := http.Header{}
	header.Set("Content-Type", "application/json")
	return &ServiceResponse{
		Status:   http.StatusServiceUnavailable,
		Header:   header,
		Kind:     BodyJSON,
		Body:     payload,
		Fallback: true,
	}
}

// hop-by-hop headers stripped before relaying in either direction.
var hopHeaders = []string{
	"Connection",
	"Keep-Alive",
	"Proxy-Authenticate",
	"Proxy-Authorization",
	"Te",
	"Trailer",
	"Transfer-Encoding",
	"Upgrade",
	"Content-Length",
	"Content-Encoding",
}

func cleanHeader(src http.Header) http.Header {
	dst := make(http.Header, len(src))
	for key, values := range src {
		dst[key] = append([]string(nil), values...)
	}
	for _, h := range hopHeaders {
		dst.Del(h)
	}
	return dst
}

func kindFor(contentType string) BodyKind {
	ct := strings.ToLower(contentType)
	switch {
	case strings.HasPrefix(ct, "text/event-stream"):
		return BodyStream
	case strings.HasPrefix(ct, "application/json"):
		return BodyJSON
	default:
		return BodyText
	}
}
