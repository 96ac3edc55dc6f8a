package gateway

import (
	"errors"
	"net"
	"net/http"
	"strings"

	jwtpkg "github.com/oripridan-dot/TooLoo.ai-sub016/pkg/jwt"
)

// clientKey derives the rate-limit key for a request: the authenticated
// user when a valid bearer token is present, else the client IP, else the
// shared anonymous bucket for address-less requests.
func (r *Router) clientKey(req *http.Request) string {
	if r.jwtSecret != "" {
		if token, err := bearerToken(req.Header.Get("Authorization")); err == nil {
			if claims, err := jwtpkg.Parse(token, r.jwtSecret); err == nil && claims.UserID != "" {
				return "user:" + claims.UserID
			}
		}
	}
	if ip := clientIP(req); ip != "" {
		return "ip:" + ip
	}
	return "anonymous"
}

// keyClass reduces a rate-limit key to its prefix for metric labels, so
// per-client cardinality never reaches Prometheus.
func keyClass(key string) string {
	if idx := strings.IndexRune(key, ':'); idx > 0 {
		return key[:idx]
	}
	if key == "" {
		return "unknown"
	}
	return key
}

func clientIP(req *http.Request) string {
	if forwarded := strings.TrimSpace(req.Header.Get("X-Forwarded-For")); forwarded != "" {
		parts := strings.Split(forwarded, ",")
		if ip := strings.TrimSpace(parts[0]); ip != "" {
			return ip
		}
	}
	host, _, err := net.SplitHostPort(strings.TrimSpace(req.RemoteAddr))
	if err != nil {
		return strings.TrimSpace(req.RemoteAddr)
	}
	return host
}

func bearerToken(header string) (string, error) {
	if strings.TrimSpace(header) == "" {
		return "", errors.New("missing authorization header")
	}
	parts := strings.Fields(header)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		return "", errors.New("invalid authorization header format")
	}
	token := strings.TrimSpace(parts[1])
	if token == "" {
		return "", errors.New("empty bearer token")
	}
	return token, nil
}

func isWebSocketUpgrade(req *http.Request) bool {
	if !strings.EqualFold(req.Header.Get("Upgrade"), "websocket") {
		return false
	}
	for _, token := range strings.Split(req.Header.Get("Connection"), ",") {
		if strings.EqualFold(strings.TrimSpace(token), "upgrade") {
			return true
		}
	}
	return false
}
