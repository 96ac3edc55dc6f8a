package gateway

import (
	"encoding/json"
	"net/http"
)

// writeJSON writes a JSON response with status code.
func writeJSON(w http.ResponseWriter, status int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(payload)
}

// writeError sends a structured error body.
func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, map[string]any{"ok": false, "error": msg})
}

// writeProxyError sends the 502 shape carrying the trace id so a client can
// correlate the failure with server-side diagnostics.
func writeProxyError(w http.ResponseWriter, traceID, details string) {
	writeJSON(w, http.StatusBadGateway, map[string]any{
		"ok":      false,
		"error":   "Service unavailable",
		"details": details,
		"traceId": traceID,
	})
}
