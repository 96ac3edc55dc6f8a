package gateway

import (
	"net/http"
	"strings"

	"github.com/gorilla/websocket"

	"github.com/oripridan-dot/TooLoo.ai-sub016/internal/registry"
)

// headers owned by the websocket handshake itself; never forwarded.
var wsHandshakeHeaders = []string{
	"Connection",
	"Upgrade",
	"Sec-Websocket-Key",
	"Sec-Websocket-Version",
	"Sec-Websocket-Extensions",
	"Sec-Websocket-Protocol",
}

// relayWebSocket bridges a client websocket to the downstream service,
// pumping frames in both directions until either side closes.
func (r *Router) relayWebSocket(recorder *statusRecorder, req *http.Request, route registry.Route) {
	targetURL := "ws" + strings.TrimPrefix(route.Target.URL(), "http") + req.URL.Path
	if req.URL.RawQuery != "" {
		targetURL += "?" + req.URL.RawQuery
	}

	forward := http.Header{}
	for key, values := range req.Header {
		forward[key] = values
	}
	for _, h := range wsHandshakeHeaders {
		forward.Del(h)
	}

	downstream, resp, err := websocket.DefaultDialer.DialContext(req.Context(), targetURL, forward)
	if err != nil {
		status := http.StatusBadGateway
		if resp != nil {
			status = resp.StatusCode
		}
		r.logger.Warn("websocket dial failed", "target", route.Name, "error", err)
		writeError(recorder, status, "websocket upstream unavailable")
		return
	}
	defer downstream.Close()

	client, err := r.upgrader.Upgrade(recorder, req, nil)
	if err != nil {
		// Upgrade already wrote its error response.
		return
	}
	defer client.Close()
	recorder.status = http.StatusSwitchingProtocols

	errCh := make(chan error, 2)
	go pumpWebSocket(client, downstream, errCh)
	go pumpWebSocket(downstream, client, errCh)
	<-errCh
}

func pumpWebSocket(dst, src *websocket.Conn, errCh chan<- error) {
	for {
		messageType, data, err := src.ReadMessage()
		if err != nil {
			errCh <- err
			return
		}
		if err := dst.WriteMessage(messageType, data); err != nil {
			errCh <- err
			return
		}
	}
}
