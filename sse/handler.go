package sse

import (
	"encoding/json"
	"net/http"
	"time"
)

// DefaultKeepAlive stays below the usual 60s proxy idle timeout.
const DefaultKeepAlive = 30 * time.Second

// ConnectedEvent is the first frame of every stream.
type ConnectedEvent struct {
	ClientID string `json:"clientId"`
}

// ServeSSE streams the frames the hub routes to clientID until the request
// context ends or the hub drops the client. A keepAlive of zero uses
// DefaultKeepAlive.
func ServeSSE(hub *Hub, w http.ResponseWriter, r *http.Request, clientID string, keepAlive time.Duration) {
	log := hub.log.WithContext(r.Context())

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}
	if keepAlive <= 0 {
		keepAlive = DefaultKeepAlive
	}

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		log.Debug("Could not clear write deadline", map[string]interface{}{
			"client_id": clientID,
			"error":     err.Error(),
		})
	}

	client := NewClient(clientID)
	if !hub.Register(client) {
		http.Error(w, ErrHubStopped.Error(), http.StatusServiceUnavailable)
		return
	}
	defer hub.Unregister(client)

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	connected, _ := json.Marshal(ConnectedEvent{ClientID: clientID})
	_, _ = Frame{Event: EventConnected, Data: connected}.WriteTo(w)
	flusher.Flush()
	log.Debug("Client connected", map[string]interface{}{
		"client_id":   clientID,
		"remote_addr": r.RemoteAddr,
	})

	ticker := time.NewTicker(keepAlive)
	defer ticker.Stop()

	for {
		select {
		case <-r.Context().Done():
			return

		case frame, ok := <-client.Events():
			if !ok {
				return
			}
			if _, err := frame.WriteTo(w); err != nil {
				return
			}
			flusher.Flush()

		case <-ticker.C:
			if _, err := w.Write([]byte(": keepalive\n\n")); err != nil {
				return
			}
			flusher.Flush()
		}
	}
}
