package endpoint

import (
	"net/http"
	"time"

	"github.com/google/uuid"

	"github.com/kbukum/meshkit/sse"
)

// Events streams registry events as server-sent events. The optional
// ?service= query narrows the stream to one service. It is a plain
// http.Handler so it can be mounted on the ServeMux, outside gin's writer.
func Events(hub *sse.Hub, keepAlive time.Duration) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodGet {
			w.Header().Set("Allow", http.MethodGet)
			http.Error(w, http.StatusText(http.StatusMethodNotAllowed), http.StatusMethodNotAllowed)
			return
		}
		id := sse.ClientID(r.URL.Query().Get("service"), uuid.NewString())
		sse.ServeSSE(hub, w, r, id, keepAlive)
	})
}
