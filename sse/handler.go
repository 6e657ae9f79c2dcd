package sse

import (
	"encoding/json"
	"fmt"
	"net/http"
	"time"

	"github.com/kbukum/voicememo/logger"
)

const (
	// EventConnected is the first frame of every stream.
	EventConnected = "connected"
	// KeepAliveInterval stays below common proxy idle timeouts.
	KeepAliveInterval = 30 * time.Second
)

// Serve streams frames for c until the request ends or the hub closes the
// client. It registers and unregisters c itself.
func (h *Hub) Serve(w http.ResponseWriter, r *http.Request, c *Client) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	// Streams outlive the server's WriteTimeout.
	if err := http.NewResponseController(w).SetWriteDeadline(time.Time{}); err != nil {
		h.log.Debug("could not clear write deadline", map[string]interface{}{
			"client_id":       c.id,
			logger.FieldError: err.Error(),
		})
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("X-Accel-Buffering", "no")

	if !h.Register(c) {
		http.Error(w, "event hub stopped", http.StatusServiceUnavailable)
		return
	}
	defer h.Unregister(c)

	hello, _ := json.Marshal(map[string]string{"client_id": c.id, "task_id": c.taskID})
	writeFrame(w, Frame{Event: EventConnected, Data: hello})
	flusher.Flush()

	keepAlive := time.NewTicker(KeepAliveInterval)
	defer keepAlive.Stop()

	for {
		select {
		case <-r.Context().Done():
			return
		case f, ok := <-c.Frames():
			if !ok {
				return
			}
			writeFrame(w, f)
			flusher.Flush()
		case <-keepAlive.C:
			_, _ = fmt.Fprintf(w, ": keepalive %d\n\n", time.Now().Unix())
			flusher.Flush()
		}
	}
}

func writeFrame(w http.ResponseWriter, f Frame) {
	if f.Event != "" {
		_, _ = fmt.Fprintf(w, "event: %s\n", f.Event)
	}
	_, _ = fmt.Fprintf(w, "data: %s\n\n", f.Data)
}
