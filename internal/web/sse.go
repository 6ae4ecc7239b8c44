package web

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"
	"time"
)

// sseKeepAlive is how often an idle stream gets a comment line so proxies keep it open.
var sseKeepAlive = 25 * time.Second

// handleSSE streams storage events to the browser. ?keys=a,b limits storage
// events to those store keys; other events are always sent.
func (s *Server) handleSSE(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "Streaming not supported", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")
	w.Header().Set("Access-Control-Allow-Origin", "*")

	keys := keyFilter(r.URL.Query().Get("keys"))

	messageChan := make(chan sseEvent, 10)
	s.sseMu.Lock()
	s.sseClients[messageChan] = true
	s.sseMu.Unlock()

	// Shutdown may already have closed the channel
	defer func() {
		s.sseMu.Lock()
		if s.sseClients[messageChan] {
			delete(s.sseClients, messageChan)
			close(messageChan)
		}
		s.sseMu.Unlock()
	}()

	fmt.Fprintf(w, "event: connected\ndata: {\"workspace\":%q}\n\n", s.ws.ID())
	flusher.Flush()
	s.logger.Debug("SSE client connected", "keys", len(keys))

	ping := time.NewTicker(sseKeepAlive)
	defer ping.Stop()

	for {
		select {
		case <-r.Context().Done():
			s.logger.Debug("SSE client disconnected")
			return
		case <-ping.C:
			fmt.Fprint(w, ": ping\n\n")
			flusher.Flush()
		case msg, ok := <-messageChan:
			if !ok {
				return
			}
			if msg.Key != "" && keys != nil && !keys[msg.Key] {
				continue
			}
			data, err := json.Marshal(msg.Data)
			if err != nil {
				s.logger.Error("Failed to encode SSE event", "event", msg.Name, "error", err)
				continue
			}
			fmt.Fprintf(w, "id: %d\nevent: %s\ndata: %s\n\n", msg.ID, msg.Name, data)
			flusher.Flush()
		}
	}
}

// keyFilter parses a comma-separated key list. Nil means every key.
func keyFilter(raw string) map[string]bool {
	if strings.TrimSpace(raw) == "" {
		return nil
	}
	keys := make(map[string]bool)
	for _, k := range strings.Split(raw, ",") {
		if k = strings.TrimSpace(k); k != "" {
			keys[k] = true
		}
	}
	return keys
}
