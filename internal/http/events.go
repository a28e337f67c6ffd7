package http

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"net/http"

	"skoglogg/internal/events"
)

// handleEvents streams ledger changes as server-sent events. The notifier
// subscription lives exactly as long as the request: a client that connects
// after a change must re-fetch state itself, there is no replay.
func (s *Server) handleEvents(w http.ResponseWriter, r *http.Request) {
	flusher, ok := w.(http.Flusher)
	if !ok {
		writeJSON(w, http.StatusInternalServerError, errorResponse{Error: "streaming unsupported"})
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	// Buffered so a slow client never blocks the publishing mutation;
	// overflowing events are dropped, delivery is best-effort.
	ch := make(chan events.LedgerChanged, 16)
	sub := s.notifier.Subscribe(func(ev events.LedgerChanged) {
		select {
		case ch <- ev:
		default:
		}
	})
	defer s.notifier.Unsubscribe(sub)

	fmt.Fprint(w, ": connected\n\n")
	flusher.Flush()

	for {
		select {
		case <-r.Context().Done():
			slog.DebugContext(r.Context(), "Event stream closed")
			return
		case ev := <-ch:
			data, err := json.Marshal(map[string]string{"session_id": ev.SessionID})
			if err != nil {
				continue
			}
			fmt.Fprintf(w, "event: ledger-changed\ndata: %s\n\n", data)
			flusher.Flush()
		}
	}
}
