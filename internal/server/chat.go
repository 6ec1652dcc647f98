package server

import (
	"encoding/json"
	"fmt"
	"net/http"

	"github.com/stdin/venezuelawatch/internal/llm"
)

// chatRequest is the POST /chat body: the conversation so far.
type chatRequest struct {
	Messages []llm.ChatMessage `json:"messages"`
}

// handleChat implements POST /chat (SSE): streams the narrator's reply
// as {type: "content", text} frames, followed by a terminal {type:
// "done"} or {type: "error"} frame. No tool is wired behind this
// narrator, so the "tool_use" frame type is never emitted -- see
// DESIGN.md.
func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		http.Error(w, "invalid request body", http.StatusBadRequest)
		return
	}
	if len(req.Messages) == 0 {
		http.Error(w, "messages must not be empty", http.StatusBadRequest)
		return
	}

	w.Header().Set("Content-Type", "text/event-stream")
	w.Header().Set("Cache-Control", "no-cache")
	w.Header().Set("Connection", "keep-alive")

	flusher, ok := w.(http.Flusher)
	if !ok {
		http.Error(w, "streaming not supported", http.StatusInternalServerError)
		return
	}

	deltas, err := s.narrator.Stream(r.Context(), req.Messages)
	if err != nil {
		writeSSE(w, flusher, map[string]any{"type": "error", "message": err.Error()})
		return
	}

	done := r.Context().Done()
	for {
		select {
		case <-done:
			return
		case d, ok := <-deltas:
			if !ok {
				return
			}
			if d.Err != nil {
				writeSSE(w, flusher, map[string]any{"type": "error", "message": d.Err.Error()})
				return
			}
			if d.Done {
				writeSSE(w, flusher, map[string]any{"type": "done"})
				return
			}
			writeSSE(w, flusher, map[string]any{"type": "content", "text": d.Text})
		}
	}
}

func writeSSE(w http.ResponseWriter, flusher http.Flusher, v any) {
	b, err := json.Marshal(v)
	if err != nil {
		return
	}
	fmt.Fprintf(w, "data: %s\n\n", b)
	flusher.Flush()
}
