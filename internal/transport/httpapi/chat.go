package httpapi

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"strings"

	"go.uber.org/zap"

	chatuc "github.com/agentcv/agentcv/internal/usecase/chat"
)

// respondChat handles POST /api/chat. The request targets a published
// profile by handle, or the caller's own profile when no handle is given.
func (s *Server) respondChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	answer, err := s.chat.Respond(r.Context(), req)
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		s.handleDomainError(w, err)
		return
	}
	writeJSON(w, http.StatusOK, chatResponse{Answer: answer})
}

// streamChat handles POST /api/chat/stream, emitting answer fragments as
// server-sent events. The status line is committed on the first fragment, so
// failures during target and credential resolution still map to their JSON
// status codes instead of an empty 200 stream.
func (s *Server) streamChat(w http.ResponseWriter, r *http.Request) {
	req, ok := s.decodeChatRequest(w, r)
	if !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, "internal_error", "streaming unsupported")
		return
	}

	streaming := false
	beginStream := func() {
		w.Header().Set("Content-Type", "text/event-stream")
		w.Header().Set("Cache-Control", "no-cache")
		w.Header().Set("Connection", "keep-alive")
		w.WriteHeader(http.StatusOK)
		streaming = true
	}

	err := s.chat.Stream(r.Context(), req, func(fragment string) error {
		if !streaming {
			beginStream()
		}
		if err := writeSSE(w, fragment); err != nil {
			return err
		}
		flusher.Flush()
		return nil
	})
	if err != nil {
		if errors.Is(err, context.Canceled) {
			return
		}
		if !streaming {
			s.handleDomainError(w, err)
			return
		}
		// Status line is gone; all we can do is log and drop the connection.
		s.logger.Warn("Chat stream aborted", zap.Error(err))
		return
	}
	if !streaming {
		// Completed without a single fragment; still an event stream.
		beginStream()
		flusher.Flush()
	}
}

// decodeChatRequest parses and validates the shared chat request shape.
// Returns ok=false when a response has been written.
func (s *Server) decodeChatRequest(w http.ResponseWriter, r *http.Request) (chatuc.Request, bool) {
	var req chatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, "bad_request", "invalid request body")
		return chatuc.Request{}, false
	}
	if len(req.Messages) == 0 {
		writeError(w, http.StatusBadRequest, "validation_failed", "messages is required")
		return chatuc.Request{}, false
	}

	tenantID := tenantFromContext(r.Context())
	if req.Handle == "" && tenantID == "" {
		writeError(w, http.StatusUnauthorized, "unauthorized", "handle or tenant identity is required")
		return chatuc.Request{}, false
	}

	return chatuc.Request{
		TenantID: tenantID,
		Handle:   req.Handle,
		Messages: req.Messages,
	}, true
}

// writeSSE frames one fragment as a server-sent event. Fragments may span
// lines; each line gets its own data field so the event stays well-formed.
func writeSSE(w http.ResponseWriter, fragment string) error {
	for _, line := range strings.Split(fragment, "\n") {
		if _, err := w.Write([]byte("data: " + line + "\n")); err != nil {
			return err
		}
	}
	_, err := w.Write([]byte("\n"))
	return err
}
