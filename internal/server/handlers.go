package server

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/oklog/ulid/v2"
)

// validSessionID matches ULIDs, UUIDs, and other safe identifiers.
// Only alphanumeric, dashes, and underscores are allowed.
var validSessionID = regexp.MustCompile(`^[a-zA-Z0-9][a-zA-Z0-9_-]{0,127}$`)

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":   "ok",
		"sessions": len(s.registry.List()),
	})
}

func (s *Server) handleChat(w http.ResponseWriter, r *http.Request) {
	var req ChatRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Sprintf("invalid request body: %v", err))
		return
	}
	if strings.TrimSpace(req.Message) == "" {
		writeError(w, http.StatusBadRequest, "message is required")
		return
	}

	id := strings.TrimSpace(req.SessionID)
	if id == "" {
		id = ulid.Make().String()
	}
	if !validSessionID.MatchString(id) {
		writeError(w, http.StatusBadRequest, "session_id must be alphanumeric with dashes/underscores, 1-128 chars")
		return
	}

	ss, err := s.registry.GetOrCreate(id)
	if err != nil {
		writeError(w, http.StatusInternalServerError, fmt.Sprintf("open session: %v", err))
		return
	}

	answer, toolsUsed, arts, err := ss.RunTurn(r.Context(), req.Message)
	if err != nil {
		writeError(w, http.StatusBadGateway, fmt.Sprintf("chat failed: %v", err))
		return
	}

	writeJSON(w, http.StatusOK, ChatResponse{
		SessionID: id,
		Response:  answer,
		ToolsUsed: toolsUsed,
		Artifacts: arts,
	})
}

func (s *Server) handleSessionArtifacts(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSessionID.MatchString(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	ss, ok := s.registry.Get(id)
	if !ok {
		// Resume a session that exists on disk from a previous run.
		dir := filepath.Join(s.deps.OutputsRoot, id)
		if _, err := os.Stat(dir); err != nil {
			writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
			return
		}
		var err error
		ss, err = s.registry.GetOrCreate(id)
		if err != nil {
			writeError(w, http.StatusInternalServerError, fmt.Sprintf("open session: %v", err))
			return
		}
	}

	writeJSON(w, http.StatusOK, ArtifactsResponse{
		SessionID: id,
		Artifacts: ss.Artifacts(r.URL.Query().Get("type")),
	})
}

func (s *Server) handleSessionEvents(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")
	if !validSessionID.MatchString(id) {
		writeError(w, http.StatusBadRequest, "invalid session id")
		return
	}

	ss, ok := s.registry.Get(id)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Sprintf("session %s not found", id))
		return
	}

	WriteSSE(w, r, ss.Broadcaster)
}

// --- Helpers ---

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}
