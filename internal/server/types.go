package server

import "github.com/davidzheglov/longevity-knowledge-base/internal/artifacts"

// ChatRequest is the POST /api/chat request body.
type ChatRequest struct {
	// SessionID selects (or resumes) the conversation. If empty, a new
	// session id is generated and returned in the response.
	SessionID string `json:"session_id,omitempty"`

	// Message is the user's turn. Required.
	Message string `json:"message"`
}

// ChatResponse is returned by POST /api/chat once the tool-call loop for the
// turn has finished.
type ChatResponse struct {
	SessionID string               `json:"session_id"`
	Response  string               `json:"response"`
	ToolsUsed []string             `json:"tools_used"`
	Artifacts []artifacts.Artifact `json:"artifacts"`
}

// ArtifactsResponse is returned by GET /api/sessions/{id}/artifacts.
type ArtifactsResponse struct {
	SessionID string               `json:"session_id"`
	Artifacts []artifacts.Artifact `json:"artifacts"`
}

// ErrorResponse is a standard error envelope.
type ErrorResponse struct {
	Error string `json:"error"`
}
