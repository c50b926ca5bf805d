package handlers

import (
	"net/http"

	"github.com/marmos91/dittopad/pkg/registry"
)

// SessionSource lists the sessions holding a username.
type SessionSource interface {
	Sessions() []registry.SessionInfo
}

// SessionsResponse is the body of GET /api/v1/sessions.
type SessionsResponse struct {
	Count     int                    `json:"count"`
	Usernames []string               `json:"usernames"`
	Sessions  []registry.SessionInfo `json:"sessions"`
}

// SessionHandler serves the active session listing.
type SessionHandler struct {
	source SessionSource
}

// NewSessionHandler creates a session handler.
func NewSessionHandler(source SessionSource) *SessionHandler {
	return &SessionHandler{source: source}
}

// List handles GET /api/v1/sessions.
func (h *SessionHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.source == nil {
		ServiceUnavailable(w, "session registry not initialized")
		return
	}

	sessions := h.source.Sessions()
	resp := SessionsResponse{
		Count:     len(sessions),
		Usernames: make([]string, 0, len(sessions)),
		Sessions:  sessions,
	}
	if resp.Sessions == nil {
		resp.Sessions = []registry.SessionInfo{}
	}
	for _, s := range sessions {
		resp.Usernames = append(resp.Usernames, s.Username)
	}
	writeJSON(w, http.StatusOK, resp)
}
