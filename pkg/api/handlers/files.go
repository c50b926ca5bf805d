package handlers

import (
	"context"
	"errors"
	"io/fs"
	"net/http"
	"sort"

	"github.com/go-chi/chi/v5"

	"github.com/marmos91/dittopad/internal/logger"
	"github.com/marmos91/dittopad/pkg/store"
)

// FilesResponse is the body of GET /api/v1/users/{username}/files.
type FilesResponse struct {
	Username string   `json:"username"`
	Count    int      `json:"count"`
	Files    []string `json:"files"`
}

// FileHandler exposes a read-only listing of user namespaces.
type FileHandler struct {
	store store.Store
}

// NewFileHandler creates a file handler over st.
func NewFileHandler(st store.Store) *FileHandler {
	return &FileHandler{store: st}
}

// List handles GET /api/v1/users/{username}/files.
func (h *FileHandler) List(w http.ResponseWriter, r *http.Request) {
	if h.store == nil {
		ServiceUnavailable(w, "store not initialized")
		return
	}

	username := chi.URLParam(r, "username")
	if err := store.ValidateUsername(username); err != nil || username == "" {
		BadRequest(w, "invalid username")
		return
	}

	ctx, cancel := context.WithTimeout(r.Context(), HealthCheckTimeout)
	defer cancel()

	names, err := h.store.ListDir(ctx, username)
	switch {
	case errors.Is(err, store.ErrNotFound), errors.Is(err, fs.ErrNotExist):
		NotFound(w, "user has no files")
		return
	case errors.Is(err, store.ErrStoreClosed):
		ServiceUnavailable(w, err.Error())
		return
	case err != nil:
		logger.Warn("Failed to list user files", logger.Username(username), logger.Err(err))
		InternalServerError(w, "failed to list files")
		return
	}

	if names == nil {
		names = []string{}
	}
	sort.Strings(names)
	writeJSON(w, http.StatusOK, FilesResponse{
		Username: username,
		Count:    len(names),
		Files:    names,
	})
}
