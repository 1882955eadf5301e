package handlers

import (
	"net/http"
	"net/url"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/podcast-studio/backend/internal/storage"
)

// extractPath extracts and URL-decodes the wildcard path from chi router
func extractPath(r *http.Request) string {
	path := chi.URLParam(r, "*")
	decoded, err := url.PathUnescape(path)
	if err != nil {
		return path
	}
	decoded = strings.TrimPrefix(decoded, "/")
	decoded = strings.TrimSuffix(decoded, "/")
	return decoded
}

// FilesHandler serves produced media files from the media root.
type FilesHandler struct {
	mediaPath string
}

func NewFilesHandler(mediaPath string) *FilesHandler {
	return &FilesHandler{mediaPath: mediaPath}
}

func (h *FilesHandler) ServeFile(w http.ResponseWriter, r *http.Request) {
	rel := extractPath(r)
	if rel == "" {
		jsonError(w, "missing file path", http.StatusBadRequest)
		return
	}

	full, err := storage.SafeJoin(h.mediaPath, rel)
	if err != nil {
		jsonError(w, "invalid file path", http.StatusBadRequest)
		return
	}
	http.ServeFile(w, r, full)
}
