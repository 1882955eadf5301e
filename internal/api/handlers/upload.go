package handlers

import (
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/google/uuid"

	"github.com/podcast-studio/backend/internal/db"
	"github.com/podcast-studio/backend/internal/storage"
)

// maxUploadSize caps raw video uploads.
const maxUploadSize = 2 << 30 // 2 GiB

// MediaSubmitter is the pipeline's fire-and-forget entry point.
type MediaSubmitter interface {
	Submit(inputPath string, episodeID, segmentID int64) (string, error)
}

type UploadHandler struct {
	database  *db.Database
	paths     *storage.Paths
	submitter MediaSubmitter
}

func NewUploadHandler(database *db.Database, paths *storage.Paths, submitter MediaSubmitter) *UploadHandler {
	return &UploadHandler{database: database, paths: paths, submitter: submitter}
}

// UploadVideo accepts a raw video for a segment, stores it, and submits the
// processing job. It answers 202 immediately; there is no synchronous error
// surface for pipeline failures, clients poll the segment for results.
func (h *UploadHandler) UploadVideo(w http.ResponseWriter, r *http.Request) {
	episodeID, ok := idParam(r, "episodeID")
	if !ok {
		jsonError(w, "invalid episode ID", http.StatusBadRequest)
		return
	}
	segmentID, ok := idParam(r, "segmentID")
	if !ok {
		jsonError(w, "invalid segment ID", http.StatusBadRequest)
		return
	}

	if _, err := h.database.LookupSegment(episodeID, segmentID); err != nil {
		jsonError(w, "segment not found", http.StatusNotFound)
		return
	}

	r.Body = http.MaxBytesReader(w, r.Body, maxUploadSize)
	file, header, err := r.FormFile("file")
	if err != nil {
		jsonError(w, "missing file field", http.StatusBadRequest)
		return
	}
	defer file.Close()

	ext := strings.ToLower(filepath.Ext(header.Filename))
	if ext == "" {
		ext = ".mp4"
	}

	dir, err := h.paths.EpisodeDir(episodeID)
	if err != nil {
		jsonError(w, "failed to prepare media directory", http.StatusInternalServerError)
		return
	}

	nonce := uuid.New().String()[:8]
	rawPath := filepath.Join(dir, storage.RawName(segmentID, nonce, ext))
	if err := saveUpload(file, rawPath); err != nil {
		log.Printf("[upload] save failed: %v", err)
		jsonError(w, "failed to store upload", http.StatusInternalServerError)
		return
	}

	publicRaw := h.paths.Public(rawPath)
	if err := h.database.UpdateSegmentRawVideoPath(episodeID, segmentID, publicRaw); err != nil {
		jsonError(w, "segment not found", http.StatusNotFound)
		return
	}

	jobID, err := h.submitter.Submit(publicRaw, episodeID, segmentID)
	if err != nil {
		log.Printf("[upload] submit failed: %v", err)
		jsonError(w, "failed to submit processing job", http.StatusInternalServerError)
		return
	}

	jsonResponse(w, map[string]string{
		"status": "processing",
		"job_id": jobID,
	}, http.StatusAccepted)
}

func saveUpload(src io.Reader, dstPath string) error {
	out, err := os.Create(dstPath)
	if err != nil {
		return err
	}
	defer out.Close()

	if _, err := io.Copy(out, src); err != nil {
		os.Remove(dstPath)
		return fmt.Errorf("write upload: %w", err)
	}
	return nil
}
