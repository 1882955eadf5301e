package handlers

import (
	"errors"
	"net/http"

	"github.com/podcast-studio/backend/internal/db"
	"github.com/podcast-studio/backend/internal/db/models"
)

// SegmentsHandler is the polling surface: clients observe pipeline results
// by re-reading a segment until video_path and text_content converge.
type SegmentsHandler struct {
	database *db.Database
}

func NewSegmentsHandler(database *db.Database) *SegmentsHandler {
	return &SegmentsHandler{database: database}
}

func (h *SegmentsHandler) ListSegments(w http.ResponseWriter, r *http.Request) {
	episodeID, ok := idParam(r, "episodeID")
	if !ok {
		jsonError(w, "invalid episode ID", http.StatusBadRequest)
		return
	}

	segments, err := h.database.ListSegments(episodeID)
	if err != nil {
		jsonError(w, "failed to list segments", http.StatusInternalServerError)
		return
	}
	if segments == nil {
		segments = []*models.Segment{}
	}
	jsonResponse(w, segments, http.StatusOK)
}

func (h *SegmentsHandler) GetSegment(w http.ResponseWriter, r *http.Request) {
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

	segment, err := h.database.LookupSegment(episodeID, segmentID)
	if err != nil {
		if errors.Is(err, db.ErrSegmentNotFound) {
			jsonError(w, "segment not found", http.StatusNotFound)
			return
		}
		jsonError(w, "failed to load segment", http.StatusInternalServerError)
		return
	}
	jsonResponse(w, segment, http.StatusOK)
}
