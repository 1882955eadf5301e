package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/podcast-studio/backend/internal/api/handlers"
	"github.com/podcast-studio/backend/internal/api/middleware"
	"github.com/podcast-studio/backend/internal/db"
	"github.com/podcast-studio/backend/internal/job"
	"github.com/podcast-studio/backend/internal/storage"
)

func NewRouter(database *db.Database, queue *job.Queue, paths *storage.Paths,
	submitter handlers.MediaSubmitter, corsOrigins []string) *chi.Mux {

	r := chi.NewRouter()

	// Global middleware
	r.Use(chimw.Recoverer)
	r.Use(chimw.RealIP)
	r.Use(middleware.Logger)
	r.Use(cors.Handler(middleware.CORSHandler(corsOrigins)))

	// Handlers
	uploadHandler := handlers.NewUploadHandler(database, paths, submitter)
	segmentsHandler := handlers.NewSegmentsHandler(database)
	jobHandler := handlers.NewJobHandler(queue)
	filesHandler := handlers.NewFilesHandler(paths.MediaRoot)

	r.Route("/api", func(r chi.Router) {
		r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusOK)
			w.Write([]byte(`{"status":"ok"}`))
		})

		r.Group(func(r chi.Router) {
			r.Use(middleware.MaxBodySize(1 << 20))

			// Segments (polling surface for pipeline results)
			r.Get("/episodes/{episodeID}/segments", segmentsHandler.ListSegments)
			r.Get("/episodes/{episodeID}/segments/{segmentID}", segmentsHandler.GetSegment)

			// Jobs
			r.Get("/jobs", jobHandler.ListJobs)
			r.Get("/jobs/{id}", jobHandler.GetJob)
		})

		// Raw video upload; body limit handled per-request by the handler
		r.Post("/episodes/{episodeID}/segments/{segmentID}/video", uploadHandler.UploadVideo)

		// Produced media
		r.Get("/files/*", filesHandler.ServeFile)
	})

	return r
}
