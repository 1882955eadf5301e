package main

import (
	"fmt"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/podcast-studio/backend/internal/api"
	"github.com/podcast-studio/backend/internal/compositor"
	"github.com/podcast-studio/backend/internal/config"
	"github.com/podcast-studio/backend/internal/db"
	"github.com/podcast-studio/backend/internal/ffmpeg"
	"github.com/podcast-studio/backend/internal/job"
	"github.com/podcast-studio/backend/internal/pipeline"
	"github.com/podcast-studio/backend/internal/storage"
	"github.com/podcast-studio/backend/internal/transcribe"
)

func main() {
	cfg := config.Load()

	// Ensure data directories exist
	os.MkdirAll(cfg.DataPath, 0755)
	os.MkdirAll(cfg.EpisodesDir, 0755)

	// Initialize database
	database, err := db.NewSQLite(cfg.DBPath)
	if err != nil {
		log.Fatalf("Failed to initialize database: %v", err)
	}
	defer database.Close()

	// Job queue and pipeline dependencies, created once and shared across
	// tasks for the process lifetime.
	queue := job.NewQueue(database.SQL(), cfg.JobWorkers)
	paths := storage.NewPaths(cfg.EpisodesDir)
	segmenter := compositor.NewMaskServerClient(cfg.SegmenterURL)
	defer segmenter.Close()

	pipe := pipeline.New(
		database,
		queue,
		paths,
		pipeline.TranscoderFunc(ffmpeg.Transcode),
		compositor.New(segmenter),
		transcribe.NewClient(cfg.TranscribeURL, cfg.TranscribeKey),
		cfg.BackgroundImage,
	)

	router := api.NewRouter(database, queue, paths, pipe, cfg.CORSOrigins)

	addr := fmt.Sprintf(":%d", cfg.Port)
	log.Printf("Starting server on %s", addr)
	log.Printf("Episodes dir: %s (workers: %d)", cfg.EpisodesDir, cfg.JobWorkers)

	// Graceful shutdown: let in-flight jobs finish before exiting.
	go func() {
		sigCh := make(chan os.Signal, 1)
		signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
		<-sigCh
		log.Println("Shutting down...")
		queue.Stop()
		database.Close()
		os.Exit(0)
	}()

	if err := http.ListenAndServe(addr, router); err != nil {
		log.Fatalf("Server failed: %v", err)
	}
}
