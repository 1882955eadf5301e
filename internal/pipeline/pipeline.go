// Package pipeline orchestrates the post-upload task graph for one raw video
// segment: transcode to the canonical format, then fan out into background
// removal and speech transcription. The two fanout branches are independent;
// each re-reads the segment row and persists its own result, and a failure
// in one never rolls back or cancels the other.
package pipeline

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"path/filepath"

	"github.com/google/uuid"

	"github.com/podcast-studio/backend/internal/db"
	"github.com/podcast-studio/backend/internal/db/models"
	"github.com/podcast-studio/backend/internal/job"
	"github.com/podcast-studio/backend/internal/storage"
)

// SegmentStore is the pipeline's only shared mutable resource. The two
// update methods touch disjoint fields in single atomic statements.
type SegmentStore interface {
	LookupSegment(episodeID, segmentID int64) (*models.Segment, error)
	UpdateSegmentVideoPath(episodeID, segmentID int64, videoPath string) error
	UpdateSegmentTextContent(episodeID, segmentID int64, text string) error
}

// Transcoder normalizes an input file into the canonical format.
type Transcoder interface {
	Transcode(ctx context.Context, inputPath, outputPath string) error
}

// TranscoderFunc adapts a plain function to the Transcoder interface.
type TranscoderFunc func(ctx context.Context, inputPath, outputPath string) error

func (f TranscoderFunc) Transcode(ctx context.Context, inputPath, outputPath string) error {
	return f(ctx, inputPath, outputPath)
}

// BackgroundRemover composites the subject over a still background image.
type BackgroundRemover interface {
	Run(ctx context.Context, inputPath, backgroundPath, outputPath string) error
}

// Transcriber converts speech in a media file to text.
type Transcriber interface {
	Transcribe(ctx context.Context, mediaPath string) (string, error)
}

// Params is the MediaJob payload carried through the queue. Paths are stored
// in public form so records stay valid across workers with different media
// roots.
type Params struct {
	EpisodeID int64  `json:"episode_id"`
	SegmentID int64  `json:"segment_id"`
	Nonce     string `json:"nonce"`
}

type Pipeline struct {
	store           SegmentStore
	queue           *job.Queue
	paths           *storage.Paths
	transcoder      Transcoder
	compositor      BackgroundRemover
	transcriber     Transcriber
	backgroundImage string
}

func New(store SegmentStore, queue *job.Queue, paths *storage.Paths,
	transcoder Transcoder, compositor BackgroundRemover, transcriber Transcriber,
	backgroundImage string) *Pipeline {

	p := &Pipeline{
		store:           store,
		queue:           queue,
		paths:           paths,
		transcoder:      transcoder,
		compositor:      compositor,
		transcriber:     transcriber,
		backgroundImage: backgroundImage,
	}

	queue.RegisterHandler(job.TypeTranscode, p.handleTranscode)
	queue.RegisterHandler(job.TypeComposite, p.handleComposite)
	queue.RegisterHandler(job.TypeTranscribe, p.handleTranscribe)
	return p
}

// Submit accepts a raw upload for processing and returns immediately with
// the transcode job's ID. Results surface asynchronously on the segment row.
func (p *Pipeline) Submit(inputPath string, episodeID, segmentID int64) (string, error) {
	// Fresh nonce per submission: re-uploads never overwrite an earlier
	// successful result.
	nonce := uuid.New().String()[:8]

	params := Params{
		EpisodeID: episodeID,
		SegmentID: segmentID,
		Nonce:     nonce,
	}

	j, err := p.queue.Enqueue(job.TypeTranscode, inputPath, params)
	if err != nil {
		return "", fmt.Errorf("enqueue transcode: %w", err)
	}

	log.Printf("[pipeline] submitted media job %s: episode=%d segment=%d nonce=%s",
		j.ID, episodeID, segmentID, nonce)
	return j.ID, nil
}

// handleTranscode is the sole predecessor of the fanout barrier: the two
// stage-2 tasks are enqueued only after the normalized file is durably on
// disk. On failure nothing downstream is submitted and no state is written.
func (p *Pipeline) handleTranscode(ctx context.Context, j *job.Job) error {
	var params Params
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	dir, err := p.paths.EpisodeDir(params.EpisodeID)
	if err != nil {
		return fmt.Errorf("episode dir: %w", err)
	}
	outputPath := filepath.Join(dir, storage.TranscodedName(params.SegmentID, params.Nonce))

	if err := p.transcoder.Transcode(ctx, p.paths.Resolve(j.FilePath), outputPath); err != nil {
		return err
	}

	publicOutput := p.paths.Public(outputPath)
	if _, err := p.queue.Enqueue(job.TypeComposite, publicOutput, params); err != nil {
		return fmt.Errorf("enqueue composite: %w", err)
	}
	if _, err := p.queue.Enqueue(job.TypeTranscribe, publicOutput, params); err != nil {
		return fmt.Errorf("enqueue transcribe: %w", err)
	}

	log.Printf("[pipeline] transcoded segment %d, fanout submitted: %s",
		params.SegmentID, publicOutput)
	return nil
}

func (p *Pipeline) handleComposite(ctx context.Context, j *job.Job) error {
	var params Params
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	publicOutput := storage.BackgroundRemovedName(j.FilePath)
	outputPath := p.paths.Resolve(publicOutput)

	if err := p.compositor.Run(ctx, p.paths.Resolve(j.FilePath), p.backgroundImage, outputPath); err != nil {
		return fmt.Errorf("background removal: %w", err)
	}

	if err := p.store.UpdateSegmentVideoPath(params.EpisodeID, params.SegmentID, publicOutput); err != nil {
		if errors.Is(err, db.ErrSegmentNotFound) {
			// Segment deleted mid-pipeline: discard the result silently.
			log.Printf("[pipeline] segment %d gone, dropping composite result", params.SegmentID)
			return nil
		}
		return fmt.Errorf("update video path: %w", err)
	}

	log.Printf("[pipeline] segment %d video path set to %s", params.SegmentID, publicOutput)
	return nil
}

func (p *Pipeline) handleTranscribe(ctx context.Context, j *job.Job) error {
	var params Params
	if err := json.Unmarshal(j.Params, &params); err != nil {
		return fmt.Errorf("unmarshal params: %w", err)
	}

	text, err := p.transcriber.Transcribe(ctx, p.paths.Resolve(j.FilePath))
	if err != nil {
		return err
	}

	if err := p.store.UpdateSegmentTextContent(params.EpisodeID, params.SegmentID, text); err != nil {
		if errors.Is(err, db.ErrSegmentNotFound) {
			log.Printf("[pipeline] segment %d gone, dropping transcription result", params.SegmentID)
			return nil
		}
		return fmt.Errorf("update text content: %w", err)
	}

	log.Printf("[pipeline] segment %d transcription stored (%d chars)", params.SegmentID, len(text))
	return nil
}
