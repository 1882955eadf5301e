package pipeline

import (
	"context"
	"errors"
	"path/filepath"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/podcast-studio/backend/internal/db"
	"github.com/podcast-studio/backend/internal/db/models"
	"github.com/podcast-studio/backend/internal/job"
	"github.com/podcast-studio/backend/internal/storage"
)

type segmentKey struct{ episodeID, segmentID int64 }

// fakeStore records pipeline writes; it stands in for the segment table.
type fakeStore struct {
	mu    sync.Mutex
	gone  bool
	video map[segmentKey]string
	text  map[segmentKey]string
}

func newFakeStore() *fakeStore {
	return &fakeStore{
		video: make(map[segmentKey]string),
		text:  make(map[segmentKey]string),
	}
}

func (s *fakeStore) LookupSegment(episodeID, segmentID int64) (*models.Segment, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return nil, db.ErrSegmentNotFound
	}
	return &models.Segment{ID: segmentID, EpisodeID: episodeID}, nil
}

func (s *fakeStore) UpdateSegmentVideoPath(episodeID, segmentID int64, videoPath string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return db.ErrSegmentNotFound
	}
	s.video[segmentKey{episodeID, segmentID}] = videoPath
	return nil
}

func (s *fakeStore) UpdateSegmentTextContent(episodeID, segmentID int64, text string) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.gone {
		return db.ErrSegmentNotFound
	}
	s.text[segmentKey{episodeID, segmentID}] = text
	return nil
}

func (s *fakeStore) videoPath(episodeID, segmentID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.video[segmentKey{episodeID, segmentID}]
}

func (s *fakeStore) textContent(episodeID, segmentID int64) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.text[segmentKey{episodeID, segmentID}]
}

type fakeTranscoder struct {
	mu      sync.Mutex
	outputs []string
	err     error
}

func (f *fakeTranscoder) Transcode(ctx context.Context, inputPath, outputPath string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return f.err
	}
	f.outputs = append(f.outputs, outputPath)
	return nil
}

type fakeRemover struct{ err error }

func (f *fakeRemover) Run(ctx context.Context, inputPath, backgroundPath, outputPath string) error {
	return f.err
}

type fakeTranscriber struct {
	text string
	err  error
}

func (f *fakeTranscriber) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	return f.text, f.err
}

type fixture struct {
	store       *fakeStore
	queue       *job.Queue
	pipe        *Pipeline
	transcoder  *fakeTranscoder
	remover     *fakeRemover
	transcriber *fakeTranscriber
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	d, err := db.NewSQLite(filepath.Join(t.TempDir(), "pipe.db"))
	if err != nil {
		t.Fatalf("NewSQLite: %v", err)
	}
	t.Cleanup(func() { d.Close() })

	queue := job.NewQueue(d.SQL(), 2)
	t.Cleanup(queue.Stop)

	f := &fixture{
		store:       newFakeStore(),
		queue:       queue,
		transcoder:  &fakeTranscoder{},
		remover:     &fakeRemover{},
		transcriber: &fakeTranscriber{text: "hello from the podcast"},
	}
	f.pipe = New(f.store, queue, storage.NewPaths(t.TempDir()),
		f.transcoder, f.remover, f.transcriber, "/data/background.jpg")
	return f
}

func waitFor(t *testing.T, what string, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(10 * time.Millisecond)
	}
	t.Fatalf("timed out waiting for %s", what)
}

func waitForJobs(t *testing.T, q *job.Queue, count int, settled func(job.Status) bool) []*job.Job {
	t.Helper()
	var jobs []*job.Job
	waitFor(t, "jobs to settle", func() bool {
		var err error
		jobs, err = q.ListJobs()
		if err != nil {
			t.Fatalf("ListJobs: %v", err)
		}
		if len(jobs) != count {
			return false
		}
		for _, j := range jobs {
			if !settled(j.Status) {
				return false
			}
		}
		return true
	})
	return jobs
}

func settledStatus(s job.Status) bool {
	return s == job.StatusCompleted || s == job.StatusFailed
}

func TestFanoutConvergence(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipe.Submit("/tmp/raw.webm", 3, 7); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	waitFor(t, "both branches to persist", func() bool {
		return f.store.videoPath(3, 7) != "" && f.store.textContent(3, 7) != ""
	})

	video := f.store.videoPath(3, 7)
	if !strings.HasPrefix(video, storage.PublicPrefix) {
		t.Errorf("video path %q not public", video)
	}
	if !strings.Contains(video, "segment_7_") || !strings.HasSuffix(video, ".background-removed.mp4") {
		t.Errorf("video path %q does not follow naming convention", video)
	}
	if f.store.textContent(3, 7) != "hello from the podcast" {
		t.Errorf("text = %q", f.store.textContent(3, 7))
	}

	// One transcode plus two fanout jobs, all completed.
	jobs := waitForJobs(t, f.queue, 3, settledStatus)
	for _, j := range jobs {
		if j.Status != job.StatusCompleted {
			t.Errorf("%s job %s status = %s", j.Type, j.ID, j.Status)
		}
	}
}

func TestTranscodeFailureNoFanout(t *testing.T) {
	f := newFixture(t)
	f.transcoder.err = errors.New("transcode failed: moov atom not found")

	if _, err := f.pipe.Submit("/tmp/broken.mp4", 1, 2); err != nil {
		t.Fatalf("Submit: %v", err)
	}

	jobs := waitForJobs(t, f.queue, 1, settledStatus)
	if jobs[0].Type != job.TypeTranscode || jobs[0].Status != job.StatusFailed {
		t.Errorf("job = %s/%s", jobs[0].Type, jobs[0].Status)
	}

	// Give any stray fanout a chance to appear, then re-check.
	time.Sleep(50 * time.Millisecond)
	jobs, err := f.queue.ListJobs()
	if err != nil {
		t.Fatal(err)
	}
	if len(jobs) != 1 {
		t.Fatalf("fanout submitted after transcode failure: %d jobs", len(jobs))
	}

	if f.store.videoPath(1, 2) != "" || f.store.textContent(1, 2) != "" {
		t.Error("segment modified after transcode failure")
	}
}

func TestTranscriptionFailureDoesNotBlockComposite(t *testing.T) {
	f := newFixture(t)
	f.transcriber.text = ""
	f.transcriber.err = errors.New("transcription finished with status: expired")

	if _, err := f.pipe.Submit("/tmp/raw.mov", 5, 6); err != nil {
		t.Fatal(err)
	}

	jobs := waitForJobs(t, f.queue, 3, settledStatus)
	for _, j := range jobs {
		switch j.Type {
		case job.TypeTranscribe:
			if j.Status != job.StatusFailed {
				t.Errorf("transcribe status = %s, want failed", j.Status)
			}
		default:
			if j.Status != job.StatusCompleted {
				t.Errorf("%s status = %s, want completed", j.Type, j.Status)
			}
		}
	}

	if f.store.textContent(5, 6) != "" {
		t.Error("text content written despite transcription failure")
	}
	if f.store.videoPath(5, 6) == "" {
		t.Error("composite branch did not persist despite sibling failure")
	}
}

func TestCompositeFailureDoesNotBlockTranscription(t *testing.T) {
	f := newFixture(t)
	f.remover.err = errors.New("invalid video dimensions")

	if _, err := f.pipe.Submit("/tmp/raw.mov", 5, 6); err != nil {
		t.Fatal(err)
	}

	waitForJobs(t, f.queue, 3, settledStatus)

	if f.store.videoPath(5, 6) != "" {
		t.Error("video path written despite compositor failure")
	}
	if f.store.textContent(5, 6) == "" {
		t.Error("transcription branch did not persist despite sibling failure")
	}
}

// Re-submitting the same segment must never overwrite a previous successful
// result: nonces make the output names distinct.
func TestResubmissionUsesDistinctNames(t *testing.T) {
	f := newFixture(t)

	if _, err := f.pipe.Submit("/tmp/raw.mov", 2, 4); err != nil {
		t.Fatal(err)
	}
	if _, err := f.pipe.Submit("/tmp/raw.mov", 2, 4); err != nil {
		t.Fatal(err)
	}

	waitForJobs(t, f.queue, 6, settledStatus)

	f.transcoder.mu.Lock()
	defer f.transcoder.mu.Unlock()
	if len(f.transcoder.outputs) != 2 {
		t.Fatalf("transcoder ran %d times", len(f.transcoder.outputs))
	}
	if f.transcoder.outputs[0] == f.transcoder.outputs[1] {
		t.Errorf("re-upload reused output name %q", f.transcoder.outputs[0])
	}
}

// A segment deleted mid-pipeline is a silent no-op, not a failure.
func TestVanishedSegmentDiscardsResults(t *testing.T) {
	f := newFixture(t)
	f.store.mu.Lock()
	f.store.gone = true
	f.store.mu.Unlock()

	if _, err := f.pipe.Submit("/tmp/raw.mov", 9, 9); err != nil {
		t.Fatal(err)
	}

	jobs := waitForJobs(t, f.queue, 3, settledStatus)
	for _, j := range jobs {
		if j.Status != job.StatusCompleted {
			t.Errorf("%s job status = %s, want completed (late not-found is a no-op)", j.Type, j.Status)
		}
	}
}
