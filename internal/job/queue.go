// Package job is a SQLite-backed task queue. Jobs survive restarts; a pool
// of workers drains them concurrently, so independent tasks submitted
// together may run in either order.
package job

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/google/uuid"
	"golang.org/x/sync/errgroup"
)

// Queue manages job persistence and dispatching.
type Queue struct {
	db           *sql.DB
	mu           sync.RWMutex
	pending      chan string // job IDs to process
	handlers     map[Type]Handler
	pollInterval time.Duration
	ctx          context.Context
	cancel       context.CancelFunc
	workers      *errgroup.Group
}

// NewQueue creates a queue draining jobs with the given number of workers.
// At least two workers are needed for fanout tasks to genuinely overlap.
func NewQueue(db *sql.DB, workers int) *Queue {
	return newQueue(db, workers, 5*time.Second)
}

func newQueue(db *sql.DB, workers int, pollInterval time.Duration) *Queue {
	if workers < 1 {
		workers = 1
	}
	ctx, cancel := context.WithCancel(context.Background())
	q := &Queue{
		db:           db,
		pending:      make(chan string, 100),
		handlers:     make(map[Type]Handler),
		pollInterval: pollInterval,
		ctx:          ctx,
		cancel:       cancel,
	}

	// Re-queue anything left over from a previous run before the workers
	// start pulling.
	q.resumeJobs()

	g, gctx := errgroup.WithContext(ctx)
	q.workers = g
	for i := 0; i < workers; i++ {
		g.Go(func() error {
			q.worker(gctx)
			return nil
		})
	}

	// The channel can overflow under load; the scan re-queues anything the
	// Enqueue push had to drop.
	g.Go(func() error {
		q.pollPending(gctx)
		return nil
	})

	return q
}

// RegisterHandler registers the handler for a job type.
func (q *Queue) RegisterHandler(jobType Type, handler Handler) {
	q.mu.Lock()
	defer q.mu.Unlock()
	q.handlers[jobType] = handler
}

// Enqueue persists a new job and hands it to the workers. The caller gets
// the job back immediately; execution is fire-and-forget.
func (q *Queue) Enqueue(jobType Type, filePath string, params interface{}) (*Job, error) {
	paramsJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("marshal params: %w", err)
	}

	j := &Job{
		ID:        uuid.New().String(),
		Type:      jobType,
		Status:    StatusPending,
		FilePath:  filePath,
		Params:    paramsJSON,
		CreatedAt: time.Now(),
	}

	_, err = q.db.Exec(`
		INSERT INTO jobs (id, type, status, file_path, params, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		j.ID, j.Type, j.Status, j.FilePath, string(j.Params), j.CreatedAt,
	)
	if err != nil {
		return nil, fmt.Errorf("insert job: %w", err)
	}

	select {
	case q.pending <- j.ID:
	default:
		log.Printf("[job] queue full, job %s left for the pending scan", j.ID)
	}

	return j, nil
}

// GetJob retrieves a job by ID.
func (q *Queue) GetJob(id string) (*Job, error) {
	row := q.db.QueryRow(`
		SELECT id, type, status, file_path, params, error, created_at, started_at, completed_at
		FROM jobs WHERE id = ?`, id)
	return scanJob(row)
}

// ListJobs returns all jobs, newest first.
func (q *Queue) ListJobs() ([]*Job, error) {
	rows, err := q.db.Query(`
		SELECT id, type, status, file_path, params, error, created_at, started_at, completed_at
		FROM jobs ORDER BY created_at DESC`)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var jobs []*Job
	for rows.Next() {
		j, err := scanJob(rows)
		if err != nil {
			return nil, err
		}
		jobs = append(jobs, j)
	}
	return jobs, rows.Err()
}

type scanner interface {
	Scan(dest ...interface{}) error
}

func scanJob(s scanner) (*Job, error) {
	j := &Job{}
	var params, errMsg sql.NullString
	var startedAt, completedAt sql.NullTime

	if err := s.Scan(&j.ID, &j.Type, &j.Status, &j.FilePath, &params,
		&errMsg, &j.CreatedAt, &startedAt, &completedAt); err != nil {
		return nil, err
	}
	if params.Valid {
		j.Params = json.RawMessage(params.String)
	}
	if errMsg.Valid {
		j.Error = errMsg.String
	}
	if startedAt.Valid {
		j.StartedAt = &startedAt.Time
	}
	if completedAt.Valid {
		j.CompletedAt = &completedAt.Time
	}
	return j, nil
}

// Stop stops dispatching and waits for in-flight jobs to finish. Running
// handlers are never interrupted; their jobs complete or fail normally.
func (q *Queue) Stop() {
	q.cancel()
	q.workers.Wait()
}

func (q *Queue) worker(ctx context.Context) {
	for {
		// Stopping takes priority over further pending work.
		select {
		case <-ctx.Done():
			return
		default:
		}
		select {
		case <-ctx.Done():
			return
		case jobID := <-q.pending:
			q.processJob(ctx, jobID)
		}
	}
}

func (q *Queue) processJob(ctx context.Context, jobID string) {
	// Claim the job first. The pending scan can push duplicate IDs onto the
	// channel, and only one worker may win a given job.
	now := time.Now()
	res, err := q.db.Exec(
		"UPDATE jobs SET status = ?, started_at = ? WHERE id = ? AND status = ?",
		StatusRunning, now, jobID, StatusPending)
	if err != nil {
		log.Printf("[job] failed to claim job %s: %v", jobID, err)
		return
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return
	}

	j, err := q.GetJob(jobID)
	if err != nil {
		log.Printf("[job] failed to load job %s: %v", jobID, err)
		return
	}

	q.mu.RLock()
	handler, ok := q.handlers[j.Type]
	q.mu.RUnlock()

	if !ok {
		log.Printf("[job] no handler for job type %s", j.Type)
		q.failJob(j, fmt.Sprintf("no handler for job type: %s", j.Type))
		return
	}

	// Shutdown stops dispatching but never interrupts a running task.
	if err := handler(context.WithoutCancel(ctx), j); err != nil {
		q.failJob(j, err.Error())
	} else {
		q.completeJob(j)
	}
}

func (q *Queue) completeJob(j *Job) {
	q.db.Exec("UPDATE jobs SET status = ?, completed_at = ? WHERE id = ?",
		StatusCompleted, time.Now(), j.ID)
	log.Printf("[job] %s job %s completed", j.Type, j.ID)
}

func (q *Queue) failJob(j *Job, errMsg string) {
	q.db.Exec("UPDATE jobs SET status = ?, error = ?, completed_at = ? WHERE id = ?",
		StatusFailed, errMsg, time.Now(), j.ID)
	log.Printf("[job] %s job %s failed: %s", j.Type, j.ID, errMsg)
}

// resumeJobs re-queues pending jobs found in the database on startup. Jobs
// that were mid-run when the process died go back to pending.
func (q *Queue) resumeJobs() {
	q.db.Exec("UPDATE jobs SET status = ? WHERE status = ?", StatusPending, StatusRunning)
	if count := q.enqueuePending(); count > 0 {
		log.Printf("[job] resumed %d pending jobs", count)
	}
}

// enqueuePending pushes every pending job ID onto the channel without
// blocking. Duplicates are harmless because claiming is atomic.
func (q *Queue) enqueuePending() int {
	rows, err := q.db.Query("SELECT id FROM jobs WHERE status = ? ORDER BY created_at ASC", StatusPending)
	if err != nil {
		log.Printf("[job] failed to scan pending jobs: %v", err)
		return 0
	}
	defer rows.Close()

	count := 0
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			continue
		}
		select {
		case q.pending <- id:
			count++
		default:
		}
	}
	return count
}

// pollPending periodically re-queues pending jobs so work dropped on a full
// channel runs without waiting for a restart.
func (q *Queue) pollPending(ctx context.Context) {
	ticker := time.NewTicker(q.pollInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			q.enqueuePending()
		}
	}
}
