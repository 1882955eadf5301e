package job

import (
	"context"
	"encoding/json"
	"time"
)

// Type identifies which handler processes a job.
type Type string

const (
	TypeTranscode  Type = "transcode"
	TypeComposite  Type = "composite"
	TypeTranscribe Type = "transcribe"
)

// Status is the persisted state of a job.
type Status string

const (
	StatusPending   Status = "pending"
	StatusRunning   Status = "running"
	StatusCompleted Status = "completed"
	StatusFailed    Status = "failed"
)

// Job is one queued task. FilePath is the primary input; Params carries the
// task-specific payload.
type Job struct {
	ID          string          `json:"id"`
	Type        Type            `json:"type"`
	Status      Status          `json:"status"`
	FilePath    string          `json:"file_path"`
	Params      json.RawMessage `json:"params"`
	Error       string          `json:"error,omitempty"`
	CreatedAt   time.Time       `json:"created_at"`
	StartedAt   *time.Time      `json:"started_at,omitempty"`
	CompletedAt *time.Time      `json:"completed_at,omitempty"`
}

// Handler processes one job. Once dispatched it runs to completion or
// failure; the queue never interrupts it mid-flight.
type Handler func(ctx context.Context, job *Job) error
