package models

import "time"

type Episode struct {
	ID          int64     `json:"id"`
	Title       string    `json:"title"`
	Description string    `json:"description,omitempty"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// SegmentType distinguishes how a segment's content was produced.
const (
	SegmentHuman  = "human"
	SegmentBot    = "bot"
	SegmentSource = "source"
)

// Segment is one ordered content unit of an episode. The post-processing
// pipeline writes exactly two of its fields: VideoPath on compositor success
// and TextContent on transcription success.
type Segment struct {
	ID           int64     `json:"id"`
	EpisodeID    int64     `json:"episode_id"`
	SegmentType  string    `json:"segment_type"`
	OrderIndex   int       `json:"order_index"`
	TextContent  string    `json:"text_content,omitempty"`
	AudioPath    string    `json:"audio_path,omitempty"`
	RawAudioPath string    `json:"raw_audio_path,omitempty"`
	VideoPath    string    `json:"video_path,omitempty"`
	RawVideoPath string    `json:"raw_video_path,omitempty"`
	Duration     int64     `json:"duration,omitempty"` // milliseconds
	CreatedAt    time.Time `json:"created_at"`
}
