package db

import (
	"database/sql"
	"errors"

	_ "github.com/mattn/go-sqlite3"

	"github.com/podcast-studio/backend/internal/db/models"
)

// ErrSegmentNotFound is returned when a lookup or update targets a segment
// that does not exist (or no longer exists).
var ErrSegmentNotFound = errors.New("segment not found")

type Database struct {
	db *sql.DB
}

func NewSQLite(path string) (*Database, error) {
	sqlDB, err := sql.Open("sqlite3", path+"?_journal_mode=WAL&_busy_timeout=5000")
	if err != nil {
		return nil, err
	}
	d := &Database{db: sqlDB}
	if err := d.migrate(); err != nil {
		return nil, err
	}
	return d, nil
}

func (d *Database) migrate() error {
	schema := `
	CREATE TABLE IF NOT EXISTS episodes (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		title TEXT NOT NULL,
		description TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		updated_at DATETIME DEFAULT CURRENT_TIMESTAMP
	);

	CREATE TABLE IF NOT EXISTS segments (
		id INTEGER PRIMARY KEY AUTOINCREMENT,
		episode_id INTEGER NOT NULL,
		segment_type TEXT NOT NULL DEFAULT 'human',
		order_index INTEGER NOT NULL DEFAULT 0,
		text_content TEXT,
		audio_path TEXT,
		raw_audio_path TEXT,
		video_path TEXT,
		raw_video_path TEXT,
		duration INTEGER,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		FOREIGN KEY (episode_id) REFERENCES episodes(id) ON DELETE CASCADE
	);
	CREATE INDEX IF NOT EXISTS idx_segments_episode ON segments(episode_id, order_index);

	CREATE TABLE IF NOT EXISTS jobs (
		id TEXT PRIMARY KEY,
		type TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'pending',
		file_path TEXT NOT NULL,
		params TEXT NOT NULL,
		error TEXT,
		created_at DATETIME DEFAULT CURRENT_TIMESTAMP,
		started_at DATETIME,
		completed_at DATETIME
	);
	`
	_, err := d.db.Exec(schema)
	return err
}

// SQL exposes the underlying handle for the job queue.
func (d *Database) SQL() *sql.DB {
	return d.db
}

func (d *Database) Close() error {
	return d.db.Close()
}

func (d *Database) CreateEpisode(title, description string) (int64, error) {
	res, err := d.db.Exec(
		"INSERT INTO episodes (title, description) VALUES (?, ?)",
		title, description,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

func (d *Database) CreateSegment(episodeID int64, segmentType string, orderIndex int) (int64, error) {
	res, err := d.db.Exec(
		"INSERT INTO segments (episode_id, segment_type, order_index) VALUES (?, ?, ?)",
		episodeID, segmentType, orderIndex,
	)
	if err != nil {
		return 0, err
	}
	return res.LastInsertId()
}

// LookupSegment fetches one segment row. Both fanout branches re-read through
// here rather than sharing a copy across the queue boundary.
func (d *Database) LookupSegment(episodeID, segmentID int64) (*models.Segment, error) {
	s := &models.Segment{}
	var text, audio, rawAudio, video, rawVideo sql.NullString
	var duration sql.NullInt64

	err := d.db.QueryRow(`
		SELECT id, episode_id, segment_type, order_index, text_content,
		       audio_path, raw_audio_path, video_path, raw_video_path,
		       duration, created_at
		FROM segments WHERE episode_id = ? AND id = ?`,
		episodeID, segmentID,
	).Scan(&s.ID, &s.EpisodeID, &s.SegmentType, &s.OrderIndex, &text,
		&audio, &rawAudio, &video, &rawVideo, &duration, &s.CreatedAt)
	if err == sql.ErrNoRows {
		return nil, ErrSegmentNotFound
	}
	if err != nil {
		return nil, err
	}

	s.TextContent = text.String
	s.AudioPath = audio.String
	s.RawAudioPath = rawAudio.String
	s.VideoPath = video.String
	s.RawVideoPath = rawVideo.String
	s.Duration = duration.Int64
	return s, nil
}

// ListSegments returns an episode's segments in play order.
func (d *Database) ListSegments(episodeID int64) ([]*models.Segment, error) {
	rows, err := d.db.Query(`
		SELECT id, episode_id, segment_type, order_index, text_content,
		       audio_path, raw_audio_path, video_path, raw_video_path,
		       duration, created_at
		FROM segments WHERE episode_id = ? ORDER BY order_index`, episodeID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var segments []*models.Segment
	for rows.Next() {
		s := &models.Segment{}
		var text, audio, rawAudio, video, rawVideo sql.NullString
		var duration sql.NullInt64
		if err := rows.Scan(&s.ID, &s.EpisodeID, &s.SegmentType, &s.OrderIndex, &text,
			&audio, &rawAudio, &video, &rawVideo, &duration, &s.CreatedAt); err != nil {
			return nil, err
		}
		s.TextContent = text.String
		s.AudioPath = audio.String
		s.RawAudioPath = rawAudio.String
		s.VideoPath = video.String
		s.RawVideoPath = rawVideo.String
		s.Duration = duration.Int64
		segments = append(segments, s)
	}
	return segments, rows.Err()
}

// UpdateSegmentVideoPath sets the background-removed video path. Single
// atomic statement over a field the transcription branch never touches, so
// concurrent branch completion cannot clobber.
func (d *Database) UpdateSegmentVideoPath(episodeID, segmentID int64, videoPath string) error {
	return d.updateSegmentField(episodeID, segmentID, "video_path", videoPath)
}

// UpdateSegmentTextContent sets the transcription result.
func (d *Database) UpdateSegmentTextContent(episodeID, segmentID int64, text string) error {
	return d.updateSegmentField(episodeID, segmentID, "text_content", text)
}

// UpdateSegmentRawVideoPath records where the accepted upload was stored.
func (d *Database) UpdateSegmentRawVideoPath(episodeID, segmentID int64, rawPath string) error {
	return d.updateSegmentField(episodeID, segmentID, "raw_video_path", rawPath)
}

func (d *Database) updateSegmentField(episodeID, segmentID int64, column, value string) error {
	res, err := d.db.Exec(
		"UPDATE segments SET "+column+" = ? WHERE episode_id = ? AND id = ?",
		value, episodeID, segmentID,
	)
	if err != nil {
		return err
	}
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrSegmentNotFound
	}
	return nil
}
