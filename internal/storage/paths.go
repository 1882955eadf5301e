package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
)

// PublicPrefix is the URL-style prefix under which episode media is exposed.
// Stored segment paths use this prefix; on disk they live under the
// configured media root.
const PublicPrefix = "/episodes/"

// backgroundRemovedMarker is inserted before the .mp4 extension of a
// transcoded file to name its background-removed derivative.
const backgroundRemovedMarker = ".background-removed"

// Paths resolves between public media paths and filesystem locations.
type Paths struct {
	MediaRoot string
}

func NewPaths(mediaRoot string) *Paths {
	return &Paths{MediaRoot: mediaRoot}
}

// Resolve maps a public /episodes/... path into the media root. Any other
// path is returned as-is.
func (p *Paths) Resolve(path string) string {
	if rel, ok := strings.CutPrefix(path, PublicPrefix); ok {
		return filepath.Join(p.MediaRoot, rel)
	}
	return path
}

// Public converts an absolute path under the media root to its /episodes/...
// form. Paths outside the media root are returned unchanged.
func (p *Paths) Public(path string) string {
	rel, err := filepath.Rel(p.MediaRoot, path)
	if err != nil || strings.HasPrefix(rel, "..") {
		return path
	}
	return PublicPrefix + filepath.ToSlash(rel)
}

// EpisodeDir returns (and creates) the on-disk directory for an episode's
// media files.
func (p *Paths) EpisodeDir(episodeID int64) (string, error) {
	dir := filepath.Join(p.MediaRoot, fmt.Sprintf("%d", episodeID))
	if err := os.MkdirAll(dir, 0755); err != nil {
		return "", err
	}
	return dir, nil
}

// TranscodedName is the deterministic filename for a segment's normalized
// upload. The nonce keeps re-uploads of the same segment from colliding.
func TranscodedName(segmentID int64, nonce string) string {
	return fmt.Sprintf("segment_%d_%s.mp4", segmentID, nonce)
}

// RawName names the raw upload as accepted, preserving its extension.
func RawName(segmentID int64, nonce, ext string) string {
	return fmt.Sprintf("segment_%d_raw_%s%s", segmentID, nonce, ext)
}

// BackgroundRemovedName derives the compositor output name from the
// transcoded name by the fixed suffix convention.
func BackgroundRemovedName(transcodedName string) string {
	base := strings.TrimSuffix(transcodedName, ".mp4")
	return base + backgroundRemovedMarker + ".mp4"
}

// SafeJoin joins rel onto base and rejects traversal outside base.
func SafeJoin(base, rel string) (string, error) {
	absBase, err := filepath.Abs(base)
	if err != nil {
		return "", err
	}
	absFull, err := filepath.Abs(filepath.Join(base, rel))
	if err != nil {
		return "", err
	}
	if absFull != absBase && !strings.HasPrefix(absFull, absBase+string(os.PathSeparator)) {
		return "", os.ErrPermission
	}
	return absFull, nil
}
