package ffmpeg

import (
	"context"
	"fmt"
	"os/exec"
	"strings"
)

// Canonical encode settings. Every normalized file is produced with exactly
// these constants so downstream tools see a stable contract.
const (
	VideoCodec   = "libx264"
	VideoPreset  = "fast"
	VideoCRF     = "23"
	AudioCodec   = "aac"
	AudioBitrate = "128k"
)

// TranscodeError reports a failed ffmpeg run with the tail of its stderr.
type TranscodeError struct {
	Reason string
}

func (e *TranscodeError) Error() string {
	return "transcode failed: " + e.Reason
}

// Transcode normalizes an arbitrary input container/codec into the canonical
// mp4 format at outputPath, overwriting any pre-existing file.
func Transcode(ctx context.Context, inputPath, outputPath string) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
	}
	args = append(args, canonicalCodecArgs()...)
	args = append(args, "-y", outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return &TranscodeError{Reason: stderrTail(output, err)}
	}
	return nil
}

// canonicalCodecArgs is shared with the compositor's mux step, which must
// encode with the same codec pair.
func canonicalCodecArgs() []string {
	return []string{
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-c:a", AudioCodec,
		"-b:a", AudioBitrate,
	}
}

func stderrTail(output []byte, err error) string {
	lines := strings.Split(strings.TrimSpace(string(output)), "\n")
	if len(lines) > 10 {
		lines = lines[len(lines)-10:]
	}
	tail := strings.TrimSpace(strings.Join(lines, "\n"))
	if tail == "" {
		return err.Error()
	}
	return fmt.Sprintf("%v: %s", err, tail)
}
