// Package compositor replaces the background of a video with a still image
// by alpha-blending each frame over the image, using a per-pixel subject
// segmentation mask. The original audio track is carried over unchanged.
package compositor

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"

	"github.com/podcast-studio/backend/internal/ffmpeg"
)

// ErrInvalidVideoDimensions means the input video's dimensions could not be
// read, which in practice means a corrupt or unreadable file.
var ErrInvalidVideoDimensions = errors.New("invalid video dimensions")

// FrameError fails the whole job: no partially composited video is ever
// persisted as a final result.
type FrameError struct {
	Frame int
	Err   error
}

func (e *FrameError) Error() string {
	return fmt.Sprintf("frame %d: %v", e.Frame, e.Err)
}

func (e *FrameError) Unwrap() error { return e.Err }

// MuxError reports a failure combining the composited stream with the
// original audio.
type MuxError struct {
	Err error
}

func (e *MuxError) Error() string { return "mux audio: " + e.Err.Error() }

func (e *MuxError) Unwrap() error { return e.Err }

// Compositor runs the background-removal pass. The Segmenter session is
// owned by the caller and shared across runs.
type Compositor struct {
	segmenter Segmenter
}

func New(segmenter Segmenter) *Compositor {
	return &Compositor{segmenter: segmenter}
}

// Run produces outputPath from inputPath with the subject composited over
// the background image. The intermediate video-only file is removed on every
// return path.
func (c *Compositor) Run(ctx context.Context, inputPath, backgroundPath, outputPath string) error {
	info, err := ffmpeg.Probe(inputPath)
	if err != nil {
		return fmt.Errorf("probe %s: %w", inputPath, err)
	}
	if info.Width == 0 || info.Height == 0 {
		return fmt.Errorf("%w: %s (width=%d height=%d)", ErrInvalidVideoDimensions, inputPath, info.Width, info.Height)
	}
	width, height := info.Width, info.Height

	background, err := LoadBackground(backgroundPath, width, height)
	if err != nil {
		return err
	}

	tempPath := outputPath + ".video_only.mp4"
	defer os.Remove(tempPath)

	if err := c.compositeFrames(ctx, inputPath, tempPath, background, info); err != nil {
		return err
	}

	if !info.HasAudio() {
		// No audio track: the video-only stream is the final output.
		return os.Rename(tempPath, outputPath)
	}

	if err := ffmpeg.MuxAudio(ctx, tempPath, inputPath, outputPath); err != nil {
		return &MuxError{Err: err}
	}
	return nil
}

// compositeFrames runs the per-frame loop: segment, blur, blend, encode.
func (c *Compositor) compositeFrames(ctx context.Context, inputPath, tempPath string, background []float32, info *ffmpeg.MediaInfo) error {
	width, height := info.Width, info.Height

	reader, err := ffmpeg.NewFrameReader(ctx, inputPath, width, height)
	if err != nil {
		return fmt.Errorf("open %s: %w", inputPath, err)
	}
	defer reader.Close()

	writer, err := ffmpeg.NewFrameWriter(ctx, tempPath, width, height, info.FrameRate)
	if err != nil {
		return fmt.Errorf("open encoder: %w", err)
	}

	frame := make([]byte, width*height*3)
	out := make([]byte, width*height*3)
	frames := 0

	for {
		ok, err := reader.Next(frame)
		if err != nil {
			writer.Close()
			return &FrameError{Frame: frames, Err: err}
		}
		if !ok {
			break
		}

		mask, err := c.segmenter.Mask(ctx, frame, width, height)
		if err != nil {
			writer.Close()
			return &FrameError{Frame: frames, Err: fmt.Errorf("segment: %w", err)}
		}

		alpha := blurMask(mask, width, height)
		compositeFrame(frame, background, alpha, out)

		if err := writer.WriteFrame(out); err != nil {
			writer.Close()
			return &FrameError{Frame: frames, Err: err}
		}
		frames++
	}

	// A decoder that died mid-stream looks like a clean end of stream above;
	// its exit status only surfaces here.
	if err := reader.Close(); err != nil {
		writer.Close()
		return &FrameError{Frame: frames, Err: err}
	}

	if err := writer.Close(); err != nil {
		return fmt.Errorf("finish encode: %w", err)
	}
	log.Printf("[compositor] composited %d frames at %dx%d", frames, width, height)
	return nil
}

// compositeFrame blends out = alpha*fg + (1-alpha)*bg per channel in
// normalized float space, then rescales to 8-bit.
func compositeFrame(frame []byte, background, alpha []float32, out []byte) {
	for p := 0; p < len(alpha); p++ {
		a := alpha[p]
		i := p * 3
		for ch := 0; ch < 3; ch++ {
			fg := float32(frame[i+ch]) / 255.0
			v := a*fg + (1-a)*background[i+ch]
			if v < 0 {
				v = 0
			} else if v > 1 {
				v = 1
			}
			out[i+ch] = uint8(v*255 + 0.5)
		}
	}
}
