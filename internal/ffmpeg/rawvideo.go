package ffmpeg

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
)

// FrameReader decodes a video into a stream of raw RGB24 frames in
// presentation order.
type FrameReader struct {
	cmd       *exec.Cmd
	stdout    io.ReadCloser
	stderr    bytes.Buffer
	frameSize int
	closed    bool
	closeErr  error
}

func NewFrameReader(ctx context.Context, inputPath string, width, height int) (*FrameReader, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-i", inputPath,
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"pipe:1",
	)
	r := &FrameReader{cmd: cmd, frameSize: width * height * 3}
	cmd.Stderr = &r.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, err
	}
	r.stdout = stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start decoder: %w", err)
	}
	return r, nil
}

// Next fills buf (which must be width*height*3 bytes) with the next frame.
// It returns false at end of stream.
func (r *FrameReader) Next(buf []byte) (bool, error) {
	if len(buf) != r.frameSize {
		return false, fmt.Errorf("frame buffer is %d bytes, want %d", len(buf), r.frameSize)
	}
	_, err := io.ReadFull(r.stdout, buf)
	if err == io.EOF {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("read frame: %w", err)
	}
	return true, nil
}

// Close waits for the decoder and reports its exit status. A decoder that
// dies mid-stream closes its pipe at a frame boundary, which Next cannot
// distinguish from the end of the video, so callers must check Close before
// trusting the stream. Safe to call more than once.
func (r *FrameReader) Close() error {
	if r.closed {
		return r.closeErr
	}
	r.closed = true
	r.stdout.Close()
	if err := r.cmd.Wait(); err != nil {
		if tail := r.stderr.String(); tail != "" {
			r.closeErr = fmt.Errorf("decoder: %v: %s", err, tail)
		} else {
			r.closeErr = fmt.Errorf("decoder: %w", err)
		}
	}
	return r.closeErr
}

// FrameWriter encodes raw RGB24 frames into a video-only mp4 at the given
// frame rate, using the canonical video codec settings.
type FrameWriter struct {
	cmd    *exec.Cmd
	stdin  io.WriteCloser
	stderr bytes.Buffer
}

func NewFrameWriter(ctx context.Context, outputPath string, width, height int, frameRate string) (*FrameWriter, error) {
	cmd := exec.CommandContext(ctx, "ffmpeg",
		"-hide_banner",
		"-loglevel", "error",
		"-f", "rawvideo",
		"-pix_fmt", "rgb24",
		"-s", fmt.Sprintf("%dx%d", width, height),
		"-r", frameRate,
		"-i", "pipe:0",
		"-c:v", VideoCodec,
		"-preset", VideoPreset,
		"-crf", VideoCRF,
		"-pix_fmt", "yuv420p",
		"-an",
		"-y", outputPath,
	)
	w := &FrameWriter{cmd: cmd}
	cmd.Stderr = &w.stderr

	stdin, err := cmd.StdinPipe()
	if err != nil {
		return nil, err
	}
	w.stdin = stdin

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("start encoder: %w", err)
	}
	return w, nil
}

func (w *FrameWriter) WriteFrame(frame []byte) error {
	if _, err := w.stdin.Write(frame); err != nil {
		return fmt.Errorf("write frame: %w", err)
	}
	return nil
}

// Close flushes the stream and waits for the encoder to finish.
func (w *FrameWriter) Close() error {
	w.stdin.Close()
	if err := w.cmd.Wait(); err != nil {
		if tail := w.stderr.String(); tail != "" {
			return fmt.Errorf("encoder: %v: %s", err, tail)
		}
		return fmt.Errorf("encoder: %w", err)
	}
	return nil
}

// MuxAudio combines a video-only stream with the audio track of
// audioSourcePath, encoding with the same canonical codec pair as Transcode.
func MuxAudio(ctx context.Context, videoPath, audioSourcePath, outputPath string) error {
	args := []string{
		"-hide_banner",
		"-loglevel", "error",
		"-i", videoPath,
		"-i", audioSourcePath,
		"-map", "0:v:0",
		"-map", "1:a:0",
	}
	args = append(args, canonicalCodecArgs()...)
	args = append(args, "-y", outputPath)

	cmd := exec.CommandContext(ctx, "ffmpeg", args...)
	if output, err := cmd.CombinedOutput(); err != nil {
		return fmt.Errorf("mux: %s", stderrTail(output, err))
	}
	return nil
}
