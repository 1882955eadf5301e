package compositor

import (
	"context"
	"errors"
	"image/color"
	"os"
	"path/filepath"
	"testing"
)

func TestCompositeFullForeground(t *testing.T) {
	frame := []byte{200, 100, 50}
	bg := []float32{0, 0, 0}
	alpha := []float32{1}
	out := make([]byte, 3)

	compositeFrame(frame, bg, alpha, out)
	for ch := 0; ch < 3; ch++ {
		if out[ch] != frame[ch] {
			t.Errorf("channel %d = %d, want foreground %d", ch, out[ch], frame[ch])
		}
	}
}

func TestCompositeFullBackground(t *testing.T) {
	frame := []byte{200, 100, 50}
	bg := []float32{1, 0.5, 0}
	alpha := []float32{0}
	out := make([]byte, 3)

	compositeFrame(frame, bg, alpha, out)
	want := []byte{255, 128, 0}
	for ch := 0; ch < 3; ch++ {
		if out[ch] != want[ch] {
			t.Errorf("channel %d = %d, want background %d", ch, out[ch], want[ch])
		}
	}
}

func TestCompositeBlendIsLinear(t *testing.T) {
	// 50/50 blend of black foreground over white background
	frame := []byte{0, 0, 0}
	bg := []float32{1, 1, 1}
	alpha := []float32{0.5}
	out := make([]byte, 3)

	compositeFrame(frame, bg, alpha, out)
	for ch := 0; ch < 3; ch++ {
		if out[ch] != 128 {
			t.Errorf("channel %d = %d, want 128", ch, out[ch])
		}
	}
}

// Stand-in media tools for exercising Run without real ffmpeg. The probe
// reports a 4x4 video-only file; the decoder emits two complete frames and
// then dies, which from the frame loop's side looks like a clean end of
// stream. The encoder branch consumes stdin and creates its output file.
const fakeProbeScript = `#!/bin/sh
cat <<'EOF'
{"format": {"duration": "1.0"}, "streams": [{"codec_name": "h264", "codec_type": "video", "width": 4, "height": 4, "r_frame_rate": "10/1"}]}
EOF
`

const fakeFFmpegScript = `#!/bin/sh
case "$*" in
*pipe:1*)
	head -c 96 /dev/zero
	echo "error while decoding stream" >&2
	exit 1
	;;
*)
	cat > /dev/null
	for a; do out=$a; done
	: > "$out"
	;;
esac
`

type stubSegmenter struct{}

func (stubSegmenter) Mask(_ context.Context, _ []byte, w, h int) ([]float32, error) {
	return make([]float32, w*h), nil
}

func (stubSegmenter) Close() error { return nil }

func writeScript(t *testing.T, path, script string) {
	t.Helper()
	if err := os.WriteFile(path, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
}

func TestRunFailsWhenDecoderDiesMidStream(t *testing.T) {
	bin := t.TempDir()
	writeScript(t, filepath.Join(bin, "ffprobe"), fakeProbeScript)
	writeScript(t, filepath.Join(bin, "ffmpeg"), fakeFFmpegScript)
	t.Setenv("PATH", bin+string(os.PathListSeparator)+os.Getenv("PATH"))

	background := writeTestImage(t, 8, 8, color.RGBA{R: 10, G: 20, B: 30, A: 255})
	outputPath := filepath.Join(t.TempDir(), "out.mp4")

	err := New(stubSegmenter{}).Run(context.Background(), "in.mp4", background, outputPath)
	var fe *FrameError
	if !errors.As(err, &fe) {
		t.Fatalf("Run = %v, want FrameError", err)
	}

	// No truncated result may survive, final or intermediate.
	if _, statErr := os.Stat(outputPath); !os.IsNotExist(statErr) {
		t.Errorf("truncated output persisted: %v", statErr)
	}
	if _, statErr := os.Stat(outputPath + ".video_only.mp4"); !os.IsNotExist(statErr) {
		t.Errorf("intermediate file left behind: %v", statErr)
	}
}

func TestCompositePerPixelAlpha(t *testing.T) {
	// Two pixels with opposite masks
	frame := []byte{255, 255, 255, 255, 255, 255}
	bg := []float32{0, 0, 0, 0, 0, 0}
	alpha := []float32{1, 0}
	out := make([]byte, 6)

	compositeFrame(frame, bg, alpha, out)
	for ch := 0; ch < 3; ch++ {
		if out[ch] != 255 {
			t.Errorf("subject pixel channel %d = %d, want 255", ch, out[ch])
		}
		if out[3+ch] != 0 {
			t.Errorf("background pixel channel %d = %d, want 0", ch, out[3+ch])
		}
	}
}
