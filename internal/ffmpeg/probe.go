package ffmpeg

import (
	"encoding/json"
	"fmt"
	"os/exec"
	"strconv"
	"strings"
)

type ProbeResult struct {
	Format  ProbeFormat   `json:"format"`
	Streams []ProbeStream `json:"streams"`
}

type ProbeFormat struct {
	Filename string `json:"filename"`
	Duration string `json:"duration"`
	Size     string `json:"size"`
	BitRate  string `json:"bit_rate"`
}

type ProbeStream struct {
	Index      int    `json:"index"`
	CodecName  string `json:"codec_name"`
	CodecType  string `json:"codec_type"` // video, audio, subtitle
	Width      int    `json:"width,omitempty"`
	Height     int    `json:"height,omitempty"`
	RFrameRate string `json:"r_frame_rate,omitempty"`
	SampleRate string `json:"sample_rate,omitempty"`
	Channels   int    `json:"channels,omitempty"`
}

type MediaInfo struct {
	Duration   string        `json:"duration"`
	Size       string        `json:"size"`
	VideoCodec string        `json:"video_codec"`
	AudioCodec string        `json:"audio_codec"`
	Width      int           `json:"width"`
	Height     int           `json:"height"`
	FrameRate  string        `json:"frame_rate"`
	Streams    []ProbeStream `json:"streams"`
}

func Probe(filePath string) (*MediaInfo, error) {
	cmd := exec.Command("ffprobe",
		"-v", "quiet",
		"-print_format", "json",
		"-show_format",
		"-show_streams",
		filePath,
	)

	output, err := cmd.Output()
	if err != nil {
		return nil, err
	}

	return parseProbe(output)
}

func parseProbe(output []byte) (*MediaInfo, error) {
	var result ProbeResult
	if err := json.Unmarshal(output, &result); err != nil {
		return nil, err
	}

	info := &MediaInfo{
		Duration: result.Format.Duration,
		Size:     result.Format.Size,
		Streams:  result.Streams,
	}

	for _, s := range result.Streams {
		switch s.CodecType {
		case "video":
			if info.VideoCodec == "" {
				info.VideoCodec = s.CodecName
				info.Width = s.Width
				info.Height = s.Height
				info.FrameRate = s.RFrameRate
			}
		case "audio":
			if info.AudioCodec == "" {
				info.AudioCodec = s.CodecName
			}
		}
	}

	return info, nil
}

// HasAudio reports whether any audio stream was found.
func (m *MediaInfo) HasAudio() bool {
	return m.AudioCodec != ""
}

// FPS parses the r_frame_rate ratio ("30000/1001") into frames per second.
func (m *MediaInfo) FPS() (float64, error) {
	rate := strings.TrimSpace(m.FrameRate)
	if rate == "" {
		return 0, fmt.Errorf("no frame rate in probe result")
	}
	num, den, ok := strings.Cut(rate, "/")
	if !ok {
		return strconv.ParseFloat(rate, 64)
	}
	n, err := strconv.ParseFloat(num, 64)
	if err != nil {
		return 0, fmt.Errorf("parse frame rate %q: %w", rate, err)
	}
	d, err := strconv.ParseFloat(den, 64)
	if err != nil || d == 0 {
		return 0, fmt.Errorf("parse frame rate %q: invalid denominator", rate)
	}
	return n / d, nil
}

// DurationSeconds parses the container duration.
func (m *MediaInfo) DurationSeconds() (float64, error) {
	if m.Duration == "" {
		return 0, fmt.Errorf("no duration in probe result")
	}
	return strconv.ParseFloat(m.Duration, 64)
}
