package compositor

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// Segmenter produces a per-pixel foreground probability mask in [0,1] for
// one RGB24 frame (1 = subject).
type Segmenter interface {
	Mask(ctx context.Context, frame []byte, width, height int) ([]float32, error)
	Close() error
}

// MaskServerClient talks to a segmentation model server over HTTP: one raw
// RGB24 frame per request, one mask byte per pixel back (0-255).
type MaskServerClient struct {
	baseURL    string
	httpClient *http.Client
}

func NewMaskServerClient(baseURL string) *MaskServerClient {
	return &MaskServerClient{
		baseURL: baseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
		},
	}
}

func (c *MaskServerClient) Mask(ctx context.Context, frame []byte, width, height int) ([]float32, error) {
	req, err := http.NewRequestWithContext(ctx, "POST", c.baseURL+"/segment", bytes.NewReader(frame))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/octet-stream")
	req.Header.Set("X-Frame-Width", strconv.Itoa(width))
	req.Header.Set("X-Frame-Height", strconv.Itoa(height))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("mask server request: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("mask server error (status %d): %s", resp.StatusCode, body)
	}

	raw := make([]byte, width*height)
	if _, err := io.ReadFull(resp.Body, raw); err != nil {
		return nil, fmt.Errorf("read mask: %w", err)
	}

	mask := make([]float32, len(raw))
	for i, v := range raw {
		mask[i] = float32(v) / 255.0
	}
	return mask, nil
}

func (c *MaskServerClient) Close() error {
	c.httpClient.CloseIdleConnections()
	return nil
}
