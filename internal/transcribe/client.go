// Package transcribe is the boundary client for the speech-to-text service:
// upload the media bytes, create a transcript job, poll until it settles.
// Retry policy belongs to the caller.
package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"os"
	"strings"
	"time"
)

// ErrServiceUnavailable covers transport failures and 5xx responses from the
// transcription service.
var ErrServiceUnavailable = errors.New("transcription service unavailable")

// IncompleteError is a terminal poll status other than "completed".
type IncompleteError struct {
	Status string
}

func (e *IncompleteError) Error() string {
	return "transcription finished with status: " + e.Status
}

// APIError is a structured error reported by the service.
type APIError struct {
	Detail string
}

func (e *APIError) Error() string {
	return "transcription error: " + e.Detail
}

type Client struct {
	baseURL      string
	apiKey       string
	httpClient   *http.Client
	pollInterval time.Duration
}

func NewClient(baseURL, apiKey string) *Client {
	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		apiKey:  apiKey,
		httpClient: &http.Client{
			Timeout: 10 * time.Minute,
		},
		pollInterval: 5 * time.Second,
	}
}

type transcriptResponse struct {
	ID     string `json:"id"`
	Status string `json:"status"`
	Text   string `json:"text"`
	Error  string `json:"error"`
}

// Transcribe uploads the file at mediaPath and returns the recognized text.
func (c *Client) Transcribe(ctx context.Context, mediaPath string) (string, error) {
	audioURL, err := c.upload(ctx, mediaPath)
	if err != nil {
		return "", err
	}

	id, err := c.createTranscript(ctx, audioURL)
	if err != nil {
		return "", err
	}

	log.Printf("[transcribe] submitted transcript %s for %s", id, mediaPath)
	return c.poll(ctx, id)
}

func (c *Client) upload(ctx context.Context, mediaPath string) (string, error) {
	f, err := os.Open(mediaPath)
	if err != nil {
		return "", fmt.Errorf("open media: %w", err)
	}
	defer f.Close()

	var result struct {
		UploadURL string `json:"upload_url"`
	}
	if err := c.do(ctx, "POST", "/v2/upload", f, "application/octet-stream", &result); err != nil {
		return "", err
	}
	if result.UploadURL == "" {
		return "", &APIError{Detail: "upload returned no url"}
	}
	return result.UploadURL, nil
}

func (c *Client) createTranscript(ctx context.Context, audioURL string) (string, error) {
	body, _ := json.Marshal(map[string]string{"audio_url": audioURL})

	var result transcriptResponse
	if err := c.do(ctx, "POST", "/v2/transcript", bytes.NewReader(body), "application/json", &result); err != nil {
		return "", err
	}
	if result.ID == "" {
		return "", &APIError{Detail: "create returned no transcript id"}
	}
	return result.ID, nil
}

func (c *Client) poll(ctx context.Context, id string) (string, error) {
	ticker := time.NewTicker(c.pollInterval)
	defer ticker.Stop()

	for {
		var result transcriptResponse
		if err := c.do(ctx, "GET", "/v2/transcript/"+id, nil, "", &result); err != nil {
			return "", err
		}

		switch result.Status {
		case "completed":
			return result.Text, nil
		case "error":
			return "", &APIError{Detail: result.Error}
		case "queued", "processing":
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-ticker.C:
			}
		default:
			return "", &IncompleteError{Status: result.Status}
		}
	}
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader, contentType string, out interface{}) error {
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, body)
	if err != nil {
		return err
	}
	req.Header.Set("Authorization", c.apiKey)
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrServiceUnavailable, err)
	}
	defer resp.Body.Close()

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("%w: read response: %v", ErrServiceUnavailable, err)
	}

	if resp.StatusCode >= 500 {
		return fmt.Errorf("%w: status %d", ErrServiceUnavailable, resp.StatusCode)
	}
	if resp.StatusCode != http.StatusOK {
		var apiErr struct {
			Error string `json:"error"`
		}
		if json.Unmarshal(data, &apiErr) == nil && apiErr.Error != "" {
			return &APIError{Detail: apiErr.Error}
		}
		return &APIError{Detail: fmt.Sprintf("status %d: %s", resp.StatusCode, data)}
	}

	return json.Unmarshal(data, out)
}
