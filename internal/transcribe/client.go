package transcribe

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"strings"
)

// Client submits audio to the transcription service.
type Client struct {
	baseURL    string
	httpClient *http.Client
}

// Config holds configuration for the transcription client.
type Config struct {
	BaseURL    string       // e.g. http://localhost:8000
	HTTPClient *http.Client // optional, shared client with connection pooling
}

// NewClient creates a new transcription service client.
func NewClient(cfg Config) *Client {
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		baseURL:    strings.TrimRight(cfg.BaseURL, "/"),
		httpClient: httpClient,
	}
}

// submitResponse represents the transcription service's job submission reply.
type submitResponse struct {
	JobID  string `json:"job_id"`
	Status string `json:"status"`
}

// Submit uploads audio bytes as a multipart form and returns the job ID the
// service assigned. The audio is already materialized by the caller; Submit
// performs no file I/O of its own.
func (c *Client) Submit(ctx context.Context, audio []byte, filename string) (string, error) {
	if c.baseURL == "" {
		return "", fmt.Errorf("transcription service URL not configured")
	}

	var body bytes.Buffer
	mw := multipart.NewWriter(&body)
	part, err := mw.CreateFormFile("file", filename)
	if err != nil {
		return "", fmt.Errorf("failed to build multipart form: %w", err)
	}
	if _, err := part.Write(audio); err != nil {
		return "", fmt.Errorf("failed to write audio to form: %w", err)
	}
	if err := mw.Close(); err != nil {
		return "", fmt.Errorf("failed to finalize multipart form: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+"/transcribe/", &body)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to reach transcription service: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return "", fmt.Errorf("transcription service error: %d - %s", resp.StatusCode, strings.TrimSpace(string(b)))
	}

	var sr submitResponse
	if err := json.NewDecoder(resp.Body).Decode(&sr); err != nil {
		return "", fmt.Errorf("failed to decode response: %w", err)
	}
	if sr.JobID == "" {
		return "", fmt.Errorf("transcription service did not return a job_id")
	}

	return sr.JobID, nil
}
