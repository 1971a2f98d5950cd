// Package whatsapp wraps the WhatsApp Cloud API (Meta Graph API): sending
// text messages to users and resolving/downloading inbound media.
package whatsapp

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"

	"github.com/payasgoyal/voicenote-bridge/internal/metrics"
)

const defaultGraphAPIBaseURL = "https://graph.facebook.com/v22.0"

// maxMediaBytes caps media downloads. WhatsApp voice notes are OGG/Opus and
// far smaller; the cap guards against a misbehaving CDN response.
const maxMediaBytes = 32 << 20

// Client calls the WhatsApp Cloud API.
type Client struct {
	token         string
	phoneNumberID string
	baseURL       string
	logger        *log.Logger
	httpClient    *http.Client
}

// ClientConfig holds configuration for the WhatsApp client.
type ClientConfig struct {
	Token         string // Cloud API access token
	PhoneNumberID string // sender phone number ID
	BaseURL       string // Graph API base, defaults to the v22.0 endpoint
	HTTPClient    *http.Client
}

// NewClient creates a new WhatsApp Cloud API client.
func NewClient(cfg ClientConfig, logger *log.Logger) *Client {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = defaultGraphAPIBaseURL
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{
		token:         cfg.Token,
		phoneNumberID: cfg.PhoneNumberID,
		baseURL:       strings.TrimRight(baseURL, "/"),
		logger:        logger,
		httpClient:    httpClient,
	}
}

// sendRequest is the Cloud API messages payload.
type sendRequest struct {
	MessagingProduct string   `json:"messaging_product"`
	To               string   `json:"to"`
	Text             textBody `json:"text"`
}

type textBody struct {
	Body string `json:"body"`
}

// SendText sends a plain-text message to a user. Failures are reported to
// the caller; callers on the state-transition path log and move on rather
// than retry.
func (c *Client) SendText(ctx context.Context, to, body string) error {
	payload, err := json.Marshal(sendRequest{
		MessagingProduct: "whatsapp",
		To:               to,
		Text:             textBody{Body: body},
	})
	if err != nil {
		return fmt.Errorf("failed to marshal message: %w", err)
	}

	url := fmt.Sprintf("%s/%s/messages", c.baseURL, c.phoneNumberID)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(payload))
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		metrics.OutboundSends.WithLabelValues("error").Inc()
		return fmt.Errorf("failed to send message: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		metrics.OutboundSends.WithLabelValues("error").Inc()
		var errResp map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return fmt.Errorf("WhatsApp API error: %d - %v", resp.StatusCode, errResp)
	}

	metrics.OutboundSends.WithLabelValues("ok").Inc()
	c.logger.Printf("whatsapp: message sent to %s", to)
	return nil
}

// mediaResponse is the Graph API media lookup reply.
type mediaResponse struct {
	URL      string `json:"url"`
	MimeType string `json:"mime_type"`
}

// GetMediaURL resolves a media ID to a short-lived download URL.
func (c *Client) GetMediaURL(ctx context.Context, mediaID string) (string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/"+mediaID, nil)
	if err != nil {
		return "", fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("failed to look up media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]any
		_ = json.NewDecoder(resp.Body).Decode(&errResp)
		return "", fmt.Errorf("WhatsApp API error: %d - %v", resp.StatusCode, errResp)
	}

	var mr mediaResponse
	if err := json.NewDecoder(resp.Body).Decode(&mr); err != nil {
		return "", fmt.Errorf("failed to decode media response: %w", err)
	}
	if mr.URL == "" {
		return "", fmt.Errorf("media lookup returned no URL")
	}
	return mr.URL, nil
}

// DownloadMedia fetches media bytes from a URL obtained via GetMediaURL.
// The CDN requires the same bearer token as the Graph API.
func (c *Client) DownloadMedia(ctx context.Context, mediaURL string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, mediaURL, nil)
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "Bearer "+c.token)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("failed to download media: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, fmt.Errorf("media download returned %d", resp.StatusCode)
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxMediaBytes))
	if err != nil {
		return nil, fmt.Errorf("failed to read media body: %w", err)
	}
	return data, nil
}
