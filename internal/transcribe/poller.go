package transcribe

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/payasgoyal/voicenote-bridge/internal/metrics"
)

// Poller repeatedly queries a transcription job's status until it reaches a
// terminal state or the attempt budget runs out.
//
// The retry policy is the core contract here and distinguishes three cases
// per query:
//   - a textual result ends polling immediately with StatusSucceeded
//   - an explicit error payload on a 2xx response ends polling immediately
//     with StatusFailed (the job is permanently failed, not transient)
//   - 404 (job not registered yet) and any transport or decode error are
//     transient: log and retry after the interval
//
// The poller never re-submits the job; only the status query is retried.
type Poller struct {
	baseURL     string
	httpClient  *http.Client
	logger      *log.Logger
	interval    time.Duration
	maxAttempts int
}

// PollerConfig holds configuration for the job poller.
type PollerConfig struct {
	BaseURL     string
	HTTPClient  *http.Client  // optional, shared client
	Interval    time.Duration // wait between status queries (default 3s)
	MaxAttempts int           // attempt budget (default 20, ~60s overall)
}

// NewPoller creates a new job poller.
func NewPoller(cfg PollerConfig, logger *log.Logger) *Poller {
	interval := cfg.Interval
	if interval == 0 {
		interval = 3 * time.Second
	}
	maxAttempts := cfg.MaxAttempts
	if maxAttempts == 0 {
		maxAttempts = 20
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Poller{
		baseURL:     strings.TrimRight(cfg.BaseURL, "/"),
		httpClient:  httpClient,
		logger:      logger,
		interval:    interval,
		maxAttempts: maxAttempts,
	}
}

// resultResponse represents the transcription service's status reply.
// A finished job carries text, a permanently failed one carries error.
type resultResponse struct {
	Text  string `json:"text"`
	Error string `json:"error"`
}

// PollUntilDone queries the job status at the configured interval until a
// terminal result, an explicit failure, or the attempt budget is exhausted.
// Context cancellation between attempts ends polling early with
// StatusTimedOut.
func (p *Poller) PollUntilDone(ctx context.Context, jobID string) Result {
	for attempt := 1; attempt <= p.maxAttempts; attempt++ {
		p.logger.Printf("transcribe: polling job %s, attempt %d/%d", jobID, attempt, p.maxAttempts)
		metrics.PollAttempts.Inc()

		res, err := p.queryOnce(ctx, jobID)
		if err != nil {
			// Transient: not-found, network error, malformed body.
			p.logger.Printf("transcribe: job %s not ready: %v", jobID, err)
		} else if res.Text != "" {
			p.logger.Printf("transcribe: job %s finished after %d attempts", jobID, attempt)
			return Result{Status: StatusSucceeded, Text: res.Text}
		} else if res.Error != "" {
			p.logger.Printf("transcribe: job %s failed: %s", jobID, res.Error)
			return Result{Status: StatusFailed, Reason: res.Error}
		}

		// Don't sleep after the last attempt.
		if attempt == p.maxAttempts {
			break
		}
		select {
		case <-ctx.Done():
			p.logger.Printf("transcribe: polling job %s canceled: %v", jobID, ctx.Err())
			return Result{Status: StatusTimedOut, Reason: ctx.Err().Error()}
		case <-time.After(p.interval):
		}
	}

	p.logger.Printf("transcribe: polling job %s timed out after %d attempts", jobID, p.maxAttempts)
	return Result{Status: StatusTimedOut, Reason: fmt.Sprintf("no result after %d attempts", p.maxAttempts)}
}

// queryOnce issues a single status query. A returned error always means
// "retry later"; terminal outcomes are reported through the response body.
func (p *Poller) queryOnce(ctx context.Context, jobID string) (resultResponse, error) {
	var rr resultResponse

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, p.baseURL+"/result/"+jobID, nil)
	if err != nil {
		return rr, fmt.Errorf("failed to create request: %w", err)
	}

	resp, err := p.httpClient.Do(req)
	if err != nil {
		return rr, fmt.Errorf("status query failed: %w", err)
	}
	defer resp.Body.Close()

	// 404 means the job is not registered yet. The body carries an error
	// field too, but the status code decides: this is transient, not a
	// permanent job failure.
	if resp.StatusCode == http.StatusNotFound {
		return rr, fmt.Errorf("job not found yet")
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return rr, fmt.Errorf("status query returned %d", resp.StatusCode)
	}

	if err := json.NewDecoder(resp.Body).Decode(&rr); err != nil {
		return rr, fmt.Errorf("failed to decode status response: %w", err)
	}
	return rr, nil
}
