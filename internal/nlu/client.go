// Package nlu talks to the external understanding service. The transcript
// path is one synchronous call; the audio path is an asynchronous job that is
// submitted once and polled until a terminal status. Every result is run
// through the intent schema before it leaves this package, so callers never
// see an untyped payload.
package nlu

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/deca/lifetrack-voice/internal/intent"
)

var (
	// ErrJobNotFound marks a job that outlived the backend's result cache.
	// It is an expected condition and callers show "please try again".
	ErrJobNotFound = errors.New("job not found or expired")

	// ErrPollTimeout marks a poll loop that gave up before a terminal status.
	ErrPollTimeout = errors.New("timed out waiting for the understanding result")
)

// Client is the understanding service API client.
type Client struct {
	baseURL    string
	apiKey     string
	language   string
	timezone   string
	httpClient *http.Client
}

// NewClient creates a new understanding service client.
func NewClient(baseURL, apiKey, language, timezone string) *Client {
	return &Client{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		language: language,
		timezone: timezone,
		httpClient: &http.Client{
			Timeout: 60 * time.Second,
		},
	}
}

// Result is an understanding outcome after intent validation.
type Result struct {
	Actions    []intent.Action
	Transcript string
}

// SubmitResponse acknowledges an audio job submission.
type SubmitResponse struct {
	JobID  string `json:"jobId"`
	Status string `json:"status"`
}

// PollOptions bounds the job poll loop.
type PollOptions struct {
	Timeout  time.Duration
	Interval time.Duration
}

// UnderstandTranscript submits a transcript for synchronous understanding.
// An empty transcript after trimming skips the network call entirely.
func (c *Client) UnderstandTranscript(ctx context.Context, transcript string) (*Result, error) {
	transcript = strings.TrimSpace(transcript)
	if transcript == "" {
		return &Result{Actions: []intent.Action{intent.Unknown()}}, nil
	}

	reqBody := map[string]any{
		"transcript": transcript,
		"lang":       c.language,
		"today":      time.Now().Format("2006-01-02"),
		"timezone":   c.timezone,
	}

	respBody, _, err := c.post(ctx, "/voice/understand", reqBody)
	if err != nil {
		return nil, err
	}

	var raw any
	if err := json.Unmarshal(respBody, &raw); err != nil {
		log.Printf("Failed to parse understanding response: %v", err)
		return &Result{Actions: []intent.Action{intent.Unknown()}}, nil
	}

	return &Result{Actions: intent.ParseActions(raw), Transcript: transcript}, nil
}

// SubmitAudio submits base64-encoded audio for asynchronous understanding.
// The backend acknowledges immediately with a job identifier.
func (c *Client) SubmitAudio(ctx context.Context, audioBase64, mimeType string) (*SubmitResponse, error) {
	reqBody := map[string]any{
		"audio":    audioBase64,
		"mimeType": mimeType,
		"lang":     c.language,
		"today":    time.Now().Format("2006-01-02"),
		"timezone": c.timezone,
	}

	respBody, _, err := c.post(ctx, "/voice/submit", reqBody)
	if err != nil {
		return nil, err
	}

	var submit SubmitResponse
	if err := json.Unmarshal(respBody, &submit); err != nil {
		return nil, fmt.Errorf("failed to parse submit response: %w", err)
	}
	if submit.JobID == "" {
		return nil, fmt.Errorf("voice service did not return a job id")
	}

	log.Printf("Audio job submitted: %s (status: %s)", submit.JobID, submit.Status)
	return &submit, nil
}

// PollForResult queries the job until it completes, fails, expires, or the
// timeout elapses. A stalled backend can never block the caller indefinitely.
func (c *Client) PollForResult(ctx context.Context, jobID string, opts PollOptions) (*Result, error) {
	if opts.Timeout <= 0 {
		opts.Timeout = 30 * time.Second
	}
	if opts.Interval <= 0 {
		opts.Interval = 500 * time.Millisecond
	}

	deadline := time.Now().Add(opts.Timeout)
	for {
		result, done, err := c.pollOnce(ctx, jobID)
		if err != nil {
			return nil, err
		}
		if done {
			return result, nil
		}

		if time.Now().Add(opts.Interval).After(deadline) {
			return nil, fmt.Errorf("%w after %s", ErrPollTimeout, opts.Timeout)
		}

		select {
		case <-ctx.Done():
			return nil, ctx.Err()
		case <-time.After(opts.Interval):
		}
	}
}

func (c *Client) pollOnce(ctx context.Context, jobID string) (*Result, bool, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+"/voice/jobs/"+jobID, nil)
	if err != nil {
		return nil, false, fmt.Errorf("failed to create request: %w", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, false, networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, false, fmt.Errorf("failed to read job status: %w", err)
	}

	if resp.StatusCode == http.StatusNotFound {
		return nil, false, ErrJobNotFound
	}
	if resp.StatusCode != http.StatusOK {
		return nil, false, fmt.Errorf("voice service returned status %d: %s", resp.StatusCode, string(respBody))
	}

	var job struct {
		Status string          `json:"status"`
		Result json.RawMessage `json:"result"`
		Error  string          `json:"error"`
	}
	if err := json.Unmarshal(respBody, &job); err != nil {
		return nil, false, fmt.Errorf("failed to parse job status: %w", err)
	}

	switch job.Status {
	case "completed":
		var raw map[string]any
		if len(job.Result) > 0 {
			if err := json.Unmarshal(job.Result, &raw); err != nil {
				log.Printf("Failed to parse job result for %s: %v", jobID, err)
			}
		}
		transcript, _ := raw["transcript"].(string)
		return &Result{Actions: intent.ParseActions(any(raw)), Transcript: transcript}, true, nil
	case "failed":
		if job.Error == "" {
			job.Error = "understanding job failed"
		}
		return nil, false, errors.New(job.Error)
	default:
		return nil, false, nil
	}
}

func (c *Client) post(ctx context.Context, path string, body map[string]any) ([]byte, int, error) {
	reqBytes, err := json.Marshal(body)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to marshal request: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(reqBytes))
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, networkError(err)
	}
	defer resp.Body.Close()

	respBody, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode != http.StatusOK {
		log.Printf("Voice service error on %s: %d %s", path, resp.StatusCode, string(respBody))
		return nil, resp.StatusCode, fmt.Errorf("voice service returned status %d", resp.StatusCode)
	}

	return respBody, resp.StatusCode, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.apiKey != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiKey)
	}
}

// networkError folds connection-level failures into one actionable message
// instead of leaking a raw transport error to the UI.
func networkError(err error) error {
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return err
	}
	log.Printf("Voice service unreachable: %v", err)
	return fmt.Errorf("could not reach the voice service; check your connection and try again")
}
