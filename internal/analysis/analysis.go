// Package analysis talks to the long-running content analysis service: it
// submits a media location and polls the resulting job until it settles.
package analysis

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/loukt/video-transcript-explorer/internal/models"
)

const (
	DefaultAPIVersion = "2024-12-01-preview"
	DefaultTimeout    = 30 * time.Second
	// maxResponseBytes bounds a single status payload; results for long
	// videos carry every phrase.
	maxResponseBytes = 64 << 20
	maxErrorBody     = 4 << 10
	apiKeyHeader     = "Ocp-Apim-Subscription-Key"
)

var (
	ErrJobStart  = errors.New("analysis job start response has no job id")
	ErrJobFailed = errors.New("analysis job failed")
)

// RemoteServiceError reports a non-success HTTP response from the service.
type RemoteServiceError struct {
	Op         string
	StatusCode int
	Body       string
}

func (e *RemoteServiceError) Error() string {
	return fmt.Sprintf("analysis %s: service returned %d: %s", e.Op, e.StatusCode, e.Body)
}

// State is the coarse job state decoded from the service status string.
type State string

const (
	StateRunning   State = "running"
	StateSucceeded State = "succeeded"
	StateFailed    State = "failed"
)

// JobHandle identifies a submitted analysis job.
type JobHandle struct {
	ID string
}

// JobStatus is the decoded poll response. Result is set only when State is
// StateSucceeded and Reason only when it is StateFailed. Raw keeps the body
// exactly as the service sent it.
type JobStatus struct {
	State  State
	Result *Result
	Reason string
	Raw    json.RawMessage
}

// Result is the analyzer output of a succeeded job.
type Result struct {
	AnalyzerID string    `json:"analyzerId,omitempty"`
	Contents   []Content `json:"contents"`
}

// Content is one analyzed section of the media.
type Content struct {
	Kind              string          `json:"kind,omitempty"`
	StartTimeMs       *int64          `json:"startTimeMs,omitempty"`
	EndTimeMs         *int64          `json:"endTimeMs,omitempty"`
	TranscriptPhrases []models.Phrase `json:"transcriptPhrases,omitempty"`
}

type wireStatus struct {
	ID     string  `json:"id"`
	Status string  `json:"status"`
	Result *Result `json:"result"`
	Error  *struct {
		Code    string `json:"code"`
		Message string `json:"message"`
	} `json:"error"`
}

// Config holds the service location and credentials.
type Config struct {
	Endpoint   string
	APIKey     string
	AnalyzerID string
	APIVersion string
	Timeout    time.Duration
}

// Client is an HTTP client for the analysis service.
type Client struct {
	cfg    Config
	http   *http.Client
	logger *slog.Logger
}

func NewClient(cfg Config, httpClient *http.Client, logger *slog.Logger) *Client {
	if cfg.APIVersion == "" {
		cfg.APIVersion = DefaultAPIVersion
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTimeout
	}
	cfg.Endpoint = strings.TrimRight(cfg.Endpoint, "/")
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	return &Client{cfg: cfg, http: httpClient, logger: logger}
}

// Start submits mediaURL for analysis.
func (c *Client) Start(ctx context.Context, mediaURL string) (JobHandle, error) {
	payload := map[string]any{
		"analysisInput": map[string]any{
			"sources": []map[string]string{{"uri": mediaURL}},
		},
	}
	body, err := json.Marshal(payload)
	if err != nil {
		return JobHandle{}, fmt.Errorf("analysis start: encode request: %w", err)
	}

	endpoint := fmt.Sprintf("%s/contentunderstanding/analyzers/%s:analyze?api-version=%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.AnalyzerID), url.QueryEscape(c.cfg.APIVersion))
	raw, err := c.do(ctx, "start", http.MethodPost, endpoint, body)
	if err != nil {
		return JobHandle{}, err
	}

	var ws wireStatus
	if err := json.Unmarshal(raw, &ws); err != nil {
		return JobHandle{}, fmt.Errorf("%w: decode response: %v", ErrJobStart, err)
	}
	if strings.TrimSpace(ws.ID) == "" {
		return JobHandle{}, ErrJobStart
	}

	c.logger.Info("analysis job started", "job_id", ws.ID, "status", ws.Status)
	return JobHandle{ID: ws.ID}, nil
}

// Poll fetches the current status of job.
func (c *Client) Poll(ctx context.Context, job JobHandle) (JobStatus, error) {
	endpoint := fmt.Sprintf("%s/contentunderstanding/analyzers/%s/results/%s?api-version=%s",
		c.cfg.Endpoint, url.PathEscape(c.cfg.AnalyzerID), url.PathEscape(job.ID), url.QueryEscape(c.cfg.APIVersion))
	raw, err := c.do(ctx, "poll", http.MethodGet, endpoint, nil)
	if err != nil {
		return JobStatus{}, err
	}
	return DecodeStatus(raw)
}

// DecodeStatus turns a raw status body into the tagged JobStatus. Statuses
// other than succeeded and failed are reported as running.
func DecodeStatus(raw []byte) (JobStatus, error) {
	var ws wireStatus
	if err := json.Unmarshal(raw, &ws); err != nil {
		return JobStatus{}, fmt.Errorf("analysis poll: decode response: %w", err)
	}

	status := JobStatus{State: StateRunning, Raw: json.RawMessage(raw)}
	switch strings.ToLower(ws.Status) {
	case "succeeded":
		status.State = StateSucceeded
		status.Result = ws.Result
		if status.Result == nil {
			status.Result = &Result{}
		}
	case "failed":
		status.State = StateFailed
		status.Reason = "analysis service reported failure"
		if ws.Error != nil && ws.Error.Message != "" {
			status.Reason = ws.Error.Message
		}
	}
	return status, nil
}

func (c *Client) do(ctx context.Context, op, method, endpoint string, body []byte) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.cfg.Timeout)
	defer cancel()

	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: new request: %w", op, err)
	}
	req.Header.Set(apiKeyHeader, c.cfg.APIKey)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, fmt.Errorf("analysis %s: request failed: %w", op, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return nil, &RemoteServiceError{Op: op, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(msg))}
	}

	data, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("analysis %s: read body: %w", op, err)
	}
	if len(data) > maxResponseBytes {
		return nil, fmt.Errorf("analysis %s: body too large (>%d bytes)", op, maxResponseBytes)
	}
	return data, nil
}
