// Package leanroom provides a Go client for the leanroom-server API.
package leanroom

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// APIError is a non-2xx response from the server.
type APIError struct {
	StatusCode int
	Message    string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("api error %d: %s", e.StatusCode, e.Message)
}

// Client provides a Go SDK for the leanroom-server API.
type Client struct {
	baseURL    string
	httpClient *http.Client

	// PollInterval and MaxPolls bound WaitForTerminal: a job still not
	// terminal after MaxPolls retries is reported as an error.
	PollInterval time.Duration
	MaxPolls     uint64
}

// NewClient creates a new API client.
func NewClient(baseURL string) *Client {
	return &Client{
		baseURL:      strings.TrimRight(baseURL, "/"),
		httpClient:   &http.Client{Timeout: 30 * time.Second},
		PollInterval: 500 * time.Millisecond,
		MaxPolls:     240,
	}
}

// Submit starts a backtest and returns its job id.
func (c *Client) Submit(ctx context.Context, req SubmitRequest) (SubmitResponse, error) {
	var resp SubmitResponse
	err := c.post(ctx, "/backtests", req, &resp)
	return resp, err
}

// Job retrieves the current snapshot of a job.
func (c *Client) Job(ctx context.Context, jobID string) (Job, error) {
	var job Job
	err := c.get(ctx, "/backtests/"+url.PathEscape(jobID), &job)
	return job, err
}

// Algorithms lists the runnable algorithm catalog.
func (c *Client) Algorithms(ctx context.Context) ([]Algorithm, error) {
	var algos []Algorithm
	err := c.get(ctx, "/algorithms", &algos)
	return algos, err
}

// MarketData retrieves stored candles for a symbol and timeframe.
func (c *Client) MarketData(ctx context.Context, symbol, timeframe string) (MarketData, error) {
	q := url.Values{}
	q.Set("symbol", symbol)
	if timeframe != "" {
		q.Set("timeframe", timeframe)
	}
	var md MarketData
	err := c.get(ctx, "/market-data?"+q.Encode(), &md)
	return md, err
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	return c.get(ctx, "/health", nil)
}

// WaitForTerminal polls a job until it completes or fails, pacing reads by
// PollInterval. The last observed snapshot is returned alongside any error.
func (c *Client) WaitForTerminal(ctx context.Context, jobID string) (Job, error) {
	var job Job
	poll := func() error {
		j, err := c.Job(ctx, jobID)
		if err != nil {
			var apiErr *APIError
			if errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound {
				return backoff.Permanent(err)
			}
			// Transient failure, keep polling.
			return err
		}
		job = j
		if !Terminal(j.Status) {
			return fmt.Errorf("job %s still %s", jobID, j.Status)
		}
		return nil
	}

	policy := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewConstantBackOff(c.PollInterval), c.MaxPolls), ctx)
	if err := backoff.Retry(poll, policy); err != nil {
		return job, err
	}
	return job, nil
}

// ---------------------------------------------------------------------------
// HTTP plumbing
// ---------------------------------------------------------------------------

func (c *Client) get(ctx context.Context, path string, out any) error {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, c.baseURL+path, nil)
	if err != nil {
		return err
	}
	return c.do(req, out)
}

func (c *Client) post(ctx context.Context, path string, body, out any) error {
	b, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("encoding request: %w", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(b))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	return c.do(req, out)
}

func (c *Client) do(req *http.Request, out any) error {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeAPIError(resp)
	}
	if out == nil {
		io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// decodeAPIError turns an error response into an APIError, using the
// server's {"error": ...} envelope when present.
func decodeAPIError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
	msg := strings.TrimSpace(string(raw))

	var envelope struct {
		Error string `json:"error"`
	}
	if json.Unmarshal(raw, &envelope) == nil && envelope.Error != "" {
		msg = envelope.Error
	}
	return &APIError{StatusCode: resp.StatusCode, Message: msg}
}
