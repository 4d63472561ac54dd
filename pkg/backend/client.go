// Package backend is the typed HTTP client for the screener backend.
package backend

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"time"

	"screener-web/internal/models"
	"screener-web/pkg/errors"

	fylogger "github.com/FyersDev/trading-logger-go"
	"github.com/google/uuid"
)

// RequestIDHeader is forwarded to the backend for log correlation.
const RequestIDHeader = "X-Request-ID"

// maxErrorBody bounds how much of a failed response body is kept for logs.
const maxErrorBody = 2048

// Doer is the subset of *http.Client used by Client. Tests inject fakes here.
type Doer interface {
	Do(req *http.Request) (*http.Response, error)
}

// Client talks to the screener backend REST API.
type Client struct {
	baseURL string
	http    Doer
}

// NewClient builds a client for baseURL. A nil doer gets an *http.Client with timeout.
func NewClient(baseURL string, doer Doer, timeout time.Duration) *Client {
	if doer == nil {
		doer = &http.Client{Timeout: timeout}
	}
	return &Client{baseURL: baseURL, http: doer}
}

// BaseURL returns the backend root this client targets.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// Status fetches the current screener job status.
// GET /api/screener/status
func (c *Client) Status(ctx context.Context) (*models.JobStatus, error) {
	var status models.JobStatus
	if err := c.do(ctx, http.MethodGet, "/api/screener/status", nil, &status); err != nil {
		return nil, err
	}
	return &status, nil
}

// Stop asks the backend to stop the running screener job.
// POST /api/screener/stop
func (c *Client) Stop(ctx context.Context) error {
	return c.do(ctx, http.MethodPost, "/api/screener/stop", nil, nil)
}

// Watchlists returns the watchlist names in backend order.
// GET /api/watchlists
func (c *Client) Watchlists(ctx context.Context) ([]string, error) {
	var names []string
	if err := c.do(ctx, http.MethodGet, "/api/watchlists", nil, &names); err != nil {
		return nil, err
	}
	return names, nil
}

// RunScreener submits a screener run.
// POST /api/screener/run
func (c *Client) RunScreener(ctx context.Context, req models.ScreenerRequest) (*models.ScreenerResponse, error) {
	var resp models.ScreenerResponse
	if err := c.do(ctx, http.MethodPost, "/api/screener/run", req, &resp); err != nil {
		return nil, err
	}
	if err := checkScreener(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// ScreenerRun fetches the results of a previous screener run.
// GET /api/screener/{id}
func (c *Client) ScreenerRun(ctx context.Context, runID int64) (*models.ScreenerResponse, error) {
	var resp models.ScreenerResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/screener/%d", runID), nil, &resp); err != nil {
		return nil, err
	}
	if err := checkScreener(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// RunBacktest submits a backtest run.
// POST /api/backtest/run
func (c *Client) RunBacktest(ctx context.Context, req models.BacktestRequest) (*models.BacktestResponse, error) {
	var resp models.BacktestResponse
	if err := c.do(ctx, http.MethodPost, "/api/backtest/run", req, &resp); err != nil {
		return nil, err
	}
	if err := checkBacktest(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// BacktestRun fetches the results of a previous backtest run.
// GET /api/backtest/{id}
func (c *Client) BacktestRun(ctx context.Context, runID int64) (*models.BacktestResponse, error) {
	var resp models.BacktestResponse
	if err := c.do(ctx, http.MethodGet, fmt.Sprintf("/api/backtest/%d", runID), nil, &resp); err != nil {
		return nil, err
	}
	if err := checkBacktest(&resp); err != nil {
		return nil, err
	}
	return &resp, nil
}

// Strategies returns the backtest strategy catalog.
// GET /api/backtest/strategies
func (c *Client) Strategies(ctx context.Context) ([]models.Strategy, error) {
	var strategies []models.Strategy
	if err := c.do(ctx, http.MethodGet, "/api/backtest/strategies", nil, &strategies); err != nil {
		return nil, err
	}
	return strategies, nil
}

// Ping checks that the backend answers the status endpoint.
func (c *Client) Ping(ctx context.Context) error {
	_, err := c.Status(ctx)
	return err
}

func (c *Client) do(ctx context.Context, method, path string, body, out interface{}) error {
	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return errors.WrapError(err, errors.ErrBadRequest.Code, "Failed to encode request", errors.ErrBadRequest.Status)
		}
		reader = bytes.NewReader(payload)
	}

	endpoint, err := url.JoinPath(c.baseURL, path)
	if err != nil {
		return errors.WrapError(err, errors.ErrInternalServer.Code, "Invalid backend URL", errors.ErrInternalServer.Status)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, reader)
	if err != nil {
		return errors.WrapError(err, errors.ErrInternalServer.Code, "Failed to create request", errors.ErrInternalServer.Status)
	}
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	req.Header.Set(RequestIDHeader, RequestIDFrom(ctx))

	resp, err := c.http.Do(req)
	if err != nil {
		fylogger.ErrorLog(ctx, "backend request failed", err, map[string]interface{}{
			"method": method,
			"path":   path,
		})
		return errors.Unavailable(err, "Failed to reach screener backend")
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		snippet, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		statusErr := fmt.Errorf("invalid status code: %d", resp.StatusCode)
		fylogger.ErrorLog(ctx, "backend returned error status", statusErr, map[string]interface{}{
			"method": method,
			"path":   path,
			"body":   string(snippet),
		})
		if resp.StatusCode == http.StatusNotFound {
			return errors.WrapError(statusErr, errors.ErrNotFound.Code, errors.ErrNotFound.Message, errors.ErrNotFound.Status)
		}
		return errors.Unavailable(statusErr, "Screener backend returned an error")
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return errors.Unavailable(err, "Failed to decode screener backend response")
	}
	return nil
}

// checkScreener turns an application-reported failure into ErrBackendRejected.
func checkScreener(resp *models.ScreenerResponse) error {
	if resp.Status == "error" || (resp.Results == nil && resp.RunID == nil && resp.Message != nil) {
		return errors.Rejected(models.MessageOf(resp.Message))
	}
	return nil
}

func checkBacktest(resp *models.BacktestResponse) error {
	if resp.Status == "error" || (resp.Results == nil && resp.RunID == nil && resp.Message != nil) {
		return errors.Rejected(models.MessageOf(resp.Message))
	}
	return nil
}

type requestIDKey struct{}

// WithRequestID stores a request id for outgoing backend calls.
func WithRequestID(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, requestIDKey{}, id)
}

// RequestIDFrom returns the request id carried by ctx, or a fresh one.
func RequestIDFrom(ctx context.Context) string {
	if id, ok := ctx.Value(requestIDKey{}).(string); ok && id != "" {
		return id
	}
	return uuid.New().String()
}
