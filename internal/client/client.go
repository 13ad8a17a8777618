// Package client talks to the listings, analytics and job-control service.
package client

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/sirupsen/logrus"

	"rentdash/server/internal/metrics"
	"rentdash/server/internal/models"
)

var (
	// ErrTransport means the service could not be reached
	ErrTransport = errors.New("upstream unreachable")
	// ErrDecode means the service answered with a body we could not read
	ErrDecode = errors.New("invalid upstream response")
)

// Endpoints, relative to the base URL
const (
	EndpointListings     = "/listings"
	EndpointOverview     = "/analytics/overview"
	EndpointHeatmap      = "/analytics/heatmap"
	EndpointTrends       = "/analytics/trends"
	EndpointSupplyDemand = "/analytics/supply-demand"
	EndpointSources      = "/analytics/sources"
	EndpointFlagged      = "/analytics/middleman-flags"
	EndpointTrigger      = "/scrape/trigger"
	EndpointStatus       = "/scrape/status"
)

const maxErrorBody = 4 << 10

// StatusError is a non-2xx reply from the service
type StatusError struct {
	Endpoint   string
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	switch e.StatusCode {
	case http.StatusNotFound:
		return fmt.Sprintf("%s: not found", e.Endpoint)
	case http.StatusBadRequest, http.StatusUnprocessableEntity:
		return fmt.Sprintf("%s: request rejected: %s", e.Endpoint, e.Body)
	case http.StatusServiceUnavailable, http.StatusBadGateway, http.StatusGatewayTimeout:
		return fmt.Sprintf("%s: service unavailable (status %d)", e.Endpoint, e.StatusCode)
	default:
		return fmt.Sprintf("%s: upstream error (status %d): %s", e.Endpoint, e.StatusCode, e.Body)
	}
}

// Client is safe for concurrent use.
type Client struct {
	baseURL string
	http    *http.Client
	logger  *logrus.Logger
	metrics *metrics.Metrics
}

func New(baseURL string, timeout time.Duration, logger *logrus.Logger, m *metrics.Metrics) *Client {
	if logger == nil {
		logger = logrus.New()
		logger.SetFormatter(&logrus.JSONFormatter{})
		logger.SetOutput(os.Stdout)
	}

	return &Client{
		baseURL: strings.TrimRight(baseURL, "/"),
		http:    &http.Client{Timeout: timeout},
		logger:  logger,
		metrics: m,
	}
}

func (c *Client) BaseURL() string {
	return c.baseURL
}

// do sends one request and decodes a 2xx JSON body into out. The metric
// endpoint label is the path template, never the full path.
func (c *Client) do(ctx context.Context, method, endpoint, path string, query url.Values, body, out interface{}) error {
	start := time.Now()
	requestID := uuid.NewString()
	fields := logrus.Fields{
		"endpoint":   endpoint,
		"request_id": requestID,
	}

	var reader io.Reader
	if body != nil {
		payload, err := json.Marshal(body)
		if err != nil {
			return fmt.Errorf("failed to encode request: %w", err)
		}
		reader = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, reader)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	if len(query) > 0 {
		req.URL.RawQuery = query.Encode()
	}
	req.Header.Set("Accept", "application/json")
	req.Header.Set("User-Agent", "rentdash/1.0")
	req.Header.Set("X-Request-ID", requestID)
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeTransport, time.Since(start))
		c.logger.WithError(err).WithFields(fields).Warn("Upstream request failed")
		return fmt.Errorf("%w: %w", ErrTransport, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeStatus, time.Since(start))
		statusErr := &StatusError{Endpoint: endpoint, StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(raw))}
		c.logger.WithFields(fields).WithField("status", resp.StatusCode).Warn("Upstream returned an error status")
		return statusErr
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		c.metrics.ObserveRequest(endpoint, metrics.OutcomeDecode, time.Since(start))
		c.logger.WithError(err).WithFields(fields).Warn("Failed to decode upstream response")
		return fmt.Errorf("%w: %w", ErrDecode, err)
	}

	c.metrics.ObserveRequest(endpoint, metrics.OutcomeOK, time.Since(start))
	c.logger.WithFields(fields).WithField("duration_ms", time.Since(start).Milliseconds()).Debug("Upstream request completed")
	return nil
}

// get fetches endpoint and unwraps the response field picked by unwrap
func get[W, T any](ctx context.Context, c *Client, endpoint string, query url.Values, unwrap func(W) T) Result[T] {
	var wrapper W
	if err := c.do(ctx, http.MethodGet, endpoint, endpoint, query, nil, &wrapper); err != nil {
		return Err[T](err)
	}
	return Ok(unwrap(wrapper))
}

func identity[T any](v T) T { return v }

func (c *Client) Listings(ctx context.Context, query url.Values) Result[models.ListingPage] {
	return get(ctx, c, EndpointListings, query, identity[models.ListingPage])
}

func (c *Client) Overview(ctx context.Context) Result[models.Overview] {
	return get(ctx, c, EndpointOverview, nil, identity[models.Overview])
}

func (c *Client) Heatmap(ctx context.Context) Result[[]models.SuburbStat] {
	return get(ctx, c, EndpointHeatmap, nil, func(r models.HeatmapResponse) []models.SuburbStat { return r.Suburbs })
}

func (c *Client) Trends(ctx context.Context) Result[[]models.TrendPoint] {
	return get(ctx, c, EndpointTrends, nil, func(r models.TrendsResponse) []models.TrendPoint { return r.Trends })
}

func (c *Client) SupplyDemand(ctx context.Context) Result[[]models.SuburbStat] {
	return get(ctx, c, EndpointSupplyDemand, nil, func(r models.SupplyDemandResponse) []models.SuburbStat { return r.Data })
}

func (c *Client) Sources(ctx context.Context) Result[[]models.SourceCount] {
	return get(ctx, c, EndpointSources, nil, func(r models.SourcesResponse) []models.SourceCount { return r.Sources })
}

func (c *Client) Flagged(ctx context.Context) Result[models.FlaggedResponse] {
	return get(ctx, c, EndpointFlagged, nil, identity[models.FlaggedResponse])
}

// TriggerScrape starts a scrape job. A reply without a job id is an error.
func (c *Client) TriggerScrape(ctx context.Context, req models.ScrapeRequest) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	if err := c.do(ctx, http.MethodPost, EndpointTrigger, EndpointTrigger, nil, req, &job); err != nil {
		return nil, err
	}
	if job.JobID == "" {
		return nil, fmt.Errorf("%w: trigger reply has no job id", ErrDecode)
	}
	return &job, nil
}

func (c *Client) ScrapeStatus(ctx context.Context, jobID string) (*models.ScrapeJob, error) {
	var job models.ScrapeJob
	path := EndpointStatus + "/" + url.PathEscape(jobID)
	if err := c.do(ctx, http.MethodGet, EndpointStatus, path, nil, nil, &job); err != nil {
		return nil, err
	}
	return &job, nil
}
