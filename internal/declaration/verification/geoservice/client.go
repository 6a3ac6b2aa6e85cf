// Package geoservice is an HTTP JSON client for an external geo verification
// service. Failures are normalized onto the verification error taxonomy.
package geoservice

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"strings"
	"time"

	"verdant/internal/declaration/models"
	"verdant/internal/declaration/verification"
	"verdant/pkg/platform/circuit"
	"verdant/pkg/platform/sentinel"
)

const (
	geometryPath  = "/v1/geometry"
	satellitePath = "/v1/satellite"

	maxResponseBytes = 1 << 20
)

type checkRequest struct {
	GeoFile string `json:"geo_file"`
}

type checkResponse struct {
	Result string `json:"result"`
}

// Client calls the verification service. Safe for concurrent use.
type Client struct {
	baseURL    string
	httpClient *http.Client
	breaker    *circuit.Breaker
	logger     *slog.Logger
}

// Option configures a Client.
type Option func(*Client)

func WithHTTPClient(c *http.Client) Option {
	return func(cl *Client) {
		if c != nil {
			cl.httpClient = c
		}
	}
}

// WithBreaker guards calls with a circuit breaker.
func WithBreaker(b *circuit.Breaker) Option {
	return func(cl *Client) { cl.breaker = b }
}

func WithLogger(logger *slog.Logger) Option {
	return func(cl *Client) { cl.logger = logger }
}

// New creates a client for baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if strings.TrimSpace(baseURL) == "" {
		return nil, errors.New("verification base URL is required")
	}
	c := &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		httpClient: &http.Client{Timeout: 60 * time.Second},
		logger:     slog.Default(),
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

func (c *Client) CheckGeometry(ctx context.Context, ref models.FileRef) (models.CheckResult, error) {
	return c.check(ctx, models.StageGeometry, geometryPath, ref)
}

func (c *Client) CheckSatellite(ctx context.Context, ref models.FileRef) (models.CheckResult, error) {
	return c.check(ctx, models.StageSatellite, satellitePath, ref)
}

func (c *Client) check(ctx context.Context, stage models.Stage, path string, ref models.FileRef) (models.CheckResult, error) {
	if c.breaker != nil && !c.breaker.Allow() {
		return "", verification.NewError(stage, verification.ErrorProviderOutage, "circuit open", sentinel.ErrUnavailable)
	}

	result, err := c.post(ctx, stage, path, ref)
	// Calls abandoned by the caller are not recorded on the breaker.
	if errors.Is(ctx.Err(), context.Canceled) {
		return result, err
	}
	c.record(stage, err)
	return result, err
}

func (c *Client) record(stage models.Stage, err error) {
	if c.breaker == nil {
		return
	}
	// Bad data is the caller's problem, not the service's health.
	if err == nil || verification.CategoryOf(err) == verification.ErrorBadData {
		if change := c.breaker.RecordSuccess(); change.Closed {
			c.logger.Info("verification circuit closed", "stage", stage)
		}
		return
	}
	if change := c.breaker.RecordFailure(); change.Opened {
		c.logger.Warn("verification circuit opened", "stage", stage, "error", err)
	}
}

func (c *Client) post(ctx context.Context, stage models.Stage, path string, ref models.FileRef) (models.CheckResult, error) {
	body, err := json.Marshal(checkRequest{GeoFile: string(ref)})
	if err != nil {
		return "", verification.NewError(stage, verification.ErrorInternal, "marshaling request", err)
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return "", verification.NewError(stage, verification.ErrorInternal, "creating request", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", transportError(stage, err)
	}
	defer resp.Body.Close()

	raw, err := io.ReadAll(io.LimitReader(resp.Body, maxResponseBytes))
	if err != nil {
		return "", transportError(stage, err)
	}
	if err := statusError(stage, resp.StatusCode, raw); err != nil {
		return "", err
	}

	var out checkResponse
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", verification.NewError(stage, verification.ErrorBadData, "decoding response", err)
	}
	result := models.CheckResult(out.Result)
	if !result.IsValid() {
		return "", verification.NewError(stage, verification.ErrorBadData, fmt.Sprintf("unknown result %q", out.Result), nil)
	}
	return result, nil
}

func statusError(stage models.Stage, code int, body []byte) error {
	if code < 300 {
		return nil
	}
	msg := fmt.Sprintf("service returned %d", code)
	if s := strings.TrimSpace(string(body)); s != "" {
		msg += ": " + truncate(s, 200)
	}
	switch {
	case code == http.StatusTooManyRequests:
		return verification.NewError(stage, verification.ErrorRateLimited, msg, nil)
	case code == http.StatusRequestTimeout || code == http.StatusGatewayTimeout:
		return verification.NewError(stage, verification.ErrorTimeout, msg, nil)
	case code >= 500:
		return verification.NewError(stage, verification.ErrorProviderOutage, msg, sentinel.ErrUnavailable)
	default:
		return verification.NewError(stage, verification.ErrorBadData, msg, nil)
	}
}

func transportError(stage models.Stage, err error) error {
	var netErr net.Error
	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return verification.NewError(stage, verification.ErrorTimeout, "request timed out", err)
	case errors.As(err, &netErr) && netErr.Timeout():
		return verification.NewError(stage, verification.ErrorTimeout, "request timed out", err)
	case errors.Is(err, context.Canceled):
		return verification.NewError(stage, verification.ErrorInternal, "request cancelled", err)
	default:
		return verification.NewError(stage, verification.ErrorProviderOutage, "service unreachable", errors.Join(sentinel.ErrUnavailable, err))
	}
}

func truncate(s string, n int) string {
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
