// Package cloudpayments is a minimal client for the CloudPayments payments API.
package cloudpayments

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"go.uber.org/zap"
	"golang.org/x/time/rate"

	"github.com/cloudpayments-tap/extractor/pkg/metrics"
)

const (
	DefaultBaseURL   = "https://api.cloudpayments.ru"
	PaymentsListPath = "/payments/list"
	// DefaultTimeout bounds a single attempt, not the retry loop around it.
	DefaultTimeout = 300 * time.Second
)

type Config struct {
	BaseURL   string
	PublicID  string
	APISecret string
	// Timeout per attempt. DefaultTimeout when zero.
	Timeout            time.Duration
	ExtraRetryStatuses []int
	// RequestsPerSecond limits outgoing attempts. Zero disables limiting.
	RequestsPerSecond float64
	HTTPClient        *http.Client
}

// Response is a validated API response.
type Response struct {
	StatusCode int
	Body       []byte
}

// Client sends single attempts to the API. Retrying is left to the caller.
type Client struct {
	baseURL    string
	authHeader string
	httpClient *http.Client
	timeout    time.Duration
	extraRetry []int
	limiter    *rate.Limiter
	log        *zap.SugaredLogger
	metrics    *metrics.Metrics
}

// NewClient builds a client. The Basic authorization header is computed here once.
func NewClient(cfg Config, log *zap.SugaredLogger, m *metrics.Metrics) (*Client, error) {
	baseURL := cfg.BaseURL
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	u, err := url.Parse(baseURL)
	if err != nil {
		return nil, fmt.Errorf("parse base URL: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("base URL %q must be http or https", baseURL)
	}

	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	httpClient := cfg.HTTPClient
	if httpClient == nil {
		httpClient = &http.Client{}
	}
	if log == nil {
		log = zap.NewNop().Sugar()
	}

	var limiter *rate.Limiter
	if cfg.RequestsPerSecond > 0 {
		limiter = rate.NewLimiter(rate.Limit(cfg.RequestsPerSecond), 1)
	}

	credentials := base64.StdEncoding.EncodeToString([]byte(cfg.PublicID + ":" + cfg.APISecret))
	return &Client{
		baseURL:    strings.TrimRight(baseURL, "/"),
		authHeader: "Basic " + credentials,
		httpClient: httpClient,
		timeout:    timeout,
		extraRetry: cfg.ExtraRetryStatuses,
		limiter:    limiter,
		log:        log,
		metrics:    m,
	}, nil
}

// ListPayments sends one attempt of POST /payments/list.
func (c *Client) ListPayments(ctx context.Context, req ListRequest) (*Response, error) {
	return c.Post(ctx, PaymentsListPath, req)
}

// Post sends payload as JSON to path and validates the response. A response that fails
// validation is returned together with the error.
func (c *Client) Post(ctx context.Context, path string, payload any) (*Response, error) {
	body, err := json.Marshal(payload)
	if err != nil {
		return nil, fmt.Errorf("marshal request: %w", err)
	}

	if c.limiter != nil {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}
	}

	attemptCtx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(attemptCtx, http.MethodPost, c.baseURL+path, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", c.authHeader)

	c.metrics.IncRequestsInFlight()
	defer c.metrics.DecRequestsInFlight()
	start := time.Now()

	statusCode, respBody, err := c.do(req)
	if err != nil {
		err = c.classify(ctx, attemptCtx, err)
		c.metrics.RecordRequest(path, 0, err, time.Since(start).Seconds())
		return nil, err
	}
	c.metrics.RecordRequest(path, statusCode, nil, time.Since(start).Seconds())

	resp := &Response{StatusCode: statusCode, Body: respBody}
	if err := Validate(statusCode, respBody, c.extraRetry); err != nil {
		return resp, err
	}
	return resp, nil
}

func (c *Client) do(req *http.Request) (int, []byte, error) {
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return 0, nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return 0, nil, fmt.Errorf("read body: %w", err)
	}
	return resp.StatusCode, body, nil
}

// classify maps a failed exchange to the error taxonomy. Cancellation of the caller's context
// is returned as is so that it is never retried.
func (c *Client) classify(ctx, attemptCtx context.Context, err error) error {
	if ctxErr := ctx.Err(); ctxErr != nil {
		return fmt.Errorf("request cancelled: %w", ctxErr)
	}
	if errors.Is(attemptCtx.Err(), context.DeadlineExceeded) {
		c.log.Warnw("attempt timed out", "timeout", c.timeout)
		return &AttemptTimeoutError{Timeout: c.timeout, Err: err}
	}
	return &TransportError{Err: err}
}
