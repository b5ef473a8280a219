package client

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
	"github.com/hashicorp/go-retryablehttp"

	apihttp "github.com/GriffinCanCode/ptyd/internal/api/http"
	"github.com/GriffinCanCode/ptyd/internal/infrastructure/resilience"
	"github.com/GriffinCanCode/ptyd/internal/terminal"
)

// Config configures a Client.
type Config struct {
	// BaseURL is the daemon's HTTP root, e.g. http://127.0.0.1:8000.
	BaseURL string
	Timeout time.Duration
	// FailureThreshold is the number of consecutive failed calls that opens
	// the breaker.
	FailureThreshold uint32
	// Cooldown is how long the breaker stays open.
	Cooldown time.Duration
}

// DefaultConfig returns settings for a daemon on the default local port.
func DefaultConfig() Config {
	return Config{
		BaseURL:          "http://127.0.0.1:8000",
		Timeout:          30 * time.Second,
		FailureThreshold: 3,
		Cooldown:         5 * time.Second,
	}
}

// Client talks to a ptyd daemon.
type Client struct {
	base    *url.URL
	rest    *resty.Client
	breaker *resilience.Breaker
}

// New creates a client. Zero fields in cfg take their DefaultConfig values.
func New(cfg Config) (*Client, error) {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	if cfg.FailureThreshold == 0 {
		cfg.FailureThreshold = def.FailureThreshold
	}
	if cfg.Cooldown <= 0 {
		cfg.Cooldown = def.Cooldown
	}

	base, err := url.Parse(strings.TrimRight(cfg.BaseURL, "/"))
	if err != nil {
		return nil, fmt.Errorf("invalid base url: %w", err)
	}
	if base.Scheme != "http" && base.Scheme != "https" {
		return nil, fmt.Errorf("invalid base url %q: scheme must be http or https", cfg.BaseURL)
	}

	rest := resty.New().
		SetBaseURL(base.String()).
		SetTimeout(cfg.Timeout).
		SetHeader("User-Agent", "ptyctl/1.0").
		SetHeader("Accept", "application/json").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)

	threshold := cfg.FailureThreshold
	breaker := resilience.New("ptyd", resilience.Settings{
		Timeout: cfg.Cooldown,
		ReadyToTrip: func(counts resilience.Counts) bool {
			return counts.ConsecutiveFailures >= threshold
		},
		IsFailure: countsAsFailure,
	})

	return &Client{base: base, rest: rest, breaker: breaker}, nil
}

// BaseURL returns the daemon root the client was created with.
func (c *Client) BaseURL() string {
	return c.base.String()
}

// BreakerState exposes the circuit breaker state.
func (c *Client) BreakerState() resilience.State {
	return c.breaker.State()
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) error {
	err := c.breaker.Do(func() error {
		req := c.rest.R().
			SetContext(ctx).
			SetError(&apihttp.ErrorResponse{})
		if body != nil {
			req.SetBody(body)
		}
		if out != nil {
			req.SetResult(out)
		}

		resp, err := req.Execute(method, path)
		if err != nil {
			return fmt.Errorf("%s %s: %w", method, path, err)
		}
		if resp.IsError() {
			apiErr := &APIError{Status: resp.StatusCode()}
			if e, ok := resp.Error().(*apihttp.ErrorResponse); ok && e != nil {
				apiErr.Code = e.Code
				apiErr.Message = e.Error
			}
			return apiErr
		}
		return nil
	})
	if errors.Is(err, resilience.ErrCircuitOpen) || errors.Is(err, resilience.ErrTooManyRequests) {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	return err
}

func segmentPath(segmentID string, suffix ...string) string {
	p := "/terminals/" + url.PathEscape(segmentID)
	for _, s := range suffix {
		p += "/" + s
	}
	return p
}

// Health returns the daemon's health summary.
func (c *Client) Health(ctx context.Context) (*apihttp.HealthResponse, error) {
	var out apihttp.HealthResponse
	if err := c.do(ctx, http.MethodGet, "/health", nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// WaitHealthy polls the health endpoint with backoff until the daemon
// answers or attempts run out. It bypasses the breaker, so it can be used
// while the daemon is still starting.
func (c *Client) WaitHealthy(ctx context.Context, attempts int) error {
	rc := retryablehttp.NewClient()
	rc.Logger = nil
	rc.RetryMax = attempts
	rc.RetryWaitMin = 100 * time.Millisecond
	rc.RetryWaitMax = 2 * time.Second

	req, err := retryablehttp.NewRequestWithContext(ctx, http.MethodGet, c.base.String()+"/health", nil)
	if err != nil {
		return err
	}
	resp, err := rc.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %v", ErrUnavailable, err)
	}
	resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		return &APIError{Status: resp.StatusCode}
	}
	return nil
}

// Create opens a session under a server-generated segment id.
func (c *Client) Create(ctx context.Context) (string, error) {
	var out apihttp.CreateResponse
	if err := c.do(ctx, http.MethodPost, "/terminals", nil, &out); err != nil {
		return "", err
	}
	return out.SegmentID, nil
}

// Open opens a session for segmentID, or returns the existing one. created
// reports whether this call opened it.
func (c *Client) Open(ctx context.Context, segmentID string) (created bool, err error) {
	var out apihttp.CreateResponse
	if err := c.do(ctx, http.MethodPut, segmentPath(segmentID), nil, &out); err != nil {
		return false, err
	}
	return out.Created, nil
}

// Get returns one session's info.
func (c *Client) Get(ctx context.Context, segmentID string) (*terminal.SessionInfo, error) {
	var out terminal.SessionInfo
	if err := c.do(ctx, http.MethodGet, segmentPath(segmentID), nil, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// List returns every session sorted by segment id.
func (c *Client) List(ctx context.Context) ([]terminal.SessionInfo, error) {
	var out apihttp.ListResponse
	if err := c.do(ctx, http.MethodGet, "/terminals", nil, &out); err != nil {
		return nil, err
	}
	return out.Sessions, nil
}

// Spawn starts the session's shell.
func (c *Client) Spawn(ctx context.Context, segmentID string, opts terminal.SpawnOptions) (*terminal.SessionInfo, error) {
	var out terminal.SessionInfo
	if err := c.do(ctx, http.MethodPost, segmentPath(segmentID, "spawn"), opts, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Write sends input to the shell and returns the number of bytes accepted.
func (c *Client) Write(ctx context.Context, segmentID, data string) (int, error) {
	var out apihttp.WriteResponse
	if err := c.do(ctx, http.MethodPost, segmentPath(segmentID, "write"), apihttp.WriteRequest{Data: data}, &out); err != nil {
		return 0, err
	}
	return out.Bytes, nil
}

// Resize changes the terminal dimensions.
func (c *Client) Resize(ctx context.Context, segmentID string, rows, cols uint16) (*terminal.SessionInfo, error) {
	var out terminal.SessionInfo
	body := apihttp.ResizeRequest{Rows: rows, Cols: cols}
	if err := c.do(ctx, http.MethodPost, segmentPath(segmentID, "resize"), body, &out); err != nil {
		return nil, err
	}
	return &out, nil
}

// Close ends the session. Closing an unknown segment is not an error.
func (c *Client) Close(ctx context.Context, segmentID string) error {
	return c.do(ctx, http.MethodDelete, segmentPath(segmentID), nil, nil)
}

// Buffer returns the session's replayable output.
func (c *Client) Buffer(ctx context.Context, segmentID string) (string, error) {
	var out apihttp.BufferResponse
	if err := c.do(ctx, http.MethodGet, segmentPath(segmentID, "buffer"), nil, &out); err != nil {
		return "", err
	}
	return out.Data, nil
}
