package erp

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	logx "skladbot/pkg/logx"
)

const defaultBaseURL = "https://api.moysklad.ru/api/remap/1.2"

type Config struct {
	Token        string
	BaseURL      string
	RequestLimit int           // page size, MoySklad caps at 1000
	RequestDelay time.Duration // polite pause between pages
	Timeout      time.Duration // per-request
	RetryMax     int
	RetryDelay   time.Duration // grows linearly per attempt
}

// Client talks to the MoySklad remap API. All methods honor ctx and return
// *RequestError for transport/HTTP failures.
type Client struct {
	cfg  Config
	log  logx.Logger
	http *http.Client
}

func New(cfg Config, log logx.Logger) (*Client, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, fmt.Errorf("moysklad token is empty")
	}
	if cfg.BaseURL == "" {
		cfg.BaseURL = defaultBaseURL
	}
	if cfg.RequestLimit <= 0 || cfg.RequestLimit > 1000 {
		cfg.RequestLimit = 500
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.RetryMax <= 0 {
		cfg.RetryMax = 3
	}
	if cfg.RetryDelay <= 0 {
		cfg.RetryDelay = 5 * time.Second
	}
	if log.IsZero() {
		log = logx.Nop()
	}
	return &Client{
		cfg:  cfg,
		log:  log,
		http: &http.Client{Timeout: cfg.Timeout},
	}, nil
}

// CheckConnection probes the API with the cheapest possible request.
func (c *Client) CheckConnection(ctx context.Context) bool {
	var out counterpartyListResponse
	err := c.get(ctx, "entity/counterparty", url.Values{"limit": {"1"}}, &out)
	if err != nil {
		c.log.Warn("api connection check failed", logx.Err(err))
		return false
	}
	return true
}

func (c *Client) get(ctx context.Context, endpoint string, params url.Values, out any) error {
	return c.do(ctx, http.MethodGet, endpoint, params, nil, out)
}

func (c *Client) do(ctx context.Context, method, endpoint string, params url.Values, body io.Reader, out any) error {
	u := strings.TrimRight(c.cfg.BaseURL, "/") + "/" + strings.TrimLeft(endpoint, "/")
	if len(params) > 0 {
		u += "?" + params.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, u, body)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Err: err}
	}
	req.Header.Set("Authorization", "Bearer "+c.cfg.Token)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return &RequestError{Endpoint: endpoint, Err: err}
	}
	defer resp.Body.Close()

	if resp.StatusCode/100 != 2 {
		// Read a little of the body for the log, then drop it.
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		c.log.Debug("api error response",
			logx.String("endpoint", endpoint),
			logx.Int("status", resp.StatusCode),
			logx.String("body", string(b)))
		return &RequestError{Endpoint: endpoint, Status: resp.StatusCode}
	}

	if out == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return &RequestError{Endpoint: endpoint, Err: fmt.Errorf("decode: %w", err)}
	}
	return nil
}

// getRetry wraps get with the client's retry policy. The delay grows
// linearly per attempt, matching the API's advice for 429/5xx.
func (c *Client) getRetry(ctx context.Context, endpoint string, params url.Values, out any) error {
	var lastErr error
	for attempt := 1; attempt <= c.cfg.RetryMax; attempt++ {
		lastErr = c.get(ctx, endpoint, params, out)
		if lastErr == nil {
			return nil
		}
		if ctx.Err() != nil {
			return lastErr
		}
		if attempt < c.cfg.RetryMax {
			c.log.Warn("api request failed, retrying",
				logx.String("endpoint", endpoint),
				logx.Int("attempt", attempt),
				logx.Err(lastErr))
			select {
			case <-ctx.Done():
				return lastErr
			case <-time.After(c.cfg.RetryDelay * time.Duration(attempt)):
			}
		}
	}
	return lastErr
}

// pagePause sleeps the configured inter-page delay, honoring ctx.
func (c *Client) pagePause(ctx context.Context) error {
	if c.cfg.RequestDelay <= 0 {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(c.cfg.RequestDelay):
		return nil
	}
}

func idFromHref(href string) string {
	if href == "" {
		return ""
	}
	if i := strings.LastIndexByte(href, '/'); i >= 0 {
		return href[i+1:]
	}
	return href
}
