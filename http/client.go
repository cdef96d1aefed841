package http

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strconv"
	"time"
)

// DefaultTimeout is the default HTTP request timeout.
const DefaultTimeout = 30 * time.Second

// DefaultMaxRetries is the default number of attempts for retryable requests.
const DefaultMaxRetries = 3

// DefaultRetryWait is the initial wait between retries.
const DefaultRetryWait = 1 * time.Second

// Client posts JSON to an external endpoint with retries on 429 and 5xx.
// It backs the webhook-style notifiers; the Jira client keeps its own
// rate-limit aware transport.
type Client struct {
	client      *http.Client
	baseURL     string
	serviceName string
	maxRetries  int
	retryWait   time.Duration
	headers     map[string]string
}

// ClientConfig holds configuration for Client.
type ClientConfig struct {
	Client      *http.Client
	BaseURL     string
	ServiceName string
	MaxRetries  int
	RetryWait   time.Duration
	Headers     map[string]string
}

// NewClient creates a new Client with the given configuration.
func NewClient(cfg ClientConfig) *Client {
	c := &Client{
		client:      cfg.Client,
		baseURL:     cfg.BaseURL,
		serviceName: cfg.ServiceName,
		maxRetries:  cfg.MaxRetries,
		retryWait:   cfg.RetryWait,
		headers:     cfg.Headers,
	}
	if c.client == nil {
		c.client = &http.Client{Timeout: DefaultTimeout}
	}
	if c.maxRetries <= 0 {
		c.maxRetries = DefaultMaxRetries
	}
	if c.retryWait <= 0 {
		c.retryWait = DefaultRetryWait
	}
	return c
}

// Post sends body as JSON to baseURL+path and decodes the reply into result
// when result is non-nil.
func (c *Client) Post(ctx context.Context, path string, body, result any) error {
	data, err := json.Marshal(body)
	if err != nil {
		return fmt.Errorf("marshal request body: %w", err)
	}

	url := c.baseURL + path
	for attempt := range c.maxRetries {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(data))
		if err != nil {
			return fmt.Errorf("create request: %w", err)
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		for k, v := range c.headers {
			req.Header.Set(k, v)
		}

		resp, err := c.client.Do(req)
		if err != nil {
			if attempt < c.maxRetries-1 {
				if waitErr := sleep(ctx, c.retryWait*time.Duration(1<<attempt)); waitErr != nil {
					return waitErr
				}
				continue
			}
			return fmt.Errorf("%s request failed: %w", c.serviceName, err)
		}

		if retryableStatus(resp.StatusCode) && attempt < c.maxRetries-1 {
			wait := c.backoff(resp, attempt)
			_ = resp.Body.Close()
			if waitErr := sleep(ctx, wait); waitErr != nil {
				return waitErr
			}
			continue
		}

		return c.handleResponse(resp, path, result)
	}

	return fmt.Errorf("%s request failed after %d attempts", c.serviceName, c.maxRetries)
}

func (c *Client) handleResponse(resp *http.Response, path string, result any) error {
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode >= 400 {
		return c.parseError(resp, path)
	}
	if result == nil {
		_, _ = io.Copy(io.Discard, resp.Body)
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", c.serviceName, err)
	}
	return nil
}

func (c *Client) parseError(resp *http.Response, path string) error {
	body, _ := io.ReadAll(resp.Body)

	apiErr := &APIError{
		Service:    c.serviceName,
		StatusCode: resp.StatusCode,
		Endpoint:   path,
		RequestID:  resp.Header.Get("X-Request-Id"),
	}

	var errResp struct {
		Message string `json:"message"`
		Error   string `json:"error"`
	}
	if json.Unmarshal(body, &errResp) == nil {
		if errResp.Message != "" {
			apiErr.Message = errResp.Message
		} else {
			apiErr.Message = errResp.Error
		}
	}
	if apiErr.Message == "" {
		apiErr.Message = http.StatusText(resp.StatusCode)
	}
	return apiErr
}

func (c *Client) backoff(resp *http.Response, attempt int) time.Duration {
	if d := RetryAfter(resp.Header.Get("Retry-After")); d > 0 {
		return d
	}
	return c.retryWait * time.Duration(1<<attempt)
}

// RetryAfter parses a Retry-After header given in seconds.
func RetryAfter(v string) time.Duration {
	if v == "" {
		return 0
	}
	seconds, err := strconv.Atoi(v)
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}

func retryableStatus(code int) bool {
	return code == http.StatusTooManyRequests || code >= 500
}

func sleep(ctx context.Context, d time.Duration) error {
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
