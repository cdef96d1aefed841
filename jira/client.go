package jira

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"math/rand/v2"
	"net/http"
	"strings"
	"sync"
	"time"

	"golang.org/x/oauth2"

	devhttp "github.com/randalmurphal/storyflow/http"
)

// Client talks to the Jira REST API. It covers the small surface story
// creation needs: deployment detection, project issue types, issue creation.
type Client struct {
	cfg        *Config
	httpClient *http.Client
	baseURL    string
	tokens     oauth2.TokenSource

	mu             sync.RWMutex
	apiVersion     APIVersion
	deploymentType DeploymentType
}

// ClientOption configures the client.
type ClientOption func(*Client)

// WithHTTPClient sets a custom HTTP client.
func WithHTTPClient(httpClient *http.Client) ClientOption {
	return func(c *Client) {
		c.httpClient = httpClient
	}
}

// WithTokenSource overrides the OAuth2 token source used for AuthOAuth2.
func WithTokenSource(ts oauth2.TokenSource) ClientOption {
	return func(c *Client) {
		c.tokens = ts
	}
}

// NewClient creates a new Jira client.
func NewClient(cfg *Config, opts ...ClientOption) (*Client, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	timeout := cfg.HTTP.Timeout
	if timeout == 0 {
		timeout = devhttp.DefaultTimeout
	}

	c := &Client{
		cfg:     cfg.Clone(),
		baseURL: strings.TrimSuffix(cfg.URL, "/"),
		httpClient: &http.Client{
			Timeout: timeout,
			Transport: &http.Transport{
				MaxIdleConns:    cfg.HTTP.MaxIdleConns,
				IdleConnTimeout: cfg.HTTP.IdleConnTimeout,
			},
		},
		apiVersion: cfg.GetAPIVersion(),
	}

	for _, opt := range opts {
		opt(c)
	}

	if cfg.Auth.Type == AuthOAuth2 && c.tokens == nil {
		oc := &oauth2.Config{
			ClientID:     cfg.Auth.ClientID,
			ClientSecret: cfg.Auth.ClientSecret,
			Endpoint:     oauth2.Endpoint{TokenURL: cfg.tokenURL()},
		}
		ctx := context.WithValue(context.Background(), oauth2.HTTPClient, c.httpClient)
		c.tokens = oc.TokenSource(ctx, &oauth2.Token{
			AccessToken:  cfg.Auth.AccessToken,
			RefreshToken: cfg.Auth.RefreshToken,
		})
	}

	return c, nil
}

// BaseURL returns the instance URL without a trailing slash.
func (c *Client) BaseURL() string {
	return c.baseURL
}

// BrowseURL returns the human-facing link for an issue key.
func (c *Client) BrowseURL(key string) string {
	return c.baseURL + "/browse/" + key
}

// DetectDeployment calls serverInfo and, when the API version is "auto",
// switches to v2 for Server and Data Center instances.
func (c *Client) DetectDeployment(ctx context.Context) (DeploymentType, error) {
	info, err := c.GetServerInfo(ctx)
	if err != nil {
		return "", err
	}

	c.mu.Lock()
	defer c.mu.Unlock()

	c.deploymentType = DeploymentType(info.DeploymentType)
	if c.cfg.APIVersion == "" || c.cfg.APIVersion == APIVersionAuto {
		if c.deploymentType == DeploymentCloud {
			c.apiVersion = APIVersionV3
		} else {
			c.apiVersion = APIVersionV2
		}
	}

	return c.deploymentType, nil
}

// GetServerInfo fetches server information, trying v3 then v2.
func (c *Client) GetServerInfo(ctx context.Context) (*ServerInfo, error) {
	var lastErr error
	for _, version := range []string{"3", "2"} {
		info, err := c.tryGetServerInfo(ctx, version)
		if err == nil {
			return info, nil
		}
		lastErr = err
	}
	return nil, fmt.Errorf("get server info from %s: %w", c.baseURL, lastErr)
}

func (c *Client) tryGetServerInfo(ctx context.Context, version string) (*ServerInfo, error) {
	path := "/rest/api/" + version + "/serverInfo"
	req, err := c.newRequest(ctx, http.MethodGet, path, nil)
	if err != nil {
		return nil, err
	}

	// serverInfo allows anonymous access
	req.Header.Del("Authorization")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, err
	}
	if err := c.checkError(resp, path); err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	var info ServerInfo
	if err := json.NewDecoder(resp.Body).Decode(&info); err != nil {
		return nil, fmt.Errorf("decode server info: %w", err)
	}
	return &info, nil
}

// GetProject fetches a project with its issue types.
func (c *Client) GetProject(ctx context.Context, key string) (*Project, error) {
	if key == "" {
		return nil, ErrProjectRequired
	}

	var project Project
	err := c.do(ctx, http.MethodGet, c.apiPath("/project/"+key), nil, &project)
	if IsNotFound(err) {
		return nil, fmt.Errorf("%w: %s", ErrProjectNotFound, key)
	}
	if err != nil {
		return nil, err
	}
	return &project, nil
}

// CreateIssue creates a new issue.
func (c *Client) CreateIssue(ctx context.Context, createReq *CreateIssueRequest) (*CreateIssueResponse, error) {
	if createReq.Fields.Project.Key == "" && createReq.Fields.Project.ID == "" {
		return nil, ErrProjectRequired
	}
	if strings.TrimSpace(createReq.Fields.Summary) == "" {
		return nil, ErrSummaryRequired
	}
	if createReq.Fields.IssueType.ID == "" && createReq.Fields.IssueType.Name == "" {
		return nil, ErrIssueTypeMissing
	}

	var result CreateIssueResponse
	if err := c.do(ctx, http.MethodPost, c.apiPath("/issue"), createReq, &result); err != nil {
		return nil, err
	}
	return &result, nil
}

// APIVersionInUse returns the API version being used.
func (c *Client) APIVersionInUse() APIVersion {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.apiVersion
}

// IsCloud returns true if connected to Jira Cloud.
func (c *Client) IsCloud() bool {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.deploymentType == DeploymentCloud
}

func (c *Client) apiPath(endpoint string) string {
	return "/rest/api/" + strings.TrimPrefix(string(c.APIVersionInUse()), "v") + endpoint
}

func (c *Client) do(ctx context.Context, method, path string, body, result any) error {
	req, err := c.newRequest(ctx, method, path, body)
	if err != nil {
		return err
	}
	if err := c.setAuth(req); err != nil {
		return err
	}

	resp, err := c.doWithRetry(req)
	if err != nil {
		return err
	}
	if err := c.checkError(resp, path); err != nil {
		return err
	}
	defer func() { _ = resp.Body.Close() }()

	if result == nil {
		return nil
	}
	if err := json.NewDecoder(resp.Body).Decode(result); err != nil {
		return fmt.Errorf("decode %s response: %w", path, err)
	}
	return nil
}

func (c *Client) newRequest(ctx context.Context, method, path string, body any) (*http.Request, error) {
	var bodyReader io.Reader
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return nil, fmt.Errorf("marshal body: %w", err)
		}
		bodyReader = bytes.NewReader(data)
	}

	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, bodyReader)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Accept", "application/json")
	return req, nil
}

func (c *Client) setAuth(req *http.Request) error {
	switch c.cfg.Auth.Type {
	case AuthAPIToken:
		req.Header.Set("Authorization", "Basic "+basicCredentials(c.cfg.Auth.Email, c.cfg.Auth.Token))
	case AuthBasic:
		req.Header.Set("Authorization", "Basic "+basicCredentials(c.cfg.Auth.Username, c.cfg.Auth.Password))
	case AuthPAT:
		req.Header.Set("Authorization", "Bearer "+c.cfg.Auth.Token)
	case AuthOAuth2:
		tok, err := c.tokens.Token()
		if err != nil {
			return fmt.Errorf("oauth2 token: %w", err)
		}
		tok.SetAuthHeader(req)
	}
	return nil
}

func basicCredentials(user, secret string) string {
	return base64.StdEncoding.EncodeToString([]byte(user + ":" + secret))
}

// doWithRetry retries on network errors, 429 and 5xx. Retry-After wins over
// the computed backoff.
func (c *Client) doWithRetry(req *http.Request) (*http.Response, error) {
	maxRetries := c.cfg.RateLimit.MaxRetries
	if maxRetries <= 0 {
		maxRetries = devhttp.DefaultMaxRetries
	}
	delay := c.cfg.RateLimit.RetryWaitMin
	if delay <= 0 {
		delay = devhttp.DefaultRetryWait
	}
	maxDelay := c.cfg.RateLimit.RetryWaitMax
	if maxDelay <= 0 {
		maxDelay = 30 * time.Second
	}

	var body []byte
	if req.Body != nil {
		var err error
		if body, err = io.ReadAll(req.Body); err != nil {
			return nil, fmt.Errorf("read request body: %w", err)
		}
		_ = req.Body.Close()
	}

	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		attemptReq := req.Clone(req.Context())
		if body != nil {
			attemptReq.Body = io.NopCloser(bytes.NewReader(body))
		}

		wait := delay
		resp, err := c.httpClient.Do(attemptReq)
		switch {
		case err != nil:
			lastErr = err
		case resp.StatusCode == http.StatusTooManyRequests || resp.StatusCode >= 500:
			lastErr = devhttp.StatusError(resp.StatusCode)
			if d := devhttp.RetryAfter(resp.Header.Get("Retry-After")); d > 0 {
				wait = d
			}
			if attempt == maxRetries {
				return resp, nil
			}
			_ = resp.Body.Close()
		default:
			return resp, nil
		}

		if attempt == maxRetries {
			break
		}
		if c.cfg.RateLimit.RetryJitter {
			wait = time.Duration(float64(wait) * (0.7 + rand.Float64()*0.6))
		}
		select {
		case <-req.Context().Done():
			return nil, req.Context().Err()
		case <-time.After(wait):
		}
		delay = min(delay*2, maxDelay)
	}

	return nil, fmt.Errorf("jira request failed after %d attempts: %w", maxRetries+1, lastErr)
}

func (c *Client) checkError(resp *http.Response, endpoint string) error {
	if resp.StatusCode >= 200 && resp.StatusCode < 300 {
		return nil
	}
	return parseAPIError(resp, endpoint)
}
