package client

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"net/url"
	"strings"
	"time"

	"golang.org/x/oauth2"
)

// DefaultBaseURL is the provider's resource API root
const DefaultBaseURL = "https://www.strava.com/api/v3"

// Recorder observes request outcomes, e.g. for metrics
type Recorder interface {
	RequestCompleted(statusCode int)
	RetryScheduled()
	RetriesExhausted()
	BudgetUpdated(window15m, day int)
}

type nopRecorder struct{}

func (nopRecorder) RequestCompleted(int)   {}
func (nopRecorder) RetryScheduled()        {}
func (nopRecorder) RetriesExhausted()      {}
func (nopRecorder) BudgetUpdated(int, int) {}

// Client issues bearer-authenticated requests against the resource API and
// absorbs provider throttling with a bounded fixed-delay retry loop.
// A Client is meant to be used by one caller at a time.
type Client struct {
	baseURL    string
	httpClient *http.Client
	retry      RetryPolicy
	sleep      Sleeper
	now        func() time.Time
	budget     RequestBudget
	quota      Quota
	limiter    *quotaLimiter
	recorder   Recorder
}

// Option configures a Client
type Option func(*Client)

// WithBaseURL overrides the resource API root
func WithBaseURL(baseURL string) Option {
	return func(c *Client) {
		c.baseURL = strings.TrimSuffix(baseURL, "/")
	}
}

// WithHTTPClient uses hc's transport and timeout underneath the bearer transport
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		c.httpClient.Timeout = hc.Timeout
		if hc.Transport != nil {
			c.httpClient.Transport.(*oauth2.Transport).Base = hc.Transport
		}
	}
}

// WithRetryPolicy sets the retry policy
func WithRetryPolicy(policy RetryPolicy) Option {
	return func(c *Client) {
		c.retry = policy
	}
}

// WithSleeper replaces the wait between attempts
func WithSleeper(sleeper Sleeper) Option {
	return func(c *Client) {
		c.sleep = sleeper
	}
}

// WithClock replaces the clock used for the request budget
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		c.now = now
	}
}

// WithQuota enables client-side quota pacing
func WithQuota(q Quota) Option {
	return func(c *Client) {
		c.quota = q
	}
}

// WithRecorder attaches a recorder for request outcomes
func WithRecorder(r Recorder) Option {
	return func(c *Client) {
		c.recorder = r
	}
}

// New creates a Client that owns token for its lifetime
func New(token *oauth2.Token, opts ...Option) (*Client, error) {
	if token == nil || token.AccessToken == "" {
		return nil, fmt.Errorf("access token is required")
	}

	c := &Client{
		baseURL: DefaultBaseURL,
		httpClient: &http.Client{
			Timeout: 30 * time.Second,
			Transport: &oauth2.Transport{
				Source: oauth2.StaticTokenSource(token),
				Base:   http.DefaultTransport,
			},
		},
		retry:    DefaultRetryPolicy(),
		sleep:    sleepContext,
		now:      time.Now,
		quota:    DefaultQuota(),
		recorder: nopRecorder{},
	}
	for _, opt := range opts {
		opt(c)
	}

	limiter, err := newQuotaLimiter(c.quota)
	if err != nil {
		return nil, err
	}
	c.limiter = limiter

	return c, nil
}

// Budget returns the current request counters
func (c *Client) Budget() BudgetSnapshot {
	return c.budget.Snapshot()
}

// RetryPolicy returns the policy in effect
func (c *Client) RetryPolicy() RetryPolicy {
	return c.retry
}

// Get requests path with query and returns the body of the first 200
// response. Any other outcome is retried according to the retry policy.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (json.RawMessage, error) {
	reqURL := c.baseURL + path
	if len(query) > 0 {
		reqURL += "?" + query.Encode()
	}

	attempts := c.retry.attempts()
	var lastStatus int
	var lastErr error

	for attempt := 1; attempt <= attempts; attempt++ {
		if err := c.limiter.wait(ctx); err != nil {
			return nil, err
		}

		body, status, err := c.do(ctx, reqURL)
		snapshot := c.budget.record(c.now())
		c.recorder.RequestCompleted(status)
		c.recorder.BudgetUpdated(snapshot.Window15m, snapshot.Day)

		if err == nil && status == http.StatusOK {
			return body, nil
		}
		if ctxErr := ctx.Err(); ctxErr != nil {
			return nil, fmt.Errorf("request to %s cancelled: %w", reqURL, ctxErr)
		}

		lastStatus, lastErr = status, err
		if err != nil {
			log.Printf("[CLIENT] Request to %s failed: %v", reqURL, err)
		} else {
			log.Printf("[CLIENT] Request to %s returned status %d", reqURL, status)
		}

		if !c.retry.shouldRetry(status, err) {
			return nil, &StatusError{
				URL:        reqURL,
				StatusCode: status,
				Body:       truncate(string(body), 256),
			}
		}
		if attempt == attempts {
			break
		}

		log.Printf("[CLIENT] Retrying in %s (attempt %d of %d, %d requests this window)",
			c.retry.Delay, attempt+1, attempts, snapshot.Window15m)
		c.recorder.RetryScheduled()
		if err := c.sleep(ctx, c.retry.Delay); err != nil {
			return nil, fmt.Errorf("retry wait for %s interrupted: %w", reqURL, err)
		}
	}

	c.recorder.RetriesExhausted()
	return nil, &ExhaustedRetriesError{
		URL:        reqURL,
		Attempts:   attempts,
		LastStatus: lastStatus,
		LastErr:    lastErr,
	}
}

// do performs a single attempt. A 200 whose body is not JSON is reported as
// an error so that it is retried like any other failure.
func (c *Client) do(ctx context.Context, reqURL string) (json.RawMessage, int, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to send request: %w", err)
	}
	defer func() {
		_ = resp.Body.Close()
	}()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, resp.StatusCode, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusOK && !json.Valid(body) {
		return nil, resp.StatusCode, fmt.Errorf("response is not valid JSON")
	}
	return body, resp.StatusCode, nil
}

func truncate(s string, n int) string {
	s = strings.TrimSpace(s)
	if len(s) <= n {
		return s
	}
	return s[:n] + "..."
}
