package fred

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"math"
	"math/rand"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"github.com/sirupsen/logrus"
	"golang.org/x/time/rate"

	"fredserve/internal/common"
)

type ClientConfig struct {
	APIKey               string
	BaseURL              string
	Timeout              time.Duration
	MaxRequestsPerMinute int
	MaxRetries           int
	BaseDelay            time.Duration
	BackoffFactor        float64
	Jitter               float64
}

// Client talks to the FRED API under a requests-per-minute ceiling.
// Every attempt, including retries, consumes a limiter slot; when the budget
// is exhausted the call blocks until a slot frees up instead of failing.
type Client struct {
	cfg     ClientConfig
	http    *http.Client
	limiter *rate.Limiter
	log     *logrus.Entry
}

func NewClient(cfg ClientConfig) *Client {
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.MaxRequestsPerMinute <= 0 {
		cfg.MaxRequestsPerMinute = 120
	}
	if cfg.BaseDelay <= 0 {
		cfg.BaseDelay = time.Second
	}
	if cfg.BackoffFactor <= 0 {
		cfg.BackoffFactor = 1.5
	}
	cfg.BaseURL = strings.TrimRight(cfg.BaseURL, "/")

	return &Client{
		cfg:     cfg,
		http:    &http.Client{Timeout: cfg.Timeout},
		limiter: rate.NewLimiter(rate.Limit(float64(cfg.MaxRequestsPerMinute)/60.0), cfg.MaxRequestsPerMinute),
		log:     logrus.WithField("component", "fred_client"),
	}
}

// GetJSON performs a GET against path, injecting the api_key and file_type
// parameters, and decodes the JSON body. Rate-limit responses, timeouts,
// transient network failures and 5xx statuses are retried with exponential
// backoff plus jitter; a Retry-After hint from the server wins over the
// computed delay. The last classified error surfaces once retries are spent.
func (c *Client) GetJSON(ctx context.Context, path string, params map[string]string) (map[string]any, error) {
	reqURL, err := c.buildURL(path, params)
	if err != nil {
		return nil, common.NewAPIErrorf(common.CodeNetworkError, "invalid request URL: %v", err)
	}

	var lastErr *common.APIError
	for attempt := 0; ; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return nil, classifyContextError(ctxErr)
			}
			return nil, common.NewAPIErrorf(common.CodeNetworkError, "rate limiter wait aborted: %v", err)
		}

		payload, retryAfter, apiErr := c.doOnce(ctx, reqURL)
		if apiErr == nil {
			return payload, nil
		}
		lastErr = apiErr

		if attempt >= c.cfg.MaxRetries || !retryable(apiErr) {
			return nil, lastErr
		}

		delay := c.computeRetryDelay(attempt, retryAfter)
		c.log.WithFields(logrus.Fields{
			"path":    path,
			"attempt": attempt + 1,
			"code":    apiErr.Code,
			"delay":   delay.String(),
		}).Warn("retrying FRED request")

		select {
		case <-ctx.Done():
			return nil, classifyContextError(ctx.Err())
		case <-time.After(delay):
		}
	}
}

func (c *Client) buildURL(path string, params map[string]string) (string, error) {
	u, err := url.Parse(c.cfg.BaseURL + path)
	if err != nil {
		return "", err
	}
	q := u.Query()
	q.Set("api_key", c.cfg.APIKey)
	q.Set("file_type", "json")
	for key, value := range params {
		q.Set(key, value)
	}
	u.RawQuery = q.Encode()
	return u.String(), nil
}

// doOnce issues a single attempt and classifies the outcome. The returned
// duration carries the server's Retry-After hint when one was present.
func (c *Client) doOnce(ctx context.Context, reqURL string) (map[string]any, time.Duration, *common.APIError) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, 0, common.NewAPIErrorf(common.CodeNetworkError, "failed to build request: %v", err)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, 0, classifyTransportError(err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, 0, common.NewAPIErrorf(common.CodeNetworkError, "failed to read response body: %v", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, parseRetryAfter(resp.Header.Get("Retry-After")), classifyStatus(resp.StatusCode, body)
	}

	var payload map[string]any
	if err := json.Unmarshal(body, &payload); err != nil {
		return nil, 0, common.NewAPIErrorf(common.CodeHTTPError, "malformed JSON response: %v", err).
			WithDetail("status", resp.StatusCode)
	}
	return payload, 0, nil
}

func (c *Client) computeRetryDelay(attempt int, retryAfter time.Duration) time.Duration {
	if retryAfter > 0 {
		return retryAfter
	}
	delay := float64(c.cfg.BaseDelay) * math.Pow(c.cfg.BackoffFactor, float64(attempt))
	if c.cfg.Jitter > 0 {
		delay += rand.Float64() * c.cfg.Jitter * float64(time.Second)
	}
	return time.Duration(delay)
}

// classifyContextError separates a deliberate caller cancellation from an
// expired deadline; only the latter is a timeout.
func classifyContextError(err error) *common.APIError {
	if errors.Is(err, context.Canceled) {
		return common.NewAPIError(common.CodeNetworkError, "request cancelled by caller")
	}
	return common.NewAPIError(common.CodeTimeout, "request timed out")
}

func classifyTransportError(err error) *common.APIError {
	var urlErr *url.Error
	if errors.As(err, &urlErr) && urlErr.Timeout() {
		return common.NewAPIError(common.CodeTimeout, "request timed out")
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return common.NewAPIError(common.CodeTimeout, "request timed out")
	}
	return common.NewAPIErrorf(common.CodeNetworkError, "transport failure: %v", err)
}

func classifyStatus(status int, body []byte) *common.APIError {
	var remote struct {
		ErrorCode    any    `json:"error_code"`
		ErrorMessage string `json:"error_message"`
	}
	_ = json.Unmarshal(body, &remote)

	message := remote.ErrorMessage
	switch {
	case status == http.StatusNotFound:
		if message == "" {
			message = "the requested entity does not exist"
		}
		return common.NewAPIError(common.CodeNotFound, message).WithDetail("status", status)
	case status == http.StatusTooManyRequests:
		if message == "" {
			message = "FRED API rate limit exceeded"
		}
		return common.NewAPIError(common.CodeRateLimitExceeded, message).WithDetail("status", status)
	default:
		if message == "" {
			message = fmt.Sprintf("FRED API returned status %d", status)
		}
		return common.NewAPIError(common.CodeHTTPError, message).WithDetail("status", status)
	}
}

func retryable(apiErr *common.APIError) bool {
	switch apiErr.Code {
	case common.CodeRateLimitExceeded, common.CodeTimeout, common.CodeNetworkError:
		return true
	case common.CodeHTTPError:
		if status, ok := apiErr.Details["status"].(int); ok {
			return status >= 500
		}
	}
	return false
}

func parseRetryAfter(header string) time.Duration {
	if header == "" {
		return 0
	}
	seconds, err := strconv.Atoi(strings.TrimSpace(header))
	if err != nil || seconds < 0 {
		return 0
	}
	return time.Duration(seconds) * time.Second
}
