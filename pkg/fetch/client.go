// Package fetch downloads media assets over HTTP and classifies failures
// as status, transport or timeout errors.
package fetch

import (
	"context"
	stderrors "errors"
	"fmt"
	"io"
	"net"
	"net/http"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"

	errs "xhsdl/pkg/errors"
	"xhsdl/pkg/logger"
	"xhsdl/pkg/retry"
)

// DefaultTimeout is the per-request budget
const DefaultTimeout = 15 * time.Second

// Fetcher retrieves the body behind a URL
type Fetcher interface {
	Fetch(ctx context.Context, url string) ([]byte, error)
}

// Client is an HTTP Fetcher with browser-like headers
type Client struct {
	httpClient *http.Client
	headers    map[string]string
	timeout    time.Duration
	retry      *retry.Config
	logger     logger.Logger
}

// NewClient creates a client with the given per-request timeout
func NewClient(timeout time.Duration, log logger.Logger) *Client {
	if log == nil {
		log = logger.GetLogger()
	}
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	return &Client{
		httpClient: &http.Client{
			Transport: otelhttp.NewTransport(http.DefaultTransport),
		},
		headers: map[string]string{
			"User-Agent":      "Mozilla/5.0 (Windows NT 10.0; Win64; x64) AppleWebKit/537.36 (KHTML, like Gecko) Chrome/124.0.0.0 Safari/537.36",
			"Accept":          "image/avif,image/webp,image/apng,video/*,*/*;q=0.8",
			"Accept-Language": "zh-CN,zh;q=0.9,en;q=0.8",
			"Referer":         "https://www.xiaohongshu.com/",
		},
		timeout: timeout,
		retry:   &retry.Config{MaxAttempts: 1, Logger: log},
		logger:  log,
	}
}

// SetHeader sets a custom header for the client
func (c *Client) SetHeader(key, value string) {
	c.headers[key] = value
}

// SetRetry sets the retry policy; attempts counts the first try
func (c *Client) SetRetry(attempts int, backoff retry.BackoffStrategy) {
	c.retry = &retry.Config{MaxAttempts: attempts, Backoff: backoff, Logger: c.logger}
}

// Fetch implements Fetcher. Each attempt gets its own timeout budget.
func (c *Client) Fetch(ctx context.Context, url string) ([]byte, error) {
	return retry.DoWithResult(ctx, func(ctx context.Context) ([]byte, error) {
		return c.fetchOnce(ctx, url)
	}, c.retry)
}

func (c *Client) fetchOnce(ctx context.Context, url string) ([]byte, error) {
	ctx, cancel := context.WithTimeout(ctx, c.timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
	if err != nil {
		return nil, errs.Wrap(errs.ErrorTypeUnknown, fmt.Sprintf("failed to create request for %s", url), err)
	}
	for key, value := range c.headers {
		req.Header.Set(key, value)
	}

	start := time.Now()
	resp, err := c.httpClient.Do(req)
	if err != nil {
		err = classify(url, err)
		logger.LogFetch(c.logger, url, 0, 0, time.Since(start), err)
		return nil, err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		io.Copy(io.Discard, resp.Body)
		err := errs.HTTPStatus(url, resp.StatusCode)
		logger.LogFetch(c.logger, url, resp.StatusCode, 0, time.Since(start), err)
		return nil, err
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		err = classify(url, err)
		logger.LogFetch(c.logger, url, resp.StatusCode, len(data), time.Since(start), err)
		return nil, err
	}
	if len(data) == 0 {
		err := errs.Transport(url, stderrors.New("empty body"))
		logger.LogFetch(c.logger, url, resp.StatusCode, 0, time.Since(start), err)
		return nil, err
	}

	logger.LogFetch(c.logger, url, resp.StatusCode, len(data), time.Since(start), nil)
	return data, nil
}

// classify maps a client error to a timeout or transport failure
func classify(url string, err error) error {
	if stderrors.Is(err, context.DeadlineExceeded) {
		return errs.Timeout(url, err)
	}
	var netErr net.Error
	if stderrors.As(err, &netErr) && netErr.Timeout() {
		return errs.Timeout(url, err)
	}
	return errs.Transport(url, err)
}
