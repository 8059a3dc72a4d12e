// Package client talks to a running dotcharts server.
//
//	c, err := client.New("http://localhost:3000")
//	if err != nil {
//	    return err
//	}
//	img, contentType, err := c.Render(ctx, render.Request{
//	    Graph:  "digraph{a->b}",
//	    Format: "png",
//	})
//
// Network failures and transient server errors are retried with
// exponential backoff. Render failures caused by the graph itself
// (LAYOUT_FAILED, RASTER_FAILED, INVALID_*) are returned immediately.
package client

import (
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/matzehuels/dotcharts/pkg/buildinfo"
	dcerrors "github.com/matzehuels/dotcharts/pkg/errors"
	"github.com/matzehuels/dotcharts/pkg/httputil"
	"github.com/matzehuels/dotcharts/pkg/render"
)

const (
	defaultAttempts = 3
	defaultDelay    = 500 * time.Millisecond
)

// Client renders graphs through a dotcharts server.
type Client struct {
	http     *http.Client
	baseURL  *url.URL
	headers  map[string]string
	attempts int
	delay    time.Duration
}

// Option configures a Client.
type Option func(*Client)

// WithHTTPClient replaces the default HTTP client.
func WithHTTPClient(hc *http.Client) Option {
	return func(c *Client) {
		if hc != nil {
			c.http = hc
		}
	}
}

// WithHeader adds a header to every request.
func WithHeader(key, value string) Option {
	return func(c *Client) { c.headers[key] = value }
}

// WithRetry sets the number of attempts and the initial backoff delay.
func WithRetry(attempts int, delay time.Duration) Option {
	return func(c *Client) {
		c.attempts = max(attempts, 1)
		c.delay = delay
	}
}

// New creates a Client for the server at baseURL.
func New(baseURL string, opts ...Option) (*Client, error) {
	if err := dcerrors.ValidateURL(baseURL); err != nil {
		return nil, err
	}
	u, err := url.Parse(strings.TrimRight(baseURL, "/"))
	if err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeInvalidInput, err, "invalid base URL")
	}

	c := &Client{
		http:     httputil.NewHTTPClient(),
		baseURL:  u,
		headers:  map[string]string{"User-Agent": buildinfo.UserAgent()},
		attempts: defaultAttempts,
		delay:    defaultDelay,
	}
	for _, opt := range opts {
		opt(c)
	}
	return c, nil
}

// Render asks the server to render req and returns the image bytes and
// their content type.
func (c *Client) Render(ctx context.Context, req render.Request) ([]byte, string, error) {
	if err := req.Validate(); err != nil {
		return nil, "", err
	}

	q := url.Values{"graph": {req.Graph}}
	for k, v := range map[string]string{
		"format": req.Format,
		"engine": req.Engine,
		"width":  req.Width,
		"height": req.Height,
	} {
		if v != "" {
			q.Set(k, v)
		}
	}

	var (
		body        []byte
		contentType string
	)
	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		resp, err := c.do(ctx, "/", q)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		data, err := io.ReadAll(resp.Body)
		if err != nil {
			return &httputil.RetryableError{Err: dcerrors.Wrap(dcerrors.ErrCodeNetwork, err, "read response")}
		}
		if err := checkStatus(resp, data); err != nil {
			return err
		}
		body, contentType = data, resp.Header.Get("Content-Type")
		return nil
	})
	if err != nil {
		return nil, "", unwrapRetry(err)
	}
	return body, contentType, nil
}

// Health checks that the server is up.
func (c *Client) Health(ctx context.Context) error {
	err := httputil.Retry(ctx, c.attempts, c.delay, func() error {
		resp, err := c.do(ctx, "/health", nil)
		if err != nil {
			return err
		}
		defer resp.Body.Close()
		_, _ = io.Copy(io.Discard, resp.Body)
		return checkStatus(resp, nil)
	})
	return unwrapRetry(err)
}

func (c *Client) do(ctx context.Context, path string, q url.Values) (*http.Response, error) {
	u := *c.baseURL
	u.Path = strings.TrimRight(u.Path, "/") + path
	u.RawQuery = q.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, dcerrors.Wrap(dcerrors.ErrCodeInvalidInput, err, "build request")
	}
	for k, v := range c.headers {
		req.Header.Set(k, v)
	}

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, dcerrors.Wrap(dcerrors.ErrCodeTimeout, err, "request %s", path)
		}
		return nil, &httputil.RetryableError{Err: dcerrors.Wrap(dcerrors.ErrCodeNetwork, err, "request %s", path)}
	}
	return resp, nil
}

// checkStatus maps a response to an error. A 500 carrying a render error
// code is final; other 5xx responses are retried.
func checkStatus(resp *http.Response, body []byte) error {
	switch code := resp.StatusCode; {
	case code == http.StatusOK:
		return nil
	case code == http.StatusBadRequest:
		return dcerrors.New(dcerrors.ErrCodeInvalidInput, "server rejected request")
	case code >= 500:
		errCode := dcerrors.Code(resp.Header.Get("X-Error-Code"))
		msg := strings.TrimSpace(string(body))
		if msg == "" {
			msg = fmt.Sprintf("status %d", code)
		}
		err := dcerrors.New(errCode, "%s", msg)
		switch errCode {
		case "", dcerrors.ErrCodeInternal, dcerrors.ErrCodeTimeout:
			if errCode == "" {
				err.Code = dcerrors.ErrCodeNetwork
			}
			return &httputil.RetryableError{Err: err}
		}
		return err
	default:
		return dcerrors.New(dcerrors.ErrCodeNetwork, "unexpected status %d", code)
	}
}

func unwrapRetry(err error) error {
	if re, ok := err.(*httputil.RetryableError); ok {
		return re.Err
	}
	return err
}
