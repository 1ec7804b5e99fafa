// Package web implements page fetcher over net/http.
package web

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"mime/multipart"
	"net/http"
	"net/http/cookiejar"
	"strings"
	"sync"
	"time"

	"golang.org/x/net/publicsuffix"

	"github.com/competitive-cli/judge/internal/pkg/logs"
	"github.com/competitive-cli/judge/pkg/judges"
)

const (
	defaultTimeout   = 30 * time.Second
	defaultUserAgent = "Mozilla/5.0 (X11; Linux x86_64; rv:109.0) Gecko/20100101 Firefox/115.0"
	// maxBodySize limits size of fetched page.
	maxBodySize = 16 << 20
)

// Client performs page requests keeping cookies between them.
type Client struct {
	client    http.Client
	userAgent string
	logger    *logs.Logger
	mutex     sync.Mutex
}

type ClientOption func(*Client)

// WithTimeout sets timeout of single round trip.
func WithTimeout(timeout time.Duration) ClientOption {
	return func(c *Client) {
		c.client.Timeout = timeout
	}
}

// WithTransport sets custom transport.
func WithTransport(transport http.RoundTripper) ClientOption {
	return func(c *Client) {
		c.client.Transport = transport
	}
}

// WithUserAgent sets default User-Agent header.
func WithUserAgent(userAgent string) ClientOption {
	return func(c *Client) {
		c.userAgent = userAgent
	}
}

// WithLogger enables request tracing at debug level.
func WithLogger(logger *logs.Logger) ClientOption {
	return func(c *Client) {
		c.logger = logger
	}
}

// NewClient returns new client with empty cookie jar.
func NewClient(options ...ClientOption) *Client {
	c := Client{
		client:    http.Client{Timeout: defaultTimeout},
		userAgent: defaultUserAgent,
	}
	c.client.Jar = newJar()
	for _, option := range options {
		option(&c)
	}
	return &c
}

func newJar() http.CookieJar {
	jar, err := cookiejar.New(&cookiejar.Options{
		PublicSuffixList: publicsuffix.List,
	})
	if err != nil {
		panic(err)
	}
	return jar
}

// Reset drops all cookies.
func (c *Client) Reset() {
	c.mutex.Lock()
	defer c.mutex.Unlock()
	c.client.Jar = newJar()
}

// FetchPage performs request and returns body of the final page.
func (c *Client) FetchPage(ctx context.Context, r judges.Request) (judges.Page, error) {
	req, err := c.newRequest(ctx, r)
	if err != nil {
		return judges.Page{}, err
	}
	started := time.Now()
	resp, err := c.do(req)
	if err != nil {
		c.trace(r, 0, started, err)
		return judges.Page{}, &judges.NetworkError{Err: err}
	}
	defer func() { _ = resp.Body.Close() }()
	body, err := io.ReadAll(io.LimitReader(resp.Body, maxBodySize))
	if err != nil {
		c.trace(r, resp.StatusCode, started, err)
		return judges.Page{}, &judges.NetworkError{Code: resp.StatusCode, Err: err}
	}
	c.trace(r, resp.StatusCode, started, nil)
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return judges.Page{}, &judges.NetworkError{
			Code: resp.StatusCode,
			Err:  fmt.Errorf("unexpected status %q", resp.Status),
		}
	}
	return judges.Page{URL: resp.Request.URL.String(), Body: body}, nil
}

func (c *Client) do(req *http.Request) (*http.Response, error) {
	c.mutex.Lock()
	client := c.client
	c.mutex.Unlock()
	return client.Do(req)
}

func (c *Client) newRequest(ctx context.Context, r judges.Request) (*http.Request, error) {
	method := r.Method
	if method == "" {
		method = http.MethodGet
	}
	var body io.Reader
	var contentType string
	target := r.URL
	switch {
	case r.File != nil:
		data, formType, err := encodeMultipart(r)
		if err != nil {
			return nil, err
		}
		body, contentType = data, formType
	case method == http.MethodGet || method == http.MethodHead:
		if len(r.Form) > 0 {
			separator := "?"
			if strings.Contains(target, "?") {
				separator = "&"
			}
			target += separator + r.Form.Encode()
		}
	case r.Form != nil:
		body = strings.NewReader(r.Form.Encode())
		contentType = "application/x-www-form-urlencoded"
	}
	req, err := http.NewRequestWithContext(ctx, method, target, body)
	if err != nil {
		return nil, err
	}
	for key, values := range r.Header {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}
	if contentType != "" {
		req.Header.Set("Content-Type", contentType)
	}
	if req.Header.Get("User-Agent") == "" && c.userAgent != "" {
		req.Header.Set("User-Agent", c.userAgent)
	}
	return req, nil
}

func encodeMultipart(r judges.Request) (*bytes.Buffer, string, error) {
	buf := bytes.Buffer{}
	w := multipart.NewWriter(&buf)
	for name, values := range r.Form {
		for _, value := range values {
			if err := w.WriteField(name, value); err != nil {
				return nil, "", err
			}
		}
	}
	if fw, err := w.CreateFormFile(r.File.Field, r.File.Name); err != nil {
		return nil, "", err
	} else if _, err := io.Copy(fw, r.File.Content); err != nil {
		return nil, "", err
	}
	if err := w.Close(); err != nil {
		return nil, "", err
	}
	return &buf, w.FormDataContentType(), nil
}

func (c *Client) trace(r judges.Request, code int, started time.Time, err error) {
	if c.logger == nil {
		return
	}
	c.logger.Debug(
		"Page fetched",
		logs.Any("method", r.Method),
		logs.Any("url", r.URL),
		logs.Any("status", code),
		logs.Any("duration", time.Since(started).String()),
		err,
	)
}
