package common

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"mime"
	"net/http"
	"net/url"
	"strings"
	"unicode/utf8"

	"golang.org/x/text/encoding/htmlindex"

	"rfxstream/catalogservice/internal/normalize"
)

const (
	DefaultUserAgent = "rfx-catalog/1.0"
	maxPayloadBytes  = 8 * 1024 * 1024
	maxErrorBody     = 2048
)

var ErrEmptyPath = errors.New("upstream path is required")

// ErrProviderDisabled is returned by providers that lack the credentials they need.
var ErrProviderDisabled = errors.New("provider disabled")

// StatusError is returned for non-2xx upstream answers.
type StatusError struct {
	StatusCode int
	Body       string
}

func (e *StatusError) Error() string {
	if e.Body == "" {
		return fmt.Sprintf("provider HTTP %d", e.StatusCode)
	}
	return fmt.Sprintf("provider HTTP %d: %s", e.StatusCode, e.Body)
}

type ClientConfig struct {
	BaseURL   string
	UserAgent string
	Headers   http.Header
	Client    *http.Client
}

// Client issues GET requests against one upstream base URL.
type Client struct {
	http      *http.Client
	baseURL   *url.URL
	userAgent string
	headers   http.Header
}

type Response struct {
	StatusCode  int
	ContentType string
	Body        []byte
}

func NewClient(cfg ClientConfig) (*Client, error) {
	raw := strings.TrimSpace(cfg.BaseURL)
	base, err := url.Parse(raw)
	if err != nil || base.Scheme == "" || base.Host == "" {
		if err == nil {
			err = errors.New("missing scheme or host")
		}
		return nil, fmt.Errorf("invalid base url %q: %w", raw, err)
	}
	base.Path = strings.TrimRight(base.Path, "/")

	client := cfg.Client
	if client == nil {
		client = &http.Client{}
	}
	userAgent := strings.TrimSpace(cfg.UserAgent)
	if userAgent == "" {
		userAgent = DefaultUserAgent
	}
	return &Client{
		http:      client,
		baseURL:   base,
		userAgent: userAgent,
		headers:   cfg.Headers.Clone(),
	}, nil
}

func (c *Client) BaseURL() string {
	return c.baseURL.String()
}

// URL joins path and query onto the base URL.
func (c *Client) URL(path string, query url.Values) (string, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return "", ErrEmptyPath
	}
	target := *c.baseURL
	target.Path = c.baseURL.Path + "/" + strings.TrimLeft(path, "/")
	target.RawQuery = query.Encode()
	return target.String(), nil
}

// Get performs a GET and returns the raw answer whatever its status.
func (c *Client) Get(ctx context.Context, path string, query url.Values) (Response, error) {
	return c.Do(ctx, http.MethodGet, path, query, nil)
}

// Do performs one request against the upstream; a non-nil body is sent as JSON.
func (c *Client) Do(ctx context.Context, method, path string, query url.Values, body []byte) (Response, error) {
	target, err := c.URL(path, query)
	if err != nil {
		return Response{}, err
	}
	var reader io.Reader
	if body != nil {
		reader = bytes.NewReader(body)
	}
	req, err := http.NewRequestWithContext(ctx, method, target, reader)
	if err != nil {
		return Response{}, err
	}
	req.Header.Set("User-Agent", c.userAgent)
	req.Header.Set("Accept", "application/json")
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	for key, values := range c.headers {
		for _, value := range values {
			req.Header.Add(key, value)
		}
	}

	resp, err := c.http.Do(req)
	if err != nil {
		return Response{}, err
	}
	defer resp.Body.Close()

	payload, err := io.ReadAll(io.LimitReader(resp.Body, maxPayloadBytes))
	if err != nil {
		return Response{}, err
	}
	return Response{
		StatusCode:  resp.StatusCode,
		ContentType: resp.Header.Get("Content-Type"),
		Body:        payload,
	}, nil
}

// GetJSON fetches path and decodes the answer into generic JSON values.
func (c *Client) GetJSON(ctx context.Context, path string, query url.Values) (any, error) {
	resp, err := c.Get(ctx, path, query)
	if err != nil {
		return nil, err
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		body := resp.Body
		if len(body) > maxErrorBody {
			body = body[:maxErrorBody]
		}
		return nil, &StatusError{StatusCode: resp.StatusCode, Body: strings.TrimSpace(string(body))}
	}
	return normalize.Decode(DecodeCharset(resp.Body, resp.ContentType))
}

// DecodeCharset converts a non UTF-8 body using the charset declared in contentType.
func DecodeCharset(payload []byte, contentType string) []byte {
	if utf8.Valid(payload) {
		return payload
	}
	_, params, err := mime.ParseMediaType(contentType)
	if err != nil || params["charset"] == "" {
		return payload
	}
	enc, err := htmlindex.Get(params["charset"])
	if err != nil {
		return payload
	}
	decoded, err := enc.NewDecoder().Bytes(payload)
	if err != nil {
		return payload
	}
	return decoded
}
