// Package oss implements a minimal object storage client for paper PDFs.
// Objects are placed under a date-partitioned key layout and addressed by
// their bucket-relative key everywhere else in the system.
package oss

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"path"
	"strings"
	"time"

	"github.com/google/uuid"

	"papermill/internal/config"
	"papermill/internal/services"
)

const defaultHTTPTimeout = 30 * time.Second

// Client uploads and deletes paper objects over the store's HTTP surface.
type Client struct {
	endpoint   string
	bucket     string
	prefix     string
	accessID   string
	accessKey  string
	httpClient *http.Client
	now        func() time.Time
}

// Option customizes the client.
type Option func(*Client)

// WithHTTPClient overrides the default HTTP client.
func WithHTTPClient(client *http.Client) Option {
	return func(c *Client) {
		if client != nil {
			c.httpClient = client
		}
	}
}

// WithEndpoint overrides the configured endpoint (useful for tests).
func WithEndpoint(endpoint string) Option {
	return func(c *Client) {
		endpoint = strings.TrimSpace(endpoint)
		if endpoint != "" {
			c.endpoint = strings.TrimRight(endpoint, "/")
		}
	}
}

// WithClock overrides the key-partitioning clock (useful for tests).
func WithClock(now func() time.Time) Option {
	return func(c *Client) {
		if now != nil {
			c.now = now
		}
	}
}

// NewClient constructs an object store client from configuration.
func NewClient(cfg config.ObjectStore, opts ...Option) *Client {
	timeout := defaultHTTPTimeout
	if cfg.RequestTimeout > 0 {
		timeout = time.Duration(cfg.RequestTimeout) * time.Second
	}
	client := &Client{
		endpoint:   strings.TrimRight(strings.TrimSpace(cfg.Endpoint), "/"),
		bucket:     strings.TrimSpace(cfg.Bucket),
		prefix:     strings.Trim(strings.TrimSpace(cfg.Prefix), "/"),
		accessID:   strings.TrimSpace(cfg.AccessKeyID),
		accessKey:  strings.TrimSpace(cfg.AccessKeySecret),
		httpClient: &http.Client{Timeout: timeout},
		now:        time.Now,
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: timeout}
	}
	if client.prefix == "" {
		client.prefix = "papers"
	}
	return client
}

// Object describes a stored paper object.
type Object struct {
	Key  string
	URL  string
	Size int64
}

// NewKey produces a fresh object key for filename under the configured prefix,
// partitioned by upload date.
func (c *Client) NewKey(filename string) string {
	ext := strings.ToLower(path.Ext(filename))
	if ext == "" {
		ext = ".pdf"
	}
	day := c.now().UTC().Format("20060102")
	return path.Join(c.prefix, day, uuid.NewString()+ext)
}

// Upload stores content as a new object and returns its key, public URL, and
// size.
func (c *Client) Upload(ctx context.Context, content []byte, filename string) (Object, error) {
	var empty Object
	if len(content) == 0 {
		return empty, services.Wrap(services.ErrExternal, "oss", "upload", "empty content", nil)
	}
	key := c.NewKey(filename)
	endpoint, err := c.objectURL(key)
	if err != nil {
		return empty, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodPut, endpoint, bytes.NewReader(content))
	if err != nil {
		return empty, services.Wrap(services.ErrExternal, "oss", "upload", "build request", err)
	}
	req.Header.Set("Content-Type", "application/pdf")
	req.ContentLength = int64(len(content))
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return empty, services.Wrap(services.ErrExternal, "oss", "upload", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return empty, services.Wrap(services.ErrExternal, "oss", "upload",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return Object{Key: key, URL: endpoint, Size: int64(len(content))}, nil
}

// Delete removes the object at key. A missing object is not an error.
func (c *Client) Delete(ctx context.Context, key string) error {
	endpoint, err := c.objectURL(key)
	if err != nil {
		return err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodDelete, endpoint, nil)
	if err != nil {
		return services.Wrap(services.ErrExternal, "oss", "delete", "build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return services.Wrap(services.ErrExternal, "oss", "delete", "request failed", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode >= http.StatusMultipleChoices && resp.StatusCode != http.StatusNotFound {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		return services.Wrap(services.ErrExternal, "oss", "delete",
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))), nil)
	}
	return nil
}

// Exists reports whether the object at key is present.
func (c *Client) Exists(ctx context.Context, key string) (bool, error) {
	endpoint, err := c.objectURL(key)
	if err != nil {
		return false, err
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodHead, endpoint, nil)
	if err != nil {
		return false, services.Wrap(services.ErrExternal, "oss", "head", "build request", err)
	}
	c.authorize(req)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return false, services.Wrap(services.ErrExternal, "oss", "head", "request failed", err)
	}
	defer resp.Body.Close()
	switch {
	case resp.StatusCode == http.StatusNotFound:
		return false, nil
	case resp.StatusCode >= http.StatusMultipleChoices:
		return false, services.Wrap(services.ErrExternal, "oss", "head",
			fmt.Sprintf("http %d", resp.StatusCode), nil)
	default:
		return true, nil
	}
}

// ObjectURL returns the public URL for key.
func (c *Client) ObjectURL(key string) (string, error) {
	return c.objectURL(key)
}

func (c *Client) objectURL(key string) (string, error) {
	key = strings.TrimLeft(strings.ReplaceAll(key, "\\", "/"), "/")
	if key == "" {
		return "", services.Wrap(services.ErrExternal, "oss", "url", "empty object key", nil)
	}
	endpoint, err := url.JoinPath(c.endpoint, c.bucket, key)
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "oss", "url", "build url", err)
	}
	return endpoint, nil
}

func (c *Client) authorize(req *http.Request) {
	if c.accessID != "" {
		req.SetBasicAuth(c.accessID, c.accessKey)
	}
}
