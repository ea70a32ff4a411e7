// Package mineru implements the client for the external document-parsing
// service that converts an uploaded PDF into a markdown archive.
package mineru

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"papermill/internal/config"
	"papermill/internal/services"
)

const (
	defaultBaseURL     = "https://mineru.net/api/v4"
	defaultHTTPTimeout = 30 * time.Second
)

// Task states reported by the parsing service.
const (
	StatePending    = "pending"
	StateRunning    = "running"
	StateConverting = "converting"
	StateDone       = "done"
	StateFailed     = "failed"
)

// Client wraps the parsing service task API.
type Client struct {
	baseURL      string
	apiToken     string
	modelVersion string
	httpClient   *http.Client
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

// WithBaseURL overrides the service base URL (useful for tests).
func WithBaseURL(base string) Option {
	return func(c *Client) {
		base = strings.TrimSpace(base)
		if base != "" {
			c.baseURL = strings.TrimRight(base, "/")
		}
	}
}

// NewClient constructs a parsing service client from configuration.
func NewClient(cfg config.MinerU, opts ...Option) *Client {
	client := &Client{
		baseURL:      strings.TrimRight(strings.TrimSpace(cfg.BaseURL), "/"),
		apiToken:     strings.TrimSpace(cfg.APIToken),
		modelVersion: strings.TrimSpace(cfg.ModelVersion),
		httpClient:   &http.Client{Timeout: defaultHTTPTimeout},
	}
	for _, opt := range opts {
		opt(client)
	}
	if client.baseURL == "" {
		client.baseURL = defaultBaseURL
	}
	if client.httpClient == nil {
		client.httpClient = &http.Client{Timeout: defaultHTTPTimeout}
	}
	return client
}

// TaskStatus describes the state of a parsing task.
type TaskStatus struct {
	TaskID     string
	State      string
	FullZipURL string
	ErrMsg     string
}

// Terminal reports whether the task has finished, successfully or not.
func (s TaskStatus) Terminal() bool {
	return s.State == StateDone || s.State == StateFailed
}

type apiEnvelope struct {
	Code int             `json:"code"`
	Msg  string          `json:"msg"`
	Data json.RawMessage `json:"data"`
}

type createTaskRequest struct {
	URL          string `json:"url"`
	ModelVersion string `json:"model_version,omitempty"`
}

type createTaskData struct {
	TaskID string `json:"task_id"`
}

type taskStatusData struct {
	TaskID     string `json:"task_id"`
	State      string `json:"state"`
	FullZipURL string `json:"full_zip_url"`
	ErrMsg     string `json:"err_msg"`
}

// CreateTask submits sourceURL for parsing and returns the new task id.
func (c *Client) CreateTask(ctx context.Context, sourceURL string) (string, error) {
	sourceURL = strings.TrimSpace(sourceURL)
	if sourceURL == "" {
		return "", services.Wrap(services.ErrExternal, "mineru", "create_task", "source url required", nil)
	}
	payload, err := json.Marshal(createTaskRequest{URL: sourceURL, ModelVersion: c.modelVersion})
	if err != nil {
		return "", services.Wrap(services.ErrExternal, "mineru", "create_task", "encode request", err)
	}
	data, err := c.do(ctx, http.MethodPost, "/extract/task", bytes.NewReader(payload))
	if err != nil {
		return "", err
	}
	var created createTaskData
	if err := json.Unmarshal(data, &created); err != nil {
		return "", services.Wrap(services.ErrExternal, "mineru", "create_task", "decode response", err)
	}
	if strings.TrimSpace(created.TaskID) == "" {
		return "", services.Wrap(services.ErrExternal, "mineru", "create_task", "empty task id", nil)
	}
	return created.TaskID, nil
}

// GetTask returns the current status of taskID.
func (c *Client) GetTask(ctx context.Context, taskID string) (TaskStatus, error) {
	var empty TaskStatus
	taskID = strings.TrimSpace(taskID)
	if taskID == "" {
		return empty, services.Wrap(services.ErrExternal, "mineru", "get_task", "task id required", nil)
	}
	data, err := c.do(ctx, http.MethodGet, "/extract/task/"+url.PathEscape(taskID), nil)
	if err != nil {
		return empty, err
	}
	var status taskStatusData
	if err := json.Unmarshal(data, &status); err != nil {
		return empty, services.Wrap(services.ErrExternal, "mineru", "get_task", "decode response", err)
	}
	return TaskStatus{
		TaskID:     taskID,
		State:      strings.ToLower(strings.TrimSpace(status.State)),
		FullZipURL: strings.TrimSpace(status.FullZipURL),
		ErrMsg:     strings.TrimSpace(status.ErrMsg),
	}, nil
}

func (c *Client) do(ctx context.Context, method, path string, body io.Reader) (json.RawMessage, error) {
	operation := strings.ToLower(method) + " " + path
	endpoint := c.baseURL + path
	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return nil, services.Wrap(services.ErrExternal, "mineru", operation, "build request", err)
	}
	if c.apiToken != "" {
		req.Header.Set("Authorization", "Bearer "+c.apiToken)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "mineru", operation, "request failed", err)
	}
	defer resp.Body.Close()
	raw, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return nil, services.Wrap(services.ErrTransient, "mineru", operation, "read body", err)
	}
	if resp.StatusCode >= http.StatusInternalServerError {
		return nil, services.Wrap(services.ErrTransient, "mineru", operation,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	if resp.StatusCode >= http.StatusMultipleChoices {
		return nil, services.Wrap(services.ErrExternal, "mineru", operation,
			fmt.Sprintf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw))), nil)
	}
	var envelope apiEnvelope
	if err := json.Unmarshal(raw, &envelope); err != nil {
		return nil, services.Wrap(services.ErrExternal, "mineru", operation, "decode envelope", err)
	}
	if envelope.Code != 0 {
		return nil, services.Wrap(services.ErrExternal, "mineru", operation,
			fmt.Sprintf("api code %d: %s", envelope.Code, strings.TrimSpace(envelope.Msg)), nil)
	}
	return envelope.Data, nil
}
