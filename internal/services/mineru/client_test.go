package mineru

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"

	"papermill/internal/config"
	"papermill/internal/services"
)

func newTestClient(t *testing.T, handler http.Handler) *Client {
	t.Helper()
	server := httptest.NewServer(handler)
	t.Cleanup(server.Close)
	return NewClient(config.MinerU{APIToken: "test-token", ModelVersion: "vlm"}, WithBaseURL(server.URL))
}

func TestCreateTask(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodPost || r.URL.Path != "/extract/task" {
			t.Errorf("unexpected request: %s %s", r.Method, r.URL.Path)
		}
		if got := r.Header.Get("Authorization"); got != "Bearer test-token" {
			t.Errorf("missing bearer token, got %q", got)
		}
		var body map[string]string
		if err := json.NewDecoder(r.Body).Decode(&body); err != nil {
			t.Errorf("decode request: %v", err)
		}
		if body["url"] != "https://oss.example.com/b/papers/a.pdf" {
			t.Errorf("unexpected source url: %q", body["url"])
		}
		if body["model_version"] != "vlm" {
			t.Errorf("unexpected model version: %q", body["model_version"])
		}
		_ = json.NewEncoder(w).Encode(map[string]any{
			"code": 0,
			"data": map[string]string{"task_id": "task-123"},
		})
	}))

	taskID, err := client.CreateTask(context.Background(), "https://oss.example.com/b/papers/a.pdf")
	if err != nil {
		t.Fatalf("CreateTask: %v", err)
	}
	if taskID != "task-123" {
		t.Fatalf("unexpected task id: %q", taskID)
	}
}

func TestCreateTaskAPIError(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = json.NewEncoder(w).Encode(map[string]any{"code": -500, "msg": "quota exhausted"})
	}))

	_, err := client.CreateTask(context.Background(), "https://oss.example.com/b/papers/a.pdf")
	if err == nil {
		t.Fatal("expected api error")
	}
	if !errors.Is(err, services.ErrExternal) {
		t.Fatalf("expected ErrExternal, got %v", err)
	}
	if !strings.Contains(err.Error(), "quota exhausted") {
		t.Fatalf("expected api message in error, got %v", err)
	}
}

func TestGetTaskStates(t *testing.T) {
	responses := map[string]map[string]string{
		"task-run":  {"state": "running"},
		"task-done": {"state": "done", "full_zip_url": "https://cdn.example.com/task-done.zip"},
		"task-fail": {"state": "failed", "err_msg": "unreadable pdf"},
	}
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		id := strings.TrimPrefix(r.URL.Path, "/extract/task/")
		data, ok := responses[id]
		if !ok {
			t.Errorf("unexpected task id %q", id)
		}
		_ = json.NewEncoder(w).Encode(map[string]any{"code": 0, "data": data})
	}))

	ctx := context.Background()

	status, err := client.GetTask(ctx, "task-run")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if status.State != StateRunning || status.Terminal() {
		t.Fatalf("unexpected running status: %+v", status)
	}

	status, err = client.GetTask(ctx, "task-done")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if status.State != StateDone || !status.Terminal() || status.FullZipURL == "" {
		t.Fatalf("unexpected done status: %+v", status)
	}

	status, err = client.GetTask(ctx, "task-fail")
	if err != nil {
		t.Fatalf("GetTask: %v", err)
	}
	if status.State != StateFailed || !status.Terminal() || status.ErrMsg != "unreadable pdf" {
		t.Fatalf("unexpected failed status: %+v", status)
	}
}

func TestGetTaskServerErrorIsTransient(t *testing.T) {
	client := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, "upstream overloaded", http.StatusBadGateway)
	}))

	_, err := client.GetTask(context.Background(), "task-1")
	if err == nil {
		t.Fatal("expected error")
	}
	if !errors.Is(err, services.ErrTransient) {
		t.Fatalf("expected ErrTransient for 5xx, got %v", err)
	}
}
