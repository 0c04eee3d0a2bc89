package api

import (
	"bytes"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"strings"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"

	"github.com/seantiz/fam/internal/model"
	"github.com/seantiz/fam/internal/session"
)

func postJSON(t *testing.T, url string, body any) *http.Response {
	t.Helper()
	b, err := json.Marshal(body)
	if err != nil {
		t.Fatalf("marshal body: %v", err)
	}
	resp, err := http.Post(url, "application/json", bytes.NewReader(b))
	if err != nil {
		t.Fatalf("POST %s: %v", url, err)
	}
	return resp
}

func createTask(t *testing.T, baseURL string, body createTaskRequest) model.Statistics {
	t.Helper()
	resp := postJSON(t, baseURL+"/v1/tasks", body)
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusCreated {
		t.Fatalf("create status = %d, want 201", resp.StatusCode)
	}

	var st model.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return st
}

// waitComplete polls until the named task reports completion.
func waitComplete(t *testing.T, srv *Server, name string) {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	for time.Now().Before(deadline) {
		task, ok := srv.tasks.Get(name)
		if !ok {
			t.Fatalf("task %q not registered", name)
		}
		if task.IsComplete() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %q did not complete", name)
}

func TestCreateTask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	st := createTask(t, ts.URL, createTaskRequest{
		Label:  "reindex",
		Action: "noop",
		Items:  []string{"a", "b", "c"},
	})

	if !strings.HasPrefix(st.Name, "reindex (") || !strings.HasSuffix(st.Name, ")") {
		t.Errorf("name = %q, want \"reindex (<token>)\"", st.Name)
	}
	if st.Label != "reindex" {
		t.Errorf("label = %q, want %q", st.Label, "reindex")
	}
	if st.Added != 3 {
		t.Errorf("added = %d, want 3", st.Added)
	}
	if !srv.tasks.Has(st.Name) {
		t.Errorf("task %q not visible after create", st.Name)
	}

	waitComplete(t, srv, st.Name)
}

func TestCreateTaskValidation(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	negative := -1
	tests := []struct {
		name string
		body any
		want int
	}{
		{"missing label", createTaskRequest{Action: "noop"}, http.StatusBadRequest},
		{"missing action", createTaskRequest{Label: "x"}, http.StatusBadRequest},
		{"unknown action", createTaskRequest{Label: "x", Action: "nope"}, http.StatusBadRequest},
		{"negative save interval", createTaskRequest{Label: "x", Action: "noop", SaveInterval: &negative}, http.StatusBadRequest},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp := postJSON(t, ts.URL+"/v1/tasks", tt.body)
			defer resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}

	if n := srv.tasks.Len(); n != 0 {
		t.Errorf("registry has %d tasks after rejected requests, want 0", n)
	}
}

func TestCreateTaskInvalidJSON(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Post(ts.URL+"/v1/tasks", "application/json", strings.NewReader("{not json"))
	if err != nil {
		t.Fatalf("POST /v1/tasks: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusBadRequest {
		t.Errorf("status = %d, want 400", resp.StatusCode)
	}
}

func TestCreateTaskSessionUnavailable(t *testing.T) {
	src := session.NewMemorySource()
	src.FailWith(errors.New("backend down"))
	srv := newTestServerWith(t, testOptions{source: src})
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp := postJSON(t, ts.URL+"/v1/tasks", createTaskRequest{Label: "x", Action: "noop"})
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", resp.StatusCode)
	}
	if n := srv.tasks.Len(); n != 0 {
		t.Errorf("registry has %d tasks, want 0", n)
	}
}

func TestGetTask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTask(t, ts.URL, createTaskRequest{Label: "nightly/export", Action: "noop", Items: []string{"1"}})
	waitComplete(t, srv, created.Name)

	resp, err := http.Get(ts.URL + "/v1/tasks/" + url.PathEscape(created.Name))
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var st model.Statistics
	if err := json.NewDecoder(resp.Body).Decode(&st); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	if st.Name != created.Name {
		t.Errorf("name = %q, want %q", st.Name, created.Name)
	}
	if !st.Complete || st.Successful != 1 {
		t.Errorf("complete = %v, successful = %d; want true, 1", st.Complete, st.Successful)
	}
}

func TestGetTaskNotFound(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	resp, err := http.Get(ts.URL + "/v1/tasks/" + url.PathEscape("ghost (00000000-0000-0000-0000-000000000000)"))
	if err != nil {
		t.Fatalf("GET task: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("status = %d, want 404", resp.StatusCode)
	}
}

func TestHeadTask(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTask(t, ts.URL, createTaskRequest{Label: "probe", Action: "noop"})

	tests := []struct {
		name string
		task string
		want int
	}{
		{"present", created.Name, http.StatusOK},
		{"absent", "probe (missing)", http.StatusNotFound},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			resp, err := http.Head(ts.URL + "/v1/tasks/" + url.PathEscape(tt.task))
			if err != nil {
				t.Fatalf("HEAD task: %v", err)
			}
			resp.Body.Close()
			if resp.StatusCode != tt.want {
				t.Errorf("status = %d, want %d", resp.StatusCode, tt.want)
			}
		})
	}
}

func TestGetTaskFailures(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	created := createTask(t, ts.URL, createTaskRequest{Label: "broken", Action: "fail", Items: []string{"x", "y"}})
	waitComplete(t, srv, created.Name)

	resp, err := http.Get(ts.URL + "/v1/tasks/" + url.PathEscape(created.Name) + "/failures")
	if err != nil {
		t.Fatalf("GET failures: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d, want 200", resp.StatusCode)
	}

	var body taskFailuresResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	var items []string
	for _, f := range body.Failures {
		if f.Task != created.Name {
			t.Errorf("failure task = %q, want %q", f.Task, created.Name)
		}
		items = append(items, f.Item)
	}
	if len(items) == 2 && items[0] > items[1] {
		items[0], items[1] = items[1], items[0]
	}
	if diff := cmp.Diff([]string{"x", "y"}, items); diff != "" {
		t.Errorf("failed items mismatch (-want +got):\n%s", diff)
	}
}

func TestListTasks(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	a := createTask(t, ts.URL, createTaskRequest{Label: "a", Action: "noop"})
	b := createTask(t, ts.URL, createTaskRequest{Label: "b", Action: "noop"})

	resp, err := http.Get(ts.URL + "/v1/tasks")
	if err != nil {
		t.Fatalf("GET /v1/tasks: %v", err)
	}
	defer resp.Body.Close()

	var body listTasksResponse
	if err := json.NewDecoder(resp.Body).Decode(&body); err != nil {
		t.Fatalf("decode response: %v", err)
	}

	if diff := cmp.Diff([]string{a.Name, b.Name}, body.Tasks); diff != "" {
		t.Errorf("tasks mismatch (-want +got):\n%s", diff)
	}
	if body.Total != 2 {
		t.Errorf("total = %d, want 2", body.Total)
	}
}
