package api

import (
	"net/http/httptest"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestListActions(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body listActionsResponse
	getJSON(t, ts.URL+"/v1/actions", &body)

	want := []string{"fail", "noop", "put", "sleep"}
	if diff := cmp.Diff(want, body.Actions); diff != "" {
		t.Errorf("actions mismatch (-want +got):\n%s", diff)
	}
}

func TestGetRunner(t *testing.T) {
	srv := newTestServer(t)
	ts := httptest.NewServer(srv.Router())
	defer ts.Close()

	var body runnerResponse
	getJSON(t, ts.URL+"/v1/runner", &body)

	if body.MaxWorkers != 2 {
		t.Errorf("max_workers = %d, want 2", body.MaxWorkers)
	}
	if body.PurgePolicy != "completed-only" {
		t.Errorf("purge_policy = %q, want %q", body.PurgePolicy, "completed-only")
	}
}
