package github

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync/atomic"
	"testing"

	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/cenkalti/backoff/v4"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestClient(t *testing.T, h http.Handler) *Client {
	t.Helper()
	srv := httptest.NewServer(h)
	t.Cleanup(srv.Close)
	c := New(Conf{ApiBaseUrl: srv.URL, Token: "t0ken", MaxRetries: 2})
	c.newBackOff = func() backoff.BackOff { return &backoff.ZeroBackOff{} }
	return c
}

func TestGetIssueMapsLabels(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/repos/o/r/issues/5" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if r.Header.Get("Authorization") != "Bearer t0ken" {
			t.Errorf("missing auth header")
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"number":5,"title":"t","state":"open","labels":[{"name":"story/draft"},{"name":"iteration/2"}],"assignees":[{"login":"bot"}]}`)
	}))

	issue, err := c.GetIssue(context.Background(), "o/r", 5)
	require.NoError(t, err)
	assert.Equal(t, []string{"story/draft", "iteration/2"}, issue.Labels)
	assert.Equal(t, []string{"bot"}, issue.Assignees)
}

func TestRemoveLabelEscapesNameAndIgnoresNotFound(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodDelete {
			t.Errorf("expected DELETE, got %s", r.Method)
		}
		if !strings.HasSuffix(r.URL.EscapedPath(), "/labels/story%2Fdraft") {
			t.Errorf("unexpected path %s", r.URL.EscapedPath())
		}
		w.WriteHeader(http.StatusNotFound)
	}))

	if err := c.RemoveLabel(context.Background(), "o/r", 5, "story/draft"); err != nil {
		t.Fatalf("expected nil for absent label, got %v", err)
	}
}

func TestRetryOnServerError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if atomic.AddInt32(&calls, 1) < 3 {
			w.WriteHeader(http.StatusBadGateway)
			return
		}
		w.WriteHeader(http.StatusCreated)
		_, _ = io.WriteString(w, `{}`)
	}))

	if err := c.AddComment(context.Background(), "o/r", 1, "hello"); err != nil {
		t.Fatalf("expected success after retries, got %v", err)
	}
	if atomic.LoadInt32(&calls) != 3 {
		t.Fatalf("expected 3 calls, got %d", calls)
	}
}

func TestNoRetryOnClientError(t *testing.T) {
	var calls int32
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		atomic.AddInt32(&calls, 1)
		w.WriteHeader(http.StatusUnprocessableEntity)
	}))

	err := c.AddLabel(context.Background(), "o/r", 1, "story/ready")
	var apiErr *APIError
	require.ErrorAs(t, err, &apiErr)
	assert.Equal(t, http.StatusUnprocessableEntity, apiErr.StatusCode)
	assert.Equal(t, int32(1), atomic.LoadInt32(&calls))
}

func TestListIssuesSkipsPullRequests(t *testing.T) {
	c := newTestClient(t, http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "open", r.URL.Query().Get("state"))
		assert.Equal(t, "desc", r.URL.Query().Get("direction"))
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `[{"number":9,"pull_request":{"url":"x"}},{"number":8},{"number":7}]`)
	}))

	issues, err := c.ListIssues(context.Background(), "o/r", scm.ListIssuesOptions{Limit: 10})
	require.NoError(t, err)
	require.Len(t, issues, 2)
	assert.Equal(t, 8, issues[0].Number)
}

func TestGetWorkflowJobsAndLogs(t *testing.T) {
	mux := http.NewServeMux()
	mux.HandleFunc("/repos/o/r/actions/runs/42/jobs", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"total_count":1,"jobs":[{"id":7,"run_id":42,"name":"lint","status":"completed","conclusion":"failure","steps":[{"name":"flake8","conclusion":"failure","number":2}]}]}`)
	})
	mux.HandleFunc("/repos/o/r/actions/jobs/7/logs", func(w http.ResponseWriter, r *http.Request) {
		_, _ = io.WriteString(w, "flake8 error: E401")
	})
	c := newTestClient(t, mux)

	jobs, err := c.GetWorkflowJobs(context.Background(), "o/r", 42)
	require.NoError(t, err)
	require.Len(t, jobs, 1)
	assert.Equal(t, "failure", jobs[0].Conclusion)
	assert.Equal(t, "flake8", jobs[0].Steps[0].Name)

	logs, err := c.GetJobLogs(context.Background(), "o/r", 7)
	require.NoError(t, err)
	assert.Equal(t, "flake8 error: E401", logs)
}

func TestInvalidRepositoryName(t *testing.T) {
	c := New(Conf{})
	if _, err := c.GetIssue(context.Background(), "no-slash", 1); err == nil {
		t.Fatalf("expected error for invalid repository name")
	}
}
