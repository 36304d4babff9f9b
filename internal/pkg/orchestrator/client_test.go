package orchestrator

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/bytedance/sonic"
)

// TestCheckAgreement verifies the request body and the decoded verdict.
func TestCheckAgreement(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/v1/agreement" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		var body struct {
			Issue IssueRef `json:"issue"`
			Roles []string `json:"roles"`
		}
		raw, _ := io.ReadAll(r.Body)
		if err := sonic.Unmarshal(raw, &body); err != nil {
			t.Errorf("bad body: %v", err)
		}
		if body.Issue.Number != 12 || len(body.Roles) != 2 {
			t.Errorf("unexpected body %+v", body)
		}
		w.Header().Set("Content-Type", "application/json")
		_, _ = io.WriteString(w, `{"agreed":true}`)
	}))
	defer srv.Close()

	c := New(Conf{BaseUrl: srv.URL})
	agreed, err := c.CheckAgreement(context.Background(), IssueRef{Repository: "o/r", Number: 12}, []string{"architect", "qa"})
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !agreed {
		t.Fatalf("expected agreement")
	}
}

// TestCreateStoriesError verifies non-2xx responses surface as errors.
func TestCreateStoriesError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	c := New(Conf{BaseUrl: srv.URL})
	if _, err := c.CreateMultiRepositoryStories(context.Background(), "p", nil, nil); err == nil {
		t.Fatalf("expected error")
	}
}

// TestNotConfigured verifies calls fail fast without a base url.
func TestNotConfigured(t *testing.T) {
	c := New(Conf{})
	if err := c.GatherFeedback(context.Background(), IssueRef{}, nil); !errors.Is(err, ErrNotConfigured) {
		t.Fatalf("expected ErrNotConfigured, got %v", err)
	}
}
