package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

// TestDomainCounters verifies counters are registered and incremented.
func TestDomainCounters(t *testing.T) {
	m := NewMetrics()
	m.FailureClassified("linting", "medium")
	m.FailureClassified("linting", "medium")
	m.RetryAttempted(true)
	m.Escalated()
	m.StoryTransitioned("draft", "enriching")
	m.WebhookHandled("", "ignored")

	if got := testutil.ToFloat64(m.failuresClassified.WithLabelValues("linting", "medium")); got != 2 {
		t.Fatalf("expected 2 classified failures, got %v", got)
	}
	if got := testutil.ToFloat64(m.retryAttempts.WithLabelValues("true")); got != 1 {
		t.Fatalf("expected 1 successful retry, got %v", got)
	}
	if got := testutil.ToFloat64(m.webhookEvents.WithLabelValues("unknown", "ignored")); got != 1 {
		t.Fatalf("expected unknown event label, got %v", got)
	}
	if _, err := m.Registry().Gather(); err != nil {
		t.Fatalf("gather failed: %v", err)
	}
}

// TestNilMetrics verifies a nil receiver is a no-op.
func TestNilMetrics(t *testing.T) {
	var m *Metrics
	m.FailureClassified("a", "b")
	m.RetryAttempted(false)
	m.Escalated()
	m.StoryTransitioned("a", "b")
	m.WebhookHandled("a", "b")
	if m.Registry() != nil {
		t.Fatalf("expected nil registry")
	}
}
