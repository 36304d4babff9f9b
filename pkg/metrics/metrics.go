// Copyright 2025 Arcentra Authors.
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//      http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package metrics

import (
	"net/http"

	"github.com/arcentrix/storyflow/pkg/http/middleware"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/google/wire"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "storyflow"

// ProviderSet is a Wire provider set for metrics
var ProviderSet = wire.NewSet(
	NewMetrics,
)

type Conf struct {
	Enabled bool   `mapstructure:"enabled"`
	Path    string `mapstructure:"path"`
}

func (c *Conf) SetDefaults() {
	if c.Path == "" {
		c.Path = "/metrics"
	}
}

// Metrics owns the registry and the domain counters.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	registry           *prometheus.Registry
	failuresClassified *prometheus.CounterVec
	retryAttempts      *prometheus.CounterVec
	escalations        prometheus.Counter
	storyTransitions   *prometheus.CounterVec
	webhookEvents      *prometheus.CounterVec
}

// NewMetrics creates the registry with runtime, HTTP and domain collectors.
func NewMetrics() *Metrics {
	m := &Metrics{
		registry: prometheus.NewRegistry(),
		failuresClassified: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "failures_classified_total",
			Help:      "Pipeline failures by category and severity",
		}, []string{"category", "severity"}),
		retryAttempts: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "retry_attempts_total",
			Help:      "Pipeline retry attempts by outcome",
		}, []string{"success"}),
		escalations: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "escalations_total",
			Help:      "Escalation records created",
		}),
		storyTransitions: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "story_transitions_total",
			Help:      "Story workflow state transitions",
		}, []string{"from", "to"}),
		webhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "webhook_events_total",
			Help:      "Webhook deliveries by event key and result status",
		}, []string{"event", "status"}),
	}
	m.registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		m.failuresClassified,
		m.retryAttempts,
		m.escalations,
		m.storyTransitions,
		m.webhookEvents,
	)
	if err := middleware.RegisterHttpMetrics(m.registry); err != nil {
		logger.Warnw("failed to register HTTP metrics", "error", err)
	}
	return m
}

func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves the registry in the Prometheus exposition format.
func (m *Metrics) Handler() http.Handler {
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

func (m *Metrics) FailureClassified(category, severity string) {
	if m == nil {
		return
	}
	m.failuresClassified.WithLabelValues(category, severity).Inc()
}

func (m *Metrics) RetryAttempted(success bool) {
	if m == nil {
		return
	}
	label := "false"
	if success {
		label = "true"
	}
	m.retryAttempts.WithLabelValues(label).Inc()
}

func (m *Metrics) Escalated() {
	if m == nil {
		return
	}
	m.escalations.Inc()
}

func (m *Metrics) StoryTransitioned(from, to string) {
	if m == nil {
		return
	}
	m.storyTransitions.WithLabelValues(from, to).Inc()
}

func (m *Metrics) WebhookHandled(event, status string) {
	if m == nil {
		return
	}
	if event == "" {
		event = "unknown"
	}
	m.webhookEvents.WithLabelValues(event, status).Inc()
}
