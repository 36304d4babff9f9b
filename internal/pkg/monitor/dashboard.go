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

package monitor

import (
	"context"
	"math"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/pkg/classifier"
)

const dashboardRecentLimit = 10

type FailureDashboard struct {
	Summary        FailureSummary `json:"summary"`
	ByCategory     map[string]int `json:"byCategory"`
	BySeverity     map[string]int `json:"bySeverity"`
	ByRepository   map[string]int `json:"byRepository"`
	RecentFailures []FailureBrief `json:"recentFailures"`
	Patterns       []PatternBrief `json:"patterns"`
}

type FailureSummary struct {
	TotalFailures  int       `json:"totalFailures"`
	TimePeriodDays int       `json:"timePeriodDays"`
	LastUpdated    time.Time `json:"lastUpdated"`
}

type FailureBrief struct {
	FailureId      string                `json:"id"`
	Repository     string                `json:"repository"`
	Category       model.FailureCategory `json:"category"`
	Severity       model.FailureSeverity `json:"severity"`
	JobName        string                `json:"jobName"`
	FailureMessage string                `json:"failureMessage"`
	DetectedAt     time.Time             `json:"detectedAt"`
}

type PatternBrief struct {
	PatternId    string                `json:"patternId"`
	Category     model.FailureCategory `json:"category"`
	Description  string                `json:"description"`
	FailureCount int                   `json:"failureCount"`
	Repositories []string              `json:"repositories"`
}

// FailureDashboard aggregates failures detected in the last days.
func (m *Monitor) FailureDashboard(ctx context.Context, repository string, days int) (*FailureDashboard, error) {
	now := m.now()
	since := now.AddDate(0, 0, -days)
	failures, err := m.pipelines.ListFailures(ctx, &repo.FailureQuery{Repository: repository, Since: since})
	if err != nil {
		return nil, err
	}
	patterns, err := m.pipelines.ListPatterns(ctx, since)
	if err != nil {
		return nil, err
	}

	d := &FailureDashboard{
		Summary:        FailureSummary{TotalFailures: len(failures), TimePeriodDays: days, LastUpdated: now.UTC()},
		ByCategory:     map[string]int{},
		BySeverity:     map[string]int{},
		ByRepository:   map[string]int{},
		RecentFailures: []FailureBrief{},
		Patterns:       make([]PatternBrief, 0, len(patterns)),
	}
	for _, f := range failures {
		d.ByCategory[string(f.Category)]++
		d.BySeverity[string(f.Severity)]++
		d.ByRepository[f.Repository]++
	}
	for _, f := range tail(failures, dashboardRecentLimit) {
		d.RecentFailures = append(d.RecentFailures, FailureBrief{
			FailureId:      f.FailureId,
			Repository:     f.Repository,
			Category:       f.Category,
			Severity:       f.Severity,
			JobName:        f.JobName,
			FailureMessage: classifier.Truncate(f.FailureMessage, 100),
			DetectedAt:     f.DetectedAt,
		})
	}
	for _, p := range patterns {
		d.Patterns = append(d.Patterns, PatternBrief{
			PatternId:    p.PatternId,
			Category:     p.Category,
			Description:  p.Description,
			FailureCount: p.FailureCount,
			Repositories: p.Repositories,
		})
	}
	return d, nil
}

type RetryDashboard struct {
	RetrySummary      RetrySummary      `json:"retrySummary"`
	EscalationSummary EscalationSummary `json:"escalationSummary"`
	RecentRetries     []RetryBrief      `json:"recentRetries"`
	RecentEscalations []EscalationBrief `json:"recentEscalations"`
	LastUpdated       time.Time         `json:"lastUpdated"`
}

type RetrySummary struct {
	TotalRetries      int     `json:"totalRetries"`
	SuccessfulRetries int     `json:"successfulRetries"`
	FailedRetries     int     `json:"failedRetries"`
	SuccessRate       float64 `json:"successRate"`
	TimePeriodDays    int     `json:"timePeriodDays"`
}

type EscalationSummary struct {
	TotalEscalations    int `json:"totalEscalations"`
	ResolvedEscalations int `json:"resolvedEscalations"`
	PendingEscalations  int `json:"pendingEscalations"`
	TimePeriodDays      int `json:"timePeriodDays"`
}

type RetryBrief struct {
	AttemptId     string    `json:"id"`
	Repository    string    `json:"repository"`
	AttemptNumber int       `json:"attemptNumber"`
	Success       bool      `json:"success"`
	AttemptedAt   time.Time `json:"attemptedAt"`
	DelaySeconds  int       `json:"delaySeconds"`
}

type EscalationBrief struct {
	EscalationId    string    `json:"id"`
	Repository      string    `json:"repository"`
	FailurePattern  string    `json:"failurePattern"`
	FailureCount    int       `json:"failureCount"`
	EscalationLevel string    `json:"escalationLevel"`
	EscalatedAt     time.Time `json:"escalatedAt"`
	Resolved        bool      `json:"resolved"`
}

// RetryDashboard aggregates retry attempts and escalations of the last days.
func (m *Monitor) RetryDashboard(ctx context.Context, repository string, days int) (*RetryDashboard, error) {
	now := m.now()
	since := now.AddDate(0, 0, -days)
	attempts, err := m.pipelines.ListAttempts(ctx, repository, since)
	if err != nil {
		return nil, err
	}
	escalations, err := m.pipelines.ListEscalations(ctx, repository, since)
	if err != nil {
		return nil, err
	}

	d := &RetryDashboard{
		RetrySummary:      RetrySummary{TotalRetries: len(attempts), TimePeriodDays: days},
		EscalationSummary: EscalationSummary{TotalEscalations: len(escalations), TimePeriodDays: days},
		RecentRetries:     []RetryBrief{},
		RecentEscalations: []EscalationBrief{},
		LastUpdated:       now.UTC(),
	}
	for _, a := range attempts {
		if a.Success {
			d.RetrySummary.SuccessfulRetries++
		}
	}
	d.RetrySummary.FailedRetries = d.RetrySummary.TotalRetries - d.RetrySummary.SuccessfulRetries
	if d.RetrySummary.TotalRetries > 0 {
		rate := float64(d.RetrySummary.SuccessfulRetries) / float64(d.RetrySummary.TotalRetries) * 100
		d.RetrySummary.SuccessRate = math.Round(rate*100) / 100
	}
	for _, e := range escalations {
		if e.Resolved {
			d.EscalationSummary.ResolvedEscalations++
		}
	}
	d.EscalationSummary.PendingEscalations = d.EscalationSummary.TotalEscalations - d.EscalationSummary.ResolvedEscalations

	for _, a := range tail(attempts, dashboardRecentLimit) {
		d.RecentRetries = append(d.RecentRetries, RetryBrief{
			AttemptId:     a.AttemptId,
			Repository:    a.Repository,
			AttemptNumber: a.AttemptNumber,
			Success:       a.Success,
			AttemptedAt:   a.AttemptedAt,
			DelaySeconds:  a.RetryDelaySeconds,
		})
	}
	for _, e := range tail(escalations, dashboardRecentLimit) {
		d.RecentEscalations = append(d.RecentEscalations, EscalationBrief{
			EscalationId:    e.EscalationId,
			Repository:      e.Repository,
			FailurePattern:  e.FailurePattern,
			FailureCount:    e.FailureCount,
			EscalationLevel: e.EscalationLevel,
			EscalatedAt:     e.EscalatedAt,
			Resolved:        e.Resolved,
		})
	}
	return d, nil
}

func tail[T any](list []T, n int) []T {
	if len(list) <= n {
		return list
	}
	return list[len(list)-n:]
}
