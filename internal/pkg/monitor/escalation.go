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
	"fmt"
	"sort"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/pkg/classifier"
	"gorm.io/datatypes"
)

const escalationWindow = 24 * time.Hour

// group keeps failures bucketed by key in first-seen order.
type group struct {
	keys    []string
	buckets map[string][]*model.PipelineFailure
}

func groupBy(failures []*model.PipelineFailure, key func(*model.PipelineFailure) string) *group {
	g := &group{buckets: make(map[string][]*model.PipelineFailure)}
	for _, f := range failures {
		k := key(f)
		if _, ok := g.buckets[k]; !ok {
			g.keys = append(g.keys, k)
		}
		g.buckets[k] = append(g.buckets[k], f)
	}
	return g
}

func escalationSignature(f *model.PipelineFailure) string {
	return string(f.Category) + "_" + f.JobName
}

// EscalationCandidates lists the repositories with unresolved failures inside
// the escalation window.
func (m *Monitor) EscalationCandidates(ctx context.Context) ([]string, error) {
	list, err := m.pipelines.ListFailingRepositories(ctx, m.now().Add(-escalationWindow))
	if err != nil {
		return nil, fmt.Errorf("list failing repositories: %w", err)
	}
	return list, nil
}

// CheckForEscalation escalates the first bucket of unresolved failures of the
// last day that reaches the threshold and has no active escalation within the cooldown.
// An empty repository checks every candidate repository on its own and returns
// the first escalation raised.
func (m *Monitor) CheckForEscalation(ctx context.Context, repository string) (*model.EscalationRecord, error) {
	if !m.conf.Escalation.Enabled {
		return nil, nil
	}
	if repository != "" {
		return m.checkRepository(ctx, repository)
	}
	candidates, err := m.EscalationCandidates(ctx)
	if err != nil {
		return nil, err
	}
	var first *model.EscalationRecord
	for _, candidate := range candidates {
		record, err := m.checkRepository(ctx, candidate)
		if err != nil {
			return first, err
		}
		if first == nil {
			first = record
		}
	}
	return first, nil
}

func (m *Monitor) checkRepository(ctx context.Context, repository string) (*model.EscalationRecord, error) {
	conf := m.conf.Escalation
	now := m.now()
	failures, err := m.pipelines.ListFailures(ctx, &repo.FailureQuery{
		Repository:     repository,
		Since:          now.Add(-escalationWindow),
		UnresolvedOnly: true,
	})
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}

	groups := groupBy(failures, escalationSignature)
	for _, signature := range groups.keys {
		bucket := groups.buckets[signature]
		if len(bucket) < conf.Threshold {
			continue
		}
		cooldown := now.Add(-time.Duration(conf.CooldownHours) * time.Hour)
		active, err := m.pipelines.FindActiveEscalation(ctx, repository, signature, cooldown)
		if err != nil {
			return nil, fmt.Errorf("find escalation: %w", err)
		}
		if active != nil {
			m.log.Debugw("escalation in cooldown", "repository", repository, "pattern", signature,
				"escalationId", active.EscalationId)
			continue
		}

		record := &model.EscalationRecord{
			EscalationId:     model.NewID("escalation"),
			Repository:       repository,
			FailurePattern:   signature,
			FailureCount:     len(bucket),
			EscalatedAt:      now,
			EscalationLevel:  model.EscalationLevelAgent,
			ChannelsUsed:     append([]string{}, conf.Channels...),
			ContactsNotified: append([]string{}, conf.Contacts...),
			Metadata: datatypes.JSONMap{
				"failure_ids": failureIds(bucket),
				"categories":  distinct(bucket, func(f *model.PipelineFailure) string { return string(f.Category) }),
				"severities":  distinct(bucket, func(f *model.PipelineFailure) string { return string(f.Severity) }),
			},
		}
		if err := m.pipelines.CreateEscalation(ctx, record); err != nil {
			return nil, fmt.Errorf("store escalation: %w", err)
		}
		m.metrics.Escalated()
		m.log.Warnw("escalating persistent failures", "repository", repository, "pattern", signature,
			"failures", len(bucket))
		return record, nil
	}
	return nil, nil
}

// AnalyzeFailurePatterns groups failures of the last days by category and key
// words, and stores one pattern for every group with at least two failures.
func (m *Monitor) AnalyzeFailurePatterns(ctx context.Context, days int) ([]*model.FailurePattern, error) {
	failures, err := m.pipelines.ListFailures(ctx, &repo.FailureQuery{Since: m.now().AddDate(0, 0, -days)})
	if err != nil {
		return nil, fmt.Errorf("list failures: %w", err)
	}

	groups := groupBy(failures, classifier.PatternSignature)
	patterns := make([]*model.FailurePattern, 0)
	for _, signature := range groups.keys {
		bucket := groups.buckets[signature]
		if len(bucket) < 2 {
			continue
		}
		p := &model.FailurePattern{
			PatternId:             model.NewID("pattern"),
			Signature:             signature,
			Category:              bucket[0].Category,
			Description:           classifier.PatternDescription(bucket),
			FailureCount:          len(bucket),
			Repositories:          distinct(bucket, func(f *model.PipelineFailure) string { return f.Repository }),
			FirstSeen:             bucket[0].DetectedAt,
			LastSeen:              bucket[0].DetectedAt,
			ResolutionSuggestions: classifier.ResolutionSuggestions(bucket[0].Category),
		}
		for _, f := range bucket[1:] {
			if f.DetectedAt.Before(p.FirstSeen) {
				p.FirstSeen = f.DetectedAt
			}
			if f.DetectedAt.After(p.LastSeen) {
				p.LastSeen = f.DetectedAt
			}
		}
		if err := m.pipelines.UpsertPattern(ctx, p); err != nil {
			return nil, fmt.Errorf("store pattern %s: %w", signature, err)
		}
		patterns = append(patterns, p)
	}
	m.log.Infow("analyzed failure patterns", "patterns", len(patterns), "failures", len(failures), "days", days)
	return patterns, nil
}

func failureIds(failures []*model.PipelineFailure) []string {
	ids := make([]string, len(failures))
	for i, f := range failures {
		ids[i] = f.FailureId
	}
	return ids
}

// distinct returns the sorted unique values of key over failures.
func distinct(failures []*model.PipelineFailure, key func(*model.PipelineFailure) string) []string {
	seen := make(map[string]struct{}, len(failures))
	out := make([]string, 0, len(failures))
	for _, f := range failures {
		v := key(f)
		if _, ok := seen[v]; ok {
			continue
		}
		seen[v] = struct{}{}
		out = append(out, v)
	}
	sort.Strings(out)
	return out
}
