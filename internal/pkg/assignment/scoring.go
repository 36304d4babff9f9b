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

package assignment

import (
	"slices"
	"strings"
)

type Reason string

const (
	ReasonAutoEligible        Reason = "auto_eligible"
	ReasonManualOverride      Reason = "manual_override"
	ReasonWorkloadLimit       Reason = "workload_limit"
	ReasonBlockedDependency   Reason = "blocked_dependency"
	ReasonComplexityThreshold Reason = "complexity_threshold"
)

type Complexity string

const (
	ComplexityLow    Complexity = "low"
	ComplexityMedium Complexity = "medium"
	ComplexityHigh   Complexity = "high"
)

// Effort is the workload weight of a story of this complexity.
func (c Complexity) Effort() float64 {
	switch c {
	case ComplexityMedium:
		return 2.0
	case ComplexityHigh:
		return 4.0
	default:
		return 1.0
	}
}

type Priority string

const (
	PriorityLow      Priority = "low"
	PriorityNormal   Priority = "normal"
	PriorityHigh     Priority = "high"
	PriorityCritical Priority = "critical"
)

// Metadata carries the optional hints a story may provide.
type Metadata struct {
	EstimatedHours     float64  `json:"estimatedHours,omitempty"`
	StoryPoints        int      `json:"storyPoints,omitempty"`
	TargetRepositories []string `json:"targetRepositories,omitempty"`
	Priority           string   `json:"priority,omitempty"`
	Dependencies       []string `json:"dependencies,omitempty"`
}

var (
	highComplexityKeywords = []string{
		"architecture", "migration", "migrate", "security", "performance",
		"integration", "complex", "multiple repositories", "system-wide",
		"redesign", "entire", "zero downtime", "refactor", "overhaul",
	}
	mediumComplexityKeywords = []string{
		"api", "database", "authentication", "workflow", "business logic",
	}
	criticalPriorityKeywords = []string{
		"critical", "urgent", "hotfix", "security vulnerability",
		"production down", "outage", "emergency",
	}
	highPriorityKeywords = []string{
		"important", "high priority", "blocker", "deadline",
		"customer impact", "revenue impact",
	}
)

func countKeywords(content string, keywords []string) int {
	n := 0
	for _, k := range keywords {
		if strings.Contains(content, k) {
			n++
		}
	}
	return n
}

func containsAny(content string, keywords []string) bool {
	return slices.ContainsFunc(keywords, func(k string) bool { return strings.Contains(content, k) })
}

// StoryComplexity scores the story text and metadata hints.
func StoryComplexity(content string, meta *Metadata) Complexity {
	content = strings.ToLower(content)
	high := countKeywords(content, highComplexityKeywords)
	medium := countKeywords(content, mediumComplexityKeywords)

	if meta != nil {
		if len(meta.TargetRepositories) > 1 {
			high++
		}
		switch {
		case meta.EstimatedHours > 20:
			high++
		case meta.EstimatedHours > 8:
			medium++
		}
		switch {
		case meta.StoryPoints > 8:
			high++
		case meta.StoryPoints > 3:
			medium++
		}
	}

	switch {
	case high >= 2:
		return ComplexityHigh
	case high >= 1 || medium >= 2:
		return ComplexityMedium
	default:
		return ComplexityLow
	}
}

// TaskPriority scans the story text first and falls back to the metadata priority.
func TaskPriority(content string, meta *Metadata) Priority {
	content = strings.ToLower(content)
	switch {
	case containsAny(content, criticalPriorityKeywords):
		return PriorityCritical
	case containsAny(content, highPriorityKeywords):
		return PriorityHigh
	}
	if meta != nil {
		switch strings.ToLower(meta.Priority) {
		case "critical", "urgent":
			return PriorityCritical
		case "high", "important":
			return PriorityHigh
		case "low":
			return PriorityLow
		}
	}
	return PriorityNormal
}
