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
	"fmt"
	"math"
	"sort"
	"time"
)

// Workload is the derived load of one agent.
type Workload struct {
	Agent                 string  `json:"agent"`
	ActiveStories         int     `json:"activeStories"`
	WeightedWorkload      float64 `json:"weightedWorkload"`
	SuccessRate           float64 `json:"successRate"`
	AverageCompletionTime float64 `json:"averageCompletionTime"`
}

type AgentMetrics struct {
	Workload
	PriorityWorkload    map[Priority]float64   `json:"priorityWorkloadDistribution"`
	ComplexityWorkload  map[Complexity]float64 `json:"complexityWorkloadDistribution"`
	CapacityUtilization float64                `json:"capacityUtilization"`
}

type Recommendation struct {
	Type       string `json:"type"`
	Message    string `json:"message"`
	Suggestion string `json:"suggestion"`
}

type WorkloadReport struct {
	AgentMetrics       []AgentMetrics   `json:"agentMetrics"`
	Recommendations    []Recommendation `json:"recommendations"`
	OverallUtilization float64          `json:"overallUtilization"`
}

type Statistics struct {
	TotalProcessed         int                 `json:"totalProcessed"`
	Assigned               int                 `json:"assigned"`
	AssignmentRate         float64             `json:"assignmentRate"`
	Reasons                map[Reason]int      `json:"reasons"`
	AgentWorkloads         map[string]Workload `json:"agentWorkloads"`
	PriorityDistribution   map[Priority]int    `json:"priorityDistribution"`
	ComplexityDistribution map[Complexity]int  `json:"complexityDistribution"`
	TotalAgents            int                 `json:"totalAgents"`
}

func round2(v float64) float64 {
	return math.Round(v*100) / 100
}

func (e *Engine) workload(agent string) Workload {
	agg := e.aggregate(agent)
	w := Workload{
		Agent:            agent,
		ActiveStories:    agg.active,
		WeightedWorkload: agg.weighted,
		SuccessRate:      agg.successRate(),
	}
	if agg.completed > 0 {
		w.AverageCompletionTime = round2(agg.completionHours / float64(agg.completed))
	}
	return w
}

// Workload returns the current load of an agent.
func (e *Engine) Workload(agent string) Workload {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.workload(agent)
}

func (e *Engine) agentMetrics(agent string) AgentMetrics {
	agg := e.aggregate(agent)
	m := AgentMetrics{
		Workload:           e.workload(agent),
		PriorityWorkload:   make(map[Priority]float64, len(agg.byPriority)),
		ComplexityWorkload: make(map[Complexity]float64, len(agg.byComplexity)),
	}
	for k, v := range agg.byPriority {
		m.PriorityWorkload[k] = v
	}
	for k, v := range agg.byComplexity {
		m.ComplexityWorkload[k] = v
	}
	if e.conf.MaxConcurrent > 0 {
		m.CapacityUtilization = round2(agg.weighted / float64(e.conf.MaxConcurrent*2) * 100)
	}
	return m
}

// AgentMetrics returns the detailed metrics of an agent.
func (e *Engine) AgentMetrics(agent string) AgentMetrics {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return e.agentMetrics(agent)
}

// WorkloadRecommendations flags agents above 80% or below 50% capacity.
func (e *Engine) WorkloadRecommendations() WorkloadReport {
	e.mu.RLock()
	defer e.mu.RUnlock()

	report := WorkloadReport{AgentMetrics: make([]AgentMetrics, 0, len(e.agents))}
	for _, agent := range e.agents {
		report.AgentMetrics = append(report.AgentMetrics, e.agentMetrics(agent))
	}
	sort.SliceStable(report.AgentMetrics, func(i, j int) bool {
		return report.AgentMetrics[i].CapacityUtilization < report.AgentMetrics[j].CapacityUtilization
	})

	var overloaded, underutilized []string
	var total float64
	for _, m := range report.AgentMetrics {
		total += m.CapacityUtilization
		switch {
		case m.CapacityUtilization > 80:
			overloaded = append(overloaded, m.Agent)
		case m.CapacityUtilization < 50:
			underutilized = append(underutilized, m.Agent)
		}
	}
	if len(overloaded) > 0 {
		report.Recommendations = append(report.Recommendations, Recommendation{
			Type:       "rebalance",
			Message:    fmt.Sprintf("Agents %v are overloaded", overloaded),
			Suggestion: "Consider redistributing work or reducing assignment limits",
		})
		if len(underutilized) > 0 {
			report.Recommendations = append(report.Recommendations, Recommendation{
				Type:       "redistribute",
				Message:    "Workload imbalance detected",
				Suggestion: fmt.Sprintf("Redistribute work from %v to %v", overloaded, underutilized),
			})
		}
	}
	if n := len(report.AgentMetrics); n > 0 {
		report.OverallUtilization = round2(total / float64(n))
	}
	return report
}

// Statistics summarises the whole history.
func (e *Engine) Statistics() Statistics {
	e.mu.RLock()
	defer e.mu.RUnlock()

	stats := Statistics{
		TotalProcessed:         len(e.history),
		Reasons:                map[Reason]int{},
		AgentWorkloads:         map[string]Workload{},
		PriorityDistribution:   map[Priority]int{},
		ComplexityDistribution: map[Complexity]int{},
		TotalAgents:            len(e.agents),
	}
	for _, r := range e.history {
		if r.ShouldAssign {
			stats.Assigned++
		}
		stats.Reasons[r.Reason]++
		stats.PriorityDistribution[r.Priority]++
		stats.ComplexityDistribution[r.Complexity]++
	}
	if stats.TotalProcessed > 0 {
		stats.AssignmentRate = round2(float64(stats.Assigned) / float64(stats.TotalProcessed) * 100)
	}
	for _, agent := range e.agents {
		stats.AgentWorkloads[agent] = e.workload(agent)
	}
	return stats
}

// Queue returns the positive decisions in chronological order.
func (e *Engine) Queue() []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()

	queue := make([]Record, 0, len(e.history))
	for _, r := range e.history {
		if r.ShouldAssign {
			queue = append(queue, *r)
		}
	}
	sort.SliceStable(queue, func(i, j int) bool { return queue[i].Timestamp.Before(queue[j].Timestamp) })
	return queue
}

// History returns a copy of every record newer than since.
func (e *Engine) History(since time.Time) []Record {
	e.mu.RLock()
	defer e.mu.RUnlock()

	out := make([]Record, 0, len(e.history))
	for _, r := range e.history {
		if !r.Timestamp.Before(since) {
			out = append(out, *r)
		}
	}
	return out
}
