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

// Package assignment decides whether a story is handed to an automation agent
// and balances the work across the agent pool.
package assignment

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"sync"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/pkg/logger"
)

const DefaultAgent = "copilot-sve-agent"

type Conf struct {
	MaxConcurrent int      `mapstructure:"maxConcurrent" validate:"gte=0"`
	DefaultAgent  string   `mapstructure:"defaultAgent"`
	Agents        []string `mapstructure:"agents"`
	MultiAgent    bool     `mapstructure:"multiAgent"`
}

func (c *Conf) SetDefaults() {
	if c.MaxConcurrent == 0 {
		c.MaxConcurrent = 5
	}
	if c.DefaultAgent == "" {
		c.DefaultAgent = DefaultAgent
	}
	if len(c.Agents) == 0 {
		c.Agents = []string{c.DefaultAgent, "copilot-dev-agent", "copilot-qa-agent"}
	}
}

// Decision is the outcome of one assignment request.
type Decision struct {
	StoryId         string     `json:"storyId"`
	ShouldAssign    bool       `json:"shouldAssign"`
	Assignee        string     `json:"assignee,omitempty"`
	Reason          Reason     `json:"reason"`
	Explanation     string     `json:"explanation"`
	Priority        Priority   `json:"priority"`
	Complexity      Complexity `json:"complexity"`
	EstimatedEffort float64    `json:"estimatedEffort"`
}

// Record is one entry of the assignment history.
type Record struct {
	Decision
	Timestamp   time.Time  `json:"timestamp"`
	Completed   bool       `json:"completed"`
	Success     bool       `json:"success"`
	CompletedAt *time.Time `json:"completedAt,omitempty"`
}

// aggregate is the running workload of one agent.
type aggregate struct {
	active          int
	completed       int
	successful      int
	weighted        float64
	completionHours float64
	byPriority      map[Priority]float64
	byComplexity    map[Complexity]float64
}

func newAggregate() *aggregate {
	return &aggregate{byPriority: map[Priority]float64{}, byComplexity: map[Complexity]float64{}}
}

// successRate is optimistic until the first completion is recorded.
func (a *aggregate) successRate() float64 {
	if a.completed == 0 || a.active == 0 {
		return 100
	}
	return float64(a.successful) / float64(a.active) * 100
}

// Engine keeps the assignment history and per-agent aggregates.
type Engine struct {
	mu         sync.RWMutex
	conf       Conf
	agents     []string
	history    []*Record
	aggregates map[string]*aggregate
	store      repo.IAssignmentRepository
	log        *logger.Logger
	now        func() time.Time
}

// NewEngine creates an engine. store may be nil to keep history in memory only.
func NewEngine(conf Conf, store repo.IAssignmentRepository) *Engine {
	conf.SetDefaults()
	e := &Engine{
		conf:       conf,
		aggregates: make(map[string]*aggregate),
		store:      store,
		log:        logger.Channel("assignment"),
		now:        time.Now,
	}
	e.EnableMultiAgent(conf.MultiAgent)
	return e
}

// EnableMultiAgent switches between the configured pool and the default agent alone.
func (e *Engine) EnableMultiAgent(enabled bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.conf.MultiAgent = enabled
	if enabled {
		e.agents = slices.Clone(e.conf.Agents)
	} else {
		e.agents = []string{e.conf.DefaultAgent}
	}
}

// Agents returns the agents currently eligible for work.
func (e *Engine) Agents() []string {
	e.mu.RLock()
	defer e.mu.RUnlock()
	return slices.Clone(e.agents)
}

// Restore rebuilds the history and aggregates from the store.
func (e *Engine) Restore(ctx context.Context) error {
	if e.store == nil {
		return nil
	}
	records, err := e.store.List(ctx)
	if err != nil {
		return fmt.Errorf("list assignment history: %w", err)
	}
	e.mu.Lock()
	defer e.mu.Unlock()
	e.history = e.history[:0]
	e.aggregates = make(map[string]*aggregate)
	for _, m := range records {
		r := fromModel(m)
		e.history = append(e.history, r)
		e.applyAssigned(r)
		if r.Completed {
			e.applyCompleted(r)
		}
	}
	e.log.Infow("restored assignment history", "records", len(records))
	return nil
}

// ProcessAssignment decides on a story and appends exactly one history record.
func (e *Engine) ProcessAssignment(ctx context.Context, storyId, content string, meta *Metadata, manualOverride bool) Decision {
	e.mu.Lock()
	d := e.decide(content, meta, manualOverride)
	d.StoryId = storyId
	r := &Record{Decision: d, Timestamp: e.now()}
	e.history = append(e.history, r)
	e.applyAssigned(r)
	e.mu.Unlock()

	if e.store != nil {
		if err := e.store.Append(ctx, toModel(r, manualOverride)); err != nil {
			e.log.Errorw("failed to persist assignment", "storyId", storyId, "error", err)
		}
	}
	if d.ShouldAssign {
		e.log.Infow("assignment decided", "storyId", storyId, "assignee", d.Assignee, "reason", d.Reason, "explanation", d.Explanation)
	} else {
		e.log.Infow("assignment skipped", "storyId", storyId, "reason", d.Reason, "explanation", d.Explanation)
	}
	return d
}

func (e *Engine) decide(content string, meta *Metadata, manualOverride bool) Decision {
	complexity := StoryComplexity(content, meta)
	if manualOverride {
		agent := e.selectAgent(PriorityNormal)
		if agent == "" {
			agent = e.agents[0]
		}
		return Decision{
			ShouldAssign:    true,
			Assignee:        agent,
			Reason:          ReasonManualOverride,
			Explanation:     "Manual override requested",
			Priority:        PriorityHigh,
			Complexity:      complexity,
			EstimatedEffort: 2.0,
		}
	}

	priority := TaskPriority(content, meta)
	d := Decision{Priority: priority, Complexity: complexity, EstimatedEffort: complexity.Effort()}
	if complexity == ComplexityHigh && priority != PriorityCritical {
		d.Reason = ReasonComplexityThreshold
		d.Explanation = fmt.Sprintf("Story complexity (%s) exceeds auto-assignment threshold", complexity)
		return d
	}
	agent := e.selectAgent(priority)
	if agent == "" {
		d.Reason = ReasonWorkloadLimit
		d.Explanation = "All agents at capacity"
		return d
	}
	d.ShouldAssign = true
	d.Assignee = agent
	d.Reason = ReasonAutoEligible
	d.Explanation = fmt.Sprintf("Story eligible for auto-assignment (complexity: %s, priority: %s)", complexity, priority)
	return d
}

type candidate struct {
	agent   string
	active  int
	success float64
}

// selectAgent ranks agents with spare capacity by load then success rate, or by
// success rate first for critical work. The default agent wins ties with the leader.
func (e *Engine) selectAgent(priority Priority) string {
	var candidates []candidate
	for _, agent := range e.agents {
		agg := e.aggregate(agent)
		if agg.active < e.conf.MaxConcurrent {
			candidates = append(candidates, candidate{agent: agent, active: agg.active, success: agg.successRate()})
		}
	}
	if len(candidates) == 0 {
		return ""
	}

	byLoad := func(a, b candidate) bool {
		if a.active != b.active {
			return a.active < b.active
		}
		return a.success > b.success
	}
	bySuccess := func(a, b candidate) bool {
		if a.success != b.success {
			return a.success > b.success
		}
		return a.active < b.active
	}
	less := byLoad
	if priority == PriorityCritical && len(candidates) > 1 {
		less = bySuccess
	}
	sort.SliceStable(candidates, func(i, j int) bool { return less(candidates[i], candidates[j]) })

	leader := candidates[0]
	for _, c := range candidates {
		if less(leader, c) {
			break
		}
		if c.agent == e.conf.DefaultAgent {
			return c.agent
		}
	}
	return leader.agent
}

func (e *Engine) aggregate(agent string) *aggregate {
	if agg, ok := e.aggregates[agent]; ok {
		return agg
	}
	return newAggregate()
}

func (e *Engine) applyAssigned(r *Record) {
	if !r.ShouldAssign || r.Assignee == "" {
		return
	}
	agg, ok := e.aggregates[r.Assignee]
	if !ok {
		agg = newAggregate()
		e.aggregates[r.Assignee] = agg
	}
	agg.active++
	agg.weighted += r.EstimatedEffort
	agg.byPriority[r.Priority] += r.EstimatedEffort
	agg.byComplexity[r.Complexity] += r.EstimatedEffort
}

func (e *Engine) applyCompleted(r *Record) {
	agg, ok := e.aggregates[r.Assignee]
	if !ok || !r.ShouldAssign {
		return
	}
	agg.completed++
	if r.Success {
		agg.successful++
	}
	if r.CompletedAt != nil {
		agg.completionHours += r.CompletedAt.Sub(r.Timestamp).Hours()
	}
}

// MarkAssignmentCompleted flags the latest open assignment of the story.
// It reports false when the story has no open assignment.
func (e *Engine) MarkAssignmentCompleted(ctx context.Context, storyId string, success bool) bool {
	e.mu.Lock()
	var target *Record
	for i := len(e.history) - 1; i >= 0; i-- {
		r := e.history[i]
		if r.StoryId == storyId && r.ShouldAssign && !r.Completed {
			target = r
			break
		}
	}
	if target == nil {
		e.mu.Unlock()
		return false
	}
	completedAt := e.now()
	target.Completed = true
	target.Success = success
	target.CompletedAt = &completedAt
	e.applyCompleted(target)
	e.mu.Unlock()

	if e.store != nil {
		if _, err := e.store.MarkCompleted(ctx, storyId, success); err != nil {
			e.log.Errorw("failed to persist assignment completion", "storyId", storyId, "error", err)
		}
	}
	return true
}

func toModel(r *Record, manualOverride bool) *model.AssignmentRecord {
	return &model.AssignmentRecord{
		StoryId:         r.StoryId,
		ShouldAssign:    r.ShouldAssign,
		Assignee:        r.Assignee,
		Reason:          string(r.Reason),
		Explanation:     r.Explanation,
		Priority:        string(r.Priority),
		Complexity:      string(r.Complexity),
		EstimatedEffort: r.EstimatedEffort,
		ManualOverride:  manualOverride,
		Completed:       r.Completed,
		Success:         r.Success,
		CompletedAt:     r.CompletedAt,
	}
}

func fromModel(m *model.AssignmentRecord) *Record {
	return &Record{
		Decision: Decision{
			StoryId:         m.StoryId,
			ShouldAssign:    m.ShouldAssign,
			Assignee:        m.Assignee,
			Reason:          Reason(m.Reason),
			Explanation:     m.Explanation,
			Priority:        Priority(m.Priority),
			Complexity:      Complexity(m.Complexity),
			EstimatedEffort: m.EstimatedEffort,
		},
		Timestamp:   m.CreatedAt,
		Completed:   m.Completed,
		Success:     m.Success,
		CompletedAt: m.CompletedAt,
	}
}
