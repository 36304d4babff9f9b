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

package workflow

import (
	"context"
	"fmt"
	"slices"
	"strconv"
	"strings"

	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/orchestrator"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm"
)

// Orchestrator generates role feedback and cross-repository tickets.
type Orchestrator interface {
	GatherFeedback(ctx context.Context, issue orchestrator.IssueRef, roles []string) error
	CheckAgreement(ctx context.Context, issue orchestrator.IssueRef, roles []string) (bool, error)
	CreateMultiRepositoryStories(ctx context.Context, prompt string, roles, targets []string) (map[string]orchestrator.Ticket, error)
}

// Assigner decides who picks up a story that became ready.
type Assigner interface {
	ProcessAssignment(ctx context.Context, storyId, content string, meta *assignment.Metadata, manualOverride bool) assignment.Decision
}

// Event is one trigger of the state machine.
type Event struct {
	Repository   string
	IssueNumber  int
	TriggerEvent string
	Action       string
	// Labels is the label set seen by the trigger; nil means fetch it.
	Labels      []string
	CommentBody string
	Actor       string
}

type Result struct {
	InitialState StoryState `json:"initialState"`
	FinalState   StoryState `json:"finalState"`
	Steps        int        `json:"steps"`
	Transitions  []string   `json:"transitions"`
	HaltReason   string     `json:"haltReason"`
	Labels       []string   `json:"labels"`
}

type Processor struct {
	conf         Conf
	issues       scm.IssueService
	orchestrator Orchestrator
	assigner     Assigner
	metrics      *metrics.Metrics
	log          *logger.Logger
}

// NewProcessor creates a processor. assigner may be nil to skip assignment.
func NewProcessor(conf Conf, issues scm.IssueService, orch Orchestrator, assigner Assigner, m *metrics.Metrics) *Processor {
	conf.SetDefaults()
	return &Processor{
		conf:         conf,
		issues:       issues,
		orchestrator: orch,
		assigner:     assigner,
		metrics:      m,
		log:          logger.Channel("workflow"),
	}
}

// run is the per-call state: the working label set and a lazily loaded issue.
type run struct {
	ev     Event
	labels []string
	issue  *scm.Issue
}

func (p *Processor) maxSteps() int {
	_, limit := p.conf.Limits(nil)
	return 2*max(limit, p.conf.AutoConsensus.IterationLimit) + 8
}

// ProcessStoryState runs the state machine until it reaches a terminal
// state, stops making progress, or a state waits for outside input. Effect
// failures and an unreadable issue are logged and do not fail the call.
func (p *Processor) ProcessStoryState(ctx context.Context, ev Event) (*Result, error) {
	r := &run{ev: ev, labels: slices.Clone(ev.Labels)}
	if ev.Labels == nil {
		issue, err := p.issues.GetIssue(ctx, ev.Repository, ev.IssueNumber)
		if err != nil {
			p.log.Errorw("failed to load issue", "repository", ev.Repository, "issue", ev.IssueNumber, "error", err)
			return &Result{HaltReason: "issue unavailable", Transitions: []string{}}, nil
		}
		r.issue = issue
		r.labels = slices.Clone(issue.Labels)
	}
	if _, malformed := Iteration(r.labels); malformed {
		p.log.Warnw("unparseable iteration label, counting from 0", "repository", ev.Repository, "issue", ev.IssueNumber)
	}

	res := &Result{}
	var prev StoryState
	for step := 0; ; step++ {
		if step >= p.maxSteps() {
			res.HaltReason = "step limit reached"
			break
		}
		state, ok := CurrentState(r.labels)
		if !ok {
			res.HaltReason = "no story state label"
			break
		}
		if step == 0 {
			res.InitialState = state
		}
		res.FinalState = state
		if step > 0 && state == prev {
			res.HaltReason = "no progress"
			break
		}
		if !state.IsTerminal() && slices.Contains(r.labels, LabelAutoPaused) {
			res.HaltReason = "automation paused"
			break
		}

		in := TransitionInput{State: state, Labels: slices.Clone(r.labels), Actor: ev.Actor, Conf: p.conf}
		if state == StateReviewing {
			in.Agreed = p.checkAgreement(ctx, r)
		}
		out := Transition(in)
		res.Steps++

		if err := p.apply(ctx, r, out.Effects); err != nil {
			res.HaltReason = err.Error()
			break
		}
		if now, ok := CurrentState(r.labels); ok && now != state {
			res.Transitions = append(res.Transitions, string(state)+"->"+string(now))
			res.FinalState = now
			p.metrics.StoryTransitioned(string(state), string(now))
			p.log.Infow("story transitioned", "repository", ev.Repository, "issue", ev.IssueNumber, "from", state, "to", now)
		}
		if out.Halt {
			res.HaltReason = out.HaltReason
			break
		}
		prev = state
	}
	res.Labels = r.labels
	p.log.Infow("story processed",
		"repository", ev.Repository,
		"issue", ev.IssueNumber,
		"trigger", ev.TriggerEvent,
		"action", ev.Action,
		"state", res.FinalState,
		"steps", res.Steps,
		"halt", res.HaltReason)
	return res, nil
}

func (p *Processor) ref(r *run) orchestrator.IssueRef {
	return orchestrator.IssueRef{Repository: r.ev.Repository, Number: r.ev.IssueNumber}
}

func (p *Processor) checkAgreement(ctx context.Context, r *run) bool {
	agreed, err := p.orchestrator.CheckAgreement(ctx, p.ref(r), rolesOf(r.labels, p.conf))
	if err != nil {
		p.log.Errorw("check agreement failed", "repository", r.ev.Repository, "issue", r.ev.IssueNumber, "error", err)
		return false
	}
	return agreed
}

// apply executes effects in order against the working set. Only a failed
// effect marked HaltOnError is returned.
func (p *Processor) apply(ctx context.Context, r *run, effects []SideEffect) error {
	repo, number := r.ev.Repository, r.ev.IssueNumber
	for _, e := range effects {
		var err error
		switch e.Kind {
		case EffectAddLabel:
			if slices.Contains(r.labels, e.Label) {
				continue
			}
			if err = p.issues.AddLabel(ctx, repo, number, e.Label); err == nil {
				r.labels = append(r.labels, e.Label)
			}
		case EffectRemoveLabel:
			if !slices.Contains(r.labels, e.Label) {
				continue
			}
			if err = p.issues.RemoveLabel(ctx, repo, number, e.Label); err == nil {
				r.labels = slices.DeleteFunc(r.labels, func(l string) bool { return l == e.Label })
			}
		case EffectComment:
			err = p.issues.AddComment(ctx, repo, number, e.Body)
		case EffectGatherFeedback:
			err = p.orchestrator.GatherFeedback(ctx, p.ref(r), e.Roles)
		case EffectCreateTickets:
			err = p.createTickets(ctx, r, e)
		case EffectAssign:
			err = p.assign(ctx, r)
		}
		if err == nil {
			continue
		}
		p.log.Errorw("side effect failed", "repository", repo, "issue", number, "effect", e.String(), "error", err)
		if e.HaltOnError {
			return fmt.Errorf("%s failed", e.Kind)
		}
	}
	return nil
}

func (p *Processor) loadIssue(ctx context.Context, r *run) (*scm.Issue, error) {
	if r.issue != nil {
		return r.issue, nil
	}
	issue, err := p.issues.GetIssue(ctx, r.ev.Repository, r.ev.IssueNumber)
	if err != nil {
		return nil, err
	}
	r.issue = issue
	return issue, nil
}

func (p *Processor) createTickets(ctx context.Context, r *run, e SideEffect) error {
	issue, err := p.loadIssue(ctx, r)
	if err != nil {
		return err
	}
	tickets, err := p.orchestrator.CreateMultiRepositoryStories(ctx, issue.Title+"\n\n"+issue.Body, e.Roles, e.Targets)
	if err != nil {
		return err
	}
	if len(tickets) == 0 {
		return nil
	}
	keys := make([]string, 0, len(tickets))
	for k := range tickets {
		keys = append(keys, k)
	}
	slices.Sort(keys)

	var b strings.Builder
	b.WriteString("🎫 **Repository stories created**\n\n")
	for _, k := range keys {
		t := tickets[k]
		fmt.Fprintf(&b, "- **%s**: %s#%d", k, t.Repository, t.IssueNumber)
		if t.Url != "" {
			fmt.Fprintf(&b, " (%s)", t.Url)
		}
		b.WriteString("\n")
	}
	if err := p.issues.AddComment(ctx, r.ev.Repository, r.ev.IssueNumber, b.String()); err != nil {
		p.log.Warnw("failed to post ticket summary", "repository", r.ev.Repository, "issue", r.ev.IssueNumber, "error", err)
	}
	return nil
}

func (p *Processor) assign(ctx context.Context, r *run) error {
	if p.assigner == nil {
		return nil
	}
	issue, err := p.loadIssue(ctx, r)
	if err != nil {
		return err
	}
	storyId := fmt.Sprintf("%s#%d", r.ev.Repository, r.ev.IssueNumber)
	d := p.assigner.ProcessAssignment(ctx, storyId, issue.Title+"\n\n"+issue.Body, nil, false)
	if !d.ShouldAssign {
		p.log.Infow("story not assigned", "storyId", storyId, "reason", d.Reason, "explanation", d.Explanation)
		return nil
	}
	if _, err := p.issues.UpdateIssue(ctx, r.ev.Repository, r.ev.IssueNumber, scm.IssueUpdate{Assignees: []string{d.Assignee}}); err != nil {
		return err
	}
	details := []Detail{
		{Key: "Priority", Value: string(d.Priority)},
		{Key: "Complexity", Value: string(d.Complexity)},
		{Key: "Estimated effort", Value: strconv.FormatFloat(d.EstimatedEffort, 'f', 1, 64)},
	}
	return p.issues.AddComment(ctx, r.ev.Repository, r.ev.IssueNumber, AssignmentComment(d.Assignee, d.Explanation, details))
}
