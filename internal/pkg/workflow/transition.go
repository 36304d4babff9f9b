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

// Package workflow drives story issues through their label-encoded lifecycle.
package workflow

import (
	"fmt"
	"slices"
	"strings"
)

type AutoConsensusConf struct {
	Enabled        bool `mapstructure:"enabled"`
	Threshold      int  `mapstructure:"threshold" validate:"gte=0,lte=100"`
	IterationLimit int  `mapstructure:"iterationLimit" validate:"gte=0"`
}

type Conf struct {
	IterationLimit     int               `mapstructure:"iterationLimit" validate:"gte=0"`
	ConsensusThreshold int               `mapstructure:"consensusThreshold" validate:"gte=0,lte=100"`
	AutoConsensus      AutoConsensusConf `mapstructure:"autoConsensus"`
	Roles              []string          `mapstructure:"roles"`
	Stakeholders       []string          `mapstructure:"stakeholders"`
	TargetRepositories []string          `mapstructure:"targetRepositories"`
}

func (c *Conf) SetDefaults() {
	if c.IterationLimit == 0 {
		c.IterationLimit = 5
	}
	if c.ConsensusThreshold == 0 {
		c.ConsensusThreshold = 80
	}
	if c.AutoConsensus.Threshold == 0 {
		c.AutoConsensus.Threshold = 70
	}
	if c.AutoConsensus.IterationLimit == 0 {
		c.AutoConsensus.IterationLimit = 3
	}
	if len(c.Roles) == 0 {
		c.Roles = []string{"system-architect", "lead-developer", "product-owner", "qa-engineer"}
	}
}

// Limits returns the consensus threshold and iteration limit in effect.
// Auto-consensus is on when configured or when the issue carries auto/enabled.
func (c Conf) Limits(labels []string) (threshold, limit int) {
	if c.AutoConsensus.Enabled || slices.Contains(labels, LabelAutoEnabled) {
		return c.AutoConsensus.Threshold, c.AutoConsensus.IterationLimit
	}
	return c.ConsensusThreshold, c.IterationLimit
}

const (
	scoreAgreed    = 100
	scoreDisagreed = 40
)

type EffectKind string

const (
	EffectAddLabel       EffectKind = "add_label"
	EffectRemoveLabel    EffectKind = "remove_label"
	EffectComment        EffectKind = "comment"
	EffectGatherFeedback EffectKind = "gather_feedback"
	EffectCreateTickets  EffectKind = "create_tickets"
	EffectAssign         EffectKind = "assign"
)

// SideEffect is one action a transition asks the executor to perform.
type SideEffect struct {
	Kind    EffectKind
	Label   string
	Body    string
	Roles   []string
	Targets []string
	// HaltOnError stops processing when the effect fails.
	HaltOnError bool
}

func (e SideEffect) String() string {
	switch e.Kind {
	case EffectAddLabel, EffectRemoveLabel:
		return string(e.Kind) + ":" + e.Label
	default:
		return string(e.Kind)
	}
}

type TransitionInput struct {
	State  StoryState
	Labels []string
	// Agreed is the role agreement observed for a story under review.
	Agreed bool
	Actor  string
	Conf   Conf
}

type TransitionResult struct {
	Next       StoryState
	Effects    []SideEffect
	Halt       bool
	HaltReason string
}

// plan accumulates effects against a private copy of the labels so no-op
// label changes are never emitted.
type plan struct {
	labels  []string
	effects []SideEffect
}

func (p *plan) add(label string) {
	if slices.Contains(p.labels, label) {
		return
	}
	p.labels = append(p.labels, label)
	p.effects = append(p.effects, SideEffect{Kind: EffectAddLabel, Label: label})
}

func (p *plan) remove(label string) {
	if !slices.Contains(p.labels, label) {
		return
	}
	p.labels = slices.DeleteFunc(p.labels, func(l string) bool { return l == label })
	p.effects = append(p.effects, SideEffect{Kind: EffectRemoveLabel, Label: label})
}

func (p *plan) removeMatching(pattern LabelPattern, keep string) {
	for _, l := range slices.Clone(p.labels) {
		if l != keep && Matches(pattern, l) {
			p.remove(l)
		}
	}
}

func (p *plan) do(effect SideEffect) {
	p.effects = append(p.effects, effect)
}

// moveTo swaps the state label. The new label goes on first so a failed
// removal never leaves the issue without a state.
func (p *plan) moveTo(from, to StoryState) {
	p.add(to.Label())
	p.remove(from.Label())
}

// Transition computes the next state and the ordered side effects for one
// processing step. It performs no I/O.
func Transition(in TransitionInput) TransitionResult {
	p := &plan{labels: slices.Clone(in.Labels)}
	for _, l := range StaleLabels(in.State, p.labels) {
		p.remove(l)
	}

	res := TransitionResult{Next: in.State}
	halt := func(reason string) TransitionResult {
		res.Effects = p.effects
		res.Halt = true
		res.HaltReason = reason
		return res
	}
	move := func(to StoryState) TransitionResult {
		p.moveTo(in.State, to)
		enter(p, in, to)
		res.Next = to
		res.Effects = p.effects
		return res
	}

	threshold, limit := in.Conf.Limits(p.labels)
	iteration, _ := Iteration(p.labels)

	switch in.State {
	case StateArchived, StateSplit:
		return halt("terminal state")

	case StateDraft:
		roles := Roles(p.labels)
		if len(roles) > 0 && !slices.Contains(p.labels, LabelFeedback) {
			return halt("waiting for " + LabelFeedback)
		}
		if len(roles) == 0 {
			for _, r := range in.Conf.Roles {
				p.add(RoleLabel(r))
			}
		}
		p.add(LabelFeedback)
		return move(StateEnriching)

	case StateEnriching:
		if iteration >= limit {
			p.add(LabelIterLimit)
			return move(StateBlocked)
		}
		p.do(SideEffect{Kind: EffectGatherFeedback, Roles: rolesOf(p.labels, in.Conf), HaltOnError: true})
		p.removeMatching(Prefix(iterationPrefix), "")
		p.add(IterationLabel(iteration + 1))
		p.removeMatching(Prefix("trigger/"), "")
		return move(StateReviewing)

	case StateReviewing:
		score := scoreDisagreed
		if in.Agreed {
			score = scoreAgreed
		}
		band := ConsensusBand(score)
		p.removeMatching(Prefix(consensusPrefix), band)
		p.add(band)
		switch {
		case score >= threshold:
			return move(StateConsensus)
		case iteration < limit:
			p.add(LabelIterate)
			return move(StateEnriching)
		default:
			p.add(LabelNoConsensus)
			return move(StateBlocked)
		}

	case StateConsensus:
		p.do(SideEffect{
			Kind:        EffectCreateTickets,
			Roles:       rolesOf(p.labels, in.Conf),
			Targets:     in.Conf.TargetRepositories,
			HaltOnError: true,
		})
		return move(StateReady)

	case StateBlocked:
		return halt("waiting for manual resolution")

	case StateReady:
		if slices.Contains(p.labels, StateFinalized.Label()) {
			return move(StateFinalized)
		}
		return halt("waiting for " + StateFinalized.Label())

	case StateFinalized:
		if slices.Contains(p.labels, LabelUserApproved) {
			return move(StateUserApproved)
		}
		p.add(LabelNeedApproval)
		return halt("waiting for " + LabelUserApproved)

	case StateUserApproved:
		p.do(SideEffect{Kind: EffectComment, Body: readinessComment(in.Actor)})
		return move(StateReady)
	}
	return halt(fmt.Sprintf("unknown state %q", in.State))
}

// enter appends the one-shot actions of arriving in a state.
func enter(p *plan, in TransitionInput, to StoryState) {
	switch to {
	case StateBlocked:
		p.do(SideEffect{Kind: EffectComment, Body: escalationComment(p.labels, in.Conf)})
	case StateReady:
		p.do(SideEffect{Kind: EffectAssign})
	}
}

func rolesOf(labels []string, conf Conf) []string {
	if roles := Roles(labels); len(roles) > 0 {
		return roles
	}
	return slices.Clone(conf.Roles)
}

func escalationComment(labels []string, conf Conf) string {
	_, limit := conf.Limits(labels)
	iteration, _ := Iteration(labels)

	var b strings.Builder
	b.WriteString("⚠️ **Story Blocked**\n\n")
	switch {
	case slices.Contains(labels, LabelNoConsensus):
		fmt.Fprintf(&b, "Consensus was not reached after %d of %d iterations.\n\n", iteration, limit)
	default:
		fmt.Fprintf(&b, "The iteration limit (%d) was reached before the story was reviewed.\n\n", limit)
	}
	if roles := Roles(labels); len(roles) > 0 {
		fmt.Fprintf(&b, "**Roles involved:** %s\n", strings.Join(roles, ", "))
	}
	if len(conf.Stakeholders) > 0 {
		mentions := make([]string, 0, len(conf.Stakeholders))
		for _, s := range conf.Stakeholders {
			mentions = append(mentions, "@"+strings.TrimPrefix(s, "@"))
		}
		fmt.Fprintf(&b, "**Stakeholders:** %s\n", strings.Join(mentions, ", "))
	}
	b.WriteString("\n**Suggested next steps:**\n")
	b.WriteString("- Refine the story and move it back to `story/draft` or `story/enriching`\n")
	b.WriteString("- Split it into smaller stories with `story/split`\n")
	b.WriteString("- Close it with `story/archived` if it is no longer needed\n")
	return b.String()
}

func readinessComment(actor string) string {
	by := ""
	if actor != "" {
		by = " by @" + actor
	}
	return fmt.Sprintf("✅ **Story approved**%s\n\nThe story is ready for development.", by)
}
