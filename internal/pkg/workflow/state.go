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
	"slices"
	"strconv"
	"strings"
)

// StoryState is the lifecycle state of a story issue, stored as a story/<state> label.
type StoryState string

const (
	StateDraft        StoryState = "draft"
	StateEnriching    StoryState = "enriching"
	StateReviewing    StoryState = "reviewing"
	StateConsensus    StoryState = "consensus"
	StateBlocked      StoryState = "blocked"
	StateReady        StoryState = "ready"
	StateFinalized    StoryState = "finalized"
	StateUserApproved StoryState = "user-approved"
	StateArchived     StoryState = "archived"
	StateSplit        StoryState = "split"
)

// lifecycle is the precedence order used when an issue carries several state labels.
var lifecycle = []StoryState{
	StateDraft,
	StateEnriching,
	StateReviewing,
	StateConsensus,
	StateBlocked,
	StateReady,
	StateFinalized,
	StateUserApproved,
	StateArchived,
	StateSplit,
}

const (
	storyPrefix       = "story/"
	iterationPrefix   = "iteration/"
	consensusPrefix   = "consensus/"
	rolePrefix        = "role/"
	LabelFeedback     = "trigger/feedback"
	LabelIterate      = "trigger/iterate"
	LabelNeedApproval = "needs/user-approval"
	LabelUserApproved = "approved/user"
	LabelAutoEnabled  = "auto/enabled"
	LabelAutoPaused   = "auto/paused"
	LabelIterLimit    = "blocking/iteration-limit"
	LabelNoConsensus  = "blocking/no-consensus"
)

func (s StoryState) Label() string {
	return storyPrefix + string(s)
}

func (s StoryState) IsTerminal() bool {
	return s == StateArchived || s == StateSplit
}

// ParseState maps a story/<state> label to its state.
func ParseState(label string) (StoryState, bool) {
	name, ok := strings.CutPrefix(label, storyPrefix)
	if !ok {
		return "", false
	}
	st := StoryState(name)
	if !slices.Contains(lifecycle, st) {
		return "", false
	}
	return st, true
}

// CurrentState derives the state from a label set. A terminal label always
// wins; otherwise the earliest state in the lifecycle is used.
func CurrentState(labels []string) (StoryState, bool) {
	var found []StoryState
	for _, l := range labels {
		if st, ok := ParseState(l); ok {
			if st.IsTerminal() {
				return st, true
			}
			found = append(found, st)
		}
	}
	if len(found) == 0 {
		return "", false
	}
	best := found[0]
	for _, st := range found[1:] {
		if slices.Index(lifecycle, st) < slices.Index(lifecycle, best) {
			best = st
		}
	}
	return best, true
}

type PatternKind int

const (
	PatternPrefix PatternKind = iota
	PatternExact
)

// LabelPattern selects labels either by prefix or by exact name.
type LabelPattern struct {
	Kind  PatternKind
	Value string
}

func Prefix(s string) LabelPattern { return LabelPattern{Kind: PatternPrefix, Value: s} }

func Exact(s string) LabelPattern { return LabelPattern{Kind: PatternExact, Value: s} }

// ParsePattern reads the glob form: "needs/*" is a prefix, anything else is exact.
func ParsePattern(s string) LabelPattern {
	if prefix, ok := strings.CutSuffix(s, "*"); ok && strings.HasSuffix(prefix, "/") {
		return Prefix(prefix)
	}
	return Exact(s)
}

func (p LabelPattern) String() string {
	if p.Kind == PatternPrefix {
		return p.Value + "*"
	}
	return p.Value
}

// Matches reports whether label is selected by pattern.
func Matches(p LabelPattern, label string) bool {
	if p.Kind == PatternPrefix {
		return strings.HasPrefix(label, p.Value)
	}
	return label == p.Value
}

func matchesAny(patterns []LabelPattern, label string) bool {
	return slices.ContainsFunc(patterns, func(p LabelPattern) bool { return Matches(p, label) })
}

// terminalCleanup is stripped when a story is archived or split.
var terminalCleanup = []LabelPattern{
	Prefix(storyPrefix),
	Prefix(consensusPrefix),
	Prefix(iterationPrefix),
	Prefix("needs/"),
	Prefix("approved/"),
	Prefix("blocking/"),
	Prefix("trigger/"),
	Exact(LabelAutoEnabled),
	Exact(LabelAutoPaused),
}

// cleanupRules lists the labels each state strips while it is processed.
var cleanupRules = map[StoryState][]LabelPattern{
	StateDraft: {
		Prefix(consensusPrefix),
		Prefix(iterationPrefix),
		Prefix("needs/"),
		Prefix("approved/"),
		Prefix("blocking/"),
	},
	StateEnriching: {
		Prefix("needs/"),
		Prefix("approved/"),
		Prefix("blocking/"),
	},
	StateReviewing:    {Prefix("blocking/")},
	StateConsensus:    {Prefix("trigger/"), Prefix("blocking/")},
	StateBlocked:      {Prefix("trigger/"), Prefix(iterationPrefix)},
	StateReady:        {Prefix("trigger/"), Prefix("blocking/")},
	StateFinalized:    {Prefix("trigger/")},
	StateUserApproved: {Prefix("needs/"), Prefix("approved/")},
	StateArchived:     terminalCleanup,
	StateSplit:        terminalCleanup,
}

// CleanupPatterns returns the cleanup rule of a state.
func CleanupPatterns(s StoryState) []LabelPattern {
	return cleanupRules[s]
}

// StaleLabels returns the labels the state strips, never the state's own label.
func StaleLabels(s StoryState, labels []string) []string {
	var stale []string
	for _, l := range labels {
		if l == s.Label() {
			continue
		}
		if matchesAny(cleanupRules[s], l) {
			stale = append(stale, l)
		}
	}
	return stale
}

// Iteration returns the highest iteration/<n> value; unparseable values count as 0.
func Iteration(labels []string) (n int, malformed bool) {
	for _, l := range labels {
		v, ok := strings.CutPrefix(l, iterationPrefix)
		if !ok {
			continue
		}
		i, err := strconv.Atoi(v)
		if err != nil || i < 0 {
			malformed = true
			continue
		}
		n = max(n, i)
	}
	return n, malformed
}

func IterationLabel(n int) string {
	return iterationPrefix + strconv.Itoa(n)
}

// ConsensusBand buckets a 0-100 score into its consensus/<band> label.
func ConsensusBand(score int) string {
	var band string
	switch {
	case score <= 20:
		band = "0-20"
	case score <= 40:
		band = "21-40"
	case score <= 60:
		band = "41-60"
	case score <= 80:
		band = "61-80"
	default:
		band = "81-100"
	}
	return consensusPrefix + band
}

// Roles returns the role/<name> labels as role names.
func Roles(labels []string) []string {
	var roles []string
	for _, l := range labels {
		if r, ok := strings.CutPrefix(l, rolePrefix); ok && r != "" {
			roles = append(roles, r)
		}
	}
	return roles
}

func RoleLabel(role string) string {
	return rolePrefix + role
}
