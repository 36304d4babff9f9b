package workflow

import (
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func testConf() Conf {
	c := Conf{Stakeholders: []string{"alice", "@bob"}}
	c.SetDefaults()
	return c
}

func labelEffects(effects []SideEffect) []string {
	var out []string
	for _, e := range effects {
		if e.Kind == EffectAddLabel || e.Kind == EffectRemoveLabel {
			out = append(out, e.String())
		}
	}
	return out
}

func hasEffect(effects []SideEffect, kind EffectKind) bool {
	for _, e := range effects {
		if e.Kind == kind {
			return true
		}
	}
	return false
}

// TestMatches verifies prefix and exact label patterns.
func TestMatches(t *testing.T) {
	assert.True(t, Matches(ParsePattern("needs/*"), "needs/user-approval"))
	assert.False(t, Matches(ParsePattern("needs/*"), "needsless"))
	assert.True(t, Matches(ParsePattern("auto/paused"), "auto/paused"))
	assert.False(t, Matches(ParsePattern("auto/paused"), "auto/paused-later"))
	assert.Equal(t, PatternExact, ParsePattern("trigger*").Kind)
	assert.Equal(t, "consensus/*", Prefix("consensus/").String())
}

// TestCurrentState verifies terminal labels short-circuit and the earliest state wins otherwise.
func TestCurrentState(t *testing.T) {
	st, ok := CurrentState([]string{"story/ready", "story/enriching", "bug"})
	require.True(t, ok)
	assert.Equal(t, StateEnriching, st)

	st, ok = CurrentState([]string{"story/draft", "story/split"})
	require.True(t, ok)
	assert.Equal(t, StateSplit, st)

	_, ok = CurrentState([]string{"story/unknown", "bug"})
	assert.False(t, ok)
}

// TestIteration verifies the highest parseable iteration wins and garbage counts as 0.
func TestIteration(t *testing.T) {
	n, malformed := Iteration([]string{"iteration/2", "iteration/7"})
	assert.Equal(t, 7, n)
	assert.False(t, malformed)

	n, malformed = Iteration([]string{"iteration/abc"})
	assert.Equal(t, 0, n)
	assert.True(t, malformed)
}

// TestConsensusBand verifies the five score bands.
func TestConsensusBand(t *testing.T) {
	tests := map[int]string{
		0:   "consensus/0-20",
		20:  "consensus/0-20",
		40:  "consensus/21-40",
		60:  "consensus/41-60",
		80:  "consensus/61-80",
		100: "consensus/81-100",
	}
	for score, want := range tests {
		assert.Equal(t, want, ConsensusBand(score), "score %d", score)
	}
}

// TestTransitionReviewingIterates verifies a failed review below the limit goes back to enriching.
func TestTransitionReviewingIterates(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateReviewing,
		Labels: []string{"story/reviewing", "iteration/1", "role/qa-engineer"},
		Conf:   testConf(),
	})
	assert.False(t, out.Halt)
	assert.Equal(t, StateEnriching, out.Next)
	assert.Equal(t, []string{
		"add_label:consensus/21-40",
		"add_label:trigger/iterate",
		"add_label:story/enriching",
		"remove_label:story/reviewing",
	}, labelEffects(out.Effects))
}

// TestTransitionReviewingAtLimit verifies a failed review at the limit blocks the story.
func TestTransitionReviewingAtLimit(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateReviewing,
		Labels: []string{"story/reviewing", "iteration/5", "consensus/21-40"},
		Conf:   testConf(),
	})
	assert.Equal(t, StateBlocked, out.Next)
	assert.Contains(t, labelEffects(out.Effects), "add_label:"+LabelNoConsensus)
	assert.NotContains(t, labelEffects(out.Effects), "add_label:"+LabelIterate)

	var comment string
	for _, e := range out.Effects {
		if e.Kind == EffectComment {
			comment = e.Body
		}
	}
	assert.Contains(t, comment, "Consensus was not reached after 5 of 5 iterations.")
	assert.Contains(t, comment, "**Stakeholders:** @alice, @bob")
}

// TestTransitionReviewingAgreed verifies agreement replaces the band and reaches consensus.
func TestTransitionReviewingAgreed(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateReviewing,
		Labels: []string{"story/reviewing", "iteration/2", "consensus/21-40"},
		Agreed: true,
		Conf:   testConf(),
	})
	assert.Equal(t, StateConsensus, out.Next)
	assert.Equal(t, []string{
		"remove_label:consensus/21-40",
		"add_label:consensus/81-100",
		"add_label:story/consensus",
		"remove_label:story/reviewing",
	}, labelEffects(out.Effects))
}

// TestTransitionAutoConsensusLimits verifies the auto-consensus overrides.
func TestTransitionAutoConsensusLimits(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateReviewing,
		Labels: []string{"story/reviewing", "iteration/3", LabelAutoEnabled},
		Conf:   testConf(),
	})
	assert.Equal(t, StateBlocked, out.Next)

	conf := testConf()
	conf.AutoConsensus.Enabled = true
	threshold, limit := conf.Limits(nil)
	assert.Equal(t, 70, threshold)
	assert.Equal(t, 3, limit)
}

// TestTransitionEnriching verifies a feedback round bumps the iteration and consumes triggers.
func TestTransitionEnriching(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateEnriching,
		Labels: []string{"story/enriching", "iteration/2", LabelIterate, "needs/user-approval"},
		Conf:   testConf(),
	})
	assert.Equal(t, StateReviewing, out.Next)
	require.True(t, hasEffect(out.Effects, EffectGatherFeedback))
	assert.True(t, out.Effects[1].HaltOnError)
	assert.Equal(t, []string{
		"remove_label:needs/user-approval",
		"remove_label:iteration/2",
		"add_label:iteration/3",
		"remove_label:trigger/iterate",
		"add_label:story/reviewing",
		"remove_label:story/enriching",
	}, labelEffects(out.Effects))

	blocked := Transition(TransitionInput{
		State:  StateEnriching,
		Labels: []string{"story/enriching", "iteration/5"},
		Conf:   testConf(),
	})
	assert.Equal(t, StateBlocked, blocked.Next)
	assert.False(t, hasEffect(blocked.Effects, EffectGatherFeedback))
}

// TestTransitionBlockedResetsIteration verifies a blocked story drops its
// iteration count so a manual move back to enriching starts a fresh loop.
func TestTransitionBlockedResetsIteration(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateBlocked,
		Labels: []string{"story/blocked", "iteration/5", LabelNoConsensus},
		Conf:   testConf(),
	})
	assert.True(t, out.Halt)
	assert.Equal(t, []string{"remove_label:iteration/5"}, labelEffects(out.Effects))

	resumed := Transition(TransitionInput{
		State:  StateEnriching,
		Labels: []string{"story/enriching", LabelNoConsensus},
		Conf:   testConf(),
	})
	assert.Equal(t, StateReviewing, resumed.Next)
	assert.Contains(t, labelEffects(resumed.Effects), "add_label:iteration/1")
}

// TestTransitionDraft verifies role seeding and the wait for a feedback trigger.
func TestTransitionDraft(t *testing.T) {
	out := Transition(TransitionInput{State: StateDraft, Labels: []string{"story/draft", "iteration/4"}, Conf: testConf()})
	assert.Equal(t, StateEnriching, out.Next)
	added := labelEffects(out.Effects)
	assert.Contains(t, added, "remove_label:iteration/4")
	assert.Contains(t, added, "add_label:role/system-architect")
	assert.Contains(t, added, "add_label:"+LabelFeedback)

	waiting := Transition(TransitionInput{State: StateDraft, Labels: []string{"story/draft", "role/qa-engineer"}, Conf: testConf()})
	assert.True(t, waiting.Halt)
	assert.Empty(t, waiting.Effects)
}

// TestTransitionTerminal verifies terminal cleanup never adds a label and keeps its own.
func TestTransitionTerminal(t *testing.T) {
	out := Transition(TransitionInput{
		State:  StateArchived,
		Labels: []string{"story/archived", "story/ready", "story/split", "iteration/2", LabelAutoEnabled, "role/qa-engineer", LabelIterate},
		Conf:   testConf(),
	})
	assert.True(t, out.Halt)
	assert.Equal(t, StateArchived, out.Next)
	assert.Equal(t, []string{
		"remove_label:story/ready",
		"remove_label:story/split",
		"remove_label:iteration/2",
		"remove_label:auto/enabled",
		"remove_label:trigger/iterate",
	}, labelEffects(out.Effects))
}

// TestTransitionApproval verifies the finalized and user-approved steps.
func TestTransitionApproval(t *testing.T) {
	waiting := Transition(TransitionInput{State: StateFinalized, Labels: []string{"story/finalized"}, Conf: testConf()})
	assert.True(t, waiting.Halt)
	assert.Equal(t, []string{"add_label:" + LabelNeedApproval}, labelEffects(waiting.Effects))

	approved := Transition(TransitionInput{
		State:  StateFinalized,
		Labels: []string{"story/finalized", LabelNeedApproval, LabelUserApproved},
		Conf:   testConf(),
	})
	assert.Equal(t, StateUserApproved, approved.Next)

	ready := Transition(TransitionInput{
		State:  StateUserApproved,
		Labels: []string{"story/user-approved", LabelNeedApproval, LabelUserApproved},
		Actor:  "carol",
		Conf:   testConf(),
	})
	assert.Equal(t, StateReady, ready.Next)
	assert.Equal(t, EffectComment, ready.Effects[2].Kind)
	assert.True(t, strings.HasPrefix(ready.Effects[2].Body, "✅ **Story approved** by @carol"))
	assert.Equal(t, EffectAssign, ready.Effects[len(ready.Effects)-1].Kind)
}

// TestAssignmentComment verifies the assignment notification layout.
func TestAssignmentComment(t *testing.T) {
	got := AssignmentComment("copilot-sve-agent", "Manual override requested", []Detail{{Key: "Priority", Value: "high"}})
	want := "🤖 **Automated Assignment**\n\n" +
		"This issue has been automatically assigned to @copilot-sve-agent.\n\n" +
		"**Reason**: Manual override requested\n\n" +
		"**Assignment Details:**\n" +
		"- **Priority**: high\n\n" +
		"---\n" +
		"*This assignment was made by the storyflow automation system.*\n" +
		"*To override this assignment, update the assignee manually.*"
	assert.Equal(t, want, got)
}
