package workflow

import (
	"context"
	"errors"
	"strings"
	"sync"
	"testing"

	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/orchestrator"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/arcentrix/storyflow/pkg/scm/scmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testRepo = "acme/stories"

type fakeOrchestrator struct {
	mu            sync.Mutex
	agreed        bool
	feedbackErr   error
	feedbackCalls int
	agreeCalls    int
	ticketCalls   int
	tickets       map[string]orchestrator.Ticket
}

func (f *fakeOrchestrator) GatherFeedback(context.Context, orchestrator.IssueRef, []string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.feedbackCalls++
	return f.feedbackErr
}

func (f *fakeOrchestrator) CheckAgreement(context.Context, orchestrator.IssueRef, []string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.agreeCalls++
	return f.agreed, nil
}

func (f *fakeOrchestrator) CreateMultiRepositoryStories(context.Context, string, []string, []string) (map[string]orchestrator.Ticket, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.ticketCalls++
	return f.tickets, nil
}

type fakeAssigner struct {
	decision assignment.Decision
	stories  []string
}

func (f *fakeAssigner) ProcessAssignment(_ context.Context, storyId, _ string, _ *assignment.Metadata, _ bool) assignment.Decision {
	f.stories = append(f.stories, storyId)
	return f.decision
}

func newIssue(issues *scmtest.Issues, number int, labels ...string) {
	issues.Put(testRepo, &scm.Issue{Number: number, Title: "Fix typo in readme", State: "open", Labels: labels})
}

func event(number int) Event {
	return Event{Repository: testRepo, IssueNumber: number, TriggerEvent: "issues", Action: "labeled", Actor: "carol"}
}

// TestProcessFullRun verifies a story flows from draft to ready and a second call is a no-op.
func TestProcessFullRun(t *testing.T) {
	ctx := context.Background()
	issues := scmtest.NewIssues()
	newIssue(issues, 1, "story/draft")
	orch := &fakeOrchestrator{
		agreed:  true,
		tickets: map[string]orchestrator.Ticket{"backend": {Repository: "acme/backend", IssueNumber: 12}},
	}
	assigner := &fakeAssigner{decision: assignment.Decision{
		ShouldAssign:    true,
		Assignee:        "copilot-sve-agent",
		Explanation:     "Story eligible for auto-assignment (complexity: low, priority: normal)",
		Priority:        assignment.PriorityNormal,
		Complexity:      assignment.ComplexityLow,
		EstimatedEffort: 1,
	}}
	p := NewProcessor(Conf{}, issues, orch, assigner, nil)

	res, err := p.ProcessStoryState(ctx, event(1))
	require.NoError(t, err)
	assert.Equal(t, StateDraft, res.InitialState)
	assert.Equal(t, StateReady, res.FinalState)
	assert.Equal(t, []string{"draft->enriching", "enriching->reviewing", "reviewing->consensus", "consensus->ready"}, res.Transitions)
	assert.Equal(t, "waiting for story/finalized", res.HaltReason)

	labels := issues.Labels(testRepo, 1)
	assert.ElementsMatch(t, []string{
		"story/ready", "iteration/1", "consensus/81-100",
		"role/system-architect", "role/lead-developer", "role/product-owner", "role/qa-engineer",
	}, labels)
	assert.ElementsMatch(t, labels, res.Labels)
	assert.Equal(t, 1, orch.feedbackCalls)
	assert.Equal(t, 1, orch.ticketCalls)
	assert.Equal(t, []string{testRepo + "#1"}, assigner.stories)

	require.Len(t, issues.Comments, 2)
	assert.Contains(t, issues.Comments[0].Body, "- **backend**: acme/backend#12")
	assert.True(t, strings.HasPrefix(issues.Comments[1].Body, "🤖 **Automated Assignment**"))
	got, err := issues.GetIssue(ctx, testRepo, 1)
	require.NoError(t, err)
	assert.Equal(t, []string{"copilot-sve-agent"}, got.Assignees)

	issues.ResetCalls()
	again, err := p.ProcessStoryState(ctx, event(1))
	require.NoError(t, err)
	assert.Empty(t, issues.Calls)
	assert.Empty(t, again.Transitions)
	assert.Equal(t, StateReady, again.FinalState)
}

// TestProcessIterationMonotonic verifies each round bumps the iteration by one until the story blocks.
func TestProcessIterationMonotonic(t *testing.T) {
	ctx := context.Background()
	issues := scmtest.NewIssues()
	newIssue(issues, 7, "story/enriching", "role/qa-engineer")
	orch := &fakeOrchestrator{}
	p := NewProcessor(Conf{}, issues, orch, nil, nil)

	res, err := p.ProcessStoryState(ctx, event(7))
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, res.FinalState)

	var iterations []string
	for _, c := range issues.Calls {
		if strings.HasPrefix(c, "add:7:iteration/") {
			iterations = append(iterations, strings.TrimPrefix(c, "add:7:"))
		}
	}
	assert.Equal(t, []string{"iteration/1", "iteration/2", "iteration/3", "iteration/4", "iteration/5"}, iterations)
	assert.Equal(t, 5, orch.feedbackCalls)
	assert.Equal(t, 5, orch.agreeCalls)

	labels := issues.Labels(testRepo, 7)
	assert.Contains(t, labels, LabelNoConsensus)
	assert.Contains(t, labels, "story/blocked")
	assert.NotContains(t, labels, LabelIterate)
	require.Len(t, issues.Comments, 1)
	assert.Contains(t, issues.Comments[0].Body, "Consensus was not reached after 5 of 5 iterations.")
}

// TestProcessResumeAfterBlock verifies a story moved out of blocked by hand gets a new review loop.
func TestProcessResumeAfterBlock(t *testing.T) {
	ctx := context.Background()
	issues := scmtest.NewIssues()
	newIssue(issues, 8, "story/enriching", "role/qa-engineer", "iteration/4")
	p := NewProcessor(Conf{}, issues, &fakeOrchestrator{}, nil, nil)

	res, err := p.ProcessStoryState(ctx, event(8))
	require.NoError(t, err)
	require.Equal(t, StateBlocked, res.FinalState)
	for _, l := range issues.Labels(testRepo, 8) {
		assert.False(t, strings.HasPrefix(l, "iteration/"), "stale label %s", l)
	}

	newIssue(issues, 8, "story/enriching", "role/qa-engineer", LabelNoConsensus)
	issues.ResetCalls()
	res, err = p.ProcessStoryState(ctx, event(8))
	require.NoError(t, err)
	assert.Equal(t, StateBlocked, res.FinalState)
	assert.Contains(t, issues.Calls, "add:8:iteration/1")
	assert.Contains(t, issues.Calls, "add:8:iteration/5")
}

// TestProcessTerminalShortCircuit verifies terminal stories are only cleaned up.
func TestProcessTerminalShortCircuit(t *testing.T) {
	ctx := context.Background()
	issues := scmtest.NewIssues()
	newIssue(issues, 3, "story/reviewing", "story/split", "consensus/21-40", LabelAutoPaused, "role/qa-engineer")
	orch := &fakeOrchestrator{}
	p := NewProcessor(Conf{}, issues, orch, nil, nil)

	res, err := p.ProcessStoryState(ctx, event(3))
	require.NoError(t, err)
	assert.Equal(t, StateSplit, res.FinalState)
	assert.Equal(t, "terminal state", res.HaltReason)
	assert.Equal(t, []string{"remove:3:story/reviewing", "remove:3:consensus/21-40", "remove:3:auto/paused"}, issues.Calls)
	assert.Zero(t, orch.agreeCalls)
	assert.ElementsMatch(t, []string{"story/split", "role/qa-engineer"}, issues.Labels(testRepo, 3))

	issues.ResetCalls()
	_, err = p.ProcessStoryState(ctx, event(3))
	require.NoError(t, err)
	assert.Empty(t, issues.Calls)
}

// TestProcessPaused verifies auto/paused stops all automation.
func TestProcessPaused(t *testing.T) {
	issues := scmtest.NewIssues()
	p := NewProcessor(Conf{}, issues, &fakeOrchestrator{}, nil, nil)

	ev := event(4)
	ev.Labels = []string{"story/draft", LabelAutoPaused}
	res, err := p.ProcessStoryState(context.Background(), ev)
	require.NoError(t, err)
	assert.Equal(t, "automation paused", res.HaltReason)
	assert.Empty(t, issues.Calls)
}

// TestProcessFailedRemovalKeepsLabel verifies the working set keeps labels that could not be removed.
func TestProcessFailedRemovalKeepsLabel(t *testing.T) {
	issues := scmtest.NewIssues()
	newIssue(issues, 5, "story/draft")
	issues.FailLabels = map[string]error{"story/draft": errors.New("forbidden")}
	orch := &fakeOrchestrator{}
	p := NewProcessor(Conf{}, issues, orch, nil, nil)

	res, err := p.ProcessStoryState(context.Background(), event(5))
	require.NoError(t, err)
	assert.Equal(t, "no progress", res.HaltReason)
	assert.Equal(t, StateDraft, res.FinalState)
	assert.Contains(t, res.Labels, "story/draft")
	assert.Contains(t, res.Labels, "story/enriching")
	assert.Zero(t, orch.feedbackCalls)
}

// TestProcessFeedbackFailureHalts verifies a failed feedback round leaves the iteration untouched.
func TestProcessFeedbackFailureHalts(t *testing.T) {
	issues := scmtest.NewIssues()
	newIssue(issues, 6, "story/enriching", "iteration/2")
	p := NewProcessor(Conf{}, issues, &fakeOrchestrator{feedbackErr: errors.New("llm unavailable")}, nil, nil)

	res, err := p.ProcessStoryState(context.Background(), event(6))
	require.NoError(t, err)
	assert.Equal(t, "gather_feedback failed", res.HaltReason)
	assert.Empty(t, issues.Calls)
	assert.ElementsMatch(t, []string{"story/enriching", "iteration/2"}, issues.Labels(testRepo, 6))
}

// TestProcessUserApproval verifies the finalized story waits for and then consumes user approval.
func TestProcessUserApproval(t *testing.T) {
	ctx := context.Background()
	issues := scmtest.NewIssues()
	newIssue(issues, 8, "story/ready", "story/finalized")
	p := NewProcessor(Conf{}, issues, &fakeOrchestrator{}, nil, nil)

	res, err := p.ProcessStoryState(ctx, event(8))
	require.NoError(t, err)
	assert.Equal(t, StateFinalized, res.FinalState)
	assert.ElementsMatch(t, []string{"story/finalized", LabelNeedApproval}, issues.Labels(testRepo, 8))

	require.NoError(t, issues.AddLabel(ctx, testRepo, 8, LabelUserApproved))
	issues.ResetCalls()
	res, err = p.ProcessStoryState(ctx, event(8))
	require.NoError(t, err)
	assert.Equal(t, []string{"finalized->user-approved", "user-approved->ready"}, res.Transitions)
	assert.Equal(t, []string{"story/ready"}, issues.Labels(testRepo, 8))
	require.Len(t, issues.Comments, 1)
	assert.Contains(t, issues.Comments[0].Body, "The story is ready for development.")
}

// TestProcessMissingIssue verifies a failed label fetch halts the run without an error.
func TestProcessMissingIssue(t *testing.T) {
	issues := scmtest.NewIssues()
	p := NewProcessor(Conf{}, issues, &fakeOrchestrator{}, nil, nil)
	res, err := p.ProcessStoryState(context.Background(), event(99))
	require.NoError(t, err)
	assert.Equal(t, "issue unavailable", res.HaltReason)
	assert.Equal(t, 0, res.Steps)
	assert.Empty(t, issues.Calls)
}
