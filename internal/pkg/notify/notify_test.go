package notify

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/arcentrix/storyflow/pkg/scm/scmtest"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func failedRun(failures ...model.PipelineFailure) *model.PipelineRun {
	return &model.PipelineRun{
		RunId:        "run_42",
		Repository:   "acme/shop",
		Branch:       "main",
		CommitSha:    "abc123def4567890",
		WorkflowName: "CI",
		StartedAt:    time.Date(2025, 6, 1, 10, 0, 0, 0, time.UTC),
		Failures:     failures,
	}
}

// TestDefaultRule verifies the default notification heuristic.
func TestDefaultRule(t *testing.T) {
	rule, err := CompileRule("")
	require.NoError(t, err)

	cases := []struct {
		name string
		run  *model.PipelineRun
		want bool
	}{
		{"no failures", failedRun(), false},
		{"medium only", failedRun(model.PipelineFailure{Severity: model.SeverityMedium, RetryCount: 1}), false},
		{"high severity", failedRun(model.PipelineFailure{Severity: model.SeverityHigh}), true},
		{"critical severity", failedRun(model.PipelineFailure{Severity: model.SeverityLow}, model.PipelineFailure{Severity: model.SeverityCritical}), true},
		{"retried twice", failedRun(model.PipelineFailure{Severity: model.SeverityLow, RetryCount: 2}), true},
	}
	for _, c := range cases {
		got, err := rule.Match(c.run)
		require.NoError(t, err, c.name)
		assert.Equal(t, c.want, got, c.name)
	}
}

// TestCustomRule verifies rules can read run fields.
func TestCustomRule(t *testing.T) {
	rule, err := CompileRule(`Branch == "main" && len(Failures) > 1`)
	require.NoError(t, err)

	got, err := rule.Match(failedRun(model.PipelineFailure{}, model.PipelineFailure{}))
	require.NoError(t, err)
	assert.True(t, got)

	got, err = rule.Match(failedRun(model.PipelineFailure{}))
	require.NoError(t, err)
	assert.False(t, got)
}

// TestCompileRuleRejectsInvalid verifies bad expressions fail at construction.
func TestCompileRuleRejectsInvalid(t *testing.T) {
	_, err := CompileRule(`Failures +`)
	assert.Error(t, err)

	_, err = CompileRule(`len(Failures)`)
	assert.Error(t, err)

	_, err = NewNotifier(scmtest.NewIssues(), Conf{Rule: `Unknown == 1`})
	assert.Error(t, err)
}

// TestFailureSummary verifies the comment layout.
func TestFailureSummary(t *testing.T) {
	run := failedRun(
		model.PipelineFailure{Category: model.CategoryLinting, FailureMessage: "E401 multiple imports"},
		model.PipelineFailure{Category: model.CategoryTesting, FailureMessage: strings.Repeat("x", 150)},
		model.PipelineFailure{Category: model.CategoryLinting, FailureMessage: "F821 undefined name"},
	)
	body := FailureSummary(run)

	assert.True(t, strings.HasPrefix(body, "## 🚨 Pipeline Failure Detected\n"))
	assert.Contains(t, body, "**Commit:** abc123de\n")
	assert.Contains(t, body, "**Linting Issues:**\n- E401 multiple imports\n- F821 undefined name\n")
	assert.Contains(t, body, "- "+strings.Repeat("x", 100)+"\n")
	assert.NotContains(t, body, strings.Repeat("x", 101))
	assert.Equal(t, 1, strings.Count(body, "**For linting issues:**"))
	assert.Contains(t, body, "**Failure Count:** 3\n")
	assert.Contains(t, body, "**Time:** 2025-06-01 10:00:00 UTC\n")
	assert.True(t, strings.HasSuffix(body, "@copilot Please investigate and resolve these pipeline failures."))
	assert.Less(t, strings.Index(body, "### Failure Summary:"), strings.Index(body, "### Recommended Actions:"))
}

// TestNotifyPipelineFailures verifies the comment lands on the newest open issue.
func TestNotifyPipelineFailures(t *testing.T) {
	ctx := context.Background()
	issues := scmtest.NewIssues()
	now := time.Now()
	issues.Put("acme/shop", &scm.Issue{Number: 1, State: "open", CreatedAt: now.Add(-time.Hour)})
	issues.Put("acme/shop", &scm.Issue{Number: 2, State: "open", CreatedAt: now})
	issues.Put("acme/shop", &scm.Issue{Number: 3, State: "closed", CreatedAt: now.Add(time.Hour)})

	n, err := NewNotifier(issues, Conf{})
	require.NoError(t, err)

	res := n.NotifyPipelineFailures(ctx, failedRun(model.PipelineFailure{Severity: model.SeverityMedium}))
	assert.False(t, res.Sent)
	assert.Empty(t, issues.Comments)

	res = n.NotifyPipelineFailures(ctx, failedRun(model.PipelineFailure{Category: model.CategoryBuild, Severity: model.SeverityHigh}))
	assert.True(t, res.Sent)
	assert.Equal(t, []int{2}, res.IssuesNotified)
	require.Len(t, issues.Comments, 1)
	assert.Equal(t, 2, issues.Comments[0].Number)
	assert.Contains(t, issues.Comments[0].Body, "**Build Issues:**")
}

// TestNotifyPipelineFailuresBestEffort verifies collaborator errors are swallowed.
func TestNotifyPipelineFailuresBestEffort(t *testing.T) {
	ctx := context.Background()
	run := failedRun(model.PipelineFailure{Severity: model.SeverityCritical})

	empty := scmtest.NewIssues()
	n, err := NewNotifier(empty, Conf{})
	require.NoError(t, err)
	assert.False(t, n.NotifyPipelineFailures(ctx, run).Sent)

	failing := scmtest.NewIssues()
	failing.Put("acme/shop", &scm.Issue{Number: 7, State: "open"})
	failing.FailComments = errors.New("403")
	n, err = NewNotifier(failing, Conf{})
	require.NoError(t, err)
	assert.False(t, n.NotifyPipelineFailures(ctx, run).Sent)

	failing.FailList = errors.New("502")
	assert.False(t, n.NotifyPipelineFailures(ctx, run).Sent)
}
