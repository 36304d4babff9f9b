package repo

import (
	"context"
	"testing"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestRepos(t *testing.T) *Repositories {
	t.Helper()
	m, err := database.NewManager(database.Database{
		Driver: database.DriverSQLite,
		SQLite: database.SQLiteConfig{Path: "file::memory:"},
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = m.Close() })
	require.NoError(t, AutoMigrate(context.Background(), m))
	return NewRepositories(m)
}

// TestSaveRunKeepsTerminalRun verifies that a terminal run is never overwritten.
func TestSaveRunKeepsTerminalRun(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	run := &model.PipelineRun{RunId: "run_1", Repository: "o/r", Status: model.PipelineStatusInProgress}
	require.NoError(t, repos.Pipeline.SaveRun(ctx, run))

	run.Status = model.PipelineStatusFailure
	require.NoError(t, repos.Pipeline.SaveRun(ctx, run))

	again := &model.PipelineRun{RunId: "run_1", Repository: "o/r", Status: model.PipelineStatusSuccess}
	require.NoError(t, repos.Pipeline.SaveRun(ctx, again))

	got, err := repos.Pipeline.GetRun(ctx, "run_1")
	require.NoError(t, err)
	require.NotNil(t, got)
	if got.Status != model.PipelineStatusFailure {
		t.Fatalf("expected status failure, got %s", got.Status)
	}
}

// TestGetRunNotFound verifies the (nil, nil) contract for unknown ids.
func TestGetRunNotFound(t *testing.T) {
	repos := newTestRepos(t)
	got, err := repos.Pipeline.GetRun(context.Background(), "run_missing")
	if err != nil || got != nil {
		t.Fatalf("expected (nil, nil), got (%v, %v)", got, err)
	}
}

// TestListFailuresFilters verifies repository, time window and resolution filters.
func TestListFailuresFilters(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now()
	resolved := now

	failures := []*model.PipelineFailure{
		{FailureId: "f1", Repository: "o/r", PipelineId: "run_1", DetectedAt: now.Add(-time.Hour)},
		{FailureId: "f2", Repository: "o/r", PipelineId: "run_1", DetectedAt: now.Add(-48 * time.Hour)},
		{FailureId: "f3", Repository: "o/r", PipelineId: "run_1", DetectedAt: now, ResolvedAt: &resolved},
		{FailureId: "f4", Repository: "o/other", PipelineId: "run_2", DetectedAt: now},
	}
	require.NoError(t, repos.Pipeline.CreateFailures(ctx, failures))

	list, err := repos.Pipeline.ListFailures(ctx, &FailureQuery{
		Repository:     "o/r",
		Since:          now.Add(-24 * time.Hour),
		UnresolvedOnly: true,
	})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "f1", list[0].FailureId)

	run, err := repos.Pipeline.GetRun(ctx, "run_1")
	require.NoError(t, err)
	assert.Nil(t, run)
}

// TestListFailingRepositories verifies only repositories with recent unresolved failures are listed.
func TestListFailingRepositories(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now()
	resolved := now

	require.NoError(t, repos.Pipeline.CreateFailures(ctx, []*model.PipelineFailure{
		{FailureId: "f1", Repository: "b/y", PipelineId: "run_1", DetectedAt: now},
		{FailureId: "f2", Repository: "a/x", PipelineId: "run_2", DetectedAt: now},
		{FailureId: "f3", Repository: "a/x", PipelineId: "run_2", DetectedAt: now},
		{FailureId: "f4", Repository: "c/old", PipelineId: "run_3", DetectedAt: now.Add(-48 * time.Hour)},
		{FailureId: "f5", Repository: "d/fixed", PipelineId: "run_4", DetectedAt: now, ResolvedAt: &resolved},
	}))

	list, err := repos.Pipeline.ListFailingRepositories(ctx, now.Add(-24*time.Hour))
	require.NoError(t, err)
	assert.Equal(t, []string{"a/x", "b/y"}, list)
}

// TestNextAttemptNumber verifies attempt numbers follow the prior max.
func TestNextAttemptNumber(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	n, err := repos.Pipeline.NextAttemptNumber(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 1, n)

	require.NoError(t, repos.Pipeline.CreateAttempt(ctx, &model.RetryAttempt{
		AttemptId: "a1", FailureId: "f1", AttemptNumber: 1, AttemptedAt: time.Now(),
	}))
	require.NoError(t, repos.Pipeline.CreateAttempt(ctx, &model.RetryAttempt{
		AttemptId: "a2", FailureId: "f1", AttemptNumber: 2, AttemptedAt: time.Now(),
	}))

	n, err = repos.Pipeline.NextAttemptNumber(ctx, "f1")
	require.NoError(t, err)
	assert.Equal(t, 3, n)
}

// TestUpsertPatternBySignature verifies a second upsert updates the stored row.
func TestUpsertPatternBySignature(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	first := time.Now().Add(-72 * time.Hour)

	require.NoError(t, repos.Pipeline.UpsertPattern(ctx, &model.FailurePattern{
		PatternId: "p1", Signature: "linting_flake8", Category: model.CategoryLinting,
		FailureCount: 2, FirstSeen: first, LastSeen: first,
	}))
	require.NoError(t, repos.Pipeline.UpsertPattern(ctx, &model.FailurePattern{
		PatternId: "p2", Signature: "linting_flake8", Category: model.CategoryLinting,
		FailureCount: 5, FirstSeen: time.Now(), LastSeen: time.Now(),
		Repositories: []string{"o/r"},
	}))

	list, err := repos.Pipeline.ListPatterns(ctx, time.Time{})
	require.NoError(t, err)
	require.Len(t, list, 1)
	assert.Equal(t, "p1", list[0].PatternId)
	assert.Equal(t, 5, list[0].FailureCount)
	assert.Equal(t, []string{"o/r"}, list[0].Repositories)
	assert.WithinDuration(t, first, list[0].FirstSeen, time.Second)
}

// TestFindActiveEscalation verifies exact pattern matching, the cutoff and resolution.
func TestFindActiveEscalation(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	now := time.Now()

	require.NoError(t, repos.Pipeline.CreateEscalation(ctx, &model.EscalationRecord{
		EscalationId: "e1", Repository: "o/r", FailurePattern: "testing_unit tests",
		EscalatedAt: now.Add(-time.Hour),
	}))

	got, err := repos.Pipeline.FindActiveEscalation(ctx, "o/r", "testing_unit tests", now.Add(-6*time.Hour))
	require.NoError(t, err)
	require.NotNil(t, got)

	for _, other := range []string{"testingXunit tests", "testing_unit", "%unit%"} {
		got, err = repos.Pipeline.FindActiveEscalation(ctx, "o/r", other, now.Add(-6*time.Hour))
		require.NoError(t, err)
		assert.Nil(t, got, "pattern %q", other)
	}

	got, err = repos.Pipeline.FindActiveEscalation(ctx, "o/r", "testing_unit tests", now.Add(-time.Minute))
	require.NoError(t, err)
	assert.Nil(t, got)

	require.NoError(t, repos.Pipeline.ResolveEscalation(ctx, "e1"))
	got, err = repos.Pipeline.FindActiveEscalation(ctx, "o/r", "testing_unit tests", now.Add(-6*time.Hour))
	require.NoError(t, err)
	assert.Nil(t, got)
}

// TestListCheckpointsBefore verifies run/commit matching and the strict time bound.
func TestListCheckpointsBefore(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)
	base := time.Now().Add(-time.Hour)

	cps := []*model.WorkflowCheckpoint{
		{CheckpointId: "c1", Repository: "o/r", RunId: "run_1", BaseModel: model.BaseModel{CreatedAt: base}},
		{CheckpointId: "c2", Repository: "o/r", CommitSha: "abc", BaseModel: model.BaseModel{CreatedAt: base.Add(10 * time.Minute)}},
		{CheckpointId: "c3", Repository: "o/r", RunId: "run_1", BaseModel: model.BaseModel{CreatedAt: base.Add(30 * time.Minute)}},
		{CheckpointId: "c4", Repository: "o/other", RunId: "run_1", BaseModel: model.BaseModel{CreatedAt: base}},
	}
	for _, cp := range cps {
		require.NoError(t, repos.Recovery.CreateCheckpoint(ctx, cp))
	}

	list, err := repos.Recovery.ListCheckpoints(ctx, &CheckpointQuery{
		Repository: "o/r",
		RunId:      "run_1",
		CommitSha:  "abc",
		Before:     base.Add(30 * time.Minute),
	})
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.Equal(t, "c2", list[0].CheckpointId)
	assert.Equal(t, "c1", list[1].CheckpointId)
}

// TestSaveRecoveryRoundTrip verifies updates land on the same row.
func TestSaveRecoveryRoundTrip(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	state := &model.RecoveryState{
		RecoveryId:   "r1",
		FailureId:    "f1",
		RecoveryType: model.RecoveryTypeRetry,
		Status:       model.RecoveryStatusPending,
		RecoveryPlan: []string{"analyze_failure", "trigger_retry"},
	}
	require.NoError(t, repos.Recovery.SaveRecovery(ctx, state))
	state.Status = model.RecoveryStatusCompleted
	state.ProgressSteps = []string{"analyze_failure", "trigger_retry"}
	require.NoError(t, repos.Recovery.SaveRecovery(ctx, state))

	got, err := repos.Recovery.GetRecovery(ctx, "r1")
	require.NoError(t, err)
	require.NotNil(t, got)
	assert.Equal(t, model.RecoveryStatusCompleted, got.Status)
	assert.Equal(t, state.ProgressSteps, got.ProgressSteps)

	list, err := repos.Recovery.ListRecoveries(ctx, "", time.Time{})
	require.NoError(t, err)
	assert.Len(t, list, 1)
}

// TestUpdateStatusPropagatesToParent verifies parent status follows its children.
func TestUpdateStatusPropagatesToParent(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	require.NoError(t, repos.Story.SaveStory(ctx, &model.Story{StoryId: "story_epic", Status: model.StoryStatusReady}))
	require.NoError(t, repos.Story.SaveStory(ctx, &model.Story{StoryId: "story_a01", ParentId: "story_epic", Status: model.StoryStatusReady}))
	require.NoError(t, repos.Story.SaveStory(ctx, &model.Story{StoryId: "story_b01", ParentId: "story_epic", Status: model.StoryStatusDone}))

	ok, err := repos.Story.UpdateStatus(ctx, "story_a01", model.StoryStatusInProgress)
	require.NoError(t, err)
	require.True(t, ok)

	parent, err := repos.Story.GetStory(ctx, "story_epic")
	require.NoError(t, err)
	assert.Equal(t, model.StoryStatusInProgress, parent.Status)

	_, err = repos.Story.UpdateStatus(ctx, "story_a01", model.StoryStatusDone)
	require.NoError(t, err)
	parent, err = repos.Story.GetStory(ctx, "story_epic")
	require.NoError(t, err)
	assert.Equal(t, model.StoryStatusDone, parent.Status)

	ok, err = repos.Story.UpdateStatus(ctx, "story_missing", model.StoryStatusDone)
	require.NoError(t, err)
	assert.False(t, ok)
}

// TestParentStatus verifies the child to parent derivation table.
func TestParentStatus(t *testing.T) {
	cases := []struct {
		children []model.StoryStatus
		want     model.StoryStatus
	}{
		{[]model.StoryStatus{model.StoryStatusDone, model.StoryStatusDone}, model.StoryStatusDone},
		{[]model.StoryStatus{model.StoryStatusBlocked, model.StoryStatusInProgress}, model.StoryStatusBlocked},
		{[]model.StoryStatus{model.StoryStatusReview, model.StoryStatusReady}, model.StoryStatusInProgress},
		{[]model.StoryStatus{model.StoryStatusDraft, model.StoryStatusReady}, model.StoryStatusReady},
		{[]model.StoryStatus{model.StoryStatusDone, model.StoryStatusReady}, model.StoryStatusInProgress},
	}
	for _, c := range cases {
		got, ok := ParentStatus(c.children)
		if !ok || got != c.want {
			t.Fatalf("children %v: expected %s, got %s", c.children, c.want, got)
		}
	}
	if _, ok := ParentStatus(nil); ok {
		t.Fatalf("expected no status for empty children")
	}
}

// TestStoryLinksAndAudit verifies link de-duplication and audit ordering.
func TestStoryLinksAndAudit(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	for i := 0; i < 2; i++ {
		require.NoError(t, repos.Story.CreateLink(ctx, &model.StoryLink{StoryId: "story_abc123", Repository: "o/r", IssueNumber: 7}))
	}
	require.NoError(t, repos.Story.CreateLink(ctx, &model.StoryLink{StoryId: "story_def456", Repository: "o/r", IssueNumber: 7}))

	ids, err := repos.Story.ListStoryIdsByIssue(ctx, "o/r", 7)
	require.NoError(t, err)
	assert.Equal(t, []string{"story_abc123", "story_def456"}, ids)

	require.NoError(t, repos.Story.AppendAudit(ctx, &model.AuditLog{StoryId: "story_abc123", OldStatus: "ready", NewStatus: "in_progress"}))
	require.NoError(t, repos.Story.AppendAudit(ctx, &model.AuditLog{StoryId: "story_abc123", OldStatus: "in_progress", NewStatus: "done"}))
	audit, err := repos.Story.ListAudit(ctx, "story_abc123")
	require.NoError(t, err)
	require.Len(t, audit, 2)
	assert.Equal(t, "done", audit[1].NewStatus)
}

// TestMarkAssignmentCompleted verifies only the latest open assignment is completed.
func TestMarkAssignmentCompleted(t *testing.T) {
	ctx := context.Background()
	repos := newTestRepos(t)

	require.NoError(t, repos.Assignment.Append(ctx, &model.AssignmentRecord{StoryId: "s1", ShouldAssign: true, Assignee: "agent-a"}))
	require.NoError(t, repos.Assignment.Append(ctx, &model.AssignmentRecord{StoryId: "s2", ShouldAssign: false}))

	rec, err := repos.Assignment.MarkCompleted(ctx, "s1", true)
	require.NoError(t, err)
	require.NotNil(t, rec)
	assert.True(t, rec.Success)

	rec, err = repos.Assignment.MarkCompleted(ctx, "s2", true)
	require.NoError(t, err)
	assert.Nil(t, rec)

	list, err := repos.Assignment.List(ctx)
	require.NoError(t, err)
	require.Len(t, list, 2)
	assert.True(t, list[0].Completed)
}
