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

package monitor

import (
	"context"
	"fmt"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/pkg/classifier"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/bytedance/sonic"
	"golang.org/x/sync/errgroup"
	"gorm.io/datatypes"
)

// WorkflowRunEvent is the part of a workflow_run webhook payload the monitor reads.
type WorkflowRunEvent struct {
	Action      string       `json:"action"`
	WorkflowRun *WorkflowRun `json:"workflow_run"`
	Repository  *Repository  `json:"repository"`
}

type WorkflowRun struct {
	Id         int64  `json:"id"`
	Name       string `json:"name"`
	HeadBranch string `json:"head_branch"`
	HeadSha    string `json:"head_sha"`
	Status     string `json:"status"`
	Conclusion string `json:"conclusion"`
	RunNumber  int    `json:"run_number"`
	Event      string `json:"event"`
	CreatedAt  string `json:"created_at"`
	UpdatedAt  string `json:"updated_at"`
	Actor      Actor  `json:"actor"`
}

type Actor struct {
	Login string `json:"login"`
}

type Repository struct {
	FullName string `json:"full_name"`
}

var statusMap = map[string]model.PipelineStatus{
	"queued":      model.PipelineStatusPending,
	"in_progress": model.PipelineStatusInProgress,
	// refined from the conclusion once jobs are inspected
	"completed": model.PipelineStatusSuccess,
	"cancelled": model.PipelineStatusCancelled,
}

func mapStatus(s string) model.PipelineStatus {
	if st, ok := statusMap[s]; ok {
		return st
	}
	return model.PipelineStatusPending
}

// ProcessPipelineEvent records a workflow run from a raw webhook payload.
// Malformed input yields a nil run and a nil error.
func (m *Monitor) ProcessPipelineEvent(ctx context.Context, payload []byte) (*model.PipelineRun, error) {
	var event WorkflowRunEvent
	if err := sonic.Unmarshal(payload, &event); err != nil {
		m.log.Warnw("invalid pipeline event payload", "error", err)
		return nil, nil
	}
	if event.WorkflowRun == nil || event.Repository == nil || event.Repository.FullName == "" {
		m.log.Warnw("invalid pipeline event data", "action", event.Action)
		return nil, nil
	}
	wr := event.WorkflowRun
	startedAt, err := m.parseTime(wr.CreatedAt)
	if err != nil {
		m.log.Warnw("invalid workflow run created_at", "value", wr.CreatedAt, "error", err)
		return nil, nil
	}

	run := &model.PipelineRun{
		RunId:        fmt.Sprintf("run_%d", wr.Id),
		Repository:   event.Repository.FullName,
		Branch:       wr.HeadBranch,
		CommitSha:    wr.HeadSha,
		WorkflowName: wr.Name,
		Status:       mapStatus(wr.Status),
		StartedAt:    startedAt,
		GithubRunId:  wr.Id,
		RunNumber:    wr.RunNumber,
		Event:        wr.Event,
		Actor:        wr.Actor.Login,
		Metadata: datatypes.JSONMap{
			"github_run_id": wr.Id,
			"run_number":    wr.RunNumber,
			"event":         wr.Event,
			"actor":         wr.Actor.Login,
		},
	}

	stored, err := m.pipelines.GetRun(ctx, run.RunId)
	if err != nil {
		return nil, fmt.Errorf("get run %s: %w", run.RunId, err)
	}
	if stored != nil && stored.Status.IsTerminal() {
		m.log.Debugw("pipeline run already final", "runId", run.RunId, "status", stored.Status)
		return stored, nil
	}

	if classifier.IsFailedConclusion(wr.Conclusion) {
		completedAt, err := m.parseTime(wr.UpdatedAt)
		if err != nil {
			completedAt = m.now()
		}
		run.CompletedAt = &completedAt
		m.analyzeFailure(ctx, run, wr.Conclusion)
	}

	if err := m.pipelines.SaveRun(ctx, run); err != nil {
		return run, fmt.Errorf("save run %s: %w", run.RunId, err)
	}
	failures := make([]*model.PipelineFailure, len(run.Failures))
	for i := range run.Failures {
		failures[i] = &run.Failures[i]
	}
	if err := m.pipelines.CreateFailures(ctx, failures); err != nil {
		return run, fmt.Errorf("save failures of %s: %w", run.RunId, err)
	}
	for _, f := range run.Failures {
		m.metrics.FailureClassified(string(f.Category), string(f.Severity))
	}
	m.log.Infow("processed pipeline event", "repository", run.Repository, "runId", run.RunId,
		"status", run.Status, "failures", len(run.Failures))
	return run, nil
}

func (m *Monitor) parseTime(s string) (time.Time, error) {
	if s == "" {
		return m.now(), nil
	}
	return time.Parse(time.RFC3339, s)
}

// analyzeFailure builds one failure per failed job and settles the run status.
// When jobs cannot be listed the run keeps no failures and takes its status from the conclusion.
func (m *Monitor) analyzeFailure(ctx context.Context, run *model.PipelineRun, conclusion string) {
	jobs, err := m.workflows.GetWorkflowJobs(ctx, run.Repository, run.GithubRunId)
	if err != nil {
		m.log.Errorw("failed to get workflow jobs", "repository", run.Repository, "runId", run.RunId, "error", err)
		run.Status = model.PipelineStatusFailure
		if conclusion == "cancelled" {
			run.Status = model.PipelineStatusCancelled
		}
		return
	}

	var failed []scm.WorkflowJob
	for _, job := range jobs {
		if classifier.IsFailedConclusion(job.Conclusion) {
			failed = append(failed, job)
		}
	}

	failures := make([]model.PipelineFailure, len(failed))
	var eg errgroup.Group
	eg.SetLimit(m.conf.LogFetchConcurrency)
	for i, job := range failed {
		eg.Go(func() error {
			logs, err := m.workflows.GetJobLogs(ctx, run.Repository, job.Id)
			if err != nil {
				m.log.Warnw("could not get job logs", "repository", run.Repository, "jobId", job.Id, "error", err)
				logs = ""
			}
			failures[i] = m.newFailure(run, job, logs)
			return nil
		})
	}
	_ = eg.Wait()

	run.Failures = failures
	if len(failures) > 0 {
		run.Status = model.PipelineStatusFailure
	} else {
		run.Status = model.PipelineStatusSuccess
	}
}

func (m *Monitor) newFailure(run *model.PipelineRun, job scm.WorkflowJob, logs string) model.PipelineFailure {
	category, severity := classifier.Classify(job.Name, logs)
	steps := make([]classifier.Step, len(job.Steps))
	for i, s := range job.Steps {
		steps[i] = classifier.Step{Name: s.Name, Conclusion: s.Conclusion}
	}
	meta := datatypes.JSONMap{
		"job_id":     job.Id,
		"conclusion": job.Conclusion,
	}
	if job.StartedAt != nil {
		meta["started_at"] = job.StartedAt.Format(time.RFC3339)
	}
	if job.CompletedAt != nil {
		meta["completed_at"] = job.CompletedAt.Format(time.RFC3339)
	}
	return model.PipelineFailure{
		FailureId:      model.NewID("failure"),
		Repository:     run.Repository,
		Branch:         run.Branch,
		CommitSha:      run.CommitSha,
		PipelineId:     run.RunId,
		JobId:          job.Id,
		JobName:        job.Name,
		StepName:       classifier.ExtractFailedStep(steps),
		Conclusion:     job.Conclusion,
		FailureMessage: classifier.ExtractFailureMessage(logs),
		FailureLogs:    classifier.Truncate(logs, classifier.MaxLogLength),
		Category:       category,
		Severity:       severity,
		DetectedAt:     m.now(),
		Metadata:       meta,
	}
}
