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
	"math"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"gorm.io/datatypes"
)

// RetryDelay is min(initial * multiplier^retryCount, max).
func (c RetryConf) RetryDelay(retryCount int) time.Duration {
	seconds := float64(c.InitialDelaySeconds) * math.Pow(c.BackoffMultiplier, float64(retryCount))
	seconds = math.Min(seconds, float64(c.MaxDelaySeconds))
	return time.Duration(seconds * float64(time.Second))
}

// RetryFailedPipeline waits out the backoff delay, retries the failure and records
// exactly one attempt. It returns nil when retries are disabled or exhausted.
// A cancelled wait is recorded as a failed attempt and returned with the context error.
func (m *Monitor) RetryFailedPipeline(ctx context.Context, failure *model.PipelineFailure) (*model.RetryAttempt, error) {
	if !m.conf.Retry.Enabled {
		m.log.Debugw("pipeline retry is disabled", "failureId", failure.FailureId)
		return nil, nil
	}
	if failure.RetryCount >= m.conf.Retry.MaxRetries {
		m.log.Infow("max retries exceeded", "failureId", failure.FailureId, "maxRetries", m.conf.Retry.MaxRetries)
		return nil, nil
	}

	number, err := m.pipelines.NextAttemptNumber(ctx, failure.FailureId)
	if err != nil {
		return nil, fmt.Errorf("next attempt number: %w", err)
	}
	delay := m.conf.Retry.RetryDelay(failure.RetryCount)
	attempt := &model.RetryAttempt{
		AttemptId:         model.NewID("attempt"),
		FailureId:         failure.FailureId,
		Repository:        failure.Repository,
		AttemptNumber:     number,
		RetryDelaySeconds: int(delay / time.Second),
		AttemptedAt:       m.now(),
		Metadata: datatypes.JSONMap{
			"original_failure_category": string(failure.Category),
			"original_failure_severity": string(failure.Severity),
			"pipeline_id":               failure.PipelineId,
			"job_name":                  failure.JobName,
		},
	}
	m.log.Infow("scheduling retry", "failureId", failure.FailureId, "delay", delay, "attempt", number)

	waitErr := m.sleep(ctx, delay)
	completedAt := m.now()
	attempt.CompletedAt = &completedAt
	if waitErr != nil {
		attempt.ErrorMessage = waitErr.Error()
	} else {
		attempt.Success = triggerRetry(failure)
		if !attempt.Success {
			attempt.ErrorMessage = "Pipeline retry failed"
		}
	}

	failure.RetryCount++
	updates := map[string]any{"retry_count": failure.RetryCount}
	if attempt.Success {
		failure.ResolvedAt = &completedAt
		updates["resolved_at"] = &completedAt
	}
	// the outcome is recorded even when the caller gave up waiting
	persistCtx := context.WithoutCancel(ctx)
	if err := m.pipelines.UpdateFailure(persistCtx, failure.FailureId, updates); err != nil {
		return attempt, fmt.Errorf("update failure %s: %w", failure.FailureId, err)
	}
	if err := m.pipelines.CreateAttempt(persistCtx, attempt); err != nil {
		return attempt, fmt.Errorf("store attempt: %w", err)
	}
	m.metrics.RetryAttempted(attempt.Success)
	if attempt.Success {
		m.log.Infow("retry attempt succeeded", "attemptId", attempt.AttemptId, "failureId", failure.FailureId)
	} else {
		m.log.Warnw("retry attempt failed", "attemptId", attempt.AttemptId, "failureId", failure.FailureId, "error", attempt.ErrorMessage)
	}
	return attempt, waitErr
}

// triggerRetry simulates remediation: only auto-fixable categories succeed.
func triggerRetry(failure *model.PipelineFailure) bool {
	return failure.Category.AutoFixable()
}

// RecoveryOutcome is the result of an enhanced recovery. Exactly one of
// Recovery and Retry is set when a recovery ran.
type RecoveryOutcome struct {
	Recovery *model.RecoveryState `json:"recovery,omitempty"`
	Retry    *model.RetryAttempt  `json:"retry,omitempty"`
	Success  bool                 `json:"success"`
}

// InitiateEnhancedRecovery recovers a failure through the recovery manager.
// recoveryType auto picks a strategy from the available checkpoints. Without a
// recovery manager, or when recovery errors, it falls back to RetryFailedPipeline.
func (m *Monitor) InitiateEnhancedRecovery(ctx context.Context, failure *model.PipelineFailure, recoveryType model.RecoveryType) (*RecoveryOutcome, error) {
	if m.recovery == nil {
		m.log.Warnw("recovery manager not available, falling back to basic retry", "failureId", failure.FailureId)
		return m.fallbackRetry(ctx, failure)
	}
	if recoveryType == "" || recoveryType == model.RecoveryTypeAuto {
		recoveryType = m.determineRecoveryStrategy(ctx, failure)
	}
	m.log.Infow("initiating enhanced recovery", "failureId", failure.FailureId, "type", recoveryType)

	if (recoveryType == model.RecoveryTypeResume || recoveryType == model.RecoveryTypeRollback) && failure.PipelineId != "" {
		m.createPreRecoveryCheckpoint(ctx, failure)
	}

	state, err := m.recovery.InitiateRecovery(ctx, failure, recoveryType)
	if err != nil {
		m.log.Errorw("enhanced recovery failed", "failureId", failure.FailureId, "error", err)
		return m.fallbackRetry(ctx, failure)
	}
	ok, err := m.recovery.ExecuteRecovery(ctx, state)
	if err != nil {
		m.log.Errorw("enhanced recovery failed", "failureId", failure.FailureId, "recoveryId", state.RecoveryId, "error", err)
		return m.fallbackRetry(ctx, failure)
	}
	if ok {
		resolvedAt := m.now()
		failure.ResolvedAt = &resolvedAt
		if err := m.pipelines.UpdateFailure(ctx, failure.FailureId, map[string]any{"resolved_at": &resolvedAt}); err != nil {
			return nil, fmt.Errorf("update failure %s: %w", failure.FailureId, err)
		}
		m.log.Infow("enhanced recovery completed", "recoveryId", state.RecoveryId)
	} else {
		m.log.Warnw("enhanced recovery failed", "recoveryId", state.RecoveryId)
	}
	return &RecoveryOutcome{Recovery: state, Success: ok}, nil
}

func (m *Monitor) fallbackRetry(ctx context.Context, failure *model.PipelineFailure) (*RecoveryOutcome, error) {
	attempt, err := m.RetryFailedPipeline(ctx, failure)
	if attempt == nil {
		return nil, err
	}
	return &RecoveryOutcome{Retry: attempt, Success: attempt.Success}, err
}

// determineRecoveryStrategy prefers resume for build and dependency failures and
// rollback for critical failures when checkpoints of the same run or commit exist.
func (m *Monitor) determineRecoveryStrategy(ctx context.Context, failure *model.PipelineFailure) model.RecoveryType {
	checkpoints, err := m.recovery.RelatedCheckpoints(ctx, failure)
	if err != nil {
		m.log.Warnw("failed to list checkpoints", "failureId", failure.FailureId, "error", err)
		return model.RecoveryTypeRetry
	}
	if len(checkpoints) > 0 {
		if failure.Category == model.CategoryBuild || failure.Category == model.CategoryDependency {
			return model.RecoveryTypeResume
		}
		if failure.Severity == model.SeverityCritical && len(checkpoints) > 1 {
			return model.RecoveryTypeRollback
		}
	}
	return model.RecoveryTypeRetry
}

func (m *Monitor) createPreRecoveryCheckpoint(ctx context.Context, failure *model.PipelineFailure) {
	cp, err := m.recovery.CreateCheckpoint(ctx, recovery.CheckpointInput{
		Repository:     failure.Repository,
		WorkflowName:   "pre_recovery",
		RunId:          failure.PipelineId,
		CommitSha:      failure.CommitSha,
		CheckpointType: "failure_point",
		CheckpointName: "before_recovery_" + failure.FailureId,
		WorkflowState: map[string]any{
			"failure_context": map[string]any{
				"job_name":  failure.JobName,
				"step_name": failure.StepName,
				"category":  string(failure.Category),
				"severity":  string(failure.Severity),
			},
		},
		EnvironmentContext: map[string]any{
			"failure_detected_at": failure.DetectedAt.Format(time.RFC3339),
			"retry_count":         failure.RetryCount,
		},
	})
	if err != nil {
		m.log.Warnw("failed to create pre-recovery checkpoint", "failureId", failure.FailureId, "error", err)
		return
	}
	m.log.Infow("created pre-recovery checkpoint", "checkpointId", cp.CheckpointId)
}
