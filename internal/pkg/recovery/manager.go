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

package recovery

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/pkg/logger"
	"gorm.io/datatypes"
)

var (
	// ErrNotPending is returned when executing a recovery that already started.
	ErrNotPending = errors.New("recovery is not pending")
	// ErrUnknownRecoveryType is returned by plan building for unsupported types.
	ErrUnknownRecoveryType = errors.New("unknown recovery type")
	// ErrCheckpointNotFound is returned when a referenced checkpoint does not exist.
	ErrCheckpointNotFound = errors.New("checkpoint not found")
)

type Conf struct {
	// RetrySuccessProbability is the chance a retry of a non auto-fixable failure succeeds.
	RetrySuccessProbability float64 `mapstructure:"retrySuccessProbability" validate:"gte=0,lte=1"`
}

func (c *Conf) SetDefaults() {
	if c.RetrySuccessProbability == 0 {
		c.RetrySuccessProbability = 0.7
	}
}

// Manager creates checkpoints and drives recoveries to a final status.
type Manager struct {
	repo repo.IRecoveryRepository
	conf Conf
	log  *logger.Logger
	// rand returns a number in [0, 1).
	rand func() float64
	now  func() time.Time
}

func NewManager(r repo.IRecoveryRepository, conf Conf) *Manager {
	conf.SetDefaults()
	return &Manager{
		repo: r,
		conf: conf,
		log:  logger.Channel("recovery"),
		rand: rand.Float64,
		now:  time.Now,
	}
}

// CheckpointInput describes a checkpoint to record.
type CheckpointInput struct {
	Repository         string
	WorkflowName       string
	RunId              string
	CommitSha          string
	CheckpointType     string
	CheckpointName     string
	WorkflowState      map[string]any
	EnvironmentContext map[string]any
	Dependencies       []string
	Artifacts          []string
}

func (m *Manager) CreateCheckpoint(ctx context.Context, in CheckpointInput) (*model.WorkflowCheckpoint, error) {
	cp := &model.WorkflowCheckpoint{
		CheckpointId:       model.NewID("cp"),
		Repository:         in.Repository,
		WorkflowName:       in.WorkflowName,
		RunId:              in.RunId,
		CommitSha:          in.CommitSha,
		CheckpointType:     in.CheckpointType,
		CheckpointName:     in.CheckpointName,
		WorkflowState:      datatypes.JSONMap(in.WorkflowState),
		EnvironmentContext: datatypes.JSONMap(in.EnvironmentContext),
		Dependencies:       in.Dependencies,
		Artifacts:          in.Artifacts,
	}
	if cp.CheckpointType == "" {
		cp.CheckpointType = "step"
	}
	if cp.WorkflowState == nil {
		cp.WorkflowState = datatypes.JSONMap{}
	}
	if cp.EnvironmentContext == nil {
		cp.EnvironmentContext = datatypes.JSONMap{}
	}
	if cp.Dependencies == nil {
		cp.Dependencies = []string{}
	}
	if cp.Artifacts == nil {
		cp.Artifacts = []string{}
	}
	if err := m.repo.CreateCheckpoint(ctx, cp); err != nil {
		return nil, fmt.Errorf("store checkpoint: %w", err)
	}
	m.log.Infow("checkpoint created", "checkpointId", cp.CheckpointId, "repository", cp.Repository,
		"workflow", cp.WorkflowName, "name", cp.CheckpointName)
	return cp, nil
}

// RelatedCheckpoints lists checkpoints of the failure's run or commit, newest first.
func (m *Manager) RelatedCheckpoints(ctx context.Context, failure *model.PipelineFailure) ([]*model.WorkflowCheckpoint, error) {
	return m.repo.ListCheckpoints(ctx, &repo.CheckpointQuery{
		Repository: failure.Repository,
		RunId:      failure.PipelineId,
		CommitSha:  failure.CommitSha,
	})
}

// findResumptionPoint returns the newest related checkpoint created before the failure was detected.
func (m *Manager) findResumptionPoint(ctx context.Context, failure *model.PipelineFailure) (*model.WorkflowCheckpoint, error) {
	list, err := m.repo.ListCheckpoints(ctx, &repo.CheckpointQuery{
		Repository: failure.Repository,
		RunId:      failure.PipelineId,
		CommitSha:  failure.CommitSha,
		Before:     failure.DetectedAt,
	})
	if err != nil {
		return nil, err
	}
	if len(list) == 0 {
		return nil, nil
	}
	return list[0], nil
}

// InitiateRecovery plans a recovery for the failure and stores it as pending.
func (m *Manager) InitiateRecovery(ctx context.Context, failure *model.PipelineFailure, recoveryType model.RecoveryType) (*model.RecoveryState, error) {
	plan, err := buildPlan(recoveryType, failure.Category)
	if err != nil {
		return nil, err
	}
	state := &model.RecoveryState{
		RecoveryId:    model.NewID("recovery"),
		FailureId:     failure.FailureId,
		Repository:    failure.Repository,
		RecoveryType:  recoveryType,
		Status:        model.RecoveryStatusPending,
		RecoveryPlan:  plan,
		ProgressSteps: []string{},
		RecoveryContext: datatypes.JSONMap{
			"original_failure": map[string]any{
				"category":  string(failure.Category),
				"severity":  string(failure.Severity),
				"job_name":  failure.JobName,
				"step_name": failure.StepName,
			},
			"retry_count": failure.RetryCount,
		},
	}
	if recoveryType == model.RecoveryTypeResume || recoveryType == model.RecoveryTypeRollback {
		target, err := m.findResumptionPoint(ctx, failure)
		if err != nil {
			return nil, fmt.Errorf("find checkpoint: %w", err)
		}
		if target != nil {
			state.TargetCheckpointId = target.CheckpointId
		} else {
			m.log.Warnw("no checkpoint before failure", "failureId", failure.FailureId, "repository", failure.Repository)
		}
	}
	if err := m.repo.SaveRecovery(ctx, state); err != nil {
		return nil, fmt.Errorf("store recovery: %w", err)
	}
	m.log.Infow("recovery initiated", "recoveryId", state.RecoveryId, "type", recoveryType, "failureId", failure.FailureId)
	return state, nil
}

// ExecuteRecovery runs the plan of a pending recovery and sets its final status once.
// An unknown recovery type fails the recovery without an error.
func (m *Manager) ExecuteRecovery(ctx context.Context, state *model.RecoveryState) (bool, error) {
	if state.Status != model.RecoveryStatusPending {
		return false, fmt.Errorf("%w: %s is %s", ErrNotPending, state.RecoveryId, state.Status)
	}
	started := m.now()
	state.Status = model.RecoveryStatusInProgress
	state.StartedAt = &started
	if state.RecoveryContext == nil {
		state.RecoveryContext = datatypes.JSONMap{}
	}
	if err := m.repo.SaveRecovery(ctx, state); err != nil {
		return false, fmt.Errorf("store recovery: %w", err)
	}

	var (
		success bool
		err     error
	)
	switch state.RecoveryType {
	case model.RecoveryTypeRetry, model.RecoveryTypeResume, model.RecoveryTypeRollback:
		success, err = m.runPlan(ctx, state)
	default:
		state.ErrorMessage = fmt.Sprintf("%s: %q", ErrUnknownRecoveryType, state.RecoveryType)
	}
	if err != nil && state.ErrorMessage == "" {
		state.ErrorMessage = err.Error()
	}
	return m.finish(ctx, state, success && err == nil, err)
}

func (m *Manager) finish(ctx context.Context, state *model.RecoveryState, success bool, runErr error) (bool, error) {
	completed := m.now()
	state.CompletedAt = &completed
	state.Status = model.RecoveryStatusFailed
	if success {
		state.Status = model.RecoveryStatusCompleted
	}
	if err := m.repo.SaveRecovery(context.WithoutCancel(ctx), state); err != nil {
		return false, errors.Join(runErr, fmt.Errorf("store recovery: %w", err))
	}
	m.log.Infow("recovery finished", "recoveryId", state.RecoveryId, "type", state.RecoveryType,
		"status", state.Status, "steps", len(state.ProgressSteps))
	return success, runErr
}

// runPlan executes plan steps in order, recording each attempted step.
// It stops at the first step that does not succeed.
func (m *Manager) runPlan(ctx context.Context, state *model.RecoveryState) (bool, error) {
	exec := &execution{manager: m, state: state}
	for _, step := range state.RecoveryPlan {
		if err := ctx.Err(); err != nil {
			return false, err
		}
		ok, err := exec.run(ctx, step)
		state.ProgressSteps = append(state.ProgressSteps, step)
		if !ok || err != nil {
			state.RecoveryContext["failed_step"] = step
		}
		if serr := m.repo.SaveRecovery(ctx, state); serr != nil {
			return false, fmt.Errorf("store progress: %w", serr)
		}
		if err != nil {
			return false, err
		}
		if !ok {
			return false, nil
		}
	}
	return true, nil
}

// ValidateState checks a checkpoint without modifying it.
func (m *Manager) ValidateState(cp *model.WorkflowCheckpoint) StateValidation {
	v := StateValidation{IsValid: true, Errors: []string{}, Warnings: []string{}, CheckedAt: m.now()}
	if cp == nil {
		v.fail("checkpoint is nil")
		return v
	}
	if cp.Repository == "" {
		v.fail("missing repository")
	}
	if cp.RunId == "" {
		v.fail("missing run id")
	}
	if len(cp.WorkflowState) == 0 {
		v.Warnings = append(v.Warnings, "empty workflow state")
	}
	if len(cp.EnvironmentContext) == 0 {
		v.Warnings = append(v.Warnings, "missing environment context")
	}
	for i, dep := range cp.Dependencies {
		if dep == "" {
			v.fail(fmt.Sprintf("empty dependency at index %d", i))
		}
	}
	for i, a := range cp.Artifacts {
		if a == "" {
			v.Warnings = append(v.Warnings, fmt.Sprintf("empty artifact at index %d", i))
		}
	}
	return v
}

// RollbackToCheckpoint restores the workflow to cp. An invalid checkpoint aborts before any operation.
func (m *Manager) RollbackToCheckpoint(ctx context.Context, cp *model.WorkflowCheckpoint, reason string) (bool, error) {
	v := m.ValidateState(cp)
	if !v.IsValid {
		m.log.Errorw("cannot rollback to invalid checkpoint", "errors", v.Errors, "reason", reason)
		return false, nil
	}
	if err := ctx.Err(); err != nil {
		return false, err
	}
	m.log.Infow("rolling back to checkpoint", "checkpointId", cp.CheckpointId, "commit", cp.CommitSha,
		"reason", reason, "artifacts", len(cp.Artifacts))
	return true, nil
}

type StateValidation struct {
	IsValid   bool      `json:"isValid"`
	Errors    []string  `json:"errors"`
	Warnings  []string  `json:"warnings"`
	CheckedAt time.Time `json:"checkedAt"`
}

func (v *StateValidation) fail(msg string) {
	v.IsValid = false
	v.Errors = append(v.Errors, msg)
}
