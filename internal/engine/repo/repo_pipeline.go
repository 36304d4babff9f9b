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

package repo

import (
	"context"
	"errors"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/database"
	"gorm.io/gorm"
)

// FailureQuery filters pipeline failures.
type FailureQuery struct {
	Repository     string
	Since          time.Time
	UnresolvedOnly bool
}

// IPipelineRepository persists runs, failures and everything derived from them.
type IPipelineRepository interface {
	SaveRun(ctx context.Context, run *model.PipelineRun) error
	GetRun(ctx context.Context, runId string) (*model.PipelineRun, error)
	CreateFailures(ctx context.Context, failures []*model.PipelineFailure) error
	GetFailure(ctx context.Context, failureId string) (*model.PipelineFailure, error)
	UpdateFailure(ctx context.Context, failureId string, updates map[string]any) error
	ListFailures(ctx context.Context, query *FailureQuery) ([]*model.PipelineFailure, error)
	ListFailingRepositories(ctx context.Context, since time.Time) ([]string, error)
	NextAttemptNumber(ctx context.Context, failureId string) (int, error)
	CreateAttempt(ctx context.Context, attempt *model.RetryAttempt) error
	ListAttempts(ctx context.Context, repository string, since time.Time) ([]*model.RetryAttempt, error)
	UpsertPattern(ctx context.Context, pattern *model.FailurePattern) error
	ListPatterns(ctx context.Context, since time.Time) ([]*model.FailurePattern, error)
	CreateEscalation(ctx context.Context, record *model.EscalationRecord) error
	FindActiveEscalation(ctx context.Context, repository, signature string, since time.Time) (*model.EscalationRecord, error)
	ListEscalations(ctx context.Context, repository string, since time.Time) ([]*model.EscalationRecord, error)
	ResolveEscalation(ctx context.Context, escalationId string) error
}

type PipelineRepo struct {
	database.IDatabase
}

// NewPipelineRepo creates pipeline repository.
func NewPipelineRepo(db database.IDatabase) IPipelineRepository {
	return &PipelineRepo{IDatabase: db}
}

// SaveRun inserts a run or updates the stored one.
// A stored run that already reached a terminal status is left untouched.
func (r *PipelineRepo) SaveRun(ctx context.Context, run *model.PipelineRun) error {
	var existing model.PipelineRun
	err := r.Database().WithContext(ctx).
		Where("run_id = ?", run.RunId).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.Database().WithContext(ctx).Create(run).Error
	}
	if err != nil {
		return err
	}
	run.ID = existing.ID
	run.CreatedAt = existing.CreatedAt
	if existing.Status.IsTerminal() {
		return nil
	}
	return r.Database().WithContext(ctx).
		Model(&model.PipelineRun{}).
		Where("run_id = ?", run.RunId).
		Updates(map[string]any{
			"status":       run.Status,
			"completed_at": run.CompletedAt,
			"metadata":     run.Metadata,
			"branch":       run.Branch,
			"commit_sha":   run.CommitSha,
		}).Error
}

// GetRun returns a run with its failures, or (nil, nil) when not found.
func (r *PipelineRepo) GetRun(ctx context.Context, runId string) (*model.PipelineRun, error) {
	var one model.PipelineRun
	err := r.Database().WithContext(ctx).
		Where("run_id = ?", runId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	if err := r.Database().WithContext(ctx).
		Where("pipeline_id = ?", runId).
		Order("id ASC").
		Find(&one.Failures).Error; err != nil {
		return nil, err
	}
	return &one, nil
}

// CreateFailures inserts failures in one transaction.
func (r *PipelineRepo) CreateFailures(ctx context.Context, failures []*model.PipelineFailure) error {
	if len(failures) == 0 {
		return nil
	}
	return r.Database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		for _, f := range failures {
			if err := tx.Create(f).Error; err != nil {
				return err
			}
		}
		return nil
	})
}

// GetFailure returns a failure, or (nil, nil) when not found.
func (r *PipelineRepo) GetFailure(ctx context.Context, failureId string) (*model.PipelineFailure, error) {
	var one model.PipelineFailure
	err := r.Database().WithContext(ctx).
		Where("failure_id = ?", failureId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// UpdateFailure updates a failure by failureId.
func (r *PipelineRepo) UpdateFailure(ctx context.Context, failureId string, updates map[string]any) error {
	return r.Database().WithContext(ctx).
		Model(&model.PipelineFailure{}).
		Where("failure_id = ?", failureId).
		Updates(updates).Error
}

// ListFailures lists failures ordered by detection time.
func (r *PipelineRepo) ListFailures(ctx context.Context, query *FailureQuery) ([]*model.PipelineFailure, error) {
	if query == nil {
		query = &FailureQuery{}
	}
	tx := r.Database().WithContext(ctx).Model(&model.PipelineFailure{})
	if query.Repository != "" {
		tx = tx.Where("repository = ?", query.Repository)
	}
	if !query.Since.IsZero() {
		tx = tx.Where("detected_at >= ?", query.Since)
	}
	if query.UnresolvedOnly {
		tx = tx.Where("resolved_at IS NULL")
	}
	var list []*model.PipelineFailure
	if err := tx.Order("detected_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ListFailingRepositories returns the distinct repositories with unresolved
// failures detected since the given time, sorted by name.
func (r *PipelineRepo) ListFailingRepositories(ctx context.Context, since time.Time) ([]string, error) {
	var list []string
	err := r.Database().WithContext(ctx).
		Model(&model.PipelineFailure{}).
		Where("repository <> ? AND resolved_at IS NULL AND detected_at >= ?", "", since).
		Distinct().
		Order("repository ASC").
		Pluck("repository", &list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}

// NextAttemptNumber returns the prior max attempt number for the failure plus one.
func (r *PipelineRepo) NextAttemptNumber(ctx context.Context, failureId string) (int, error) {
	var maxAttempt int
	err := r.Database().WithContext(ctx).
		Model(&model.RetryAttempt{}).
		Where("failure_id = ?", failureId).
		Select("COALESCE(MAX(attempt_number), 0)").
		Scan(&maxAttempt).Error
	if err != nil {
		return 0, err
	}
	return maxAttempt + 1, nil
}

// CreateAttempt appends a retry attempt.
func (r *PipelineRepo) CreateAttempt(ctx context.Context, attempt *model.RetryAttempt) error {
	return r.Database().WithContext(ctx).Create(attempt).Error
}

// ListAttempts lists attempts since the given time, optionally for one repository.
func (r *PipelineRepo) ListAttempts(ctx context.Context, repository string, since time.Time) ([]*model.RetryAttempt, error) {
	tx := r.Database().WithContext(ctx).Model(&model.RetryAttempt{})
	if repository != "" {
		tx = tx.Where("repository = ?", repository)
	}
	if !since.IsZero() {
		tx = tx.Where("attempted_at >= ?", since)
	}
	var list []*model.RetryAttempt
	if err := tx.Order("attempted_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// UpsertPattern stores a pattern keyed by signature.
// The stored pattern id and first_seen survive updates.
func (r *PipelineRepo) UpsertPattern(ctx context.Context, pattern *model.FailurePattern) error {
	return r.Database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		var existing model.FailurePattern
		err := tx.Where("signature = ?", pattern.Signature).First(&existing).Error
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return tx.Create(pattern).Error
		}
		if err != nil {
			return err
		}
		pattern.ID = existing.ID
		pattern.PatternId = existing.PatternId
		pattern.CreatedAt = existing.CreatedAt
		if existing.FirstSeen.Before(pattern.FirstSeen) {
			pattern.FirstSeen = existing.FirstSeen
		}
		return tx.Save(pattern).Error
	})
}

// ListPatterns lists patterns seen since the given time, most frequent first.
func (r *PipelineRepo) ListPatterns(ctx context.Context, since time.Time) ([]*model.FailurePattern, error) {
	tx := r.Database().WithContext(ctx).Model(&model.FailurePattern{})
	if !since.IsZero() {
		tx = tx.Where("last_seen >= ?", since)
	}
	var list []*model.FailurePattern
	if err := tx.Order("failure_count DESC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// CreateEscalation appends an escalation record.
func (r *PipelineRepo) CreateEscalation(ctx context.Context, record *model.EscalationRecord) error {
	return r.Database().WithContext(ctx).Create(record).Error
}

// FindActiveEscalation returns the newest unresolved escalation for the pattern
// signature that was escalated after since. Returns (nil, nil) when none.
func (r *PipelineRepo) FindActiveEscalation(ctx context.Context, repository, signature string, since time.Time) (*model.EscalationRecord, error) {
	var one model.EscalationRecord
	err := r.Database().WithContext(ctx).
		Where("repository = ? AND resolved = ? AND escalated_at > ?", repository, false, since).
		Where("failure_pattern = ?", signature).
		Order("escalated_at DESC").
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// ListEscalations lists escalations since the given time, optionally for one repository.
func (r *PipelineRepo) ListEscalations(ctx context.Context, repository string, since time.Time) ([]*model.EscalationRecord, error) {
	tx := r.Database().WithContext(ctx).Model(&model.EscalationRecord{})
	if repository != "" {
		tx = tx.Where("repository = ?", repository)
	}
	if !since.IsZero() {
		tx = tx.Where("escalated_at >= ?", since)
	}
	var list []*model.EscalationRecord
	if err := tx.Order("escalated_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// ResolveEscalation marks an escalation resolved.
func (r *PipelineRepo) ResolveEscalation(ctx context.Context, escalationId string) error {
	now := time.Now()
	return r.Database().WithContext(ctx).
		Model(&model.EscalationRecord{}).
		Where("escalation_id = ?", escalationId).
		Updates(map[string]any{"resolved": true, "resolved_at": &now}).Error
}
