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

// CheckpointQuery selects checkpoints of one repository matching a run id or a commit.
type CheckpointQuery struct {
	Repository string
	RunId      string
	CommitSha  string
	// Before keeps only checkpoints created strictly before this time when set.
	Before time.Time
}

// IRecoveryRepository persists checkpoints and recovery states.
type IRecoveryRepository interface {
	CreateCheckpoint(ctx context.Context, cp *model.WorkflowCheckpoint) error
	GetCheckpoint(ctx context.Context, checkpointId string) (*model.WorkflowCheckpoint, error)
	ListCheckpoints(ctx context.Context, query *CheckpointQuery) ([]*model.WorkflowCheckpoint, error)
	SaveRecovery(ctx context.Context, state *model.RecoveryState) error
	GetRecovery(ctx context.Context, recoveryId string) (*model.RecoveryState, error)
	ListRecoveries(ctx context.Context, repository string, since time.Time) ([]*model.RecoveryState, error)
}

type RecoveryRepo struct {
	database.IDatabase
}

// NewRecoveryRepo creates recovery repository.
func NewRecoveryRepo(db database.IDatabase) IRecoveryRepository {
	return &RecoveryRepo{IDatabase: db}
}

func (r *RecoveryRepo) CreateCheckpoint(ctx context.Context, cp *model.WorkflowCheckpoint) error {
	return r.Database().WithContext(ctx).Create(cp).Error
}

// GetCheckpoint returns a checkpoint, or (nil, nil) when not found.
func (r *RecoveryRepo) GetCheckpoint(ctx context.Context, checkpointId string) (*model.WorkflowCheckpoint, error) {
	var one model.WorkflowCheckpoint
	err := r.Database().WithContext(ctx).
		Where("checkpoint_id = ?", checkpointId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// ListCheckpoints returns matching checkpoints, newest first.
func (r *RecoveryRepo) ListCheckpoints(ctx context.Context, query *CheckpointQuery) ([]*model.WorkflowCheckpoint, error) {
	if query == nil {
		query = &CheckpointQuery{}
	}
	tx := r.Database().WithContext(ctx).Model(&model.WorkflowCheckpoint{})
	if query.Repository != "" {
		tx = tx.Where("repository = ?", query.Repository)
	}
	switch {
	case query.RunId != "" && query.CommitSha != "":
		tx = tx.Where("run_id = ? OR commit_sha = ?", query.RunId, query.CommitSha)
	case query.RunId != "":
		tx = tx.Where("run_id = ?", query.RunId)
	case query.CommitSha != "":
		tx = tx.Where("commit_sha = ?", query.CommitSha)
	}
	if !query.Before.IsZero() {
		tx = tx.Where("created_at < ?", query.Before)
	}
	var list []*model.WorkflowCheckpoint
	if err := tx.Order("created_at DESC, id DESC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}

// SaveRecovery inserts a new recovery state or overwrites the stored one.
func (r *RecoveryRepo) SaveRecovery(ctx context.Context, state *model.RecoveryState) error {
	if state.ID == 0 {
		return r.Database().WithContext(ctx).Create(state).Error
	}
	return r.Database().WithContext(ctx).Save(state).Error
}

// GetRecovery returns a recovery state, or (nil, nil) when not found.
func (r *RecoveryRepo) GetRecovery(ctx context.Context, recoveryId string) (*model.RecoveryState, error) {
	var one model.RecoveryState
	err := r.Database().WithContext(ctx).
		Where("recovery_id = ?", recoveryId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

func (r *RecoveryRepo) ListRecoveries(ctx context.Context, repository string, since time.Time) ([]*model.RecoveryState, error) {
	tx := r.Database().WithContext(ctx).Model(&model.RecoveryState{})
	if repository != "" {
		tx = tx.Where("repository = ?", repository)
	}
	if !since.IsZero() {
		tx = tx.Where("created_at >= ?", since)
	}
	var list []*model.RecoveryState
	if err := tx.Order("created_at ASC, id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
