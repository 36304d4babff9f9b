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

// IAssignmentRepository persists the assignment history.
type IAssignmentRepository interface {
	Append(ctx context.Context, record *model.AssignmentRecord) error
	MarkCompleted(ctx context.Context, storyId string, success bool) (*model.AssignmentRecord, error)
	List(ctx context.Context) ([]*model.AssignmentRecord, error)
}

type AssignmentRepo struct {
	database.IDatabase
}

// NewAssignmentRepo creates assignment repository.
func NewAssignmentRepo(db database.IDatabase) IAssignmentRepository {
	return &AssignmentRepo{IDatabase: db}
}

func (r *AssignmentRepo) Append(ctx context.Context, record *model.AssignmentRecord) error {
	return r.Database().WithContext(ctx).Create(record).Error
}

// MarkCompleted flags the latest open assignment of the story as completed.
// Returns (nil, nil) when the story has no open assignment.
func (r *AssignmentRepo) MarkCompleted(ctx context.Context, storyId string, success bool) (*model.AssignmentRecord, error) {
	var one model.AssignmentRecord
	err := r.Database().WithContext(ctx).
		Where("story_id = ? AND should_assign = ? AND completed = ?", storyId, true, false).
		Order("id DESC").
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	now := time.Now()
	if err := r.Database().WithContext(ctx).
		Model(&model.AssignmentRecord{}).
		Where("id = ?", one.ID).
		Updates(map[string]any{"completed": true, "success": success, "completed_at": &now}).Error; err != nil {
		return nil, err
	}
	one.Completed = true
	one.Success = success
	one.CompletedAt = &now
	return &one, nil
}

// List returns the full history in append order.
func (r *AssignmentRepo) List(ctx context.Context) ([]*model.AssignmentRecord, error) {
	var list []*model.AssignmentRecord
	if err := r.Database().WithContext(ctx).Order("id ASC").Find(&list).Error; err != nil {
		return nil, err
	}
	return list, nil
}
