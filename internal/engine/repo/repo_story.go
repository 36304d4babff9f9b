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

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/database"
	"gorm.io/gorm"
)

// maxPropagationDepth bounds parent status propagation on malformed hierarchies.
const maxPropagationDepth = 16

// IStoryRepository persists stories, their issue links and the status audit trail.
type IStoryRepository interface {
	SaveStory(ctx context.Context, story *model.Story) error
	GetStory(ctx context.Context, storyId string) (*model.Story, error)
	UpdateStatus(ctx context.Context, storyId string, status model.StoryStatus) (bool, error)
	CreateLink(ctx context.Context, link *model.StoryLink) error
	ListStoryIdsByIssue(ctx context.Context, repository string, issueNumber int) ([]string, error)
	AppendAudit(ctx context.Context, entry *model.AuditLog) error
	ListAudit(ctx context.Context, storyId string) ([]*model.AuditLog, error)
}

type StoryRepo struct {
	database.IDatabase
}

// NewStoryRepo creates story repository.
func NewStoryRepo(db database.IDatabase) IStoryRepository {
	return &StoryRepo{IDatabase: db}
}

// SaveStory inserts a story or updates title, parent and status of the stored one.
func (r *StoryRepo) SaveStory(ctx context.Context, story *model.Story) error {
	var existing model.Story
	err := r.Database().WithContext(ctx).
		Where("story_id = ?", story.StoryId).
		First(&existing).Error
	if errors.Is(err, gorm.ErrRecordNotFound) {
		return r.Database().WithContext(ctx).Create(story).Error
	}
	if err != nil {
		return err
	}
	story.ID = existing.ID
	story.CreatedAt = existing.CreatedAt
	return r.Database().WithContext(ctx).Save(story).Error
}

// GetStory returns a story, or (nil, nil) when not found.
func (r *StoryRepo) GetStory(ctx context.Context, storyId string) (*model.Story, error) {
	var one model.Story
	err := r.Database().WithContext(ctx).
		Where("story_id = ?", storyId).
		First(&one).Error
	if err != nil {
		if errors.Is(err, gorm.ErrRecordNotFound) {
			return nil, nil
		}
		return nil, err
	}
	return &one, nil
}

// UpdateStatus sets the story status and recomputes the status of its ancestors.
// It reports false when the story does not exist.
func (r *StoryRepo) UpdateStatus(ctx context.Context, storyId string, status model.StoryStatus) (bool, error) {
	updated := false
	err := r.Database().WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		res := tx.Model(&model.Story{}).
			Where("story_id = ?", storyId).
			Update("status", status)
		if res.Error != nil {
			return res.Error
		}
		if res.RowsAffected == 0 {
			return nil
		}
		updated = true
		return propagateToParent(tx, storyId, 0)
	})
	if err != nil {
		return false, err
	}
	return updated, nil
}

func propagateToParent(tx *gorm.DB, storyId string, depth int) error {
	if depth >= maxPropagationDepth {
		return nil
	}
	var child model.Story
	if err := tx.Where("story_id = ?", storyId).First(&child).Error; err != nil {
		return err
	}
	if child.ParentId == "" {
		return nil
	}
	var statuses []model.StoryStatus
	if err := tx.Model(&model.Story{}).
		Where("parent_id = ?", child.ParentId).
		Pluck("status", &statuses).Error; err != nil {
		return err
	}
	next, ok := ParentStatus(statuses)
	if !ok {
		return nil
	}
	if err := tx.Model(&model.Story{}).
		Where("story_id = ?", child.ParentId).
		Update("status", next).Error; err != nil {
		return err
	}
	return propagateToParent(tx, child.ParentId, depth+1)
}

// ParentStatus derives a parent status from the statuses of its children.
func ParentStatus(children []model.StoryStatus) (model.StoryStatus, bool) {
	if len(children) == 0 {
		return "", false
	}
	var done, blocked, active, early int
	for _, s := range children {
		switch s {
		case model.StoryStatusDone:
			done++
		case model.StoryStatusBlocked:
			blocked++
		case model.StoryStatusInProgress, model.StoryStatusReview:
			active++
		case model.StoryStatusReady, model.StoryStatusDraft:
			early++
		}
	}
	switch {
	case done == len(children):
		return model.StoryStatusDone, true
	case blocked > 0:
		return model.StoryStatusBlocked, true
	case active > 0:
		return model.StoryStatusInProgress, true
	case early == len(children):
		return model.StoryStatusReady, true
	default:
		return model.StoryStatusInProgress, true
	}
}

// CreateLink records a story to issue link once.
func (r *StoryRepo) CreateLink(ctx context.Context, link *model.StoryLink) error {
	return r.Database().WithContext(ctx).
		Where(model.StoryLink{StoryId: link.StoryId, Repository: link.Repository, IssueNumber: link.IssueNumber}).
		FirstOrCreate(link).Error
}

// ListStoryIdsByIssue returns the stories linked to a repository issue number.
func (r *StoryRepo) ListStoryIdsByIssue(ctx context.Context, repository string, issueNumber int) ([]string, error) {
	var ids []string
	err := r.Database().WithContext(ctx).
		Model(&model.StoryLink{}).
		Where("repository = ? AND issue_number = ?", repository, issueNumber).
		Order("id ASC").
		Pluck("story_id", &ids).Error
	if err != nil {
		return nil, err
	}
	seen := make(map[string]struct{}, len(ids))
	out := ids[:0]
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out, nil
}

func (r *StoryRepo) AppendAudit(ctx context.Context, entry *model.AuditLog) error {
	return r.Database().WithContext(ctx).Create(entry).Error
}

// ListAudit returns the audit trail of a story, oldest first.
func (r *StoryRepo) ListAudit(ctx context.Context, storyId string) ([]*model.AuditLog, error) {
	var list []*model.AuditLog
	err := r.Database().WithContext(ctx).
		Where("story_id = ?", storyId).
		Order("id ASC").
		Find(&list).Error
	if err != nil {
		return nil, err
	}
	return list, nil
}
