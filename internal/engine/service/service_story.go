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

package service

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/pkg/logger"
)

var ErrInvalidStoryLink = errors.New("invalid story link")

// StoryLinkReq binds a story to an issue or pull request, creating the story when needed.
type StoryLinkReq struct {
	StoryId     string `json:"storyId" validate:"required"`
	ParentId    string `json:"parentId"`
	Title       string `json:"title"`
	Status      string `json:"status"`
	Repository  string `json:"repository" validate:"required"`
	IssueNumber int    `json:"issueNumber" validate:"gt=0"`
}

type StoryDetail struct {
	Story *model.Story      `json:"story"`
	Audit []*model.AuditLog `json:"audit"`
}

type StoryService struct {
	stories repo.IStoryRepository
	log     *logger.Logger
}

func NewStoryService(stories repo.IStoryRepository) *StoryService {
	return &StoryService{stories: stories, log: logger.Channel("story")}
}

// LinkStory records the link and creates the story in draft when it is unknown.
func (s *StoryService) LinkStory(ctx context.Context, req *StoryLinkReq) (*model.StoryLink, error) {
	req.StoryId = strings.TrimSpace(req.StoryId)
	req.Repository = strings.TrimSpace(req.Repository)
	if req.StoryId == "" || req.Repository == "" || req.IssueNumber <= 0 {
		return nil, ErrInvalidStoryLink
	}
	status := model.StoryStatusDraft
	if req.Status != "" {
		st, ok := model.ParseStoryStatus(req.Status)
		if !ok {
			return nil, fmt.Errorf("%w: unknown status %q", ErrInvalidStoryLink, req.Status)
		}
		status = st
	}

	story, err := s.stories.GetStory(ctx, req.StoryId)
	if err != nil {
		return nil, err
	}
	if story == nil {
		story = &model.Story{StoryId: req.StoryId, ParentId: req.ParentId, Title: req.Title, Status: status}
		if err := s.stories.SaveStory(ctx, story); err != nil {
			return nil, fmt.Errorf("save story %s: %w", req.StoryId, err)
		}
		s.log.Infow("created story", "storyId", story.StoryId, "status", story.Status)
	}

	link := &model.StoryLink{StoryId: req.StoryId, Repository: req.Repository, IssueNumber: req.IssueNumber}
	if err := s.stories.CreateLink(ctx, link); err != nil {
		return nil, fmt.Errorf("link story %s: %w", req.StoryId, err)
	}
	s.log.Infow("linked story", "storyId", link.StoryId, "repository", link.Repository, "issue", link.IssueNumber)
	return link, nil
}

// GetStory returns the story with its audit trail, or nil when unknown.
func (s *StoryService) GetStory(ctx context.Context, storyId string) (*StoryDetail, error) {
	story, err := s.stories.GetStory(ctx, storyId)
	if err != nil || story == nil {
		return nil, err
	}
	audit, err := s.stories.ListAudit(ctx, storyId)
	if err != nil {
		return nil, err
	}
	return &StoryDetail{Story: story, Audit: audit}, nil
}
