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

package model

import (
	"gorm.io/datatypes"
)

type StoryStatus string

const (
	StoryStatusDraft      StoryStatus = "draft"
	StoryStatusReady      StoryStatus = "ready"
	StoryStatusInProgress StoryStatus = "in_progress"
	StoryStatusReview     StoryStatus = "review"
	StoryStatusDone       StoryStatus = "done"
	StoryStatusBlocked    StoryStatus = "blocked"
)

// ParseStoryStatus reports whether s names a known story status.
func ParseStoryStatus(s string) (StoryStatus, bool) {
	switch st := StoryStatus(s); st {
	case StoryStatusDraft, StoryStatusReady, StoryStatusInProgress,
		StoryStatusReview, StoryStatusDone, StoryStatusBlocked:
		return st, true
	}
	return "", false
}

// Story is the delivery status of a story, optionally nested under a parent.
type Story struct {
	BaseModel
	StoryId  string      `gorm:"column:story_id;uniqueIndex;size:64" json:"storyId"`
	ParentId string      `gorm:"column:parent_id;index;size:64" json:"parentId,omitempty"`
	Title    string      `gorm:"column:title" json:"title"`
	Status   StoryStatus `gorm:"column:status;size:32" json:"status"`
}

func (Story) TableName() string {
	return "t_story"
}

// StoryLink binds a story to a GitHub issue or pull request number.
type StoryLink struct {
	BaseModel
	StoryId     string `gorm:"column:story_id;index;size:64" json:"storyId"`
	Repository  string `gorm:"column:repository;index:idx_link_issue;size:255" json:"repository"`
	IssueNumber int    `gorm:"column:issue_number;index:idx_link_issue" json:"issueNumber"`
}

func (StoryLink) TableName() string {
	return "t_story_link"
}

// AuditLog is an append-only trail of story status changes.
type AuditLog struct {
	BaseModel
	EventKey    string            `gorm:"column:event_key;size:64" json:"eventKey"`
	StoryId     string            `gorm:"column:story_id;index;size:64" json:"storyId"`
	OldStatus   string            `gorm:"column:old_status;size:32" json:"oldStatus"`
	NewStatus   string            `gorm:"column:new_status;size:32" json:"newStatus"`
	TriggerType string            `gorm:"column:trigger_type;size:32" json:"triggerType"`
	Repository  string            `gorm:"column:repository;size:255" json:"repository"`
	PrNumber    int               `gorm:"column:pr_number" json:"prNumber,omitempty"`
	IssueNumber int               `gorm:"column:issue_number" json:"issueNumber,omitempty"`
	CommitSha   string            `gorm:"column:commit_sha;size:64" json:"commitSha,omitempty"`
	Sender      string            `gorm:"column:sender" json:"sender"`
	Metadata    datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
}

func (AuditLog) TableName() string {
	return "t_audit_log"
}
