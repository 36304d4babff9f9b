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

import "time"

// AssignmentRecord is the durable copy of one assignment decision.
type AssignmentRecord struct {
	BaseModel
	StoryId         string     `gorm:"column:story_id;index;size:64" json:"storyId"`
	ShouldAssign    bool       `gorm:"column:should_assign" json:"shouldAssign"`
	Assignee        string     `gorm:"column:assignee;index;size:128" json:"assignee,omitempty"`
	Reason          string     `gorm:"column:reason;size:32" json:"reason"`
	Explanation     string     `gorm:"column:explanation" json:"explanation"`
	Priority        string     `gorm:"column:priority;size:16" json:"priority"`
	Complexity      string     `gorm:"column:complexity;size:16" json:"complexity"`
	EstimatedEffort float64    `gorm:"column:estimated_effort" json:"estimatedEffort"`
	ManualOverride  bool       `gorm:"column:manual_override" json:"manualOverride"`
	Completed       bool       `gorm:"column:completed" json:"completed"`
	Success         bool       `gorm:"column:success" json:"success"`
	CompletedAt     *time.Time `gorm:"column:completed_at" json:"completedAt,omitempty"`
}

func (AssignmentRecord) TableName() string {
	return "t_assignment_record"
}
