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
	"strings"
	"time"

	"github.com/google/uuid"
)

// BaseModel holds the surrogate key and bookkeeping timestamps.
type BaseModel struct {
	ID        uint      `gorm:"column:id;primaryKey;autoIncrement" json:"-"`
	CreatedAt time.Time `gorm:"column:created_at" json:"createdAt"`
	UpdatedAt time.Time `gorm:"column:updated_at" json:"updatedAt"`
}

// NewID returns a compact random business id with the given prefix.
func NewID(prefix string) string {
	id := strings.ReplaceAll(uuid.NewString(), "-", "")
	if prefix == "" {
		return id
	}
	return prefix + "_" + id
}

// AllModels lists every table for auto migration.
func AllModels() []any {
	return []any{
		&PipelineRun{},
		&PipelineFailure{},
		&FailurePattern{},
		&RetryAttempt{},
		&EscalationRecord{},
		&WorkflowCheckpoint{},
		&RecoveryState{},
		&Story{},
		&StoryLink{},
		&AuditLog{},
		&AssignmentRecord{},
	}
}
