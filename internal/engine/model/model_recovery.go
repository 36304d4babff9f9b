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
	"time"

	"gorm.io/datatypes"
)

type RecoveryType string

const (
	RecoveryTypeRetry    RecoveryType = "retry"
	RecoveryTypeResume   RecoveryType = "resume"
	RecoveryTypeRollback RecoveryType = "rollback"
	// RecoveryTypeAuto lets the monitor pick one of the above.
	RecoveryTypeAuto RecoveryType = "auto"
)

type RecoveryStatus string

const (
	RecoveryStatusPending    RecoveryStatus = "pending"
	RecoveryStatusInProgress RecoveryStatus = "in_progress"
	RecoveryStatusCompleted  RecoveryStatus = "completed"
	RecoveryStatusFailed     RecoveryStatus = "failed"
)

// IsFinal reports whether the status can no longer change.
func (s RecoveryStatus) IsFinal() bool {
	return s == RecoveryStatusCompleted || s == RecoveryStatusFailed
}

// WorkflowCheckpoint is an immutable snapshot taken during a run.
type WorkflowCheckpoint struct {
	BaseModel
	CheckpointId       string            `gorm:"column:checkpoint_id;uniqueIndex;size:64" json:"checkpointId"`
	Repository         string            `gorm:"column:repository;index;size:255" json:"repository"`
	WorkflowName       string            `gorm:"column:workflow_name" json:"workflowName"`
	RunId              string            `gorm:"column:run_id;index;size:64" json:"runId"`
	CommitSha          string            `gorm:"column:commit_sha;size:64" json:"commitSha"`
	CheckpointType     string            `gorm:"column:checkpoint_type;size:32" json:"checkpointType"`
	CheckpointName     string            `gorm:"column:checkpoint_name" json:"checkpointName"`
	WorkflowState      datatypes.JSONMap `gorm:"column:workflow_state" json:"workflowState"`
	EnvironmentContext datatypes.JSONMap `gorm:"column:environment_context" json:"environmentContext"`
	Dependencies       []string          `gorm:"column:dependencies;serializer:json" json:"dependencies"`
	Artifacts          []string          `gorm:"column:artifacts;serializer:json" json:"artifacts"`
}

func (WorkflowCheckpoint) TableName() string {
	return "t_workflow_checkpoint"
}

// RecoveryState tracks one recovery from pending to a final status.
type RecoveryState struct {
	BaseModel
	RecoveryId         string            `gorm:"column:recovery_id;uniqueIndex;size:64" json:"recoveryId"`
	FailureId          string            `gorm:"column:failure_id;index;size:64" json:"failureId"`
	Repository         string            `gorm:"column:repository;index;size:255" json:"repository"`
	RecoveryType       RecoveryType      `gorm:"column:recovery_type;size:16" json:"recoveryType"`
	Status             RecoveryStatus    `gorm:"column:status;size:16" json:"status"`
	TargetCheckpointId string            `gorm:"column:target_checkpoint_id;size:64" json:"targetCheckpointId,omitempty"`
	RecoveryPlan       []string          `gorm:"column:recovery_plan;serializer:json" json:"recoveryPlan"`
	ProgressSteps      []string          `gorm:"column:progress_steps;serializer:json" json:"progressSteps"`
	RecoveryContext    datatypes.JSONMap `gorm:"column:recovery_context" json:"recoveryContext"`
	StartedAt          *time.Time        `gorm:"column:started_at" json:"startedAt"`
	CompletedAt        *time.Time        `gorm:"column:completed_at" json:"completedAt"`
	ErrorMessage       string            `gorm:"column:error_message" json:"errorMessage"`
}

func (RecoveryState) TableName() string {
	return "t_recovery_state"
}
