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

type PipelineStatus string

const (
	PipelineStatusPending    PipelineStatus = "pending"
	PipelineStatusInProgress PipelineStatus = "in_progress"
	PipelineStatusSuccess    PipelineStatus = "success"
	PipelineStatusFailure    PipelineStatus = "failure"
	PipelineStatusCancelled  PipelineStatus = "cancelled"
)

// IsTerminal reports whether the run may no longer change.
func (s PipelineStatus) IsTerminal() bool {
	return s == PipelineStatusSuccess || s == PipelineStatusFailure || s == PipelineStatusCancelled
}

type FailureCategory string

const (
	CategoryLinting        FailureCategory = "linting"
	CategoryFormatting     FailureCategory = "formatting"
	CategoryTesting        FailureCategory = "testing"
	CategoryBuild          FailureCategory = "build"
	CategoryDeployment     FailureCategory = "deployment"
	CategoryDependency     FailureCategory = "dependency"
	CategoryTimeout        FailureCategory = "timeout"
	CategoryInfrastructure FailureCategory = "infrastructure"
	CategoryUnknown        FailureCategory = "unknown"
)

// AutoFixable reports whether failures of this category are fixed by automation.
func (c FailureCategory) AutoFixable() bool {
	return c == CategoryLinting || c == CategoryFormatting
}

type FailureSeverity string

const (
	SeverityLow      FailureSeverity = "low"
	SeverityMedium   FailureSeverity = "medium"
	SeverityHigh     FailureSeverity = "high"
	SeverityCritical FailureSeverity = "critical"
)

// PipelineRun is one CI workflow run.
type PipelineRun struct {
	BaseModel
	RunId        string            `gorm:"column:run_id;uniqueIndex;size:64" json:"runId"`
	Repository   string            `gorm:"column:repository;index;size:255" json:"repository"`
	Branch       string            `gorm:"column:branch" json:"branch"`
	CommitSha    string            `gorm:"column:commit_sha;size:64" json:"commitSha"`
	WorkflowName string            `gorm:"column:workflow_name" json:"workflowName"`
	Status       PipelineStatus    `gorm:"column:status;size:32" json:"status"`
	StartedAt    time.Time         `gorm:"column:started_at" json:"startedAt"`
	CompletedAt  *time.Time        `gorm:"column:completed_at" json:"completedAt"`
	GithubRunId  int64             `gorm:"column:github_run_id" json:"githubRunId"`
	RunNumber    int               `gorm:"column:run_number" json:"runNumber"`
	Event        string            `gorm:"column:event" json:"event"`
	Actor        string            `gorm:"column:actor" json:"actor"`
	Metadata     datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
	Failures     []PipelineFailure `gorm:"-" json:"failures"`
}

func (PipelineRun) TableName() string {
	return "t_pipeline_run"
}

// PipelineFailure is one failed job of a run.
type PipelineFailure struct {
	BaseModel
	FailureId      string            `gorm:"column:failure_id;uniqueIndex;size:64" json:"failureId"`
	Repository     string            `gorm:"column:repository;index;size:255" json:"repository"`
	Branch         string            `gorm:"column:branch" json:"branch"`
	CommitSha      string            `gorm:"column:commit_sha;size:64" json:"commitSha"`
	PipelineId     string            `gorm:"column:pipeline_id;index;size:64" json:"pipelineId"`
	JobId          int64             `gorm:"column:job_id" json:"jobId"`
	JobName        string            `gorm:"column:job_name" json:"jobName"`
	StepName       string            `gorm:"column:step_name" json:"stepName"`
	Conclusion     string            `gorm:"column:conclusion;size:32" json:"conclusion"`
	FailureMessage string            `gorm:"column:failure_message;size:255" json:"failureMessage"`
	FailureLogs    string            `gorm:"column:failure_logs;type:text" json:"failureLogs"`
	Category       FailureCategory   `gorm:"column:category;size:32" json:"category"`
	Severity       FailureSeverity   `gorm:"column:severity;size:16" json:"severity"`
	RetryCount     int               `gorm:"column:retry_count" json:"retryCount"`
	DetectedAt     time.Time         `gorm:"column:detected_at;index" json:"detectedAt"`
	ResolvedAt     *time.Time        `gorm:"column:resolved_at" json:"resolvedAt"`
	Metadata       datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
}

func (PipelineFailure) TableName() string {
	return "t_pipeline_failure"
}

// FailurePattern aggregates at least two similar failures.
type FailurePattern struct {
	BaseModel
	PatternId             string          `gorm:"column:pattern_id;size:64" json:"patternId"`
	Signature             string          `gorm:"column:signature;uniqueIndex;size:255" json:"signature"`
	Category              FailureCategory `gorm:"column:category;size:32" json:"category"`
	Description           string          `gorm:"column:description" json:"description"`
	FailureCount          int             `gorm:"column:failure_count" json:"failureCount"`
	Repositories          []string        `gorm:"column:repositories;serializer:json" json:"repositories"`
	FirstSeen             time.Time       `gorm:"column:first_seen" json:"firstSeen"`
	LastSeen              time.Time       `gorm:"column:last_seen" json:"lastSeen"`
	ResolutionSuggestions []string        `gorm:"column:resolution_suggestions;serializer:json" json:"resolutionSuggestions"`
}

func (FailurePattern) TableName() string {
	return "t_failure_pattern"
}

// RetryAttempt is an append-only record of one retry.
type RetryAttempt struct {
	BaseModel
	AttemptId         string            `gorm:"column:attempt_id;uniqueIndex;size:64" json:"attemptId"`
	FailureId         string            `gorm:"column:failure_id;index;size:64" json:"failureId"`
	Repository        string            `gorm:"column:repository;index;size:255" json:"repository"`
	AttemptNumber     int               `gorm:"column:attempt_number" json:"attemptNumber"`
	Success           bool              `gorm:"column:success" json:"success"`
	RetryDelaySeconds int               `gorm:"column:retry_delay_seconds" json:"retryDelaySeconds"`
	AttemptedAt       time.Time         `gorm:"column:attempted_at;index" json:"attemptedAt"`
	CompletedAt       *time.Time        `gorm:"column:completed_at" json:"completedAt"`
	ErrorMessage      string            `gorm:"column:error_message" json:"errorMessage"`
	Metadata          datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
}

func (RetryAttempt) TableName() string {
	return "t_retry_attempt"
}

const EscalationLevelAgent = "agent"

// EscalationRecord marks a recurring failure signature surfaced to agents or humans.
type EscalationRecord struct {
	BaseModel
	EscalationId     string            `gorm:"column:escalation_id;uniqueIndex;size:64" json:"escalationId"`
	Repository       string            `gorm:"column:repository;index;size:255" json:"repository"`
	FailurePattern   string            `gorm:"column:failure_pattern;index;size:255" json:"failurePattern"`
	FailureCount     int               `gorm:"column:failure_count" json:"failureCount"`
	EscalatedAt      time.Time         `gorm:"column:escalated_at;index" json:"escalatedAt"`
	Resolved         bool              `gorm:"column:resolved" json:"resolved"`
	ResolvedAt       *time.Time        `gorm:"column:resolved_at" json:"resolvedAt"`
	EscalationLevel  string            `gorm:"column:escalation_level;size:32" json:"escalationLevel"`
	ChannelsUsed     []string          `gorm:"column:channels_used;serializer:json" json:"channelsUsed"`
	ContactsNotified []string          `gorm:"column:contacts_notified;serializer:json" json:"contactsNotified"`
	Metadata         datatypes.JSONMap `gorm:"column:metadata" json:"metadata"`
}

func (EscalationRecord) TableName() string {
	return "t_escalation_record"
}
