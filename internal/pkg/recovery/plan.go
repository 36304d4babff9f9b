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

package recovery

import (
	"context"
	"fmt"
	"slices"
	"sort"

	"github.com/arcentrix/storyflow/internal/engine/model"
)

const (
	stepAnalyzeFailureCause     = "analyze_failure_cause"
	stepCheckRetryLimits        = "check_retry_limits"
	stepApplyFailureFixes       = "apply_failure_specific_fixes"
	stepTriggerWorkflowRetry    = "trigger_workflow_retry"
	stepMonitorRetryExecution   = "monitor_retry_execution"
	stepValidateSuccess         = "validate_success"
	stepIdentifyResumptionPoint = "identify_resumption_point"
	stepValidateCheckpointState = "validate_checkpoint_state"
	stepRestoreEnvironmentCtx   = "restore_environment_context"
	stepResolveDependencies     = "resolve_dependencies"
	stepResumeFromCheckpoint    = "resume_from_checkpoint"
	stepMonitorExecution        = "monitor_execution"
	stepValidateCompletion      = "validate_completion"
	stepIdentifyRollbackTarget  = "identify_rollback_target"
	stepValidateRollbackCp      = "validate_rollback_checkpoint"
	stepBackupCurrentState      = "backup_current_state"
	stepExecuteRollbackOps      = "execute_rollback_operations"
	stepRestoreEnvironment      = "restore_environment"
	stepValidateRollbackSuccess = "validate_rollback_success"
	stepApplyLintingFixes       = "apply_linting_fixes"
	stepAnalyzeTestFailures     = "analyze_test_failures"
	stepCheckBuildDependencies  = "check_build_dependencies"
)

var basePlans = map[model.RecoveryType][]string{
	model.RecoveryTypeRetry: {
		stepAnalyzeFailureCause,
		stepCheckRetryLimits,
		stepApplyFailureFixes,
		stepTriggerWorkflowRetry,
		stepMonitorRetryExecution,
		stepValidateSuccess,
	},
	model.RecoveryTypeResume: {
		stepIdentifyResumptionPoint,
		stepValidateCheckpointState,
		stepRestoreEnvironmentCtx,
		stepResolveDependencies,
		stepResumeFromCheckpoint,
		stepMonitorExecution,
		stepValidateCompletion,
	},
	model.RecoveryTypeRollback: {
		stepIdentifyRollbackTarget,
		stepValidateRollbackCp,
		stepBackupCurrentState,
		stepExecuteRollbackOps,
		stepRestoreEnvironment,
		stepValidateRollbackSuccess,
	},
}

var categorySteps = map[model.FailureCategory]string{
	model.CategoryLinting: stepApplyLintingFixes,
	model.CategoryTesting: stepAnalyzeTestFailures,
	model.CategoryBuild:   stepCheckBuildDependencies,
}

// buildPlan returns the ordered steps for a recovery type. A category specific
// step goes before the last two steps.
func buildPlan(recoveryType model.RecoveryType, category model.FailureCategory) ([]string, error) {
	base, ok := basePlans[recoveryType]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnknownRecoveryType, recoveryType)
	}
	plan := slices.Clone(base)
	if extra, ok := categorySteps[category]; ok {
		plan = slices.Insert(plan, len(plan)-2, extra)
	}
	return plan, nil
}

// execution carries what earlier steps of one recovery resolved for later ones.
type execution struct {
	manager *Manager
	state   *model.RecoveryState
	target  *model.WorkflowCheckpoint
}

func (e *execution) run(ctx context.Context, step string) (bool, error) {
	switch step {
	case stepCheckRetryLimits:
		return true, nil
	case stepTriggerWorkflowRetry:
		return e.retrySucceeds(), nil
	case stepIdentifyResumptionPoint, stepIdentifyRollbackTarget:
		return e.loadTarget(ctx, step == stepIdentifyRollbackTarget)
	case stepValidateCheckpointState, stepValidateRollbackCp:
		if e.target == nil {
			return true, nil
		}
		v := e.manager.ValidateState(e.target)
		if len(v.Warnings) > 0 {
			e.state.RecoveryContext["validation_warnings"] = v.Warnings
		}
		if !v.IsValid {
			e.state.RecoveryContext["validation_errors"] = v.Errors
		}
		return v.IsValid, nil
	case stepRestoreEnvironmentCtx:
		e.state.RecoveryContext["restored_environment"] = e.environmentKeys()
		return true, nil
	case stepResolveDependencies:
		if e.target != nil {
			e.state.RecoveryContext["resolved_dependencies"] = e.target.Dependencies
		}
		return true, nil
	case stepResumeFromCheckpoint:
		if e.target == nil {
			e.state.RecoveryContext["resumed_from"] = "start"
			return true, nil
		}
		e.state.RecoveryContext["resumed_from"] = e.target.CheckpointId
		return true, nil
	case stepBackupCurrentState:
		e.state.RecoveryContext["backup_of"] = e.state.FailureId
		return true, nil
	case stepExecuteRollbackOps:
		return e.manager.RollbackToCheckpoint(ctx, e.target, "recovery_rollback")
	default:
		return true, nil
	}
}

// retrySucceeds mirrors the monitor's auto-fix heuristic, with a configured
// success chance for categories it cannot fix.
func (e *execution) retrySucceeds() bool {
	category := model.FailureCategory(e.originalCategory())
	if category.AutoFixable() {
		return true
	}
	return e.manager.rand() < e.manager.conf.RetrySuccessProbability
}

func (e *execution) originalCategory() string {
	original, ok := e.state.RecoveryContext["original_failure"].(map[string]any)
	if !ok {
		return ""
	}
	category, _ := original["category"].(string)
	return category
}

// loadTarget re-reads the target checkpoint. A resume without a target starts
// from the beginning; a rollback without one fails.
func (e *execution) loadTarget(ctx context.Context, required bool) (bool, error) {
	id := e.state.TargetCheckpointId
	if id == "" {
		if required {
			e.state.ErrorMessage = "no rollback checkpoint"
			return false, nil
		}
		e.manager.log.Warnw("resuming without checkpoint", "recoveryId", e.state.RecoveryId)
		return true, nil
	}
	cp, err := e.manager.repo.GetCheckpoint(ctx, id)
	if err != nil {
		return false, fmt.Errorf("get checkpoint %s: %w", id, err)
	}
	if cp == nil {
		e.state.ErrorMessage = fmt.Sprintf("%s: %s", ErrCheckpointNotFound, id)
		return false, nil
	}
	e.target = cp
	return true, nil
}

func (e *execution) environmentKeys() []string {
	if e.target == nil {
		return []string{}
	}
	keys := make([]string, 0, len(e.target.EnvironmentContext))
	for k := range e.target.EnvironmentContext {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}
