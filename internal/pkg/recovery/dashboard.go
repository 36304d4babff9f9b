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
	"math"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
)

const dashboardRecentLimit = 10

type Dashboard struct {
	Summary           Summary           `json:"recoverySummary"`
	ByType            map[string]int    `json:"recoveryByType"`
	RecentRecoveries  []RecoveryBrief   `json:"recentRecoveries"`
	RecentCheckpoints []CheckpointBrief `json:"recentCheckpoints"`
	LastUpdated       time.Time         `json:"lastUpdated"`
}

type Summary struct {
	Total       int     `json:"totalRecoveries"`
	Successful  int     `json:"successfulRecoveries"`
	Failed      int     `json:"failedRecoveries"`
	InProgress  int     `json:"inProgressRecoveries"`
	SuccessRate float64 `json:"successRate"`
	Days        int     `json:"timePeriodDays"`
}

type RecoveryBrief struct {
	RecoveryId  string               `json:"id"`
	Type        model.RecoveryType   `json:"type"`
	Status      model.RecoveryStatus `json:"status"`
	Repository  string               `json:"repository"`
	StartedAt   *time.Time           `json:"startedAt"`
	CompletedAt *time.Time           `json:"completedAt"`
}

type CheckpointBrief struct {
	CheckpointId   string    `json:"id"`
	Repository     string    `json:"repository"`
	WorkflowName   string    `json:"workflowName"`
	CheckpointName string    `json:"checkpointName"`
	CreatedAt      time.Time `json:"createdAt"`
}

// RecoveryDashboard aggregates recoveries started in the last days.
func (m *Manager) RecoveryDashboard(ctx context.Context, repository string, days int) (*Dashboard, error) {
	since := m.now().AddDate(0, 0, -days)
	states, err := m.repo.ListRecoveries(ctx, repository, since)
	if err != nil {
		return nil, err
	}
	checkpoints, err := m.repo.ListCheckpoints(ctx, &repo.CheckpointQuery{Repository: repository})
	if err != nil {
		return nil, err
	}

	d := &Dashboard{
		Summary:           Summary{Total: len(states), Days: days},
		ByType:            map[string]int{},
		RecentRecoveries:  []RecoveryBrief{},
		RecentCheckpoints: []CheckpointBrief{},
		LastUpdated:       m.now().UTC(),
	}
	for _, s := range states {
		d.ByType[string(s.RecoveryType)]++
		switch s.Status {
		case model.RecoveryStatusCompleted:
			d.Summary.Successful++
		case model.RecoveryStatusFailed:
			d.Summary.Failed++
		case model.RecoveryStatusInProgress:
			d.Summary.InProgress++
		}
	}
	if d.Summary.Total > 0 {
		rate := float64(d.Summary.Successful) / float64(d.Summary.Total) * 100
		d.Summary.SuccessRate = math.Round(rate*100) / 100
	}
	// states are oldest first; show the newest
	for i := len(states) - 1; i >= 0 && len(d.RecentRecoveries) < dashboardRecentLimit; i-- {
		s := states[i]
		d.RecentRecoveries = append(d.RecentRecoveries, RecoveryBrief{
			RecoveryId:  s.RecoveryId,
			Type:        s.RecoveryType,
			Status:      s.Status,
			Repository:  s.Repository,
			StartedAt:   s.StartedAt,
			CompletedAt: s.CompletedAt,
		})
	}
	for _, c := range checkpoints {
		if len(d.RecentCheckpoints) == dashboardRecentLimit {
			break
		}
		d.RecentCheckpoints = append(d.RecentCheckpoints, CheckpointBrief{
			CheckpointId:   c.CheckpointId,
			Repository:     c.Repository,
			WorkflowName:   c.WorkflowName,
			CheckpointName: c.CheckpointName,
			CreatedAt:      c.CreatedAt,
		})
	}
	return d, nil
}
