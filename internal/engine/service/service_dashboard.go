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

	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
)

type AssignmentDashboard struct {
	Statistics assignment.Statistics     `json:"statistics"`
	Workload   assignment.WorkloadReport `json:"workload"`
	Queue      []assignment.Record       `json:"queue"`
}

// DashboardService serves the read-only monitoring views.
type DashboardService struct {
	monitor  *monitor.Monitor
	recovery *recovery.Manager
	assigner *assignment.Engine
}

func NewDashboardService(m *monitor.Monitor, r *recovery.Manager, a *assignment.Engine) *DashboardService {
	return &DashboardService{monitor: m, recovery: r, assigner: a}
}

func (s *DashboardService) Failures(ctx context.Context, repository string, days int) (*monitor.FailureDashboard, error) {
	return s.monitor.FailureDashboard(ctx, repository, days)
}

func (s *DashboardService) Retries(ctx context.Context, repository string, days int) (*monitor.RetryDashboard, error) {
	return s.monitor.RetryDashboard(ctx, repository, days)
}

func (s *DashboardService) Recoveries(ctx context.Context, repository string, days int) (*recovery.Dashboard, error) {
	return s.recovery.RecoveryDashboard(ctx, repository, days)
}

func (s *DashboardService) Assignments() *AssignmentDashboard {
	return &AssignmentDashboard{
		Statistics: s.assigner.Statistics(),
		Workload:   s.assigner.WorkloadRecommendations(),
		Queue:      s.assigner.Queue(),
	}
}
