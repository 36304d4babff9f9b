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
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/arcentrix/storyflow/internal/pkg/notify"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/dedup"
	"github.com/arcentrix/storyflow/pkg/metrics"
)

// Services groups the services used by the router and the scheduled jobs.
type Services struct {
	Webhook    *WebhookService
	Story      *StoryService
	Dashboard  *DashboardService
	Workflow   *workflow.Processor
	Monitor    *monitor.Monitor
	Assignment *assignment.Engine
}

func NewServices(
	webhookConf WebhookConf,
	repos *repo.Repositories,
	mon *monitor.Monitor,
	notifier *notify.Notifier,
	processor *workflow.Processor,
	recoveryMgr *recovery.Manager,
	assigner *assignment.Engine,
	deliveries dedup.Store,
	m *metrics.Metrics,
) *Services {
	return &Services{
		Webhook:    NewWebhookService(webhookConf, repos.Story, mon, notifier, processor, deliveries, m),
		Story:      NewStoryService(repos.Story),
		Dashboard:  NewDashboardService(mon, recoveryMgr, assigner),
		Workflow:   processor,
		Monitor:    mon,
		Assignment: assigner,
	}
}
