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
	"time"

	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/arcentrix/storyflow/internal/pkg/notify"
	"github.com/arcentrix/storyflow/internal/pkg/orchestrator"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/dedup"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/arcentrix/storyflow/pkg/scm/github"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

var ErrMissingToken = errors.New("github token is not configured")

// ProviderSet builds the domain components and the services on top of them.
var ProviderSet = wire.NewSet(
	ProvideGithubClient,
	wire.Bind(new(scm.IssueService), new(*github.Client)),
	wire.Bind(new(scm.WorkflowService), new(*github.Client)),
	ProvideOrchestrator,
	ProvideRecoveryManager,
	ProvideMonitor,
	ProvideNotifier,
	ProvideAssignmentEngine,
	ProvideWorkflowProcessor,
	ProvideDeliveryStore,
	NewServices,
)

func ProvideGithubClient(conf github.Conf) (*github.Client, error) {
	if strings.TrimSpace(conf.Token) == "" {
		return nil, ErrMissingToken
	}
	return github.New(conf), nil
}

func ProvideOrchestrator(conf orchestrator.Conf) *orchestrator.Client {
	return orchestrator.New(conf)
}

func ProvideRecoveryManager(repos *repo.Repositories, conf recovery.Conf) *recovery.Manager {
	return recovery.NewManager(repos.Recovery, conf)
}

func ProvideMonitor(
	repos *repo.Repositories,
	workflows scm.WorkflowService,
	recoveryMgr *recovery.Manager,
	m *metrics.Metrics,
	retry monitor.RetryConf,
	escalation monitor.EscalationConf,
) *monitor.Monitor {
	conf := monitor.Conf{Retry: retry, Escalation: escalation}
	return monitor.New(repos.Pipeline, workflows, m, conf, monitor.WithRecovery(recoveryMgr))
}

func ProvideNotifier(issues scm.IssueService, conf notify.Conf) (*notify.Notifier, error) {
	return notify.NewNotifier(issues, conf)
}

// ProvideAssignmentEngine creates the engine and replays the stored history.
func ProvideAssignmentEngine(repos *repo.Repositories, conf assignment.Conf) (*assignment.Engine, error) {
	e := assignment.NewEngine(conf, repos.Assignment)
	if err := e.Restore(context.Background()); err != nil {
		return nil, fmt.Errorf("restore assignment history: %w", err)
	}
	return e, nil
}

func ProvideWorkflowProcessor(
	conf workflow.Conf,
	issues scm.IssueService,
	orch *orchestrator.Client,
	assigner *assignment.Engine,
	m *metrics.Metrics,
) *workflow.Processor {
	return workflow.NewProcessor(conf, issues, orch, assigner, m)
}

// ProvideDeliveryStore uses redis when a client is available.
func ProvideDeliveryStore(client *redis.Client, conf WebhookConf) dedup.Store {
	return dedup.NewStore(client, time.Duration(conf.DedupTTLHours)*time.Hour)
}
