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

package config

import (
	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/arcentrix/storyflow/internal/pkg/notify"
	"github.com/arcentrix/storyflow/internal/pkg/orchestrator"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/cache"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm/github"
	"github.com/google/wire"
)

// ProviderSet exposes the configuration and each of its sections.
var ProviderSet = wire.NewSet(
	NewConf,
	ProvideLogConf,
	ProvideHttpConf,
	ProvideDatabaseConf,
	ProvideRedisConf,
	ProvideGithubConf,
	ProvideOrchestratorConf,
	ProvideWebhookConf,
	ProvideRetryConf,
	ProvideEscalationConf,
	ProvideRecoveryConf,
	ProvideWorkflowConf,
	ProvideAssignmentConf,
	ProvideNotifyConf,
	ProvideMetricsConf,
)

func ProvideLogConf(c *AppConfig) *logger.Conf {
	return &c.Log
}

func ProvideHttpConf(c *AppConfig) http.Http {
	return c.Http
}

func ProvideDatabaseConf(c *AppConfig) database.Database {
	return c.Database
}

func ProvideRedisConf(c *AppConfig) cache.Redis {
	return c.Redis
}

func ProvideGithubConf(c *AppConfig) github.Conf {
	return c.Github
}

func ProvideOrchestratorConf(c *AppConfig) orchestrator.Conf {
	return c.Orchestrator
}

func ProvideWebhookConf(c *AppConfig) service.WebhookConf {
	return c.Webhook
}

func ProvideRetryConf(c *AppConfig) monitor.RetryConf {
	return c.PipelineRetry
}

func ProvideEscalationConf(c *AppConfig) monitor.EscalationConf {
	return c.Escalation
}

func ProvideRecoveryConf(c *AppConfig) recovery.Conf {
	return c.Recovery
}

func ProvideWorkflowConf(c *AppConfig) workflow.Conf {
	return c.Workflow
}

func ProvideAssignmentConf(c *AppConfig) assignment.Conf {
	return c.Assignment
}

func ProvideNotifyConf(c *AppConfig) notify.Conf {
	return c.Notify
}

func ProvideMetricsConf(c *AppConfig) metrics.Conf {
	return c.Metrics
}
