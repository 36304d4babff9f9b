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

package monitor

import (
	"context"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm"
)

type RetryConf struct {
	Enabled             bool    `mapstructure:"enabled"`
	MaxRetries          int     `mapstructure:"maxRetries" validate:"gte=0"`
	InitialDelaySeconds int     `mapstructure:"initialDelaySeconds" validate:"gte=0"`
	MaxDelaySeconds     int     `mapstructure:"maxDelaySeconds" validate:"gte=0"`
	BackoffMultiplier   float64 `mapstructure:"backoffMultiplier" validate:"gte=1"`
}

func (c *RetryConf) SetDefaults() {
	if c.MaxRetries == 0 {
		c.MaxRetries = 3
	}
	if c.InitialDelaySeconds == 0 {
		c.InitialDelaySeconds = 30
	}
	if c.MaxDelaySeconds == 0 {
		c.MaxDelaySeconds = 300
	}
	if c.BackoffMultiplier == 0 {
		c.BackoffMultiplier = 2.0
	}
}

type EscalationConf struct {
	Enabled       bool     `mapstructure:"enabled"`
	Threshold     int      `mapstructure:"threshold" validate:"gte=0"`
	CooldownHours int      `mapstructure:"cooldownHours" validate:"gte=0"`
	Channels      []string `mapstructure:"channels"`
	Contacts      []string `mapstructure:"contacts"`
}

func (c *EscalationConf) SetDefaults() {
	if c.Threshold == 0 {
		c.Threshold = 5
	}
	if c.CooldownHours == 0 {
		c.CooldownHours = 6
	}
	if len(c.Channels) == 0 {
		c.Channels = []string{"github_issue"}
	}
}

type Conf struct {
	Retry      RetryConf
	Escalation EscalationConf
	// LogFetchConcurrency bounds concurrent job log downloads.
	LogFetchConcurrency int
}

// RecoveryManager is the part of the recovery manager the monitor drives.
type RecoveryManager interface {
	CreateCheckpoint(ctx context.Context, in recovery.CheckpointInput) (*model.WorkflowCheckpoint, error)
	RelatedCheckpoints(ctx context.Context, failure *model.PipelineFailure) ([]*model.WorkflowCheckpoint, error)
	InitiateRecovery(ctx context.Context, failure *model.PipelineFailure, recoveryType model.RecoveryType) (*model.RecoveryState, error)
	ExecuteRecovery(ctx context.Context, state *model.RecoveryState) (bool, error)
}

// Sleeper waits for d or until ctx is done.
type Sleeper func(ctx context.Context, d time.Duration) error

type Option func(*Monitor)

// WithSleeper replaces the retry wait.
func WithSleeper(s Sleeper) Option {
	return func(m *Monitor) {
		m.sleep = s
	}
}

// WithClock replaces the time source.
func WithClock(now func() time.Time) Option {
	return func(m *Monitor) {
		m.now = now
	}
}

// WithRecovery enables enhanced recovery through the given manager.
func WithRecovery(r RecoveryManager) Option {
	return func(m *Monitor) {
		m.recovery = r
	}
}

// Monitor turns workflow runs into classified failures and acts on them.
type Monitor struct {
	pipelines repo.IPipelineRepository
	workflows scm.WorkflowService
	recovery  RecoveryManager
	metrics   *metrics.Metrics
	conf      Conf
	log       *logger.Logger
	sleep     Sleeper
	now       func() time.Time
}

func New(pipelines repo.IPipelineRepository, workflows scm.WorkflowService, m *metrics.Metrics, conf Conf, opts ...Option) *Monitor {
	conf.Retry.SetDefaults()
	conf.Escalation.SetDefaults()
	if conf.LogFetchConcurrency <= 0 {
		conf.LogFetchConcurrency = 4
	}
	mon := &Monitor{
		pipelines: pipelines,
		workflows: workflows,
		metrics:   m,
		conf:      conf,
		log:       logger.Channel("monitor"),
		sleep:     sleepContext,
		now:       time.Now,
	}
	for _, opt := range opts {
		opt(mon)
	}
	return mon
}

func sleepContext(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
