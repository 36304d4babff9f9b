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

package bootstrap

import (
	"context"
	"fmt"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/config"
	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/robfig/cron"
)

const jobTimeout = 5 * time.Minute

// Jobs is the work run on a schedule.
type Jobs interface {
	AnalyzeFailurePatterns(ctx context.Context, days int) ([]*model.FailurePattern, error)
	EscalationCandidates(ctx context.Context) ([]string, error)
	CheckForEscalation(ctx context.Context, repository string) (*model.EscalationRecord, error)
}

// NewScheduler registers pattern analysis and the escalation sweep. The
// returned scheduler is not started.
func NewScheduler(conf config.ScheduleConf, jobs Jobs) (*cron.Cron, error) {
	conf.SetDefaults()
	c := cron.New()
	if err := c.AddFunc(conf.PatternAnalysis, func() { runPatternAnalysis(jobs, conf.PatternDays) }); err != nil {
		return nil, fmt.Errorf("schedule pattern analysis %q: %w", conf.PatternAnalysis, err)
	}
	if err := c.AddFunc(conf.EscalationSweep, func() { runEscalationSweep(jobs, conf.Repositories) }); err != nil {
		return nil, fmt.Errorf("schedule escalation sweep %q: %w", conf.EscalationSweep, err)
	}
	return c, nil
}

func runPatternAnalysis(jobs Jobs, days int) {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if _, err := jobs.AnalyzeFailurePatterns(ctx, days); err != nil {
		logger.Errorw("scheduled pattern analysis failed", "error", err)
	}
}

// runEscalationSweep checks every repository on its own. An empty list checks
// each repository that has recent unresolved failures.
func runEscalationSweep(jobs Jobs, repositories []string) int {
	ctx, cancel := context.WithTimeout(context.Background(), jobTimeout)
	defer cancel()
	if len(repositories) == 0 {
		candidates, err := jobs.EscalationCandidates(ctx)
		if err != nil {
			logger.Errorw("list escalation candidates failed", "error", err)
			return 0
		}
		repositories = candidates
	}
	escalated := 0
	for _, repository := range repositories {
		record, err := jobs.CheckForEscalation(ctx, repository)
		if err != nil {
			logger.Errorw("scheduled escalation check failed", "repository", repository, "error", err)
			continue
		}
		if record != nil {
			escalated++
		}
	}
	return escalated
}
