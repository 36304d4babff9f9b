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

// Package notify decides when the automation agent is told about pipeline
// failures and renders the comment it receives.
package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/expr-lang/expr"
	"github.com/expr-lang/expr/vm"
)

// DefaultRule notifies on any high or critical failure, or one retried at least twice.
const DefaultRule = `any(Failures, {.Severity in ["high", "critical"] || .RetryCount >= 2})`

const relatedIssueLimit = 10

type Conf struct {
	// Rule is an expr boolean expression over RuleEnv.
	Rule string `mapstructure:"rule"`
}

func (c *Conf) SetDefaults() {
	if c.Rule == "" {
		c.Rule = DefaultRule
	}
}

// FailureFact is the view of a failure a rule can see.
type FailureFact struct {
	Category   string
	Severity   string
	JobName    string
	RetryCount int
}

// RuleEnv is the environment a rule is evaluated against.
type RuleEnv struct {
	Repository   string
	Branch       string
	WorkflowName string
	Failures     []FailureFact
}

// Rule is a compiled notification rule.
type Rule struct {
	source  string
	program *vm.Program
}

func CompileRule(source string) (*Rule, error) {
	if source == "" {
		source = DefaultRule
	}
	program, err := expr.Compile(source, expr.Env(RuleEnv{}), expr.AsBool())
	if err != nil {
		return nil, fmt.Errorf("compile notify rule %q: %w", source, err)
	}
	return &Rule{source: source, program: program}, nil
}

func (r *Rule) String() string {
	return r.source
}

// Match reports whether the run should be brought to the agent's attention.
// A run without failures never matches.
func (r *Rule) Match(run *model.PipelineRun) (bool, error) {
	if run == nil || len(run.Failures) == 0 {
		return false, nil
	}
	env := RuleEnv{
		Repository:   run.Repository,
		Branch:       run.Branch,
		WorkflowName: run.WorkflowName,
		Failures:     make([]FailureFact, len(run.Failures)),
	}
	for i, f := range run.Failures {
		env.Failures[i] = FailureFact{
			Category:   string(f.Category),
			Severity:   string(f.Severity),
			JobName:    f.JobName,
			RetryCount: f.RetryCount,
		}
	}
	out, err := expr.Run(r.program, env)
	if err != nil {
		return false, fmt.Errorf("run notify rule: %w", err)
	}
	matched, ok := out.(bool)
	if !ok {
		return false, errors.New("notify rule did not return a bool")
	}
	return matched, nil
}

// Result reports what a notification attempt did.
type Result struct {
	Sent           bool  `json:"notificationSent"`
	IssuesNotified []int `json:"issuesNotified,omitempty"`
}

// Notifier posts failure summaries on the issue related to a run.
type Notifier struct {
	issues scm.IssueService
	rule   *Rule
	log    *logger.Logger
}

func NewNotifier(issues scm.IssueService, conf Conf) (*Notifier, error) {
	conf.SetDefaults()
	rule, err := CompileRule(conf.Rule)
	if err != nil {
		return nil, err
	}
	return &Notifier{issues: issues, rule: rule, log: logger.Channel("notify")}, nil
}

// NotifyPipelineFailures comments on the related issue when the rule matches.
// Collaborator errors are logged and reported as an unsent notification.
func (n *Notifier) NotifyPipelineFailures(ctx context.Context, run *model.PipelineRun) Result {
	matched, err := n.rule.Match(run)
	if err != nil {
		n.log.Errorw("failed to evaluate notify rule", "rule", n.rule.String(), "error", err)
		return Result{}
	}
	if !matched {
		return Result{}
	}

	issue, err := n.relatedIssue(ctx, run.Repository)
	if err != nil {
		n.log.Errorw("failed to find related issues", "repository", run.Repository, "error", err)
		return Result{}
	}
	if issue == 0 {
		n.log.Infow("no related issue for pipeline failure", "repository", run.Repository, "runId", run.RunId)
		return Result{}
	}

	if err := n.issues.AddComment(ctx, run.Repository, issue, FailureSummary(run)); err != nil {
		n.log.Errorw("failed to add pipeline failure comment", "repository", run.Repository, "issue", issue, "error", err)
		return Result{}
	}
	n.log.Infow("added pipeline failure notification", "repository", run.Repository, "issue", issue)
	return Result{Sent: true, IssuesNotified: []int{issue}}
}

// relatedIssue picks the most recently created open issue, or 0 when there is none.
func (n *Notifier) relatedIssue(ctx context.Context, repository string) (int, error) {
	issues, err := n.issues.ListIssues(ctx, repository, scm.ListIssuesOptions{State: "open", Limit: relatedIssueLimit})
	if err != nil {
		return 0, err
	}
	if len(issues) == 0 {
		return 0, nil
	}
	return issues[0].Number, nil
}
