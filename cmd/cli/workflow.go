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

package main

import (
	"fmt"
	"slices"
	"strings"

	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/spf13/cobra"
)

var triggerEvents = []string{"issues", "issue_comment", "workflow_dispatch"}

type workflowFlags struct {
	issueNumber   int
	triggerEvent  string
	action        string
	currentLabels string
	commentBody   string
	actor         string
	logLevel      string
	repository    string
}

// parseLabels splits a comma separated label list. An empty list returns nil
// so the processor reads the labels from the issue.
func parseLabels(s string) []string {
	if strings.TrimSpace(s) == "" {
		return nil
	}
	labels := make([]string, 0)
	for _, l := range strings.Split(s, ",") {
		if l = strings.TrimSpace(l); l != "" {
			labels = append(labels, l)
		}
	}
	return labels
}

func (f *workflowFlags) event() (workflow.Event, error) {
	if f.issueNumber <= 0 {
		return workflow.Event{}, fmt.Errorf("--issue-number must be positive")
	}
	if strings.Count(f.repository, "/") != 1 {
		return workflow.Event{}, fmt.Errorf("--repository must be owner/name, got %q", f.repository)
	}
	if !slices.Contains(triggerEvents, f.triggerEvent) {
		return workflow.Event{}, fmt.Errorf("--trigger-event must be one of %s", strings.Join(triggerEvents, ", "))
	}
	return workflow.Event{
		Repository:   f.repository,
		IssueNumber:  f.issueNumber,
		TriggerEvent: f.triggerEvent,
		Action:       f.action,
		Labels:       parseLabels(f.currentLabels),
		CommentBody:  f.commentBody,
		Actor:        f.actor,
	}, nil
}

func newWorkflowCmd() *cobra.Command {
	f := &workflowFlags{}
	cmd := &cobra.Command{
		Use:   "workflow-processor",
		Short: "Advance the label state machine of one story issue",
		RunE: func(cmd *cobra.Command, args []string) error {
			ev, err := f.event()
			if err != nil {
				return err
			}
			env, cleanup, err := openEnv(f.logLevel)
			if err != nil {
				return err
			}
			defer cleanup()

			client, err := service.ProvideGithubClient(env.conf.Github)
			if err != nil {
				return err
			}
			engine, err := service.ProvideAssignmentEngine(env.repos, env.conf.Assignment)
			if err != nil {
				return err
			}
			orch := service.ProvideOrchestrator(env.conf.Orchestrator)
			processor := service.ProvideWorkflowProcessor(env.conf.Workflow, client, orch, engine, metrics.NewMetrics())

			ctx := cmd.Context()
			res, err := processor.ProcessStoryState(ctx, ev)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), res)
		},
	}
	flags := cmd.Flags()
	flags.IntVar(&f.issueNumber, "issue-number", 0, "issue number of the story")
	flags.StringVar(&f.triggerEvent, "trigger-event", "issues", "event that triggered the run: "+strings.Join(triggerEvents, ", "))
	flags.StringVar(&f.action, "action", "", "action of the triggering event")
	flags.StringVar(&f.currentLabels, "current-labels", "", "comma separated labels; empty reads them from the issue")
	flags.StringVar(&f.commentBody, "comment-body", "", "body of the triggering comment")
	flags.StringVar(&f.actor, "actor", "", "login of the user that triggered the run")
	flags.StringVar(&f.logLevel, "log-level", "", "log level: DEBUG, INFO, WARN, ERROR")
	flags.StringVar(&f.repository, "repository", "", "repository as owner/name")
	_ = cmd.MarkFlagRequired("issue-number")
	_ = cmd.MarkFlagRequired("repository")
	return cmd
}
