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
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/spf13/cobra"
)

func newMonitor(env *runtimeEnv) *monitor.Monitor {
	return monitor.New(env.repos.Pipeline, nil, nil, monitor.Conf{
		Retry:      env.conf.PipelineRetry,
		Escalation: env.conf.Escalation,
	})
}

func newPatternsCmd() *cobra.Command {
	var days int
	cmd := &cobra.Command{
		Use:   "patterns",
		Short: "Analyze recent pipeline failures and store recurring patterns",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv("")
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			patterns, err := newMonitor(env).AnalyzeFailurePatterns(ctx, days)
			if err != nil {
				return err
			}
			return printJSON(cmd.OutOrStdout(), patterns)
		},
	}
	cmd.Flags().IntVar(&days, "days", 7, "analysis window in days")
	return cmd
}

func newEscalateCmd() *cobra.Command {
	var repository string
	cmd := &cobra.Command{
		Use:   "escalate",
		Short: "Escalate persistent failures of a repository",
		RunE: func(cmd *cobra.Command, args []string) error {
			env, cleanup, err := openEnv("")
			if err != nil {
				return err
			}
			defer cleanup()

			ctx := cmd.Context()
			record, err := newMonitor(env).CheckForEscalation(ctx, repository)
			if err != nil {
				return err
			}
			if record == nil {
				return printJSON(cmd.OutOrStdout(), map[string]any{"escalated": false})
			}
			return printJSON(cmd.OutOrStdout(), map[string]any{"escalated": true, "escalation": record})
		},
	}
	cmd.Flags().StringVar(&repository, "repository", "", "repository as owner/name")
	_ = cmd.MarkFlagRequired("repository")
	return cmd
}
