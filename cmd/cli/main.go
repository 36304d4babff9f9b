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
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/arcentrix/storyflow/pkg/version"
	"github.com/spf13/cobra"
)

var confPath string

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:           "storyflow-cli",
		Short:         "storyflow cli drives the story workflow and pipeline monitor",
		Long:          "storyflow cli drives the story workflow and pipeline monitor from CI jobs and cron",
		SilenceUsage:  true,
		SilenceErrors: true,
		Run: func(cmd *cobra.Command, args []string) {
			_ = cmd.Help()
		},
	}
	rootCmd.PersistentFlags().StringVar(&confPath, "conf", "", "config file path; empty reads the environment only")
	rootCmd.AddCommand(version.VersionCmd)
	rootCmd.AddCommand(newWorkflowCmd())
	rootCmd.AddCommand(newPatternsCmd())
	rootCmd.AddCommand(newEscalateCmd())
	return rootCmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := newRootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		fmt.Fprintln(os.Stderr, "error:", err)
		os.Exit(1)
	}
}
