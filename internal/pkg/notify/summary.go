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

package notify

import (
	"fmt"
	"strings"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/pkg/classifier"
)

const (
	summaryMessageLength = 100
	suggestionsPerGroup  = 2
	agentMention         = "@copilot Please investigate and resolve these pipeline failures."
)

// FailureSummary renders the markdown comment for a failed run, grouping
// failure messages and suggestions by category in first-seen order.
func FailureSummary(run *model.PipelineRun) string {
	var categories []model.FailureCategory
	messages := make(map[model.FailureCategory][]string)
	for _, f := range run.Failures {
		if _, ok := messages[f.Category]; !ok {
			categories = append(categories, f.Category)
		}
		messages[f.Category] = append(messages[f.Category], classifier.Truncate(f.FailureMessage, summaryMessageLength))
	}

	var b strings.Builder
	b.WriteString("## 🚨 Pipeline Failure Detected\n\n")
	fmt.Fprintf(&b, "**Repository:** %s\n", run.Repository)
	fmt.Fprintf(&b, "**Branch:** %s\n", run.Branch)
	fmt.Fprintf(&b, "**Commit:** %s\n", shortSha(run.CommitSha))
	fmt.Fprintf(&b, "**Workflow:** %s\n\n", run.WorkflowName)

	b.WriteString("### Failure Summary:\n")
	for _, c := range categories {
		fmt.Fprintf(&b, "\n**%s Issues:**\n", classifier.Title(string(c)))
		for _, msg := range messages[c] {
			fmt.Fprintf(&b, "- %s\n", msg)
		}
	}

	b.WriteString("\n### Recommended Actions:\n")
	for _, c := range categories {
		suggestions := classifier.ResolutionSuggestions(c)
		if len(suggestions) == 0 {
			continue
		}
		fmt.Fprintf(&b, "\n**For %s issues:**\n", c)
		for _, s := range suggestions[:min(len(suggestions), suggestionsPerGroup)] {
			fmt.Fprintf(&b, "- %s\n", s)
		}
	}

	fmt.Fprintf(&b, "\n**Failure Count:** %d\n", len(run.Failures))
	fmt.Fprintf(&b, "**Time:** %s\n\n", run.StartedAt.UTC().Format("2006-01-02 15:04:05")+" UTC")
	b.WriteString(agentMention)
	return b.String()
}

func shortSha(sha string) string {
	if len(sha) <= 8 {
		return sha
	}
	return sha[:8]
}
