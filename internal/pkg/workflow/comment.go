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

package workflow

import (
	"fmt"
	"strings"
)

// Detail is one line of the assignment details section.
type Detail struct {
	Key   string
	Value string
}

// AssignmentComment renders the notification posted when a story is assigned.
func AssignmentComment(assignee, explanation string, details []Detail) string {
	var b strings.Builder
	b.WriteString("🤖 **Automated Assignment**\n\n")
	fmt.Fprintf(&b, "This issue has been automatically assigned to @%s.\n\n", assignee)
	fmt.Fprintf(&b, "**Reason**: %s\n\n", explanation)
	if len(details) > 0 {
		b.WriteString("**Assignment Details:**\n")
		for _, d := range details {
			fmt.Fprintf(&b, "- **%s**: %s\n", d.Key, d.Value)
		}
		b.WriteString("\n")
	}
	b.WriteString("---\n")
	b.WriteString("*This assignment was made by the storyflow automation system.*\n")
	b.WriteString("*To override this assignment, update the assignee manually.*")
	return b.String()
}
