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

package classifier

import (
	"fmt"
	"regexp"
	"sort"
	"strings"
	"unicode/utf8"

	"github.com/arcentrix/storyflow/internal/engine/model"
)

const (
	MaxMessageLength = 200
	MaxLogLength     = 5000

	messageScanLines  = 100
	fallbackScanLines = 20
	keyWordCount      = 3
)

var messagePatterns = compile(
	`ERROR:.*`,
	`FAILED.*`,
	`Error:.*`,
	`AssertionError:.*`,
	`SyntaxError:.*`,
	`ImportError:.*`,
)

var wordPattern = regexp.MustCompile(`\b\w+\b`)

var stopWords = map[string]struct{}{
	"error": {}, "failed": {}, "failure": {}, "test": {}, "build": {},
	"the": {}, "and": {}, "with": {}, "for": {}, "problem": {}, "issue": {},
}

var failedConclusions = map[string]struct{}{
	"failure": {}, "cancelled": {}, "timed_out": {},
}

// Step is the part of a CI job step needed to locate the failing one.
type Step struct {
	Name       string
	Conclusion string
}

// IsFailedConclusion reports whether a run or job conclusion counts as failed.
func IsFailedConclusion(conclusion string) bool {
	_, ok := failedConclusions[conclusion]
	return ok
}

// ExtractFailureMessage picks the most relevant error line from raw logs.
func ExtractFailureMessage(logs string) string {
	if logs == "" {
		return "No failure message available"
	}
	lines := strings.Split(logs, "\n")

	tail := lastN(lines, messageScanLines)
	for i := len(tail) - 1; i >= 0; i-- {
		if anyMatch(messagePatterns, tail[i]) {
			return Truncate(strings.TrimSpace(tail[i]), MaxMessageLength)
		}
	}

	tail = lastN(lines, fallbackScanLines)
	for i := len(tail) - 1; i >= 0; i-- {
		if line := strings.TrimSpace(tail[i]); line != "" {
			return Truncate(line, MaxMessageLength)
		}
	}
	return "Unknown failure"
}

// ExtractKeyWords builds a grouping signature from a failure message:
// the first three sorted unique words longer than three characters that are not stop words.
func ExtractKeyWords(message string) string {
	seen := make(map[string]struct{})
	var words []string
	for _, w := range wordPattern.FindAllString(strings.ToLower(message), -1) {
		if len(w) <= 3 {
			continue
		}
		if _, stop := stopWords[w]; stop {
			continue
		}
		if _, dup := seen[w]; dup {
			continue
		}
		seen[w] = struct{}{}
		words = append(words, w)
	}
	sort.Strings(words)
	if len(words) > keyWordCount {
		words = words[:keyWordCount]
	}
	return strings.Join(words, "_")
}

// ExtractFailedStep returns the name of the first failed step.
func ExtractFailedStep(steps []Step) string {
	for _, s := range steps {
		if IsFailedConclusion(s.Conclusion) {
			return s.Name
		}
	}
	return "Unknown step"
}

// PatternSignature is the grouping key of a failure for pattern analysis.
func PatternSignature(f *model.PipelineFailure) string {
	return string(f.Category) + "_" + ExtractKeyWords(f.FailureMessage)
}

// PatternDescription summarizes a group of similar failures.
func PatternDescription(failures []*model.PipelineFailure) string {
	if len(failures) == 0 {
		return ""
	}
	repos := make(map[string]struct{})
	jobs := make(map[string]struct{})
	for _, f := range failures {
		repos[f.Repository] = struct{}{}
		jobs[f.JobName] = struct{}{}
	}
	return fmt.Sprintf("%s failures occurring in %d repository(ies) across %d job type(s)",
		Title(string(failures[0].Category)), len(repos), len(jobs))
}

// Title upper-cases the first letter of s.
func Title(s string) string {
	if s == "" {
		return s
	}
	r, size := utf8.DecodeRuneInString(s)
	return strings.ToUpper(string(r)) + s[size:]
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	if utf8.RuneCountInString(s) <= n {
		return s
	}
	runes := []rune(s)
	return string(runes[:n])
}

func lastN(lines []string, n int) []string {
	if len(lines) <= n {
		return lines
	}
	return lines[len(lines)-n:]
}
