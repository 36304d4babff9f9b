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

// Package classifier maps CI job output to a failure category and severity and
// derives the signatures used to group similar failures.
package classifier

import (
	"regexp"
	"strings"

	"github.com/arcentrix/storyflow/internal/engine/model"
)

type categoryRule struct {
	category model.FailureCategory
	patterns []*regexp.Regexp
}

type severityRule struct {
	severity model.FailureSeverity
	patterns []*regexp.Regexp
}

func compile(exprs ...string) []*regexp.Regexp {
	out := make([]*regexp.Regexp, 0, len(exprs))
	for _, e := range exprs {
		out = append(out, regexp.MustCompile("(?i)"+e))
	}
	return out
}

// categoryRules are evaluated in order; the first matching category wins.
var categoryRules = []categoryRule{
	{model.CategoryLinting, compile(`flake8.*error`, `pylint.*error`, `eslint.*error`, `syntax error`, `import.*not found`, `undefined name`)},
	{model.CategoryFormatting, compile(`black.*would reformat`, `isort.*would reformat`, `prettier.*failed`, `formatting.*check.*failed`)},
	{model.CategoryTesting, compile(`test.*failed`, `assertion.*error`, `pytest.*failed`, `jest.*failed`, `coverage.*failed`)},
	{model.CategoryBuild, compile(`build.*failed`, `compilation.*error`, `webpack.*failed`, `docker.*build.*failed`)},
	{model.CategoryDeployment, compile(`deployment.*failed`, `deploy.*error`, `push.*failed`, `registry.*error`)},
	{model.CategoryDependency, compile(`dependency.*not found`, `npm.*install.*failed`, `pip.*install.*failed`, `requirements.*not.*satisfied`)},
	{model.CategoryTimeout, compile(`timeout`, `time.*out`, `deadline.*exceeded`, `operation.*timed.*out`)},
	{model.CategoryInfrastructure, compile(`infrastructure.*error`, `network.*error`, `connection.*refused`, `service.*unavailable`)},
}

// severityRules are evaluated from most to least severe. A medium match does
// not end the scan, so a later low rule can still downgrade it.
var severityRules = []severityRule{
	{model.SeverityCritical, compile(`security.*vulnerability`, `critical.*error`, `production.*down`, `deployment.*blocked`)},
	{model.SeverityHigh, compile(`build.*completely.*failed`, `all.*tests.*failed`, `main.*branch.*broken`, `blocking.*dependency`)},
	{model.SeverityMedium, compile(`test.*failed`, `linting.*error`, `formatting.*error`, `documentation.*error`)},
	{model.SeverityLow, compile(`warning`, `minor.*issue`, `style.*issue`, `comment.*format`)},
}

// Classify returns the category and severity of a failed job.
// Unmatched text yields CategoryUnknown and SeverityMedium.
func Classify(jobName, logs string) (model.FailureCategory, model.FailureSeverity) {
	text := strings.ToLower(jobName + " " + logs)

	category := model.CategoryUnknown
	for _, rule := range categoryRules {
		if anyMatch(rule.patterns, text) {
			category = rule.category
			break
		}
	}

	severity := model.SeverityMedium
	for _, rule := range severityRules {
		if !anyMatch(rule.patterns, text) {
			continue
		}
		severity = rule.severity
		if severity != model.SeverityMedium {
			break
		}
	}
	return category, severity
}

func anyMatch(patterns []*regexp.Regexp, text string) bool {
	for _, p := range patterns {
		if p.MatchString(text) {
			return true
		}
	}
	return false
}
