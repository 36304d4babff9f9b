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

import "github.com/arcentrix/storyflow/internal/engine/model"

var suggestions = map[model.FailureCategory][]string{
	model.CategoryLinting: {
		"Run flake8 locally: python -m flake8 . --count --select=E9,F63,F7,F82",
		"Fix import issues and undefined names",
		"Check Python syntax and indentation",
	},
	model.CategoryFormatting: {
		"Run black formatter: python -m black .",
		"Run isort: python -m isort .",
		"Check code formatting guidelines",
	},
	model.CategoryTesting: {
		"Run tests locally: pytest tests/",
		"Check test failures and fix broken assertions",
		"Update test data or mocks as needed",
	},
	model.CategoryBuild: {
		"Check build dependencies and requirements",
		"Verify Docker configuration if using containers",
		"Review build scripts and configuration files",
	},
	model.CategoryDependency: {
		"Update requirements.txt or package.json",
		"Check for version conflicts",
		"Clear cache and reinstall dependencies",
	},
}

// ResolutionSuggestions returns a fresh copy of the hints for a category.
func ResolutionSuggestions(category model.FailureCategory) []string {
	list, ok := suggestions[category]
	if !ok {
		return []string{"Review logs and fix underlying issue"}
	}
	return append([]string(nil), list...)
}
