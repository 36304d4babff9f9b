package classifier

import (
	"strings"
	"testing"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/stretchr/testify/assert"
)

// TestClassifyLinting verifies a flake8 failure is linting with default severity.
func TestClassifyLinting(t *testing.T) {
	cat, sev := Classify("Lint and Test", "flake8 error: E401 multiple imports on one line")
	if cat != model.CategoryLinting {
		t.Fatalf("expected linting, got %s", cat)
	}
	if sev != model.SeverityMedium {
		t.Fatalf("expected medium, got %s", sev)
	}
}

// TestClassifyCriticalSeverity verifies the critical table wins over lower ones.
func TestClassifyCriticalSeverity(t *testing.T) {
	_, sev := Classify("Security Check", "CRITICAL security vulnerability detected")
	if sev != model.SeverityCritical {
		t.Fatalf("expected critical, got %s", sev)
	}
}

// TestClassifyOrder verifies first-match-wins across the ordered tables.
func TestClassifyOrder(t *testing.T) {
	cases := []struct {
		job, logs string
		cat       model.FailureCategory
		sev       model.FailureSeverity
	}{
		{"format", "black would reformat src/app.py", model.CategoryFormatting, model.SeverityMedium},
		{"unit", "pytest failed: 3 assertions", model.CategoryTesting, model.SeverityMedium},
		{"ci", "all tests failed on main branch broken", model.CategoryTesting, model.SeverityHigh},
		{"docker", "docker image build failed", model.CategoryBuild, model.SeverityMedium},
		{"release", "deploy error: registry unreachable", model.CategoryDeployment, model.SeverityMedium},
		{"deps", "npm ERR! npm install failed", model.CategoryDependency, model.SeverityMedium},
		{"e2e", "context deadline exceeded", model.CategoryTimeout, model.SeverityMedium},
		{"infra", "dial tcp: connection refused", model.CategoryInfrastructure, model.SeverityMedium},
		{"docs", "minor issue in README", model.CategoryUnknown, model.SeverityLow},
		{"noop", "", model.CategoryUnknown, model.SeverityMedium},
		{"unit", "3 tests failed\nwarning: deprecated api", model.CategoryTesting, model.SeverityLow},
		{"ci", "all tests failed\nwarning: deprecated api", model.CategoryTesting, model.SeverityHigh},
	}
	for _, c := range cases {
		cat, sev := Classify(c.job, c.logs)
		assert.Equal(t, c.cat, cat, "category for %q", c.logs)
		assert.Equal(t, c.sev, sev, "severity for %q", c.logs)
	}
}

// TestClassifyDeterministic verifies identical inputs give identical results.
func TestClassifyDeterministic(t *testing.T) {
	for i := 0; i < 10; i++ {
		cat, sev := Classify("Build", "webpack failed with warning")
		if cat != model.CategoryBuild || sev != model.SeverityLow {
			t.Fatalf("unexpected result %s/%s", cat, sev)
		}
	}
}

// TestExtractFailureMessage covers the matching, fallback and empty cases.
func TestExtractFailureMessage(t *testing.T) {
	logs := "setup ok\nERROR: first problem\nrunning\nAssertionError: expected 1 got 2\ncleanup\n"
	if got := ExtractFailureMessage(logs); got != "AssertionError: expected 1 got 2" {
		t.Fatalf("unexpected message %q", got)
	}
	if got := ExtractFailureMessage("line one\nlast line  \n\n"); got != "last line" {
		t.Fatalf("unexpected fallback %q", got)
	}
	if got := ExtractFailureMessage(""); got != "No failure message available" {
		t.Fatalf("unexpected empty message %q", got)
	}
	if got := ExtractFailureMessage("\n  \n"); got != "Unknown failure" {
		t.Fatalf("unexpected blank message %q", got)
	}
	long := "Error: " + strings.Repeat("x", 500)
	if got := ExtractFailureMessage(long); len(got) != MaxMessageLength {
		t.Fatalf("expected %d chars, got %d", MaxMessageLength, len(got))
	}
}

// TestExtractFailureMessageScansTail verifies only the last 100 lines are searched for error lines.
func TestExtractFailureMessageScansTail(t *testing.T) {
	lines := []string{"ERROR: too early"}
	for i := 0; i < 150; i++ {
		lines = append(lines, "progress")
	}
	if got := ExtractFailureMessage(strings.Join(lines, "\n")); got != "progress" {
		t.Fatalf("expected fallback to last line, got %q", got)
	}
}

// TestExtractKeyWords verifies filtering, sorting and the three word cap.
func TestExtractKeyWords(t *testing.T) {
	got := ExtractKeyWords("Error: test failed in module zeta alpha with problem beta gamma")
	assert.Equal(t, "alpha_beta_gamma", got)
	assert.Equal(t, "", ExtractKeyWords("the build failed"))
	assert.Equal(t, "e401_flake8_imports", ExtractKeyWords("flake8 error: E401 multiple imports on one line"))
}

// TestExtractFailedStep verifies the first failed step is returned.
func TestExtractFailedStep(t *testing.T) {
	steps := []Step{
		{Name: "checkout", Conclusion: "success"},
		{Name: "lint", Conclusion: "failure"},
		{Name: "test", Conclusion: "cancelled"},
	}
	if got := ExtractFailedStep(steps); got != "lint" {
		t.Fatalf("expected lint, got %s", got)
	}
	if got := ExtractFailedStep(nil); got != "Unknown step" {
		t.Fatalf("expected Unknown step, got %s", got)
	}
}

// TestPatternDescription verifies the summary counts distinct repositories and jobs.
func TestPatternDescription(t *testing.T) {
	failures := []*model.PipelineFailure{
		{Repository: "o/a", JobName: "lint", Category: model.CategoryLinting},
		{Repository: "o/b", JobName: "lint", Category: model.CategoryLinting},
		{Repository: "o/a", JobName: "style", Category: model.CategoryLinting},
	}
	want := "Linting failures occurring in 2 repository(ies) across 2 job type(s)"
	if got := PatternDescription(failures); got != want {
		t.Fatalf("expected %q, got %q", want, got)
	}
}

// TestResolutionSuggestions verifies category hints and the default.
func TestResolutionSuggestions(t *testing.T) {
	got := ResolutionSuggestions(model.CategoryFormatting)
	assert.Len(t, got, 3)
	assert.Equal(t, "Run black formatter: python -m black .", got[0])
	got[0] = "mutated"
	assert.NotEqual(t, "mutated", ResolutionSuggestions(model.CategoryFormatting)[0])
	assert.Equal(t, []string{"Review logs and fix underlying issue"}, ResolutionSuggestions(model.CategoryTimeout))
}
