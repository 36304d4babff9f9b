// Package scmtest provides an in-memory issue service for tests.
package scmtest

import (
	"context"
	"fmt"
	"slices"
	"sort"
	"strings"
	"sync"

	"github.com/arcentrix/storyflow/pkg/scm"
)

type Comment struct {
	Repo   string
	Number int
	Body   string
}

// Issues is a fake scm.IssueService. Labels live on the stored issues and
// every mutating call is recorded in Calls as "op:number:arg".
type Issues struct {
	mu       sync.Mutex
	issues   map[string]*scm.Issue
	Comments []Comment
	Calls    []string

	// FailLabels makes AddLabel and RemoveLabel fail for the listed labels.
	FailLabels map[string]error
	// FailComments makes AddComment fail.
	FailComments error
	// FailList makes ListIssues and SearchIssues fail.
	FailList error
}

func NewIssues() *Issues {
	return &Issues{issues: make(map[string]*scm.Issue)}
}

func key(repo string, number int) string {
	return fmt.Sprintf("%s#%d", repo, number)
}

// Put stores a copy of the issue under repo.
func (f *Issues) Put(repo string, issue *scm.Issue) {
	f.mu.Lock()
	defer f.mu.Unlock()
	cp := *issue
	cp.Labels = slices.Clone(issue.Labels)
	f.issues[key(repo, issue.Number)] = &cp
}

// Labels returns the current labels of an issue.
func (f *Issues) Labels(repo string, number int) []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	if issue, ok := f.issues[key(repo, number)]; ok {
		return slices.Clone(issue.Labels)
	}
	return nil
}

func (f *Issues) ResetCalls() {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = nil
	f.Comments = nil
}

func (f *Issues) issue(repo string, number int) *scm.Issue {
	k := key(repo, number)
	issue, ok := f.issues[k]
	if !ok {
		issue = &scm.Issue{Number: number, State: "open"}
		f.issues[k] = issue
	}
	return issue
}

func (f *Issues) GetIssue(_ context.Context, repo string, number int) (*scm.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	issue, ok := f.issues[key(repo, number)]
	if !ok {
		return nil, fmt.Errorf("issue %s not found", key(repo, number))
	}
	cp := *issue
	cp.Labels = slices.Clone(issue.Labels)
	return &cp, nil
}

func (f *Issues) AddLabel(_ context.Context, repo string, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("add:%d:%s", number, label))
	if err := f.FailLabels[label]; err != nil {
		return err
	}
	issue := f.issue(repo, number)
	if !issue.HasLabel(label) {
		issue.Labels = append(issue.Labels, label)
	}
	return nil
}

func (f *Issues) RemoveLabel(_ context.Context, repo string, number int, label string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("remove:%d:%s", number, label))
	if err := f.FailLabels[label]; err != nil {
		return err
	}
	issue := f.issue(repo, number)
	issue.Labels = slices.DeleteFunc(issue.Labels, func(l string) bool { return l == label })
	return nil
}

func (f *Issues) AddComment(_ context.Context, repo string, number int, body string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("comment:%d", number))
	if f.FailComments != nil {
		return f.FailComments
	}
	f.Comments = append(f.Comments, Comment{Repo: repo, Number: number, Body: body})
	return nil
}

func (f *Issues) UpdateIssue(_ context.Context, repo string, number int, update scm.IssueUpdate) (*scm.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.Calls = append(f.Calls, fmt.Sprintf("update:%d", number))
	issue := f.issue(repo, number)
	if update.Title != nil {
		issue.Title = *update.Title
	}
	if update.Body != nil {
		issue.Body = *update.Body
	}
	if update.State != nil {
		issue.State = *update.State
	}
	if update.Labels != nil {
		issue.Labels = slices.Clone(update.Labels)
	}
	if update.Assignees != nil {
		issue.Assignees = slices.Clone(update.Assignees)
	}
	cp := *issue
	return &cp, nil
}

func (f *Issues) SearchIssues(_ context.Context, query string) ([]*scm.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailList != nil {
		return nil, f.FailList
	}
	var out []*scm.Issue
	for _, issue := range f.issues {
		if strings.Contains(issue.Title, query) || strings.Contains(issue.Body, query) {
			cp := *issue
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Number < out[j].Number })
	return out, nil
}

// ListIssues returns the issues of repo matching state and labels, newest first.
func (f *Issues) ListIssues(_ context.Context, repo string, opts scm.ListIssuesOptions) ([]*scm.Issue, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.FailList != nil {
		return nil, f.FailList
	}
	var out []*scm.Issue
	for k, issue := range f.issues {
		if !strings.HasPrefix(k, repo+"#") {
			continue
		}
		if opts.State != "" && opts.State != "all" && issue.State != opts.State {
			continue
		}
		match := true
		for _, l := range opts.Labels {
			if !issue.HasLabel(l) {
				match = false
				break
			}
		}
		if match {
			cp := *issue
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].Number > out[j].Number
		}
		return out[i].CreatedAt.After(out[j].CreatedAt)
	})
	if opts.Limit > 0 && len(out) > opts.Limit {
		out = out[:opts.Limit]
	}
	return out, nil
}

var _ scm.IssueService = (*Issues)(nil)
