package scm

import (
	"context"
)

type WebhookRequest struct {
	Headers map[string]string `json:"headers"`
	Body    []byte            `json:"body"`
}

func (r WebhookRequest) Header(key string) string {
	if r.Headers == nil {
		return ""
	}
	if v, ok := r.Headers[key]; ok {
		return v
	}
	for k, v := range r.Headers {
		if equalFold(k, key) {
			return v
		}
	}
	return ""
}

// IssueService is the issue side of the SCM. Repository names are "owner/name".
type IssueService interface {
	// GetIssue returns one issue with its labels
	GetIssue(ctx context.Context, repo string, number int) (*Issue, error)
	// AddLabel adds a label to an issue
	AddLabel(ctx context.Context, repo string, number int, label string) error
	// RemoveLabel removes a label; removing an absent label succeeds
	RemoveLabel(ctx context.Context, repo string, number int, label string) error
	// AddComment posts a comment on an issue
	AddComment(ctx context.Context, repo string, number int, body string) error
	// UpdateIssue patches an issue
	UpdateIssue(ctx context.Context, repo string, number int, update IssueUpdate) (*Issue, error)
	// SearchIssues runs an issue search query
	SearchIssues(ctx context.Context, query string) ([]*Issue, error)
	// ListIssues lists issues of a repository, newest first
	ListIssues(ctx context.Context, repo string, opts ListIssuesOptions) ([]*Issue, error)
}

// WorkflowService is the CI side of the SCM.
type WorkflowService interface {
	// GetWorkflowJobs lists the jobs of a workflow run
	GetWorkflowJobs(ctx context.Context, repo string, runId int64) ([]WorkflowJob, error)
	// GetJobLogs returns the plain text logs of a job
	GetJobLogs(ctx context.Context, repo string, jobId int64) (string, error)
}

func equalFold(a, b string) bool {
	if len(a) != len(b) {
		return false
	}
	for i := 0; i < len(a); i++ {
		aa := a[i]
		bb := b[i]
		if aa == bb {
			continue
		}
		if 'A' <= aa && aa <= 'Z' {
			aa = aa - 'A' + 'a'
		}
		if 'A' <= bb && bb <= 'Z' {
			bb = bb - 'A' + 'a'
		}
		if aa != bb {
			return false
		}
	}
	return true
}
