package github

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/bytedance/sonic"
	"github.com/cenkalti/backoff/v4"
	"github.com/go-resty/resty/v2"
)

const (
	defaultApiBaseUrl = "https://api.github.com"
	perPage           = 100
	maxJobPages       = 10
)

type Conf struct {
	ApiBaseUrl     string `mapstructure:"apiBaseUrl"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
	MaxRetries     int    `mapstructure:"maxRetries"`
}

func (c *Conf) SetDefaults() {
	if strings.TrimSpace(c.ApiBaseUrl) == "" {
		c.ApiBaseUrl = defaultApiBaseUrl
	}
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 15
	}
	if c.MaxRetries <= 0 {
		c.MaxRetries = 3
	}
}

// APIError is a non-2xx GitHub response.
type APIError struct {
	Method     string
	Path       string
	StatusCode int
	Status     string
}

func (e *APIError) Error() string {
	return fmt.Sprintf("github api error: %s %s: %s", e.Method, e.Path, e.Status)
}

// IsNotFound reports whether err is a 404 from GitHub.
func IsNotFound(err error) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == http.StatusNotFound
}

// Client talks to the GitHub REST API. It implements scm.IssueService and scm.WorkflowService.
type Client struct {
	client     *resty.Client
	maxRetries uint64
	newBackOff func() backoff.BackOff
}

var (
	_ scm.IssueService    = (*Client)(nil)
	_ scm.WorkflowService = (*Client)(nil)
)

func New(conf Conf) *Client {
	conf.SetDefaults()
	c := resty.New().
		SetTimeout(time.Duration(conf.TimeoutSeconds)*time.Second).
		SetBaseURL(strings.TrimRight(conf.ApiBaseUrl, "/")).
		SetHeader("Accept", "application/vnd.github+json").
		SetHeader("X-GitHub-Api-Version", "2022-11-28").
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if strings.TrimSpace(conf.Token) != "" {
		c.SetAuthToken(conf.Token)
	}
	return &Client{
		client:     c,
		maxRetries: uint64(conf.MaxRetries),
		newBackOff: func() backoff.BackOff {
			bo := backoff.NewExponentialBackOff()
			bo.InitialInterval = time.Second
			bo.MaxElapsedTime = time.Minute
			return bo
		},
	}
}

// do runs one request with retries on network errors, 429, 5xx and exhausted rate limits.
func (c *Client) do(ctx context.Context, method, path string, build func(*resty.Request)) (*resty.Response, error) {
	var resp *resty.Response
	op := func() error {
		req := c.client.R().SetContext(ctx)
		if build != nil {
			build(req)
		}
		r, err := req.Execute(method, path)
		if err != nil {
			if ctx.Err() != nil {
				return backoff.Permanent(ctx.Err())
			}
			return err
		}
		if r.IsError() {
			apiErr := &APIError{Method: method, Path: path, StatusCode: r.StatusCode(), Status: r.Status()}
			if isTransient(r) {
				return apiErr
			}
			return backoff.Permanent(apiErr)
		}
		resp = r
		return nil
	}
	bo := backoff.WithContext(backoff.WithMaxRetries(c.newBackOff(), c.maxRetries), ctx)
	if err := backoff.Retry(op, bo); err != nil {
		return nil, err
	}
	return resp, nil
}

func isTransient(r *resty.Response) bool {
	switch {
	case r.StatusCode() == http.StatusTooManyRequests:
		return true
	case r.StatusCode() >= http.StatusInternalServerError:
		return true
	case r.StatusCode() == http.StatusForbidden && r.Header().Get("X-RateLimit-Remaining") == "0":
		return true
	}
	return false
}

func repoPath(repo string, parts ...string) (string, error) {
	owner, name, ok := strings.Cut(strings.TrimSpace(repo), "/")
	if !ok || owner == "" || name == "" || strings.Contains(name, "/") {
		return "", fmt.Errorf("invalid repository name %q, expected owner/name", repo)
	}
	return "/repos/" + owner + "/" + name + strings.Join(parts, ""), nil
}

type ghLabel struct {
	Name string `json:"name"`
}

type ghUser struct {
	Login string `json:"login"`
}

type ghIssue struct {
	Number      int            `json:"number"`
	Title       string         `json:"title"`
	Body        string         `json:"body"`
	State       string         `json:"state"`
	HtmlUrl     string         `json:"html_url"`
	Labels      []ghLabel      `json:"labels"`
	Assignees   []ghUser       `json:"assignees"`
	CreatedAt   time.Time      `json:"created_at"`
	UpdatedAt   time.Time      `json:"updated_at"`
	PullRequest map[string]any `json:"pull_request,omitempty"`
}

func (g *ghIssue) toIssue() *scm.Issue {
	issue := &scm.Issue{
		Number:    g.Number,
		Title:     g.Title,
		Body:      g.Body,
		State:     g.State,
		HtmlUrl:   g.HtmlUrl,
		CreatedAt: g.CreatedAt,
		UpdatedAt: g.UpdatedAt,
	}
	for _, l := range g.Labels {
		issue.Labels = append(issue.Labels, l.Name)
	}
	for _, a := range g.Assignees {
		issue.Assignees = append(issue.Assignees, a.Login)
	}
	return issue
}

func (c *Client) GetIssue(ctx context.Context, repo string, number int) (*scm.Issue, error) {
	path, err := repoPath(repo, "/issues/", strconv.Itoa(number))
	if err != nil {
		return nil, err
	}
	var out ghIssue
	if _, err := c.do(ctx, http.MethodGet, path, func(r *resty.Request) { r.SetResult(&out) }); err != nil {
		return nil, err
	}
	return out.toIssue(), nil
}

func (c *Client) AddLabel(ctx context.Context, repo string, number int, label string) error {
	path, err := repoPath(repo, "/issues/", strconv.Itoa(number), "/labels")
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, path, func(r *resty.Request) {
		r.SetBody(map[string]any{"labels": []string{label}})
	})
	return err
}

func (c *Client) RemoveLabel(ctx context.Context, repo string, number int, label string) error {
	path, err := repoPath(repo, "/issues/", strconv.Itoa(number), "/labels/{name}")
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodDelete, path, func(r *resty.Request) {
		r.SetPathParam("name", label)
	})
	if IsNotFound(err) {
		return nil
	}
	return err
}

func (c *Client) AddComment(ctx context.Context, repo string, number int, body string) error {
	path, err := repoPath(repo, "/issues/", strconv.Itoa(number), "/comments")
	if err != nil {
		return err
	}
	_, err = c.do(ctx, http.MethodPost, path, func(r *resty.Request) {
		r.SetBody(map[string]string{"body": body})
	})
	return err
}

func (c *Client) UpdateIssue(ctx context.Context, repo string, number int, update scm.IssueUpdate) (*scm.Issue, error) {
	path, err := repoPath(repo, "/issues/", strconv.Itoa(number))
	if err != nil {
		return nil, err
	}
	var out ghIssue
	if _, err := c.do(ctx, http.MethodPatch, path, func(r *resty.Request) {
		r.SetBody(update).SetResult(&out)
	}); err != nil {
		return nil, err
	}
	return out.toIssue(), nil
}

func (c *Client) SearchIssues(ctx context.Context, query string) ([]*scm.Issue, error) {
	var out struct {
		Items []ghIssue `json:"items"`
	}
	if _, err := c.do(ctx, http.MethodGet, "/search/issues", func(r *resty.Request) {
		r.SetQueryParam("q", query).
			SetQueryParam("per_page", strconv.Itoa(perPage)).
			SetResult(&out)
	}); err != nil {
		return nil, err
	}
	issues := make([]*scm.Issue, 0, len(out.Items))
	for i := range out.Items {
		issues = append(issues, out.Items[i].toIssue())
	}
	return issues, nil
}

// ListIssues lists issues sorted by creation time, newest first. Pull requests are skipped.
func (c *Client) ListIssues(ctx context.Context, repo string, opts scm.ListIssuesOptions) ([]*scm.Issue, error) {
	path, err := repoPath(repo, "/issues")
	if err != nil {
		return nil, err
	}
	state := opts.State
	if state == "" {
		state = "open"
	}
	limit := opts.Limit
	if limit <= 0 || limit > perPage {
		limit = perPage
	}
	var out []ghIssue
	if _, err := c.do(ctx, http.MethodGet, path, func(r *resty.Request) {
		r.SetQueryParam("state", state).
			SetQueryParam("sort", "created").
			SetQueryParam("direction", "desc").
			SetQueryParam("per_page", strconv.Itoa(limit)).
			SetResult(&out)
		if len(opts.Labels) > 0 {
			r.SetQueryParam("labels", strings.Join(opts.Labels, ","))
		}
	}); err != nil {
		return nil, err
	}
	issues := make([]*scm.Issue, 0, len(out))
	for i := range out {
		if out[i].PullRequest != nil {
			continue
		}
		issues = append(issues, out[i].toIssue())
	}
	return issues, nil
}

type ghJob struct {
	Id          int64      `json:"id"`
	RunId       int64      `json:"run_id"`
	Name        string     `json:"name"`
	Status      string     `json:"status"`
	Conclusion  string     `json:"conclusion"`
	StartedAt   *time.Time `json:"started_at"`
	CompletedAt *time.Time `json:"completed_at"`
	Steps       []struct {
		Name       string `json:"name"`
		Status     string `json:"status"`
		Conclusion string `json:"conclusion"`
		Number     int    `json:"number"`
	} `json:"steps"`
}

func (c *Client) GetWorkflowJobs(ctx context.Context, repo string, runId int64) ([]scm.WorkflowJob, error) {
	path, err := repoPath(repo, "/actions/runs/", strconv.FormatInt(runId, 10), "/jobs")
	if err != nil {
		return nil, err
	}
	var jobs []scm.WorkflowJob
	for page := 1; page <= maxJobPages; page++ {
		var out struct {
			TotalCount int     `json:"total_count"`
			Jobs       []ghJob `json:"jobs"`
		}
		if _, err := c.do(ctx, http.MethodGet, path, func(r *resty.Request) {
			r.SetQueryParam("per_page", strconv.Itoa(perPage)).
				SetQueryParam("page", strconv.Itoa(page)).
				SetResult(&out)
		}); err != nil {
			return nil, err
		}
		for _, j := range out.Jobs {
			job := scm.WorkflowJob{
				Id:          j.Id,
				RunId:       j.RunId,
				Name:        j.Name,
				Status:      j.Status,
				Conclusion:  j.Conclusion,
				StartedAt:   j.StartedAt,
				CompletedAt: j.CompletedAt,
			}
			for _, s := range j.Steps {
				job.Steps = append(job.Steps, scm.JobStep{Name: s.Name, Status: s.Status, Conclusion: s.Conclusion, Number: s.Number})
			}
			jobs = append(jobs, job)
		}
		if len(out.Jobs) < perPage || len(jobs) >= out.TotalCount {
			break
		}
	}
	return jobs, nil
}

// GetJobLogs follows the logs redirect and returns the raw text.
func (c *Client) GetJobLogs(ctx context.Context, repo string, jobId int64) (string, error) {
	path, err := repoPath(repo, "/actions/jobs/", strconv.FormatInt(jobId, 10), "/logs")
	if err != nil {
		return "", err
	}
	resp, err := c.do(ctx, http.MethodGet, path, func(r *resty.Request) {
		r.SetHeader("Accept", "text/plain")
	})
	if err != nil {
		return "", err
	}
	return resp.String(), nil
}
