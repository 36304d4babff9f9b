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

package service

import (
	"context"
	"errors"
	"fmt"
	"regexp"
	"slices"
	"strings"
	"sync/atomic"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/pkg/classifier"
	"github.com/arcentrix/storyflow/internal/pkg/notify"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/dedup"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm"
	"github.com/bytedance/sonic"
	"gorm.io/datatypes"
)

const (
	HeaderSignature = "X-Hub-Signature-256"
	HeaderDelivery  = "X-GitHub-Delivery"

	signaturePrefix = "sha256="
	triggerWebhook  = "webhook"

	statusProcessed = "processed"
	statusIgnored   = "ignored"
	statusError     = "error"
)

var (
	ErrInvalidSignature = errors.New("invalid webhook signature")
	ErrInvalidPayload   = errors.New("invalid webhook payload")
)

var storyRefPattern = regexp.MustCompile(`(?i)#?story_[A-Za-z0-9]{3,}`)

// defaultStatusRules maps an event key to the story status it moves to.
// pull_request.closed is decided by the merged flag.
var defaultStatusRules = map[string]model.StoryStatus{
	"pull_request.opened":           model.StoryStatusInProgress,
	"pull_request.ready_for_review": model.StoryStatusReview,
	"issues.opened":                 model.StoryStatusReady,
	"issues.closed":                 model.StoryStatusDone,
	"issues.reopened":               model.StoryStatusInProgress,
}

type WebhookConf struct {
	Secret string `mapstructure:"secret"`
	// StatusMappings overrides event key to status rules; an empty status disables a rule.
	StatusMappings map[string]string `mapstructure:"statusMappings"`
	DedupTTLHours  int               `mapstructure:"dedupTtlHours" validate:"gte=0"`
}

func (c *WebhookConf) SetDefaults() {
	if c.DedupTTLHours == 0 {
		c.DedupTTLHours = 24
	}
}

// WebhookResult is the json body returned for a delivery.
type WebhookResult map[string]any

func ignored(reason string) WebhookResult {
	return WebhookResult{"status": statusIgnored, "reason": reason}
}

// PipelineProcessor records workflow_run events.
type PipelineProcessor interface {
	ProcessPipelineEvent(ctx context.Context, payload []byte) (*model.PipelineRun, error)
}

// FailureNotifier tells the automation agent about failed runs.
type FailureNotifier interface {
	NotifyPipelineFailures(ctx context.Context, run *model.PipelineRun) notify.Result
}

// StoryProcessor advances the label state machine of a story issue.
type StoryProcessor interface {
	ProcessStoryState(ctx context.Context, ev workflow.Event) (*workflow.Result, error)
}

type webhookPayload struct {
	Action      string           `json:"action"`
	Ref         string           `json:"ref"`
	Repository  *payloadRepo     `json:"repository"`
	Sender      *payloadUser     `json:"sender"`
	PullRequest *payloadPull     `json:"pull_request"`
	Issue       *payloadIssue    `json:"issue"`
	WorkflowRun *struct{}        `json:"workflow_run"`
	Commits     *[]payloadCommit `json:"commits"`
}

type payloadRepo struct {
	FullName string `json:"full_name"`
}

type payloadUser struct {
	Login string `json:"login"`
}

type payloadPull struct {
	Number int    `json:"number"`
	Title  string `json:"title"`
	Body   string `json:"body"`
	Merged bool   `json:"merged"`
}

type payloadLabel struct {
	Name string `json:"name"`
}

type payloadIssue struct {
	Number int            `json:"number"`
	Title  string         `json:"title"`
	Labels []payloadLabel `json:"labels"`
}

type payloadCommit struct {
	Id      string `json:"id"`
	Message string `json:"message"`
}

func (p *webhookPayload) sender() string {
	if p.Sender == nil {
		return ""
	}
	return p.Sender.Login
}

// WebhookService routes GitHub deliveries to story status updates, the
// pipeline monitor and the story state machine.
type WebhookService struct {
	settings   atomic.Pointer[webhookSettings]
	stories    repo.IStoryRepository
	pipelines  PipelineProcessor
	notifier   FailureNotifier
	workflow   StoryProcessor
	deliveries dedup.Store
	metrics    *metrics.Metrics
	log        *logger.Logger
}

// NewWebhookService creates the webhook service. notifier, processor and
// deliveries may be nil.
func NewWebhookService(
	conf WebhookConf,
	stories repo.IStoryRepository,
	pipelines PipelineProcessor,
	notifier FailureNotifier,
	processor StoryProcessor,
	deliveries dedup.Store,
	m *metrics.Metrics,
) *WebhookService {
	s := &WebhookService{
		stories:    stories,
		pipelines:  pipelines,
		notifier:   notifier,
		workflow:   processor,
		deliveries: deliveries,
		metrics:    m,
		log:        logger.Channel("webhook"),
	}
	s.UpdateConf(conf)
	return s
}

// webhookSettings is the secret and status rule table in effect.
type webhookSettings struct {
	secret string
	rules  map[string]model.StoryStatus
}

// UpdateConf swaps the secret and status mappings used by later deliveries.
func (s *WebhookService) UpdateConf(conf WebhookConf) {
	conf.SetDefaults()
	s.settings.Store(&webhookSettings{
		secret: strings.TrimSpace(conf.Secret),
		rules:  s.statusRules(conf.StatusMappings),
	})
	if strings.TrimSpace(conf.Secret) == "" {
		s.log.Warnw("no webhook secret configured, signature verification is disabled")
	}
}

func (s *WebhookService) rule(eventKey string) model.StoryStatus {
	return s.settings.Load().rules[eventKey]
}

func (s *WebhookService) statusRules(mappings map[string]string) map[string]model.StoryStatus {
	rules := make(map[string]model.StoryStatus, len(defaultStatusRules))
	for k, v := range defaultStatusRules {
		rules[k] = v
	}
	for key, value := range mappings {
		if value == "" {
			delete(rules, key)
			continue
		}
		status, ok := model.ParseStoryStatus(value)
		if !ok {
			s.log.Warnw("invalid status in custom mapping", "event", key, "status", value)
			continue
		}
		rules[key] = status
	}
	return rules
}

// VerifySignature checks the sha256=<hex> signature of the raw body.
func (s *WebhookService) VerifySignature(body []byte, signature string) error {
	secret := s.settings.Load().secret
	if secret == "" {
		return nil
	}
	if !strings.HasPrefix(signature, signaturePrefix) {
		return ErrInvalidSignature
	}
	if err := scm.VerifyHmacSha256Hex(body, secret, signature, signaturePrefix); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidSignature, err)
	}
	return nil
}

// HandleWebhook processes one delivery. An error is returned only when the
// signature or the json body is rejected; everything else is a result.
func (s *WebhookService) HandleWebhook(ctx context.Context, body []byte, headers map[string]string) (WebhookResult, error) {
	req := scm.WebhookRequest{Headers: headers, Body: body}
	if err := s.VerifySignature(body, req.Header(HeaderSignature)); err != nil {
		s.log.Warnw("rejected webhook delivery", "delivery", req.Header(HeaderDelivery), "error", err)
		return nil, err
	}
	var payload webhookPayload
	if err := sonic.Unmarshal(body, &payload); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidPayload, err)
	}

	if id := req.Header(HeaderDelivery); id != "" && s.deliveries != nil {
		claimed, err := s.deliveries.Claim(ctx, id)
		if err != nil {
			s.log.Warnw("delivery de-dup unavailable", "delivery", id, "error", err)
		} else if !claimed {
			s.metrics.WebhookHandled("duplicate", statusIgnored)
			return ignored("duplicate delivery"), nil
		}
	}

	action := payload.Action
	if action == "" && payload.Commits != nil {
		action = "push"
	}
	if action == "" {
		s.log.Warnw("webhook payload missing action and not a push event")
		return s.done("unknown", ignored("missing action")), nil
	}
	if payload.Repository == nil || payload.Repository.FullName == "" {
		s.log.Warnw("webhook payload missing repository information")
		return s.done("unknown", ignored("missing repository")), nil
	}
	repository := payload.Repository.FullName

	var eventKey string
	switch {
	case payload.PullRequest != nil:
		eventKey = "pull_request." + action
	case payload.Issue != nil:
		eventKey = "issues." + action
	case payload.WorkflowRun != nil:
		eventKey = "workflow_run." + action
	case action == "push":
		eventKey = "push"
	default:
		s.log.Debugw("ignoring unsupported webhook event", "action", action)
		return s.done("unknown", ignored("unsupported event")), nil
	}
	s.log.Infow("processing webhook event", "event", eventKey, "repository", repository, "delivery", req.Header(HeaderDelivery))

	var result WebhookResult
	switch {
	case payload.PullRequest != nil:
		result = s.handlePullRequest(ctx, eventKey, &payload, repository)
	case payload.Issue != nil:
		result = s.handleIssue(ctx, eventKey, &payload, repository)
	case payload.WorkflowRun != nil:
		result = s.handleWorkflowRun(ctx, eventKey, body)
	default:
		result = s.handlePush(ctx, &payload, repository)
	}
	s.log.Infow("webhook event audit",
		"event", eventKey,
		"repository", repository,
		"sender", payload.sender(),
		"status", result["status"],
		"updatedStories", result["updated_stories"])
	return s.done(eventKey, result), nil
}

func (s *WebhookService) done(eventKey string, result WebhookResult) WebhookResult {
	status, _ := result["status"].(string)
	s.metrics.WebhookHandled(eventKey, status)
	return result
}

// ExtractStoryReferences returns the story ids mentioned in text, without the
// leading '#', in first-seen order.
func ExtractStoryReferences(text string) []string {
	var ids []string
	for _, m := range storyRefPattern.FindAllString(text, -1) {
		id := strings.TrimPrefix(m, "#")
		if !slices.Contains(ids, id) {
			ids = append(ids, id)
		}
	}
	return ids
}

func (s *WebhookService) linkedStories(ctx context.Context, repository string, number int) []string {
	ids, err := s.stories.ListStoryIdsByIssue(ctx, repository, number)
	if err != nil {
		s.log.Errorw("failed to load linked stories", "repository", repository, "number", number, "error", err)
		return nil
	}
	return ids
}

type transition struct {
	eventKey    string
	repository  string
	sender      string
	prNumber    int
	issueNumber int
	commitSha   string
	metadata    datatypes.JSONMap
}

// moveStory sets the story status and records the audit entry. It reports
// whether the story exists.
func (s *WebhookService) moveStory(ctx context.Context, storyId string, target model.StoryStatus, t transition) bool {
	oldStatus := ""
	current, err := s.stories.GetStory(ctx, storyId)
	if err != nil {
		s.log.Errorw("failed to load story", "storyId", storyId, "error", err)
	}
	if current != nil {
		oldStatus = string(current.Status)
	}
	updated, err := s.stories.UpdateStatus(ctx, storyId, target)
	if err != nil {
		s.log.Errorw("failed to update story status", "storyId", storyId, "target", target, "error", err)
		return false
	}
	if !updated {
		return false
	}
	s.log.Infow("updated story status", "storyId", storyId, "from", oldStatus, "to", target, "event", t.eventKey)

	metadata := datatypes.JSONMap{"trigger_source": "github"}
	for k, v := range t.metadata {
		metadata[k] = v
	}
	entry := &model.AuditLog{
		EventKey:    t.eventKey,
		StoryId:     storyId,
		OldStatus:   oldStatus,
		NewStatus:   string(target),
		TriggerType: triggerWebhook,
		Repository:  t.repository,
		PrNumber:    t.prNumber,
		IssueNumber: t.issueNumber,
		CommitSha:   t.commitSha,
		Sender:      t.sender,
		Metadata:    metadata,
	}
	if err := s.stories.AppendAudit(ctx, entry); err != nil {
		s.log.Errorw("failed to append audit log", "storyId", storyId, "error", err)
	}
	return true
}

func (s *WebhookService) handlePullRequest(ctx context.Context, eventKey string, p *webhookPayload, repository string) WebhookResult {
	pr := p.PullRequest
	storyIds := ExtractStoryReferences(pr.Title + " " + pr.Body)
	for _, id := range s.linkedStories(ctx, repository, pr.Number) {
		if !slices.Contains(storyIds, id) {
			storyIds = append(storyIds, id)
		}
	}
	if len(storyIds) == 0 {
		return ignored("no associated stories found")
	}

	var target model.StoryStatus
	switch {
	case p.Action == "closed" && pr.Merged:
		target = model.StoryStatusDone
	case p.Action == "closed":
		target = model.StoryStatusReady
	default:
		target = s.rule(eventKey)
	}
	if target == "" {
		return ignored("no status transition rule")
	}

	updated := make([]string, 0, len(storyIds))
	for _, id := range storyIds {
		ok := s.moveStory(ctx, id, target, transition{
			eventKey:   eventKey,
			repository: repository,
			sender:     p.sender(),
			prNumber:   pr.Number,
			metadata:   datatypes.JSONMap{"pr_title": pr.Title, "merged": pr.Merged},
		})
		if ok {
			updated = append(updated, id)
		}
	}
	return WebhookResult{
		"status":          statusProcessed,
		"event":           eventKey,
		"updated_stories": updated,
		"target_status":   string(target),
		"pr_number":       pr.Number,
	}
}

func (s *WebhookService) handleIssue(ctx context.Context, eventKey string, p *webhookPayload, repository string) WebhookResult {
	issue := p.Issue
	result := s.issueStatus(ctx, eventKey, p, repository)

	wf := s.runStoryWorkflow(ctx, p, repository)
	if wf == nil {
		return result
	}
	if result["status"] == statusIgnored {
		result = WebhookResult{"status": statusProcessed, "event": eventKey, "issue_number": issue.Number}
	}
	result["story_state"] = string(wf.FinalState)
	result["transitions"] = wf.Transitions
	return result
}

func (s *WebhookService) issueStatus(ctx context.Context, eventKey string, p *webhookPayload, repository string) WebhookResult {
	issue := p.Issue
	storyIds := s.linkedStories(ctx, repository, issue.Number)
	if len(storyIds) == 0 {
		return ignored("no associated stories found")
	}
	target := s.rule(eventKey)
	if target == "" {
		return ignored("no status transition rule")
	}

	updated := make([]string, 0, len(storyIds))
	for _, id := range storyIds {
		ok := s.moveStory(ctx, id, target, transition{
			eventKey:    eventKey,
			repository:  repository,
			sender:      p.sender(),
			issueNumber: issue.Number,
			metadata:    datatypes.JSONMap{"issue_title": issue.Title},
		})
		if ok {
			updated = append(updated, id)
		}
	}
	return WebhookResult{
		"status":          statusProcessed,
		"event":           eventKey,
		"updated_stories": updated,
		"target_status":   string(target),
		"issue_number":    issue.Number,
	}
}

// runStoryWorkflow feeds issues carrying a story/* label to the state machine.
func (s *WebhookService) runStoryWorkflow(ctx context.Context, p *webhookPayload, repository string) *workflow.Result {
	if s.workflow == nil {
		return nil
	}
	labels := make([]string, 0, len(p.Issue.Labels))
	for _, l := range p.Issue.Labels {
		labels = append(labels, l.Name)
	}
	if _, ok := workflow.CurrentState(labels); !ok {
		return nil
	}
	res, err := s.workflow.ProcessStoryState(ctx, workflow.Event{
		Repository:   repository,
		IssueNumber:  p.Issue.Number,
		TriggerEvent: "issues",
		Action:       p.Action,
		Labels:       labels,
		Actor:        p.sender(),
	})
	if err != nil {
		s.log.Errorw("story workflow failed", "repository", repository, "issue", p.Issue.Number, "error", err)
		return nil
	}
	return res
}

func (s *WebhookService) handlePush(ctx context.Context, p *webhookPayload, repository string) WebhookResult {
	var commits []payloadCommit
	if p.Commits != nil {
		commits = *p.Commits
	}
	updated := []string{}
	for _, commit := range commits {
		for _, id := range ExtractStoryReferences(commit.Message) {
			story, err := s.stories.GetStory(ctx, id)
			if err != nil {
				s.log.Errorw("failed to load story", "storyId", id, "error", err)
				continue
			}
			if story == nil || (story.Status != model.StoryStatusDraft && story.Status != model.StoryStatusReady) {
				continue
			}
			ok := s.moveStory(ctx, id, model.StoryStatusInProgress, transition{
				eventKey:   "push",
				repository: repository,
				sender:     p.sender(),
				commitSha:  commit.Id,
				metadata:   datatypes.JSONMap{"commit_message": classifier.Truncate(commit.Message, 100), "ref": p.Ref},
			})
			if ok {
				updated = append(updated, id)
			}
		}
	}
	status := statusIgnored
	if len(updated) > 0 {
		status = statusProcessed
	}
	return WebhookResult{
		"status":            status,
		"event":             "push",
		"updated_stories":   updated,
		"commits_processed": len(commits),
	}
}

func (s *WebhookService) handleWorkflowRun(ctx context.Context, eventKey string, body []byte) WebhookResult {
	run, err := s.pipelines.ProcessPipelineEvent(ctx, body)
	if err != nil {
		s.log.Errorw("failed to handle workflow run event", "error", err)
		return WebhookResult{"status": statusError, "reason": err.Error()}
	}
	if run == nil {
		return ignored("failed to process pipeline event")
	}

	sent := false
	if len(run.Failures) > 0 && s.notifier != nil {
		sent = s.notifier.NotifyPipelineFailures(ctx, run).Sent
	}
	return WebhookResult{
		"status":            statusProcessed,
		"event":             eventKey,
		"pipeline_id":       run.RunId,
		"pipeline_status":   string(run.Status),
		"failure_count":     len(run.Failures),
		"notification_sent": sent,
	}
}
