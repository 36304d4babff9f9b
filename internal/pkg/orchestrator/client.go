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

// Package orchestrator is the HTTP client of the feedback and consensus generator service.
package orchestrator

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/bytedance/sonic"
	"github.com/go-resty/resty/v2"
)

var ErrNotConfigured = errors.New("orchestrator base url is not configured")

type Conf struct {
	BaseUrl        string `mapstructure:"baseUrl"`
	Token          string `mapstructure:"token"`
	TimeoutSeconds int    `mapstructure:"timeoutSeconds"`
}

func (c *Conf) SetDefaults() {
	if c.TimeoutSeconds <= 0 {
		c.TimeoutSeconds = 120
	}
}

// IssueRef names an issue in a repository.
type IssueRef struct {
	Repository string `json:"repository"`
	Number     int    `json:"number"`
}

// Ticket is one story created in a target repository.
type Ticket struct {
	Repository  string `json:"repository"`
	IssueNumber int    `json:"issueNumber"`
	Url         string `json:"url,omitempty"`
	Title       string `json:"title,omitempty"`
}

type Client struct {
	client     *resty.Client
	configured bool
}

func New(conf Conf) *Client {
	conf.SetDefaults()
	c := resty.New().
		SetTimeout(time.Duration(conf.TimeoutSeconds)*time.Second).
		SetBaseURL(strings.TrimRight(conf.BaseUrl, "/")).
		SetJSONMarshaler(sonic.Marshal).
		SetJSONUnmarshaler(sonic.Unmarshal)
	if conf.Token != "" {
		c.SetAuthToken(conf.Token)
	}
	return &Client{client: c, configured: strings.TrimSpace(conf.BaseUrl) != ""}
}

func (c *Client) post(ctx context.Context, path string, body, result any) error {
	if !c.configured {
		return ErrNotConfigured
	}
	req := c.client.R().SetContext(ctx).SetBody(body)
	if result != nil {
		req.SetResult(result)
	}
	r, err := req.Post(path)
	if err != nil {
		return err
	}
	if r.IsError() {
		return fmt.Errorf("orchestrator %s: %s", path, r.Status())
	}
	return nil
}

// GatherFeedback asks every role to comment on the issue and iterate on the story.
func (c *Client) GatherFeedback(ctx context.Context, issue IssueRef, roles []string) error {
	return c.post(ctx, "/v1/feedback", map[string]any{"issue": issue, "roles": roles}, nil)
}

// CheckAgreement reports whether all roles agree on the current story.
func (c *Client) CheckAgreement(ctx context.Context, issue IssueRef, roles []string) (bool, error) {
	var out struct {
		Agreed bool `json:"agreed"`
	}
	if err := c.post(ctx, "/v1/agreement", map[string]any{"issue": issue, "roles": roles}, &out); err != nil {
		return false, err
	}
	return out.Agreed, nil
}

// CreateMultiRepositoryStories creates one story per target repository and returns them by repository key.
func (c *Client) CreateMultiRepositoryStories(ctx context.Context, prompt string, roles, targets []string) (map[string]Ticket, error) {
	var out struct {
		Stories map[string]Ticket `json:"stories"`
	}
	body := map[string]any{"prompt": prompt, "roles": roles, "targets": targets}
	if err := c.post(ctx, "/v1/stories", body, &out); err != nil {
		return nil, err
	}
	return out.Stories, nil
}
