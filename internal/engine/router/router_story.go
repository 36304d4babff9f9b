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

package router

import (
	"errors"
	"strings"

	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/http/middleware"
	"github.com/gofiber/fiber/v2"
)

func (rt *Router) storyRouter(r fiber.Router) {
	stories := r.Group("/stories")
	{
		stories.Post("/links", rt.linkStory)
		stories.Get("/:storyId", rt.getStory)
	}
}

func (rt *Router) linkStory(c *fiber.Ctx) error {
	var req service.StoryLinkReq
	if err := c.BodyParser(&req); err != nil {
		return http.WithRepErrMsg(c, http.RequestParameterParsingFailed.Code, http.RequestParameterParsingFailed.Msg, c.Path())
	}
	if err := rt.validate.Struct(&req); err != nil {
		return http.WithRepErrMsg(c, http.BadRequest.Code, err.Error(), c.Path())
	}

	link, err := rt.Services.Story.LinkStory(c.UserContext(), &req)
	if err != nil {
		if errors.Is(err, service.ErrInvalidStoryLink) {
			return http.WithRepErrMsg(c, http.BadRequest.Code, err.Error(), c.Path())
		}
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, link)
	return nil
}

func (rt *Router) getStory(c *fiber.Ctx) error {
	storyId := strings.TrimSpace(c.Params("storyId"))
	if storyId == "" {
		return http.WithRepErrMsg(c, http.BadRequest.Code, "story id is required", c.Path())
	}
	detail, err := rt.Services.Story.GetStory(c.UserContext(), storyId)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	if detail == nil {
		return http.WithRepErrMsg(c, http.NotFound.Code, "story not found", c.Path())
	}
	c.Locals(middleware.DETAIL, detail)
	return nil
}
