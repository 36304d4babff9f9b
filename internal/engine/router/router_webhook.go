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

	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/gofiber/fiber/v2"
)

// handleWebhook answers GitHub with the raw result; rejected deliveries get an error envelope.
func (rt *Router) handleWebhook(c *fiber.Ctx) error {
	rawHeaders := c.GetReqHeaders()
	headers := make(map[string]string, len(rawHeaders))
	for k, vv := range rawHeaders {
		if len(vv) > 0 {
			headers[k] = vv[0]
		}
	}

	result, err := rt.Services.Webhook.HandleWebhook(c.UserContext(), c.Body(), headers)
	switch {
	case errors.Is(err, service.ErrInvalidSignature):
		return http.WithRepErrMsg(c, http.Unauthorized.Code, "invalid signature", c.Path())
	case errors.Is(err, service.ErrInvalidPayload):
		return http.WithRepErrMsg(c, http.BadRequest.Code, "invalid json payload", c.Path())
	case err != nil:
		logger.Errorw("webhook handle failed", "error", err)
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	return c.JSON(result)
}
