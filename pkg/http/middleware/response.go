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

package middleware

import (
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/gofiber/fiber/v2"
)

// DETAIL is the locals key a handler stores its response detail under.
const DETAIL = "detail"

// ResponseMiddleware wraps the detail left by a handler in the success envelope.
func ResponseMiddleware() fiber.Handler {
	return func(c *fiber.Ctx) error {
		if err := c.Next(); err != nil {
			return err
		}
		detail := c.Locals(DETAIL)
		if detail == nil || len(c.Response().Body()) > 0 {
			return nil
		}
		return http.WithRepJSON(c, detail)
	}
}
