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
	"strings"

	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/cors"
)

var (
	allowMethods  = "GET, POST, OPTIONS"
	allowHeaders  = "Origin, X-Requested-With, Content-Type, Accept"
	exposeHeaders = "Content-Length, Content-Type, Cache-Control"
)

// CorsMiddleware allows the listed origins to read dashboard endpoints.
// An empty list falls back to local dev origins.
func CorsMiddleware(origins []string) fiber.Handler {
	if len(origins) == 0 {
		origins = []string{"http://localhost:5173", "http://127.0.0.1:5173"}
	}
	allowedSet := make(map[string]struct{}, len(origins))
	for _, o := range origins {
		o = strings.ToLower(strings.TrimSpace(o))
		if o == "" {
			continue
		}
		allowedSet[o] = struct{}{}
	}

	return cors.New(cors.Config{
		AllowOriginsFunc: func(origin string) bool {
			_, ok := allowedSet[strings.ToLower(strings.TrimSpace(origin))]
			return ok
		},
		AllowMethods:  allowMethods,
		AllowHeaders:  allowHeaders,
		ExposeHeaders: exposeHeaders,
	})
}
