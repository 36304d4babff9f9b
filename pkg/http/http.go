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

package http

import (
	"strconv"

	"github.com/gofiber/fiber/v2"
)

type Http struct {
	Host            string
	Port            int
	AccessLog       bool
	ReadTimeout     int
	WriteTimeout    int
	IdleTimeout     int
	ShutdownTimeout int
	BodyLimit       int // request body limit in bytes, default 25MB
	// AllowOrigins lists browser origins allowed to read the dashboards.
	AllowOrigins []string
}

func (h *Http) SetDefaults() {
	if h.Host == "" {
		h.Host = "127.0.0.1"
	}
	if h.Port == 0 {
		h.Port = 8080
	}
	if h.ReadTimeout == 0 {
		h.ReadTimeout = 60
	}
	if h.WriteTimeout == 0 {
		h.WriteTimeout = 60
	}
	if h.IdleTimeout == 0 {
		h.IdleTimeout = 60
	}
	if h.ShutdownTimeout == 0 {
		h.ShutdownTimeout = 10
	}
	if h.BodyLimit == 0 {
		h.BodyLimit = 25 * 1024 * 1024
	}
}

// Addr returns host:port for the listener.
func (h *Http) Addr() string {
	return h.Host + ":" + strconv.Itoa(h.Port)
}

// QueryInt queries the int value from the query string, falling back to def
func QueryInt(c *fiber.Ctx, key string, def int) int {
	value := c.Query(key)
	if value == "" {
		return def
	}
	intValue, err := strconv.Atoi(value)
	if err != nil || intValue < 0 {
		return def
	}
	return intValue
}
