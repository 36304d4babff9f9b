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
	"strings"

	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/http/middleware"
	"github.com/gofiber/fiber/v2"
)

const defaultDashboardDays = 7

func (rt *Router) dashboardRouter(r fiber.Router) {
	dashboard := r.Group("/dashboard")
	{
		dashboard.Get("/failures", rt.failureDashboard)
		dashboard.Get("/retries", rt.retryDashboard)
		dashboard.Get("/recoveries", rt.recoveryDashboard)
		dashboard.Get("/assignments", rt.assignmentDashboard)
	}
}

func dashboardQuery(c *fiber.Ctx) (string, int) {
	return strings.TrimSpace(c.Query("repository")), http.QueryInt(c, "days", defaultDashboardDays)
}

func (rt *Router) failureDashboard(c *fiber.Ctx) error {
	repository, days := dashboardQuery(c)
	d, err := rt.Services.Dashboard.Failures(c.UserContext(), repository, days)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, d)
	return nil
}

func (rt *Router) retryDashboard(c *fiber.Ctx) error {
	repository, days := dashboardQuery(c)
	d, err := rt.Services.Dashboard.Retries(c.UserContext(), repository, days)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, d)
	return nil
}

func (rt *Router) recoveryDashboard(c *fiber.Ctx) error {
	repository, days := dashboardQuery(c)
	d, err := rt.Services.Dashboard.Recoveries(c.UserContext(), repository, days)
	if err != nil {
		return http.WithRepErrMsg(c, http.Failed.Code, err.Error(), c.Path())
	}
	c.Locals(middleware.DETAIL, d)
	return nil
}

func (rt *Router) assignmentDashboard(c *fiber.Ctx) error {
	c.Locals(middleware.DETAIL, rt.Services.Dashboard.Assignments())
	return nil
}
