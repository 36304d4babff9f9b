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
	"time"

	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/http/middleware"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/bytedance/sonic"
	"github.com/go-playground/validator/v10"
	"github.com/gofiber/fiber/v2"
	"github.com/gofiber/fiber/v2/middleware/adaptor"
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(NewRouter)

type Router struct {
	Http        http.Http
	MetricsConf metrics.Conf
	Services    *service.Services
	Metrics     *metrics.Metrics
	validate    *validator.Validate
}

func NewRouter(httpConf http.Http, metricsConf metrics.Conf, services *service.Services, m *metrics.Metrics) *Router {
	httpConf.SetDefaults()
	metricsConf.SetDefaults()
	return &Router{
		Http:        httpConf,
		MetricsConf: metricsConf,
		Services:    services,
		Metrics:     m,
		validate:    validator.New(),
	}
}

// Router builds the fiber app with every route registered.
func (rt *Router) Router() *fiber.App {
	app := fiber.New(fiber.Config{
		AppName:               "storyflow",
		DisableStartupMessage: true,
		BodyLimit:             rt.Http.BodyLimit,
		ReadTimeout:           time.Duration(rt.Http.ReadTimeout) * time.Second,
		WriteTimeout:          time.Duration(rt.Http.WriteTimeout) * time.Second,
		IdleTimeout:           time.Duration(rt.Http.IdleTimeout) * time.Second,
		JSONEncoder:           sonic.Marshal,
		JSONDecoder:           sonic.Unmarshal,
	})

	if rt.Http.AccessLog {
		app.Use(middleware.AccessLogMiddleware())
	}
	if rt.MetricsConf.Enabled && rt.Metrics != nil {
		app.Use(middleware.HttpMetricsMiddleware())
		app.Get(rt.MetricsConf.Path, adaptor.HTTPHandler(rt.Metrics.Handler()))
	}

	app.Get("/health", rt.health)
	app.Post("/webhook", rt.handleWebhook)

	api := app.Group("/api/v1", middleware.CorsMiddleware(rt.Http.AllowOrigins), middleware.ResponseMiddleware())
	rt.dashboardRouter(api)
	rt.storyRouter(api)

	return app
}

func (rt *Router) health(c *fiber.Ctx) error {
	return c.JSON(fiber.Map{"status": "healthy", "timestamp": time.Now().UnixMilli()})
}
