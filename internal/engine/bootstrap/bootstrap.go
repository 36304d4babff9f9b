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

package bootstrap

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/arcentrix/storyflow/internal/engine/config"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/engine/router"
	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/gofiber/fiber/v2"
	"github.com/robfig/cron"
)

type App struct {
	HttpApp   *fiber.App
	Logger    *logger.Logger
	AppConf   *config.AppConfig
	Repos     *repo.Repositories
	Services  *service.Services
	Scheduler *cron.Cron
}

// InitAppFunc init app function type
type InitAppFunc func(configPath string) (*App, func(), error)

func NewApp(
	rt *router.Router,
	log *logger.Logger,
	appConf *config.AppConfig,
	repos *repo.Repositories,
	services *service.Services,
) (*App, func(), error) {
	var scheduler *cron.Cron
	if appConf.Schedule.Enabled {
		s, err := NewScheduler(appConf.Schedule, services.Monitor)
		if err != nil {
			return nil, nil, err
		}
		scheduler = s
	}

	config.OnChange(reloadServices(services))

	app := &App{
		HttpApp:   rt.Router(),
		Logger:    log,
		AppConf:   appConf,
		Repos:     repos,
		Services:  services,
		Scheduler: scheduler,
	}

	cleanup := func() {
		if scheduler != nil {
			logger.Info("Stopping scheduled jobs...")
			scheduler.Stop()
		}
	}
	return app, cleanup, nil
}

// reloadServices applies hot reloaded settings to the running services.
func reloadServices(services *service.Services) func(config.AppConfig) {
	return func(next config.AppConfig) {
		services.Webhook.UpdateConf(next.Webhook)
		logger.Infow("webhook settings reloaded", "statusMappings", len(next.Webhook.StatusMappings))
	}
}

// Bootstrap init app, return App instance and cleanup function
func Bootstrap(configFile string, initApp InitAppFunc) (*App, func(), error) {
	app, cleanup, err := initApp(configFile)
	if err != nil {
		return nil, nil, fmt.Errorf("init app: %w", err)
	}
	return app, cleanup, nil
}

// Run starts the listener and the scheduled jobs, waits for an exit signal,
// then shuts down gracefully.
func Run(app *App, cleanup func()) {
	appConf := app.AppConf

	if app.Scheduler != nil {
		app.Scheduler.Start()
		logger.Infow("scheduled jobs started",
			"patternAnalysis", appConf.Schedule.PatternAnalysis,
			"escalationSweep", appConf.Schedule.EscalationSweep,
		)
	}

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGHUP, syscall.SIGINT, syscall.SIGTERM, syscall.SIGQUIT)

	listenErr := make(chan error, 1)
	go func() {
		addr := appConf.Http.Addr()
		logger.Infow("HTTP listener started", "address", addr)
		if err := app.HttpApp.Listen(addr); err != nil {
			logger.Errorw("HTTP listener failed", "address", addr, "error", err)
			listenErr <- err
		}
	}()

	select {
	case sig := <-quit:
		logger.Infow("Received OS signal, shutting down gracefully...", "signal", sig.String())
	case <-listenErr:
	}

	timeout := time.Duration(appConf.Http.ShutdownTimeout) * time.Second
	shutdownCtx, cancel := context.WithTimeout(context.Background(), timeout)
	defer cancel()
	if err := app.HttpApp.ShutdownWithContext(shutdownCtx); err != nil {
		logger.Errorw("HTTP server shutdown error", "error", err)
	} else {
		logger.Info("HTTP server shut down gracefully")
	}

	cleanup()
	logger.Info("Server shutdown complete")
}
