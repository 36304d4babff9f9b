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

//go:build wireinject
// +build wireinject

package main

import (
	"github.com/arcentrix/storyflow/internal/engine/bootstrap"
	"github.com/arcentrix/storyflow/internal/engine/config"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/internal/engine/router"
	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/pkg/cache"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/google/wire"
)

func initApp(configPath string) (*bootstrap.App, func(), error) {
	panic(wire.Build(
		// config and its sections
		config.ProviderSet,
		// logger (config)
		logger.ProviderSet,
		// database (config, logger)
		database.ProviderSet,
		// redis, optional (config)
		cache.ProviderSet,
		// metrics registry
		metrics.ProviderSet,
		// repositories (database)
		repo.ProviderSet,
		// domain components and services (config, repo, cache, metrics)
		service.ProviderSet,
		// routes (config, service, metrics)
		router.ProviderSet,
		bootstrap.NewApp,
	))
}
