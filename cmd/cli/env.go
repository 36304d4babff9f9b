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

package main

import (
	"fmt"
	"io"

	"github.com/arcentrix/storyflow/internal/engine/config"
	"github.com/arcentrix/storyflow/internal/engine/repo"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/bytedance/sonic"
)

// runtimeEnv is what every command needs: configuration, logger and storage.
type runtimeEnv struct {
	conf  config.AppConfig
	repos *repo.Repositories
}

func loadConf(path string) (config.AppConfig, error) {
	if path == "" {
		return config.LoadFromEnv()
	}
	return config.LoadConfigFile(path)
}

func openEnv(logLevel string) (*runtimeEnv, func(), error) {
	conf, err := loadConf(confPath)
	if err != nil {
		return nil, nil, err
	}
	if _, err := logger.ProvideLogger(&conf.Log); err != nil {
		return nil, nil, err
	}
	if logLevel != "" {
		if err := logger.SetLevel(&conf.Log, logLevel); err != nil {
			return nil, nil, err
		}
	}

	db, err := database.NewManager(conf.Database)
	if err != nil {
		return nil, nil, fmt.Errorf("open database: %w", err)
	}
	cleanup := func() {
		if err := db.Close(); err != nil {
			logger.Warnw("failed to close database", "error", err)
		}
	}
	repos, err := repo.ProvideRepositories(db, conf.Database)
	if err != nil {
		cleanup()
		return nil, nil, err
	}
	return &runtimeEnv{conf: conf, repos: repos}, cleanup, nil
}

func printJSON(w io.Writer, v any) error {
	data, err := sonic.ConfigStd.MarshalIndent(v, "", "  ")
	if err != nil {
		return err
	}
	_, err = fmt.Fprintln(w, string(data))
	return err
}
