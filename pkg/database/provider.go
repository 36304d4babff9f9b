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

package database

import (
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/google/wire"
)

var ProviderSet = wire.NewSet(
	ProvideManager,
	ProvideIDatabase,
)

// ProvideManager opens the database and returns a cleanup that closes it.
func ProvideManager(conf Database, _ *logger.Logger) (Manager, func(), error) {
	m, err := NewManager(conf)
	if err != nil {
		return nil, nil, err
	}
	cleanup := func() {
		if err := m.Close(); err != nil {
			logger.Warnw("failed to close database", "error", err)
		}
	}
	return m, cleanup, nil
}

func ProvideIDatabase(manager Manager) IDatabase {
	return manager
}
