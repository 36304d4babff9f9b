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

package repo

import (
	"context"
	"fmt"

	"github.com/arcentrix/storyflow/internal/engine/model"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/google/wire"
	"gorm.io/gorm"
)

// ProviderSet wires every repository behind a single Repositories value.
var ProviderSet = wire.NewSet(
	ProvideRepositories,
)

// Repositories groups the repositories shared by services.
type Repositories struct {
	Pipeline   IPipelineRepository
	Recovery   IRecoveryRepository
	Story      IStoryRepository
	Assignment IAssignmentRepository
}

// NewRepositories builds all repositories on top of the same database handle.
func NewRepositories(db database.IDatabase) *Repositories {
	return &Repositories{
		Pipeline:   NewPipelineRepo(db),
		Recovery:   NewRecoveryRepo(db),
		Story:      NewStoryRepo(db),
		Assignment: NewAssignmentRepo(db),
	}
}

// ProvideRepositories migrates the schema when configured, and always for
// sqlite, before handing out the repositories.
func ProvideRepositories(db database.IDatabase, conf database.Database) (*Repositories, error) {
	if conf.AutoMigrate || conf.Driver == "" || conf.Driver == database.DriverSQLite {
		if err := AutoMigrate(context.Background(), db); err != nil {
			return nil, err
		}
	}
	return NewRepositories(db), nil
}

// AutoMigrate creates or updates every table.
func AutoMigrate(ctx context.Context, db database.IDatabase) error {
	if err := db.Database().WithContext(ctx).AutoMigrate(model.AllModels()...); err != nil {
		return fmt.Errorf("auto migrate: %w", err)
	}
	return nil
}

// Count runs a count on a cloned statement so the caller can keep paging with tx.
func Count(tx *gorm.DB) (int64, error) {
	var total int64
	if err := tx.Session(&gorm.Session{}).Count(&total).Error; err != nil {
		return 0, err
	}
	return total, nil
}
