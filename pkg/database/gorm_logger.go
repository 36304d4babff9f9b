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
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/arcentrix/storyflow/pkg/logger"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
)

// gormLoggerAdapter routes gorm output into the application logger.
type gormLoggerAdapter struct {
	conf  gormlogger.Config
	level gormlogger.LogLevel
}

func NewGormLoggerAdapter(conf gormlogger.Config) gormlogger.Interface {
	return &gormLoggerAdapter{conf: conf, level: conf.LogLevel}
}

func (g *gormLoggerAdapter) LogMode(level gormlogger.LogLevel) gormlogger.Interface {
	copied := *g
	copied.level = level
	return &copied
}

func (g *gormLoggerAdapter) Info(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Info {
		logger.InfoContext(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (g *gormLoggerAdapter) Warn(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Warn {
		logger.WarnContext(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (g *gormLoggerAdapter) Error(ctx context.Context, msg string, args ...any) {
	if g.level >= gormlogger.Error {
		logger.ErrorContext(ctx, fmt.Sprintf(msg, args...), "component", "gorm")
	}
}

func (g *gormLoggerAdapter) Trace(ctx context.Context, begin time.Time, fc func() (string, int64), err error) {
	if g.level <= gormlogger.Silent {
		return
	}
	elapsed := time.Since(begin)
	sql, rows := fc()
	switch {
	case err != nil && g.level >= gormlogger.Error &&
		!(g.conf.IgnoreRecordNotFoundError && errors.Is(err, gorm.ErrRecordNotFound)):
		logger.ErrorContext(ctx, "gorm query failed", "sql", sql, "rows", rows, "elapsed", elapsed, "error", err)
	case g.conf.SlowThreshold > 0 && elapsed > g.conf.SlowThreshold && g.level >= gormlogger.Warn:
		logger.WarnContext(ctx, "gorm slow query", "sql", sql, "rows", rows, "elapsed", elapsed)
	case g.level >= gormlogger.Info:
		logger.DebugContext(ctx, "gorm query", "sql", sql, "rows", rows, "elapsed", elapsed)
	}
}
