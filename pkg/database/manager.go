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
	"fmt"
	"time"

	"github.com/arcentrix/storyflow/pkg/logger"
	"gorm.io/driver/mysql"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	gormlogger "gorm.io/gorm/logger"
	"gorm.io/plugin/dbresolver"
)

type Manager interface {
	IDatabase

	// DB returns the primary connection
	DB() *gorm.DB

	// Close closes all database connections
	Close() error
}

// IDatabase is embedded by repositories.
type IDatabase interface {
	Database() *gorm.DB
}

type managerImpl struct {
	db *gorm.DB
}

func (m *managerImpl) DB() *gorm.DB {
	return m.db
}

func (m *managerImpl) Database() *gorm.DB {
	return m.db
}

func (m *managerImpl) Close() error {
	if m.db == nil {
		return nil
	}
	sqlDB, err := m.db.DB()
	if err != nil {
		return err
	}
	if err := sqlDB.Close(); err != nil {
		return fmt.Errorf("failed to close database: %w", err)
	}
	return nil
}

// NewManager opens the configured driver.
func NewManager(cfg Database) (Manager, error) {
	cfg.SetDefaults()

	var (
		db  *gorm.DB
		err error
	)
	switch cfg.Driver {
	case DriverMySQL:
		db, err = newMySQLConnection(cfg.MySQL, cfg)
	case DriverSQLite:
		db, err = newSQLiteConnection(cfg.SQLite, cfg)
	default:
		return nil, fmt.Errorf("unsupported database driver: %s", cfg.Driver)
	}
	if err != nil {
		return nil, err
	}
	logger.Infow("database connected", "driver", cfg.Driver)
	return &managerImpl{db: db}, nil
}

// NewFromDB wraps an existing connection, mostly for tests.
func NewFromDB(db *gorm.DB) IDatabase {
	return &managerImpl{db: db}
}

func gormConfig(commonCfg Database) *gorm.Config {
	var l gormlogger.Interface
	if commonCfg.OutPut {
		l = NewGormLoggerAdapter(gormlogger.Config{
			SlowThreshold:             time.Second,
			LogLevel:                  gormlogger.Info,
			IgnoreRecordNotFoundError: true,
			ParameterizedQueries:      true,
		})
	} else {
		l = gormlogger.Default.LogMode(gormlogger.Silent)
	}
	return &gorm.Config{Logger: l}
}

func newSQLiteConnection(sqliteCfg SQLiteConfig, commonCfg Database) (*gorm.DB, error) {
	db, err := gorm.Open(sqlite.Open(sqliteCfg.Path), gormConfig(commonCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open SQLite database %s: %w", sqliteCfg.Path, err)
	}
	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB handle: %w", err)
	}
	// sqlite allows a single writer
	sqlDB.SetMaxOpenConns(1)
	return db, nil
}

func newMySQLConnection(mysqlCfg MySQLConfig, commonCfg Database) (*gorm.DB, error) {
	dsn := buildMySQLDSN(mysqlCfg.User, mysqlCfg.Password, mysqlCfg.Host, mysqlCfg.Port, mysqlCfg.DBName)
	db, err := gorm.Open(mysql.Open(dsn), gormConfig(commonCfg))
	if err != nil {
		return nil, fmt.Errorf("failed to open MySQL connection: %w", err)
	}

	if len(mysqlCfg.Primary) > 0 || len(mysqlCfg.Replicas) > 0 {
		resolverConfig := dbresolver.Config{TraceResolverMode: commonCfg.OutPut}
		for _, d := range mysqlCfg.Primary {
			resolverConfig.Sources = append(resolverConfig.Sources, mysql.Open(d))
		}
		for _, d := range mysqlCfg.Replicas {
			resolverConfig.Replicas = append(resolverConfig.Replicas, mysql.Open(d))
		}
		err = db.Use(dbresolver.Register(resolverConfig).
			SetConnMaxIdleTime(GetConnMaxIdleTime(commonCfg.MaxIdleTime)).
			SetConnMaxLifetime(GetConnMaxLifetime(commonCfg.MaxLifetime)).
			SetMaxIdleConns(commonCfg.MaxIdleConns).
			SetMaxOpenConns(commonCfg.MaxOpenConns))
		if err != nil {
			return nil, fmt.Errorf("failed to register DBResolver plugin: %w", err)
		}
		logger.Info("MySQL read-write separation enabled")
	}

	sqlDB, err := db.DB()
	if err != nil {
		return nil, fmt.Errorf("failed to get underlying sql.DB handle: %w", err)
	}
	sqlDB.SetMaxOpenConns(commonCfg.MaxOpenConns)
	sqlDB.SetMaxIdleConns(commonCfg.MaxIdleConns)
	sqlDB.SetConnMaxLifetime(GetConnMaxLifetime(commonCfg.MaxLifetime))
	sqlDB.SetConnMaxIdleTime(GetConnMaxIdleTime(commonCfg.MaxIdleTime))

	if err := sqlDB.Ping(); err != nil {
		return nil, fmt.Errorf("failed to ping MySQL: %w", err)
	}
	return db, nil
}
