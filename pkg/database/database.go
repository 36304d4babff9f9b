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
	"strings"
	"time"
)

const (
	DriverSQLite = "sqlite"
	DriverMySQL  = "mysql"
)

// Database is the storage section of the application config.
type Database struct {
	Driver       string       `mapstructure:"driver" validate:"omitempty,oneof=sqlite mysql"`
	OutPut       bool         `mapstructure:"output"`
	MaxOpenConns int          `mapstructure:"maxOpenConns"`
	MaxIdleConns int          `mapstructure:"maxIdleConns"`
	MaxLifetime  int          `mapstructure:"maxLifetime"` // seconds
	MaxIdleTime  int          `mapstructure:"maxIdleTime"` // seconds
	AutoMigrate  bool         `mapstructure:"autoMigrate"`
	SQLite       SQLiteConfig `mapstructure:"sqlite"`
	MySQL        MySQLConfig  `mapstructure:"mysql"`
}

type SQLiteConfig struct {
	Path string `mapstructure:"path"`
}

type MySQLConfig struct {
	Host     string   `mapstructure:"host"`
	Port     int      `mapstructure:"port"`
	User     string   `mapstructure:"user"`
	Password string   `mapstructure:"password"`
	DBName   string   `mapstructure:"dbName"`
	Primary  []string `mapstructure:"primary"`  // extra write DSNs
	Replicas []string `mapstructure:"replicas"` // read DSNs
}

// SetDefaults fills unset values. SQLite in the working directory is the default store.
func (d *Database) SetDefaults() {
	if d.Driver == "" {
		d.Driver = DriverSQLite
	}
	if d.SQLite.Path == "" {
		d.SQLite.Path = "storyflow.db"
	}
	if d.MySQL.Port == 0 {
		d.MySQL.Port = 3306
	}
	if d.MaxOpenConns <= 0 {
		d.MaxOpenConns = 20
	}
	if d.MaxIdleConns <= 0 {
		d.MaxIdleConns = 5
	}
	if d.MaxLifetime <= 0 {
		d.MaxLifetime = 3600
	}
	if d.MaxIdleTime <= 0 {
		d.MaxIdleTime = 600
	}
}

func GetConnMaxLifetime(seconds int) time.Duration {
	if seconds <= 0 {
		return time.Hour
	}
	return time.Duration(seconds) * time.Second
}

func GetConnMaxIdleTime(seconds int) time.Duration {
	if seconds <= 0 {
		return 10 * time.Minute
	}
	return time.Duration(seconds) * time.Second
}

func buildMySQLDSN(user, password, host string, port int, dbName string) string {
	return fmt.Sprintf("%s:%s@tcp(%s:%d)/%s?charset=utf8mb4&parseTime=True&loc=Local",
		user, password, strings.TrimSpace(host), port, dbName)
}
