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

package config

import (
	"errors"
	"fmt"
	"io/fs"
	"strings"
	"sync"

	"github.com/arcentrix/storyflow/internal/engine/service"
	"github.com/arcentrix/storyflow/internal/pkg/assignment"
	"github.com/arcentrix/storyflow/internal/pkg/monitor"
	"github.com/arcentrix/storyflow/internal/pkg/notify"
	"github.com/arcentrix/storyflow/internal/pkg/orchestrator"
	"github.com/arcentrix/storyflow/internal/pkg/recovery"
	"github.com/arcentrix/storyflow/internal/pkg/workflow"
	"github.com/arcentrix/storyflow/pkg/cache"
	"github.com/arcentrix/storyflow/pkg/database"
	"github.com/arcentrix/storyflow/pkg/http"
	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/arcentrix/storyflow/pkg/metrics"
	"github.com/arcentrix/storyflow/pkg/scm/github"
	"github.com/fsnotify/fsnotify"
	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"github.com/spf13/viper"
)

const (
	envPrefix = "STORYFLOW"
	// keyDelimiter keeps dotted event keys such as "pull_request.opened"
	// intact inside webhook.statusMappings.
	keyDelimiter = "::"
)

// ScheduleConf drives the periodic jobs. Specs use the robfig/cron syntax,
// including descriptors such as "@every 6h".
type ScheduleConf struct {
	Enabled         bool     `mapstructure:"enabled"`
	PatternAnalysis string   `mapstructure:"patternAnalysis"`
	PatternDays     int      `mapstructure:"patternDays" validate:"gte=0"`
	EscalationSweep string   `mapstructure:"escalationSweep"`
	Repositories    []string `mapstructure:"repositories"`
}

func (c *ScheduleConf) SetDefaults() {
	if c.PatternAnalysis == "" {
		c.PatternAnalysis = "@every 6h"
	}
	if c.PatternDays == 0 {
		c.PatternDays = 7
	}
	if c.EscalationSweep == "" {
		c.EscalationSweep = "@every 30m"
	}
}

type AppConfig struct {
	Log           logger.Conf            `mapstructure:"log"`
	Http          http.Http              `mapstructure:"http"`
	Database      database.Database      `mapstructure:"database"`
	Redis         cache.Redis            `mapstructure:"redis"`
	Github        github.Conf            `mapstructure:"github"`
	Orchestrator  orchestrator.Conf      `mapstructure:"orchestrator"`
	Webhook       service.WebhookConf    `mapstructure:"webhook"`
	PipelineRetry monitor.RetryConf      `mapstructure:"pipelineRetry"`
	Escalation    monitor.EscalationConf `mapstructure:"escalation"`
	Recovery      recovery.Conf          `mapstructure:"recovery"`
	Workflow      workflow.Conf          `mapstructure:"workflow"`
	Assignment    assignment.Conf        `mapstructure:"assignment"`
	Notify        notify.Conf            `mapstructure:"notify"`
	Metrics       metrics.Conf           `mapstructure:"metrics"`
	Schedule      ScheduleConf           `mapstructure:"schedule"`
}

// SetDefaults fills every section that was left empty.
func (c *AppConfig) SetDefaults() {
	if c.Log.Output == "" && c.Log.Level == "" {
		c.Log = *logger.SetDefaults()
	}
	c.Http.SetDefaults()
	c.Database.SetDefaults()
	c.Github.SetDefaults()
	c.Orchestrator.SetDefaults()
	c.Webhook.SetDefaults()
	c.PipelineRetry.SetDefaults()
	c.Escalation.SetDefaults()
	c.Recovery.SetDefaults()
	c.Workflow.SetDefaults()
	c.Assignment.SetDefaults()
	c.Notify.SetDefaults()
	c.Metrics.SetDefaults()
	c.Schedule.SetDefaults()
}

var validate = validator.New()

// Validate checks the struct tags and the cross-field rules.
func (c *AppConfig) Validate() error {
	if err := validate.Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	if err := c.Log.Validate(); err != nil {
		return err
	}
	if _, err := notify.CompileRule(c.Notify.Rule); err != nil {
		return fmt.Errorf("invalid notify rule: %w", err)
	}
	return nil
}

var (
	cfg       AppConfig
	mu        sync.RWMutex
	once      sync.Once
	listeners []func(AppConfig)
)

func NewConf(confDir string) (*AppConfig, error) {
	var err error
	once.Do(func() {
		var loaded AppConfig
		loaded, err = LoadConfigFile(confDir)
		if err != nil {
			return
		}
		mu.Lock()
		cfg = loaded
		mu.Unlock()
	})
	if err != nil {
		return nil, err
	}
	mu.RLock()
	defer mu.RUnlock()
	c := cfg
	return &c, nil
}

// GetConfig returns the current configuration, including hot reloaded changes.
func GetConfig() AppConfig {
	mu.RLock()
	defer mu.RUnlock()
	return cfg
}

// OnChange registers fn to receive every successfully reloaded configuration.
func OnChange(fn func(AppConfig)) {
	mu.Lock()
	defer mu.Unlock()
	listeners = append(listeners, fn)
}

// apply publishes a reloaded configuration to GetConfig and the listeners.
func apply(next AppConfig) {
	mu.Lock()
	cfg = next
	subscribers := append([]func(AppConfig){}, listeners...)
	mu.Unlock()
	for _, fn := range subscribers {
		fn(next)
	}
}

func newViper(confDir string) *viper.Viper {
	v := viper.NewWithOptions(viper.KeyDelimiter(keyDelimiter))
	v.SetConfigFile(confDir)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(keyDelimiter, "_"))
	v.AutomaticEnv()
	v.SetDefault("pipelineRetry"+keyDelimiter+"enabled", true)
	v.SetDefault("escalation"+keyDelimiter+"enabled", true)
	v.SetDefault("metrics"+keyDelimiter+"enabled", true)
	_ = v.BindEnv("github"+keyDelimiter+"token", envPrefix+"_GITHUB_TOKEN", "GITHUB_TOKEN")
	_ = v.BindEnv("webhook"+keyDelimiter+"secret", envPrefix+"_WEBHOOK_SECRET", "GITHUB_WEBHOOK_SECRET")
	return v
}

func loadDotenv() {
	if err := godotenv.Load(); err != nil && !errors.Is(err, fs.ErrNotExist) {
		logger.Warnw("failed to load .env file", "error", err)
	}
}

// LoadFromEnv builds the configuration from defaults and the environment only.
func LoadFromEnv() (AppConfig, error) {
	loadDotenv()
	return decode(newViper(""))
}

func decode(v *viper.Viper) (AppConfig, error) {
	var c AppConfig
	if err := v.Unmarshal(&c); err != nil {
		return c, fmt.Errorf("failed to unmarshal configuration file: %w", err)
	}
	c.SetDefaults()
	if err := c.Validate(); err != nil {
		return c, err
	}
	return c, nil
}

// LoadConfigFile reads the config file, applies environment overrides and
// watches the file for changes. A .env file in the working directory is
// loaded first when present.
func LoadConfigFile(confDir string) (AppConfig, error) {
	loadDotenv()
	v := newViper(confDir)
	if err := v.ReadInConfig(); err != nil {
		return AppConfig{}, fmt.Errorf("failed to read configuration file: %w", err)
	}
	loaded, err := decode(v)
	if err != nil {
		return AppConfig{}, err
	}

	v.OnConfigChange(func(e fsnotify.Event) {
		logger.Infow("configuration changed, reloading", "file", e.Name)
		next, err := decode(v)
		if err != nil {
			logger.Errorw("failed to reload configuration, keeping previous values", "error", err, "file", e.Name)
			return
		}
		apply(next)
		logger.Infow("configuration reloaded successfully", "file", e.Name)
	})
	v.WatchConfig()

	logger.Infow("config file loaded", "path", confDir)
	return loaded, nil
}
