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

package cache

import (
	"context"
	"fmt"
	"time"

	"github.com/arcentrix/storyflow/pkg/logger"
	"github.com/google/wire"
	"github.com/redis/go-redis/v9"
)

var ProviderSet = wire.NewSet(ProvideRedis)

// Redis configures the optional redis connection. An empty Addr disables redis.
type Redis struct {
	Addr         string `mapstructure:"addr"`
	Username     string `mapstructure:"username"`
	Password     string `mapstructure:"password"`
	DB           int    `mapstructure:"db" validate:"gte=0"`
	PoolSize     int    `mapstructure:"poolSize" validate:"gte=0"`
	DialTimeout  int    `mapstructure:"dialTimeout" validate:"gte=0"`
	ReadTimeout  int    `mapstructure:"readTimeout" validate:"gte=0"`
	WriteTimeout int    `mapstructure:"writeTimeout" validate:"gte=0"`
}

func (r *Redis) SetDefaults() {
	if r.PoolSize == 0 {
		r.PoolSize = 10
	}
	if r.DialTimeout == 0 {
		r.DialTimeout = 5
	}
	if r.ReadTimeout == 0 {
		r.ReadTimeout = 3
	}
	if r.WriteTimeout == 0 {
		r.WriteTimeout = 3
	}
}

func (r Redis) Enabled() bool {
	return r.Addr != ""
}

func (r Redis) options() *redis.Options {
	return &redis.Options{
		Addr:         r.Addr,
		Username:     r.Username,
		Password:     r.Password,
		DB:           r.DB,
		PoolSize:     r.PoolSize,
		DialTimeout:  time.Duration(r.DialTimeout) * time.Second,
		ReadTimeout:  time.Duration(r.ReadTimeout) * time.Second,
		WriteTimeout: time.Duration(r.WriteTimeout) * time.Second,
	}
}

// ProvideRedis connects to redis and pings it once. It returns a nil client
// when redis is not configured.
func ProvideRedis(conf Redis) (*redis.Client, func(), error) {
	if !conf.Enabled() {
		logger.Infow("redis not configured, using in-process state")
		return nil, func() {}, nil
	}
	conf.SetDefaults()
	client := redis.NewClient(conf.options())

	ctx, cancel := context.WithTimeout(context.Background(), time.Duration(conf.DialTimeout)*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		_ = client.Close()
		return nil, nil, fmt.Errorf("ping redis %s: %w", conf.Addr, err)
	}
	logger.Infow("redis connected", "addr", conf.Addr, "db", conf.DB)

	cleanup := func() {
		if err := client.Close(); err != nil {
			logger.Errorw("failed to close redis client", "error", err)
		}
	}
	return client, cleanup, nil
}
