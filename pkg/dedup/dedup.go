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

// Package dedup remembers webhook delivery ids for a limited time.
package dedup

import (
	"context"
	"sync"
	"time"

	"github.com/redis/go-redis/v9"
)

const (
	DefaultTTL = 24 * time.Hour
	keyPrefix  = "storyflow:delivery:"
)

// Store records delivery ids. Claim reports true only for the first claim
// of an id within the TTL.
type Store interface {
	Claim(ctx context.Context, id string) (bool, error)
}

// NewStore returns a redis backed store when client is set, else an in-memory
// one. A non-positive ttl means DefaultTTL.
func NewStore(client *redis.Client, ttl time.Duration) Store {
	if ttl <= 0 {
		ttl = DefaultTTL
	}
	if client != nil {
		return NewRedisStore(client, ttl)
	}
	return NewMemoryStore(ttl)
}

type RedisStore struct {
	client *redis.Client
	ttl    time.Duration
}

func NewRedisStore(client *redis.Client, ttl time.Duration) *RedisStore {
	return &RedisStore{client: client, ttl: ttl}
}

func (s *RedisStore) Claim(ctx context.Context, id string) (bool, error) {
	return s.client.SetNX(ctx, keyPrefix+id, time.Now().Unix(), s.ttl).Result()
}

type MemoryStore struct {
	mu   sync.Mutex
	ttl  time.Duration
	seen map[string]time.Time
	now  func() time.Time
}

func NewMemoryStore(ttl time.Duration) *MemoryStore {
	return &MemoryStore{ttl: ttl, seen: make(map[string]time.Time), now: time.Now}
}

func (s *MemoryStore) Claim(_ context.Context, id string) (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	now := s.now()
	for k, expires := range s.seen {
		if !now.Before(expires) {
			delete(s.seen, k)
		}
	}
	if _, ok := s.seen[id]; ok {
		return false, nil
	}
	s.seen[id] = now.Add(s.ttl)
	return true, nil
}
