// Copyright 2025 walteh LLC
//
// Licensed under the Apache License, Version 2.0 (the "License");
// you may not use this file except in compliance with the License.
// You may obtain a copy of the License at
//
//     http://www.apache.org/licenses/LICENSE-2.0
//
// Unless required by applicable law or agreed to in writing, software
// distributed under the License is distributed on an "AS IS" BASIS,
// WITHOUT WARRANTIES OR CONDITIONS OF ANY KIND, either express or implied.
// See the License for the specific language governing permissions and
// limitations under the License.

package walker

import (
	"context"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"
	"gitlab.com/tozd/go/errors"
)

// 👀 SeenSet remembers ids already yielded during one work type scan
type SeenSet interface {
	// Add returns true when id was not seen before
	Add(ctx context.Context, id string) (bool, error)
	// Close releases the set
	Close(ctx context.Context) error
}

// SeenFactory creates the set for one scan
type SeenFactory func(ctx context.Context, runID, workType string) (SeenSet, error)

type memorySeen map[string]struct{}

func (m memorySeen) Add(_ context.Context, id string) (bool, error) {
	if _, ok := m[id]; ok {
		return false, nil
	}
	m[id] = struct{}{}
	return true, nil
}

func (m memorySeen) Close(context.Context) error {
	clear(m)
	return nil
}

// MemorySeen keeps seen ids in process memory
func MemorySeen() SeenFactory {
	return func(context.Context, string, string) (SeenSet, error) {
		return memorySeen{}, nil
	}
}

// DefaultSeenTTL bounds how long an abandoned redis set lingers
const DefaultSeenTTL = 24 * time.Hour

type redisSeen struct {
	client  redis.UniversalClient
	key     string
	ttl     time.Duration
	expires bool
}

// SeenKey is the redis key holding the seen ids of one scan
func SeenKey(runID, workType string) string {
	return fmt.Sprintf("repoexport:%s:%s:seen", runID, workType)
}

// RedisSeen keeps seen ids in a redis set, for scans too large to hold in memory
func RedisSeen(client redis.UniversalClient, ttl time.Duration) SeenFactory {
	if ttl <= 0 {
		ttl = DefaultSeenTTL
	}
	return func(ctx context.Context, runID, workType string) (SeenSet, error) {
		if client == nil {
			return nil, errors.Errorf("redis client is required")
		}
		key := SeenKey(runID, workType)
		if err := client.Del(ctx, key).Err(); err != nil {
			return nil, errors.Errorf("resetting seen set %s: %w", key, err)
		}
		return &redisSeen{client: client, key: key, ttl: ttl}, nil
	}
}

func (r *redisSeen) Add(ctx context.Context, id string) (bool, error) {
	added, err := r.client.SAdd(ctx, r.key, id).Result()
	if err != nil {
		return false, errors.Errorf("adding %s to %s: %w", id, r.key, err)
	}
	if !r.expires {
		if err := r.client.Expire(ctx, r.key, r.ttl).Err(); err != nil {
			return false, errors.Errorf("setting ttl on %s: %w", r.key, err)
		}
		r.expires = true
	}
	return added == 1, nil
}

func (r *redisSeen) Close(ctx context.Context) error {
	if err := r.client.Del(ctx, r.key).Err(); err != nil {
		return errors.Errorf("deleting seen set %s: %w", r.key, err)
	}
	return nil
}
