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

package commands

import (
	"context"
	"database/sql"
	"strings"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/cmd/repoexport/opts"
	"github.com/walteh/repoexport/pkg/config"
	"github.com/walteh/repoexport/pkg/database"
	"github.com/walteh/repoexport/pkg/export"
	"github.com/walteh/repoexport/pkg/index"
	"github.com/walteh/repoexport/pkg/index/solr"
	"github.com/walteh/repoexport/pkg/index/sqlindex"
	"github.com/walteh/repoexport/pkg/metrics"
	"github.com/walteh/repoexport/pkg/tenant"
	"github.com/walteh/repoexport/pkg/walker"
)

// pageRetries is how often a failed index page is retried
const pageRetries = 3

// TenantPlaceholder in index.core is replaced by the tenant schema name
const TenantPlaceholder = "{tenant}"

// 🧰 Env is everything a command needs, built from the config file
type Env struct {
	Config  *config.Config
	DB      *sql.DB
	Runner  *export.Runner
	Metrics *metrics.Metrics

	redis *redis.Client
}

// 🏭 Open loads the config, applies flag overrides and connects
func Open(ctx context.Context, o *opts.RootOpts, batchSize int) (*Env, error) {
	cfg, err := config.Load(ctx, o.ConfigFile)
	if err != nil {
		return nil, err
	}
	if o.OutputDir != "" {
		cfg.Output.Dir = o.OutputDir
	}
	if batchSize > 0 {
		cfg.BatchSize = batchSize
	}

	db, err := database.Open(ctx, cfg.Dialect(), cfg.Database.DSN)
	if err != nil {
		return nil, err
	}
	env := &Env{Config: cfg, DB: db, Metrics: metrics.New()}

	seen := walker.MemorySeen()
	if cfg.Dedup.Kind == config.DedupRedis {
		ropts, err := redis.ParseURL(cfg.Dedup.RedisURL)
		if err != nil {
			env.Close()
			return nil, errors.Errorf("parsing dedup.redis_url: %w", err)
		}
		env.redis = redis.NewClient(ropts)
		if err := env.redis.Ping(ctx).Err(); err != nil {
			env.Close()
			return nil, errors.Errorf("connecting to redis: %w", err)
		}
		seen = walker.RedisSeen(env.redis, 0)
	}

	env.Runner, err = export.NewRunner(export.RunnerOptions{
		Directory:      tenant.NewDirectory(db, cfg.Dialect()),
		Activator:      tenant.NewSchemaActivator(db, cfg.Dialect(), cfg.Database.DefaultSchema),
		Dialect:        cfg.Dialect(),
		Index:          IndexFactory(cfg),
		Seen:           seen,
		BatchSize:      cfg.BatchSize,
		Retries:        pageRetries,
		RequestTimeout: cfg.Timeout(),
		OutputDir:      cfg.Output.Dir,
		Compression:    cfg.Compression(),
		Clock:          time.Now,
		Observer:       env.Metrics,
	})
	if err != nil {
		env.Close()
		return nil, err
	}

	zerolog.Ctx(ctx).Debug().
		Str("config", cfg.Location()).
		Str("dedup", cfg.Dedup.Kind).
		Int("batch_size", cfg.BatchSize).
		Msg("environment ready")
	return env, nil
}

// IndexFactory opens the configured index for each tenant
func IndexFactory(cfg *config.Config) export.IndexFactory {
	if cfg.Index.Kind == config.IndexSQL {
		dialect := cfg.Dialect()
		return func(ctx context.Context, _ tenant.Account, q database.Querier) (index.Index, error) {
			return sqlindex.New(q, dialect)
		}
	}
	return func(ctx context.Context, account tenant.Account, _ database.Querier) (index.Index, error) {
		return solr.New(solr.Options{
			URL:     cfg.Index.URL,
			Core:    strings.ReplaceAll(cfg.Index.Core, TenantPlaceholder, account.Tenant),
			Timeout: cfg.IndexTimeout(),
		})
	}
}

// Close releases the connections
func (e *Env) Close() error {
	var errs []error
	if e.redis != nil {
		errs = append(errs, e.redis.Close())
	}
	if e.DB != nil {
		errs = append(errs, e.DB.Close())
	}
	return errors.Join(errs...)
}
