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
	"iter"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/index"
	"github.com/walteh/repoexport/pkg/run"
)

const (
	DefaultBatchSize = 1000
	defaultBackoff   = 500 * time.Millisecond
)

// Options configures a Walker
type Options struct {
	Index     index.Index
	BatchSize int
	Seen      SeenFactory
	// Retries is how many times a failed page query is retried before the
	// scan gives up on the work type
	Retries uint64
	// RetryInterval is the first backoff interval
	RetryInterval time.Duration
}

// 🚶 Walker pages through the index one work type at a time
type Walker struct {
	index         index.Index
	batchSize     int
	seen          SeenFactory
	retries       uint64
	retryInterval time.Duration
}

// 🏭 New creates a walker
func New(opts Options) (*Walker, error) {
	if opts.Index == nil {
		return nil, errors.Errorf("index is required")
	}
	if opts.BatchSize < 0 {
		return nil, errors.Errorf("batch size must not be negative, got %d", opts.BatchSize)
	}
	if opts.BatchSize == 0 {
		opts.BatchSize = DefaultBatchSize
	}
	if opts.Seen == nil {
		opts.Seen = MemorySeen()
	}
	if opts.RetryInterval <= 0 {
		opts.RetryInterval = defaultBackoff
	}
	return &Walker{
		index:         opts.Index,
		batchSize:     opts.BatchSize,
		seen:          opts.Seen,
		retries:       opts.Retries,
		retryInterval: opts.RetryInterval,
	}, nil
}

// BatchSize is the page size in use
func (w *Walker) BatchSize() int {
	return w.batchSize
}

// 🔄 Scan yields de-duplicated id batches for one work type.
//
// Pages are requested id-only, sorted by ascending id, with the offset
// advancing by the batch size. The scan ends on the first empty page. A query
// that still fails after retries is yielded as an error and ends the scan.
// Ids already yielded are dropped and recorded on rc as duplicates.
func (w *Walker) Scan(ctx context.Context, rc *run.Context, filter index.Filter) iter.Seq2[[]string, error] {
	return func(yield func([]string, error) bool) {
		logger := zerolog.Ctx(ctx).With().Str("work_type", filter.Model).Logger()

		seen, err := w.seen(ctx, rc.RunID.String(), filter.Model)
		if err != nil {
			yield(nil, errors.Errorf("creating seen set: %w", err))
			return
		}
		defer func() {
			if err := seen.Close(ctx); err != nil {
				logger.Warn().Err(err).Msg("releasing seen set")
			}
		}()

		for start := 0; ; start += w.batchSize {
			docs, err := w.page(ctx, index.Query{
				Filter: filter,
				Rows:   w.batchSize,
				Start:  start,
				Fields: []string{index.FieldID},
				Sort:   index.SortIDAsc,
			})
			if err != nil {
				yield(nil, errors.Errorf("querying %s at offset %d: %w", filter.Model, start, err))
				return
			}
			if len(docs) == 0 {
				return
			}

			rc.AddScanned(filter.Model, len(docs))

			batch := make([]string, 0, len(docs))
			for _, doc := range docs {
				id := doc.ID()
				if id == "" {
					continue
				}
				added, err := seen.Add(ctx, id)
				if err != nil {
					yield(nil, errors.Errorf("tracking seen ids: %w", err))
					return
				}
				if !added {
					logger.Warn().Str("id", id).Int("offset", start).Msg("suppressed duplicate id from index")
					rc.RecordDuplicate(filter.Model, id)
					continue
				}
				batch = append(batch, id)
			}

			logger.Debug().Int("offset", start).Int("returned", len(docs)).Int("yielded", len(batch)).Msg("scanned page")

			if len(batch) == 0 {
				continue
			}
			if !yield(batch, nil) {
				return
			}
		}
	}
}

func (w *Walker) page(ctx context.Context, q index.Query) ([]index.Doc, error) {
	if w.retries == 0 {
		return w.index.Query(ctx, q)
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = w.retryInterval
	policy := backoff.WithContext(backoff.WithMaxRetries(b, w.retries), ctx)

	var docs []index.Doc
	err := backoff.RetryNotify(func() error {
		var err error
		docs, err = w.index.Query(ctx, q)
		return err
	}, policy, func(err error, wait time.Duration) {
		zerolog.Ctx(ctx).Debug().Err(err).Dur("wait", wait).Int("offset", q.Start).Msg("retrying index page")
	})
	return docs, err
}
