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

package export

import (
	"context"
	"io"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/database"
	"github.com/walteh/repoexport/pkg/index"
	"github.com/walteh/repoexport/pkg/jsonstream"
	"github.com/walteh/repoexport/pkg/policy"
	"github.com/walteh/repoexport/pkg/record"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/store"
	"github.com/walteh/repoexport/pkg/store/sqlstore"
	"github.com/walteh/repoexport/pkg/tenant"
	"github.com/walteh/repoexport/pkg/text"
	"github.com/walteh/repoexport/pkg/walker"
	"github.com/walteh/repoexport/pkg/worktype"
)

// IndexFactory opens the index for a tenant session. The querier is the
// tenant's pinned session, for indexes that read the database.
type IndexFactory func(ctx context.Context, account tenant.Account, q database.Querier) (index.Index, error)

// RunnerOptions wires a Runner
type RunnerOptions struct {
	Directory *tenant.Directory
	Activator tenant.Activator
	Dialect   database.Dialect
	Index     IndexFactory
	Seen      walker.SeenFactory

	BatchSize      int
	Retries        uint64
	RequestTimeout time.Duration

	OutputDir   string
	Compression jsonstream.Compression

	Clock    func() time.Time
	Observer run.Observer
}

// 📋 Job says what to export for one tenant
type Job struct {
	PublicOnly bool
	Works      bool
	Types      []worktype.Descriptor
	// Unmatched are requested work type patterns that matched nothing
	Unmatched  []string
	Categories []Category
}

// 📦 Result is what one tenant run produced. It is returned even when the
// run was aborted.
type Result struct {
	Run     *run.Context
	Account tenant.Account
	Outputs []string
	// Kinds holds, for each output, "works" or the category it holds
	Kinds []string
}

// 🧰 Session is everything bound to an active tenant
type Session struct {
	Account  tenant.Account
	Store    store.Store
	Builder  *record.Builder
	Querier  database.Querier
	Exporter *Exporter
}

// 🏃 Runner drives complete tenant exports
type Runner struct {
	opts RunnerOptions
}

// 🏭 NewRunner validates the wiring
func NewRunner(opts RunnerOptions) (*Runner, error) {
	if opts.Directory == nil {
		return nil, errors.New("runner needs a tenant directory")
	}
	if opts.Activator == nil {
		return nil, errors.New("runner needs a tenant activator")
	}
	if opts.Index == nil {
		return nil, errors.New("runner needs an index")
	}
	if opts.Compression == "" {
		opts.Compression = jsonstream.CompressionNone
	}
	if opts.OutputDir == "" {
		opts.OutputDir = "."
	}
	return &Runner{opts: opts}, nil
}

// NewContext starts the run state for a tenant
func (r *Runner) NewContext(cname string, publicOnly bool) *run.Context {
	return run.New(cname, publicOnly, r.opts.Observer)
}

// 🎯 Within looks the tenant up, activates it and hands fn a session. The
// tenant is always reset afterwards. Lookup failures are configuration
// failures, everything else that escapes fn is fatal.
func (r *Runner) Within(ctx context.Context, rc *run.Context, cname string, fn func(ctx context.Context, s *Session) error) (tenant.Account, error) {
	account, err := r.opts.Directory.Lookup(ctx, cname)
	if err != nil {
		rc.Fail(run.KindConfiguration, "", cname, "tenant", err)
		return tenant.Account{}, err
	}

	logger := zerolog.Ctx(ctx).With().
		Str("tenant", account.CName).
		Str("run_id", rc.RunID.String()).
		Logger()
	ctx = logger.WithContext(ctx)

	err = tenant.Within(ctx, r.opts.Activator, account, func(ctx context.Context, q database.Querier) error {
		s, err := r.session(ctx, account, q)
		if err != nil {
			return err
		}
		return fn(ctx, s)
	})
	if err != nil {
		logger.Error().Err(err).Msg("tenant export aborted")
		rc.Fail(run.KindFatal, "", account.CName, "tenant", err)
	}
	return account, err
}

func (r *Runner) session(ctx context.Context, account tenant.Account, q database.Querier) (*Session, error) {
	raw, err := sqlstore.New(sqlstore.Options{Querier: q, Dialect: r.opts.Dialect})
	if err != nil {
		return nil, errors.Errorf("opening object store: %w", err)
	}
	st := store.WithTimeout(raw, r.opts.RequestTimeout)

	idx, err := r.opts.Index(ctx, account, q)
	if err != nil {
		return nil, errors.Errorf("opening index: %w", err)
	}

	w, err := walker.New(walker.Options{Index: idx, BatchSize: r.opts.BatchSize, Seen: r.opts.Seen, Retries: r.opts.Retries})
	if err != nil {
		return nil, err
	}

	b, err := record.New(record.Options{Store: st, Policies: policy.NewResolver(r.opts.Clock)})
	if err != nil {
		return nil, err
	}

	ex, err := New(Options{Store: st, Walker: w, Builder: b})
	if err != nil {
		return nil, err
	}

	return &Session{Account: account, Store: st, Builder: b, Querier: q, Exporter: ex}, nil
}

// 🚀 Run exports everything the job asks for. The result always carries the
// run state, so a summary can be produced whatever happened.
func (r *Runner) Run(ctx context.Context, cname string, job Job) (*Result, error) {
	rc := r.NewContext(cname, job.PublicOnly)
	res := &Result{Run: rc}

	for _, p := range job.Unmatched {
		rc.Fail(run.KindConfiguration, "", p, "work_types", errors.Errorf("%q: %w", p, worktype.ErrUnknownWorkType))
	}

	account, err := r.Within(ctx, rc, cname, func(ctx context.Context, s *Session) error {
		if job.Works {
			path := text.OutputPath(r.opts.OutputDir, s.Account.CName, WorksSuffix)
			err := r.write(ctx, res, path, "works", func(w io.Writer) error {
				return s.Exporter.ExportWorks(ctx, rc, job.Types, w)
			})
			if err != nil {
				return err
			}
		}

		for _, c := range job.Categories {
			path := text.OutputPath(r.opts.OutputDir, s.Account.CName, c.FileSuffix())
			err := r.write(ctx, res, path, string(c), func(w io.Writer) error {
				return s.Exporter.ExportCategory(ctx, rc, c, w)
			})
			if err != nil {
				return err
			}
		}
		return nil
	})
	res.Account = account
	return res, err
}

// write fills one sink and commits it. The partial file is removed on any
// failure.
func (r *Runner) write(ctx context.Context, res *Result, path, kind string, fn func(io.Writer) error) error {
	sink, err := jsonstream.CreateSink(path, r.opts.Compression)
	if err != nil {
		return errors.Errorf("opening output: %w", err)
	}
	defer sink.Close()

	if err := fn(sink); err != nil {
		return errors.Errorf("writing %s: %w", sink.Path(), err)
	}
	if err := sink.Commit(); err != nil {
		return err
	}

	zerolog.Ctx(ctx).Info().Str("path", sink.Path()).Str("kind", kind).Msg("output written")
	res.Outputs = append(res.Outputs, sink.Path())
	res.Kinds = append(res.Kinds, kind)
	return nil
}
