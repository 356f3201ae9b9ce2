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

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
	"github.com/walteh/repoexport/pkg/index"
	"github.com/walteh/repoexport/pkg/jsonstream"
	"github.com/walteh/repoexport/pkg/record"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/store"
	"github.com/walteh/repoexport/pkg/walker"
	"github.com/walteh/repoexport/pkg/worktype"
)

// PublicVisibility is the only visibility a public-only run keeps
const PublicVisibility = "open"

// WorksSuffix names the works output file
const WorksSuffix = "works_data"

// 🗂️ Category is one of the simple, array shaped exports
type Category string

const (
	CategoryUsers          Category = "users"
	CategoryRoles          Category = "roles"
	CategoryCollections    Category = "collections"
	CategoryAdminSets      Category = "admin_sets"
	CategoryAccessControls Category = "access_controls"
)

// Categories lists every category in the order "all" runs them
var Categories = []Category{CategoryUsers, CategoryRoles, CategoryCollections, CategoryAdminSets, CategoryAccessControls}

// ParseCategory accepts a category name, with dashes or underscores
func ParseCategory(s string) (Category, error) {
	for _, c := range Categories {
		if string(c) == s || c.Command() == s {
			return c, nil
		}
	}
	return "", errors.Errorf("unknown export category %q", s)
}

// Command is the CLI spelling
func (c Category) Command() string {
	switch c {
	case CategoryAdminSets:
		return "admin-sets"
	case CategoryAccessControls:
		return "access-controls"
	default:
		return string(c)
	}
}

// FileSuffix is what follows "<cname>_" in the output file name
func (c Category) FileSuffix() string {
	switch c {
	case CategoryUsers, CategoryCollections:
		return string(c) + "_data"
	default:
		return string(c)
	}
}

// user columns that never leave the database
var userSecrets = []string{"encrypted_password", "reset_password_token", "remember_created_at"}

// Options configures an Exporter
type Options struct {
	Store   store.Store
	Walker  *walker.Walker
	Builder *record.Builder
}

// 📤 Exporter writes one tenant's records. It is used from a single
// goroutine and never shares its writers.
type Exporter struct {
	store   store.Store
	walker  *walker.Walker
	builder *record.Builder
}

// 🏭 New creates an exporter
func New(opts Options) (*Exporter, error) {
	if opts.Store == nil {
		return nil, errors.New("exporter needs a store")
	}
	if opts.Walker == nil {
		return nil, errors.New("exporter needs a walker")
	}
	if opts.Builder == nil {
		b, err := record.New(record.Options{Store: opts.Store})
		if err != nil {
			return nil, err
		}
		opts.Builder = b
	}
	return &Exporter{store: opts.Store, walker: opts.Walker, builder: opts.Builder}, nil
}

// 📚 ExportWorks writes {"<work type>": [records...], ...} to w.
//
// Per id failures are recorded on rc and the id is skipped. The returned error
// is only set when the output itself could not be written.
func (e *Exporter) ExportWorks(ctx context.Context, rc *run.Context, types []worktype.Descriptor, w io.Writer) error {
	out := jsonstream.NewObjectWriter(w)
	if err := out.Open(); err != nil {
		return err
	}

	for _, d := range types {
		if err := ctx.Err(); err != nil {
			return errors.Errorf("export interrupted: %w", err)
		}
		if err := e.exportType(ctx, rc, d, out); err != nil {
			return err
		}
	}

	return out.Close()
}

func (e *Exporter) exportType(ctx context.Context, rc *run.Context, d worktype.Descriptor, out *jsonstream.ObjectWriter) error {
	logger := zerolog.Ctx(ctx).With().Str("work_type", d.Name).Logger()
	ctx = logger.WithContext(ctx)

	rc.Touch(d.Name)
	if err := out.BeginKey(d.Name); err != nil {
		return err
	}

	filter := index.Filter{Model: d.Model}
	if rc.PublicOnly {
		filter.Visibility = PublicVisibility
	}

	for batch, err := range e.walker.Scan(ctx, rc, filter) {
		if err != nil {
			logger.Error().Err(err).Msg("index scan failed, work type cut short")
			rc.Fail(run.KindLoad, d.Name, "", "scan", err)
			break
		}

		for _, id := range batch {
			if err := e.exportWork(ctx, rc, d, id, out); err != nil {
				return err
			}
		}
	}

	if err := out.EndKey(); err != nil {
		return err
	}

	stats := rc.Section(d.Name)
	logger.Info().
		Int("scanned", stats.Scanned).
		Int("exported", stats.Exported).
		Int("duplicates", stats.Duplicates).
		Msg("work type exported")
	return nil
}

func (e *Exporter) exportWork(ctx context.Context, rc *run.Context, d worktype.Descriptor, id string, out *jsonstream.ObjectWriter) error {
	work, err := e.store.Fetch(ctx, d.Model, id)
	if err != nil {
		zerolog.Ctx(ctx).Warn().Err(err).Str("id", id).Str("stage", "fetch").Msg("skipping work")
		rc.Fail(run.KindLoad, d.Name, id, "fetch", err)
		return nil
	}

	access := e.builder.ResolveAccess(ctx, rc, d.Name, work)
	if rc.PublicOnly && access.Visibility != PublicVisibility {
		rc.AddSkipped(d.Name)
		return nil
	}

	rec := e.builder.BuildWithAccess(ctx, rc, d.Name, work, access)
	if err := out.WriteRecord(rec); err != nil {
		if errors.Is(err, jsonstream.ErrEncode) {
			rc.Fail(run.KindLoad, d.Name, id, "encode", err)
			return nil
		}
		return errors.Errorf("writing %s %s: %w", d.Name, id, err)
	}
	rc.AddExported(d.Name)
	return nil
}

// 🗃️ ExportCategory writes one simple category as a JSON array to w
func (e *Exporter) ExportCategory(ctx context.Context, rc *run.Context, c Category, w io.Writer) error {
	section := string(c)
	rc.Touch(section)

	out := jsonstream.NewArrayWriter(w)
	if err := out.Open(); err != nil {
		return err
	}

	var writeErr error
	emit := func(id string, b *attrs.Bag) error {
		rc.AddScanned(section, 1)
		if err := out.WriteRecord(b); err != nil {
			if errors.Is(err, jsonstream.ErrEncode) {
				rc.Fail(run.KindLoad, section, id, "encode", err)
				return nil
			}
			writeErr = err
			return err
		}
		rc.AddExported(section)
		return nil
	}

	var err error
	switch c {
	case CategoryUsers:
		err = e.users(ctx, emit)
	case CategoryRoles:
		err = e.store.Roles(ctx, func(b *attrs.Bag) error { return emit(b.String("id"), b) })
	case CategoryCollections:
		err = e.collections(ctx, rc, emit)
	case CategoryAdminSets:
		err = e.objects(ctx, store.ModelAdminSet, emit)
	case CategoryAccessControls:
		err = e.objects(ctx, store.ModelAccessControl, emit)
	default:
		err = errors.Errorf("unknown export category %q", c)
	}

	if writeErr != nil {
		return writeErr
	}
	if err != nil {
		zerolog.Ctx(ctx).Error().Err(err).Str("category", section).Msg("category export cut short")
		rc.Fail(run.KindLoad, section, "", "scan", err)
	}

	return out.Close()
}

func (e *Exporter) objects(ctx context.Context, model string, emit func(string, *attrs.Bag) error) error {
	return e.store.Each(ctx, model, func(o *store.Object) error {
		return emit(o.ID, o.Attrs)
	})
}

func (e *Exporter) users(ctx context.Context, emit func(string, *attrs.Bag) error) error {
	roles, err := e.store.UserRoles(ctx)
	if err != nil {
		return errors.Errorf("loading user roles: %w", err)
	}

	return e.store.Users(ctx, func(b *attrs.Bag) error {
		id := b.String("id")
		for _, k := range userSecrets {
			b.Delete(k)
		}

		names := make([]any, 0, len(roles[id]))
		for _, r := range roles[id] {
			names = append(names, r)
		}
		b.Set("roles", names)
		return emit(id, b)
	})
}

func (e *Exporter) collections(ctx context.Context, rc *run.Context, emit func(string, *attrs.Bag) error) error {
	return e.store.Each(ctx, store.ModelCollection, func(col *store.Object) error {
		out := col.Attrs.Clone()

		works := []any{}
		err := e.store.CollectionMembers(ctx, col.ID, func(m *store.Object) error {
			w := m.Attrs.Clone()
			if title := m.Attrs.String("title"); title != "" {
				w.Set("work_title", title)
			} else {
				w.Set("work_title", nil)
			}
			w.Set("work_type", m.Model)
			works = append(works, w)
			return nil
		})
		if err != nil {
			zerolog.Ctx(ctx).Warn().Err(err).Str("id", col.ID).Str("stage", "members").Msg("collection members incomplete")
			rc.Fail(run.KindEnrichment, string(CategoryCollections), col.ID, "members", err)
		}

		out.Set("works", works)
		return emit(col.ID, out)
	})
}
