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

// Package sqlstore reads a Valkyrie postgres database (or a sqlite snapshot of
// one) through database/sql.
package sqlstore

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
	"github.com/walteh/repoexport/pkg/database"
	"github.com/walteh/repoexport/pkg/store"
	"github.com/walteh/repoexport/pkg/text"
)

const (
	defaultApp      = "hyku"
	defaultPageSize = 500
)

// Options configures a Store
type Options struct {
	Querier database.Querier
	Dialect database.Dialect
	// App is the host part of the global ids Sipity stores
	App string
	// PageSize bounds how many rows are held per keyset page
	PageSize int
}

// 🗄️ Store implements store.Store over orm_resources
type Store struct {
	q        database.Querier
	dialect  database.Dialect
	app      string
	pageSize int
}

var (
	_ store.Store               = (*Store)(nil)
	_ store.AccessControlFinder = (*Store)(nil)
)

// 🏭 New creates a store
func New(opts Options) (*Store, error) {
	if opts.Querier == nil {
		return nil, errors.Errorf("querier is required")
	}
	if opts.Dialect != database.Postgres && opts.Dialect != database.SQLite {
		return nil, errors.Errorf("unsupported dialect %q", opts.Dialect)
	}
	if opts.App == "" {
		opts.App = defaultApp
	}
	if opts.PageSize <= 0 {
		opts.PageSize = defaultPageSize
	}
	return &Store{
		q:        opts.Querier,
		dialect:  opts.Dialect,
		app:      opts.App,
		pageSize: opts.PageSize,
	}, nil
}

func (s *Store) columns() string {
	if s.dialect == database.Postgres {
		return "id::text, internal_resource, metadata::text, created_at, updated_at"
	}
	return "id, internal_resource, metadata, created_at, updated_at"
}

// validID keeps malformed ids away from postgres uuid columns, where they
// would surface as a syntax error instead of a miss
func (s *Store) validID(id string) bool {
	if id == "" {
		return false
	}
	if s.dialect == database.Postgres {
		_, err := uuid.Parse(id)
		return err == nil
	}
	return true
}

// placeholders renders "$start, $start+1, ..." for n values
func placeholders(start, n int) string {
	parts := make([]string, n)
	for i := range parts {
		parts[i] = fmt.Sprintf("$%d", start+i)
	}
	return strings.Join(parts, ", ")
}

func modelArgs(model string) []any {
	aliases := store.Aliases(model)
	args := make([]any, len(aliases))
	for i, a := range aliases {
		args[i] = a
	}
	return args
}

// 🔍 Fetch loads one object
func (s *Store) Fetch(ctx context.Context, model, id string) (*store.Object, error) {
	if !s.validID(id) {
		return nil, errors.Errorf("fetching %q: %w", id, store.ErrNotFound)
	}

	query := "SELECT " + s.columns() + " FROM orm_resources WHERE id = $1"
	args := []any{id}
	if model != "" {
		margs := modelArgs(model)
		query += " AND internal_resource IN (" + placeholders(2, len(margs)) + ")"
		args = append(args, margs...)
	}

	obj, err := scanObject(s.q.QueryRowContext(ctx, s.dialect.Rebind(query), args...))
	if errors.Is(err, sql.ErrNoRows) {
		return nil, errors.Errorf("fetching %s %s: %w", model, id, store.ErrNotFound)
	}
	if err != nil {
		return nil, errors.Errorf("fetching %s %s: %w", model, id, err)
	}
	return obj, nil
}

// 🔄 Each walks every object of a model in id order, one keyset page at a time
func (s *Store) Each(ctx context.Context, model string, fn func(*store.Object) error) error {
	margs := modelArgs(model)
	where := "internal_resource IN (" + placeholders(1, len(margs)) + ")"
	return s.paginate(ctx, where, margs, fn)
}

// 🔄 CollectionMembers walks every object whose member_of_collection_ids
// references the collection
func (s *Store) CollectionMembers(ctx context.Context, collectionID string, fn func(*store.Object) error) error {
	where, args := s.referencing("member_of_collection_ids", collectionID)
	return s.paginate(ctx, where, args, fn)
}

// 🔗 AccessControlFor finds the access control record whose access_to is the resource
func (s *Store) AccessControlFor(ctx context.Context, resourceID string) (*store.Object, error) {
	where, args := s.referencing("access_to", resourceID)
	query := "SELECT " + s.columns() + " FROM orm_resources WHERE " + where +
		fmt.Sprintf(" AND internal_resource = $%d ORDER BY updated_at DESC LIMIT 1", len(args)+1)
	args = append(args, store.ModelAccessControl)

	page, err := s.queryObjects(ctx, query, args)
	if err != nil {
		return nil, errors.Errorf("finding access control of %s: %w", resourceID, err)
	}
	if len(page) == 0 {
		return nil, errors.Errorf("access control of %s: %w", resourceID, store.ErrNotFound)
	}
	return page[0], nil
}

// referencing matches rows whose metadata field lists id, stored either as a
// Valkyrie id object {"id": x} or as a bare string
func (s *Store) referencing(field, id string) (string, []any) {
	if s.dialect == database.Postgres {
		return "(metadata @> $1::jsonb OR metadata @> $2::jsonb)", []any{
			fmt.Sprintf(`{%q:[{"id":%q}]}`, field, id),
			fmt.Sprintf(`{%q:[%q]}`, field, id),
		}
	}
	return fmt.Sprintf(`EXISTS (SELECT 1 FROM json_each(orm_resources.metadata, '$.%s') j
			WHERE (CASE WHEN j.type = 'object' THEN json_extract(j.value, '$.id') ELSE j.value END) = $1)`, field),
		[]any{id}
}

// paginate reads a full page before calling fn, so fn is free to query the
// store on a single pinned connection
func (s *Store) paginate(ctx context.Context, where string, args []any, fn func(*store.Object) error) error {
	cursor := ""
	for {
		query := "SELECT " + s.columns() + " FROM orm_resources WHERE " + where
		qargs := append([]any{}, args...)
		if cursor != "" {
			query += fmt.Sprintf(" AND id > $%d", len(qargs)+1)
			qargs = append(qargs, cursor)
		}
		query += fmt.Sprintf(" ORDER BY id LIMIT %d", s.pageSize)

		page, err := s.queryObjects(ctx, query, qargs)
		if err != nil {
			return err
		}

		for _, obj := range page {
			if err := fn(obj); err != nil {
				return err
			}
		}

		if len(page) < s.pageSize {
			return nil
		}
		cursor = page[len(page)-1].ID
	}
}

func (s *Store) queryObjects(ctx context.Context, query string, args []any) ([]*store.Object, error) {
	rows, err := s.q.QueryContext(ctx, s.dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Errorf("querying objects: %w", err)
	}
	defer rows.Close()

	var out []*store.Object
	for rows.Next() {
		obj, err := scanObject(rows)
		if err != nil {
			return nil, errors.Errorf("scanning object: %w", err)
		}
		out = append(out, obj)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating objects: %w", err)
	}
	return out, nil
}

type scanner interface {
	Scan(dest ...any) error
}

func scanObject(row scanner) (*store.Object, error) {
	var (
		id, model        string
		meta             sql.NullString
		created, updated any
	)
	if err := row.Scan(&id, &model, &meta, &created, &updated); err != nil {
		return nil, err
	}

	obj := &store.Object{
		ID:        id,
		Model:     model,
		CreatedAt: toTime(created),
		UpdatedAt: toTime(updated),
	}

	b := attrs.New()
	b.Set("id", id)
	b.Set("internal_resource", model)
	b.Set("created_at", formatTime(obj.CreatedAt))
	b.Set("updated_at", formatTime(obj.UpdatedAt))

	if meta.Valid && strings.TrimSpace(meta.String) != "" {
		parsed, err := attrs.Parse([]byte(meta.String))
		if err != nil {
			return nil, errors.Errorf("parsing metadata of %s: %w", id, err)
		}
		for _, k := range parsed.Keys() {
			if b.Has(k) {
				continue
			}
			v, _ := parsed.Get(k)
			b.Set(k, v)
		}
	}
	obj.Attrs = b
	return obj, nil
}

// 📋 WorkflowState reads the Sipity state of a work
func (s *Store) WorkflowState(ctx context.Context, model, id string) (string, error) {
	gid := fmt.Sprintf("gid://%s/%s/%s", s.app, model, id)
	query := `SELECT w.name FROM sipity_entities e
		JOIN sipity_workflow_states w ON w.id = e.workflow_state_id
		WHERE e.proxy_for_global_id = $1`

	var name sql.NullString
	err := s.q.QueryRowContext(ctx, s.dialect.Rebind(query), gid).Scan(&name)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && !name.Valid) {
		return "", errors.Errorf("workflow state of %s: %w", gid, store.ErrNotFound)
	}
	if err != nil {
		return "", errors.Errorf("workflow state of %s: %w", gid, err)
	}
	return name.String, nil
}

// 👥 Users visits every user row. fn must not query the store.
func (s *Store) Users(ctx context.Context, fn func(*attrs.Bag) error) error {
	return s.eachRow(ctx, "SELECT * FROM users ORDER BY id", fn)
}

// 🎭 Roles visits every role row. fn must not query the store.
func (s *Store) Roles(ctx context.Context, fn func(*attrs.Bag) error) error {
	return s.eachRow(ctx, "SELECT id, name, resource_type, resource_id, created_at, updated_at FROM roles ORDER BY id", fn)
}

// UserRoles maps each user id to the names of its roles
func (s *Store) UserRoles(ctx context.Context) (map[string][]string, error) {
	query := `SELECT ur.user_id, r.name FROM users_roles ur
		JOIN roles r ON r.id = ur.role_id
		ORDER BY ur.user_id, r.name`

	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return nil, errors.Errorf("querying user roles: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]string)
	for rows.Next() {
		var userID any
		var name sql.NullString
		if err := rows.Scan(&userID, &name); err != nil {
			return nil, errors.Errorf("scanning user role: %w", err)
		}
		if !name.Valid {
			continue
		}
		key := attrs.Scalar(sqlValue(userID))
		out[key] = append(out[key], name.String)
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating user roles: %w", err)
	}
	return out, nil
}

func (s *Store) eachRow(ctx context.Context, query string, fn func(*attrs.Bag) error) error {
	rows, err := s.q.QueryContext(ctx, query)
	if err != nil {
		return errors.Errorf("querying rows: %w", err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return errors.Errorf("reading columns: %w", err)
	}

	count := 0
	for rows.Next() {
		vals := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range vals {
			ptrs[i] = &vals[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return errors.Errorf("scanning row: %w", err)
		}

		b := attrs.New()
		for i, c := range cols {
			b.Set(c, sqlValue(vals[i]))
		}
		if err := fn(b); err != nil {
			return err
		}
		count++
	}
	if err := rows.Err(); err != nil {
		return errors.Errorf("iterating rows: %w", err)
	}

	zerolog.Ctx(ctx).Debug().Int("rows", count).Msg("row scan complete")
	return nil
}

// sqlValue turns driver values into bag values
func sqlValue(v any) any {
	switch t := v.(type) {
	case []byte:
		return string(t)
	case time.Time:
		return formatTime(t)
	case [16]byte:
		return uuid.UUID(t).String()
	default:
		return v
	}
}

func toTime(v any) time.Time {
	switch t := v.(type) {
	case time.Time:
		return t.UTC()
	case string:
		parsed, _ := text.ParseTime(t)
		return parsed
	case []byte:
		parsed, _ := text.ParseTime(string(t))
		return parsed
	default:
		return time.Time{}
	}
}

func formatTime(t time.Time) any {
	if t.IsZero() {
		return nil
	}
	return t.UTC().Format(time.RFC3339Nano)
}
