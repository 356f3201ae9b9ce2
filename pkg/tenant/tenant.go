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

// Package tenant finds Hyku accounts and switches the database session into
// a tenant's schema for the duration of an export.
package tenant

import (
	"context"
	"database/sql"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/database"
)

// ErrUnknownTenant is returned when no account has the given cname
var ErrUnknownTenant = errors.New("unknown tenant")

// 🏢 Account is one row of the shared accounts table
type Account struct {
	Name   string
	CName  string
	Tenant string
}

// 📒 Directory reads accounts from the shared schema
type Directory struct {
	q       database.Querier
	dialect database.Dialect
}

// 🏭 NewDirectory creates a directory over the shared database
func NewDirectory(q database.Querier, dialect database.Dialect) *Directory {
	return &Directory{q: q, dialect: dialect}
}

// 🔍 Lookup finds the account for a cname
func (d *Directory) Lookup(ctx context.Context, cname string) (Account, error) {
	cname = strings.TrimSpace(cname)
	if cname == "" {
		return Account{}, errors.Errorf("blank cname: %w", ErrUnknownTenant)
	}

	table := "accounts"
	if d.dialect == database.Postgres {
		table = "public.accounts"
	}

	var (
		a            Account
		name, tenant sql.NullString
	)
	err := d.q.QueryRowContext(ctx,
		d.dialect.Rebind(`SELECT name, cname, tenant FROM `+table+` WHERE cname = $1 LIMIT 1`), cname,
	).Scan(&name, &a.CName, &tenant)
	if errors.Is(err, sql.ErrNoRows) {
		return Account{}, errors.Errorf("%q: %w", cname, ErrUnknownTenant)
	}
	if err != nil {
		return Account{}, errors.Errorf("looking up tenant %q: %w", cname, err)
	}

	a.Name = name.String
	a.Tenant = tenant.String
	if a.Tenant == "" {
		return Account{}, errors.Errorf("account %q has no tenant schema: %w", cname, ErrUnknownTenant)
	}
	return a, nil
}

// 🔀 Activator switches a database session into a tenant
type Activator interface {
	// Activate returns the querier every tenant read must go through
	Activate(ctx context.Context, account Account) (database.Querier, error)
	// Reset returns the session to the default schema and releases it
	Reset(ctx context.Context) error
}

// 🔀 SchemaActivator implements Activator over a database/sql pool. On
// postgres it pins one connection and sets its search_path; sqlite
// snapshots hold a single tenant, so activation only records the account.
type SchemaActivator struct {
	db            *sql.DB
	dialect       database.Dialect
	defaultSchema string

	mu     sync.Mutex
	conn   *sql.Conn
	active *Account
}

// 🏭 NewSchemaActivator creates an activator. defaultSchema is what Reset
// restores, "public" when blank.
func NewSchemaActivator(db *sql.DB, dialect database.Dialect, defaultSchema string) *SchemaActivator {
	if defaultSchema == "" {
		defaultSchema = "public"
	}
	return &SchemaActivator{db: db, dialect: dialect, defaultSchema: defaultSchema}
}

// Activate implements Activator
func (s *SchemaActivator) Activate(ctx context.Context, account Account) (database.Querier, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.active != nil {
		return nil, errors.Errorf("tenant %q is still active", s.active.CName)
	}

	if s.dialect != database.Postgres {
		s.active = &account
		return s.db, nil
	}

	conn, err := s.db.Conn(ctx)
	if err != nil {
		return nil, errors.Errorf("pinning connection: %w", err)
	}

	if _, err := conn.ExecContext(ctx, searchPath(account.Tenant)); err != nil {
		conn.Close()
		return nil, errors.Errorf("switching to tenant %q: %w", account.Tenant, err)
	}

	s.conn = conn
	s.active = &account
	zerolog.Ctx(ctx).Debug().Str("tenant", account.Tenant).Msg("tenant schema active")
	return conn, nil
}

// Reset implements Activator
func (s *SchemaActivator) Reset(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	s.active = nil
	if s.conn == nil {
		return nil
	}

	conn := s.conn
	s.conn = nil

	// the connection goes back to the pool, so it must not keep the tenant path
	_, err := conn.ExecContext(context.WithoutCancel(ctx), searchPath(s.defaultSchema))
	if err != nil {
		err = errors.Errorf("resetting search path: %w", err)
	}
	if cerr := conn.Close(); cerr != nil {
		err = errors.Join(err, errors.Errorf("releasing connection: %w", cerr))
	}
	return err
}

func searchPath(schema string) string {
	path := pgx.Identifier{schema}.Sanitize()
	if schema != "public" {
		path += ", public"
	}
	return "SET search_path TO " + path
}

// 🎯 Within runs fn with the account active and always resets afterwards.
// A reset failure is joined into the returned error.
func Within(ctx context.Context, act Activator, account Account, fn func(ctx context.Context, q database.Querier) error) (err error) {
	q, err := act.Activate(ctx, account)
	if err != nil {
		if rerr := act.Reset(ctx); rerr != nil {
			err = errors.Join(err, rerr)
		}
		return err
	}

	defer func() {
		if rerr := act.Reset(ctx); rerr != nil {
			zerolog.Ctx(ctx).Error().Err(rerr).Str("tenant", account.Tenant).Msg("resetting tenant")
			err = errors.Join(err, rerr)
		}
	}()

	return fn(ctx, q)
}
