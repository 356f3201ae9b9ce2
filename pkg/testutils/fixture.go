// Package testutils builds sqlite snapshots shaped like a Hyku tenant database
// and hand written mocks for the collaborators the exporter talks to.
package testutils

import (
	"context"
	"database/sql"
	"fmt"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/walteh/repoexport/pkg/database"
)

// Schema is the subset of the Hyku schema the exporter reads
var Schema = []string{
	`CREATE TABLE orm_resources (
		id TEXT PRIMARY KEY,
		internal_resource TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at DATETIME,
		updated_at DATETIME,
		lock_version INTEGER
	)`,
	`CREATE INDEX index_orm_resources_on_internal_resource ON orm_resources (internal_resource)`,
	`CREATE TABLE sipity_workflow_states (
		id INTEGER PRIMARY KEY,
		workflow_id INTEGER,
		name TEXT NOT NULL
	)`,
	`CREATE TABLE sipity_entities (
		id INTEGER PRIMARY KEY,
		proxy_for_global_id TEXT NOT NULL,
		workflow_id INTEGER,
		workflow_state_id INTEGER
	)`,
	`CREATE TABLE users (
		id INTEGER PRIMARY KEY,
		email TEXT NOT NULL,
		display_name TEXT,
		encrypted_password TEXT,
		reset_password_token TEXT,
		remember_created_at DATETIME,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE roles (
		id INTEGER PRIMARY KEY,
		name TEXT,
		resource_type TEXT,
		resource_id INTEGER,
		created_at DATETIME,
		updated_at DATETIME
	)`,
	`CREATE TABLE users_roles (
		user_id INTEGER,
		role_id INTEGER
	)`,
	`CREATE TABLE accounts (
		id INTEGER PRIMARY KEY,
		name TEXT,
		cname TEXT,
		tenant TEXT
	)`,
}

// Stamp is the created_at/updated_at every seeded row gets
var Stamp = time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC)

// 🧪 Fixture is a seeded sqlite database living in a test temp dir
type Fixture struct {
	t    testing.TB
	DB   *sql.DB
	Path string
	next int
}

// 🏭 NewFixture opens a fresh database and creates the schema
func NewFixture(t testing.TB) *Fixture {
	t.Helper()

	path := filepath.Join(t.TempDir(), "hyku.db")
	db, err := database.Open(context.Background(), database.SQLite, path)
	require.NoError(t, err, "opening fixture database")
	t.Cleanup(func() { db.Close() })

	for _, stmt := range Schema {
		_, err := db.Exec(stmt)
		require.NoError(t, err, "creating schema")
	}

	return &Fixture{t: t, DB: db, Path: path}
}

func (f *Fixture) exec(query string, args ...any) {
	f.t.Helper()
	_, err := f.DB.Exec(database.SQLite.Rebind(query), args...)
	require.NoError(f.t, err, "seeding fixture")
}

// PutResource inserts one orm_resources row with raw JSON metadata
func (f *Fixture) PutResource(id, model, metadata string) {
	f.t.Helper()
	f.exec(`INSERT INTO orm_resources (id, internal_resource, metadata, created_at, updated_at, lock_version)
		VALUES ($1, $2, $3, $4, $5, 0)`, id, model, metadata, Stamp.Format("2006-01-02 15:04:05"), Stamp.Format("2006-01-02 15:04:05"))
}

// PutWorkflowState records a Sipity state for a global id
func (f *Fixture) PutWorkflowState(gid, state string) {
	f.t.Helper()
	f.next++
	f.exec(`INSERT INTO sipity_workflow_states (id, workflow_id, name) VALUES ($1, 1, $2)`, f.next, state)
	f.exec(`INSERT INTO sipity_entities (id, proxy_for_global_id, workflow_id, workflow_state_id) VALUES ($1, $2, 1, $3)`, f.next, gid, f.next)
}

// PutUser inserts a user with credentials that must never be exported
func (f *Fixture) PutUser(id int, email, displayName string) {
	f.t.Helper()
	f.exec(`INSERT INTO users (id, email, display_name, encrypted_password, reset_password_token, remember_created_at, created_at, updated_at)
		VALUES ($1, $2, $3, 'secret-hash', 'secret-token', $4, $5, $6)`,
		id, email, displayName, Stamp.Format(time.RFC3339), Stamp.Format(time.RFC3339), Stamp.Format(time.RFC3339))
}

// PutRole inserts a role and optionally grants it to users
func (f *Fixture) PutRole(id int, name, resourceType string, resourceID any, userIDs ...int) {
	f.t.Helper()
	f.exec(`INSERT INTO roles (id, name, resource_type, resource_id, created_at, updated_at) VALUES ($1, $2, $3, $4, $5, $6)`,
		id, name, nullable(resourceType), resourceID, Stamp.Format(time.RFC3339), Stamp.Format(time.RFC3339))
	for _, u := range userIDs {
		f.exec(`INSERT INTO users_roles (user_id, role_id) VALUES ($1, $2)`, u, id)
	}
}

// PutAccount registers a tenant
func (f *Fixture) PutAccount(name, cname, tenant string) {
	f.t.Helper()
	f.next++
	f.exec(`INSERT INTO accounts (id, name, cname, tenant) VALUES ($1, $2, $3, $4)`, f.next, name, cname, tenant)
}

// Remove deletes an orm_resources row, leaving any index entry dangling
func (f *Fixture) Remove(id string) {
	f.t.Helper()
	f.exec(`DELETE FROM orm_resources WHERE id = $1`, id)
}

// GID renders the Sipity global id for a resource
func GID(model, id string) string {
	return fmt.Sprintf("gid://hyku/%s/%s", model, id)
}

func nullable(s string) any {
	if s == "" {
		return nil
	}
	return s
}
