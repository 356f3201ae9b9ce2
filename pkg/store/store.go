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

// Package store defines the read-only object store the exporter pulls from.
package store

import (
	"context"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
)

// ErrNotFound is returned when no object exists for an id
var ErrNotFound = errors.New("object not found")

// Internal resource names of the supporting models
const (
	ModelEmbargo       = "Hyrax::Embargo"
	ModelLease         = "Hyrax::Lease"
	ModelAccessControl = "Hyrax::AccessControl"
	ModelFileSet       = "FileSet"
	ModelFileMetadata  = "Hyrax::FileMetadata"
	ModelAdminSet      = "AdminSet"
	ModelCollection    = "Collection"
)

// aliases Hyrax has written for the same model across versions
var aliases = map[string][]string{
	ModelFileSet:    {"FileSet", "Hyrax::FileSet"},
	ModelAdminSet:   {"AdminSet", "Hyrax::AdministrativeSet", "AdminSetResource"},
	ModelCollection: {"Collection", "Hyrax::PcdmCollection", "CollectionResource"},
}

// Aliases returns every internal resource name stored for a model
func Aliases(model string) []string {
	if a, ok := aliases[model]; ok {
		return a
	}
	return []string{model}
}

// 📦 Object is one row of the object store
type Object struct {
	ID        string
	Model     string
	CreatedAt time.Time
	UpdatedAt time.Time
	// Attrs holds every stored field, with id, internal_resource,
	// created_at and updated_at folded in
	Attrs *attrs.Bag
}

// Is reports whether the object is stored under any alias of model
func (o *Object) Is(model string) bool {
	if o == nil {
		return false
	}
	for _, a := range Aliases(model) {
		if o.Model == a {
			return true
		}
	}
	return false
}

// Visibility is the stored visibility, or "" when none was written
func (o *Object) Visibility() string {
	if o == nil {
		return ""
	}
	return o.Attrs.String("visibility")
}

// 🔍 Fetcher loads single objects. An empty model matches any model.
type Fetcher interface {
	Fetch(ctx context.Context, model, id string) (*Object, error)
}

// 🗄️ Store is the full read surface the exporter needs
type Store interface {
	Fetcher

	// WorkflowState returns the Sipity workflow state name, or ErrNotFound
	WorkflowState(ctx context.Context, model, id string) (string, error)

	// Each visits every object of a model in id order
	Each(ctx context.Context, model string, fn func(*Object) error) error

	// CollectionMembers visits every object that lists the collection in
	// member_of_collection_ids
	CollectionMembers(ctx context.Context, collectionID string, fn func(*Object) error) error

	// Users visits every user row
	Users(ctx context.Context, fn func(*attrs.Bag) error) error

	// Roles visits every role row
	Roles(ctx context.Context, fn func(*attrs.Bag) error) error

	// UserRoles maps user id to role names
	UserRoles(ctx context.Context) (map[string][]string, error)
}

// 🔗 AccessControlFinder finds the access control record pointing at a
// resource, for resources that do not carry an access_control_id themselves
type AccessControlFinder interface {
	AccessControlFor(ctx context.Context, resourceID string) (*Object, error)
}

// FetchFunc adapts a function to Fetcher
type FetchFunc func(ctx context.Context, model, id string) (*Object, error)

func (f FetchFunc) Fetch(ctx context.Context, model, id string) (*Object, error) {
	return f(ctx, model, id)
}
