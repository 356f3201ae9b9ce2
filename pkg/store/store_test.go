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

package store

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/repoexport/pkg/attrs"
)

// deadlineStore records whether each call saw a deadline
type deadlineStore struct {
	Store
	sawDeadline map[string]bool
}

func (d *deadlineStore) note(ctx context.Context, call string) {
	_, ok := ctx.Deadline()
	d.sawDeadline[call] = ok
}

func (d *deadlineStore) Fetch(ctx context.Context, model, id string) (*Object, error) {
	d.note(ctx, "fetch")
	return &Object{ID: id, Model: model, Attrs: attrs.New()}, nil
}

func (d *deadlineStore) WorkflowState(ctx context.Context, model, id string) (string, error) {
	d.note(ctx, "workflow")
	return "deposited", nil
}

func (d *deadlineStore) Each(ctx context.Context, model string, fn func(*Object) error) error {
	d.note(ctx, "each")
	return nil
}

type finderStore struct {
	deadlineStore
}

func (f *finderStore) AccessControlFor(ctx context.Context, resourceID string) (*Object, error) {
	f.note(ctx, "acl")
	return &Object{ID: "acl-" + resourceID, Model: ModelAccessControl}, nil
}

func TestWithTimeout(t *testing.T) {
	ctx := context.Background()
	inner := &deadlineStore{sawDeadline: map[string]bool{}}

	assert.Same(t, Store(inner), WithTimeout(inner, 0), "zero timeout leaves the store alone")

	s := WithTimeout(inner, time.Minute)
	_, err := s.Fetch(ctx, "Article", "a1")
	require.NoError(t, err)
	state, err := s.WorkflowState(ctx, "Article", "a1")
	require.NoError(t, err)
	assert.Equal(t, "deposited", state)
	require.NoError(t, s.Each(ctx, "Article", func(*Object) error { return nil }))

	assert.True(t, inner.sawDeadline["fetch"])
	assert.True(t, inner.sawDeadline["workflow"])
	assert.False(t, inner.sawDeadline["each"], "visits are unbounded")

	finder, ok := s.(AccessControlFinder)
	require.True(t, ok)
	_, err = finder.AccessControlFor(ctx, "w1")
	assert.ErrorIs(t, err, ErrNotFound, "wrapped store cannot search")
}

func TestWithTimeoutForwardsFinder(t *testing.T) {
	inner := &finderStore{deadlineStore{sawDeadline: map[string]bool{}}}
	s := WithTimeout(inner, time.Minute).(AccessControlFinder)

	obj, err := s.AccessControlFor(context.Background(), "w1")
	require.NoError(t, err)
	assert.Equal(t, "acl-w1", obj.ID)
	assert.True(t, inner.sawDeadline["acl"])
}

func TestObjectIs(t *testing.T) {
	tests := []struct {
		name   string
		stored string
		model  string
		want   bool
	}{
		{"same_name", "FileSet", ModelFileSet, true},
		{"valkyrie_alias", "Hyrax::FileSet", ModelFileSet, true},
		{"admin_set_resource", "AdminSetResource", ModelAdminSet, true},
		{"pcdm_collection", "Hyrax::PcdmCollection", ModelCollection, true},
		{"work_type", "Article", "Article", true},
		{"different_model", "Article", ModelCollection, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			o := &Object{ID: "x", Model: tt.stored, Attrs: attrs.New()}
			assert.Equal(t, tt.want, o.Is(tt.model))
		})
	}

	var missing *Object
	assert.False(t, missing.Is(ModelFileSet))
	assert.Equal(t, "", missing.Visibility())
}

func TestAliases(t *testing.T) {
	assert.Equal(t, []string{"Article"}, Aliases("Article"))
	assert.Contains(t, Aliases(ModelAdminSet), "Hyrax::AdministrativeSet")
}
