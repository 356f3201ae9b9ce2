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

package record

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/acl"
	"github.com/walteh/repoexport/pkg/attrs"
	"github.com/walteh/repoexport/pkg/checksum"
	"github.com/walteh/repoexport/pkg/policy"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/store"
)

// DefaultVisibility applies when neither the record nor its access control
// says anything
const DefaultVisibility = "restricted"

// fields dropped from original_file_metadata
var metadataEnvelope = []string{"id", "created_at", "updated_at", "internal_resource", "lock_version"}

// Options configures a Builder
type Options struct {
	Store    store.Store
	Policies *policy.Resolver
	ACL      *acl.Resolver
}

// 🏗️ Builder enriches stored works into export records. Every enrichment step
// degrades on its own: a failure is recorded on the run and the field is left
// empty, the record is still built.
type Builder struct {
	store    store.Store
	policies *policy.Resolver
	acl      *acl.Resolver
}

// 🏭 New creates a builder
func New(opts Options) (*Builder, error) {
	if opts.Store == nil {
		return nil, errors.New("record builder needs a store")
	}
	if opts.Policies == nil {
		opts.Policies = policy.NewResolver(nil)
	}
	if opts.ACL == nil {
		r, err := acl.NewResolver(opts.Store)
		if err != nil {
			return nil, errors.Errorf("creating access control resolver: %w", err)
		}
		opts.ACL = r
	}
	return &Builder{store: opts.Store, policies: opts.Policies, acl: opts.ACL}, nil
}

// step is one enrichment call site, for failure reporting
type step struct {
	rc      *run.Context
	section string
	id      string
}

func (s step) fail(ctx context.Context, stage string, err error) {
	zerolog.Ctx(ctx).Warn().Err(err).
		Str("id", s.id).
		Str("work_type", s.section).
		Str("stage", stage).
		Msg("enrichment degraded")
	if s.rc != nil {
		s.rc.Fail(run.KindEnrichment, s.section, s.id, stage, err)
	}
}

// 🔐 Access is a work's access control and the visibility derived from it
type Access struct {
	Control    *acl.Snapshot
	Visibility string
}

// ResolveAccess reads the work's access control and resolves its
// visibility: the stored value, else the access control grants, else
// DefaultVisibility
func (b *Builder) ResolveAccess(ctx context.Context, rc *run.Context, section string, work *store.Object) Access {
	st := step{rc: rc, section: section, id: work.ID}
	snap := b.accessControl(ctx, st, work.ID, work.Attrs)
	return Access{Control: snap, Visibility: visibility(work.Attrs, snap)}
}

// 🔍 Build turns one fetched work into its export record
func (b *Builder) Build(ctx context.Context, rc *run.Context, section string, work *store.Object) *WorkRecord {
	return b.BuildWithAccess(ctx, rc, section, work, b.ResolveAccess(ctx, rc, section, work))
}

// BuildWithAccess is Build for a work whose access was already resolved
func (b *Builder) BuildWithAccess(ctx context.Context, rc *run.Context, section string, work *store.Object, access Access) *WorkRecord {
	st := step{rc: rc, section: section, id: work.ID}
	a := work.Attrs

	rec := &WorkRecord{Attrs: a, CollectionRefs: []*attrs.Bag{}, Files: []*FileRecord{}}

	rec.AccessControl = access.Control
	rec.Visibility = access.Visibility
	rec.Embargo, rec.Lease = b.policiesFor(ctx, st, a, rec.Visibility)
	rec.AccessEffective = effective(rec.Visibility, rec.Embargo, rec.Lease)

	if id := a.String("admin_set_id"); id != "" {
		obj, err := b.store.Fetch(ctx, store.ModelAdminSet, id)
		if err != nil {
			st.fail(ctx, "admin_set", errors.Errorf("fetching admin set %s: %w", id, err))
		} else {
			rec.AdminSetRef = obj.Attrs
		}
	}

	state, err := b.store.WorkflowState(ctx, work.Model, work.ID)
	switch {
	case err == nil:
		rec.WorkflowStatus = &state
	case errors.Is(err, store.ErrNotFound):
	default:
		st.fail(ctx, "workflow_status", errors.Errorf("reading workflow state: %w", err))
	}

	for _, cid := range a.Strings("member_of_collection_ids") {
		obj, err := b.store.Fetch(ctx, store.ModelCollection, cid)
		if err != nil {
			st.fail(ctx, "collections", errors.Errorf("fetching collection %s: %w", cid, err))
			continue
		}
		rec.CollectionRefs = append(rec.CollectionRefs, obj.Attrs)
	}

	for _, mid := range a.Strings("member_ids") {
		obj, err := b.store.Fetch(ctx, "", mid)
		if err != nil {
			st.fail(ctx, "files", errors.Errorf("fetching member %s: %w", mid, err))
			continue
		}
		if !obj.Is(store.ModelFileSet) {
			continue
		}
		rec.Files = append(rec.Files, b.BuildFile(ctx, rc, section, obj))
	}

	return rec
}

// 📎 BuildFile turns one file set into its export record
func (b *Builder) BuildFile(ctx context.Context, rc *run.Context, section string, fs *store.Object) *FileRecord {
	st := step{rc: rc, section: section, id: fs.ID}
	a := fs.Attrs

	rec := &FileRecord{Attrs: a, OriginalFileMetadata: attrs.New()}

	rec.AccessControl = b.accessControl(ctx, st, fs.ID, a)
	rec.Visibility = visibility(a, rec.AccessControl)
	rec.Embargo, rec.Lease = b.policiesFor(ctx, st, a, rec.Visibility)
	rec.AccessEffective = effective(rec.Visibility, rec.Embargo, rec.Lease)

	meta, err := b.OriginalFile(ctx, fs)
	if err != nil {
		st.fail(ctx, "original_file", err)
	}
	if meta == nil {
		return rec
	}

	if size, ok := meta.Attrs.Int64("size"); ok {
		rec.SizeBytes = size
	}

	raw, _ := meta.Attrs.Get("checksum")
	info, err := checksum.FromValue(raw)
	if err != nil {
		st.fail(ctx, "checksum", err)
	}
	rec.Checksum = info

	rec.OriginalFileMetadata = meta.Attrs.Except(metadataEnvelope...)
	return rec
}

// OriginalFile loads the file metadata of a file set's original file.
// A file set without one yields nil and no error.
func (b *Builder) OriginalFile(ctx context.Context, fs *store.Object) (*store.Object, error) {
	id := OriginalFileID(fs.Attrs)
	if id == "" {
		return nil, nil
	}
	obj, err := b.store.Fetch(ctx, store.ModelFileMetadata, id)
	if err != nil {
		return nil, errors.Errorf("fetching file metadata %s: %w", id, err)
	}
	return obj, nil
}

// OriginalFileID is original_file_id, else the first of file_ids
func OriginalFileID(a *attrs.Bag) string {
	if id := a.String("original_file_id"); id != "" {
		return id
	}
	return a.String("file_ids")
}

func (b *Builder) accessControl(ctx context.Context, st step, id string, a *attrs.Bag) *acl.Snapshot {
	snap, err := b.acl.ResolveFor(ctx, id, a.String("access_control_id"))
	if err != nil {
		st.fail(ctx, "access_control", err)
		return nil
	}
	return snap
}

func (b *Builder) policiesFor(ctx context.Context, st step, a *attrs.Bag, vis string) (*policy.Policy, *policy.Policy) {
	owner := policy.Owner{Attrs: a, Visibility: vis}

	embargo, err := b.policies.ResolveFor(ctx, b.store, owner, policy.KindEmbargo)
	if err != nil {
		st.fail(ctx, "embargo", err)
	}
	lease, err := b.policies.ResolveFor(ctx, b.store, owner, policy.KindLease)
	if err != nil {
		st.fail(ctx, "lease", err)
	}
	return embargo, lease
}

func visibility(a *attrs.Bag, snap *acl.Snapshot) string {
	if v := a.String("visibility"); v != "" {
		return v
	}
	if v := snap.Visibility(); v != "" {
		return v
	}
	return DefaultVisibility
}
