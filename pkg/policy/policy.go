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

package policy

import (
	"context"
	"time"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
	"github.com/walteh/repoexport/pkg/store"
	"github.com/walteh/repoexport/pkg/text"
)

// 🏷️ Kind names the two temporal policies a resource can carry
type Kind string

const (
	KindEmbargo Kind = "embargo"
	KindLease   Kind = "lease"
)

// 📋 fields maps a policy kind onto the attribute names Hyrax uses for it,
// both on the association record and flattened onto the owner.
type fields struct {
	Boundary string
	During   string
	After    string
	History  string
	OwnerRef string
	Model    string
}

var kinds = map[Kind]fields{
	KindEmbargo: {
		Boundary: "embargo_release_date",
		During:   "visibility_during_embargo",
		After:    "visibility_after_embargo",
		History:  "embargo_history",
		OwnerRef: "embargo_id",
		Model:    store.ModelEmbargo,
	},
	KindLease: {
		Boundary: "lease_expiration_date",
		During:   "visibility_during_lease",
		After:    "visibility_after_lease",
		History:  "lease_history",
		OwnerRef: "lease_id",
		Model:    store.ModelLease,
	},
}

// ⏳ Policy is the normalized view of one embargo or lease
type Policy struct {
	ID                         string   `json:"id"`
	Kind                       Kind     `json:"kind"`
	BoundaryTimestamp          *string  `json:"boundary_timestamp"`
	VisibilityDuring           *string  `json:"visibility_during"`
	VisibilityAfter            *string  `json:"visibility_after"`
	History                    []string `json:"history"`
	Active                     bool     `json:"active"`
	CurrentlyAppliedVisibility bool     `json:"currently_applied_visibility"`
}

// IsActive is nil safe
func (p *Policy) IsActive() bool {
	return p != nil && p.Active
}

// 📦 Owner is the resource a policy hangs off
type Owner struct {
	Attrs      *attrs.Bag
	Visibility string
}

// 🎯 Resolver turns associations and flattened fields into policies
type Resolver struct {
	Now func() time.Time
}

// 🏭 NewResolver creates a resolver evaluating against the given clock
func NewResolver(now func() time.Time) *Resolver {
	if now == nil {
		now = time.Now
	}
	return &Resolver{Now: now}
}

// AssociationID returns the id of the separately stored policy record, if the
// owner references one
func AssociationID(owner Owner, kind Kind) string {
	f, ok := kinds[kind]
	if !ok {
		return ""
	}
	return owner.Attrs.String(f.OwnerRef)
}

// 🔍 Resolve merges the association (which may be nil) with the owner's own
// flattened fields. Every sub-field falls back independently. Nil means the
// owner carries no policy of this kind.
func (r *Resolver) Resolve(owner Owner, assoc *attrs.Bag, kind Kind) *Policy {
	f, ok := kinds[kind]
	if !ok {
		return nil
	}

	pick := func(key string) string {
		if v := assoc.String(key); v != "" {
			return v
		}
		return owner.Attrs.String(key)
	}

	pickTime := func(key string) string {
		if v := text.NormalizeTimestamp(assoc.String(key)); v != "" {
			return v
		}
		return text.NormalizeTimestamp(owner.Attrs.String(key))
	}

	history := assoc.Strings(f.History)
	if len(history) == 0 {
		history = owner.Attrs.Strings(f.History)
	}

	boundary := pickTime(f.Boundary)
	during := pick(f.During)
	after := pick(f.After)

	if boundary == "" && during == "" && after == "" && len(history) == 0 {
		return nil
	}

	p := &Policy{
		ID:                assoc.String("id"),
		Kind:              kind,
		BoundaryTimestamp: optional(boundary),
		VisibilityDuring:  optional(during),
		VisibilityAfter:   optional(after),
		History:           history,
	}
	if p.ID == "" {
		p.ID = owner.Attrs.String(f.OwnerRef)
	}
	if p.History == nil {
		p.History = []string{}
	}

	p.CurrentlyAppliedVisibility = during != "" && during == owner.Visibility
	if boundary != "" && p.CurrentlyAppliedVisibility {
		at, err := time.Parse(time.RFC3339Nano, boundary)
		p.Active = err == nil && at.After(r.Now().UTC())
	}

	return p
}

// 🔍 ResolveFor fetches the association the owner points at, then resolves.
// A failed fetch yields no policy and the error, so the caller can record it
// and carry on.
func (r *Resolver) ResolveFor(ctx context.Context, fetcher store.Fetcher, owner Owner, kind Kind) (*Policy, error) {
	f, ok := kinds[kind]
	if !ok {
		return nil, errors.Errorf("unknown policy kind %q", kind)
	}

	var assoc *attrs.Bag
	if id := owner.Attrs.String(f.OwnerRef); id != "" && fetcher != nil {
		obj, err := fetcher.Fetch(ctx, f.Model, id)
		if err != nil {
			return nil, errors.Errorf("fetching %s %s: %w", kind, id, err)
		}
		assoc = obj.Attrs
		zerolog.Ctx(ctx).Debug().Str("kind", string(kind)).Str("policy_id", id).Msg("loaded policy association")
	}

	return r.Resolve(owner, assoc, kind), nil
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
