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

// Package acl flattens Hyrax access control records into permission lists.
package acl

import (
	"context"
	"fmt"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
	"github.com/walteh/repoexport/pkg/store"
)

// 🔑 Mode is the grant level of a permission
type Mode string

const (
	ModeRead  Mode = "read"
	ModeWrite Mode = "write"
)

// 👤 AgentType distinguishes users from groups
type AgentType string

const (
	AgentPerson AgentType = "person"
	AgentGroup  AgentType = "group"
)

const groupPrefix = "group/"

// Well known groups
const (
	GroupPublic     = "public"
	GroupRegistered = "registered"
)

// Agent is who a permission is granted to
type Agent struct {
	Type       AgentType `json:"type"`
	Identifier string    `json:"identifier"`
}

// 📜 PermissionEntry is one flattened grant
type PermissionEntry struct {
	ID       string `json:"id"`
	Mode     Mode   `json:"mode"`
	Agent    Agent  `json:"agent"`
	TargetID string `json:"target_id"`
}

// 🛡️ Snapshot is the flattened access control record of one resource
type Snapshot struct {
	ID          string            `json:"id"`
	Permissions []PermissionEntry `json:"permissions"`
}

// Visibility derives the Hyrax visibility from the read groups
func (s *Snapshot) Visibility() string {
	if s == nil {
		return ""
	}
	registered := false
	for _, p := range s.Permissions {
		if p.Mode != ModeRead || p.Agent.Type != AgentGroup {
			continue
		}
		switch p.Agent.Identifier {
		case GroupPublic:
			return "open"
		case GroupRegistered:
			registered = true
		}
	}
	if registered {
		return "authenticated"
	}
	return "restricted"
}

// 🎯 Resolver fetches and flattens access control records
type Resolver struct {
	store store.Fetcher
}

// 🏭 NewResolver creates a resolver reading from the given store
func NewResolver(fetcher store.Fetcher) (*Resolver, error) {
	if fetcher == nil {
		return nil, errors.Errorf("store is required")
	}
	return &Resolver{store: fetcher}, nil
}

// 🔍 Resolve returns the snapshot for an access control id. A blank id is
// not an error and yields nil. A failed fetch yields nil and the error.
func (r *Resolver) Resolve(ctx context.Context, id string) (*Snapshot, error) {
	id = strings.TrimSpace(id)
	if id == "" {
		return nil, nil
	}

	obj, err := r.store.Fetch(ctx, store.ModelAccessControl, id)
	if err != nil {
		return nil, errors.Errorf("fetching access control %s: %w", id, err)
	}

	return Flatten(ctx, id, obj.Attrs), nil
}

// 🔍 ResolveFor resolves the access control of a resource. A resource that
// carries an access_control_id is resolved by it; otherwise, when the store can
// search by reference, the record whose access_to points at the resource is
// used. Having no record at all is not an error.
func (r *Resolver) ResolveFor(ctx context.Context, resourceID, accessControlID string) (*Snapshot, error) {
	if strings.TrimSpace(accessControlID) != "" {
		return r.Resolve(ctx, accessControlID)
	}

	finder, ok := r.store.(store.AccessControlFinder)
	if !ok || resourceID == "" {
		return nil, nil
	}

	obj, err := finder.AccessControlFor(ctx, resourceID)
	if errors.Is(err, store.ErrNotFound) {
		return nil, nil
	}
	if err != nil {
		return nil, errors.Errorf("finding access control of %s: %w", resourceID, err)
	}
	return Flatten(ctx, obj.ID, obj.Attrs), nil
}

// 🔄 Flatten converts the stored permissions of an access control record
func Flatten(ctx context.Context, id string, record *attrs.Bag) *Snapshot {
	snap := &Snapshot{ID: id, Permissions: []PermissionEntry{}}
	recordTarget := record.String("access_to")

	for i, perm := range record.Bags("permissions") {
		mode, ok := parseMode(perm.String("mode"))
		if !ok {
			zerolog.Ctx(ctx).Debug().
				Str("access_control_id", id).
				Str("mode", perm.String("mode")).
				Msg("skipping permission with unknown mode")
			continue
		}

		entry := PermissionEntry{
			ID:       perm.String("id"),
			Mode:     mode,
			Agent:    parseAgent(perm.String("agent")),
			TargetID: perm.String("access_to"),
		}
		if entry.ID == "" {
			entry.ID = fmt.Sprintf("%s#%d", id, i)
		}
		if entry.TargetID == "" {
			entry.TargetID = recordTarget
		}
		snap.Permissions = append(snap.Permissions, entry)
	}

	return snap
}

func parseMode(raw string) (Mode, bool) {
	switch strings.ToLower(raw) {
	case "read":
		return ModeRead, true
	case "edit", "write":
		return ModeWrite, true
	default:
		return "", false
	}
}

func parseAgent(raw string) Agent {
	if name, ok := strings.CutPrefix(raw, groupPrefix); ok {
		return Agent{Type: AgentGroup, Identifier: name}
	}
	return Agent{Type: AgentPerson, Identifier: raw}
}
