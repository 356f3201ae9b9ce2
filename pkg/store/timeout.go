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
	"time"
)

// timeoutStore bounds every single-object read. Visits are left unbounded
// since they span a whole model.
type timeoutStore struct {
	Store
	timeout time.Duration
}

// WithTimeout wraps s so each Fetch, WorkflowState and AccessControlFor call
// gets its own deadline. A zero timeout returns s unchanged.
func WithTimeout(s Store, timeout time.Duration) Store {
	if timeout <= 0 {
		return s
	}
	return &timeoutStore{Store: s, timeout: timeout}
}

func (t *timeoutStore) Fetch(ctx context.Context, model, id string) (*Object, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.Fetch(ctx, model, id)
}

func (t *timeoutStore) WorkflowState(ctx context.Context, model, id string) (string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.WorkflowState(ctx, model, id)
}

func (t *timeoutStore) UserRoles(ctx context.Context) (map[string][]string, error) {
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return t.Store.UserRoles(ctx)
}

// AccessControlFor forwards to the wrapped store when it can search, so the
// wrapper never hides the capability
func (t *timeoutStore) AccessControlFor(ctx context.Context, resourceID string) (*Object, error) {
	finder, ok := t.Store.(AccessControlFinder)
	if !ok {
		return nil, ErrNotFound
	}
	ctx, cancel := context.WithTimeout(ctx, t.timeout)
	defer cancel()
	return finder.AccessControlFor(ctx, resourceID)
}

var (
	_ Store               = (*timeoutStore)(nil)
	_ AccessControlFinder = (*timeoutStore)(nil)
)
