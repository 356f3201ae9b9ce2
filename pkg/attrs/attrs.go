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

// Package attrs provides Bag, the ordered attribute map every exported
// object is built from.
package attrs

import (
	"encoding/json"
	"fmt"
	"sort"
	"strconv"
	"strings"
)

// 📦 Bag is an ordered mapping from field name to a dynamically typed value.
//
// Values are one of: string, json.Number (or any Go number), bool, nil,
// []any, or *Bag. A key that was never set is distinct from a key set to nil.
// The zero value is an empty bag ready for Set. The read methods also accept
// a nil *Bag as an empty bag; Set and Merge need a non-nil receiver.
type Bag struct {
	keys []string
	vals map[string]any
}

// 🏭 New creates an empty bag
func New() *Bag {
	return &Bag{vals: make(map[string]any)}
}

// 🏭 FromMap builds a bag from a plain map, ordering keys alphabetically so
// the result is deterministic.
func FromMap(m map[string]any) *Bag {
	b := New()
	keys := make([]string, 0, len(m))
	for k := range m {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	for _, k := range keys {
		b.Set(k, normalize(m[k]))
	}
	return b
}

func normalize(v any) any {
	switch t := v.(type) {
	case map[string]any:
		return FromMap(t)
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = normalize(e)
		}
		return out
	case []string:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = e
		}
		return out
	default:
		return v
	}
}

// Len returns the number of fields
func (b *Bag) Len() int {
	if b == nil {
		return 0
	}
	return len(b.keys)
}

// Keys returns the field names in insertion order
func (b *Bag) Keys() []string {
	if b == nil {
		return nil
	}
	out := make([]string, len(b.keys))
	copy(out, b.keys)
	return out
}

// Get returns the raw value and whether the field is present at all
func (b *Bag) Get(key string) (any, bool) {
	if b == nil || b.vals == nil {
		return nil, false
	}
	v, ok := b.vals[key]
	return v, ok
}

// Has reports whether the field is present, including explicit nulls
func (b *Bag) Has(key string) bool {
	_, ok := b.Get(key)
	return ok
}

// Set stores a value. An existing field keeps its position.
func (b *Bag) Set(key string, v any) {
	if b.vals == nil {
		b.vals = make(map[string]any)
	}
	if _, ok := b.vals[key]; !ok {
		b.keys = append(b.keys, key)
	}
	b.vals[key] = v
}

// Delete removes a field if present
func (b *Bag) Delete(key string) {
	if b == nil || b.vals == nil {
		return
	}
	if _, ok := b.vals[key]; !ok {
		return
	}
	delete(b.vals, key)
	for i, k := range b.keys {
		if k == key {
			b.keys = append(b.keys[:i], b.keys[i+1:]...)
			break
		}
	}
}

// Clone returns a deep copy
func (b *Bag) Clone() *Bag {
	out := New()
	if b == nil {
		return out
	}
	for _, k := range b.keys {
		out.Set(k, cloneValue(b.vals[k]))
	}
	return out
}

func cloneValue(v any) any {
	switch t := v.(type) {
	case *Bag:
		return t.Clone()
	case []any:
		out := make([]any, len(t))
		for i, e := range t {
			out[i] = cloneValue(e)
		}
		return out
	default:
		return v
	}
}

// Except returns a copy without the named fields
func (b *Bag) Except(keys ...string) *Bag {
	out := b.Clone()
	for _, k := range keys {
		out.Delete(k)
	}
	return out
}

// Merge copies every field of other into b, overriding existing values
func (b *Bag) Merge(other *Bag) {
	if other == nil {
		return
	}
	for _, k := range other.keys {
		b.Set(k, cloneValue(other.vals[k]))
	}
}

// String returns the first non-blank scalar stored under key.
//
// Lists yield their first non-blank element and nested bags yield their
// "@value", "@id" or "id" entry, which covers the shapes Valkyrie writes for
// typed literals and references.
func (b *Bag) String(key string) string {
	v, ok := b.Get(key)
	if !ok {
		return ""
	}
	return Scalar(v)
}

// Strings returns every non-blank scalar stored under key
func (b *Bag) Strings(key string) []string {
	v, ok := b.Get(key)
	if !ok || v == nil {
		return nil
	}
	list, isList := v.([]any)
	if !isList {
		if s := Scalar(v); s != "" {
			return []string{s}
		}
		return nil
	}
	out := make([]string, 0, len(list))
	for _, e := range list {
		if s := Scalar(e); s != "" {
			out = append(out, s)
		}
	}
	return out
}

// Bag returns the nested bag stored under key, unwrapping a single-element list
func (b *Bag) Bag(key string) *Bag {
	bags := b.Bags(key)
	if len(bags) == 0 {
		return nil
	}
	return bags[0]
}

// Bags returns every nested bag stored under key
func (b *Bag) Bags(key string) []*Bag {
	v, ok := b.Get(key)
	if !ok {
		return nil
	}
	switch t := v.(type) {
	case *Bag:
		return []*Bag{t}
	case []any:
		out := make([]*Bag, 0, len(t))
		for _, e := range t {
			if nb, ok := e.(*Bag); ok {
				out = append(out, nb)
			}
		}
		return out
	default:
		return nil
	}
}

// Int64 returns the first numeric value stored under key
func (b *Bag) Int64(key string) (int64, bool) {
	v, ok := b.Get(key)
	if !ok {
		return 0, false
	}
	if list, isList := v.([]any); isList {
		if len(list) == 0 {
			return 0, false
		}
		v = list[0]
	}
	switch t := v.(type) {
	case json.Number:
		if n, err := t.Int64(); err == nil {
			return n, true
		}
		if f, err := t.Float64(); err == nil {
			return int64(f), true
		}
	case float64:
		return int64(t), true
	case int:
		return int64(t), true
	case int64:
		return t, true
	case string:
		if n, err := strconv.ParseInt(strings.TrimSpace(t), 10, 64); err == nil {
			return n, true
		}
	case *Bag:
		return t.Int64("@value")
	}
	return 0, false
}

// Scalar renders a single value as a trimmed string, or "" when it is blank
func Scalar(v any) string {
	switch t := v.(type) {
	case nil:
		return ""
	case string:
		return strings.TrimSpace(t)
	case json.Number:
		return t.String()
	case bool:
		return strconv.FormatBool(t)
	case float64:
		return strconv.FormatFloat(t, 'f', -1, 64)
	case int:
		return strconv.Itoa(t)
	case int64:
		return strconv.FormatInt(t, 10)
	case []any:
		for _, e := range t {
			if s := Scalar(e); s != "" {
				return s
			}
		}
		return ""
	case *Bag:
		for _, k := range []string{"@value", "@id", "id"} {
			if s := t.String(k); s != "" {
				return s
			}
		}
		return ""
	default:
		return strings.TrimSpace(fmt.Sprint(t))
	}
}

// IsBlank reports whether a value carries no information
func IsBlank(v any) bool {
	switch t := v.(type) {
	case nil:
		return true
	case []any:
		for _, e := range t {
			if !IsBlank(e) {
				return false
			}
		}
		return true
	case *Bag:
		return t.Len() == 0
	default:
		return Scalar(v) == ""
	}
}
