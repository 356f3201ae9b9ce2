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

// Package index describes the search index the exporter iterates with.
package index

import (
	"context"
	"strings"

	"github.com/walteh/repoexport/pkg/attrs"
)

// Solr field names written by the Hyrax indexers
const (
	FieldID         = "id"
	FieldModel      = "has_model_ssim"
	FieldVisibility = "visibility_ssi"
)

// SortIDAsc is the only sort the walker issues
const SortIDAsc = "id asc"

// 🔎 Filter selects one work type, optionally narrowed to a visibility
type Filter struct {
	Model      string
	Visibility string
}

// Expression renders the filter as a Solr fq clause
func (f Filter) Expression() string {
	var clauses []string
	if f.Model != "" {
		clauses = append(clauses, FieldModel+":"+quote(f.Model))
	}
	if f.Visibility != "" {
		clauses = append(clauses, FieldVisibility+":"+quote(f.Visibility))
	}
	if len(clauses) == 0 {
		return "*:*"
	}
	return strings.Join(clauses, " AND ")
}

func quote(v string) string {
	v = strings.ReplaceAll(v, `\`, `\\`)
	v = strings.ReplaceAll(v, `"`, `\"`)
	return `"` + v + `"`
}

// 📄 Query is one page request
type Query struct {
	Filter Filter
	Rows   int
	Start  int
	Fields []string
	Sort   string
}

// Doc is one partial record returned by the index
type Doc map[string]any

// ID returns the document id, unwrapping multi valued fields
func (d Doc) ID() string {
	return attrs.Scalar(d[FieldID])
}

// 🗂️ Index answers paginated, stably sorted queries
type Index interface {
	Query(ctx context.Context, q Query) ([]Doc, error)
}
