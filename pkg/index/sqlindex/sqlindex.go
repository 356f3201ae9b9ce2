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

// Package sqlindex answers index queries straight from orm_resources, for
// deployments that have no Solr reachable from where the export runs.
//
// Visibility is not stored on the row, so Filter.Visibility is ignored here
// and public-only exports fall back to checking each loaded work.
package sqlindex

import (
	"context"
	"fmt"
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/database"
	"github.com/walteh/repoexport/pkg/index"
	"github.com/walteh/repoexport/pkg/store"
)

// 🗂️ Index implements index.Index over orm_resources
type Index struct {
	q       database.Querier
	dialect database.Dialect
}

var _ index.Index = (*Index)(nil)

// 🏭 New creates a database backed index
func New(q database.Querier, dialect database.Dialect) (*Index, error) {
	if q == nil {
		return nil, errors.Errorf("querier is required")
	}
	return &Index{q: q, dialect: dialect}, nil
}

// 🔍 Query returns one page of ids ordered by id
func (i *Index) Query(ctx context.Context, q index.Query) ([]index.Doc, error) {
	if q.Sort != "" && q.Sort != index.SortIDAsc {
		return nil, errors.Errorf("unsupported sort %q", q.Sort)
	}
	if q.Rows <= 0 {
		return nil, errors.Errorf("rows must be positive, got %d", q.Rows)
	}

	idCol := "id"
	if i.dialect == database.Postgres {
		idCol = "id::text"
	}

	aliases := store.Aliases(q.Filter.Model)
	args := make([]any, 0, len(aliases))
	marks := make([]string, 0, len(aliases))
	for n, a := range aliases {
		args = append(args, a)
		marks = append(marks, fmt.Sprintf("$%d", n+1))
	}

	query := fmt.Sprintf("SELECT %s FROM orm_resources WHERE internal_resource IN (%s) ORDER BY id LIMIT %d OFFSET %d",
		idCol, strings.Join(marks, ", "), q.Rows, q.Start)

	rows, err := i.q.QueryContext(ctx, i.dialect.Rebind(query), args...)
	if err != nil {
		return nil, errors.Errorf("querying ids: %w", err)
	}
	defer rows.Close()

	var docs []index.Doc
	for rows.Next() {
		var id string
		if err := rows.Scan(&id); err != nil {
			return nil, errors.Errorf("scanning id: %w", err)
		}
		docs = append(docs, index.Doc{index.FieldID: id})
	}
	if err := rows.Err(); err != nil {
		return nil, errors.Errorf("iterating ids: %w", err)
	}
	return docs, nil
}
