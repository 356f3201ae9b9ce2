package testutils

import (
	"context"
	"sort"

	"github.com/stretchr/testify/mock"

	"github.com/walteh/repoexport/pkg/index"
)

// 🎭 MockIndex is a testify mock of index.Index
type MockIndex struct {
	mock.Mock
}

var _ index.Index = (*MockIndex)(nil)

// Query implements index.Index
func (m *MockIndex) Query(ctx context.Context, q index.Query) ([]index.Doc, error) {
	args := m.Called(ctx, q)
	docs, _ := args.Get(0).([]index.Doc)
	return docs, args.Error(1)
}

// Docs builds id-only documents
func Docs(ids ...string) []index.Doc {
	out := make([]index.Doc, len(ids))
	for i, id := range ids {
		out[i] = index.Doc{index.FieldID: id}
	}
	return out
}

// 📚 StaticIndex serves fixed id lists per model, sorted, honoring rows and start
type StaticIndex struct {
	IDs map[string][]string
	// Queries records every query received
	Queries []index.Query
}

var _ index.Index = (*StaticIndex)(nil)

// Query implements index.Index
func (s *StaticIndex) Query(ctx context.Context, q index.Query) ([]index.Doc, error) {
	s.Queries = append(s.Queries, q)

	ids := append([]string{}, s.IDs[q.Filter.Model]...)
	sort.Strings(ids)

	if q.Start >= len(ids) {
		return nil, nil
	}
	end := q.Start + q.Rows
	if end > len(ids) {
		end = len(ids)
	}
	return Docs(ids[q.Start:end]...), nil
}
