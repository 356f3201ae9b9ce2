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

package walker

import (
	"context"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/index"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/testutils"
)

func testCtx(t *testing.T) context.Context {
	logger := zerolog.New(zerolog.TestWriter{T: t}).With().Timestamp().Logger()
	return logger.WithContext(context.Background())
}

func atOffset(start int) any {
	return mock.MatchedBy(func(q index.Query) bool { return q.Start == start })
}

// overlappingIndex simulates an index mutated between page requests
func overlappingIndex() *testutils.MockIndex {
	idx := &testutils.MockIndex{}
	idx.On("Query", mock.Anything, atOffset(0)).Return(testutils.Docs("a", "b", "c"), nil).Once()
	idx.On("Query", mock.Anything, atOffset(3)).Return(testutils.Docs("c", "d", "e"), nil).Once()
	idx.On("Query", mock.Anything, atOffset(6)).Return(testutils.Docs("e", "f"), nil).Once()
	idx.On("Query", mock.Anything, atOffset(9)).Return([]index.Doc{}, nil).Once()
	return idx
}

func collect(t *testing.T, seq func(func([]string, error) bool)) ([][]string, error) {
	t.Helper()
	var batches [][]string
	for batch, err := range seq {
		if err != nil {
			return batches, err
		}
		batches = append(batches, batch)
	}
	return batches, nil
}

func TestScanSuppressesOverlap(t *testing.T) {
	idx := overlappingIndex()
	w, err := New(Options{Index: idx, BatchSize: 3})
	require.NoError(t, err)

	rc := run.New("demo", false, nil)
	batches, err := collect(t, w.Scan(testCtx(t), rc, index.Filter{Model: "Book"}))
	require.NoError(t, err)

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e"}, {"f"}}, batches)

	stats := rc.Section("Book")
	assert.Equal(t, 2, stats.Duplicates, "overlap count equals suppressed ids")
	assert.Equal(t, []string{"c", "e"}, stats.DuplicateIDs)
	assert.Equal(t, 8, stats.Scanned)

	idx.AssertExpectations(t)
}

func TestScanRequestsStableIDOnlyPages(t *testing.T) {
	idx := &testutils.StaticIndex{IDs: map[string][]string{"Book": {"b2", "b1"}}}
	w, err := New(Options{Index: idx, BatchSize: 1})
	require.NoError(t, err)

	batches, err := collect(t, w.Scan(testCtx(t), run.New("demo", true, nil), index.Filter{Model: "Book", Visibility: "open"}))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"b1"}, {"b2"}}, batches)

	require.Len(t, idx.Queries, 3, "scan ends on the first empty page")
	for i, q := range idx.Queries {
		assert.Equal(t, i, q.Start)
		assert.Equal(t, 1, q.Rows)
		assert.Equal(t, []string{index.FieldID}, q.Fields)
		assert.Equal(t, index.SortIDAsc, q.Sort)
		assert.Equal(t, "open", q.Filter.Visibility)
	}
}

func TestScanEmptyIndex(t *testing.T) {
	idx := &testutils.StaticIndex{}
	w, err := New(Options{Index: idx})
	require.NoError(t, err)
	assert.Equal(t, DefaultBatchSize, w.BatchSize())

	batches, err := collect(t, w.Scan(testCtx(t), run.New("demo", false, nil), index.Filter{Model: "Book"}))
	require.NoError(t, err)
	assert.Empty(t, batches)
}

func TestScanErrorEndsScan(t *testing.T) {
	idx := &testutils.MockIndex{}
	idx.On("Query", mock.Anything, atOffset(0)).Return(testutils.Docs("a"), nil).Once()
	idx.On("Query", mock.Anything, atOffset(1)).Return(nil, errors.New("solr down")).Once()

	w, err := New(Options{Index: idx, BatchSize: 1})
	require.NoError(t, err)

	batches, err := collect(t, w.Scan(testCtx(t), run.New("demo", false, nil), index.Filter{Model: "Book"}))
	require.Error(t, err)
	assert.Contains(t, err.Error(), "solr down")
	assert.Equal(t, [][]string{{"a"}}, batches, "batches before the error are kept")
	idx.AssertExpectations(t)
}

func TestScanRetriesPage(t *testing.T) {
	idx := &testutils.MockIndex{}
	idx.On("Query", mock.Anything, atOffset(0)).Return(nil, errors.New("blip")).Once()
	idx.On("Query", mock.Anything, atOffset(0)).Return(testutils.Docs("a"), nil).Once()
	idx.On("Query", mock.Anything, atOffset(1)).Return(nil, nil).Once()

	w, err := New(Options{Index: idx, BatchSize: 1, Retries: 2, RetryInterval: time.Millisecond})
	require.NoError(t, err)

	batches, err := collect(t, w.Scan(testCtx(t), run.New("demo", false, nil), index.Filter{Model: "Book"}))
	require.NoError(t, err)
	assert.Equal(t, [][]string{{"a"}}, batches)
	idx.AssertExpectations(t)
}

func TestScanStopsWhenConsumerBreaks(t *testing.T) {
	idx := &testutils.MockIndex{}
	idx.On("Query", mock.Anything, atOffset(0)).Return(testutils.Docs("a"), nil).Once()

	w, err := New(Options{Index: idx, BatchSize: 1})
	require.NoError(t, err)

	for batch, err := range w.Scan(testCtx(t), run.New("demo", false, nil), index.Filter{Model: "Book"}) {
		require.NoError(t, err)
		assert.Equal(t, []string{"a"}, batch)
		break
	}
	idx.AssertExpectations(t)
}

func TestScanIsRestartablePerWorkType(t *testing.T) {
	idx := &testutils.StaticIndex{IDs: map[string][]string{"Book": {"x"}, "Article": {"x"}}}
	w, err := New(Options{Index: idx, BatchSize: 10})
	require.NoError(t, err)
	rc := run.New("demo", false, nil)

	for _, model := range []string{"Book", "Article", "Book"} {
		batches, err := collect(t, w.Scan(testCtx(t), rc, index.Filter{Model: model}))
		require.NoError(t, err)
		assert.Equal(t, [][]string{{"x"}}, batches, "each scan starts with an empty seen set")
	}
	assert.Equal(t, 0, rc.Section("Book").Duplicates)
}

func TestRedisSeen(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()

	ctx := testCtx(t)
	rc := run.New("demo", false, nil)

	factory := RedisSeen(client, time.Hour)
	w, err := New(Options{Index: overlappingIndex(), BatchSize: 3, Seen: factory})
	require.NoError(t, err)

	key := SeenKey(rc.RunID.String(), "Book")
	var ttlDuringScan time.Duration
	var batches [][]string
	for batch, err := range w.Scan(ctx, rc, index.Filter{Model: "Book"}) {
		require.NoError(t, err)
		batches = append(batches, batch)
		ttlDuringScan = mr.TTL(key)
	}

	assert.Equal(t, [][]string{{"a", "b", "c"}, {"d", "e"}, {"f"}}, batches)
	assert.Equal(t, time.Hour, ttlDuringScan, "set expires if the run dies")
	assert.False(t, mr.Exists(key), "set is removed when the scan ends")
	assert.Equal(t, []string{"c", "e"}, rc.Section("Book").DuplicateIDs)
}

func TestRedisSeenUnavailable(t *testing.T) {
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	defer client.Close()
	mr.Close()

	w, err := New(Options{Index: overlappingIndex(), BatchSize: 3, Seen: RedisSeen(client, 0)})
	require.NoError(t, err)

	_, err = collect(t, w.Scan(testCtx(t), run.New("demo", false, nil), index.Filter{Model: "Book"}))
	assert.Error(t, err, "a dead redis ends the scan with an error")
}

func TestNewValidates(t *testing.T) {
	_, err := New(Options{})
	assert.Error(t, err)

	_, err = New(Options{Index: &testutils.StaticIndex{}, BatchSize: -1})
	assert.Error(t, err)
}
