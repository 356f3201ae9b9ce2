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

package status

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/repoexport/pkg/run"
)

func TestNew(t *testing.T) {
	rc := run.New("library.example.org", true, nil)
	rc.AddScanned("Article", 2)
	rc.AddExported("Article")
	rc.AddExported("Article")
	rc.AddExported("users")
	rc.Fail(run.KindLoad, "Article", "w9", "fetch", fmt.Errorf("not found"))

	s := New(rc, []string{"a.json"}, rc.StartedAt.Add(1500*time.Millisecond))

	assert.Equal(t, rc.RunID.String(), s.RunID)
	assert.True(t, s.PublicOnly)
	assert.False(t, s.Aborted)
	assert.InDelta(t, 1.5, s.DurationSeconds, 0.001)
	assert.Equal(t, 3, s.Exported())
	assert.Equal(t, 1, s.FailureCount())
	assert.Len(t, s.Failures, len(run.Kinds), "every kind is present")
	assert.Empty(t, s.Failures[run.KindFatal])
	assert.NotNil(t, s.Failures[run.KindFatal])
	assert.Equal(t, "w9", s.Failures[run.KindLoad][0].ID)
	assert.Equal(t, []string{"a.json"}, s.Outputs)
}

func TestWriteJSON(t *testing.T) {
	dir := t.TempDir()
	rc := run.New("library.example.org", false, nil)
	rc.Touch("Article")
	rc.Fail(run.KindFatal, "", "", "", fmt.Errorf("boom"))

	path := Path(filepath.Join(dir, "nested"), "library.example.org")
	assert.Equal(t, filepath.Join(dir, "nested", "library.example.org_summary.json"), path)
	require.NoError(t, New(rc, nil, time.Now()).WriteJSON(path))

	_, err := os.Stat(path + ".tmp")
	assert.True(t, os.IsNotExist(err))

	data, err := os.ReadFile(path)
	require.NoError(t, err)

	var got map[string]any
	require.NoError(t, json.Unmarshal(data, &got))
	assert.Equal(t, true, got["aborted"])
	assert.Equal(t, []any{}, got["outputs"])
	assert.NotContains(t, got, "transfer")

	failures := got["failures"].(map[string]any)
	assert.Equal(t, []any{}, failures["load"])
	fatal := failures["fatal"].([]any)
	require.Len(t, fatal, 1)
	assert.Equal(t, "boom", fatal[0].(map[string]any)["error"])
}
