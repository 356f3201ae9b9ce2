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
	"bytes"
	"fmt"
	"testing"
	"time"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/transfer"
)

func noColor(t *testing.T) {
	t.Helper()
	prev := color.NoColor
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = prev })
}

func TestRender(t *testing.T) {
	noColor(t)

	rc := run.New("library.example.org", false, nil)
	rc.AddScanned("Article", 2)
	rc.AddExported("Article")
	rc.RecordDuplicate("Article", "w1")
	rc.Fail(run.KindEnrichment, "Article", "w2", "embargo", fmt.Errorf("bad embargo"))

	s := New(rc, []string{"/out/library_example_org_works_data.json"}, rc.StartedAt.Add(2*time.Second))
	s.Transfer = &transfer.Summary{
		Downloaded: 1,
		Failed:     1,
		Location:   "/files/library_example_org",
		Failures:   []transfer.Failure{{FileSetID: "fs1", FileName: "fs1_scan.tif", Source: "gs://b/k", Error: "404"}},
	}

	var buf bytes.Buffer
	require.NoError(t, s.Render(&buf))
	out := buf.String()

	assert.Contains(t, out, "library.example.org export completed in 2.0s")
	assert.Contains(t, out, "Article")
	assert.Contains(t, out, "Article duplicates: w1")
	assert.Contains(t, out, "enrichment failures (1)")
	assert.Contains(t, out, "Article w2 [embargo]: bad embargo")
	assert.NotContains(t, out, "load failures")
	assert.Contains(t, out, "files downloaded: 1, failed: 1")
	assert.Contains(t, out, "fs1_scan.tif (fs1) from gs://b/k: 404")
}

func TestRenderAborted(t *testing.T) {
	noColor(t)

	rc := run.New("t", false, nil)
	rc.Fail(run.KindFatal, "", "", "", fmt.Errorf("connection refused"))

	var buf bytes.Buffer
	require.NoError(t, New(rc, nil, time.Now()).Render(&buf))
	assert.Contains(t, buf.String(), "aborted")
	assert.Contains(t, buf.String(), "fatal failures (1)")
}
