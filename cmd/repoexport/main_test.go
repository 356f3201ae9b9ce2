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

package main

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"testing"

	"github.com/fatih/color"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/walteh/repoexport/pkg/testutils"
)

const cname = "library.example.org"

type fixture struct {
	fx     *testutils.Fixture
	config string
	out    string
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	color.NoColor = true
	t.Cleanup(func() { color.NoColor = false })

	fx := testutils.NewFixture(t)
	fx.PutAccount("Library", cname, "library")
	fx.PutResource("a1", "Article", `{"title":["Maps of the Coast"],"visibility":"open","member_ids":[{"id":"fs1"}]}`)
	fx.PutResource("a2", "Article", `{"title":["Field Notes"],"visibility":"restricted"}`)
	fx.PutResource("fs1", "FileSet", `{"title":["coast.txt"],"original_file_id":"fm1"}`)
	fx.PutResource("fm1", "Hyrax::FileMetadata", `{"file_identifier":[{"id":"disk://coast.txt"}],"mime_type":["text/plain"]}`)
	fx.PutUser(1, "admin@example.org", "Admin")
	fx.PutRole(1, "admin", "", nil, 1)

	dir := t.TempDir()
	f := &fixture{fx: fx, out: filepath.Join(dir, "exports")}

	require.NoError(t, os.MkdirAll(filepath.Join(dir, "uploads"), 0755))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "uploads", "coast.txt"), []byte("sand"), 0644))

	f.config = filepath.Join(dir, "repoexport.yaml")
	content := fmt.Sprintf(`
database:
  driver: sqlite
  dsn: %q
index:
  kind: sql
output:
  dir: %q
transfer:
  source_root: %q
  dest_dir: %q
metrics_file: %q
`, fx.Path, f.out, filepath.Join(dir, "uploads"), filepath.Join(dir, "files"), filepath.Join(dir, "metrics", "repoexport.prom"))
	require.NoError(t, os.WriteFile(f.config, []byte(content), 0644))
	return f
}

func (f *fixture) run(t *testing.T, args ...string) (int, string, string) {
	t.Helper()
	var stdout, stderr bytes.Buffer
	code := execute(context.Background(), append([]string{"--config", f.config}, args...), &stdout, &stderr)
	return code, stdout.String(), stderr.String()
}

func readJSON(t *testing.T, path string, into any) {
	t.Helper()
	raw, err := os.ReadFile(path)
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(raw, into), "output is valid json: %s", raw)
}

func TestExitCodes(t *testing.T) {
	tests := []struct {
		name        string
		args        []string
		want        int
		wantStderr  string
		description string
	}{
		{
			name:        "no_command",
			args:        []string{},
			want:        1,
			wantStderr:  "a command is required",
			description: "should require a command",
		},
		{
			name:        "missing_tenant",
			args:        []string{"works"},
			want:        1,
			wantStderr:  "Usage:",
			description: "should print usage without a tenant",
		},
		{
			name:        "extra_tenant",
			args:        []string{"users", "a.example.org", "b.example.org"},
			want:        1,
			wantStderr:  "accepts 1 arg(s), received 2",
			description: "should reject more than one tenant",
		},
		{
			name:        "unknown_flag",
			args:        []string{"works", "--nope", "x"},
			want:        1,
			wantStderr:  "Usage:",
			description: "should treat a bad flag as a usage error",
		},
		{
			name:        "version",
			args:        []string{"version"},
			want:        0,
			description: "should print the version",
		},
		{
			name:        "version_with_args",
			args:        []string{"version", "x"},
			want:        1,
			description: "should reject arguments to version",
		},
		{
			name:        "missing_config",
			args:        []string{"--config", filepath.Join(t.TempDir(), "none.yaml"), "works", "x"},
			want:        1,
			wantStderr:  "reading config file",
			description: "should fail when nothing can be attempted",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			var stdout, stderr bytes.Buffer
			code := execute(context.Background(), tt.args, &stdout, &stderr)
			assert.Equal(t, tt.want, code, tt.description)
			if tt.wantStderr != "" {
				assert.Contains(t, stderr.String(), tt.wantStderr)
			}
		})
	}
}

func TestWorksCommand(t *testing.T) {
	f := newFixture(t)

	code, stdout, _ := f.run(t, "works", cname, "--batch-size", "1")
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "[exporting library.example.org]")
	assert.Contains(t, stdout, "library.example.org_works_data.json")

	var works map[string][]map[string]any
	readJSON(t, filepath.Join(f.out, cname+"_works_data.json"), &works)
	require.Len(t, works["Article"], 2)
	assert.Equal(t, "a1", works["Article"][0]["id"])
	files := works["Article"][0]["files"].([]any)
	require.Len(t, files, 1)

	var summary map[string]any
	readJSON(t, filepath.Join(f.out, cname+"_summary.json"), &summary)
	assert.Equal(t, false, summary["aborted"])

	metrics, err := os.ReadFile(filepath.Join(filepath.Dir(f.config), "metrics", "repoexport.prom"))
	require.NoError(t, err)
	assert.Contains(t, string(metrics), `repoexport_records_exported_total{work_type="Article"} 2`)
}

func TestWorksPublicOnly(t *testing.T) {
	f := newFixture(t)

	code, _, _ := f.run(t, "works", cname, "--public-only")
	require.Equal(t, 0, code)

	var works map[string][]map[string]any
	readJSON(t, filepath.Join(f.out, cname+"_works_data.json"), &works)
	require.Len(t, works["Article"], 1)
	assert.Equal(t, "a1", works["Article"][0]["id"], "restricted works are left out")
}

func TestAllCommandWithOutputOverride(t *testing.T) {
	f := newFixture(t)
	out := filepath.Join(t.TempDir(), "elsewhere")

	code, _, _ := f.run(t, "all", cname, "-o", out)
	require.Equal(t, 0, code)

	for _, name := range []string{"works_data", "users_data", "roles", "collections_data", "admin_sets", "access_controls", "summary"} {
		_, err := os.Stat(filepath.Join(out, cname+"_"+name+".json"))
		assert.NoError(t, err, name)
	}

	var users []map[string]any
	readJSON(t, filepath.Join(out, cname+"_users_data.json"), &users)
	require.Len(t, users, 1)
	assert.NotContains(t, users[0], "encrypted_password")
}

func TestUnknownTenantStillExitsZero(t *testing.T) {
	f := newFixture(t)

	code, _, _ := f.run(t, "roles", "nowhere.example.org")
	require.Equal(t, 0, code)

	var summary struct {
		Failures map[string][]map[string]any `json:"failures"`
	}
	readJSON(t, filepath.Join(f.out, "nowhere.example.org_summary.json"), &summary)
	require.Len(t, summary.Failures["configuration"], 1)
	assert.Equal(t, "nowhere.example.org", summary.Failures["configuration"][0]["id"])
}

func TestFilesCommand(t *testing.T) {
	f := newFixture(t)

	code, stdout, _ := f.run(t, "files", cname)
	require.Equal(t, 0, code)
	assert.Contains(t, stdout, "files downloaded: 1, failed: 0")

	got, err := os.ReadFile(filepath.Join(filepath.Dir(f.config), "files", "library_example_org", "fs1_coast.txt"))
	require.NoError(t, err)
	assert.Equal(t, "sand", string(got))
}
