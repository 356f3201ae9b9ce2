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

package checksum

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
)

func TestParse(t *testing.T) {
	tests := []struct {
		name   string
		digest string
		want   Info
	}{
		{
			name:   "urn_form",
			digest: "urn:sha1:abc123",
			want:   Info{Original: "urn:sha1:abc123", Algorithm: "sha1", Value: "abc123"},
		},
		{
			name:   "bare_form",
			digest: "sha1:abc123",
			want:   Info{Original: "sha1:abc123", Algorithm: "sha1", Value: "abc123"},
		},
		{
			name:   "upper_case_algorithm",
			digest: "urn:SHA256:DEADBEEF",
			want:   Info{Original: "urn:SHA256:DEADBEEF", Algorithm: "sha256", Value: "DEADBEEF"},
		},
		{
			name:   "three_parts_without_urn",
			digest: "md5:abc:extra",
			want:   Info{Original: "md5:abc:extra", Algorithm: "md5", Value: "abc"},
		},
		{
			name:   "single_token",
			digest: "abc123",
			want:   Info{Original: "abc123"},
		},
		{
			name:   "empty",
			digest: "",
			want:   Info{},
		},
		{
			name:   "whitespace",
			digest: "   ",
			want:   Info{},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, Parse(tt.digest))
		})
	}
}

func TestInfoOmitsUnresolvedFields(t *testing.T) {
	out, err := json.Marshal(Parse(""))
	require.NoError(t, err)
	assert.JSONEq(t, `{}`, string(out), "empty digest should encode as empty object")

	out, err = json.Marshal(Parse("abc"))
	require.NoError(t, err)
	assert.JSONEq(t, `{"original":"abc"}`, string(out))
}

func TestFromValue(t *testing.T) {
	ref := attrs.New()
	ref.Set("@id", "urn:sha1:feed")

	tests := []struct {
		name    string
		value   any
		want    Info
		wantErr bool
	}{
		{name: "nil", value: nil, want: Info{}},
		{name: "string", value: "sha1:abc", want: Info{Original: "sha1:abc", Algorithm: "sha1", Value: "abc"}},
		{name: "list_first_wins", value: []any{"urn:md5:one", "urn:sha1:two"}, want: Info{Original: "urn:md5:one", Algorithm: "md5", Value: "one"}},
		{name: "empty_list", value: []any{}, want: Info{}},
		{name: "uri_bag", value: []any{ref}, want: Info{Original: "urn:sha1:feed", Algorithm: "sha1", Value: "feed"}},
		{name: "unsupported", value: true, wantErr: true},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := FromValue(tt.value)
			if tt.wantErr {
				require.Error(t, err)
				assert.True(t, errors.Is(err, ErrUnsupportedDigest))
				assert.True(t, got.IsZero())
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}
