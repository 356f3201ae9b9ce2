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

package worktype

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"gitlab.com/tozd/go/errors"
)

func TestDefault(t *testing.T) {
	all := Default.All()
	require.Len(t, all, len(names))
	assert.Equal(t, "AnschutzWork", all[0].Name)
	assert.Equal(t, "Image", all[len(all)-1].Name)

	d, err := Default.Lookup("Book")
	require.NoError(t, err)
	assert.Equal(t, Descriptor{Name: "Book", Model: "Book"}, d)

	_, err = Default.Lookup("Sculpture")
	assert.True(t, errors.Is(err, ErrUnknownWorkType))
}

func TestNewRegistry(t *testing.T) {
	r := NewRegistry(Descriptor{Name: "B"}, Descriptor{Name: "A", Model: "Hyrax::A"}, Descriptor{Name: "B", Model: "Other"})
	assert.Equal(t, []Descriptor{{Name: "B", Model: "B"}, {Name: "A", Model: "Hyrax::A"}}, r.All())
}

func TestSelect(t *testing.T) {
	r := NewRegistry(
		Descriptor{Name: "Article"}, Descriptor{Name: "Book"}, Descriptor{Name: "DenverBook"},
		Descriptor{Name: "DenverImage"}, Descriptor{Name: "Image"},
	)

	tests := []struct {
		name      string
		include   []string
		exclude   []string
		want      []string
		unmatched []string
	}{
		{name: "everything", want: []string{"Article", "Book", "DenverBook", "DenverImage", "Image"}},
		{name: "prefix", include: []string{"Denver*"}, want: []string{"DenverBook", "DenverImage"}},
		{name: "exclude", exclude: []string{"Denver*"}, want: []string{"Article", "Book", "Image"}},
		{name: "registry_order", include: []string{"Image", "Article"}, want: []string{"Article", "Image"}},
		{name: "unmatched", include: []string{"Book", "Sculpture"}, want: []string{"Book"}, unmatched: []string{"Sculpture"}},
		{name: "include_then_exclude", include: []string{"*Book"}, exclude: []string{"Denver*"}, want: []string{"Book"}},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, unmatched, err := r.Select(tt.include, tt.exclude)
			require.NoError(t, err)

			names := make([]string, 0, len(got))
			for _, d := range got {
				names = append(names, d.Name)
			}
			assert.Equal(t, tt.want, names)
			assert.Equal(t, tt.unmatched, unmatched)
		})
	}

	_, _, err := r.Select([]string{"[bad"}, nil)
	assert.Error(t, err)
}
