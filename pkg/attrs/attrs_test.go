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

package attrs

import (
	"encoding/json"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestBagKeepsInsertionOrder(t *testing.T) {
	raw := `{"zeta":1,"alpha":"a","mid":[1,"two",{"@id":"x"}],"nested":{"b":true,"a":null}}`

	b, err := Parse([]byte(raw))
	require.NoError(t, err, "parsing should succeed")
	assert.Equal(t, []string{"zeta", "alpha", "mid", "nested"}, b.Keys(), "keys should keep source order")

	out, err := json.Marshal(b)
	require.NoError(t, err, "marshaling should succeed")
	assert.Equal(t, raw, string(out), "round trip should be byte identical")
}

func TestBagNullIsNotAbsent(t *testing.T) {
	b, err := Parse([]byte(`{"title":null}`))
	require.NoError(t, err)

	v, ok := b.Get("title")
	assert.True(t, ok, "explicit null should be present")
	assert.Nil(t, v, "explicit null should be nil")

	_, ok = b.Get("missing")
	assert.False(t, ok, "missing field should be absent")
	assert.True(t, IsBlank(v), "null should be blank")
}

func TestBagScalars(t *testing.T) {
	b, err := Parse([]byte(`{
		"plain": " open ",
		"list": ["", "first", "second"],
		"typed": [{"@value": "2030-01-01T00:00:00Z", "@type": "xsd:dateTime"}],
		"ref": [{"id": "abc-123"}],
		"size": ["42"],
		"count": 7,
		"empty": []
	}`))
	require.NoError(t, err)

	tests := []struct {
		key  string
		want string
	}{
		{"plain", "open"},
		{"list", "first"},
		{"typed", "2030-01-01T00:00:00Z"},
		{"ref", "abc-123"},
		{"count", "7"},
		{"empty", ""},
		{"missing", ""},
	}
	for _, tt := range tests {
		t.Run(tt.key, func(t *testing.T) {
			assert.Equal(t, tt.want, b.String(tt.key))
		})
	}

	assert.Equal(t, []string{"first", "second"}, b.Strings("list"))

	n, ok := b.Int64("size")
	assert.True(t, ok, "string numbers should parse")
	assert.Equal(t, int64(42), n)

	n, ok = b.Int64("count")
	assert.True(t, ok)
	assert.Equal(t, int64(7), n)

	_, ok = b.Int64("plain")
	assert.False(t, ok, "non numeric should not parse")
}

func TestBagSetKeepsPosition(t *testing.T) {
	b := New()
	b.Set("a", 1)
	b.Set("b", 2)
	b.Set("a", 3)
	assert.Equal(t, []string{"a", "b"}, b.Keys())

	v, _ := b.Get("a")
	assert.Equal(t, 3, v)

	b.Delete("a")
	assert.Equal(t, []string{"b"}, b.Keys())
	assert.False(t, b.Has("a"))
}

func TestBagExceptAndMerge(t *testing.T) {
	b := FromMap(map[string]any{
		"id":         "1",
		"created_at": "then",
		"size":       10,
		"nested":     map[string]any{"x": "y"},
	})

	trimmed := b.Except("id", "created_at")
	assert.Equal(t, []string{"nested", "size"}, trimmed.Keys())
	assert.True(t, b.Has("id"), "except should not mutate the source")

	trimmed.Bag("nested").Set("x", "changed")
	assert.Equal(t, "y", b.Bag("nested").String("x"), "except should deep copy")

	other := New()
	other.Set("size", 20)
	other.Set("extra", true)
	b.Merge(other)
	v, _ := b.Get("size")
	assert.Equal(t, 20, v, "merge should override")
	assert.True(t, b.Has("extra"))
}

func TestNilBag(t *testing.T) {
	var b *Bag
	assert.Equal(t, 0, b.Len())
	assert.Equal(t, "", b.String("x"))
	assert.Nil(t, b.Bags("x"))
	assert.Equal(t, 0, b.Clone().Len())
	assert.False(t, b.Has("x"))
	assert.Nil(t, b.Keys())
	assert.NotPanics(t, func() { b.Delete("x") })
	assert.Equal(t, 0, b.Except("x").Len())
	assert.Panics(t, func() { b.Set("x", 1) }, "writes need a bag")

	var zero Bag
	zero.Set("x", 1)
	assert.Equal(t, []string{"x"}, zero.Keys(), "the zero value takes writes")
}

func TestParseRejectsNonObject(t *testing.T) {
	_, err := Parse([]byte(`[1,2]`))
	assert.Error(t, err)

	b, err := Parse([]byte(`   `))
	require.NoError(t, err)
	assert.Equal(t, 0, b.Len())
}
