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

// Package checksum parses fixity digests of the forms Hyrax stores.
//
//	urn:sha1:abc123  -> {algorithm: sha1, value: abc123}
//	sha1:abc123      -> {algorithm: sha1, value: abc123}
//	""               -> {}
package checksum

import (
	"strings"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/attrs"
)

// ErrUnsupportedDigest is returned when a digest value has a shape we do not read
var ErrUnsupportedDigest = errors.New("unsupported digest value")

// 🔐 Info is a parsed fixity digest. Unresolved fields are left out of the JSON.
type Info struct {
	Original  string `json:"original,omitempty"`
	Algorithm string `json:"algorithm,omitempty"`
	Value     string `json:"value,omitempty"`
}

// IsZero reports whether nothing was parsed
func (i Info) IsZero() bool {
	return i.Original == "" && i.Algorithm == "" && i.Value == ""
}

// 🔍 Parse reads a colon delimited digest.
//
// A leading "urn" token with at least three parts selects parts 2 and 3,
// otherwise any two or more parts select parts 1 and 2.
func Parse(digest string) Info {
	digest = strings.TrimSpace(digest)
	if digest == "" {
		return Info{}
	}

	info := Info{Original: digest}
	parts := strings.Split(digest, ":")

	switch {
	case len(parts) >= 3 && strings.EqualFold(parts[0], "urn"):
		info.Algorithm = strings.ToLower(parts[1])
		info.Value = parts[2]
	case len(parts) >= 2:
		info.Algorithm = strings.ToLower(parts[0])
		info.Value = parts[1]
	}

	return info
}

// 🔍 FromValue parses whatever a file metadata record stores under its
// checksum field: a string, a list of digests (first wins) or a URI
// reference bag.
func FromValue(v any) (Info, error) {
	switch t := v.(type) {
	case nil:
		return Info{}, nil
	case string:
		return Parse(t), nil
	case []any:
		if len(t) == 0 {
			return Info{}, nil
		}
		return FromValue(t[0])
	case *attrs.Bag:
		for _, k := range []string{"@id", "id", "@value"} {
			if s := t.String(k); s != "" {
				return Parse(s), nil
			}
		}
		return Info{}, nil
	default:
		return Info{}, errors.Errorf("parsing digest of type %T: %w", v, ErrUnsupportedDigest)
	}
}
