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
	"bytes"
	"encoding/json"

	"gitlab.com/tozd/go/errors"
)

// 📝 MarshalJSON encodes the bag as a JSON object in insertion order
func (b *Bag) MarshalJSON() ([]byte, error) {
	var buf bytes.Buffer
	buf.WriteByte('{')
	if b != nil {
		for i, k := range b.keys {
			if i > 0 {
				buf.WriteByte(',')
			}
			if err := encodeInto(&buf, k); err != nil {
				return nil, errors.Errorf("encoding key %q: %w", k, err)
			}
			buf.WriteByte(':')
			if err := encodeInto(&buf, b.vals[k]); err != nil {
				return nil, errors.Errorf("encoding field %q: %w", k, err)
			}
		}
	}
	buf.WriteByte('}')
	return buf.Bytes(), nil
}

func encodeInto(buf *bytes.Buffer, v any) error {
	var tmp bytes.Buffer
	enc := json.NewEncoder(&tmp)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(v); err != nil {
		return err
	}
	buf.Write(bytes.TrimRight(tmp.Bytes(), "\n"))
	return nil
}

// 📖 UnmarshalJSON decodes a JSON object, keeping field order. Numbers are
// kept as json.Number and nested objects become *Bag.
func (b *Bag) UnmarshalJSON(data []byte) error {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	tok, err := dec.Token()
	if err != nil {
		return errors.Errorf("reading object start: %w", err)
	}
	if tok == nil {
		*b = Bag{vals: make(map[string]any)}
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return errors.Errorf("expected JSON object, got %v", tok)
	}

	parsed, err := decodeObject(dec)
	if err != nil {
		return err
	}
	*b = *parsed
	return nil
}

// Parse decodes raw JSON object bytes into a new bag
func Parse(data []byte) (*Bag, error) {
	b := New()
	if len(bytes.TrimSpace(data)) == 0 {
		return b, nil
	}
	if err := b.UnmarshalJSON(data); err != nil {
		return nil, err
	}
	return b, nil
}

func decodeObject(dec *json.Decoder) (*Bag, error) {
	b := New()
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return nil, errors.Errorf("reading key: %w", err)
		}
		key, ok := tok.(string)
		if !ok {
			return nil, errors.Errorf("expected string key, got %v", tok)
		}
		v, err := decodeValue(dec)
		if err != nil {
			return nil, errors.Errorf("decoding %q: %w", key, err)
		}
		b.Set(key, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Errorf("reading object end: %w", err)
	}
	return b, nil
}

func decodeArray(dec *json.Decoder) ([]any, error) {
	out := []any{}
	for dec.More() {
		v, err := decodeValue(dec)
		if err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	if _, err := dec.Token(); err != nil {
		return nil, errors.Errorf("reading array end: %w", err)
	}
	return out, nil
}

func decodeValue(dec *json.Decoder) (any, error) {
	tok, err := dec.Token()
	if err != nil {
		return nil, err
	}
	d, ok := tok.(json.Delim)
	if !ok {
		return tok, nil
	}
	switch d {
	case '{':
		return decodeObject(dec)
	case '[':
		return decodeArray(dec)
	default:
		return nil, errors.Errorf("unexpected delimiter %q", d)
	}
}
