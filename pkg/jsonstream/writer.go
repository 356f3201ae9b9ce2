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

// Package jsonstream writes large JSON documents one record at a time.
//
// ObjectWriter produces {"key": [records...], ...} where a key only appears
// once its first record arrives. ArrayWriter produces [records...]. Neither
// ever holds more than the record being encoded.
package jsonstream

import (
	"bytes"
	"encoding/json"
	"io"

	"gitlab.com/tozd/go/errors"
)

var (
	// ErrState is returned when calls arrive out of order
	ErrState = errors.New("json stream used out of order")
	// ErrEncode marks a record that could not be encoded. Nothing was
	// written for it and the stream stays usable.
	ErrEncode = errors.New("record not encodable")
)

// encoder encodes one value at a time into a reused buffer
type encoder struct {
	w   io.Writer
	buf bytes.Buffer
	enc *json.Encoder
	err error
}

func newEncoder(w io.Writer) *encoder {
	e := &encoder{w: w}
	e.enc = json.NewEncoder(&e.buf)
	e.enc.SetEscapeHTML(false)
	return e
}

func (e *encoder) raw(s string) error {
	if e.err != nil {
		return e.err
	}
	if _, err := io.WriteString(e.w, s); err != nil {
		e.err = errors.Errorf("writing json: %w", err)
	}
	return e.err
}

// value encodes v fully before writing it, so a failed encode leaves the
// output untouched and the stream usable
func (e *encoder) value(prefix string, v any) error {
	if e.err != nil {
		return e.err
	}
	e.buf.Reset()
	if err := e.enc.Encode(v); err != nil {
		return errors.Errorf("%w: %s", ErrEncode, err.Error())
	}
	out := bytes.TrimRight(e.buf.Bytes(), "\n")
	if err := e.raw(prefix); err != nil {
		return err
	}
	if _, err := e.w.Write(out); err != nil {
		e.err = errors.Errorf("writing json: %w", err)
	}
	return e.err
}

// 📝 ObjectWriter streams an object whose values are arrays of records
type ObjectWriter struct {
	e *encoder

	opened  bool
	closed  bool
	keys    int
	pending string
	inKey   bool
	started bool
	records int
}

// 🏭 NewObjectWriter wraps w
func NewObjectWriter(w io.Writer) *ObjectWriter {
	return &ObjectWriter{e: newEncoder(w)}
}

// Open writes the opening brace
func (o *ObjectWriter) Open() error {
	if o.opened {
		return errors.Errorf("opening twice: %w", ErrState)
	}
	o.opened = true
	return o.e.raw("{")
}

// BeginKey starts a key. Nothing is written until the first record arrives.
func (o *ObjectWriter) BeginKey(name string) error {
	if !o.opened || o.closed || o.inKey {
		return errors.Errorf("begin key %q: %w", name, ErrState)
	}
	o.inKey = true
	o.started = false
	o.pending = name
	o.records = 0
	return nil
}

// WriteRecord appends one record to the current key
func (o *ObjectWriter) WriteRecord(v any) error {
	if !o.inKey {
		return errors.Errorf("record outside of a key: %w", ErrState)
	}

	prefix := ","
	if !o.started {
		key, err := json.Marshal(o.pending)
		if err != nil {
			return errors.Errorf("encoding key: %w", err)
		}
		prefix = string(key) + ":["
		if o.keys > 0 {
			prefix = "," + prefix
		}
	}

	if err := o.e.value(prefix, v); err != nil {
		return err
	}
	if !o.started {
		o.started = true
		o.keys++
	}
	o.records++
	return nil
}

// EndKey closes the current key's array, if it was ever opened
func (o *ObjectWriter) EndKey() error {
	if !o.inKey {
		return errors.Errorf("end key: %w", ErrState)
	}
	o.inKey = false
	if !o.started {
		return nil
	}
	return o.e.raw("]")
}

// Keys is the number of keys written so far
func (o *ObjectWriter) Keys() int {
	return o.keys
}

// Close ends any open key and writes the closing brace
func (o *ObjectWriter) Close() error {
	if o.closed {
		return nil
	}
	if !o.opened {
		if err := o.Open(); err != nil {
			return err
		}
	}
	if o.inKey {
		if err := o.EndKey(); err != nil {
			return err
		}
	}
	o.closed = true
	return o.e.raw("}")
}

// 📝 ArrayWriter streams a top-level array of records
type ArrayWriter struct {
	e       *encoder
	opened  bool
	closed  bool
	records int
}

// 🏭 NewArrayWriter wraps w
func NewArrayWriter(w io.Writer) *ArrayWriter {
	return &ArrayWriter{e: newEncoder(w)}
}

// Open writes the opening bracket
func (a *ArrayWriter) Open() error {
	if a.opened {
		return errors.Errorf("opening twice: %w", ErrState)
	}
	a.opened = true
	return a.e.raw("[")
}

// WriteRecord appends one record
func (a *ArrayWriter) WriteRecord(v any) error {
	if !a.opened || a.closed {
		return errors.Errorf("record outside of the array: %w", ErrState)
	}
	prefix := ""
	if a.records > 0 {
		prefix = ","
	}
	if err := a.e.value(prefix, v); err != nil {
		return err
	}
	a.records++
	return nil
}

// Records is the number of records written so far
func (a *ArrayWriter) Records() int {
	return a.records
}

// Close writes the closing bracket
func (a *ArrayWriter) Close() error {
	if a.closed {
		return nil
	}
	if !a.opened {
		if err := a.Open(); err != nil {
			return err
		}
	}
	a.closed = true
	return a.e.raw("]")
}
