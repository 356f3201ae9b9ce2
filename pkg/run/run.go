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

// Package run holds the mutable state of one tenant export: counters,
// suppressed duplicates and recorded failures. It is passed explicitly to the
// walker, the record builder and the exporter.
package run

import (
	"encoding/json"
	"sync"
	"time"

	"github.com/google/uuid"
)

// 🏷️ FailureKind classifies what went wrong and how far it reached
type FailureKind string

const (
	// KindConfiguration is a bad tenant or work type; that unit is skipped
	KindConfiguration FailureKind = "configuration"
	// KindLoad is an index or store read failure for one id; the id is skipped
	KindLoad FailureKind = "load"
	// KindEnrichment is a degraded field on a record that was still written
	KindEnrichment FailureKind = "enrichment"
	// KindTransfer is a file that could not be copied
	KindTransfer FailureKind = "transfer"
	// KindFatal aborted the tenant
	KindFatal FailureKind = "fatal"
)

// Kinds lists every kind in reporting order
var Kinds = []FailureKind{KindFatal, KindConfiguration, KindLoad, KindEnrichment, KindTransfer}

// ❌ Failure is one recorded problem
type Failure struct {
	Kind    FailureKind
	Section string
	ID      string
	Stage   string
	Err     error
}

// MarshalJSON renders the error as its message
func (f Failure) MarshalJSON() ([]byte, error) {
	msg := ""
	if f.Err != nil {
		msg = f.Err.Error()
	}
	return json.Marshal(struct {
		Kind    FailureKind `json:"kind"`
		Section string      `json:"section,omitempty"`
		ID      string      `json:"id,omitempty"`
		Stage   string      `json:"stage,omitempty"`
		Error   string      `json:"error"`
	}{f.Kind, f.Section, f.ID, f.Stage, msg})
}

// 📊 SectionStats counts one work type or export category
type SectionStats struct {
	Name         string   `json:"name"`
	Scanned      int      `json:"scanned"`
	Exported     int      `json:"exported"`
	Skipped      int      `json:"skipped"`
	Duplicates   int      `json:"duplicates"`
	DuplicateIDs []string `json:"duplicate_ids"`
}

// 👀 Observer is told about every counted event, for metrics
type Observer interface {
	Exported(section string)
	Duplicate(section string)
	Failed(kind FailureKind)
}

// 🎯 Context is the state of one tenant run
type Context struct {
	RunID      uuid.UUID
	Tenant     string
	PublicOnly bool
	StartedAt  time.Time

	observer Observer

	mu       sync.Mutex
	order    []string
	sections map[string]*SectionStats
	failures []Failure
}

// 🏭 New creates a context with a fresh run id
func New(tenant string, publicOnly bool, observer Observer) *Context {
	return &Context{
		RunID:      uuid.New(),
		Tenant:     tenant,
		PublicOnly: publicOnly,
		StartedAt:  time.Now(),
		observer:   observer,
		sections:   make(map[string]*SectionStats),
	}
}

// section must be called with mu held
func (c *Context) section(name string) *SectionStats {
	s, ok := c.sections[name]
	if !ok {
		s = &SectionStats{Name: name, DuplicateIDs: []string{}}
		c.sections[name] = s
		c.order = append(c.order, name)
	}
	return s
}

// Touch makes sure a section shows up in the summary even with no records
func (c *Context) Touch(section string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.section(section)
}

// AddScanned counts ids returned by the index for a section
func (c *Context) AddScanned(section string, n int) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.section(section).Scanned += n
}

// AddExported counts one written record
func (c *Context) AddExported(section string) {
	c.mu.Lock()
	c.section(section).Exported++
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.Exported(section)
	}
}

// AddSkipped counts one record left out on purpose, such as a non public
// work in a public-only run
func (c *Context) AddSkipped(section string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.section(section).Skipped++
}

// RecordDuplicate counts a suppressed duplicate id
func (c *Context) RecordDuplicate(section, id string) {
	c.mu.Lock()
	s := c.section(section)
	s.Duplicates++
	s.DuplicateIDs = append(s.DuplicateIDs, id)
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.Duplicate(section)
	}
}

// RecordFailure keeps a failure for the summary
func (c *Context) RecordFailure(f Failure) {
	c.mu.Lock()
	c.failures = append(c.failures, f)
	if f.Section != "" {
		c.section(f.Section)
	}
	c.mu.Unlock()

	if c.observer != nil {
		c.observer.Failed(f.Kind)
	}
}

// Fail is RecordFailure with positional arguments
func (c *Context) Fail(kind FailureKind, section, id, stage string, err error) {
	c.RecordFailure(Failure{Kind: kind, Section: section, ID: id, Stage: stage, Err: err})
}

// Sections returns a copy of every section in first-seen order
func (c *Context) Sections() []SectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]SectionStats, 0, len(c.order))
	for _, name := range c.order {
		s := *c.sections[name]
		s.DuplicateIDs = append([]string{}, s.DuplicateIDs...)
		out = append(out, s)
	}
	return out
}

// Section returns a copy of one section's stats
func (c *Context) Section(name string) SectionStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	s, ok := c.sections[name]
	if !ok {
		return SectionStats{Name: name, DuplicateIDs: []string{}}
	}
	cp := *s
	cp.DuplicateIDs = append([]string{}, s.DuplicateIDs...)
	return cp
}

// Failures returns a copy of every failure, optionally narrowed to kinds
func (c *Context) Failures(kinds ...FailureKind) []Failure {
	c.mu.Lock()
	defer c.mu.Unlock()

	out := make([]Failure, 0, len(c.failures))
	for _, f := range c.failures {
		if len(kinds) == 0 || hasKind(kinds, f.Kind) {
			out = append(out, f)
		}
	}
	return out
}

// Fatal reports whether the run was aborted
func (c *Context) Fatal() bool {
	return len(c.Failures(KindFatal)) > 0
}

func hasKind(kinds []FailureKind, k FailureKind) bool {
	for _, want := range kinds {
		if want == k {
			return true
		}
	}
	return false
}
