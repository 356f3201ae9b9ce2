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
	"os"
	"path/filepath"
	"time"

	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/text"
	"github.com/walteh/repoexport/pkg/transfer"
)

// PathSuffix names the summary file
const PathSuffix = "summary"

// Path is where a tenant's summary goes
func Path(dir, cname string) string {
	return text.OutputPath(dir, cname, PathSuffix)
}

// 📋 Summary is the report of one tenant run
type Summary struct {
	RunID           string                            `json:"run_id"`
	Tenant          string                            `json:"tenant"`
	PublicOnly      bool                              `json:"public_only"`
	StartedAt       time.Time                         `json:"started_at"`
	FinishedAt      time.Time                         `json:"finished_at"`
	DurationSeconds float64                           `json:"duration_seconds"`
	Aborted         bool                              `json:"aborted"`
	Sections        []run.SectionStats                `json:"sections"`
	Failures        map[run.FailureKind][]run.Failure `json:"failures"`
	Outputs         []string                          `json:"outputs"`
	Transfer        *transfer.Summary                 `json:"transfer,omitempty"`
}

// 🏭 New snapshots a run. Every failure kind is present, empty when clean.
func New(rc *run.Context, outputs []string, finished time.Time) *Summary {
	s := &Summary{
		RunID:           rc.RunID.String(),
		Tenant:          rc.Tenant,
		PublicOnly:      rc.PublicOnly,
		StartedAt:       rc.StartedAt.UTC(),
		FinishedAt:      finished.UTC(),
		DurationSeconds: finished.Sub(rc.StartedAt).Seconds(),
		Aborted:         rc.Fatal(),
		Sections:        rc.Sections(),
		Failures:        make(map[run.FailureKind][]run.Failure, len(run.Kinds)),
		Outputs:         append([]string{}, outputs...),
	}
	for _, k := range run.Kinds {
		s.Failures[k] = []run.Failure{}
	}
	for _, f := range rc.Failures() {
		s.Failures[f.Kind] = append(s.Failures[f.Kind], f)
	}
	return s
}

// FailureCount totals every kind
func (s *Summary) FailureCount() int {
	n := 0
	for _, fs := range s.Failures {
		n += len(fs)
	}
	return n
}

// Exported totals every section
func (s *Summary) Exported() int {
	n := 0
	for _, sec := range s.Sections {
		n += sec.Exported
	}
	return n
}

// 💾 WriteJSON writes the summary through a temp file and a rename, so a
// reader never sees half a summary
func (s *Summary) WriteJSON(path string) error {
	data, err := json.MarshalIndent(s, "", "  ")
	if err != nil {
		return errors.Errorf("encoding summary: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return errors.Errorf("creating parent directories: %w", err)
	}

	tempPath := path + ".tmp"
	if err := os.WriteFile(tempPath, append(data, '\n'), 0644); err != nil {
		return errors.Errorf("writing temp file: %w", err)
	}

	if err := os.Rename(tempPath, path); err != nil {
		os.Remove(tempPath)
		return errors.Errorf("renaming temp file: %w", err)
	}

	return nil
}
