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
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/fatih/color"
	"github.com/pterm/pterm"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/run"
)

// spaces to indent list entries
const entryIndent = 4

// 🖨️ Render prints the summary: a header, a table of sections, failures
// grouped by kind and the transfer result
func (s *Summary) Render(w io.Writer) error {
	f := NewDefaultFormatter()
	var b strings.Builder

	state := color.GreenString("completed")
	if s.Aborted {
		state = color.RedString("aborted")
	}
	fmt.Fprintf(&b, "📦 %s export %s in %.1fs (run %s)\n", color.New(color.Bold).Sprint(s.Tenant), state, s.DurationSeconds, s.RunID)

	if len(s.Sections) > 0 {
		data := pterm.TableData{{"Section", "Scanned", "Exported", "Skipped", "Duplicates"}}
		for _, sec := range s.Sections {
			data = append(data, []string{
				sec.Name,
				strconv.Itoa(sec.Scanned),
				strconv.Itoa(sec.Exported),
				strconv.Itoa(sec.Skipped),
				strconv.Itoa(sec.Duplicates),
			})
		}
		table, err := pterm.DefaultTable.WithHasHeader().WithData(data).Srender()
		if err != nil {
			return errors.Errorf("rendering table: %w", err)
		}
		b.WriteString(table)
		b.WriteString("\n")
	}

	for _, sec := range s.Sections {
		if len(sec.DuplicateIDs) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s %s duplicates: %s\n", color.YellowString("⟳"), sec.Name, strings.Join(sec.DuplicateIDs, ", "))
	}

	for _, kind := range run.Kinds {
		fails := s.Failures[kind]
		if len(fails) == 0 {
			continue
		}
		fmt.Fprintf(&b, "%s %s failures (%d)\n", color.RedString("❌"), kind, len(fails))
		for _, fail := range fails {
			fmt.Fprintf(&b, "%s%s %s\n", strings.Repeat(" ", entryIndent), color.RedString("✗"), f.FormatFailure(fail))
		}
	}

	if t := s.Transfer; t != nil {
		fmt.Fprintf(&b, "🚚 files downloaded: %d, failed: %d, location: %s\n", t.Downloaded, t.Failed, t.Location)
		for _, fail := range t.Failures {
			fmt.Fprintf(&b, "%s%s %s (%s) from %s: %s\n", strings.Repeat(" ", entryIndent), color.RedString("✗"), fail.FileName, fail.FileSetID, fail.Source, fail.Error)
		}
	}

	if _, err := io.WriteString(w, b.String()); err != nil {
		return errors.Errorf("writing summary: %w", err)
	}
	return nil
}
