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

package transfer

import (
	"context"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"

	"github.com/walteh/repoexport/pkg/checksum"
	"github.com/walteh/repoexport/pkg/record"
	"github.com/walteh/repoexport/pkg/run"
	"github.com/walteh/repoexport/pkg/store"
)

// storage identifier fields of a file metadata record, in preference order
var sourceFields = []string{"file_identifier", "storage_url"}

// ItemFrom describes the original file of a file set
func ItemFrom(fileSet, original *store.Object) Item {
	it := Item{
		FileSetID: fileSet.ID,
		Title:     fileSet.Attrs.String("title"),
		MimeType:  original.Attrs.String("mime_type"),
	}
	for _, f := range sourceFields {
		if s := original.Attrs.String(f); s != "" {
			it.Source = s
			break
		}
	}
	raw, _ := original.Attrs.Get("checksum")
	it.Checksum, _ = checksum.FromValue(raw)
	return it
}

// 🔍 Collect lists the original file of every file set in the store. File
// sets without one are skipped; unreadable ones are recorded on rc.
func Collect(ctx context.Context, rc *run.Context, st store.Store, b *record.Builder) ([]Item, error) {
	var items []Item
	logger := zerolog.Ctx(ctx)

	err := st.Each(ctx, store.ModelFileSet, func(fs *store.Object) error {
		original, err := b.OriginalFile(ctx, fs)
		if err != nil {
			logger.Warn().Err(err).Str("id", fs.ID).Str("stage", "original_file").Msg("file set skipped")
			rc.Fail(run.KindTransfer, Section, fs.ID, "original_file", err)
			return nil
		}
		if original == nil {
			return nil
		}
		items = append(items, ItemFrom(fs, original))
		return nil
	})
	if err != nil {
		return items, errors.Errorf("listing file sets: %w", err)
	}
	return items, nil
}
