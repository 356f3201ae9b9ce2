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

package record

import (
	"encoding/json"

	"github.com/walteh/repoexport/pkg/acl"
	"github.com/walteh/repoexport/pkg/attrs"
	"github.com/walteh/repoexport/pkg/checksum"
	"github.com/walteh/repoexport/pkg/policy"
)

// 👁️ Effective is the derived access view of a record
type Effective struct {
	Visibility   string `json:"visibility"`
	UnderEmbargo bool   `json:"under_embargo"`
	UnderLease   bool   `json:"under_lease"`
}

func effective(visibility string, embargo, lease *policy.Policy) Effective {
	return Effective{
		Visibility:   visibility,
		UnderEmbargo: embargo.IsActive(),
		UnderLease:   lease.IsActive(),
	}
}

// 📎 FileRecord is one file set with its derived fields
type FileRecord struct {
	Attrs                *attrs.Bag
	Visibility           string
	Embargo              *policy.Policy
	Lease                *policy.Policy
	SizeBytes            int64
	Checksum             checksum.Info
	OriginalFileMetadata *attrs.Bag
	AccessControl        *acl.Snapshot
	AccessEffective      Effective
}

var fileDerived = []string{
	"visibility", "embargo", "lease", "size_bytes", "checksum",
	"original_file_metadata", "access_control", "access_effective",
}

// MarshalJSON flattens the attribute bag and appends the derived fields,
// which win over stored fields of the same name
func (f *FileRecord) MarshalJSON() ([]byte, error) {
	out := flatten(f.Attrs, fileDerived)
	out.Set("visibility", f.Visibility)
	out.Set("embargo", f.Embargo)
	out.Set("lease", f.Lease)
	out.Set("size_bytes", f.SizeBytes)
	out.Set("checksum", f.Checksum)
	meta := f.OriginalFileMetadata
	if meta == nil {
		meta = attrs.New()
	}
	out.Set("original_file_metadata", meta)
	out.Set("access_control", f.AccessControl)
	out.Set("access_effective", f.AccessEffective)
	return json.Marshal(out)
}

// 📚 WorkRecord is one work with its derived fields and nested file records
type WorkRecord struct {
	Attrs           *attrs.Bag
	Visibility      string
	Embargo         *policy.Policy
	Lease           *policy.Policy
	AdminSetRef     *attrs.Bag
	WorkflowStatus  *string
	CollectionRefs  []*attrs.Bag
	AccessControl   *acl.Snapshot
	AccessEffective Effective
	Files           []*FileRecord
}

var workDerived = []string{
	"visibility", "embargo", "lease", "admin_set_ref", "workflow_status",
	"collection_refs", "access_control", "access_effective", "files",
}

// MarshalJSON flattens the attribute bag and appends the derived fields
func (w *WorkRecord) MarshalJSON() ([]byte, error) {
	out := flatten(w.Attrs, workDerived)
	out.Set("visibility", w.Visibility)
	out.Set("embargo", w.Embargo)
	out.Set("lease", w.Lease)
	if w.AdminSetRef != nil {
		out.Set("admin_set_ref", w.AdminSetRef)
	} else {
		out.Set("admin_set_ref", nil)
	}
	out.Set("workflow_status", w.WorkflowStatus)

	refs := make([]any, 0, len(w.CollectionRefs))
	for _, c := range w.CollectionRefs {
		refs = append(refs, c)
	}
	out.Set("collection_refs", refs)

	out.Set("access_control", w.AccessControl)
	out.Set("access_effective", w.AccessEffective)

	files := make([]any, 0, len(w.Files))
	for _, f := range w.Files {
		files = append(files, f)
	}
	out.Set("files", files)
	return json.Marshal(out)
}

// flatten copies the stored fields that are not derived, keeping order. The
// copy is shallow; nested values are only read during encoding.
func flatten(b *attrs.Bag, derived []string) *attrs.Bag {
	out := attrs.New()
	for _, k := range b.Keys() {
		if contains(derived, k) {
			continue
		}
		v, _ := b.Get(k)
		out.Set(k, v)
	}
	return out
}

func contains(list []string, s string) bool {
	for _, v := range list {
		if v == s {
			return true
		}
	}
	return false
}
