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

// Package worktype is the static registry of exportable Hyku work types.
package worktype

import (
	"github.com/bmatcuk/doublestar/v4"
	"gitlab.com/tozd/go/errors"
)

// ErrUnknownWorkType is returned for a tag that is not registered
var ErrUnknownWorkType = errors.New("unknown work type")

// 🏷️ Descriptor names a work type and the internal resource it is stored as
type Descriptor struct {
	Name  string
	Model string
}

var names = []string{
	"AnschutzWork", "ArchivalMaterial", "Article", "Book", "BookContribution", "ConferenceItem", "Dataset",
	"DataManagementPlan", "DenverArticle", "DenverBook", "DenverBookChapter", "DenverDataset", "DenverImage",
	"DenverMap", "DenverMultimedia", "DenverPresentationMaterial", "DenverSerialPublication",
	"DenverThesisDissertationCapstone", "ExhibitionItem", "GrantRecord", "LabNotebook", "NsuGenericWork",
	"NsuArticle", "OpenEducationalResource", "Report", "ResearchMethodology", "Software", "Minute",
	"TimeBasedMedia", "ThesisOrDissertation", "PacificArticle", "PacificBook", "PacificImage",
	"PacificThesisOrDissertation", "PacificBookChapter", "PacificMedia", "PacificNewsClipping",
	"PacificPresentation", "PacificTextWork", "PacificUncategorized", "Preprint", "Presentation",
	"RedlandsArticle", "RedlandsBook", "RedlandsChaptersAndBookSection", "RedlandsConferencesReportsAndPaper",
	"RedlandsOpenEducationalResource", "RedlandsMedia", "RedlandsStudentWork", "UbiquityTemplateWork",
	"UnaArchivalItem", "UnaArticle", "UnaBook", "UnaChaptersAndBookSection", "UnaExhibition", "UnaImage",
	"UnaOpenEducationalResource", "UnaPresentation", "UnaThesisOrDissertation", "UnaTimeBasedMedia", "UvaWork",
	"UngArticle", "UngBook", "UngBookChapter", "UngDataset", "UngImage", "UngThesisDissertation",
	"UngTimeBasedMedia", "UngPresentation", "UngArchivalMaterial", "LtuArticle", "LtuBook", "LtuBookChapter",
	"LtuDataset", "LtuImage", "LtuPresentation", "LtuThesisDissertation", "LtuTimeBasedMedia", "LtuSerial",
	"LtuImageArtifact", "OkcArticle", "OkcBook", "OkcArchivalAndLegalMaterial", "OkcGenericWork", "OkcImage",
	"OkcPresentation", "OkcTimeBasedMedia", "OkcChaptersAndBookSection", "BcArticle", "BcBook",
	"BcArchivalAndLegalMaterial", "BcImage", "BcPresentation", "BcTimeBasedMedia", "BcChaptersAndBookSection",
	"LacTimeBasedMedia", "LacArchivalMaterial", "LacImage", "LacThesisDissertation", "LacBook", "EslnArticle",
	"EslnBook", "EslnBookChapter", "EslnDataset", "EslnThesisDissertation", "EslnPresentation",
	"EslnArchivalMaterial", "EslnTemplateWork", "GenericWork", "Image",
}

// 📚 Registry is an ordered, immutable set of work types
type Registry struct {
	types []Descriptor
	index map[string]int
}

// 🏭 NewRegistry builds a registry, keeping the first of any repeated name
func NewRegistry(ds ...Descriptor) *Registry {
	r := &Registry{index: make(map[string]int, len(ds))}
	for _, d := range ds {
		if _, dup := r.index[d.Name]; dup {
			continue
		}
		if d.Model == "" {
			d.Model = d.Name
		}
		r.index[d.Name] = len(r.types)
		r.types = append(r.types, d)
	}
	return r
}

// Default is every work type a Hyku tenant may hold
var Default = func() *Registry {
	ds := make([]Descriptor, 0, len(names))
	for _, n := range names {
		ds = append(ds, Descriptor{Name: n, Model: n})
	}
	return NewRegistry(ds...)
}()

// All returns every descriptor in registry order
func (r *Registry) All() []Descriptor {
	return append([]Descriptor(nil), r.types...)
}

// 🔍 Lookup finds one descriptor by name
func (r *Registry) Lookup(name string) (Descriptor, error) {
	i, ok := r.index[name]
	if !ok {
		return Descriptor{}, errors.Errorf("%q: %w", name, ErrUnknownWorkType)
	}
	return r.types[i], nil
}

// 🎯 Select keeps the work types matching any include glob (all when none
// given) and no exclude glob, in registry order. An include pattern that
// matches nothing comes back in unmatched so the caller can report it.
func (r *Registry) Select(include, exclude []string) (selected []Descriptor, unmatched []string, err error) {
	for _, p := range append(append([]string{}, include...), exclude...) {
		if !doublestar.ValidatePattern(p) {
			return nil, nil, errors.Errorf("invalid work type pattern %q", p)
		}
	}

	hits := make(map[string]bool, len(include))
	for _, d := range r.types {
		keep := len(include) == 0
		for _, p := range include {
			if ok, _ := doublestar.Match(p, d.Name); ok {
				hits[p] = true
				keep = true
			}
		}
		if !keep {
			continue
		}
		if excluded(exclude, d.Name) {
			continue
		}
		selected = append(selected, d)
	}

	for _, p := range include {
		if !hits[p] {
			unmatched = append(unmatched, p)
		}
	}
	return selected, unmatched, nil
}

func excluded(patterns []string, name string) bool {
	for _, p := range patterns {
		if ok, _ := doublestar.Match(p, name); ok {
			return true
		}
	}
	return false
}
