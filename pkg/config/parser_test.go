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

package config

import (
	"context"
	"testing"

	"github.com/stretchr/testify/assert"
)

type stubParser struct {
	suffix string
}

func (p *stubParser) CanParse(filename string) bool {
	return len(filename) >= len(p.suffix) && filename[len(filename)-len(p.suffix):] == p.suffix
}

func (p *stubParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	return &Config{}, nil
}

// 🧪 TestParserRegistration tests the parser registration system
func TestParserRegistration(t *testing.T) {
	// Save original parsers
	originalParsers := parsers
	defer func() {
		parsers = originalParsers
	}()

	parsers = nil

	stub := &stubParser{suffix: ".toml"}
	Register(stub)
	assert.Len(t, parsers, 1, "should have 1 parser registered")
	assert.Same(t, stub, GetParser("config.toml"))
	assert.Nil(t, GetParser("config.yaml"), "unregistered formats have no parser")
}

// 🧪 TestGetParser tests that the built in parsers claim their extensions
func TestGetParser(t *testing.T) {
	tests := []struct {
		filename string
		want     Parser
	}{
		{"config.yaml", YAML},
		{"config.yml", YAML},
		{"Config.YAML", YAML},
		{"config.json", JSON},
		{"CONFIG.JSON", JSON},
		{"config.hcl", &HCLParser{}},
		{"config.ini", nil},
	}

	for _, tt := range tests {
		t.Run(tt.filename, func(t *testing.T) {
			got := GetParser(tt.filename)
			if tt.want == nil {
				assert.Nil(t, got)
				return
			}
			if _, ok := tt.want.(*StrictParser); ok {
				assert.Same(t, tt.want, got)
				return
			}
			assert.IsType(t, tt.want, got)
		})
	}
}
