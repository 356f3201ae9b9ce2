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
	"os"
	"path/filepath"
	"regexp"
	"strings"

	"github.com/rs/zerolog"
	"gitlab.com/tozd/go/errors"
)

// DotFile is the extension tried as YAML, then HCL
const DotFile = ".repoexport"

// 🎯 Load loads and validates the configuration. The format is picked by
// extension:
// - .json for JSON
// - .yaml or .yml for YAML
// - .hcl for HCL
// - .repoexport will try YAML then HCL
//
// ${NAME} references are replaced from the environment before parsing, so
// secrets such as the database DSN can stay out of the file.
func Load(ctx context.Context, path string) (*Config, error) {
	logger := zerolog.Ctx(ctx)
	logger.Debug().Str("path", path).Msg("loading configuration")

	data, err := os.ReadFile(path)
	if err != nil {
		return nil, errors.Errorf("reading config file: %w", err)
	}

	data, err = expandEnv(data)
	if err != nil {
		return nil, errors.Errorf("expanding %s: %w", path, err)
	}

	cfg, err := parse(ctx, path, data)
	if err != nil {
		return nil, err
	}
	cfg.location = path

	if err := cfg.Validate(); err != nil {
		return nil, errors.Errorf("validating config: %w", err)
	}

	logger.Debug().Str("config", cfg.String()).Msg("configuration loaded")
	return cfg, nil
}

func parse(ctx context.Context, path string, data []byte) (*Config, error) {
	name := strings.ToLower(filepath.Base(path))
	if name == DotFile || filepath.Ext(name) == DotFile {
		cfg, yamlErr := YAML.Parse(ctx, data)
		if yamlErr == nil {
			return cfg, nil
		}
		cfg, err := parseHCL(data, path)
		if err == nil {
			return cfg, nil
		}
		return nil, errors.Errorf("failed to parse %s as YAML (%s) or HCL: %w", path, yamlErr.Error(), err)
	}

	p := GetParser(name)
	if p == nil {
		return nil, errors.Errorf("unsupported config file extension %q", filepath.Ext(name))
	}

	cfg, err := p.Parse(ctx, data)
	if err != nil {
		return nil, errors.Errorf("parsing config: %w", err)
	}
	return cfg, nil
}

var envRef = regexp.MustCompile(`\$\{([A-Za-z_][A-Za-z0-9_]*)\}`)

// ErrUnsetVariable is returned when the config names a variable that is not set
var ErrUnsetVariable = errors.New("environment variable not set")

func expandEnv(data []byte) ([]byte, error) {
	var missing []string
	out := envRef.ReplaceAllFunc(data, func(ref []byte) []byte {
		name := string(envRef.FindSubmatch(ref)[1])
		v, ok := os.LookupEnv(name)
		if !ok {
			missing = append(missing, name)
			return ref
		}
		return []byte(v)
	})
	if len(missing) > 0 {
		return nil, errors.Errorf("%s: %w", strings.Join(missing, ", "), ErrUnsetVariable)
	}
	return out, nil
}
