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
	"strings"

	"github.com/hashicorp/hcl/v2"
	"github.com/hashicorp/hcl/v2/gohcl"
	"github.com/hashicorp/hcl/v2/hclparse"
	"github.com/zclconf/go-cty/cty"
	"gitlab.com/tozd/go/errors"
)

func init() {
	Register(&HCLParser{})
}

// 🔧 HCLParser implements the Parser interface for HCL files
type HCLParser struct{}

// 🔍 CanParse checks if this parser can handle the given file
func (p *HCLParser) CanParse(filename string) bool {
	return strings.HasSuffix(filename, ".hcl")
}

// 📝 Parse parses the config from HCL
func (p *HCLParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	return parseHCL(data, "config.hcl")
}

func parseHCL(data []byte, filename string) (*Config, error) {
	parser := hclparse.NewParser()
	hclFile, diags := parser.ParseHCL(data, filename)
	if diags.HasErrors() {
		return nil, errors.Errorf("parsing HCL: %s", diags.Error())
	}

	// Create evaluation context
	evalCtx := &hcl.EvalContext{
		Variables: map[string]cty.Value{},
	}

	// Define HCL schema
	type hclConfig struct {
		Database struct {
			Driver        string `hcl:"driver"`
			DSN           string `hcl:"dsn"`
			DefaultSchema string `hcl:"default_schema,optional"`
		} `hcl:"database,block"`
		Index *struct {
			Kind    string `hcl:"kind,optional"`
			URL     string `hcl:"url,optional"`
			Core    string `hcl:"core,optional"`
			Timeout string `hcl:"timeout,optional"`
		} `hcl:"index,block"`
		Output *struct {
			Dir         string `hcl:"dir,optional"`
			Compression string `hcl:"compression,optional"`
		} `hcl:"output,block"`
		WorkTypes *struct {
			Include []string `hcl:"include,optional"`
			Exclude []string `hcl:"exclude,optional"`
		} `hcl:"work_types,block"`
		Dedup *struct {
			Kind     string `hcl:"kind,optional"`
			RedisURL string `hcl:"redis_url,optional"`
		} `hcl:"dedup,block"`
		Transfer *struct {
			DestDir     string `hcl:"dest_dir,optional"`
			SourceRoot  string `hcl:"source_root,optional"`
			Concurrency int    `hcl:"concurrency,optional"`
			MaxAttempts int    `hcl:"max_attempts,optional"`
			BearerToken string `hcl:"bearer_token,optional"`
		} `hcl:"transfer,block"`
		BatchSize      int    `hcl:"batch_size,optional"`
		RequestTimeout string `hcl:"request_timeout,optional"`
		MetricsFile    string `hcl:"metrics_file,optional"`
	}

	// Decode HCL
	var hclCfg hclConfig
	diags = gohcl.DecodeBody(hclFile.Body, evalCtx, &hclCfg)
	if diags.HasErrors() {
		return nil, errors.Errorf("decoding HCL: %s", diags.Error())
	}

	// Convert to model
	cfg := &Config{
		Database: DatabaseConfig{
			Driver:        hclCfg.Database.Driver,
			DSN:           hclCfg.Database.DSN,
			DefaultSchema: hclCfg.Database.DefaultSchema,
		},
		BatchSize:      hclCfg.BatchSize,
		RequestTimeout: hclCfg.RequestTimeout,
		MetricsFile:    hclCfg.MetricsFile,
	}

	if b := hclCfg.Index; b != nil {
		cfg.Index = IndexConfig{Kind: b.Kind, URL: b.URL, Core: b.Core, Timeout: b.Timeout}
	}
	if b := hclCfg.Output; b != nil {
		cfg.Output = OutputConfig{Dir: b.Dir, Compression: b.Compression}
	}
	if b := hclCfg.WorkTypes; b != nil {
		cfg.WorkTypes = WorkTypesConfig{Include: b.Include, Exclude: b.Exclude}
	}
	if b := hclCfg.Dedup; b != nil {
		cfg.Dedup = DedupConfig{Kind: b.Kind, RedisURL: b.RedisURL}
	}
	if b := hclCfg.Transfer; b != nil {
		cfg.Transfer = TransferConfig{
			DestDir:     b.DestDir,
			SourceRoot:  b.SourceRoot,
			Concurrency: b.Concurrency,
			MaxAttempts: b.MaxAttempts,
			BearerToken: b.BearerToken,
		}
	}

	return cfg, nil
}
