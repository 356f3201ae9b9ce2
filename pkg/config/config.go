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
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"gitlab.com/tozd/go/errors"
	"gopkg.in/yaml.v3"

	"github.com/walteh/repoexport/pkg/database"
	"github.com/walteh/repoexport/pkg/jsonstream"
	"github.com/walteh/repoexport/pkg/walker"
	"github.com/walteh/repoexport/pkg/worktype"
)

// 🔌 Parser is the interface for config parsers
type Parser interface {
	// 📝 Parse parses the config from bytes
	Parse(ctx context.Context, data []byte) (*Config, error)

	// 🔍 CanParse checks if this parser can handle the given file
	CanParse(filename string) bool
}

var (
	// 🗺️ parsers is a list of available parsers
	parsers []Parser
)

// 📝 Register registers a parser
func Register(p Parser) {
	parsers = append(parsers, p)
}

// 🎯 GetParser returns a parser that can handle the given file
func GetParser(filename string) Parser {
	for _, p := range parsers {
		if p.CanParse(filename) {
			return p
		}
	}
	return nil
}

// Defaults applied by Validate
const (
	DefaultRequestTimeout      = 30 * time.Second
	DefaultTransferConcurrency = 4
	DefaultTransferAttempts    = 3
	DefaultSchema              = "public"
)

// Index kinds
const (
	IndexSolr = "solr"
	IndexSQL  = "sql"
)

// Dedup kinds
const (
	DedupMemory = "memory"
	DedupRedis  = "redis"
)

// 🗄️ DatabaseConfig locates the object store
type DatabaseConfig struct {
	Driver        string `json:"driver" yaml:"driver"`
	DSN           string `json:"dsn" yaml:"dsn"`
	DefaultSchema string `json:"default_schema,omitempty" yaml:"default_schema,omitempty"`
}

// 🔎 IndexConfig locates the search index
type IndexConfig struct {
	Kind    string `json:"kind" yaml:"kind"`
	URL     string `json:"url,omitempty" yaml:"url,omitempty"`
	Core    string `json:"core,omitempty" yaml:"core,omitempty"`
	Timeout string `json:"timeout,omitempty" yaml:"timeout,omitempty"`
}

// 📁 OutputConfig says where exports go
type OutputConfig struct {
	Dir         string `json:"dir" yaml:"dir"`
	Compression string `json:"compression,omitempty" yaml:"compression,omitempty"`
}

// 🏷️ WorkTypesConfig narrows the work types with glob patterns
type WorkTypesConfig struct {
	Include []string `json:"include,omitempty" yaml:"include,omitempty"`
	Exclude []string `json:"exclude,omitempty" yaml:"exclude,omitempty"`
}

// 👀 DedupConfig picks where seen ids are kept during a scan
type DedupConfig struct {
	Kind     string `json:"kind,omitempty" yaml:"kind,omitempty"`
	RedisURL string `json:"redis_url,omitempty" yaml:"redis_url,omitempty"`
}

// 🚚 TransferConfig configures original file downloads
type TransferConfig struct {
	DestDir     string `json:"dest_dir,omitempty" yaml:"dest_dir,omitempty"`
	SourceRoot  string `json:"source_root,omitempty" yaml:"source_root,omitempty"`
	Concurrency int    `json:"concurrency,omitempty" yaml:"concurrency,omitempty"`
	MaxAttempts int    `json:"max_attempts,omitempty" yaml:"max_attempts,omitempty"`
	BearerToken string `json:"bearer_token,omitempty" yaml:"bearer_token,omitempty"`
}

// 📚 Config represents the complete configuration
type Config struct {
	Database       DatabaseConfig  `json:"database" yaml:"database"`
	Index          IndexConfig     `json:"index" yaml:"index"`
	Output         OutputConfig    `json:"output" yaml:"output"`
	BatchSize      int             `json:"batch_size,omitempty" yaml:"batch_size,omitempty"`
	RequestTimeout string          `json:"request_timeout,omitempty" yaml:"request_timeout,omitempty"`
	WorkTypes      WorkTypesConfig `json:"work_types,omitempty" yaml:"work_types,omitempty"`
	Dedup          DedupConfig     `json:"dedup,omitempty" yaml:"dedup,omitempty"`
	Transfer       TransferConfig  `json:"transfer,omitempty" yaml:"transfer,omitempty"`
	MetricsFile    string          `json:"metrics_file,omitempty" yaml:"metrics_file,omitempty"`

	location       string
	dialect        database.Dialect
	compression    jsonstream.Compression
	requestTimeout time.Duration
	indexTimeout   time.Duration
}

// 🔍 Validate checks the configuration and fills in defaults
func (cfg *Config) Validate() error {
	dialect, err := database.ParseDialect(cfg.Database.Driver)
	if err != nil {
		return errors.Errorf("database.driver: %w", err)
	}
	cfg.dialect = dialect
	cfg.Database.Driver = string(dialect)
	if cfg.Database.DSN == "" {
		return errors.Errorf("database.dsn is required")
	}
	if cfg.Database.DefaultSchema == "" {
		cfg.Database.DefaultSchema = DefaultSchema
	}

	switch cfg.Index.Kind {
	case "":
		cfg.Index.Kind = IndexSolr
		fallthrough
	case IndexSolr:
		if cfg.Index.URL == "" {
			return errors.Errorf("index.url is required for a solr index")
		}
	case IndexSQL:
	default:
		return errors.Errorf("index.kind %q is not one of solr, sql", cfg.Index.Kind)
	}

	if cfg.Output.Dir == "" {
		cfg.Output.Dir = "."
	}
	cfg.Output.Dir = filepath.Clean(cfg.Output.Dir)
	comp, err := jsonstream.ParseCompression(cfg.Output.Compression)
	if err != nil {
		return errors.Errorf("output.compression: %w", err)
	}
	cfg.compression = comp

	if cfg.BatchSize == 0 {
		cfg.BatchSize = walker.DefaultBatchSize
	}
	if cfg.BatchSize < 0 {
		return errors.Errorf("batch_size must be positive, got %d", cfg.BatchSize)
	}

	if cfg.requestTimeout, err = parseDuration("request_timeout", cfg.RequestTimeout, DefaultRequestTimeout); err != nil {
		return err
	}
	if cfg.indexTimeout, err = parseDuration("index.timeout", cfg.Index.Timeout, cfg.requestTimeout); err != nil {
		return err
	}

	if _, _, err := worktype.Default.Select(cfg.WorkTypes.Include, cfg.WorkTypes.Exclude); err != nil {
		return errors.Errorf("work_types: %w", err)
	}

	switch cfg.Dedup.Kind {
	case "":
		cfg.Dedup.Kind = DedupMemory
	case DedupMemory:
	case DedupRedis:
		if cfg.Dedup.RedisURL == "" {
			return errors.Errorf("dedup.redis_url is required for redis dedup")
		}
	default:
		return errors.Errorf("dedup.kind %q is not one of memory, redis", cfg.Dedup.Kind)
	}

	if cfg.Transfer.Concurrency == 0 {
		cfg.Transfer.Concurrency = DefaultTransferConcurrency
	}
	if cfg.Transfer.MaxAttempts == 0 {
		cfg.Transfer.MaxAttempts = DefaultTransferAttempts
	}
	if cfg.Transfer.Concurrency < 0 || cfg.Transfer.MaxAttempts < 0 {
		return errors.Errorf("transfer.concurrency and transfer.max_attempts must be positive")
	}
	if cfg.Transfer.DestDir != "" {
		cfg.Transfer.DestDir = filepath.Clean(cfg.Transfer.DestDir)
	}

	return nil
}

func parseDuration(field, value string, def time.Duration) (time.Duration, error) {
	if strings.TrimSpace(value) == "" {
		return def, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, errors.Errorf("%s: %w", field, err)
	}
	if d <= 0 {
		return 0, errors.Errorf("%s must be positive, got %s", field, value)
	}
	return d, nil
}

// Dialect is the parsed database driver
func (cfg *Config) Dialect() database.Dialect {
	return cfg.dialect
}

// Compression is the parsed output compression
func (cfg *Config) Compression() jsonstream.Compression {
	return cfg.compression
}

// Timeout bounds each store call
func (cfg *Config) Timeout() time.Duration {
	return cfg.requestTimeout
}

// IndexTimeout bounds each index request. It defaults to Timeout.
func (cfg *Config) IndexTimeout() time.Duration {
	return cfg.indexTimeout
}

// Location is the file the config was loaded from
func (cfg *Config) Location() string {
	return cfg.location
}

// 📝 String returns a string representation of the config
func (cfg *Config) String() string {
	return fmt.Sprintf("%s database, %s index -> %s", cfg.Database.Driver, cfg.Index.Kind, cfg.Output.Dir)
}

// 🔧 StrictParser decodes one format straight into Config, rejecting fields
// Config does not know
type StrictParser struct {
	Format   string
	Suffixes []string
	decode   func(data []byte, cfg *Config) error
}

// Built in strict parsers
var (
	YAML = &StrictParser{Format: "YAML", Suffixes: []string{".yaml", ".yml"}, decode: decodeYAML}
	JSON = &StrictParser{Format: "JSON", Suffixes: []string{".json"}, decode: decodeJSON}
)

func init() {
	Register(YAML)
	Register(JSON)
}

// 🔍 CanParse matches the file name against the format's suffixes
func (p *StrictParser) CanParse(filename string) bool {
	name := strings.ToLower(strings.TrimSpace(filename))
	for _, suffix := range p.Suffixes {
		if strings.HasSuffix(name, suffix) {
			return true
		}
	}
	return false
}

// 📝 Parse decodes the config
func (p *StrictParser) Parse(ctx context.Context, data []byte) (*Config, error) {
	var cfg Config
	if err := p.decode(data, &cfg); err != nil {
		return nil, errors.Errorf("parsing %s: %w", p.Format, err)
	}
	return &cfg, nil
}

func decodeYAML(data []byte, cfg *Config) error {
	decoder := yaml.NewDecoder(bytes.NewReader(data))
	decoder.KnownFields(true)
	return decoder.Decode(cfg)
}

func decodeJSON(data []byte, cfg *Config) error {
	decoder := json.NewDecoder(bytes.NewReader(data))
	decoder.DisallowUnknownFields()
	return decoder.Decode(cfg)
}
