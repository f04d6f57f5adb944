// Package config resolves runtime settings from the config file,
// environment, and CLI flags, in that precedence order. Every resolved
// value remembers where it came from, so `factgate config` style
// debugging can show exactly which source won.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/factgate/factgate/internal/validate"
)

type ValueSource string

const (
	SourceUnknown ValueSource = "unknown"
	SourceConfig  ValueSource = "config"
	SourceEnv     ValueSource = "env"
	SourceCLI     ValueSource = "cli"
	SourceDefault ValueSource = "default"
)

type ResolvedValue struct {
	Value  string      `json:"value"`
	Source ValueSource `json:"source"`
	From   string      `json:"from,omitempty"`
}

// ResolveOptions carries the CLI flag values that can override file and
// environment settings.
type ResolveOptions struct {
	ConfigPath    string
	CLIEntitiesDB string
	CLIOutputDir  string
	CLIAuditDB    string
	CLINeo4jURI   string
}

// ResolvedConfig is the full resolved runtime configuration.
type ResolvedConfig struct {
	ConfigPath string `json:"config_path"`

	EntitiesDB ResolvedValue `json:"entities_db"`
	OutputDir  ResolvedValue `json:"output_dir"`
	AuditDB    ResolvedValue `json:"audit_db"`
	Workers    ResolvedValue `json:"workers"`

	Neo4jURI      ResolvedValue `json:"neo4j_uri"`
	Neo4jUser     ResolvedValue `json:"neo4j_user"`
	Neo4jPassword ResolvedValue `json:"neo4j_password"`

	validation validationOverrides
}

// validationOverrides holds optional threshold overrides from the config
// file. Pointers distinguish "not set" from an explicit zero.
type validationOverrides struct {
	RequireDomainContext      *bool    `yaml:"require_domain_context"`
	MinConfidenceDictionary   *float64 `yaml:"min_confidence_dictionary"`
	MinConfidenceModel        *float64 `yaml:"min_confidence_model"`
	MinEntityLength           *int     `yaml:"min_entity_length"`
	OnlyDictionaryForNew      *bool    `yaml:"only_dictionary_for_new"`
	RequireBothEndpointsExist *bool    `yaml:"require_both_endpoints_exist"`
	MinRelationConfidence     *float64 `yaml:"min_relation_confidence"`
	MinExtractedConfidence    *float64 `yaml:"min_extracted_confidence"`
}

type fileConfig struct {
	EntitiesDB string `yaml:"entities_db"`
	OutputDir  string `yaml:"output_dir"`
	AuditDB    string `yaml:"audit_db"`
	Workers    string `yaml:"workers"`
	Neo4j      struct {
		URI      string `yaml:"uri"`
		User     string `yaml:"user"`
		Password string `yaml:"password"`
	} `yaml:"neo4j"`
	Validation validationOverrides `yaml:"validation"`
}

func DefaultConfigPath() string {
	home, _ := os.UserHomeDir()
	return filepath.Join(home, ".factgate", "config.yaml")
}

func ResolveConfig(opts ResolveOptions) (ResolvedConfig, error) {
	path := strings.TrimSpace(opts.ConfigPath)
	if path == "" {
		path = DefaultConfigPath()
	}

	out := ResolvedConfig{ConfigPath: path}

	cfg, err := loadConfig(path)
	if err != nil {
		return out, err
	}

	if cfg != nil {
		apply(&out.EntitiesDB, cfg.EntitiesDB, SourceConfig, path)
		apply(&out.OutputDir, cfg.OutputDir, SourceConfig, path)
		apply(&out.AuditDB, cfg.AuditDB, SourceConfig, path)
		apply(&out.Workers, cfg.Workers, SourceConfig, path)
		apply(&out.Neo4jURI, cfg.Neo4j.URI, SourceConfig, path)
		apply(&out.Neo4jUser, cfg.Neo4j.User, SourceConfig, path)
		apply(&out.Neo4jPassword, cfg.Neo4j.Password, SourceConfig, path)
		out.validation = cfg.Validation
	}

	applyEnv(&out.EntitiesDB, "FACTGATE_ENTITIES_DB")
	applyEnv(&out.OutputDir, "FACTGATE_OUTPUT_DIR")
	applyEnv(&out.AuditDB, "FACTGATE_AUDIT_DB")
	applyEnv(&out.Workers, "FACTGATE_WORKERS")
	applyEnv(&out.Neo4jURI, "FACTGATE_NEO4J_URI")
	applyEnv(&out.Neo4jUser, "FACTGATE_NEO4J_USER")
	applyEnv(&out.Neo4jPassword, "FACTGATE_NEO4J_PASSWORD")

	apply(&out.EntitiesDB, opts.CLIEntitiesDB, SourceCLI, "--entities-db")
	apply(&out.OutputDir, opts.CLIOutputDir, SourceCLI, "--out")
	apply(&out.AuditDB, opts.CLIAuditDB, SourceCLI, "--audit-db")
	apply(&out.Neo4jURI, opts.CLINeo4jURI, SourceCLI, "--neo4j")

	for _, v := range []*ResolvedValue{&out.EntitiesDB, &out.OutputDir, &out.AuditDB} {
		if v.Value != "" {
			v.Value = expandUserPath(v.Value)
		}
	}

	return out, nil
}

// ValidationConfig returns the strict defaults with any file overrides
// applied.
func (r ResolvedConfig) ValidationConfig() validate.Config {
	cfg := validate.DefaultConfig()
	ov := r.validation

	if ov.RequireDomainContext != nil {
		cfg.RequireDomainContext = *ov.RequireDomainContext
	}
	if ov.MinConfidenceDictionary != nil {
		cfg.MinConfidenceDictionary = *ov.MinConfidenceDictionary
	}
	if ov.MinConfidenceModel != nil {
		cfg.MinConfidenceModel = *ov.MinConfidenceModel
	}
	if ov.MinEntityLength != nil {
		cfg.MinEntityLength = *ov.MinEntityLength
	}
	if ov.OnlyDictionaryForNew != nil {
		cfg.OnlyDictionaryForNew = *ov.OnlyDictionaryForNew
	}
	if ov.RequireBothEndpointsExist != nil {
		cfg.RequireBothEndpointsExist = *ov.RequireBothEndpointsExist
	}
	if ov.MinRelationConfidence != nil {
		cfg.MinRelationConfidence = *ov.MinRelationConfidence
	}
	if ov.MinExtractedConfidence != nil {
		cfg.MinExtractedConfidence = *ov.MinExtractedConfidence
	}
	return cfg
}

func apply(dst *ResolvedValue, raw string, source ValueSource, from string) {
	v := strings.TrimSpace(raw)
	if v == "" {
		return
	}
	*dst = ResolvedValue{Value: v, Source: source, From: from}
}

func applyEnv(dst *ResolvedValue, envKey string) {
	if v := strings.TrimSpace(os.Getenv(envKey)); v != "" {
		*dst = ResolvedValue{Value: v, Source: SourceEnv, From: envKey}
	}
}

func loadConfig(path string) (*fileConfig, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	var cfg fileConfig
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("parsing %s: %w", path, err)
	}
	return &cfg, nil
}

func expandUserPath(path string) string {
	if strings.HasPrefix(path, "~/") {
		home, err := os.UserHomeDir()
		if err == nil {
			return filepath.Join(home, path[2:])
		}
	}
	return path
}
