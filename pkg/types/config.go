package types

import (
	"sort"
	"strings"
)

// Config represents the application configuration
type Config struct {
	// Tool result schema and identifier conventions
	Tool ToolSettings `yaml:"tool" mapstructure:"tool"`

	// Test suite layout
	Suite SuiteSettings `yaml:"suite" mapstructure:"suite"`

	// Scoring settings
	Scoring ScoringSettings `yaml:"scoring" mapstructure:"scoring"`

	// Logging settings
	Logging LoggingSettings `yaml:"logging" mapstructure:"logging"`

	// Output settings
	Output OutputSettings `yaml:"output" mapstructure:"output"`
}

// ToolSettings describes how a tool's result documents are read
type ToolSettings struct {
	Name           string         `yaml:"name" mapstructure:"name"`
	IDDelimiter    string         `yaml:"id_delimiter" mapstructure:"id_delimiter"`
	CompositeIDs   bool           `yaml:"composite_ids" mapstructure:"composite_ids"`
	SkipNumericIDs bool           `yaml:"skip_numeric_ids" mapstructure:"skip_numeric_ids"`
	Fields         []FieldMapping `yaml:"fields" mapstructure:"fields"`
}

// FieldMapping is one row of a tool's field-mapping table
type FieldMapping struct {
	Item string `yaml:"item" mapstructure:"item"` // finding_type, file_name, line_number, function_name, weakness_id_N
	Path string `yaml:"path" mapstructure:"path"`
	Kind string `yaml:"kind" mapstructure:"kind"` // tag, attribute
}

// Field kinds
const (
	FieldKindTag       = "tag"
	FieldKindAttribute = "attribute"
)

// NormalizedKind returns the row's kind trimmed and lowercased
func (m FieldMapping) NormalizedKind() string {
	return strings.ToLower(strings.TrimSpace(m.Kind))
}

// SuiteSettings holds test suite layout configuration
type SuiteSettings struct {
	Language  string `yaml:"language" mapstructure:"language"` // c, cpp, java
	TrueRoot  string `yaml:"true_root" mapstructure:"true_root"`
	FalseRoot string `yaml:"false_root" mapstructure:"false_root"`
}

// ScoringSettings holds scoring configuration
type ScoringSettings struct {
	Threshold    float64            `yaml:"threshold" mapstructure:"threshold"`
	FragmentMode string             `yaml:"fragment_mode" mapstructure:"fragment_mode"` // set, multiset
	Weights      map[string]float64 `yaml:"weights" mapstructure:"weights"`             // category -> weight
}

// Fragment comparison modes
const (
	FragmentModeSet      = "set"
	FragmentModeMultiset = "multiset"
)

// LoggingSettings holds structured logging configuration
type LoggingSettings struct {
	Level      string `yaml:"level" mapstructure:"level"`   // debug, info, warn, error
	Format     string `yaml:"format" mapstructure:"format"` // console, json
	File       string `yaml:"file" mapstructure:"file"`     // empty = no file sink
	MaxSize    int    `yaml:"max_size" mapstructure:"max_size"`
	MaxBackups int    `yaml:"max_backups" mapstructure:"max_backups"`
	MaxAge     int    `yaml:"max_age" mapstructure:"max_age"`
	Compress   bool   `yaml:"compress" mapstructure:"compress"`
}

// OutputSettings holds output configuration
type OutputSettings struct {
	Format  string `yaml:"format" mapstructure:"format"` // comma-separated: text, json, markdown
	File    string `yaml:"file" mapstructure:"file"`
	NoColor bool   `yaml:"no_color" mapstructure:"no_color"`
	History string `yaml:"history" mapstructure:"history"` // JSONL run history, empty = off
}

// Weight returns the averaging weight for a category. An exact key wins;
// otherwise the first key in sorted order that normalizes to category.
func (s ScoringSettings) Weight(category string) float64 {
	if w, ok := s.Weights[category]; ok {
		return w
	}
	// viper lowercases map keys
	for _, k := range s.weightKeys() {
		if NormalizeCategory(k) == category {
			return s.Weights[k]
		}
	}
	return 1.0
}

func (s ScoringSettings) weightKeys() []string {
	keys := make([]string, 0, len(s.Weights))
	for k := range s.Weights {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	return keys
}

// DefaultFortifyFields returns the field mapping for Fortify FVDL documents
func DefaultFortifyFields() []FieldMapping {
	return []FieldMapping{
		{Item: "finding_type", Path: "Vulnerabilities/Vulnerability", Kind: FieldKindTag},
		{Item: "file_name", Path: "AnalysisInfo/Unified/Trace/Primary/Entry/Node/SourceLocation/path", Kind: FieldKindAttribute},
		{Item: "line_number", Path: "AnalysisInfo/Unified/Trace/Primary/Entry/Node/SourceLocation/line", Kind: FieldKindAttribute},
		{Item: "function_name", Path: "AnalysisInfo/Unified/Context/Function/name", Kind: FieldKindAttribute},
		{Item: "weakness_id_1", Path: "ClassInfo/Type", Kind: FieldKindTag},
		{Item: "weakness_id_2", Path: "ClassInfo/Subtype", Kind: FieldKindTag},
	}
}

// DefaultConfig returns a config with sensible defaults
func DefaultConfig() *Config {
	return &Config{
		Tool: ToolSettings{
			Name:           "fortify",
			IDDelimiter:    ":",
			CompositeIDs:   true,
			SkipNumericIDs: true,
			Fields:         DefaultFortifyFields(),
		},
		Suite: SuiteSettings{
			Language:  "c",
			TrueRoot:  "T/",
			FalseRoot: "F/",
		},
		Scoring: ScoringSettings{
			Threshold:    0.5,
			FragmentMode: FragmentModeSet,
			Weights:      make(map[string]float64),
		},
		Logging: LoggingSettings{
			Level:      "info",
			Format:     "console",
			MaxSize:    10,
			MaxBackups: 3,
			MaxAge:     28,
		},
		Output: OutputSettings{
			Format: "text",
		},
	}
}
