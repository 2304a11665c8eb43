// Package types provides core data structures for sastscore
package types

import (
	"fmt"
	"os"
	"strings"
)

// ValidationError represents a configuration validation error
type ValidationError struct {
	Field   string
	Value   interface{}
	Message string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("config validation error: %s: %s (value: %v)", e.Field, e.Message, e.Value)
}

// ValidationErrors is a collection of validation errors
type ValidationErrors []ValidationError

func (e ValidationErrors) Error() string {
	if len(e) == 0 {
		return ""
	}

	var sb strings.Builder
	sb.WriteString("configuration validation failed:\n")
	for _, err := range e {
		sb.WriteString(fmt.Sprintf("  - %s: %s\n", err.Field, err.Message))
	}
	return sb.String()
}

// HasErrors returns true if there are any validation errors
func (e ValidationErrors) HasErrors() bool {
	return len(e) > 0
}

// ConfigValidator validates configuration settings
type ConfigValidator struct {
	errors ValidationErrors
}

// NewConfigValidator creates a new config validator
func NewConfigValidator() *ConfigValidator {
	return &ConfigValidator{}
}

// Validate performs comprehensive validation of the config
func (v *ConfigValidator) Validate(config *Config) ValidationErrors {
	v.errors = nil

	v.validateToolSettings(config.Tool)
	v.validateSuiteSettings(config.Suite)
	v.validateScoringSettings(config.Scoring)
	v.validateLoggingSettings(config.Logging)
	v.validateOutputSettings(config.Output)

	return v.errors
}

func (v *ConfigValidator) addError(field, message string, value interface{}) {
	v.errors = append(v.errors, ValidationError{
		Field:   field,
		Value:   value,
		Message: message,
	})
}

func (v *ConfigValidator) validateToolSettings(t ToolSettings) {
	if t.CompositeIDs && t.IDDelimiter == "" {
		v.addError("tool.id_delimiter", "required when composite_ids is enabled", t.IDDelimiter)
	}

	if len(t.Fields) == 0 {
		v.addError("tool.fields", "field mapping table is empty", "")
	}

	for i, f := range t.Fields {
		if strings.TrimSpace(f.Item) == "" {
			v.addError(fmt.Sprintf("tool.fields[%d].item", i), "item is required", "")
		}
		if strings.TrimSpace(f.Path) == "" {
			v.addError(fmt.Sprintf("tool.fields[%d].path", i), "path is required", "")
		}
		kind := f.NormalizedKind()
		if kind != FieldKindTag && kind != FieldKindAttribute {
			v.addError(fmt.Sprintf("tool.fields[%d].kind", i), "must be tag or attribute", f.Kind)
		}
	}
}

func (v *ConfigValidator) validateSuiteSettings(s SuiteSettings) {
	if !Language(s.Language).Valid() {
		v.addError("suite.language", "unknown language", s.Language)
	}
	if s.TrueRoot == "" {
		v.addError("suite.true_root", "should not be empty", s.TrueRoot)
	}
	if s.FalseRoot == "" {
		v.addError("suite.false_root", "should not be empty", s.FalseRoot)
	}
	if s.TrueRoot != "" && s.TrueRoot == s.FalseRoot {
		v.addError("suite.false_root", "must differ from true_root", s.FalseRoot)
	}
}

func (v *ConfigValidator) validateScoringSettings(s ScoringSettings) {
	if s.Threshold < 0 || s.Threshold > 1 {
		v.addError("scoring.threshold", "should be between 0 and 1", s.Threshold)
	}

	if s.FragmentMode != "" && s.FragmentMode != FragmentModeSet && s.FragmentMode != FragmentModeMultiset {
		v.addError("scoring.fragment_mode", "must be set or multiset", s.FragmentMode)
	}

	seen := make(map[string]string, len(s.Weights))
	for _, key := range s.weightKeys() {
		w := s.Weights[key]
		if w < 0 {
			v.addError("scoring.weights."+key, "cannot be negative", w)
		}
		id := NormalizeCategory(key)
		if prev, ok := seen[id]; ok && s.Weights[prev] != w {
			v.addError("scoring.weights."+key, "conflicts with "+prev+" for "+id, w)
			continue
		}
		seen[id] = key
	}
}

func (v *ConfigValidator) validateLoggingSettings(l LoggingSettings) {
	validLevels := map[string]bool{
		"debug": true, "info": true, "warn": true, "error": true, "": true,
	}
	if !validLevels[strings.ToLower(l.Level)] {
		v.addError("logging.level", "unknown level", l.Level)
	}

	if l.Format != "" && l.Format != "console" && l.Format != "json" {
		v.addError("logging.format", "unknown format", l.Format)
	}

	if l.MaxSize < 0 {
		v.addError("logging.max_size", "cannot be negative", l.MaxSize)
	}
	if l.MaxBackups < 0 {
		v.addError("logging.max_backups", "cannot be negative", l.MaxBackups)
	}
	if l.MaxAge < 0 {
		v.addError("logging.max_age", "cannot be negative", l.MaxAge)
	}
}

func (v *ConfigValidator) validateOutputSettings(o OutputSettings) {
	validFormats := map[string]bool{
		"json": true, "text": true, "txt": true, "markdown": true, "md": true,
	}

	for _, format := range OutputFormats(o.Format) {
		if !validFormats[format] {
			v.addError("output.format", "unknown format", format)
		}
	}
}

// OutputFormats splits a comma-separated format list
func OutputFormats(list string) []string {
	var out []string
	for _, f := range strings.Split(list, ",") {
		if f = strings.ToLower(strings.TrimSpace(f)); f != "" {
			out = append(out, f)
		}
	}
	return out
}

// ValidateConfig is a convenience function to validate a config
func ValidateConfig(config *Config) error {
	validator := NewConfigValidator()
	errors := validator.Validate(config)
	if errors.HasErrors() {
		return errors
	}
	return nil
}

// ValidateInputFile validates an input file exists and is readable
func ValidateInputFile(path string) error {
	info, err := os.Stat(path)
	if os.IsNotExist(err) {
		return fmt.Errorf("input file does not exist: %s", path)
	}
	if err != nil {
		return fmt.Errorf("cannot access input file: %w", err)
	}
	if info.IsDir() {
		return fmt.Errorf("input path is a directory, not a file: %s", path)
	}
	return nil
}
