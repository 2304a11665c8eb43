package types

import (
	"strconv"
)

// Logical field names of a tool field-mapping table
const (
	FieldFindingType  = "finding_type"
	FieldFileName     = "file_name"
	FieldLineNumber   = "line_number"
	FieldFunctionName = "function_name"

	// Rows whose item contains this marker are weakness identifier fragments
	WeaknessMarker = "weakness"
)

// RawFinding is one result record extracted from a tool document
type RawFinding struct {
	Index     int      `json:"index" yaml:"index"` // position within the document
	FilePath  string   `json:"file_path" yaml:"file_path"`
	Line      int      `json:"line" yaml:"line"`
	Function  string   `json:"function" yaml:"function"`
	Fragments []string `json:"fragments,omitempty" yaml:"fragments,omitempty"`
}

// Location returns file:line for log and display purposes
func (f RawFinding) Location() string {
	return f.FilePath + ":" + strconv.Itoa(f.Line)
}

// AcceptedIdentifier is a configured weakness identifier for a category
type AcceptedIdentifier struct {
	Value     string   `json:"value" yaml:"value"`
	Fragments []string `json:"fragments" yaml:"fragments"`
}

// Hit is a finding that matched an accepted identifier
type Hit struct {
	Finding    RawFinding         `json:"finding"`
	Identifier AcceptedIdentifier `json:"identifier"`
	TestCase   string             `json:"test_case"`
	Group      GroupKey           `json:"group"`

	// Function name used for scoring credit; reduced for type-A suites
	FunctionKey string `json:"function_key"`
}
