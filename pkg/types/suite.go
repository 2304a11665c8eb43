package types

import (
	"slices"
	"sort"
	"strings"
	"time"
)

// Label marks a test case as containing a real weakness (TRUE) or not (FALSE)
type Label string

// Labels
const (
	LabelTrue  Label = "TRUE"
	LabelFalse Label = "FALSE"
)

// LabelOf maps a manifest boolean to a Label
func LabelOf(positive bool) Label {
	if positive {
		return LabelTrue
	}
	return LabelFalse
}

// Positive reports whether the label is TRUE
func (l Label) Positive() bool {
	return l == LabelTrue
}

// SuiteType identifies the naming convention of a test suite
type SuiteType string

// Suite types
const (
	SuiteJuliet SuiteType = "juliet" // type-A
	SuiteKDM    SuiteType = "kdm"    // type-B
)

// Valid reports whether the suite type is known
func (s SuiteType) Valid() bool {
	return s == SuiteJuliet || s == SuiteKDM
}

// Language of the test suite sources
type Language string

// Languages
const (
	LanguageC    Language = "c"
	LanguageCPP  Language = "cpp"
	LanguageJava Language = "java"
)

// Valid reports whether the language is known
func (l Language) Valid() bool {
	switch l {
	case LanguageC, LanguageCPP, LanguageJava:
		return true
	}
	return false
}

// GroupKey identifies a CategoryGroup
type GroupKey struct {
	Category string `json:"category" yaml:"category"`
	Label    Label  `json:"label" yaml:"label"`
}

func (k GroupKey) String() string {
	return k.Category + "/" + string(k.Label)
}

// Less orders keys by category, then TRUE before FALSE
func (k GroupKey) Less(o GroupKey) bool {
	if k.Category != o.Category {
		return k.Category < o.Category
	}
	return k.Label.Positive() && !o.Label.Positive()
}

// TestCase is the unit of credit: one canonical test-case name within a group
type TestCase struct {
	Name             string    `json:"name"`
	SuiteType        SuiteType `json:"suite_type"`
	Label            Label     `json:"label"`
	Language         Language  `json:"language"`
	Hits             []Hit     `json:"hits,omitempty"`
	Opportunities    int       `json:"opportunities"`
	OpportunityNames []string  `json:"opportunity_names,omitempty"`
	Score            int       `json:"score"`
	Percent          Ratio     `json:"percent"`
	InCorpus         bool      `json:"in_corpus"` // listed in the corpus manifest
}

// OpportunityStatus reports whether a named opportunity was hit
type OpportunityStatus struct {
	Name  string `json:"name"`
	Found bool   `json:"found"`
}

// OpportunityStatus returns found/missed for every named opportunity.
// An opportunity is found when a hit's function contains its name.
func (tc *TestCase) OpportunityStatus() []OpportunityStatus {
	out := make([]OpportunityStatus, 0, len(tc.OpportunityNames))
	for _, name := range tc.OpportunityNames {
		st := OpportunityStatus{Name: name}
		for _, h := range tc.Hits {
			if name != "" && strings.Contains(h.Finding.Function, name) {
				st.Found = true
				break
			}
		}
		out = append(out, st)
	}
	return out
}

// CategoryGroup holds all test cases for one (category, label) pair
type CategoryGroup struct {
	Key              GroupKey    `json:"key"`
	SuiteType        SuiteType   `json:"suite_type"`
	Policy           string      `json:"policy"`
	Projects         []string    `json:"projects"`
	TestCases        []*TestCase `json:"test_cases"`
	UsedIdentifiers  []string    `json:"used_identifiers"`
	CaseCount        int         `json:"case_count"`
	OpportunityTotal int         `json:"opportunity_total"`
	HitTotal         int         `json:"hit_total"`
	PercentHits      Ratio       `json:"percent_hits"`
}

// TestCase returns the named test case
func (g *CategoryGroup) TestCase(name string) (*TestCase, bool) {
	for _, tc := range g.TestCases {
		if tc.Name == name {
			return tc, true
		}
	}
	return nil, false
}

// HitCount returns the number of hits across all test cases
func (g *CategoryGroup) HitCount() int {
	n := 0
	for _, tc := range g.TestCases {
		n += len(tc.Hits)
	}
	return n
}

// CategoryScore is the per-category precision/recall row
type CategoryScore struct {
	Category  string  `json:"category"`
	TCTrue    int     `json:"tc_true"`
	TCFalse   int     `json:"tc_false"`
	TP        int     `json:"tp"`
	FP        int     `json:"fp"`
	Precision Ratio   `json:"precision"`
	Recall    Ratio   `json:"recall"`
	Weight    float64 `json:"weight"`

	AcceptedIdentifiers []string `json:"accepted_identifiers"`
	UsedIdentifiers     []string `json:"used_identifiers"`
	UnusedIdentifiers   []string `json:"unused_identifiers"`

	NoAcceptedIdentifiers bool `json:"no_accepted_identifiers,omitempty"`
	EmptyPositiveCategory bool `json:"empty_positive_category,omitempty"`
	NoHits                bool `json:"no_hits,omitempty"`
}

// SuiteTotals sums the category rows
type SuiteTotals struct {
	TCTrue  int `json:"tc_true"`
	TCFalse int `json:"tc_false"`
	TP      int `json:"tp"`
	FP      int `json:"fp"`
}

// Verdict is the pass/fail outcome of a run
type Verdict string

// Verdicts
const (
	VerdictPass Verdict = "PASS"
	VerdictFail Verdict = "FAIL"
)

// DiagnosticKind classifies a recovered per-record problem
type DiagnosticKind string

// Diagnostic kinds
const (
	DiagMissingLocation          DiagnosticKind = "missing_location"
	DiagMissingRequiredField     DiagnosticKind = "missing_required_field"
	DiagHitsWithoutOpportunities DiagnosticKind = "hits_without_opportunities"
)

// Diagnostic records a recovered problem with a single record or test case
type Diagnostic struct {
	Kind     DiagnosticKind `json:"kind"`
	Project  string         `json:"project,omitempty"`
	Category string         `json:"category,omitempty"`
	Index    int            `json:"index,omitempty"`
	Field    string         `json:"field,omitempty"`
	Message  string         `json:"message"`
}

// DefectKind classifies a scoring defect
type DefectKind string

// Defect kinds
const (
	DefectEmptyPositiveCategory DefectKind = "empty_positive_category"
)

// Defect records a category that could not be scored completely
type Defect struct {
	Kind     DefectKind `json:"kind"`
	Category string     `json:"category"`
	Message  string     `json:"message"`
}

// ProjectStats holds per-document extraction counters
type ProjectStats struct {
	Name        string    `json:"name"`
	Category    string    `json:"category"`
	Label       Label     `json:"label"`
	SuiteType   SuiteType `json:"suite_type"`
	ResultFile  string    `json:"result_file"`
	Records     int       `json:"records"`
	Findings    int       `json:"findings"`
	OutOfScope  int       `json:"out_of_scope"`
	Diagnostics int       `json:"diagnostics"`
	Matched     int       `json:"matched"`
}

// FunctionStat tallies hits and opportunities for one reduced function name
type FunctionStat struct {
	Name          string `json:"name"`
	Group         string `json:"group"` // B2G, G2B, other
	Hits          int    `json:"hits"`
	Misses        int    `json:"misses"`
	Opportunities int    `json:"opportunities"`
	Percent       Ratio  `json:"percent"`
}

// FunctionGroupStat rolls FunctionStats up by group
type FunctionGroupStat struct {
	Group         string `json:"group"`
	Hits          int    `json:"hits"`
	Opportunities int    `json:"opportunities"`
	Percent       Ratio  `json:"percent"`
}

// FunctionAnalytics describes which good-variant functions were hit
type FunctionAnalytics struct {
	Functions    []FunctionStat      `json:"functions,omitempty"`
	Groups       []FunctionGroupStat `json:"groups,omitempty"`
	ManualReview []string            `json:"manual_review,omitempty"`
}

// HitRow is a flattened hit for display, sorted by file then line
type HitRow struct {
	Category         string    `json:"category"`
	SuiteType        SuiteType `json:"suite_type"`
	Label            Label     `json:"label"`
	File             string    `json:"file"`
	Line             int       `json:"line"`
	Function         string    `json:"function"`
	TestCase         string    `json:"test_case"`
	Identifier       string    `json:"identifier"`
	Score            int       `json:"score"`
	Opportunities    int       `json:"opportunities"`
	Percent          Ratio     `json:"percent"`
	OpportunityNames []string  `json:"opportunity_names,omitempty"`
	Duplicate        bool      `json:"duplicate,omitempty"` // another hit shares file and line
}

// SuiteResult is the complete output of a scoring run
type SuiteResult struct {
	RunID      string        `json:"run_id"`
	Tool       string        `json:"tool"`
	Language   Language      `json:"language"`
	StartedAt  time.Time     `json:"started_at"`
	FinishedAt time.Time     `json:"finished_at"`
	Duration   time.Duration `json:"duration"`

	Groups     []*CategoryGroup `json:"groups"`
	Categories []CategoryScore  `json:"categories"`
	Projects   []ProjectStats   `json:"projects"`
	Totals     SuiteTotals      `json:"totals"`

	PrecisionAvg Ratio   `json:"precision_avg"`
	RecallAvg    Ratio   `json:"recall_avg"`
	Overall      Ratio   `json:"overall"`
	Threshold    float64 `json:"threshold"`
	Verdict      Verdict `json:"verdict"`

	Analytics   FunctionAnalytics `json:"analytics"`
	Diagnostics []Diagnostic      `json:"diagnostics,omitempty"`
	Defects     []Defect          `json:"defects,omitempty"`
}

// Group returns the group with the given key
func (r *SuiteResult) Group(key GroupKey) (*CategoryGroup, bool) {
	for _, g := range r.Groups {
		if g.Key == key {
			return g, true
		}
	}
	return nil, false
}

// Category returns the score row for a category id
func (r *SuiteResult) Category(id string) (*CategoryScore, bool) {
	id = NormalizeCategory(id)
	for i := range r.Categories {
		if r.Categories[i].Category == id {
			return &r.Categories[i], true
		}
	}
	return nil, false
}

// UsedIdentifiers returns the accepted identifiers that matched in a category
func (r *SuiteResult) UsedIdentifiers(category string) []string {
	if c, ok := r.Category(category); ok {
		return c.UsedIdentifiers
	}
	return nil
}

// UnusedIdentifiers returns the accepted identifiers that never matched in a category
func (r *SuiteResult) UnusedIdentifiers(category string) []string {
	if c, ok := r.Category(category); ok {
		return c.UnusedIdentifiers
	}
	return nil
}

// DiagnosticCount returns the number of diagnostics of the given kind
func (r *SuiteResult) DiagnosticCount(kind DiagnosticKind) int {
	n := 0
	for _, d := range r.Diagnostics {
		if d.Kind == kind {
			n++
		}
	}
	return n
}

// HitRows flattens every hit in the run, sorted by file then line.
// Rows sharing a file and line are flagged as duplicates.
func (r *SuiteResult) HitRows() []HitRow {
	var rows []HitRow
	for _, g := range r.Groups {
		for _, tc := range g.TestCases {
			for _, h := range tc.Hits {
				rows = append(rows, HitRow{
					Category:         g.Key.Category,
					SuiteType:        g.SuiteType,
					Label:            g.Key.Label,
					File:             h.Finding.FilePath,
					Line:             h.Finding.Line,
					Function:         h.FunctionKey,
					TestCase:         tc.Name,
					Identifier:       h.Identifier.Value,
					Score:            tc.Score,
					Opportunities:    tc.Opportunities,
					Percent:          tc.Percent,
					OpportunityNames: slices.Clone(tc.OpportunityNames),
				})
			}
		}
	}

	sort.SliceStable(rows, func(i, j int) bool {
		if rows[i].File != rows[j].File {
			return rows[i].File < rows[j].File
		}
		return rows[i].Line < rows[j].Line
	})

	for i := 1; i < len(rows); i++ {
		if rows[i].File == rows[i-1].File && rows[i].Line == rows[i-1].Line {
			rows[i].Duplicate = true
			rows[i-1].Duplicate = true
		}
	}
	return rows
}
