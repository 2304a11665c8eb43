package types

import (
	"encoding/json"
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"
)

func TestNormalizeCategory(t *testing.T) {
	tests := []struct {
		in   string
		want string
	}{
		{"121", "CWE121"},
		{"cwe121", "CWE121"},
		{"CWE-121", "CWE121"},
		{"CWE_78", "CWE078"},
		{"  cwe7 ", "CWE007"},
		{"CWE1021", "CWE1021"},
		{"custom", "CUSTOM"},
		{"", ""},
	}

	for _, tt := range tests {
		t.Run(tt.in, func(t *testing.T) {
			if got := NormalizeCategory(tt.in); got != tt.want {
				t.Errorf("NormalizeCategory(%q) = %q, want %q", tt.in, got, tt.want)
			}
		})
	}
}

func TestRatio(t *testing.T) {
	r := NewRatio(8, 10)
	if !r.Defined || r.Value != 0.8 {
		t.Errorf("expected defined 0.8, got %+v", r)
	}
	if r.String() != "0.80" {
		t.Errorf("expected 0.80, got %s", r.String())
	}
	if r.Percent() != "80.0%" {
		t.Errorf("expected 80.0%%, got %s", r.Percent())
	}

	na := NewRatio(0, 0)
	if na.Defined {
		t.Error("expected undefined ratio for zero denominator")
	}
	if na.String() != "N/A" || na.Percent() != "N/A" {
		t.Errorf("expected N/A, got %s / %s", na.String(), na.Percent())
	}
}

func TestRatio_JSON(t *testing.T) {
	data, err := json.Marshal(struct {
		P Ratio `json:"p"`
		R Ratio `json:"r"`
	}{P: NA, R: DefinedRatio(0.5)})
	if err != nil {
		t.Fatalf("marshal: %v", err)
	}
	if string(data) != `{"p":null,"r":0.5}` {
		t.Errorf("unexpected JSON: %s", data)
	}

	var back struct {
		P Ratio `json:"p"`
		R Ratio `json:"r"`
	}
	if err := json.Unmarshal(data, &back); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if back.P.Defined || !back.R.Defined || back.R.Value != 0.5 {
		t.Errorf("unexpected decoded ratios: %+v", back)
	}
}

func TestGroupKey_Less(t *testing.T) {
	a := GroupKey{Category: "CWE121", Label: LabelTrue}
	b := GroupKey{Category: "CWE121", Label: LabelFalse}
	c := GroupKey{Category: "CWE190", Label: LabelTrue}

	if !a.Less(b) {
		t.Error("TRUE should sort before FALSE within a category")
	}
	if b.Less(a) {
		t.Error("FALSE should not sort before TRUE")
	}
	if !b.Less(c) {
		t.Error("categories should sort by id first")
	}
	if a.Less(a) {
		t.Error("key should not be less than itself")
	}
}

func TestScoringSettings_Weight(t *testing.T) {
	s := ScoringSettings{Weights: map[string]float64{"cwe121": 2.0, "CWE190": 0.5}}

	if w := s.Weight("CWE121"); w != 2.0 {
		t.Errorf("expected 2.0 for lowercased key, got %f", w)
	}
	if w := s.Weight("CWE190"); w != 0.5 {
		t.Errorf("expected 0.5, got %f", w)
	}
	if w := s.Weight("CWE078"); w != 1.0 {
		t.Errorf("expected default weight 1.0, got %f", w)
	}
}

func TestTestCase_OpportunityStatus(t *testing.T) {
	tc := &TestCase{
		Name:             "T/CWE121_01",
		OpportunityNames: []string{"goodG2B1", "goodG2B2", ""},
		Hits: []Hit{
			{Finding: RawFinding{Function: "CWE121_01_goodG2B1"}},
		},
	}

	want := []OpportunityStatus{
		{Name: "goodG2B1", Found: true},
		{Name: "goodG2B2", Found: false},
		{Name: "", Found: false},
	}
	if diff := cmp.Diff(want, tc.OpportunityStatus()); diff != "" {
		t.Errorf("OpportunityStatus mismatch (-want +got):\n%s", diff)
	}
}

func TestSuiteResult_HitRows(t *testing.T) {
	tc1 := &TestCase{
		Name:  "T/a",
		Score: 1,
		Hits: []Hit{
			{Finding: RawFinding{FilePath: "T/b.c", Line: 20}, FunctionKey: "bad"},
			{Finding: RawFinding{FilePath: "T/a.c", Line: 9}, FunctionKey: "bad"},
		},
	}
	tc2 := &TestCase{
		Name:  "T/b",
		Score: 1,
		Hits: []Hit{
			{Finding: RawFinding{FilePath: "T/b.c", Line: 20}, FunctionKey: "bad"},
			{Finding: RawFinding{FilePath: "T/a.c", Line: 10}, FunctionKey: "bad"},
		},
	}
	r := &SuiteResult{
		Groups: []*CategoryGroup{
			{Key: GroupKey{Category: "CWE121", Label: LabelTrue}, SuiteType: SuiteJuliet, TestCases: []*TestCase{tc1, tc2}},
		},
	}

	rows := r.HitRows()
	if len(rows) != 4 {
		t.Fatalf("expected 4 rows, got %d", len(rows))
	}

	type loc struct {
		File string
		Line int
		Dup  bool
	}
	var got []loc
	for _, row := range rows {
		got = append(got, loc{row.File, row.Line, row.Duplicate})
	}
	want := []loc{
		{"T/a.c", 9, false},
		{"T/a.c", 10, false},
		{"T/b.c", 20, true},
		{"T/b.c", 20, true},
	}
	if diff := cmp.Diff(want, got); diff != "" {
		t.Errorf("HitRows mismatch (-want +got):\n%s", diff)
	}
	if rows[2].TestCase != "T/a" || rows[3].TestCase != "T/b" {
		t.Errorf("expected stable order for equal locations, got %s then %s", rows[2].TestCase, rows[3].TestCase)
	}
}

func TestSuiteResult_Accessors(t *testing.T) {
	r := &SuiteResult{
		Categories: []CategoryScore{
			{Category: "CWE121", UsedIdentifiers: []string{"a"}, UnusedIdentifiers: []string{"b"}},
		},
		Diagnostics: []Diagnostic{
			{Kind: DiagMissingLocation},
			{Kind: DiagMissingLocation},
			{Kind: DiagMissingRequiredField},
		},
	}

	if _, ok := r.Category("121"); !ok {
		t.Error("expected category lookup to normalize the id")
	}
	if diff := cmp.Diff([]string{"a"}, r.UsedIdentifiers("cwe121")); diff != "" {
		t.Errorf("UsedIdentifiers mismatch:\n%s", diff)
	}
	if diff := cmp.Diff([]string{"b"}, r.UnusedIdentifiers("CWE121")); diff != "" {
		t.Errorf("UnusedIdentifiers mismatch:\n%s", diff)
	}
	if r.UsedIdentifiers("CWE999") != nil {
		t.Error("expected nil for unknown category")
	}
	if n := r.DiagnosticCount(DiagMissingLocation); n != 2 {
		t.Errorf("expected 2 missing location diagnostics, got %d", n)
	}
}

func TestValidateConfig_Default(t *testing.T) {
	if err := ValidateConfig(DefaultConfig()); err != nil {
		t.Fatalf("default config should be valid: %v", err)
	}
}

func TestValidateConfig_Errors(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tool.IDDelimiter = ""
	cfg.Tool.Fields = append(cfg.Tool.Fields, FieldMapping{Item: "extra", Path: "X", Kind: "element"})
	cfg.Suite.Language = "cobol"
	cfg.Suite.FalseRoot = cfg.Suite.TrueRoot
	cfg.Scoring.Threshold = 1.5
	cfg.Scoring.FragmentMode = "bag"
	cfg.Scoring.Weights["CWE121"] = -1
	cfg.Logging.Level = "trace"
	cfg.Output.Format = "xlsx"

	err := ValidateConfig(cfg)
	if err == nil {
		t.Fatal("expected validation errors")
	}

	var verrs ValidationErrors
	if !errors.As(err, &verrs) {
		t.Fatalf("expected ValidationErrors, got %T", err)
	}

	fields := make(map[string]bool)
	for _, e := range verrs {
		fields[e.Field] = true
	}
	for _, f := range []string{
		"tool.id_delimiter",
		"tool.fields[6].kind",
		"suite.language",
		"suite.false_root",
		"scoring.threshold",
		"scoring.fragment_mode",
		"scoring.weights.CWE121",
		"logging.level",
		"output.format",
	} {
		if !fields[f] {
			t.Errorf("expected validation error for %s", f)
		}
	}
}

func TestScoringSettings_WeightAliasedKeys(t *testing.T) {
	s := ScoringSettings{Weights: map[string]float64{"cwe121": 3.0, "121": 2.0}}

	for i := 0; i < 20; i++ {
		if w := s.Weight("CWE121"); w != 2.0 {
			t.Fatalf("expected the first sorted key to win, got %f", w)
		}
	}

	cfg := DefaultConfig()
	cfg.Scoring.Weights = s.Weights
	verrs := NewConfigValidator().Validate(cfg)
	found := false
	for _, e := range verrs {
		if e.Field == "scoring.weights.cwe121" {
			found = true
		}
	}
	if !found {
		t.Errorf("expected a conflict on scoring.weights.cwe121, got %v", verrs)
	}

	cfg = DefaultConfig()
	cfg.Scoring.Weights = map[string]float64{"cwe121": 2.0, "121": 2.0}
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("expected aliased keys with equal weights to validate, got %v", err)
	}
}

func TestValidateConfig_KindWhitespace(t *testing.T) {
	cfg := DefaultConfig()
	cfg.Tool.Fields[0].Kind = " Tag "
	cfg.Tool.Fields[1].Kind = "ATTRIBUTE\t"
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("expected padded kinds to validate, got %v", err)
	}
}

func TestValidateInputFile(t *testing.T) {
	dir := t.TempDir()
	if err := ValidateInputFile(dir); err == nil {
		t.Error("expected error for directory")
	}
	if err := ValidateInputFile(dir + "/missing.xml"); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestOutputFormats(t *testing.T) {
	if diff := cmp.Diff([]string{"json", "markdown"}, OutputFormats(" JSON, ,markdown ")); diff != "" {
		t.Errorf("OutputFormats mismatch (-want +got):\n%s", diff)
	}
	if got := OutputFormats(""); len(got) != 0 {
		t.Errorf("expected no formats, got %v", got)
	}

	cfg := DefaultConfig()
	cfg.Output.Format = "json,md"
	if err := ValidateConfig(cfg); err != nil {
		t.Errorf("expected format list to validate, got %v", err)
	}
}
