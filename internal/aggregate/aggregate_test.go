package aggregate

import (
	"errors"
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/su1ph3r/sastscore/internal/identity"
	"github.com/su1ph3r/sastscore/pkg/types"
)

var falseKey = types.GroupKey{Category: "CWE121", Label: types.LabelFalse}

func finding(path string, line int, function string) types.RawFinding {
	return types.RawFinding{FilePath: path, Line: line, Function: function, Fragments: []string{"Buffer Overflow"}}
}

func newAggregator(t *testing.T, key types.GroupKey, st types.SuiteType) *Aggregator {
	t.Helper()
	a, err := New(key, st, types.LanguageC, nil)
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return a
}

func TestAggregator_GroupsByTestCase(t *testing.T) {
	a := newAggregator(t, falseKey, types.SuiteJuliet)
	a.AddProject("cwe121-false", 0, []Seed{
		{Name: "F/CWE121_01", Opportunities: 2, OpportunityNames: []string{"goodG2B1", "goodG2B2"}},
		{Name: "F/CWE121_02", Opportunities: 3, OpportunityNames: []string{"goodG2B1", "goodB2G1", "goodB2G2"}},
	})

	id := &types.AcceptedIdentifier{Value: "Buffer Overflow", Fragments: []string{"Buffer Overflow"}}
	hits := []types.RawFinding{
		finding("F/CWE121_01.c", 10, "CWE121_01_goodG2B1"),
		finding("F/CWE121_01.c", 12, "CWE121_01_goodG2B1"),
		finding("F/CWE121_02a.c", 20, "CWE121_02_goodG2B1"),
		finding("F/CWE121_02b.c", 30, "CWE121_02_goodB2G1"),
	}
	for _, f := range hits {
		if _, err := a.Add("cwe121-false", f, id); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	if diags := a.Finalize(); len(diags) != 0 {
		t.Fatalf("unexpected diagnostics: %+v", diags)
	}

	g := a.Group()
	if len(g.TestCases) != 2 {
		t.Fatalf("expected 2 test cases, got %d", len(g.TestCases))
	}

	tc1, _ := g.TestCase("F/CWE121_01")
	tc2, _ := g.TestCase("F/CWE121_02")
	if tc1.Score != 1 {
		t.Errorf("expected duplicate function to score once, got %d", tc1.Score)
	}
	if tc2.Score != 2 {
		t.Errorf("expected 2 distinct functions, got %d", tc2.Score)
	}
	if tc1.Score+tc2.Score != 3 {
		t.Errorf("expected group score sum 3, got %d", tc1.Score+tc2.Score)
	}
	if tc1.Percent.Value != 0.5 {
		t.Errorf("expected 50%% for test case 1, got %v", tc1.Percent)
	}

	if g.CaseCount != 2 || g.OpportunityTotal != 5 {
		t.Errorf("expected 2 cases / 5 opportunities, got %d / %d", g.CaseCount, g.OpportunityTotal)
	}
	if diff := cmp.Diff([]string{"Buffer Overflow"}, g.UsedIdentifiers); diff != "" {
		t.Errorf("used identifiers should be deduplicated:\n%s", diff)
	}
	for _, tc := range g.TestCases {
		for _, h := range tc.Hits {
			if h.TestCase != tc.Name || h.Group != falseKey {
				t.Errorf("hit %s belongs to %s/%s, want %s/%s", h.Finding.Location(), h.Group, h.TestCase, falseKey, tc.Name)
			}
		}
	}
}

func TestAggregator_ScoreCappedAtOpportunities(t *testing.T) {
	a := newAggregator(t, falseKey, types.SuiteJuliet)
	a.AddProject("p", 0, []Seed{{Name: "F/CWE121_01", Opportunities: 1}})

	for _, fn := range []string{"x_good1", "x_good2", "x_goodG2B"} {
		if _, err := a.Add("p", finding("F/CWE121_01.c", 1, fn), nil); err != nil {
			t.Fatalf("Add: %v", err)
		}
	}
	a.Finalize()

	tc, _ := a.Group().TestCase("F/CWE121_01")
	if tc.Score != 1 {
		t.Errorf("expected score capped at 1, got %d", tc.Score)
	}
	if !tc.Percent.Defined || tc.Percent.Value != 1 {
		t.Errorf("expected 100%%, got %v", tc.Percent)
	}
}

func TestAggregator_HitsWithoutOpportunities(t *testing.T) {
	key := types.GroupKey{Category: "CWE121", Label: types.LabelTrue}
	a := newAggregator(t, key, types.SuiteJuliet)
	a.AddProject("p", 0, nil)

	if _, err := a.Add("p", finding("T/CWE121_09.c", 5, "CWE121_09_bad"), nil); err != nil {
		t.Fatalf("Add: %v", err)
	}
	diags := a.Finalize()
	if len(diags) != 1 || diags[0].Kind != types.DiagHitsWithoutOpportunities {
		t.Fatalf("expected one hits-without-opportunities diagnostic, got %+v", diags)
	}

	tc, _ := a.Group().TestCase("T/CWE121_09")
	if tc.Percent.Defined {
		t.Errorf("expected N/A percent, got %v", tc.Percent)
	}
	if tc.Score != 1 {
		t.Errorf("expected uncapped score 1, got %d", tc.Score)
	}
}

func TestAggregator_FinalizeIdempotent(t *testing.T) {
	a := newAggregator(t, falseKey, types.SuiteJuliet)
	a.AddProject("p", 0, []Seed{{Name: "F/CWE121_01", Opportunities: 4}})
	a.Add("p", finding("F/CWE121_01.c", 1, "x_good1"), nil)
	a.Add("p", finding("F/CWE121_01.c", 2, "x_good2"), nil)

	a.Finalize()
	first := a.Group().TestCases[0].Score
	a.Finalize()
	if second := a.Group().TestCases[0].Score; second != first {
		t.Errorf("Finalize changed score from %d to %d", first, second)
	}
}

func TestAggregator_DeclaredCountAndDuplicates(t *testing.T) {
	key := types.GroupKey{Category: "CWE121", Label: types.LabelTrue}
	a := newAggregator(t, key, types.SuiteKDM)
	a.AddProject("p1", 10, []Seed{{Name: "T/kdm_01", Opportunities: 1}})
	a.AddProject("p2", 0, []Seed{{Name: "T/kdm_01", Opportunities: 5}, {Name: "T/kdm_02", Opportunities: 1}})

	g := a.Group()
	if g.CaseCount != 11 {
		t.Errorf("expected 10 declared + 1 new case, got %d", g.CaseCount)
	}
	if g.OpportunityTotal != 2 {
		t.Errorf("expected duplicate seed to be ignored, got %d opportunities", g.OpportunityTotal)
	}
	if diff := cmp.Diff([]string{"p1", "p2"}, g.Projects); diff != "" {
		t.Errorf("projects mismatch:\n%s", diff)
	}
}

func TestAggregator_DiscoveredCasesWithinDeclaredCount(t *testing.T) {
	key := types.GroupKey{Category: "CWE121", Label: types.LabelTrue}

	tests := []struct {
		name     string
		declared int
		seeds    []Seed
		hits     []string
		want     int
	}{
		{"declared covers discovered", 10, nil, []string{"T/CWE121_01.c", "T/CWE121_02.c"}, 10},
		{"listed plus discovered exceeds declared", 2, []Seed{{Name: "T/CWE121_01"}, {Name: "T/CWE121_02"}}, []string{"T/CWE121_03.c"}, 3},
		{"no declared count", 0, []Seed{{Name: "T/CWE121_01"}}, []string{"T/CWE121_01.c", "T/CWE121_02.c", "T/CWE121_02.c"}, 2},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			a := newAggregator(t, key, types.SuiteJuliet)
			a.AddProject("p", tt.declared, tt.seeds)
			for i, path := range tt.hits {
				if _, err := a.Add("p", finding(path, i+1, "CWE121_bad"), nil); err != nil {
					t.Fatalf("Add: %v", err)
				}
			}
			a.Finalize()
			if got := a.Group().CaseCount; got != tt.want {
				t.Errorf("CaseCount = %d, want %d", got, tt.want)
			}
		})
	}
}

func TestAggregator_DiscoveredCaseCountsForFirstProject(t *testing.T) {
	key := types.GroupKey{Category: "CWE121", Label: types.LabelTrue}
	a := newAggregator(t, key, types.SuiteJuliet)
	a.AddProject("p1", 0, []Seed{{Name: "T/CWE121_01"}})
	a.AddProject("p2", 0, []Seed{{Name: "T/CWE121_02"}})

	a.Add("p1", finding("T/CWE121_03.c", 1, "CWE121_03_bad"), nil)
	a.Add("p2", finding("T/CWE121_03.c", 2, "CWE121_03_bad"), nil)
	a.Finalize()

	if got := a.Group().CaseCount; got != 3 {
		t.Errorf("expected the shared discovered case to count once, got %d", got)
	}
}

func TestNew_UnknownLanguage(t *testing.T) {
	_, err := New(falseKey, types.SuiteJuliet, "fortran", nil)
	if !errors.Is(err, identity.ErrUnknownLanguage) {
		t.Errorf("expected ErrUnknownLanguage, got %v", err)
	}
	_, err = New(falseKey, "sard", types.LanguageC, nil)
	if !errors.Is(err, identity.ErrUnknownSuiteType) {
		t.Errorf("expected ErrUnknownSuiteType, got %v", err)
	}
}
