package scoring

import (
	"testing"

	"github.com/google/go-cmp/cmp"

	"github.com/su1ph3r/sastscore/pkg/types"
)

func TestFlowGroup(t *testing.T) {
	tests := map[string]string{
		"goodB2G1":   FlowB2G,
		"goodG2B":    FlowG2B,
		"good1":      FlowOther,
		"helperGood": FlowOther,
	}
	for name, want := range tests {
		if got := FlowGroup(name); got != want {
			t.Errorf("FlowGroup(%q) = %q, want %q", name, got, want)
		}
	}
}

func TestAnalyze(t *testing.T) {
	neg := &types.CategoryGroup{
		Key:       types.GroupKey{Category: "CWE121", Label: types.LabelFalse},
		SuiteType: types.SuiteJuliet,
		TestCases: []*types.TestCase{
			{
				Name:             "F/CWE121_01",
				OpportunityNames: []string{"goodG2B1", "goodB2G1"},
				Hits:             hitsFor("goodG2B1", "goodG2B1"),
			},
			{
				Name:             "F/CWE121_02",
				OpportunityNames: []string{"goodG2B1", "goodB2G1"},
				Hits:             hitsFor("goodB2G1", "helperGood"),
			},
		},
	}
	pos := &types.CategoryGroup{
		Key:       types.GroupKey{Category: "CWE121", Label: types.LabelTrue},
		SuiteType: types.SuiteJuliet,
		TestCases: []*types.TestCase{
			{Name: "T/CWE121_01", OpportunityNames: []string{"bad"}, Hits: hitsFor("bad")},
		},
	}

	got := Analyze([]*types.CategoryGroup{pos, neg})

	wantFunctions := []types.FunctionStat{
		{Name: "goodB2G1", Group: FlowB2G, Hits: 1, Misses: 1, Opportunities: 2, Percent: types.DefinedRatio(0.5)},
		{Name: "goodG2B1", Group: FlowG2B, Hits: 1, Misses: 1, Opportunities: 2, Percent: types.DefinedRatio(0.5)},
		{Name: "helperGood", Group: FlowOther, Hits: 1, Misses: 0, Opportunities: 0, Percent: types.NA},
	}
	if diff := cmp.Diff(wantFunctions, got.Functions); diff != "" {
		t.Errorf("functions mismatch (-want +got):\n%s", diff)
	}

	wantGroups := []types.FunctionGroupStat{
		{Group: FlowB2G, Hits: 1, Opportunities: 2, Percent: types.DefinedRatio(0.5)},
		{Group: FlowG2B, Hits: 1, Opportunities: 2, Percent: types.DefinedRatio(0.5)},
		{Group: FlowOther, Hits: 1, Opportunities: 0, Percent: types.NA},
	}
	if diff := cmp.Diff(wantGroups, got.Groups); diff != "" {
		t.Errorf("groups mismatch (-want +got):\n%s", diff)
	}

	if len(got.ManualReview) != 1 || got.ManualReview[0] != "manual review required for helperGood" {
		t.Errorf("expected one manual review note for helperGood, got %q", got.ManualReview)
	}
}

func TestAnalyze_NoNegativeTypeAGroups(t *testing.T) {
	g := positiveGroup("CWE121", types.SuiteKDM, 2, 2)
	g.Key.Label = types.LabelFalse

	got := Analyze([]*types.CategoryGroup{g})
	if len(got.Functions) != 0 || len(got.Groups) != 0 || len(got.ManualReview) != 0 {
		t.Errorf("expected empty analytics for type-B groups, got %+v", got)
	}
}
