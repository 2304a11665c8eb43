package scoring

import (
	"github.com/su1ph3r/sastscore/pkg/types"
)

// HitPolicy decides how a group's hits and cases are counted
type HitPolicy interface {
	Name() string
	Hits(g *types.CategoryGroup) int
	Cases(g *types.CategoryGroup) int
}

// Policy names
const (
	PolicySumOfScores   = "sum_of_scores"
	PolicyDistinctCases = "distinct_cases"
)

var (
	// SumOfScores credits every distinct good-variant function hit
	SumOfScores HitPolicy = sumOfScores{}
	// DistinctCases credits each test case with at least one hit once
	DistinctCases HitPolicy = distinctCases{}
)

// PolicyFor selects the policy for a suite type and label.
// Only type-A negative groups carry per-function opportunities.
func PolicyFor(st types.SuiteType, label types.Label) HitPolicy {
	if st == types.SuiteJuliet && label == types.LabelFalse {
		return SumOfScores
	}
	return DistinctCases
}

type sumOfScores struct{}

func (sumOfScores) Name() string { return PolicySumOfScores }

func (sumOfScores) Hits(g *types.CategoryGroup) int {
	n := 0
	for _, tc := range g.TestCases {
		n += tc.Score
	}
	return n
}

// Cases is the corpus opportunity total. Test cases without recorded
// opportunities contribute their uncapped score so hits never exceed cases.
func (sumOfScores) Cases(g *types.CategoryGroup) int {
	n := g.OpportunityTotal
	for _, tc := range g.TestCases {
		if tc.Opportunities == 0 {
			n += tc.Score
		}
	}
	return n
}

type distinctCases struct{}

func (distinctCases) Name() string { return PolicyDistinctCases }

func (distinctCases) Hits(g *types.CategoryGroup) int {
	n := 0
	for _, tc := range g.TestCases {
		if len(tc.Hits) > 0 {
			n++
		}
	}
	return n
}

// Cases is the group's case count. Test cases discovered only through hits
// are already folded in by the aggregator, above each project's declared count.
func (distinctCases) Cases(g *types.CategoryGroup) int {
	return g.CaseCount
}
