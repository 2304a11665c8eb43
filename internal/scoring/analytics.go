package scoring

import (
	"fmt"
	"sort"
	"strings"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// Function flow groups
const (
	FlowB2G   = "B2G"
	FlowG2B   = "G2B"
	FlowOther = "other"
)

// FlowGroup classifies a reduced function name by its flow variant
func FlowGroup(name string) string {
	switch {
	case strings.Contains(name, FlowB2G):
		return FlowB2G
	case strings.Contains(name, FlowG2B):
		return FlowG2B
	}
	return FlowOther
}

// Analyze tallies hits per good-variant function across every group
// scored with SumOfScores. Each named opportunity counts once per test
// case; hit functions outside the opportunity list count as hits only.
func Analyze(groups []*types.CategoryGroup) types.FunctionAnalytics {
	stats := make(map[string]*types.FunctionStat)
	get := func(name string) *types.FunctionStat {
		st, ok := stats[name]
		if !ok {
			st = &types.FunctionStat{Name: name, Group: FlowGroup(name)}
			stats[name] = st
		}
		return st
	}

	for _, g := range groups {
		if PolicyFor(g.SuiteType, g.Key.Label) != SumOfScores {
			continue
		}
		for _, tc := range g.TestCases {
			for _, opp := range tc.OpportunityStatus() {
				if opp.Name == "" {
					continue
				}
				st := get(opp.Name)
				st.Opportunities++
				if opp.Found {
					st.Hits++
				}
			}

			credited := make(map[string]bool)
			for _, h := range tc.Hits {
				if credited[h.FunctionKey] || coveredBy(h.Finding.Function, tc.OpportunityNames) {
					continue
				}
				credited[h.FunctionKey] = true
				get(h.FunctionKey).Hits++
			}
		}
	}

	var out types.FunctionAnalytics
	rollup := make(map[string]*types.FunctionGroupStat)

	names := make([]string, 0, len(stats))
	for name := range stats {
		names = append(names, name)
	}
	sort.Strings(names)

	for _, name := range names {
		st := stats[name]
		st.Misses = max(st.Opportunities-st.Hits, 0)
		st.Percent = types.NewRatio(float64(st.Hits), float64(st.Opportunities))
		out.Functions = append(out.Functions, *st)

		gs, ok := rollup[st.Group]
		if !ok {
			gs = &types.FunctionGroupStat{Group: st.Group}
			rollup[st.Group] = gs
		}
		gs.Hits += st.Hits
		gs.Opportunities += st.Opportunities

		if strings.Contains(name, "helperGood") && st.Hits > 0 {
			out.ManualReview = append(out.ManualReview, fmt.Sprintf("manual review required for %s", name))
		}
	}

	for _, group := range []string{FlowB2G, FlowG2B, FlowOther} {
		if gs, ok := rollup[group]; ok {
			gs.Percent = types.NewRatio(float64(gs.Hits), float64(gs.Opportunities))
			out.Groups = append(out.Groups, *gs)
		}
	}
	return out
}

func coveredBy(function string, opportunities []string) bool {
	for _, o := range opportunities {
		if o != "" && strings.Contains(function, o) {
			return true
		}
	}
	return false
}
