// Package aggregate groups matched findings into per-test-case hits.
package aggregate

import (
	"fmt"
	"slices"

	"go.uber.org/zap"

	"github.com/su1ph3r/sastscore/internal/identity"
	"github.com/su1ph3r/sastscore/pkg/types"
)

// Seed is corpus metadata for one test case
type Seed struct {
	Name             string
	Opportunities    int
	OpportunityNames []string
}

// projectCases is one project's share of the group's case count
type projectCases struct {
	declared int
	listed   int
}

// Aggregator accumulates hits for one CategoryGroup
type Aggregator struct {
	group        *types.CategoryGroup
	language     types.Language
	index        map[string]*types.TestCase
	seeded       map[string]bool
	used         map[string]bool
	projects     map[string]*projectCases
	discoveredBy map[string]string // test case -> project whose hits found it
	logger       *zap.Logger
}

// New creates an aggregator for the group identified by key
func New(key types.GroupKey, st types.SuiteType, lang types.Language, logger *zap.Logger) (*Aggregator, error) {
	if err := identity.Validate(st, lang); err != nil {
		return nil, fmt.Errorf("group %s: %w", key, err)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Aggregator{
		group: &types.CategoryGroup{
			Key:       key,
			SuiteType: st,
		},
		language:     lang,
		index:        make(map[string]*types.TestCase),
		seeded:       make(map[string]bool),
		used:         make(map[string]bool),
		projects:     make(map[string]*projectCases),
		discoveredBy: make(map[string]string),
		logger:       logger.Named("aggregate").With(zap.Stringer("group", key)),
	}, nil
}

// Group returns the group being built
func (a *Aggregator) Group() *types.CategoryGroup {
	return a.group
}

// AddProject registers a project's corpus test cases with the group.
// declared is the project's test-case count when the manifest lists fewer
// cases than it holds; zero means the seed list is complete.
func (a *Aggregator) AddProject(name string, declared int, seeds []Seed) {
	pc := a.project(name)
	pc.declared = max(pc.declared, declared)

	added := 0
	for _, s := range seeds {
		if s.Name == "" {
			continue
		}
		tc := a.testCase(s.Name)
		if !a.seeded[s.Name] {
			a.seeded[s.Name] = true
			added++
			tc.InCorpus = true
			tc.Opportunities = s.Opportunities
			tc.OpportunityNames = slices.Clone(s.OpportunityNames)
			a.group.OpportunityTotal += s.Opportunities
			continue
		}
		a.logger.Debug("test case listed twice", zap.String("project", name), zap.String("test_case", s.Name))
	}

	pc.listed += added
	a.recount()
}

// Add records a matched finding from project as a hit on its test case.
// An unusable suite type or language is fatal for the run.
func (a *Aggregator) Add(project string, f types.RawFinding, id *types.AcceptedIdentifier) (types.Hit, error) {
	st := a.group.SuiteType
	name, err := identity.Name(f.FilePath, st, a.language)
	if err != nil {
		return types.Hit{}, fmt.Errorf("group %s: %w", a.group.Key, err)
	}

	hit := types.Hit{
		Finding:     f,
		TestCase:    name,
		Group:       a.group.Key,
		FunctionKey: identity.FunctionName(f.Function, f.FilePath, st, a.language),
	}
	if id != nil {
		hit.Identifier = *id
		if !a.used[id.Value] {
			a.used[id.Value] = true
			a.group.UsedIdentifiers = append(a.group.UsedIdentifiers, id.Value)
		}
	}

	tc := a.testCase(name)
	if !tc.InCorpus {
		if _, ok := a.discoveredBy[name]; !ok {
			a.discoveredBy[name] = project
			a.project(project)
		}
	}
	tc.Hits = append(tc.Hits, hit)
	return hit, nil
}

// Finalize computes each test case's score and percent. It can be called
// repeatedly; results depend only on the recorded hits.
func (a *Aggregator) Finalize() []types.Diagnostic {
	a.recount()

	var diags []types.Diagnostic
	for _, tc := range a.group.TestCases {
		tc.Score = Score(tc)
		tc.Percent = types.NewRatio(float64(tc.Score), float64(tc.Opportunities))

		if tc.Opportunities == 0 && len(tc.Hits) > 0 {
			a.logger.Warn("hits without opportunities", zap.String("test_case", tc.Name), zap.Int("hits", len(tc.Hits)))
			diags = append(diags, types.Diagnostic{
				Kind:     types.DiagHitsWithoutOpportunities,
				Category: a.group.Key.Category,
				Message:  fmt.Sprintf("test case %s has %d hits but no recorded opportunities", tc.Name, len(tc.Hits)),
			})
		}
	}
	return diags
}

// Score is the number of distinct credited functions among a test case's
// hits, capped at its opportunity count when one is recorded.
func Score(tc *types.TestCase) int {
	seen := make(map[string]struct{}, len(tc.Hits))
	for _, h := range tc.Hits {
		seen[h.FunctionKey] = struct{}{}
	}
	score := len(seen)
	if tc.Opportunities > 0 && score > tc.Opportunities {
		score = tc.Opportunities
	}
	return score
}

// recount sets CaseCount to the sum over projects of
// max(declared, listed + discovered), where discovered counts test cases
// found only through that project's hits.
func (a *Aggregator) recount() {
	discovered := make(map[string]int, len(a.projects))
	for name, project := range a.discoveredBy {
		if !a.index[name].InCorpus {
			discovered[project]++
		}
	}

	total := 0
	for name, pc := range a.projects {
		total += max(pc.declared, pc.listed+discovered[name])
	}
	a.group.CaseCount = total
}

func (a *Aggregator) project(name string) *projectCases {
	pc, ok := a.projects[name]
	if !ok {
		pc = &projectCases{}
		a.projects[name] = pc
		a.group.Projects = append(a.group.Projects, name)
	}
	return pc
}

func (a *Aggregator) testCase(name string) *types.TestCase {
	if tc, ok := a.index[name]; ok {
		return tc
	}
	tc := &types.TestCase{
		Name:      name,
		SuiteType: a.group.SuiteType,
		Label:     a.group.Key.Label,
		Language:  a.language,
	}
	a.index[name] = tc
	a.group.TestCases = append(a.group.TestCases, tc)
	return tc
}
