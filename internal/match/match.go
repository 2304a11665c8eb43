// Package match decides whether a finding's weakness identifier fragments
// equal an accepted identifier configured for its category.
package match

import (
	"sort"
	"strings"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// Options controls identifier parsing and comparison
type Options struct {
	Delimiter   string
	Composite   bool
	SkipNumeric bool
	Mode        string // types.FragmentModeSet or types.FragmentModeMultiset
}

// OptionsFromConfig builds matcher options from tool and scoring settings
func OptionsFromConfig(tool types.ToolSettings, scoring types.ScoringSettings) Options {
	return Options{
		Delimiter:   tool.IDDelimiter,
		Composite:   tool.CompositeIDs,
		SkipNumeric: tool.SkipNumericIDs,
		Mode:        scoring.FragmentMode,
	}
}

// IsSentinel reports whether a configured cell is a placeholder that never matches
func IsSentinel(value string, opts Options) bool {
	v := strings.TrimSpace(value)
	if v == "" || strings.EqualFold(v, "none") {
		return true
	}
	return opts.SkipNumeric && isDigits(v)
}

// ParseIdentifier splits a configured value into its fragments.
// Empty fragments produced by the split are dropped.
func ParseIdentifier(value string, opts Options) types.AcceptedIdentifier {
	v := strings.TrimSpace(value)
	id := types.AcceptedIdentifier{Value: v}

	if !opts.Composite || opts.Delimiter == "" {
		if v != "" {
			id.Fragments = []string{v}
		}
		return id
	}

	for _, part := range strings.Split(v, opts.Delimiter) {
		if part = strings.TrimSpace(part); part != "" {
			id.Fragments = append(id.Fragments, part)
		}
	}
	return id
}

// Equal compares two fragment lists ignoring order. In set mode duplicates
// collapse; in multiset mode occurrence counts must agree.
func Equal(a, b []string, mode string) bool {
	if mode == types.FragmentModeMultiset {
		if len(a) != len(b) {
			return false
		}
		counts := make(map[string]int, len(a))
		for _, s := range a {
			counts[s]++
		}
		for _, s := range b {
			counts[s]--
			if counts[s] < 0 {
				return false
			}
		}
		return true
	}

	sa := toSet(a)
	sb := toSet(b)
	if len(sa) != len(sb) {
		return false
	}
	for s := range sa {
		if _, ok := sb[s]; !ok {
			return false
		}
	}
	return true
}

// Matcher holds the accepted identifiers for every category
type Matcher struct {
	opts     Options
	accepted map[string][]types.AcceptedIdentifier
}

// NewMatcher parses the configured identifiers per category. Category ids
// are normalized; sentinel cells are dropped; configured order is kept.
func NewMatcher(accepted map[string][]string, opts Options) *Matcher {
	m := &Matcher{
		opts:     opts,
		accepted: make(map[string][]types.AcceptedIdentifier, len(accepted)),
	}
	for category, values := range accepted {
		key := types.NormalizeCategory(category)
		ids := m.accepted[key]
		for _, v := range values {
			if IsSentinel(v, opts) {
				continue
			}
			id := ParseIdentifier(v, opts)
			if len(id.Fragments) == 0 {
				continue
			}
			ids = append(ids, id)
		}
		m.accepted[key] = ids
	}
	return m
}

// Match returns the first accepted identifier of the category whose
// fragments equal the finding's. No match is not an error.
func (m *Matcher) Match(category string, fragments []string) (*types.AcceptedIdentifier, bool) {
	if len(fragments) == 0 {
		return nil, false
	}
	ids := m.accepted[types.NormalizeCategory(category)]
	for i := range ids {
		if Equal(fragments, ids[i].Fragments, m.opts.Mode) {
			return &ids[i], true
		}
	}
	return nil, false
}

// Accepted returns the usable identifiers configured for a category
func (m *Matcher) Accepted(category string) []types.AcceptedIdentifier {
	return m.accepted[types.NormalizeCategory(category)]
}

// AcceptedValues returns the raw values of Accepted
func (m *Matcher) AcceptedValues(category string) []string {
	ids := m.Accepted(category)
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		out = append(out, id.Value)
	}
	return out
}

// Categories returns the configured category ids in sorted order
func (m *Matcher) Categories() []string {
	out := make([]string, 0, len(m.accepted))
	for c := range m.accepted {
		out = append(out, c)
	}
	sort.Strings(out)
	return out
}

func toSet(items []string) map[string]struct{} {
	set := make(map[string]struct{}, len(items))
	for _, s := range items {
		set[s] = struct{}{}
	}
	return set
}

func isDigits(s string) bool {
	if s == "" {
		return false
	}
	for _, r := range s {
		if r < '0' || r > '9' {
			return false
		}
	}
	return true
}
