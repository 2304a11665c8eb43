// Package corpus loads the labeled test-case manifest that describes which
// result documents to score and what each test case is worth.
package corpus

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/mitchellh/go-homedir"
	"gopkg.in/yaml.v3"

	"github.com/su1ph3r/sastscore/internal/aggregate"
	"github.com/su1ph3r/sastscore/internal/identity"
	"github.com/su1ph3r/sastscore/pkg/types"
)

// ErrInvalidManifest is returned for manifests that cannot be scored
var ErrInvalidManifest = errors.New("invalid corpus manifest")

// Manifest describes a labeled corpus and the tool results produced for it
type Manifest struct {
	Language    types.Language      `yaml:"language,omitempty"`
	AcceptedIDs map[string][]string `yaml:"accepted_ids"`
	Projects    []Project           `yaml:"projects"`

	// Directory relative result paths are resolved against
	BaseDir string `yaml:"-"`
}

// Project is one scanned result document for a (category, label) pair
type Project struct {
	Name          string          `yaml:"name"`
	Category      string          `yaml:"category"`
	SuiteType     types.SuiteType `yaml:"suite_type"`
	Label         *bool           `yaml:"label"`
	ResultFile    string          `yaml:"result_file"`
	TestCaseCount int             `yaml:"test_case_count,omitempty"`
	TestCases     []TestCase      `yaml:"test_cases,omitempty"`
}

// TestCase is corpus metadata for one test case
type TestCase struct {
	Name             string   `yaml:"name"`
	Opportunities    []string `yaml:"opportunities,omitempty"`
	OpportunityCount int      `yaml:"opportunity_count,omitempty"`
}

// GroupLabel returns the project's label
func (p Project) GroupLabel() types.Label {
	return types.LabelOf(p.Label != nil && *p.Label)
}

// Key returns the group key the project contributes to
func (p Project) Key() types.GroupKey {
	return types.GroupKey{Category: p.Category, Label: p.GroupLabel()}
}

// Seeds converts the project's test cases into aggregator seeds with
// canonical names
func (p Project) Seeds(lang types.Language) ([]aggregate.Seed, error) {
	seeds := make([]aggregate.Seed, 0, len(p.TestCases))
	for _, tc := range p.TestCases {
		name, err := identity.Name(tc.Name, p.SuiteType, lang)
		if err != nil {
			return nil, fmt.Errorf("project %s: test case %s: %w", p.Name, tc.Name, err)
		}
		count := tc.OpportunityCount
		if count == 0 {
			count = len(tc.Opportunities)
		}
		seeds = append(seeds, aggregate.Seed{
			Name:             name,
			Opportunities:    count,
			OpportunityNames: tc.Opportunities,
		})
	}
	return seeds, nil
}

// Load reads and validates a manifest. Category ids are normalized and
// result paths are resolved relative to the manifest.
func Load(path string) (*Manifest, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return nil, fmt.Errorf("expand manifest path: %w", err)
	}

	data, err := os.ReadFile(filepath.Clean(expanded))
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}

	m, err := Parse(data)
	if err != nil {
		return nil, err
	}
	m.BaseDir = filepath.Dir(expanded)

	for i := range m.Projects {
		resolved, err := m.resolve(m.Projects[i].ResultFile)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", m.Projects[i].Name, err)
		}
		m.Projects[i].ResultFile = resolved
	}
	return m, nil
}

// Parse decodes and validates manifest YAML without touching the filesystem
func Parse(data []byte) (*Manifest, error) {
	var m Manifest
	if err := yaml.Unmarshal(data, &m); err != nil {
		return nil, fmt.Errorf("parse manifest: %w", err)
	}

	// keys that normalize to the same category merge in sorted key order
	keys := make([]string, 0, len(m.AcceptedIDs))
	for category := range m.AcceptedIDs {
		keys = append(keys, category)
	}
	sort.Strings(keys)

	accepted := make(map[string][]string, len(m.AcceptedIDs))
	for _, category := range keys {
		key := types.NormalizeCategory(category)
		accepted[key] = append(accepted[key], m.AcceptedIDs[category]...)
	}
	m.AcceptedIDs = accepted

	for i := range m.Projects {
		p := &m.Projects[i]
		p.Category = types.NormalizeCategory(p.Category)
		p.SuiteType = types.SuiteType(strings.ToLower(strings.TrimSpace(string(p.SuiteType))))
	}
	m.Language = types.Language(strings.ToLower(strings.TrimSpace(string(m.Language))))

	if err := m.Validate(); err != nil {
		return nil, err
	}
	return &m, nil
}

// Validate checks project fields. Suite types and languages are checked
// by the engine so it can name the failing project.
func (m *Manifest) Validate() error {
	if len(m.Projects) == 0 {
		return fmt.Errorf("%w: no projects", ErrInvalidManifest)
	}

	seen := make(map[string]bool, len(m.Projects))
	for i, p := range m.Projects {
		switch {
		case p.Name == "":
			return fmt.Errorf("%w: projects[%d]: name is required", ErrInvalidManifest, i)
		case seen[p.Name]:
			return fmt.Errorf("%w: projects[%d]: duplicate name %s", ErrInvalidManifest, i, p.Name)
		case p.Category == "":
			return fmt.Errorf("%w: project %s: category is required", ErrInvalidManifest, p.Name)
		case p.Label == nil:
			return fmt.Errorf("%w: project %s: label is required", ErrInvalidManifest, p.Name)
		case p.ResultFile == "":
			return fmt.Errorf("%w: project %s: result_file is required", ErrInvalidManifest, p.Name)
		case p.TestCaseCount < 0:
			return fmt.Errorf("%w: project %s: test_case_count cannot be negative", ErrInvalidManifest, p.Name)
		}
		seen[p.Name] = true

		for j, tc := range p.TestCases {
			if tc.Name == "" {
				return fmt.Errorf("%w: project %s: test_cases[%d]: name is required", ErrInvalidManifest, p.Name, j)
			}
			if tc.OpportunityCount < 0 {
				return fmt.Errorf("%w: project %s: test case %s: opportunity_count cannot be negative", ErrInvalidManifest, p.Name, tc.Name)
			}
		}
	}
	return nil
}

func (m *Manifest) resolve(path string) (string, error) {
	expanded, err := homedir.Expand(path)
	if err != nil {
		return "", fmt.Errorf("expand result path: %w", err)
	}
	if filepath.IsAbs(expanded) || m.BaseDir == "" {
		return expanded, nil
	}
	return filepath.Join(m.BaseDir, expanded), nil
}
