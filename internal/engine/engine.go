// Package engine runs a complete scoring pass over a corpus manifest.
package engine

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/beevik/etree"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/su1ph3r/sastscore/internal/aggregate"
	"github.com/su1ph3r/sastscore/internal/corpus"
	"github.com/su1ph3r/sastscore/internal/extract"
	"github.com/su1ph3r/sastscore/internal/identity"
	"github.com/su1ph3r/sastscore/internal/match"
	"github.com/su1ph3r/sastscore/internal/schema"
	"github.com/su1ph3r/sastscore/internal/scoring"
	"github.com/su1ph3r/sastscore/pkg/types"
)

// ErrMixedSuiteTypes is returned when projects of one group disagree on suite type
var ErrMixedSuiteTypes = errors.New("group mixes suite types")

// DocumentLoader reads a result document
type DocumentLoader func(path string) (*etree.Document, error)

// LoadDocument parses an XML result file
func LoadDocument(path string) (*etree.Document, error) {
	if err := types.ValidateInputFile(path); err != nil {
		return nil, err
	}
	doc := etree.NewDocument()
	if err := doc.ReadFromFile(path); err != nil {
		return nil, fmt.Errorf("parse result document %s: %w", path, err)
	}
	return doc, nil
}

// Engine threads one SuiteResult through extraction, matching,
// aggregation and scoring for every project in a manifest
type Engine struct {
	config    types.Config
	manifest  *corpus.Manifest
	extractor *extract.Extractor
	matcher   *match.Matcher
	scorer    *scoring.Scorer
	loader    DocumentLoader
	logger    *zap.Logger
}

// Option configures an Engine
type Option func(*Engine)

// WithLoader replaces the document loader
func WithLoader(l DocumentLoader) Option {
	return func(e *Engine) {
		e.loader = l
	}
}

// New validates the configuration, resolves the tool schema and prepares
// the matcher for the manifest's accepted identifiers
func New(cfg types.Config, manifest *corpus.Manifest, logger *zap.Logger, opts ...Option) (*Engine, error) {
	if manifest == nil {
		return nil, fmt.Errorf("%w: nil manifest", corpus.ErrInvalidManifest)
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	if err := types.ValidateConfig(&cfg); err != nil {
		return nil, err
	}

	sc, err := schema.Resolve(cfg.Tool.Fields)
	if err != nil {
		return nil, fmt.Errorf("resolve %s schema: %w", cfg.Tool.Name, err)
	}

	extractor, err := extract.New(sc, extract.Options{
		TrueRoot:  cfg.Suite.TrueRoot,
		FalseRoot: cfg.Suite.FalseRoot,
	}, logger)
	if err != nil {
		return nil, fmt.Errorf("resolve %s schema: %w", cfg.Tool.Name, err)
	}

	matcher := match.NewMatcher(manifest.AcceptedIDs, match.OptionsFromConfig(cfg.Tool, cfg.Scoring))

	e := &Engine{
		config:    cfg,
		manifest:  manifest,
		extractor: extractor,
		matcher:   matcher,
		scorer:    scoring.New(cfg.Scoring, matcher, logger),
		loader:    LoadDocument,
		logger:    logger.Named("engine"),
	}
	for _, opt := range opts {
		opt(e)
	}
	return e, nil
}

// Language returns the suite language: the manifest's when set, else the config's
func (e *Engine) Language() types.Language {
	if e.manifest.Language != "" {
		return e.manifest.Language
	}
	return types.Language(e.config.Suite.Language)
}

// Run scores every project, one document at a time. Unknown suite types
// or languages abort before any document is read. Per-record problems are
// recorded as diagnostics and do not stop the run.
func (e *Engine) Run(ctx context.Context) (*types.SuiteResult, error) {
	result := &types.SuiteResult{
		RunID:     uuid.NewString(),
		Tool:      e.config.Tool.Name,
		Language:  e.Language(),
		StartedAt: time.Now(),
	}

	groups, order, err := e.buildGroups()
	if err != nil {
		return nil, err
	}

	e.logger.Info("scoring run started",
		zap.String("run_id", result.RunID),
		zap.Int("projects", len(e.manifest.Projects)),
		zap.Int("groups", len(order)),
	)

	for _, p := range e.manifest.Projects {
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("scoring cancelled: %w", err)
		}

		doc, err := e.loader(p.ResultFile)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Name, err)
		}

		stats, err := e.scoreDocument(doc, p, groups[p.Key()], result)
		if err != nil {
			return nil, fmt.Errorf("project %s: %w", p.Name, err)
		}
		result.Projects = append(result.Projects, stats)

		e.logger.Debug("project scored",
			zap.String("project", p.Name),
			zap.Int("records", stats.Records),
			zap.Int("findings", stats.Findings),
			zap.Int("matched", stats.Matched),
			zap.Int("out_of_scope", stats.OutOfScope),
		)
	}

	for _, key := range order {
		agg := groups[key]
		result.Diagnostics = append(result.Diagnostics, agg.Finalize()...)
		result.Groups = append(result.Groups, agg.Group())
	}

	e.scorer.Score(result)

	result.FinishedAt = time.Now()
	result.Duration = result.FinishedAt.Sub(result.StartedAt)

	e.logger.Info("scoring run finished",
		zap.String("run_id", result.RunID),
		zap.String("verdict", string(result.Verdict)),
		zap.Int("diagnostics", len(result.Diagnostics)),
		zap.Int("defects", len(result.Defects)),
		zap.Duration("duration", result.Duration),
	)
	return result, nil
}

// Validate checks every project's suite type, language and group without
// reading any document
func (e *Engine) Validate() error {
	_, _, err := e.buildGroups()
	return err
}

// buildGroups validates every project and seeds one aggregator per group
func (e *Engine) buildGroups() (map[types.GroupKey]*aggregate.Aggregator, []types.GroupKey, error) {
	lang := e.Language()
	groups := make(map[types.GroupKey]*aggregate.Aggregator)
	var order []types.GroupKey

	for _, p := range e.manifest.Projects {
		if err := identity.Validate(p.SuiteType, lang); err != nil {
			return nil, nil, fmt.Errorf("project %s (%s): %w", p.Name, p.Category, err)
		}

		seeds, err := p.Seeds(lang)
		if err != nil {
			return nil, nil, err
		}

		key := p.Key()
		agg, ok := groups[key]
		if !ok {
			agg, err = aggregate.New(key, p.SuiteType, lang, e.logger)
			if err != nil {
				return nil, nil, fmt.Errorf("project %s: %w", p.Name, err)
			}
			groups[key] = agg
			order = append(order, key)
		} else if agg.Group().SuiteType != p.SuiteType {
			return nil, nil, fmt.Errorf("%w: project %s is %s but group %s is %s",
				ErrMixedSuiteTypes, p.Name, p.SuiteType, key, agg.Group().SuiteType)
		}

		agg.AddProject(p.Name, p.TestCaseCount, seeds)
	}
	return groups, order, nil
}

func (e *Engine) scoreDocument(doc *etree.Document, p corpus.Project, agg *aggregate.Aggregator, result *types.SuiteResult) (types.ProjectStats, error) {
	stats := types.ProjectStats{
		Name:       p.Name,
		Category:   p.Category,
		Label:      p.GroupLabel(),
		SuiteType:  p.SuiteType,
		ResultFile: p.ResultFile,
	}

	seq := e.extractor.Findings(doc)
	for f, err := range seq.All() {
		if err != nil {
			var fe *extract.FindingError
			if !errors.As(err, &fe) {
				return stats, err
			}
			diag := diagnosticFor(fe, p)
			e.logger.Warn("finding skipped",
				zap.String("project", p.Name),
				zap.Int("index", fe.Index),
				zap.String("field", fe.Field),
				zap.Error(err),
			)
			result.Diagnostics = append(result.Diagnostics, diag)
			stats.Diagnostics++
			continue
		}

		id, ok := e.matcher.Match(p.Category, f.Fragments)
		if !ok {
			continue
		}
		if _, err := agg.Add(p.Name, f, id); err != nil {
			return stats, err
		}
		stats.Matched++
	}

	s := seq.Stats()
	stats.Records = s.Records
	stats.Findings = s.Findings
	stats.OutOfScope = s.OutOfScope
	return stats, nil
}

func diagnosticFor(fe *extract.FindingError, p corpus.Project) types.Diagnostic {
	kind := types.DiagMissingRequiredField
	if errors.Is(fe, extract.ErrMissingLocation) {
		kind = types.DiagMissingLocation
	}
	return types.Diagnostic{
		Kind:     kind,
		Project:  p.Name,
		Category: p.Category,
		Index:    fe.Index,
		Field:    fe.Field,
		Message:  fe.Error(),
	}
}
