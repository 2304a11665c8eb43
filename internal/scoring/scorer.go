// Package scoring rolls category groups up into precision, recall and a
// pass/fail verdict for the suite.
package scoring

import (
	"errors"
	"fmt"
	"sort"

	"go.uber.org/zap"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// ErrEmptyPositiveCategory marks a category without positive test cases
var ErrEmptyPositiveCategory = errors.New("category has no positive test cases")

// AcceptedSource provides the configured identifiers per category
type AcceptedSource interface {
	AcceptedValues(category string) []string
}

// Scorer computes suite statistics from finalized groups
type Scorer struct {
	settings types.ScoringSettings
	accepted AcceptedSource
	logger   *zap.Logger
}

// New creates a scorer. accepted may be nil when identifier usage is not reported.
func New(settings types.ScoringSettings, accepted AcceptedSource, logger *zap.Logger) *Scorer {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Scorer{
		settings: settings,
		accepted: accepted,
		logger:   logger.Named("scoring"),
	}
}

// Score fills in group totals, category rows, averages, verdict and
// analytics on r. Groups must already be finalized.
func (s *Scorer) Score(r *types.SuiteResult) {
	sort.SliceStable(r.Groups, func(i, j int) bool {
		return r.Groups[i].Key.Less(r.Groups[j].Key)
	})

	byCategory := make(map[string]*types.CategoryScore)
	var order []string
	r.Defects = nil

	for _, g := range r.Groups {
		policy := PolicyFor(g.SuiteType, g.Key.Label)
		hits := policy.Hits(g)
		cases := policy.Cases(g)

		g.Policy = policy.Name()
		g.HitTotal = hits
		g.PercentHits = types.NewRatio(float64(hits), float64(cases))

		cat, ok := byCategory[g.Key.Category]
		if !ok {
			cat = &types.CategoryScore{Category: g.Key.Category}
			byCategory[g.Key.Category] = cat
			order = append(order, g.Key.Category)
		}
		if g.Key.Label.Positive() {
			cat.TP += hits
			cat.TCTrue += cases
		} else {
			cat.FP += hits
			cat.TCFalse += cases
		}
		cat.UsedIdentifiers = appendUnique(cat.UsedIdentifiers, g.UsedIdentifiers...)
	}

	sort.Strings(order)
	r.Categories = r.Categories[:0]
	r.Totals = types.SuiteTotals{}

	for _, id := range order {
		cat := byCategory[id]
		s.scoreCategory(r, cat)

		r.Totals.TCTrue += cat.TCTrue
		r.Totals.TCFalse += cat.TCFalse
		r.Totals.TP += cat.TP
		r.Totals.FP += cat.FP
		r.Categories = append(r.Categories, *cat)
	}

	r.PrecisionAvg = WeightedMean(r.Categories, func(c types.CategoryScore) types.Ratio { return c.Precision })
	r.RecallAvg = WeightedMean(r.Categories, func(c types.CategoryScore) types.Ratio { return c.Recall })
	r.Overall = Overall(r.PrecisionAvg, r.RecallAvg)
	r.Threshold = s.settings.Threshold
	r.Verdict = Judge(r.Overall, s.settings.Threshold)
	r.Analytics = Analyze(r.Groups)

	for _, note := range r.Analytics.ManualReview {
		s.logger.Warn("manual review recommended", zap.String("note", note))
	}

	s.logger.Info("suite scored",
		zap.Int("categories", len(r.Categories)),
		zap.Stringer("precision", r.PrecisionAvg),
		zap.Stringer("recall", r.RecallAvg),
		zap.Stringer("overall", r.Overall),
		zap.String("verdict", string(r.Verdict)),
	)
}

func (s *Scorer) scoreCategory(r *types.SuiteResult, cat *types.CategoryScore) {
	cat.Weight = s.settings.Weight(cat.Category)
	cat.Precision = types.NewRatio(float64(cat.TP), float64(cat.TP+cat.FP))
	cat.NoHits = cat.TP+cat.FP == 0

	if cat.TCTrue == 0 {
		cat.Recall = types.NA
		cat.EmptyPositiveCategory = true
		err := fmt.Errorf("%s: %w", cat.Category, ErrEmptyPositiveCategory)
		s.logger.Warn("recall undefined", zap.String("category", cat.Category), zap.Error(err))
		r.Defects = append(r.Defects, types.Defect{
			Kind:     types.DefectEmptyPositiveCategory,
			Category: cat.Category,
			Message:  err.Error(),
		})
	} else {
		cat.Recall = types.NewRatio(float64(cat.TP), float64(cat.TCTrue))
	}

	if s.accepted != nil {
		cat.AcceptedIdentifiers = s.accepted.AcceptedValues(cat.Category)
	}
	cat.NoAcceptedIdentifiers = len(cat.AcceptedIdentifiers) == 0
	cat.UnusedIdentifiers = difference(cat.AcceptedIdentifiers, cat.UsedIdentifiers)
}

// WeightedMean is Σ(wᵢ·vᵢ)/Σwᵢ over categories whose value is defined.
// It is undefined when no category contributes weight.
func WeightedMean(cats []types.CategoryScore, value func(types.CategoryScore) types.Ratio) types.Ratio {
	var sum, weights float64
	for _, c := range cats {
		v := value(c)
		if !v.Defined {
			continue
		}
		sum += c.Weight * v.Value
		weights += c.Weight
	}
	return types.NewRatio(sum, weights)
}

// Overall averages precision and recall; undefined if either is
func Overall(precision, recall types.Ratio) types.Ratio {
	if !precision.Defined || !recall.Defined {
		return types.NA
	}
	return types.DefinedRatio((precision.Value + recall.Value) / 2)
}

// Judge passes a defined overall score at or above the threshold
func Judge(overall types.Ratio, threshold float64) types.Verdict {
	if overall.Defined && overall.Value >= threshold {
		return types.VerdictPass
	}
	return types.VerdictFail
}

func appendUnique(dst []string, items ...string) []string {
	for _, it := range items {
		found := false
		for _, d := range dst {
			if d == it {
				found = true
				break
			}
		}
		if !found {
			dst = append(dst, it)
		}
	}
	return dst
}

func difference(all, used []string) []string {
	seen := make(map[string]bool, len(used))
	for _, u := range used {
		seen[u] = true
	}
	out := []string{}
	for _, a := range all {
		if !seen[a] {
			out = append(out, a)
		}
	}
	return out
}
