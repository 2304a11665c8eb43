// Package extract walks tool result documents and yields raw findings.
package extract

import (
	"errors"
	"fmt"
	"iter"
	"strconv"
	"strings"

	"github.com/beevik/etree"
	"go.uber.org/zap"

	"github.com/su1ph3r/sastscore/internal/schema"
	"github.com/su1ph3r/sastscore/pkg/types"
)

var (
	// ErrMissingLocation is reported for records without a file path
	ErrMissingLocation = errors.New("finding has no file location")
	// ErrMissingRequiredField is reported for records without a usable line or function
	ErrMissingRequiredField = errors.New("finding is missing a required field")
	// ErrSequenceConsumed is yielded when a finding sequence is ranged over twice
	ErrSequenceConsumed = errors.New("finding sequence already consumed")
)

// FindingError describes a record that could not be turned into a RawFinding
type FindingError struct {
	Kind  error // ErrMissingLocation or ErrMissingRequiredField
	Index int
	Field string
	Value string
}

func (e *FindingError) Error() string {
	if e.Value != "" {
		return fmt.Sprintf("record %d: %s: %v (value: %q)", e.Index, e.Field, e.Kind, e.Value)
	}
	return fmt.Sprintf("record %d: %s: %v", e.Index, e.Field, e.Kind)
}

func (e *FindingError) Unwrap() error {
	return e.Kind
}

// Options controls which records are in scope
type Options struct {
	TrueRoot  string
	FalseRoot string
}

// Stats counts what a sequence saw
type Stats struct {
	Records         int // finding-type elements visited
	Findings        int // RawFindings yielded
	OutOfScope      int // outside the true and false roots
	MissingLocation int
	MissingRequired int
}

// Extractor reads RawFindings from documents using a resolved schema
type Extractor struct {
	schema *schema.Schema
	opts   Options
	logger *zap.Logger
}

// New creates an extractor. The schema must map every field extraction needs.
func New(s *schema.Schema, opts Options, logger *zap.Logger) (*Extractor, error) {
	if s == nil {
		return nil, fmt.Errorf("%w: no schema", schema.ErrFieldNotMapped)
	}
	if err := s.Require(); err != nil {
		return nil, err
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Extractor{
		schema: s,
		opts:   opts,
		logger: logger.Named("extract"),
	}, nil
}

// Sequence is a lazy, single-use stream of findings from one document
type Sequence struct {
	ex       *Extractor
	root     *etree.Element
	consumed bool
	stats    Stats
}

// Findings returns the finding sequence for doc
func (x *Extractor) Findings(doc *etree.Document) *Sequence {
	var root *etree.Element
	if doc != nil {
		root = doc.Root()
	}
	return &Sequence{ex: x, root: root}
}

// Stats returns the counters accumulated so far
func (s *Sequence) Stats() Stats {
	return s.stats
}

// All yields each in-scope finding, or a *FindingError for records that
// cannot be used. Ranging a second time yields ErrSequenceConsumed once.
func (s *Sequence) All() iter.Seq2[types.RawFinding, error] {
	return func(yield func(types.RawFinding, error) bool) {
		if s.consumed {
			yield(types.RawFinding{}, ErrSequenceConsumed)
			return
		}
		s.consumed = true

		index := 0
		for el := range s.ex.schema.FindingType.Elements(s.root) {
			s.stats.Records++
			f, ok, err := s.ex.read(el, index, &s.stats)
			index++
			if !ok {
				continue
			}
			if err == nil {
				s.stats.Findings++
			}
			if !yield(f, err) {
				return
			}
		}
	}
}

// read converts one element; ok is false for silently dropped records
func (x *Extractor) read(el *etree.Element, index int, stats *Stats) (types.RawFinding, bool, error) {
	sc := x.schema

	path, found := sc.FileName.Value(el)
	if !found {
		stats.MissingLocation++
		return types.RawFinding{}, true, &FindingError{Kind: ErrMissingLocation, Index: index, Field: types.FieldFileName}
	}
	path = strings.ReplaceAll(path, `\`, "/")

	if !x.inScope(path) {
		stats.OutOfScope++
		x.logger.Debug("finding out of scope", zap.Int("index", index), zap.String("path", path))
		return types.RawFinding{}, false, nil
	}

	rawLine, found := sc.LineNumber.Value(el)
	if !found {
		stats.MissingRequired++
		return types.RawFinding{}, true, &FindingError{Kind: ErrMissingRequiredField, Index: index, Field: types.FieldLineNumber}
	}
	line, err := strconv.Atoi(rawLine)
	if err != nil {
		stats.MissingRequired++
		return types.RawFinding{}, true, &FindingError{Kind: ErrMissingRequiredField, Index: index, Field: types.FieldLineNumber, Value: rawLine}
	}

	function, found := sc.FunctionName.Value(el)
	if !found {
		stats.MissingRequired++
		return types.RawFinding{}, true, &FindingError{Kind: ErrMissingRequiredField, Index: index, Field: types.FieldFunctionName}
	}

	return types.RawFinding{
		Index:     index,
		FilePath:  path,
		Line:      line,
		Function:  function,
		Fragments: sc.Identifier.Fragments(el),
	}, true, nil
}

func (x *Extractor) inScope(path string) bool {
	return (x.opts.TrueRoot != "" && strings.HasPrefix(path, x.opts.TrueRoot)) ||
		(x.opts.FalseRoot != "" && strings.HasPrefix(path, x.opts.FalseRoot))
}
