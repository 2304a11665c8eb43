// Package schema resolves a tool's field-mapping table into compiled
// element paths used to read result documents.
package schema

import (
	"errors"
	"fmt"
	"iter"
	"strings"

	"github.com/beevik/etree"

	"github.com/su1ph3r/sastscore/pkg/types"
)

var (
	// ErrFieldNotMapped is returned when a required logical field has no mapping row
	ErrFieldNotMapped = errors.New("field not mapped")
	// ErrInvalidMapping is returned for malformed mapping rows
	ErrInvalidMapping = errors.New("invalid field mapping")
)

// FieldSchema is the resolved location of one logical field.
// It is immutable once resolved.
type FieldSchema struct {
	Name      string
	Path      string // element path, relative to the finding element
	Attribute string // empty when the value is element text

	compiled etree.Path
}

// IsAttribute reports whether the value is read from an attribute
func (f *FieldSchema) IsAttribute() bool {
	return f.Attribute != ""
}

// Element returns the first element under e matching the field path
func (f *FieldSchema) Element(e *etree.Element) *etree.Element {
	if e == nil {
		return nil
	}
	return e.FindElementPath(f.compiled)
}

// Elements yields every element under e matching the field path, in document order
func (f *FieldSchema) Elements(e *etree.Element) iter.Seq[*etree.Element] {
	if e == nil {
		return func(func(*etree.Element) bool) {}
	}
	return e.FindElementsPathSeq(f.compiled)
}

// Value reads the field under e. Values are trimmed; empty text counts as absent.
func (f *FieldSchema) Value(e *etree.Element) (string, bool) {
	el := f.Element(e)
	if el == nil {
		return "", false
	}

	var v string
	if f.IsAttribute() {
		attr := el.SelectAttr(f.Attribute)
		if attr == nil {
			return "", false
		}
		v = attr.Value
	} else {
		v = el.Text()
	}

	v = strings.TrimSpace(v)
	return v, v != ""
}

func (f *FieldSchema) String() string {
	if f.IsAttribute() {
		return f.Name + "=" + f.Path + "/@" + f.Attribute
	}
	return f.Name + "=" + f.Path
}

// IdentifierSchema is the ordered list of weakness identifier fragment slots
type IdentifierSchema struct {
	Slots []*FieldSchema
}

// Len returns the number of fragment slots
func (s IdentifierSchema) Len() int {
	return len(s.Slots)
}

// Fragments reads every slot under e, keeping present values in slot order
func (s IdentifierSchema) Fragments(e *etree.Element) []string {
	var out []string
	for _, slot := range s.Slots {
		if v, ok := slot.Value(e); ok {
			out = append(out, v)
		}
	}
	return out
}

// Schema is the resolved field-mapping table for one tool
type Schema struct {
	FindingType  *FieldSchema
	FileName     *FieldSchema
	LineNumber   *FieldSchema
	FunctionName *FieldSchema
	Identifier   IdentifierSchema
}

// Lookup returns the FieldSchema for a logical field name, or nil when unmapped
func (s *Schema) Lookup(name string) *FieldSchema {
	switch normalizeItem(name) {
	case types.FieldFindingType:
		return s.FindingType
	case types.FieldFileName:
		return s.FileName
	case types.FieldLineNumber:
		return s.LineNumber
	case types.FieldFunctionName:
		return s.FunctionName
	}
	return nil
}

// Require fails with ErrFieldNotMapped naming the first unmapped field.
// With no arguments it checks every field extraction needs.
func (s *Schema) Require(names ...string) error {
	if len(names) == 0 {
		names = []string{
			types.FieldFindingType,
			types.FieldFileName,
			types.FieldLineNumber,
			types.FieldFunctionName,
			types.WeaknessMarker,
		}
	}

	for _, name := range names {
		if strings.Contains(normalizeItem(name), types.WeaknessMarker) {
			if s.Identifier.Len() == 0 {
				return fmt.Errorf("%w: %s", ErrFieldNotMapped, name)
			}
			continue
		}
		if s.Lookup(name) == nil {
			return fmt.Errorf("%w: %s", ErrFieldNotMapped, name)
		}
	}
	return nil
}

// Resolve builds a Schema from field-mapping rows. Item names are
// case-insensitive and rows with unknown items are ignored.
func Resolve(rows []types.FieldMapping) (*Schema, error) {
	s := &Schema{}

	for i, row := range rows {
		item := normalizeItem(row.Item)
		kind := row.NormalizedKind()

		var slot **FieldSchema
		switch {
		case item == types.FieldFindingType:
			if kind != types.FieldKindTag {
				return nil, fmt.Errorf("%w: row %d: %s must be a tag", ErrInvalidMapping, i, item)
			}
			slot = &s.FindingType
		case item == types.FieldFileName:
			slot = &s.FileName
		case item == types.FieldLineNumber:
			slot = &s.LineNumber
		case item == types.FieldFunctionName:
			slot = &s.FunctionName
		case strings.Contains(item, types.WeaknessMarker):
		default:
			continue
		}

		fs, err := compileField(item, row.Path, kind)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}

		if slot == nil {
			s.Identifier.Slots = append(s.Identifier.Slots, fs)
			continue
		}
		if *slot != nil {
			return nil, fmt.Errorf("%w: row %d: duplicate mapping for %s", ErrInvalidMapping, i, item)
		}
		*slot = fs
	}

	return s, nil
}

func compileField(item, path, kind string) (*FieldSchema, error) {
	path = strings.TrimSpace(path)
	if path == "" {
		return nil, fmt.Errorf("%w: %s has an empty path", ErrInvalidMapping, item)
	}

	fs := &FieldSchema{Name: item, Path: path}

	switch kind {
	case types.FieldKindTag:
	case types.FieldKindAttribute:
		idx := strings.LastIndex(path, "/")
		if idx < 0 {
			fs.Path, fs.Attribute = ".", path
		} else {
			fs.Path, fs.Attribute = path[:idx], path[idx+1:]
		}
		fs.Attribute = strings.TrimPrefix(fs.Attribute, "@")
		if fs.Attribute == "" || fs.Path == "" {
			return nil, fmt.Errorf("%w: %s: attribute path %q has no container or key", ErrInvalidMapping, item, path)
		}
	default:
		return nil, fmt.Errorf("%w: %s: unknown kind %q", ErrInvalidMapping, item, kind)
	}

	compiled, err := etree.CompilePath(relative(fs.Path))
	if err != nil {
		return nil, fmt.Errorf("%w: %s: %v", ErrInvalidMapping, item, err)
	}
	fs.compiled = compiled
	return fs, nil
}

// relative anchors bare paths at the element they are evaluated from
func relative(path string) string {
	if strings.HasPrefix(path, "/") || strings.HasPrefix(path, ".") {
		return path
	}
	return "./" + path
}

func normalizeItem(item string) string {
	return strings.ToLower(strings.TrimSpace(item))
}
