package extract

import (
	"errors"
	"testing"

	"github.com/beevik/etree"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/su1ph3r/sastscore/internal/schema"
	"github.com/su1ph3r/sastscore/pkg/types"
)

func vuln(path, line, function, typ, subtype string) string {
	s := `<Vulnerability><ClassInfo>`
	if typ != "" {
		s += `<Type>` + typ + `</Type>`
	}
	if subtype != "" {
		s += `<Subtype>` + subtype + `</Subtype>`
	}
	s += `</ClassInfo><AnalysisInfo><Unified>`
	if function != "" {
		s += `<Context><Function name="` + function + `"/></Context>`
	}
	s += `<Trace><Primary><Entry><Node><SourceLocation`
	if path != "" {
		s += ` path="` + path + `"`
	}
	if line != "" {
		s += ` line="` + line + `"`
	}
	s += `/></Node></Entry></Primary></Trace></Unified></AnalysisInfo></Vulnerability>`
	return s
}

func fvdl(vulns ...string) string {
	s := `<?xml version="1.0" encoding="UTF-8"?>
<FVDL xmlns="xmlns://www.fortifysoftware.com/schema/fvdl" version="1.12"><Build><BuildID>t</BuildID></Build><Vulnerabilities>`
	for _, v := range vulns {
		s += v
	}
	return s + `</Vulnerabilities></FVDL>`
}

func newExtractor(t *testing.T) *Extractor {
	t.Helper()
	s, err := schema.Resolve(types.DefaultFortifyFields())
	require.NoError(t, err)
	x, err := New(s, Options{TrueRoot: "T/", FalseRoot: "F/"}, nil)
	require.NoError(t, err)
	return x
}

func parse(t *testing.T, xml string) *etree.Document {
	t.Helper()
	doc := etree.NewDocument()
	require.NoError(t, doc.ReadFromString(xml))
	return doc
}

func TestFindings(t *testing.T) {
	doc := parse(t, fvdl(
		vuln("T/CWE121_01.c", "42", "CWE121_01_bad", "Buffer Overflow", "Off-by-One"),
		vuln("testcasesupport/io.c", "7", "printLine", "Buffer Overflow", ""),
		vuln(`F\CWE121_01_good1.c`, "13", "CWE121_01_good1", "Buffer Overflow", ""),
		vuln("", "1", "f", "Buffer Overflow", ""),
		vuln("T/CWE121_02.c", "abc", "f", "Buffer Overflow", ""),
		vuln("T/CWE121_03.c", "9", "", "Buffer Overflow", ""),
		vuln("T/CWE121_04.c", "", "f", "Buffer Overflow", ""),
	))

	seq := newExtractor(t).Findings(doc)

	var findings []types.RawFinding
	var errs []error
	for f, err := range seq.All() {
		if err != nil {
			errs = append(errs, err)
			continue
		}
		findings = append(findings, f)
	}

	require.Len(t, findings, 2)
	assert.Equal(t, types.RawFinding{
		Index:     0,
		FilePath:  "T/CWE121_01.c",
		Line:      42,
		Function:  "CWE121_01_bad",
		Fragments: []string{"Buffer Overflow", "Off-by-One"},
	}, findings[0])
	assert.Equal(t, "F/CWE121_01_good1.c", findings[1].FilePath, "backslashes should be normalized")
	assert.Equal(t, 2, findings[1].Index)
	assert.Equal(t, []string{"Buffer Overflow"}, findings[1].Fragments, "missing slots are omitted")

	require.Len(t, errs, 4)
	var fe *FindingError
	require.True(t, errors.As(errs[0], &fe))
	assert.ErrorIs(t, errs[0], ErrMissingLocation)
	assert.Equal(t, 3, fe.Index)

	assert.ErrorIs(t, errs[1], ErrMissingRequiredField)
	require.True(t, errors.As(errs[1], &fe))
	assert.Equal(t, types.FieldLineNumber, fe.Field)
	assert.Equal(t, "abc", fe.Value)

	require.True(t, errors.As(errs[2], &fe))
	assert.Equal(t, types.FieldFunctionName, fe.Field)

	require.True(t, errors.As(errs[3], &fe))
	assert.Equal(t, types.FieldLineNumber, fe.Field)

	stats := seq.Stats()
	assert.Equal(t, Stats{
		Records:         7,
		Findings:        2,
		OutOfScope:      1,
		MissingLocation: 1,
		MissingRequired: 3,
	}, stats)
}

func TestFindings_SingleUse(t *testing.T) {
	doc := parse(t, fvdl(vuln("T/a.c", "1", "bad", "X", "")))
	seq := newExtractor(t).Findings(doc)

	n := 0
	for _, err := range seq.All() {
		require.NoError(t, err)
		n++
	}
	assert.Equal(t, 1, n)

	var second []error
	for _, err := range seq.All() {
		second = append(second, err)
	}
	require.Len(t, second, 1)
	assert.ErrorIs(t, second[0], ErrSequenceConsumed)
}

func TestFindings_EarlyBreak(t *testing.T) {
	doc := parse(t, fvdl(
		vuln("T/a.c", "1", "bad", "X", ""),
		vuln("T/b.c", "2", "bad", "X", ""),
		vuln("T/c.c", "3", "bad", "X", ""),
	))
	seq := newExtractor(t).Findings(doc)

	for range seq.All() {
		break
	}
	assert.Equal(t, 1, seq.Stats().Findings)
}

func TestFindings_EmptyDocument(t *testing.T) {
	seq := newExtractor(t).Findings(etree.NewDocument())
	for range seq.All() {
		t.Fatal("expected no findings")
	}
	assert.Equal(t, 0, seq.Stats().Records)
}

func TestNew_RequiresMappedFields(t *testing.T) {
	s, err := schema.Resolve([]types.FieldMapping{
		{Item: "finding_type", Path: "Vulnerabilities/Vulnerability", Kind: "tag"},
	})
	require.NoError(t, err)

	_, err = New(s, Options{TrueRoot: "T/"}, nil)
	assert.ErrorIs(t, err, schema.ErrFieldNotMapped)

	_, err = New(nil, Options{}, nil)
	assert.ErrorIs(t, err, schema.ErrFieldNotMapped)
}
