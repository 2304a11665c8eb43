// Package identity derives canonical test-case names from source file paths.
package identity

import (
	"errors"
	"fmt"
	"path"
	"regexp"
	"strings"

	"github.com/su1ph3r/sastscore/pkg/types"
)

var (
	// ErrUnknownSuiteType is returned for suite types without a naming rule
	ErrUnknownSuiteType = errors.New("unknown suite type")
	// ErrUnknownLanguage is returned for languages without a naming rule
	ErrUnknownLanguage = errors.New("unknown language")
)

// sourceExt matches the source file extensions the suites ship
const sourceExt = `\.(?i:c|cc|cpp|cxx|h|hpp|java)$`

var (
	// type-A: variant letter + extension, or the first _good/_bad suffix
	julietSuffix = regexp.MustCompile(`([a-z]?` + sourceExt + `)|(_good.*)|(_bad.*)`)
	// type-B: optional _ or a + extension
	kdmSuffix = regexp.MustCompile(`[_a]?` + sourceExt)
)

// Validate checks that a suite type and language have a naming rule
func Validate(st types.SuiteType, lang types.Language) error {
	if !st.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownSuiteType, st)
	}
	if !lang.Valid() {
		return fmt.Errorf("%w: %q", ErrUnknownLanguage, lang)
	}
	return nil
}

// Name returns the canonical test-case name for a file path.
// Applying Name to its own output returns the same name.
func Name(filePath string, st types.SuiteType, lang types.Language) (string, error) {
	if err := Validate(st, lang); err != nil {
		return "", err
	}

	suffix := kdmSuffix
	if st == types.SuiteJuliet {
		suffix = julietSuffix
	}

	// strip until stable so a canonical name maps to itself
	name := filePath
	for {
		next := suffix.ReplaceAllString(name, "")
		if next == name {
			return name, nil
		}
		name = next
	}
}

// FunctionName reduces a function name to the part that identifies the
// flow variant it credits. Type-A names keep the text after the last
// underscore ("CWE121_01_goodG2B1" -> "goodG2B1"); a C++ "action" method
// takes its variant from the file name. Type-B names are kept verbatim.
func FunctionName(function, filePath string, st types.SuiteType, lang types.Language) string {
	if st != types.SuiteJuliet {
		return function
	}

	if lang == types.LanguageCPP && function == "action" {
		base := path.Base(filePath)
		base = strings.TrimSuffix(base, path.Ext(base))
		return afterLast(base, "_")
	}
	return afterLast(function, "_")
}

func afterLast(s, sep string) string {
	if i := strings.LastIndex(s, sep); i >= 0 {
		return s[i+len(sep):]
	}
	return s
}
