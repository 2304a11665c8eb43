// Package reporter provides output formatting for scoring results
package reporter

import (
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strings"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// Reporter interface for generating reports
type Reporter interface {
	// Generate generates a report from a scoring result
	Generate(result *types.SuiteResult) ([]byte, error)

	// Write writes the report to a writer
	Write(result *types.SuiteResult, w io.Writer) error

	// Format returns the report format name
	Format() string

	// Extension returns the file extension for this format
	Extension() string
}

// NewReporter creates a reporter based on format
func NewReporter(format string, options ReportOptions) (Reporter, error) {
	switch strings.ToLower(strings.TrimSpace(format)) {
	case "json":
		return NewJSONReporter(options), nil
	case "text", "txt":
		return NewTextReporter(options), nil
	case "markdown", "md":
		return NewMarkdownReporter(options), nil
	default:
		return nil, fmt.Errorf("unsupported report format: %s", format)
	}
}

// ReportOptions contains options for report generation
type ReportOptions struct {
	IncludeHits      bool   // Include the flattened hit rows
	IncludeTestCases bool   // Include per-test-case scores and opportunity status
	NoColor          bool   // Disable terminal colors in text output
	Title            string // Custom report title
	Version          string // sastscore version shown in headers
}

// DefaultOptions returns default report options
func DefaultOptions() ReportOptions {
	return ReportOptions{
		IncludeHits:      true,
		IncludeTestCases: true,
		Title:            "SAST Scoring Report",
	}
}

// WriteToFile writes a report to a file
func WriteToFile(reporter Reporter, result *types.SuiteResult, filename string) error {
	dir := filepath.Dir(filename)
	if dir != "" && dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return fmt.Errorf("failed to create directory: %w", err)
		}
	}

	file, err := os.Create(filename)
	if err != nil {
		return fmt.Errorf("failed to create file: %w", err)
	}
	defer file.Close()

	return reporter.Write(result, file)
}

// MultiReporter generates reports in multiple formats
type MultiReporter struct {
	reporters []Reporter
}

// NewMultiReporter creates a multi-format reporter
func NewMultiReporter(formats []string, options ReportOptions) (*MultiReporter, error) {
	mr := &MultiReporter{
		reporters: make([]Reporter, 0, len(formats)),
	}

	for _, format := range formats {
		r, err := NewReporter(format, options)
		if err != nil {
			return nil, err
		}
		mr.reporters = append(mr.reporters, r)
	}

	return mr, nil
}

// WriteAll writes reports in all configured formats next to basePath
func (mr *MultiReporter) WriteAll(result *types.SuiteResult, basePath string) ([]string, error) {
	written := make([]string, 0, len(mr.reporters))
	for _, r := range mr.reporters {
		filename := basePath + "." + r.Extension()
		if err := WriteToFile(r, result, filename); err != nil {
			return written, fmt.Errorf("failed to write %s report: %w", r.Format(), err)
		}
		written = append(written, filename)
	}
	return written, nil
}

// TestCaseSummary is the per-test-case view shown in reports
type TestCaseSummary struct {
	Group         string                    `json:"group"`
	Name          string                    `json:"name"`
	Hits          int                       `json:"hits"`
	Score         int                       `json:"score"`
	Opportunities int                       `json:"opportunities"`
	Percent       types.Ratio               `json:"percent"`
	InCorpus      bool                      `json:"in_corpus"`
	Status        []types.OpportunityStatus `json:"opportunity_status,omitempty"`
}

// TestCaseSummaries lists every test case with at least one hit or a
// corpus entry, in group order
func TestCaseSummaries(result *types.SuiteResult) []TestCaseSummary {
	var out []TestCaseSummary
	for _, g := range result.Groups {
		for _, tc := range g.TestCases {
			out = append(out, TestCaseSummary{
				Group:         g.Key.String(),
				Name:          tc.Name,
				Hits:          len(tc.Hits),
				Score:         tc.Score,
				Opportunities: tc.Opportunities,
				Percent:       tc.Percent,
				InCorpus:      tc.InCorpus,
				Status:        tc.OpportunityStatus(),
			})
		}
	}
	return out
}

// FormatList joins identifiers for display; an empty list shows as "-"
func FormatList(items []string) string {
	if len(items) == 0 {
		return "-"
	}
	return strings.Join(items, ", ")
}

// TruncateString truncates a string to max length
func TruncateString(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	if maxLen <= 3 {
		return s[:maxLen]
	}
	return s[:maxLen-3] + "..."
}

// EscapeMarkdown escapes characters that break Markdown table cells
func EscapeMarkdown(s string) string {
	chars := []string{"\\", "`", "*", "_", "|", "[", "]"}
	for _, c := range chars {
		s = strings.ReplaceAll(s, c, "\\"+c)
	}
	return s
}
