package reporter

import (
	"fmt"
	"io"
	"strings"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// MarkdownReporter generates Markdown reports
type MarkdownReporter struct {
	options ReportOptions
}

// NewMarkdownReporter creates a new Markdown reporter
func NewMarkdownReporter(options ReportOptions) *MarkdownReporter {
	return &MarkdownReporter{options: options}
}

// Format returns the format name
func (r *MarkdownReporter) Format() string {
	return "markdown"
}

// Extension returns the file extension
func (r *MarkdownReporter) Extension() string {
	return "md"
}

// Generate generates a Markdown report
func (r *MarkdownReporter) Generate(result *types.SuiteResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the Markdown report to a writer
func (r *MarkdownReporter) Write(result *types.SuiteResult, w io.Writer) error {
	fmt.Fprintf(w, "# %s\n\n", r.options.Title)

	// Summary
	fmt.Fprintf(w, "## Summary\n\n")
	fmt.Fprintf(w, "| Metric | Value |\n")
	fmt.Fprintf(w, "|--------|-------|\n")
	fmt.Fprintf(w, "| Run ID | `%s` |\n", result.RunID)
	fmt.Fprintf(w, "| Tool | %s |\n", EscapeMarkdown(result.Tool))
	fmt.Fprintf(w, "| Language | %s |\n", result.Language)
	fmt.Fprintf(w, "| Start Time | %s |\n", result.StartedAt.Format("2006-01-02 15:04:05"))
	fmt.Fprintf(w, "| Duration | %s |\n", result.Duration)
	fmt.Fprintf(w, "| Precision (weighted avg) | %s |\n", result.PrecisionAvg)
	fmt.Fprintf(w, "| Recall (weighted avg) | %s |\n", result.RecallAvg)
	fmt.Fprintf(w, "| Overall | %s |\n", result.Overall)
	fmt.Fprintf(w, "| Threshold | %.2f |\n", result.Threshold)
	fmt.Fprintf(w, "| **Verdict** | **%s** |\n", result.Verdict)
	fmt.Fprintf(w, "\n")

	// Categories
	fmt.Fprintf(w, "## Categories\n\n")
	if len(result.Categories) == 0 {
		fmt.Fprintf(w, "_No categories scored._\n\n")
	} else {
		fmt.Fprintf(w, "| Category | TC true | TC false | TP | FP | Precision | Recall | Weight | Used | Unused |\n")
		fmt.Fprintf(w, "|----------|---------|----------|----|----|-----------|--------|--------|------|--------|\n")
		for _, c := range result.Categories {
			fmt.Fprintf(w, "| %s | %d | %d | %d | %d | %s | %s | %.2f | %s | %s |\n",
				c.Category, c.TCTrue, c.TCFalse, c.TP, c.FP, c.Precision, c.Recall, c.Weight,
				EscapeMarkdown(FormatList(c.UsedIdentifiers)), EscapeMarkdown(FormatList(c.UnusedIdentifiers)))
		}
		t := result.Totals
		fmt.Fprintf(w, "| **Total** | **%d** | **%d** | **%d** | **%d** | | | | | |\n", t.TCTrue, t.TCFalse, t.TP, t.FP)
		fmt.Fprintf(w, "\n")
	}

	// Hits
	if r.options.IncludeHits {
		rows := result.HitRows()
		fmt.Fprintf(w, "## Hits (%d)\n\n", len(rows))
		if len(rows) == 0 {
			fmt.Fprintf(w, "_No matched findings._\n\n")
		} else {
			fmt.Fprintf(w, "| Location | Group | Function | Test case | Score | Identifier |\n")
			fmt.Fprintf(w, "|----------|-------|----------|-----------|-------|------------|\n")
			for _, h := range rows {
				loc := fmt.Sprintf("`%s:%d`", h.File, h.Line)
				if h.Duplicate {
					loc += " (dup)"
				}
				fmt.Fprintf(w, "| %s | %s/%s | %s | %s | %d/%d (%s) | %s |\n",
					loc, h.Category, h.Label, EscapeMarkdown(h.Function), EscapeMarkdown(h.TestCase),
					h.Score, h.Opportunities, h.Percent.Percent(), EscapeMarkdown(h.Identifier))
			}
			fmt.Fprintf(w, "\n")
		}
	}

	// Function analytics
	if len(result.Analytics.Functions) > 0 {
		fmt.Fprintf(w, "## Function Analytics\n\n")
		fmt.Fprintf(w, "| Function | Group | Hits | Misses | Percent |\n")
		fmt.Fprintf(w, "|----------|-------|------|--------|---------|\n")
		for _, f := range result.Analytics.Functions {
			fmt.Fprintf(w, "| %s | %s | %d | %d | %s |\n",
				EscapeMarkdown(f.Name), f.Group, f.Hits, f.Misses, f.Percent.Percent())
		}
		fmt.Fprintf(w, "\n")
		for _, note := range result.Analytics.ManualReview {
			fmt.Fprintf(w, "> **Note:** %s\n\n", EscapeMarkdown(note))
		}
	}

	// Defects
	if len(result.Defects) > 0 {
		fmt.Fprintf(w, "## Defects\n\n")
		for _, d := range result.Defects {
			fmt.Fprintf(w, "- **%s** `%s`: %s\n", d.Category, d.Kind, EscapeMarkdown(d.Message))
		}
		fmt.Fprintf(w, "\n")
	}

	fmt.Fprintf(w, "---\n\n")
	fmt.Fprintf(w, "_Report generated by sastscore_\n")
	return nil
}
