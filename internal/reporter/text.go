package reporter

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/fatih/color"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// TextReporter generates plain text reports for terminals and logs
type TextReporter struct {
	options ReportOptions
	pass    *color.Color
	fail    *color.Color
	warn    *color.Color
	header  *color.Color
}

// NewTextReporter creates a new text reporter
func NewTextReporter(options ReportOptions) *TextReporter {
	r := &TextReporter{
		options: options,
		pass:    color.New(color.FgGreen, color.Bold),
		fail:    color.New(color.FgRed, color.Bold),
		warn:    color.New(color.FgYellow),
		header:  color.New(color.FgCyan, color.Bold),
	}
	if options.NoColor {
		for _, c := range []*color.Color{r.pass, r.fail, r.warn, r.header} {
			c.DisableColor()
		}
	}
	return r
}

// Format returns the format name
func (r *TextReporter) Format() string {
	return "text"
}

// Extension returns the file extension
func (r *TextReporter) Extension() string {
	return "txt"
}

// Generate generates a text report
func (r *TextReporter) Generate(result *types.SuiteResult) ([]byte, error) {
	var buf strings.Builder
	if err := r.Write(result, &buf); err != nil {
		return nil, err
	}
	return []byte(buf.String()), nil
}

// Write writes the text report to a writer
func (r *TextReporter) Write(result *types.SuiteResult, w io.Writer) error {
	r.writeHeader(w, result)
	r.writeCategories(w, result)
	r.writeScore(w, result)
	r.writeIdentifiers(w, result)

	if r.options.IncludeTestCases {
		r.writeTestCases(w, result)
	}
	if r.options.IncludeHits {
		r.writeHits(w, result)
	}

	r.writeAnalytics(w, result)
	r.writeProblems(w, result)
	r.writeFooter(w, result)
	return nil
}

func (r *TextReporter) writeHeader(w io.Writer, result *types.SuiteResult) {
	v := r.options.Version
	if v == "" {
		v = "unknown"
	}
	fmt.Fprintf(w, "\n")
	fmt.Fprintf(w, "%s (sastscore %s)\n", r.options.Title, v)
	fmt.Fprintf(w, "Tool %s, language %s, run %s\n", result.Tool, result.Language, result.RunID)
	fmt.Fprintf(w, "Scored %d projects in %s\n", len(result.Projects), formatDuration(result.Duration))
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeCategories(w io.Writer, result *types.SuiteResult) {
	r.header.Fprintf(w, "CATEGORIES\n")
	fmt.Fprintf(w, "%-10s %8s %8s %6s %6s %9s %7s %6s\n",
		"CATEGORY", "TC_TRUE", "TC_FALSE", "TP", "FP", "PRECISION", "RECALL", "WEIGHT")

	for _, c := range result.Categories {
		fmt.Fprintf(w, "%-10s %8d %8d %6d %6d %9s %7s %6.2f",
			c.Category, c.TCTrue, c.TCFalse, c.TP, c.FP, c.Precision, c.Recall, c.Weight)

		var flags []string
		if c.EmptyPositiveCategory {
			flags = append(flags, "no positive cases")
		}
		if c.NoAcceptedIdentifiers {
			flags = append(flags, "no accepted identifiers")
		}
		if c.NoHits {
			flags = append(flags, "no hits")
		}
		if len(flags) > 0 {
			r.warn.Fprintf(w, "  [%s]", strings.Join(flags, "; "))
		}
		fmt.Fprintf(w, "\n")
	}

	t := result.Totals
	fmt.Fprintf(w, "%-10s %8d %8d %6d %6d\n", "TOTAL", t.TCTrue, t.TCFalse, t.TP, t.FP)
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeScore(w io.Writer, result *types.SuiteResult) {
	fmt.Fprintf(w, "Precision (weighted avg): %s\n", result.PrecisionAvg)
	fmt.Fprintf(w, "Recall (weighted avg):    %s\n", result.RecallAvg)
	fmt.Fprintf(w, "Overall:                  %s (threshold %.2f)\n", result.Overall, result.Threshold)

	fmt.Fprintf(w, "Verdict:                  ")
	if result.Verdict == types.VerdictPass {
		r.pass.Fprintf(w, "%s\n", result.Verdict)
	} else {
		r.fail.Fprintf(w, "%s\n", result.Verdict)
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeIdentifiers(w io.Writer, result *types.SuiteResult) {
	if len(result.Categories) == 0 {
		return
	}
	r.header.Fprintf(w, "IDENTIFIERS\n")
	for _, c := range result.Categories {
		fmt.Fprintf(w, "%s\n", c.Category)
		fmt.Fprintf(w, "    Used:   %s\n", FormatList(c.UsedIdentifiers))
		fmt.Fprintf(w, "    Unused: %s\n", FormatList(c.UnusedIdentifiers))
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeTestCases(w io.Writer, result *types.SuiteResult) {
	summaries := TestCaseSummaries(result)
	if len(summaries) == 0 {
		return
	}

	r.header.Fprintf(w, "TEST CASES\n")
	fmt.Fprintf(w, "%-14s %-40s %5s %11s %7s\n", "GROUP", "TEST CASE", "HITS", "SCORE/OPPS", "PERCENT")
	for _, s := range summaries {
		fmt.Fprintf(w, "%-14s %-40s %5d %11s %7s\n",
			s.Group, TruncateString(s.Name, 40), s.Hits,
			fmt.Sprintf("%d/%d", s.Score, s.Opportunities), s.Percent.Percent())

		for _, st := range s.Status {
			mark := "missed"
			if st.Found {
				mark = "found"
			}
			fmt.Fprintf(w, "    %-30s %s\n", st.Name, mark)
		}
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeHits(w io.Writer, result *types.SuiteResult) {
	rows := result.HitRows()
	if len(rows) == 0 {
		fmt.Fprintf(w, "No matched findings.\n\n")
		return
	}

	r.header.Fprintf(w, "HITS\n")
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	for _, h := range rows {
		fmt.Fprintf(w, "%s:%d %s/%s %s", h.File, h.Line, h.Category, h.Label, h.Function)
		if h.Duplicate {
			r.warn.Fprintf(w, " [duplicate location]")
		}
		fmt.Fprintf(w, "\n")
		fmt.Fprintf(w, "    Test case:  %s (%d/%d, %s)\n", h.TestCase, h.Score, h.Opportunities, h.Percent.Percent())
		fmt.Fprintf(w, "    Identifier: %s\n", h.Identifier)
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeAnalytics(w io.Writer, result *types.SuiteResult) {
	a := result.Analytics
	if len(a.Functions) == 0 {
		return
	}

	r.header.Fprintf(w, "FUNCTION ANALYTICS\n")
	fmt.Fprintf(w, "%-24s %-6s %6s %6s %6s %8s\n", "FUNCTION", "GROUP", "HITS", "MISSES", "OPPS", "PERCENT")
	for _, f := range a.Functions {
		fmt.Fprintf(w, "%-24s %-6s %6d %6d %6d %8s\n",
			TruncateString(f.Name, 24), f.Group, f.Hits, f.Misses, f.Opportunities, f.Percent.Percent())
	}
	for _, g := range a.Groups {
		fmt.Fprintf(w, "%-24s %-6s %6d %6s %6d %8s\n",
			"total", g.Group, g.Hits, "", g.Opportunities, g.Percent.Percent())
	}
	for _, note := range a.ManualReview {
		r.warn.Fprintf(w, "[!] %s\n", note)
	}
	fmt.Fprintf(w, "\n")
}

func (r *TextReporter) writeProblems(w io.Writer, result *types.SuiteResult) {
	for _, d := range result.Defects {
		r.warn.Fprintf(w, "[!] %s: %s\n", d.Category, d.Message)
	}

	kinds := []types.DiagnosticKind{
		types.DiagMissingLocation,
		types.DiagMissingRequiredField,
		types.DiagHitsWithoutOpportunities,
	}
	for _, k := range kinds {
		if n := result.DiagnosticCount(k); n > 0 {
			r.warn.Fprintf(w, "[!] %d %s diagnostics\n", n, k)
		}
	}
	if len(result.Defects) > 0 || len(result.Diagnostics) > 0 {
		fmt.Fprintf(w, "\n")
	}
}

func (r *TextReporter) writeFooter(w io.Writer, result *types.SuiteResult) {
	fmt.Fprintf(w, "%s\n", strings.Repeat("-", 70))
	fmt.Fprintf(w, "Scoring completed at %s\n", result.FinishedAt.Format("2006-01-02 15:04 MST"))
	fmt.Fprintf(w, "sastscore done: %d categories, %d hits, verdict %s\n",
		len(result.Categories), result.Totals.TP+result.Totals.FP, result.Verdict)
}

// formatDuration formats a duration in a human-readable way
func formatDuration(d time.Duration) string {
	if d < time.Second {
		return fmt.Sprintf("%dms", d.Milliseconds())
	}
	if d < time.Minute {
		return fmt.Sprintf("%.1fs", d.Seconds())
	}
	if d < time.Hour {
		mins := int(d.Minutes())
		secs := int(d.Seconds()) % 60
		return fmt.Sprintf("%dm%02ds", mins, secs)
	}
	hours := int(d.Hours())
	mins := int(d.Minutes()) % 60
	return fmt.Sprintf("%dh%02dm", hours, mins)
}
