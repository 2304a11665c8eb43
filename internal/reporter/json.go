package reporter

import (
	"io"
	"time"

	json "github.com/json-iterator/go"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// JSONReporter generates JSON reports
type JSONReporter struct {
	options ReportOptions
}

// NewJSONReporter creates a new JSON reporter
func NewJSONReporter(options ReportOptions) *JSONReporter {
	return &JSONReporter{options: options}
}

// Format returns the format name
func (r *JSONReporter) Format() string {
	return "json"
}

// Extension returns the file extension
func (r *JSONReporter) Extension() string {
	return "json"
}

// Generate generates a JSON report
func (r *JSONReporter) Generate(result *types.SuiteResult) ([]byte, error) {
	return json.MarshalIndent(r.prepareOutput(result), "", "  ")
}

// Write writes the JSON report to a writer
func (r *JSONReporter) Write(result *types.SuiteResult, w io.Writer) error {
	data, err := r.Generate(result)
	if err != nil {
		return err
	}
	data = append(data, '\n')
	_, err = w.Write(data)
	return err
}

func (r *JSONReporter) prepareOutput(result *types.SuiteResult) *JSONOutput {
	output := &JSONOutput{
		RunID:        result.RunID,
		Tool:         result.Tool,
		Language:     result.Language,
		StartTime:    result.StartedAt.Format(time.RFC3339),
		EndTime:      result.FinishedAt.Format(time.RFC3339),
		Duration:     result.Duration.String(),
		Verdict:      result.Verdict,
		Threshold:    result.Threshold,
		Overall:      result.Overall,
		PrecisionAvg: result.PrecisionAvg,
		RecallAvg:    result.RecallAvg,
		Totals:       result.Totals,
		Categories:   result.Categories,
		Groups:       make([]JSONGroup, 0, len(result.Groups)),
		Projects:     result.Projects,
		Analytics:    result.Analytics,
		Diagnostics:  result.Diagnostics,
		Defects:      result.Defects,
	}

	for _, g := range result.Groups {
		output.Groups = append(output.Groups, JSONGroup{
			Category:         g.Key.Category,
			Label:            g.Key.Label,
			SuiteType:        g.SuiteType,
			Policy:           g.Policy,
			Projects:         g.Projects,
			TestCases:        len(g.TestCases),
			CaseCount:        g.CaseCount,
			OpportunityTotal: g.OpportunityTotal,
			HitTotal:         g.HitTotal,
			PercentHits:      g.PercentHits,
			UsedIdentifiers:  g.UsedIdentifiers,
		})
	}

	if r.options.IncludeTestCases {
		output.TestCases = TestCaseSummaries(result)
	}
	if r.options.IncludeHits {
		output.Hits = result.HitRows()
	}
	return output
}

// JSONOutput is the JSON output structure
type JSONOutput struct {
	RunID        string                  `json:"run_id"`
	Tool         string                  `json:"tool"`
	Language     types.Language          `json:"language"`
	StartTime    string                  `json:"start_time"`
	EndTime      string                  `json:"end_time"`
	Duration     string                  `json:"duration"`
	Verdict      types.Verdict           `json:"verdict"`
	Threshold    float64                 `json:"threshold"`
	Overall      types.Ratio             `json:"overall"`
	PrecisionAvg types.Ratio             `json:"precision_avg"`
	RecallAvg    types.Ratio             `json:"recall_avg"`
	Totals       types.SuiteTotals       `json:"totals"`
	Categories   []types.CategoryScore   `json:"categories"`
	Groups       []JSONGroup             `json:"groups"`
	Projects     []types.ProjectStats    `json:"projects"`
	TestCases    []TestCaseSummary       `json:"test_cases,omitempty"`
	Hits         []types.HitRow          `json:"hits,omitempty"`
	Analytics    types.FunctionAnalytics `json:"analytics"`
	Diagnostics  []types.Diagnostic      `json:"diagnostics,omitempty"`
	Defects      []types.Defect          `json:"defects,omitempty"`
}

// JSONGroup is a category group without its hit lists
type JSONGroup struct {
	Category         string          `json:"category"`
	Label            types.Label     `json:"label"`
	SuiteType        types.SuiteType `json:"suite_type"`
	Policy           string          `json:"policy"`
	Projects         []string        `json:"projects"`
	TestCases        int             `json:"test_cases"`
	CaseCount        int             `json:"case_count"`
	OpportunityTotal int             `json:"opportunity_total"`
	HitTotal         int             `json:"hit_total"`
	PercentHits      types.Ratio     `json:"percent_hits"`
	UsedIdentifiers  []string        `json:"used_identifiers"`
}
