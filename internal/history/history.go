// Package history records scoring runs to a JSONL file and compares a
// run against the one before it.
package history

import (
	"bytes"
	"fmt"
	"os"
	"path/filepath"
	"time"

	json "github.com/json-iterator/go"
	"github.com/mitchellh/go-homedir"

	"github.com/su1ph3r/sastscore/pkg/types"
)

// CategoryRecord stores one category's rates for a run
type CategoryRecord struct {
	Category  string      `json:"category"`
	TP        int         `json:"tp"`
	FP        int         `json:"fp"`
	Precision types.Ratio `json:"precision"`
	Recall    types.Ratio `json:"recall"`
}

// RunRecord stores the headline metrics of one scoring run
type RunRecord struct {
	RunID      string            `json:"run_id"`
	Tool       string            `json:"tool"`
	Language   types.Language    `json:"language"`
	FinishedAt time.Time         `json:"finished_at"`
	Precision  types.Ratio       `json:"precision"`
	Recall     types.Ratio       `json:"recall"`
	Overall    types.Ratio       `json:"overall"`
	Verdict    types.Verdict     `json:"verdict"`
	Totals     types.SuiteTotals `json:"totals"`
	Categories []CategoryRecord  `json:"categories,omitempty"`
}

// NewRunRecord summarizes a scored result
func NewRunRecord(r *types.SuiteResult) RunRecord {
	rec := RunRecord{
		RunID:      r.RunID,
		Tool:       r.Tool,
		Language:   r.Language,
		FinishedAt: r.FinishedAt,
		Precision:  r.PrecisionAvg,
		Recall:     r.RecallAvg,
		Overall:    r.Overall,
		Verdict:    r.Verdict,
		Totals:     r.Totals,
	}
	for _, c := range r.Categories {
		rec.Categories = append(rec.Categories, CategoryRecord{
			Category:  c.Category,
			TP:        c.TP,
			FP:        c.FP,
			Precision: c.Precision,
			Recall:    c.Recall,
		})
	}
	return rec
}

// Category returns the record for a category id
func (r RunRecord) Category(id string) (CategoryRecord, bool) {
	for _, c := range r.Categories {
		if c.Category == id {
			return c, true
		}
	}
	return CategoryRecord{}, false
}

// Tracker appends run records to a JSONL file and keeps them in memory
type Tracker struct {
	FilePath string
	History  []RunRecord
}

// NewTracker loads any records already in filePath
func NewTracker(filePath string) (*Tracker, error) {
	expanded, err := homedir.Expand(filePath)
	if err != nil {
		return nil, fmt.Errorf("expand history path: %w", err)
	}
	t := &Tracker{FilePath: expanded}
	if err := t.load(); err != nil {
		return nil, err
	}
	return t, nil
}

// Last returns the most recent record
func (t *Tracker) Last() (RunRecord, bool) {
	if len(t.History) == 0 {
		return RunRecord{}, false
	}
	return t.History[len(t.History)-1], true
}

// Append adds a record and writes it to the JSONL file
func (t *Tracker) Append(rec RunRecord) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal run record: %w", err)
	}

	if err := os.MkdirAll(filepath.Dir(t.FilePath), 0750); err != nil {
		return fmt.Errorf("create history dir: %w", err)
	}

	f, err := os.OpenFile(t.FilePath, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0600)
	if err != nil {
		return fmt.Errorf("open history file: %w", err)
	}
	defer f.Close()

	if _, err := f.Write(append(data, '\n')); err != nil {
		return fmt.Errorf("write run record: %w", err)
	}
	t.History = append(t.History, rec)
	return nil
}

// IsStalled reports whether the overall score has not changed across the
// last n+1 runs
func (t *Tracker) IsStalled(n int) bool {
	if n < 1 || len(t.History) < n+1 {
		return false
	}
	latest := t.History[len(t.History)-1].Overall
	for i := len(t.History) - n - 1; i < len(t.History)-1; i++ {
		if t.History[i].Overall != latest {
			return false
		}
	}
	return true
}

// load reads existing records; a missing file is an empty history.
// Lines that do not decode are skipped.
func (t *Tracker) load() error {
	data, err := os.ReadFile(t.FilePath)
	if os.IsNotExist(err) {
		return nil
	}
	if err != nil {
		return fmt.Errorf("read history: %w", err)
	}

	for _, line := range bytes.Split(data, []byte{'\n'}) {
		line = bytes.TrimSpace(line)
		if len(line) == 0 {
			continue
		}
		var rec RunRecord
		if err := json.Unmarshal(line, &rec); err == nil {
			t.History = append(t.History, rec)
		}
	}
	return nil
}

// Change is the movement of one metric between two runs
type Change struct {
	Metric   string      `json:"metric"`
	Category string      `json:"category,omitempty"`
	Previous types.Ratio `json:"previous"`
	Current  types.Ratio `json:"current"`
}

// Delta returns current minus previous; undefined when either side is
func (c Change) Delta() types.Ratio {
	if !c.Previous.Defined || !c.Current.Defined {
		return types.NA
	}
	return types.DefinedRatio(c.Current.Value - c.Previous.Value)
}

// Regressed reports a drop from a defined value, or a value becoming undefined
func (c Change) Regressed() bool {
	if !c.Previous.Defined {
		return false
	}
	return !c.Current.Defined || c.Current.Value < c.Previous.Value
}

// Comparison lists every metric that moved between two runs
type Comparison struct {
	PreviousRunID string   `json:"previous_run_id"`
	CurrentRunID  string   `json:"current_run_id"`
	Changes       []Change `json:"changes"`
	VerdictFlip   bool     `json:"verdict_flip"`
}

// Regressions returns the changes that got worse
func (c Comparison) Regressions() []Change {
	var out []Change
	for _, ch := range c.Changes {
		if ch.Regressed() {
			out = append(out, ch)
		}
	}
	return out
}

// Compare diffs the suite averages and every category present in cur.
// Categories new in cur are compared against an undefined previous value.
func Compare(prev, cur RunRecord) Comparison {
	cmp := Comparison{
		PreviousRunID: prev.RunID,
		CurrentRunID:  cur.RunID,
		VerdictFlip:   prev.Verdict != "" && prev.Verdict != cur.Verdict,
	}

	add := func(metric, category string, p, c types.Ratio) {
		if p == c {
			return
		}
		cmp.Changes = append(cmp.Changes, Change{Metric: metric, Category: category, Previous: p, Current: c})
	}

	add("precision", "", prev.Precision, cur.Precision)
	add("recall", "", prev.Recall, cur.Recall)
	add("overall", "", prev.Overall, cur.Overall)

	for _, c := range cur.Categories {
		p, _ := prev.Category(c.Category)
		add("precision", c.Category, p.Precision, c.Precision)
		add("recall", c.Category, p.Recall, c.Recall)
	}
	return cmp
}
