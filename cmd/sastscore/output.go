package main

import (
	"fmt"
	"io"
	"time"

	"github.com/fatih/color"

	"github.com/su1ph3r/sastscore/internal/history"
	"github.com/su1ph3r/sastscore/pkg/types"
)

// statusOut receives the banner, progress and summary. It moves to stderr
// when reports are written to stdout so they stay pipeable.
var statusOut io.Writer = color.Output

var (
	infoColor    = color.New(color.FgCyan)
	successColor = color.New(color.FgGreen)
	warningColor = color.New(color.FgYellow)
	errorColor   = color.New(color.FgRed)
)

func printBanner() {
	banner := `
                 _
 ___  __ _  ___| |_ ___  ___ ___  _ __ ___
/ __|/ _` + "`" + ` |/ __| __/ __|/ __/ _ \| '__/ _ \
\__ \ (_| |\__ \ |_\__ \ (_| (_) | | |  __/
|___/\__,_||___/\__|___/\___\___/|_|  \___|
SAST result scoring v%s
`
	fmt.Fprintf(statusOut, banner, version)
	fmt.Fprintln(statusOut)
}

func printInfo(format string, args ...interface{}) {
	infoColor.Fprintf(statusOut, "[*] "+format+"\n", args...)
}

func printSuccess(format string, args ...interface{}) {
	successColor.Fprintf(statusOut, "[+] "+format+"\n", args...)
}

func printWarning(format string, args ...interface{}) {
	warningColor.Fprintf(statusOut, "[!] "+format+"\n", args...)
}

func printError(format string, args ...interface{}) {
	errorColor.Fprintf(statusOut, "[-] "+format+"\n", args...)
}

func printSummary(result *types.SuiteResult, verbose bool) {
	fmt.Fprintln(statusOut)
	printInfo("Scored %d categories from %d projects in %s",
		len(result.Categories), len(result.Projects), result.Duration.Round(time.Millisecond))

	if verbose {
		for _, p := range result.Projects {
			fmt.Fprintf(statusOut, "    %-24s %-8s %5d records %5d findings %5d matched %5d out of scope\n",
				p.Name, p.Label, p.Records, p.Findings, p.Matched, p.OutOfScope)
		}
	}

	for _, c := range result.Categories {
		line := fmt.Sprintf("  %-10s TP %-5d FP %-5d precision %-5s recall %-5s",
			c.Category, c.TP, c.FP, c.Precision, c.Recall)
		switch {
		case c.EmptyPositiveCategory:
			warningColor.Fprintf(statusOut, "%s (no positive cases)\n", line)
		case c.NoHits:
			warningColor.Fprintf(statusOut, "%s (no hits)\n", line)
		default:
			fmt.Fprintln(statusOut, line)
		}
	}

	fmt.Fprintln(statusOut)
	fmt.Fprintf(statusOut, "  Precision: %s  Recall: %s  Overall: %s (threshold %.2f)\n",
		result.PrecisionAvg, result.RecallAvg, result.Overall, result.Threshold)

	for _, note := range result.Analytics.ManualReview {
		printWarning("%s", note)
	}
	if n := len(result.Diagnostics); n > 0 {
		printWarning("%d records or test cases produced diagnostics (see log)", n)
	}
	for _, d := range result.Defects {
		printWarning("%s", d.Message)
	}

	if result.Verdict == types.VerdictPass {
		printSuccess("Verdict: %s", result.Verdict)
	} else {
		printError("Verdict: %s", result.Verdict)
	}
	fmt.Fprintln(statusOut)
}

func printComparison(c history.Comparison) {
	if c.VerdictFlip {
		printWarning("Verdict changed since run %s", c.PreviousRunID)
	}

	regressions := c.Regressions()
	if len(regressions) == 0 {
		printSuccess("No regressions since run %s", c.PreviousRunID)
		return
	}
	for _, ch := range regressions {
		scope := "suite"
		if ch.Category != "" {
			scope = ch.Category
		}
		printWarning("%s %s dropped: %s -> %s", scope, ch.Metric, ch.Previous, ch.Current)
	}
}
