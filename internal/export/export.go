package export

import (
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rotisserie/eris"
	"github.com/tealeg/xlsx/v2"
	"go.uber.org/zap"

	"github.com/sells-group/evidence-cli/internal/loop"
	"github.com/sells-group/evidence-cli/internal/tracker"
)

// Exporter writes loop results and retry reports to timestamped files
// under a configured directory.
type Exporter struct {
	dir string
	now func() time.Time
}

// New creates an Exporter writing into dir, creating it if needed.
func New(dir string) *Exporter {
	return &Exporter{dir: dir, now: time.Now}
}

// WithNow overrides the clock. Used by tests for stable filenames.
func (e *Exporter) WithNow(now func() time.Time) *Exporter {
	e.now = now
	return e
}

// WriteJSON writes the full result as indented JSON and returns the path.
func (e *Exporter) WriteJSON(result *loop.Result) (string, error) {
	path := e.path("evidence", result.Subject, "json")

	data, err := json.MarshalIndent(result, "", "  ")
	if err != nil {
		return "", eris.Wrap(err, "export: marshal result")
	}
	if err := e.write(path, data); err != nil {
		return "", err
	}

	zap.L().Info("export: wrote JSON result",
		zap.String("path", path),
		zap.String("subject", result.Subject),
	)
	return path, nil
}

// WriteMarkdown writes a human-readable summary of the result.
func (e *Exporter) WriteMarkdown(result *loop.Result) (string, error) {
	path := e.path("evidence", result.Subject, "md")

	var b strings.Builder
	fmt.Fprintf(&b, "# %s\n\n", result.Subject)
	fmt.Fprintf(&b, "**Question:** %s\n\n", result.Question)
	fmt.Fprintf(&b, "**Confidence:** %.1f/10 (%d attempt(s))\n\n", result.FinalConfidence, result.AttemptsUsed)

	b.WriteString("## Answer\n\n")
	b.WriteString(result.Narrative)
	b.WriteString("\n\n")

	b.WriteString("## Confidence breakdown\n\n")
	fmt.Fprintf(&b, "| Factor | Score |\n|---|---|\n")
	fmt.Fprintf(&b, "| Completeness | %.1f |\n", result.Breakdown.Completeness)
	fmt.Fprintf(&b, "| Freshness | %.1f |\n", result.Breakdown.Freshness)
	fmt.Fprintf(&b, "| Relevance | %.1f |\n", result.Breakdown.Relevance)
	fmt.Fprintf(&b, "| Specificity | %.1f |\n", result.Breakdown.Specificity)
	fmt.Fprintf(&b, "| Source quality | %.1f |\n", result.Breakdown.SourceQuality)
	fmt.Fprintf(&b, "| Rule score | %.2f |\n", result.Breakdown.RuleScore)
	fmt.Fprintf(&b, "| Opinion adjustment | %+.2f |\n", result.Breakdown.OpinionAdjustment)
	fmt.Fprintf(&b, "| **Final** | **%.2f** |\n\n", result.Breakdown.FinalScore)

	if len(result.Breakdown.Gaps) > 0 {
		b.WriteString("## Gaps\n\n")
		for _, g := range result.Breakdown.Gaps {
			fmt.Fprintf(&b, "- %s\n", g)
		}
		b.WriteString("\n")
	}

	b.WriteString("## Grounding\n\n")
	verdict := "passed"
	if !result.Grounding.Grounded {
		verdict = "FAILED"
	}
	fmt.Fprintf(&b, "Verdict: %s (ratio %.2f, %d claim(s) checked)\n\n",
		verdict, result.Grounding.Ratio, result.Grounding.CheckedClaimCount())
	for _, c := range result.Grounding.UngroundedClaims {
		fmt.Fprintf(&b, "- ungrounded %s: %s\n", c.Class, c.Text)
	}
	for _, w := range result.Grounding.Warnings {
		fmt.Fprintf(&b, "- warning: %s\n", w)
	}

	if err := e.write(path, []byte(b.String())); err != nil {
		return "", err
	}

	zap.L().Info("export: wrote Markdown result",
		zap.String("path", path),
		zap.String("subject", result.Subject),
	)
	return path, nil
}

// WriteReportsXLSX writes retry-effectiveness reports as a spreadsheet, one
// row per session, for threshold tuning in the usual tooling.
func (e *Exporter) WriteReportsXLSX(reports []tracker.Report) (string, error) {
	path := e.path("retry_reports", "", "xlsx")

	f := xlsx.NewFile()
	sheet, err := f.AddSheet("Reports")
	if err != nil {
		return "", eris.Wrap(err, "export: add sheet")
	}

	header := sheet.AddRow()
	for _, h := range []string{
		"session_id", "subject", "attempts",
		"initial_confidence", "final_confidence", "confidence_delta",
		"total_gaps", "gaps_resolved", "resolution_rate", "worthwhile",
		"recommendations",
	} {
		header.AddCell().Value = h
	}

	for _, r := range reports {
		row := sheet.AddRow()
		row.AddCell().Value = r.SessionID
		row.AddCell().Value = r.Subject
		row.AddCell().SetInt(r.TotalAttempts)
		row.AddCell().SetFloat(r.InitialConfidence)
		row.AddCell().SetFloat(r.FinalConfidence)
		row.AddCell().SetFloat(r.ConfidenceDelta)
		row.AddCell().SetInt(r.TotalGaps)
		row.AddCell().SetInt(r.GapsResolved)
		row.AddCell().SetFloat(r.ResolutionRate)
		row.AddCell().SetBool(r.Worthwhile)
		row.AddCell().Value = strings.Join(r.Recommendations, "; ")
	}

	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return "", eris.Wrap(err, "export: create dir")
	}
	if err := f.Save(path); err != nil {
		return "", eris.Wrap(err, "export: save xlsx")
	}

	zap.L().Info("export: wrote XLSX reports",
		zap.String("path", path),
		zap.Int("reports", len(reports)),
	)
	return path, nil
}

func (e *Exporter) path(prefix, subject, ext string) string {
	stamp := e.now().UTC().Format("20060102_150405")
	name := prefix
	if subject != "" {
		name += "_" + sanitize(subject)
	}
	return filepath.Join(e.dir, fmt.Sprintf("%s_%s.%s", name, stamp, ext))
}

func (e *Exporter) write(path string, data []byte) error {
	if err := os.MkdirAll(e.dir, 0o755); err != nil {
		return eris.Wrap(err, "export: create dir")
	}
	if err := os.WriteFile(path, data, 0o644); err != nil {
		return eris.Wrapf(err, "export: write %s", path)
	}
	return nil
}

func sanitize(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))
	var b strings.Builder
	for _, r := range s {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
		case r == ' ', r == '-', r == '_', r == '.':
			b.WriteRune('_')
		}
	}
	return b.String()
}
