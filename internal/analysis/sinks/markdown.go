package sinks

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/nao1215/markdown"

	"github.com/JakeFAU/sitescope/internal/analysis"
)

// MarkdownReport collects results and renders one report on Close.
type MarkdownReport struct {
	path    string
	results []analysis.Result
}

// NewMarkdownReport returns a sink that writes its report to path.
func NewMarkdownReport(path string) *MarkdownReport {
	return &MarkdownReport{path: path}
}

// Name implements analysis.Sink.
func (s *MarkdownReport) Name() string { return "markdown" }

// Write buffers res for the report.
func (s *MarkdownReport) Write(_ context.Context, res analysis.Result) error {
	s.results = append(s.results, res)
	return nil
}

// Close renders the report. Nothing is written when no site was analyzed.
func (s *MarkdownReport) Close(context.Context) error {
	if len(s.results) == 0 {
		return nil
	}
	if err := os.MkdirAll(filepath.Dir(s.path), 0o750); err != nil {
		return fmt.Errorf("create report directory: %w", err)
	}
	// #nosec G304 -- path comes from operator configuration.
	f, err := os.Create(s.path)
	if err != nil {
		return fmt.Errorf("create report: %w", err)
	}
	if err := renderReport(markdown.NewMarkdown(f), s.results); err != nil {
		_ = f.Close()
		return err
	}
	return f.Close()
}

func renderReport(md *markdown.Markdown, results []analysis.Result) error {
	first := results[0]
	md.H1("Site Analysis Report")
	md.PlainText("")
	md.Table(markdown.TableSet{
		Header: []string{"Property", "Value"},
		Rows: [][]string{
			{"Run", "`" + first.RunID + "`"},
			{"Model", first.Model},
			{"Generated", first.CreatedAt.Format("2006-01-02 15:04:05 MST")},
			{"Sites", strconv.Itoa(len(results))},
		},
	})
	md.PlainText("")

	md.H2("Overview")
	md.PlainText("")
	rows := make([][]string, len(results))
	for i, res := range results {
		rows[i] = []string{res.Site, strconv.Itoa(res.DocumentCount), strconv.Itoa(res.InputTokens)}
	}
	md.Table(markdown.TableSet{
		Header: []string{"Site", "Pages", "Input Tokens"},
		Rows:   rows,
	})
	md.PlainText("")

	for _, res := range results {
		md.H2(res.Site)
		md.PlainText("")
		md.PlainText(res.Analysis)
		md.PlainText("")
		md.BulletList(
			"Pages analyzed: "+strconv.Itoa(res.DocumentCount),
			"Input digest: `"+res.InputHash+"`",
		)
		md.PlainText("")
	}

	md.HorizontalRule()
	md.PlainText("")
	md.Note("Analyses are generated by a language model and may be inaccurate.")
	if err := md.Build(); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	return nil
}
