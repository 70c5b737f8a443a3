package sinks

import (
	"context"
	"encoding/csv"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/JakeFAU/sitescope/internal/analysis"
	"github.com/JakeFAU/sitescope/internal/publisher/memory"
)

func sampleResult(site, text string) analysis.Result {
	return analysis.Result{
		RunID:         "run-42",
		Site:          site,
		Analysis:      text,
		Model:         "gpt-3.5-turbo-16k",
		InputTokens:   1234,
		InputHash:     "abc123",
		DocumentCount: 3,
		CreatedAt:     time.Date(2024, 3, 1, 10, 0, 0, 0, time.UTC),
	}
}

func TestRawFileAppends(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "out", "openai_analysis.raw")
	ctx := context.Background()

	for i, text := range []string{"first run", "second run"} {
		sink, err := NewRawFile(path)
		require.NoError(t, err)
		require.NoError(t, sink.Write(ctx, sampleResult("a.example", text)), i)
		require.NoError(t, sink.Close(ctx))
	}

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	assert.Equal(t,
		"-------------------- a.example --------------------\nfirst run\n\n\n"+
			"-------------------- a.example --------------------\nsecond run\n\n\n",
		string(data))
}

func TestCSVWritesHeaderAndQuotedRows(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "openai_analysis.csv")
	ctx := context.Background()

	stale, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, stale.Write(ctx, sampleResult("old.example", "stale")))
	require.NoError(t, stale.Close(ctx))

	sink, err := NewCSV(path)
	require.NoError(t, err)
	require.NoError(t, sink.Write(ctx, sampleResult("a.example", "B2B teams, \"enterprise\"\nand agencies")))
	require.NoError(t, sink.Close(ctx))

	f, err := os.Open(path)
	require.NoError(t, err)
	defer f.Close()
	records, err := csv.NewReader(f).ReadAll()
	require.NoError(t, err)
	assert.Equal(t, [][]string{
		{"Website", "Description"},
		{"a.example", "B2B teams, \"enterprise\"\nand agencies"},
	}, records)
}

func TestMarkdownReport(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.md")
	ctx := context.Background()
	sink := NewMarkdownReport(path)

	require.NoError(t, sink.Write(ctx, sampleResult("a.example", "Developers building APIs.")))
	require.NoError(t, sink.Write(ctx, sampleResult("b.example", "Small retailers.")))
	require.NoError(t, sink.Close(ctx))

	data, err := os.ReadFile(path)
	require.NoError(t, err)
	report := string(data)
	assert.Contains(t, report, "# Site Analysis Report")
	assert.Contains(t, report, "## a.example")
	assert.Contains(t, report, "Developers building APIs.")
	assert.Contains(t, report, "## b.example")
	assert.Contains(t, report, "run-42")
	assert.Contains(t, report, "1234")
}

func TestMarkdownReportSkipsEmptyRun(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "report.md")
	require.NoError(t, NewMarkdownReport(path).Close(context.Background()))

	_, err := os.Stat(path)
	assert.True(t, os.IsNotExist(err))
}

func TestNotifierPublishes(t *testing.T) {
	t.Parallel()

	pub := memory.New()
	sink, err := NewNotifier(pub, "analyses")
	require.NoError(t, err)

	require.NoError(t, sink.Write(context.Background(), sampleResult("a.example", "devs")))

	msgs := pub.Messages()
	require.Len(t, msgs, 1)
	assert.Equal(t, "analyses", msgs[0].Topic)
	payload, ok := msgs[0].Payload.(map[string]any)
	require.True(t, ok)
	assert.Equal(t, "site.analyzed", payload["event"])
	assert.Equal(t, "a.example", payload["site"])
	assert.Equal(t, "2024-03-01T10:00:00Z", payload["timestamp"])

	_, err = NewNotifier(nil, "x")
	assert.Error(t, err)
	_, err = NewNotifier(pub, "")
	assert.Error(t, err)
}
