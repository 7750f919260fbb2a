package main

import (
	"fmt"
	"io"
	"os"
	"strconv"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"projector/internal/pipeline"
)

func printSummary(out io.Writer, summary *pipeline.Summary) {
	rows := summaryRows(summary)
	if isTerminal(out) {
		fmt.Fprintln(out, renderSummaryTable(rows))
	} else {
		for _, row := range rows {
			fmt.Fprintf(out, "%s=%s\n", row[0], row[1])
		}
	}
	fmt.Fprintf(out, "Run %s finished in %s\n", summary.RunID, summary.Duration.Round(10*time.Millisecond))
}

func summaryRows(summary *pipeline.Summary) [][2]string {
	rows := [][2]string{
		{"movies inserted", strconv.Itoa(summary.Movies.Inserted)},
		{"movies updated", strconv.Itoa(summary.Movies.Updated)},
		{"movies failed", strconv.Itoa(summary.Movies.Failed)},
		{"movie rows rejected", strconv.Itoa(summary.MoviesRejected)},
		{"enriched", strconv.Itoa(summary.Enriched)},
		{"enriched from cache", strconv.Itoa(summary.EnrichedFromCache)},
		{"lookup misses", strconv.Itoa(summary.Misses)},
		{"lookup transient failures", strconv.Itoa(summary.Transient)},
		{"recently enriched skipped", strconv.Itoa(summary.SkippedRecent)},
		{"external calls", strconv.Itoa(summary.ExternalCalls)},
		{"ratings inserted", strconv.Itoa(summary.Ratings.Inserted)},
		{"ratings updated", strconv.Itoa(summary.Ratings.Updated)},
		{"ratings failed", strconv.Itoa(summary.Ratings.Failed)},
		{"rating rows rejected", strconv.Itoa(summary.RatingsRejected)},
		{"malformed timestamps", strconv.Itoa(summary.MalformedTimestamps)},
	}
	if summary.RatingsBackupTable != "" {
		rows = append(rows, [2]string{"ratings backup table", summary.RatingsBackupTable})
	}
	return rows
}

func renderSummaryTable(rows [][2]string) string {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(table.Row{"Category", "Count"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Align: text.AlignLeft, AlignHeader: text.AlignLeft},
		{Number: 2, Align: text.AlignRight, AlignHeader: text.AlignLeft},
	})
	return tw.Render()
}

func isTerminal(writer io.Writer) bool {
	file, ok := writer.(*os.File)
	if !ok {
		return false
	}
	fd := file.Fd()
	return isatty.IsTerminal(fd) || isatty.IsCygwinTerminal(fd)
}
