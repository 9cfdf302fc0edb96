package main

import (
	"io"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"

	"github.com/c360studio/semdigest/pipeline"
)

// writeSummary prints the run report as a table.
func writeSummary(w io.Writer, r *pipeline.Report) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetStyle(table.StyleLight)
	t.AppendHeader(table.Row{"Stage", "OK", "Failed"})
	t.AppendRows([]table.Row{
		{"run", r.RunID, ""},
		{"fetched", r.Fetched, "-"},
		{"processed", r.Processed, r.Failed},
		{"indexed", r.Persisted, r.PersistFailures},
		{"delivered", r.Delivered, r.DeliveryFailures},
	})
	t.AppendFooter(table.Row{"duration", r.Duration.Round(time.Millisecond), ""})
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 2, Align: text.AlignRight},
		{Number: 3, Align: text.AlignRight},
	})

	if r.SourceError != nil {
		t.AppendRow(table.Row{"source error", r.SourceError.Error(), ""})
	}
	if r.RenderError != nil {
		t.AppendRow(table.Row{"render error", r.RenderError.Error(), ""})
	}
	t.Render()
}
