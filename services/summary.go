package services

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/jedib0t/go-pretty/v6/table"

	"heureka-stats/models"
)

// PrintSummary renders the run report as a table.
func PrintSummary(w io.Writer, r *models.RunReport) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("HEUREKA STATISTICS RUN")
	t.AppendHeader(table.Row{"Item", "Value"})

	window := r.From + " .. " + r.To
	if r.Clamped {
		window += fmt.Sprintf(" (clamped to %d days)", RetentionDays)
	}

	t.AppendRows([]table.Row{
		{"Run", r.RunID},
		{"Country", r.Country},
		{"Shop", r.EshopID},
		{"Window", window},
		{"Days requested", r.Dates},
		{"Rows written", r.Written},
		{"Days without data", r.NoData},
		{"Days skipped", len(r.Skipped)},
		{"Re-logins", r.Relogins},
	})
	if len(r.Skipped) > 0 {
		t.AppendRow(table.Row{"Skipped dates", strings.Join(r.Skipped, ", ")})
	}
	if !r.CompletedAt.IsZero() {
		t.AppendRow(table.Row{"Duration", r.CompletedAt.Sub(r.StartedAt).Round(time.Millisecond)})
	}

	t.SetStyle(table.StyleRounded)
	t.Render()
}
