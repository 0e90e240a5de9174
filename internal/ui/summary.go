package ui

import (
	"fmt"
	"io"
	"time"

	"github.com/SK124/Swamp/internal/room"
	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
)

// SessionSummary renders the exit report of a room session.
func SessionSummary(w io.Writer, role room.Role, st room.Stats, ended time.Time) {
	t := table.NewWriter()
	t.SetOutputMirror(w)
	t.SetTitle("Session Summary")
	t.SetStyle(table.StyleRounded)
	t.Style().Title.Align = text.AlignCenter
	t.Style().Options.SeparateRows = false
	t.SetColumnConfigs([]table.ColumnConfig{
		{Number: 1, Colors: text.Colors{text.Bold}},
		{Number: 2, Align: text.AlignRight},
	})

	t.AppendHeader(table.Row{"Metric", "Value"})

	swamp := st.SwampUUID
	if swamp == "" {
		swamp = "-"
	}
	duration := time.Duration(0)
	if !st.StartedAt.IsZero() {
		duration = ended.Sub(st.StartedAt).Round(time.Second)
	}

	t.AppendRows([]table.Row{
		{"Role", role.String()},
		{"Swamp", swamp},
		{"Duration", duration.String()},
		{"Time connected", st.Connected.Round(time.Second).String()},
		{"Connections", st.Connects},
		{"Reconnects", st.Reconnects},
		{"Streams seen", st.StreamsSeen},
		{"Peak viewers", st.MaxStreams},
	})

	fmt.Fprintln(w)
	t.Render()
}
