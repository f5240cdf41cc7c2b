package ui

import (
	"github.com/charmbracelet/bubbles/table"
	"github.com/charmbracelet/lipgloss"
)

// TableColumn defines a table column with title and width.
type TableColumn struct {
	Title string
	Width int
}

// NewTable creates a Bubbles table with the shared styling. Used both for
// static CLI output and inside the forward watch dashboard.
func NewTable(columns []TableColumn, rows []table.Row) table.Model {
	cols := make([]table.Column, len(columns))
	for i, c := range columns {
		cols[i] = table.Column{Title: c.Title, Width: c.Width}
	}

	t := table.New(
		table.WithColumns(cols),
		table.WithRows(rows),
		table.WithFocused(false),
		table.WithHeight(len(rows)+1),
	)

	s := table.DefaultStyles()
	s.Header = s.Header.
		BorderStyle(lipgloss.NormalBorder()).
		BorderForeground(ColorMuted).
		BorderBottom(true).
		Bold(true).
		Foreground(ColorPrimary)
	s.Cell = s.Cell.
		Foreground(ColorPrimary)
	s.Selected = s.Selected.
		Foreground(ColorPrimary).
		Background(ColorMuted).
		Bold(false)
	t.SetStyles(s)
	return t
}

// RenderSimpleTable renders a non-interactive table string for plain CLI
// output.
func RenderSimpleTable(columns []TableColumn, rows [][]string) string {
	if len(rows) == 0 {
		return ""
	}

	tableRows := make([]table.Row, len(rows))
	for i, row := range rows {
		tableRows[i] = table.Row(row)
	}
	return NewTable(columns, tableRows).View()
}

// StatusCell colors a tunnel or host status word for table display.
func StatusCell(status string) string {
	switch status {
	case "running", "online", "connected":
		return Success(status)
	case "error", "offline":
		return Error(status)
	case "starting", "stopping":
		return Warning(status)
	case "stopped":
		return Muted(status)
	default:
		return status
	}
}
