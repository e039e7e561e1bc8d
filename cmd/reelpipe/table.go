package main

import (
	"fmt"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/jedib0t/go-pretty/v6/text"
	"github.com/mattn/go-isatty"

	"reelpipe/internal/queue"
)

var statusColors = map[queue.Status]text.Colors{
	queue.StatusQueued:    {text.FgCyan},
	queue.StatusRunning:   {text.FgYellow},
	queue.StatusCompleted: {text.FgGreen},
	queue.StatusFailed:    {text.FgRed},
}

var colorOutput = isatty.IsTerminal(os.Stdout.Fd()) || isatty.IsCygwinTerminal(os.Stdout.Fd())

// coloredStatus renders a status cell, colored only when stdout is a terminal.
func coloredStatus(status queue.Status) string {
	if !colorOutput {
		return string(status)
	}
	return statusColors[status].Sprint(string(status))
}

func newTable(header table.Row) table.Writer {
	tw := table.NewWriter()
	tw.SetStyle(table.StyleRounded)
	tw.AppendHeader(header)
	return tw
}

func rightAlign(column int) []table.ColumnConfig {
	return []table.ColumnConfig{{
		Number:      column,
		Align:       text.AlignRight,
		AlignHeader: text.AlignLeft,
	}}
}

// renderItemTable lists queue items with shortened IDs, colored statuses, and
// a right-aligned progress column.
func renderItemTable(items []*queue.Item) string {
	tw := newTable(table.Row{"ID", "STATUS", "PROGRESS", "STEP", "PRESET", "ADDED"})
	for _, item := range items {
		tw.AppendRow(table.Row{
			shortID(item.ID),
			coloredStatus(item.Status),
			fmt.Sprintf("%.0f%%", item.Progress),
			itemStep(item),
			item.PresetName,
			item.AddedAt.Local().Format("Jan 02 15:04"),
		})
	}
	tw.SetColumnConfigs(rightAlign(3))
	return tw.Render()
}

// renderCountTable shows per-status totals followed by dispatch settings.
func renderCountTable(stats map[queue.Status]int, extra [][2]string) string {
	tw := newTable(table.Row{"STATUS", "COUNT"})
	for _, status := range queue.AllStatuses() {
		tw.AppendRow(table.Row{coloredStatus(status), fmt.Sprintf("%d", stats[status])})
	}
	for _, row := range extra {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	tw.SetColumnConfigs(rightAlign(2))
	return tw.Render()
}

// renderFieldTable is the two-column layout used by daemon status.
func renderFieldTable(rows [][2]string) string {
	tw := newTable(table.Row{"FIELD", "VALUE"})
	for _, row := range rows {
		tw.AppendRow(table.Row{row[0], row[1]})
	}
	return tw.Render()
}

func shortID(id string) string {
	if len(id) > 8 {
		return id[:8]
	}
	return id
}

// itemStep prefers the failure detail over the live step label.
func itemStep(item *queue.Item) string {
	if item.Status == queue.StatusFailed && item.FailedStep != "" {
		return fmt.Sprintf("%s: %s", item.FailedStep, item.Error)
	}
	return item.CurrentStep
}
