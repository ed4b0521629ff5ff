package main

import (
	"fmt"
	"io"
	"os"
	"time"
)

// statusf prints a status message to stderr unless quiet mode is set.
func statusf(format string, args ...any) {
	if !flagQuiet {
		fmt.Fprintf(os.Stderr, format, args...)
	}
}

// Binary size units.
const (
	sizeKB int64 = 1 << (10 * (iota + 1))
	sizeMB
	sizeGB
	sizeTB
)

// formatSize renders a byte count in the largest binary unit that keeps
// the value at or above one.
func formatSize(n int64) string {
	units := []struct {
		limit int64
		label string
	}{
		{sizeTB, "TB"},
		{sizeGB, "GB"},
		{sizeMB, "MB"},
		{sizeKB, "KB"},
	}

	for _, u := range units {
		if n >= u.limit {
			return fmt.Sprintf("%.1f %s", float64(n)/float64(u.limit), u.label)
		}
	}

	return fmt.Sprintf("%d B", n)
}

// formatTime renders a modification time the way ls does: time of day
// within the current year, the year otherwise. A zero time renders as "-".
func formatTime(t time.Time) string {
	if t.IsZero() {
		return "-"
	}

	if t.Year() == time.Now().Year() {
		return t.Format("Jan _2 15:04")
	}

	return t.Format("Jan _2  2006")
}

// printTable writes rows under their headers with two-space gutters,
// sized to the widest cell per column. The last column is not padded.
func printTable(w io.Writer, headers []string, rows [][]string) {
	widths := columnWidths(headers, rows)

	writeRow(w, headers, widths)

	for _, row := range rows {
		writeRow(w, row, widths)
	}
}

func columnWidths(headers []string, rows [][]string) []int {
	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = len(h)
	}

	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], len(cell))
		}
	}

	return widths
}

func writeRow(w io.Writer, cells []string, widths []int) {
	for i, cell := range cells {
		if i == len(cells)-1 {
			fmt.Fprintln(w, cell)
			return
		}

		fmt.Fprintf(w, "%-*s  ", widths[i], cell)
	}

	fmt.Fprintln(w)
}
