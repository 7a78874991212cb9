// Package display renders CLI output with lipgloss.
package display

import (
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"

	"github.com/dyike/forexcell/models"
)

var (
	titleStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#7C3AED")).
			Padding(0, 1)

	headerStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("#3B82F6")).
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#3B82F6")).
			Padding(0, 2)

	panelStyle = lipgloss.NewStyle().
			BorderStyle(lipgloss.RoundedBorder()).
			BorderForeground(lipgloss.Color("#10B981")).
			Padding(0, 1)

	labelStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280")).
			Width(22)

	pendingStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#6B7280"))

	completedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#10B981")).
			Bold(true)

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#EF4444")).
			Bold(true)

	warnStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("#F59E0B"))
)

// Banner prints the application title line.
func Banner(w io.Writer, name, tagline string) {
	fmt.Fprintln(w, titleStyle.Render("💱 "+name))
	if tagline != "" {
		fmt.Fprintln(w, pendingStyle.Render("   "+tagline))
	}
}

func Header(w io.Writer, text string) {
	fmt.Fprintln(w, headerStyle.Render(text))
}

func Success(w io.Writer, msg string) { fmt.Fprintln(w, completedStyle.Render("✅ "+msg)) }

func Error(w io.Writer, err error) { fmt.Fprintln(w, errorStyle.Render("❌ "+err.Error())) }

func Warning(w io.Writer, msg string) { fmt.Fprintln(w, warnStyle.Render("⚠️  "+msg)) }

func Info(w io.Writer, msg string) { fmt.Fprintln(w, "ℹ️  "+msg) }

// KeyValues prints aligned label/value rows in insertion order.
func KeyValues(w io.Writer, rows [][2]string) {
	for _, r := range rows {
		fmt.Fprintln(w, labelStyle.Render(r[0])+r[1])
	}
}

// Check renders a configured/not configured marker.
func Check(ok bool) string {
	if ok {
		return completedStyle.Render("✅ configured")
	}
	return errorStyle.Render("❌ not configured")
}

// RunSummary prints the per-step outcome table and totals of a run.
func RunSummary(w io.Writer, r *models.RunReport) {
	var b strings.Builder
	fmt.Fprintf(&b, "Run %s  (%s)\n\n", r.RunID, r.FinishedAt.Sub(r.StartedAt).Round(time.Millisecond))
	for _, key := range r.Order {
		res := r.Results[key]
		status := completedStyle.Render("✔")
		detail := ""
		switch {
		case res.Skipped:
			status = pendingStyle.Render("–")
			detail = pendingStyle.Render("skipped")
		case !res.Success:
			status = errorStyle.Render("✘")
			detail = errorStyle.Render(truncate(res.Error, 60))
		}
		fmt.Fprintf(&b, "%s %-32s %-12s %6dms %s\n", status, truncate(key, 32), res.Type, res.DurationMS, detail)
	}
	s := r.Summary
	fmt.Fprintf(&b, "\n%d steps: %d ok, %d failed, %d skipped", s.Total, s.Successful, s.Failed, s.Skipped)
	fmt.Fprintln(w, panelStyle.Render(b.String()))
}

// Table prints rows under a header with columns padded to their widest cell.
func Table(w io.Writer, header []string, rows [][]string) {
	widths := make([]int, len(header))
	for i, h := range header {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			if i < len(widths) && lipgloss.Width(cell) > widths[i] {
				widths[i] = lipgloss.Width(cell)
			}
		}
	}
	line := func(cells []string, style lipgloss.Style) {
		parts := make([]string, len(cells))
		for i, cell := range cells {
			parts[i] = style.Render(pad(cell, widths[i]))
		}
		fmt.Fprintln(w, strings.TrimRight(strings.Join(parts, "  "), " "))
	}
	line(header, titleStyle.Padding(0))
	for _, row := range rows {
		line(row, lipgloss.NewStyle())
	}
}

// Stored prints the stored variables of a run, sorted by name.
func Stored(w io.Writer, stored map[string]any) {
	if len(stored) == 0 {
		return
	}
	keys := make([]string, 0, len(stored))
	for k := range stored {
		keys = append(keys, k)
	}
	sort.Strings(keys)
	rows := make([][2]string, 0, len(keys))
	for _, k := range keys {
		rows = append(rows, [2]string{k, truncate(fmt.Sprint(stored[k]), 80)})
	}
	KeyValues(w, rows)
}

func pad(s string, n int) string {
	if d := n - lipgloss.Width(s); d > 0 {
		return s + strings.Repeat(" ", d)
	}
	return s
}

func truncate(s string, n int) string {
	s = strings.ReplaceAll(s, "\n", " ")
	if len([]rune(s)) <= n {
		return s
	}
	return string([]rune(s)[:n-3]) + "..."
}
