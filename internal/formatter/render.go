package formatter

import (
	"fmt"
	"strings"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/dustin/go-humanize"
)

var styles = NewPalette("#7D56F4", "#04B575", "#FF0000", "#FFA500", "#626262")

// Palette is a simple stylesheet built with named [lipgloss.Style] fields
type Palette struct {
	title lipgloss.Style
	ok    lipgloss.Style
	err   lipgloss.Style
	warn  lipgloss.Style
	help  lipgloss.Style
}

func NewPalette(t, s, e, w, h string) *Palette {
	return &Palette{
		title: NewBold(t),
		ok:    NewBold(s),
		err:   NewBold(e),
		warn:  NewStyle(w),
		help:  NewEm(h),
	}
}

func NewStyle(fg string) lipgloss.Style {
	return lipgloss.NewStyle().Foreground(lipgloss.Color(fg))
}

func NewBold(fg string) lipgloss.Style {
	return NewStyle(fg).Bold(true)
}

func NewEm(fg string) lipgloss.Style {
	return NewStyle(fg).Italic(true)
}

// phaseStyle colors a phase: green when uploaded, red when failed, orange while in flight.
func phaseStyle(p models.Phase) lipgloss.Style {
	switch p {
	case models.PhaseUploaded:
		return styles.ok
	case models.PhaseFailed:
		return styles.err
	case models.PhasePending:
		return styles.help
	default:
		return styles.warn
	}
}

// RenderJob renders a job projection as labelled lines.
func RenderJob(v models.JobView, now time.Time) string {
	var b strings.Builder

	name := v.Filename
	if name == "" {
		name = "(unknown job)"
	}
	b.WriteString(styles.title.Render(name))
	b.WriteString("\n")

	fmt.Fprintf(&b, "  phase:   %s\n", phaseStyle(v.Phase).Render(string(v.Phase)))
	if v.SourceURL != "" {
		fmt.Fprintf(&b, "  source:  %s\n", v.SourceURL)
	}
	if v.Error != "" {
		fmt.Fprintf(&b, "  error:   %s\n", styles.err.Render(v.Error))
	}
	if v.Phase == models.PhaseUploaded {
		fmt.Fprintf(&b, "  ready:   %t\n", v.Ready)
	}
	if v.CreatedAt != nil {
		fmt.Fprintf(&b, "  created: %s\n", humanize.RelTime(*v.CreatedAt, now, "ago", "from now"))
	}
	if v.UpdatedAt != nil {
		fmt.Fprintf(&b, "  updated: %s\n", humanize.RelTime(*v.UpdatedAt, now, "ago", "from now"))
	}
	return b.String()
}

// RenderLibrary renders library entries as an aligned table, newest first as given.
func RenderLibrary(entries []models.LibraryEntryView, now time.Time) string {
	if len(entries) == 0 {
		return styles.help.Render("library is empty") + "\n"
	}

	headers := []string{"TITLE", "DURATION", "SIZE", "ADDED", "FILENAME"}
	rows := make([][]string, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, []string{
			e.Title,
			FormatDuration(e.Duration),
			humanize.Bytes(uint64(max(e.SizeBytes, 0))),
			humanize.RelTime(e.CreatedAt, now, "ago", "from now"),
			e.Filename,
		})
	}

	widths := make([]int, len(headers))
	for i, h := range headers {
		widths[i] = lipgloss.Width(h)
	}
	for _, row := range rows {
		for i, cell := range row {
			widths[i] = max(widths[i], lipgloss.Width(cell))
		}
	}

	var b strings.Builder
	b.WriteString(styles.title.Render(pad(headers, widths)))
	b.WriteString("\n")
	for _, row := range rows {
		b.WriteString(pad(row, widths))
		b.WriteString("\n")
	}
	b.WriteString(styles.help.Render(fmt.Sprintf("%d items", len(entries))))
	b.WriteString("\n")
	return b.String()
}

func pad(cells []string, widths []int) string {
	parts := make([]string, len(cells))
	for i, c := range cells {
		parts[i] = c + strings.Repeat(" ", widths[i]-lipgloss.Width(c))
	}
	return strings.TrimRight(strings.Join(parts, "  "), " ")
}
