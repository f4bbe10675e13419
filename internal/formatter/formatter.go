// package formatter renders jobs and library listings for the terminal and exports the library to files
package formatter

import (
	"bytes"
	"encoding/csv"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"github.com/desertthunder/ytaudio/internal/models"
	"github.com/desertthunder/ytaudio/internal/shared"
)

// Export formats accepted by [Export].
const (
	FormatJSON     = "json"
	FormatCSV      = "csv"
	FormatMarkdown = "markdown"
	FormatText     = "txt"
)

// FormatDuration renders seconds as m:ss (or h:mm:ss), "-" when unknown.
func FormatDuration(seconds *float64) string {
	if seconds == nil || *seconds < 0 {
		return "-"
	}
	total := int(*seconds + 0.5)
	h, m, s := total/3600, (total%3600)/60, total%60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

// ExportToCSV converts library entries to CSV with columns: Filename, Title, Duration, Size, Content Type, Source, Created
func ExportToCSV(entries []models.LibraryEntryView) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Filename", "Title", "Duration", "Size", "Content Type", "Source", "Created"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, e := range entries {
		duration := ""
		if e.Duration != nil {
			duration = strconv.FormatFloat(*e.Duration, 'f', -1, 64)
		}
		record := []string{
			e.Filename,
			e.Title,
			duration,
			strconv.FormatInt(e.SizeBytes, 10),
			e.ContentType,
			e.SourceURL,
			e.CreatedAt.UTC().Format("2006-01-02T15:04:05Z"),
		}
		if err := writer.Write(record); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts library entries to a Markdown list
func ExportToMarkdown(entries []models.LibraryEntryView) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("# Library\n\n")
	buf.WriteString(fmt.Sprintf("**Items**: %d\n\n", len(entries)))

	for i, e := range entries {
		buf.WriteString(fmt.Sprintf("%d. [%s](%s) [%s] `%s`\n", i+1, e.Title, e.SourceURL, FormatDuration(e.Duration), e.Filename))
	}

	return buf.Bytes(), nil
}

// ExportToText converts library entries to plain text
func ExportToText(entries []models.LibraryEntryView) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString(fmt.Sprintf("Items: %d\n\n", len(entries)))
	for i, e := range entries {
		buf.WriteString(fmt.Sprintf("%d. %s (%s)\n", i+1, e.Title, e.Filename))
	}

	return buf.Bytes(), nil
}

// Export encodes entries in format.
func Export(entries []models.LibraryEntryView, format string) ([]byte, error) {
	switch format {
	case FormatJSON, "":
		data, err := json.MarshalIndent(entries, "", "  ")
		if err != nil {
			return nil, fmt.Errorf("failed to marshal library: %w", err)
		}
		return append(data, '\n'), nil
	case FormatCSV:
		return ExportToCSV(entries)
	case FormatMarkdown, "md":
		return ExportToMarkdown(entries)
	case FormatText, "text":
		return ExportToText(entries)
	default:
		return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidArgument, format)
	}
}

// WriteExport writes entries in format to path, creating parent directories.
func WriteExport(entries []models.LibraryEntryView, format, path string) (string, error) {
	data, err := Export(entries, format)
	if err != nil {
		return "", err
	}

	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0755); err != nil {
			return "", fmt.Errorf("failed to create output directory: %w", err)
		}
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s: %w", path, err)
	}
	return path, nil
}
