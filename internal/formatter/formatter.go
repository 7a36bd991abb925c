// package formatter exports local playlists to M3U8, CSV, Markdown and plain text
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"net/url"
	"os"
	"path"
	"path/filepath"
	"strconv"
	"strings"

	"github.com/desertthunder/nsync/internal/models"
	"github.com/desertthunder/nsync/internal/shared"
)

// Format names an export encoding.
type Format string

const (
	M3U8     Format = "m3u8"
	CSV      Format = "csv"
	Text     Format = "txt"
	Markdown Format = "md"
)

// Formats lists every supported format in display order.
var Formats = []Format{M3U8, CSV, Text, Markdown}

// ParseFormat accepts a format name or file extension, case-insensitively.
func ParseFormat(name string) (Format, error) {
	name = strings.TrimPrefix(strings.ToLower(strings.TrimSpace(name)), ".")
	switch name {
	case "m3u8", "m3u":
		return M3U8, nil
	case "csv":
		return CSV, nil
	case "txt", "text":
		return Text, nil
	case "md", "markdown":
		return Markdown, nil
	}
	return "", fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, name)
}

// EntryTitle derives a display title from a location: the unescaped final path segment
// without its extension. Locations that are not URLs or paths are returned as is.
func EntryTitle(location string) string {
	p := location
	if u, err := url.Parse(location); err == nil && u.Path != "" {
		p = u.Path
	}
	base := path.Base(filepath.ToSlash(p))
	if unescaped, err := url.PathUnescape(base); err == nil {
		base = unescaped
	}
	if ext := path.Ext(base); ext != "" && ext != base {
		base = strings.TrimSuffix(base, ext)
	}
	if base == "" || base == "." || base == "/" {
		return location
	}
	return base
}

// ExportToM3U8 writes an extended M3U playlist with one #EXTINF line per entry.
func ExportToM3U8(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	buf.WriteString("#EXTM3U\n")
	fmt.Fprintf(&buf, "#PLAYLIST:%s\n", export.Playlist.Name())
	for _, entry := range export.Entries {
		fmt.Fprintf(&buf, "#EXTINF:-1,%s\n%s\n", EntryTitle(entry), entry)
	}

	return buf.Bytes(), nil
}

// ExportToCSV converts a PlaylistExport to CSV format with columns: Position, Title, Location
func ExportToCSV(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	if err := writer.Write([]string{"Position", "Title", "Location"}); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for i, entry := range export.Entries {
		if err := writer.Write([]string{strconv.Itoa(i + 1), EntryTitle(entry), entry}); err != nil {
			return nil, fmt.Errorf("failed to write CSV record: %w", err)
		}
	}

	writer.Flush()
	if err := writer.Error(); err != nil {
		return nil, fmt.Errorf("CSV writer error: %w", err)
	}

	return buf.Bytes(), nil
}

// ExportToMarkdown converts a PlaylistExport to Markdown format with optional cover image
func ExportToMarkdown(export *models.PlaylistExport, imageFilename string) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", export.Playlist.Name())
	if imageFilename != "" {
		fmt.Fprintf(&buf, "![Cover](%s)\n\n", imageFilename)
	}
	fmt.Fprintf(&buf, "**Entries**: %d\n", len(export.Entries))
	if !export.Playlist.UpdatedAt().IsZero() {
		fmt.Fprintf(&buf, "**Updated**: %s\n", export.Playlist.UpdatedAt().Format("2006-01-02 15:04"))
	}

	buf.WriteString("\n## Entries\n\n")
	for i, entry := range export.Entries {
		fmt.Fprintf(&buf, "%d. [%s](%s)\n", i+1, EntryTitle(entry), entry)
	}

	return buf.Bytes(), nil
}

// ExportToText converts a PlaylistExport to plain text format
func ExportToText(export *models.PlaylistExport) ([]byte, error) {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", export.Playlist.Name())
	fmt.Fprintf(&buf, "Entries: %d\n\n", len(export.Entries))

	for i, entry := range export.Entries {
		fmt.Fprintf(&buf, "%d. %s\n", i+1, entry)
	}

	return buf.Bytes(), nil
}

// Export encodes export in the given format. Markdown exports reference no cover image.
func Export(format Format, export *models.PlaylistExport) ([]byte, error) {
	switch format {
	case M3U8:
		return ExportToM3U8(export)
	case CSV:
		return ExportToCSV(export)
	case Text:
		return ExportToText(export)
	case Markdown:
		return ExportToMarkdown(export, "")
	}
	return nil, fmt.Errorf("%w: unknown export format %q", shared.ErrInvalidInput, format)
}

// DefaultFilename returns {name}.{format} with path separators in the name replaced.
func DefaultFilename(export *models.PlaylistExport, format Format) string {
	name := strings.Map(func(r rune) rune {
		if r == '/' || r == '\\' || r == os.PathSeparator {
			return '_'
		}
		return r
	}, export.Playlist.Name())
	return fmt.Sprintf("%s.%s", name, format)
}

// WriteExport writes export to filePath in the given format.
//
// Defaults to [DefaultFilename] in the working directory.
func WriteExport(export *models.PlaylistExport, format Format, filePath string) (string, error) {
	if filePath == "" {
		filePath = DefaultFilename(export, format)
	}

	data, err := Export(format, export)
	if err != nil {
		return "", fmt.Errorf("failed to generate %s: %w", format, err)
	}

	if err := os.WriteFile(filePath, data, 0644); err != nil {
		return "", fmt.Errorf("failed to write %s file: %w", format, err)
	}

	return filePath, nil
}

// MarkdownExportResult contains information about files created by WriteMarkdownExport
type MarkdownExportResult struct {
	Directory  string
	Files      []string
	CoverImage string
}

// WriteMarkdownExport exports a playlist to Markdown format in a dedicated directory.
//
// Directory name defaults to the playlist name. When cover is non-empty it is saved as
// {dir}/cover.jpg and referenced from {dir}/README.md.
func WriteMarkdownExport(export *models.PlaylistExport, outputDir string, cover []byte) (*MarkdownExportResult, error) {
	if outputDir == "" {
		outputDir = strings.TrimSuffix(DefaultFilename(export, Markdown), "."+string(Markdown))
	}

	if err := os.MkdirAll(outputDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create directory: %w", err)
	}

	result := &MarkdownExportResult{
		Directory: outputDir,
		Files:     []string{},
	}

	var coverImageFilename string
	if len(cover) > 0 {
		coverImageFilename = "cover.jpg"
		coverImagePath := filepath.Join(outputDir, coverImageFilename)
		if err := os.WriteFile(coverImagePath, cover, 0644); err != nil {
			return nil, fmt.Errorf("failed to save cover image: %w", err)
		}
		result.CoverImage = coverImagePath
		result.Files = append(result.Files, coverImagePath)
	}

	mdData, err := ExportToMarkdown(export, coverImageFilename)
	if err != nil {
		return nil, fmt.Errorf("failed to generate Markdown: %w", err)
	}

	mdFile := filepath.Join(outputDir, "README.md")
	if err := os.WriteFile(mdFile, mdData, 0644); err != nil {
		return nil, fmt.Errorf("failed to write Markdown file: %w", err)
	}

	result.Files = append(result.Files, mdFile)

	return result, nil
}
