// package formatter renders playlists as CSV, Markdown or plain text downloads
package formatter

import (
	"bytes"
	"encoding/csv"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

// Format is an export format accepted by [Render].
type Format string

const (
	FormatCSV      Format = "csv"
	FormatMarkdown Format = "md"
	FormatText     Format = "txt"
)

// ParseFormat accepts a format name or common alias. An empty name selects CSV.
func ParseFormat(name string) (Format, error) {
	switch strings.ToLower(strings.TrimSpace(name)) {
	case "", "csv":
		return FormatCSV, nil
	case "md", "markdown":
		return FormatMarkdown, nil
	case "txt", "text":
		return FormatText, nil
	default:
		return "", fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidInput, name)
	}
}

// ContentType returns the MIME type served for f.
func (f Format) ContentType() string {
	switch f {
	case FormatMarkdown:
		return "text/markdown; charset=utf-8"
	case FormatText:
		return "text/plain; charset=utf-8"
	default:
		return "text/csv; charset=utf-8"
	}
}

// Filename builds a download name from the playlist name, falling back to its id.
func (f Format) Filename(p *models.Playlist) string {
	base := strings.Map(func(r rune) rune {
		switch {
		case r >= 'a' && r <= 'z', r >= 'A' && r <= 'Z', r >= '0' && r <= '9', r == '-', r == '_':
			return r
		case r == ' ':
			return '_'
		default:
			return -1
		}
	}, p.Name)
	if base == "" {
		base = p.ID
	}
	return base + "." + string(f)
}

// Render writes the playlist in format f.
func Render(p *models.Playlist, f Format) ([]byte, error) {
	switch f {
	case FormatCSV:
		return ExportToCSV(p)
	case FormatMarkdown:
		return ExportToMarkdown(p), nil
	case FormatText:
		return ExportToText(p), nil
	default:
		return nil, fmt.Errorf("%w: unsupported export format %q", shared.ErrInvalidInput, f)
	}
}

// ExportToCSV converts a playlist to CSV with columns: Spotify ID, Title, Artist, Album, Duration, Preview URL
func ExportToCSV(p *models.Playlist) ([]byte, error) {
	var buf bytes.Buffer
	writer := csv.NewWriter(&buf)

	headers := []string{"Spotify ID", "Title", "Artist", "Album", "Duration", "Preview URL"}
	if err := writer.Write(headers); err != nil {
		return nil, fmt.Errorf("failed to write CSV headers: %w", err)
	}

	for _, song := range p.Songs {
		record := []string{
			song.SpotifyID,
			song.Title,
			song.Artist,
			song.Album,
			strconv.Itoa(song.Duration),
			song.PreviewURL,
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

// ExportToMarkdown renders a heading, the playlist details and a numbered song list.
func ExportToMarkdown(p *models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "# %s\n\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&buf, "**Description**: %s\n\n", p.Description)
	}

	fmt.Fprintf(&buf, "**Songs**: %d\n", len(p.Songs))
	fmt.Fprintf(&buf, "**Visibility**: %s\n", visibility(p.IsPublic))
	fmt.Fprintf(&buf, "**Total time**: %s\n\n", FormatDuration(totalDuration(p)))

	buf.WriteString("## Songs\n\n")
	for i, song := range p.Songs {
		album := ""
		if song.Album != "" {
			album = fmt.Sprintf(" (%s)", song.Album)
		}
		fmt.Fprintf(&buf, "%d. %s - %s%s [%s]\n", i+1, song.Artist, song.Title, album, FormatDuration(song.Duration))
	}

	return buf.Bytes()
}

// ExportToText converts a playlist to plain text.
func ExportToText(p *models.Playlist) []byte {
	var buf bytes.Buffer

	fmt.Fprintf(&buf, "Playlist: %s\n", p.Name)
	if p.Description != "" {
		fmt.Fprintf(&buf, "Description: %s\n", p.Description)
	}
	fmt.Fprintf(&buf, "Songs: %d\n\n", len(p.Songs))

	for i, song := range p.Songs {
		fmt.Fprintf(&buf, "%d. %s - %s\n", i+1, song.Artist, song.Title)
	}

	return buf.Bytes()
}

// FormatDuration renders milliseconds as m:ss, or h:mm:ss from one hour up.
func FormatDuration(ms int) string {
	d := time.Duration(ms) * time.Millisecond
	h := int(d / time.Hour)
	m := int(d/time.Minute) % 60
	s := int(d/time.Second) % 60
	if h > 0 {
		return fmt.Sprintf("%d:%02d:%02d", h, m, s)
	}
	return fmt.Sprintf("%d:%02d", m, s)
}

func totalDuration(p *models.Playlist) int {
	total := 0
	for _, song := range p.Songs {
		total += song.Duration
	}
	return total
}

func visibility(public bool) string {
	if public {
		return "Public"
	}
	return "Private"
}
