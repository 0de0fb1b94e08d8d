package formatter

import (
	"encoding/csv"
	"errors"
	"strings"
	"testing"

	"github.com/desertthunder/setlist/internal/models"
	"github.com/desertthunder/setlist/internal/shared"
)

func testPlaylist() *models.Playlist {
	return &models.Playlist{
		ID:          "pl-123",
		Name:        "Test Playlist",
		Description: "A test playlist",
		OwnerID:     "user-1",
		IsPublic:    true,
		Songs: []models.Song{
			{
				SpotifyID:  "track1",
				Title:      "Song One",
				Artist:     "Artist One",
				Album:      "Album One",
				Duration:   180000,
				PreviewURL: "https://preview/1",
			},
			{
				SpotifyID: "track2",
				Title:     "Song, Two",
				Artist:    "Artist Two",
				Duration:  240000,
			},
		},
	}
}

func TestExporters(t *testing.T) {
	t.Run("ExportToCSV", func(t *testing.T) {
		data, err := ExportToCSV(testPlaylist())
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}

		records, err := csv.NewReader(strings.NewReader(string(data))).ReadAll()
		if err != nil {
			t.Fatalf("output is not valid CSV: %v", err)
		}

		if len(records) != 3 {
			t.Fatalf("expected header and 2 rows, got %d", len(records))
		}
		if strings.Join(records[0], ",") != "Spotify ID,Title,Artist,Album,Duration,Preview URL" {
			t.Errorf("unexpected headers %v", records[0])
		}
		if records[1][0] != "track1" || records[1][4] != "180000" || records[1][5] != "https://preview/1" {
			t.Errorf("unexpected first row %v", records[1])
		}
		if records[2][1] != "Song, Two" {
			t.Errorf("comma in title not preserved: %v", records[2])
		}
	})

	t.Run("ExportToCSV with no songs", func(t *testing.T) {
		p := testPlaylist()
		p.Songs = []models.Song{}

		data, err := ExportToCSV(p)
		if err != nil {
			t.Fatalf("ExportToCSV failed: %v", err)
		}
		if lines := strings.Count(string(data), "\n"); lines != 1 {
			t.Errorf("expected only the header line, got %d lines", lines)
		}
	})

	t.Run("ExportToMarkdown", func(t *testing.T) {
		output := string(ExportToMarkdown(testPlaylist()))

		for _, want := range []string{
			"# Test Playlist",
			"**Description**: A test playlist",
			"**Songs**: 2",
			"**Visibility**: Public",
			"**Total time**: 7:00",
			"## Songs",
			"1. Artist One - Song One (Album One) [3:00]",
			"2. Artist Two - Song, Two [4:00]",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Markdown missing %q, got: %s", want, output)
			}
		}
	})

	t.Run("ExportToMarkdown private without description", func(t *testing.T) {
		p := testPlaylist()
		p.IsPublic = false
		p.Description = ""

		output := string(ExportToMarkdown(p))
		if !strings.Contains(output, "**Visibility**: Private") {
			t.Error("Markdown missing private visibility")
		}
		if strings.Contains(output, "**Description**") {
			t.Error("empty description should be omitted")
		}
	})

	t.Run("ExportToText", func(t *testing.T) {
		output := string(ExportToText(testPlaylist()))

		for _, want := range []string{
			"Playlist: Test Playlist",
			"Description: A test playlist",
			"Songs: 2",
			"1. Artist One - Song One",
			"2. Artist Two - Song, Two",
		} {
			if !strings.Contains(output, want) {
				t.Errorf("Text missing %q, got: %s", want, output)
			}
		}
	})
}

func TestFormat(t *testing.T) {
	t.Run("ParseFormat", func(t *testing.T) {
		tc := []struct {
			name string
			want Format
		}{
			{"", FormatCSV},
			{"CSV", FormatCSV},
			{"md", FormatMarkdown},
			{"markdown", FormatMarkdown},
			{" text ", FormatText},
			{"txt", FormatText},
		}

		for _, tt := range tc {
			got, err := ParseFormat(tt.name)
			if err != nil {
				t.Errorf("ParseFormat(%q) failed: %v", tt.name, err)
			}
			if got != tt.want {
				t.Errorf("ParseFormat(%q) = %q, want %q", tt.name, got, tt.want)
			}
		}

		if _, err := ParseFormat("pdf"); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})

	t.Run("Filename", func(t *testing.T) {
		p := testPlaylist()
		p.Name = "Road Trip 2024!"
		if got := FormatMarkdown.Filename(p); got != "Road_Trip_2024.md" {
			t.Errorf("unexpected filename %q", got)
		}

		p.Name = "???"
		if got := FormatCSV.Filename(p); got != "pl-123.csv" {
			t.Errorf("expected id fallback, got %q", got)
		}
	})

	t.Run("ContentType", func(t *testing.T) {
		if !strings.HasPrefix(FormatCSV.ContentType(), "text/csv") {
			t.Error("unexpected CSV content type")
		}
		if !strings.HasPrefix(FormatMarkdown.ContentType(), "text/markdown") {
			t.Error("unexpected Markdown content type")
		}
	})

	t.Run("Render", func(t *testing.T) {
		for _, f := range []Format{FormatCSV, FormatMarkdown, FormatText} {
			data, err := Render(testPlaylist(), f)
			if err != nil || len(data) == 0 {
				t.Errorf("Render(%s) = %d bytes, %v", f, len(data), err)
			}
		}

		if _, err := Render(testPlaylist(), Format("xml")); !errors.Is(err, shared.ErrInvalidInput) {
			t.Errorf("expected ErrInvalidInput, got %v", err)
		}
	})
}

func TestFormatDuration(t *testing.T) {
	tc := []struct {
		ms   int
		want string
	}{
		{0, "0:00"},
		{59000, "0:59"},
		{215000, "3:35"},
		{3600000, "1:00:00"},
		{3725000, "1:02:05"},
	}

	for _, tt := range tc {
		if got := FormatDuration(tt.ms); got != tt.want {
			t.Errorf("FormatDuration(%d) = %q, want %q", tt.ms, got, tt.want)
		}
	}
}
