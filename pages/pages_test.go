package pages

import (
	"strings"
	"testing"

	"github.com/wrapped-fm/jellywrapped/models"
)

func sampleRecap() models.UserRecap {
	return models.UserRecap{
		TopSongs: []models.MediaItem{
			{ID: "id-1", Name: "First Song"},
			{ID: "id-2", Name: "Second Song"},
			{ID: "id-3", Name: "Third Song"},
		},
		TopArtists: []models.ArtistPlays{
			{Artist: "Artist One", PlayCount: 12},
			{Artist: "Artist Two", PlayCount: 7},
		},
		MinutesListened: 123.5,
	}
}

func TestNewWrappedParamsBoundsRowsByShorterList(t *testing.T) {
	tests := []struct {
		name     string
		recap    models.UserRecap
		wantRows int
	}{
		{"more songs than artists", sampleRecap(), 2},
		{
			"more artists than songs",
			models.UserRecap{
				TopSongs: []models.MediaItem{{ID: "a", Name: "A"}},
				TopArtists: []models.ArtistPlays{
					{Artist: "One"}, {Artist: "Two"}, {Artist: "Three"},
				},
			},
			1,
		},
		{"empty recap", models.UserRecap{}, 0},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			params := NewWrappedParams("alice", tt.recap, "")
			if len(params.Rows) != tt.wantRows {
				t.Errorf("expected %d rows, got %d", tt.wantRows, len(params.Rows))
			}
			for i, row := range params.Rows {
				if row.Rank != i+1 {
					t.Errorf("row %d has rank %d", i, row.Rank)
				}
			}
		})
	}
}

func TestExecuteWrapped(t *testing.T) {
	p := NewPages()
	params := NewWrappedParams("alice", sampleRecap(), "id-1")

	var buf strings.Builder
	if err := p.Execute("wrapped", &buf, params); err != nil {
		t.Fatalf("Execute failed: %v", err)
	}
	html := buf.String()

	for _, want := range []string{
		`<img src="./assets/id-1" id="main_image">`,
		"1. Artist One",
		"1. First Song",
		"2. Artist Two",
		"2. Second Song",
		"Minutes Listened: 123.5",
	} {
		if !strings.Contains(html, want) {
			t.Errorf("rendered page missing %q", want)
		}
	}

	// third song exceeds the shorter artist list and must not appear
	if strings.Contains(html, "Third Song") {
		t.Error("rendered page includes a row past the shorter ranked list")
	}
}

func TestExecuteWrappedEmptyRecap(t *testing.T) {
	p := NewPages()
	params := NewWrappedParams("bob", models.UserRecap{}, "")

	var buf strings.Builder
	if err := p.Execute("wrapped", &buf, params); err != nil {
		t.Fatalf("Execute failed on empty recap: %v", err)
	}
	html := buf.String()

	if strings.Contains(html, "main_image") {
		t.Error("empty recap should not reference a cover image")
	}
	if !strings.Contains(html, "Minutes Listened: 0") {
		t.Error("empty recap should render zero minutes")
	}
	if got := strings.Count(html, "<td>"); got != 0 {
		t.Errorf("expected a zero-row table, found %d cells", got)
	}
}
