package pages

// Helpers to load gohtml templates and render the per-user wrapped
// report. Template parsing is memoized so a run with many users parses
// each template once.

import (
	"embed"
	"html/template"
	"io"
	"io/fs"

	"github.com/wrapped-fm/jellywrapped/models"
)

//go:embed templates/*
var Files embed.FS

type Pages struct {
	cache   *TmplCache[string, *template.Template]
	embedFS fs.FS
}

func NewPages() *Pages {
	return &Pages{
		cache:   NewTmplCache[string, *template.Template](),
		embedFS: Files,
	}
}

func (p *Pages) nameToPath(s string) string {
	return "templates/" + s + ".gohtml"
}

// parse without memoization
func (p *Pages) rawParse(name string) (*template.Template, error) {
	return template.New(name + ".gohtml").ParseFS(p.embedFS, p.nameToPath(name))
}

func (p *Pages) parse(name string) (*template.Template, error) {
	if cached, exists := p.cache.Get(name); exists {
		return cached, nil
	}

	result, err := p.rawParse(name)
	if err != nil {
		return nil, err
	}

	p.cache.Set(name, result)
	return result, nil
}

// Execute loads and renders the named template.
func (p *Pages) Execute(name string, w io.Writer, params any) error {
	tpl, err := p.parse(name)
	if err != nil {
		return err
	}

	return tpl.ExecuteTemplate(w, name+".gohtml", params)
}

// View params for the wrapped report

type RankedRow struct {
	Rank   int
	Artist string
	Song   string
}

type WrappedParams struct {
	UserName        string
	ImageID         string
	Rows            []RankedRow
	MinutesListened float64
}

// NewWrappedParams pairs the artist and song rankings line by line. The
// table length is bounded by the SHORTER of the two ranked lists; a
// longer list's tail is simply not shown.
func NewWrappedParams(userName string, r models.UserRecap, imageID string) WrappedParams {
	rows := len(r.TopSongs)
	if len(r.TopArtists) < rows {
		rows = len(r.TopArtists)
	}

	params := WrappedParams{
		UserName:        userName,
		ImageID:         imageID,
		Rows:            make([]RankedRow, rows),
		MinutesListened: r.MinutesListened,
	}
	for i := 0; i < rows; i++ {
		params.Rows[i] = RankedRow{
			Rank:   i + 1,
			Artist: r.TopArtists[i].Artist,
			Song:   r.TopSongs[i].Name,
		}
	}
	return params
}
