// Package reference defines the publication record indexed from the
// merged bibliography.
package reference

import (
	"path/filepath"
	"strings"

	"github.com/avitech-lab/labsite/internal/bibtex"
)

// Publication is one kept entry of the merged bibliography.
type Publication struct {
	// Identity
	Key string `json:"key"` // citation key
	DOI string `json:"doi,omitempty"`

	// Metadata
	Type    string   `json:"type"` // lowercased entry type
	Title   string   `json:"title"`
	Authors []Author `json:"authors"`
	Venue   string   `json:"venue,omitempty"`
	Year    int      `json:"year"`

	// Contributor whose bibliography held the entry
	Contributor string `json:"contributor"`
}

// FromEntry builds a publication from a BibTeX entry. source is the path
// of the bibliography it came from.
func FromEntry(e bibtex.Entry, source string) Publication {
	year, _ := bibtex.Year(e)
	p := Publication{
		Key:         e.Key,
		DOI:         e.Field("doi"),
		Type:        e.Kind(),
		Title:       cleanText(e.Field("title")),
		Venue:       cleanText(bibtex.Venue(e)),
		Year:        year,
		Contributor: ContributorOf(source),
	}
	for _, name := range bibtex.Authors(e.Field("author")) {
		p.Authors = append(p.Authors, ParseAuthor(name))
	}
	return p
}

// ContributorOf returns the contributor a bibliography path belongs to.
func ContributorOf(source string) string {
	base := filepath.Base(source)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

// AuthorsText joins author names for display and full-text search.
func (p Publication) AuthorsText() string {
	names := make([]string, len(p.Authors))
	for i, a := range p.Authors {
		names[i] = a.String()
	}
	return strings.Join(names, ", ")
}

// cleanText drops BibTeX grouping braces and collapses whitespace.
func cleanText(s string) string {
	s = strings.NewReplacer("{", "", "}", "").Replace(s)
	return strings.Join(strings.Fields(s), " ")
}
