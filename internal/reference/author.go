package reference

import "strings"

// Author represents a publication author.
type Author struct {
	First string `json:"first,omitempty"` // First/given name(s)
	Last  string `json:"last"`            // Last/family name
}

// ParseAuthor splits a BibTeX name. "Last, First" is split at the comma;
// otherwise the last word is the family name. A fully braced name is
// kept whole.
func ParseAuthor(name string) Author {
	name = strings.TrimSpace(name)
	if strings.HasPrefix(name, "{") && strings.HasSuffix(name, "}") {
		return Author{Last: cleanText(name)}
	}
	name = cleanText(name)
	if last, first, ok := strings.Cut(name, ","); ok {
		return Author{First: strings.TrimSpace(first), Last: strings.TrimSpace(last)}
	}
	words := strings.Fields(name)
	if len(words) <= 1 {
		return Author{Last: name}
	}
	return Author{
		First: strings.Join(words[:len(words)-1], " "),
		Last:  words[len(words)-1],
	}
}

// String returns the name in "First Last" order.
func (a Author) String() string {
	if a.First == "" {
		return a.Last
	}
	return a.First + " " + a.Last
}
