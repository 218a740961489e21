package bibtex

import (
	"strconv"
	"strings"

	"github.com/pmezard/go-difflib/difflib"
	"golang.org/x/text/unicode/norm"
)

var latexStripper = strings.NewReplacer(`\`, "", "{", "", "}", "")

// NormalizeText prepares a field value for comparison: LaTeX braces and
// backslashes are dropped, whitespace collapsed, and case folded. Text is
// composed to NFC first so precomposed and combining Vietnamese
// diacritics compare equal.
func NormalizeText(s string) string {
	if s == "" {
		return ""
	}
	s = norm.NFC.String(latexStripper.Replace(s))
	return strings.ToLower(strings.Join(strings.Fields(s), " "))
}

// Similarity returns the SequenceMatcher ratio of two field values after
// normalization. It is 0 when either value is empty.
func Similarity(a, b string) float64 {
	if a == "" || b == "" {
		return 0
	}
	m := difflib.NewMatcher(runes(NormalizeText(a)), runes(NormalizeText(b)))
	return m.Ratio()
}

// runes splits s into one-rune strings so the matcher compares characters.
func runes(s string) []string {
	out := make([]string, 0, len(s))
	for _, r := range s {
		out = append(out, string(r))
	}
	return out
}

// Venue returns the field that names where an entry was published,
// which depends on the entry type.
func Venue(e Entry) string {
	f := e.Fields
	switch e.Kind() {
	case "article":
		return f["journal"]
	case "inproceedings", "conference", "incollection":
		return f["booktitle"]
	case "book":
		return firstNonEmpty(f["publisher"], f["series"])
	case "misc", "preprint":
		return firstNonEmpty(f["journal"], f["howpublished"], f["note"])
	case "thesis", "phdthesis", "mastersthesis":
		return f["school"]
	case "techreport":
		return f["institution"]
	default:
		return firstNonEmpty(f["journal"], f["booktitle"], f["publisher"])
	}
}

// Year parses the year field. ok is false when it is missing or not an integer.
func Year(e Entry) (year int, ok bool) {
	raw := strings.TrimSpace(e.Fields["year"])
	if raw == "" {
		return 0, false
	}
	y, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return y, true
}

func firstNonEmpty(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
