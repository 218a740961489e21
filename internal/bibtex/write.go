package bibtex

import (
	"io"
	"strings"
)

// Write writes the raw text of each entry, each followed by a blank line.
// Entries are written as found so a contributor's formatting survives a merge.
func Write(w io.Writer, entries []Entry) error {
	for _, e := range entries {
		if _, err := io.WriteString(w, e.Raw+"\n\n"); err != nil {
			return err
		}
	}
	return nil
}

// Authors splits an author field on the BibTeX "and" separator.
func Authors(field string) []string {
	if strings.TrimSpace(field) == "" {
		return nil
	}
	var out []string
	for _, part := range splitAnd(field) {
		if name := strings.Join(strings.Fields(part), " "); name != "" {
			out = append(out, name)
		}
	}
	return out
}

// splitAnd splits on " and " outside braces, case-insensitively.
func splitAnd(s string) []string {
	var parts []string
	depth, last := 0, 0
	lower := strings.ToLower(s)
	for i := 0; i < len(s); i++ {
		switch s[i] {
		case '{':
			depth++
		case '}':
			depth--
		default:
			if depth == 0 && isSpace(s[i]) && strings.HasPrefix(lower[i+1:], "and") &&
				i+4 < len(s) && isSpace(s[i+4]) {
				parts = append(parts, s[last:i])
				last = i + 5
				i += 4
			}
		}
	}
	return append(parts, s[last:])
}

func isSpace(c byte) bool {
	return c == ' ' || c == '\t' || c == '\n' || c == '\r'
}
