// Package bibtex reads and writes the BibTeX files contributors maintain.
package bibtex

import (
	"fmt"
	"io"
	"os"
	"strings"
)

// Entry is a single citation record.
type Entry struct {
	Type       string            // entry type as written, e.g. "Article"
	Key        string            // citation key
	Fields     map[string]string // lowercased field name -> raw value
	FieldOrder []string          // field names in source order
	Raw        string            // exact source text from '@' to the closing delimiter
	Line       int               // line of the '@'
}

// Kind returns the lowercased entry type.
func (e Entry) Kind() string {
	return strings.ToLower(e.Type)
}

// Field returns a field value, or "" if absent.
func (e Entry) Field(name string) string {
	return e.Fields[name]
}

// File is a parsed bibliography file.
// Errors holds recoverable problems; the entries around them are still parsed.
type File struct {
	Path    string
	Entries []Entry
	Errors  []ParseError
}

// ParseError describes a malformed part of a bibliography file.
type ParseError struct {
	Path    string
	Line    int
	Key     string
	Message string
}

func (e ParseError) Error() string {
	loc := e.Path
	if loc == "" {
		loc = "<input>"
	}
	if e.Key != "" {
		return fmt.Sprintf("%s:%d: %s (entry %s)", loc, e.Line, e.Message, e.Key)
	}
	return fmt.Sprintf("%s:%d: %s", loc, e.Line, e.Message)
}

// ParseFile parses the bibliography at path.
func ParseFile(path string) (*File, error) {
	f, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer f.Close()
	return Parse(f, path)
}

// Parse reads a whole bibliography. Text outside entries is ignored, as
// BibTeX itself does. Only read failures are returned as errors.
func Parse(r io.Reader, path string) (*File, error) {
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}

	p := &parser{src: string(data), file: &File{Path: path}}
	p.run()
	return p.file, nil
}

type parser struct {
	src  string
	file *File
}

func (p *parser) errorf(offset int, key, format string, args ...interface{}) {
	p.file.Errors = append(p.file.Errors, ParseError{
		Path:    p.file.Path,
		Line:    p.lineAt(offset),
		Key:     key,
		Message: fmt.Sprintf(format, args...),
	})
}

func (p *parser) lineAt(offset int) int {
	return strings.Count(p.src[:offset], "\n") + 1
}

func (p *parser) run() {
	seen := make(map[string]bool)
	pos := 0
	for {
		at := strings.IndexByte(p.src[pos:], '@')
		if at < 0 {
			return
		}
		start := pos + at

		i := start + 1
		for i < len(p.src) && isIdentByte(p.src[i], false) {
			i++
		}
		typ := p.src[start+1 : i]
		i = skipSpace(p.src, i)
		if typ == "" || i >= len(p.src) || (p.src[i] != '{' && p.src[i] != '(') {
			// a stray '@' in free text
			pos = start + 1
			continue
		}
		open := i

		end, ok := p.scanEntry(open)
		if !ok {
			p.errorf(start, "", "unterminated @%s entry", typ)
			pos = p.nextEntryStart(open)
			continue
		}
		pos = end + 1

		switch strings.ToLower(typ) {
		case "comment", "preamble", "string":
			continue
		}

		entry, ok := p.parseBody(typ, start, open, end)
		if !ok {
			continue
		}
		if seen[entry.Key] {
			p.errorf(start, entry.Key, "duplicate citation key")
		}
		seen[entry.Key] = true
		p.file.Entries = append(p.file.Entries, entry)
	}
}

// scanEntry finds the delimiter closing the entry opened at open.
// An entry is also treated as unterminated when a new "@type{" begins a
// line while the entry is still at its outermost level.
func (p *parser) scanEntry(open int) (int, bool) {
	closer := byte('}')
	if p.src[open] == '(' {
		closer = ')'
	}
	depth := 0
	for i := open + 1; i < len(p.src); i++ {
		c := p.src[i]
		switch {
		case c == '{':
			depth++
		case c == '}' && depth > 0:
			depth--
		case c == closer && depth == 0:
			return i, true
		case c == '\n' && depth == 0 && startsEntry(p.src[i+1:]):
			return 0, false
		}
	}
	return 0, false
}

// nextEntryStart returns the offset of the next line that starts an entry.
func (p *parser) nextEntryStart(from int) int {
	for i := from; i < len(p.src); i++ {
		if p.src[i] == '\n' && startsEntry(p.src[i+1:]) {
			return i + 1
		}
	}
	return len(p.src)
}

func startsEntry(s string) bool {
	s = strings.TrimLeft(s, " \t")
	if !strings.HasPrefix(s, "@") {
		return false
	}
	i := 1
	for i < len(s) && isIdentByte(s[i], false) {
		i++
	}
	if i == 1 {
		return false
	}
	i = skipSpace(s, i)
	return i < len(s) && (s[i] == '{' || s[i] == '(')
}

// parseBody parses the key and fields between open and end (exclusive).
// A malformed entry is reported and dropped.
func (p *parser) parseBody(typ string, start, open, end int) (Entry, bool) {
	entry := Entry{
		Type:   typ,
		Fields: make(map[string]string),
		Raw:    p.src[start : end+1],
		Line:   p.lineAt(start),
	}

	i := skipSpace(p.src, open+1)
	keyStart := i
	for i < end && p.src[i] != ',' {
		i++
	}
	entry.Key = strings.TrimSpace(p.src[keyStart:i])
	if entry.Key == "" || strings.ContainsAny(entry.Key, " \t\r\n{}\"=") {
		p.errorf(start, "", "missing or invalid citation key in @%s entry", typ)
		return Entry{}, false
	}
	if i >= end {
		return entry, true
	}
	i++ // comma

	for {
		i = skipSpace(p.src, i)
		if i >= end {
			return entry, true
		}

		nameStart := i
		for i < end && isIdentByte(p.src[i], true) {
			i++
		}
		name := strings.ToLower(p.src[nameStart:i])
		if name == "" {
			p.errorf(nameStart, entry.Key, "malformed field near %q", snippet(p.src[nameStart:end]))
			return Entry{}, false
		}
		i = skipSpace(p.src, i)
		if i >= end || p.src[i] != '=' {
			p.errorf(nameStart, entry.Key, "field %q has no value", name)
			return Entry{}, false
		}
		i = skipSpace(p.src, i+1)

		var parts []string
		for {
			part, next, err := p.readValue(i, end)
			if err != "" {
				p.errorf(i, entry.Key, "field %q: %s", name, err)
				return Entry{}, false
			}
			parts = append(parts, part)
			i = skipSpace(p.src, next)
			if i < end && p.src[i] == '#' {
				i = skipSpace(p.src, i+1)
				continue
			}
			break
		}

		if _, dup := entry.Fields[name]; !dup {
			entry.FieldOrder = append(entry.FieldOrder, name)
		}
		entry.Fields[name] = strings.Join(parts, "")

		if i < end {
			if p.src[i] != ',' {
				p.errorf(i, entry.Key, "expected ',' after field %q", name)
				return Entry{}, false
			}
			i++
		}
	}
}

// readValue reads one braced, quoted, or bare value starting at i.
func (p *parser) readValue(i, end int) (string, int, string) {
	if i >= end {
		return "", i, "missing value"
	}
	switch p.src[i] {
	case '{':
		depth := 0
		for j := i; j < end; j++ {
			switch p.src[j] {
			case '{':
				depth++
			case '}':
				depth--
				if depth == 0 {
					return p.src[i+1 : j], j + 1, ""
				}
			}
		}
		return "", end, "unbalanced braces"
	case '"':
		depth := 0
		for j := i + 1; j < end; j++ {
			switch p.src[j] {
			case '{':
				depth++
			case '}':
				depth--
			case '"':
				if depth == 0 && p.src[j-1] != '\\' {
					return p.src[i+1 : j], j + 1, ""
				}
			}
		}
		return "", end, "unterminated quoted value"
	default:
		j := i
		for j < end && isIdentByte(p.src[j], true) {
			j++
		}
		if j == i {
			return "", i, fmt.Sprintf("unexpected %q", p.src[i])
		}
		return p.src[i:j], j, ""
	}
}

func isIdentByte(c byte, fieldName bool) bool {
	switch {
	case c >= 'a' && c <= 'z', c >= 'A' && c <= 'Z', c >= '0' && c <= '9':
		return true
	case fieldName:
		return c == '_' || c == '-' || c == ':' || c == '.' || c == '+' || c == '/'
	}
	return false
}

func skipSpace(s string, i int) int {
	for i < len(s) && (s[i] == ' ' || s[i] == '\t' || s[i] == '\n' || s[i] == '\r') {
		i++
	}
	return i
}

func snippet(s string) string {
	if i := strings.IndexByte(s, '\n'); i >= 0 {
		s = s[:i]
	}
	if len(s) > 30 {
		s = s[:30]
	}
	return s
}
