// Package profile handles the localized profile pages and images in a
// contributor's profile folder.
//
// A page is a fixed template owned by the hosting platform with one or
// more editable regions between a begin and an end marker. Everything
// outside the regions, the markers included, must stay byte-identical
// to the template.
package profile

import (
	"fmt"
	"strings"
)

// Markers delimit editable regions.
type Markers struct {
	Begin string
	End   string
}

// Segment is a run of text that is either fixed or editable.
type Segment struct {
	Editable  bool
	Text      string
	StartLine int // 1-indexed line the segment starts on
}

// Document is a page split into alternating fixed and editable segments.
type Document struct {
	Segments []Segment
}

// MarkerError reports misplaced or missing markers.
type MarkerError struct {
	Line    int
	Message string
}

func (e MarkerError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}

// Split divides content into segments. Marker text belongs to the fixed
// segments, so an editable segment is exactly what lies between a begin
// marker and the following end marker. The segments concatenate back to
// the original bytes.
func Split(content []byte, m Markers) (*Document, error) {
	src := string(content)
	doc := &Document{}

	lineAt := func(off int) int {
		return strings.Count(src[:off], "\n") + 1
	}
	add := func(editable bool, from, to int) {
		doc.Segments = append(doc.Segments, Segment{
			Editable:  editable,
			Text:      src[from:to],
			StartLine: lineAt(from),
		})
	}

	segStart, pos := 0, 0
	for {
		begin := indexFrom(src, m.Begin, pos)
		end := indexFrom(src, m.End, pos)
		if end >= 0 && (begin < 0 || end < begin) {
			return nil, MarkerError{Line: lineAt(end), Message: "end marker outside an editable region"}
		}
		if begin < 0 {
			add(false, segStart, len(src))
			return doc, nil
		}

		open := begin + len(m.Begin)
		add(false, segStart, open)

		stop := indexFrom(src, m.End, open)
		next := indexFrom(src, m.Begin, open)
		if stop < 0 {
			return nil, MarkerError{Line: lineAt(begin), Message: "editable region is never closed"}
		}
		if next >= 0 && next < stop {
			return nil, MarkerError{
				Line:    lineAt(next),
				Message: fmt.Sprintf("begin marker inside the editable region opened on line %d", lineAt(begin)),
			}
		}
		add(true, open, stop)
		segStart, pos = stop, stop+len(m.End)
	}
}

func indexFrom(s, substr string, from int) int {
	i := strings.Index(s[from:], substr)
	if i < 0 {
		return -1
	}
	return from + i
}

// Fixed returns the text of each fixed segment.
func (d *Document) Fixed() []string {
	var out []string
	for _, s := range d.Segments {
		if !s.Editable {
			out = append(out, s.Text)
		}
	}
	return out
}

// Editable returns the text of each editable segment.
func (d *Document) Editable() []string {
	var out []string
	for _, s := range d.Segments {
		if s.Editable {
			out = append(out, s.Text)
		}
	}
	return out
}

// Regions returns the number of editable regions.
func (d *Document) Regions() int {
	return len(d.Editable())
}

// Mismatch describes a fixed segment that differs from the template.
type Mismatch struct {
	Segment  int    // index among fixed segments
	Line     int    // page line where the difference starts
	Expected string // template line, without line ending
	Actual   string // page line, without line ending
	Message  string
}

// CompareFixed checks that page keeps every fixed segment of template
// byte-for-byte. A differing region count is reported as one mismatch,
// since segments can no longer be paired.
func CompareFixed(template, page *Document) []Mismatch {
	if template.Regions() != page.Regions() {
		return []Mismatch{{
			Segment: -1,
			Line:    1,
			Message: fmt.Sprintf("page has %d editable regions, template has %d", page.Regions(), template.Regions()),
		}}
	}

	var tmplFixed, pageFixed []Segment
	for _, s := range template.Segments {
		if !s.Editable {
			tmplFixed = append(tmplFixed, s)
		}
	}
	for _, s := range page.Segments {
		if !s.Editable {
			pageFixed = append(pageFixed, s)
		}
	}

	var out []Mismatch
	for i := range tmplFixed {
		want, got := tmplFixed[i].Text, pageFixed[i].Text
		if want == got {
			continue
		}
		off, exp, act := firstDifference(want, got)
		out = append(out, Mismatch{
			Segment:  i,
			Line:     pageFixed[i].StartLine + off,
			Expected: exp,
			Actual:   act,
			Message:  fmt.Sprintf("fixed markup changed in segment %d", i+1),
		})
	}
	return out
}

// firstDifference returns the line offset of the first differing line and
// both versions of it.
func firstDifference(want, got string) (int, string, string) {
	wl, gl := strings.SplitAfter(want, "\n"), strings.SplitAfter(got, "\n")
	for i := 0; ; i++ {
		var w, g string
		if i < len(wl) {
			w = wl[i]
		}
		if i < len(gl) {
			g = gl[i]
		}
		if w != g || (i >= len(wl) && i >= len(gl)) {
			return i, strings.TrimRight(w, "\r\n"), strings.TrimRight(g, "\r\n")
		}
	}
}
