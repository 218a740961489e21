package profile

import (
	"bytes"
	"fmt"
	"io"
	"strings"

	"golang.org/x/net/html"
)

// MarkupProblem is an unbalanced tag found in an editable region.
type MarkupProblem struct {
	Line    int
	Message string
}

var voidElements = map[string]bool{
	"area": true, "base": true, "br": true, "col": true, "embed": true,
	"hr": true, "img": true, "input": true, "link": true, "meta": true,
	"source": true, "track": true, "wbr": true,
}

// Elements whose end tag HTML lets the parser imply.
var optionalEnd = map[string]bool{
	"p": true, "li": true, "dt": true, "dd": true, "option": true,
	"optgroup": true, "tr": true, "td": true, "th": true, "thead": true,
	"tbody": true, "tfoot": true, "colgroup": true, "caption": true,
	"rp": true, "rt": true,
}

type openTag struct {
	name string
	line int
}

// CheckMarkup reports tags in fragment that are never closed or closed
// without being opened. A fragment that leaves a <div> open spills into the
// platform's template when rendered. startLine is the page line the
// fragment begins on.
func CheckMarkup(fragment string, startLine int) []MarkupProblem {
	var problems []MarkupProblem
	var stack []openTag

	z := html.NewTokenizer(strings.NewReader(fragment))
	line := startLine
	for {
		tt := z.Next()
		tokLine := line
		line += bytes.Count(z.Raw(), []byte("\n"))

		switch tt {
		case html.ErrorToken:
			if err := z.Err(); err != io.EOF {
				problems = append(problems, MarkupProblem{Line: tokLine, Message: err.Error()})
			}
			for _, t := range stack {
				if !optionalEnd[t.name] {
					problems = append(problems, MarkupProblem{Line: t.line, Message: fmt.Sprintf("<%s> is never closed", t.name)})
				}
			}
			return problems

		case html.StartTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}
			stack = append(stack, openTag{name: tag, line: tokLine})

		case html.EndTagToken:
			name, _ := z.TagName()
			tag := string(name)
			if voidElements[tag] {
				continue
			}
			idx := -1
			for i := len(stack) - 1; i >= 0; i-- {
				if stack[i].name == tag {
					idx = i
					break
				}
			}
			if idx < 0 {
				problems = append(problems, MarkupProblem{Line: tokLine, Message: fmt.Sprintf("</%s> has no matching <%s>", tag, tag)})
				continue
			}
			for _, t := range stack[idx+1:] {
				if !optionalEnd[t.name] {
					problems = append(problems, MarkupProblem{
						Line:    t.line,
						Message: fmt.Sprintf("<%s> is closed by </%s> on line %d", t.name, tag, tokLine),
					})
				}
			}
			stack = stack[:idx]
		}
	}
}
