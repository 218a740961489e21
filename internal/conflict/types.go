// Package conflict finds unresolved git merge conflicts left in a file.
package conflict

import "fmt"

// Region is one conflict left in a file. Line numbers are 1-indexed.
type Region struct {
	StartLine int // line of the <<<<<<< marker
	EndLine   int // line of the >>>>>>> marker

	Ours   []string // lines between <<<<<<< and the base or separator marker
	Theirs []string // lines between ======= and >>>>>>>
}

// ParseError reports conflict markers that do not form a region.
type ParseError struct {
	Line    int    // Line number where error occurred (1-indexed)
	Message string // Description of the error
	Context string // The offending line, truncated
}

func (e ParseError) Error() string {
	return fmt.Sprintf("line %d: %s", e.Line, e.Message)
}
