package conflict

import (
	"bufio"
	"bytes"
	"io"
	"strings"
)

// Parser state machine states
type parserState int

const (
	stateNormal parserState = iota
	stateInOurs
	stateInBase
	stateInTheirs
)

// Conflict marker prefixes
const (
	oursMarker      = "<<<<<<<"
	baseMarker      = "|||||||" // diff3 conflict style
	separatorMarker = "======="
	theirsMarker    = ">>>>>>>"
)

// isMarker reports whether line is marker, alone or followed by a label.
// Longer runs of the same character are content.
func isMarker(line, marker string) bool {
	if !strings.HasPrefix(line, marker) {
		return false
	}
	rest := line[len(marker):]
	return rest == "" || rest[0] == ' ' || rest[0] == '\t' || rest[0] == '\r'
}

// Scan returns the conflict regions in r. A lone separator line outside
// a region is content; a lone start or end marker is an error.
func Scan(r io.Reader) ([]Region, error) {
	scanner := bufio.NewScanner(r)
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)

	var regions []Region
	var current *Region
	state := stateNormal
	lineNum := 0

	for scanner.Scan() {
		lineNum++
		line := scanner.Text()

		switch state {
		case stateNormal:
			if isMarker(line, oursMarker) {
				current = &Region{StartLine: lineNum}
				state = stateInOurs
			} else if isMarker(line, theirsMarker) {
				return nil, ParseError{
					Line:    lineNum,
					Message: "unexpected end marker outside conflict region",
					Context: truncate(line, 50),
				}
			}

		case stateInOurs, stateInBase:
			switch {
			case isMarker(line, oursMarker):
				return nil, ParseError{
					Line:    lineNum,
					Message: "nested conflict markers not allowed",
					Context: truncate(line, 50),
				}
			case isMarker(line, baseMarker):
				state = stateInBase
			case isMarker(line, separatorMarker):
				state = stateInTheirs
			case isMarker(line, theirsMarker):
				return nil, ParseError{
					Line:    lineNum,
					Message: "unexpected end marker before separator",
					Context: truncate(line, 50),
				}
			case state == stateInOurs:
				current.Ours = append(current.Ours, line)
			}

		case stateInTheirs:
			switch {
			case isMarker(line, oursMarker):
				return nil, ParseError{
					Line:    lineNum,
					Message: "nested conflict markers not allowed",
					Context: truncate(line, 50),
				}
			case isMarker(line, separatorMarker):
				return nil, ParseError{
					Line:    lineNum,
					Message: "duplicate separator marker in conflict region",
					Context: truncate(line, 50),
				}
			case isMarker(line, theirsMarker):
				current.EndLine = lineNum
				regions = append(regions, *current)
				current = nil
				state = stateNormal
			default:
				current.Theirs = append(current.Theirs, line)
			}
		}
	}

	if err := scanner.Err(); err != nil {
		return nil, err
	}

	if state != stateNormal {
		return nil, ParseError{
			Line:    current.StartLine,
			Message: "unterminated conflict region at end of file",
		}
	}

	return regions, nil
}

// ScanBytes is a convenience function that scans a byte slice.
func ScanBytes(data []byte) ([]Region, error) {
	return Scan(bytes.NewReader(data))
}

// truncate truncates a string to maxLen characters, adding "..." if truncated.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen-3] + "..."
}
