package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strings"

	"github.com/avitech-lab/labsite/internal/check"
	"github.com/avitech-lab/labsite/internal/reference"
	"github.com/charmbracelet/lipgloss"
)

// Constants for output formatting.
const (
	DefaultSearchLimit = 50 // Default limit for search/list commands

	ListTitleMaxLen   = 60 // Used in pubs list/search output
	DetailTitleMaxLen = 70 // Used in merge drop listings
)

// Styles for human output. lipgloss drops the colors when stdout is not a
// terminal.
var (
	errorStyle   = lipgloss.NewStyle().Foreground(lipgloss.Color("9")).Bold(true)
	warningStyle = lipgloss.NewStyle().Foreground(lipgloss.Color("11"))
	okStyle      = lipgloss.NewStyle().Foreground(lipgloss.Color("10")).Bold(true)
	headerStyle  = lipgloss.NewStyle().Bold(true)
	dimStyle     = lipgloss.NewStyle().Faint(true)
)

// outputJSON writes a value as formatted JSON to stdout.
func outputJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

// outputJSONLine writes a value as compact JSON on one line.
func outputJSONLine(v interface{}) error {
	return json.NewEncoder(os.Stdout).Encode(v)
}

// outputError writes an error message to stderr and returns the exit code.
func outputError(code int, format string, args ...interface{}) int {
	fmt.Fprintf(os.Stderr, "error: "+format+"\n", args...)
	return code
}

// exitWithError outputs an error in the appropriate format (human or JSON) and exits.
func exitWithError(code int, format string, args ...interface{}) {
	msg := fmt.Sprintf(format, args...)
	if humanOutput {
		fmt.Fprintf(os.Stderr, "error: %s\n", msg)
	} else {
		outputJSON(ErrorResponse{Error: msg})
	}
	os.Exit(code)
}

// StatusResponse is a generic response for commands that return status.
type StatusResponse struct {
	Status string `json:"status"`
	Path   string `json:"path,omitempty"`
	Count  int    `json:"count,omitempty"`
}

// ErrorResponse is a JSON error response.
type ErrorResponse struct {
	Error string `json:"error"`
}

// severityLabel renders a severity for human output.
func severityLabel(severity string) string {
	if severity == check.SeverityError {
		return errorStyle.Render("error")
	}
	return warningStyle.Render("warn ")
}

// statusLabel renders a report status for human output.
func statusLabel(status string) string {
	if status == check.StatusOK {
		return okStyle.Render(strings.ToUpper(status))
	}
	return errorStyle.Render(strings.ToUpper(status))
}

// formatLocation formats an issue location as path[:line].
func formatLocation(is check.Issue) string {
	if is.Path == "" {
		return "-"
	}
	if is.Line > 0 {
		return fmt.Sprintf("%s:%d", is.Path, is.Line)
	}
	return is.Path
}

// printIssuesHuman prints issues one per line, grouped by contributor.
func printIssuesHuman(issues []check.Issue) {
	current := "\x00"
	for _, is := range issues {
		if is.Contributor != current {
			current = is.Contributor
			name := current
			if name == "" {
				name = "(tree)"
			}
			fmt.Printf("\n%s\n", headerStyle.Render(name))
		}
		fmt.Printf("  %s %s %s\n", severityLabel(is.Severity), formatLocation(is), dimStyle.Render("["+is.Type+"]"))
		fmt.Printf("        %s\n", is.Message)
	}
}

// printReportHuman prints a check report.
func printReportHuman(r *check.Report) {
	fmt.Printf("%s: %d contributors, %d bibliography files, %d errors, %d warnings\n",
		statusLabel(r.Status), r.Contributors, r.BibFiles, r.Errors, r.Warnings)
	printIssuesHuman(r.Issues)
}

// truncateString truncates a string to maxLen, adding "..." if truncated.
func truncateString(s string, maxLen int) string {
	r := []rune(s)
	if len(r) <= maxLen {
		return s
	}
	return string(r[:maxLen-3]) + "..."
}

// formatAuthorShort formats an author as "Last F" (abbreviated first name).
func formatAuthorShort(a reference.Author) string {
	if a.First != "" {
		return a.Last + " " + string([]rune(a.First)[0])
	}
	return a.Last
}

// formatAuthorsShort formats authors with abbreviation and "et al." for more than maxCount.
func formatAuthorsShort(authors []reference.Author, maxCount int) string {
	if len(authors) == 0 {
		return ""
	}

	var names []string
	for i, a := range authors {
		if i >= maxCount {
			names = append(names, "et al.")
			break
		}
		names = append(names, formatAuthorShort(a))
	}
	return strings.Join(names, ", ")
}

// printPublicationsHuman prints publications in list form.
func printPublicationsHuman(pubs []reference.Publication) {
	if len(pubs) == 0 {
		fmt.Println("No publications found.")
		return
	}
	for _, p := range pubs {
		fmt.Printf("%s  %s\n", headerStyle.Render(p.Key), dimStyle.Render(fmt.Sprintf("%s, %d", p.Type, p.Year)))
		fmt.Printf("  %s\n", truncateString(p.Title, ListTitleMaxLen))
		if authors := formatAuthorsShort(p.Authors, 3); authors != "" {
			fmt.Printf("  %s\n", authors)
		}
	}
}
