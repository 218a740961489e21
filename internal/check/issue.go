// Package check validates a site tree against the contribution rules: one
// bibliography per contributor, a square image named after the folder,
// and localized pages that only differ from the template inside their
// editable regions.
package check

import (
	"sort"
)

// Severities.
const (
	SeverityError   = "error"
	SeverityWarning = "warning"
)

// Issue types.
const (
	IssueInvalidName        = "invalid_name"
	IssueMissingBib         = "missing_bib"
	IssueBibCaseMismatch    = "bib_case_mismatch"
	IssueOrphanBib          = "orphan_bib"
	IssueDuplicateBib       = "duplicate_bib"
	IssueBibParseError      = "bib_parse_error"
	IssueEmptyBib           = "empty_bib"
	IssueDuplicateKey       = "duplicate_key"
	IssueMissingImage       = "missing_image"
	IssueImageNameMismatch  = "image_name_mismatch"
	IssueMultipleImages     = "multiple_images"
	IssueNonSquareImage     = "non_square_image"
	IssueUnreadableImage    = "unreadable_image"
	IssueMissingPage        = "missing_page"
	IssueUnexpectedPage     = "unexpected_page"
	IssueStrayFile          = "stray_file"
	IssueMarkerError        = "marker_error"
	IssueTemplateMismatch   = "template_mismatch"
	IssueBrokenMarkup       = "broken_markup"
	IssueMissingTemplate    = "missing_template"
	IssueUnreadablePage     = "unreadable_page"
	IssueUnreadableTemplate = "unreadable_template"
	IssueConflictMarkers    = "conflict_markers"
)

var severities = map[string]string{
	IssueInvalidName:        SeverityError,
	IssueMissingBib:         SeverityError,
	IssueBibCaseMismatch:    SeverityError,
	IssueOrphanBib:          SeverityWarning,
	IssueDuplicateBib:       SeverityError,
	IssueBibParseError:      SeverityError,
	IssueEmptyBib:           SeverityWarning,
	IssueDuplicateKey:       SeverityWarning,
	IssueMissingImage:       SeverityError,
	IssueImageNameMismatch:  SeverityError,
	IssueMultipleImages:     SeverityError,
	IssueNonSquareImage:     SeverityError,
	IssueUnreadableImage:    SeverityError,
	IssueMissingPage:        SeverityError,
	IssueUnexpectedPage:     SeverityError,
	IssueStrayFile:          SeverityWarning,
	IssueMarkerError:        SeverityError,
	IssueTemplateMismatch:   SeverityError,
	IssueBrokenMarkup:       SeverityWarning,
	IssueMissingTemplate:    SeverityWarning,
	IssueUnreadablePage:     SeverityError,
	IssueUnreadableTemplate: SeverityError,
	IssueConflictMarkers:    SeverityError,
}

// Severity returns the severity of an issue type.
func Severity(issueType string) string {
	if s, ok := severities[issueType]; ok {
		return s
	}
	return SeverityError
}

// Issue is a single finding. Path is relative to the tree root.
type Issue struct {
	Type        string `json:"type"`
	Severity    string `json:"severity"`
	Contributor string `json:"contributor,omitempty"`
	Path        string `json:"path,omitempty"`
	Line        int    `json:"line,omitempty"`
	Message     string `json:"message"`
}

// NewIssue builds an issue with the severity of its type.
func NewIssue(typ, contributor, path string, line int, message string) Issue {
	return Issue{
		Type:        typ,
		Severity:    Severity(typ),
		Contributor: contributor,
		Path:        path,
		Line:        line,
		Message:     message,
	}
}

// Report is the result of a check.
type Report struct {
	Status       string  `json:"status"` // "ok" or "issues"
	Contributors int     `json:"contributors"`
	BibFiles     int     `json:"bib_files"`
	Errors       int     `json:"errors"`
	Warnings     int     `json:"warnings"`
	Issues       []Issue `json:"issues"`
}

// OK reports whether the tree has no error-severity issues.
func (r *Report) OK() bool {
	return r.Status == StatusOK
}

// Report statuses.
const (
	StatusOK     = "ok"
	StatusIssues = "issues"
)

// finalize sorts issues and fills in counts and status.
func (r *Report) finalize() {
	sort.SliceStable(r.Issues, func(i, j int) bool {
		a, b := r.Issues[i], r.Issues[j]
		if a.Contributor != b.Contributor {
			return a.Contributor < b.Contributor
		}
		if a.Path != b.Path {
			return a.Path < b.Path
		}
		if a.Line != b.Line {
			return a.Line < b.Line
		}
		return a.Type < b.Type
	})

	r.Errors, r.Warnings = 0, 0
	for _, is := range r.Issues {
		if is.Severity == SeverityError {
			r.Errors++
		} else {
			r.Warnings++
		}
	}
	r.Status = StatusOK
	if r.Errors > 0 {
		r.Status = StatusIssues
	}
	if r.Issues == nil {
		r.Issues = []Issue{}
	}
}

// AddIssues appends issues and recomputes counts and status.
func (r *Report) AddIssues(issues ...Issue) {
	r.Issues = append(r.Issues, issues...)
	r.finalize()
}
