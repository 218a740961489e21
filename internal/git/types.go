// Package git reads the change history of the site tree.
package git

// Change statuses, as reported by git diff --name-status.
const (
	StatusAdded    = "A"
	StatusModified = "M"
	StatusDeleted  = "D"
	StatusRenamed  = "R"
	StatusCopied   = "C"
)

// Change is one changed path, relative to the repository root.
type Change struct {
	Status  string `json:"status"`
	Path    string `json:"path"`
	OldPath string `json:"old_path,omitempty"` // source of a rename or copy
}

// CommitInfo represents information about a git commit.
type CommitInfo struct {
	SHA     string `json:"sha"`
	Message string `json:"message"`
}
