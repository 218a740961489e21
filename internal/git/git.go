package git

import (
	"errors"
	"fmt"
	"os/exec"
	"strings"
)

// ErrNotGitRepo indicates the directory is not a git repository.
var ErrNotGitRepo = errors.New("not a git repository")

// ErrCommitNotFound indicates the specified commit does not exist.
var ErrCommitNotFound = errors.New("commit not found")

// FindRepoRoot finds the root of the git repository containing the given path.
// Returns ErrNotGitRepo if not in a git repository.
func FindRepoRoot(path string) (string, error) {
	cmd := exec.Command("git", "-C", path, "rev-parse", "--show-toplevel")
	output, err := cmd.Output()
	if err != nil {
		return "", ErrNotGitRepo
	}
	return strings.TrimSpace(string(output)), nil
}

// ValidateCommit verifies that a commit reference exists.
// Supports SHA, HEAD, HEAD~N, branch names, tags, etc.
// Returns the resolved full SHA or ErrCommitNotFound.
func ValidateCommit(repoRoot, commitRef string) (string, error) {
	cmd := exec.Command("git", "-C", repoRoot, "rev-parse", "--verify", commitRef+"^{commit}")
	output, err := cmd.Output()
	if err != nil {
		return "", ErrCommitNotFound
	}
	return strings.TrimSpace(string(output)), nil
}

// MergeBase returns the commit HEAD diverged from base at. Histories
// without a common ancestor resolve to base itself.
func MergeBase(repoRoot, base string) (string, error) {
	sha, err := ValidateCommit(repoRoot, base)
	if err != nil {
		return "", err
	}
	cmd := exec.Command("git", "-C", repoRoot, "merge-base", sha, "HEAD")
	output, err := cmd.Output()
	if err != nil {
		return sha, nil
	}
	return strings.TrimSpace(string(output)), nil
}

// ShowFile returns the contents of a repository-relative path at a
// revision. ok is false when the file did not exist there.
func ShowFile(repoRoot, rev, path string) (data []byte, ok bool, err error) {
	sha, err := ValidateCommit(repoRoot, rev)
	if err != nil {
		return nil, false, err
	}

	cmd := exec.Command("git", "-C", repoRoot, "show", sha+":"+path)
	output, err := cmd.Output()
	if err != nil {
		var exitErr *exec.ExitError
		if errors.As(err, &exitErr) {
			return nil, false, nil
		}
		return nil, false, fmt.Errorf("reading %s at %s: %w", path, rev, err)
	}
	return output, true, nil
}

// IsFileTracked checks if a repository-relative path is tracked by git.
func IsFileTracked(repoRoot, path string) bool {
	cmd := exec.Command("git", "-C", repoRoot, "ls-files", "--full-name", "--", path)
	output, err := cmd.Output()
	if err != nil {
		return false
	}
	return strings.TrimSpace(string(output)) != ""
}
