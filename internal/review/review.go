// Package review checks that a proposed change stays within one
// contributor's files and leaves the tree valid.
package review

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/avitech-lab/labsite/internal/check"
	"github.com/avitech-lab/labsite/internal/git"
	"github.com/avitech-lab/labsite/internal/profile"
	"github.com/avitech-lab/labsite/internal/tree"
)

// Result is the outcome of reviewing the changes since a base revision.
type Result struct {
	Base           string           `json:"base"`
	Commits        []git.CommitInfo `json:"commits"`
	Changes        []git.Change     `json:"changes"`
	Contributors   []string         `json:"contributors"`
	Foreign        []string         `json:"foreign"`
	Untracked      []string         `json:"untracked"` // changed paths git does not track yet
	Violations     []string         `json:"violations"`
	Check          *check.Report    `json:"check"`
	BaseMismatches []check.Issue    `json:"base_mismatches"`
}

// Clean reports whether the change touches a single contributor, nothing
// outside contributor files, leaves that contributor's files valid and
// keeps the fixed markup of existing pages as it was at base.
func (r *Result) Clean() bool {
	return len(r.Violations) == 0 && len(r.Foreign) == 0 && r.Check.OK() && len(r.BaseMismatches) == 0
}

// Review inspects the changes between base and the working tree.
func Review(ctx context.Context, t *tree.Tree, base string, checker *check.Checker) (*Result, error) {
	repoRoot, err := git.FindRepoRoot(t.Root)
	if err != nil {
		return nil, err
	}
	changes, err := git.ChangedFiles(repoRoot, base)
	if err != nil {
		return nil, err
	}
	commits, err := git.CommitsSince(repoRoot, base)
	if err != nil {
		return nil, err
	}
	// pages are compared where the change forked, not at the tip of base
	forkPoint, err := git.MergeBase(repoRoot, base)
	if err != nil {
		return nil, err
	}

	res := &Result{
		Base:           base,
		Commits:        commits,
		Changes:        changes,
		Contributors:   []string{},
		Foreign:        []string{},
		Untracked:      []string{},
		Violations:     []string{},
		BaseMismatches: []check.Issue{},
	}
	if res.Commits == nil {
		res.Commits = []git.CommitInfo{}
	}

	loc := newLocator(repoRoot, t.Root)
	owners := make(map[string]bool)
	for _, c := range changes {
		if c.Status == git.StatusAdded && !git.IsFileTracked(repoRoot, c.Path) {
			res.Untracked = append(res.Untracked, c.Path)
		}
	}
	for _, p := range git.Paths(changes) {
		rel, inTree := loc.treeRel(p)
		if !inTree {
			res.Foreign = append(res.Foreign, p)
			continue
		}
		name, ok := t.Owner(rel)
		if !ok {
			res.Foreign = append(res.Foreign, rel)
			continue
		}
		owners[name] = true
	}
	for name := range owners {
		res.Contributors = append(res.Contributors, name)
	}
	sort.Strings(res.Contributors)

	if len(res.Contributors) > 1 {
		res.Violations = append(res.Violations, fmt.Sprintf("change touches the files of %d contributors: %s",
			len(res.Contributors), strings.Join(res.Contributors, ", ")))
	}

	// Contributors whose folder the change removes cannot be checked, but
	// files left or added for a missing folder belong to no one.
	kept := make(map[string]bool)
	for _, c := range changes {
		if c.Status == git.StatusDeleted {
			continue
		}
		if rel, ok := loc.treeRel(c.Path); ok {
			if name, ok := t.Owner(rel); ok {
				kept[name] = true
			}
		}
	}
	var present []string
	for _, name := range res.Contributors {
		_, err := t.Contributor(name)
		switch {
		case err == nil:
			present = append(present, name)
		case errors.Is(err, tree.ErrNotFound) || errors.Is(err, tree.ErrInvalidName):
			if kept[name] {
				res.Violations = append(res.Violations, fmt.Sprintf("%s has no profile folder", name))
			}
		default:
			return nil, err
		}
	}
	if len(present) > 0 {
		res.Check, err = checker.Run(ctx, present)
		if err != nil {
			return nil, err
		}
	} else {
		res.Check = &check.Report{}
		res.Check.AddIssues()
	}

	for _, c := range changes {
		if c.Status == git.StatusDeleted || c.Status == git.StatusAdded {
			continue
		}
		mismatches, err := baseMismatches(t, checker, loc, base, forkPoint, c)
		if err != nil {
			return nil, err
		}
		res.BaseMismatches = append(res.BaseMismatches, mismatches...)
	}
	return res, nil
}

// baseMismatches compares the fixed markup of a changed page with the
// same page at rev, the fork point from base.
func baseMismatches(t *tree.Tree, checker *check.Checker, loc *locator, base, rev string, c git.Change) ([]check.Issue, error) {
	rel, ok := loc.treeRel(c.Path)
	if !ok {
		return nil, nil
	}
	name, ok := t.Owner(rel)
	if !ok || !isPage(t, name, rel) {
		return nil, nil
	}

	oldPath := c.Path
	if c.OldPath != "" {
		oldPath = c.OldPath
	}
	before, existed, err := git.ShowFile(loc.repoRoot, rev, oldPath)
	if err != nil || !existed {
		return nil, err
	}
	baseline, err := profile.Split(before, checker.Markers())
	if err != nil {
		// base was already broken; the current check reports the page itself
		return nil, nil
	}

	current, err := os.ReadFile(filepath.Join(t.Root, filepath.FromSlash(rel)))
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", rel, err)
	}

	var out []check.Issue
	for _, is := range checker.CheckPage(name, rel, current, baseline) {
		if is.Type != check.IssueTemplateMismatch {
			continue
		}
		is.Message = "compared to " + base + ": " + is.Message
		out = append(out, is)
	}
	return out, nil
}

func isPage(t *tree.Tree, name, rel string) bool {
	for _, lang := range t.Config.Languages {
		if t.Rel(t.PagePath(name, lang)) == rel {
			return true
		}
	}
	return false
}

// locator maps repository-relative paths into the tree, which may be a
// subdirectory of the repository.
type locator struct {
	repoRoot string
	prefix   string // tree root relative to the repository, "" when equal
	outside  bool   // tree is not under the repository root
}

func newLocator(repoRoot, treeRoot string) *locator {
	l := &locator{repoRoot: repoRoot}
	rel, err := filepath.Rel(realPath(repoRoot), realPath(treeRoot))
	if err != nil || rel == ".." || strings.HasPrefix(rel, ".."+string(filepath.Separator)) {
		l.outside = true
		return l
	}
	if rel != "." {
		l.prefix = filepath.ToSlash(rel) + "/"
	}
	return l
}

func (l *locator) treeRel(repoPath string) (string, bool) {
	if l.outside || !strings.HasPrefix(repoPath, l.prefix) {
		return "", false
	}
	return strings.TrimPrefix(repoPath, l.prefix), true
}

func realPath(p string) string {
	if r, err := filepath.EvalSymlinks(p); err == nil {
		return r
	}
	return p
}
