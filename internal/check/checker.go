package check

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"runtime"
	"sort"
	"strings"

	"github.com/avitech-lab/labsite/internal/bibtex"
	"github.com/avitech-lab/labsite/internal/conflict"
	"github.com/avitech-lab/labsite/internal/profile"
	"github.com/avitech-lab/labsite/internal/publications"
	"github.com/avitech-lab/labsite/internal/tree"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Checker validates contributors in a tree.
type Checker struct {
	tree      *tree.Tree
	markers   profile.Markers
	templates map[string]*profile.Document // language -> pristine template, nil if absent
	tmplIssue []Issue
	logger    *zap.Logger
}

// NewChecker loads the page templates of t. A missing template disables
// the fixed-markup comparison for that language and is reported as a
// warning by Run.
func NewChecker(t *tree.Tree, logger *zap.Logger) *Checker {
	if logger == nil {
		logger = zap.NewNop()
	}
	c := &Checker{
		tree:      t,
		markers:   profile.Markers{Begin: t.Config.Markers.Begin, End: t.Config.Markers.End},
		templates: make(map[string]*profile.Document),
		logger:    logger,
	}

	for _, lang := range t.Config.Languages {
		path := t.Config.TemplatePath(t.Root, lang)
		rel := t.Rel(path)
		data, err := os.ReadFile(path)
		if err != nil {
			if os.IsNotExist(err) {
				c.tmplIssue = append(c.tmplIssue, NewIssue(IssueMissingTemplate, "", rel, 0,
					fmt.Sprintf("no %s template; fixed markup of %s pages is not compared", lang, lang)))
			} else {
				c.tmplIssue = append(c.tmplIssue, NewIssue(IssueUnreadableTemplate, "", rel, 0, err.Error()))
			}
			continue
		}
		doc, err := profile.Split(data, c.markers)
		if err != nil {
			c.tmplIssue = append(c.tmplIssue, NewIssue(IssueUnreadableTemplate, "", rel, lineOf(err), err.Error()))
			continue
		}
		c.templates[lang] = doc
	}
	return c
}

// Template returns the parsed template for lang, or nil.
func (c *Checker) Template(lang string) *profile.Document {
	return c.templates[lang]
}

// Markers returns the markers pages are split on.
func (c *Checker) Markers() profile.Markers {
	return c.markers
}

// bibState is what the tree-level pass learns about bibliography files.
type bibState struct {
	files     map[string]*bibtex.File // absolute path -> parsed file
	byLower   map[string][]string     // lowercased base name -> paths, wrong-case extensions included
	keys      map[string][]string     // citation key -> paths using it
	wrongCase []string
	stray     []string
}

// Run checks the contributors named in only, or every contributor when
// only is empty. Tree-wide findings such as orphan bibliographies are
// reported only for a full run.
func (c *Checker) Run(ctx context.Context, only []string) (*Report, error) {
	contributors, err := c.selectContributors(only)
	if err != nil {
		return nil, err
	}

	bibs, err := c.loadBibs(ctx)
	if err != nil {
		return nil, err
	}

	results := make([][]Issue, len(contributors))
	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(runtime.NumCPU())
	for i := range contributors {
		g.Go(func() error {
			if err := gctx.Err(); err != nil {
				return err
			}
			results[i] = c.checkContributor(&contributors[i], bibs)
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return nil, err
	}

	report := &Report{Contributors: len(contributors), BibFiles: len(bibs.files)}
	report.Issues = append(report.Issues, c.tmplIssue...)
	for _, issues := range results {
		report.Issues = append(report.Issues, issues...)
	}
	if len(only) == 0 {
		report.Issues = append(report.Issues, c.treeIssues(contributors, bibs)...)
	}
	report.finalize()

	c.logger.Info("Checked tree",
		zap.Int("contributors", report.Contributors),
		zap.Int("errors", report.Errors),
		zap.Int("warnings", report.Warnings))
	return report, nil
}

func (c *Checker) selectContributors(only []string) ([]tree.Contributor, error) {
	if len(only) == 0 {
		return c.tree.Contributors()
	}
	var out []tree.Contributor
	for _, name := range only {
		ct, err := c.tree.Contributor(name)
		if err != nil {
			return nil, err
		}
		out = append(out, *ct)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

func (c *Checker) loadBibs(ctx context.Context) (*bibState, error) {
	st := &bibState{
		files:   make(map[string]*bibtex.File),
		byLower: make(map[string][]string),
		keys:    make(map[string][]string),
	}
	listing, err := c.tree.ListBibs()
	if err != nil {
		return nil, err
	}
	st.wrongCase = listing.WrongCase
	st.stray = listing.StrayFiles
	for _, path := range listing.WrongCase {
		lower := strings.ToLower(ownerOf(path))
		st.byLower[lower] = append(st.byLower[lower], path)
	}

	files, err := publications.LoadFiles(ctx, listing.Bibs, c.logger)
	if err != nil {
		return nil, err
	}
	for _, f := range files {
		st.files[f.Path] = f
		lower := strings.ToLower(ownerOf(f.Path))
		st.byLower[lower] = append(st.byLower[lower], f.Path)

		seen := make(map[string]bool)
		for _, e := range f.Entries {
			if !seen[e.Key] {
				st.keys[e.Key] = append(st.keys[e.Key], f.Path)
				seen[e.Key] = true
			}
		}
	}
	for _, paths := range st.byLower {
		sort.Strings(paths)
	}
	return st, nil
}

func (c *Checker) checkContributor(ct *tree.Contributor, bibs *bibState) []Issue {
	var issues []Issue
	add := func(typ, path string, line int, format string, args ...interface{}) {
		issues = append(issues, NewIssue(typ, ct.Name, path, line, fmt.Sprintf(format, args...)))
	}
	c.logger.Debug("Checking contributor", zap.String("name", ct.Name))

	if !tree.ValidName(ct.Name) {
		add(IssueInvalidName, c.tree.Rel(ct.ProfileDir), 0,
			"%q is not a valid contributor name (letters, digits and '-', starting with a letter)", ct.Name)
	}

	issues = append(issues, c.checkBib(ct, bibs)...)
	issues = append(issues, c.checkImages(ct)...)
	issues = append(issues, c.checkPages(ct)...)

	for _, path := range ct.StrayFiles {
		if strings.HasPrefix(filepath.Base(path), ".") {
			continue
		}
		add(IssueStrayFile, c.tree.Rel(path), 0, "unexpected file in profile folder")
	}
	return issues
}

func (c *Checker) checkBib(ct *tree.Contributor, bibs *bibState) []Issue {
	var issues []Issue
	add := func(typ, path string, line int, msg string) {
		issues = append(issues, NewIssue(typ, ct.Name, path, line, msg))
	}

	if ct.BibPath == "" {
		want := c.tree.Rel(c.tree.BibPath(ct.Name))
		if others := bibs.byLower[strings.ToLower(ct.Name)]; len(others) > 0 {
			add(IssueBibCaseMismatch, c.tree.Rel(others[0]), 0,
				fmt.Sprintf("bibliography must be named %s exactly", want))
		} else {
			add(IssueMissingBib, want, 0, "contributor has no bibliography file")
		}
		return issues
	}

	rel := c.tree.Rel(ct.BibPath)
	if data, err := os.ReadFile(ct.BibPath); err == nil {
		issues = append(issues, conflictIssues(ct.Name, rel, data)...)
	}
	f := bibs.files[ct.BibPath]
	if f == nil {
		parsed, err := bibtex.ParseFile(ct.BibPath)
		if err != nil {
			add(IssueBibParseError, rel, 0, err.Error())
			return issues
		}
		f = parsed
	}

	for _, perr := range f.Errors {
		add(IssueBibParseError, rel, perr.Line, perr.Message)
	}
	if len(f.Entries) == 0 && len(f.Errors) == 0 {
		add(IssueEmptyBib, rel, 0, "bibliography has no entries")
	}

	for _, e := range f.Entries {
		paths := bibs.keys[e.Key]
		if len(paths) < 2 {
			continue
		}
		var others []string
		for _, p := range paths {
			if p != ct.BibPath {
				others = append(others, c.tree.Rel(p))
			}
		}
		if len(others) > 0 {
			add(IssueDuplicateKey, rel, e.Line,
				fmt.Sprintf("citation key %q is also used in %s", e.Key, strings.Join(others, ", ")))
		}
	}
	return issues
}

func (c *Checker) checkImages(ct *tree.Contributor) []Issue {
	var issues []Issue
	add := func(typ, path string, msg string) {
		issues = append(issues, NewIssue(typ, ct.Name, path, 0, msg))
	}

	if len(ct.Images) == 0 {
		add(IssueMissingImage, c.tree.Rel(filepath.Join(ct.ProfileDir, ct.Name+".png")),
			"profile folder has no image")
		return issues
	}
	if len(ct.Images) > 1 {
		var names []string
		for _, img := range ct.Images {
			names = append(names, filepath.Base(img))
		}
		add(IssueMultipleImages, c.tree.Rel(ct.ProfileDir),
			fmt.Sprintf("profile folder must hold one image, found %s", strings.Join(names, ", ")))
	}

	for _, img := range ct.Images {
		rel := c.tree.Rel(img)
		base := filepath.Base(img)
		if stem := strings.TrimSuffix(base, filepath.Ext(base)); stem != ct.Name {
			add(IssueImageNameMismatch, rel,
				fmt.Sprintf("image must be named %s%s", ct.Name, strings.ToLower(filepath.Ext(base))))
		}
		w, h, _, err := profile.ImageInfo(img)
		if err != nil {
			add(IssueUnreadableImage, rel, err.Error())
			continue
		}
		if !profile.IsSquare(w, h) {
			add(IssueNonSquareImage, rel, fmt.Sprintf("image is %dx%d, must be square", w, h))
		}
	}
	return issues
}

func (c *Checker) checkPages(ct *tree.Contributor) []Issue {
	var issues []Issue

	for _, lang := range c.tree.Config.Languages {
		path, ok := ct.Pages[lang]
		if !ok {
			issues = append(issues, NewIssue(IssueMissingPage, ct.Name,
				c.tree.Rel(c.tree.PagePath(ct.Name, lang)), 0,
				fmt.Sprintf("missing %s page", lang)))
			continue
		}
		data, err := os.ReadFile(path)
		if err != nil {
			issues = append(issues, NewIssue(IssueUnreadablePage, ct.Name, c.tree.Rel(path), 0, err.Error()))
			continue
		}
		issues = append(issues, c.CheckPage(ct.Name, c.tree.Rel(path), data, c.templates[lang])...)
	}

	var extra []string
	for lang := range ct.Pages {
		if !c.tree.Config.HasLanguage(lang) {
			extra = append(extra, lang)
		}
	}
	sort.Strings(extra)
	for _, lang := range extra {
		issues = append(issues, NewIssue(IssueUnexpectedPage, ct.Name, c.tree.Rel(ct.Pages[lang]), 0,
			fmt.Sprintf("language %q is not one of %s", lang, strings.Join(c.tree.Config.Languages, ", "))))
	}
	return issues
}

// CheckPage checks one localized page against a baseline document, which
// may be nil to skip the fixed-markup comparison.
func (c *Checker) CheckPage(name, rel string, data []byte, baseline *profile.Document) []Issue {
	if issues := conflictIssues(name, rel, data); len(issues) > 0 {
		return issues
	}

	var issues []Issue
	doc, err := profile.Split(data, c.markers)
	if err != nil {
		return append(issues, NewIssue(IssueMarkerError, name, rel, lineOf(err), err.Error()))
	}

	if baseline != nil {
		for _, m := range profile.CompareFixed(baseline, doc) {
			msg := m.Message
			if m.Segment >= 0 {
				msg = fmt.Sprintf("%s: expected %q, found %q", m.Message, m.Expected, m.Actual)
			}
			issues = append(issues, NewIssue(IssueTemplateMismatch, name, rel, m.Line, msg))
		}
	}

	for _, seg := range doc.Segments {
		if !seg.Editable {
			continue
		}
		for _, p := range profile.CheckMarkup(seg.Text, seg.StartLine) {
			issues = append(issues, NewIssue(IssueBrokenMarkup, name, rel, p.Line, p.Message))
		}
	}
	return issues
}

// treeIssues reports bibliography files that belong to nobody, file
// names that collide when case is ignored, and anything in the
// bibliography directory that is not a bibliography.
func (c *Checker) treeIssues(contributors []tree.Contributor, bibs *bibState) []Issue {
	var issues []Issue
	folders := make(map[string]bool)
	for _, ct := range contributors {
		folders[strings.ToLower(ct.Name)] = true
	}

	lowers := make([]string, 0, len(bibs.byLower))
	for l := range bibs.byLower {
		lowers = append(lowers, l)
	}
	sort.Strings(lowers)

	for _, lower := range lowers {
		paths := bibs.byLower[lower]
		if len(paths) > 1 {
			var rels []string
			for _, p := range paths {
				rels = append(rels, c.tree.Rel(p))
			}
			for _, p := range paths {
				issues = append(issues, NewIssue(IssueDuplicateBib, ownerOf(p), c.tree.Rel(p), 0,
					fmt.Sprintf("bibliography names differ only by case: %s", strings.Join(rels, ", "))))
			}
		}
		if !folders[lower] {
			for _, p := range paths {
				issues = append(issues, NewIssue(IssueOrphanBib, "", c.tree.Rel(p), 0,
					"bibliography has no matching profile folder"))
			}
		}
	}

	// a contributor's own wrong-case file is reported by checkBib
	for _, p := range bibs.wrongCase {
		if lower := strings.ToLower(ownerOf(p)); folders[lower] && len(bibs.byLower[lower]) == 1 {
			continue
		}
		issues = append(issues, NewIssue(IssueBibCaseMismatch, "", c.tree.Rel(p), 0,
			"bibliography extension must be "+tree.BibExt))
	}
	for _, p := range bibs.stray {
		issues = append(issues, NewIssue(IssueStrayFile, "", c.tree.Rel(p), 0,
			"unexpected file in bibliography directory"))
	}
	return issues
}

// conflictIssues reports merge conflicts left in data.
func conflictIssues(name, rel string, data []byte) []Issue {
	regions, err := conflict.ScanBytes(data)
	if err != nil {
		var perr conflict.ParseError
		if errors.As(err, &perr) {
			return []Issue{NewIssue(IssueConflictMarkers, name, rel, perr.Line, "malformed conflict markers: "+perr.Message)}
		}
		return []Issue{NewIssue(IssueConflictMarkers, name, rel, 0, err.Error())}
	}
	var issues []Issue
	for _, r := range regions {
		issues = append(issues, NewIssue(IssueConflictMarkers, name, rel, r.StartLine,
			fmt.Sprintf("unresolved merge conflict (lines %d-%d)", r.StartLine, r.EndLine)))
	}
	return issues
}

func ownerOf(bibPath string) string {
	base := filepath.Base(bibPath)
	return strings.TrimSuffix(base, filepath.Ext(base))
}

func lineOf(err error) int {
	var merr profile.MarkerError
	if errors.As(err, &merr) {
		return merr.Line
	}
	return 0
}
