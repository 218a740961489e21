// Package tree discovers contributors in the shared site tree.
package tree

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"

	"github.com/avitech-lab/labsite/internal/config"
)

// ErrNotFound is returned when a contributor has no profile folder.
var ErrNotFound = errors.New("contributor not found")

// ErrInvalidName is returned for names that cannot be used as file names.
var ErrInvalidName = errors.New("invalid contributor name")

var namePattern = regexp.MustCompile(`^[A-Za-z][A-Za-z0-9-]*$`)

// BibExt is the extension of bibliography files.
const BibExt = ".bib"

// ValidName reports whether name can identify a contributor. Underscores
// are excluded because they separate the name from the language code in
// page file names.
func ValidName(name string) bool {
	return namePattern.MatchString(name)
}

// Contributor is what the tree holds for one person.
// Paths are absolute.
type Contributor struct {
	Name       string            `json:"name"`
	ProfileDir string            `json:"profile_dir"`
	BibPath    string            `json:"bib_path,omitempty"`
	Images     []string          `json:"images,omitempty"`
	Pages      map[string]string `json:"pages,omitempty"` // language code -> path
	StrayFiles []string          `json:"stray_files,omitempty"`
}

// Tree is a site tree on disk.
type Tree struct {
	Root   string
	Config *config.TreeConfig
}

// Open returns the tree rooted at root. A nil cfg means defaults.
func Open(root string, cfg *config.TreeConfig) (*Tree, error) {
	abs, err := filepath.Abs(root)
	if err != nil {
		return nil, fmt.Errorf("resolving root: %w", err)
	}
	if cfg == nil {
		cfg = config.Default()
	}
	return &Tree{Root: abs, Config: cfg}, nil
}

// BibsDir returns the absolute bibliography directory.
func (t *Tree) BibsDir() string {
	return t.Config.BibsPath(t.Root)
}

// ProfilesDir returns the absolute profiles directory.
func (t *Tree) ProfilesDir() string {
	return t.Config.ProfilesPath(t.Root)
}

// BibPath returns where name's bibliography belongs.
func (t *Tree) BibPath(name string) string {
	return filepath.Join(t.BibsDir(), name+BibExt)
}

// ProfileDir returns where name's profile folder belongs.
func (t *Tree) ProfileDir(name string) string {
	return filepath.Join(t.ProfilesDir(), name)
}

// PagePath returns where name's page in lang belongs.
func (t *Tree) PagePath(name, lang string) string {
	return filepath.Join(t.ProfileDir(name), PageName(name, lang))
}

// PageName returns the file name of a localized page.
func PageName(name, lang string) string {
	return name + "_" + lang + ".html"
}

// Rel returns path relative to the tree root with forward slashes.
func (t *Tree) Rel(path string) string {
	rel, err := filepath.Rel(t.Root, path)
	if err != nil {
		return path
	}
	return filepath.ToSlash(rel)
}

// skipDir reports folders under profiles/ that are not contributors.
func skipDir(name string) bool {
	return strings.HasPrefix(name, "_") || strings.HasPrefix(name, ".")
}

// Contributors returns every contributor folder, sorted by name.
func (t *Tree) Contributors() ([]Contributor, error) {
	entries, err := os.ReadDir(t.ProfilesDir())
	if err != nil {
		return nil, fmt.Errorf("reading profiles: %w", err)
	}

	var out []Contributor
	for _, e := range entries {
		if !e.IsDir() || skipDir(e.Name()) {
			continue
		}
		c, err := t.load(e.Name())
		if err != nil {
			return nil, err
		}
		out = append(out, *c)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Name < out[j].Name })
	return out, nil
}

// Contributor returns a single contributor. Names that are not a single
// path element are ErrInvalidName.
func (t *Tree) Contributor(name string) (*Contributor, error) {
	if name == "" || strings.ContainsAny(name, `/\`) || skipDir(name) {
		return nil, fmt.Errorf("%w: %q", ErrInvalidName, name)
	}
	info, err := os.Stat(t.ProfileDir(name))
	if err != nil || !info.IsDir() {
		return nil, fmt.Errorf("%w: %s", ErrNotFound, name)
	}
	return t.load(name)
}

func (t *Tree) load(name string) (*Contributor, error) {
	dir := t.ProfileDir(name)
	files, err := os.ReadDir(dir)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", dir, err)
	}

	c := &Contributor{Name: name, ProfileDir: dir, Pages: make(map[string]string)}
	if info, err := os.Stat(t.BibPath(name)); err == nil && !info.IsDir() && hasExactName(t.BibsDir(), name+BibExt) {
		c.BibPath = t.BibPath(name)
	}

	prefix := name + "_"
	for _, f := range files {
		if f.IsDir() {
			continue
		}
		fname := f.Name()
		path := filepath.Join(dir, fname)
		ext := strings.ToLower(filepath.Ext(fname))

		switch {
		case t.isImageExt(ext):
			c.Images = append(c.Images, path)
		case ext == ".html" && strings.HasPrefix(fname, prefix):
			lang := strings.TrimSuffix(strings.TrimPrefix(fname, prefix), filepath.Ext(fname))
			c.Pages[lang] = path
		default:
			c.StrayFiles = append(c.StrayFiles, path)
		}
	}
	sort.Strings(c.Images)
	sort.Strings(c.StrayFiles)
	return c, nil
}

// hasExactName checks the directory listing, since a case-insensitive
// file system answers os.Stat for any casing.
func hasExactName(dir, name string) bool {
	entries, err := os.ReadDir(dir)
	if err != nil {
		return false
	}
	for _, e := range entries {
		if e.Name() == name {
			return true
		}
	}
	return false
}

func (t *Tree) isImageExt(ext string) bool {
	for _, e := range t.Config.ImageExtensions {
		if strings.EqualFold(e, ext) {
			return true
		}
	}
	return false
}

// BibListing is what the bibliography directory holds. Paths are
// absolute and sorted.
type BibListing struct {
	Bibs       []string // files ending in .bib
	WrongCase  []string // bibliography files whose extension is not lowercase, like .BIB
	StrayFiles []string // anything else except dotfiles
}

// ListBibs classifies the files in the bibliography directory. A missing
// directory yields an empty listing.
func (t *Tree) ListBibs() (*BibListing, error) {
	l := &BibListing{}
	entries, err := os.ReadDir(t.BibsDir())
	if err != nil {
		if os.IsNotExist(err) {
			return l, nil
		}
		return nil, fmt.Errorf("reading bibs: %w", err)
	}
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") {
			continue
		}
		path := filepath.Join(t.BibsDir(), name)
		ext := filepath.Ext(name)
		switch {
		case ext == BibExt:
			l.Bibs = append(l.Bibs, path)
		case strings.EqualFold(ext, BibExt):
			l.WrongCase = append(l.WrongCase, path)
		default:
			l.StrayFiles = append(l.StrayFiles, path)
		}
	}
	sort.Strings(l.Bibs)
	sort.Strings(l.WrongCase)
	sort.Strings(l.StrayFiles)
	return l, nil
}

// BibFiles returns every .bib file in the bibliography directory, sorted.
// A missing directory yields no files.
func (t *Tree) BibFiles() ([]string, error) {
	l, err := t.ListBibs()
	if err != nil {
		return nil, err
	}
	return l.Bibs, nil
}

// Owner returns the contributor a tree-relative path belongs to: either
// their bibliography or anything inside their profile folder.
func (t *Tree) Owner(rel string) (string, bool) {
	rel = filepath.ToSlash(filepath.Clean(filepath.FromSlash(rel)))
	bibs := t.Rel(t.BibsDir())
	profiles := t.Rel(t.ProfilesDir())

	if dir, file := splitDir(rel); dir == bibs && file != "" {
		if strings.EqualFold(filepath.Ext(file), BibExt) {
			name := strings.TrimSuffix(file, filepath.Ext(file))
			return name, name != ""
		}
		return "", false
	}

	if strings.HasPrefix(rel, profiles+"/") {
		rest := strings.TrimPrefix(rel, profiles+"/")
		name, _, found := strings.Cut(rest, "/")
		if found && name != "" && !skipDir(name) {
			return name, true
		}
	}
	return "", false
}

func splitDir(rel string) (string, string) {
	i := strings.LastIndex(rel, "/")
	if i < 0 {
		return "", rel
	}
	return rel[:i], rel[i+1:]
}
