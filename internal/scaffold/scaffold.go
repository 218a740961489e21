// Package scaffold creates the files a new contributor starts from.
package scaffold

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avitech-lab/labsite/internal/tree"
)

// ErrExists is returned when the contributor already has files in the tree.
var ErrExists = errors.New("contributor already exists")

// Created lists what Create wrote, relative to the tree root.
type Created struct {
	Name    string   `json:"name"`
	Files   []string `json:"files"`
	Pending []string `json:"pending"` // files the contributor still has to add
}

const bibHeader = `%% Publications of %s.
%%
%% Add one BibTeX entry per publication. Keys must be unique across the
%% whole lab, so prefer <Surname><Year><Keyword>, e.g. Son2023RIS.
`

// Create writes an empty bibliography and one page per language, copied
// from the templates. The profile image is left to the contributor.
func Create(t *tree.Tree, name string) (*Created, error) {
	if !tree.ValidName(name) {
		return nil, fmt.Errorf("%w: %q", tree.ErrInvalidName, name)
	}

	bib := t.BibPath(name)
	dir := t.ProfileDir(name)
	if path, err := existing(t, name); err != nil {
		return nil, err
	} else if path != "" {
		return nil, fmt.Errorf("%w: %s", ErrExists, t.Rel(path))
	}

	// Read every template before writing anything.
	pages := make(map[string][]byte, len(t.Config.Languages))
	for _, lang := range t.Config.Languages {
		data, err := os.ReadFile(t.Config.TemplatePath(t.Root, lang))
		if err != nil {
			return nil, fmt.Errorf("reading %s template: %w", lang, err)
		}
		pages[lang] = data
	}

	created := &Created{Name: name}
	if err := os.MkdirAll(t.BibsDir(), 0755); err != nil {
		return nil, fmt.Errorf("creating bibs directory: %w", err)
	}
	if err := os.WriteFile(bib, []byte(fmt.Sprintf(bibHeader, name)), 0644); err != nil {
		return nil, fmt.Errorf("writing bibliography: %w", err)
	}
	created.Files = append(created.Files, t.Rel(bib))

	if err := os.MkdirAll(dir, 0755); err != nil {
		return nil, fmt.Errorf("creating profile folder: %w", err)
	}
	for _, lang := range t.Config.Languages {
		path := t.PagePath(name, lang)
		if err := os.WriteFile(path, pages[lang], 0644); err != nil {
			return nil, fmt.Errorf("writing %s page: %w", lang, err)
		}
		created.Files = append(created.Files, t.Rel(path))
	}

	created.Pending = []string{t.Rel(filepath.Join(dir, name+".png"))}
	return created, nil
}

// existing returns a bibliography or profile folder whose name matches
// name when case is ignored, or "" if there is none.
func existing(t *tree.Tree, name string) (string, error) {
	bibs, err := t.ListBibs()
	if err != nil {
		return "", err
	}
	for _, path := range append(bibs.Bibs, bibs.WrongCase...) {
		base := filepath.Base(path)
		if strings.EqualFold(strings.TrimSuffix(base, filepath.Ext(base)), name) {
			return path, nil
		}
	}

	entries, err := os.ReadDir(t.ProfilesDir())
	if err != nil && !os.IsNotExist(err) {
		return "", fmt.Errorf("reading profiles: %w", err)
	}
	for _, e := range entries {
		if strings.EqualFold(e.Name(), name) {
			return filepath.Join(t.ProfilesDir(), e.Name()), nil
		}
	}
	return "", nil
}
