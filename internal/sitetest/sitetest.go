// Package sitetest builds site trees on disk for tests.
package sitetest

import (
	"image"
	"image/png"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

// Template is the page template written for every language.
const Template = `<!DOCTYPE html>
<html>
<head>
<title>AVITECH member</title>
</head>
<body>
<div class="member">
<!-- BEGIN EDITABLE -->
<p>Your bio here</p>
<!-- END EDITABLE -->
</div>
</body>
</html>
`

// Bib is a one-entry bibliography.
const Bib = `@article{Son2023RIS,
  author = {Do Hai Son and Tran Thi Thuy Quynh},
  title = {Reconfigurable Intelligent Surfaces for Indoor Coverage},
  journal = {IEEE Access},
  year = {2023}
}
`

// Site is a tree rooted in a temporary directory.
type Site struct {
	Root string
	t    *testing.T
}

// New creates an empty tree with templates for en and vn.
func New(t *testing.T) *Site {
	t.Helper()
	s := &Site{Root: t.TempDir(), t: t}
	s.Mkdir("bibs")
	s.Mkdir("profiles")
	s.Write("profiles/_template/template_en.html", Template)
	s.Write("profiles/_template/template_vn.html", Template)
	return s
}

// Path returns the absolute path of a tree-relative path.
func (s *Site) Path(rel string) string {
	return filepath.Join(s.Root, filepath.FromSlash(rel))
}

// Mkdir creates a directory.
func (s *Site) Mkdir(rel string) {
	s.t.Helper()
	if err := os.MkdirAll(s.Path(rel), 0755); err != nil {
		s.t.Fatal(err)
	}
}

// Write writes a file, creating parent directories.
func (s *Site) Write(rel, content string) {
	s.t.Helper()
	path := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		s.t.Fatal(err)
	}
}

// Read returns the content of a file.
func (s *Site) Read(rel string) string {
	s.t.Helper()
	data, err := os.ReadFile(s.Path(rel))
	if err != nil {
		s.t.Fatal(err)
	}
	return string(data)
}

// Remove deletes a file.
func (s *Site) Remove(rel string) {
	s.t.Helper()
	if err := os.Remove(s.Path(rel)); err != nil {
		s.t.Fatal(err)
	}
}

// WritePNG writes a blank w by h PNG.
func (s *Site) WritePNG(rel string, w, h int) {
	s.t.Helper()
	path := s.Path(rel)
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		s.t.Fatal(err)
	}
	f, err := os.Create(path)
	if err != nil {
		s.t.Fatal(err)
	}
	defer f.Close()
	if err := png.Encode(f, image.NewRGBA(image.Rect(0, 0, w, h))); err != nil {
		s.t.Fatal(err)
	}
}

// Page returns the template with bio in its editable region.
func Page(bio string) string {
	return strings.Replace(Template, "<p>Your bio here</p>", bio, 1)
}

// AddContributor writes a complete, valid contribution for name: the
// bibliography, a square image and a page per language.
func (s *Site) AddContributor(name, bib string) {
	s.t.Helper()
	s.Write("bibs/"+name+".bib", bib)
	s.WritePNG("profiles/"+name+"/"+name+".png", 64, 64)
	s.Write("profiles/"+name+"/"+name+"_en.html", Page("<p>"+name+" is a researcher.</p>"))
	s.Write("profiles/"+name+"/"+name+"_vn.html", Page("<p>"+name+" la nghien cuu vien.</p>"))
}
