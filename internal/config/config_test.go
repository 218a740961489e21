package config

import (
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestPathFunctions(t *testing.T) {
	root := "/test/site"

	tests := []struct {
		name string
		fn   func(string) string
		want string
	}{
		{"ConfigPath", ConfigPath, "/test/site/labsite.yml"},
		{"CachePath", CachePath, "/test/site/.labsite/cache"},
		{"DBPath", DBPath, "/test/site/.labsite/cache/pubs.db"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.fn(root)
			if got != tt.want {
				t.Errorf("%s(%q) = %q, want %q", tt.name, root, got, tt.want)
			}
		})
	}
}

func TestTreeConfigPaths(t *testing.T) {
	cfg := Default()
	root := "/test/site"

	if got, want := cfg.BibsPath(root), "/test/site/bibs"; got != want {
		t.Errorf("BibsPath() = %q, want %q", got, want)
	}
	if got, want := cfg.ProfilesPath(root), "/test/site/profiles"; got != want {
		t.Errorf("ProfilesPath() = %q, want %q", got, want)
	}
	if got, want := cfg.TemplatePath(root, "vn"), "/test/site/profiles/_template/template_vn.html"; got != want {
		t.Errorf("TemplatePath() = %q, want %q", got, want)
	}
	if got, want := cfg.MergeOutputPath(root), "/test/site/scripts/publications/AVITECH.bib"; got != want {
		t.Errorf("MergeOutputPath() = %q, want %q", got, want)
	}

	cfg.BibsDir = "/elsewhere/bibs"
	if got := cfg.BibsPath(root); got != "/elsewhere/bibs" {
		t.Errorf("BibsPath() with absolute dir = %q", got)
	}
}

func TestIsTree(t *testing.T) {
	tmpDir := t.TempDir()

	if IsTree(tmpDir) {
		t.Error("IsTree() = true for empty directory")
	}

	// bibs/ alone is not enough
	if err := os.Mkdir(filepath.Join(tmpDir, "bibs"), 0755); err != nil {
		t.Fatal(err)
	}
	if IsTree(tmpDir) {
		t.Error("IsTree() = true with only bibs/")
	}

	if err := os.Mkdir(filepath.Join(tmpDir, "profiles"), 0755); err != nil {
		t.Fatal(err)
	}
	if !IsTree(tmpDir) {
		t.Error("IsTree() = false with bibs/ and profiles/")
	}
}

func TestIsTree_ConfigFile(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(ConfigPath(tmpDir), []byte("bibs_dir: refs\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !IsTree(tmpDir) {
		t.Error("IsTree() = false with labsite.yml present")
	}
}

func TestFindRoot(t *testing.T) {
	tmpDir := t.TempDir()
	for _, d := range []string{"bibs", "profiles/DoHaiSon"} {
		if err := os.MkdirAll(filepath.Join(tmpDir, d), 0755); err != nil {
			t.Fatal(err)
		}
	}

	got, err := FindRoot(filepath.Join(tmpDir, "profiles", "DoHaiSon"))
	if err != nil {
		t.Fatalf("FindRoot() error = %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if got != want {
		t.Errorf("FindRoot() = %q, want %q", got, want)
	}
}

func TestFindRoot_NotFound(t *testing.T) {
	_, err := FindRoot(t.TempDir())
	if !errors.Is(err, ErrRootNotFound) {
		t.Errorf("FindRoot() error = %v, want ErrRootNotFound", err)
	}
}

func TestLoad_Missing(t *testing.T) {
	cfg, err := Load(t.TempDir())
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if cfg.BibsDir != DefaultBibsDir || cfg.Merge.MinYear != DefaultMinYear {
		t.Errorf("Load() without file should return defaults, got %+v", cfg)
	}
	if len(cfg.Languages) != 2 || cfg.Languages[0] != "en" || cfg.Languages[1] != "vn" {
		t.Errorf("Languages = %v, want [en vn]", cfg.Languages)
	}
}

func TestLoad_PartialOverride(t *testing.T) {
	tmpDir := t.TempDir()
	content := `languages: [en, fr]
markers:
  begin: "<!-- EDIT -->"
  end: "<!-- /EDIT -->"
merge:
  min_year: 2020
`
	if err := os.WriteFile(ConfigPath(tmpDir), []byte(content), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if !cfg.HasLanguage("fr") || cfg.HasLanguage("vn") {
		t.Errorf("Languages = %v, want [en fr]", cfg.Languages)
	}
	if cfg.Markers.Begin != "<!-- EDIT -->" {
		t.Errorf("Markers.Begin = %q", cfg.Markers.Begin)
	}
	if cfg.Merge.MinYear != 2020 {
		t.Errorf("Merge.MinYear = %d, want 2020", cfg.Merge.MinYear)
	}
	// untouched fields keep defaults
	if cfg.Merge.SimilarityThreshold != DefaultThreshold {
		t.Errorf("SimilarityThreshold = %v, want default", cfg.Merge.SimilarityThreshold)
	}
	if cfg.ProfilesDir != DefaultProfilesDir {
		t.Errorf("ProfilesDir = %q, want default", cfg.ProfilesDir)
	}
}

func TestLoad_ManualDuplicatesReplaceDefaults(t *testing.T) {
	tests := []struct {
		name    string
		content string
		want    map[string]string
	}{
		{"absent", "merge: {min_year: 2020}\n", map[string]string{"Son2025TTCT2C": "nl.trung2022:book:TWR"}},
		{"emptied", "merge:\n  manual_duplicates: {}\n", map[string]string{}},
		{"replaced", "merge:\n  manual_duplicates:\n    Son2024A: Son2024B\n", map[string]string{"Son2024A": "Son2024B"}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dir := t.TempDir()
			if err := os.WriteFile(ConfigPath(dir), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			cfg, err := Load(dir)
			if err != nil {
				t.Fatalf("Load() error = %v", err)
			}
			got := cfg.Merge.ManualDuplicates
			if len(got) != len(tt.want) {
				t.Fatalf("ManualDuplicates = %v, want %v", got, tt.want)
			}
			for k, v := range tt.want {
				if got[k] != v {
					t.Errorf("ManualDuplicates[%q] = %q, want %q", k, got[k], v)
				}
			}
		})
	}
}

func TestLoad_Invalid(t *testing.T) {
	tests := []struct {
		name    string
		content string
		wantErr string
	}{
		{"bad yaml", "languages: [en\n", "parsing config"},
		{"long language code", "languages: [eng]\n", "two-letter"},
		{"duplicate language", "languages: [en, en]\n", "listed twice"},
		{"no languages", "languages: []\n", "at least one language"},
		{"same markers", "markers: {begin: X, end: X}\n", "must differ"},
		{"threshold zero", "merge: {similarity_threshold: 0}\n", "similarity_threshold"},
		{"threshold above one", "merge: {similarity_threshold: 1.5}\n", "similarity_threshold"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			tmpDir := t.TempDir()
			if err := os.WriteFile(ConfigPath(tmpDir), []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := Load(tmpDir)
			if err == nil {
				t.Fatal("Load() expected error")
			}
			if !strings.Contains(err.Error(), tt.wantErr) {
				t.Errorf("Load() error = %v, want containing %q", err, tt.wantErr)
			}
		})
	}
}

func TestSaveLoadRoundTrip(t *testing.T) {
	tmpDir := t.TempDir()
	cfg := Default()
	cfg.Merge.Title = "Lab Publications"

	if err := cfg.Save(tmpDir); err != nil {
		t.Fatalf("Save() error = %v", err)
	}
	loaded, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	if loaded.Merge.Title != "Lab Publications" {
		t.Errorf("Merge.Title = %q", loaded.Merge.Title)
	}
	if loaded.Merge.ManualDuplicates["Son2025TTCT2C"] != "nl.trung2022:book:TWR" {
		t.Errorf("ManualDuplicates = %v", loaded.Merge.ManualDuplicates)
	}
}

func TestExpandPath(t *testing.T) {
	home, err := os.UserHomeDir()
	if err != nil {
		t.Skip("Cannot get home directory")
	}

	if got := ExpandPath("~/site"); got != filepath.Join(home, "site") {
		t.Errorf("ExpandPath(~/site) = %q", got)
	}
	if got := ExpandPath("/abs/site"); got != "/abs/site" {
		t.Errorf("ExpandPath(/abs/site) = %q", got)
	}
	if got := ExpandPath(""); got != "" {
		t.Errorf("ExpandPath(\"\") = %q", got)
	}
}
