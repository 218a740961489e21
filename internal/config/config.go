// Package config handles tree and global configuration.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"

	"gopkg.in/yaml.v3"
)

// TreeConfig represents configuration stored in labsite.yml at the tree root.
// Every field has a default, so the file is optional.
type TreeConfig struct {
	BibsDir         string      `yaml:"bibs_dir" json:"bibs_dir"`
	ProfilesDir     string      `yaml:"profiles_dir" json:"profiles_dir"`
	TemplateDir     string      `yaml:"template_dir" json:"template_dir"`
	Languages       []string    `yaml:"languages" json:"languages"`
	ImageExtensions []string    `yaml:"image_extensions" json:"image_extensions"`
	Markers         Markers     `yaml:"markers" json:"markers"`
	Merge           MergeConfig `yaml:"merge" json:"merge"`
}

// Markers delimit the editable regions of a localized profile page.
type Markers struct {
	Begin string `yaml:"begin" json:"begin"`
	End   string `yaml:"end" json:"end"`
}

// MergeConfig controls the publication merge.
type MergeConfig struct {
	Output              string            `yaml:"output" json:"output"`
	Title               string            `yaml:"title" json:"title"`
	MinYear             int               `yaml:"min_year" json:"min_year"`
	SimilarityThreshold float64           `yaml:"similarity_threshold" json:"similarity_threshold"`
	ManualDuplicates    map[string]string `yaml:"manual_duplicates" json:"manual_duplicates"` // duplicate key -> kept key
}

const (
	ConfigFile  = "labsite.yml"
	StateDir    = ".labsite"
	CacheDir    = "cache"
	DBFile      = "pubs.db"
	TemplateTag = "template"
)

// Default values for TreeConfig.
const (
	DefaultBibsDir     = "bibs"
	DefaultProfilesDir = "profiles"
	DefaultTemplateDir = "profiles/_template"
	DefaultBeginMarker = "<!-- BEGIN EDITABLE -->"
	DefaultEndMarker   = "<!-- END EDITABLE -->"
	DefaultMergeOutput = "scripts/publications/AVITECH.bib"
	DefaultMergeTitle  = "AVITECH Publications"
	DefaultMinYear     = 2017
	DefaultThreshold   = 0.7
)

// ErrRootNotFound is returned when no site tree is found above a directory.
var ErrRootNotFound = errors.New("not in a site tree (no labsite.yml, or bibs/ and profiles/)")

var languageCode = regexp.MustCompile(`^[a-z]{2}$`)

// Default returns the configuration used when labsite.yml is absent.
func Default() *TreeConfig {
	return &TreeConfig{
		BibsDir:         DefaultBibsDir,
		ProfilesDir:     DefaultProfilesDir,
		TemplateDir:     DefaultTemplateDir,
		Languages:       []string{"en", "vn"},
		ImageExtensions: []string{".png", ".jpg", ".jpeg", ".gif"},
		Markers:         Markers{Begin: DefaultBeginMarker, End: DefaultEndMarker},
		Merge: MergeConfig{
			Output:              DefaultMergeOutput,
			Title:               DefaultMergeTitle,
			MinYear:             DefaultMinYear,
			SimilarityThreshold: DefaultThreshold,
			ManualDuplicates: map[string]string{
				// incollection is a chapter of the book
				"Son2025TTCT2C": "nl.trung2022:book:TWR",
			},
		},
	}
}

// ConfigPath returns the path to labsite.yml from a root path.
func ConfigPath(root string) string {
	return filepath.Join(root, ConfigFile)
}

// CachePath returns the path to the cache directory from a root path.
func CachePath(root string) string {
	return filepath.Join(root, StateDir, CacheDir)
}

// DBPath returns the path to the publication index from a root path.
func DBPath(root string) string {
	return filepath.Join(root, StateDir, CacheDir, DBFile)
}

// IsTree checks if the given path is the root of a site tree.
func IsTree(root string) bool {
	if fileExists(ConfigPath(root)) {
		return true
	}
	return dirExists(filepath.Join(root, DefaultBibsDir)) &&
		dirExists(filepath.Join(root, DefaultProfilesDir))
}

// FindRoot walks up from the given path to find a site tree.
func FindRoot(start string) (string, error) {
	abs, err := filepath.Abs(start)
	if err != nil {
		return "", fmt.Errorf("resolving path: %w", err)
	}

	for {
		if IsTree(abs) {
			return abs, nil
		}

		parent := filepath.Dir(abs)
		if parent == abs {
			return "", ErrRootNotFound
		}
		abs = parent
	}
}

// Load reads labsite.yml from the tree at the given root.
// Fields the file leaves out keep their defaults.
func Load(root string) (*TreeConfig, error) {
	cfg := Default()

	data, err := os.ReadFile(ConfigPath(root))
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("reading config: %w", err)
	}

	// yaml merges maps into the defaults; a listed manual_duplicates
	// replaces them instead.
	var present struct {
		Merge struct {
			ManualDuplicates *map[string]string `yaml:"manual_duplicates"`
		} `yaml:"merge"`
	}
	if err := yaml.Unmarshal(data, &present); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}
	if present.Merge.ManualDuplicates != nil {
		cfg.Merge.ManualDuplicates = nil
	}

	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("parsing config: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration to labsite.yml at the given root.
func (c *TreeConfig) Save(root string) error {
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("encoding config: %w", err)
	}

	if err := os.WriteFile(ConfigPath(root), data, 0644); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	return nil
}

// Validate checks the configuration for values the tools cannot work with.
func (c *TreeConfig) Validate() error {
	if c.BibsDir == "" || c.ProfilesDir == "" {
		return fmt.Errorf("invalid config: bibs_dir and profiles_dir must be set")
	}
	if len(c.Languages) == 0 {
		return fmt.Errorf("invalid config: at least one language is required")
	}
	seen := make(map[string]bool)
	for _, lang := range c.Languages {
		if !languageCode.MatchString(lang) {
			return fmt.Errorf("invalid config: language %q is not a two-letter lowercase code", lang)
		}
		if seen[lang] {
			return fmt.Errorf("invalid config: language %q listed twice", lang)
		}
		seen[lang] = true
	}
	if c.Markers.Begin == "" || c.Markers.End == "" {
		return fmt.Errorf("invalid config: markers.begin and markers.end must be set")
	}
	if c.Markers.Begin == c.Markers.End {
		return fmt.Errorf("invalid config: markers.begin and markers.end must differ")
	}
	if c.Merge.SimilarityThreshold <= 0 || c.Merge.SimilarityThreshold > 1 {
		return fmt.Errorf("invalid config: merge.similarity_threshold must be in (0, 1], got %v", c.Merge.SimilarityThreshold)
	}
	return nil
}

// BibsPath returns the absolute bibliography directory.
func (c *TreeConfig) BibsPath(root string) string {
	return resolve(root, c.BibsDir)
}

// ProfilesPath returns the absolute profiles directory.
func (c *TreeConfig) ProfilesPath(root string) string {
	return resolve(root, c.ProfilesDir)
}

// TemplatePath returns the pristine template for a language.
func (c *TreeConfig) TemplatePath(root, lang string) string {
	return filepath.Join(resolve(root, c.TemplateDir), TemplateTag+"_"+lang+".html")
}

// MergeOutputPath returns the absolute path of the merged bibliography.
func (c *TreeConfig) MergeOutputPath(root string) string {
	return resolve(root, c.Merge.Output)
}

// HasLanguage reports whether lang is configured.
func (c *TreeConfig) HasLanguage(lang string) bool {
	for _, l := range c.Languages {
		if l == lang {
			return true
		}
	}
	return false
}

func resolve(root, p string) string {
	if filepath.IsAbs(p) {
		return p
	}
	return filepath.Join(root, p)
}

// ExpandPath expands ~ to the user's home directory.
// Returns the original path unchanged if it doesn't start with ~.
func ExpandPath(path string) string {
	if len(path) == 0 || path[0] != '~' {
		return path
	}

	home, err := os.UserHomeDir()
	if err != nil {
		return path
	}

	return filepath.Join(home, path[1:])
}

func fileExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && !info.IsDir()
}

func dirExists(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}
