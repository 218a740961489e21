// Package main provides the labsite CLI entry point.
package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/avitech-lab/labsite/internal/config"
	"github.com/avitech-lab/labsite/internal/storage"
	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
)

// Version is set at build time via ldflags
var Version = "dev"

var (
	// humanOutput controls whether to use human-readable output
	humanOutput bool
	verbose     bool
	rootFlag    string

	logger = zap.NewNop()
)

func main() {
	if err := rootCmd.Execute(); err != nil {
		// Print the error since we have SilenceErrors: true
		fmt.Fprintf(os.Stderr, "Error: %s\n", err)
		os.Exit(ExitError)
	}
}

var rootCmd = &cobra.Command{
	Use:   "labsite",
	Short: "Contributor tooling for the lab website",
	Long: `labsite checks and assembles the contributor tree of the lab website.

Each contributor owns bibs/<Name>.bib and profiles/<Name>/. labsite
validates those files, reviews that a change stays within one
contributor's files, and merges all bibliographies into the site's
publication list.

All commands output JSON by default. Use --human for readable output.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		config.LoadEnv()
		l, err := newLogger(verbose, config.LogLevel())
		if err != nil {
			return fmt.Errorf("failed to initialize logger: %w", err)
		}
		logger = l
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		_ = logger.Sync()
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&humanOutput, "human", false, "Use human-readable output instead of JSON")
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Log progress to stderr")
	rootCmd.PersistentFlags().StringVar(&rootFlag, "root", "", "Site tree to work on (default: search upward from the working directory)")
	rootCmd.Version = Version
}

// newLogger builds the stderr logger. Logging stays at warnings unless
// --verbose or a configured level asks for more.
func newLogger(verbose bool, level string) (*zap.Logger, error) {
	cfg := zap.NewProductionConfig()
	cfg.Level = zap.NewAtomicLevelAt(zapcore.WarnLevel)
	if level != "" {
		lvl, err := zap.ParseAtomicLevel(level)
		if err != nil {
			return nil, fmt.Errorf("log level %q: %w", level, err)
		}
		cfg.Level = lvl
	}
	if verbose {
		cfg.Level = zap.NewAtomicLevelAt(zapcore.DebugLevel)
	}
	return cfg.Build()
}

// getStartingDirectory returns the directory to start searching for a tree.
// --root wins over LABSITE_ROOT and the global site_path.
func getStartingDirectory() (string, int) {
	if rootFlag != "" {
		return config.ExpandPath(rootFlag), 0
	}
	start, err := config.StartDir()
	if err != nil {
		return "", outputError(ExitError, "getting current directory: %v", err)
	}
	return start, 0
}

// mustFindRoot finds the site tree, exits on error.
func mustFindRoot() string {
	start, exitCode := getStartingDirectory()
	if exitCode != 0 {
		os.Exit(exitCode)
	}

	root, err := config.FindRoot(start)
	if err != nil {
		if errors.Is(err, config.ErrRootNotFound) {
			fmt.Fprintln(os.Stderr, config.HelpfulConfigMessage())
			os.Exit(ExitConfigError)
		}
		exitWithError(ExitError, "finding site tree: %v", err)
	}
	return root
}

// mustLoadConfig loads configuration, exits on error.
func mustLoadConfig(root string) *config.TreeConfig {
	cfg, err := config.Load(root)
	if err != nil {
		exitWithError(ExitConfigError, "loading config: %v", err)
	}
	return cfg
}

// mustOpenTree finds the tree and loads its configuration.
func mustOpenTree() *tree.Tree {
	root := mustFindRoot()
	t, err := tree.Open(root, mustLoadConfig(root))
	if err != nil {
		exitWithError(ExitError, "opening tree: %v", err)
	}
	return t
}

// mustOpenDatabase opens the publication index, exits on error.
// The caller is responsible for calling Close() on the returned DB.
func mustOpenDatabase(root string) *storage.DB {
	dbPath := config.DBPath(root)
	if err := os.MkdirAll(config.CachePath(root), 0755); err != nil {
		exitWithError(ExitError, "creating cache directory: %v", err)
	}
	db, err := storage.OpenDB(dbPath)
	if err != nil {
		exitWithError(ExitError, "opening database: %v", err)
	}
	return db
}

// mustOpenExistingDatabase is mustOpenDatabase for read-only commands:
// a missing index is a config error pointing at 'pubs index'.
func mustOpenExistingDatabase(root string) *storage.DB {
	if _, err := os.Stat(config.DBPath(root)); os.IsNotExist(err) {
		exitWithError(ExitConfigError, "publication index not found\n\nRun 'labsite pubs index' to build it.")
	}
	return mustOpenDatabase(root)
}
