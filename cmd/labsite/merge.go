package main

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/avitech-lab/labsite/internal/bibtex"
	"github.com/avitech-lab/labsite/internal/publications"
	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/spf13/cobra"
)

var (
	mergeOutput    string
	mergeMinYear   int
	mergeThreshold float64
	mergeDryRun    bool
)

func init() {
	mergeCmd.Flags().StringVarP(&mergeOutput, "output", "o", "", "Merged bibliography path (default from labsite.yml)")
	mergeCmd.Flags().IntVar(&mergeMinYear, "min-year", 0, "Drop entries published before this year")
	mergeCmd.Flags().Float64Var(&mergeThreshold, "threshold", 0, "Mean author, title and venue similarity at which two entries are duplicates")
	mergeCmd.Flags().BoolVar(&mergeDryRun, "dry-run", false, "Report what would be merged without writing")
	rootCmd.AddCommand(mergeCmd)
}

var mergeCmd = &cobra.Command{
	Use:   "merge",
	Short: "Merge all bibliographies into the site publication list",
	Long: `Merge every bibs/*.bib file into one bibliography.

Entries without a usable year, entries before the minimum year, @misc
entries that only carry a note, and duplicates are dropped. Two entries
are duplicates when the mean similarity of their authors, titles and
venues reaches the threshold, or when one is a chapter of the other.
Every drop is listed with its reason.`,
	Args: cobra.NoArgs,
	RunE: runMerge,
}

// MergeResult is the response for the merge command.
type MergeResult struct {
	Status  string              `json:"status"` // "written" or "dry_run"
	Output  string              `json:"output"`
	Stats   publications.Stats  `json:"stats"`
	Dropped []publications.Drop `json:"dropped"`
}

func runMerge(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	opts := publications.OptionsFromConfig(t.Config.Merge)
	opts.Logger = logger
	if cmd.Flags().Changed("min-year") {
		opts.MinYear = mergeMinYear
	}
	if cmd.Flags().Changed("threshold") {
		if mergeThreshold <= 0 || mergeThreshold > 1 {
			exitWithError(ExitError, "--threshold must be in (0, 1], got %g", mergeThreshold)
		}
		opts.Threshold = mergeThreshold
	}

	output := t.Config.MergeOutputPath(t.Root)
	if mergeOutput != "" {
		abs, err := filepath.Abs(mergeOutput)
		if err != nil {
			exitWithError(ExitError, "resolving output: %v", err)
		}
		output = abs
	}

	files := mustLoadBibs(cmd.Context(), t)
	res, err := publications.Merge(cmd.Context(), files, opts)
	if err != nil {
		exitWithError(ExitError, "merging: %v", err)
	}

	result := MergeResult{
		Status:  "written",
		Output:  t.Rel(output),
		Stats:   res.Stats,
		Dropped: make([]publications.Drop, 0, len(res.Dropped)),
	}
	for _, d := range res.Dropped {
		d.Source = t.Rel(d.Source)
		result.Dropped = append(result.Dropped, d)
	}

	if mergeDryRun {
		result.Status = "dry_run"
	} else if err := publications.WriteMergedFile(output, res, opts); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		printMergeHuman(result, opts)
		return nil
	}
	return outputJSON(result)
}

func printMergeHuman(r MergeResult, opts publications.Options) {
	s := r.Stats
	if r.Status == "dry_run" {
		fmt.Printf("Dry run: would write %d entries to %s\n", s.Kept, r.Output)
	} else {
		fmt.Printf("Wrote %d entries to %s\n", s.Kept, r.Output)
	}
	fmt.Printf("  Original total:          %d\n", s.Total)
	fmt.Printf("  Duplicates removed:      %d\n", s.Duplicates)
	fmt.Printf("  Before %d:             %d\n", opts.MinYear, s.BeforeMinYear)
	fmt.Printf("  Incomplete @misc:        %d\n", s.IncompleteMisc)
	fmt.Printf("  Missing or invalid year: %d\n", s.NoYear)

	if len(r.Dropped) == 0 {
		return
	}
	fmt.Printf("\n%s\n", headerStyle.Render("Dropped"))
	for _, d := range r.Dropped {
		line := fmt.Sprintf("  %s (%s): %s", d.Key, d.Source, d.Reason)
		if d.Other != "" {
			line += " of " + d.Other
		}
		fmt.Println(truncateString(line, DetailTitleMaxLen+20))
	}
}

// mustLoadBibs parses every bibliography file of the tree.
func mustLoadBibs(ctx context.Context, t *tree.Tree) []*bibtex.File {
	if info, err := os.Stat(t.BibsDir()); err != nil || !info.IsDir() {
		exitWithError(ExitDataError, "bibliography directory %s not found", t.Rel(t.BibsDir()))
	}
	paths, err := t.BibFiles()
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	files, err := publications.LoadFiles(ctx, paths, logger)
	if err != nil {
		exitWithError(ExitDataError, "loading bibliographies: %v", err)
	}
	return files
}
