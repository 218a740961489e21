package main

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"github.com/avitech-lab/labsite/internal/check"
	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/spf13/cobra"
)

var (
	checkContributors []string
	checkStrict       bool
	checkWatch        bool
)

func init() {
	checkCmd.Flags().StringArrayVarP(&checkContributors, "contributor", "c", nil, "Only check this contributor (repeatable)")
	checkCmd.Flags().BoolVar(&checkStrict, "strict", false, "Exit with status 3 when any error is found")
	checkCmd.Flags().BoolVarP(&checkWatch, "watch", "w", false, "Re-run the check when files change")
	rootCmd.AddCommand(checkCmd)
}

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate contributor files",
	Long: `Validate the bibliography files and profile folders of the tree.

Each contributor needs bibs/<Name>.bib, one square image named
profiles/<Name>/<Name>.png (or .jpg, .jpeg, .gif) and one page per
language that only differs from the template between the editable
markers.

Issues are reported, never fixed. With --strict, any error exits 3.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func runCheck(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	if checkWatch {
		return runCheckWatch(t)
	}

	report, err := check.NewChecker(t, logger).Run(cmd.Context(), checkContributors)
	if err != nil {
		if errors.Is(err, tree.ErrNotFound) || errors.Is(err, tree.ErrInvalidName) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitError, "checking tree: %v", err)
	}

	if humanOutput {
		printReportHuman(report)
	} else if err := outputJSON(report); err != nil {
		return err
	}

	if checkStrict && !report.OK() {
		os.Exit(ExitDataError)
	}
	return nil
}

func runCheckWatch(t *tree.Tree) error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if humanOutput {
		fmt.Fprintln(os.Stderr, "Watching for changes. Press Ctrl-C to stop.")
	}
	opts := check.WatchOptions{Only: checkContributors, Logger: logger}
	err := check.Watch(ctx, t, opts, func(r *check.Report) {
		if humanOutput {
			fmt.Println()
			printReportHuman(r)
			return
		}
		// one compact report per line so a consumer can stream them
		_ = outputJSONLine(r)
	})
	if err != nil {
		if errors.Is(err, tree.ErrNotFound) || errors.Is(err, tree.ErrInvalidName) {
			exitWithError(ExitDataError, "%v", err)
		}
		exitWithError(ExitError, "watching tree: %v", err)
	}
	return nil
}
