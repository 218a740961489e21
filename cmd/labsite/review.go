package main

import (
	"errors"
	"fmt"
	"os"

	"github.com/avitech-lab/labsite/internal/check"
	"github.com/avitech-lab/labsite/internal/config"
	"github.com/avitech-lab/labsite/internal/git"
	"github.com/avitech-lab/labsite/internal/review"
	"github.com/spf13/cobra"
)

var reviewBase string

func init() {
	reviewCmd.Flags().StringVarP(&reviewBase, "base", "b", "main", "Revision the change is compared against")
	rootCmd.AddCommand(reviewCmd)
}

var reviewCmd = &cobra.Command{
	Use:   "review",
	Short: "Review a change before merging it",
	Long: `Review the changes between --base and the working tree.

A mergeable change touches the files of one contributor only, nothing
outside bibs/ and the contributor folders, and leaves those files valid.
Pages are also compared with their version at --base so edits outside
the editable region show up even without a template.

Exits 4 when the change crosses ownership boundaries and 3 when the
touched files do not pass the check or change fixed markup that was
there at --base.`,
	Args: cobra.NoArgs,
	RunE: runReview,
}

// ReviewResponse is the response for the review command.
type ReviewResponse struct {
	*review.Result
	Reviewer string `json:"reviewer,omitempty"`
	Clean    bool   `json:"clean"`
}

func runReview(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	res, err := review.Review(cmd.Context(), t, reviewBase, check.NewChecker(t, logger))
	if err != nil {
		switch {
		case errors.Is(err, git.ErrNotGitRepo):
			exitWithError(ExitConfigError, "%v", err)
		case errors.Is(err, git.ErrCommitNotFound):
			exitWithError(ExitError, "unknown base: %v", err)
		default:
			exitWithError(ExitError, "reviewing: %v", err)
		}
	}

	resp := ReviewResponse{Result: res, Reviewer: config.Reviewer(), Clean: res.Clean()}
	if humanOutput {
		printReviewHuman(resp)
	} else if err := outputJSON(resp); err != nil {
		return err
	}

	switch {
	case len(res.Violations) > 0 || len(res.Foreign) > 0:
		os.Exit(ExitOwnership)
	case !res.Check.OK() || len(res.BaseMismatches) > 0:
		os.Exit(ExitDataError)
	}
	return nil
}

func printReviewHuman(r ReviewResponse) {
	if r.Reviewer != "" {
		fmt.Printf("Reviewer: %s\n", r.Reviewer)
	}
	fmt.Printf("Base: %s, %d commits, %d changed files\n", r.Base, len(r.Commits), len(r.Changes))
	for _, c := range r.Commits {
		fmt.Printf("  %s %s\n", dimStyle.Render(git.ShortSHA(c.SHA)), c.Message)
	}

	if len(r.Contributors) > 0 {
		fmt.Printf("\nContributors: %v\n", r.Contributors)
	}
	for _, v := range r.Violations {
		fmt.Printf("%s %s\n", errorStyle.Render("violation"), v)
	}
	if len(r.Foreign) > 0 {
		fmt.Printf("\n%s\n", headerStyle.Render("Outside contributor files"))
		for _, p := range r.Foreign {
			fmt.Printf("  %s\n", p)
		}
	}

	if len(r.Untracked) > 0 {
		fmt.Printf("\n%s\n", headerStyle.Render("Not added to git yet"))
		for _, p := range r.Untracked {
			fmt.Printf("  %s\n", p)
		}
	}

	fmt.Println()
	printReportHuman(r.Check)
	if len(r.BaseMismatches) > 0 {
		fmt.Printf("\n%s\n", headerStyle.Render("Compared to "+r.Base))
		printIssuesHuman(r.BaseMismatches)
	}

	fmt.Println()
	if r.Clean {
		fmt.Println(okStyle.Render("Change can be merged."))
	} else {
		fmt.Println(errorStyle.Render("Change should not be merged as is."))
	}
}
