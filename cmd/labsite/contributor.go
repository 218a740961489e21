package main

import (
	"errors"
	"fmt"
	"sort"

	"github.com/avitech-lab/labsite/internal/scaffold"
	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/spf13/cobra"
)

func init() {
	contributorCmd.AddCommand(contributorNewCmd)
	contributorCmd.AddCommand(contributorListCmd)
	rootCmd.AddCommand(contributorCmd)
}

var contributorCmd = &cobra.Command{
	Use:   "contributor",
	Short: "Manage contributor files",
}

var contributorNewCmd = &cobra.Command{
	Use:   "new NAME",
	Short: "Create the bibliography and profile pages of a new contributor",
	Long: `Create bibs/NAME.bib and profiles/NAME/ with one page per language,
copied from the templates. NAME is the contributor's full name without
spaces or diacritics, for example DoHaiSon.

The profile image is not created: add profiles/NAME/NAME.png yourself.`,
	Args: cobra.ExactArgs(1),
	RunE: runContributorNew,
}

var contributorListCmd = &cobra.Command{
	Use:   "list",
	Short: "List contributors",
	Args:  cobra.NoArgs,
	RunE:  runContributorList,
}

func runContributorNew(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	created, err := scaffold.Create(t, args[0])
	if err != nil {
		switch {
		case errors.Is(err, tree.ErrInvalidName):
			exitWithError(ExitError, "%v", err)
		case errors.Is(err, scaffold.ErrExists):
			exitWithError(ExitDataError, "%v", err)
		default:
			exitWithError(ExitError, "creating contributor: %v", err)
		}
	}

	if humanOutput {
		fmt.Printf("Created contributor %s\n", created.Name)
		for _, f := range created.Files {
			fmt.Printf("  %s\n", f)
		}
		for _, p := range created.Pending {
			fmt.Printf("  %s %s\n", warningStyle.Render("still needed:"), p)
		}
		return nil
	}
	return outputJSON(created)
}

// ContributorSummary is one row of 'contributor list'. Paths are relative
// to the tree root.
type ContributorSummary struct {
	Name      string   `json:"name"`
	Bib       string   `json:"bib,omitempty"`
	Images    []string `json:"images"`
	Languages []string `json:"languages"`
}

func runContributorList(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	contributors, err := t.Contributors()
	if err != nil {
		exitWithError(ExitError, "listing contributors: %v", err)
	}

	summaries := make([]ContributorSummary, 0, len(contributors))
	for _, c := range contributors {
		s := ContributorSummary{Name: c.Name, Images: []string{}, Languages: []string{}}
		if c.BibPath != "" {
			s.Bib = t.Rel(c.BibPath)
		}
		for _, img := range c.Images {
			s.Images = append(s.Images, t.Rel(img))
		}
		for lang := range c.Pages {
			s.Languages = append(s.Languages, lang)
		}
		sort.Strings(s.Languages)
		summaries = append(summaries, s)
	}

	if humanOutput {
		if len(summaries) == 0 {
			fmt.Println("No contributors found.")
			return nil
		}
		for _, s := range summaries {
			bib := s.Bib
			if bib == "" {
				bib = errorStyle.Render("no bibliography")
			}
			fmt.Printf("%-28s %-36s %v\n", s.Name, bib, s.Languages)
		}
		return nil
	}
	return outputJSON(summaries)
}
