package main

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/avitech-lab/labsite/internal/config"
	"github.com/avitech-lab/labsite/internal/publications"
	"github.com/avitech-lab/labsite/internal/reference"
	"github.com/avitech-lab/labsite/internal/storage"
	"github.com/avitech-lab/labsite/internal/tree"
	"github.com/spf13/cobra"
)

var (
	pubsIndexFrom    string
	pubsGetFrom      string
	pubsSearchLimit  int
	pubsListYear     int
	pubsListType     string
	pubsListContrib  string
	pubsListLimit    int
	pubsExportOutput string
)

func init() {
	pubsIndexCmd.Flags().StringVar(&pubsIndexFrom, "from", "", "Rebuild from a JSONL snapshot instead of the bibliographies")
	pubsGetCmd.Flags().StringVar(&pubsGetFrom, "from", "", "Look up in a JSONL snapshot instead of the index")
	pubsSearchCmd.Flags().IntVarP(&pubsSearchLimit, "limit", "n", DefaultSearchLimit, "Maximum results")
	pubsListCmd.Flags().IntVar(&pubsListYear, "year", 0, "Only this year")
	pubsListCmd.Flags().StringVar(&pubsListType, "type", "", "Only this entry type (article, inproceedings, ...)")
	pubsListCmd.Flags().StringVar(&pubsListContrib, "contributor", "", "Only this contributor")
	pubsListCmd.Flags().IntVarP(&pubsListLimit, "limit", "n", 0, "Maximum results (0 for all)")
	pubsExportCmd.Flags().StringVarP(&pubsExportOutput, "output", "o", "", "Write to this file instead of stdout")

	pubsCmd.AddCommand(pubsIndexCmd)
	pubsCmd.AddCommand(pubsSearchCmd)
	pubsCmd.AddCommand(pubsListCmd)
	pubsCmd.AddCommand(pubsGetCmd)
	pubsCmd.AddCommand(pubsExportCmd)
	pubsCmd.AddCommand(pubsStatsCmd)
	rootCmd.AddCommand(pubsCmd)
}

var pubsCmd = &cobra.Command{
	Use:   "pubs",
	Short: "Query the merged publication list",
	Long: `Query the merged publication list through a local SQLite index.

The index lives in .labsite/cache and is never committed. Rebuild it with
'labsite pubs index' after bibliographies change.`,
}

var pubsIndexCmd = &cobra.Command{
	Use:   "index",
	Short: "Rebuild the publication index",
	Args:  cobra.NoArgs,
	RunE:  runPubsIndex,
}

var pubsSearchCmd = &cobra.Command{
	Use:   "search QUERY",
	Short: "Full-text search over titles, authors and venues",
	Args:  cobra.MinimumNArgs(1),
	RunE:  runPubsSearch,
}

var pubsListCmd = &cobra.Command{
	Use:   "list",
	Short: "List publications, newest first",
	Args:  cobra.NoArgs,
	RunE:  runPubsList,
}

var pubsGetCmd = &cobra.Command{
	Use:   "get KEY",
	Short: "Show one publication by citation key",
	Long: `Show one publication by citation key.

With --from the publication is read from a JSONL snapshot written by
'labsite pubs export', and KEY may also be a DOI.`,
	Args: cobra.ExactArgs(1),
	RunE:  runPubsGet,
}

var pubsExportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export the index as JSONL",
	Args:  cobra.NoArgs,
	RunE:  runPubsExport,
}

var pubsStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Count publications per year",
	Args:  cobra.NoArgs,
	RunE:  runPubsStats,
}

// collectPublications merges the bibliographies of t the way 'merge'
// does and converts the kept entries.
func collectPublications(cmd *cobra.Command, t *tree.Tree) []reference.Publication {
	files := mustLoadBibs(cmd.Context(), t)
	opts := publications.OptionsFromConfig(t.Config.Merge)
	opts.Logger = logger
	res, err := publications.Merge(cmd.Context(), files, opts)
	if err != nil {
		exitWithError(ExitError, "merging: %v", err)
	}

	pubs := make([]reference.Publication, 0, len(res.Kept))
	for _, r := range res.Kept {
		pubs = append(pubs, reference.FromEntry(r.Entry, r.Source))
	}
	return pubs
}

func runPubsIndex(cmd *cobra.Command, args []string) error {
	t := mustOpenTree()

	var pubs []reference.Publication
	if pubsIndexFrom != "" {
		var err error
		pubs, err = storage.ReadAll(pubsIndexFrom)
		if err != nil {
			exitWithError(ExitDataError, "%v", err)
		}
	} else {
		pubs = collectPublications(cmd, t)
	}

	db := mustOpenDatabase(t.Root)
	defer db.Close()

	n, err := db.Rebuild(pubs)
	if err != nil {
		exitWithError(ExitError, "rebuilding index: %v", err)
	}

	if humanOutput {
		fmt.Printf("Indexed %d publications in %s\n", n, t.Rel(config.DBPath(t.Root)))
		return nil
	}
	return outputJSON(StatusResponse{Status: "indexed", Path: t.Rel(config.DBPath(t.Root)), Count: n})
}

func runPubsSearch(cmd *cobra.Command, args []string) error {
	root := mustFindRoot()
	db := mustOpenExistingDatabase(root)
	defer db.Close()

	pubs, err := db.Search(strings.Join(args, " "), pubsSearchLimit)
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return outputPublications(pubs)
}

func runPubsList(cmd *cobra.Command, args []string) error {
	root := mustFindRoot()
	db := mustOpenExistingDatabase(root)
	defer db.Close()

	pubs, err := db.List(storage.ListFilter{
		Year:        pubsListYear,
		Type:        pubsListType,
		Contributor: pubsListContrib,
		Limit:       pubsListLimit,
	})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	return outputPublications(pubs)
}

func runPubsGet(cmd *cobra.Command, args []string) error {
	var p *reference.Publication
	if pubsGetFrom != "" {
		p = mustFindInSnapshot(pubsGetFrom, args[0])
	} else {
		root := mustFindRoot()
		db := mustOpenExistingDatabase(root)
		defer db.Close()

		var err error
		p, err = db.Get(args[0])
		if err != nil {
			exitWithError(ExitError, "%v", err)
		}
	}
	if p == nil {
		exitWithError(ExitDataError, "publication not found: %s", args[0])
	}

	if humanOutput {
		fmt.Println(headerStyle.Render(p.Key))
		fmt.Printf("  Title:       %s\n", p.Title)
		fmt.Printf("  Authors:     %s\n", p.AuthorsText())
		fmt.Printf("  Type:        %s\n", p.Type)
		if p.Venue != "" {
			fmt.Printf("  Venue:       %s\n", p.Venue)
		}
		fmt.Printf("  Year:        %d\n", p.Year)
		if p.DOI != "" {
			fmt.Printf("  DOI:         %s\n", p.DOI)
		}
		fmt.Printf("  Contributor: %s\n", p.Contributor)
		return nil
	}
	return outputJSON(p)
}

// mustFindInSnapshot looks a citation key, then a DOI, up in a JSONL
// snapshot. It returns nil when neither matches.
func mustFindInSnapshot(path, id string) *reference.Publication {
	if _, err := os.Stat(path); err != nil {
		exitWithError(ExitDataError, "snapshot %s: %v", path, err)
	}
	pubs, err := storage.ReadAll(path)
	if err != nil {
		exitWithError(ExitDataError, "%v", err)
	}
	i, ok := storage.FindByKey(pubs, id)
	if !ok {
		i, ok = storage.FindByDOI(pubs, id)
	}
	if !ok {
		return nil
	}
	return &pubs[i]
}

func runPubsExport(cmd *cobra.Command, args []string) error {
	root := mustFindRoot()
	db := mustOpenExistingDatabase(root)
	defer db.Close()

	pubs, err := db.List(storage.ListFilter{})
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if pubsExportOutput == "" {
		return storage.Encode(os.Stdout, pubs)
	}
	if err := os.MkdirAll(filepath.Dir(pubsExportOutput), 0755); err != nil {
		exitWithError(ExitError, "creating output directory: %v", err)
	}
	if err := storage.WriteAll(pubsExportOutput, pubs); err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if humanOutput {
		fmt.Printf("Exported %d publications to %s\n", len(pubs), pubsExportOutput)
		return nil
	}
	return outputJSON(StatusResponse{Status: "exported", Path: pubsExportOutput, Count: len(pubs)})
}

// PubsStats is the response for 'pubs stats'.
type PubsStats struct {
	Total  int                 `json:"total"`
	ByYear []storage.YearCount `json:"by_year"`
}

func runPubsStats(cmd *cobra.Command, args []string) error {
	root := mustFindRoot()
	db := mustOpenExistingDatabase(root)
	defer db.Close()

	total, err := db.Count()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	byYear, err := db.CountByYear()
	if err != nil {
		exitWithError(ExitError, "%v", err)
	}
	if byYear == nil {
		byYear = []storage.YearCount{}
	}

	if humanOutput {
		fmt.Printf("%d publications\n", total)
		for _, yc := range byYear {
			fmt.Printf("  %d  %s %d\n", yc.Year, strings.Repeat("#", yc.Count), yc.Count)
		}
		return nil
	}
	return outputJSON(PubsStats{Total: total, ByYear: byYear})
}

func outputPublications(pubs []reference.Publication) error {
	if pubs == nil {
		pubs = []reference.Publication{}
	}
	if humanOutput {
		printPublicationsHuman(pubs)
		return nil
	}
	return outputJSON(pubs)
}
