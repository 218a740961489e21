package main

import (
	"fmt"
	"os"
	"strings"

	"github.com/avitech-lab/labsite/internal/config"
	"github.com/spf13/cobra"
)

var configInitForce bool

func init() {
	configInitCmd.Flags().BoolVar(&configInitForce, "force", false, "Overwrite an existing labsite.yml")
	configCmd.AddCommand(configShowCmd)
	configCmd.AddCommand(configInitCmd)
	rootCmd.AddCommand(configCmd)
}

var configCmd = &cobra.Command{
	Use:   "config",
	Short: "Inspect configuration",
}

var configShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Print the effective tree configuration",
	Args:  cobra.NoArgs,
	RunE:  runConfigShow,
}

var configInitCmd = &cobra.Command{
	Use:   "init",
	Short: "Write the effective configuration to labsite.yml",
	Long: `Write the effective tree configuration to labsite.yml at the tree root,
so every default is spelled out and can be edited.`,
	Args: cobra.NoArgs,
	RunE: runConfigInit,
}

// ConfigResponse is the response for the config show command.
type ConfigResponse struct {
	Root       string             `json:"root"`
	ConfigFile string             `json:"config_file,omitempty"` // empty when defaults are in use
	GlobalFile string             `json:"global_file,omitempty"`
	Reviewer   string             `json:"reviewer,omitempty"`
	Tree       *config.TreeConfig `json:"tree"`
}

func runConfigShow(cmd *cobra.Command, args []string) error {
	root := mustFindRoot()
	cfg := mustLoadConfig(root)

	resp := ConfigResponse{
		Root:       root,
		GlobalFile: config.GlobalConfigPath(),
		Reviewer:   config.Reviewer(),
		Tree:       cfg,
	}
	if _, err := os.Stat(config.ConfigPath(root)); err == nil {
		resp.ConfigFile = config.ConfigPath(root)
	}

	if humanOutput {
		configFile := resp.ConfigFile
		if configFile == "" {
			configFile = "(none, using defaults)"
		}
		fmt.Printf("Root:            %s\n", resp.Root)
		fmt.Printf("Config file:     %s\n", configFile)
		if resp.Reviewer != "" {
			fmt.Printf("Reviewer:        %s\n", resp.Reviewer)
		}
		fmt.Printf("Bibliographies:  %s\n", cfg.BibsDir)
		fmt.Printf("Profiles:        %s\n", cfg.ProfilesDir)
		fmt.Printf("Templates:       %s\n", cfg.TemplateDir)
		fmt.Printf("Languages:       %s\n", strings.Join(cfg.Languages, ", "))
		fmt.Printf("Images:          %s\n", strings.Join(cfg.ImageExtensions, ", "))
		fmt.Printf("Markers:         %s ... %s\n", cfg.Markers.Begin, cfg.Markers.End)
		fmt.Printf("Merge output:    %s (since %d, threshold %.2f)\n", cfg.Merge.Output, cfg.Merge.MinYear, cfg.Merge.SimilarityThreshold)
		return nil
	}
	return outputJSON(resp)
}

func runConfigInit(cmd *cobra.Command, args []string) error {
	root := mustFindRoot()
	cfg := mustLoadConfig(root)

	path := config.ConfigPath(root)
	if _, err := os.Stat(path); err == nil && !configInitForce {
		exitWithError(ExitDataError, "%s already exists (use --force to overwrite)", path)
	}
	if err := cfg.Save(root); err != nil {
		exitWithError(ExitError, "%v", err)
	}

	if humanOutput {
		fmt.Printf("Wrote %s\n", path)
		return nil
	}
	return outputJSON(StatusResponse{Status: "written", Path: path})
}
