package main

import (
	"fmt"
	"runtime"

	"github.com/spf13/cobra"
)

func init() {
	rootCmd.AddCommand(versionCmd)
}

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		if humanOutput {
			fmt.Printf("labsite %s (%s)\n", Version, runtime.Version())
			return
		}
		outputJSON(map[string]string{"version": Version, "go": runtime.Version()})
	},
}
