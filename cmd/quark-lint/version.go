package main

import (
	"fmt"

	"github.com/spf13/cobra"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the quark-lint version",
	Run: func(cmd *cobra.Command, _ []string) {
		fmt.Fprintf(cmd.OutOrStdout(), "quark-lint %s\n", Version)
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
