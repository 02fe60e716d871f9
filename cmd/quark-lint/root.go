// Command quark-lint validates a rule directory and, optionally, dry-runs
// the five-stage matcher against a small built-in fixture application so a
// rule author can sanity-check a rule before shipping it (spec's
// SUPPLEMENTED FEATURES: the one CLI surface this repository carries; the
// full scan/report/CI frontend built around a real APK is explicitly
// out of scope, per spec §1).
package main

import (
	"github.com/spf13/cobra"

	"github.com/open-quark/quark-engine-go/telemetry"
)

var (
	disableTelemetry bool
	noColor          bool

	// Version is stamped at build time via -ldflags; defaults to "dev".
	Version = "dev"
)

var rootCmd = &cobra.Command{
	Use:   "quark-lint",
	Short: "Validate and dry-run quark-engine-go behavior rules",
	Long: `quark-lint loads a directory of behavior-matching rule documents,
validates each against the rule schema, and can dry-run them against a
small built-in fixture application to preview the confidence each rule
would reach.`,
	PersistentPreRun: func(cmd *cobra.Command, _ []string) {
		telemetry.LoadEnvFile()
		telemetry.Init(disableTelemetry)
		telemetry.SetVersion(Version)
	},
}

func init() {
	rootCmd.PersistentFlags().BoolVar(&disableTelemetry, "disable-telemetry", false, "Disable anonymous usage telemetry")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")
}

// Execute runs the quark-lint command tree.
func Execute() error {
	return rootCmd.Execute()
}
