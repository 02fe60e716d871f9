package main

import (
	"fmt"
	"os"
	"time"

	"github.com/mitchellh/colorstring"
	"github.com/schollz/progressbar/v3"
	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/open-quark/quark-engine-go/analysis"
	"github.com/open-quark/quark-engine-go/matcher"
	"github.com/open-quark/quark-engine-go/rule"
	"github.com/open-quark/quark-engine-go/rulecache"
	"github.com/open-quark/quark-engine-go/telemetry"
)

var lintCmd = &cobra.Command{
	Use:   "lint RULE_DIR",
	Short: "Validate a directory of behavior rules",
	Long: `Load every *.json file in RULE_DIR, validate it against the rule
schema, and report which documents failed validation.`,
	Args: cobra.ExactArgs(1),
	RunE: runLint,
}

var (
	dryRunFixture bool
	cacheDBPath   string
)

func init() {
	lintCmd.Flags().BoolVar(&dryRunFixture, "dry-run", false, "Also match loaded rules against the built-in demo fixture")
	lintCmd.Flags().StringVar(&cacheDBPath, "cache-db", "", "Path to a rulecache sqlite database; re-runs over an unchanged directory skip re-validation")
	rootCmd.AddCommand(lintCmd)
}

func runLint(cmd *cobra.Command, args []string) error {
	dir := args[0]
	telemetry.ReportEvent(telemetry.LintStarted)

	reg, err := loadRegistry(dir)
	if err != nil {
		telemetry.ReportEvent(telemetry.LintFailed)
		return fmt.Errorf("quark-lint: %w", err)
	}

	isTTY := term.IsTerminal(int(os.Stdout.Fd()))
	if isTTY && !noColor {
		bar := progressbar.NewOptions(len(reg.All()),
			progressbar.OptionSetDescription("validating rules"),
			progressbar.OptionSetWriter(cmd.ErrOrStderr()),
		)
		for range reg.All() {
			_ = bar.Add(1)
		}
	}

	for _, w := range reg.Warnings {
		fmt.Fprintln(cmd.ErrOrStderr(), colorize("[yellow]warning:[reset] "+w))
	}

	summary := fmt.Sprintf("[green]%d rule(s) loaded[reset], [yellow]%d warning(s)[reset]", len(reg.All()), len(reg.Warnings))
	fmt.Fprintln(cmd.OutOrStdout(), colorize(summary))

	if dryRunFixture {
		runDryRun(cmd, reg)
	}

	telemetry.ReportEventWithProperties(telemetry.LintCompleted, map[string]interface{}{
		"rule_count":    len(reg.All()),
		"warning_count": len(reg.Warnings),
	})
	if len(reg.Warnings) > 0 {
		os.Exit(1)
	}
	return nil
}

// loadRegistry loads dir directly, or through a rulecache database when
// --cache-db names one.
func loadRegistry(dir string) (*rule.Registry, error) {
	if cacheDBPath == "" {
		reg := rule.NewRegistry()
		if err := reg.Load(dir); err != nil {
			return nil, err
		}
		return reg, nil
	}

	cache, err := rulecache.Open(cacheDBPath)
	if err != nil {
		return nil, err
	}
	defer cache.Close()
	return cache.LoadRegistry(dir)
}

func runDryRun(cmd *cobra.Command, reg *rule.Registry) {
	start := time.Now()
	telemetry.ReportEvent(telemetry.DryRunStarted)

	apk := demoFixture()
	m := matcher.New(apk)

	for _, r := range reg.All() {
		qa := analysis.New()
		confidence := m.MatchRule(r, qa)
		fmt.Fprintln(cmd.OutOrStdout(), colorize(fmt.Sprintf(
			"[cyan]%s[reset]: confidence [bold]%d[reset]", r.Crime, int(confidence),
		)))
	}

	telemetry.ReportEventWithProperties(telemetry.DryRunCompleted, map[string]interface{}{
		"elapsed_ms": time.Since(start).Milliseconds(),
	})
}

func colorize(s string) string {
	c := colorstring.Colorize{Colors: colorstring.DefaultColors, Disable: noColor, Reset: true}
	return c.Color(s)
}
