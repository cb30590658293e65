package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ceespwatch/internal/core"
)

var checkSample int

var checkCmd = &cobra.Command{
	Use:   "check",
	Short: "Show how the current export resolves, without touching the snapshot",
	Long: `Fetches and decodes the export, then prints every column, its normalized
form and the role it resolved to. Use it to diagnose column drift after a run
failed with SCHEMA001.`,
	Args: cobra.NoArgs,
	RunE: runCheck,
}

func init() {
	checkCmd.Flags().IntVarP(&checkSample, "sample", "n", 5, "number of identity keys to print")
	rootCmd.AddCommand(checkCmd)
}

func runCheck(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	runner, err := newRunner(cfg, detachedStore{}, true)
	if err != nil {
		return err
	}

	report, err := runner.Check(ctx, checkSample)
	if err != nil {
		return err
	}

	cmd.Print(formatReport(report))
	return nil
}

func formatReport(report *core.CheckReport) string {
	byIndex := make(map[int]core.Role, len(report.Roles.Columns))
	for role, col := range report.Roles.Columns {
		byIndex[col.Index] = role
	}

	var b strings.Builder
	b.WriteString("Columns:\n")
	for i, name := range report.Columns {
		role := "-"
		if r, ok := byIndex[i]; ok {
			role = string(r)
		}
		fmt.Fprintf(&b, "  %2d  %-12s %q (%s)\n", i, role, name, report.Normalized[i])
	}
	for role, cols := range report.Roles.Shadowed {
		fmt.Fprintf(&b, "Ignored for %s: %q\n", role, cols)
	}
	fmt.Fprintf(&b, "Rows: %d\n", report.Rows)
	if len(report.SampleKeys) > 0 {
		b.WriteString("Sample keys:\n")
		for _, k := range report.SampleKeys {
			fmt.Fprintf(&b, "  %s\n", k)
		}
	}
	return b.String()
}

// detachedStore stands in for the snapshot store during check, which never
// loads or saves.
type detachedStore struct{}

func (detachedStore) Load(context.Context) (*core.Snapshot, error) {
	return nil, errors.New("check does not read the snapshot store")
}

func (detachedStore) Save(context.Context, *core.Snapshot) error {
	return errors.New("check does not write the snapshot store")
}
