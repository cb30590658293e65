package main

import (
	"github.com/spf13/cobra"
)

var runDryRun bool

var runCmd = &cobra.Command{
	Use:   "run",
	Short: "Fetch the export once and notify about new rows",
	Long: `Performs one run: fetch, resolve columns, compare with the saved snapshot,
notify about new rows and save the new snapshot.

A failed notification is reported but the snapshot is still saved. Any other
failure leaves the saved snapshot untouched and exits non-zero.`,
	Args: cobra.NoArgs,
	RunE: runRun,
}

func init() {
	runCmd.Flags().BoolVar(&runDryRun, "dry-run", false, "log new rows without notifying or saving")
	rootCmd.AddCommand(runCmd)
}

func runRun(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := newRunner(cfg, st, runDryRun)
	if err != nil {
		return err
	}

	result, err := runner.Run(ctx)
	if err != nil {
		return err
	}

	cmd.Println(result.String())
	return nil
}
