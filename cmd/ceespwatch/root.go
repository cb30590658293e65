package main

import (
	"context"
	"errors"
	"fmt"
	"io/fs"
	"log/slog"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ceespwatch/internal/config"
	"github.com/JonMunkholm/ceespwatch/internal/core"
	"github.com/JonMunkholm/ceespwatch/internal/fetch"
	"github.com/JonMunkholm/ceespwatch/internal/logging"
	"github.com/JonMunkholm/ceespwatch/internal/notify"
	"github.com/JonMunkholm/ceespwatch/internal/store"
)

var (
	envFile string
	cfg     *config.Config
)

var rootCmd = &cobra.Command{
	Use:   "ceespwatch",
	Short: "Report new rows in the CEESP opinions export",
	Long: `ceespwatch downloads the CEESP opinions CSV, compares it with the
snapshot saved by the previous run and notifies about rows it has not seen.
The first run only records a baseline.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: setup,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&envFile, "env-file", ".env", "dotenv file loaded before the environment is read")
}

// setup loads the dotenv file, configuration and logger for every command.
func setup(cmd *cobra.Command, _ []string) error {
	// Overload: values in the file win over the inherited environment
	if err := godotenv.Overload(envFile); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFile, err)
		}
		slog.Debug("no dotenv file found, using environment variables", "path", envFile)
	}

	c, err := config.Load()
	if err != nil {
		return err
	}
	logging.Setup(c.Logging.Level, c.Logging.Format)
	slog.Debug("configuration loaded", "config", c.String())

	cfg = c
	return nil
}

// openStore opens the configured snapshot store.
func openStore(ctx context.Context, c *config.Config) (store.Store, error) {
	st, err := store.Open(ctx, c.Store)
	if err != nil {
		return nil, &core.StoreError{Op: "open", Err: err}
	}
	return st, nil
}

// newRunner wires the fetcher and notifier selected by c around st.
func newRunner(c *config.Config, st core.SnapshotStore, dryRun bool) (*core.Runner, error) {
	profile, err := c.Rules.LoadProfile()
	if err != nil {
		return nil, err
	}
	delim, _ := c.Source.DelimiterRune()

	notifier, err := notify.New(c)
	if err != nil {
		return nil, err
	}

	fetcher := fetch.NewHTTPFetcher(fetch.Options{
		URL:       c.Source.URL,
		Timeout:   c.Source.Timeout,
		MaxBytes:  c.Source.MaxBytes,
		UserAgent: c.Source.UserAgent,
		Encoding:  c.Source.Encoding,
	})

	return core.NewRunner(core.RunnerConfig{
		Profile:         profile,
		Decode:          core.DecodeOptions{Delimiter: delim},
		SourceURL:       c.Source.URL,
		SourceTimeout:   c.Source.Timeout,
		NotifyTimeout:   c.Notify.Timeout,
		AllowEmptyTable: c.Source.AllowEmptyTable,
		DryRun:          dryRun,
	}, fetcher, notifier, st)
}
