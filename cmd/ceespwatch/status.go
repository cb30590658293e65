package main

import (
	"context"
	"errors"
	"log/slog"
	"net/http"

	"github.com/spf13/cobra"

	"github.com/JonMunkholm/ceespwatch/internal/config"
	"github.com/JonMunkholm/ceespwatch/internal/web"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Serve a read-only view of the saved snapshot",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

func init() {
	rootCmd.AddCommand(statusCmd)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	opts, err := statusOptions(cfg)
	if err != nil {
		return err
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	server := web.NewServer(st, opts)

	errCh := make(chan error, 1)
	go func() {
		errCh <- server.Start()
	}()

	select {
	case err := <-errCh:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	slog.Info("shutting down...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Status.ShutdownTimeout)
	defer cancel()

	if err := server.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
		return err
	}
	return nil
}

// statusOptions builds the status server settings shared by status and
// watch --serve.
func statusOptions(c *config.Config) (web.Options, error) {
	profile, err := c.Rules.LoadProfile()
	if err != nil {
		return web.Options{}, err
	}
	return web.Options{
		Addr:           c.Status.Addr(),
		Title:          profile.Title,
		TrustedProxies: c.Status.TrustedProxies,
		APIKeys:        c.Status.APIKeys,
	}, nil
}
