package main

import (
	"context"
	"errors"
	"net/http"
	"time"

	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/JonMunkholm/ceespwatch/internal/core"
	"github.com/JonMunkholm/ceespwatch/internal/web"
)

var (
	watchInterval time.Duration
	watchServe    bool
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Run repeatedly until interrupted",
	Long: `Runs immediately, then every --interval (POLL_INTERVAL by default) until
SIGINT or SIGTERM. A failed run is logged and retried on the next tick.
With --serve the status server runs alongside.`,
	Args: cobra.NoArgs,
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().DurationVar(&watchInterval, "interval", 0, "delay between runs (default POLL_INTERVAL)")
	watchCmd.Flags().BoolVar(&watchServe, "serve", false, "also serve the status page")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()

	interval := watchInterval
	if interval <= 0 {
		interval = cfg.Source.PollInterval
	}

	st, err := openStore(ctx, cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	runner, err := newRunner(cfg, st, false)
	if err != nil {
		return err
	}

	var server *web.Server
	if watchServe {
		opts, err := statusOptions(cfg)
		if err != nil {
			return err
		}
		server = web.NewServer(st, opts)
	}

	group, groupCtx := errgroup.WithContext(ctx)

	group.Go(func() error {
		err := runner.Watch(groupCtx, interval, func(res *core.RunResult, err error) {
			if err == nil {
				cmd.Println(res.String())
			}
		})
		if groupCtx.Err() != nil {
			// Interrupted, or the status server failed and reports its own error
			return nil
		}
		return err
	})

	if server != nil {
		group.Go(func() error {
			err := server.Start()
			if errors.Is(err, http.ErrServerClosed) {
				return nil
			}
			return err
		})
		group.Go(func() error {
			<-groupCtx.Done()
			shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Status.ShutdownTimeout)
			defer cancel()
			return server.Shutdown(shutdownCtx)
		})
	}

	return group.Wait()
}
