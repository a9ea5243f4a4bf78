package main

import (
	"context"
	"os"

	"github.com/denyshon/tg-load/internal/config"
	"github.com/denyshon/tg-load/internal/core"
	"github.com/denyshon/tg-load/internal/fetch"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

// newFetchCmd is the worker-process entry point. The supervisor re-execs
// the running binary with this subcommand, one process per download job,
// and classifies the exit code.
func newFetchCmd() *cobra.Command {
	var (
		kind string
		id   string
		dir  string
	)

	cmd := &cobra.Command{
		Use:    "fetch",
		Short:  "Download one item into a directory (internal worker entry)",
		Hidden: true,
		Run: func(cmd *cobra.Command, args []string) {
			os.Exit(runFetch(kind, id, dir))
		},
	}

	cmd.Flags().StringVar(&kind, "kind", "", "item kind: post, story, song, album or short")
	cmd.Flags().StringVar(&id, "id", "", "external item id")
	cmd.Flags().StringVar(&dir, "dir", "", "working directory for the download")
	_ = cmd.MarkFlagRequired("kind")
	_ = cmd.MarkFlagRequired("id")
	_ = cmd.MarkFlagRequired("dir")

	return cmd
}

func runFetch(kind, id, dir string) int {
	zapLogger := mustLogger()
	defer func() {
		_ = zapLogger.Sync()
	}()
	logger := zapLogger.Named("worker")

	cfg, err := config.LoadAppConfig(configAppName, configExt, configDir)
	if err != nil || cfg == nil {
		logger.Error("cant read config", zap.Error(err))
		return 1
	}

	f := fetch.NewFetcher(fetch.Config{
		InstaloaderBin: cfg.InstaloaderBin,
		YTDLPBin:       cfg.YTDLPBin,
		SessionFile:    cfg.SessionFile,
	}, logger)

	spec := core.JobSpec{
		ID:   id,
		Kind: core.FetchKind(kind),
		Dir:  dir,
	}
	// no deadline here: the supervisor enforces the timeout by killing
	// this process
	fetchErr := f.Fetch(context.Background(), spec)
	if fetchErr != nil {
		logger.Error("fetch failed",
			zap.String("kind", kind), zap.String("id", id), zap.Error(fetchErr))
	}
	return fetch.ExitCode(fetchErr)
}
