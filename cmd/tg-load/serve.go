package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/denyshon/tg-load/internal/api"
	"github.com/denyshon/tg-load/internal/bot"
	"github.com/denyshon/tg-load/internal/config"
	"github.com/denyshon/tg-load/internal/core"
	"github.com/denyshon/tg-load/internal/notify"
	"github.com/denyshon/tg-load/internal/resource"
	"github.com/denyshon/tg-load/internal/storage/snapshot"
	"github.com/denyshon/tg-load/internal/supervisor"
	"github.com/gin-gonic/gin"
	"github.com/spf13/cobra"
	"go.uber.org/zap"
)

const shutdownTimeout = 30 * time.Second

func newServeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "serve",
		Short: "Run the bot backend (webhook server + download supervisor)",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runServe()
		},
	}
}

func runServe() error {
	zapLogger := mustLogger()
	defer func() {
		_ = zapLogger.Sync()
	}()

	logger := zapLogger.Named("serve")
	logger.Info("running bot backend", zap.Int("pid", os.Getpid()))

	cfg, err := config.LoadAppConfig(configAppName, configExt, configDir)
	if err != nil || cfg == nil {
		logger.Fatal("cant read config, check file", zap.Error(err), zap.String("name", configAppName))
	}
	if cfg.BotToken == "" {
		logger.Fatal("required BOT_TOKEN")
	}
	gin.SetMode(cfg.GinMode)

	if err := os.MkdirAll(cfg.StateDir, 0o755); err != nil {
		logger.Fatal("cant create state dir", zap.Error(err), zap.String("dir", cfg.StateDir))
	}
	if err := os.MkdirAll(cfg.WorkDir, 0o755); err != nil {
		logger.Fatal("cant create work dir", zap.Error(err), zap.String("dir", cfg.WorkDir))
	}

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	store, err := newSnapshotStore(cfg)
	if err != nil {
		logger.Fatal("cant open snapshot store", zap.Error(err))
	}

	compLogger := logger.Named("comp")
	activeChats := resource.NewIDSet(ctx, store, "active_chat_ids", compLogger)
	noCaptionsChats := resource.NewIDSet(ctx, store, "no_captions_chat_ids", compLogger)
	bannedUsers := resource.NewIDSet(ctx, store, "banned_user_ids", compLogger)
	flags := resource.NewFeatureFlags(ctx, store, "features", core.DefaultFeatures(), compLogger)

	sender, err := notify.NewTelegramSender(cfg.BotToken, nil)
	if err != nil {
		logger.Fatal("cant create bot api sender", zap.Error(err))
	}
	caster := notify.NewBroadcaster(sender, cfg.LoggingChatIDs, compLogger)

	sup := supervisor.NewSupervisor(
		supervisor.ExecRunner{},
		flags,
		caster,
		supervisor.Config{
			Timeouts:          cfg.Timeouts(),
			MaxAttempts:       cfg.MaxAttempts,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
		compLogger,
	)
	sup.OnHeartbeat = func(_ context.Context, spec core.JobSpec, attempt int) {
		compLogger.Debug("worker alive",
			zap.String("id", spec.ID),
			zap.String("kind", string(spec.Kind)),
			zap.Int("attempt", attempt),
		)
	}

	b := bot.NewBot(sender, sup, caster, flags,
		activeChats, noCaptionsChats, bannedUsers,
		bot.Config{
			BotName:           cfg.BotName,
			AdminIDs:          cfg.AdminIDs,
			WorkDir:           cfg.WorkDir,
			Messages:          cfg.Messages,
			HeartbeatInterval: cfg.HeartbeatInterval,
		},
		compLogger,
	)

	srv, err := api.NewServer(&api.ServerOptions{
		BaseCtx:     ctx,
		Updates:     b,
		SecretToken: cfg.WebhookSecret,
		Logger:      logger,
		Addr:        cfg.ServerAddr,
	})
	if err != nil {
		logger.Fatal("cant create api server", zap.Error(err))
	}

	errCh := make(chan error, 1)
	go func() {
		logger.Info("starting server", zap.String("addr", cfg.ServerAddr))
		if err := srv.Run(); err != nil {
			if errors.Is(err, http.ErrServerClosed) {
				return
			}
			errCh <- err
		}
	}()

	caster.Broadcast(ctx, "bot backend started")

	select {
	case <-ctx.Done():
		logger.Info("shutdown signal received")
	case err := <-errCh:
		logger.Error("server failed", zap.Error(err))
	}

	offCtx, offCanc := context.WithTimeout(context.Background(), shutdownTimeout)
	defer offCanc()
	if err := srv.Shutdown(offCtx); err != nil {
		logger.Error("cant shutdown server", zap.Error(err))
	}

	// final backups, then tear the queues down
	for name, h := range map[string]*resource.Handle{
		"active_chat_ids":      activeChats.Backup(),
		"no_captions_chat_ids": noCaptionsChats.Backup(),
		"banned_user_ids":      bannedUsers.Backup(),
		"features":             flags.Backup(),
	} {
		if err := h.Wait(offCtx); err != nil {
			logger.Error("final backup failed", zap.String("resource", name), zap.Error(err))
		}
	}
	activeChats.Close()
	noCaptionsChats.Close()
	bannedUsers.Close()
	flags.Close()

	if err := store.Close(); err != nil {
		logger.Error("cant close snapshot store", zap.Error(err))
	}
	logger.Info("shutdown done")
	return nil
}

func newSnapshotStore(cfg *config.AppConfig) (snapshot.Store, error) {
	switch cfg.StorageMode {
	case "file":
		return snapshot.NewFileStore(cfg.StateDir)
	case "bbolt":
		return snapshot.NewBoltStore(cfg.BoltPath)
	}
	return nil, errors.New("unknown storage mode")
}
