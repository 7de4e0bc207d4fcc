package cli

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"runtime"

	"github.com/spf13/cobra"

	"nohands.dev/go/nohands/internal/autostart"
	"nohands.dev/go/nohands/internal/config"
	"nohands.dev/go/nohands/internal/content"
	"nohands.dev/go/nohands/internal/devserver"
	"nohands.dev/go/nohands/internal/events"
	"nohands.dev/go/nohands/internal/idle"
	"nohands.dev/go/nohands/internal/instance"
	"nohands.dev/go/nohands/internal/ipc"
	"nohands.dev/go/nohands/internal/lifecycle"
	"nohands.dev/go/nohands/internal/logging"
	"nohands.dev/go/nohands/internal/power"
	"nohands.dev/go/nohands/internal/shortcut"
	"nohands.dev/go/nohands/internal/store"
	"nohands.dev/go/nohands/internal/window"
)

func runApp(cmd *cobra.Command, args []string) error {
	paths, err := config.GetPaths()
	if err != nil {
		return fmt.Errorf("get paths: %w", err)
	}
	if err := paths.EnsureDirectories(); err != nil {
		return fmt.Errorf("create directories: %w", err)
	}

	cfg, err := loadConfig(paths)
	if err != nil {
		return err
	}

	env, err := config.LoadEnv()
	if err != nil {
		return err
	}

	logs := logging.NewBuffer(logging.DefaultBufferSize)
	logger, err := logging.Setup(logging.Options{
		Level:  firstNonEmpty(logLevel, env.LogLevel, cfg.Logging.Level),
		Format: firstNonEmpty(logFormat, cfg.Logging.Format),
		Buffer: logs,
	})
	if err != nil {
		return err
	}

	guard := instance.New(instance.Options{
		AppID:      cfg.App.ID,
		LockPath:   paths.LockFile,
		SocketPath: paths.SocketPath,
		Logger:     logger,
	})
	held, err := claimInstance(cmd.Context(), guard, args, logger)
	if err != nil || !held {
		return err
	}
	defer guard.Release()

	ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt)
	defer stop()

	policy := lifecycle.ResolvePolicy(runtime.GOOS, env)
	logger.Info("starting nohands", "version", version, "mode", policy.Mode, "pid", os.Getpid())

	server := ipc.NewServer(ipc.Options{
		Address:       paths.SocketPath,
		RatePerSecond: cfg.IPC.RatePerSecond,
		Burst:         cfg.IPC.Burst,
		Logger:        logger,
	})
	if err := server.Listen(ctx); err != nil {
		return fmt.Errorf("start IPC server: %w", err)
	}
	defer server.Stop()
	logs.Register(server)

	bus := events.NewBus(logger, events.DefaultHistorySize)
	defer bus.Close()

	bundleDir := cfg.Content.BundleDir
	if bundleDir == "" {
		bundleDir = paths.BundleDir
	}
	site := content.New(content.Options{
		BundleDir: bundleDir,
		Listen:    cfg.Content.Listen,
		IPC:       server,
		Events:    bus,
		Logger:    logger,
	})
	if err := site.Start(ctx); err != nil {
		return fmt.Errorf("start content server: %w", err)
	}
	defer site.Stop()

	url, err := content.ResolveURL(env.DevServerURL, env.UseDevServer(), site.IndexURL(), site.IPCURL())
	if err != nil {
		return err
	}

	renderer := window.NewRendererFactory(window.RendererOptions{
		Command:     cfg.Window.Renderer,
		ProfileDir:  paths.ProfileDir,
		StopTimeout: cfg.Window.StopTimeout.Duration,
		Events:      server,
		Logger:      logger,
	})
	renderer.Register(server)

	windows := window.NewManager(window.Options{
		Factory:      renderer,
		URL:          url,
		OpenDevTools: policy.OpenDevTools,
		Logger:       logger,
	})

	data, err := store.Open(store.Options{Path: paths.StoreFile, Logger: logger})
	if err != nil {
		return fmt.Errorf("open data store: %w", err)
	}
	defer func() {
		if err := data.Flush(); err != nil {
			logger.Error("final store flush", "error", err)
		}
	}()

	shortcuts := shortcut.NewManager(logger)

	coordinator := lifecycle.New(lifecycle.Options{
		Policy:       policy,
		Guard:        guard,
		Bus:          bus,
		Windows:      windows,
		Store:        data,
		IPC:          server,
		Broadcast:    server,
		Monitor:      power.NewMonitor(cfg.App.ID, policy.HandleTerm(), logger),
		Idle:         idle.NewQuerier(),
		IdleTimeout:  cfg.Idle.QueryTimeout.Duration,
		Shortcuts:    shortcuts,
		Autostart:    autostart.New(autostart.Options{Name: cfg.App.ID}),
		DevTooling:   devTooling(env, logger),
		GracefulExit: lifecycle.WatchGracefulExit(ctx, policy.GracefulExit, os.Stdin),
		Logger:       logger,
	})

	if err := coordinator.Run(ctx); err != nil {
		return err
	}

	logger.Info("nohands stopped", "reason", coordinator.Status().ShutdownReason)
	return nil
}

// devTooling waits for the dev server the window is about to load. With
// bundled content there is nothing to wait for.
func devTooling(env *config.Env, logger *slog.Logger) func(ctx context.Context) error {
	if !env.UseDevServer() {
		return nil
	}
	waiter := devserver.NewWaiter(devserver.Options{URL: env.DevServerURL, Logger: logger})
	return waiter.Step()
}

// claimInstance takes the instance lock. When another process holds it,
// args are handed to that process and held is false: the caller exits
// successfully without starting anything.
func claimInstance(ctx context.Context, guard *instance.Guard, args []string, logger *slog.Logger) (held bool, err error) {
	if err := guard.Acquire(); err != nil {
		if !errors.Is(err, instance.ErrAlreadyRunning) {
			return false, fmt.Errorf("acquire instance lock: %w", err)
		}
		logger.Info("nohands is already running, activating it")
		if err := guard.NotifyExisting(ctx, args); err != nil {
			logger.Warn("could not reach running instance", "error", err)
		}
		return false, nil
	}
	return true, nil
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if v != "" {
			return v
		}
	}
	return ""
}
