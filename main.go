package main

import (
	"context"
	"embed"
	"log/slog"
	"os"
	"playerbus/internal/config"
	"playerbus/internal/db"
	"playerbus/internal/logging"
	"playerbus/internal/mpris"
	"playerbus/internal/settings"

	"github.com/wailsapp/wails/v3/pkg/application"
)

//go:embed all:frontend/dist
var assets embed.FS

func init() {
	application.RegisterEvent[mpris.Snapshot](EventMprisInit)
	application.RegisterEvent[mpris.Snapshot](EventMprisUpdate)
}

func main() {
	level := new(slog.LevelVar)
	logger := logging.New(os.Stderr, level)
	slog.SetDefault(logger)

	if err := run(logger, level); err != nil {
		logger.Error("playerbus exited", "error", err)
		os.Exit(1)
	}
}

func run(logger *slog.Logger, level *slog.LevelVar) error {
	paths, err := config.ResolvePaths("playerbus")
	if err != nil {
		return err
	}

	options, err := config.LoadOptions(paths.ConfigPath)
	if err != nil {
		return err
	}
	level.Set(options.SlogLevel())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sqliteDB, migrated, err := db.Bootstrap(ctx, paths.DBPath)
	if err != nil {
		return err
	}
	defer sqliteDB.Close()
	if len(migrated) > 0 {
		logger.Info("settings database migrated", "path", paths.DBPath, "migrations", migrated)
	}

	ignored := settings.NewIgnoredPlayerRepository(sqliteDB)
	if err := ignored.Load(ctx); err != nil {
		return err
	}

	playersDomain := mpris.NewService(mpris.Options{
		Dial:           mpris.DialSessionBus(options.CallTimeout, logger),
		Prefix:         options.NamespacePrefix,
		UpdateCapacity: options.UpdateCapacity,
		Ignored:        ignored.IsIgnored,
		Logger:         logger,
	})
	mprisService := NewMprisService(playersDomain)
	settingsService := NewSettingsService(ignored, playersDomain, options.NamespacePrefix)
	bootstrapService := NewBootstrapService(mprisService, ignored)

	app := application.New(application.Options{
		Name:        "Playerbus",
		Description: "Media player remote for the session bus",
		Logger:      logger,
		Services: []application.Service{
			application.NewService(mprisService),
			application.NewService(settingsService),
			application.NewService(bootstrapService),
		},
		Assets: application.AssetOptions{
			Handler: application.AssetFileServerFS(assets),
		},
	})

	mprisService.setEmitter(func(eventName string, payload any) {
		app.Event.Emit(eventName, payload)
	})

	go playersDomain.Run(ctx)
	go mprisService.forward(playersDomain.Updates())
	go func() {
		err := config.WatchOptions(ctx, paths.ConfigPath, logger, func(next config.Options) {
			level.Set(next.SlogLevel())
			logger.Info("config reloaded", "log_level", next.LogLevel)
			if keys := options.RestartRequired(next); len(keys) > 0 {
				logger.Warn("config changes apply after restart", "keys", keys)
			}
		})
		if err != nil {
			logger.Warn("config watcher disabled", "error", err)
		}
	}()

	app.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:            "Playerbus",
		Width:            420,
		Height:           560,
		BackgroundColour: application.NewRGB(12, 18, 24),
		URL:              "/",
	})

	return app.Run()
}
