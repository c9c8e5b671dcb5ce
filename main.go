package main

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/config"
	"benwidget/internal/db"
	"benwidget/internal/engine"
	"benwidget/internal/journal"
	"benwidget/internal/logging"
	"benwidget/internal/metrics"
	"benwidget/internal/platform"
	"benwidget/internal/player"
	"benwidget/internal/relay"
	"context"
	"database/sql"
	"embed"
	"errors"
	"net/http"
	"os"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v3/pkg/application"
)

// Wails uses Go's `embed` package to embed the frontend files into the binary.
// Any files in the frontend/dist folder will be embedded into the binary and
// made available to the frontend.

//go:embed all:frontend/dist
var assets embed.FS

const EventDispatch = "widget:dispatch"

func init() {
	application.RegisterEvent[player.State](player.EventStateChanged)
	application.RegisterEvent[relay.Dispatch](EventDispatch)
}

func main() {
	bootLog := logging.New("info", os.Stderr)

	paths, err := config.ResolvePaths("ben")
	if err != nil {
		bootLog.Fatal(err)
	}

	settings, err := config.Load(paths)
	if err != nil {
		bootLog.Fatal(err)
	}

	logger := logging.New(settings.Log.Level, os.Stderr)

	var database *sql.DB
	if settings.Journal.Enabled {
		database, err = db.Bootstrap(context.Background(), paths.DBPath)
		if err != nil {
			logger.WithError(err).Warn("dispatch journal disabled")
			database = nil
		} else {
			defer database.Close()
		}
	}

	registry := engine.NewRegistry(logger)
	defer func() {
		if err := registry.Close(); err != nil {
			logger.WithError(err).Warn("engine teardown failed")
		}
	}()

	widgetRelay := relay.New(registry, relay.Options{
		EngineID:    settings.Engine.ID,
		ChannelName: settings.Engine.Channel,
		Logger:      logger,
	})

	collector := metrics.NewCollector("ben")
	collector.TrackInFlight(widgetRelay)
	widgetRelay.AddObserver(collector)

	if database != nil {
		journalWriter := journal.NewWriter(database, settings.Journal.Buffer, logger)
		defer journalWriter.Close()
		widgetRelay.AddObserver(journalWriter)
	}

	stopMetrics := serveMetrics(settings.Metrics.Addr, collector, logger)
	defer stopMetrics()

	playerDomain := startEngine(registry, settings, logger)

	spool := broadcast.NewSpoolReceiver(settings.Spool.Dir, widgetRelay.Receive, logger)
	if err := spool.Start(); err != nil {
		logger.WithError(err).Warn("intent spool disabled")
	}
	defer spool.Close()

	widgetService := NewWidgetService(widgetRelay, registry, database, settings.Engine.ID, settings.Engine.Channel)
	playerService := NewPlayerService(playerDomain)

	app := application.New(application.Options{
		Name:        "Ben",
		Description: "Desktop music player with widget controls",
		Services: []application.Service{
			application.NewService(playerService),
			application.NewService(widgetService),
		},
		Assets: application.AssetOptions{
			Handler: application.AssetFileServerFS(assets),
		},
		Mac: application.MacOptions{
			ApplicationShouldTerminateAfterLastWindowClosed: true,
		},
	})

	platformService := platform.NewService(app, widgetRelay, logger)

	playerDomain.SetEmitter(func(eventName string, payload any) {
		app.Event.Emit(eventName, payload)
		if state, ok := payload.(player.State); ok {
			platformService.HandlePlayerState(state)
		}
	})
	widgetRelay.AddObserver(relay.ObserverFunc(func(dispatch relay.Dispatch) {
		app.Event.Emit(EventDispatch, dispatch)
	}))

	if err := platformService.Start(); err != nil {
		logger.WithError(err).Warn("platform widget surfaces disabled")
	}
	defer platformService.Stop()

	app.Window.NewWithOptions(application.WebviewWindowOptions{
		Title:  "Ben",
		Width:  420,
		Height: 240,
		Mac: application.MacWindow{
			InvisibleTitleBarHeight: 50,
			Backdrop:                application.MacBackdropTranslucent,
			TitleBar:                application.MacTitleBarHiddenInset,
		},
		BackgroundColour: application.NewRGB(12, 18, 24),
		URL:              "/",
	})

	if err := app.Run(); err != nil {
		logger.WithError(err).Error("application stopped")
	}
}

func serveMetrics(addr string, collector *metrics.Collector, logger logrus.FieldLogger) func() {
	if addr == "" {
		return func() {}
	}

	mux := http.NewServeMux()
	mux.Handle("/metrics", collector.Handler())
	server := &http.Server{
		Addr:              addr,
		Handler:           mux,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.WithError(err).Warn("metrics endpoint stopped")
		}
	}()

	return func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = server.Shutdown(ctx)
	}
}
