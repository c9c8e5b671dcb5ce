package main

import (
	"benwidget/internal/config"
	"benwidget/internal/engine"
	"benwidget/internal/player"

	"github.com/sirupsen/logrus"
)

// startEngine boots the playback engine, attaches it to the widget channel and
// registers it. From here on the registry owns the handle.
func startEngine(registry *engine.Registry, settings config.Settings, logger logrus.FieldLogger) *player.Service {
	bus := engine.NewBus(engine.BusOptions{
		QueueSize: settings.Engine.QueueSize,
		Logger:    logger,
	})

	playerDomain := player.NewService(player.LoadTracks(settings.Player.Tracks), logger)
	playerDomain.Attach(bus, settings.Engine.Channel)

	registry.Register(settings.Engine.ID, engine.NewHandle(settings.Engine.ID, bus, playerDomain))
	logger.WithFields(logrus.Fields{
		"engine":  settings.Engine.ID,
		"channel": settings.Engine.Channel,
		"tracks":  len(settings.Player.Tracks),
	}).Info("engine registered")

	return playerDomain
}
