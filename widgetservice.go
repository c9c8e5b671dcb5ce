package main

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/journal"
	"benwidget/internal/relay"
	"context"
	"database/sql"
	"errors"
	"strings"
)

const defaultRecentDispatches = 20

type EngineStatus struct {
	EngineID   string   `json:"engineId"`
	Channel    string   `json:"channel"`
	Registered bool     `json:"registered"`
	Engines    []string `json:"engines"`
	InFlight   int64    `json:"inFlight"`
}

type engineDirectory interface {
	relay.EngineLookup
	IDs() []string
}

// WidgetService lets the frontend press widget buttons and inspect what the
// relay did with them.
type WidgetService struct {
	relay    *relay.Relay
	engines  engineDirectory
	database *sql.DB
	engineID string
	channel  string
}

func NewWidgetService(r *relay.Relay, engines engineDirectory, database *sql.DB, engineID string, channelName string) *WidgetService {
	return &WidgetService{
		relay:    r,
		engines:  engines,
		database: database,
		engineID: engineID,
		channel:  channelName,
	}
}

// Press raises a broadcast as if the widget button for tag had been tapped.
func (s *WidgetService) Press(tag string) (string, error) {
	tag = strings.ToUpper(strings.TrimSpace(tag))
	if relay.ParseAction(tag) == relay.ActionUnknown {
		return "", errors.New("unsupported widget action")
	}

	intent := broadcast.NewIntent(tag, broadcast.SourceDirect)
	go s.relay.Receive(intent)
	return intent.ID, nil
}

func (s *WidgetService) GetEngineStatus() EngineStatus {
	_, registered := s.engines.Lookup(s.engineID)

	return EngineStatus{
		EngineID:   s.engineID,
		Channel:    s.channel,
		Registered: registered,
		Engines:    s.engines.IDs(),
		InFlight:   s.relay.InFlight(),
	}
}

func (s *WidgetService) RecentDispatches(limit int) ([]journal.Entry, error) {
	if s.database == nil {
		return []journal.Entry{}, nil
	}
	if limit <= 0 {
		limit = defaultRecentDispatches
	}

	return journal.Recent(context.Background(), s.database, limit)
}

func (s *WidgetService) DispatchSummary() (map[string]int, error) {
	if s.database == nil {
		return map[string]int{}, nil
	}

	return journal.Summary(context.Background(), s.database)
}
