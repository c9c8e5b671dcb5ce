// Package relay turns widget broadcasts into engine commands.
//
// The relay is the last stop for a broadcast: missing or unknown tags, an
// engine that has not registered yet, and transport failures all end in a
// log line. Nothing is retried and nothing escapes OnEvent.
package relay

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/channel"
	"benwidget/internal/engine"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	"github.com/sirupsen/logrus"
)

// The engine id and channel name the application registers under unless
// configured otherwise.
const (
	DefaultEngineID    = "my_engine_id"
	DefaultChannelName = "music_widget_channel"
)

type Outcome string

const (
	OutcomeDelivered      Outcome = "delivered"
	OutcomeMissingAction  Outcome = "missing_action"
	OutcomeUnknownAction  Outcome = "unknown_action"
	OutcomeEngineAbsent   Outcome = "engine_absent"
	OutcomeDeliveryFailed Outcome = "delivery_failed"
	OutcomePanic          Outcome = "panic"
)

// Dispatch describes how one broadcast was handled.
type Dispatch struct {
	IntentID  string        `json:"intentId"`
	Source    string        `json:"source"`
	RawAction string        `json:"rawAction"`
	Action    Action        `json:"action"`
	Outcome   Outcome       `json:"outcome"`
	Error     string        `json:"error,omitempty"`
	At        time.Time     `json:"at"`
	Duration  time.Duration `json:"duration"`
}

// Observer is told about every dispatch. Observers run on the dispatching
// goroutine and must not block.
type Observer interface {
	ObserveDispatch(dispatch Dispatch)
}

type ObserverFunc func(dispatch Dispatch)

func (fn ObserverFunc) ObserveDispatch(dispatch Dispatch) {
	fn(dispatch)
}

type EngineLookup interface {
	Lookup(id string) (*engine.Handle, bool)
}

type Options struct {
	EngineID    string
	ChannelName string
	Logger      logrus.FieldLogger
}

type Relay struct {
	engines     EngineLookup
	engineID    string
	channelName string
	log         logrus.FieldLogger
	now         func() time.Time

	inFlight atomic.Int64

	observersMu sync.RWMutex
	observers   []Observer
}

func New(engines EngineLookup, opts Options) *Relay {
	if opts.EngineID == "" {
		opts.EngineID = DefaultEngineID
	}
	if opts.ChannelName == "" {
		opts.ChannelName = DefaultChannelName
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	return &Relay{
		engines:     engines,
		engineID:    opts.EngineID,
		channelName: opts.ChannelName,
		log:         opts.Logger.WithField("component", "widget-relay"),
		now:         time.Now,
	}
}

func (r *Relay) AddObserver(observer Observer) {
	if observer == nil {
		return
	}

	r.observersMu.Lock()
	defer r.observersMu.Unlock()
	r.observers = append(r.observers, observer)
}

// InFlight reports how many events are being dispatched right now.
func (r *Relay) InFlight() int64 {
	return r.inFlight.Load()
}

// OnEvent handles a bare action tag. An empty tag counts as absent.
func (r *Relay) OnEvent(rawAction string) {
	r.Receive(broadcast.Intent{Action: rawAction, Source: broadcast.SourceDirect})
}

// Receive handles one broadcast intent.
func (r *Relay) Receive(intent broadcast.Intent) {
	started := r.now()
	r.inFlight.Add(1)

	dispatch := Dispatch{
		IntentID:  intent.ID,
		Source:    intent.Source,
		RawAction: intent.Action,
		At:        started.UTC(),
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			dispatch.Outcome = OutcomePanic
			dispatch.Error = fmt.Sprint(recovered)
			r.log.WithFields(r.fields(dispatch)).Errorf("widget action dispatch panicked: %v", recovered)
		}
		dispatch.Duration = r.now().Sub(started)
		r.notify(dispatch)
		r.inFlight.Add(-1)
	}()

	dispatch.Action, dispatch.Outcome, dispatch.Error = r.dispatch(intent)
}

func (r *Relay) dispatch(intent broadcast.Intent) (Action, Outcome, string) {
	log := r.log.WithFields(logrus.Fields{
		"intent": intent.ID,
		"source": intent.Source,
	})
	log.WithField("action", intent.Action).Debug("widget broadcast received")

	if intent.Action == "" {
		log.Warn("widget broadcast has no action, ignoring")
		return ActionUnknown, OutcomeMissingAction, ""
	}

	action := ParseAction(intent.Action)
	if action == ActionUnknown {
		log.WithField("action", intent.Action).Warn("unknown widget action, ignoring")
		return ActionUnknown, OutcomeUnknownAction, ""
	}

	log = log.WithField("action", action.String())

	handle, ok := r.engines.Lookup(r.engineID)
	if !ok || handle == nil {
		log.WithField("engine", r.engineID).Error("engine not registered, widget action dropped")
		return action, OutcomeEngineAbsent, ""
	}

	if err := channel.Bind(handle, r.channelName).Send(action.Method(), nil); err != nil {
		log.WithError(err).Error("widget action delivery failed")
		return action, OutcomeDeliveryFailed, err.Error()
	}

	log.Debug("widget action forwarded to engine")
	return action, OutcomeDelivered, ""
}

func (r *Relay) notify(dispatch Dispatch) {
	r.observersMu.RLock()
	observers := make([]Observer, len(r.observers))
	copy(observers, r.observers)
	r.observersMu.RUnlock()

	for _, observer := range observers {
		r.safeObserve(observer, dispatch)
	}
}

func (r *Relay) safeObserve(observer Observer, dispatch Dispatch) {
	defer func() {
		if recovered := recover(); recovered != nil {
			r.log.WithFields(r.fields(dispatch)).Errorf("dispatch observer panicked: %v", recovered)
		}
	}()

	observer.ObserveDispatch(dispatch)
}

func (r *Relay) fields(dispatch Dispatch) logrus.Fields {
	return logrus.Fields{
		"intent": dispatch.IntentID,
		"source": dispatch.Source,
		"action": dispatch.RawAction,
	}
}
