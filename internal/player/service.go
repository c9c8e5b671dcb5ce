package player

import (
	"benwidget/internal/channel"
	"benwidget/internal/engine"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/sirupsen/logrus"
)

const EventStateChanged = "player:state"

const (
	StatusStopped = "stopped"
	StatusPaused  = "paused"
	StatusPlaying = "playing"
)

const (
	MethodPlay = "play"
	MethodNext = "next"
)

var ErrPlaylistEmpty = errors.New("playlist is empty")

type Emitter func(eventName string, payload any)

type State struct {
	Status       string `json:"status"`
	CurrentTrack *Track `json:"currentTrack,omitempty"`
	CurrentIndex int    `json:"currentIndex"`
	QueueLength  int    `json:"queueLength"`
	UpdatedAt    string `json:"updatedAt"`
}

// Service is the playback engine the widget talks to. Without a backend it
// keeps state only.
type Service struct {
	mu        sync.Mutex
	tracks    []Track
	index     int
	status    string
	loaded    bool
	updatedAt time.Time
	emit      Emitter
	backend   playbackBackend
	log       logrus.FieldLogger
}

func NewService(tracks []Track, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}
	log := logger.WithField("component", "player")

	backend, err := newPlaybackBackend()
	if err != nil {
		log.WithError(err).Warn("playback backend unavailable, running without audio")
		backend = nil
	}

	return newService(tracks, backend, log)
}

func newService(tracks []Track, backend playbackBackend, log logrus.FieldLogger) *Service {
	service := &Service{
		tracks:  append([]Track(nil), tracks...),
		status:  StatusStopped,
		backend: backend,
		log:     log,
	}

	if backend != nil {
		backend.SetOnEOF(service.onTrackEnded)
	}

	return service
}

func (s *Service) SetEmitter(emitter Emitter) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.emit = emitter
}

// Attach listens for widget commands on channelName.
func (s *Service) Attach(messenger engine.Messenger, channelName string) func() {
	return channel.Listen(messenger, channelName, s.handleCommand, s.log)
}

func (s *Service) handleCommand(command channel.Command) {
	var err error

	switch command.Method {
	case MethodPlay:
		_, err = s.TogglePlayback()
	case MethodNext:
		_, err = s.Next()
	default:
		s.log.WithField("method", command.Method).Warn("unsupported widget command")
		return
	}

	if err != nil {
		s.log.WithError(err).WithField("method", command.Method).Warn("widget command failed")
	}
}

func (s *Service) GetState() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stateLocked()
}

func (s *Service) Play() (State, error) {
	s.mu.Lock()
	if len(s.tracks) == 0 {
		state := s.stateLocked()
		s.mu.Unlock()
		return state, ErrPlaylistEmpty
	}

	if err := s.loadCurrentLocked(); err != nil {
		state := s.stateLocked()
		s.mu.Unlock()
		return state, err
	}
	if s.backend != nil {
		if err := s.backend.Play(); err != nil {
			state := s.stateLocked()
			s.mu.Unlock()
			return state, err
		}
	}

	s.status = StatusPlaying
	s.updatedAt = time.Now().UTC()
	state := s.stateLocked()
	s.mu.Unlock()

	s.emitState(state)
	return state, nil
}

func (s *Service) Pause() (State, error) {
	s.mu.Lock()
	if s.backend != nil && s.loaded {
		if err := s.backend.Pause(); err != nil {
			state := s.stateLocked()
			s.mu.Unlock()
			return state, err
		}
	}

	if s.status == StatusPlaying {
		s.status = StatusPaused
	}
	s.updatedAt = time.Now().UTC()
	state := s.stateLocked()
	s.mu.Unlock()

	s.emitState(state)
	return state, nil
}

func (s *Service) TogglePlayback() (State, error) {
	if s.GetState().Status == StatusPlaying {
		return s.Pause()
	}

	return s.Play()
}

func (s *Service) Stop() (State, error) {
	s.mu.Lock()
	if s.backend != nil && s.loaded {
		if err := s.backend.Stop(); err != nil {
			s.log.WithError(err).Warn("stop backend failed")
		}
	}

	s.status = StatusStopped
	s.loaded = false
	s.updatedAt = time.Now().UTC()
	state := s.stateLocked()
	s.mu.Unlock()

	s.emitState(state)
	return state, nil
}

// Next moves to the following track, keeping the play status. Past the last
// track playback stops.
func (s *Service) Next() (State, error) {
	s.mu.Lock()
	if len(s.tracks) == 0 {
		state := s.stateLocked()
		s.mu.Unlock()
		return state, ErrPlaylistEmpty
	}
	if s.index+1 >= len(s.tracks) {
		s.mu.Unlock()
		return s.Stop()
	}

	s.index++
	s.loaded = false
	if s.status == StatusPlaying {
		if err := s.loadCurrentLocked(); err != nil {
			state := s.stateLocked()
			s.mu.Unlock()
			return state, err
		}
		if s.backend != nil {
			if err := s.backend.Play(); err != nil {
				state := s.stateLocked()
				s.mu.Unlock()
				return state, err
			}
		}
	} else {
		s.status = StatusStopped
	}
	s.updatedAt = time.Now().UTC()
	state := s.stateLocked()
	s.mu.Unlock()

	s.emitState(state)
	return state, nil
}

// Close releases the playback backend.
func (s *Service) Close() error {
	s.mu.Lock()
	backend := s.backend
	s.backend = nil
	s.status = StatusStopped
	s.mu.Unlock()

	if backend == nil {
		return nil
	}
	return backend.Close()
}

func (s *Service) onTrackEnded() {
	if _, err := s.Next(); err != nil {
		s.log.WithError(err).Warn("advance after track end failed")
	}
}

func (s *Service) loadCurrentLocked() error {
	if s.loaded {
		return nil
	}
	if s.backend != nil {
		if err := s.backend.Load(s.tracks[s.index].Path); err != nil {
			return fmt.Errorf("load track %d: %w", s.index, err)
		}
	}
	s.loaded = true
	return nil
}

func (s *Service) stateLocked() State {
	state := State{
		Status:       s.status,
		CurrentIndex: -1,
		QueueLength:  len(s.tracks),
	}

	if len(s.tracks) > 0 {
		track := s.tracks[s.index]
		state.CurrentTrack = &track
		state.CurrentIndex = s.index
	}

	if !s.updatedAt.IsZero() {
		state.UpdatedAt = s.updatedAt.UTC().Format(time.RFC3339)
	}

	return state
}

func (s *Service) emitState(state State) {
	s.mu.Lock()
	emitter := s.emit
	s.mu.Unlock()

	if emitter != nil {
		emitter(EventStateChanged, state)
	}
}
