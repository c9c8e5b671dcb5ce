//go:build windows

package smtc

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/player"
	"benwidget/internal/relay"
	"errors"
	"fmt"
	"path/filepath"
	"strings"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/zzl/go-com/com"
	"github.com/zzl/go-win32api/v2/win32"
	"github.com/zzl/go-winrtapi/winrt"
)

const (
	smtcClassName = "Windows.Media.SystemMediaTransportControls"
	appMediaID    = "Ben"
)

// Service exposes Play and Next in the Windows media flyout. Button presses
// are raised as widget broadcasts.
type Service struct {
	mu      sync.Mutex
	raise   broadcast.Handler
	log     logrus.FieldLogger
	updates chan player.State
	stop    chan struct{}
	done    chan struct{}
	running bool
}

type runtimeState struct {
	raise        broadcast.Handler
	log          logrus.FieldLogger
	controls     *winrt.ISystemMediaTransportControls
	updater      *winrt.ISystemMediaTransportControlsDisplayUpdater
	musicProps   *winrt.IMusicDisplayProperties
	buttonToken  winrt.EventRegistrationToken
	hookAttached bool
	lastTrack    string
	hasTrack     bool
}

func NewService(raise broadcast.Handler, logger logrus.FieldLogger) *Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &Service{
		raise: raise,
		log:   logger.WithField("component", "smtc"),
	}
}

func (s *Service) Start(hwnd win32.HWND) error {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		return nil
	}

	updates := make(chan player.State, 1)
	stopCh := make(chan struct{})
	doneCh := make(chan struct{})
	readyCh := make(chan error, 1)

	s.updates = updates
	s.stop = stopCh
	s.done = doneCh
	s.running = true
	s.mu.Unlock()

	go s.run(hwnd, updates, stopCh, doneCh, readyCh)

	if err := <-readyCh; err != nil {
		s.mu.Lock()
		s.running = false
		s.updates = nil
		s.stop = nil
		s.done = nil
		s.mu.Unlock()
		<-doneCh
		return err
	}

	return nil
}

// UpdatePlayerState keeps only the newest pending state.
func (s *Service) UpdatePlayerState(state player.State) {
	s.mu.Lock()
	running := s.running
	updates := s.updates
	s.mu.Unlock()

	if !running || updates == nil {
		return
	}

	select {
	case updates <- state:
	default:
		select {
		case <-updates:
		default:
		}
		select {
		case updates <- state:
		default:
		}
	}
}

func (s *Service) Close() error {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return nil
	}

	stopCh := s.stop
	doneCh := s.done
	s.running = false
	s.updates = nil
	s.stop = nil
	s.done = nil
	s.mu.Unlock()

	close(stopCh)
	<-doneCh
	return nil
}

func (s *Service) run(
	hwnd win32.HWND,
	updates <-chan player.State,
	stopCh <-chan struct{},
	doneCh chan<- struct{},
	readyCh chan<- error,
) {
	defer close(doneCh)

	init := winrt.InitializeMt()
	defer init.Uninitialize()

	state, err := newRuntimeState(s.raise, s.log, hwnd)
	if err != nil {
		readyCh <- err
		return
	}
	defer state.shutdown()

	readyCh <- nil

	for {
		select {
		case <-stopCh:
			return
		case update := <-updates:
			state.apply(update)
		}
	}
}

func newRuntimeState(raise broadcast.Handler, log logrus.FieldLogger, hwnd win32.HWND) (*runtimeState, error) {
	if hwnd == 0 {
		return nil, errors.New("smtc requires a valid window handle")
	}

	hs := winrt.NewHStr(smtcClassName)
	defer hs.Dispose()

	var interop *win32.ISystemMediaTransportControlsInterop
	hr := win32.RoGetActivationFactory(hs.Ptr, &win32.IID_ISystemMediaTransportControlsInterop, unsafe.Pointer(&interop))
	if win32.FAILED(hr) {
		return nil, fmt.Errorf("smtc interop activation factory: %s", win32.HRESULT_ToString(hr))
	}
	if interop == nil {
		return nil, errors.New("smtc interop activation factory returned nil")
	}
	com.AddToScope(interop)

	var controls *winrt.ISystemMediaTransportControls
	controlsHR := interop.GetForWindow(hwnd, &winrt.IID_ISystemMediaTransportControls, unsafe.Pointer(&controls))
	if win32.FAILED(controlsHR) {
		return nil, fmt.Errorf("smtc GetForWindow: %s", win32.HRESULT_ToString(controlsHR))
	}
	if controls == nil {
		return nil, errors.New("smtc unavailable for current window")
	}
	com.AddToScope(controls)

	state := &runtimeState{
		raise:    raise,
		log:      log,
		controls: controls,
	}

	// The widget only knows PLAY and NEXT; pause is a second PLAY press.
	state.controls.Put_IsEnabled(true)
	state.controls.Put_IsPlayEnabled(true)
	state.controls.Put_IsPauseEnabled(true)
	state.controls.Put_IsNextEnabled(true)
	state.controls.Put_IsStopEnabled(false)
	state.controls.Put_IsPreviousEnabled(false)

	state.updater = state.controls.Get_DisplayUpdater()
	if state.updater != nil {
		state.updater.Put_Type(winrt.MediaPlaybackType_Music)
		state.updater.Put_AppMediaId(appMediaID)
		state.musicProps = state.updater.Get_MusicProperties()
		state.updater.Update()
	}

	state.buttonToken = state.controls.Add_ButtonPressed(state.onButtonPressed)
	state.hookAttached = true

	return state, nil
}

func (s *runtimeState) shutdown() {
	if s.controls == nil {
		return
	}

	if s.hookAttached {
		s.controls.Remove_ButtonPressed(s.buttonToken)
	}

	s.controls.Put_IsEnabled(false)
}

func (s *runtimeState) apply(state player.State) {
	if s.controls == nil {
		return
	}

	s.controls.Put_PlaybackStatus(mapPlaybackStatus(state.Status))
	s.controls.Put_IsNextEnabled(state.QueueLength > 0)

	if state.CurrentTrack == nil {
		s.clearTrack()
		return
	}

	if !s.hasTrack || s.lastTrack != state.CurrentTrack.Path {
		s.applyTitle(*state.CurrentTrack)
		s.hasTrack = true
		s.lastTrack = state.CurrentTrack.Path
	}
}

func (s *runtimeState) clearTrack() {
	if !s.hasTrack {
		return
	}

	s.hasTrack = false
	s.lastTrack = ""

	if s.updater == nil {
		return
	}

	s.updater.ClearAll()
	s.updater.Put_Type(winrt.MediaPlaybackType_Music)
	s.updater.Put_AppMediaId(appMediaID)
	s.updater.Update()
}

// applyTitle sets the flyout labels. Artwork and timeline are not published.
func (s *runtimeState) applyTitle(track player.Track) {
	if s.updater == nil {
		return
	}

	if s.musicProps != nil {
		title := normalizeLabel(track.Title, filepath.Base(track.Path))
		s.musicProps.Put_Title(title)
		s.musicProps.Put_Artist(normalizeLabel(track.Artist, "Unknown Artist"))
	}

	s.updater.Update()
}

func (s *runtimeState) onButtonPressed(
	_ *winrt.ISystemMediaTransportControls,
	args *winrt.ISystemMediaTransportControlsButtonPressedEventArgs,
) com.Error {
	if s.raise == nil || args == nil {
		return com.OK
	}

	tag, ok := buttonTag(args.Get_Button())
	if !ok {
		s.log.WithField("button", args.Get_Button()).Debug("ignoring media flyout button")
		return com.OK
	}

	go s.raise(broadcast.NewIntent(tag, broadcast.SourceSMTC))
	return com.OK
}

func buttonTag(button winrt.SystemMediaTransportControlsButton) (string, bool) {
	switch button {
	case winrt.SystemMediaTransportControlsButton_Play, winrt.SystemMediaTransportControlsButton_Pause:
		return relay.TagPlay, true
	case winrt.SystemMediaTransportControlsButton_Next:
		return relay.TagNext, true
	default:
		return "", false
	}
}

func mapPlaybackStatus(status string) winrt.MediaPlaybackStatus {
	switch strings.ToLower(strings.TrimSpace(status)) {
	case player.StatusPlaying:
		return winrt.MediaPlaybackStatus_Playing
	case player.StatusPaused:
		return winrt.MediaPlaybackStatus_Paused
	default:
		return winrt.MediaPlaybackStatus_Stopped
	}
}

func normalizeLabel(value string, fallback string) string {
	trimmed := strings.TrimSpace(value)
	if trimmed == "" {
		return fallback
	}

	return trimmed
}
