//go:build windows

package platform

import (
	"benwidget/internal/broadcast"
	"benwidget/internal/platform/windows/smtc"
	"benwidget/internal/platform/windows/thumbbar"
	"benwidget/internal/player"
	"benwidget/internal/relay"
	"errors"
	"sync"
	"unsafe"

	"github.com/sirupsen/logrus"
	"github.com/wailsapp/wails/v3/pkg/application"
	"github.com/wailsapp/wails/v3/pkg/events"
	"github.com/zzl/go-win32api/v2/win32"
)

const (
	acceleratorMediaPlayPause = "MEDIA_PLAY_PAUSE"
	acceleratorMediaNextTrack = "MEDIA_NEXT_TRACK"
)

type windowsService struct {
	app          *application.App
	receiver     Receiver
	smtc         *smtc.Service
	thumbbar     *thumbbar.Service
	accelerators []string
	log          logrus.FieldLogger

	mu            sync.Mutex
	smtcStarted   bool
	smtcStarting  bool
	thumbStarted  bool
	thumbStarting bool
	pendingState  *player.State
}

func NewService(app *application.App, receiver Receiver, logger logrus.FieldLogger) Service {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	var raise broadcast.Handler
	if receiver != nil {
		raise = receiver.Receive
	}

	return &windowsService{
		app:      app,
		receiver: receiver,
		smtc:     smtc.NewService(raise, logger),
		thumbbar: thumbbar.NewService(raise, logger),
		log:      logger.WithField("component", "platform"),
	}
}

func (s *windowsService) Start() error {
	if s.app == nil || s.receiver == nil {
		return nil
	}

	if err := initializeProcessIdentity(); err != nil {
		s.log.WithError(err).Warn("app identity setup failed")
	}

	if s.app.Window != nil {
		for _, window := range s.app.Window.GetAll() {
			s.watchWindow(window)
		}
		s.app.Window.OnCreate(func(window application.Window) {
			s.watchWindow(window)
		})
	}

	s.startSMTCIfNeeded()
	s.startThumbbarIfNeeded()

	s.registerBinding(acceleratorMediaPlayPause, relay.TagPlay)
	s.registerBinding(acceleratorMediaNextTrack, relay.TagNext)

	return nil
}

func (s *windowsService) Stop() error {
	if s.app != nil {
		for _, accelerator := range s.accelerators {
			s.app.KeyBinding.Remove(accelerator)
		}
	}

	s.mu.Lock()
	s.smtcStarted = false
	s.smtcStarting = false
	s.thumbStarted = false
	s.thumbStarting = false
	s.mu.Unlock()

	return errors.Join(s.smtc.Close(), s.thumbbar.Close())
}

func (s *windowsService) HandlePlayerState(state player.State) {
	s.mu.Lock()
	smtcStarted := s.smtcStarted
	if !smtcStarted {
		pending := state
		s.pendingState = &pending
	}
	started := s.thumbStarted
	s.mu.Unlock()

	if smtcStarted {
		s.smtc.UpdatePlayerState(state)
	} else {
		s.startSMTCIfNeeded()
	}

	if !started {
		s.thumbbar.UpdatePlayerState(state)
		s.startThumbbarIfNeeded()
		return
	}

	s.thumbbar.UpdatePlayerState(state)
}

func (s *windowsService) watchWindow(window application.Window) {
	if window == nil {
		return
	}

	if s.startSMTCIfNeeded() && s.startThumbbarIfNeeded() {
		return
	}

	var cancel func()
	cancel = window.OnWindowEvent(events.Windows.WebViewNavigationCompleted, func(_ *application.WindowEvent) {
		if !s.startSMTCIfNeeded() || !s.startThumbbarIfNeeded() {
			return
		}
		if cancel != nil {
			cancel()
			cancel = nil
		}
	})
}

func (s *windowsService) resolveWindowHandle() (win32.HWND, bool) {
	if s.app == nil || s.app.Window == nil {
		return 0, false
	}

	if window := s.app.Window.Current(); window != nil {
		if hwnd, ok := asHWND(window.NativeWindow()); ok {
			return hwnd, true
		}
	}

	for _, window := range s.app.Window.GetAll() {
		if hwnd, ok := asHWND(window.NativeWindow()); ok {
			return hwnd, true
		}
	}

	return 0, false
}

func asHWND(nativeWindow unsafe.Pointer) (win32.HWND, bool) {
	if nativeWindow == nil {
		return 0, false
	}

	hwnd := win32.HWND(uintptr(nativeWindow))
	if hwnd == 0 {
		return 0, false
	}

	return hwnd, true
}

// registerBinding turns a media key into a widget broadcast.
func (s *windowsService) registerBinding(accelerator string, tag string) {
	s.accelerators = append(s.accelerators, accelerator)
	s.app.KeyBinding.Add(accelerator, func(_ application.Window) {
		go s.receiver.Receive(broadcast.NewIntent(tag, broadcast.SourceMediaKey))
	})
}

func (s *windowsService) startSMTCIfNeeded() bool {
	s.mu.Lock()
	if s.smtcStarted {
		s.mu.Unlock()
		return true
	}
	if s.smtcStarting {
		s.mu.Unlock()
		return false
	}
	s.smtcStarting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.smtcStarting = false
		s.mu.Unlock()
	}()

	hwnd, ok := s.resolveWindowHandle()
	if !ok {
		return false
	}

	if err := s.smtc.Start(hwnd); err != nil {
		s.log.WithError(err).Warn("media flyout controls disabled")
		return false
	}

	s.mu.Lock()
	s.smtcStarted = true
	pending := s.pendingState
	s.pendingState = nil
	s.mu.Unlock()

	if pending != nil {
		s.smtc.UpdatePlayerState(*pending)
	}

	return true
}

func (s *windowsService) startThumbbarIfNeeded() bool {
	s.mu.Lock()
	if s.thumbStarted {
		s.mu.Unlock()
		return true
	}
	if s.thumbStarting {
		s.mu.Unlock()
		return false
	}
	s.thumbStarting = true
	s.mu.Unlock()

	defer func() {
		s.mu.Lock()
		s.thumbStarting = false
		s.mu.Unlock()
	}()

	hwnd, ok := s.resolveWindowHandle()
	if !ok {
		return false
	}

	if err := s.thumbbar.Start(hwnd); err != nil {
		s.log.WithError(err).Warn("thumbnail toolbar disabled")
		return false
	}

	s.mu.Lock()
	s.thumbStarted = true
	s.mu.Unlock()

	return true
}
