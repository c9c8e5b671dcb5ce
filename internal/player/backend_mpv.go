//go:build libmpv

package player

import (
	"errors"
	"fmt"
	"sync"

	mpv "github.com/gen2brain/go-mpv"
)

const mpvPauseProperty = "pause"

type mpvBackend struct {
	mu          sync.Mutex
	client      *mpv.Mpv
	onEOF       func()
	closeOnce   sync.Once
	closed      chan struct{}
	eventLoopWG sync.WaitGroup
}

func newPlaybackBackend() (playbackBackend, error) {
	client := mpv.New()
	if client == nil {
		return nil, errors.New("create libmpv instance")
	}

	for name, value := range map[string]string{
		"terminal":      "no",
		"video":         "no",
		"audio-display": "no",
		"keep-open":     "no",
	} {
		_ = client.SetOptionString(name, value)
	}

	if err := client.Initialize(); err != nil {
		client.TerminateDestroy()
		return nil, fmt.Errorf("initialize libmpv: %w", err)
	}

	backend := &mpvBackend{
		client: client,
		closed: make(chan struct{}),
	}

	_ = client.RequestEvent(mpv.EventEnd, true)

	backend.eventLoopWG.Add(1)
	go backend.eventLoop()

	return backend, nil
}

func (b *mpvBackend) Load(path string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.SetPropertyString(mpvPauseProperty, "yes"); err != nil {
		return fmt.Errorf("set pause before load: %w", err)
	}
	if err := b.client.Command([]string{"loadfile", path, "replace"}); err != nil {
		return fmt.Errorf("load file %q: %w", path, err)
	}

	return nil
}

func (b *mpvBackend) Play() error {
	return b.setPaused(false)
}

func (b *mpvBackend) Pause() error {
	return b.setPaused(true)
}

func (b *mpvBackend) Stop() error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if err := b.client.Command([]string{"stop"}); err != nil {
		return fmt.Errorf("stop playback: %w", err)
	}

	return nil
}

func (b *mpvBackend) SetOnEOF(callback func()) {
	b.mu.Lock()
	defer b.mu.Unlock()
	b.onEOF = callback
}

func (b *mpvBackend) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		client := b.client
		b.mu.Unlock()

		if client != nil {
			client.Wakeup()
			client.TerminateDestroy()
		}

		b.eventLoopWG.Wait()
		close(b.closed)
	})

	<-b.closed
	return nil
}

func (b *mpvBackend) setPaused(paused bool) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	value := "no"
	if paused {
		value = "yes"
	}
	if err := b.client.SetPropertyString(mpvPauseProperty, value); err != nil {
		return fmt.Errorf("set pause=%s: %w", value, err)
	}

	return nil
}

func (b *mpvBackend) eventLoop() {
	defer b.eventLoopWG.Done()

	for {
		event := b.client.WaitEvent(0.5)
		if event == nil {
			continue
		}

		switch event.EventID {
		case mpv.EventShutdown:
			return
		case mpv.EventEnd:
			if event.EndFile().Reason != mpv.EndFileEOF {
				continue
			}

			b.mu.Lock()
			onEOF := b.onEOF
			b.mu.Unlock()
			if onEOF != nil {
				go onEOF()
			}
		}
	}
}
