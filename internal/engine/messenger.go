package engine

import (
	"errors"
	"sync"

	"github.com/sirupsen/logrus"
)

const defaultQueueSize = 64

var (
	ErrNoListener      = errors.New("no listener registered on channel")
	ErrQueueFull       = errors.New("messenger queue is full")
	ErrMessengerClosed = errors.New("messenger is closed")
)

// MessageHandler receives the raw bytes sent on one channel.
type MessageHandler func(message []byte)

// Messenger is the binary message transport an engine exposes. Send hands the
// message over and returns without waiting for the handler to run.
type Messenger interface {
	Send(channel string, message []byte) error
	SetMessageHandler(channel string, handler MessageHandler)
}

type BusOptions struct {
	QueueSize int
	Logger    logrus.FieldLogger
}

type envelope struct {
	channel string
	message []byte
}

// Bus is an in-process Messenger. Messages go into a bounded queue drained by
// a single worker; a full queue rejects instead of blocking the sender.
type Bus struct {
	mu       sync.RWMutex
	handlers map[string]MessageHandler
	closed   bool

	queue     chan envelope
	done      chan struct{}
	closeOnce sync.Once
	workerWG  sync.WaitGroup
	log       logrus.FieldLogger
}

func NewBus(opts BusOptions) *Bus {
	if opts.QueueSize <= 0 {
		opts.QueueSize = defaultQueueSize
	}
	if opts.Logger == nil {
		opts.Logger = logrus.StandardLogger()
	}

	bus := &Bus{
		handlers: make(map[string]MessageHandler),
		queue:    make(chan envelope, opts.QueueSize),
		done:     make(chan struct{}),
		log:      opts.Logger.WithField("component", "engine-messenger"),
	}

	bus.workerWG.Add(1)
	go bus.run()

	return bus
}

// SetMessageHandler installs handler for channel. A nil handler removes it.
func (b *Bus) SetMessageHandler(channel string, handler MessageHandler) {
	b.mu.Lock()
	defer b.mu.Unlock()

	if handler == nil {
		delete(b.handlers, channel)
		return
	}
	b.handlers[channel] = handler
}

func (b *Bus) Send(channel string, message []byte) error {
	b.mu.RLock()
	defer b.mu.RUnlock()

	if b.closed {
		return ErrMessengerClosed
	}
	if _, ok := b.handlers[channel]; !ok {
		return ErrNoListener
	}

	payload := make([]byte, len(message))
	copy(payload, message)

	select {
	case b.queue <- envelope{channel: channel, message: payload}:
		return nil
	default:
		return ErrQueueFull
	}
}

// Close stops accepting messages, delivers what is already queued and waits
// for the worker to exit.
func (b *Bus) Close() error {
	b.closeOnce.Do(func() {
		b.mu.Lock()
		b.closed = true
		b.mu.Unlock()

		close(b.done)
		b.workerWG.Wait()
	})

	return nil
}

func (b *Bus) run() {
	defer b.workerWG.Done()

	for {
		select {
		case item := <-b.queue:
			b.deliver(item)
		case <-b.done:
			for {
				select {
				case item := <-b.queue:
					b.deliver(item)
				default:
					return
				}
			}
		}
	}
}

func (b *Bus) deliver(item envelope) {
	b.mu.RLock()
	handler := b.handlers[item.channel]
	b.mu.RUnlock()

	if handler == nil {
		b.log.WithField("channel", item.channel).Warn("listener went away, message dropped")
		return
	}

	defer func() {
		if recovered := recover(); recovered != nil {
			b.log.WithField("channel", item.channel).Errorf("channel handler panicked: %v", recovered)
		}
	}()

	handler(item.message)
}
