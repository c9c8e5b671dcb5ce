package engine

import (
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newBusForTest(t *testing.T, queueSize int) *Bus {
	t.Helper()

	logger, _ := logtest.NewNullLogger()
	bus := NewBus(BusOptions{QueueSize: queueSize, Logger: logger})
	t.Cleanup(func() { _ = bus.Close() })
	return bus
}

func TestBusDeliversToChannelHandler(t *testing.T) {
	bus := newBusForTest(t, 4)

	received := make(chan []byte, 1)
	bus.SetMessageHandler("music_widget_channel", func(message []byte) {
		received <- message
	})

	require.NoError(t, bus.Send("music_widget_channel", []byte("play")))

	select {
	case got := <-received:
		assert.Equal(t, "play", string(got))
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for message")
	}
}

func TestBusSendWithoutListener(t *testing.T) {
	bus := newBusForTest(t, 4)

	err := bus.Send("music_widget_channel", []byte("play"))
	assert.ErrorIs(t, err, ErrNoListener)

	bus.SetMessageHandler("music_widget_channel", func([]byte) {})
	bus.SetMessageHandler("music_widget_channel", nil)

	err = bus.Send("music_widget_channel", []byte("play"))
	assert.ErrorIs(t, err, ErrNoListener)
}

func TestBusRejectsWhenQueueFull(t *testing.T) {
	bus := newBusForTest(t, 1)

	release := make(chan struct{})
	started := make(chan struct{}, 1)
	bus.SetMessageHandler("slow", func([]byte) {
		started <- struct{}{}
		<-release
	})
	defer close(release)

	require.NoError(t, bus.Send("slow", []byte("1")))
	<-started
	require.NoError(t, bus.Send("slow", []byte("2")))

	assert.ErrorIs(t, bus.Send("slow", []byte("3")), ErrQueueFull)
}

func TestBusSendAfterClose(t *testing.T) {
	bus := newBusForTest(t, 4)
	bus.SetMessageHandler("music_widget_channel", func([]byte) {})

	require.NoError(t, bus.Close())
	assert.ErrorIs(t, bus.Send("music_widget_channel", []byte("next")), ErrMessengerClosed)
}

func TestBusCloseDrainsQueued(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus := NewBus(BusOptions{QueueSize: 8, Logger: logger})

	var mu sync.Mutex
	var got []string
	bus.SetMessageHandler("c", func(message []byte) {
		mu.Lock()
		got = append(got, string(message))
		mu.Unlock()
	})

	for _, message := range []string{"a", "b", "c"} {
		require.NoError(t, bus.Send("c", []byte(message)))
	}
	require.NoError(t, bus.Close())

	mu.Lock()
	defer mu.Unlock()
	assert.Equal(t, []string{"a", "b", "c"}, got)
}

func TestBusRecoversHandlerPanic(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	bus := NewBus(BusOptions{Logger: logger})

	bus.SetMessageHandler("c", func([]byte) {
		panic("bad handler")
	})

	require.NoError(t, bus.Send("c", nil))
	require.NoError(t, bus.Close())

	require.NotNil(t, hook.LastEntry())
	assert.Contains(t, hook.LastEntry().Message, "panicked")
}

func TestHandleCloseClosesMessengerAndNative(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus := NewBus(BusOptions{Logger: logger})
	bus.SetMessageHandler("c", func([]byte) {})

	nativeClosed := 0
	handle := NewHandle("my_engine_id", bus, closerFunc(func() error {
		nativeClosed++
		return nil
	}))

	require.NoError(t, handle.Close())
	require.NoError(t, handle.Close())

	assert.Equal(t, 1, nativeClosed)
	assert.ErrorIs(t, bus.Send("c", nil), ErrMessengerClosed)
	assert.Equal(t, "my_engine_id", handle.ID())
	assert.Same(t, Messenger(bus), handle.Messenger())
}
