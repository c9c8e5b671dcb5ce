package channel

import (
	"benwidget/internal/engine"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type sentMessage struct {
	channel string
	message []byte
}

type recordingMessenger struct {
	mu       sync.Mutex
	sent     []sentMessage
	handlers map[string]engine.MessageHandler
	err      error
}

func (m *recordingMessenger) Send(channel string, message []byte) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.err != nil {
		return m.err
	}
	m.sent = append(m.sent, sentMessage{channel: channel, message: message})
	return nil
}

func (m *recordingMessenger) SetMessageHandler(channel string, handler engine.MessageHandler) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.handlers == nil {
		m.handlers = map[string]engine.MessageHandler{}
	}
	if handler == nil {
		delete(m.handlers, channel)
		return
	}
	m.handlers[channel] = handler
}

func TestSendEncodesCommand(t *testing.T) {
	messenger := &recordingMessenger{}
	ch := Bind(engine.NewHandle("my_engine_id", messenger, nil), "music_widget_channel")

	require.NoError(t, ch.Send("play", nil))

	require.Len(t, messenger.sent, 1)
	assert.Equal(t, "music_widget_channel", messenger.sent[0].channel)

	command, err := decodeCommand(messenger.sent[0].message)
	require.NoError(t, err)
	assert.Equal(t, "music_widget_channel", command.Channel)
	assert.Equal(t, "play", command.Method)
	assert.Nil(t, command.Args)
}

func TestSendSurfacesTransportFailure(t *testing.T) {
	messenger := &recordingMessenger{err: engine.ErrNoListener}
	ch := Bind(engine.NewHandle("my_engine_id", messenger, nil), "music_widget_channel")

	err := ch.Send("next", nil)
	require.Error(t, err)
	assert.ErrorIs(t, err, engine.ErrNoListener)
	assert.Contains(t, err.Error(), "send next on music_widget_channel")
}

func TestSendRejectsEmptyMethod(t *testing.T) {
	messenger := &recordingMessenger{}
	ch := Bind(engine.NewHandle("my_engine_id", messenger, nil), "music_widget_channel")

	assert.ErrorIs(t, ch.Send("  ", nil), ErrMalformedCommand)
	assert.Empty(t, messenger.sent)
}

func TestSendOnUnboundChannel(t *testing.T) {
	ch := Bind(nil, "music_widget_channel")
	assert.ErrorIs(t, ch.Send("play", nil), ErrUnbound)

	var nilChannel *Channel
	assert.ErrorIs(t, nilChannel.Send("play", nil), ErrUnbound)
}

func TestBindIsCheapAndRepeatable(t *testing.T) {
	messenger := &recordingMessenger{}
	handle := engine.NewHandle("my_engine_id", messenger, nil)

	first := Bind(handle, "music_widget_channel")
	second := Bind(handle, "music_widget_channel")

	require.NoError(t, first.Send("play", nil))
	require.NoError(t, second.Send("next", nil))
	assert.Len(t, messenger.sent, 2)
	assert.Equal(t, "music_widget_channel", second.Name())
}

func TestListenRoundTripOverBus(t *testing.T) {
	logger, _ := logtest.NewNullLogger()
	bus := engine.NewBus(engine.BusOptions{Logger: logger})
	t.Cleanup(func() { _ = bus.Close() })

	received := make(chan Command, 1)
	cancel := Listen(bus, "music_widget_channel", func(command Command) {
		received <- command
	}, logger)

	ch := Bind(engine.NewHandle("my_engine_id", bus, nil), "music_widget_channel")
	require.NoError(t, ch.Send("next", nil))

	select {
	case command := <-received:
		assert.Equal(t, "next", command.Method)
	case <-time.After(time.Second):
		t.Fatal("timed out waiting for command")
	}

	cancel()
	assert.ErrorIs(t, ch.Send("play", nil), engine.ErrNoListener)
}

func TestListenDropsMalformedMessages(t *testing.T) {
	logger, hook := logtest.NewNullLogger()
	messenger := &recordingMessenger{}

	calls := 0
	Listen(messenger, "music_widget_channel", func(Command) { calls++ }, logger)

	handler := messenger.handlers["music_widget_channel"]
	require.NotNil(t, handler)

	handler([]byte("not json"))
	handler([]byte(`{"method":""}`))
	handler([]byte(`{"method":"play"}`))

	assert.Equal(t, 1, calls)
	assert.Len(t, hook.AllEntries(), 2)
}
