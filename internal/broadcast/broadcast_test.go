package broadcast

import (
	"encoding/json"
	"os"
	"path/filepath"
	"sort"
	"sync"
	"testing"
	"time"

	logtest "github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRequestCodeMatchesStringHash(t *testing.T) {
	assert.Equal(t, int32(2458420), NewPendingIntent("PLAY").RequestCode)
	assert.Equal(t, int32(2392819), NewPendingIntent("NEXT").RequestCode)
	assert.Equal(t, int32(0), NewPendingIntent("").RequestCode)
}

func TestPendingIntentFireWritesIntentFile(t *testing.T) {
	dir := filepath.Join(t.TempDir(), "intents")

	intent, err := NewPendingIntent("NEXT").Fire(dir)
	require.NoError(t, err)
	assert.NotEmpty(t, intent.ID)
	assert.Equal(t, "NEXT", intent.Action)

	entries, err := os.ReadDir(dir)
	require.NoError(t, err)
	require.Len(t, entries, 1)
	assert.True(t, isIntentFile(entries[0].Name()))

	body, err := os.ReadFile(filepath.Join(dir, entries[0].Name()))
	require.NoError(t, err)

	var decoded Intent
	require.NoError(t, json.Unmarshal(body, &decoded))
	assert.Equal(t, intent.ID, decoded.ID)
	assert.Equal(t, int32(2392819), decoded.RequestCode)
}

func TestParseIntent(t *testing.T) {
	plain := parseIntent([]byte("PLAY\n"))
	assert.Equal(t, "PLAY", plain.Action)
	assert.Equal(t, SourceSpool, plain.Source)
	assert.NotEmpty(t, plain.ID)

	structured := parseIntent([]byte(`{"id":"abc","action":"NEXT","source":"elsewhere"}`))
	assert.Equal(t, "abc", structured.ID)
	assert.Equal(t, "NEXT", structured.Action)
	assert.Equal(t, SourceSpool, structured.Source)

	missing := parseIntent([]byte(`{"id":"def"}`))
	assert.Empty(t, missing.Action)

	broken := parseIntent([]byte(`{"action":`))
	assert.Empty(t, broken.Action)
	assert.NotEmpty(t, broken.ID)
}

type intentCollector struct {
	mu      sync.Mutex
	intents []Intent
	signal  chan struct{}
}

func newIntentCollector() *intentCollector {
	return &intentCollector{signal: make(chan struct{}, 64)}
}

func (c *intentCollector) handle(intent Intent) {
	c.mu.Lock()
	c.intents = append(c.intents, intent)
	c.mu.Unlock()
	c.signal <- struct{}{}
}

func (c *intentCollector) waitFor(t *testing.T, count int) []Intent {
	t.Helper()

	deadline := time.After(5 * time.Second)
	for {
		c.mu.Lock()
		got := len(c.intents)
		c.mu.Unlock()
		if got >= count {
			break
		}
		select {
		case <-c.signal:
		case <-deadline:
			t.Fatalf("timed out waiting for %d intents, got %d", count, got)
		}
	}

	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]Intent, len(c.intents))
	copy(out, c.intents)
	return out
}

func TestSpoolReceiverDeliversFiredIntents(t *testing.T) {
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	collector := newIntentCollector()

	receiver := NewSpoolReceiver(dir, collector.handle, logger)
	require.NoError(t, receiver.Start())
	t.Cleanup(func() { _ = receiver.Close() })

	_, err := NewPendingIntent("PLAY").Fire(dir)
	require.NoError(t, err)
	_, err = NewPendingIntent("NEXT").Fire(dir)
	require.NoError(t, err)

	intents := collector.waitFor(t, 2)
	actions := []string{intents[0].Action, intents[1].Action}
	sort.Strings(actions)
	assert.Equal(t, []string{"NEXT", "PLAY"}, actions)

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 20*time.Millisecond)
}

func TestSpoolReceiverDrainsBacklogOnStart(t *testing.T) {
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	collector := newIntentCollector()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "old.intent"), []byte("NEXT"), 0o644))
	require.NoError(t, os.WriteFile(filepath.Join(dir, "ignored.txt"), []byte("PLAY"), 0o644))

	receiver := NewSpoolReceiver(dir, collector.handle, logger)
	require.NoError(t, receiver.Start())
	require.NoError(t, receiver.Start())

	intents := collector.waitFor(t, 1)
	require.NoError(t, receiver.Close())

	assert.Len(t, intents, 1)
	assert.Equal(t, "NEXT", intents[0].Action)
	_, err := os.Stat(filepath.Join(dir, "ignored.txt"))
	assert.NoError(t, err)
}

func TestSpoolReceiverDeliversEmptyFileWithoutAction(t *testing.T) {
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	collector := newIntentCollector()

	require.NoError(t, os.WriteFile(filepath.Join(dir, "blank.intent"), nil, 0o644))

	receiver := NewSpoolReceiver(dir, collector.handle, logger)
	require.NoError(t, receiver.Start())
	t.Cleanup(func() { _ = receiver.Close() })

	require.NoError(t, os.WriteFile(filepath.Join(dir, "spaces.intent"), []byte("  \n"), 0o644))

	intents := collector.waitFor(t, 2)
	for _, intent := range intents {
		assert.Empty(t, intent.Action)
		assert.NotEmpty(t, intent.ID)
		assert.Equal(t, SourceSpool, intent.Source)
	}

	require.Eventually(t, func() bool {
		entries, err := os.ReadDir(dir)
		return err == nil && len(entries) == 0
	}, 2*time.Second, 20*time.Millisecond)

	require.NoError(t, receiver.Close())
	assert.Len(t, collector.waitFor(t, 2), 2)
}

func TestSpoolReceiverWaitsForInPlaceWriterToSettle(t *testing.T) {
	dir := t.TempDir()
	logger, _ := logtest.NewNullLogger()
	collector := newIntentCollector()

	receiver := NewSpoolReceiver(dir, collector.handle, logger)
	receiver.settle = 300 * time.Millisecond
	require.NoError(t, receiver.Start())

	file, err := os.Create(filepath.Join(dir, "slow.intent"))
	require.NoError(t, err)
	_, err = file.WriteString("PL")
	require.NoError(t, err)
	time.Sleep(20 * time.Millisecond)
	_, err = file.WriteString("AY")
	require.NoError(t, err)
	require.NoError(t, file.Close())

	intents := collector.waitFor(t, 1)
	require.NoError(t, receiver.Close())

	assert.Len(t, collector.waitFor(t, 1), 1)
	assert.Equal(t, "PLAY", intents[0].Action)
}
