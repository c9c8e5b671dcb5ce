package broadcast

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

const defaultSettle = 100 * time.Millisecond

// SpoolReceiver delivers intents dropped into a directory. Every *.intent
// file is claimed by exactly one delivery and removed.
//
// A file is read once its events have been quiet for a short settle delay.
// Writers should still create the file under another name and rename it into
// place, as PendingIntent.Fire does: a slower in-place writer can be claimed
// half written. An empty file is delivered as an intent without an action.
type SpoolReceiver struct {
	dir     string
	handler Handler
	log     logrus.FieldLogger
	settle  time.Duration

	mu        sync.Mutex
	watcher   *fsnotify.Watcher
	started   bool
	closeOnce sync.Once
	loopWG    sync.WaitGroup
	deliverWG sync.WaitGroup

	pendingMu sync.Mutex
	pending   map[string]*time.Timer
}

func NewSpoolReceiver(dir string, handler Handler, logger logrus.FieldLogger) *SpoolReceiver {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	return &SpoolReceiver{
		dir:     dir,
		handler: handler,
		log:     logger.WithFields(logrus.Fields{"component": "spool-receiver", "dir": dir}),
		settle:  defaultSettle,
		pending: make(map[string]*time.Timer),
	}
}

func (r *SpoolReceiver) Dir() string {
	return r.dir
}

func (r *SpoolReceiver) Start() error {
	r.mu.Lock()
	defer r.mu.Unlock()

	if r.started {
		return nil
	}

	if err := os.MkdirAll(r.dir, 0o755); err != nil {
		return fmt.Errorf("create spool dir: %w", err)
	}

	watcher, err := fsnotify.NewWatcher()
	if err != nil {
		return fmt.Errorf("create spool watcher: %w", err)
	}
	if err := watcher.Add(r.dir); err != nil {
		watcher.Close()
		return fmt.Errorf("watch spool dir: %w", err)
	}

	r.watcher = watcher
	r.started = true

	r.loopWG.Add(1)
	go r.run(watcher)

	// Intents written while nobody was watching.
	entries, err := os.ReadDir(r.dir)
	if err != nil {
		r.log.WithError(err).Warn("spool backlog scan failed")
		return nil
	}
	for _, entry := range entries {
		if entry.IsDir() || !isIntentFile(entry.Name()) {
			continue
		}
		r.dispatch(filepath.Join(r.dir, entry.Name()))
	}

	return nil
}

// Close stops watching and waits for in-flight deliveries, including files
// still inside their settle delay.
func (r *SpoolReceiver) Close() error {
	var err error

	r.closeOnce.Do(func() {
		r.mu.Lock()
		watcher := r.watcher
		r.mu.Unlock()

		if watcher != nil {
			err = watcher.Close()
		}
		r.loopWG.Wait()
		r.deliverWG.Wait()
	})

	return err
}

func (r *SpoolReceiver) run(watcher *fsnotify.Watcher) {
	defer r.loopWG.Done()

	for {
		select {
		case event, ok := <-watcher.Events:
			if !ok {
				return
			}
			if !event.Has(fsnotify.Create) && !event.Has(fsnotify.Write) {
				continue
			}
			if !isIntentFile(event.Name) {
				continue
			}
			r.schedule(event.Name)
		case err, ok := <-watcher.Errors:
			if !ok {
				return
			}
			r.log.WithError(err).Warn("spool watcher error")
		}
	}
}

func (r *SpoolReceiver) dispatch(path string) {
	r.deliverWG.Add(1)
	go func() {
		defer r.deliverWG.Done()
		r.consume(path)
	}()
}

// schedule coalesces the events of one file into a single delivery that runs
// after the settle delay.
func (r *SpoolReceiver) schedule(path string) {
	r.pendingMu.Lock()
	defer r.pendingMu.Unlock()

	r.deliverWG.Add(1)
	if previous, ok := r.pending[path]; ok && previous.Stop() {
		r.deliverWG.Done()
	}

	var timer *time.Timer
	timer = time.AfterFunc(r.settle, func() {
		defer r.deliverWG.Done()

		r.pendingMu.Lock()
		if r.pending[path] == timer {
			delete(r.pending, path)
		}
		r.pendingMu.Unlock()

		r.consume(path)
	})
	r.pending[path] = timer
}

func (r *SpoolReceiver) consume(path string) {
	body, err := os.ReadFile(path)
	if err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.WithError(err).WithField("file", filepath.Base(path)).Warn("read intent failed")
		}
		return
	}

	// Whoever removes the file owns the intent.
	if err := os.Remove(path); err != nil {
		if !errors.Is(err, fs.ErrNotExist) {
			r.log.WithError(err).WithField("file", filepath.Base(path)).Warn("claim intent failed")
		}
		return
	}

	r.handler(parseIntent(body))
}

func parseIntent(body []byte) Intent {
	var intent Intent
	trimmed := strings.TrimSpace(string(body))

	if strings.HasPrefix(trimmed, "{") {
		if err := json.Unmarshal([]byte(trimmed), &intent); err != nil {
			intent = Intent{}
		}
	} else {
		intent.Action = trimmed
	}

	if intent.ID == "" {
		intent.ID = uuid.NewString()
	}
	intent.Source = SourceSpool
	intent.ReceivedAt = time.Now().UTC()
	return intent
}

func isIntentFile(name string) bool {
	return strings.HasSuffix(name, intentExt)
}
