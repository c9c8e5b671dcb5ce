package engine

import (
	"errors"
	"fmt"
	"sort"
	"sync"
	"sync/atomic"

	"github.com/sirupsen/logrus"
)

// Registry maps engine identifiers to live handles. Reads go through a single
// atomically swapped map and never wait on writers; writers copy the map
// under mu. A nil *Registry is empty and ignores registrations.
type Registry struct {
	mu      sync.Mutex
	handles atomic.Pointer[map[string]*Handle]
	closed  atomic.Bool
	log     logrus.FieldLogger
}

func NewRegistry(logger logrus.FieldLogger) *Registry {
	if logger == nil {
		logger = logrus.StandardLogger()
	}

	registry := &Registry{
		log: logger.WithField("component", "engine-registry"),
	}
	empty := map[string]*Handle{}
	registry.handles.Store(&empty)
	return registry
}

// Register stores handle under id, replacing whatever was there. The replaced
// handle is not closed; whoever created it still owns its teardown.
func (r *Registry) Register(id string, handle *Handle) {
	if r == nil {
		logrus.WithField("engine", id).Warn("no engine registry, engine not registered")
		return
	}
	if handle == nil {
		r.logger().WithField("engine", id).Warn("ignoring nil engine handle")
		return
	}

	r.mu.Lock()
	defer r.mu.Unlock()

	if r.closed.Load() {
		r.logger().WithField("engine", id).Warn("registry closed, engine not registered")
		return
	}

	current := r.snapshot()
	next := make(map[string]*Handle, len(current)+1)
	for key, value := range current {
		next[key] = value
	}

	if previous, ok := current[id]; ok && previous != handle {
		r.logger().WithField("engine", id).Info("replacing registered engine")
	}

	next[id] = handle
	r.handles.Store(&next)
}

// Lookup returns the handle registered under id. A missing engine is an
// ordinary result, not an error.
func (r *Registry) Lookup(id string) (*Handle, bool) {
	if r == nil {
		return nil, false
	}

	handle, ok := r.snapshot()[id]
	return handle, ok
}

func (r *Registry) IDs() []string {
	if r == nil {
		return []string{}
	}

	handles := r.snapshot()
	ids := make([]string, 0, len(handles))
	for id := range handles {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// Close empties the registry and closes every handle it held. Later calls
// are no-ops.
func (r *Registry) Close() error {
	if r == nil {
		return nil
	}

	r.mu.Lock()
	if r.closed.Swap(true) {
		r.mu.Unlock()
		return nil
	}
	handles := r.snapshot()
	empty := map[string]*Handle{}
	r.handles.Store(&empty)
	r.mu.Unlock()

	var errs []error
	for id, handle := range handles {
		if err := handle.Close(); err != nil {
			errs = append(errs, fmt.Errorf("close engine %s: %w", id, err))
		}
	}

	return errors.Join(errs...)
}

func (r *Registry) logger() logrus.FieldLogger {
	if r.log == nil {
		return logrus.StandardLogger()
	}
	return r.log
}

func (r *Registry) snapshot() map[string]*Handle {
	if current := r.handles.Load(); current != nil {
		return *current
	}
	return nil
}
