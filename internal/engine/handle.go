package engine

import (
	"errors"
	"io"
	"sync"
)

// Handle is one running engine instance: the native runtime plus the
// messenger it exposes. Once registered it belongs to the Registry.
type Handle struct {
	id        string
	messenger Messenger
	native    io.Closer

	closeOnce sync.Once
	closeErr  error
}

func NewHandle(id string, messenger Messenger, native io.Closer) *Handle {
	return &Handle{
		id:        id,
		messenger: messenger,
		native:    native,
	}
}

func (h *Handle) ID() string {
	if h == nil {
		return ""
	}
	return h.id
}

func (h *Handle) Messenger() Messenger {
	if h == nil {
		return nil
	}
	return h.messenger
}

// Close tears down the messenger and then the native runtime. Only the
// first call has any effect.
func (h *Handle) Close() error {
	if h == nil {
		return nil
	}

	h.closeOnce.Do(func() {
		var errs []error
		if closer, ok := h.messenger.(io.Closer); ok && closer != nil {
			if err := closer.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		if h.native != nil {
			if err := h.native.Close(); err != nil {
				errs = append(errs, err)
			}
		}
		h.closeErr = errors.Join(errs...)
	})

	return h.closeErr
}
