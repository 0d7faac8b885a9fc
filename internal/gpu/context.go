package gpu

import (
	"errors"
	"fmt"
	"sync"

	"github.com/xupit3r/kernelrun/internal/gpu/driver"
)

// handle gives a backend object exactly-once release semantics and ties it
// to the context that created it.
type handle struct {
	mu       sync.Mutex
	cx       *Context
	released bool
	what     string
	release  func() error
}

// Release frees the backend object. Calls after the first are no-ops.
func (h *handle) Release() error {
	h.mu.Lock()
	if h.released {
		h.mu.Unlock()
		return nil
	}
	h.released = true
	h.mu.Unlock()

	h.cx.forget(h)
	if err := h.release(); err != nil {
		return fmt.Errorf("release %s: %w", h.what, err)
	}
	return nil
}

// Released reports whether Release has run.
func (h *handle) Released() bool {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.released
}

func (h *handle) base() *handle { return h }

type resource interface {
	Release() error
	base() *handle
}

// Context owns a device association, one command queue, and every buffer,
// program and kernel created against it.
type Context struct {
	dev   *Device
	impl  driver.Context
	queue *Queue

	mu       sync.Mutex
	live     []resource
	released bool
}

// NewContext creates a context and its command queue on dev.
func NewContext(dev *Device) (*Context, error) {
	if dev == nil || dev.impl == nil {
		return nil, errorf(KindContextCreationFailed, "create context", "no device selected")
	}
	impl, err := dev.impl.CreateContext()
	if err != nil {
		return nil, newError(KindContextCreationFailed, "create context", err)
	}
	q, err := impl.CreateQueue()
	if err != nil {
		releaseOrWarn("context", impl.Release)
		return nil, newError(KindContextCreationFailed, "create queue", err)
	}

	cx := &Context{dev: dev, impl: impl}
	cx.queue = &Queue{cx: cx, impl: q}
	slogger().Debugf("gpu: context created on %s", dev)
	return cx, nil
}

// Device returns the device the context is bound to.
func (cx *Context) Device() *Device { return cx.dev }

// Queue returns the context's command queue.
func (cx *Context) Queue() *Queue { return cx.queue }

// Live returns the number of dependents not yet released.
func (cx *Context) Live() int {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	return len(cx.live)
}

// releaseOrWarn frees a resource that never reached its caller. The original
// failure is what gets returned, so a release error is only logged.
func releaseOrWarn(what string, release func() error) {
	if err := release(); err != nil {
		slogger().Warnf("gpu: release untracked %s: %v", what, err)
	}
}

func (cx *Context) track(op string, kind ErrorKind, r resource) error {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	if cx.released {
		return errorf(kind, op, "context already released")
	}
	cx.live = append(cx.live, r)
	return nil
}

func (cx *Context) forget(h *handle) {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	for i, r := range cx.live {
		if r.base() == h {
			cx.live = append(cx.live[:i], cx.live[i+1:]...)
			return
		}
	}
}

func (cx *Context) isReleased() bool {
	cx.mu.Lock()
	defer cx.mu.Unlock()
	return cx.released
}

// Release frees every dependent still alive in reverse creation order, then
// the queue, then the context itself. It is safe to call more than once and
// is meant to be deferred right after NewContext succeeds.
func (cx *Context) Release() error {
	cx.mu.Lock()
	if cx.released {
		cx.mu.Unlock()
		return nil
	}
	live := make([]resource, len(cx.live))
	copy(live, cx.live)
	cx.mu.Unlock()

	var errs []error
	for i := len(live) - 1; i >= 0; i-- {
		if err := live[i].Release(); err != nil {
			errs = append(errs, err)
		}
	}

	cx.mu.Lock()
	cx.released = true
	cx.mu.Unlock()

	if err := cx.queue.impl.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release queue: %w", err))
	}
	if err := cx.impl.Release(); err != nil {
		errs = append(errs, fmt.Errorf("release context: %w", err))
	}
	slogger().Debugf("gpu: context on %s released (%d dependents)", cx.dev, len(live))
	return errors.Join(errs...)
}
