package application

import (
	"context"
	"errors"
	"sync"

	"github.com/rolfea/book-buddy/internal/domain"
)

// StreamAcquirer obtains and owns the live camera stream.
// At most one handle is live at a time.
type StreamAcquirer struct {
	camera Camera
	logger Logger

	mutex  sync.Mutex
	handle StreamHandle
	ready  bool
	err    error
	fatal  error
	gen    uint64 // Bumped by every Acquire and Release; stale acquisitions compare against it
}

// NewStreamAcquirer creates an acquirer for the given camera
func NewStreamAcquirer(camera Camera, logger Logger) *StreamAcquirer {
	return &StreamAcquirer{
		camera: camera,
		logger: logger,
	}
}

// Acquire opens the camera stream. A previous handle is released first.
func (a *StreamAcquirer) Acquire(ctx context.Context) (StreamHandle, error) {
	a.mutex.Lock()
	if a.fatal != nil {
		err := a.fatal
		a.mutex.Unlock()
		return nil, err
	}

	prev := a.handle
	a.handle = nil
	a.ready = false
	a.gen++
	gen := a.gen
	a.mutex.Unlock()

	if prev != nil {
		a.stop(prev)
	}

	if a.camera == nil || !a.camera.Available() {
		err := domain.Wrap(domain.ErrCapabilityUnavailable, errors.New("camera API not available"))
		a.mutex.Lock()
		a.fatal = err
		a.err = err
		a.mutex.Unlock()
		a.logger.Error("Camera capability unavailable")
		return nil, err
	}

	handle, err := a.camera.Open(ctx)

	a.mutex.Lock()
	if gen != a.gen || ctx.Err() != nil {
		// Torn down while the camera was negotiating
		a.mutex.Unlock()
		if handle != nil {
			a.stop(handle)
		}
		a.logger.Debug("Discarding stale stream acquisition")
		return nil, domain.ErrCancelled
	}

	if err != nil {
		err = classifyAcquireError(err)
		a.err = err
		if domain.Fatal(err) {
			a.fatal = err
		}
		a.mutex.Unlock()
		a.logger.Error("Camera acquisition failed: %v", err)
		return nil, err
	}

	if handle == nil {
		err = domain.Wrap(domain.ErrDevice, errors.New("camera returned no stream"))
		a.err = err
		a.mutex.Unlock()
		return nil, err
	}

	a.handle = handle
	a.ready = true
	a.err = nil
	a.mutex.Unlock()

	a.logger.Info("Camera stream ready")
	return handle, nil
}

// Release stops the live stream and cancels any acquisition in flight.
// Safe to call repeatedly and with no stream.
func (a *StreamAcquirer) Release() {
	a.mutex.Lock()
	a.gen++
	handle := a.handle
	a.handle = nil
	a.ready = false
	a.mutex.Unlock()

	if handle != nil {
		a.stop(handle)
		a.logger.Info("Camera stream released")
	}
}

// Invalidate drops the handle after the stream ended on its own and records
// the cause. It reports false if handle is no longer the live one.
func (a *StreamAcquirer) Invalidate(handle StreamHandle, cause error) bool {
	a.mutex.Lock()
	if a.handle == nil || a.handle != handle {
		a.mutex.Unlock()
		return false
	}
	a.gen++
	a.handle = nil
	a.ready = false
	a.err = domain.Wrap(domain.ErrDevice, cause)
	a.mutex.Unlock()

	a.stop(handle)
	return true
}

// Handle returns the live stream, nil unless ready
func (a *StreamAcquirer) Handle() StreamHandle {
	a.mutex.Lock()
	defer a.mutex.Unlock()

	if !a.ready {
		return nil
	}
	return a.handle
}

// Ready reports whether a stream is live
func (a *StreamAcquirer) Ready() bool {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.ready
}

// Err returns the last acquisition or stream error
func (a *StreamAcquirer) Err() error {
	a.mutex.Lock()
	defer a.mutex.Unlock()
	return a.err
}

func (a *StreamAcquirer) stop(handle StreamHandle) {
	if err := handle.Stop(); err != nil {
		a.logger.Error("Error stopping camera tracks: %v", err)
	}
}

// classifyAcquireError maps a camera failure onto an acquisition error kind.
// Errors that already carry a kind are kept as is.
func classifyAcquireError(err error) error {
	switch {
	case errors.Is(err, domain.ErrCapabilityUnavailable),
		errors.Is(err, domain.ErrPermissionDenied),
		errors.Is(err, domain.ErrDevice):
		return err
	default:
		return domain.Wrap(domain.ErrDevice, err)
	}
}
