package domain

import (
	"image"
	"sync"
	"time"
)

// Frame is a captured still image that must be released explicitly.
//
// A frame is reference counted: NewFrame returns it holding one reference,
// Retain adds one and Close drops one. The release function passed to
// NewFrame runs exactly once, when the last reference is closed. After that
// Image returns nil.
type Frame struct {
	Width      int
	Height     int
	Seq        uint64
	CapturedAt time.Time

	mu       sync.Mutex
	img      image.Image
	release  func()
	refs     int
	released bool
}

// NewFrame wraps an image and its release function
func NewFrame(img image.Image, release func()) *Frame {
	f := &Frame{
		img:        img,
		release:    release,
		refs:       1,
		CapturedAt: time.Now(),
	}
	if img != nil {
		b := img.Bounds()
		f.Width = b.Dx()
		f.Height = b.Dy()
	}
	return f
}

// Image returns the pixel data, or nil once the frame has been released
func (f *Frame) Image() image.Image {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.img
}

// Retain adds a reference. It reports false if the frame is already released.
func (f *Frame) Retain() bool {
	f.mu.Lock()
	defer f.mu.Unlock()

	if f.released {
		return false
	}
	f.refs++
	return true
}

// Close drops a reference and frees the pixel data with the last one.
// Closing a released frame is a no-op.
func (f *Frame) Close() error {
	f.mu.Lock()
	if f.released {
		f.mu.Unlock()
		return nil
	}
	f.refs--
	if f.refs > 0 {
		f.mu.Unlock()
		return nil
	}

	f.released = true
	release := f.release
	f.release = nil
	f.img = nil
	f.mu.Unlock()

	if release != nil {
		release()
	}
	return nil
}

// Released reports whether the pixel data has been freed
func (f *Frame) Released() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.released
}
