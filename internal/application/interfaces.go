package application

import (
	"context"

	"github.com/rolfea/book-buddy/internal/domain"
)

// Camera is the camera capability
type Camera interface {
	// Available reports whether the host can provide a camera stream at all
	Available() bool

	// Open requests exclusive access to a camera and returns its live stream
	Open(ctx context.Context) (StreamHandle, error)

	// ListDevices returns the available capture devices
	ListDevices() ([]domain.VideoDevice, error)
}

// StreamHandle is a live camera stream
type StreamHandle interface {
	// VideoTrack returns the stream's video track, nil if it has none
	VideoTrack() VideoTrack

	// OnEnded registers a callback fired when the stream ends on its own
	OnEnded(func(error))

	// Stop stops every track of the stream
	Stop() error
}

// VideoTrack is the frame-grab capability of a video track
type VideoTrack interface {
	ID() string

	// GrabFrame captures one still frame. The caller owns the returned frame.
	GrabFrame(ctx context.Context) (*domain.Frame, error)
}

// Detector is the barcode detector capability, configured with one symbology
type Detector interface {
	// Detect returns the raw values found in the frame, possibly none
	Detect(ctx context.Context, frame *domain.Frame) ([]string, error)
}

// Catalog resolves book metadata for a scanned code
type Catalog interface {
	Lookup(ctx context.Context, isbn string) (domain.Book, error)
}

// Listener receives scan events
type Listener func(event domain.ScanEvent)

// Logger is the logging interface used by the application layer
type Logger interface {
	Info(msg string, args ...interface{})
	Warn(msg string, args ...interface{})
	Error(msg string, args ...interface{})
	Debug(msg string, args ...interface{})
}
