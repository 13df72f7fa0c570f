package application

import (
	"context"
	"sync"

	"github.com/rolfea/book-buddy/internal/domain"
)

// FrameSampler grabs still frames and owns the latest one.
//
// The latest slot holds one reference. Installing a new frame closes the
// previous one first, so at most one latest frame is live per sampler.
// Overlapping grabs are last-writer-wins.
type FrameSampler struct {
	logger Logger

	mutex  sync.Mutex
	latest *domain.Frame
	seq    uint64
	closed bool
}

// NewFrameSampler creates a sampler
func NewFrameSampler(logger Logger) *FrameSampler {
	return &FrameSampler{logger: logger}
}

// Grab captures one frame from the stream and installs it as the latest one.
// It returns (nil, nil) when the stream is not ready. The returned frame holds
// a reference for the caller, who must Close it.
func (s *FrameSampler) Grab(ctx context.Context, stream StreamHandle) (*domain.Frame, error) {
	if stream == nil {
		return nil, nil
	}
	track := stream.VideoTrack()
	if track == nil {
		return nil, nil
	}

	frame, err := track.GrabFrame(ctx)
	if err != nil {
		return nil, domain.Wrap(domain.ErrSample, err)
	}
	if frame == nil {
		return nil, nil
	}

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || ctx.Err() != nil {
		frame.Close()
		return nil, domain.ErrCancelled
	}

	s.seq++
	frame.Seq = s.seq

	if s.latest != nil {
		s.latest.Close()
	}
	s.latest = frame
	frame.Retain()

	return frame, nil
}

// Latest returns a retained reference to the latest frame, or nil.
// The caller must Close it.
func (s *FrameSampler) Latest() *domain.Frame {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.latest == nil || !s.latest.Retain() {
		return nil
	}
	return s.latest
}

// ReleaseLatest frees the latest frame
func (s *FrameSampler) ReleaseLatest() {
	s.mutex.Lock()
	latest := s.latest
	s.latest = nil
	s.mutex.Unlock()

	if latest != nil {
		latest.Close()
	}
}

// Close releases the latest frame and discards grabs still in flight
func (s *FrameSampler) Close() {
	s.mutex.Lock()
	s.closed = true
	s.mutex.Unlock()

	s.ReleaseLatest()
}
