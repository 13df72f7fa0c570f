package application

import (
	"context"
	"errors"
	"testing"

	"github.com/rolfea/book-buddy/internal/domain"
)

func TestSamplerNotReadyIsSilentSkip(t *testing.T) {
	s := NewFrameSampler(newTestLogger(t))

	frame, err := s.Grab(context.Background(), nil)
	if frame != nil || err != nil {
		t.Fatalf("got (%v, %v), want (nil, nil)", frame, err)
	}

	h := &fakeHandle{}
	frame, err = s.Grab(context.Background(), h)
	if frame != nil || err != nil {
		t.Fatalf("trackless stream: got (%v, %v), want (nil, nil)", frame, err)
	}
}

func TestSamplerReleasesPreviousFrame(t *testing.T) {
	s := NewFrameSampler(newTestLogger(t))
	h := newFakeHandle()

	for i := 1; i <= 5; i++ {
		frame, err := s.Grab(context.Background(), h)
		if err != nil {
			t.Fatalf("grab %d: %v", i, err)
		}
		if frame.Seq != uint64(i) {
			t.Fatalf("grab %d: seq %d", i, frame.Seq)
		}
		frame.Close()

		if live := h.track.Live(); live != 1 {
			t.Fatalf("after grab %d: %d live frames, want 1", i, live)
		}
		if released := h.track.Released(); released != i-1 {
			t.Fatalf("after grab %d: %d released, want %d", i, released, i-1)
		}
	}

	s.Close()
	if h.track.Live() != 0 {
		t.Fatal("close left the latest frame live")
	}
}

func TestSamplerErrorKeepsLatest(t *testing.T) {
	s := NewFrameSampler(newTestLogger(t))
	h := newFakeHandle()

	first, err := s.Grab(context.Background(), h)
	if err != nil {
		t.Fatalf("grab: %v", err)
	}
	first.Close()

	h.track.SetErr(errBoom)
	if _, err := s.Grab(context.Background(), h); !errors.Is(err, domain.ErrSample) {
		t.Fatalf("got %v, want ErrSample", err)
	}

	latest := s.Latest()
	if latest == nil || latest.Seq != 1 {
		t.Fatalf("latest frame replaced by a failed grab: %+v", latest)
	}
	latest.Close()
}

func TestSamplerPreviewOutlivesReplacement(t *testing.T) {
	s := NewFrameSampler(newTestLogger(t))
	h := newFakeHandle()

	frame, _ := s.Grab(context.Background(), h)
	frame.Close()

	preview := s.Latest()
	next, _ := s.Grab(context.Background(), h)
	next.Close()

	if preview.Released() {
		t.Fatal("frame released while a preview reference was held")
	}
	preview.Close()
	if !preview.Released() {
		t.Fatal("frame not released after the last reference was closed")
	}
}

func TestSamplerDiscardsAfterClose(t *testing.T) {
	s := NewFrameSampler(newTestLogger(t))
	h := newFakeHandle()

	s.Close()
	frame, err := s.Grab(context.Background(), h)
	if !errors.Is(err, domain.ErrCancelled) || frame != nil {
		t.Fatalf("got (%v, %v), want ErrCancelled", frame, err)
	}
	if h.track.Live() != 0 {
		t.Fatal("discarded frame was not released")
	}
}
