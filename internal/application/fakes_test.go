package application

import (
	"context"
	"errors"
	"fmt"
	"image"
	"sync"
	"testing"
	"time"

	"github.com/rolfea/book-buddy/internal/clock"
	"github.com/rolfea/book-buddy/internal/domain"
)

var testStart = time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC)

type testLogger struct {
	t *testing.T
}

func newTestLogger(t *testing.T) *testLogger {
	return &testLogger{t: t}
}

func (l *testLogger) Info(msg string, args ...interface{})  { l.t.Logf("INFO: "+msg, args...) }
func (l *testLogger) Warn(msg string, args ...interface{})  { l.t.Logf("WARN: "+msg, args...) }
func (l *testLogger) Error(msg string, args ...interface{}) { l.t.Logf("ERROR: "+msg, args...) }
func (l *testLogger) Debug(msg string, args ...interface{}) { l.t.Logf("DEBUG: "+msg, args...) }

type fakeCamera struct {
	mu        sync.Mutex
	available bool
	openErr   error
	handle    *fakeHandle
	opens     int
	// block, when set, is waited on inside Open
	block chan struct{}
}

func newFakeCamera() *fakeCamera {
	return &fakeCamera{
		available: true,
		handle:    newFakeHandle(),
	}
}

func (c *fakeCamera) Available() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.available
}

func (c *fakeCamera) Open(ctx context.Context) (StreamHandle, error) {
	c.mu.Lock()
	c.opens++
	block := c.block
	err := c.openErr
	handle := c.handle
	c.mu.Unlock()

	if block != nil {
		<-block
	}
	if err != nil {
		return nil, err
	}
	return handle, nil
}

func (c *fakeCamera) ListDevices() ([]domain.VideoDevice, error) {
	return []domain.VideoDevice{{ID: "fake0", Label: "Fake camera", Kind: "videoinput"}}, nil
}

type fakeHandle struct {
	mu      sync.Mutex
	track   *fakeTrack
	stops   int
	onEnded func(error)
}

func newFakeHandle() *fakeHandle {
	return &fakeHandle{track: newFakeTrack()}
}

func (h *fakeHandle) VideoTrack() VideoTrack {
	if h.track == nil {
		return nil
	}
	return h.track
}

func (h *fakeHandle) OnEnded(f func(error)) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.onEnded = f
}

func (h *fakeHandle) Stop() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.stops++
	return nil
}

func (h *fakeHandle) Stops() int {
	h.mu.Lock()
	defer h.mu.Unlock()
	return h.stops
}

// end simulates the stream ending on its own
func (h *fakeHandle) end(cause error) {
	h.mu.Lock()
	f := h.onEnded
	h.mu.Unlock()
	if f != nil {
		f(cause)
	}
}

type fakeTrack struct {
	mu       sync.Mutex
	grabs    int
	released int
	err      error
	frames   []*domain.Frame
}

func newFakeTrack() *fakeTrack {
	return &fakeTrack{}
}

func (t *fakeTrack) ID() string { return "fake-track" }

func (t *fakeTrack) GrabFrame(ctx context.Context) (*domain.Frame, error) {
	t.mu.Lock()
	defer t.mu.Unlock()

	t.grabs++
	if t.err != nil {
		return nil, t.err
	}
	frame := domain.NewFrame(image.NewGray(image.Rect(0, 0, 4, 4)), func() {
		t.mu.Lock()
		t.released++
		t.mu.Unlock()
	})
	t.frames = append(t.frames, frame)
	return frame, nil
}

func (t *fakeTrack) Grabs() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.grabs
}

func (t *fakeTrack) Released() int {
	t.mu.Lock()
	defer t.mu.Unlock()
	return t.released
}

// Live returns the number of grabbed frames not yet released
func (t *fakeTrack) Live() int {
	t.mu.Lock()
	frames := append([]*domain.Frame(nil), t.frames...)
	t.mu.Unlock()

	live := 0
	for _, f := range frames {
		if !f.Released() {
			live++
		}
	}
	return live
}

func (t *fakeTrack) SetErr(err error) {
	t.mu.Lock()
	defer t.mu.Unlock()
	t.err = err
}

// fakeDetector returns the queued results one call at a time, then repeats
// the last one
type fakeDetector struct {
	mu      sync.Mutex
	results [][]string
	err     error
	calls   int
}

func (d *fakeDetector) Detect(ctx context.Context, frame *domain.Frame) ([]string, error) {
	d.mu.Lock()
	defer d.mu.Unlock()

	d.calls++
	if d.err != nil {
		return nil, d.err
	}
	if len(d.results) == 0 {
		return nil, nil
	}
	r := d.results[0]
	if len(d.results) > 1 {
		d.results = d.results[1:]
	}
	return r, nil
}

func (d *fakeDetector) Set(results ...[]string) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.results = results
	d.err = nil
}

func (d *fakeDetector) Fail(err error) {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.err = err
}

func (d *fakeDetector) Calls() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return d.calls
}

// blockingDetector holds its first Detect call until release is closed
type blockingDetector struct {
	fakeDetector
	entered chan struct{}
	release chan struct{}
	once    sync.Once
}

func newBlockingDetector() *blockingDetector {
	return &blockingDetector{
		entered: make(chan struct{}),
		release: make(chan struct{}),
	}
}

func (d *blockingDetector) Detect(ctx context.Context, frame *domain.Frame) ([]string, error) {
	d.once.Do(func() {
		close(d.entered)
		<-d.release
	})
	return d.fakeDetector.Detect(ctx, frame)
}

// fakeSwitch records arm and disarm calls
type fakeSwitch struct {
	armed   bool
	arms    int
	disarms int
}

func (s *fakeSwitch) Arm() {
	s.armed = true
	s.arms++
}

func (s *fakeSwitch) Disarm() {
	s.armed = false
	s.disarms++
}

type fakeCatalog struct {
	mu      sync.Mutex
	books   map[string]domain.Book
	fail    map[string]error
	lookups []string
}

func (c *fakeCatalog) Lookup(ctx context.Context, isbn string) (domain.Book, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.lookups = append(c.lookups, isbn)
	if err, ok := c.fail[isbn]; ok {
		return domain.Book{}, err
	}
	book, ok := c.books[isbn]
	if !ok {
		return domain.Book{}, fmt.Errorf("lookup %s: %w", isbn, domain.ErrBookNotFound)
	}
	return book, nil
}

func (c *fakeCatalog) Lookups() []string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]string(nil), c.lookups...)
}

var errBoom = errors.New("boom")

type scannerFixture struct {
	clock    *clock.Manual
	camera   *fakeCamera
	detector *fakeDetector
	scanner  *ScannerService
	events   []domain.ScanEvent
}

func newScannerFixture(t *testing.T) *scannerFixture {
	t.Helper()

	f := &scannerFixture{
		clock:    clock.NewManual(testStart),
		camera:   newFakeCamera(),
		detector: &fakeDetector{},
	}
	f.scanner = NewScannerService(f.camera, f.detector, f.clock, ScannerConfig{
		Interval: 500 * time.Millisecond,
		Cooldown: 2000 * time.Millisecond,
	}, newTestLogger(t))
	f.scanner.Subscribe(func(e domain.ScanEvent) {
		f.events = append(f.events, e)
	})
	t.Cleanup(func() { f.scanner.Close() })
	return f
}

func (f *scannerFixture) track() *fakeTrack {
	return f.camera.handle.track
}
