package application

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/rolfea/book-buddy/internal/clock"
	"github.com/rolfea/book-buddy/internal/domain"
)

// ScannerConfig holds the capture timing
type ScannerConfig struct {
	Interval time.Duration // Sampling cadence
	Cooldown time.Duration // Pause after a new code was found
}

// ScannerService runs the capture, sample, detect, dedup and cooldown cycle
type ScannerService struct {
	camera    Camera
	acquirer  *StreamAcquirer
	sampler   *FrameSampler
	scheduler *CaptureScheduler
	gate      *CooldownGate
	dedup     *ScanDeduplicator
	clock     clock.Clock
	logger    Logger

	ctx    context.Context
	cancel context.CancelFunc

	mutex       sync.Mutex
	state       domain.CaptureState
	wantCapture bool
	epoch       uint64 // Bumped by every start and stop; ticks compare against it
	sessionID   string
	session     uint64 // Dedup token of the current session
	records     []domain.ScanRecord
	stats       domain.ScanStats
	err         error
	frameErr    error
	closed      bool

	listeners  map[uint64]Listener
	listenerID uint64
}

// NewScannerService creates the scanner. The camera is not opened until Open.
func NewScannerService(camera Camera, detector Detector, clk clock.Clock, config ScannerConfig, logger Logger) *ScannerService {
	ctx, cancel := context.WithCancel(context.Background())

	s := &ScannerService{
		camera:    camera,
		acquirer:  NewStreamAcquirer(camera, logger),
		sampler:   NewFrameSampler(logger),
		dedup:     NewScanDeduplicator(detector, clk),
		clock:     clk,
		logger:    logger,
		ctx:       ctx,
		cancel:    cancel,
		state:     domain.Idle,
		sessionID: uuid.NewString(),
		listeners: make(map[uint64]Listener),
	}
	s.scheduler = NewCaptureScheduler(clk, config.Interval, s.sample)
	s.gate = NewCooldownGate(clk, config.Cooldown, s.scheduler)
	s.gate.Supervise(s.cooldownElapsed)

	return s
}

// ListDevices returns the available capture devices
func (s *ScannerService) ListDevices() ([]domain.VideoDevice, error) {
	devices, err := s.camera.ListDevices()
	if err != nil {
		s.logger.Error("Error listing devices: %v", err)
		return nil, err
	}
	return devices, nil
}

// Open acquires the camera stream. It is also the retry entry point after a
// permission or device error.
func (s *ScannerService) Open(ctx context.Context) error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return domain.ErrClosed
	}
	if s.state != domain.Idle {
		s.mutex.Unlock()
		return domain.ErrInvalidTransition
	}
	s.mutex.Unlock()

	s.sampler.ReleaseLatest()

	handle, err := s.acquirer.Acquire(ctx)

	s.mutex.Lock()
	defer s.mutex.Unlock()

	if errors.Is(err, domain.ErrCancelled) {
		return err
	}
	if err != nil {
		s.err = err
		return err
	}
	if s.closed {
		return domain.ErrClosed
	}
	s.err = nil

	handle.OnEnded(func(cause error) {
		s.streamEnded(handle, cause)
	})
	return nil
}

// StartCapture arms sampling. Valid only from Idle with a ready stream.
func (s *ScannerService) StartCapture() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return domain.ErrClosed
	}
	if s.state != domain.Idle {
		return domain.ErrInvalidTransition
	}
	if !s.acquirer.Ready() {
		return domain.ErrNotReady
	}

	s.wantCapture = true
	s.epoch++
	s.state = domain.Armed
	s.scheduler.Arm()

	s.logger.Info("Capture started (interval %v, cooldown %v)", s.scheduler.Interval(), s.gate.Duration())
	return nil
}

// StopCapture disarms sampling and drops any pending cooldown
func (s *ScannerService) StopCapture() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.state != domain.Armed && s.state != domain.CoolingDown {
		return domain.ErrInvalidTransition
	}
	s.halt()

	s.logger.Info("Capture stopped")
	return nil
}

// ResetSession starts a new scanning session with an empty seen set
func (s *ScannerService) ResetSession() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed {
		return domain.ErrClosed
	}
	if s.state != domain.Idle {
		return domain.ErrInvalidTransition
	}

	s.sessionID = uuid.NewString()
	s.session = s.dedup.Reset()
	s.records = nil

	s.logger.Info("New scanning session %s", s.sessionID)
	return nil
}

// Subscribe registers a listener for scan events. Listeners run on the
// sampling goroutine and must not block. The returned func unregisters it.
func (s *ScannerService) Subscribe(listener Listener) func() {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	s.listenerID++
	id := s.listenerID
	s.listeners[id] = listener

	return func() {
		s.mutex.Lock()
		defer s.mutex.Unlock()
		delete(s.listeners, id)
	}
}

// State returns the capture state
func (s *ScannerService) State() domain.CaptureState {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.state
}

// Ready reports whether the camera stream is live
func (s *ScannerService) Ready() bool {
	return s.acquirer.Ready()
}

// Err returns the acquisition or stream error, nil when healthy
func (s *ScannerService) Err() error {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.err
}

// LatestFrame returns the most recent frame for preview, or nil.
// The caller must Close it.
func (s *ScannerService) LatestFrame() *domain.Frame {
	return s.sampler.Latest()
}

// Records returns the scan records of the current session
func (s *ScannerService) Records() []domain.ScanRecord {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	records := make([]domain.ScanRecord, len(s.records))
	copy(records, s.records)
	return records
}

// SessionID returns the current session identifier
func (s *ScannerService) SessionID() string {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.sessionID
}

// Stats returns the pipeline counters
func (s *ScannerService) Stats() domain.ScanStats {
	s.mutex.Lock()
	defer s.mutex.Unlock()
	return s.stats
}

// Snapshot returns the observable state in one consistent read
func (s *ScannerService) Snapshot() domain.ScannerStatus {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	status := domain.ScannerStatus{
		State:         s.state.String(),
		Ready:         s.acquirer.Ready(),
		SessionID:     s.sessionID,
		Records:       len(s.records),
		DistinctCodes: s.dedup.Len(),
		Stats:         s.stats,
	}
	if s.err != nil {
		status.Error = s.err.Error()
	}
	if s.frameErr != nil {
		status.LastFrameError = s.frameErr.Error()
	}
	return status
}

// Close tears the scanner down: scheduler, cooldown, latest frame, then the
// stream. Results still in flight are discarded.
func (s *ScannerService) Close() error {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return nil
	}
	s.closed = true
	s.cancel()
	s.wantCapture = false
	s.epoch++
	s.scheduler.Stop()
	s.gate.Stop()
	s.state = domain.Idle
	s.listeners = make(map[uint64]Listener)
	s.mutex.Unlock()

	s.sampler.Close()
	s.acquirer.Release()

	s.logger.Info("Scanner closed")
	return nil
}

// halt returns to Idle. Called with the mutex held.
func (s *ScannerService) halt() {
	s.wantCapture = false
	s.epoch++
	s.scheduler.Disarm()
	s.gate.Cancel()
	s.state = domain.Idle
}

// cooldownElapsed re-arms only if capture is still wanted
func (s *ScannerService) cooldownElapsed(gen uint64) {
	s.mutex.Lock()
	defer s.mutex.Unlock()

	if s.closed || !s.wantCapture || s.state != domain.CoolingDown {
		return
	}
	if s.gate.Release(gen) {
		s.state = domain.Armed
		s.logger.Debug("Cooldown elapsed, capture re-armed")
	}
}

func (s *ScannerService) streamEnded(handle StreamHandle, cause error) {
	if !s.acquirer.Invalidate(handle, cause) {
		return
	}

	s.mutex.Lock()
	if s.state != domain.Idle {
		s.halt()
	}
	s.err = s.acquirer.Err()
	err := s.err
	s.mutex.Unlock()

	s.sampler.ReleaseLatest()
	s.logger.Error("Camera stream ended: %v", err)
}

// sample is the scheduler tick: grab a frame, run it through the
// deduplicator and trip the cooldown on new codes.
func (s *ScannerService) sample() {
	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	ctx := s.ctx
	epoch := s.epoch
	session := s.session
	s.stats.Ticks++
	s.mutex.Unlock()

	frame, err := s.sampler.Grab(ctx, s.acquirer.Handle())
	if err != nil {
		if !errors.Is(err, domain.ErrCancelled) {
			s.frameFailed(err, &s.stats.SampleErrors)
		}
		return
	}
	s.mutex.Lock()
	if frame == nil {
		s.stats.Skips++
		s.mutex.Unlock()
		return
	}
	s.stats.Grabs++
	s.mutex.Unlock()
	defer frame.Close()

	records, err := s.dedup.Observe(ctx, frame, session)
	if err != nil {
		if !errors.Is(err, domain.ErrCancelled) {
			s.frameFailed(err, &s.stats.DetectionErrors)
		}
		return
	}

	var fresh []string
	for _, r := range records {
		if !r.IsDuplicate {
			fresh = append(fresh, r.Value)
		}
	}

	s.mutex.Lock()
	if s.closed {
		s.mutex.Unlock()
		return
	}
	// The frame predates a session reset
	if session != s.session {
		s.mutex.Unlock()
		s.logger.Debug("Dropping result of frame %d from a previous session", frame.Seq)
		return
	}
	s.stats.Records += uint64(len(records))
	s.records = append(s.records, records...)
	s.frameErr = nil

	if len(fresh) == 0 {
		s.mutex.Unlock()
		return
	}

	if s.wantCapture && epoch == s.epoch {
		s.gate.Trip()
		s.state = domain.CoolingDown
		s.stats.CooldownTrips++
	}

	event := domain.ScanEvent{
		SessionID: s.sessionID,
		Codes:     fresh,
		Records:   records,
		FrameSeq:  frame.Seq,
		At:        s.clock.Now(),
	}
	listeners := make([]Listener, 0, len(s.listeners))
	for _, l := range s.listeners {
		listeners = append(listeners, l)
	}
	s.stats.Notifications++
	s.mutex.Unlock()

	s.logger.Info("New code(s) found: %v", fresh)
	for _, l := range listeners {
		l(event)
	}
}

func (s *ScannerService) frameFailed(err error, counter *uint64) {
	s.mutex.Lock()
	*counter++
	s.frameErr = err
	s.mutex.Unlock()

	s.logger.Warn("Frame skipped: %v", err)
}
