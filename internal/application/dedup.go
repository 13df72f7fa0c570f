package application

import (
	"context"
	"sync"

	"github.com/rolfea/book-buddy/internal/clock"
	"github.com/rolfea/book-buddy/internal/domain"
)

// ScanDeduplicator turns detector output into scan records against the set
// of codes already seen in the session
type ScanDeduplicator struct {
	detector Detector
	clock    clock.Clock

	mutex   sync.Mutex
	seen    map[string]struct{}
	session uint64 // Bumped by Reset
}

// NewScanDeduplicator creates a deduplicator with an empty seen set
func NewScanDeduplicator(detector Detector, clk clock.Clock) *ScanDeduplicator {
	return &ScanDeduplicator{
		detector: detector,
		clock:    clk,
		seen:     make(map[string]struct{}),
	}
}

// Observe runs the detector on frame and returns one record per non-empty
// value, in detector order. A value is a duplicate if it was seen before,
// including earlier in the same result list. session is the Session token
// taken when the frame was grabbed; if a Reset happened since, the result
// is discarded with domain.ErrCancelled and the seen set is left untouched.
func (d *ScanDeduplicator) Observe(ctx context.Context, frame *domain.Frame, session uint64) ([]domain.ScanRecord, error) {
	values, err := d.detector.Detect(ctx, frame)
	if err != nil {
		return nil, domain.Wrap(domain.ErrDetection, err)
	}
	if ctx.Err() != nil {
		return nil, domain.ErrCancelled
	}

	var seq uint64
	if frame != nil {
		seq = frame.Seq
	}
	now := d.clock.Now()

	d.mutex.Lock()
	defer d.mutex.Unlock()

	if session != d.session {
		return nil, domain.ErrCancelled
	}

	var records []domain.ScanRecord
	for _, value := range values {
		if value == "" {
			continue
		}
		_, dup := d.seen[value]
		records = append(records, domain.ScanRecord{
			Value:       value,
			IsDuplicate: dup,
			FrameSeq:    seq,
			At:          now,
		})
		d.seen[value] = struct{}{}
	}
	return records, nil
}

// Reset clears the seen set for a new session and returns its token
func (d *ScanDeduplicator) Reset() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	d.seen = make(map[string]struct{})
	d.session++
	return d.session
}

// Session returns the token of the current session
func (d *ScanDeduplicator) Session() uint64 {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return d.session
}

// Seen reports whether code was already observed in the session
func (d *ScanDeduplicator) Seen(code string) bool {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	_, ok := d.seen[code]
	return ok
}

// Len returns the number of distinct codes observed
func (d *ScanDeduplicator) Len() int {
	d.mutex.Lock()
	defer d.mutex.Unlock()
	return len(d.seen)
}
