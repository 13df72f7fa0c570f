package application

import (
	"context"
	"errors"
	"testing"

	"github.com/rolfea/book-buddy/internal/clock"
	"github.com/rolfea/book-buddy/internal/domain"
)

func TestDeduplicatorMarksRepeats(t *testing.T) {
	detector := &fakeDetector{}
	d := NewScanDeduplicator(detector, clock.NewManual(testStart))
	ctx := context.Background()

	detector.Set([]string{"A", "A", "B"}, []string{"A"})

	records, err := d.Observe(ctx, domain.NewFrame(nil, nil), d.Session())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	want := []domain.ScanRecord{
		{Value: "A", IsDuplicate: false},
		{Value: "A", IsDuplicate: true},
		{Value: "B", IsDuplicate: false},
	}
	if len(records) != len(want) {
		t.Fatalf("got %d records, want %d", len(records), len(want))
	}
	for i, w := range want {
		if records[i].Value != w.Value || records[i].IsDuplicate != w.IsDuplicate {
			t.Errorf("record %d: got {%s %v}, want {%s %v}", i,
				records[i].Value, records[i].IsDuplicate, w.Value, w.IsDuplicate)
		}
	}

	records, err = d.Observe(ctx, domain.NewFrame(nil, nil), d.Session())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(records) != 1 || records[0].Value != "A" || !records[0].IsDuplicate {
		t.Fatalf("second frame: got %+v", records)
	}
	if d.Len() != 2 {
		t.Fatalf("seen set size: got %d, want 2", d.Len())
	}
}

func TestDeduplicatorSkipsEmptyValues(t *testing.T) {
	detector := &fakeDetector{}
	d := NewScanDeduplicator(detector, clock.NewManual(testStart))

	detector.Set([]string{"", "X", ""})
	records, err := d.Observe(context.Background(), nil, d.Session())
	if err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if len(records) != 1 || records[0].Value != "X" {
		t.Fatalf("got %+v", records)
	}

	detector.Set(nil)
	records, err = d.Observe(context.Background(), nil, d.Session())
	if err != nil || len(records) != 0 {
		t.Fatalf("empty detection: records=%v err=%v", records, err)
	}
}

func TestDeduplicatorDetectionError(t *testing.T) {
	detector := &fakeDetector{}
	d := NewScanDeduplicator(detector, clock.NewManual(testStart))

	detector.Fail(errBoom)
	records, err := d.Observe(context.Background(), nil, d.Session())
	if !errors.Is(err, domain.ErrDetection) || !errors.Is(err, errBoom) {
		t.Fatalf("got %v, want detection error wrapping the cause", err)
	}
	if records != nil || d.Len() != 0 {
		t.Fatal("failed detection produced records")
	}
}

func TestDeduplicatorResetAndCancel(t *testing.T) {
	detector := &fakeDetector{}
	d := NewScanDeduplicator(detector, clock.NewManual(testStart))

	detector.Set([]string{"9780131103627"})
	if _, err := d.Observe(context.Background(), nil, d.Session()); err != nil {
		t.Fatalf("Observe: %v", err)
	}
	if !d.Seen("9780131103627") {
		t.Fatal("code not recorded")
	}

	d.Reset()
	if d.Seen("9780131103627") || d.Len() != 0 {
		t.Fatal("reset kept codes")
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := d.Observe(ctx, nil, d.Session()); !errors.Is(err, domain.ErrCancelled) {
		t.Fatalf("got %v, want ErrCancelled", err)
	}
	if d.Len() != 0 {
		t.Fatal("cancelled observation mutated the seen set")
	}
}

func TestDeduplicatorDiscardsPreviousSession(t *testing.T) {
	detector := &fakeDetector{}
	d := NewScanDeduplicator(detector, clock.NewManual(testStart))
	detector.Set([]string{"9780131103627"})

	old := d.Session()
	if next := d.Reset(); next == old || next != d.Session() {
		t.Fatalf("reset returned %d, session %d, previous %d", next, d.Session(), old)
	}

	records, err := d.Observe(context.Background(), nil, old)
	if !errors.Is(err, domain.ErrCancelled) || records != nil {
		t.Fatalf("stale session: records=%v err=%v", records, err)
	}
	if d.Seen("9780131103627") {
		t.Fatal("stale session wrote to the seen set")
	}

	records, err = d.Observe(context.Background(), nil, d.Session())
	if err != nil || len(records) != 1 || records[0].IsDuplicate {
		t.Fatalf("current session: records=%+v err=%v", records, err)
	}
}
