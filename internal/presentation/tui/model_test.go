package tui

import (
	"context"
	"strings"
	"testing"
	"time"

	tea "github.com/charmbracelet/bubbletea"

	"github.com/rolfea/book-buddy/internal/domain"
)

type fakeScanner struct {
	state   string
	ready   bool
	openErr error
	opens   int
	resets  int
	records []domain.ScanRecord
}

func (s *fakeScanner) Open(ctx context.Context) error {
	s.opens++
	if s.openErr == nil {
		s.ready = true
	}
	return s.openErr
}

func (s *fakeScanner) StartCapture() error {
	if !s.ready {
		return domain.ErrNotReady
	}
	s.state = "armed"
	return nil
}

func (s *fakeScanner) StopCapture() error {
	s.state = "idle"
	return nil
}

func (s *fakeScanner) ResetSession() error {
	s.resets++
	s.records = nil
	return nil
}

func (s *fakeScanner) Snapshot() domain.ScannerStatus {
	return domain.ScannerStatus{State: s.state, Ready: s.ready, SessionID: "0b7f6c1e", Records: len(s.records)}
}

func (s *fakeScanner) Records() []domain.ScanRecord {
	return s.records
}

type fakeBooks struct{}

func (fakeBooks) Books() []domain.Book {
	return []domain.Book{{ISBN: "9780131103627", Title: "The C Programming Language", Author: "Brian W. Kernighan", PublishedYear: 1978}}
}

func (fakeBooks) Failures() map[string]string {
	return map[string]string{"9780000000001": "book not found"}
}

func key(r rune) tea.KeyMsg {
	return tea.KeyMsg{Type: tea.KeyRunes, Runes: []rune{r}}
}

func update(t *testing.T, m Model, msg tea.Msg) (Model, tea.Cmd) {
	t.Helper()

	next, cmd := m.Update(msg)
	model, ok := next.(Model)
	if !ok {
		t.Fatalf("Update returned %T", next)
	}
	return model, cmd
}

func TestToggleCapture(t *testing.T) {
	s := &fakeScanner{state: "idle", ready: true}
	m := New(s, nil, time.Second)

	m, _ = update(t, m, key('s'))
	if s.state != "armed" {
		t.Fatalf("state %s after start", s.state)
	}
	if !strings.Contains(m.View(), "ARMED") {
		t.Fatalf("view does not show the armed state:\n%s", m.View())
	}

	m, _ = update(t, m, key('s'))
	if s.state != "idle" {
		t.Fatalf("state %s after stop", s.state)
	}
}

func TestStartFailureIsReported(t *testing.T) {
	s := &fakeScanner{state: "idle"}
	m := New(s, nil, time.Second)

	m, _ = update(t, m, key('s'))
	if !strings.Contains(m.View(), domain.ErrNotReady.Error()) {
		t.Fatalf("view does not report the error:\n%s", m.View())
	}
}

func TestRetryCamera(t *testing.T) {
	s := &fakeScanner{state: "idle"}
	m := New(s, nil, time.Second)

	m, cmd := update(t, m, key('r'))
	if cmd == nil {
		t.Fatal("retry returned no command")
	}

	// Retry in flight is not repeated
	_, again := update(t, m, key('r'))
	if again != nil {
		t.Fatal("second retry started while the first was in flight")
	}

	m, _ = update(t, m, cmd())
	if s.opens != 1 || !m.snapshot.Ready {
		t.Fatalf("opens=%d ready=%v", s.opens, m.snapshot.Ready)
	}
	if !strings.Contains(m.View(), "Camera opened") {
		t.Fatalf("view:\n%s", m.View())
	}
}

func TestTickPollsRecordsAndBooks(t *testing.T) {
	s := &fakeScanner{state: "cooling_down", ready: true}
	m := New(s, fakeBooks{}, time.Second)

	s.records = []domain.ScanRecord{
		{Value: "9780131103627", FrameSeq: 1},
		{Value: "9780131103627", FrameSeq: 2, IsDuplicate: true},
	}
	m, cmd := update(t, m, tickMsg(time.Now()))
	if cmd == nil {
		t.Fatal("tick did not schedule the next one")
	}

	view := m.View()
	for _, want := range []string{"Scans (2)", "(seen)", "The C Programming Language", "(1978)", "9780000000001: book not found", "COOLING_DOWN"} {
		if !strings.Contains(view, want) {
			t.Errorf("view is missing %q", want)
		}
	}
}

func TestNewSessionAndQuit(t *testing.T) {
	s := &fakeScanner{state: "idle", ready: true, records: []domain.ScanRecord{{Value: "A"}}}
	m := New(s, nil, time.Second)

	m, _ = update(t, m, key('n'))
	if s.resets != 1 || len(m.records) != 0 {
		t.Fatalf("resets=%d records=%d", s.resets, len(m.records))
	}

	_, cmd := update(t, m, key('q'))
	if cmd == nil {
		t.Fatal("quit returned no command")
	}
	if _, ok := cmd().(tea.QuitMsg); !ok {
		t.Fatal("q did not quit")
	}
}
