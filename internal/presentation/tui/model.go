// Package tui is the terminal dashboard of the scanner
package tui

import (
	"context"
	"fmt"
	"time"

	"github.com/charmbracelet/bubbles/viewport"
	tea "github.com/charmbracelet/bubbletea"

	"github.com/rolfea/book-buddy/internal/domain"
)

// Scanner is the part of the scanner service the dashboard drives
type Scanner interface {
	Open(ctx context.Context) error
	StartCapture() error
	StopCapture() error
	ResetSession() error
	Snapshot() domain.ScannerStatus
	Records() []domain.ScanRecord
}

// Books is the book lookup view, may be nil
type Books interface {
	Books() []domain.Book
	Failures() map[string]string
}

// DefaultRefresh is how often the dashboard polls the scanner
const DefaultRefresh = 250 * time.Millisecond

const maxMessages = 5

// Msg types
type tickMsg time.Time

type retryMsg struct {
	err error
}

type message struct {
	text    string
	at      time.Time
	isError bool
}

// Model holds the dashboard state
type Model struct {
	scanner Scanner
	books   Books
	refresh time.Duration

	width       int
	height      int
	currentTime time.Time
	retrying    bool

	snapshot  domain.ScannerStatus
	records   []domain.ScanRecord
	bookList  []domain.Book
	failures  map[string]string
	messages  []message
	recordsVP viewport.Model
}

// New returns a Model polling scanner every refresh
func New(scanner Scanner, books Books, refresh time.Duration) Model {
	if refresh <= 0 {
		refresh = DefaultRefresh
	}

	m := Model{
		scanner:     scanner,
		books:       books,
		refresh:     refresh,
		width:       80,
		height:      24,
		currentTime: time.Now(),
		recordsVP: func() viewport.Model {
			vp := viewport.New(80, 8)
			vp.MouseWheelEnabled = true
			return vp
		}(),
	}
	m.poll()
	return m
}

// Init starts polling
func (m Model) Init() tea.Cmd {
	return m.tickCmd()
}

// poll copies the scanner and lookup state into the model
func (m *Model) poll() {
	m.snapshot = m.scanner.Snapshot()
	m.records = m.scanner.Records()
	if m.books != nil {
		m.bookList = m.books.Books()
		m.failures = m.books.Failures()
	}
	m.recordsVP.SetContent(m.renderRecords())
	m.recordsVP.GotoBottom()
}

func (m *Model) addMessage(text string, isError bool) {
	m.messages = append(m.messages, message{
		text:    text,
		at:      time.Now(),
		isError: isError,
	})
	if len(m.messages) > maxMessages {
		m.messages = m.messages[1:]
	}
}

func (m *Model) report(action string, err error) {
	if err != nil {
		m.addMessage(fmt.Sprintf("%s: %v", action, err), true)
		return
	}
	m.addMessage(action, false)
}

func (m Model) tickCmd() tea.Cmd {
	return tea.Tick(m.refresh, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

// retryCmd acquires the camera off the UI loop
func (m Model) retryCmd() tea.Cmd {
	scanner := m.scanner
	return func() tea.Msg {
		return retryMsg{err: scanner.Open(context.Background())}
	}
}
