package tui

import (
	"fmt"
	"sort"
	"strings"

	"github.com/charmbracelet/lipgloss"
)

// Style definitions
var (
	headerStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("62")).
			Foreground(lipgloss.Color("0")).
			Padding(0, 1)

	statusBarStyle = lipgloss.NewStyle().
			Background(lipgloss.Color("237")).
			Foreground(lipgloss.Color("250")).
			Padding(0, 1)

	sectionStyle = lipgloss.NewStyle().
			Bold(true).
			Foreground(lipgloss.Color("62"))

	mutedStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("241"))

	errorStyle = lipgloss.NewStyle().
			Foreground(lipgloss.Color("196"))

	stateStyles = map[string]lipgloss.Style{
		"idle":         lipgloss.NewStyle().Foreground(lipgloss.Color("250")),
		"armed":        lipgloss.NewStyle().Foreground(lipgloss.Color("42")).Bold(true),
		"cooling_down": lipgloss.NewStyle().Foreground(lipgloss.Color("214")).Bold(true),
	}
)

// View renders the UI
func (m Model) View() string {
	timeStr := m.currentTime.Format("15:04:05")

	headerContent := lipgloss.JoinHorizontal(
		lipgloss.Center,
		"Book Buddy",
		lipgloss.NewStyle().
			Width(max(m.width-12, 0)).
			Align(lipgloss.Right).
			Render(timeStr),
	)
	header := headerStyle.Width(m.width).Render(headerContent)

	sections := []string{
		header,
		m.renderScanner(),
		sectionStyle.Render(fmt.Sprintf("Scans (%d)", len(m.records))),
		m.recordsVP.View(),
		m.renderBooks(),
		m.renderMessages(),
	}

	statusBar := statusBarStyle.Width(m.width).Render(
		"s: start/stop | r: retry camera | n: new session | q: quit",
	)
	sections = append(sections, statusBar)

	return strings.Join(sections, "\n")
}

func (m Model) renderScanner() string {
	var b strings.Builder

	state := m.snapshot.State
	style, ok := stateStyles[state]
	if !ok {
		style = mutedStyle
	}
	fmt.Fprintf(&b, "State: %s", style.Render(strings.ToUpper(state)))

	camera := "ready"
	if !m.snapshot.Ready {
		camera = "not ready"
	}
	if m.retrying {
		camera = "opening..."
	}
	fmt.Fprintf(&b, "   Camera: %s   Session: %s\n", camera, m.snapshot.SessionID)

	if m.snapshot.Error != "" {
		b.WriteString(errorStyle.Render("Camera error: "+m.snapshot.Error) + "\n")
	}
	if m.snapshot.LastFrameError != "" {
		b.WriteString(mutedStyle.Render("Last frame error: "+m.snapshot.LastFrameError) + "\n")
	}

	stats := m.snapshot.Stats
	b.WriteString(mutedStyle.Render(fmt.Sprintf(
		"ticks %d  grabs %d  skips %d  errors %d/%d  codes %d  events %d",
		stats.Ticks, stats.Grabs, stats.Skips,
		stats.SampleErrors, stats.DetectionErrors,
		m.snapshot.DistinctCodes, stats.Notifications,
	)))

	return b.String()
}

func (m Model) renderRecords() string {
	if len(m.records) == 0 {
		return mutedStyle.Render("No codes scanned yet")
	}

	lines := make([]string, 0, len(m.records))
	for _, record := range m.records {
		line := fmt.Sprintf("%s  %-20s frame %d", record.At.Format("15:04:05.000"), record.Value, record.FrameSeq)
		if record.IsDuplicate {
			line = mutedStyle.Render(line + "  (seen)")
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}

func (m Model) renderBooks() string {
	if m.books == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString(sectionStyle.Render(fmt.Sprintf("Books (%d)", len(m.bookList))) + "\n")
	for _, book := range m.bookList {
		fmt.Fprintf(&b, "• %s - %s", book.Title, book.Author)
		if book.PublishedYear > 0 {
			fmt.Fprintf(&b, " (%d)", book.PublishedYear)
		}
		b.WriteString(mutedStyle.Render("  "+book.ISBN) + "\n")
	}

	codes := make([]string, 0, len(m.failures))
	for code := range m.failures {
		codes = append(codes, code)
	}
	sort.Strings(codes)
	for _, code := range codes {
		b.WriteString(errorStyle.Render(fmt.Sprintf("• %s: %s", code, m.failures[code])) + "\n")
	}

	return strings.TrimSuffix(b.String(), "\n")
}

func (m Model) renderMessages() string {
	lines := make([]string, 0, len(m.messages))
	for _, msg := range m.messages {
		line := fmt.Sprintf("[%s] %s", msg.at.Format("15:04:05"), msg.text)
		if msg.isError {
			line = errorStyle.Render(line)
		} else {
			line = mutedStyle.Render(line)
		}
		lines = append(lines, line)
	}
	return strings.Join(lines, "\n")
}
