package tui

import (
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// Update handles messages and updates the model
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
		m.recordsVP.Width = msg.Width
		if h := msg.Height - 16; h > 3 {
			m.recordsVP.Height = h
		}
		m.poll()

	case tickMsg:
		m.currentTime = time.Time(msg)
		m.poll()
		return m, m.tickCmd()

	case retryMsg:
		m.retrying = false
		m.report("Camera opened", msg.err)
		m.poll()

	case tea.KeyMsg:
		switch msg.String() {
		case "q", "ctrl+c":
			return m, tea.Quit

		case "s":
			if m.scanner.Snapshot().State == "idle" {
				m.report("Capture started", m.scanner.StartCapture())
			} else {
				m.report("Capture stopped", m.scanner.StopCapture())
			}
			m.poll()

		case "r":
			if m.retrying {
				return m, nil
			}
			m.retrying = true
			m.addMessage("Opening camera...", false)
			return m, m.retryCmd()

		case "n":
			m.report("New session", m.scanner.ResetSession())
			m.poll()

		default:
			var cmd tea.Cmd
			m.recordsVP, cmd = m.recordsVP.Update(msg)
			return m, cmd
		}

	case tea.MouseMsg:
		var cmd tea.Cmd
		m.recordsVP, cmd = m.recordsVP.Update(msg)
		return m, cmd
	}

	return m, nil
}
