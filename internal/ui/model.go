// ABOUTME: Bubbletea model for the playback TUI
// ABOUTME: Shows source, format, position, and handles movement keys
package ui

import (
	"fmt"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// moveStep is how far one arrow key press moves the sound, in world units
const moveStep = 5.0

// Model represents the TUI state
type Model struct {
	// Source
	source string
	mode   string
	format string

	// Playback
	playing bool
	done    bool
	elapsed time.Duration

	// Remaining sources after the current one
	queued int

	// World position of the sound (spatial mode only)
	spatial bool
	pos     [3]float32

	ctrl *Control

	width  int
	height int
}

// StatusMsg updates TUI state. Zero fields leave state unchanged.
type StatusMsg struct {
	Source   string
	Mode     string
	Format   string
	Playing  *bool
	Done     bool
	Elapsed  time.Duration
	Queued   *int
	Position *[3]float32
}

// MoveMsg is a requested change to the sound's world position
type MoveMsg struct {
	DX, DY float32
}

// QuitMsg signals the player to shut down
type QuitMsg struct{}

// Init initializes the model
func (m Model) Init() tea.Cmd {
	return nil
}

// Update handles messages
func (m Model) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tea.KeyMsg:
		return m.handleKey(msg)
	case tea.WindowSizeMsg:
		m.width = msg.Width
		m.height = msg.Height
	case StatusMsg:
		m.applyStatus(msg)
	}

	return m, nil
}

// View renders the TUI
func (m Model) View() string {
	if m.width == 0 {
		return "Loading..."
	}

	s := m.renderHeader()
	s += m.renderSource()
	if m.spatial {
		s += m.renderPosition()
	}
	s += m.renderHelp()

	return s
}

func (m Model) renderHeader() string {
	status := "Stopped"
	if m.playing {
		status = fmt.Sprintf("Playing (%s)", m.elapsed.Round(time.Second))
	} else if m.done {
		status = "Finished"
	}

	return fmt.Sprintf(`┌─ Chorus Player ──────────────────────────────────────┐
│ Status: %-45s │
├──────────────────────────────────────────────────────┤
`, status)
}

func (m Model) renderSource() string {
	s := fmt.Sprintf("│ Source: %-45s │\n", truncate(m.source, 45))
	s += fmt.Sprintf("│ Mode:   %-45s │\n", m.mode)
	if m.format != "" {
		s += fmt.Sprintf("│ Format: %-45s │\n", m.format)
	}
	if m.queued > 0 {
		s += fmt.Sprintf("│ Queue:  %-45s │\n", fmt.Sprintf("%d more", m.queued))
	}
	return s
}

func (m Model) renderPosition() string {
	return fmt.Sprintf("│ World:  x=%-8.1f y=%-8.1f z=%-8.1f%-12s │\n",
		m.pos[0], m.pos[1], m.pos[2], "")
}

func (m Model) renderHelp() string {
	if m.spatial {
		return `│ arrows:Move sound  s:Skip  q:Quit                    │
└──────────────────────────────────────────────────────┘
`
	}
	return `│ s:Skip  q:Quit                                       │
└──────────────────────────────────────────────────────┘
`
}

// handleKey handles keyboard input
func (m Model) handleKey(msg tea.KeyMsg) (tea.Model, tea.Cmd) {
	switch msg.String() {
	case "q", "ctrl+c":
		m.ctrl.requestQuit()
		return m, tea.Quit
	case "s":
		m.ctrl.requestStop()
	case "up":
		m.move(0, moveStep)
	case "down":
		m.move(0, -moveStep)
	case "left":
		m.move(-moveStep, 0)
	case "right":
		m.move(moveStep, 0)
	}

	return m, nil
}

func (m *Model) move(dx, dy float32) {
	if !m.spatial {
		return
	}
	select {
	case m.ctrl.Moves <- MoveMsg{DX: dx, DY: dy}:
	default:
	}
}

// applyStatus updates model from status message
func (m *Model) applyStatus(msg StatusMsg) {
	if msg.Source != "" {
		m.source = msg.Source
	}
	if msg.Mode != "" {
		m.mode = msg.Mode
	}
	if msg.Format != "" {
		m.format = msg.Format
	}
	if msg.Playing != nil {
		m.playing = *msg.Playing
		if m.playing {
			m.done = false
		}
	}
	if msg.Done {
		m.done = true
		m.playing = false
	}
	if msg.Elapsed != 0 {
		m.elapsed = msg.Elapsed
	}
	if msg.Queued != nil {
		m.queued = *msg.Queued
	}
	if msg.Position != nil {
		m.spatial = true
		m.pos = *msg.Position
	}
}

func truncate(s string, length int) string {
	if len(s) <= length {
		return s
	}
	return s[:length-3] + "..."
}
