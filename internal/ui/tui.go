// ABOUTME: TUI initialization and control
// ABOUTME: Wraps the bubbletea program and the key event channels
package ui

import (
	tea "github.com/charmbracelet/bubbletea"
)

// Control carries key events from the TUI to the player loop
type Control struct {
	Moves chan MoveMsg
	Stops chan struct{}
	Quit  chan QuitMsg
}

// NewControl creates the control channels
func NewControl() *Control {
	return &Control{
		Moves: make(chan MoveMsg, 10),
		Stops: make(chan struct{}, 1),
		Quit:  make(chan QuitMsg, 1),
	}
}

func (c *Control) requestQuit() {
	select {
	case c.Quit <- QuitMsg{}:
	default:
	}
}

func (c *Control) requestStop() {
	select {
	case c.Stops <- struct{}{}:
	default:
	}
}

// NewModel creates a new TUI model
func NewModel(ctrl *Control) Model {
	return Model{
		mode: "one-shot",
		ctrl: ctrl,
	}
}

// Run builds the TUI program. The caller starts it with p.Run().
func Run(ctrl *Control) (*tea.Program, error) {
	p := tea.NewProgram(NewModel(ctrl), tea.WithAltScreen())
	return p, nil
}
