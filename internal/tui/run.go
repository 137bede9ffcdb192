package tui

import (
	"io"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

// RunInstall starts the install table, runs workFn in a goroutine and blocks
// until the program exits. workFn reports per-architecture progress through
// the send callback; RunInstall signals completion itself.
func RunInstall(out io.Writer, model InstallModel, workFn func(send func(tea.Msg))) error {
	p := tea.NewProgram(model, tea.WithOutput(out))

	go func() {
		// Let bubbletea start its event loop and render the initial frame.
		time.Sleep(50 * time.Millisecond)

		workFn(func(msg tea.Msg) {
			p.Send(msg)
			// Cache hits settle instantly; without a short yield a fully
			// cached install quits before a single frame is drawn. For
			// real downloads the pause vanishes into the I/O time.
			time.Sleep(5 * time.Millisecond)
		})

		p.Send(WorkDoneMsg{})
	}()

	finalModel, err := p.Run()
	if err != nil {
		return err
	}
	if m, ok := finalModel.(InstallModel); ok && m.Err() != nil {
		return m.Err()
	}
	return nil
}
