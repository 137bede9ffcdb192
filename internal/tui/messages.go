package tui

// TargetStatusMsg moves one architecture's row to a new status. An empty
// Detail leaves the current detail text in place.
type TargetStatusMsg struct {
	Arch   string
	Status string
	Detail string
}

// WorkDoneMsg signals that every acquisition has settled.
type WorkDoneMsg struct{}

// ErrorMsg signals a fatal error; the TUI should quit.
type ErrorMsg struct {
	Err error
}
