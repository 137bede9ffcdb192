package tui

import (
	"fmt"
	"io"
	"sync"
	"time"
)

const statusRedrawInterval = 100 * time.Millisecond

// StatusWriter renders a single spinning phase line, redrawn in place. The
// push and sync commands use it for the steps before and between device
// calls (resolving the version, waiting on adb, fetching the release list),
// where a full progress table would be noise.
type StatusWriter struct {
	w io.Writer

	mu         sync.Mutex
	phase      string
	phaseStart time.Time
	stopped    bool

	done chan struct{}
}

// NewStatusWriter starts the background redraw loop immediately; call Update
// to set the first phase text.
func NewStatusWriter(w io.Writer) *StatusWriter {
	sw := &StatusWriter{
		w:          w,
		phaseStart: time.Now(),
		done:       make(chan struct{}),
	}
	go sw.loop()
	return sw
}

// Update moves to a new phase. The elapsed counter restarts so each phase
// shows its own duration, not the command's.
func (sw *StatusWriter) Update(phase string) {
	sw.mu.Lock()
	sw.phase = phase
	sw.phaseStart = time.Now()
	sw.mu.Unlock()
}

// Stop erases the status line. Safe to call more than once; commands defer
// it and also call it before printing their final output.
func (sw *StatusWriter) Stop() {
	sw.mu.Lock()
	if sw.stopped {
		sw.mu.Unlock()
		return
	}
	sw.stopped = true
	sw.mu.Unlock()
	close(sw.done)
	fmt.Fprint(sw.w, "\r\033[K")
}

func (sw *StatusWriter) loop() {
	ticker := time.NewTicker(statusRedrawInterval)
	defer ticker.Stop()

	for frame := 0; ; frame++ {
		select {
		case <-sw.done:
			return
		case <-ticker.C:
		}

		sw.mu.Lock()
		phase := sw.phase
		elapsed := time.Since(sw.phaseStart)
		sw.mu.Unlock()

		spinner := spinnerFrames[frame%len(spinnerFrames)]
		fmt.Fprintf(sw.w, "\r\033[K%s %s (%s)", spinner, phase, formatElapsed(elapsed))
	}
}

// formatElapsed keeps the counter short: millisecond precision only below a
// second, tenths below ten seconds, then whole seconds and minutes.
func formatElapsed(d time.Duration) string {
	switch {
	case d < time.Second:
		return fmt.Sprintf("%dms", d.Milliseconds())
	case d < 10*time.Second:
		return fmt.Sprintf("%.1fs", d.Seconds())
	case d < time.Minute:
		return fmt.Sprintf("%ds", int(d.Seconds()))
	default:
		return fmt.Sprintf("%dm%02ds", int(d.Minutes()), int(d.Seconds())%60)
	}
}
