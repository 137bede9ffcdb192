package tui

import (
	"fmt"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
)

const (
	tickInterval = 150 * time.Millisecond
	marqueeGap   = "   "

	versionColWidth = 10
	archColWidth    = 8
	statusColWidth  = 12
	detailColWidth  = 40
)

var spinnerFrames = []string{"⠋", "⠙", "⠹", "⠸", "⠼", "⠴", "⠦", "⠧", "⠇", "⠏"}

// tickMsg drives animation (spinner, marquee).
type tickMsg time.Time

// InstallTarget is one (version, architecture) acquisition tracked by the
// install table.
type InstallTarget struct {
	Version string
	Arch    string
}

type installRow struct {
	target InstallTarget
	status string
	detail string
}

// InstallModel renders one row per architecture while server binaries are
// acquired. Rows are keyed by architecture; statuses move through
// pending -> downloading -> downloaded/cached/error, with the cache path or
// failure reason in the detail column.
type InstallModel struct {
	title string
	rows  []installRow
	index map[string]int
	done  bool
	err   error

	tick int
}

// NewInstallModel builds the table with every target pending.
func NewInstallModel(title string, targets []InstallTarget) InstallModel {
	m := InstallModel{title: title, index: make(map[string]int, len(targets))}
	for _, target := range targets {
		m.index[target.Arch] = len(m.rows)
		m.rows = append(m.rows, installRow{target: target, status: "pending"})
	}
	return m
}

func scheduleTick() tea.Cmd {
	return tea.Tick(tickInterval, func(t time.Time) tea.Msg {
		return tickMsg(t)
	})
}

func (m InstallModel) Init() tea.Cmd {
	return scheduleTick()
}

func (m InstallModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case tickMsg:
		m.tick++
		if m.done {
			return m, nil
		}
		return m, scheduleTick()

	case TargetStatusMsg:
		if idx, ok := m.index[msg.Arch]; ok {
			m.rows[idx].status = msg.Status
			if msg.Detail != "" {
				m.rows[idx].detail = msg.Detail
			}
		}
		return m, nil

	case WorkDoneMsg:
		m.done = true
		return m, tea.Quit

	case ErrorMsg:
		m.err = msg.Err
		m.done = true
		return m, tea.Quit

	case tea.KeyMsg:
		switch msg.String() {
		case "ctrl+c", "q":
			m.done = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m InstallModel) View() string {
	if m.done && m.err != nil {
		return fmt.Sprintf("Error: %v\n", m.err)
	}

	var b strings.Builder

	if m.title != "" {
		b.WriteString(m.title)
		b.WriteString("\n\n")
	}

	b.WriteString(HeaderStyle.Render(pad("VERSION", versionColWidth)))
	b.WriteString("  ")
	b.WriteString(HeaderStyle.Render(pad("ARCH", archColWidth)))
	b.WriteString("  ")
	b.WriteString(HeaderStyle.Render(pad("STATUS", statusColWidth)))
	b.WriteString("  ")
	b.WriteString(HeaderStyle.Render("DETAIL"))
	b.WriteByte('\n')

	for _, row := range m.rows {
		detail := row.detail
		// Cache paths routinely exceed the column; scroll them while work
		// is in flight, truncate once the table is final.
		if !m.done && len(strings.TrimSpace(detail)) > detailColWidth {
			detail = marqueeText(detail, detailColWidth, m.tick)
		} else {
			detail = TruncateWithEllipsis(detail, detailColWidth)
		}

		b.WriteString(pad(TruncateWithEllipsis(row.target.Version, versionColWidth), versionColWidth))
		b.WriteString("  ")
		b.WriteString(pad(row.target.Arch, archColWidth))
		b.WriteString("  ")
		b.WriteString(StatusStyle(row.status).Render(pad(row.status, statusColWidth)))
		b.WriteString("  ")
		b.WriteString(detail)
		b.WriteByte('\n')
	}

	if !m.done {
		settled, total := m.settledCounts()
		spinner := spinnerFrames[m.tick%len(spinnerFrames)]
		fmt.Fprintf(&b, "\n%s Fetching %d/%d...\n", spinner, settled, total)
	}

	return b.String()
}

// settledCounts reports how many rows have left the pending state.
func (m InstallModel) settledCounts() (int, int) {
	settled := 0
	for _, row := range m.rows {
		if row.status != "" && row.status != "pending" {
			settled++
		}
	}
	return settled, len(m.rows)
}

// Done reports whether the model has finished (work done or error).
func (m InstallModel) Done() bool {
	return m.done
}

// Err returns any fatal error that occurred.
func (m InstallModel) Err() error {
	return m.err
}

func pad(s string, width int) string {
	if len(s) >= width {
		return s
	}
	return s + strings.Repeat(" ", width-len(s))
}

// marqueeText renders a scrolling window over text that exceeds the given
// width. The text slides left on each tick, with a gap between cycles.
func marqueeText(text string, width, tick int) string {
	text = strings.TrimSpace(text)
	if width <= 0 {
		return ""
	}
	if len(text) <= width {
		return text
	}
	cycle := text + marqueeGap
	cycleLen := len(cycle)
	offset := tick % cycleLen
	var result strings.Builder
	result.Grow(width)
	for i := 0; i < width; i++ {
		result.WriteByte(cycle[(offset+i)%cycleLen])
	}
	return result.String()
}

// NonEmptyOrDash returns "-" for empty/whitespace strings.
func NonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}

// TruncateWithEllipsis truncates a string and adds "..." if it exceeds max length.
func TruncateWithEllipsis(value string, max int) string {
	if max <= 0 {
		return ""
	}
	value = strings.TrimSpace(value)
	if len(value) <= max {
		return value
	}
	if max <= 3 {
		return value[:max]
	}
	return value[:max-3] + "..."
}
