package tui

import (
	"context"
	"fmt"
	"io"
	"strconv"
	"strings"
	"time"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/charmbracelet/lipgloss"
)

// SetupResult holds the values selected by the user in the carousel.
type SetupResult struct {
	Cancelled   bool
	Version     string
	Arch        string
	Port        int
	RootCommand string
	Source      string
	AutoStart   bool
}

// SetupDefaults pre-selects carousel rows from the current configuration.
type SetupDefaults struct {
	Version     string
	Arch        string
	Port        int
	RootCommand string
	Source      string
	AutoStart   bool
}

// DeviceProbe is what the setup screen learns about the connected device
// while the carousel is grayed out.
type DeviceProbe struct {
	DeviceID string
	Model    string
	ABI      string
	Arch     string
}

// ProbeFunc queries the connected device. It runs inside the TUI with a
// bounded timeout; failure is informational, not fatal.
type ProbeFunc func(ctx context.Context) (DeviceProbe, error)

var archInfo = []struct{ name, desc string }{
	{"auto", "Query the device ABI at push time (recommended)"},
	{"arm64", "64-bit ARM, most physical devices since 2015"},
	{"arm", "32-bit ARM, older devices"},
	{"x86_64", "64-bit x86, most emulator images"},
	{"x86", "32-bit x86, legacy emulator images"},
}

const archNote = "With auto, the architecture is re-queried per\n" +
	"invocation and never cached across runs."

var portInfo = []struct{ name, desc string }{
	{"27042", "Default frida port, clients connect without flags"},
	{"27043", "Alternate when 27042 is blocked or taken"},
	{"31337", "Nonstandard, avoids naive port-based detection"},
}

var rootCommandInfo = []struct{ name, desc string }{
	{"su", "Standard su wrapper (Magisk, most rooted devices)"},
	{"su 0", "su variants that take the uid before the command"},
	{"ksud", "KernelSU daemon wrapper"},
}

const rootCommandNote = "The wrapper must accept an inline command via -c.\n" +
	"Run `adb shell <wrapper> -c id` to verify yours."

var sourceInfo = []struct{ name, desc string }{
	{"download", "Fetch the server binary from the release feed"},
	{"local", "Copy a locally built binary into the cache\n(set android.server.local_path in fridamgr.yaml)"},
}

var autoStartInfo = []struct{ name, desc string }{
	{"enabled", "push starts the server right after transfer"},
	{"disabled", "push only transfers; start it explicitly"},
}

// probeResultMsg carries the result of the initial device probe.
type probeResultMsg struct {
	probe DeviceProbe
	err   error
}

type setupTickMsg struct{}

type carouselRow struct {
	label   string
	options []string
	current int
}

type setupModel struct {
	rows       []carouselRow
	focused    int
	done       bool
	cancelled  bool
	probeFn    ProbeFunc
	probing    bool
	probe      DeviceProbe
	probeErr   error
	probeFrame int
}

// Row order; used by both populateRows and result().
const (
	rowVersion = iota
	rowArch
	rowPort
	rowRootCommand
	rowSource
	rowAutoStart
)

func newSetupModel(versions []string, defaults SetupDefaults, probeFn ProbeFunc) setupModel {
	return setupModel{
		rows:    populateRows(versions, defaults),
		probeFn: probeFn,
		probing: probeFn != nil,
	}
}

func (m setupModel) Init() tea.Cmd {
	if !m.probing {
		return nil
	}
	return tea.Batch(doProbe(m.probeFn), setupTick())
}

func doProbe(probeFn ProbeFunc) tea.Cmd {
	return func() tea.Msg {
		ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
		defer cancel()
		probe, err := probeFn(ctx)
		return probeResultMsg{probe: probe, err: err}
	}
}

func setupTick() tea.Cmd {
	return tea.Tick(150*time.Millisecond, func(_ time.Time) tea.Msg {
		return setupTickMsg{}
	})
}

func populateRows(versions []string, defaults SetupDefaults) []carouselRow {
	if len(versions) == 0 {
		versions = []string{"latest"}
	}
	arches := []string{"auto", "arm64", "arm", "x86_64", "x86"}
	ports := []string{"27042", "27043", "31337"}
	rootCommands := []string{"su", "su 0", "ksud"}
	sources := []string{"download", "local"}
	autoStart := []string{"disabled", "enabled"}

	currentPort := strconv.Itoa(defaults.Port)
	currentAuto := "disabled"
	if defaults.AutoStart {
		currentAuto = "enabled"
	}

	return []carouselRow{
		{label: "Version", options: versions, current: findIdx(versions, defaults.Version, 0)},
		{label: "Arch", options: arches, current: findIdx(arches, defaults.Arch, 0)},
		{label: "Port", options: ports, current: findIdx(ports, currentPort, 0)},
		{label: "Root command", options: rootCommands, current: findIdx(rootCommands, defaults.RootCommand, 0)},
		{label: "Source", options: sources, current: findIdx(sources, defaults.Source, 0)},
		{label: "Auto-start", options: autoStart, current: findIdx(autoStart, currentAuto, 0)},
	}
}

func findIdx(options []string, value string, defaultIdx int) int {
	if value == "" {
		return defaultIdx
	}
	for i, o := range options {
		if o == value {
			return i
		}
	}
	return defaultIdx
}

func (m setupModel) Update(msg tea.Msg) (tea.Model, tea.Cmd) {
	switch msg := msg.(type) {
	case probeResultMsg:
		m.probing = false
		if msg.err != nil {
			m.probeErr = msg.err
		} else {
			m.probe = msg.probe
		}
		return m, nil

	case setupTickMsg:
		if m.probing {
			m.probeFrame++
			return m, setupTick()
		}
		return m, nil

	case tea.KeyMsg:
		if m.probing {
			return m, nil
		}
		switch msg.String() {
		case "up", "k":
			if m.focused > 0 {
				m.focused--
			}
		case "down", "j":
			if m.focused < len(m.rows)-1 {
				m.focused++
			}
		case "left", "h":
			row := m.rows[m.focused]
			row.current = (row.current - 1 + len(row.options)) % len(row.options)
			m.rows[m.focused] = row
		case "right", "l":
			row := m.rows[m.focused]
			row.current = (row.current + 1) % len(row.options)
			m.rows[m.focused] = row
		case "enter":
			m.done = true
			return m, tea.Quit
		case "esc", "q":
			m.cancelled = true
			return m, tea.Quit
		}
	}
	return m, nil
}

func (m setupModel) View() string {
	faint := lipgloss.NewStyle().Faint(true)

	if m.done {
		var sb strings.Builder
		sb.WriteString("\n")
		for _, row := range m.rows {
			sb.WriteString(fmt.Sprintf("%s %s\n",
				faint.Render(fmt.Sprintf("  %-14s", row.label)),
				row.options[row.current],
			))
		}
		sb.WriteString("\n")
		return sb.String()
	}

	if m.cancelled {
		return faint.Render("  cancelled") + "\n"
	}

	focused := lipgloss.NewStyle().Bold(true).Foreground(lipgloss.Color("4"))

	var sb strings.Builder
	sb.WriteString("\n")

	for i, row := range m.rows {
		var prefix, label, value string
		if m.probing {
			prefix = "  "
			label = faint.Render(fmt.Sprintf("%-14s", row.label))
			value = faint.Render(fmt.Sprintf("%-20s", row.options[row.current]))
		} else if i == m.focused {
			prefix = "▸ "
			label = focused.Render(fmt.Sprintf("%-14s", row.label))
			value = fmt.Sprintf("%-20s", row.options[row.current])
		} else {
			prefix = "  "
			label = faint.Render(fmt.Sprintf("%-14s", row.label))
			value = fmt.Sprintf("%-20s", row.options[row.current])
		}
		sb.WriteString(fmt.Sprintf("%s%s ←  %s→\n", prefix, label, value))
	}

	sb.WriteString("\n")
	sb.WriteString(m.renderHelpPanel())
	sb.WriteString("\n")

	if !m.probing {
		sb.WriteString(faint.Render("  [↑↓] Navigate  [←→] Change  [Enter] Save  [Esc] Cancel"))
		sb.WriteString("\n")
	}

	return sb.String()
}

func (m setupModel) renderHelpPanel() string {
	panelStyle := lipgloss.NewStyle().
		Border(lipgloss.RoundedBorder()).
		Padding(0, 1).
		BorderForeground(lipgloss.Color("8"))

	if m.probing {
		frame := spinnerFrames[m.probeFrame%len(spinnerFrames)]
		return panelStyle.Render(fmt.Sprintf("%s Probing connected device...", frame))
	}

	switch m.focused {
	case rowVersion:
		return panelStyle.Render(m.versionPanelContent())
	case rowArch:
		return panelStyle.Render(m.archPanelContent())
	case rowPort:
		return panelStyle.Render(genericListPanel(m.rows[rowPort].options[m.rows[rowPort].current], portInfo, ""))
	case rowRootCommand:
		return panelStyle.Render(genericListPanel(m.rows[rowRootCommand].options[m.rows[rowRootCommand].current], rootCommandInfo, rootCommandNote))
	case rowSource:
		return panelStyle.Render(genericListPanel(m.rows[rowSource].options[m.rows[rowSource].current], sourceInfo, ""))
	case rowAutoStart:
		return panelStyle.Render(genericListPanel(m.rows[rowAutoStart].options[m.rows[rowAutoStart].current], autoStartInfo, ""))
	}
	return ""
}

func (m setupModel) versionPanelContent() string {
	faint := lipgloss.NewStyle().Faint(true)
	bold := lipgloss.NewStyle().Bold(true)

	var sb strings.Builder
	sb.WriteString(bold.Render("Known server versions:"))
	sb.WriteString("\n\n")
	row := m.rows[rowVersion]
	for _, version := range row.options {
		if version == row.options[row.current] {
			sb.WriteString("▸ " + bold.Render(version) + "\n")
		} else {
			sb.WriteString("  " + faint.Render(version) + "\n")
		}
	}
	sb.WriteString("\n")
	sb.WriteString(faint.Render("  Aliases resolve against the version map;\n  run `fridamgr sync` to pick up new releases."))
	return strings.TrimRight(sb.String(), "\n")
}

func (m setupModel) archPanelContent() string {
	faint := lipgloss.NewStyle().Faint(true)
	current := m.rows[rowArch].options[m.rows[rowArch].current]

	content := genericListPanel(current, archInfo, archNote)
	switch {
	case m.probeErr != nil:
		content += "\n\n" + faint.Render("  no device probe: "+m.probeErr.Error())
	case m.probe.DeviceID != "":
		content += "\n\n" + faint.Render(fmt.Sprintf("  detected: %s (%s) abi=%s -> %s",
			m.probe.DeviceID, NonEmptyOrDash(m.probe.Model), m.probe.ABI, m.probe.Arch))
	}
	return content
}

func genericListPanel(current string, items []struct{ name, desc string }, note string) string {
	faint := lipgloss.NewStyle().Faint(true)
	bold := lipgloss.NewStyle().Bold(true)
	var sb strings.Builder
	for _, info := range items {
		prefix, nameStr := "  ", faint.Render(fmt.Sprintf("%-8s", info.name))
		if info.name == current {
			prefix, nameStr = "▸ ", bold.Render(fmt.Sprintf("%-8s", info.name))
		}
		for j, line := range strings.Split(info.desc, "\n") {
			if j == 0 {
				sb.WriteString(fmt.Sprintf("%s%s  %s\n", prefix, nameStr, line))
			} else {
				sb.WriteString(fmt.Sprintf("          %s\n", line))
			}
		}
	}
	if note != "" {
		sb.WriteString("\n")
		for _, line := range strings.Split(note, "\n") {
			sb.WriteString(faint.Render("  "+line) + "\n")
		}
	}
	return strings.TrimRight(sb.String(), "\n")
}

func (m setupModel) result() SetupResult {
	if m.cancelled || m.probing {
		return SetupResult{Cancelled: true}
	}
	port, _ := strconv.Atoi(m.rows[rowPort].options[m.rows[rowPort].current])
	return SetupResult{
		Version:     m.rows[rowVersion].options[m.rows[rowVersion].current],
		Arch:        m.rows[rowArch].options[m.rows[rowArch].current],
		Port:        port,
		RootCommand: m.rows[rowRootCommand].options[m.rows[rowRootCommand].current],
		Source:      m.rows[rowSource].options[m.rows[rowSource].current],
		AutoStart:   m.rows[rowAutoStart].options[m.rows[rowAutoStart].current] == "enabled",
	}
}

// RunSetup probes the connected device and runs the interactive carousel.
// The probe happens inside the TUI; the carousel is grayed out until ready.
func RunSetup(w io.Writer, versions []string, defaults SetupDefaults, probeFn ProbeFunc) (SetupResult, error) {
	model := newSetupModel(versions, defaults, probeFn)
	p := tea.NewProgram(model, tea.WithOutput(w))
	finalModel, err := p.Run()
	if err != nil {
		return SetupResult{}, err
	}
	return finalModel.(setupModel).result(), nil
}
