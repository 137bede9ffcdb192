package tui

import (
	"io"
	"os"
	"runtime"
	"strings"
)

// OutputMode picks how a command renders its result.
type OutputMode int

const (
	// ModeTUI renders live progress through bubbletea.
	ModeTUI OutputMode = iota
	// ModePlain prints a static table once the work has finished.
	ModePlain
	// ModeJSON prints machine-readable JSON.
	ModeJSON
)

// DetectMode chooses the output mode for a writer. JSON and --no-progress
// win outright; otherwise the writer must be an interactive terminal, since
// bubbletea output through a pipe or under TERM=dumb is garbage.
func DetectMode(out io.Writer, noProgress, jsonOutput bool) OutputMode {
	if jsonOutput {
		return ModeJSON
	}
	if noProgress {
		return ModePlain
	}
	file, ok := out.(*os.File)
	if !ok {
		return ModePlain
	}
	info, err := file.Stat()
	if err != nil || info.Mode()&os.ModeCharDevice == 0 {
		return ModePlain
	}
	if runtime.GOOS != "windows" {
		term := os.Getenv("TERM")
		if term == "" || strings.EqualFold(term, "dumb") {
			return ModePlain
		}
	}
	return ModeTUI
}
