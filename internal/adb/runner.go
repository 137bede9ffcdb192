package adb

import (
	"bytes"
	"context"
	"errors"
	"os/exec"
)

// RunResult captures one adb invocation. ExitCode is meaningful only when the
// command actually ran; transport-level failures are reported through the
// error instead.
type RunResult struct {
	Stdout   []byte
	Stderr   []byte
	ExitCode int
}

// Runner executes the adb binary. Tests substitute a fake.
type Runner interface {
	Run(ctx context.Context, command string, args []string) (RunResult, error)
}

// CmdRunner runs adb through os/exec. A nonzero exit code is not an error at
// this layer; callers decide what exit codes mean per subcommand.
type CmdRunner struct{}

func (CmdRunner) Run(ctx context.Context, command string, args []string) (RunResult, error) {
	cmd := exec.CommandContext(ctx, command, args...)

	var stdoutBuf, stderrBuf bytes.Buffer
	cmd.Stdout = &stdoutBuf
	cmd.Stderr = &stderrBuf

	err := cmd.Run()
	result := RunResult{Stdout: stdoutBuf.Bytes(), Stderr: stderrBuf.Bytes()}

	var exitErr *exec.ExitError
	if errors.As(err, &exitErr) {
		result.ExitCode = exitErr.ExitCode()
		return result, nil
	}
	if err != nil {
		return result, err
	}
	return result, nil
}

var _ Runner = CmdRunner{}
