package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"time"

	"fridamgr/internal/adb"
)

// State is the probed runtime state of the server on a device. It is derived
// fresh on every call; the device can change out of band, so no prior state is
// ever trusted.
type State string

const (
	StateNotPresent State = "not-present"
	StatePushed     State = "pushed"
	StateRunning    State = "running"
	StateStopped    State = "stopped"
	StateUnknown    State = "unknown"
)

// Failure kinds surfaced by lifecycle operations.
var (
	ErrElevationUnavailable = errors.New("elevation unavailable")
	ErrPortInUse            = errors.New("port in use")
	ErrStartFailed          = errors.New("server start failed")
	ErrStopFailed           = errors.New("server stop failed")
)

// Bridge is the slice of the device channel the controller needs. *adb.Client
// satisfies it.
type Bridge interface {
	Push(ctx context.Context, deviceID, localPath, remotePath string) error
	Shell(ctx context.Context, deviceID, command string) (adb.RunResult, error)
}

// Controller drives the server lifecycle on one device.
type Controller struct {
	Bridge      Bridge
	DeviceID    string
	Plan        Plan
	RootCommand string
	Logger      *log.Logger

	// Re-probe policy for start/stop confirmation. Zero values use the
	// defaults below.
	ProbeAttempts int
	ProbeInterval time.Duration
}

const (
	defaultProbeAttempts = 15
	defaultProbeInterval = 400 * time.Millisecond
)

func (c *Controller) logf(format string, args ...any) {
	if c.Logger != nil {
		c.Logger.Printf(format, args...)
	}
}

// Status probes the device and derives the current state.
func (c *Controller) Status(ctx context.Context) (State, error) {
	running, err := c.isRunning(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if running {
		return StateRunning, nil
	}

	present, err := c.isPresent(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if present {
		return StatePushed, nil
	}
	return StateNotPresent, nil
}

// Push transfers the binary to the remote path and marks it executable.
// Re-pushing overwrites the remote file unconditionally.
func (c *Controller) Push(ctx context.Context, localPath string) error {
	c.logf("push %s -> %s:%s", localPath, c.DeviceID, c.Plan.RemotePath)
	if err := c.Bridge.Push(ctx, c.DeviceID, localPath, c.Plan.RemotePath); err != nil {
		return err
	}

	result, err := c.Bridge.Shell(ctx, c.DeviceID, fmt.Sprintf("chmod 755 %s", c.Plan.RemotePath))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: chmod: %s", adb.ErrPushFailed, strings.TrimSpace(string(result.Stderr)))
	}
	return nil
}

// Start launches the server through the elevation wrapper, detached from the
// invoking shell with output redirected to the remote log. When the probed
// state is already Running no second process is spawned. The wrapper's own
// exit code is not trusted; success is confirmed by re-probing.
func (c *Controller) Start(ctx context.Context) (State, error) {
	running, err := c.isRunning(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if running {
		c.logf("start: already running")
		return StateRunning, nil
	}

	if err := c.checkElevation(ctx); err != nil {
		return StateUnknown, err
	}
	busy, err := c.portBusy(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if busy {
		return StateUnknown, fmt.Errorf("%w: port %d already has a listener", ErrPortInUse, c.Plan.Port)
	}

	spawn := fmt.Sprintf("nohup %s -l 0.0.0.0:%d > %s 2>&1 &",
		c.Plan.RemotePath, c.Plan.Port, c.Plan.RemoteLog)
	c.logf("start: %s", spawn)
	if _, err := c.elevated(ctx, spawn); err != nil {
		return StateUnknown, err
	}

	confirmed, err := c.reprobe(ctx, true)
	if err != nil {
		return StateUnknown, err
	}
	if !confirmed {
		return StatePushed, fmt.Errorf("%w: server did not come up on port %d, check %s on the device",
			ErrStartFailed, c.Plan.Port, c.Plan.RemoteLog)
	}
	return StateRunning, nil
}

// Stop terminates the server. Stopping a non-running server is a no-op
// success.
func (c *Controller) Stop(ctx context.Context) (State, error) {
	running, err := c.isRunning(ctx)
	if err != nil {
		return StateUnknown, err
	}
	if !running {
		c.logf("stop: not running")
		return StateStopped, nil
	}

	if err := c.checkElevation(ctx); err != nil {
		return StateUnknown, err
	}

	c.logf("stop: killall %s", c.Plan.ProcessName)
	if _, err := c.elevated(ctx, fmt.Sprintf("killall %s", c.Plan.ProcessName)); err != nil {
		return StateUnknown, err
	}

	confirmed, err := c.reprobe(ctx, false)
	if err != nil {
		return StateUnknown, err
	}
	if !confirmed {
		return StateRunning, fmt.Errorf("%w: %s still running after termination", ErrStopFailed, c.Plan.ProcessName)
	}
	return StateStopped, nil
}

// reprobe polls until the running state matches want, within the bounded
// attempt budget.
func (c *Controller) reprobe(ctx context.Context, want bool) (bool, error) {
	attempts := c.ProbeAttempts
	if attempts <= 0 {
		attempts = defaultProbeAttempts
	}
	interval := c.ProbeInterval
	if interval <= 0 {
		interval = defaultProbeInterval
	}

	for i := 0; i < attempts; i++ {
		running, err := c.isRunning(ctx)
		if err != nil {
			return false, err
		}
		if running == want {
			return true, nil
		}
		select {
		case <-ctx.Done():
			return false, ctx.Err()
		case <-time.After(interval):
		}
	}
	return false, nil
}

func (c *Controller) isRunning(ctx context.Context) (bool, error) {
	result, err := c.Bridge.Shell(ctx, c.DeviceID, "ps -A")
	if err != nil {
		return false, err
	}
	for _, line := range strings.Split(string(result.Stdout), "\n") {
		fields := strings.Fields(line)
		if len(fields) == 0 {
			continue
		}
		last := fields[len(fields)-1]
		if last == c.Plan.ProcessName || strings.HasSuffix(last, "/"+c.Plan.ProcessName) {
			return true, nil
		}
	}
	return false, nil
}

func (c *Controller) isPresent(ctx context.Context) (bool, error) {
	result, err := c.Bridge.Shell(ctx, c.DeviceID, fmt.Sprintf("ls %s", c.Plan.RemotePath))
	if err != nil {
		return false, err
	}
	return result.ExitCode == 0, nil
}

// portBusy checks for an existing listener on the configured port, trying
// netstat first and falling back to ss on devices without it.
func (c *Controller) portBusy(ctx context.Context) (bool, error) {
	needle := fmt.Sprintf(":%d ", c.Plan.Port)
	for _, tool := range []string{"netstat -tln", "ss -tln"} {
		result, err := c.Bridge.Shell(ctx, c.DeviceID, tool)
		if err != nil {
			return false, err
		}
		if result.ExitCode != 0 {
			continue
		}
		if strings.Contains(string(result.Stdout), needle) {
			return true, nil
		}
		return false, nil
	}
	return false, nil
}

// checkElevation verifies the configured wrapper can execute inline commands
// before anything privileged is attempted.
func (c *Controller) checkElevation(ctx context.Context) error {
	result, err := c.Bridge.Shell(ctx, c.DeviceID, fmt.Sprintf("%s -c id", c.RootCommand))
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %q failed, configure android.root_command for this device",
			ErrElevationUnavailable, c.RootCommand)
	}
	return nil
}

// elevated runs an inline command through the elevation wrapper.
func (c *Controller) elevated(ctx context.Context, command string) (adb.RunResult, error) {
	return c.Bridge.Shell(ctx, c.DeviceID, fmt.Sprintf("%s -c '%s'", c.RootCommand, command))
}
