package adb

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"
)

// Failure kinds surfaced by device selection and transfer.
var (
	ErrNoDevice       = errors.New("no device connected")
	ErrDeviceNotFound = errors.New("device not found")
	ErrUnreachable    = errors.New("device bridge unreachable")
	ErrPushFailed     = errors.New("push failed")
)

// AmbiguousError is returned when more than one device is connected and no
// explicit device id was requested.
type AmbiguousError struct {
	IDs []string
}

func (e *AmbiguousError) Error() string {
	return fmt.Sprintf("multiple devices connected, pick one with --device: %s", strings.Join(e.IDs, ", "))
}

// Device is one row of `adb devices -l`.
type Device struct {
	ID      string
	State   string
	Product string
	Model   string
}

// DefaultCommandTimeout bounds a single adb invocation. adb blocks forever on
// an unauthorized or wedged transport, so every command carries a deadline.
const DefaultCommandTimeout = 30 * time.Second

// Client talks to devices through the adb binary.
type Client struct {
	ADBPath string
	Runner  Runner
	// Timeout is the per-command wall-clock bound. Zero means
	// DefaultCommandTimeout; a negative value disables the bound.
	Timeout time.Duration
}

// NewClient builds a client around the real adb binary.
func NewClient(adbPath string) *Client {
	if adbPath == "" {
		adbPath = "adb"
	}
	return &Client{ADBPath: adbPath, Runner: CmdRunner{}, Timeout: DefaultCommandTimeout}
}

func (c *Client) run(ctx context.Context, args ...string) (RunResult, error) {
	timeout := c.Timeout
	if timeout == 0 {
		timeout = DefaultCommandTimeout
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}

	result, err := c.Runner.Run(ctx, c.ADBPath, args)
	if err != nil {
		if errors.Is(ctx.Err(), context.DeadlineExceeded) {
			return result, fmt.Errorf("%w: adb %s timed out after %s", ErrUnreachable, strings.Join(args, " "), timeout)
		}
		return result, fmt.Errorf("%w: adb %s: %v", ErrUnreachable, strings.Join(args, " "), err)
	}
	return result, nil
}

// Devices enumerates connected devices.
func (c *Client) Devices(ctx context.Context) ([]Device, error) {
	result, err := c.run(ctx, "devices", "-l")
	if err != nil {
		return nil, err
	}
	if result.ExitCode != 0 {
		return nil, fmt.Errorf("%w: adb devices: %s", ErrUnreachable, strings.TrimSpace(string(result.Stderr)))
	}
	return parseDevices(string(result.Stdout)), nil
}

func parseDevices(output string) []Device {
	var devices []Device
	for _, line := range strings.Split(output, "\n") {
		line = strings.TrimSpace(line)
		if line == "" || strings.HasPrefix(line, "List of devices") || strings.HasPrefix(line, "*") {
			continue
		}
		fields := strings.Fields(line)
		if len(fields) < 2 {
			continue
		}
		device := Device{ID: fields[0], State: fields[1]}
		for _, field := range fields[2:] {
			if value, ok := strings.CutPrefix(field, "product:"); ok {
				device.Product = value
			}
			if value, ok := strings.CutPrefix(field, "model:"); ok {
				device.Model = value
			}
		}
		devices = append(devices, device)
	}
	return devices
}

// Select picks the target device. With an explicit id the device must be
// connected and usable. Without one, exactly one usable device must be
// connected; two or more fail with the candidate list.
func (c *Client) Select(ctx context.Context, requested string) (Device, error) {
	devices, err := c.Devices(ctx)
	if err != nil {
		return Device{}, err
	}

	usable := devices[:0:0]
	for _, device := range devices {
		if device.State == "device" {
			usable = append(usable, device)
		}
	}

	if requested != "" {
		for _, device := range usable {
			if device.ID == requested {
				return device, nil
			}
		}
		for _, device := range devices {
			if device.ID == requested {
				return Device{}, fmt.Errorf("%w: %s is %s", ErrDeviceNotFound, requested, device.State)
			}
		}
		return Device{}, fmt.Errorf("%w: %s", ErrDeviceNotFound, requested)
	}

	switch len(usable) {
	case 0:
		return Device{}, ErrNoDevice
	case 1:
		return usable[0], nil
	default:
		ids := make([]string, len(usable))
		for i, device := range usable {
			ids[i] = device.ID
		}
		return Device{}, &AmbiguousError{IDs: ids}
	}
}

// ABI queries the device's primary CPU ABI.
func (c *Client) ABI(ctx context.Context, deviceID string) (string, error) {
	result, err := c.run(ctx, "-s", deviceID, "shell", "getprop", "ro.product.cpu.abi")
	if err != nil {
		return "", err
	}
	if result.ExitCode != 0 {
		return "", fmt.Errorf("%w: getprop: %s", ErrUnreachable, strings.TrimSpace(string(result.Stderr)))
	}
	abi := strings.TrimSpace(string(result.Stdout))
	if abi == "" {
		return "", fmt.Errorf("%w: device reported empty ABI", ErrUnreachable)
	}
	return abi, nil
}

// Push transfers a local file to the device.
func (c *Client) Push(ctx context.Context, deviceID, localPath, remotePath string) error {
	result, err := c.run(ctx, "-s", deviceID, "push", localPath, remotePath)
	if err != nil {
		return err
	}
	if result.ExitCode != 0 {
		return fmt.Errorf("%w: %s -> %s: %s", ErrPushFailed, localPath, remotePath, strings.TrimSpace(string(result.Stderr)))
	}
	return nil
}

// Shell runs a command on the device through `adb shell` and reports its exit
// code. Transport failures come back as errors; nonzero exit codes do not.
func (c *Client) Shell(ctx context.Context, deviceID, command string) (RunResult, error) {
	return c.run(ctx, "-s", deviceID, "shell", command)
}
