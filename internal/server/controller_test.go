package server

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"fridamgr/internal/adb"
)

// fakeBridge simulates a device shell. The running flag flips when the spawn
// or kill command arrives, mirroring how the real server behaves.
type fakeBridge struct {
	running    bool
	present    bool
	portBusy   bool
	elevateErr bool

	spawns int
	kills  int
	pushes int
	shells []string
}

func (f *fakeBridge) Push(ctx context.Context, deviceID, localPath, remotePath string) error {
	f.pushes++
	f.present = true
	return nil
}

func (f *fakeBridge) Shell(ctx context.Context, deviceID, command string) (adb.RunResult, error) {
	f.shells = append(f.shells, command)

	switch {
	case command == "ps -A":
		out := "root 1 /init\nshell 400 com.android.systemui\n"
		if f.running {
			out += "root 9000 /data/local/tmp/frida-server\n"
		}
		return adb.RunResult{Stdout: []byte(out)}, nil

	case strings.HasPrefix(command, "ls "):
		if f.present {
			return adb.RunResult{Stdout: []byte(strings.TrimPrefix(command, "ls "))}, nil
		}
		return adb.RunResult{ExitCode: 1, Stderr: []byte("No such file or directory")}, nil

	case command == "netstat -tln":
		if f.portBusy {
			return adb.RunResult{Stdout: []byte("tcp 0 0 0.0.0.0:27042 0.0.0.0:* LISTEN\n")}, nil
		}
		return adb.RunResult{Stdout: []byte("tcp 0 0 0.0.0.0:5555 0.0.0.0:* LISTEN\n")}, nil

	case command == "ss -tln":
		return adb.RunResult{ExitCode: 127}, nil

	case strings.HasPrefix(command, "su -c id"):
		if f.elevateErr {
			return adb.RunResult{ExitCode: 1, Stderr: []byte("su: not found")}, nil
		}
		return adb.RunResult{Stdout: []byte("uid=0(root)")}, nil

	case strings.HasPrefix(command, "chmod "):
		return adb.RunResult{}, nil

	case strings.Contains(command, "nohup"):
		f.spawns++
		f.running = true
		return adb.RunResult{}, nil

	case strings.Contains(command, "killall"):
		f.kills++
		f.running = false
		return adb.RunResult{}, nil
	}

	return adb.RunResult{ExitCode: 127, Stderr: []byte("sh: not found: " + command)}, nil
}

func newController(f *fakeBridge) *Controller {
	return &Controller{
		Bridge:      f,
		DeviceID:    "emulator-5554",
		RootCommand: "su",
		Plan: Plan{
			RemotePath:  "/data/local/tmp/frida-server",
			RemoteLog:   "/data/local/tmp/frida-server.log",
			ProcessName: "frida-server",
			Port:        27042,
		},
		ProbeAttempts: 3,
		ProbeInterval: time.Millisecond,
	}
}

func TestStatusStates(t *testing.T) {
	f := &fakeBridge{}
	c := newController(f)

	state, err := c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state != StateNotPresent {
		t.Fatalf("expected not-present, got %s", state)
	}

	f.present = true
	state, err = c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state != StatePushed {
		t.Fatalf("expected pushed, got %s", state)
	}

	f.running = true
	state, err = c.Status(context.Background())
	if err != nil {
		t.Fatalf("Status returned error: %v", err)
	}
	if state != StateRunning {
		t.Fatalf("expected running, got %s", state)
	}
}

func TestStatusUnreachableDevice(t *testing.T) {
	c := newController(&fakeBridge{})
	c.Bridge = failingBridge{}

	state, err := c.Status(context.Background())
	if err == nil {
		t.Fatal("expected error from unreachable device")
	}
	if state != StateUnknown {
		t.Fatalf("expected unknown, got %s", state)
	}
}

type failingBridge struct{}

func (failingBridge) Push(ctx context.Context, deviceID, localPath, remotePath string) error {
	return adb.ErrUnreachable
}

func (failingBridge) Shell(ctx context.Context, deviceID, command string) (adb.RunResult, error) {
	return adb.RunResult{}, adb.ErrUnreachable
}

func TestPushMarksExecutable(t *testing.T) {
	f := &fakeBridge{}
	c := newController(f)

	if err := c.Push(context.Background(), "/tmp/frida-server"); err != nil {
		t.Fatalf("Push returned error: %v", err)
	}
	if f.pushes != 1 {
		t.Fatalf("expected 1 push, got %d", f.pushes)
	}
	found := false
	for _, cmd := range f.shells {
		if cmd == "chmod 755 /data/local/tmp/frida-server" {
			found = true
		}
	}
	if !found {
		t.Fatalf("expected chmod command, got %v", f.shells)
	}
}

func TestStartSpawnsAndConfirms(t *testing.T) {
	f := &fakeBridge{present: true}
	c := newController(f)

	state, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if state != StateRunning {
		t.Fatalf("expected running, got %s", state)
	}
	if f.spawns != 1 {
		t.Fatalf("expected 1 spawn, got %d", f.spawns)
	}

	spawned := ""
	for _, cmd := range f.shells {
		if strings.Contains(cmd, "nohup") {
			spawned = cmd
		}
	}
	want := "su -c 'nohup /data/local/tmp/frida-server -l 0.0.0.0:27042 > /data/local/tmp/frida-server.log 2>&1 &'"
	if spawned != want {
		t.Fatalf("unexpected spawn command:\n got %q\nwant %q", spawned, want)
	}
}

func TestStartIdempotentWhenRunning(t *testing.T) {
	f := &fakeBridge{present: true, running: true}
	c := newController(f)

	state, err := c.Start(context.Background())
	if err != nil {
		t.Fatalf("Start returned error: %v", err)
	}
	if state != StateRunning {
		t.Fatalf("expected running, got %s", state)
	}
	if f.spawns != 0 {
		t.Fatalf("expected no spawn when already running, got %d", f.spawns)
	}
}

func TestStartElevationUnavailable(t *testing.T) {
	f := &fakeBridge{present: true, elevateErr: true}
	c := newController(f)

	_, err := c.Start(context.Background())
	if !errors.Is(err, ErrElevationUnavailable) {
		t.Fatalf("expected ErrElevationUnavailable, got %v", err)
	}
	if f.spawns != 0 {
		t.Fatalf("expected no spawn attempt, got %d", f.spawns)
	}
}

func TestStartPortInUse(t *testing.T) {
	f := &fakeBridge{present: true, portBusy: true}
	c := newController(f)

	_, err := c.Start(context.Background())
	if !errors.Is(err, ErrPortInUse) {
		t.Fatalf("expected ErrPortInUse, got %v", err)
	}
	if f.spawns != 0 {
		t.Fatalf("expected no spawn attempt, got %d", f.spawns)
	}
}

// portProbeDownBridge loses the transport on the port listener check only.
type portProbeDownBridge struct {
	fakeBridge
}

func (b *portProbeDownBridge) Shell(ctx context.Context, deviceID, command string) (adb.RunResult, error) {
	if command == "netstat -tln" || command == "ss -tln" {
		return adb.RunResult{}, adb.ErrUnreachable
	}
	return b.fakeBridge.Shell(ctx, deviceID, command)
}

func TestStartSurfacesPortProbeFailure(t *testing.T) {
	b := &portProbeDownBridge{fakeBridge: fakeBridge{present: true}}
	c := newController(&b.fakeBridge)
	c.Bridge = b

	state, err := c.Start(context.Background())
	if !errors.Is(err, adb.ErrUnreachable) {
		t.Fatalf("expected ErrUnreachable, got %v", err)
	}
	if state != StateUnknown {
		t.Fatalf("expected unknown, got %s", state)
	}
	if b.spawns != 0 {
		t.Fatalf("expected no spawn attempt, got %d", b.spawns)
	}
}

// stuckBridge accepts the spawn but the process never shows up in ps.
type stuckBridge struct {
	fakeBridge
}

func (s *stuckBridge) Shell(ctx context.Context, deviceID, command string) (adb.RunResult, error) {
	if strings.Contains(command, "nohup") {
		s.spawns++
		return adb.RunResult{}, nil
	}
	return s.fakeBridge.Shell(ctx, deviceID, command)
}

func TestStartFailsAfterBoundedReprobe(t *testing.T) {
	s := &stuckBridge{fakeBridge: fakeBridge{present: true}}
	c := newController(&s.fakeBridge)
	c.Bridge = s

	_, err := c.Start(context.Background())
	if !errors.Is(err, ErrStartFailed) {
		t.Fatalf("expected ErrStartFailed, got %v", err)
	}
	if s.spawns != 1 {
		t.Fatalf("expected exactly one spawn attempt, got %d", s.spawns)
	}
}

func TestStopNoOpWhenNotRunning(t *testing.T) {
	f := &fakeBridge{present: true}
	c := newController(f)

	state, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if state != StateStopped {
		t.Fatalf("expected stopped, got %s", state)
	}
	if f.kills != 0 {
		t.Fatalf("expected no termination command, got %d", f.kills)
	}
}

func TestStopKillsAndConfirms(t *testing.T) {
	f := &fakeBridge{present: true, running: true}
	c := newController(f)

	state, err := c.Stop(context.Background())
	if err != nil {
		t.Fatalf("Stop returned error: %v", err)
	}
	if state != StateStopped {
		t.Fatalf("expected stopped, got %s", state)
	}
	if f.kills != 1 {
		t.Fatalf("expected 1 termination command, got %d", f.kills)
	}
}
