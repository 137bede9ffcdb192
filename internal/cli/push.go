package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fridamgr/internal/artifact"
	"fridamgr/internal/logx"
	"fridamgr/internal/server"
	"fridamgr/internal/tui"
)

var (
	pushDeviceArg string
	pushStart     bool
)

func newPushCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "push",
		Short: "Push the configured frida-server to a device",
		Long: "Acquires the configured server version for the device architecture " +
			"(downloading it on first use), transfers it to the device and marks it " +
			"executable. With --start (or auto_start in fridamgr.yaml) the server is " +
			"started right after the transfer.",
		Args: cobra.NoArgs,
		RunE: runPush,
	}

	cmd.Flags().StringVar(&pushDeviceArg, "device", "", "Target device id (default: the single connected device)")
	cmd.Flags().BoolVar(&pushStart, "start", false, "Start the server after pushing")

	return cmd
}

func runPush(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, closer, _ := logx.New("push")
	if closer != nil {
		defer closer.Close()
	}
	logf := func(format string, v ...any) {
		if logger != nil {
			logger.Printf(format, v...)
		}
	}

	var status *tui.StatusWriter
	if !outputJSON {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
		defer status.Stop()
		status.Update("Loading project...")
	}
	phase := func(msg string) {
		if status != nil {
			status.Update(msg)
		}
	}

	pp, cfg, err := loadProject()
	if err != nil {
		return err
	}

	phase("Resolving version...")
	vm, _, err := loadVersionMap()
	if err != nil {
		return err
	}
	resolved, err := vm.Resolve(cfg.Frida.Version)
	if err != nil {
		return err
	}
	logf("push: version %s -> %s", cfg.Frida.Version, resolved.Version)

	phase("Selecting device...")
	client := newADBClient(cfg.Android.ADBPath)
	device, err := client.Select(ctx, pushDeviceArg)
	if err != nil {
		return err
	}
	arch, err := resolveArch(ctx, client, device.ID, cfg.Android.Arch)
	if err != nil {
		return err
	}
	logf("push: device %s arch %s", device.ID, arch)

	phase("Acquiring server binary...")
	cache, err := newArtifactCache(cfg)
	if err != nil {
		return err
	}
	key := artifact.Key{Version: resolved.Version, Arch: arch}
	localPath, err := cache.Acquire(ctx, key, artifactSource(pp, cfg))
	if err != nil {
		return err
	}

	ctrl := newController(client, cfg, device.ID, logger)

	phase(fmt.Sprintf("Pushing to %s...", device.ID))
	if err := ctrl.Push(ctx, localPath); err != nil {
		return err
	}
	state := server.StatePushed

	if pushStart || cfg.Android.AutoStart {
		phase("Starting server...")
		state, err = ctrl.Start(ctx)
		if err != nil {
			return err
		}
	}
	if status != nil {
		status.Stop()
	}

	if outputJSON {
		payload := struct {
			Device     string `json:"device"`
			Version    string `json:"version"`
			Arch       string `json:"arch"`
			RemotePath string `json:"remote_path"`
			State      string `json:"state"`
		}{device.ID, resolved.Version, string(arch), ctrl.Plan.RemotePath, string(state)}
		return writeJSON(cmd, payload)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Pushed frida-server %s (%s) to %s:%s\n",
		resolved.Version, arch, device.ID, ctrl.Plan.RemotePath)
	if state == server.StateRunning {
		fmt.Fprintf(cmd.OutOrStdout(), "Server running on port %d\n", ctrl.Plan.Port)
	}
	return nil
}
