package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fridamgr/internal/artifact"
	"fridamgr/internal/server"
)

var statusDeviceArg string

func newStatusCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "status",
		Short: "Show the server state on a device",
		Args:  cobra.NoArgs,
		RunE:  runStatus,
	}
	cmd.Flags().StringVar(&statusDeviceArg, "device", "", "Target device id (default: the single connected device)")
	return cmd
}

func runStatus(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	vm, _, err := loadVersionMap()
	if err != nil {
		return err
	}
	version := cfg.Frida.Version
	if resolved, err := vm.Resolve(version); err == nil {
		version = resolved.Version
	}

	client := newADBClient(cfg.Android.ADBPath)
	device, err := client.Select(ctx, statusDeviceArg)
	if err != nil {
		return err
	}

	arch, archErr := resolveArch(ctx, client, device.ID, cfg.Android.Arch)

	ctrl := newController(client, cfg, device.ID, nil)
	state, stateErr := ctrl.Status(ctx)

	cached := false
	if archErr == nil {
		cache, err := newArtifactCache(cfg)
		if err != nil {
			return err
		}
		cached = cache.Has(artifact.Key{Version: version, Arch: arch})
	}

	if outputJSON {
		payload := struct {
			Device     string `json:"device"`
			Model      string `json:"model,omitempty"`
			Version    string `json:"version"`
			Arch       string `json:"arch,omitempty"`
			Cached     bool   `json:"cached"`
			RemotePath string `json:"remote_path"`
			Port       int    `json:"port"`
			State      string `json:"state"`
			Error      string `json:"error,omitempty"`
		}{
			Device:     device.ID,
			Model:      device.Model,
			Version:    version,
			Cached:     cached,
			RemotePath: ctrl.Plan.RemotePath,
			Port:       ctrl.Plan.Port,
			State:      string(state),
		}
		if archErr == nil {
			payload.Arch = string(arch)
		}
		if stateErr != nil {
			payload.Error = stateErr.Error()
		}
		return writeJSON(cmd, payload)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintf(w, "Device:\t%s (%s)\n", device.ID, nonEmptyOrDash(device.Model))
	fmt.Fprintf(w, "Version:\t%s\n", version)
	if archErr == nil {
		fmt.Fprintf(w, "Arch:\t%s\n", arch)
	}
	fmt.Fprintf(w, "Cached:\t%v\n", cached)
	fmt.Fprintf(w, "Remote path:\t%s\n", ctrl.Plan.RemotePath)
	fmt.Fprintf(w, "Port:\t%d\n", ctrl.Plan.Port)
	fmt.Fprintf(w, "State:\t%s\n", state)
	w.Flush()

	if stateErr != nil {
		return stateErr
	}
	if state == server.StateNotPresent {
		fmt.Fprintln(cmd.OutOrStdout(), "\nRun `fridamgr push` to install the server on this device.")
	}
	return nil
}
