package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fridamgr/internal/logx"
	"fridamgr/internal/server"
)

var lifecycleDeviceArg string

func newStartCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "start",
		Short: "Start frida-server on a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLifecycle(cmd, "start", func(ctx context.Context, ctrl *server.Controller) (server.State, error) {
				return ctrl.Start(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&lifecycleDeviceArg, "device", "", "Target device id (default: the single connected device)")
	return cmd
}

func newStopCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "stop",
		Short: "Stop frida-server on a device",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			return runLifecycle(cmd, "stop", func(ctx context.Context, ctrl *server.Controller) (server.State, error) {
				return ctrl.Stop(ctx)
			})
		},
	}
	cmd.Flags().StringVar(&lifecycleDeviceArg, "device", "", "Target device id (default: the single connected device)")
	return cmd
}

func runLifecycle(cmd *cobra.Command, name string, op func(context.Context, *server.Controller) (server.State, error)) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, closer, _ := logx.New(name)
	if closer != nil {
		defer closer.Close()
	}

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	client := newADBClient(cfg.Android.ADBPath)
	device, err := client.Select(ctx, lifecycleDeviceArg)
	if err != nil {
		return err
	}

	ctrl := newController(client, cfg, device.ID, logger)
	state, err := op(ctx, ctrl)
	if err != nil {
		return err
	}

	if outputJSON {
		payload := struct {
			Device string `json:"device"`
			State  string `json:"state"`
		}{device.ID, string(state)}
		return writeJSON(cmd, payload)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "%s: %s\n", device.ID, state)
	return nil
}
