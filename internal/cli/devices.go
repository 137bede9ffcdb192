package cli

import (
	"context"
	"fmt"
	"text/tabwriter"

	"github.com/spf13/cobra"

	"fridamgr/internal/artifact"
)

func newDevicesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "devices",
		Short: "List connected devices",
		Args:  cobra.NoArgs,
		RunE:  runDevices,
	}
	return cmd
}

type deviceRow struct {
	ID    string `json:"id"`
	State string `json:"state"`
	Model string `json:"model,omitempty"`
	ABI   string `json:"abi,omitempty"`
	Arch  string `json:"arch,omitempty"`
}

func runDevices(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	client := newADBClient(cfg.Android.ADBPath)
	devices, err := client.Devices(ctx)
	if err != nil {
		return err
	}

	rows := make([]deviceRow, 0, len(devices))
	for _, device := range devices {
		row := deviceRow{ID: device.ID, State: device.State, Model: device.Model}
		if device.State == "device" {
			if abi, err := client.ABI(ctx, device.ID); err == nil {
				row.ABI = abi
				row.Arch = string(artifact.FromABI(abi))
			}
		}
		rows = append(rows, row)
	}

	if outputJSON {
		payload := struct {
			Devices []deviceRow `json:"devices"`
		}{rows}
		return writeJSON(cmd, payload)
	}

	if len(rows) == 0 {
		fmt.Fprintln(cmd.OutOrStdout(), "No devices connected")
		return nil
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "ID\tSTATE\tMODEL\tABI\tARCH")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\t%s\n",
			row.ID,
			row.State,
			nonEmptyOrDash(row.Model),
			nonEmptyOrDash(row.ABI),
			nonEmptyOrDash(row.Arch),
		)
	}
	w.Flush()
	return nil
}
