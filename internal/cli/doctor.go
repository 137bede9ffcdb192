package cli

import (
	"context"
	"fmt"

	"github.com/charmbracelet/lipgloss"
	"github.com/spf13/cobra"

	"fridamgr/internal/adb"
	"fridamgr/internal/artifact"
	"fridamgr/internal/config"
	"fridamgr/internal/paths"
)

func newDoctorCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "doctor",
		Short: "Check project and device health",
		RunE:  runDoctor,
	}
}

type healthCheck struct {
	Name    string `json:"name"`
	Status  string `json:"status"` // "ok", "warning", "error"
	Summary string `json:"summary"`
}

func runDoctor(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return err
	}

	var checks []healthCheck

	cfg, cfgErr := config.Load(pp.ConfigFile)
	checks = append(checks, checkConfig(cfg, cfgErr))
	if cfgErr != nil {
		// Remaining checks need a usable config.
		return writeDoctorResult(cmd, pp.Root, checks)
	}

	checks = append(checks, checkVersionMap(cfg))
	checks = append(checks, checkCache(cfg))

	client := newADBClient(cfg.Android.ADBPath)
	deviceCheck, device := checkDevice(ctx, client)
	checks = append(checks, deviceCheck)
	if device.ID != "" {
		checks = append(checks, checkElevation(ctx, client, cfg, device.ID))
	}

	return writeDoctorResult(cmd, pp.Root, checks)
}

func checkConfig(cfg config.Config, cfgErr error) healthCheck {
	if cfgErr != nil {
		return healthCheck{Name: "Config", Status: "error", Summary: cfgErr.Error()}
	}
	summary := fmt.Sprintf("version %s, arch %s, port %d",
		cfg.Frida.Version, cfg.Android.Arch, cfg.Android.ServerPort)
	return healthCheck{Name: "Config", Status: "ok", Summary: summary}
}

func checkVersionMap(cfg config.Config) healthCheck {
	vm, _, err := loadVersionMap()
	if err != nil {
		return healthCheck{Name: "Versions", Status: "error", Summary: err.Error()}
	}
	if _, err := vm.Resolve(cfg.Frida.Version); err != nil {
		return healthCheck{Name: "Versions", Status: "error",
			Summary: fmt.Sprintf("configured version %q not in map; run `fridamgr sync`", cfg.Frida.Version)}
	}
	summary := fmt.Sprintf("%d versions known", len(vm.Mappings))
	if vm.RefreshedAt.IsZero() {
		return healthCheck{Name: "Versions", Status: "warning", Summary: summary + " (builtin map, never synced)"}
	}
	return healthCheck{Name: "Versions", Status: "ok",
		Summary: fmt.Sprintf("%s, synced %s", summary, vm.RefreshedAt.Format("2006-01-02"))}
}

func checkCache(cfg config.Config) healthCheck {
	cache, err := newArtifactCache(cfg)
	if err != nil {
		return healthCheck{Name: "Cache", Status: "error", Summary: err.Error()}
	}
	entries, err := cache.Installed()
	if err != nil {
		return healthCheck{Name: "Cache", Status: "error", Summary: err.Error()}
	}
	if len(entries) == 0 {
		return healthCheck{Name: "Cache", Status: "warning", Summary: "empty; run `fridamgr install`"}
	}
	var size int64
	for _, entry := range entries {
		size += entry.Size
	}
	return healthCheck{Name: "Cache", Status: "ok",
		Summary: fmt.Sprintf("%d binaries, %.1f MB", len(entries), float64(size)/(1024*1024))}
}

func checkDevice(ctx context.Context, client *adb.Client) (healthCheck, adb.Device) {
	device, err := client.Select(ctx, "")
	if err != nil {
		return healthCheck{Name: "Device", Status: "warning", Summary: err.Error()}, adb.Device{}
	}
	abi, err := client.ABI(ctx, device.ID)
	if err != nil {
		return healthCheck{Name: "Device", Status: "warning",
			Summary: fmt.Sprintf("%s connected but ABI query failed: %v", device.ID, err)}, device
	}
	return healthCheck{Name: "Device", Status: "ok",
		Summary: fmt.Sprintf("%s (%s) %s", device.ID, nonEmptyOrDash(device.Model), artifact.FromABI(abi))}, device
}

func checkElevation(ctx context.Context, client *adb.Client, cfg config.Config, deviceID string) healthCheck {
	result, err := client.Shell(ctx, deviceID, fmt.Sprintf("%s -c id", cfg.Android.RootCommand))
	if err != nil {
		return healthCheck{Name: "Elevation", Status: "error", Summary: err.Error()}
	}
	if result.ExitCode != 0 {
		return healthCheck{Name: "Elevation", Status: "error",
			Summary: fmt.Sprintf("%q cannot run inline commands on %s", cfg.Android.RootCommand, deviceID)}
	}
	return healthCheck{Name: "Elevation", Status: "ok", Summary: cfg.Android.RootCommand}
}

func writeDoctorResult(cmd *cobra.Command, projectRoot string, checks []healthCheck) error {
	if outputJSON {
		return writeJSON(cmd, checks)
	}

	bold := lipgloss.NewStyle().Bold(true).Inline(true)
	green := lipgloss.NewStyle().Foreground(lipgloss.Color("2")).Inline(true)
	yellow := lipgloss.NewStyle().Foreground(lipgloss.Color("3")).Inline(true)
	red := lipgloss.NewStyle().Foreground(lipgloss.Color("1")).Inline(true)

	out := cmd.OutOrStdout()
	fmt.Fprintln(out, bold.Render("PROJECT HEALTH:")+" "+projectRoot)

	for _, c := range checks {
		var statusStr string
		switch c.Status {
		case "ok":
			statusStr = green.Render("OK")
		case "warning":
			statusStr = yellow.Render("WARN")
		case "error":
			statusStr = red.Render("ERROR")
		}
		fmt.Fprintf(out, "  %-12s %s    %s\n", c.Name+":", statusStr, c.Summary)
	}

	return nil
}
