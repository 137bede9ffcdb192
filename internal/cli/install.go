package cli

import (
	"context"
	"errors"
	"fmt"
	"text/tabwriter"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"fridamgr/internal/adb"
	"fridamgr/internal/artifact"
	"fridamgr/internal/config"
	"fridamgr/internal/logx"
	"fridamgr/internal/tui"
)

var (
	installArchArgs   []string
	installNoProgress bool
)

func newInstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "install [version]",
		Short: "Download a frida-server version into the cache",
		Long: "Resolves the requested version (or alias such as latest/stable/lts) " +
			"against the version map and downloads the server binary for each " +
			"requested architecture into the global cache.",
		Args: cobra.MaximumNArgs(1),
		RunE: runInstall,
	}

	cmd.Flags().StringSliceVar(&installArchArgs, "arch", nil, "Target architecture (repeat flag for multiple; default: configured arch)")
	cmd.Flags().BoolVar(&installNoProgress, "no-progress", false, "Disable interactive progress output")

	return cmd
}

type installRowResult struct {
	Version string `json:"version"`
	Arch    string `json:"arch"`
	Status  string `json:"status"`
	Path    string `json:"path,omitempty"`
	Error   string `json:"error,omitempty"`
}

func runInstall(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, closer, _ := logx.New("install")
	if closer != nil {
		defer closer.Close()
	}
	logf := func(format string, v ...any) {
		if logger != nil {
			logger.Printf(format, v...)
		}
	}

	pp, cfg, err := loadProject()
	if err != nil {
		return err
	}

	request := cfg.Frida.Version
	if len(args) > 0 {
		request = args[0]
	}

	vm, _, err := loadVersionMap()
	if err != nil {
		return err
	}
	resolved, err := vm.Resolve(request)
	if err != nil {
		return err
	}
	logf("install: %s resolved to %s (tools %s)", request, resolved.Version, resolved.ToolsVersion)

	arches, err := installTargets(ctx, cfg)
	if err != nil {
		return err
	}

	cache, err := newArtifactCache(cfg)
	if err != nil {
		return err
	}
	src := artifactSource(pp, cfg)

	rows := make([]installRowResult, len(arches))
	for i, arch := range arches {
		rows[i] = installRowResult{Version: resolved.Version, Arch: string(arch), Status: "pending"}
	}

	acquire := func(update func(i int, status string)) {
		for i, arch := range arches {
			key := artifact.Key{Version: resolved.Version, Arch: arch}
			if cache.Has(key) {
				rows[i].Status = "cached"
				rows[i].Path = cache.Path(key)
				update(i, "cached")
				logf("install: %s cache hit", key)
				continue
			}
			update(i, "downloading")
			path, err := cache.Acquire(ctx, key, src)
			if err != nil {
				rows[i].Status = "error"
				rows[i].Error = err.Error()
				update(i, "error")
				logf("install: %s failed: %v", key, err)
				continue
			}
			rows[i].Status = "downloaded"
			rows[i].Path = path
			update(i, "downloaded")
			logf("install: %s -> %s", key, path)
		}
	}

	if tui.DetectMode(cmd.OutOrStdout(), installNoProgress, outputJSON) == tui.ModeTUI {
		targets := make([]tui.InstallTarget, len(arches))
		for i, arch := range arches {
			targets[i] = tui.InstallTarget{Version: resolved.Version, Arch: string(arch)}
		}
		model := tui.NewInstallModel(fmt.Sprintf("Installing frida-server %s", resolved.Version), targets)
		err = tui.RunInstall(cmd.OutOrStdout(), model, func(send func(tea.Msg)) {
			acquire(func(i int, status string) {
				detail := rows[i].Path
				if rows[i].Error != "" {
					detail = rows[i].Error
				}
				send(tui.TargetStatusMsg{Arch: string(arches[i]), Status: status, Detail: detail})
			})
		})
		if err != nil {
			return err
		}
	} else {
		acquire(func(int, string) {})
	}

	if outputJSON {
		payload := struct {
			Version      string             `json:"version"`
			ToolsVersion string             `json:"tools_version,omitempty"`
			Rows         []installRowResult `json:"rows"`
		}{resolved.Version, resolved.ToolsVersion, rows}
		if err := writeJSON(cmd, payload); err != nil {
			return err
		}
	} else {
		w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
		fmt.Fprintln(w, "VERSION\tARCH\tSTATUS\tPATH")
		for _, row := range rows {
			fmt.Fprintf(w, "%s\t%s\t%s\t%s\n", row.Version, row.Arch, row.Status, nonEmptyOrDash(row.Path))
		}
		w.Flush()
	}

	var failed []string
	for _, row := range rows {
		if row.Status == "error" {
			failed = append(failed, fmt.Sprintf("%s/%s: %s", row.Version, row.Arch, row.Error))
		}
	}
	if len(failed) > 0 {
		return fmt.Errorf("install incomplete: %d of %d architectures failed:\n  %s",
			len(failed), len(rows), joinLines(failed))
	}
	return nil
}

func joinLines(lines []string) string {
	out := ""
	for i, line := range lines {
		if i > 0 {
			out += "\n  "
		}
		out += line
	}
	return out
}

// installTargets decides which architectures to install for. Explicit --arch
// flags win; otherwise the configured selector applies, with "auto" resolved
// against the single connected device.
func installTargets(ctx context.Context, cfg config.Config) ([]artifact.Arch, error) {
	if len(installArchArgs) > 0 {
		arches := make([]artifact.Arch, 0, len(installArchArgs))
		seen := map[artifact.Arch]struct{}{}
		for _, raw := range installArchArgs {
			arch, err := artifact.Parse(raw)
			if err != nil {
				return nil, err
			}
			if _, ok := seen[arch]; ok {
				continue
			}
			seen[arch] = struct{}{}
			arches = append(arches, arch)
		}
		return arches, nil
	}

	if cfg.Android.Arch != "" && cfg.Android.Arch != "auto" {
		arch, err := artifact.Parse(cfg.Android.Arch)
		if err != nil {
			return nil, err
		}
		return []artifact.Arch{arch}, nil
	}

	client := newADBClient(cfg.Android.ADBPath)
	device, err := client.Select(ctx, "")
	if err != nil {
		if errors.Is(err, adb.ErrNoDevice) {
			return nil, fmt.Errorf("architecture is auto and no device is connected; pass --arch explicitly: %w", err)
		}
		return nil, err
	}
	arch, err := resolveArch(ctx, client, device.ID, "auto")
	if err != nil {
		return nil, err
	}
	return []artifact.Arch{arch}, nil
}
