package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"fridamgr/internal/artifact"
	"fridamgr/internal/config"
	"fridamgr/internal/logx"
	"fridamgr/internal/paths"
	"fridamgr/internal/tui"
)

var initInteractive bool

func newInitCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a fridamgr project",
		Args:  cobra.MaximumNArgs(1),
		RunE:  runInit,
	}

	cmd.Flags().BoolVar(&initInteractive, "interactive", false, "Pick version, architecture and elevation interactively")

	return cmd
}

func resolveInitDir(projectFlag string, args []string) (string, error) {
	if projectFlag != "" {
		return projectFlag, nil
	}

	cwd, err := os.Getwd()
	if err != nil {
		return "", fmt.Errorf("get working directory: %w", err)
	}

	if len(args) > 0 {
		if args[0] == "." {
			return cwd, nil
		}
		return filepath.Join(cwd, args[0]), nil
	}

	return cwd, nil
}

func runInit(cmd *cobra.Command, args []string) error {
	dir, err := resolveInitDir(projectDir, args)
	if err != nil {
		return err
	}

	pp, err := paths.Resolve(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(pp.Root, 0o755); err != nil {
		return fmt.Errorf("create project dir: %w", err)
	}

	logger, closer, err := logx.New("init")
	if err == nil {
		defer closer.Close()
		logger.Printf("init: project=%s", pp.Root)
	}

	exists, err := paths.FileExists(pp.ConfigFile)
	if err != nil {
		return fmt.Errorf("check config: %w", err)
	}

	cfg := config.Default()
	if exists {
		cfg, err = config.Load(pp.ConfigFile)
		if err != nil {
			return err
		}
	}

	if initInteractive {
		updated, cancelled, err := runSetupCarousel(cmd, cfg)
		if err != nil {
			return err
		}
		if cancelled {
			cmd.Println("Setup cancelled; config unchanged.")
			return nil
		}
		cfg = updated
	} else if exists {
		cmd.Printf("Project already initialized at %s\n", pp.Root)
		return nil
	}

	cfg.ApplyDefaults()
	if errs := cfg.Validate(); len(errs) > 0 {
		return fmt.Errorf("refusing to write invalid config: %v", errs)
	}
	if err := cfg.Save(pp.ConfigFile); err != nil {
		return err
	}

	cmd.Printf("Initialized project at %s\n", pp.Root)
	cmd.Printf("  created fridamgr.yaml (version %s, port %d)\n", cfg.Frida.Version, cfg.Android.ServerPort)
	return nil
}

// runSetupCarousel runs the interactive picker. The device probe inside it is
// best-effort; init works fine with nothing plugged in.
func runSetupCarousel(cmd *cobra.Command, cfg config.Config) (config.Config, bool, error) {
	vm, _, err := loadVersionMap()
	if err != nil {
		return config.Config{}, false, err
	}
	versions := append(vm.AliasNames(), vm.Versions()...)

	probe := func(ctx context.Context) (tui.DeviceProbe, error) {
		client := newADBClient(cfg.Android.ADBPath)
		device, err := client.Select(ctx, "")
		if err != nil {
			return tui.DeviceProbe{}, err
		}
		abi, err := client.ABI(ctx, device.ID)
		if err != nil {
			return tui.DeviceProbe{}, err
		}
		return tui.DeviceProbe{
			DeviceID: device.ID,
			Model:    device.Model,
			ABI:      abi,
			Arch:     string(artifact.FromABI(abi)),
		}, nil
	}

	result, err := tui.RunSetup(cmd.OutOrStdout(), versions, tui.SetupDefaults{
		Version:     cfg.Frida.Version,
		Arch:        cfg.Android.Arch,
		Port:        cfg.Android.ServerPort,
		RootCommand: cfg.Android.RootCommand,
		Source:      cfg.Android.Server.Source,
		AutoStart:   cfg.Android.AutoStart,
	}, probe)
	if err != nil {
		return config.Config{}, false, err
	}
	if result.Cancelled {
		return config.Config{}, true, nil
	}

	cfg.Frida.Version = result.Version
	cfg.Android.Arch = result.Arch
	cfg.Android.ServerPort = result.Port
	cfg.Android.RootCommand = result.RootCommand
	cfg.Android.Server.Source = result.Source
	cfg.Android.AutoStart = result.AutoStart
	return cfg, false, nil
}
