package cli

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strings"

	"github.com/spf13/cobra"

	"fridamgr/internal/adb"
	"fridamgr/internal/artifact"
	"fridamgr/internal/config"
	"fridamgr/internal/paths"
	"fridamgr/internal/server"
	"fridamgr/internal/versionmap"
)

// newADBClient is swapped out by command tests.
var newADBClient = adb.NewClient

func loadProject() (paths.ProjectPaths, config.Config, error) {
	pp, err := paths.Resolve(projectDir)
	if err != nil {
		return paths.ProjectPaths{}, config.Config{}, err
	}
	cfg, err := config.Load(pp.ConfigFile)
	if err != nil {
		return paths.ProjectPaths{}, config.Config{}, err
	}
	return pp, cfg, nil
}

func loadVersionMap() (versionmap.Map, string, error) {
	mapPath, err := paths.VersionMapFile()
	if err != nil {
		return versionmap.Map{}, "", err
	}
	vm, err := versionmap.LoadOrInit(mapPath)
	if err != nil {
		return versionmap.Map{}, "", err
	}
	return vm, mapPath, nil
}

func newArtifactCache(cfg config.Config) (*artifact.Cache, error) {
	root, err := paths.CacheRoot()
	if err != nil {
		return nil, err
	}
	return &artifact.Cache{Root: root, ReleasesURL: cfg.Distribution.ReleasesURL}, nil
}

// artifactSource builds the acquisition source from configuration, resolving a
// relative local path against the project root.
func artifactSource(pp paths.ProjectPaths, cfg config.Config) artifact.Source {
	if cfg.Android.Server.Source == config.SourceLocal {
		return artifact.Local(paths.ResolveProjectPath(pp.Root, cfg.Android.Server.LocalPath))
	}
	return artifact.Download()
}

// resolveArch resolves the effective architecture for a device, querying the
// device ABI when the selector is "auto". The query result is never cached
// beyond the current invocation.
func resolveArch(ctx context.Context, client *adb.Client, deviceID, selector string) (artifact.Arch, error) {
	if selector == "" || selector == "auto" {
		abi, err := client.ABI(ctx, deviceID)
		if err != nil {
			return "", err
		}
		return artifact.FromABI(abi), nil
	}
	return artifact.Parse(selector)
}

func newController(client *adb.Client, cfg config.Config, deviceID string, logger *log.Logger) *server.Controller {
	return &server.Controller{
		Bridge:      client,
		DeviceID:    deviceID,
		Plan:        server.DerivePlan(cfg.Android),
		RootCommand: cfg.Android.RootCommand,
		Logger:      logger,
	}
}

func writeJSON(cmd *cobra.Command, payload any) error {
	out, err := json.MarshalIndent(payload, "", "  ")
	if err != nil {
		return fmt.Errorf("encode json: %w", err)
	}
	fmt.Fprintln(cmd.OutOrStdout(), string(out))
	return nil
}

func nonEmptyOrDash(value string) string {
	value = strings.TrimSpace(value)
	if value == "" {
		return "-"
	}
	return value
}
