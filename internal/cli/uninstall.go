package cli

import (
	"github.com/spf13/cobra"

	"fridamgr/internal/artifact"
	"fridamgr/internal/logx"
)

var uninstallArchArg string

func newUninstallCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "uninstall <version>",
		Short: "Remove a cached frida-server version",
		Args:  cobra.ExactArgs(1),
		RunE:  runUninstall,
	}

	cmd.Flags().StringVar(&uninstallArchArg, "arch", "", "Only remove one architecture (default: all)")

	return cmd
}

func runUninstall(cmd *cobra.Command, args []string) error {
	logger, closer, _ := logx.New("uninstall")
	if closer != nil {
		defer closer.Close()
	}

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	// Aliases work here too: `uninstall lts` removes whatever lts points at.
	vm, _, err := loadVersionMap()
	if err != nil {
		return err
	}
	version := args[0]
	if resolved, err := vm.Resolve(version); err == nil {
		version = resolved.Version
	}

	cache, err := newArtifactCache(cfg)
	if err != nil {
		return err
	}
	entries, err := cache.Installed()
	if err != nil {
		return err
	}

	var removed []artifact.Key
	for _, entry := range entries {
		if entry.Key.Version != version {
			continue
		}
		if uninstallArchArg != "" && string(entry.Key.Arch) != uninstallArchArg {
			continue
		}
		if err := cache.Remove(entry.Key); err != nil {
			return err
		}
		if logger != nil {
			logger.Printf("uninstall: removed %s", entry.Key)
		}
		removed = append(removed, entry.Key)
	}

	if outputJSON {
		keys := make([]string, len(removed))
		for i, key := range removed {
			keys[i] = key.String()
		}
		payload := struct {
			Version string   `json:"version"`
			Removed []string `json:"removed"`
		}{version, keys}
		return writeJSON(cmd, payload)
	}

	if len(removed) == 0 {
		cmd.Printf("Nothing installed for %s\n", version)
		return nil
	}
	for _, key := range removed {
		cmd.Printf("Removed %s\n", key)
	}
	return nil
}
