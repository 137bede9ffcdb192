package cli

import (
	"fmt"
	"strings"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

var listInstalled bool

func newListCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List known frida-server versions",
		Args:  cobra.NoArgs,
		RunE:  runList,
	}

	cmd.Flags().BoolVar(&listInstalled, "installed", false, "Only list versions present in the cache")

	return cmd
}

type listRow struct {
	Version      string   `json:"version"`
	ToolsVersion string   `json:"tools_version,omitempty"`
	Aliases      []string `json:"aliases,omitempty"`
	Installed    []string `json:"installed,omitempty"`
}

func runList(cmd *cobra.Command, _ []string) error {
	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	cache, err := newArtifactCache(cfg)
	if err != nil {
		return err
	}
	entries, err := cache.Installed()
	if err != nil {
		return err
	}
	installedArches := map[string][]string{}
	for _, entry := range entries {
		installedArches[entry.Key.Version] = append(installedArches[entry.Key.Version], string(entry.Key.Arch))
	}

	vm, _, err := loadVersionMap()
	if err != nil {
		return err
	}
	aliasesByVersion := map[string][]string{}
	for _, alias := range vm.AliasNames() {
		version := vm.Aliases[alias]
		aliasesByVersion[version] = append(aliasesByVersion[version], alias)
	}

	var rows []listRow
	for _, version := range vm.Versions() {
		if listInstalled && len(installedArches[version]) == 0 {
			continue
		}
		rows = append(rows, listRow{
			Version:      version,
			ToolsVersion: vm.Mappings[version],
			Aliases:      aliasesByVersion[version],
			Installed:    installedArches[version],
		})
	}
	if listInstalled {
		// Locally built versions absent from the map still show up.
		for version, arches := range installedArches {
			if _, known := vm.Mappings[version]; !known {
				rows = append(rows, listRow{Version: version, Installed: arches})
			}
		}
	}

	if outputJSON {
		payload := struct {
			Versions []listRow `json:"versions"`
		}{rows}
		return writeJSON(cmd, payload)
	}

	w := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
	fmt.Fprintln(w, "VERSION\tTOOLS\tALIASES\tINSTALLED")
	for _, row := range rows {
		fmt.Fprintf(w, "%s\t%s\t%s\t%s\n",
			row.Version,
			nonEmptyOrDash(row.ToolsVersion),
			nonEmptyOrDash(strings.Join(row.Aliases, ", ")),
			nonEmptyOrDash(strings.Join(row.Installed, ", ")),
		)
	}
	w.Flush()

	if !vm.RefreshedAt.IsZero() {
		fmt.Fprintf(cmd.OutOrStdout(), "\nVersion map refreshed %s\n", vm.RefreshedAt.Format("2006-01-02 15:04 MST"))
	}
	return nil
}
