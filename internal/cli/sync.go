package cli

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"fridamgr/internal/logx"
	"fridamgr/internal/tui"
	"fridamgr/internal/versionmap"
)

func newSyncCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "sync",
		Short: "Refresh the version map from the release feed",
		Args:  cobra.NoArgs,
		RunE:  runSync,
	}
	return cmd
}

func runSync(cmd *cobra.Command, _ []string) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}

	logger, closer, _ := logx.New("sync")
	if closer != nil {
		defer closer.Close()
	}

	_, cfg, err := loadProject()
	if err != nil {
		return err
	}

	current, mapPath, err := loadVersionMap()
	if err != nil {
		return err
	}

	var status *tui.StatusWriter
	if !outputJSON {
		status = tui.NewStatusWriter(cmd.ErrOrStderr())
		status.Update("Fetching release list...")
		defer status.Stop()
	}

	next, err := versionmap.Refresh(ctx, current, versionmap.RefreshOptions{
		APIBase: cfg.Distribution.APIURL,
	})
	if err != nil {
		return err
	}
	if err := next.Save(mapPath); err != nil {
		return err
	}
	if status != nil {
		status.Stop()
	}

	added := 0
	for version := range next.Mappings {
		if _, ok := current.Mappings[version]; !ok {
			added++
		}
	}
	if logger != nil {
		logger.Printf("sync: %d versions (%d new), latest=%s", len(next.Mappings), added, next.Aliases["latest"])
	}

	if outputJSON {
		payload := struct {
			Versions int    `json:"versions"`
			New      int    `json:"new"`
			Latest   string `json:"latest"`
		}{len(next.Mappings), added, next.Aliases["latest"]}
		return writeJSON(cmd, payload)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Version map updated: %d versions (%d new), latest is %s\n",
		len(next.Mappings), added, next.Aliases["latest"])
	return nil
}
