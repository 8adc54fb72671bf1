package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/daemon"
	"github.com/graphtab/gtab/internal/dashboard"
	"github.com/graphtab/gtab/internal/ui"
)

var watchCmd = &cobra.Command{
	Use:   "watch",
	Short: "Import table edits as soon as they are saved",
	Long: `Watch the table directory and sync the graph whenever a table is saved.

Each sync imports the marked rows, saves the graph and rewrites the tables:
markers are cleared and temporary identifiers replaced. A failed import
changes nothing; fix the rows and save again.

The quiet period after the last edit is watch.debounce (default 500ms).
With --dashboard every sync is also broadcast as JSON to WebSocket clients
connected to ws://<addr>/ws.

Press Ctrl+C to stop.`,
	Example: `  gtab watch
  gtab watch --dashboard localhost:8080`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		debounce, err := time.ParseDuration(app.settings.WatchDebounce)
		if err != nil {
			return convert.Errorf(convert.KindConfig, "invalid watch.debounce %q: %v", app.settings.WatchDebounce, err)
		}

		store, g, root, err := loadGraph(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		onSync := printSync
		if addr, _ := cmd.Flags().GetString("dashboard"); addr != "" {
			server := dashboard.NewServer(dashboard.Config{Addr: addr, Logger: app.logger.Logger})
			if err := server.Start(); err != nil {
				return err
			}
			defer server.Stop()
			h := dashboard.NewHandler(server, app.settings.Directory, app.logger.Logger)
			onSync = func(res *daemon.SyncResult, err error) {
				printSync(res, err)
				h.OnSync(res, err)
			}
			fmt.Printf("%s Dashboard on ws://%s/ws\n", successMark(), server.Addr())
		}

		d, err := daemon.New(g, root, daemon.Config{
			Dir:      app.settings.Directory,
			Format:   app.format,
			Store:    store,
			Debounce: debounce,
			Logger:   app.logger.Logger,
			OnSync:   onSync,
		})
		if err != nil {
			return err
		}

		fmt.Printf("%s Watching %s (Ctrl+C to stop)\n", ui.RenderAccent("👀"), ui.RenderAccent(app.settings.Directory))
		return d.Run(ctx)
	},
}

func printSync(res *daemon.SyncResult, err error) {
	stamp := ui.RenderMuted(time.Now().Format(time.TimeOnly))
	switch {
	case err != nil:
		fmt.Printf("%s %s Sync failed: %v\n", stamp, ui.RenderFail("✗"), err)
	case res == nil || res.Skipped:
	case res.Import.Canceled:
		fmt.Printf("%s %s Sync canceled\n", stamp, warnMark())
	default:
		fmt.Printf("%s %s Synced: %d created, %d updated, %d deleted\n", stamp, successMark(),
			res.Import.Created, res.Import.Updated, res.Import.Deleted)
		if w := res.Import.Warning(); w != "" {
			fmt.Printf("%s %s\n", warnMark(), w)
		}
	}
}

func init() {
	watchCmd.Flags().String("dashboard", "", "serve sync events over WebSocket on this address")
	rootCmd.AddCommand(watchCmd)
}
