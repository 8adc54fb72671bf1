package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/importer"
	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/ui"
)

var importCmd = &cobra.Command{
	Use:   "import",
	Short: "Apply the marked rows of the tables to the graph",
	Long: `Import every table of the directory into the graph and save it.

Only marked rows are applied, in three phases:
  1. rows marked "To delete" remove their node and its subtree
  2. rows marked "To create" add nodes; %name% identifiers are temporary
  3. rows marked "To create" or "To update" set their cells

The import is all-or-nothing: the first error rolls every change back and
names the table, line and column at fault.

Afterwards the graph is exported again into the after/ directory so that
'gtab diff' can show what the import changed. With --refresh the tables
themselves are rewritten as well, which clears the markers and replaces
temporary identifiers.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		skipAudit, _ := cmd.Flags().GetBool("skip-audit")
		refresh, _ := cmd.Flags().GetBool("refresh")

		store, g, root, err := loadGraph(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		im, err := importer.New(g, importer.Config{
			Dir:       app.settings.Directory,
			Format:    app.format,
			Logger:    app.logger.Logger,
			SkipAudit: skipAudit,
		})
		if err != nil {
			return err
		}

		m, finish := newMonitor(ctx, "Importing")
		start := time.Now()
		res, err := im.Import(m, root)
		finish()
		if res == nil {
			return err
		}
		if res.Canceled {
			fmt.Printf("%s Import canceled, nothing was applied\n", warnMark())
			return nil
		}
		auditErr := err

		if err := store.Save(ctx, g); err != nil {
			return err
		}

		fmt.Printf("%s Imported in %v\n", successMark(), time.Since(start).Round(time.Millisecond))
		for _, line := range ui.KeyValues([][2]string{
			{"Created", fmt.Sprint(res.Created)},
			{"Updated", fmt.Sprint(res.Updated)},
			{"Deleted", fmt.Sprint(res.Deleted)},
		}) {
			fmt.Printf("   %s\n", line)
		}
		if w := res.Warning(); w != "" {
			fmt.Printf("\n%s %s\n", warnMark(), w)
		}
		if auditErr != nil {
			fmt.Printf("\n%s Audit export failed: %v\n", warnMark(), auditErr)
		}

		if refresh {
			if !g.IsLive(root.ID()) {
				return fmt.Errorf("failed to refresh tables: root %s was deleted", root.ID())
			}
			exp, err := export.New(g, export.Config{
				Dir:    app.settings.Directory,
				Mode:   snapshot.Fresh,
				Format: app.format,
				Logger: app.logger.Logger,
			})
			if err != nil {
				return err
			}
			rm, finish := newMonitor(ctx, "Refreshing")
			out, err := exp.Export(rm, root)
			finish()
			if err != nil {
				return fmt.Errorf("failed to refresh tables: %w", err)
			}
			fmt.Printf("%s Refreshed %s\n", successMark(), ui.Count(len(out.Tables), "table"))
		}
		return nil
	},
}

func init() {
	importCmd.Flags().Bool("skip-audit", false, "do not export into the after/ directory")
	importCmd.Flags().Bool("refresh", false, "rewrite the tables from the imported graph")
	rootCmd.AddCommand(importCmd)
}
