package main

import (
	"errors"
	"fmt"
	"io/fs"
	"os"
	"slices"
	"strings"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/ui"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show the stored graph and the pending table edits",
	Long: `Display the state of the graph database and the table directory.

Shows:
  - Node, root, attribute and reference counts, per type
  - Time of the last save
  - Rows per table and the rows marked for creation, update or deletion`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()

		if _, err := os.Stat(app.settings.DB); errors.Is(err, fs.ErrNotExist) {
			fmt.Printf("\n%s No graph database at %s\n", warnMark(), app.settings.DB)
			fmt.Printf("   Run 'gtab init' to create one\n\n")
			return nil
		}
		store, err := openStore(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		st, err := store.Stats(ctx)
		if err != nil {
			return err
		}
		saved := "never"
		if !st.SavedAt.IsZero() {
			saved = st.SavedAt.Local().Format(time.DateTime)
		}
		pairs := [][2]string{
			{"Database", store.Path()},
			{"Nodes", fmt.Sprint(st.Nodes)},
			{"Roots", fmt.Sprint(st.Roots)},
			{"Attributes", fmt.Sprint(st.Attributes)},
			{"References", fmt.Sprint(st.References)},
			{"Saved", saved},
		}
		types := make([]string, 0, len(st.Types))
		for t := range st.Types {
			types = append(types, t)
		}
		slices.Sort(types)
		for _, t := range types {
			pairs = append(pairs, [2]string{"  " + t, fmt.Sprint(st.Types[t])})
		}
		fmt.Println(ui.RenderBox("Graph", ui.KeyValues(pairs)))

		summaries, err := snapshot.Summarize(app.settings.Directory, app.format)
		if err != nil {
			return err
		}
		if len(summaries) == 0 {
			fmt.Printf("%s No tables in %s, run 'gtab export'\n", warnMark(), app.settings.Directory)
			return nil
		}
		var lines []string
		pending := 0
		for _, s := range summaries {
			line := fmt.Sprintf("%-40s %s", s.Table, ui.Count(s.Rows, "row"))
			if s.Pending() {
				pending++
				var marks []string
				if s.ToCreate > 0 {
					marks = append(marks, fmt.Sprintf("+%d", s.ToCreate))
				}
				if s.ToUpdate > 0 {
					marks = append(marks, fmt.Sprintf("~%d", s.ToUpdate))
				}
				if s.ToDelete > 0 {
					marks = append(marks, fmt.Sprintf("-%d", s.ToDelete))
				}
				line += "  " + ui.RenderWarn(strings.Join(marks, " "))
			}
			lines = append(lines, line)
		}
		fmt.Println(ui.RenderBox("Tables in "+app.settings.Directory, lines))
		if pending > 0 {
			fmt.Printf("%s %s with marked rows, run 'gtab import'\n", warnMark(), ui.Count(pending, "table"))
		} else {
			fmt.Printf("%s No marked rows\n", successMark())
		}
		return nil
	},
}

var diffCmd = &cobra.Command{
	Use:   "diff",
	Short: "Compare the tables with the audit export of the last import",
	Long: `Compare every table of the directory with its counterpart in after/,
written by the last import.

Rows are matched by identifier. Bookkeeping columns are ignored, so only
edits that the import did not apply, or applied differently, show up.`,
	RunE: func(cmd *cobra.Command, args []string) error {
		diffs, err := snapshot.Diff(app.settings.Directory, app.format)
		if err != nil {
			return err
		}
		changed := 0
		for _, d := range diffs {
			if d.Empty() {
				continue
			}
			changed++
			fmt.Printf("%s\n", ui.RenderBold(d.Table))
			for _, id := range d.Added {
				fmt.Printf("   %s %s\n", ui.RenderPass("+"), id)
			}
			for _, id := range d.Removed {
				fmt.Printf("   %s %s\n", ui.RenderFail("-"), id)
			}
			for _, id := range d.Changed {
				fmt.Printf("   %s %s\n", ui.RenderWarn("~"), id)
			}
		}
		if changed == 0 {
			fmt.Printf("%s Tables match the audit export\n", successMark())
		}
		return nil
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(diffCmd)
}
