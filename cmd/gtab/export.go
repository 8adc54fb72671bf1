package main

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/relevance"
	"github.com/graphtab/gtab/internal/snapshot"
	"github.com/graphtab/gtab/internal/ui"
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Write the graph to one CSV table per type",
	Long: `Export every node under the root to the table directory, one table per
type and one row per node.

Rows already present keep their creation stamp. Rows marked "To delete" in
the previous tables are carried over, so the deletion history survives.

With --relevant only the structurally relevant nodes and the nodes their
categories point at are exported. Each category becomes a column listing
related identifiers. The structural predicate and categories come from the
relevance section of the config; --expression overrides the predicate.`,
	Example: `  gtab export
  gtab export --relevant --containments
  gtab export --relevant --expression 'depth <= 2'`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		relevant, _ := cmd.Flags().GetBool("relevant")

		store, g, root, err := loadGraph(ctx)
		if err != nil {
			return err
		}
		defer store.Close()

		exp, err := export.New(g, export.Config{
			Dir:    app.settings.Directory,
			Mode:   snapshot.Fresh,
			Format: app.format,
			Logger: app.logger.Logger,
		})
		if err != nil {
			return err
		}

		m, finish := newMonitor(ctx, "Exporting")
		start := time.Now()
		var res *export.Result
		if relevant {
			var rel export.Relevance
			if rel, err = relevanceFlags(cmd); err != nil {
				finish()
				return err
			}
			res, err = exp.ExportRelevant(m, root, rel)
		} else {
			res, err = exp.Export(m, root)
		}
		finish()
		if err != nil {
			return err
		}
		if res.Canceled {
			fmt.Printf("%s Export canceled after %s\n", warnMark(), ui.Count(res.Rows, "row"))
			return nil
		}

		fmt.Printf("%s Exported to %s in %v\n", successMark(), ui.RenderAccent(app.settings.Directory),
			time.Since(start).Round(time.Millisecond))
		pairs := [][2]string{
			{"Tables", fmt.Sprint(len(res.Tables))},
			{"Rows", fmt.Sprint(res.Rows)},
			{"References", fmt.Sprint(res.References)},
			{"Tombstones", fmt.Sprint(res.Tombstones)},
		}
		if relevant {
			pairs = append(pairs, [2]string{"Relevant", fmt.Sprint(res.RelevantIDs)})
		}
		for _, line := range ui.KeyValues(pairs) {
			fmt.Printf("   %s\n", line)
		}
		return nil
	},
}

// relevanceFlags builds the relevance settings, letting flags override the
// config.
func relevanceFlags(cmd *cobra.Command) (export.Relevance, error) {
	s := *app.settings
	if cmd.Flags().Changed("expression") {
		s.Relevance.Expression, _ = cmd.Flags().GetString("expression")
	}
	if cmd.Flags().Changed("containments") {
		s.Relevance.Containments, _ = cmd.Flags().GetBool("containments")
	}
	pred, err := s.Predicate()
	if err != nil {
		return export.Relevance{}, err
	}
	reg, err := s.Registry()
	if err != nil {
		return export.Relevance{}, err
	}
	app.logger.Debug("relevance settings", "expression", pred.String(), "categories", reg.Len(),
		"containments", s.Relevance.Containments)
	return export.Relevance{
		Predicate:    pred,
		Registry:     reg,
		Containments: s.Relevance.Containments,
	}, nil
}

func init() {
	exportCmd.Flags().Bool("relevant", false, "export only the relevant nodes")
	exportCmd.Flags().Bool("containments", false, "with --relevant, keep the containment columns")
	exportCmd.Flags().String("expression", relevance.DefaultExpression, "with --relevant, the structural predicate")
	rootCmd.AddCommand(exportCmd)
}
