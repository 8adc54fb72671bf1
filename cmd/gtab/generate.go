package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphtab/gtab/internal/export"
	"github.com/graphtab/gtab/internal/ui"
)

// targetDir returns the directory argument, or the configured table directory.
func targetDir(args []string) string {
	if len(args) > 0 {
		return args[0]
	}
	return app.settings.Directory
}

var templateCmd = &cobra.Command{
	Use:   "template [dir]",
	Short: "Write an empty table for every concrete type",
	Long: `Write one header-only table per concrete type of the schema.

Existing tables with the same name are overwritten. Fill the rows in, mark
them "To create" and run 'gtab import' to populate a fresh graph.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := loadSchema()
		if err != nil {
			return err
		}
		dir := targetDir(args)
		m, finish := newMonitor(cmd.Context(), "Writing templates")
		files, err := export.GenerateTemplates(m, dir, app.format, schema)
		finish()
		if err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s to %s\n", successMark(), ui.Count(len(files), "template"), ui.RenderAccent(dir))
		for _, f := range files {
			fmt.Printf("   %s\n", ui.RenderMuted(f))
		}
		return nil
	},
}

var metamodelCmd = &cobra.Command{
	Use:   "metamodel [dir]",
	Short: "Write the metamodel table",
	Long: `Write Metamodel.csv, describing every feature of every concrete type.

Each row names the class, whether the feature is an attribute or a
reference, the feature name and the value type. Relevance categories that
apply to a type are listed as extra reference rows.`,
	Args: cobra.MaximumNArgs(1),
	RunE: func(cmd *cobra.Command, args []string) error {
		schema, err := loadSchema()
		if err != nil {
			return err
		}
		reg, err := app.settings.Registry()
		if err != nil {
			return err
		}
		dir := targetDir(args)
		m, finish := newMonitor(cmd.Context(), "Writing metamodel")
		file, err := export.GenerateMetamodel(m, dir, app.format, schema, reg)
		finish()
		if err != nil {
			return err
		}
		fmt.Printf("%s Wrote %s\n", successMark(), ui.RenderAccent(file))
		return nil
	},
}

func init() {
	rootCmd.AddCommand(templateCmd)
	rootCmd.AddCommand(metamodelCmd)
}
