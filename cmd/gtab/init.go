package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/graph"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Create a graph database with one root",
	Long: `Create the graph database and add a root node of the given type.

The schema file names the types; the root type must be concrete. An existing
graph is only replaced with --force.

With --write-config the resolved settings are written to .gtab.yaml in the
working directory, unless that file already exists.`,
	Example: `  gtab init --type model.Project --name Apollo
  gtab init --type model.Project --schema model.toml --write-config`,
	RunE: func(cmd *cobra.Command, args []string) error {
		ctx := cmd.Context()
		rootType, _ := cmd.Flags().GetString("type")
		name, _ := cmd.Flags().GetString("name")
		force, _ := cmd.Flags().GetBool("force")
		writeConfig, _ := cmd.Flags().GetBool("write-config")

		schema, err := loadSchema()
		if err != nil {
			return err
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
		if st.Nodes > 0 && !force {
			return convert.Errorf(convert.KindConflict, "%s already holds %d nodes, use --force to replace them", store.Path(), st.Nodes)
		}

		g := graph.New(schema)
		root, err := g.AddRoot(rootType)
		if err != nil {
			return convert.Wrap(convert.KindConfig, err)
		}
		if name != "" {
			if _, ok := root.Type().Feature("name"); !ok {
				return convert.Errorf(convert.KindUnknownFeature, "type %s has no name attribute", rootType)
			}
			if err := g.SetAttr(root.ID(), "name", name); err != nil {
				return convert.Wrap(convert.KindType, err)
			}
		}
		if err := store.Save(ctx, g); err != nil {
			return err
		}
		app.logger.Info("graph initialized", "db", store.Path(), "root", root.ID(), "type", rootType)

		fmt.Printf("%s Initialized %s\n", successMark(), store.Path())
		fmt.Printf("   Root: %s (%s)\n", root.ID(), rootType)

		if writeConfig {
			if err := app.v.SafeWriteConfigAs(".gtab.yaml"); err != nil {
				fmt.Printf("%s Config not written: %v\n", warnMark(), err)
			} else {
				fmt.Printf("   Config: .gtab.yaml\n")
			}
		}
		return nil
	},
}

func init() {
	initCmd.Flags().String("type", "", "qualified type of the root node (required)")
	initCmd.Flags().String("name", "", "value of the root's name attribute")
	initCmd.Flags().Bool("force", false, "replace an existing graph")
	initCmd.Flags().Bool("write-config", false, "write the settings to .gtab.yaml")
	_ = initCmd.MarkFlagRequired("type")
	rootCmd.AddCommand(initCmd)
}
