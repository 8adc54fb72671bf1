// Command gtab exports an object graph to one CSV table per type and imports
// edited tables back.
package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/graphtab/gtab/internal/config"
	"github.com/graphtab/gtab/internal/convert"
	"github.com/graphtab/gtab/internal/logging"
	"github.com/graphtab/gtab/internal/table"
	"github.com/graphtab/gtab/internal/ui"
)

var version = "0.1.0-dev"

// app holds what every command needs once flags and config are resolved.
var app struct {
	v        *viper.Viper
	settings *config.Settings
	format   *table.Format
	logger   *logging.Logger
}

var (
	configFile string
	verbose    bool
	quiet      bool
)

var rootCmd = &cobra.Command{
	Use:     "gtab",
	Short:   "Edit an object graph as CSV tables",
	Version: version,
	Long: `gtab keeps an object graph in a local SQLite database and exchanges it
with spreadsheets: one CSV table per type, one row per object.

Edit the tables, mark rows with "To create", "To update" or "To delete",
and import them back. Every import is all-or-nothing.`,
	SilenceUsage:  true,
	SilenceErrors: true,
	PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
		v, err := config.NewViper(configFile)
		if err != nil {
			return err
		}
		bindings := map[string]string{
			config.KeyDirectory: "dir",
			config.KeyDB:        "db",
			config.KeySchema:    "schema",
			config.KeyLogFile:   "log-file",
		}
		for key, flag := range bindings {
			if err := v.BindPFlag(key, cmd.Root().PersistentFlags().Lookup(flag)); err != nil {
				return fmt.Errorf("failed to bind flag --%s: %w", flag, err)
			}
		}
		s, err := config.Load(v)
		if err != nil {
			return err
		}
		format, err := s.Format()
		if err != nil {
			return err
		}
		app.v, app.settings, app.format = v, s, format
		app.logger = logging.New(logging.Config{Verbose: verbose, Quiet: quiet, File: s.LogFile})
		app.logger.Debug("settings loaded", "dir", s.Directory, "db", s.DB, "schema", s.Schema, "config", v.ConfigFileUsed())
		return nil
	},
	PersistentPostRun: func(cmd *cobra.Command, args []string) {
		if app.logger != nil {
			_ = app.logger.Close()
		}
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.StringVar(&configFile, "config", "", "config file (default .gtab.yaml or .gtab.toml)")
	flags.String("dir", "", "table directory")
	flags.String("db", "", "graph database")
	flags.String("schema", "", "schema file (.yaml or .toml)")
	flags.String("log-file", "", "also log to this file, rotated")
	flags.BoolVarP(&verbose, "verbose", "v", false, "debug logging")
	flags.BoolVarP(&quiet, "quiet", "q", false, "no log output on stderr")
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()

	if err := rootCmd.ExecuteContext(ctx); err != nil {
		fmt.Fprintf(os.Stderr, "%s %v\n", ui.RenderFail("✗"), err)
		if convert.IsUserError(err) {
			os.Exit(2)
		}
		os.Exit(1)
	}
}
