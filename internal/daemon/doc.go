// Package daemon keeps a table directory and an in-memory graph in step.
//
// # Architecture
//
// The daemon consists of two components:
//
//   - FileWatcher: fsnotify-based monitoring of the type tables of one directory
//   - Daemon: debounces table edits and runs a sync once they settle
//
// # Sync
//
// A sync imports every marked row (see package importer), saves the graph to
// the configured Store, and re-exports fresh tables: markers are cleared and
// temporary identifiers are replaced by the identifiers of the created
// nodes. Tables without any marker are left alone. A failed import rolls the
// graph back and leaves the tables as the operator wrote them, so the rows
// can be fixed and saved again.
//
// The re-export rewrites every table, which the watcher reports like any
// other edit. After each sync the daemon records the size and modification
// time of every table and drops events for files that still match.
//
// # Usage
//
//	d, err := daemon.New(g, root, daemon.Config{
//	    Dir:      "tables",
//	    Format:   format,
//	    Store:    store,
//	    Debounce: 500 * time.Millisecond,
//	    Logger:   logger,
//	})
//	if err != nil {
//	    return err
//	}
//	return d.Run(ctx) // blocks until ctx is canceled
//
// # File Watching
//
// The FileWatcher can also be used on its own:
//
//	fw, err := daemon.NewFileWatcher()
//	if err != nil {
//	    return err
//	}
//	defer fw.Stop()
//
//	if err := fw.Start("tables"); err != nil {
//	    return err
//	}
//	for event := range fw.Events() {
//	    fmt.Printf("%s %s\n", event.Op, event.Type)
//	}
//
// Only files named after a qualified type ("pkg.Type.csv") directly inside
// the directory produce events. Shadow copies, the metamodel table and the
// "after" audit directory are ignored.
package daemon
