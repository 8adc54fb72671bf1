// Package graph provides the typed object graph that the table engines
// synchronize with.
//
// Overview
//
// A Schema declares packages of node types. Every type owns a closed set of
// structural features, each tagged with one of four kinds:
//
//	KindAttribute       scalar value (string, int, float, bool, enum)
//	KindListAttribute   ordered list of scalar values
//	KindReference       single edge to another node
//	KindListReference   ordered list of edges
//
// Reference features are additionally flagged as containment or not.
// Containment edges define the tree: a node has at most one container.
//
// Storage
//
// Graph is an arena of nodes keyed by identifier. Edges are stored as
// identifier lists, never as pointers, so a node can be looked up, detached
// and re-attached without dangling state:
//
//	Graph
//	  ├── nodes  map[id]*Node
//	  ├── roots  []id
//	  └── log    undo log (only while a transaction is open)
//
// A node is live when it is a root or when its container chain reaches a
// root. Node() only returns live nodes; Lookup() returns any node still held
// by the arena, including detached ones.
//
// Transactions
//
// Begin opens an undo log. Every mutation records the state it overwrote;
// Rollback replays the log in reverse and restores the graph exactly.
// Commit prunes nodes that were left detached and discards the log:
//
//	tx, err := g.Begin()
//	if err != nil {
//	    return err
//	}
//	defer tx.Rollback()
//
//	if err := g.SetAttr(id, "name", "Root"); err != nil {
//	    return err
//	}
//	return tx.Commit()
//
// Concurrency
//
// A Graph is not safe for concurrent mutation. The table engines assume they
// are the sole writer for the duration of an import.
package graph
