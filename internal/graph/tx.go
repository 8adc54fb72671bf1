package graph

import "slices"

// change is one undo-log entry. revert restores the state that existed
// before the change was applied.
type change interface {
	revert(g *Graph)
}

type nodeChange struct {
	node  *Node
	saved Node
}

func (c *nodeChange) revert(*Graph) { *c.node = c.saved }

type insertChange struct{ id string }

func (c *insertChange) revert(g *Graph) { delete(g.nodes, c.id) }

type removeChange struct{ node *Node }

func (c *removeChange) revert(g *Graph) { g.nodes[c.node.id] = c.node }

type rootsChange struct{ old []string }

func (c *rootsChange) revert(g *Graph) { g.roots = c.old }

// Tx is an open transaction on a graph. Every mutation made while it is open
// is recorded; Rollback replays the log in reverse.
type Tx struct {
	g     *Graph
	log   []change
	saved map[*Node]bool
	roots bool
	done  bool
}

// Begin opens a transaction. Only one transaction may be open at a time.
func (g *Graph) Begin() (*Tx, error) {
	if g.tx != nil {
		return nil, ErrTransactionActive
	}
	g.tx = &Tx{g: g, saved: make(map[*Node]bool)}
	return g.tx, nil
}

// InTransaction reports whether a transaction is open.
func (g *Graph) InTransaction() bool { return g.tx != nil }

// Len returns the number of recorded changes.
func (tx *Tx) Len() int { return len(tx.log) }

// Rollback undoes every change made since Begin. Calling Rollback after
// Commit returns ErrTxDone, so it is safe to defer.
func (tx *Tx) Rollback() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.g.tx = nil
	for i := len(tx.log) - 1; i >= 0; i-- {
		tx.log[i].revert(tx.g)
	}
	tx.log = nil
	return nil
}

// Commit closes the transaction and prunes nodes that ended up detached
// from every root.
func (tx *Tx) Commit() error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.g.tx = nil
	tx.log = nil
	tx.g.Prune()
	return nil
}

// Prune deletes every detached subtree and returns the ids of the removed
// subtree tops.
func (g *Graph) Prune() []string {
	var tops []string
	for _, n := range g.Nodes() {
		if !n.root && n.container == "" {
			tops = append(tops, n.id)
		}
	}
	for _, id := range tops {
		if _, ok := g.nodes[id]; ok {
			_ = g.Delete(id)
		}
	}
	return tops
}

func (g *Graph) record(c change) {
	if g.tx == nil {
		return
	}
	g.tx.log = append(g.tx.log, c)
}

// saveNode records the node state the first time it is touched in a
// transaction.
func (g *Graph) saveNode(n *Node) {
	if g.tx == nil || g.tx.saved[n] {
		return
	}
	g.tx.saved[n] = true
	g.record(&nodeChange{node: n, saved: n.clone()})
}

func (g *Graph) saveRoots() {
	if g.tx == nil || g.tx.roots {
		return
	}
	g.tx.roots = true
	g.record(&rootsChange{old: slices.Clone(g.roots)})
}
