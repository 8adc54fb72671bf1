package graph

import (
	"errors"
	"fmt"
)

// Common errors returned by graph operations.
//
// These errors can be checked using errors.Is():
//
//	if errors.Is(err, graph.ErrNotFound) {
//	    // the node was deleted or never existed
//	}
var (
	// ErrNotFound is returned when an id does not name a node in the arena.
	ErrNotFound = errors.New("node not found")

	// ErrUnknownType is returned when a qualified type name is not in the schema.
	ErrUnknownType = errors.New("unknown type")

	// ErrAbstractType is returned when instantiating an abstract type.
	ErrAbstractType = errors.New("type is abstract")

	// ErrUnknownFeature is returned when a feature name is not declared on the
	// node's type.
	ErrUnknownFeature = errors.New("unknown feature")

	// ErrWrongKind is returned when a setter does not match the feature kind,
	// e.g. SetAttr on a reference.
	ErrWrongKind = errors.New("wrong feature kind")

	// ErrTypeMismatch is returned when a value or reference target does not
	// satisfy the feature's declared type.
	ErrTypeMismatch = errors.New("type mismatch")

	// ErrContainmentCycle is returned when a containment write would make a
	// node contain itself.
	ErrContainmentCycle = errors.New("containment cycle")

	// ErrRootContainment is returned when a containment write targets a root.
	ErrRootContainment = errors.New("roots cannot be contained")

	// ErrDuplicateID is returned when creating a node with an id already in use.
	ErrDuplicateID = errors.New("duplicate node id")

	// ErrTransactionActive is returned by Begin while a transaction is open.
	ErrTransactionActive = errors.New("transaction already active")

	// ErrTxDone is returned when committing or rolling back a finished
	// transaction.
	ErrTxDone = errors.New("transaction has already been committed or rolled back")
)

// TypeMismatchError describes a value that cannot be placed into a feature.
type TypeMismatchError struct {
	Feature  string
	Expected string
	Actual   string
}

func (e *TypeMismatchError) Error() string {
	return fmt.Sprintf("feature %s only handles elements of type %s (got %s)", e.Feature, e.Expected, e.Actual)
}

// Unwrap allows errors.Is(err, ErrTypeMismatch).
func (e *TypeMismatchError) Unwrap() error { return ErrTypeMismatch }
