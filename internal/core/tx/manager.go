// Package tx provides transaction management abstractions.
// Document repositories run their writes through a Manager so the entity
// service does not depend on a specific database.
package tx

import (
	"context"
)

// Manager defines the contract for transaction management.
//
// Counter allocation never runs inside a Manager transaction: a counter row
// locked for the lifetime of an entity transaction would serialize every
// concurrent create on the same counter.
type Manager interface {
	// RunInTransaction executes fn within a transaction.
	// If fn returns an error, the transaction is rolled back.
	// Nested calls reuse the existing transaction from context.
	RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error
}

// Func adapts a plain function to Manager.
type Func func(ctx context.Context, fn func(ctx context.Context) error) error

// RunInTransaction implements Manager.
func (f Func) RunInTransaction(ctx context.Context, fn func(ctx context.Context) error) error {
	return f(ctx, fn)
}

// Direct runs fn without any transaction. Used by stores without transactions.
var Direct Manager = Func(func(ctx context.Context, fn func(ctx context.Context) error) error {
	return fn(ctx)
})
