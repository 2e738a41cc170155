// Package registry implements keyed asset registries on top of transactional document stores.
package registry

import "context"

// Documents is the raw keyed storage a registry writes through. Bodies are wire JSON.
// Implementations report absent and duplicate ids with domain.NotFoundError and
// domain.DuplicateAssetError.
type Documents interface {
	Insert(ctx context.Context, kind, id string, body []byte) error
	Replace(ctx context.Context, kind, id string, body []byte) error
	Fetch(ctx context.Context, kind, id string) ([]byte, error)
	Remove(ctx context.Context, kind, id string) error
	Exists(ctx context.Context, kind, id string) (bool, error)
	List(ctx context.Context, kind string) ([][]byte, error)
}

// Tx is an all-or-nothing unit of work against a store.
type Tx interface {
	Documents
	Commit(ctx context.Context) error
	Rollback(ctx context.Context) error
}

// Store opens transactions. Callers serialize writers; stores need not detect conflicts.
type Store interface {
	Begin(ctx context.Context) (Tx, error)
	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}
