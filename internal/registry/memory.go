package registry

import (
	"context"
	"errors"
	"sort"
	"sync"

	"github.com/vanshika/supplytrace/internal/domain"
)

// ErrTxDone is returned when a finished transaction is used again.
var ErrTxDone = errors.New("transaction already committed or rolled back")

type docKey struct {
	kind string
	id   string
}

// MemoryStore keeps documents in process memory. Writes are staged per transaction
// and applied on commit.
type MemoryStore struct {
	mu   sync.RWMutex
	docs map[docKey][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{docs: make(map[docKey][]byte)}
}

func (m *MemoryStore) Begin(ctx context.Context) (Tx, error) {
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	return &memoryTx{store: m, staged: make(map[docKey][]byte)}, nil
}

func (m *MemoryStore) Ping(context.Context) error  { return nil }
func (m *MemoryStore) Close(context.Context) error { return nil }

// Len reports how many documents of kind are committed.
func (m *MemoryStore) Len(kind string) int {
	m.mu.RLock()
	defer m.mu.RUnlock()
	n := 0
	for key := range m.docs {
		if key.kind == kind {
			n++
		}
	}
	return n
}

// memoryTx overlays staged writes on the committed map; a nil body marks a delete.
type memoryTx struct {
	store  *MemoryStore
	staged map[docKey][]byte
	done   bool
}

func (tx *memoryTx) lookup(key docKey) ([]byte, bool) {
	if body, ok := tx.staged[key]; ok {
		return body, body != nil
	}
	tx.store.mu.RLock()
	defer tx.store.mu.RUnlock()
	body, ok := tx.store.docs[key]
	return body, ok
}

func (tx *memoryTx) Insert(ctx context.Context, kind, id string, body []byte) error {
	if tx.done {
		return ErrTxDone
	}
	key := docKey{kind, id}
	if _, ok := tx.lookup(key); ok {
		return &domain.DuplicateAssetError{Kind: kind, ID: id}
	}
	tx.staged[key] = clone(body)
	return nil
}

func (tx *memoryTx) Replace(ctx context.Context, kind, id string, body []byte) error {
	if tx.done {
		return ErrTxDone
	}
	key := docKey{kind, id}
	if _, ok := tx.lookup(key); !ok {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	tx.staged[key] = clone(body)
	return nil
}

func (tx *memoryTx) Fetch(ctx context.Context, kind, id string) ([]byte, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	body, ok := tx.lookup(docKey{kind, id})
	if !ok {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	return clone(body), nil
}

func (tx *memoryTx) Remove(ctx context.Context, kind, id string) error {
	if tx.done {
		return ErrTxDone
	}
	key := docKey{kind, id}
	if _, ok := tx.lookup(key); !ok {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	tx.staged[key] = nil
	return nil
}

func (tx *memoryTx) Exists(ctx context.Context, kind, id string) (bool, error) {
	if tx.done {
		return false, ErrTxDone
	}
	_, ok := tx.lookup(docKey{kind, id})
	return ok, nil
}

func (tx *memoryTx) List(ctx context.Context, kind string) ([][]byte, error) {
	if tx.done {
		return nil, ErrTxDone
	}
	merged := make(map[string][]byte)
	tx.store.mu.RLock()
	for key, body := range tx.store.docs {
		if key.kind == kind {
			merged[key.id] = body
		}
	}
	tx.store.mu.RUnlock()
	for key, body := range tx.staged {
		if key.kind != kind {
			continue
		}
		if body == nil {
			delete(merged, key.id)
			continue
		}
		merged[key.id] = body
	}

	ids := make([]string, 0, len(merged))
	for id := range merged {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	out := make([][]byte, 0, len(ids))
	for _, id := range ids {
		out = append(out, clone(merged[id]))
	}
	return out, nil
}

func (tx *memoryTx) Commit(ctx context.Context) error {
	if tx.done {
		return ErrTxDone
	}
	tx.done = true
	tx.store.mu.Lock()
	defer tx.store.mu.Unlock()
	for key, body := range tx.staged {
		if body == nil {
			delete(tx.store.docs, key)
			continue
		}
		tx.store.docs[key] = body
	}
	return nil
}

func (tx *memoryTx) Rollback(ctx context.Context) error {
	if tx.done {
		return nil
	}
	tx.done = true
	tx.staged = nil
	return nil
}

func clone(b []byte) []byte {
	return append([]byte(nil), b...)
}
