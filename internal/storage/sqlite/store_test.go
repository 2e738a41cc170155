package sqlite

import (
	"context"
	"errors"
	"path/filepath"
	"testing"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/ledger"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/wire"
)

func openTempStore(t *testing.T) *Store {
	t.Helper()
	path := filepath.Join(t.TempDir(), "ledger.db")
	store, err := Open(context.Background(), path)
	if err != nil {
		t.Fatalf("open store: %v", err)
	}
	t.Cleanup(func() {
		if err := store.Close(context.Background()); err != nil {
			t.Fatalf("close store: %v", err)
		}
	})
	return store
}

func TestOpenRequiresPath(t *testing.T) {
	t.Parallel()

	if _, err := Open(context.Background(), " "); err == nil {
		t.Fatal("expected empty path error")
	}
}

func TestOpenIsIdempotent(t *testing.T) {
	t.Parallel()

	path := filepath.Join(t.TempDir(), "ledger.db")
	for i := 0; i < 2; i++ {
		store, err := Open(context.Background(), path)
		if err != nil {
			t.Fatalf("open #%d: %v", i+1, err)
		}
		if err := store.Close(context.Background()); err != nil {
			t.Fatalf("close #%d: %v", i+1, err)
		}
	}
}

func TestDocumentLifecycle(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)

	if err := tx.Insert(ctx, "Commodity", "C1", []byte(`{"commodityid":"C1"}`)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	err = tx.Insert(ctx, "Commodity", "C1", []byte(`{}`))
	if !errors.Is(err, domain.ErrDuplicateAsset) {
		t.Fatalf("duplicate insert err = %v, want ErrDuplicateAsset", err)
	}
	if err := tx.Insert(ctx, "PurchaseOrder", "C1", []byte(`{}`)); err != nil {
		t.Fatalf("same id in another kind: %v", err)
	}

	if err := tx.Replace(ctx, "Commodity", "C1", []byte(`{"commodityid":"C1","name":"ore"}`)); err != nil {
		t.Fatalf("replace: %v", err)
	}
	body, err := tx.Fetch(ctx, "Commodity", "C1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != `{"commodityid":"C1","name":"ore"}` {
		t.Fatalf("body = %s", body)
	}

	if err := tx.Replace(ctx, "Commodity", "C2", []byte(`{}`)); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("replace missing err = %v, want ErrNotFound", err)
	}
	if _, err := tx.Fetch(ctx, "Commodity", "C2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("fetch missing err = %v, want ErrNotFound", err)
	}

	if err := tx.Remove(ctx, "Commodity", "C1"); err != nil {
		t.Fatalf("remove: %v", err)
	}
	if err := tx.Remove(ctx, "Commodity", "C1"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("second remove err = %v, want ErrNotFound", err)
	}
	exists, err := tx.Exists(ctx, "Commodity", "C1")
	if err != nil || exists {
		t.Fatalf("exists = %v, %v; want false", exists, err)
	}
}

func TestRollbackDiscardsWrites(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	if err := tx.Insert(ctx, "Commodity", "C1", []byte(`{}`)); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if err := tx.Commit(ctx); !errors.Is(err, registry.ErrTxDone) {
		t.Fatalf("commit after rollback err = %v, want ErrTxDone", err)
	}

	tx, err = store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	exists, err := tx.Exists(ctx, "Commodity", "C1")
	if err != nil {
		t.Fatalf("exists: %v", err)
	}
	if exists {
		t.Fatal("rolled back insert is visible")
	}
}

func TestListAndOwnerIndex(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	manufacturer := domain.TraderRef(domain.RoleManufacturer, "M1")
	distributor := domain.TraderRef(domain.RoleDistributor, "D1")

	tx, err := store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	set := registry.Bind(tx)
	for _, trader := range []domain.Trader{
		{ID: "M1", Role: domain.RoleManufacturer},
		{ID: "D1", Role: domain.RoleDistributor},
	} {
		if err := set.Traders().Add(ctx, trader); err != nil {
			t.Fatalf("add trader %s: %v", trader.ID, err)
		}
	}
	for _, c := range []domain.Commodity{
		{ID: "C3", Owner: manufacturer},
		{ID: "C1", Owner: manufacturer},
		{ID: "C2", Owner: distributor},
	} {
		if err := set.Commodities().Add(ctx, c); err != nil {
			t.Fatalf("add commodity %s: %v", c.ID, err)
		}
	}
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}

	tx, err = store.Begin(ctx)
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	defer tx.Rollback(ctx)
	set = registry.Bind(tx)

	all, err := set.Commodities().GetAll(ctx)
	if err != nil {
		t.Fatalf("get all: %v", err)
	}
	if len(all) != 3 || all[0].ID != "C1" || all[2].ID != "C3" {
		t.Fatalf("unexpected order: %+v", all)
	}

	owned, err := set.CommoditiesOwnedBy(ctx, manufacturer)
	if err != nil {
		t.Fatalf("owned by: %v", err)
	}
	if len(owned) != 2 || owned[0].ID != "C1" || owned[1].ID != "C3" {
		t.Fatalf("owned = %+v, want C1 and C3", owned)
	}
}

func TestLedgerRuntimeOnSQLite(t *testing.T) {
	t.Parallel()

	ctx := context.Background()
	store := openTempStore(t)
	rt := ledger.New(store)
	manufacturer := domain.TraderRef(domain.RoleManufacturer, "M1")
	supplier := domain.TraderRef(domain.RoleSupplier, "S1")

	err := rt.Mutate(ctx, func(ctx context.Context, set *registry.Set) error {
		for _, trader := range []domain.Trader{
			{ID: "M1", Role: domain.RoleManufacturer},
			{ID: "S1", Role: domain.RoleSupplier},
		} {
			if err := set.Traders().Add(ctx, trader); err != nil {
				return err
			}
		}
		return nil
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	body, err := wire.EncodePayload(wire.InitiatePO{OrderID: "PO1", Vendor: supplier})
	if err != nil {
		t.Fatalf("encode: %v", err)
	}
	if _, err := rt.Submit(ctx, manufacturer, body); err != nil {
		t.Fatalf("submit: %v", err)
	}
	if _, err := rt.Submit(ctx, manufacturer, body); !errors.Is(err, domain.ErrDuplicateAsset) {
		t.Fatalf("duplicate submit err = %v, want ErrDuplicateAsset", err)
	}

	err = rt.View(ctx, func(ctx context.Context, set *registry.Set) error {
		order, err := set.PurchaseOrders().Get(ctx, "PO1")
		if err != nil {
			return err
		}
		if order.OrderStatus != domain.StatusInitiated || order.Orderer != manufacturer {
			t.Fatalf("unexpected order %+v", order)
		}
		records, err := set.Historian().GetAll(ctx)
		if err != nil {
			return err
		}
		if len(records) != 1 {
			t.Fatalf("historian records = %d, want 1", len(records))
		}
		return nil
	})
	if err != nil {
		t.Fatalf("view: %v", err)
	}
}
