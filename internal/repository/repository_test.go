package repository

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/graph"
	"github.com/vanshika/supplytrace/internal/registry"
)

func fixedStore(mem *graph.MemoryClient) *Store {
	store := New(mem)
	store.nowFn = func() time.Time { return time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC) }
	return store
}

func begin(t *testing.T, store *Store) registry.Tx {
	t.Helper()
	tx, err := store.Begin(context.Background())
	if err != nil {
		t.Fatalf("begin: %v", err)
	}
	return tx
}

func created() graph.Result {
	return graph.Result{Records: []graph.Record{{"assetId": "x"}}}
}

func TestStore_InsertTraderSkipsProjection(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))
	mem.PushTxResult(created())

	if err := tx.Insert(context.Background(), domain.KindTrader, "S1", []byte(`{"traderId":"S1"}`)); err != nil {
		t.Fatalf("expected no error, got %v", err)
	}

	calls := mem.TxCalls()
	if len(calls) != 1 {
		t.Fatalf("expected 1 statement, got %d", len(calls))
	}
	call := calls[0]
	if call.Query != insertAssetCypher {
		t.Fatalf("unexpected query\nexpected:\n%s\ngot:\n%s", insertAssetCypher, call.Query)
	}
	if call.Params["kind"] != domain.KindTrader || call.Params["id"] != "S1" {
		t.Errorf("unexpected key params %v", call.Params)
	}
	if call.Params["body"] != `{"traderId":"S1"}` {
		t.Errorf("body = %v", call.Params["body"])
	}
	if call.Params["updatedAt"] != "2024-05-02T10:00:00Z" {
		t.Errorf("updatedAt = %v", call.Params["updatedAt"])
	}
}

func TestStore_InsertDuplicate(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))

	err := tx.Insert(context.Background(), domain.KindPurchaseOrder, "PO1", []byte(`{}`))
	if !errors.Is(err, domain.ErrDuplicateAsset) {
		t.Fatalf("expected ErrDuplicateAsset, got %v", err)
	}
	if got := len(mem.TxCalls()); got != 1 {
		t.Fatalf("expected no projection after a rejected insert, got %d statements", got)
	}
}

func TestStore_ReplaceCommodityProjectsCustody(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))
	mem.PushTxResult(created())

	ts := time.Date(2024, 5, 1, 8, 0, 0, 0, time.UTC)
	body := []byte(`{
		"commodityid": "C1",
		"owner": "resource:org.supplychain.network.Distributor#D1",
		"issuer": "resource:org.supplychain.network.Manufacturer#M1",
		"purchaseOrder": "resource:org.supplychain.network.PO#PO1",
		"trace": [{"timestamp": "` + ts.Format(time.RFC3339) + `", "location": {"city": "NY"}, "company": "resource:org.supplychain.network.Manufacturer#M1"}]
	}`)
	if err := tx.Replace(context.Background(), domain.KindCommodity, "C1", body); err != nil {
		t.Fatalf("replace: %v", err)
	}

	calls := mem.TxCalls()
	if len(calls) != 2 {
		t.Fatalf("expected replace and projection, got %d statements", len(calls))
	}
	if calls[0].Query != replaceAssetCypher {
		t.Fatalf("first statement is not the replace")
	}
	project := calls[1]
	if project.Query != projectEdgesCypher {
		t.Fatalf("second statement is not the projection")
	}

	links, ok := project.Params["links"].([]map[string]any)
	if !ok {
		t.Fatalf("expected links slice, got %T", project.Params["links"])
	}
	want := []struct{ rel, kind, id string }{
		{RelOwnedBy, domain.KindTrader, "D1"},
		{RelIssuedBy, domain.KindTrader, "M1"},
		{RelForOrder, domain.KindPurchaseOrder, "PO1"},
	}
	if len(links) != len(want) {
		t.Fatalf("expected %d links, got %v", len(want), links)
	}
	for i, w := range want {
		if links[i]["rel"] != w.rel || links[i]["kind"] != w.kind || links[i]["id"] != w.id {
			t.Errorf("link %d = %v, want %+v", i, links[i], w)
		}
	}

	handlers, ok := project.Params["handlers"].([]map[string]any)
	if !ok || len(handlers) != 1 {
		t.Fatalf("expected one handler, got %v", project.Params["handlers"])
	}
	if handlers[0]["id"] != "M1" || handlers[0]["seq"] != int64(0) || handlers[0]["city"] != "NY" {
		t.Errorf("unexpected handler %v", handlers[0])
	}
	if handlers[0]["timestamp"] != "2024-05-01T08:00:00Z" {
		t.Errorf("handler timestamp = %v", handlers[0]["timestamp"])
	}
}

func TestStore_InsertOrderProjectsParties(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))
	mem.PushTxResult(created())

	body := []byte(`{
		"orderid": "PO1",
		"orderStatus": "INITIATED",
		"orderer": "resource:org.supplychain.network.Manufacturer#M1",
		"vendor": "resource:org.supplychain.network.Supplier#S1",
		"itemList": ["resource:org.supplychain.network.Commodity#C1"]
	}`)
	if err := tx.Insert(context.Background(), domain.KindPurchaseOrder, "PO1", body); err != nil {
		t.Fatalf("insert: %v", err)
	}

	calls := mem.TxCalls()
	if len(calls) != 2 {
		t.Fatalf("expected insert and projection, got %d", len(calls))
	}
	links := calls[1].Params["links"].([]map[string]any)
	rels := make([]string, 0, len(links))
	for _, link := range links {
		rels = append(rels, link["rel"].(string))
	}
	if len(rels) != 3 || rels[0] != RelOrderedBy || rels[1] != RelSuppliedBy || rels[2] != RelIncludes {
		t.Fatalf("unexpected relationships %v", rels)
	}
}

func TestStore_ReplaceMissing(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))

	err := tx.Replace(context.Background(), domain.KindCommodity, "C404", []byte(`{}`))
	if !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestStore_FetchExistsList(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))
	ctx := context.Background()

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"body": `{"traderId":"S1"}`}}})
	body, err := tx.Fetch(ctx, domain.KindTrader, "S1")
	if err != nil {
		t.Fatalf("fetch: %v", err)
	}
	if string(body) != `{"traderId":"S1"}` {
		t.Fatalf("body = %s", body)
	}

	if _, err := tx.Fetch(ctx, domain.KindTrader, "S2"); !errors.Is(err, domain.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"found": int64(1)}}})
	exists, err := tx.Exists(ctx, domain.KindTrader, "S1")
	if err != nil || !exists {
		t.Fatalf("exists = %v, %v; want true", exists, err)
	}
	mem.PushTxResult(graph.Result{Records: []graph.Record{{"found": int64(0)}}})
	exists, err = tx.Exists(ctx, domain.KindTrader, "S9")
	if err != nil || exists {
		t.Fatalf("exists = %v, %v; want false", exists, err)
	}

	mem.PushTxResult(graph.Result{Records: []graph.Record{{"body": "a"}, {"body": "b"}}})
	list, err := tx.List(ctx, domain.KindTrader)
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(list) != 2 || string(list[0]) != "a" || string(list[1]) != "b" {
		t.Fatalf("unexpected list %q", list)
	}
}

func TestStore_OwnedByFollowsEdges(t *testing.T) {
	mem := graph.NewMemoryClient()
	tx := begin(t, fixedStore(mem))

	mem.PushTxResult(graph.Result{Records: []graph.Record{
		{"body": `{"commodityid":"C1","owner":"resource:org.supplychain.network.Distributor#D1"}`},
	}})
	owned, err := registry.Bind(tx).CommoditiesOwnedBy(context.Background(), domain.TraderRef(domain.RoleDistributor, "D1"))
	if err != nil {
		t.Fatalf("owned by: %v", err)
	}
	if len(owned) != 1 || owned[0].ID != "C1" {
		t.Fatalf("unexpected holdings %+v", owned)
	}

	calls := mem.TxCalls()
	if calls[len(calls)-1].Query != ownedByCypher {
		t.Fatalf("holdings did not use the owner index")
	}
	if calls[len(calls)-1].Params["traderId"] != "D1" {
		t.Errorf("traderId = %v", calls[len(calls)-1].Params["traderId"])
	}
}

func TestStore_CommitAndRollback(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := fixedStore(mem)
	ctx := context.Background()

	tx := begin(t, store)
	if err := tx.Commit(ctx); err != nil {
		t.Fatalf("commit: %v", err)
	}
	if err := tx.Rollback(ctx); !errors.Is(err, registry.ErrTxDone) {
		t.Fatalf("rollback after commit: expected ErrTxDone, got %v", err)
	}

	tx = begin(t, store)
	if err := tx.Rollback(ctx); err != nil {
		t.Fatalf("rollback: %v", err)
	}
	if mem.Commits() != 1 || mem.Rollbacks() != 1 {
		t.Fatalf("commits=%d rollbacks=%d, want 1 and 1", mem.Commits(), mem.Rollbacks())
	}
}

func TestStore_EnsureSchemaAndPing(t *testing.T) {
	mem := graph.NewMemoryClient()
	store := fixedStore(mem)

	if err := store.EnsureSchema(context.Background()); err != nil {
		t.Fatalf("ensure schema: %v", err)
	}
	if calls := mem.WriteCalls(); len(calls) != 1 || calls[0].Query != assetConstraintCypher {
		t.Fatalf("unexpected schema writes %v", calls)
	}

	want := errors.New("bolt unreachable")
	mem.WithConnectivityError(want)
	if err := store.Ping(context.Background()); !errors.Is(err, want) {
		t.Fatalf("ping = %v, want %v", err, want)
	}
}

func TestStore_BeginPropagatesClientError(t *testing.T) {
	want := errors.New("session refused")
	store := fixedStore(graph.NewMemoryClient().WithError(want))

	if _, err := store.Begin(context.Background()); !errors.Is(err, want) {
		t.Fatalf("begin = %v, want %v", err, want)
	}
}
