package service

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"strings"
	"testing"
	"time"

	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/ledger"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/wire"
)

var (
	supplier     = domain.TraderRef(domain.RoleSupplier, "S1")
	manufacturer = domain.TraderRef(domain.RoleManufacturer, "M1")
	distributor  = domain.TraderRef(domain.RoleDistributor, "D1")
	retailer     = domain.TraderRef(domain.RoleRetailer, "R1")
	baseTime     = time.Date(2024, 5, 2, 10, 0, 0, 0, time.UTC)
)

func newService(t *testing.T) (*SupplyChainService, *registry.MemoryStore) {
	t.Helper()
	store := registry.NewMemoryStore()
	tick := 0
	rt := ledger.New(store, ledger.WithClock(func() time.Time {
		tick++
		return baseTime.Add(time.Duration(tick) * time.Minute)
	}))
	return NewSupplyChainService(rt, nil), store
}

func trader(ref domain.Ref, name string) domain.Trader {
	role, _ := domain.ParseRole(ref.Class)
	return domain.Trader{
		ID:          ref.ID,
		CompanyName: name,
		Role:        role,
		TradeID:     "T-" + ref.ID,
		Address:     domain.Address{City: name + " City", Country: "de"},
	}
}

func seeded(t *testing.T) *SupplyChainService {
	t.Helper()
	svc, _ := newService(t)
	ctx := context.Background()
	for _, tr := range []domain.Trader{
		trader(supplier, "Acme Supply"),
		trader(manufacturer, "Forge Works"),
		trader(distributor, "Road Runner"),
		trader(retailer, "Corner Shop"),
	} {
		_, err := svc.RegisterTrader(ctx, tr)
		require.NoError(t, err)
	}
	_, err := svc.RegisterCommodity(ctx, domain.Commodity{
		ID:        "C1",
		Name:      "  Steel   coil ",
		Quantity:  10,
		UnitPrice: decimal.RequireFromString("4.50"),
		Owner:     manufacturer,
		Issuer:    supplier,
	})
	require.NoError(t, err)
	return svc
}

func TestRegisterTrader_NormalizesAndRejectsDuplicates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()

	got, err := svc.RegisterTrader(ctx, domain.Trader{
		ID:          " S1 ",
		CompanyName: " Acme   Supply ",
		Role:        domain.RoleSupplier,
		Address:     domain.Address{Country: " de ", PostalCode: "ab1 2cd"},
	})
	require.NoError(t, err)
	assert.Equal(t, "S1", got.ID)
	assert.Equal(t, "Acme Supply", got.CompanyName)
	assert.Equal(t, "DE", got.Address.Country)
	assert.Equal(t, "AB1 2CD", got.Address.PostalCode)

	stored, err := svc.GetTrader(ctx, "S1")
	require.NoError(t, err)
	assert.Equal(t, got, stored)

	_, err = svc.RegisterTrader(ctx, trader(supplier, "Other"))
	assert.ErrorIs(t, err, domain.ErrDuplicateAsset)

	_, err = svc.RegisterTrader(ctx, domain.Trader{ID: "X"})
	assert.ErrorIs(t, err, domain.ErrValidation)
}

func TestRegisterCommodity_RequiresKnownTraders(t *testing.T) {
	svc, store := newService(t)
	ctx := context.Background()

	_, err := svc.RegisterCommodity(ctx, domain.Commodity{ID: "C1", Owner: manufacturer})
	assert.ErrorIs(t, err, domain.ErrReference)
	assert.Zero(t, store.Len(domain.KindCommodity))
}

func TestImportPurchaseOrder(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	order, err := svc.ImportPurchaseOrder(ctx, domain.PurchaseOrder{
		ID:       "PO-0",
		ItemList: []domain.Ref{domain.CommodityRef("C1")},
		Orderer:  distributor,
		Vendor:   manufacturer,
	})
	require.NoError(t, err)
	assert.Equal(t, domain.StatusInitiated, order.OrderStatus)

	_, err = svc.ImportPurchaseOrder(ctx, domain.PurchaseOrder{ID: "PO-1", OrderStatus: "LOST"})
	assert.ErrorIs(t, err, domain.ErrValidation)

	_, err = svc.ImportPurchaseOrder(ctx, domain.PurchaseOrder{ID: "PO-2", ItemList: []domain.Ref{domain.CommodityRef("C9")}})
	assert.ErrorIs(t, err, domain.ErrReference)
}

func TestSubmitAndCustodyChain(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, distributor, wire.InitiatePO{
		OrderID:  "PO-1",
		ItemList: []domain.Ref{domain.CommodityRef("C1")},
		Vendor:   manufacturer,
	})
	require.NoError(t, err)

	hops := []struct {
		caller, next domain.Ref
		city         string
	}{
		{manufacturer, distributor, "Leeds"},
		{distributor, retailer, "York"},
	}
	for _, hop := range hops {
		_, err := svc.Submit(ctx, hop.caller, wire.TransferCommodity{
			Commodity:       domain.CommodityRef("C1"),
			NewOwner:        hop.next,
			PurchaseOrder:   domain.PurchaseOrderRef("PO-1"),
			ShipperLocation: &domain.Address{City: hop.city},
		})
		require.NoError(t, err)
	}

	chain, err := svc.CustodyChain(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, retailer, chain.Commodity.Owner)
	require.Len(t, chain.Handoffs, 2)
	assert.Equal(t, 1, chain.Handoffs[0].Seq)
	assert.Equal(t, "Forge Works", chain.Handoffs[0].CompanyName)
	assert.Equal(t, "Leeds", chain.Handoffs[0].Location.City)
	assert.Equal(t, "Road Runner", chain.Handoffs[1].CompanyName)
	assert.True(t, chain.Handoffs[0].Timestamp.Before(chain.Handoffs[1].Timestamp))

	held, err := svc.Holdings(ctx, retailer)
	require.NoError(t, err)
	require.Len(t, held, 1)
	assert.Equal(t, "C1", held[0].ID)

	held, err = svc.Holdings(ctx, manufacturer)
	require.NoError(t, err)
	assert.Empty(t, held)

	history, err := svc.History(ctx, ListParams{})
	require.NoError(t, err)
	require.Len(t, history.Items, 3)
	assert.Equal(t, domain.QualifiedClass(domain.ClassInitiatePO), history.Items[0].TransactionType)
	assert.Equal(t, distributor, history.Items[0].Participant)
}

func TestCustodyChain_KeepsRemovedTraders(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, distributor, wire.InitiatePO{OrderID: "PO-1", Vendor: manufacturer})
	require.NoError(t, err)
	_, err = svc.Submit(ctx, manufacturer, wire.TransferCommodity{
		Commodity:       domain.CommodityRef("C1"),
		NewOwner:        distributor,
		PurchaseOrder:   domain.PurchaseOrderRef("PO-1"),
		ShipperLocation: &domain.Address{City: "Leeds"},
	})
	require.NoError(t, err)
	require.NoError(t, svc.Remove(ctx, manufacturer))

	chain, err := svc.CustodyChain(ctx, "C1")
	require.NoError(t, err)
	require.Len(t, chain.Handoffs, 1)
	assert.Equal(t, manufacturer, chain.Handoffs[0].Company)
	assert.Empty(t, chain.Handoffs[0].CompanyName)

	_, err = svc.CustodyChain(ctx, "C9")
	assert.ErrorIs(t, err, domain.ErrNotFound)
}

func TestRemove(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	require.NoError(t, svc.Remove(ctx, domain.CommodityRef("C1")))
	_, err := svc.GetCommodity(ctx, "C1")
	assert.ErrorIs(t, err, domain.ErrNotFound)

	assert.ErrorIs(t, svc.Remove(ctx, domain.CommodityRef("C1")), domain.ErrNotFound)
	assert.ErrorIs(t, svc.Remove(ctx, domain.Ref{Class: "Widget", ID: "W1"}), domain.ErrValidation)
}

func TestListTraders_FiltersAndPaginates(t *testing.T) {
	svc, _ := newService(t)
	ctx := context.Background()
	for i := 1; i <= 5; i++ {
		_, err := svc.RegisterTrader(ctx, trader(domain.TraderRef(domain.RoleSupplier, fmt.Sprintf("S%d", i)), "Supplier"))
		require.NoError(t, err)
	}
	_, err := svc.RegisterTrader(ctx, trader(retailer, "Corner Shop"))
	require.NoError(t, err)

	page, err := svc.ListTraders(ctx, ListParams{Page: 2, PageSize: 2, Role: domain.RoleSupplier})
	require.NoError(t, err)
	require.Len(t, page.Items, 2)
	assert.Equal(t, "S3", page.Items[0].ID)
	assert.Equal(t, PaginationMeta{Page: 2, PageSize: 2, TotalItems: 5, TotalPages: 3}, page.Pagination)

	page, err = svc.ListTraders(ctx, ListParams{Page: 9})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(6), page.Pagination.TotalItems)
	assert.Equal(t, 50, page.Pagination.PageSize)
}

func TestListTraders_HugePageIsEmpty(t *testing.T) {
	svc := seeded(t)

	page, err := svc.ListTraders(context.Background(), ListParams{Page: math.MaxInt, PageSize: 200})
	require.NoError(t, err)
	assert.Empty(t, page.Items)
	assert.Equal(t, int64(4), page.Pagination.TotalItems)
}

func TestListCommoditiesAndOrders(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	_, err := svc.Submit(ctx, distributor, wire.InitiatePO{OrderID: "PO-1", Vendor: manufacturer})
	require.NoError(t, err)

	commodities, err := svc.ListCommodities(ctx, ListParams{Owner: manufacturer})
	require.NoError(t, err)
	require.Len(t, commodities.Items, 1)
	assert.Equal(t, "Steel coil", commodities.Items[0].Name)

	commodities, err = svc.ListCommodities(ctx, ListParams{Owner: retailer})
	require.NoError(t, err)
	assert.Empty(t, commodities.Items)

	orders, err := svc.ListPurchaseOrders(ctx, ListParams{Status: domain.StatusInitiated})
	require.NoError(t, err)
	require.Len(t, orders.Items, 1)
	assert.Equal(t, distributor, orders.Items[0].Orderer)

	orders, err = svc.ListPurchaseOrders(ctx, ListParams{Status: domain.StatusDelivered})
	require.NoError(t, err)
	assert.Empty(t, orders.Items)
}

func TestReplay_ContinuesPastRejectedEntries(t *testing.T) {
	svc := seeded(t)
	ctx := context.Background()

	var buf bytes.Buffer
	w := wire.NewStreamWriter(&buf)
	require.NoError(t, w.Write(distributor, wire.InitiatePO{OrderID: "PO-1", Vendor: manufacturer}))
	require.NoError(t, w.Write(distributor, wire.InitiatePO{OrderID: "PO-1", Vendor: manufacturer}))
	require.NoError(t, w.Write(manufacturer, wire.TransferCommodity{
		Commodity:       domain.CommodityRef("C1"),
		NewOwner:        distributor,
		PurchaseOrder:   domain.PurchaseOrderRef("PO-1"),
		ShipperLocation: &domain.Address{City: "Leeds"},
	}))

	report, err := svc.Replay(ctx, &buf, NewLimiter(1000, 10))
	require.NoError(t, err)
	assert.Equal(t, 2, report.Committed)
	require.Len(t, report.Failures, 1)
	assert.Equal(t, 2, report.Failures[0].Line)
	assert.ErrorIs(t, report.Failures[0].Err, domain.ErrDuplicateAsset)

	c, err := svc.GetCommodity(ctx, "C1")
	require.NoError(t, err)
	assert.Equal(t, distributor, c.Owner)
}

func TestReplay_StopsOnMalformedLine(t *testing.T) {
	svc := seeded(t)

	report, err := svc.Replay(context.Background(), strings.NewReader("{not json\n"), nil)
	require.Error(t, err)
	assert.Zero(t, report.Committed)
}

func TestReplay_HonoursCancellation(t *testing.T) {
	svc := seeded(t)
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	var buf bytes.Buffer
	require.NoError(t, wire.NewStreamWriter(&buf).Write(distributor, wire.InitiatePO{OrderID: "PO-1", Vendor: manufacturer}))

	_, err := svc.Replay(ctx, &buf, NewLimiter(1, 1))
	assert.True(t, errors.Is(err, context.Canceled))
}
