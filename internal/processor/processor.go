// Package processor holds the ledger's state-transition functions. Each function reads a
// command plus an explicit transaction context and writes through the registries it is given.
// Errors from validation and registries are returned unchanged; the caller aborts the
// surrounding transaction.
package processor

import (
	"context"
	"time"

	"github.com/vanshika/supplytrace/internal/domain"
)

// PurchaseOrderRegistry is the part of the PO registry the processors write through.
type PurchaseOrderRegistry interface {
	Add(ctx context.Context, order domain.PurchaseOrder) error
}

// CommodityRegistry is the part of the commodity registry the processors write through.
type CommodityRegistry interface {
	Update(ctx context.Context, commodity domain.Commodity) error
}

// TxContext carries what a transaction may depend on besides its command.
type TxContext struct {
	TransactionID string
	Timestamp     time.Time
	// Participant is the invoking trader, resolved from the submitting credential.
	Participant    domain.Ref
	PurchaseOrders PurchaseOrderRegistry
	Commodities    CommodityRegistry
}

// InitiatePurchaseOrder opens a purchase order in the INITIATED state on behalf of the caller.
// The command's orderer is ignored: orders can only be initiated by the caller itself.
func InitiatePurchaseOrder(ctx context.Context, tc TxContext, cmd domain.InitiatePurchaseOrder) (domain.PurchaseOrder, error) {
	if err := cmd.Validate(); err != nil {
		return domain.PurchaseOrder{}, err
	}

	order := domain.PurchaseOrder{
		ID:          cmd.OrderID,
		ItemList:    append([]domain.Ref(nil), cmd.ItemList...),
		OrderStatus: domain.StatusInitiated,
		Orderer:     tc.Participant,
		Vendor:      cmd.Vendor,
	}
	if cmd.OrderTotalPrice != nil {
		total := *cmd.OrderTotalPrice
		order.OrderTotalPrice = &total
	}

	if err := tc.PurchaseOrders.Add(ctx, order); err != nil {
		return domain.PurchaseOrder{}, err
	}
	return order, nil
}

// TransferCommodity hands the commodity to a new owner and appends one trace entry
// recording where and by whom it was shipped.
//
// Neither newOwner != owner nor quantity/price consistency is checked.
func TransferCommodity(ctx context.Context, tc TxContext, cmd domain.TransferCommodity) (domain.Commodity, error) {
	if err := cmd.Validate(); err != nil {
		return domain.Commodity{}, err
	}

	commodity := cmd.Commodity
	commodity.Issuer = tc.Participant
	commodity.Owner = cmd.NewOwner
	commodity.PurchaseOrder = cmd.PurchaseOrder

	// Copy before appending so the caller's slice is never written to.
	trace := make([]domain.Trace, len(commodity.Trace), len(commodity.Trace)+1)
	copy(trace, commodity.Trace)
	commodity.Trace = append(trace, domain.Trace{
		Timestamp: tc.Timestamp,
		Location:  *cmd.ShipperLocation,
		Company:   tc.Participant,
	})

	if err := tc.Commodities.Update(ctx, commodity); err != nil {
		return domain.Commodity{}, err
	}
	return commodity, nil
}
