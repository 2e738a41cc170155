package domain

import (
	"encoding/json"
	"fmt"

	"github.com/shopspring/decimal"
)

// OrderStatus tracks a purchase order through fulfilment.
type OrderStatus string

// Only StatusInitiated is produced by the transactions defined so far.
const (
	StatusInitiated  OrderStatus = "INITIATED"
	StatusConfirmed  OrderStatus = "CONFIRMED"
	StatusDelivering OrderStatus = "DELIVERING"
	StatusDelivered  OrderStatus = "DELIVERED"
)

func (s OrderStatus) Valid() bool {
	switch s {
	case StatusInitiated, StatusConfirmed, StatusDelivering, StatusDelivered:
		return true
	}
	return false
}

// PurchaseOrder links an orderer and vendor to a list of commodities.
type PurchaseOrder struct {
	ID              string           `json:"orderid"`
	ItemList        []Ref            `json:"itemList"`
	OrderTotalPrice *decimal.Decimal `json:"orderTotalPrice,omitempty"`
	OrderStatus     OrderStatus      `json:"orderStatus"`
	Orderer         Ref              `json:"orderer,omitzero"`
	Vendor          Ref              `json:"vendor,omitzero"`
}

func (p PurchaseOrder) ResourceKind() string { return KindPurchaseOrder }
func (p PurchaseOrder) ResourceID() string   { return p.ID }

// Ref returns a reference to the order.
func (p PurchaseOrder) Ref() Ref {
	return PurchaseOrderRef(p.ID)
}

func (p PurchaseOrder) References() []Reference {
	refs := collectRefs(nil, "orderer", p.Orderer)
	refs = collectRefs(refs, "vendor", p.Vendor)
	return collectRefs(refs, "itemList", p.ItemList...)
}

func (p PurchaseOrder) MarshalJSON() ([]byte, error) {
	type alias PurchaseOrder
	if p.ItemList == nil {
		p.ItemList = []Ref{}
	}
	return json.Marshal(struct {
		Class string `json:"$class"`
		alias
	}{QualifiedClass(ClassPurchaseOrder), alias(p)})
}

func (p *PurchaseOrder) UnmarshalJSON(data []byte) error {
	type alias PurchaseOrder
	aux := struct {
		Class string `json:"$class"`
		*alias
	}{alias: (*alias)(p)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := expectClass(aux.Class, ClassPurchaseOrder); err != nil {
		return err
	}
	if p.OrderStatus != "" && !p.OrderStatus.Valid() {
		return &ValidationError{Field: "orderStatus", Reason: fmt.Sprintf("unknown status %q", p.OrderStatus)}
	}
	return nil
}
