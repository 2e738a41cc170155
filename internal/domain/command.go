package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

// InitiatePurchaseOrder asks the ledger to open a new purchase order.
// Orderer is accepted for compatibility; the committed orderer is always the caller.
type InitiatePurchaseOrder struct {
	OrderID         string
	ItemList        []Ref
	OrderTotalPrice *decimal.Decimal
	Orderer         Ref
	Vendor          Ref
}

func (c InitiatePurchaseOrder) CommandClass() string { return ClassInitiatePO }

func (c InitiatePurchaseOrder) Validate() error {
	if c.OrderID == "" {
		return required("orderId")
	}
	if c.Vendor.IsZero() {
		return required("vendor")
	}
	return nil
}

// TransferCommodity hands a commodity to a new owner and records the handoff.
// Commodity carries the full current value as resolved by the runtime.
type TransferCommodity struct {
	Commodity       Commodity
	NewOwner        Ref
	PurchaseOrder   Ref
	ShipperLocation *Address
}

func (c TransferCommodity) CommandClass() string { return ClassTransfer }

func (c TransferCommodity) Validate() error {
	if c.Commodity.ID == "" {
		return required("commodity")
	}
	if c.NewOwner.IsZero() {
		return required("newOwner")
	}
	if c.ShipperLocation == nil {
		return required("shipperLocation")
	}
	return nil
}

// HistorianRecord is the ledger's log entry for one committed transaction.
type HistorianRecord struct {
	TransactionID   string          `json:"transactionId"`
	TransactionType string          `json:"transactionType"`
	Participant     Ref             `json:"participantInvoking,omitzero"`
	Timestamp       time.Time       `json:"transactionTimestamp"`
	Payload         json.RawMessage `json:"transactionInvoked,omitempty"`
}

func (h HistorianRecord) ResourceKind() string { return KindHistorian }
func (h HistorianRecord) ResourceID() string   { return h.TransactionID }

func (h HistorianRecord) MarshalJSON() ([]byte, error) {
	type alias HistorianRecord
	return json.Marshal(struct {
		Class string `json:"$class"`
		alias
	}{QualifiedClass(ClassHistorianRecord), alias(h)})
}

func (h *HistorianRecord) UnmarshalJSON(data []byte) error {
	type alias HistorianRecord
	aux := struct {
		Class string `json:"$class"`
		*alias
	}{alias: (*alias)(h)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return expectClass(aux.Class, ClassHistorianRecord)
}
