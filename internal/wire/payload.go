// Package wire converts between ledger types and their `$class` discriminated JSON form.
package wire

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/supplytrace/internal/domain"
)

// Payload is a decoded transaction body as submitted by a client.
type Payload interface {
	Class() string
	// Meta returns the optional transaction id and timestamp supplied by the client.
	Meta() Envelope
}

// Envelope carries the fields every transaction payload may include.
type Envelope struct {
	TransactionID string     `json:"transactionId,omitempty"`
	Timestamp     *time.Time `json:"timestamp,omitempty"`
}

// InitiatePO is the wire form of an InitiatePurchaseOrder command.
type InitiatePO struct {
	Envelope
	OrderID         string           `json:"orderId"`
	ItemList        []domain.Ref     `json:"itemList"`
	OrderTotalPrice *decimal.Decimal `json:"orderTotalPrice,omitempty"`
	Orderer         domain.Ref       `json:"orderer,omitzero"`
	Vendor          domain.Ref       `json:"vendor,omitzero"`
}

func (p InitiatePO) Class() string  { return domain.ClassInitiatePO }
func (p InitiatePO) Meta() Envelope { return p.Envelope }

// Command converts the payload into the processor command.
func (p InitiatePO) Command() domain.InitiatePurchaseOrder {
	return domain.InitiatePurchaseOrder{
		OrderID:         p.OrderID,
		ItemList:        p.ItemList,
		OrderTotalPrice: p.OrderTotalPrice,
		Orderer:         p.Orderer,
		Vendor:          p.Vendor,
	}
}

// TransferCommodity is the wire form of a TransferCommodity command. The commodity travels
// as a reference; the runtime resolves its current value. Issuer is accepted and ignored.
type TransferCommodity struct {
	Envelope
	Commodity       domain.Ref      `json:"commodity,omitzero"`
	Issuer          domain.Ref      `json:"issuer,omitzero"`
	NewOwner        domain.Ref      `json:"newOwner,omitzero"`
	PurchaseOrder   domain.Ref      `json:"purchaseOrder,omitzero"`
	ShipperLocation *domain.Address `json:"shipperLocation,omitempty"`
}

func (p TransferCommodity) Class() string  { return domain.ClassTransfer }
func (p TransferCommodity) Meta() Envelope { return p.Envelope }

// Command converts the payload into the processor command using the resolved commodity.
func (p TransferCommodity) Command(current domain.Commodity) domain.TransferCommodity {
	return domain.TransferCommodity{
		Commodity:       current,
		NewOwner:        p.NewOwner,
		PurchaseOrder:   p.PurchaseOrder,
		ShipperLocation: p.ShipperLocation,
	}
}

type classProbe struct {
	Class string `json:"$class"`
}

// DecodePayload reads one transaction payload, dispatching on its $class.
func DecodePayload(data []byte) (Payload, error) {
	var probe classProbe
	if err := json.Unmarshal(data, &probe); err != nil {
		return nil, &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	if probe.Class == "" {
		return nil, &domain.ValidationError{Field: "$class", Reason: "is required"}
	}
	short, ok := domain.ShortClass(probe.Class)
	if !ok {
		return nil, &domain.ValidationError{Field: "$class", Reason: fmt.Sprintf("%q is outside %s", probe.Class, domain.Namespace)}
	}

	switch short {
	case domain.ClassInitiatePO:
		var p InitiatePO
		if err := decodeStrict(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	case domain.ClassTransfer:
		var p TransferCommodity
		if err := decodeStrict(data, &p); err != nil {
			return nil, err
		}
		return p, nil
	default:
		return nil, &domain.ValidationError{Field: "$class", Reason: fmt.Sprintf("unsupported transaction %s", short)}
	}
}

// EncodePayload writes a payload with its qualified $class.
func EncodePayload(p Payload) ([]byte, error) {
	body, err := json.Marshal(p)
	if err != nil {
		return nil, fmt.Errorf("encode %s: %w", p.Class(), err)
	}
	class, err := json.Marshal(domain.QualifiedClass(p.Class()))
	if err != nil {
		return nil, err
	}

	var buf bytes.Buffer
	buf.WriteString(`{"$class":`)
	buf.Write(class)
	if len(body) > 2 {
		buf.WriteByte(',')
		buf.Write(body[1:])
	} else {
		buf.WriteByte('}')
	}
	return buf.Bytes(), nil
}

// decodeStrict rejects unknown fields so misspelled keys fail instead of dropping data.
func decodeStrict(data []byte, dst any) error {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(data, &fields); err != nil {
		return &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	delete(fields, "$class")
	stripped, err := json.Marshal(fields)
	if err != nil {
		return err
	}

	dec := json.NewDecoder(bytes.NewReader(stripped))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		var verr *domain.ValidationError
		if errors.As(err, &verr) {
			return err
		}
		return &domain.ValidationError{Field: "payload", Reason: err.Error()}
	}
	return nil
}
