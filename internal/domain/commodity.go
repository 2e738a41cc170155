package domain

import (
	"encoding/json"
	"time"

	"github.com/shopspring/decimal"
)

func init() {
	// Prices travel as JSON numbers on the wire.
	decimal.MarshalJSONWithoutQuotes = true
}

// Trace is one custody handoff; a commodity's trace is append-only.
type Trace struct {
	Timestamp time.Time `json:"timestamp"`
	Location  Address   `json:"location"`
	Company   Ref       `json:"company,omitzero"`
}

func (t Trace) MarshalJSON() ([]byte, error) {
	type alias Trace
	return json.Marshal(struct {
		Class string `json:"$class"`
		alias
	}{QualifiedClass(ClassTrace), alias(t)})
}

func (t *Trace) UnmarshalJSON(data []byte) error {
	type alias Trace
	aux := struct {
		Class string `json:"$class"`
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return expectClass(aux.Class, ClassTrace)
}

// Commodity is a traded asset with ownership and a custody trace.
type Commodity struct {
	ID            string          `json:"commodityid"`
	Name          string          `json:"name"`
	Description   string          `json:"description"`
	Quantity      float64         `json:"quantity"`
	UnitPrice     decimal.Decimal `json:"unitPrice"`
	TotalPrice    decimal.Decimal `json:"totalPrice"`
	Trace         []Trace         `json:"trace"`
	PurchaseOrder Ref             `json:"purchaseOrder,omitzero"`
	Owner         Ref             `json:"owner,omitzero"`
	Issuer        Ref             `json:"issuer,omitzero"`
}

func (c Commodity) ResourceKind() string { return KindCommodity }
func (c Commodity) ResourceID() string   { return c.ID }

func (c Commodity) References() []Reference {
	refs := collectRefs(nil, "owner", c.Owner)
	refs = collectRefs(refs, "issuer", c.Issuer)
	return collectRefs(refs, "purchaseOrder", c.PurchaseOrder)
}

// Validate checks the fields a commodity needs before it can be registered.
func (c Commodity) Validate() error {
	if c.ID == "" {
		return required("commodityid")
	}
	return nil
}

// LastTrace returns the most recent custody entry.
func (c Commodity) LastTrace() (Trace, bool) {
	if len(c.Trace) == 0 {
		return Trace{}, false
	}
	return c.Trace[len(c.Trace)-1], true
}

func (c Commodity) MarshalJSON() ([]byte, error) {
	type alias Commodity
	if c.Trace == nil {
		c.Trace = []Trace{}
	}
	return json.Marshal(struct {
		Class string `json:"$class"`
		alias
	}{QualifiedClass(ClassCommodity), alias(c)})
}

func (c *Commodity) UnmarshalJSON(data []byte) error {
	type alias Commodity
	aux := struct {
		Class string `json:"$class"`
		*alias
	}{alias: (*alias)(c)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	return expectClass(aux.Class, ClassCommodity)
}
