package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Namespace prefixes every wire class name.
const Namespace = "org.supplychain.network"

const resourcePrefix = "resource:"

// Class names used on the wire.
const (
	ClassCommodity       = "Commodity"
	ClassPurchaseOrder   = "PO"
	ClassAddress         = "Address"
	ClassTrace           = "Trace"
	ClassInitiatePO      = "InitiatePO"
	ClassTransfer        = "TransferCommodity"
	ClassHistorianRecord = "HistorianRecord"
)

// Registry kinds. All trader roles share one registry.
const (
	KindTrader        = "Trader"
	KindCommodity     = "Commodity"
	KindPurchaseOrder = "PurchaseOrder"
	KindHistorian     = "HistorianRecord"
)

// QualifiedClass returns the namespaced wire class for a short class name.
func QualifiedClass(class string) string {
	return Namespace + "." + class
}

// ShortClass strips the namespace from a wire class, reporting whether it was present.
func ShortClass(qualified string) (string, bool) {
	short, ok := strings.CutPrefix(qualified, Namespace+".")
	if !ok || short == "" || strings.Contains(short, ".") {
		return "", false
	}
	return short, true
}

// Ref points at a registry resource, serialized as resource:<namespace>.<Class>#<id>.
type Ref struct {
	Class string
	ID    string
}

// TraderRef builds a reference to a trader using its role as class.
func TraderRef(role Role, id string) Ref {
	return Ref{Class: string(role), ID: id}
}

// CommodityRef builds a reference to a commodity.
func CommodityRef(id string) Ref {
	return Ref{Class: ClassCommodity, ID: id}
}

// PurchaseOrderRef builds a reference to a purchase order.
func PurchaseOrderRef(id string) Ref {
	return Ref{Class: ClassPurchaseOrder, ID: id}
}

// IsZero reports whether the reference is unset.
func (r Ref) IsZero() bool {
	return r.ID == ""
}

// Kind maps the referenced class onto the registry that stores it.
func (r Ref) Kind() string {
	switch r.Class {
	case ClassCommodity:
		return KindCommodity
	case ClassPurchaseOrder:
		return KindPurchaseOrder
	}
	if _, err := ParseRole(r.Class); err == nil {
		return KindTrader
	}
	return ""
}

func (r Ref) String() string {
	if r.IsZero() {
		return ""
	}
	return resourcePrefix + QualifiedClass(r.Class) + "#" + r.ID
}

// ParseRef parses a resource URI.
func ParseRef(s string) (Ref, error) {
	rest, ok := strings.CutPrefix(strings.TrimSpace(s), resourcePrefix)
	if !ok {
		return Ref{}, fmt.Errorf("reference %q: missing %q prefix", s, resourcePrefix)
	}
	qualified, id, ok := strings.Cut(rest, "#")
	if !ok || id == "" {
		return Ref{}, fmt.Errorf("reference %q: missing identifier", s)
	}
	class, ok := ShortClass(qualified)
	if !ok {
		return Ref{}, fmt.Errorf("reference %q: class outside namespace %s", s, Namespace)
	}
	if role, err := ParseRole(class); err == nil {
		return TraderRef(role, id), nil
	}
	ref := Ref{Class: class, ID: id}
	if ref.Kind() == "" {
		return Ref{}, fmt.Errorf("reference %q: unknown class %s", s, class)
	}
	return ref, nil
}

func (r Ref) MarshalJSON() ([]byte, error) {
	if r.IsZero() {
		return []byte("null"), nil
	}
	return json.Marshal(r.String())
}

func (r *Ref) UnmarshalJSON(data []byte) error {
	var raw *string
	if err := json.Unmarshal(data, &raw); err != nil {
		return fmt.Errorf("reference must be a resource string: %w", err)
	}
	if raw == nil || *raw == "" {
		*r = Ref{}
		return nil
	}
	parsed, err := ParseRef(*raw)
	if err != nil {
		return err
	}
	*r = parsed
	return nil
}
