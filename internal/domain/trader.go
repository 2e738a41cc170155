package domain

import (
	"encoding/json"
	"fmt"
	"strings"
)

// Role is the supply-chain position a trader holds.
type Role string

const (
	RoleSupplier     Role = "Supplier"
	RoleManufacturer Role = "Manufacturer"
	RoleDistributor  Role = "Distributor"
	RoleRetailer     Role = "Retailer"
	RoleCustomer     Role = "Customer"
)

// Roles lists every role in custody-chain order.
var Roles = []Role{RoleSupplier, RoleManufacturer, RoleDistributor, RoleRetailer, RoleCustomer}

// ParseRole accepts a role name case-insensitively.
func ParseRole(s string) (Role, error) {
	for _, role := range Roles {
		if strings.EqualFold(string(role), strings.TrimSpace(s)) {
			return role, nil
		}
	}
	return "", fmt.Errorf("unknown trader role %q", s)
}

// Address captures geocoordinates and postal fields.
type Address struct {
	Longitude           float64 `json:"longitude"`
	Latitude            float64 `json:"latitude"`
	City                string  `json:"city,omitempty"`
	Country             string  `json:"country,omitempty"`
	Locality            string  `json:"locality,omitempty"`
	Region              string  `json:"region,omitempty"`
	Street              string  `json:"street,omitempty"`
	PostalCode          string  `json:"postalCode,omitempty"`
	PostOfficeBoxNumber string  `json:"postOfficeBoxNumber,omitempty"`
}

func (a Address) MarshalJSON() ([]byte, error) {
	type alias Address
	return json.Marshal(struct {
		Class string `json:"$class"`
		alias
	}{QualifiedClass(ClassAddress), alias(a)})
}

func (a *Address) UnmarshalJSON(data []byte) error {
	type alias Address
	aux := struct {
		Class string `json:"$class"`
		// Older payloads carry the misspelled field name.
		Longtitude *float64 `json:"longtitude"`
		*alias
	}{alias: (*alias)(a)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	if err := expectClass(aux.Class, ClassAddress); err != nil {
		return err
	}
	if aux.Longtitude != nil && a.Longitude == 0 {
		a.Longitude = *aux.Longtitude
	}
	return nil
}

// Trader is a participant holding one of the supply-chain roles.
type Trader struct {
	ID          string  `json:"traderId"`
	CompanyName string  `json:"companyName"`
	Address     Address `json:"address"`
	Role        Role    `json:"-"`
	TradeID     string  `json:"tradeId"`
}

func (t Trader) ResourceKind() string { return KindTrader }
func (t Trader) ResourceID() string   { return t.ID }

// Ref returns a reference to the trader typed by its role.
func (t Trader) Ref() Ref {
	return TraderRef(t.Role, t.ID)
}

// Validate checks the fields a trader needs before it can be registered.
func (t Trader) Validate() error {
	if strings.TrimSpace(t.ID) == "" {
		return required("traderId")
	}
	if _, err := ParseRole(string(t.Role)); err != nil {
		return &ValidationError{Field: "role", Reason: err.Error()}
	}
	return nil
}

func (t Trader) MarshalJSON() ([]byte, error) {
	if t.Role == "" {
		return nil, fmt.Errorf("trader %q has no role", t.ID)
	}
	type alias Trader
	return json.Marshal(struct {
		Class string `json:"$class"`
		alias
	}{QualifiedClass(string(t.Role)), alias(t)})
}

func (t *Trader) UnmarshalJSON(data []byte) error {
	type alias Trader
	aux := struct {
		Class string `json:"$class"`
		*alias
	}{alias: (*alias)(t)}
	if err := json.Unmarshal(data, &aux); err != nil {
		return err
	}
	short, ok := ShortClass(aux.Class)
	if !ok {
		return &ValidationError{Field: "$class", Reason: fmt.Sprintf("%q is not a trader class", aux.Class)}
	}
	role, err := ParseRole(short)
	if err != nil {
		return &ValidationError{Field: "$class", Reason: err.Error()}
	}
	t.Role = role
	return nil
}

func expectClass(got, want string) error {
	if got == "" || got == QualifiedClass(want) {
		return nil
	}
	return &ValidationError{Field: "$class", Reason: fmt.Sprintf("expected %s, got %s", QualifiedClass(want), got)}
}
