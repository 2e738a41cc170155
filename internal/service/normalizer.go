package service

import (
	"strings"

	"github.com/vanshika/supplytrace/internal/domain"
)

func normalizeTrader(t domain.Trader) domain.Trader {
	t.ID = strings.TrimSpace(t.ID)
	t.CompanyName = collapseSpaces(t.CompanyName)
	t.TradeID = strings.TrimSpace(t.TradeID)
	t.Address = normalizeAddress(t.Address)
	return t
}

func normalizeCommodity(c domain.Commodity) domain.Commodity {
	c.ID = strings.TrimSpace(c.ID)
	c.Name = collapseSpaces(c.Name)
	c.Description = strings.TrimSpace(c.Description)
	return c
}

func normalizePurchaseOrder(p domain.PurchaseOrder) domain.PurchaseOrder {
	p.ID = strings.TrimSpace(p.ID)
	if p.OrderStatus == "" {
		p.OrderStatus = domain.StatusInitiated
	}
	return p
}

// normalizeAddress trims every text field and upper-cases country and postal codes.
func normalizeAddress(a domain.Address) domain.Address {
	a.City = collapseSpaces(a.City)
	a.Country = strings.ToUpper(strings.TrimSpace(a.Country))
	a.Locality = collapseSpaces(a.Locality)
	a.Region = collapseSpaces(a.Region)
	a.Street = collapseSpaces(a.Street)
	a.PostalCode = strings.ToUpper(strings.TrimSpace(a.PostalCode))
	a.PostOfficeBoxNumber = strings.TrimSpace(a.PostOfficeBoxNumber)
	return a
}

func collapseSpaces(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
