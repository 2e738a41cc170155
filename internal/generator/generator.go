package generator

import (
	"context"
	"fmt"
	"math/rand"
	"time"

	"github.com/shopspring/decimal"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/wire"
)

// Submission is one generated transaction and the trader submitting it.
type Submission struct {
	Credential domain.Ref
	Payload    wire.Payload
}

// Output contains the seed dataset and the transactions to replay on top of it.
type Output struct {
	Dataset wire.Dataset
	Stream  []Submission
}

// Generator produces a synthetic supply network and custody history.
type Generator struct {
	cfg       Config
	rand      *rand.Rand
	fragments nameFragments
	clock     time.Time
	orders    int
	txs       int
}

// New returns a configured Generator instance.
func New(cfg Config) *Generator {
	defaults := DefaultConfig()
	if cfg.TradersPerRole <= 0 {
		cfg.TradersPerRole = defaults.TradersPerRole
	}
	if cfg.NumCommodities < 0 {
		cfg.NumCommodities = 0
	}
	if cfg.MaxHops <= 0 || cfg.MaxHops >= len(domain.Roles) {
		cfg.MaxHops = len(domain.Roles) - 1
	}
	if cfg.DetourChance < 0 {
		cfg.DetourChance = 0
	}
	if cfg.Start.IsZero() {
		cfg.Start = defaults.Start
	}
	if cfg.Seed == 0 {
		cfg.Seed = time.Now().UnixNano()
	}

	return &Generator{
		cfg:       cfg,
		rand:      rand.New(rand.NewSource(cfg.Seed)),
		fragments: defaultNameFragments(),
		clock:     cfg.Start.UTC(),
	}
}

// Generate synthesises traders, commodities and a transaction stream moving each commodity
// down the supply chain. It respects context cancellation.
func (g *Generator) Generate(ctx context.Context) (Output, error) {
	byRole := make(map[domain.Role][]domain.Trader, len(domain.Roles))
	var out Output

	for _, role := range domain.Roles {
		for i := 0; i < g.cfg.TradersPerRole; i++ {
			t := domain.Trader{
				ID:          fmt.Sprintf("%s-%03d", rolePrefix(role), i+1),
				CompanyName: g.companyName(role),
				Address:     g.address(),
				Role:        role,
				TradeID:     fmt.Sprintf("TRD-%06d", g.rand.Intn(1000000)),
			}
			byRole[role] = append(byRole[role], t)
			out.Dataset.Traders = append(out.Dataset.Traders, t)
		}
	}

	for i := 0; i < g.cfg.NumCommodities; i++ {
		if err := ctx.Err(); err != nil {
			return Output{}, err
		}

		suppliers := byRole[domain.RoleSupplier]
		owner := suppliers[g.rand.Intn(len(suppliers))]
		quantity := 1 + g.rand.Intn(500)
		unit := decimal.New(int64(100+g.rand.Intn(99900)), -2)
		commodity := domain.Commodity{
			ID:          fmt.Sprintf("COM-%06d", i+1),
			Name:        g.commodityName(),
			Description: g.fragments.descriptions[g.rand.Intn(len(g.fragments.descriptions))],
			Quantity:    float64(quantity),
			UnitPrice:   unit,
			TotalPrice:  unit.Mul(decimal.NewFromInt(int64(quantity))),
			Trace:       []domain.Trace{},
			Owner:       owner.Ref(),
			Issuer:      owner.Ref(),
		}
		out.Dataset.Commodities = append(out.Dataset.Commodities, commodity)

		hops := 1 + g.rand.Intn(g.cfg.MaxHops)
		for hop := 1; hop <= hops; hop++ {
			buyers := byRole[domain.Roles[hop]]
			buyer := buyers[g.rand.Intn(len(buyers))]
			out.Stream = append(out.Stream, g.handoff(commodity, owner, buyer)...)
			owner = buyer
		}
	}

	return out, nil
}

// handoff emits the buyer's purchase order followed by the seller's transfer.
func (g *Generator) handoff(commodity domain.Commodity, seller, buyer domain.Trader) []Submission {
	g.orders++
	orderID := fmt.Sprintf("PO-%07d", g.orders)
	total := commodity.TotalPrice

	location := seller.Address
	if g.rand.Float64() < g.cfg.DetourChance {
		location = g.address()
	}

	return []Submission{
		{
			Credential: buyer.Ref(),
			Payload: wire.InitiatePO{
				Envelope: g.envelope(),
				OrderID:  orderID,
				ItemList: []domain.Ref{domain.CommodityRef(commodity.ID)},
				Vendor:   seller.Ref(),
				// Ignored by the ledger, which uses the submitting trader.
				Orderer:         buyer.Ref(),
				OrderTotalPrice: &total,
			},
		},
		{
			Credential: seller.Ref(),
			Payload: wire.TransferCommodity{
				Envelope:        g.envelope(),
				Commodity:       domain.CommodityRef(commodity.ID),
				NewOwner:        buyer.Ref(),
				PurchaseOrder:   domain.PurchaseOrderRef(orderID),
				ShipperLocation: &location,
			},
		},
	}
}

func (g *Generator) envelope() wire.Envelope {
	g.txs++
	g.clock = g.clock.Add(time.Duration(1+g.rand.Intn(180)) * time.Minute)
	ts := g.clock
	return wire.Envelope{
		TransactionID: fmt.Sprintf("TXN-%08d", g.txs),
		Timestamp:     &ts,
	}
}

func (g *Generator) companyName(role domain.Role) string {
	return fmt.Sprintf("%s %s %s",
		g.fragments.companyFirst[g.rand.Intn(len(g.fragments.companyFirst))],
		g.fragments.companySecond[g.rand.Intn(len(g.fragments.companySecond))],
		g.fragments.suffixes[role])
}

func (g *Generator) commodityName() string {
	return fmt.Sprintf("%s %s",
		g.fragments.grades[g.rand.Intn(len(g.fragments.grades))],
		g.fragments.goods[g.rand.Intn(len(g.fragments.goods))])
}

func (g *Generator) address() domain.Address {
	c := g.fragments.cities[g.rand.Intn(len(g.fragments.cities))]
	return domain.Address{
		Longitude:  c.lon + (g.rand.Float64()-0.5)*0.1,
		Latitude:   c.lat + (g.rand.Float64()-0.5)*0.1,
		City:       c.name,
		Country:    c.country,
		Region:     c.region,
		Street:     fmt.Sprintf("%d %s", g.rand.Intn(400)+1, g.fragments.streets[g.rand.Intn(len(g.fragments.streets))]),
		PostalCode: fmt.Sprintf("%05d", g.rand.Intn(99999)),
	}
}

func rolePrefix(role domain.Role) string {
	switch role {
	case domain.RoleSupplier:
		return "SUP"
	case domain.RoleManufacturer:
		return "MAN"
	case domain.RoleDistributor:
		return "DIS"
	case domain.RoleRetailer:
		return "RET"
	default:
		return "CUS"
	}
}

type city struct {
	name, region, country string
	lat, lon              float64
}

type nameFragments struct {
	companyFirst  []string
	companySecond []string
	suffixes      map[domain.Role]string
	grades        []string
	goods         []string
	descriptions  []string
	streets       []string
	cities        []city
}

func defaultNameFragments() nameFragments {
	return nameFragments{
		companyFirst:  []string{"Northern", "Blue", "Summit", "Harbor", "Granite", "Evergreen", "Pioneer", "Atlas", "Crescent", "Meridian"},
		companySecond: []string{"River", "Peak", "Valley", "Bay", "Ridge", "Field", "Stone", "Cedar", "Delta", "Coast"},
		suffixes: map[domain.Role]string{
			domain.RoleSupplier:     "Raw Materials",
			domain.RoleManufacturer: "Industries",
			domain.RoleDistributor:  "Logistics",
			domain.RoleRetailer:     "Stores",
			domain.RoleCustomer:     "Holdings",
		},
		grades:       []string{"Premium", "Standard", "Bulk", "Organic", "Refined", "Industrial"},
		goods:        []string{"Coffee Beans", "Cotton Bales", "Steel Coils", "Copper Wire", "Wheat Flour", "Cocoa", "Timber", "Olive Oil", "Rice", "Solar Panels"},
		descriptions: []string{"Palletised, shrink wrapped", "Temperature controlled", "Bagged in 50kg sacks", "Containerised, 20ft", "Crated for export"},
		streets:      []string{"Harbour Road", "Mill Lane", "Station Street", "Quay Side", "Depot Way", "Commerce Drive"},
		cities: []city{
			{name: "Rotterdam", region: "South Holland", country: "NL", lat: 51.92, lon: 4.48},
			{name: "Hamburg", region: "Hamburg", country: "DE", lat: 53.55, lon: 9.99},
			{name: "Antwerp", region: "Flanders", country: "BE", lat: 51.22, lon: 4.40},
			{name: "Felixstowe", region: "Suffolk", country: "GB", lat: 51.96, lon: 1.35},
			{name: "Valencia", region: "Valencia", country: "ES", lat: 39.47, lon: -0.38},
			{name: "Genoa", region: "Liguria", country: "IT", lat: 44.41, lon: 8.93},
			{name: "Le Havre", region: "Normandy", country: "FR", lat: 49.49, lon: 0.11},
			{name: "Gdansk", region: "Pomerania", country: "PL", lat: 54.35, lon: 18.65},
		},
	}
}
