package generator

import "time"

// Config drives the synthetic data generator.
type Config struct {
	TradersPerRole int
	NumCommodities int
	// MaxHops caps the number of custody transfers per commodity.
	MaxHops int
	// DetourChance is the probability a shipment leaves from somewhere other than the owner's address.
	DetourChance float64
	Start        time.Time
	Seed         int64
}

// DefaultConfig returns baseline settings for a small but complete network.
func DefaultConfig() Config {
	return Config{
		TradersPerRole: 5,
		NumCommodities: 200,
		MaxHops:        4,
		DetourChance:   0.2,
		Start:          time.Date(2024, 1, 1, 8, 0, 0, 0, time.UTC),
		Seed:           42,
	}
}
