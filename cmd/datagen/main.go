package main

import (
	"context"
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/vanshika/supplytrace/internal/generator"
)

func main() {
	cfg := generator.DefaultConfig()
	var (
		tradersPerRole = flag.Int("traders-per-role", cfg.TradersPerRole, "number of traders to generate for each role")
		commodities    = flag.Int("commodities", cfg.NumCommodities, "number of commodities to generate")
		maxHops        = flag.Int("max-hops", cfg.MaxHops, "maximum custody transfers per commodity")
		detourChance   = flag.Float64("detour-chance", cfg.DetourChance, "probability a shipment leaves from a location other than the seller's address")
		start          = flag.String("start", cfg.Start.Format(time.RFC3339), "timestamp of the first generated transaction (RFC3339)")
		seed           = flag.Int64("seed", cfg.Seed, "random seed for deterministic generation")
		outputDir      = flag.String("output-dir", "seed-data", "directory to write dataset.json and transactions.jsonl")
	)
	flag.Parse()

	startAt, err := time.Parse(time.RFC3339, *start)
	if err != nil {
		fmt.Fprintf(os.Stderr, "invalid -start: %v\n", err)
		os.Exit(2)
	}

	genCfg := generator.Config{
		TradersPerRole: *tradersPerRole,
		NumCommodities: *commodities,
		MaxHops:        *maxHops,
		DetourChance:   clampProbability(*detourChance),
		Start:          startAt,
		Seed:           *seed,
	}

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Minute)
	defer cancel()

	gen := generator.New(genCfg)
	out, err := gen.Generate(ctx)
	if err != nil {
		fmt.Fprintf(os.Stderr, "generation failed: %v\n", err)
		os.Exit(1)
	}

	if err := generator.WriteOutput(out, *outputDir); err != nil {
		fmt.Fprintf(os.Stderr, "failed to write output: %v\n", err)
		os.Exit(1)
	}

	fmt.Fprintf(os.Stdout, "Generated %d traders, %d commodities and %d transactions into %s\n",
		len(out.Dataset.Traders), len(out.Dataset.Commodities), len(out.Stream), *outputDir)
}

func clampProbability(value float64) float64 {
	if value < 0 {
		return 0
	}
	if value > 1 {
		return 1
	}
	return value
}
