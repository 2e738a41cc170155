package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"
	"time"

	"github.com/vanshika/supplytrace/internal/config"
	"github.com/vanshika/supplytrace/internal/ledger"
	"github.com/vanshika/supplytrace/internal/logging"
	"github.com/vanshika/supplytrace/internal/service"
	"github.com/vanshika/supplytrace/internal/storage"
	"github.com/vanshika/supplytrace/internal/wire"
)

var (
	errMissingDataset = errors.New("dataset not found")
)

func main() {
	var (
		datasetDir  = flag.String("dataset-dir", "./seed-data", "Directory containing dataset.json or dataset.yaml")
		datasetPath = flag.String("dataset", "", "Path to a JSON or YAML dataset (overrides dataset-dir)")
		workers     = flag.Int("workers", 0, "Number of concurrent workers (defaults to INGEST_WORKERS)")
	)
	flag.Parse()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	if *workers <= 0 {
		*workers = cfg.Ingest.Workers
	}

	logger := logging.New(cfg.Logging).With("component", "ingest")

	path, err := resolveDatasetPath(*datasetDir, *datasetPath)
	if err != nil {
		logger.Error("dataset resolution failed", "error", err)
		os.Exit(1)
	}

	ds, err := wire.LoadDataset(path)
	if err != nil {
		logger.Error("failed to load dataset", "error", err, "path", path)
		os.Exit(1)
	}
	if len(ds.Traders) == 0 {
		logger.Error("dataset has no traders", "path", path)
		os.Exit(1)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	store, err := storage.Open(ctx, logger, cfg)
	if err != nil {
		logger.Error("failed to open store", "error", err)
		os.Exit(1)
	}
	defer func() {
		if err := store.Close(context.Background()); err != nil {
			logger.Warn("closing store failed", "error", err)
		}
	}()

	svc := service.NewSupplyChainService(ledger.New(store, ledger.WithLogger(logger)), logger)
	ingestor := service.NewBulkIngestor(svc, *workers, service.NewLimiter(cfg.Ingest.RatePerSecond, cfg.Ingest.Burst))

	start := time.Now()
	logger.Info("seeding dataset",
		"traders", len(ds.Traders),
		"commodities", len(ds.Commodities),
		"purchase_orders", len(ds.PurchaseOrders),
		"workers", *workers,
	)
	if err := ingestor.Seed(ctx, ds); err != nil {
		logger.Error("ingestion failed", "error", err)
		os.Exit(1)
	}

	logger.Info("ingestion complete", "duration", time.Since(start).String())
}

func resolveDatasetPath(baseDir, explicitPath string) (string, error) {
	if explicitPath != "" {
		if _, err := os.Stat(explicitPath); err != nil {
			return "", fmt.Errorf("stat %s: %w", explicitPath, err)
		}
		return explicitPath, nil
	}
	for _, name := range []string{"dataset.json", "dataset.yaml", "dataset.yml"} {
		path := filepath.Join(baseDir, name)
		if _, err := os.Stat(path); err == nil {
			return path, nil
		}
	}
	return "", fmt.Errorf("%w: %s", errMissingDataset, baseDir)
}
