package service

import (
	"context"
	"errors"
	"fmt"
	"sync"

	"golang.org/x/time/rate"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/wire"
)

// TaskError accumulates multiple errors produced during bulk ingestion.
type TaskError struct {
	Errors []error
}

func (e *TaskError) Error() string {
	if len(e.Errors) == 0 {
		return "no errors"
	}
	if len(e.Errors) == 1 {
		return e.Errors[0].Error()
	}
	msg := "multiple errors:"
	for _, err := range e.Errors {
		msg += " " + err.Error() + ";"
	}
	return msg
}

func (e *TaskError) Unwrap() []error { return e.Errors }

func (e *TaskError) append(err error) {
	if err == nil {
		return
	}
	e.Errors = append(e.Errors, err)
}

func (e *TaskError) asError() error {
	if len(e.Errors) == 0 {
		return nil
	}
	return e
}

// BulkIngestor seeds traders and assets using a worker pool.
type BulkIngestor struct {
	service *SupplyChainService
	workers int
	limiter *rate.Limiter
}

// NewBulkIngestor creates a new BulkIngestor with the provided concurrency. A nil
// limiter does not throttle.
func NewBulkIngestor(service *SupplyChainService, workers int, limiter *rate.Limiter) *BulkIngestor {
	if workers <= 0 {
		workers = 4
	}
	return &BulkIngestor{
		service: service,
		workers: workers,
		limiter: limiter,
	}
}

// NewLimiter returns a limiter admitting perSecond items with the given burst, or nil
// when perSecond is not positive.
func NewLimiter(perSecond float64, burst int) *rate.Limiter {
	if perSecond <= 0 {
		return nil
	}
	if burst <= 0 {
		burst = 1
	}
	return rate.NewLimiter(rate.Limit(perSecond), burst)
}

// Seed registers a dataset. Traders go first so that asset references resolve; a
// stage with failures stops the seed.
func (bi *BulkIngestor) Seed(ctx context.Context, ds wire.Dataset) error {
	if err := bi.IngestTraders(ctx, ds.Traders); err != nil {
		return fmt.Errorf("seed traders: %w", err)
	}
	if err := bi.IngestCommodities(ctx, ds.Commodities); err != nil {
		return fmt.Errorf("seed commodities: %w", err)
	}
	if err := bi.IngestPurchaseOrders(ctx, ds.PurchaseOrders); err != nil {
		return fmt.Errorf("seed purchase orders: %w", err)
	}
	return nil
}

// IngestTraders registers the provided traders concurrently.
func (bi *BulkIngestor) IngestTraders(ctx context.Context, traders []domain.Trader) error {
	return bi.run(ctx, len(traders), func(idx int) error {
		if _, err := bi.service.RegisterTrader(ctx, traders[idx]); err != nil {
			return fmt.Errorf("trader %q: %w", traders[idx].ID, err)
		}
		return nil
	})
}

// IngestCommodities registers the provided commodities concurrently.
func (bi *BulkIngestor) IngestCommodities(ctx context.Context, commodities []domain.Commodity) error {
	return bi.run(ctx, len(commodities), func(idx int) error {
		if _, err := bi.service.RegisterCommodity(ctx, commodities[idx]); err != nil {
			return fmt.Errorf("commodity %q: %w", commodities[idx].ID, err)
		}
		return nil
	})
}

// IngestPurchaseOrders imports the provided purchase orders concurrently.
func (bi *BulkIngestor) IngestPurchaseOrders(ctx context.Context, orders []domain.PurchaseOrder) error {
	return bi.run(ctx, len(orders), func(idx int) error {
		if _, err := bi.service.ImportPurchaseOrder(ctx, orders[idx]); err != nil {
			return fmt.Errorf("purchase order %q: %w", orders[idx].ID, err)
		}
		return nil
	})
}

func (bi *BulkIngestor) run(ctx context.Context, total int, workerFn func(idx int) error) error {
	if total == 0 {
		return nil
	}
	indexCh := make(chan int)
	errCh := make(chan error, total)
	var wg sync.WaitGroup

	worker := func() {
		defer wg.Done()
		for idx := range indexCh {
			if bi.limiter != nil {
				if err := bi.limiter.Wait(ctx); err != nil {
					errCh <- err
					return
				}
			}
			if err := workerFn(idx); err != nil {
				select {
				case errCh <- err:
				case <-ctx.Done():
					return
				}
			}
		}
	}

	for i := 0; i < bi.workers; i++ {
		wg.Add(1)
		go worker()
	}

Loop:
	for i := 0; i < total; i++ {
		select {
		case indexCh <- i:
		case <-ctx.Done():
			break Loop
		}
	}
	close(indexCh)
	wg.Wait()
	close(errCh)

	var taskErr TaskError
	for err := range errCh {
		if err == nil {
			continue
		}
		if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
			return err
		}
		taskErr.append(err)
	}
	return taskErr.asError()
}
