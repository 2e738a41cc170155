package service

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"sort"

	"golang.org/x/time/rate"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/ledger"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/wire"
)

// Ledger is the runtime surface the service drives.
type Ledger interface {
	Execute(ctx context.Context, credential domain.Ref, p wire.Payload) (ledger.Receipt, error)
	Submit(ctx context.Context, credential domain.Ref, payload []byte) (ledger.Receipt, error)
	Mutate(ctx context.Context, fn func(ctx context.Context, set *registry.Set) error) error
	View(ctx context.Context, fn func(ctx context.Context, set *registry.Set) error) error
}

// SupplyChainService registers participants and assets and answers custody queries.
// All writes go through the ledger so they serialize with transactions.
type SupplyChainService struct {
	ledger Ledger
	logger *slog.Logger
}

// NewSupplyChainService wraps l. A nil logger discards output.
func NewSupplyChainService(l Ledger, logger *slog.Logger) *SupplyChainService {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &SupplyChainService{ledger: l, logger: logger.With("component", "service")}
}

// RegisterTrader adds a trader after normalising its fields.
func (s *SupplyChainService) RegisterTrader(ctx context.Context, trader domain.Trader) (domain.Trader, error) {
	trader = normalizeTrader(trader)
	if err := trader.Validate(); err != nil {
		return domain.Trader{}, err
	}
	err := s.ledger.Mutate(ctx, func(ctx context.Context, set *registry.Set) error {
		return set.Traders().Add(ctx, trader)
	})
	if err != nil {
		return domain.Trader{}, err
	}
	return trader, nil
}

// RegisterCommodity adds a commodity. Its references must already exist.
func (s *SupplyChainService) RegisterCommodity(ctx context.Context, commodity domain.Commodity) (domain.Commodity, error) {
	commodity = normalizeCommodity(commodity)
	if err := commodity.Validate(); err != nil {
		return domain.Commodity{}, err
	}
	err := s.ledger.Mutate(ctx, func(ctx context.Context, set *registry.Set) error {
		return set.Commodities().Add(ctx, commodity)
	})
	if err != nil {
		return domain.Commodity{}, err
	}
	return commodity, nil
}

// ImportPurchaseOrder stores an existing purchase order from a dataset. New orders are
// opened with the InitiatePO transaction instead.
func (s *SupplyChainService) ImportPurchaseOrder(ctx context.Context, order domain.PurchaseOrder) (domain.PurchaseOrder, error) {
	order = normalizePurchaseOrder(order)
	if order.ID == "" {
		return domain.PurchaseOrder{}, &domain.ValidationError{Field: "orderid", Reason: "is required"}
	}
	if !order.OrderStatus.Valid() {
		return domain.PurchaseOrder{}, &domain.ValidationError{Field: "orderStatus", Reason: fmt.Sprintf("unknown status %q", order.OrderStatus)}
	}
	err := s.ledger.Mutate(ctx, func(ctx context.Context, set *registry.Set) error {
		return set.PurchaseOrders().Add(ctx, order)
	})
	if err != nil {
		return domain.PurchaseOrder{}, err
	}
	return order, nil
}

// Remove deletes the asset or trader ref points at.
func (s *SupplyChainService) Remove(ctx context.Context, ref domain.Ref) error {
	return s.ledger.Mutate(ctx, func(ctx context.Context, set *registry.Set) error {
		switch ref.Kind() {
		case domain.KindTrader:
			return set.Traders().Delete(ctx, ref.ID)
		case domain.KindCommodity:
			return set.Commodities().Delete(ctx, ref.ID)
		case domain.KindPurchaseOrder:
			return set.PurchaseOrders().Delete(ctx, ref.ID)
		default:
			return &domain.ValidationError{Field: "ref", Reason: fmt.Sprintf("cannot remove %q", ref.Class)}
		}
	})
}

// Submit executes a transaction on behalf of credential.
func (s *SupplyChainService) Submit(ctx context.Context, credential domain.Ref, p wire.Payload) (ledger.Receipt, error) {
	return s.ledger.Execute(ctx, credential, p)
}

func (s *SupplyChainService) GetTrader(ctx context.Context, id string) (domain.Trader, error) {
	return view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) (domain.Trader, error) {
		return set.Traders().Get(ctx, id)
	})
}

func (s *SupplyChainService) GetCommodity(ctx context.Context, id string) (domain.Commodity, error) {
	return view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) (domain.Commodity, error) {
		return set.Commodities().Get(ctx, id)
	})
}

func (s *SupplyChainService) GetPurchaseOrder(ctx context.Context, id string) (domain.PurchaseOrder, error) {
	return view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) (domain.PurchaseOrder, error) {
		return set.PurchaseOrders().Get(ctx, id)
	})
}

// ListTraders pages through traders ordered by id, optionally filtered by role.
func (s *SupplyChainService) ListTraders(ctx context.Context, params ListParams) (Page[domain.Trader], error) {
	all, err := view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) ([]domain.Trader, error) {
		return set.Traders().GetAll(ctx)
	})
	if err != nil {
		return Page[domain.Trader]{}, err
	}
	return paginate(filter(all, func(t domain.Trader) bool {
		return params.Role == "" || t.Role == params.Role
	}), params), nil
}

// ListCommodities pages through commodities ordered by id, optionally filtered by owner.
func (s *SupplyChainService) ListCommodities(ctx context.Context, params ListParams) (Page[domain.Commodity], error) {
	all, err := view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) ([]domain.Commodity, error) {
		if !params.Owner.IsZero() {
			return set.CommoditiesOwnedBy(ctx, params.Owner)
		}
		return set.Commodities().GetAll(ctx)
	})
	if err != nil {
		return Page[domain.Commodity]{}, err
	}
	return paginate(all, params), nil
}

// ListPurchaseOrders pages through purchase orders ordered by id, optionally filtered by status.
func (s *SupplyChainService) ListPurchaseOrders(ctx context.Context, params ListParams) (Page[domain.PurchaseOrder], error) {
	all, err := view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) ([]domain.PurchaseOrder, error) {
		return set.PurchaseOrders().GetAll(ctx)
	})
	if err != nil {
		return Page[domain.PurchaseOrder]{}, err
	}
	return paginate(filter(all, func(p domain.PurchaseOrder) bool {
		return params.Status == "" || p.OrderStatus == params.Status
	}), params), nil
}

// Holdings lists the commodities trader currently owns.
func (s *SupplyChainService) Holdings(ctx context.Context, trader domain.Ref) ([]domain.Commodity, error) {
	return view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) ([]domain.Commodity, error) {
		if _, err := set.Traders().Get(ctx, trader.ID); err != nil {
			return nil, err
		}
		return set.CommoditiesOwnedBy(ctx, trader)
	})
}

// CustodyChain returns a commodity's handoffs in the order they were recorded.
func (s *SupplyChainService) CustodyChain(ctx context.Context, commodityID string) (CustodyChain, error) {
	return view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) (CustodyChain, error) {
		commodity, err := set.Commodities().Get(ctx, commodityID)
		if err != nil {
			return CustodyChain{}, err
		}

		names := make(map[string]string)
		chain := CustodyChain{Commodity: commodity, Handoffs: make([]Handoff, 0, len(commodity.Trace))}
		for i, entry := range commodity.Trace {
			name, ok := names[entry.Company.ID]
			if !ok && !entry.Company.IsZero() {
				trader, err := set.Traders().Get(ctx, entry.Company.ID)
				switch {
				case err == nil:
					name = trader.CompanyName
				case errors.Is(err, domain.ErrNotFound):
					// The trader was removed after the handoff; the reference stays in the trace.
				default:
					return CustodyChain{}, err
				}
				names[entry.Company.ID] = name
			}
			chain.Handoffs = append(chain.Handoffs, Handoff{
				Seq:         i + 1,
				Timestamp:   entry.Timestamp,
				Location:    entry.Location,
				Company:     entry.Company,
				CompanyName: name,
			})
		}
		return chain, nil
	})
}

// History pages through committed transactions, oldest first.
func (s *SupplyChainService) History(ctx context.Context, params ListParams) (Page[domain.HistorianRecord], error) {
	records, err := view(ctx, s.ledger, func(ctx context.Context, set *registry.Set) ([]domain.HistorianRecord, error) {
		return set.Historian().GetAll(ctx)
	})
	if err != nil {
		return Page[domain.HistorianRecord]{}, err
	}
	sort.SliceStable(records, func(i, j int) bool {
		return records[i].Timestamp.Before(records[j].Timestamp)
	})
	return paginate(records, params), nil
}

// Replay submits every entry of a transaction stream in order. Rejected entries are
// reported and do not stop the replay; read errors and cancellation do.
func (s *SupplyChainService) Replay(ctx context.Context, r io.Reader, limiter *rate.Limiter) (ReplayReport, error) {
	var report ReplayReport
	stream := wire.NewStreamReader(r)
	for {
		entry, err := stream.Next()
		if errors.Is(err, io.EOF) {
			return report, nil
		}
		if err != nil {
			return report, err
		}
		if limiter != nil {
			if err := limiter.Wait(ctx); err != nil {
				return report, err
			}
		}

		receipt, err := s.ledger.Submit(ctx, entry.Credential, entry.Payload)
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return report, ctxErr
			}
			report.Failures = append(report.Failures, ReplayFailure{Line: stream.Line(), Credential: entry.Credential, Err: err})
			s.logger.Warn("replay entry rejected", "line", stream.Line(), "credential", entry.Credential.String(), "error", err)
			continue
		}
		report.Committed++
		s.logger.Debug("replay entry committed", "line", stream.Line(), "transaction_id", receipt.TransactionID)
	}
}

func view[T any](ctx context.Context, l Ledger, fn func(ctx context.Context, set *registry.Set) (T, error)) (T, error) {
	var out T
	err := l.View(ctx, func(ctx context.Context, set *registry.Set) error {
		var err error
		out, err = fn(ctx, set)
		return err
	})
	return out, err
}

func filter[T any](items []T, keep func(T) bool) []T {
	out := items[:0:0]
	for _, item := range items {
		if keep(item) {
			out = append(out, item)
		}
	}
	return out
}

func paginate[T any](items []T, params ListParams) Page[T] {
	page, pageSize := normalizePagination(params.Page, params.PageSize)
	total := len(items)
	start := (page - 1) * pageSize
	if start > total {
		start = total
	}
	end := start + pageSize
	if end > total {
		end = total
	}
	return Page[T]{
		Items:      items[start:end],
		Pagination: buildPaginationMeta(page, pageSize, int64(total)),
	}
}

// maxPage keeps (page-1)*pageSize well inside int range.
const maxPage = 1 << 20

func normalizePagination(page, pageSize int) (int, int) {
	if page <= 0 {
		page = 1
	}
	if page > maxPage {
		page = maxPage
	}
	if pageSize <= 0 {
		pageSize = 50
	}
	if pageSize > 200 {
		pageSize = 200
	}
	return page, pageSize
}

func buildPaginationMeta(page, pageSize int, total int64) PaginationMeta {
	totalPages := 0
	if pageSize > 0 {
		totalPages = int(math.Ceil(float64(total) / float64(pageSize)))
	}
	return PaginationMeta{
		Page:       page,
		PageSize:   pageSize,
		TotalItems: total,
		TotalPages: totalPages,
	}
}
