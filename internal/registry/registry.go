package registry

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/vanshika/supplytrace/internal/domain"
)

// Registry is the asset registry contract for one resource type.
type Registry[T domain.Resource] interface {
	Add(ctx context.Context, asset T) error
	Get(ctx context.Context, id string) (T, error)
	Update(ctx context.Context, asset T) error
	Delete(ctx context.Context, id string) error
	Exists(ctx context.Context, id string) (bool, error)
	GetAll(ctx context.Context) ([]T, error)
}

// Collection is the Registry implementation shared by every resource type.
type Collection[T domain.Resource] struct {
	docs Documents
	kind string
}

// NewCollection binds a registry of kind to docs.
func NewCollection[T domain.Resource](docs Documents, kind string) *Collection[T] {
	return &Collection[T]{docs: docs, kind: kind}
}

// Add stores a new asset; the id must not exist yet and its references must resolve.
func (c *Collection[T]) Add(ctx context.Context, asset T) error {
	id := asset.ResourceID()
	if id == "" {
		return &domain.ValidationError{Field: c.kind + " id", Reason: "is required"}
	}
	exists, err := c.docs.Exists(ctx, c.kind, id)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", c.kind, id, err)
	}
	if exists {
		return &domain.DuplicateAssetError{Kind: c.kind, ID: id}
	}
	if err := c.resolve(ctx, asset); err != nil {
		return err
	}
	body, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.kind, id, err)
	}
	return c.docs.Insert(ctx, c.kind, id, body)
}

// Get loads an asset by id.
func (c *Collection[T]) Get(ctx context.Context, id string) (T, error) {
	var asset T
	body, err := c.docs.Fetch(ctx, c.kind, id)
	if err != nil {
		return asset, err
	}
	if err := json.Unmarshal(body, &asset); err != nil {
		return asset, fmt.Errorf("decode %s %s: %w", c.kind, id, err)
	}
	return asset, nil
}

// Update replaces an existing asset; references must resolve.
func (c *Collection[T]) Update(ctx context.Context, asset T) error {
	id := asset.ResourceID()
	exists, err := c.docs.Exists(ctx, c.kind, id)
	if err != nil {
		return fmt.Errorf("check %s %s: %w", c.kind, id, err)
	}
	if !exists {
		return &domain.NotFoundError{Kind: c.kind, ID: id}
	}
	if err := c.resolve(ctx, asset); err != nil {
		return err
	}
	body, err := json.Marshal(asset)
	if err != nil {
		return fmt.Errorf("encode %s %s: %w", c.kind, id, err)
	}
	return c.docs.Replace(ctx, c.kind, id, body)
}

// Delete removes an asset by id.
func (c *Collection[T]) Delete(ctx context.Context, id string) error {
	return c.docs.Remove(ctx, c.kind, id)
}

// Exists reports whether id is present.
func (c *Collection[T]) Exists(ctx context.Context, id string) (bool, error) {
	return c.docs.Exists(ctx, c.kind, id)
}

// GetAll returns every asset ordered by id.
func (c *Collection[T]) GetAll(ctx context.Context) ([]T, error) {
	bodies, err := c.docs.List(ctx, c.kind)
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", c.kind, err)
	}
	assets := make([]T, 0, len(bodies))
	for _, body := range bodies {
		var asset T
		if err := json.Unmarshal(body, &asset); err != nil {
			return nil, fmt.Errorf("decode %s: %w", c.kind, err)
		}
		assets = append(assets, asset)
	}
	return assets, nil
}

func (c *Collection[T]) resolve(ctx context.Context, asset T) error {
	referrer, ok := any(asset).(domain.Referrer)
	if !ok {
		return nil
	}
	for _, ref := range referrer.References() {
		kind := ref.Ref.Kind()
		if kind == "" {
			return &domain.ReferenceError{Field: ref.Field, Ref: ref.Ref}
		}
		if kind == domain.KindTrader {
			if err := c.resolveTrader(ctx, ref); err != nil {
				return err
			}
			continue
		}
		found, err := c.docs.Exists(ctx, kind, ref.Ref.ID)
		if err != nil {
			return fmt.Errorf("resolve %s: %w", ref.Field, err)
		}
		if !found {
			return &domain.ReferenceError{Field: ref.Field, Ref: ref.Ref}
		}
	}
	return nil
}

// resolveTrader also requires the referenced role to be the stored trader's role.
func (c *Collection[T]) resolveTrader(ctx context.Context, ref domain.Reference) error {
	body, err := c.docs.Fetch(ctx, domain.KindTrader, ref.Ref.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return &domain.ReferenceError{Field: ref.Field, Ref: ref.Ref}
	}
	if err != nil {
		return fmt.Errorf("resolve %s: %w", ref.Field, err)
	}
	var trader domain.Trader
	if err := json.Unmarshal(body, &trader); err != nil {
		return fmt.Errorf("decode %s: %w", domain.KindTrader, err)
	}
	if trader.Ref() != ref.Ref {
		return &domain.ReferenceError{Field: ref.Field, Ref: ref.Ref}
	}
	return nil
}

// OwnerIndex is implemented by documents that can look up commodities by owner directly.
type OwnerIndex interface {
	OwnedBy(ctx context.Context, owner domain.Ref) ([][]byte, error)
}

// Set groups the registries bound to one transaction.
type Set struct {
	docs           Documents
	traders        *Collection[domain.Trader]
	commodities    *Collection[domain.Commodity]
	purchaseOrders *Collection[domain.PurchaseOrder]
	historian      *Collection[domain.HistorianRecord]
}

// Bind returns the registries backed by docs.
func Bind(docs Documents) *Set {
	return &Set{
		docs:           docs,
		traders:        NewCollection[domain.Trader](docs, domain.KindTrader),
		commodities:    NewCollection[domain.Commodity](docs, domain.KindCommodity),
		purchaseOrders: NewCollection[domain.PurchaseOrder](docs, domain.KindPurchaseOrder),
		historian:      NewCollection[domain.HistorianRecord](docs, domain.KindHistorian),
	}
}

func (s *Set) Traders() Registry[domain.Trader]               { return s.traders }
func (s *Set) Commodities() Registry[domain.Commodity]        { return s.commodities }
func (s *Set) PurchaseOrders() Registry[domain.PurchaseOrder] { return s.purchaseOrders }
func (s *Set) Historian() Registry[domain.HistorianRecord]    { return s.historian }

// CommoditiesOwnedBy returns the commodities currently owned by owner, ordered by id.
func (s *Set) CommoditiesOwnedBy(ctx context.Context, owner domain.Ref) ([]domain.Commodity, error) {
	index, ok := s.docs.(OwnerIndex)
	if !ok {
		all, err := s.commodities.GetAll(ctx)
		if err != nil {
			return nil, err
		}
		var owned []domain.Commodity
		for _, c := range all {
			if c.Owner == owner {
				owned = append(owned, c)
			}
		}
		return owned, nil
	}

	bodies, err := index.OwnedBy(ctx, owner)
	if err != nil {
		return nil, fmt.Errorf("commodities owned by %s: %w", owner, err)
	}
	owned := make([]domain.Commodity, 0, len(bodies))
	for _, body := range bodies {
		var c domain.Commodity
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, fmt.Errorf("decode %s: %w", domain.KindCommodity, err)
		}
		owned = append(owned, c)
	}
	return owned, nil
}
