// Package repository stores ledger documents in a graph database and projects the custody
// relationships between them as edges.
package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/graph"
	"github.com/vanshika/supplytrace/internal/registry"
)

// Relationship types written by the custody projection.
const (
	RelOwnedBy    = "OWNED_BY"
	RelIssuedBy   = "ISSUED_BY"
	RelForOrder   = "FOR_ORDER"
	RelOrderedBy  = "ORDERED_BY"
	RelSuppliedBy = "SUPPLIED_BY"
	RelIncludes   = "INCLUDES"
	RelHandledBy  = "HANDLED_BY"
)

var relForField = map[string]string{
	"owner":         RelOwnedBy,
	"issuer":        RelIssuedBy,
	"purchaseOrder": RelForOrder,
	"orderer":       RelOrderedBy,
	"vendor":        RelSuppliedBy,
	"itemList":      RelIncludes,
}

// Store is a registry.Store over a graph client. Every document is an :Asset node keyed
// by kind and assetId holding its wire JSON.
type Store struct {
	client graph.Client
	nowFn  func() time.Time
}

// New returns a Store backed by client.
func New(client graph.Client) *Store {
	return &Store{client: client, nowFn: time.Now}
}

// EnsureSchema creates the uniqueness constraint documents rely on.
func (s *Store) EnsureSchema(ctx context.Context) error {
	if _, err := s.client.ExecuteWrite(ctx, assetConstraintCypher, nil); err != nil {
		return fmt.Errorf("ensure asset constraint: %w", err)
	}
	return nil
}

func (s *Store) Begin(ctx context.Context) (registry.Tx, error) {
	tx, err := s.client.BeginWrite(ctx)
	if err != nil {
		return nil, err
	}
	return &Tx{tx: tx, nowFn: s.nowFn}, nil
}

func (s *Store) Ping(ctx context.Context) error {
	return s.client.VerifyConnectivity(ctx)
}

func (s *Store) Close(ctx context.Context) error {
	return s.client.Close(ctx)
}

// Tx runs document operations inside one graph transaction.
type Tx struct {
	tx    graph.Tx
	nowFn func() time.Time
}

func (t *Tx) Insert(ctx context.Context, kind, id string, body []byte) error {
	res, err := t.tx.Run(ctx, insertAssetCypher, t.docParams(kind, id, body))
	if err != nil {
		return fmt.Errorf("insert %s %s: %w", kind, id, err)
	}
	if len(res.Records) == 0 {
		return &domain.DuplicateAssetError{Kind: kind, ID: id}
	}
	return t.project(ctx, kind, id, body)
}

func (t *Tx) Replace(ctx context.Context, kind, id string, body []byte) error {
	res, err := t.tx.Run(ctx, replaceAssetCypher, t.docParams(kind, id, body))
	if err != nil {
		return fmt.Errorf("update %s %s: %w", kind, id, err)
	}
	if len(res.Records) == 0 {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return t.project(ctx, kind, id, body)
}

func (t *Tx) Fetch(ctx context.Context, kind, id string) ([]byte, error) {
	res, err := t.tx.Run(ctx, fetchAssetCypher, keyParams(kind, id))
	if err != nil {
		return nil, fmt.Errorf("get %s %s: %w", kind, id, err)
	}
	if len(res.Records) == 0 {
		return nil, &domain.NotFoundError{Kind: kind, ID: id}
	}
	return []byte(toString(res.Records[0]["body"])), nil
}

func (t *Tx) Remove(ctx context.Context, kind, id string) error {
	res, err := t.tx.Run(ctx, removeAssetCypher, keyParams(kind, id))
	if err != nil {
		return fmt.Errorf("delete %s %s: %w", kind, id, err)
	}
	if len(res.Records) == 0 {
		return &domain.NotFoundError{Kind: kind, ID: id}
	}
	return nil
}

func (t *Tx) Exists(ctx context.Context, kind, id string) (bool, error) {
	res, err := t.tx.Run(ctx, existsAssetCypher, keyParams(kind, id))
	if err != nil {
		return false, fmt.Errorf("check %s %s: %w", kind, id, err)
	}
	if len(res.Records) == 0 {
		return false, nil
	}
	return toInt64(res.Records[0]["found"]) > 0, nil
}

func (t *Tx) List(ctx context.Context, kind string) ([][]byte, error) {
	res, err := t.tx.Run(ctx, listAssetsCypher, map[string]any{"kind": kind})
	if err != nil {
		return nil, fmt.Errorf("list %s: %w", kind, err)
	}
	return bodies(res), nil
}

// OwnedBy follows OWNED_BY edges back from a trader to the commodities it holds.
func (t *Tx) OwnedBy(ctx context.Context, owner domain.Ref) ([][]byte, error) {
	res, err := t.tx.Run(ctx, ownedByCypher, map[string]any{
		"commodityKind": domain.KindCommodity,
		"traderKind":    domain.KindTrader,
		"traderId":      owner.ID,
	})
	if err != nil {
		return nil, fmt.Errorf("holdings of %s: %w", owner, err)
	}
	return bodies(res), nil
}

func (t *Tx) Commit(ctx context.Context) error {
	return mapTxErr(t.tx.Commit(ctx))
}

func (t *Tx) Rollback(ctx context.Context) error {
	return mapTxErr(t.tx.Rollback(ctx))
}

// project rewrites the outgoing custody edges of a commodity or purchase order.
func (t *Tx) project(ctx context.Context, kind, id string, body []byte) error {
	links, handlers, err := projection(kind, body)
	if err != nil {
		return fmt.Errorf("project %s %s: %w", kind, id, err)
	}
	if links == nil && handlers == nil {
		return nil
	}
	params := keyParams(kind, id)
	params["links"] = links
	params["handlers"] = handlers
	if _, err := t.tx.Run(ctx, projectEdgesCypher, params); err != nil {
		return fmt.Errorf("project %s %s: %w", kind, id, err)
	}
	return nil
}

func projection(kind string, body []byte) (links, handlers []map[string]any, err error) {
	var referrer domain.Referrer
	switch kind {
	case domain.KindCommodity:
		var c domain.Commodity
		if err := json.Unmarshal(body, &c); err != nil {
			return nil, nil, err
		}
		referrer = c
		handlers = make([]map[string]any, 0, len(c.Trace))
		for i, entry := range c.Trace {
			handlers = append(handlers, map[string]any{
				"id":        entry.Company.ID,
				"seq":       int64(i),
				"timestamp": formatTime(entry.Timestamp),
				"city":      entry.Location.City,
			})
		}
	case domain.KindPurchaseOrder:
		var p domain.PurchaseOrder
		if err := json.Unmarshal(body, &p); err != nil {
			return nil, nil, err
		}
		referrer = p
		handlers = []map[string]any{}
	default:
		return nil, nil, nil
	}

	links = []map[string]any{}
	for _, ref := range referrer.References() {
		rel, ok := relForField[ref.Field]
		if !ok {
			continue
		}
		links = append(links, map[string]any{
			"rel":  rel,
			"kind": ref.Ref.Kind(),
			"id":   ref.Ref.ID,
		})
	}
	return links, handlers, nil
}

func (t *Tx) docParams(kind, id string, body []byte) map[string]any {
	params := keyParams(kind, id)
	params["body"] = string(body)
	params["updatedAt"] = formatTime(t.nowFn())
	return params
}

func keyParams(kind, id string) map[string]any {
	return map[string]any{"kind": kind, "id": id}
}

func bodies(res graph.Result) [][]byte {
	out := make([][]byte, 0, len(res.Records))
	for _, record := range res.Records {
		out = append(out, []byte(toString(record["body"])))
	}
	return out
}

func mapTxErr(err error) error {
	if errors.Is(err, graph.ErrTxClosed) {
		return registry.ErrTxDone
	}
	return err
}

func formatTime(t time.Time) string {
	if t.IsZero() {
		return ""
	}
	return t.UTC().Format(time.RFC3339Nano)
}

func toString(val any) string {
	switch v := val.(type) {
	case string:
		return v
	case fmt.Stringer:
		return v.String()
	case []byte:
		return string(v)
	default:
		return ""
	}
}

func toInt64(val any) int64 {
	switch v := val.(type) {
	case int64:
		return v
	case int:
		return int64(v)
	case float64:
		return int64(v)
	default:
		return 0
	}
}
