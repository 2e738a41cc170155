// Package ledger executes transactions against the registries one at a time, each inside a
// single store transaction that either commits entirely or leaves no trace.
package ledger

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"sync"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/processor"
	"github.com/vanshika/supplytrace/internal/registry"
	"github.com/vanshika/supplytrace/internal/wire"
)

const instrumentationName = "github.com/vanshika/supplytrace/internal/ledger"

// Receipt describes a committed transaction.
type Receipt struct {
	TransactionID string                `json:"transactionId"`
	Class         string                `json:"class"`
	Timestamp     time.Time             `json:"timestamp"`
	Participant   domain.Ref            `json:"participant"`
	Order         *domain.PurchaseOrder `json:"order,omitempty"`
	Commodity     *domain.Commodity     `json:"commodity,omitempty"`
}

// Runtime is the single serialization point for ledger writes.
type Runtime struct {
	store   registry.Store
	logger  *slog.Logger
	metrics *Metrics
	tracer  trace.Tracer
	nowFn   func() time.Time
	newID   func() string

	mu sync.Mutex
	// last is the timestamp of the most recent commit; later transactions never go below it.
	last time.Time
}

// Option customises a Runtime.
type Option func(*Runtime)

// WithClock overrides the transaction clock.
func WithClock(nowFn func() time.Time) Option {
	return func(r *Runtime) {
		if nowFn != nil {
			r.nowFn = nowFn
		}
	}
}

// WithIDGenerator overrides how transaction ids are minted when the payload carries none.
func WithIDGenerator(fn func() string) Option {
	return func(r *Runtime) {
		if fn != nil {
			r.newID = fn
		}
	}
}

func WithLogger(logger *slog.Logger) Option {
	return func(r *Runtime) {
		if logger != nil {
			r.logger = logger
		}
	}
}

func WithMetrics(m *Metrics) Option {
	return func(r *Runtime) { r.metrics = m }
}

func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(r *Runtime) {
		if tp != nil {
			r.tracer = tp.Tracer(instrumentationName)
		}
	}
}

// New returns a runtime writing to store.
func New(store registry.Store, opts ...Option) *Runtime {
	r := &Runtime{
		store:  store,
		logger: slog.New(slog.NewTextHandler(io.Discard, nil)),
		tracer: otel.Tracer(instrumentationName),
		nowFn:  time.Now,
		newID:  uuid.NewString,
	}
	for _, opt := range opts {
		opt(r)
	}
	r.logger = r.logger.With("component", "ledger")
	return r
}

// Submit decodes a wire payload and executes it on behalf of credential.
func (r *Runtime) Submit(ctx context.Context, credential domain.Ref, payload []byte) (Receipt, error) {
	p, err := wire.DecodePayload(payload)
	if err != nil {
		r.metrics.observe("unknown", err, 0)
		return Receipt{}, err
	}
	return r.Execute(ctx, credential, p)
}

// Execute runs a decoded payload as one atomic transaction.
func (r *Runtime) Execute(ctx context.Context, credential domain.Ref, p wire.Payload) (receipt Receipt, err error) {
	started := time.Now()
	ctx, span := r.tracer.Start(ctx, "ledger."+p.Class(), trace.WithAttributes(
		attribute.String("ledger.class", p.Class()),
		attribute.String("ledger.credential", credential.String()),
	))
	defer span.End()

	r.mu.Lock()
	defer r.mu.Unlock()

	defer func() {
		r.metrics.observe(p.Class(), err, time.Since(started))
		if err != nil {
			span.RecordError(err)
			span.SetStatus(codes.Error, err.Error())
			r.logger.Warn("transaction aborted", "class", p.Class(), "credential", credential.String(), "error", err)
			return
		}
		span.SetAttributes(attribute.String("ledger.transaction_id", receipt.TransactionID))
		r.logger.Debug("transaction committed", "class", p.Class(), "transaction_id", receipt.TransactionID, "participant", receipt.Participant.String())
	}()

	err = r.inTx(ctx, func(ctx context.Context, set *registry.Set) error {
		participant, err := ResolveParticipant(ctx, set.Traders(), credential)
		if err != nil {
			return err
		}

		meta := p.Meta()
		tc := processor.TxContext{
			TransactionID:  meta.TransactionID,
			Timestamp:      r.stamp(),
			Participant:    participant,
			PurchaseOrders: set.PurchaseOrders(),
			Commodities:    set.Commodities(),
		}
		if tc.TransactionID == "" {
			tc.TransactionID = r.newID()
		}

		receipt = Receipt{
			TransactionID: tc.TransactionID,
			Class:         p.Class(),
			Timestamp:     tc.Timestamp,
			Participant:   participant,
		}
		if err := r.dispatch(ctx, set, tc, p, &receipt); err != nil {
			return err
		}
		return r.record(ctx, set, tc, p)
	})
	if err != nil {
		return Receipt{}, err
	}
	r.last = receipt.Timestamp
	return receipt, nil
}

func (r *Runtime) dispatch(ctx context.Context, set *registry.Set, tc processor.TxContext, p wire.Payload, receipt *Receipt) error {
	switch payload := p.(type) {
	case wire.InitiatePO:
		order, err := processor.InitiatePurchaseOrder(ctx, tc, payload.Command())
		if err != nil {
			return err
		}
		receipt.Order = &order
		return nil
	case wire.TransferCommodity:
		if payload.Commodity.IsZero() {
			return &domain.ValidationError{Field: "commodity", Reason: "is required"}
		}
		if payload.Commodity.Kind() != domain.KindCommodity {
			return &domain.ValidationError{Field: "commodity", Reason: fmt.Sprintf("%s is not a commodity", payload.Commodity)}
		}
		current, err := set.Commodities().Get(ctx, payload.Commodity.ID)
		if err != nil {
			return err
		}
		commodity, err := processor.TransferCommodity(ctx, tc, payload.Command(current))
		if err != nil {
			return err
		}
		receipt.Commodity = &commodity
		return nil
	default:
		return &domain.ValidationError{Field: "$class", Reason: fmt.Sprintf("unsupported transaction %s", p.Class())}
	}
}

func (r *Runtime) record(ctx context.Context, set *registry.Set, tc processor.TxContext, p wire.Payload) error {
	body, err := wire.EncodePayload(p)
	if err != nil {
		return err
	}
	return set.Historian().Add(ctx, domain.HistorianRecord{
		TransactionID:   tc.TransactionID,
		TransactionType: domain.QualifiedClass(p.Class()),
		Participant:     tc.Participant,
		Timestamp:       tc.Timestamp,
		Payload:         body,
	})
}

// stamp returns the submission time from the ledger clock, raised to the last committed
// timestamp if it would run backwards. A payload timestamp is kept in the historian
// payload only.
func (r *Runtime) stamp() time.Time {
	ts := r.nowFn().UTC()
	if ts.Before(r.last) {
		ts = r.last
	}
	return ts
}

// Mutate runs fn as a serialized system write, outside any participant identity.
// Seeding and administrative deletes go through here.
func (r *Runtime) Mutate(ctx context.Context, fn func(ctx context.Context, set *registry.Set) error) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.inTx(ctx, fn)
}

// View runs fn against a transaction that is always rolled back.
func (r *Runtime) View(ctx context.Context, fn func(ctx context.Context, set *registry.Set) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin read: %w", err)
	}
	defer func() {
		if rbErr := tx.Rollback(ctx); rbErr != nil && !errors.Is(rbErr, registry.ErrTxDone) {
			r.logger.Warn("read rollback failed", "error", rbErr)
		}
	}()
	return fn(ctx, registry.Bind(tx))
}

func (r *Runtime) inTx(ctx context.Context, fn func(ctx context.Context, set *registry.Set) error) error {
	tx, err := r.store.Begin(ctx)
	if err != nil {
		return fmt.Errorf("begin transaction: %w", err)
	}
	if err := fn(ctx, registry.Bind(tx)); err != nil {
		if rbErr := tx.Rollback(ctx); rbErr != nil {
			return errors.Join(err, fmt.Errorf("rollback: %w", rbErr))
		}
		return err
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("commit transaction: %w", err)
	}
	return nil
}
