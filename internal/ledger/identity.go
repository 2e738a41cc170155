package ledger

import (
	"context"
	"errors"
	"fmt"

	"github.com/vanshika/supplytrace/internal/domain"
	"github.com/vanshika/supplytrace/internal/registry"
)

// ResolveParticipant maps a submitting credential onto the trader it names. The credential
// must reference an existing trader whose stored role matches the reference class.
func ResolveParticipant(ctx context.Context, traders registry.Registry[domain.Trader], credential domain.Ref) (domain.Ref, error) {
	if credential.IsZero() || credential.Kind() != domain.KindTrader {
		return domain.Ref{}, &domain.ReferenceError{Field: "participant", Ref: credential}
	}
	trader, err := traders.Get(ctx, credential.ID)
	if errors.Is(err, domain.ErrNotFound) {
		return domain.Ref{}, &domain.ReferenceError{Field: "participant", Ref: credential}
	}
	if err != nil {
		return domain.Ref{}, fmt.Errorf("resolve participant: %w", err)
	}
	if trader.Ref() != credential {
		return domain.Ref{}, &domain.ReferenceError{Field: "participant", Ref: credential}
	}
	return trader.Ref(), nil
}
