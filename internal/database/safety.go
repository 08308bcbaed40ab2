package database

import (
	"context"

	"dex-agent-bot/internal/market"
)

// SafetyAdapter exposes stored token-safety snapshots in the shape the
// signal builder consumes. A missing record yields a nil report, which
// scoring treats as unknown.
type SafetyAdapter struct {
	store Store
}

// NewSafetyAdapter wraps a store
func NewSafetyAdapter(store Store) *SafetyAdapter {
	return &SafetyAdapter{store: store}
}

// Report looks up the persisted safety snapshot for a token
func (a *SafetyAdapter) Report(ctx context.Context, chain market.Chain, address string) (*market.SafetyReport, error) {
	rec, err := a.store.TokenSafetyReport(ctx, string(chain), address)
	if err != nil {
		return nil, err
	}
	if rec == nil {
		return nil, nil
	}
	return &market.SafetyReport{
		SafetyScore:       rec.SafetyScore,
		HolderCount:       rec.HolderCount,
		TopHolderPercent:  rec.TopHolderPercent,
		DevHoldingPercent: rec.DevHoldingPercent,
	}, nil
}
