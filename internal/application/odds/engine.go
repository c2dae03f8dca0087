package odds

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
	"github.com/shopspring/decimal"
)

// Engine recalcula las cuotas parimutuel de un mercado y las persiste.
type Engine struct {
	store ports.MarketStore
}

// NewEngine crea un Engine sobre el store dado.
func NewEngine(store ports.MarketStore) *Engine {
	return &Engine{store: store}
}

// ComputeOdds calcula las cuotas sin tocar el store.
func (e *Engine) ComputeOdds(m domain.BettingMarket) []domain.OutcomeOdds {
	return domain.ComputeOdds(m)
}

// PersistOdds lee el mercado, calcula las cuotas y las escribe como un único lote.
// Si la escritura falla no queda ninguna cuota a medio actualizar.
func (e *Engine) PersistOdds(ctx context.Context, marketID string) ([]domain.OutcomeOdds, error) {
	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return nil, fmt.Errorf("odds.PersistOdds: get market %s: %w", marketID, err)
	}

	odds := domain.ComputeOdds(m)
	if len(odds) == 0 {
		return odds, nil
	}
	if err := e.store.WriteOutcomeOdds(ctx, marketID, odds); err != nil {
		return nil, fmt.Errorf("odds.PersistOdds: write odds %s: %w", marketID, err)
	}

	slog.Debug("odds persisted",
		"market", marketID,
		"outcomes", len(odds),
		"pool", m.TotalPool.StringFixed(2),
	)
	return odds, nil
}

// LockOdds devuelve la cuota vigente de un outcome para fijarla en una apuesta.
// Error domain.ErrNotFound si el mercado o el outcome no existen.
func (e *Engine) LockOdds(ctx context.Context, marketID, outcomeID string) (decimal.Decimal, error) {
	m, err := e.store.GetMarket(ctx, marketID)
	if err != nil {
		return decimal.Zero, fmt.Errorf("odds.LockOdds: get market %s: %w", marketID, err)
	}
	for _, o := range domain.ComputeOdds(m) {
		if o.OutcomeID == outcomeID {
			return o.Odds, nil
		}
	}
	return decimal.Zero, fmt.Errorf("odds.LockOdds: outcome %s in market %s: %w", outcomeID, marketID, domain.ErrNotFound)
}
