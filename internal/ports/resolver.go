package ports

import (
	"context"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

// Resolver decide el estado de una mesa a partir de sus últimas manos.
// Nunca devuelve error ni hace panic: los fallos se traducen a un veredicto RUNNING.
type Resolver interface {
	Compile(ctx context.Context, tableID string, lastHand int) domain.Verdict
}

// OddsUpdater recalcula y persiste las cuotas de un mercado.
type OddsUpdater interface {
	PersistOdds(ctx context.Context, marketID string) ([]domain.OutcomeOdds, error)
}
