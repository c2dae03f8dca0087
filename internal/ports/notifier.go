package ports

import (
	"context"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

// Notifier presenta al operador lo ocurrido en cada tick.
type Notifier interface {
	// Notify recibe el resumen de un tick completo, uno por torneo procesado.
	Notify(ctx context.Context, results []domain.SyncResult) error

	// Alert recibe un evento puntual (pausa, propuesta, ganador sin outcome).
	Alert(ctx context.Context, event domain.Event) error
}
