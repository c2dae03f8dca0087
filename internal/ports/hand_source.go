package ports

import (
	"context"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

// HandSource obtiene los logs de mano de una mesa del servicio de poker.
// Las implementaciones nunca escalan fallos de red: un fallo equivale a "la mano no existe todavía".
type HandSource interface {
	// FindLastHand devuelve el número de la última mano existente (0 si no hay ninguna).
	// Solo devuelve error si el contexto se cancela.
	FindLastHand(ctx context.Context, tableID string) (int, error)

	// FetchHand devuelve las líneas de la mano n en el orden del servicio (newest-first).
	// ok es false si la mano no existe o no se pudo obtener.
	FetchHand(ctx context.Context, tableID string, n int) (lines []domain.LogLine, ok bool)

	// FetchHandRange devuelve las manos [start, end] que se pudieron obtener, ordenadas.
	FetchHandRange(ctx context.Context, tableID string, start, end int) []domain.HandLog
}
