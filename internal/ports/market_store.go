package ports

import (
	"context"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

// MarketStore es el repositorio de mercados que usa el worker de sincronización.
type MarketStore interface {
	// ListOpenAutonomousMarketsByTournament devuelve los torneos activos con al menos
	// un mercado OPEN y autónomo, cada uno con esos mercados y sus outcomes.
	ListOpenAutonomousMarketsByTournament(ctx context.Context) ([]domain.TournamentGroup, error)

	// GetMarket devuelve un mercado con sus outcomes. Error domain.ErrNotFound si no existe.
	GetMarket(ctx context.Context, marketID string) (domain.BettingMarket, error)

	// UpdateSyncProgress avanza LastSyncedHand de los mercados dados.
	// Nunca lo retrocede: el valor persistido es max(actual, hand).
	UpdateSyncProgress(ctx context.Context, marketIDs []string, hand int) error

	// WriteOutcomeOdds escribe las cuotas de todos los outcomes en una sola transacción.
	WriteOutcomeOdds(ctx context.Context, marketID string, odds []domain.OutcomeOdds) error

	// PauseMarkets marca los mercados como pausados con el motivo dado.
	PauseMarkets(ctx context.Context, marketIDs []string, reason string) error

	// ProposeWinner cierra el mercado y deja la resolución en PROPOSED.
	ProposeWinner(ctx context.Context, marketID, outcomeID, decisionTrace string) error
}

// SettlementStore agrupa las acciones de operador sobre un mercado.
// El worker nunca las llama; las expone el CLI.
type SettlementStore interface {
	// ApproveProposal liquida un mercado propuesto (CLOSED+PROPOSED → SETTLED+APPROVED).
	ApproveProposal(ctx context.Context, marketID string) error

	// RejectProposal devuelve un mercado propuesto a OPEN con resolución REJECTED.
	RejectProposal(ctx context.Context, marketID string) error

	// ResumeMarket quita la pausa de un mercado OPEN.
	ResumeMarket(ctx context.Context, marketID string) error
}

// MarketSeeder carga torneos y mercados desde fuera del oráculo (entornos locales, tests).
type MarketSeeder interface {
	UpsertTournament(ctx context.Context, t domain.Tournament) error
	// UpsertMarket no modifica el progreso ni la resolución de un mercado existente.
	UpsertMarket(ctx context.Context, m domain.BettingMarket) error
}
