package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// MarketStatus es el estado de vida de un mercado. Solo avanza OPEN → CLOSED → SETTLED,
// salvo el rechazo externo de una propuesta, que lo devuelve a OPEN.
type MarketStatus string

const (
	MarketOpen    MarketStatus = "OPEN"
	MarketClosed  MarketStatus = "CLOSED"
	MarketSettled MarketStatus = "SETTLED"
)

// ResolutionStatus indica en qué punto está la resolución propuesta.
type ResolutionStatus string

const (
	ResolutionNone     ResolutionStatus = "NONE"
	ResolutionProposed ResolutionStatus = "PROPOSED"
	ResolutionApproved ResolutionStatus = "APPROVED"
	ResolutionRejected ResolutionStatus = "REJECTED"
)

// TournamentStatus es el estado del torneo dueño de los mercados.
type TournamentStatus string

const (
	TournamentActive   TournamentStatus = "ACTIVE"
	TournamentFinished TournamentStatus = "FINISHED"
)

// Outcome es un resultado apostable de un mercado (normalmente, un jugador).
type Outcome struct {
	ID        string
	Label     string
	TotalBets decimal.Decimal
	BetCount  int
	Odds      decimal.Decimal
}

// BettingMarket es el subconjunto del mercado que el oráculo lee y escribe.
type BettingMarket struct {
	ID                 string
	TournamentID       string
	Title              string
	Status             MarketStatus
	ResolutionStatus   ResolutionStatus
	IsAutonomous       bool
	IsPaused           bool
	SuspensionReason   string
	LastSyncedHand     int
	PoolPreSeed        decimal.Decimal
	TotalPool          decimal.Decimal
	BookmakingFee      decimal.Decimal // fracción en [0, 1)
	AIProposedWinnerID string
	DecisionTrace      string
	Outcomes           []Outcome
	UpdatedAt          time.Time
}

// Outcome devuelve el outcome con el id dado.
func (m BettingMarket) Outcome(id string) (Outcome, bool) {
	for _, o := range m.Outcomes {
		if o.ID == id {
			return o, true
		}
	}
	return Outcome{}, false
}

// Syncable devuelve true si el oráculo puede avanzar este mercado.
func (m BettingMarket) Syncable() bool {
	return m.Status == MarketOpen && m.IsAutonomous
}

// TournamentGroup agrupa los mercados abiertos y autónomos de un torneo activo.
type TournamentGroup struct {
	TournamentID string
	TableID      string
	Status       TournamentStatus
	Markets      []BettingMarket
}

// MarketIDs devuelve los ids de todos los mercados del grupo.
func (g TournamentGroup) MarketIDs() []string {
	ids := make([]string, len(g.Markets))
	for i, m := range g.Markets {
		ids[i] = m.ID
	}
	return ids
}

// MinSynced devuelve el menor LastSyncedHand del grupo (0 si no hay mercados).
func (g TournamentGroup) MinSynced() int {
	if len(g.Markets) == 0 {
		return 0
	}
	lowest := g.Markets[0].LastSyncedHand
	for _, m := range g.Markets[1:] {
		if m.LastSyncedHand < lowest {
			lowest = m.LastSyncedHand
		}
	}
	return lowest
}

// Tournament es la fila de torneo que enlaza un torneo con su mesa.
type Tournament struct {
	ID      string
	TableID string
	Name    string
	Status  TournamentStatus
}
