package domain

import "time"

// SyncOutcome resume qué hizo el worker con un torneo en un tick.
type SyncOutcome string

const (
	SyncSkipped  SyncOutcome = "skipped"  // sin manos nuevas
	SyncSynced   SyncOutcome = "synced"   // progreso y cuotas actualizados, sigue en juego
	SyncPaused   SyncOutcome = "paused"   // anti-sniping
	SyncProposed SyncOutcome = "proposed" // al menos un mercado con ganador propuesto
	SyncFailed   SyncOutcome = "failed"
	SyncLocked   SyncOutcome = "locked" // otra instancia tiene el lease
)

// SyncResult es el resultado de sincronizar un torneo.
type SyncResult struct {
	TournamentID string
	TableID      string
	Outcome      SyncOutcome
	MinSynced    int
	LatestHand   int
	Markets      int
	Verdict      *Verdict
	Proposed     []string // ids de mercados propuestos
	Unmatched    []string // ids de mercados sin outcome que coincida con el ganador
	Err          error
	Duration     time.Duration
}

// EventKind clasifica los eventos que se notifican al operador.
type EventKind string

const (
	EventPaused    EventKind = "paused"
	EventProposed  EventKind = "proposed"
	EventUnmatched EventKind = "unmatched_winner"
	EventFailed    EventKind = "sync_failed"
)

// Event es un aviso para el operador generado durante un tick.
type Event struct {
	Kind         EventKind
	TournamentID string
	TableID      string
	MarketIDs    []string
	Title        string
	Message      string
	At           time.Time
}
