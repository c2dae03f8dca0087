package domain

import (
	"sort"
	"time"

	"github.com/paulhankin/poker"
)

// LogLine es una línea cruda del log de una mesa, tal como la devuelve el servicio.
type LogLine struct {
	At  time.Time
	Msg string
}

// HandLog agrupa las líneas crudas de una mano. Lines conserva el orden del servicio.
type HandLog struct {
	Number int
	Lines  []LogLine
}

// ActionKind es el tipo de acción registrada en una mano.
type ActionKind string

const (
	ActionFold  ActionKind = "fold"
	ActionCheck ActionKind = "check"
	ActionCall  ActionKind = "call"
	ActionRaise ActionKind = "raise"
	ActionBet   ActionKind = "bet"
	ActionAnte  ActionKind = "ante"
	ActionBlind ActionKind = "blind"
)

// Action es una acción de un jugador. Amount es 0 para fold/check.
type Action struct {
	Player string
	Kind   ActionKind
	Amount int64
	AllIn  bool
	At     time.Time
}

// Community contiene las cartas comunitarias reveladas hasta el final de la mano.
type Community struct {
	Flop  []poker.Card
	Turn  *poker.Card
	River *poker.Card
}

// Board devuelve las cartas comunitarias en orden de aparición.
func (c Community) Board() []poker.Card {
	board := make([]poker.Card, 0, 5)
	board = append(board, c.Flop...)
	if c.Turn != nil {
		board = append(board, *c.Turn)
	}
	if c.River != nil {
		board = append(board, *c.River)
	}
	return board
}

// Winner es el jugador que se llevó el bote principal.
type Winner struct {
	Player          string
	Amount          int64
	HandDescription string
	Cards           []poker.Card
}

// HandRecord es el estado reconstruido de una mano a partir de su log.
// Se construye una sola vez por el parser y no se modifica después.
type HandRecord struct {
	HandNumber int
	HandID     string
	GameType   string
	Dealer     string

	// Players: nombre → stack al inicio de la mano (no negativo).
	Players map[string]int64
	// PlayerIDs: nombre → id que imprime el servicio tras "@".
	PlayerIDs map[string]string

	Actions   []Action // cronológicas
	Community Community
	Shown     map[string][]poker.Card
	Departed  []string
	Winner    *Winner
}

// ActivePlayers devuelve los jugadores con stack > 0, ordenados por nombre.
func (h *HandRecord) ActivePlayers() []string {
	if h == nil {
		return nil
	}
	var active []string
	for name, stack := range h.Players {
		if stack > 0 {
			active = append(active, name)
		}
	}
	sort.Strings(active)
	return active
}

// Stack devuelve el stack de un jugador y si estaba sentado en la mano.
func (h *HandRecord) Stack(player string) (int64, bool) {
	if h == nil {
		return 0, false
	}
	s, ok := h.Players[player]
	return s, ok
}

// PlayerNames devuelve todos los jugadores listados en la mano, ordenados.
func (h *HandRecord) PlayerNames() []string {
	if h == nil {
		return nil
	}
	names := make([]string, 0, len(h.Players))
	for name := range h.Players {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// GameSummary es el resultado de parsear un export CSV completo de una mesa.
type GameSummary struct {
	Hands       []HandRecord // ascendente por HandNumber
	Players     []string
	FirstHand   int
	LastHand    int
	Reversed    bool // el archivo venía newest-first
	SkippedRows int
}
