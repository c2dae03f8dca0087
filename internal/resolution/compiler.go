package resolution

// compiler.go: decide si una mesa sigue en juego, debe pausarse o ya tiene ganador.
//
// Se comparan las dos últimas manos (N y N-1) con una regla de eliminación
// tolerante a rebuys: un jugador a 0 en N solo cuenta como eliminado si también
// estaba a 0 (o no estaba sentado) en N-1. Quien cae a 0 en N viniendo de un
// stack positivo puede recomprar antes de la siguiente mano, y mientras eso
// pueda pasar no se propone ganador.
//
// El all-in en la mano N tiene prioridad sobre todo lo demás: se pausa sin
// evaluar eliminaciones.

import (
	"context"
	"fmt"
	"log/slog"
	"slices"
	"strings"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/handlog"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// Reglas que aparecen en el decision trace.
const (
	RuleNotEnoughHands = "not_enough_hands"
	RuleHandMissing    = "hand_missing"
	RuleAllInPause     = "all_in_pause"
	RuleSoleSurvivor   = "sole_survivor"
	RuleMultipleActive = "multiple_active"
	RulePendingRebuy   = "pending_rebuy"
	RuleNoActive       = "no_active_players"
	RuleInternalError  = "internal_error"
)

const (
	confidenceNone    = 0.0
	confidenceRunning = 0.5
	confidenceCertain = 1.0

	allInReasoning       = "High Volatility Event: All-In Detected."
	internalErrReasoning = "Internal Error"
)

// Compiler implementa ports.Resolver sobre una ports.HandSource.
type Compiler struct {
	source ports.HandSource
}

// NewCompiler crea un Compiler que lee las manos de source.
func NewCompiler(source ports.HandSource) *Compiler {
	return &Compiler{source: source}
}

// Compile evalúa la mano lastHand contra la anterior. Nunca hace panic: cualquier
// fallo interno se convierte en un veredicto RUNNING con confianza 0.
func (c *Compiler) Compile(ctx context.Context, tableID string, lastHand int) (v domain.Verdict) {
	defer func() {
		if r := recover(); r != nil {
			slog.Error("resolution compiler panicked", "table", tableID, "hand", lastHand, "panic", r)
			t := newTrace(lastHand)
			t.add("rule", RuleInternalError)
			t.add("error", fmt.Sprint(r))
			v = domain.RunningVerdict(lastHand, confidenceNone, internalErrReasoning, t.String())
		}
	}()

	v = c.compile(ctx, tableID, lastHand)
	slog.Debug("verdict compiled",
		"table", tableID,
		"hand", lastHand,
		"status", v.Status,
		"paused", v.IsPaused,
		"winner", v.Winner,
		"confidence", v.Confidence,
	)
	return v
}

func (c *Compiler) compile(ctx context.Context, tableID string, n int) domain.Verdict {
	t := newTrace(n)

	if n < 2 {
		t.add("rule", RuleNotEnoughHands)
		return domain.RunningVerdict(n, confidenceNone, "not enough hands to assess elimination", t.String())
	}

	currentLines, ok := c.source.FetchHand(ctx, tableID, n)
	if !ok {
		return missing(t, n, fmt.Sprintf("hand %d not available", n))
	}

	if handlog.HasAllIn(currentLines) {
		t.add("rule", RuleAllInPause)
		return domain.Verdict{
			Status:        domain.GameRunning,
			IsPaused:      true,
			Confidence:    confidenceCertain,
			Reasoning:     allInReasoning,
			DecisionTrace: t.String(),
			Hand:          n,
		}
	}

	current := handlog.ParseLog(domain.HandLog{Number: n, Lines: currentLines})
	if current == nil || len(current.Players) == 0 {
		return missing(t, n, fmt.Sprintf("hand %d has no player stacks", n))
	}

	previousLines, ok := c.source.FetchHand(ctx, tableID, n-1)
	if !ok {
		return missing(t, n, fmt.Sprintf("hand %d not available", n-1))
	}
	previous := handlog.ParseLog(domain.HandLog{Number: n - 1, Lines: previousLines})
	if previous == nil || len(previous.Players) == 0 {
		return missing(t, n, fmt.Sprintf("hand %d has no player stacks", n-1))
	}

	return Assess(current, previous)
}

// Assess aplica la regla de eliminación a dos manos ya parseadas.
func Assess(current, previous *domain.HandRecord) domain.Verdict {
	n := current.HandNumber
	t := newTrace(n)
	t.add("prev_hand", fmt.Sprint(previous.HandNumber))

	currentActive := current.ActivePlayers()
	eliminated := ConfirmedEliminations(current, previous)

	var trueActive []string
	for _, p := range currentActive {
		if !slices.Contains(eliminated, p) {
			trueActive = append(trueActive, p)
		}
	}

	t.add("active_now", countWithNames(trueActive))
	t.add("active_prev", fmt.Sprint(len(previous.ActivePlayers())))
	t.add("confirmed_eliminated", countWithNames(eliminated))
	pending := PendingRebuys(current, previous)
	t.add("pending_rebuy", countWithNames(pending))

	switch {
	// Un jugador que cayó a 0 en esta mano solo cuenta como eliminado si sigue a 0 en N+1.
	case len(trueActive) == 1 && len(pending) > 0:
		t.add("rule", RulePendingRebuy)
		return domain.RunningVerdict(n, confidenceRunning,
			fmt.Sprintf("%s may still rebuy after hand %d", strings.Join(pending, ", "), n), t.String())
	case len(trueActive) == 1:
		winner := trueActive[0]
		t.add("rule", RuleSoleSurvivor)
		t.add("winner", winner)
		return domain.Verdict{
			Status:     domain.GameCompleted,
			Winner:     winner,
			Confidence: confidenceCertain,
			Reasoning: fmt.Sprintf("%s is the only player with chips at hand %d (%d confirmed eliminated)",
				winner, n, len(eliminated)),
			DecisionTrace: t.String(),
			Hand:          n,
		}
	case len(trueActive) == 0:
		t.add("rule", RuleNoActive)
		return domain.RunningVerdict(n, confidenceRunning,
			fmt.Sprintf("no player with confirmed chips at hand %d, waiting for rebuys", n), t.String())
	default:
		t.add("rule", RuleMultipleActive)
		return domain.RunningVerdict(n, confidenceRunning,
			fmt.Sprintf("%d players still active at hand %d", len(trueActive), n), t.String())
	}
}

// PendingRebuys devuelve los jugadores que cayeron a 0 en current viniendo de un
// stack positivo en previous. Mientras haya alguno, la mesa no se da por terminada.
func PendingRebuys(current, previous *domain.HandRecord) []string {
	var out []string
	for _, p := range current.PlayerNames() {
		stack, _ := current.Stack(p)
		if stack > 0 {
			continue
		}
		if prev, seated := previous.Stack(p); seated && prev > 0 {
			out = append(out, p)
		}
	}
	return out
}

// ConfirmedEliminations devuelve los jugadores a 0 en current que también estaban
// a 0 (o ausentes) en previous. Un 0 que viene de un stack positivo no cuenta.
func ConfirmedEliminations(current, previous *domain.HandRecord) []string {
	var out []string
	for _, p := range current.PlayerNames() {
		stack, _ := current.Stack(p)
		if stack > 0 {
			continue
		}
		prev, seated := previous.Stack(p)
		if !seated || prev == 0 {
			out = append(out, p)
		}
	}
	return out
}

func missing(t *trace, n int, reason string) domain.Verdict {
	t.add("rule", RuleHandMissing)
	return domain.RunningVerdict(n, confidenceNone, reason, t.String())
}

func countWithNames(names []string) string {
	if len(names) == 0 {
		return "0"
	}
	return fmt.Sprintf("%d [%s]", len(names), strings.Join(names, ", "))
}

// trace acumula pares clave=valor en orden de inserción.
type trace struct {
	parts []string
}

func newTrace(hand int) *trace {
	return &trace{parts: []string{fmt.Sprintf("hand=%d", hand)}}
}

func (t *trace) add(key, value string) {
	t.parts = append(t.parts, key+"="+value)
}

func (t *trace) String() string {
	return strings.Join(t.parts, "; ")
}
