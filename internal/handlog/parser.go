package handlog

import (
	"slices"
	"strconv"
	"strings"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/paulhankin/poker"
)

// ParseHand reconstruye una mano a partir de sus líneas de log.
// Acepta las líneas en el orden del servicio (newest-first) o ya cronológicas:
// el resultado es el mismo. Devuelve nil si no hay líneas.
func ParseHand(lines []domain.LogLine) *domain.HandRecord {
	if len(lines) == 0 {
		return nil
	}

	b := newBuilder()
	for _, line := range Chronological(lines) {
		r, m, ok := match(line.Msg)
		if !ok {
			continue
		}
		r.apply(b, m, line)
	}
	return b.finish()
}

// ParseLog parsea un HandLog y completa el número de mano si el log no trae cabecera.
func ParseLog(h domain.HandLog) *domain.HandRecord {
	rec := ParseHand(h.Lines)
	if rec != nil && rec.HandNumber == 0 {
		rec.HandNumber = h.Number
	}
	return rec
}

// HasAllIn devuelve true si alguna línea menciona un all-in (sin distinguir mayúsculas).
func HasAllIn(lines []domain.LogLine) bool {
	for _, l := range lines {
		if strings.Contains(strings.ToLower(l.Msg), "all in") {
			return true
		}
	}
	return false
}

// Chronological devuelve una copia de las líneas en orden cronológico.
// Es idempotente: aplicarla a una salida suya no cambia el orden.
func Chronological(lines []domain.LogLine) []domain.LogLine {
	out := slices.Clone(lines)
	if newestFirst(out) {
		slices.Reverse(out)
	}
	return out
}

// newestFirst detecta el orden usando, por prioridad:
//  1. los marcadores "-- starting hand" / "-- ending hand",
//  2. solo el marcador de inicio (debe estar al principio de la mano),
//  3. los timestamps de la primera y última línea.
//
// Sin ninguna señal se asume el orden del servicio (newest-first).
func newestFirst(lines []domain.LogLine) bool {
	start, end := -1, -1
	for i, l := range lines {
		msg := strings.TrimSpace(l.Msg)
		if start < 0 && startRe.MatchString(msg) {
			start = i
		}
		if end < 0 && endRe.MatchString(msg) {
			end = i
		}
	}

	switch {
	case start >= 0 && end >= 0 && start != end:
		return end < start
	case start >= 0:
		return start > len(lines)-1-start
	}

	first, last := lines[0].At, lines[len(lines)-1].At
	switch {
	case first.IsZero() || last.IsZero():
		return true
	case first.After(last):
		return true
	case first.Before(last):
		return false
	}
	return true
}

// builder acumula el estado de una mano mientras se recorren las líneas.
type builder struct {
	rec     domain.HandRecord
	started bool
	board   []poker.Card // combinación del ganador, si el log la trae
}

func newBuilder() *builder {
	return &builder{rec: domain.HandRecord{
		Players:   make(map[string]int64),
		PlayerIDs: make(map[string]string),
		Shown:     make(map[string][]poker.Card),
	}}
}

func (b *builder) start(m []string, _ domain.LogLine) {
	if b.started {
		return
	}
	b.started = true
	b.rec.HandNumber, _ = strconv.Atoi(m[1])

	rest := m[2]
	if id := handIDRe.FindStringSubmatch(rest); id != nil {
		b.rec.HandID = strings.TrimSpace(id[1])
	}
	if d := dealerRe.FindStringSubmatch(rest); d != nil {
		b.rec.Dealer = d[1]
	}
	for _, g := range gameTypeRe.FindAllStringSubmatch(rest, -1) {
		if strings.EqualFold(g[1], "dead button") {
			continue
		}
		b.rec.GameType = strings.TrimSpace(g[1])
		break
	}
}

func (b *builder) stacks(m []string, _ domain.LogLine) {
	for _, s := range stackRe.FindAllStringSubmatch(m[1], -1) {
		name := s[1]
		b.rec.Players[name] = max(parseAmount(s[3]), 0)
		if s[2] != "" {
			b.rec.PlayerIDs[name] = s[2]
		}
	}
}

func action(kind domain.ActionKind) func(*builder, []string, domain.LogLine) {
	return func(b *builder, m []string, line domain.LogLine) {
		a := domain.Action{
			Player: m[1],
			Kind:   kind,
			AllIn:  strings.Contains(strings.ToLower(line.Msg), "all in"),
			At:     line.At,
		}
		if len(m) > 3 {
			a.Amount = parseAmount(m[3])
		}
		b.seen(m[1], m[2])
		b.rec.Actions = append(b.rec.Actions, a)
	}
}

func (b *builder) collected(m []string, _ domain.LogLine) {
	name := m[1]
	b.seen(name, m[2])
	amt := parseAmount(m[3])

	if b.rec.Winner != nil {
		// Segundo cobro (side pot o run it twice): solo suma si es el mismo jugador.
		if b.rec.Winner.Player == name {
			b.rec.Winner.Amount += amt
		}
		return
	}
	b.rec.Winner = &domain.Winner{
		Player:          name,
		Amount:          amt,
		HandDescription: strings.TrimSpace(m[4]),
	}
	if m[5] != "" {
		b.board = ParseCards(m[5])
	}
}

func (b *builder) shows(m []string, _ domain.LogLine) {
	b.seen(m[1], m[2])
	if cards := ParseCards(strings.TrimSuffix(m[3], ".")); len(cards) > 0 {
		b.rec.Shown[m[1]] = cards
	}
}

func (b *builder) flop(m []string, _ domain.LogLine) {
	b.rec.Community.Flop = ParseCards(m[1])
}

func (b *builder) turn(m []string, _ domain.LogLine) {
	if c, ok := ParseCard(m[1]); ok {
		b.rec.Community.Turn = &c
	}
}

func (b *builder) river(m []string, _ domain.LogLine) {
	if c, ok := ParseCard(m[1]); ok {
		b.rec.Community.River = &c
	}
}

func (b *builder) quits(m []string, _ domain.LogLine) {
	b.seen(m[1], m[2])
	if !slices.Contains(b.rec.Departed, m[1]) {
		b.rec.Departed = append(b.rec.Departed, m[1])
	}
}

// seen registra el id de un jugador cuando aparece por primera vez con él.
func (b *builder) seen(name, id string) {
	if id == "" {
		return
	}
	if _, ok := b.rec.PlayerIDs[name]; !ok {
		b.rec.PlayerIDs[name] = id
	}
}

// finish completa los campos derivados y devuelve el registro.
func (b *builder) finish() *domain.HandRecord {
	rec := b.rec
	if w := rec.Winner; w != nil {
		if hole, ok := rec.Shown[w.Player]; ok {
			w.Cards = hole
			if w.HandDescription == "" {
				w.HandDescription = describe(hole, rec.Community.Board())
			}
		} else if len(b.board) > 0 {
			w.Cards = b.board
		}
	}
	return &rec
}

// parseAmount convierte "1,000", "20" o "10.50" a fichas enteras. Devuelve 0 si no es legible.
func parseAmount(s string) int64 {
	s = strings.TrimRight(strings.ReplaceAll(s, ",", ""), ".")
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return 0
	}
	if f < 0 {
		return 0
	}
	return int64(f + 0.5)
}
