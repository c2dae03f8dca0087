package handlog

// rules.go: tabla ordenada (patrón, handler) para las líneas del log.
//
// Cada línea se prueba contra las reglas en orden y la primera que coincide gana.
// Añadir un tipo de línea nuevo es añadir una entrada aquí. El orden importa:
//   - "collected" va antes que blind/ante para que el cobro de un bote nunca
//     se confunda con un posteo.
//   - ante va antes que blind ("posts an ante" vs "posts a ... blind").
// Las líneas que no coinciden con ninguna regla se ignoran.

import (
	"regexp"
	"strings"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

// player captura "Name @ id" (el id es opcional).
const player = `"(.+?)(?: @ ([^"]+))?"`

// amount admite separadores de miles y decimales.
const amount = `([\d][\d.,]*)`

type rule struct {
	name    string
	pattern *regexp.Regexp
	apply   func(b *builder, m []string, line domain.LogLine)
}

var (
	startRe = regexp.MustCompile(`^-- starting hand #(\d+)(.*)--\s*$`)
	endRe   = regexp.MustCompile(`^-- ending hand #(\d+)`)

	handIDRe   = regexp.MustCompile(`\(id: ([^)]+)\)`)
	dealerRe   = regexp.MustCompile(`\(dealer: "(.+?)(?: @ [^"]+)?"\)`)
	gameTypeRe = regexp.MustCompile(`\(([^():"]+)\)`)
	stackRe    = regexp.MustCompile(`#\d+ ` + player + ` \(` + amount + `\)`)
)

var rules = []rule{
	{
		name:    "start",
		pattern: startRe,
		apply:   (*builder).start,
	},
	{
		name:    "end",
		pattern: endRe,
		apply:   func(*builder, []string, domain.LogLine) {},
	},
	{
		name:    "stacks",
		pattern: regexp.MustCompile(`^Player stacks: (.+)$`),
		apply:   (*builder).stacks,
	},
	{
		name:    "collected",
		pattern: regexp.MustCompile(`^` + player + ` collected ` + amount + ` from (?:the )?(?:main |side )?pot(?: with (.+?))?(?: \(combination: (.+?)\))?\s*$`),
		apply:   (*builder).collected,
	},
	{
		name:    "uncalled",
		pattern: regexp.MustCompile(`^Uncalled bet of ` + amount + ` returned to ` + player),
		apply:   func(*builder, []string, domain.LogLine) {},
	},
	{
		name:    "shows",
		pattern: regexp.MustCompile(`^` + player + ` shows a (.+?)\.?\s*$`),
		apply:   (*builder).shows,
	},
	{
		name:    "ante",
		pattern: regexp.MustCompile(`^` + player + ` posts an ante of ` + amount),
		apply:   action(domain.ActionAnte),
	},
	{
		name:    "blind",
		pattern: regexp.MustCompile(`^` + player + ` posts a (?:[a-z ]*?)(?:blind|straddle) of ` + amount),
		apply:   action(domain.ActionBlind),
	},
	{
		name:    "fold",
		pattern: regexp.MustCompile(`^` + player + ` folds`),
		apply:   action(domain.ActionFold),
	},
	{
		name:    "check",
		pattern: regexp.MustCompile(`^` + player + ` checks`),
		apply:   action(domain.ActionCheck),
	},
	{
		name:    "call",
		pattern: regexp.MustCompile(`^` + player + ` calls ` + amount),
		apply:   action(domain.ActionCall),
	},
	{
		name:    "raise",
		pattern: regexp.MustCompile(`^` + player + ` raises to ` + amount),
		apply:   action(domain.ActionRaise),
	},
	{
		name:    "bet",
		pattern: regexp.MustCompile(`^` + player + ` bets ` + amount),
		apply:   action(domain.ActionBet),
	},
	{
		name:    "flop",
		pattern: regexp.MustCompile(`^[Ff]lop:\s*\[(.+)\]`),
		apply:   (*builder).flop,
	},
	{
		name:    "turn",
		pattern: regexp.MustCompile(`^[Tt]urn:.*\[(.+)\]`),
		apply:   (*builder).turn,
	},
	{
		name:    "river",
		pattern: regexp.MustCompile(`^[Rr]iver:.*\[(.+)\]`),
		apply:   (*builder).river,
	},
	{
		name:    "quits",
		pattern: regexp.MustCompile(`^The player ` + player + ` (?:quits the game|stand up)`),
		apply:   (*builder).quits,
	},
}

// match devuelve la primera regla que coincide con msg.
func match(msg string) (rule, []string, bool) {
	msg = strings.TrimSpace(msg)
	for _, r := range rules {
		if m := r.pattern.FindStringSubmatch(msg); m != nil {
			return r, m, true
		}
	}
	return rule{}, nil, false
}
