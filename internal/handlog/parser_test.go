package handlog_test

import (
	"encoding/json"
	"os"
	"slices"
	"testing"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/handlog"
	"github.com/paulhankin/poker"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func loadHand(t *testing.T, name string) []domain.LogLine {
	t.Helper()
	data, err := os.ReadFile("../../testdata/fixtures/" + name)
	require.NoError(t, err)

	var raw []struct {
		CreatedAt int64  `json:"createdAt"`
		Msg       string `json:"msg"`
	}
	require.NoError(t, json.Unmarshal(data, &raw))

	lines := make([]domain.LogLine, len(raw))
	for i, r := range raw {
		lines[i] = domain.LogLine{At: time.UnixMilli(r.CreatedAt).UTC(), Msg: r.Msg}
	}
	return lines
}

// chrono construye líneas cronológicas con timestamps crecientes.
func chrono(msgs ...string) []domain.LogLine {
	base := time.Date(2024, 3, 1, 20, 0, 0, 0, time.UTC)
	lines := make([]domain.LogLine, len(msgs))
	for i, m := range msgs {
		lines[i] = domain.LogLine{At: base.Add(time.Duration(i) * time.Second), Msg: m}
	}
	return lines
}

func reversed(lines []domain.LogLine) []domain.LogLine {
	out := slices.Clone(lines)
	slices.Reverse(out)
	return out
}

func card(t *testing.T, s string) poker.Card {
	t.Helper()
	c, ok := handlog.ParseCard(s)
	require.True(t, ok, "card %q", s)
	return c
}

// --- tests ---

func TestParseHand_Empty(t *testing.T) {
	assert.Nil(t, handlog.ParseHand(nil))
	assert.Nil(t, handlog.ParseHand([]domain.LogLine{}))
}

func TestParseHand_Fixture(t *testing.T) {
	rec := handlog.ParseHand(loadHand(t, "pokernow_hand_12.json"))
	require.NotNil(t, rec)

	assert.Equal(t, 12, rec.HandNumber)
	assert.Equal(t, "k3ovbrz1xq", rec.HandID)
	assert.Equal(t, "No Limit Texas Hold'em", rec.GameType)
	assert.Equal(t, "Alice", rec.Dealer)

	assert.Equal(t, map[string]int64{"Alice": 1000, "Bob": 1500, "Carl": 250}, rec.Players)
	assert.Equal(t, "xY7zQ", rec.PlayerIDs["Bob"])

	require.Len(t, rec.Actions, 12)
	assert.Equal(t, domain.Action{Player: "Bob", Kind: domain.ActionBlind, Amount: 10, At: rec.Actions[0].At}, rec.Actions[0])
	assert.Equal(t, domain.ActionBlind, rec.Actions[1].Kind)
	assert.Equal(t, domain.ActionRaise, rec.Actions[2].Kind)
	assert.Equal(t, int64(60), rec.Actions[2].Amount)
	assert.Equal(t, domain.ActionFold, rec.Actions[4].Kind)
	assert.Equal(t, "Carl", rec.Actions[4].Player)
	assert.Equal(t, domain.ActionBet, rec.Actions[10].Kind)
	assert.Equal(t, int64(100), rec.Actions[10].Amount)

	for i := 1; i < len(rec.Actions); i++ {
		assert.False(t, rec.Actions[i].At.Before(rec.Actions[i-1].At), "actions must be chronological")
	}

	require.Len(t, rec.Community.Flop, 3)
	assert.Equal(t, card(t, "A♠"), rec.Community.Flop[0])
	require.NotNil(t, rec.Community.Turn)
	assert.Equal(t, card(t, "K♥"), *rec.Community.Turn)
	require.NotNil(t, rec.Community.River)
	assert.Equal(t, card(t, "2♦"), *rec.Community.River)
	assert.Len(t, rec.Community.Board(), 5)

	require.NotNil(t, rec.Winner)
	assert.Equal(t, "Bob", rec.Winner.Player)
	assert.Equal(t, int64(500), rec.Winner.Amount)
	assert.Equal(t, "Three of a Kind, K's", rec.Winner.HandDescription)
	require.Len(t, rec.Winner.Cards, 2)
	assert.Equal(t, card(t, "K♠"), rec.Winner.Cards[0])
}

func TestParseHand_OrderIndependent(t *testing.T) {
	newestFirst := loadHand(t, "pokernow_hand_12.json")

	fromService := handlog.ParseHand(newestFirst)
	fromChrono := handlog.ParseHand(reversed(newestFirst))

	require.NotNil(t, fromService)
	assert.Equal(t, fromService, fromChrono)

	// Aplicar la normalización dos veces no cambia nada.
	once := handlog.Chronological(newestFirst)
	assert.Equal(t, once, handlog.Chronological(once))
}

func TestParseHand_OrderIndependentWithoutEndMarker(t *testing.T) {
	lines := chrono(
		`-- starting hand #3 (id: abc) (No Limit Texas Hold'em) (dealer: "A @ 1") --`,
		`Player stacks: #1 "A @ 1" (0) | #2 "B @ 2" (300)`,
		`"B @ 2" posts a big blind of 20`,
		`"B @ 2" collected 20 from pot`,
	)
	assert.Equal(t, handlog.ParseHand(lines), handlog.ParseHand(reversed(lines)))
}

func TestParseHand_UnknownLinesSkipped(t *testing.T) {
	rec := handlog.ParseHand(chrono(
		`-- starting hand #7 (id: zz) (No Limit Texas Hold'em) (dealer: "A @ 1") --`,
		`Player stacks: #1 "A @ 1" (100) | #2 "B @ 2" (100)`,
		`The admin approved the player "C @ 3" participation with a stack of 100.`,
		`some line from a future format`,
		`"A @ 1" checks`,
		`-- ending hand #7 --`,
	))
	require.NotNil(t, rec)
	assert.Equal(t, 7, rec.HandNumber)
	require.Len(t, rec.Actions, 1)
	assert.Equal(t, domain.ActionCheck, rec.Actions[0].Kind)
	assert.Nil(t, rec.Winner)
}

func TestParseHand_MalformedInputNeverPanics(t *testing.T) {
	inputs := [][]domain.LogLine{
		chrono(`-- starting hand #x --`),
		chrono(`Player stacks: garbage`),
		chrono(`"" calls`),
		chrono(`"A @ 1" collected from pot`),
		chrono(`Flop: []`, `Turn: [ZZ]`, `River: []`),
		chrono(`"A @ 1" shows a .`),
		{{Msg: ""}},
	}
	for _, in := range inputs {
		assert.NotPanics(t, func() { handlog.ParseHand(in) })
	}
}

func TestParseHand_AnteAndAllIn(t *testing.T) {
	rec := handlog.ParseHand(chrono(
		`-- starting hand #4 (id: q1) (No Limit Texas Hold'em) (dealer: "A @ 1") --`,
		`Player stacks: #1 "A @ 1" (500) | #2 "B @ 2" (200)`,
		`"A @ 1" posts an ante of 5`,
		`"B @ 2" posts an ante of 5`,
		`"B @ 2" posts a straddle of 40`,
		`"A @ 1" raises to 495 and go all in`,
		`"B @ 2" calls 155 and go all in`,
		`-- ending hand #4 --`,
	))
	require.NotNil(t, rec)
	require.Len(t, rec.Actions, 5)
	assert.Equal(t, domain.ActionAnte, rec.Actions[0].Kind)
	assert.Equal(t, int64(5), rec.Actions[0].Amount)
	assert.Equal(t, domain.ActionBlind, rec.Actions[2].Kind)
	assert.Equal(t, int64(40), rec.Actions[2].Amount)
	assert.True(t, rec.Actions[3].AllIn)
	assert.True(t, rec.Actions[4].AllIn)
	assert.False(t, rec.Actions[0].AllIn)
}

func TestParseHand_CollectedNotMistakenForBlind(t *testing.T) {
	rec := handlog.ParseHand(chrono(
		`-- starting hand #9 (id: q9) (No Limit Texas Hold'em) (dealer: "A @ 1") --`,
		`Player stacks: #1 "A @ 1" (500) | #2 "B @ 2" (200)`,
		`"A @ 1" collected 30 from pot with a big blind of 20 returned`,
	))
	require.NotNil(t, rec)
	assert.Empty(t, rec.Actions)
	require.NotNil(t, rec.Winner)
	assert.Equal(t, "A", rec.Winner.Player)
	assert.Equal(t, int64(30), rec.Winner.Amount)
}

func TestParseHand_DerivesHandDescription(t *testing.T) {
	rec := handlog.ParseHand(chrono(
		`-- starting hand #5 (id: d5) (No Limit Texas Hold'em) (dealer: "A @ 1") --`,
		`Player stacks: #1 "A @ 1" (500) | #2 "B @ 2" (500)`,
		`Flop:  [A♠, 10♦, 5♣]`,
		`Turn: A♠, 10♦, 5♣ [K♥]`,
		`River: A♠, 10♦, 5♣, K♥ [2♦]`,
		`"A @ 1" shows a A♥, A♦.`,
		`"A @ 1" collected 100 from pot`,
	))
	require.NotNil(t, rec)
	require.NotNil(t, rec.Winner)
	assert.NotEmpty(t, rec.Winner.HandDescription)
	assert.Len(t, rec.Winner.Cards, 2)
}

func TestParseHand_Quits(t *testing.T) {
	rec := handlog.ParseHand(chrono(
		`-- starting hand #6 (id: d6) (No Limit Texas Hold'em) (dealer: "A @ 1") --`,
		`Player stacks: #1 "A @ 1" (500) | #2 "B @ 2" (0)`,
		`-- ending hand #6 --`,
		`The player "B @ 2" quits the game with a stack of 0.`,
	))
	require.NotNil(t, rec)
	assert.Equal(t, []string{"B"}, rec.Departed)
	assert.Equal(t, []string{"A"}, rec.ActivePlayers())
	assert.Equal(t, []string{"A", "B"}, rec.PlayerNames())
}

func TestParseLog_FillsHandNumber(t *testing.T) {
	rec := handlog.ParseLog(domain.HandLog{Number: 42, Lines: chrono(`"A @ 1" checks`)})
	require.NotNil(t, rec)
	assert.Equal(t, 42, rec.HandNumber)
}

func TestHasAllIn(t *testing.T) {
	assert.True(t, handlog.HasAllIn(chrono(`"A @ 1" raises to 500 and go ALL IN`)))
	assert.True(t, handlog.HasAllIn(chrono(`x`, `"B @ 2" calls 40 and go all in`)))
	assert.False(t, handlog.HasAllIn(chrono(`"A @ 1" calls 20`, `"B" collected 40 from pot`)))
}

func TestParseCard(t *testing.T) {
	for _, s := range []string{"A♠", "10♦", "Td", "2c", "K♥", "q♣"} {
		_, ok := handlog.ParseCard(s)
		assert.True(t, ok, s)
	}
	for _, s := range []string{"", "A", "1♠", "11♦", "Ax", "♠"} {
		_, ok := handlog.ParseCard(s)
		assert.False(t, ok, s)
	}
	a, _ := handlog.ParseCard("10♦")
	b, _ := handlog.ParseCard("Td")
	assert.Equal(t, a, b)
}
