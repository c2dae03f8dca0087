package handlog_test

import (
	"os"
	"strings"
	"testing"

	"github.com/alejandrodnm/pokeroracle/internal/handlog"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestParseBulkCSV_Export(t *testing.T) {
	data, err := os.ReadFile("../../testdata/fixtures/pokernow_export.csv")
	require.NoError(t, err)

	summary := handlog.ParseBulkCSV(string(data))

	assert.True(t, summary.Reversed)
	assert.Equal(t, 0, summary.SkippedRows)
	require.Len(t, summary.Hands, 2)
	assert.Equal(t, 1, summary.FirstHand)
	assert.Equal(t, 2, summary.LastHand)
	assert.Equal(t, []string{"Alice", "Bob", "Carl"}, summary.Players)

	h1 := summary.Hands[0]
	assert.Equal(t, 1, h1.HandNumber)
	assert.Equal(t, "h1", h1.HandID)
	assert.Equal(t, int64(1000), h1.Players["Carl"])
	require.NotNil(t, h1.Winner)
	assert.Equal(t, "Alice", h1.Winner.Player)
	assert.Equal(t, int64(2010), h1.Winner.Amount)
	assert.Equal(t, "Pair, A's", h1.Winner.HandDescription)
	assert.Equal(t, []string{"Carl"}, h1.Departed)
	assert.Len(t, h1.Community.Flop, 3)

	h2 := summary.Hands[1]
	assert.Equal(t, map[string]int64{"Alice": 2010, "Bob": 990}, h2.Players)
	require.NotNil(t, h2.Winner)
	assert.Equal(t, "Bob", h2.Winner.Player)
	assert.Empty(t, h2.Winner.HandDescription)
}

func TestParseBulkCSV_ChronologicalInput(t *testing.T) {
	data, err := os.ReadFile("../../testdata/fixtures/pokernow_export.csv")
	require.NoError(t, err)

	rows := strings.Split(strings.TrimSpace(string(data)), "\n")
	header, body := rows[0], rows[1:]
	for i, j := 0, len(body)-1; i < j; i, j = i+1, j-1 {
		body[i], body[j] = body[j], body[i]
	}
	chrono := header + "\n" + strings.Join(body, "\n")

	a := handlog.ParseBulkCSV(string(data))
	b := handlog.ParseBulkCSV(chrono)

	assert.False(t, b.Reversed)
	assert.Equal(t, a.Hands, b.Hands)
	assert.Equal(t, a.Players, b.Players)
}

func TestParseBulkCSV_SingleHandUsesTimestamps(t *testing.T) {
	csv := strings.Join([]string{
		"entry_at,msg,net_amount",
		`2024-01-01T10:00:05.000Z,"""A @ 1"" collected 40 from pot",`,
		`2024-01-01T10:00:04.000Z,"""B @ 2"" folds",`,
		`2024-01-01T10:00:03.000Z,"Player stacks: #1 ""A @ 1"" (100) | #2 ""B @ 2"" (80)",`,
		`2024-01-01T10:00:02.000Z,"-- starting hand #1 (id: s1) (No Limit Texas Hold'em) (dealer: ""A @ 1"") --",`,
	}, "\n")

	summary := handlog.ParseBulkCSV(csv)
	assert.True(t, summary.Reversed)
	require.Len(t, summary.Hands, 1)
	assert.Equal(t, map[string]int64{"A": 100, "B": 80}, summary.Hands[0].Players)
	require.NotNil(t, summary.Hands[0].Winner)
	assert.Equal(t, "A", summary.Hands[0].Winner.Player)
}

func TestParseBulkCSV_LegacyHeuristic(t *testing.T) {
	// Sin timestamps ni dos marcadores: la primera fila terminal indica newest-first.
	csv := strings.Join([]string{
		"entry_at,msg,net_amount",
		`,"The player ""B @ 2"" quits the game with a stack of 0.",`,
		`,"""A @ 1"" collected 40 from pot",`,
		`,"Player stacks: #1 ""A @ 1"" (100) | #2 ""B @ 2"" (0)",`,
		`,"-- starting hand #8 (id: s8) (No Limit Texas Hold'em) (dealer: ""A @ 1"") --",`,
	}, "\n")

	summary := handlog.ParseBulkCSV(csv)
	assert.True(t, summary.Reversed)
	require.Len(t, summary.Hands, 1)
	assert.Equal(t, 8, summary.Hands[0].HandNumber)
	assert.Equal(t, []string{"B"}, summary.Hands[0].Departed)
}

func TestParseBulkCSV_MalformedRowsSkipped(t *testing.T) {
	csv := strings.Join([]string{
		"entry_at,msg,net_amount",
		`2024-01-01T10:00:02.000Z,"-- starting hand #1 (id: s1) (No Limit Texas Hold'em) (dealer: ""A @ 1"") --",`,
		`garbage-without-commas`,
		`2024-01-01T10:00:03.000Z,"Player stacks: #1 ""A @ 1"" (100)",`,
		`2024-01-01T10:00:04.000Z,,`,
	}, "\n")

	summary := handlog.ParseBulkCSV(csv)
	assert.Equal(t, 2, summary.SkippedRows)
	require.Len(t, summary.Hands, 1)
	assert.Equal(t, map[string]int64{"A": 100}, summary.Hands[0].Players)
}

func TestParseBulkCSV_Empty(t *testing.T) {
	summary := handlog.ParseBulkCSV("")
	assert.Empty(t, summary.Hands)
	summary = handlog.ParseBulkCSV("entry_at,msg,net_amount\n")
	assert.Empty(t, summary.Hands)
}
