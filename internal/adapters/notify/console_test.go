package notify_test

import (
	"bytes"
	"context"
	"errors"
	"strings"
	"testing"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/adapters/notify"
	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func completed(winner string) *domain.Verdict {
	return &domain.Verdict{
		Status:     domain.GameCompleted,
		Winner:     winner,
		Confidence: 0.9,
		Reasoning:  "only " + winner + " has chips after hand 40",
		Hand:       40,
	}
}

func sampleResults() []domain.SyncResult {
	return []domain.SyncResult{
		{TournamentID: "t1", TableID: "tbl1", Outcome: domain.SyncProposed, Markets: 2, MinSynced: 39, LatestHand: 40, Verdict: completed("Alice"), Proposed: []string{"m1", "m2"}},
		{TournamentID: "t2", TableID: "tbl2", Outcome: domain.SyncSkipped, Markets: 1, MinSynced: 12, LatestHand: 12},
		{TournamentID: "t3", TableID: "tbl3", Outcome: domain.SyncFailed, Markets: 1, Err: errors.New("source unavailable")},
	}
}

func TestConsole_Notify_Empty(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.Notify(context.Background(), nil))
	assert.Contains(t, buf.String(), "no open autonomous markets")
}

func TestConsole_Notify_Compact(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	require.NoError(t, c.Notify(context.Background(), sampleResults()))
	out := buf.String()

	assert.Equal(t, 1, strings.Count(out, "\n"), "compact mode prints one line")
	assert.Contains(t, out, "3 tournaments")
	assert.Contains(t, out, "skipped:1")
	assert.Contains(t, out, "proposed:1")
	assert.Contains(t, out, "failed:1")
	assert.Contains(t, out, "t1 #40 proposed winner=Alice")
	assert.NotContains(t, out, "t2 #", "skipped tournaments are not listed")
}

func TestConsole_Notify_Table(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	require.NoError(t, c.Notify(context.Background(), sampleResults()))
	out := buf.String()

	assert.Contains(t, out, "sync tick: 3 tournaments")
	assert.Contains(t, out, "tbl1")
	assert.Contains(t, out, "Alice")
	assert.Contains(t, out, "COMPLETED")
	assert.Contains(t, out, "source unavailable")
}

func TestConsole_Alert(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, false)

	err := c.Alert(context.Background(), domain.Event{
		Kind:         domain.EventPaused,
		TournamentID: "t1",
		TableID:      "tbl1",
		MarketIDs:    []string{"m1", "m2"},
		Title:        "markets paused",
		Message:      "all-in in hand 41",
		At:           time.Date(2024, 3, 1, 20, 15, 0, 0, time.UTC),
	})
	require.NoError(t, err)

	out := buf.String()
	assert.Contains(t, out, "[20:15:00]")
	assert.Contains(t, out, "PAUSED t1 (table tbl1)")
	assert.Contains(t, out, "markets=m1,m2")
	assert.Contains(t, out, "all-in in hand 41")
}

func TestConsole_PrintSummary(t *testing.T) {
	var buf bytes.Buffer
	c := notify.NewConsoleWriter(&buf, true)

	c.PrintSummary(domain.GameSummary{
		Hands: []domain.HandRecord{{
			HandNumber: 3,
			Dealer:     "Alice",
			Players:    map[string]int64{"Alice": 500, "Bob": 0},
			Actions:    []domain.Action{{Player: "Alice", Kind: domain.ActionRaise, Amount: 200, AllIn: true}},
			Winner:     &domain.Winner{Player: "Alice", Amount: 400, HandDescription: "Pair, A's"},
		}},
		Players:     []string{"Alice", "Bob"},
		FirstHand:   3,
		LastHand:    3,
		Reversed:    true,
		SkippedRows: 2,
	})

	out := buf.String()
	assert.Contains(t, out, "hands 3..3")
	assert.Contains(t, out, "newest-first (reversed)")
	assert.Contains(t, out, "skipped rows: 2")
	assert.Contains(t, out, "Alice:500")
	assert.Contains(t, out, "Pair, A's")
}
