package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"

	"github.com/alejandrodnm/pokeroracle/internal/adapters/notify"
	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/handlog"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// runAudit descarga todas las manos de una mesa, las imprime y muestra el veredicto actual.
func runAudit(ctx context.Context, source ports.HandSource, resolver ports.Resolver, console *notify.Console, tableID string) {
	slog.Info("=== AUDIT MODE ===", "table", tableID)

	last, err := source.FindLastHand(ctx, tableID)
	if err != nil {
		slog.Error("audit interrupted", "err", err)
		return
	}
	if last == 0 {
		slog.Warn("table has no hands", "table", tableID)
		return
	}

	logs := source.FetchHandRange(ctx, tableID, 1, last)
	hands := make([]domain.HandRecord, 0, len(logs))
	for _, h := range logs {
		if rec := handlog.ParseLog(h); rec != nil {
			hands = append(hands, *rec)
		}
	}
	console.PrintHands("table "+tableID, hands)

	v := resolver.Compile(ctx, tableID, last)
	fmt.Printf("\nverdict at hand %d: %s paused=%t winner=%q confidence=%.2f\n  %s\n  trace: %s\n",
		last, v.Status, v.IsPaused, v.Winner, v.Confidence, v.Reasoning, v.DecisionTrace)

	slog.Info("audit complete", "hands", len(hands), "fetched", len(logs), "last", last)
}

// runCSV parsea un export completo de una mesa y lo imprime.
func runCSV(path string, console *notify.Console) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("runCSV: read %q: %w", path, err)
	}
	summary := handlog.ParseBulkCSV(string(data))
	console.PrintSummary(summary)
	if summary.SkippedRows > 0 {
		slog.Warn("unreadable rows skipped", "rows", summary.SkippedRows)
	}
	return nil
}
