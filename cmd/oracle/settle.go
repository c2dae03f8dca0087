package main

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// settle ejecuta una acción de operador. Solo se acepta una por invocación.
func settle(ctx context.Context, store ports.SettlementStore, approve, reject, resume string) error {
	set := 0
	for _, v := range []string{approve, reject, resume} {
		if v != "" {
			set++
		}
	}
	if set != 1 {
		return fmt.Errorf("settle: exactly one of -approve, -reject, -resume is allowed")
	}

	switch {
	case approve != "":
		if err := store.ApproveProposal(ctx, approve); err != nil {
			return err
		}
		slog.Info("proposal approved, market settled", "market", approve)
	case reject != "":
		if err := store.RejectProposal(ctx, reject); err != nil {
			return err
		}
		slog.Info("proposal rejected, market reopened", "market", reject)
	default:
		if err := store.ResumeMarket(ctx, resume); err != nil {
			return err
		}
		slog.Info("market resumed", "market", resume)
	}
	return nil
}
