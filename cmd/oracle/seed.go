package main

import (
	"context"
	"fmt"
	"os"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"
)

// seedFile es el formato YAML de -seed. Los importes van como string para no
// perder precisión.
type seedFile struct {
	Tournaments []seedTournament `yaml:"tournaments"`
}

type seedTournament struct {
	ID      string       `yaml:"id"`
	TableID string       `yaml:"table_id"`
	Name    string       `yaml:"name"`
	Status  string       `yaml:"status"`
	Markets []seedMarket `yaml:"markets"`
}

type seedMarket struct {
	ID          string        `yaml:"id"`
	Title       string        `yaml:"title"`
	Autonomous  *bool         `yaml:"autonomous"` // por defecto true
	PoolPreSeed string        `yaml:"pool_pre_seed"`
	TotalPool   string        `yaml:"total_pool"`
	Fee         string        `yaml:"fee"`
	Outcomes    []seedOutcome `yaml:"outcomes"`
}

type seedOutcome struct {
	ID        string `yaml:"id"`
	Label     string `yaml:"label"`
	TotalBets string `yaml:"total_bets"`
	BetCount  int    `yaml:"bet_count"`
}

// loadSeed carga el archivo y devuelve cuántos mercados se escribieron.
func loadSeed(ctx context.Context, store ports.MarketSeeder, path string) (int, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return 0, fmt.Errorf("loadSeed: read %q: %w", path, err)
	}
	var f seedFile
	if err := yaml.Unmarshal(data, &f); err != nil {
		return 0, fmt.Errorf("loadSeed: parse YAML: %w", err)
	}

	markets := 0
	for _, t := range f.Tournaments {
		if t.ID == "" || t.TableID == "" {
			return markets, fmt.Errorf("loadSeed: tournament needs id and table_id")
		}
		status := domain.TournamentStatus(t.Status)
		if status == "" {
			status = domain.TournamentActive
		}
		if err := store.UpsertTournament(ctx, domain.Tournament{
			ID:      t.ID,
			TableID: t.TableID,
			Name:    t.Name,
			Status:  status,
		}); err != nil {
			return markets, err
		}

		for _, sm := range t.Markets {
			m, err := sm.toDomain(t.ID)
			if err != nil {
				return markets, fmt.Errorf("loadSeed: market %s: %w", sm.ID, err)
			}
			if err := store.UpsertMarket(ctx, m); err != nil {
				return markets, err
			}
			markets++
		}
	}
	return markets, nil
}

func (sm seedMarket) toDomain(tournamentID string) (domain.BettingMarket, error) {
	if sm.ID == "" {
		return domain.BettingMarket{}, fmt.Errorf("missing id")
	}
	autonomous := true
	if sm.Autonomous != nil {
		autonomous = *sm.Autonomous
	}

	m := domain.BettingMarket{
		ID:           sm.ID,
		TournamentID: tournamentID,
		Title:        sm.Title,
		IsAutonomous: autonomous,
	}
	var err error
	if m.PoolPreSeed, err = amount(sm.PoolPreSeed); err != nil {
		return m, fmt.Errorf("pool_pre_seed: %w", err)
	}
	if m.TotalPool, err = amount(sm.TotalPool); err != nil {
		return m, fmt.Errorf("total_pool: %w", err)
	}
	if m.BookmakingFee, err = amount(sm.Fee); err != nil {
		return m, fmt.Errorf("fee: %w", err)
	}
	if m.BookmakingFee.LessThan(decimal.Zero) || m.BookmakingFee.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return m, fmt.Errorf("fee %s outside [0, 1)", m.BookmakingFee)
	}

	for _, so := range sm.Outcomes {
		bets, err := amount(so.TotalBets)
		if err != nil {
			return m, fmt.Errorf("outcome %s: total_bets: %w", so.ID, err)
		}
		m.Outcomes = append(m.Outcomes, domain.Outcome{
			ID:        so.ID,
			Label:     so.Label,
			TotalBets: bets,
			BetCount:  so.BetCount,
		})
	}
	return m, nil
}

// amount parsea un importe; vacío es cero.
func amount(s string) (decimal.Decimal, error) {
	if s == "" {
		return decimal.Zero, nil
	}
	return decimal.NewFromString(s)
}
