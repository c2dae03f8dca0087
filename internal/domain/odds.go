package domain

import "github.com/shopspring/decimal"

// Límites de las cuotas publicadas.
var (
	MinOdds = decimal.RequireFromString("1.01")
	MaxOdds = decimal.NewFromInt(100)
)

// OutcomeOdds es la cuota calculada para un outcome.
type OutcomeOdds struct {
	OutcomeID string
	Label     string
	Odds      decimal.Decimal
}

// NetPool calcula el pool repartible tras la comisión de la casa.
//
// Fórmula: netPool = (totalPool + preSeed) × (1 − fee)
func NetPool(totalPool, preSeed, fee decimal.Decimal) decimal.Decimal {
	return totalPool.Add(preSeed).Mul(decimal.NewFromInt(1).Sub(fee))
}

// ProvisionalOdds es la cuota de un outcome sin apuestas: min(MaxOdds, outcomes × 2).
// Evita publicar una cuota infinita para un outcome vivo pero vacío.
func ProvisionalOdds(outcomeCount int) decimal.Decimal {
	return decimal.Min(MaxOdds, decimal.NewFromInt(int64(outcomeCount)*2))
}

// ClampOdds acota la cuota a [MinOdds, MaxOdds] y la redondea a 2 decimales
// (half away from zero: 2.375 → 2.38).
func ClampOdds(odds decimal.Decimal) decimal.Decimal {
	if odds.LessThan(MinOdds) {
		return MinOdds
	}
	if odds.GreaterThan(MaxOdds) {
		return MaxOdds
	}
	return odds.Round(2)
}

// ComputeOdds calcula las cuotas parimutuel de todos los outcomes del mercado.
//
// Fórmula:
//
//	netPool = (TotalPool + PoolPreSeed) × (1 − BookmakingFee)
//	odds    = netPool / TotalBets            si TotalBets > 0
//	odds    = min(100, len(Outcomes) × 2)    si no hay apuestas
//
// Todas las cuotas se acotan a [1.01, 100] y se redondean a 2 decimales.
func ComputeOdds(m BettingMarket) []OutcomeOdds {
	net := NetPool(m.TotalPool, m.PoolPreSeed, m.BookmakingFee)
	provisional := ProvisionalOdds(len(m.Outcomes))

	out := make([]OutcomeOdds, 0, len(m.Outcomes))
	for _, o := range m.Outcomes {
		raw := provisional
		if o.TotalBets.IsPositive() {
			raw = net.Div(o.TotalBets)
		}
		out = append(out, OutcomeOdds{
			OutcomeID: o.ID,
			Label:     o.Label,
			Odds:      ClampOdds(raw),
		})
	}
	return out
}
