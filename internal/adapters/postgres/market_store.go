package postgres

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

const marketColumns = `
	m.id, m.tournament_id, m.title, m.status, m.resolution_status,
	m.is_autonomous, m.is_paused, m.suspension_reason, m.last_synced_hand,
	m.pool_pre_seed::text, m.total_pool::text, m.bookmaking_fee::text,
	m.ai_proposed_winner_id, m.decision_trace, m.updated_at`

const openAutonomous = `
	FROM betting_markets m
	JOIN tournaments t ON t.id = m.tournament_id
	WHERE t.status = 'ACTIVE' AND m.status = 'OPEN' AND m.is_autonomous`

// MarketStore implementa ports.MarketStore y ports.SettlementStore sobre PostgreSQL.
type MarketStore struct {
	pool *pgxpool.Pool
}

// NewMarketStore crea un MarketStore sobre el pool dado.
func NewMarketStore(pool *pgxpool.Pool) *MarketStore {
	return &MarketStore{pool: pool}
}

// ListOpenAutonomousMarketsByTournament devuelve los mercados OPEN y autónomos de
// torneos activos, agrupados por torneo y con sus outcomes.
func (s *MarketStore) ListOpenAutonomousMarketsByTournament(ctx context.Context) ([]domain.TournamentGroup, error) {
	rows, err := s.pool.Query(ctx,
		`SELECT t.table_id, t.status, `+marketColumns+openAutonomous+` ORDER BY m.tournament_id, m.id`)
	if err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	defer rows.Close()

	var groups []domain.TournamentGroup
	var ids []string
	index := make(map[string]int)
	where := make(map[string][2]int)
	for rows.Next() {
		var tableID, tStatus string
		m, err := scanMarket(rows, &tableID, &tStatus)
		if err != nil {
			return nil, fmt.Errorf("postgres: scan market: %w", err)
		}
		gi, ok := index[m.TournamentID]
		if !ok {
			gi = len(groups)
			index[m.TournamentID] = gi
			groups = append(groups, domain.TournamentGroup{
				TournamentID: m.TournamentID,
				TableID:      tableID,
				Status:       domain.TournamentStatus(tStatus),
			})
		}
		where[m.ID] = [2]int{gi, len(groups[gi].Markets)}
		groups[gi].Markets = append(groups[gi].Markets, m)
		ids = append(ids, m.ID)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("postgres: list open markets: %w", err)
	}
	if len(ids) == 0 {
		return nil, nil
	}

	outcomes, err := s.outcomes(ctx, ids)
	if err != nil {
		return nil, err
	}
	for marketID, list := range outcomes {
		if pos, ok := where[marketID]; ok {
			groups[pos[0]].Markets[pos[1]].Outcomes = list
		}
	}
	return groups, nil
}

// GetMarket devuelve un mercado con sus outcomes. Error domain.ErrNotFound si no existe.
func (s *MarketStore) GetMarket(ctx context.Context, marketID string) (domain.BettingMarket, error) {
	m, err := scanMarket(s.pool.QueryRow(ctx,
		`SELECT `+marketColumns+` FROM betting_markets m WHERE m.id = $1`, marketID))
	if errors.Is(err, pgx.ErrNoRows) {
		return domain.BettingMarket{}, fmt.Errorf("postgres: market %s: %w", marketID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.BettingMarket{}, fmt.Errorf("postgres: get market %s: %w", marketID, err)
	}

	outcomes, err := s.outcomes(ctx, []string{marketID})
	if err != nil {
		return domain.BettingMarket{}, err
	}
	m.Outcomes = outcomes[marketID]
	return m, nil
}

// UpdateSyncProgress avanza last_synced_hand con GREATEST: nunca retrocede.
func (s *MarketStore) UpdateSyncProgress(ctx context.Context, marketIDs []string, hand int) error {
	if len(marketIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE betting_markets
		SET last_synced_hand = GREATEST(last_synced_hand, $1), updated_at = NOW()
		WHERE id = ANY($2)`,
		hand, marketIDs,
	); err != nil {
		return fmt.Errorf("postgres: update sync progress: %w", err)
	}
	return nil
}

// WriteOutcomeOdds escribe todas las cuotas del mercado en un único batch transaccional.
func (s *MarketStore) WriteOutcomeOdds(ctx context.Context, marketID string, odds []domain.OutcomeOdds) error {
	if len(odds) == 0 {
		return nil
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: write odds %s: begin: %w", marketID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	batch := &pgx.Batch{}
	for _, o := range odds {
		batch.Queue(`UPDATE outcomes SET odds = $1::numeric WHERE id = $2 AND market_id = $3`,
			o.Odds.StringFixed(2), o.OutcomeID, marketID)
	}
	batch.Queue(`UPDATE betting_markets SET updated_at = NOW() WHERE id = $1`, marketID)

	br := tx.SendBatch(ctx, batch)
	for _, o := range odds {
		tag, err := br.Exec()
		if err != nil {
			br.Close()
			return fmt.Errorf("postgres: write odds %s: outcome %s: %w", marketID, o.OutcomeID, err)
		}
		if tag.RowsAffected() == 0 {
			br.Close()
			return fmt.Errorf("postgres: write odds %s: outcome %s: %w", marketID, o.OutcomeID, domain.ErrNotFound)
		}
	}
	if _, err := br.Exec(); err != nil {
		br.Close()
		return fmt.Errorf("postgres: write odds %s: touch market: %w", marketID, err)
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: write odds %s: close batch: %w", marketID, err)
	}

	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: write odds %s: commit: %w", marketID, err)
	}
	return nil
}

// PauseMarkets suspende los mercados abiertos dados.
func (s *MarketStore) PauseMarkets(ctx context.Context, marketIDs []string, reason string) error {
	if len(marketIDs) == 0 {
		return nil
	}
	if _, err := s.pool.Exec(ctx, `
		UPDATE betting_markets
		SET is_paused = TRUE, suspension_reason = $1, updated_at = NOW()
		WHERE id = ANY($2) AND status = 'OPEN'`,
		reason, marketIDs,
	); err != nil {
		return fmt.Errorf("postgres: pause markets: %w", err)
	}
	return nil
}

// ProposeWinner cierra un mercado abierto con el outcome propuesto.
func (s *MarketStore) ProposeWinner(ctx context.Context, marketID, outcomeID, decisionTrace string) error {
	var owned bool
	if err := s.pool.QueryRow(ctx,
		`SELECT EXISTS(SELECT 1 FROM outcomes WHERE id = $1 AND market_id = $2)`, outcomeID, marketID,
	).Scan(&owned); err != nil {
		return fmt.Errorf("postgres: propose winner %s: %w", marketID, err)
	}
	if !owned {
		return fmt.Errorf("postgres: propose winner %s: outcome %s: %w", marketID, outcomeID, domain.ErrNotFound)
	}

	return s.transition(ctx, "propose winner", marketID, `
		UPDATE betting_markets
		SET status = 'CLOSED', resolution_status = 'PROPOSED',
		    ai_proposed_winner_id = $1, decision_trace = $2, updated_at = NOW()
		WHERE id = $3 AND status = 'OPEN'`,
		outcomeID, decisionTrace, marketID)
}

// ApproveProposal liquida un mercado con resolución propuesta.
func (s *MarketStore) ApproveProposal(ctx context.Context, marketID string) error {
	return s.transition(ctx, "approve proposal", marketID, `
		UPDATE betting_markets
		SET status = 'SETTLED', resolution_status = 'APPROVED', updated_at = NOW()
		WHERE id = $1 AND status = 'CLOSED' AND resolution_status = 'PROPOSED'`,
		marketID)
}

// RejectProposal reabre un mercado propuesto.
func (s *MarketStore) RejectProposal(ctx context.Context, marketID string) error {
	return s.transition(ctx, "reject proposal", marketID, `
		UPDATE betting_markets
		SET status = 'OPEN', resolution_status = 'REJECTED', ai_proposed_winner_id = '', updated_at = NOW()
		WHERE id = $1 AND status = 'CLOSED' AND resolution_status = 'PROPOSED'`,
		marketID)
}

// ResumeMarket quita la pausa de un mercado abierto.
func (s *MarketStore) ResumeMarket(ctx context.Context, marketID string) error {
	return s.transition(ctx, "resume market", marketID, `
		UPDATE betting_markets
		SET is_paused = FALSE, suspension_reason = '', updated_at = NOW()
		WHERE id = $1 AND status = 'OPEN' AND is_paused`,
		marketID)
}

// UpsertTournament crea o actualiza un torneo.
func (s *MarketStore) UpsertTournament(ctx context.Context, t domain.Tournament) error {
	if t.Status == "" {
		t.Status = domain.TournamentActive
	}
	if _, err := s.pool.Exec(ctx, `
		INSERT INTO tournaments (id, table_id, name, status) VALUES ($1, $2, $3, $4)
		ON CONFLICT (id) DO UPDATE SET
			table_id = EXCLUDED.table_id,
			name     = EXCLUDED.name,
			status   = EXCLUDED.status`,
		t.ID, t.TableID, t.Name, string(t.Status),
	); err != nil {
		return fmt.Errorf("postgres: upsert tournament %s: %w", t.ID, err)
	}
	return nil
}

// UpsertMarket crea o actualiza un mercado y sus outcomes en un batch.
// El progreso de sincronización y la resolución de un mercado existente no se tocan.
func (s *MarketStore) UpsertMarket(ctx context.Context, m domain.BettingMarket) error {
	if m.Status == "" {
		m.Status = domain.MarketOpen
	}
	if m.ResolutionStatus == "" {
		m.ResolutionStatus = domain.ResolutionNone
	}

	batch := &pgx.Batch{}
	batch.Queue(`
		INSERT INTO betting_markets
			(id, tournament_id, title, status, resolution_status, is_autonomous, is_paused,
			 suspension_reason, last_synced_hand, pool_pre_seed, total_pool, bookmaking_fee)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10::numeric, $11::numeric, $12::numeric)
		ON CONFLICT (id) DO UPDATE SET
			title          = EXCLUDED.title,
			is_autonomous  = EXCLUDED.is_autonomous,
			pool_pre_seed  = EXCLUDED.pool_pre_seed,
			total_pool     = EXCLUDED.total_pool,
			bookmaking_fee = EXCLUDED.bookmaking_fee,
			updated_at     = NOW()`,
		m.ID, m.TournamentID, m.Title, string(m.Status), string(m.ResolutionStatus), m.IsAutonomous, m.IsPaused,
		m.SuspensionReason, m.LastSyncedHand, m.PoolPreSeed.String(), m.TotalPool.String(), m.BookmakingFee.String(),
	)
	for i, o := range m.Outcomes {
		batch.Queue(`
			INSERT INTO outcomes (id, market_id, label, position, total_bets, bet_count, odds)
			VALUES ($1, $2, $3, $4, $5::numeric, $6, $7::numeric)
			ON CONFLICT (id) DO UPDATE SET
				label      = EXCLUDED.label,
				position   = EXCLUDED.position,
				total_bets = EXCLUDED.total_bets,
				bet_count  = EXCLUDED.bet_count`,
			o.ID, m.ID, o.Label, i, o.TotalBets.String(), o.BetCount, o.Odds.String(),
		)
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return fmt.Errorf("postgres: upsert market %s: begin: %w", m.ID, err)
	}
	defer func() { _ = tx.Rollback(ctx) }()

	br := tx.SendBatch(ctx, batch)
	for i := 0; i < batch.Len(); i++ {
		if _, err := br.Exec(); err != nil {
			br.Close()
			return fmt.Errorf("postgres: upsert market %s: item %d: %w", m.ID, i, err)
		}
	}
	if err := br.Close(); err != nil {
		return fmt.Errorf("postgres: upsert market %s: close batch: %w", m.ID, err)
	}
	if err := tx.Commit(ctx); err != nil {
		return fmt.Errorf("postgres: upsert market %s: commit: %w", m.ID, err)
	}
	return nil
}

// outcomes devuelve los outcomes de los mercados dados, en orden de posición.
func (s *MarketStore) outcomes(ctx context.Context, marketIDs []string) (map[string][]domain.Outcome, error) {
	rows, err := s.pool.Query(ctx, `
		SELECT market_id, id, label, total_bets::text, bet_count, odds::text
		FROM outcomes
		WHERE market_id = ANY($1)
		ORDER BY market_id, position, id`,
		marketIDs)
	if err != nil {
		return nil, fmt.Errorf("postgres: query outcomes: %w", err)
	}
	defer rows.Close()

	out := make(map[string][]domain.Outcome)
	for rows.Next() {
		var marketID, bets, odds string
		var o domain.Outcome
		if err := rows.Scan(&marketID, &o.ID, &o.Label, &bets, &o.BetCount, &odds); err != nil {
			return nil, fmt.Errorf("postgres: scan outcome: %w", err)
		}
		if o.TotalBets, err = decimal.NewFromString(bets); err != nil {
			return nil, fmt.Errorf("postgres: outcome %s total_bets: %w", o.ID, err)
		}
		if o.Odds, err = decimal.NewFromString(odds); err != nil {
			return nil, fmt.Errorf("postgres: outcome %s odds: %w", o.ID, err)
		}
		out[marketID] = append(out[marketID], o)
	}
	return out, rows.Err()
}

// transition aplica un cambio de estado condicionado y, si no afecta a ninguna
// fila, distingue entre mercado inexistente y transición no permitida.
func (s *MarketStore) transition(ctx context.Context, op, marketID, query string, args ...any) error {
	tag, err := s.pool.Exec(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("postgres: %s %s: %w", op, marketID, err)
	}
	if tag.RowsAffected() > 0 {
		return nil
	}

	var status string
	err = s.pool.QueryRow(ctx, `SELECT status FROM betting_markets WHERE id = $1`, marketID).Scan(&status)
	if errors.Is(err, pgx.ErrNoRows) {
		return fmt.Errorf("postgres: %s %s: %w", op, marketID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("postgres: %s %s: %w", op, marketID, err)
	}
	return fmt.Errorf("postgres: %s %s is %s: %w", op, marketID, strings.ToLower(status), domain.ErrInvalidTransition)
}

// scanMarket lee las columnas de marketColumns, precedidas por extra si las hay.
func scanMarket(row pgx.Row, extra ...any) (domain.BettingMarket, error) {
	var m domain.BettingMarket
	var status, resolution, preSeed, pool, fee string
	dest := append(extra,
		&m.ID, &m.TournamentID, &m.Title, &status, &resolution,
		&m.IsAutonomous, &m.IsPaused, &m.SuspensionReason, &m.LastSyncedHand,
		&preSeed, &pool, &fee,
		&m.AIProposedWinnerID, &m.DecisionTrace, &m.UpdatedAt,
	)
	if err := row.Scan(dest...); err != nil {
		return domain.BettingMarket{}, err
	}

	var err error
	if m.PoolPreSeed, err = decimal.NewFromString(preSeed); err != nil {
		return domain.BettingMarket{}, fmt.Errorf("pool_pre_seed: %w", err)
	}
	if m.TotalPool, err = decimal.NewFromString(pool); err != nil {
		return domain.BettingMarket{}, fmt.Errorf("total_pool: %w", err)
	}
	if m.BookmakingFee, err = decimal.NewFromString(fee); err != nil {
		return domain.BettingMarket{}, fmt.Errorf("bookmaking_fee: %w", err)
	}
	m.Status = domain.MarketStatus(status)
	m.ResolutionStatus = domain.ResolutionStatus(resolution)
	return m, nil
}

var (
	_ ports.MarketStore     = (*MarketStore)(nil)
	_ ports.SettlementStore = (*MarketStore)(nil)
	_ ports.MarketSeeder    = (*MarketStore)(nil)
)
