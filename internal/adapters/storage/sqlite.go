package storage

// sqlite.go: store de mercados sobre SQLite (pure Go, sin CGo).
//
// Tablas:
//   - `tournaments`: torneo ↔ mesa de PokerNow.
//   - `betting_markets`: estado, pool y progreso de sincronización de cada mercado.
//   - `outcomes`: una fila por resultado apostable, con su cuota vigente.
//
// Los importes se guardan como TEXT (decimal.Decimal implementa Scanner/Valuer)
// para no perder precisión. Toda escritura multi-fila va en una transacción
// con un statement preparado, así un lector nunca ve un lote a medias.

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
	_ "modernc.org/sqlite"
)

const schema = `
CREATE TABLE IF NOT EXISTS tournaments (
    id       TEXT PRIMARY KEY,
    table_id TEXT NOT NULL,
    name     TEXT NOT NULL DEFAULT '',
    status   TEXT NOT NULL DEFAULT 'ACTIVE'
);

CREATE TABLE IF NOT EXISTS betting_markets (
    id                    TEXT PRIMARY KEY,
    tournament_id         TEXT    NOT NULL REFERENCES tournaments(id),
    title                 TEXT    NOT NULL DEFAULT '',
    status                TEXT    NOT NULL DEFAULT 'OPEN',
    resolution_status     TEXT    NOT NULL DEFAULT 'NONE',
    is_autonomous         INTEGER NOT NULL DEFAULT 1,
    is_paused             INTEGER NOT NULL DEFAULT 0,
    suspension_reason     TEXT    NOT NULL DEFAULT '',
    last_synced_hand      INTEGER NOT NULL DEFAULT 0,
    pool_pre_seed         TEXT    NOT NULL DEFAULT '0',
    total_pool            TEXT    NOT NULL DEFAULT '0',
    bookmaking_fee        TEXT    NOT NULL DEFAULT '0',
    ai_proposed_winner_id TEXT    NOT NULL DEFAULT '',
    decision_trace        TEXT    NOT NULL DEFAULT '',
    updated_at            INTEGER NOT NULL DEFAULT 0
);

CREATE TABLE IF NOT EXISTS outcomes (
    id         TEXT PRIMARY KEY,
    market_id  TEXT    NOT NULL REFERENCES betting_markets(id),
    label      TEXT    NOT NULL,
    position   INTEGER NOT NULL DEFAULT 0,
    total_bets TEXT    NOT NULL DEFAULT '0',
    bet_count  INTEGER NOT NULL DEFAULT 0,
    odds       TEXT    NOT NULL DEFAULT '0'
);

CREATE INDEX IF NOT EXISTS idx_markets_tournament ON betting_markets(tournament_id);
CREATE INDEX IF NOT EXISTS idx_markets_open       ON betting_markets(status, is_autonomous);
CREATE INDEX IF NOT EXISTS idx_outcomes_market    ON outcomes(market_id, position);
`

const marketColumns = `
	m.id, m.tournament_id, m.title, m.status, m.resolution_status,
	m.is_autonomous, m.is_paused, m.suspension_reason, m.last_synced_hand,
	m.pool_pre_seed, m.total_pool, m.bookmaking_fee,
	m.ai_proposed_winner_id, m.decision_trace, m.updated_at`

const openAutonomous = `
	FROM betting_markets m
	JOIN tournaments t ON t.id = m.tournament_id
	WHERE t.status = 'ACTIVE' AND m.status = 'OPEN' AND m.is_autonomous = 1`

// SQLiteStorage implementa ports.MarketStore y ports.SettlementStore usando SQLite.
type SQLiteStorage struct {
	db  *sql.DB
	now func() time.Time
}

// NewSQLiteStorage abre (o crea) la base de datos en la ruta dada y aplica el schema.
func NewSQLiteStorage(path string) (*SQLiteStorage, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("storage.NewSQLiteStorage: open %q: %w", path, err)
	}
	db.SetMaxOpenConns(1) // SQLite es single-writer
	db.SetMaxIdleConns(1)

	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("storage.NewSQLiteStorage: apply schema: %w", err)
	}
	return &SQLiteStorage{db: db, now: time.Now}, nil
}

// Close cierra la conexión a la base de datos.
func (s *SQLiteStorage) Close() error {
	return s.db.Close()
}

// ListOpenAutonomousMarketsByTournament devuelve los mercados OPEN y autónomos de
// torneos activos, agrupados por torneo y con sus outcomes.
func (s *SQLiteStorage) ListOpenAutonomousMarketsByTournament(ctx context.Context) ([]domain.TournamentGroup, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT t.table_id, t.status, `+marketColumns+openAutonomous+` ORDER BY m.tournament_id, m.id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOpenAutonomousMarketsByTournament: query markets: %w", err)
	}
	defer rows.Close()

	var groups []domain.TournamentGroup
	index := make(map[string]int)    // tournament id → posición en groups
	where := make(map[string][2]int) // market id → (grupo, mercado)
	for rows.Next() {
		var tableID, tStatus string
		m, err := scanMarket(rows, &tableID, &tStatus)
		if err != nil {
			return nil, fmt.Errorf("storage.ListOpenAutonomousMarketsByTournament: scan market: %w", err)
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
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("storage.ListOpenAutonomousMarketsByTournament: rows: %w", err)
	}
	if len(groups) == 0 {
		return nil, nil
	}

	orows, err := s.db.QueryContext(ctx,
		`SELECT o.market_id, o.id, o.label, o.total_bets, o.bet_count, o.odds
		 FROM outcomes o
		 WHERE o.market_id IN (SELECT m.id `+openAutonomous+`)
		 ORDER BY o.market_id, o.position, o.id`)
	if err != nil {
		return nil, fmt.Errorf("storage.ListOpenAutonomousMarketsByTournament: query outcomes: %w", err)
	}
	defer orows.Close()

	for orows.Next() {
		var marketID string
		var o domain.Outcome
		if err := orows.Scan(&marketID, &o.ID, &o.Label, &o.TotalBets, &o.BetCount, &o.Odds); err != nil {
			return nil, fmt.Errorf("storage.ListOpenAutonomousMarketsByTournament: scan outcome: %w", err)
		}
		if pos, ok := where[marketID]; ok {
			m := &groups[pos[0]].Markets[pos[1]]
			m.Outcomes = append(m.Outcomes, o)
		}
	}
	return groups, orows.Err()
}

// GetMarket devuelve un mercado con sus outcomes. Error domain.ErrNotFound si no existe.
func (s *SQLiteStorage) GetMarket(ctx context.Context, marketID string) (domain.BettingMarket, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+marketColumns+` FROM betting_markets m WHERE m.id = ?`, marketID)
	m, err := scanMarket(row)
	if errors.Is(err, sql.ErrNoRows) {
		return domain.BettingMarket{}, fmt.Errorf("storage.GetMarket: %s: %w", marketID, domain.ErrNotFound)
	}
	if err != nil {
		return domain.BettingMarket{}, fmt.Errorf("storage.GetMarket: scan %s: %w", marketID, err)
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, label, total_bets, bet_count, odds FROM outcomes WHERE market_id = ? ORDER BY position, id`,
		marketID)
	if err != nil {
		return domain.BettingMarket{}, fmt.Errorf("storage.GetMarket: query outcomes: %w", err)
	}
	defer rows.Close()

	for rows.Next() {
		var o domain.Outcome
		if err := rows.Scan(&o.ID, &o.Label, &o.TotalBets, &o.BetCount, &o.Odds); err != nil {
			return domain.BettingMarket{}, fmt.Errorf("storage.GetMarket: scan outcome: %w", err)
		}
		m.Outcomes = append(m.Outcomes, o)
	}
	return m, rows.Err()
}

// UpdateSyncProgress avanza last_synced_hand sin retrocederlo nunca.
func (s *SQLiteStorage) UpdateSyncProgress(ctx context.Context, marketIDs []string, hand int) error {
	now := s.now().UnixMilli()
	return s.batch(ctx, "storage.UpdateSyncProgress",
		`UPDATE betting_markets SET last_synced_hand = MAX(last_synced_hand, ?), updated_at = ? WHERE id = ?`,
		len(marketIDs), func(i int) []any { return []any{hand, now, marketIDs[i]} })
}

// WriteOutcomeOdds escribe todas las cuotas del mercado en una transacción.
// Si algún outcome no pertenece al mercado no se escribe ninguna.
func (s *SQLiteStorage) WriteOutcomeOdds(ctx context.Context, marketID string, odds []domain.OutcomeOdds) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.WriteOutcomeOdds: begin tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, `UPDATE outcomes SET odds = ? WHERE id = ? AND market_id = ?`)
	if err != nil {
		return fmt.Errorf("storage.WriteOutcomeOdds: prepare: %w", err)
	}
	defer stmt.Close()

	for _, o := range odds {
		res, err := stmt.ExecContext(ctx, o.Odds.StringFixed(2), o.OutcomeID, marketID)
		if err != nil {
			return fmt.Errorf("storage.WriteOutcomeOdds: update %s: %w", o.OutcomeID, err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("storage.WriteOutcomeOdds: outcome %s of %s: %w", o.OutcomeID, marketID, domain.ErrNotFound)
		}
	}
	if _, err := tx.ExecContext(ctx, `UPDATE betting_markets SET updated_at = ? WHERE id = ?`,
		s.now().UnixMilli(), marketID); err != nil {
		return fmt.Errorf("storage.WriteOutcomeOdds: touch market: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.WriteOutcomeOdds: commit: %w", err)
	}
	return nil
}

// PauseMarkets suspende los mercados abiertos dados con el motivo indicado.
func (s *SQLiteStorage) PauseMarkets(ctx context.Context, marketIDs []string, reason string) error {
	now := s.now().UnixMilli()
	return s.batch(ctx, "storage.PauseMarkets",
		`UPDATE betting_markets SET is_paused = 1, suspension_reason = ?, updated_at = ? WHERE id = ? AND status = 'OPEN'`,
		len(marketIDs), func(i int) []any { return []any{reason, now, marketIDs[i]} })
}

// ProposeWinner cierra un mercado abierto y deja la resolución en PROPOSED.
func (s *SQLiteStorage) ProposeWinner(ctx context.Context, marketID, outcomeID, decisionTrace string) error {
	var owner string
	err := s.db.QueryRowContext(ctx, `SELECT market_id FROM outcomes WHERE id = ?`, outcomeID).Scan(&owner)
	if errors.Is(err, sql.ErrNoRows) || (err == nil && owner != marketID) {
		return fmt.Errorf("storage.ProposeWinner: outcome %s of %s: %w", outcomeID, marketID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("storage.ProposeWinner: lookup outcome: %w", err)
	}

	return s.transition(ctx, "storage.ProposeWinner", marketID,
		`UPDATE betting_markets
		 SET status = 'CLOSED', resolution_status = 'PROPOSED',
		     ai_proposed_winner_id = ?, decision_trace = ?, updated_at = ?
		 WHERE id = ? AND status = 'OPEN'`,
		outcomeID, decisionTrace, s.now().UnixMilli(), marketID)
}

// ApproveProposal liquida un mercado con resolución propuesta.
func (s *SQLiteStorage) ApproveProposal(ctx context.Context, marketID string) error {
	return s.transition(ctx, "storage.ApproveProposal", marketID,
		`UPDATE betting_markets SET status = 'SETTLED', resolution_status = 'APPROVED', updated_at = ?
		 WHERE id = ? AND status = 'CLOSED' AND resolution_status = 'PROPOSED'`,
		s.now().UnixMilli(), marketID)
}

// RejectProposal reabre un mercado propuesto y descarta el ganador.
func (s *SQLiteStorage) RejectProposal(ctx context.Context, marketID string) error {
	return s.transition(ctx, "storage.RejectProposal", marketID,
		`UPDATE betting_markets SET status = 'OPEN', resolution_status = 'REJECTED', ai_proposed_winner_id = '', updated_at = ?
		 WHERE id = ? AND status = 'CLOSED' AND resolution_status = 'PROPOSED'`,
		s.now().UnixMilli(), marketID)
}

// ResumeMarket quita la pausa de un mercado abierto.
func (s *SQLiteStorage) ResumeMarket(ctx context.Context, marketID string) error {
	return s.transition(ctx, "storage.ResumeMarket", marketID,
		`UPDATE betting_markets SET is_paused = 0, suspension_reason = '', updated_at = ?
		 WHERE id = ? AND status = 'OPEN' AND is_paused = 1`,
		s.now().UnixMilli(), marketID)
}

// UpsertTournament crea o actualiza un torneo.
func (s *SQLiteStorage) UpsertTournament(ctx context.Context, t domain.Tournament) error {
	if t.Status == "" {
		t.Status = domain.TournamentActive
	}
	if _, err := s.db.ExecContext(ctx, `
		INSERT INTO tournaments (id, table_id, name, status) VALUES (?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			table_id = excluded.table_id,
			name     = excluded.name,
			status   = excluded.status`,
		t.ID, t.TableID, t.Name, string(t.Status),
	); err != nil {
		return fmt.Errorf("storage.UpsertTournament: %s: %w", t.ID, err)
	}
	return nil
}

// UpsertMarket crea o actualiza un mercado y sus outcomes. El progreso de
// sincronización y la resolución de un mercado existente no se tocan.
func (s *SQLiteStorage) UpsertMarket(ctx context.Context, m domain.BettingMarket) error {
	m = withMarketDefaults(m)

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("storage.UpsertMarket: begin tx: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO betting_markets
			(id, tournament_id, title, status, resolution_status, is_autonomous, is_paused,
			 suspension_reason, last_synced_hand, pool_pre_seed, total_pool, bookmaking_fee, updated_at)
		VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			title          = excluded.title,
			is_autonomous  = excluded.is_autonomous,
			pool_pre_seed  = excluded.pool_pre_seed,
			total_pool     = excluded.total_pool,
			bookmaking_fee = excluded.bookmaking_fee,
			updated_at     = excluded.updated_at`,
		m.ID, m.TournamentID, m.Title, string(m.Status), string(m.ResolutionStatus), m.IsAutonomous, m.IsPaused,
		m.SuspensionReason, m.LastSyncedHand, m.PoolPreSeed, m.TotalPool, m.BookmakingFee, s.now().UnixMilli(),
	); err != nil {
		return fmt.Errorf("storage.UpsertMarket: market %s: %w", m.ID, err)
	}

	stmt, err := tx.PrepareContext(ctx, `
		INSERT INTO outcomes (id, market_id, label, position, total_bets, bet_count, odds)
		VALUES (?, ?, ?, ?, ?, ?, ?)
		ON CONFLICT(id) DO UPDATE SET
			label      = excluded.label,
			position   = excluded.position,
			total_bets = excluded.total_bets,
			bet_count  = excluded.bet_count`)
	if err != nil {
		return fmt.Errorf("storage.UpsertMarket: prepare: %w", err)
	}
	defer stmt.Close()

	for i, o := range m.Outcomes {
		if _, err := stmt.ExecContext(ctx, o.ID, m.ID, o.Label, i, o.TotalBets, o.BetCount, o.Odds); err != nil {
			return fmt.Errorf("storage.UpsertMarket: outcome %s: %w", o.ID, err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("storage.UpsertMarket: commit: %w", err)
	}
	return nil
}

// --- helpers internos ---

// rowScanner cubre *sql.Row y *sql.Rows.
type rowScanner interface {
	Scan(dest ...any) error
}

// scanMarket lee las columnas de marketColumns, precedidas por extra si las hay.
func scanMarket(r rowScanner, extra ...any) (domain.BettingMarket, error) {
	var m domain.BettingMarket
	var status, resolution string
	var updated int64
	dest := append(extra,
		&m.ID, &m.TournamentID, &m.Title, &status, &resolution,
		&m.IsAutonomous, &m.IsPaused, &m.SuspensionReason, &m.LastSyncedHand,
		&m.PoolPreSeed, &m.TotalPool, &m.BookmakingFee,
		&m.AIProposedWinnerID, &m.DecisionTrace, &updated,
	)
	if err := r.Scan(dest...); err != nil {
		return domain.BettingMarket{}, err
	}
	m.Status = domain.MarketStatus(status)
	m.ResolutionStatus = domain.ResolutionStatus(resolution)
	if updated > 0 {
		m.UpdatedAt = time.UnixMilli(updated).UTC()
	}
	return m, nil
}

// batch ejecuta un statement preparado n veces dentro de una transacción.
func (s *SQLiteStorage) batch(ctx context.Context, op, query string, n int, args func(i int) []any) error {
	if n == 0 {
		return nil
	}
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("%s: begin tx: %w", op, err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx, query)
	if err != nil {
		return fmt.Errorf("%s: prepare: %w", op, err)
	}
	defer stmt.Close()

	for i := 0; i < n; i++ {
		if _, err := stmt.ExecContext(ctx, args(i)...); err != nil {
			return fmt.Errorf("%s: exec: %w", op, err)
		}
	}
	if err := tx.Commit(); err != nil {
		return fmt.Errorf("%s: commit: %w", op, err)
	}
	return nil
}

// transition aplica un cambio de estado condicionado. Si no afecta a ninguna fila
// distingue entre mercado inexistente y estado que no admite el cambio.
func (s *SQLiteStorage) transition(ctx context.Context, op, marketID, query string, args ...any) error {
	res, err := s.db.ExecContext(ctx, query, args...)
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, marketID, err)
	}
	if n, _ := res.RowsAffected(); n > 0 {
		return nil
	}

	var status string
	err = s.db.QueryRowContext(ctx, `SELECT status FROM betting_markets WHERE id = ?`, marketID).Scan(&status)
	if errors.Is(err, sql.ErrNoRows) {
		return fmt.Errorf("%s: %s: %w", op, marketID, domain.ErrNotFound)
	}
	if err != nil {
		return fmt.Errorf("%s: %s: %w", op, marketID, err)
	}
	return fmt.Errorf("%s: %s is %s: %w", op, marketID, strings.ToLower(status), domain.ErrInvalidTransition)
}

// withMarketDefaults completa los estados vacíos de un mercado nuevo.
func withMarketDefaults(m domain.BettingMarket) domain.BettingMarket {
	if m.Status == "" {
		m.Status = domain.MarketOpen
	}
	if m.ResolutionStatus == "" {
		m.ResolutionStatus = domain.ResolutionNone
	}
	return m
}

var (
	_ ports.MarketStore     = (*SQLiteStorage)(nil)
	_ ports.SettlementStore = (*SQLiteStorage)(nil)
	_ ports.MarketSeeder    = (*SQLiteStorage)(nil)
)
