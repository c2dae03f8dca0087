package syncer

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
	"github.com/google/uuid"
)

// Config contiene la configuración del worker de sincronización.
type Config struct {
	Interval          time.Duration // pausa entre el fin de un tick y el inicio del siguiente
	TournamentTimeout time.Duration // tope por torneo dentro de un tick
	LockTTL           time.Duration // duración del lease por torneo (solo con LockManager)
}

// DefaultConfig devuelve la configuración por defecto.
func DefaultConfig() Config {
	return Config{
		Interval:          10 * time.Second,
		TournamentTimeout: 20 * time.Second,
		LockTTL:           30 * time.Second,
	}
}

// HandProber es el subconjunto de ports.HandSource que usa el worker.
type HandProber interface {
	FindLastHand(ctx context.Context, tableID string) (int, error)
}

// Recorder recibe las métricas del worker. Es opcional.
type Recorder interface {
	RecordTick(d time.Duration)
	RecordSync(outcome domain.SyncOutcome)
	RecordVerdict(v domain.Verdict)
	RecordStoreError(op string)
}

// Worker sincroniza los mercados autónomos con el estado de sus mesas.
// No hay instancia global: cmd/ crea uno y controla su ciclo de vida con Start/Stop.
type Worker struct {
	cfg       Config
	store     ports.MarketStore
	source    HandProber
	resolver  ports.Resolver
	odds      ports.OddsUpdater
	scheduler ports.Scheduler
	locks     ports.LockManager
	notifier  ports.Notifier
	recorder  Recorder

	mu      sync.Mutex
	running bool
	gen     uint64      // cambia en cada Start; un tick de otra generación no se reprograma
	cancel  func() bool // cancela el siguiente tick programado

	tickMu sync.Mutex // serializa los ticks entre un Stop y un Start seguidos

	stopping atomic.Bool
}

// New crea un Worker con las dependencias obligatorias inyectadas.
func New(
	cfg Config,
	store ports.MarketStore,
	source HandProber,
	resolver ports.Resolver,
	odds ports.OddsUpdater,
	scheduler ports.Scheduler,
) *Worker {
	def := DefaultConfig()
	if cfg.Interval <= 0 {
		cfg.Interval = def.Interval
	}
	if cfg.TournamentTimeout <= 0 {
		cfg.TournamentTimeout = def.TournamentTimeout
	}
	if cfg.LockTTL <= 0 {
		cfg.LockTTL = def.LockTTL
	}
	if scheduler == nil {
		scheduler = TimeScheduler{}
	}
	return &Worker{
		cfg:       cfg,
		store:     store,
		source:    source,
		resolver:  resolver,
		odds:      odds,
		scheduler: scheduler,
	}
}

// SetLockManager activa el lease por torneo entre instancias.
func (w *Worker) SetLockManager(l ports.LockManager) { w.locks = l }

// SetNotifier configura el destino de resúmenes y alertas.
func (w *Worker) SetNotifier(n ports.Notifier) { w.notifier = n }

// SetRecorder configura las métricas.
func (w *Worker) SetRecorder(r Recorder) { w.recorder = r }

// Start ejecuta un tick en el goroutine llamador y programa el siguiente
// Interval después de que termine. Llamarlo con el worker ya arrancado no hace nada.
func (w *Worker) Start(ctx context.Context) {
	w.mu.Lock()
	if w.running {
		w.mu.Unlock()
		return
	}
	w.running = true
	w.gen++
	gen := w.gen
	w.stopping.Store(false)
	w.mu.Unlock()

	slog.Info("sync worker starting",
		"interval", w.cfg.Interval,
		"tournament_timeout", w.cfg.TournamentTimeout,
		"locks", w.locks != nil,
	)
	w.tick(ctx, gen)
}

// Stop cancela el tick programado. Un tick en curso termina el torneo actual,
// no procesa los siguientes y no se reprograma.
func (w *Worker) Stop() {
	w.stopping.Store(true)

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running {
		return
	}
	w.running = false
	if w.cancel != nil {
		w.cancel()
		w.cancel = nil
	}
	slog.Info("sync worker stopped")
}

// Running indica si el worker tiene el loop activo.
func (w *Worker) Running() bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running
}

// Run arranca el loop y bloquea hasta que el contexto se cancele.
func (w *Worker) Run(ctx context.Context) error {
	w.Start(ctx)
	<-ctx.Done()
	w.Stop()
	return nil
}

// tick ejecuta un tick de la generación gen y programa el siguiente. Si entre
// medias hubo un Stop/Start, el tick termina sin reprogramarse.
func (w *Worker) tick(ctx context.Context, gen uint64) {
	if ctx.Err() != nil || !w.current(gen) {
		return
	}

	w.tickMu.Lock()
	if !w.current(gen) {
		w.tickMu.Unlock()
		return
	}
	w.RunOnce(ctx)
	w.tickMu.Unlock()

	w.mu.Lock()
	defer w.mu.Unlock()
	if !w.running || w.gen != gen || ctx.Err() != nil {
		return
	}
	w.cancel = w.scheduler.AfterFunc(w.cfg.Interval, func() { w.tick(ctx, gen) })
}

// current indica si gen es la generación del loop activo.
func (w *Worker) current(gen uint64) bool {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.running && w.gen == gen
}

// RunOnce ejecuta exactamente un tick: sincroniza todos los torneos en secuencia,
// notifica el resumen y devuelve un resultado por torneo procesado.
func (w *Worker) RunOnce(ctx context.Context) []domain.SyncResult {
	start := time.Now()
	tickID := uuid.NewString()

	groups, err := w.store.ListOpenAutonomousMarketsByTournament(ctx)
	if err != nil {
		slog.Error("list markets failed", "tick", tickID, "err", err)
		w.recordStoreError("list_markets")
		return nil
	}

	results := make([]domain.SyncResult, 0, len(groups))
	for _, g := range groups {
		if w.stopping.Load() || ctx.Err() != nil {
			slog.Info("tick interrupted", "tick", tickID, "pending", len(groups)-len(results))
			break
		}
		res := w.SyncTournament(ctx, g)
		w.recordSync(res)
		results = append(results, res)
	}

	if w.notifier != nil && len(results) > 0 {
		if err := w.notifier.Notify(ctx, results); err != nil {
			slog.Warn("notifier error", "err", err)
		}
	}

	elapsed := time.Since(start)
	if w.recorder != nil {
		w.recorder.RecordTick(elapsed)
	}
	counts := countOutcomes(results)
	slog.Info("sync tick complete",
		"tick", tickID,
		"tournaments", len(results),
		"synced", counts[domain.SyncSynced],
		"skipped", counts[domain.SyncSkipped],
		"paused", counts[domain.SyncPaused],
		"proposed", counts[domain.SyncProposed],
		"failed", counts[domain.SyncFailed],
		"duration", elapsed.Round(time.Millisecond),
	)
	return results
}

// SyncTournament procesa un torneo: avanza el progreso, recalcula cuotas y
// aplica el veredicto del compilador. Nunca devuelve error; los fallos quedan
// en SyncResult.Err con Outcome failed.
func (w *Worker) SyncTournament(ctx context.Context, g domain.TournamentGroup) (res domain.SyncResult) {
	start := time.Now()
	res = domain.SyncResult{
		TournamentID: g.TournamentID,
		TableID:      g.TableID,
		Markets:      len(g.Markets),
		MinSynced:    g.MinSynced(),
	}
	defer func() { res.Duration = time.Since(start) }()

	ctx, cancel := context.WithTimeout(ctx, w.cfg.TournamentTimeout)
	defer cancel()

	if w.locks != nil {
		release, err := w.locks.Acquire(ctx, "tournament:"+g.TournamentID, w.cfg.LockTTL)
		if errors.Is(err, domain.ErrLockHeld) {
			slog.Debug("tournament locked by another instance", "tournament", g.TournamentID)
			res.Outcome = domain.SyncLocked
			return res
		}
		if err != nil {
			return w.fail(ctx, res, fmt.Errorf("syncer.SyncTournament: acquire lock: %w", err))
		}
		defer release()
	}

	latest, err := w.source.FindLastHand(ctx, g.TableID)
	if err != nil {
		return w.fail(ctx, res, fmt.Errorf("syncer.SyncTournament: find last hand: %w", err))
	}
	res.LatestHand = latest

	if latest <= res.MinSynced {
		res.Outcome = domain.SyncSkipped
		return res
	}

	ids := g.MarketIDs()
	if err := w.store.UpdateSyncProgress(ctx, ids, latest); err != nil {
		w.recordStoreError("update_sync_progress")
		return w.fail(ctx, res, fmt.Errorf("syncer.SyncTournament: update progress: %w", err))
	}
	for _, id := range ids {
		if _, err := w.odds.PersistOdds(ctx, id); err != nil {
			w.recordStoreError("persist_odds")
			slog.Warn("persist odds failed", "tournament", g.TournamentID, "market", id, "err", err)
		}
	}

	v := w.resolver.Compile(ctx, g.TableID, latest)
	res.Verdict = &v
	if w.recorder != nil {
		w.recorder.RecordVerdict(v)
	}
	slog.Debug("verdict",
		"tournament", g.TournamentID,
		"hand", latest,
		"status", v.Status,
		"paused", v.IsPaused,
		"confidence", v.Confidence,
		"reasoning", v.Reasoning,
	)

	if v.IsPaused {
		return w.pause(ctx, g, v, res)
	}

	res.Outcome = domain.SyncSynced
	if v.Completed() {
		w.propose(ctx, g, v, &res)
		if len(res.Proposed) > 0 {
			res.Outcome = domain.SyncProposed
		}
	}
	return res
}

// pause suspende los mercados del torneo que aún no lo estaban.
func (w *Worker) pause(ctx context.Context, g domain.TournamentGroup, v domain.Verdict, res domain.SyncResult) domain.SyncResult {
	var ids []string
	for _, m := range g.Markets {
		if !m.IsPaused {
			ids = append(ids, m.ID)
		}
	}
	res.Outcome = domain.SyncPaused
	if len(ids) == 0 {
		return res
	}

	if err := w.store.PauseMarkets(ctx, ids, v.Reasoning); err != nil {
		w.recordStoreError("pause_markets")
		return w.fail(ctx, res, fmt.Errorf("syncer.pause: %w", err))
	}
	slog.Warn("markets paused",
		"tournament", g.TournamentID,
		"hand", v.Hand,
		"markets", len(ids),
		"reason", v.Reasoning,
	)
	w.alert(ctx, domain.Event{
		Kind:         domain.EventPaused,
		TournamentID: g.TournamentID,
		TableID:      g.TableID,
		MarketIDs:    ids,
		Title:        "Markets paused",
		Message:      fmt.Sprintf("hand %d: %s", v.Hand, v.Reasoning),
		At:           time.Now().UTC(),
	})
	return res
}

// propose busca en cada mercado el outcome del ganador y propone la resolución.
// Un mercado sin outcome que coincida se deja intacto.
func (w *Worker) propose(ctx context.Context, g domain.TournamentGroup, v domain.Verdict, res *domain.SyncResult) {
	for _, m := range g.Markets {
		o, ok := MatchOutcome(m, v.Winner)
		if !ok {
			slog.Warn("winner has no matching outcome",
				"tournament", g.TournamentID,
				"market", m.ID,
				"winner", v.Winner,
			)
			res.Unmatched = append(res.Unmatched, m.ID)
			continue
		}
		if err := w.store.ProposeWinner(ctx, m.ID, o.ID, v.DecisionTrace); err != nil {
			w.recordStoreError("propose_winner")
			slog.Warn("propose winner failed", "market", m.ID, "outcome", o.ID, "err", err)
			continue
		}
		slog.Info("winner proposed",
			"tournament", g.TournamentID,
			"market", m.ID,
			"outcome", o.Label,
			"hand", v.Hand,
		)
		res.Proposed = append(res.Proposed, m.ID)
	}

	if len(res.Proposed) > 0 {
		w.alert(ctx, domain.Event{
			Kind:         domain.EventProposed,
			TournamentID: g.TournamentID,
			TableID:      g.TableID,
			MarketIDs:    res.Proposed,
			Title:        "Winner proposed: " + v.Winner,
			Message:      v.Reasoning,
			At:           time.Now().UTC(),
		})
	}
	if len(res.Unmatched) > 0 {
		w.alert(ctx, domain.Event{
			Kind:         domain.EventUnmatched,
			TournamentID: g.TournamentID,
			TableID:      g.TableID,
			MarketIDs:    res.Unmatched,
			Title:        "Winner without outcome: " + v.Winner,
			Message:      "no outcome label matches the winner; market left open",
			At:           time.Now().UTC(),
		})
	}
}

// MatchOutcome busca el outcome cuyo label coincide con el ganador,
// sin distinguir mayúsculas e ignorando espacios en los extremos.
func MatchOutcome(m domain.BettingMarket, winner string) (domain.Outcome, bool) {
	winner = strings.TrimSpace(winner)
	if winner == "" {
		return domain.Outcome{}, false
	}
	for _, o := range m.Outcomes {
		if strings.EqualFold(strings.TrimSpace(o.Label), winner) {
			return o, true
		}
	}
	return domain.Outcome{}, false
}

func (w *Worker) fail(ctx context.Context, res domain.SyncResult, err error) domain.SyncResult {
	slog.Error("tournament sync failed", "tournament", res.TournamentID, "table", res.TableID, "err", err)
	res.Outcome = domain.SyncFailed
	res.Err = err
	w.alert(ctx, domain.Event{
		Kind:         domain.EventFailed,
		TournamentID: res.TournamentID,
		TableID:      res.TableID,
		Title:        "Sync failed",
		Message:      err.Error(),
		At:           time.Now().UTC(),
	})
	return res
}

func (w *Worker) alert(ctx context.Context, e domain.Event) {
	if w.notifier == nil {
		return
	}
	// El aviso sale aunque el torneo haya agotado su timeout.
	if err := w.notifier.Alert(context.WithoutCancel(ctx), e); err != nil {
		slog.Warn("alert failed", "kind", e.Kind, "err", err)
	}
}

func (w *Worker) recordSync(res domain.SyncResult) {
	if w.recorder != nil {
		w.recorder.RecordSync(res.Outcome)
	}
}

func (w *Worker) recordStoreError(op string) {
	if w.recorder != nil {
		w.recorder.RecordStoreError(op)
	}
}

func countOutcomes(results []domain.SyncResult) map[domain.SyncOutcome]int {
	counts := make(map[domain.SyncOutcome]int)
	for _, r := range results {
		counts[r.Outcome]++
	}
	return counts
}
