package archive

import (
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// Key devuelve la ruta del objeto de una mano: tables/{table}/hands/{n}.json.
func Key(tableID string, hand int) string {
	return fmt.Sprintf("tables/%s/hands/%d.json", tableID, hand)
}

// record es el formato archivado de una mano.
type record struct {
	TableID    string    `json:"table_id"`
	Hand       int       `json:"hand"`
	ArchivedAt time.Time `json:"archived_at"`
	Lines      []line    `json:"lines"`
}

type line struct {
	At  time.Time `json:"at"`
	Msg string    `json:"msg"`
}

// Source decora un ports.HandSource y archiva cada mano descargada.
// Un fallo al archivar se registra y nunca altera lo que ve el llamador.
// Las manos aún sin "-- ending hand" se vuelven a subir hasta que terminan.
type Source struct {
	inner ports.HandSource
	blobs ports.BlobWriter
	now   func() time.Time

	mu     sync.Mutex
	tables map[string]*archived
}

// maxTracked es cuántas manos terminadas se recuerdan por mesa. Las más viejas
// se pliegan en floor.
const maxTracked = 64

// archived recuerda qué manos terminadas de una mesa ya están en el bucket.
// Toda mano <= floor cuenta como archivada.
type archived struct {
	floor int
	done  map[int]bool
}

func (a *archived) has(n int) bool {
	return n <= a.floor || a.done[n]
}

func (a *archived) add(n int) {
	if a.has(n) {
		return
	}
	a.done[n] = true
	for len(a.done) > maxTracked {
		lowest := n
		for h := range a.done {
			lowest = min(lowest, h)
		}
		delete(a.done, lowest)
		a.floor = max(a.floor, lowest)
	}
}

// NewSource crea el decorador.
func NewSource(inner ports.HandSource, blobs ports.BlobWriter) *Source {
	return &Source{
		inner:  inner,
		blobs:  blobs,
		now:    time.Now,
		tables: make(map[string]*archived),
	}
}

// FindLastHand delega sin archivar: la búsqueda binaria no descarga manos completas.
func (s *Source) FindLastHand(ctx context.Context, tableID string) (int, error) {
	return s.inner.FindLastHand(ctx, tableID)
}

// FetchHand descarga la mano y la archiva si existe.
func (s *Source) FetchHand(ctx context.Context, tableID string, n int) ([]domain.LogLine, bool) {
	lines, ok := s.inner.FetchHand(ctx, tableID, n)
	if ok {
		s.archive(ctx, tableID, n, lines)
	}
	return lines, ok
}

// FetchHandRange descarga el rango y archiva cada mano encontrada.
func (s *Source) FetchHandRange(ctx context.Context, tableID string, start, end int) []domain.HandLog {
	hands := s.inner.FetchHandRange(ctx, tableID, start, end)
	for _, h := range hands {
		s.archive(ctx, tableID, h.Number, h.Lines)
	}
	return hands
}

func (s *Source) archive(ctx context.Context, tableID string, n int, lines []domain.LogLine) {
	key := Key(tableID, n)

	s.mu.Lock()
	skip := s.tables[tableID] != nil && s.tables[tableID].has(n)
	s.mu.Unlock()
	if skip {
		return
	}

	rec := record{TableID: tableID, Hand: n, ArchivedAt: s.now().UTC(), Lines: make([]line, len(lines))}
	for i, l := range lines {
		rec.Lines[i] = line{At: l.At, Msg: l.Msg}
	}
	data, err := json.Marshal(rec)
	if err != nil {
		slog.Warn("archive encode failed", "table", tableID, "hand", n, "err", err)
		return
	}
	if err := s.blobs.Put(ctx, key, data, "application/json"); err != nil {
		slog.Warn("archive put failed", "table", tableID, "hand", n, "err", err)
		return
	}

	if finished(lines) {
		s.mu.Lock()
		t := s.tables[tableID]
		if t == nil {
			t = &archived{done: make(map[int]bool)}
			s.tables[tableID] = t
		}
		t.add(n)
		s.mu.Unlock()
	}
}

// finished indica si el log ya contiene el cierre de la mano.
func finished(lines []domain.LogLine) bool {
	for _, l := range lines {
		if strings.HasPrefix(strings.TrimSpace(l.Msg), "-- ending hand #") {
			return true
		}
	}
	return false
}

var _ ports.HandSource = (*Source)(nil)
