package pokernow

// log.go: acceso al log de manos de una mesa.
//
// FindLastHand hace búsqueda binaria sobre 1..MaxHand: ~13 requests para 5000 manos
// frente a una por mano con un barrido lineal. Cada probe pasa por doWithRetry, así
// que un 5xx o un corte de red se reintenta antes de contarse como "no existe".
// Un 4xx cuenta como ausencia sin reintentos.
//
// FetchHandRange lanza BatchSize requests concurrentes por batch y espera BatchDelay
// entre batches. El rate limiter de doWithRetry pone el techo global.

import (
	"context"
	"fmt"
	"log/slog"
	"net/url"
	"sort"
	"sync"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
)

const logPath = "/games/%s/log_v3"

// Resultados de probe para métricas.
const (
	probeFound   = "found"
	probeMissing = "missing"
	probeError   = "error"
)

// FindLastHand devuelve el número de la última mano de la mesa, o 0 si no hay ninguna.
// Solo falla si el contexto se cancela durante la búsqueda.
func (c *Client) FindLastHand(ctx context.Context, tableID string) (int, error) {
	low, high := 1, c.cfg.MaxHand
	last := 0
	probes := 0

	for low <= high {
		if err := ctx.Err(); err != nil {
			return 0, fmt.Errorf("pokernow.FindLastHand: %w", err)
		}
		mid := low + (high-low)/2
		probes++
		if _, ok := c.FetchHand(ctx, tableID, mid); ok {
			last = mid
			low = mid + 1
		} else {
			high = mid - 1
		}
	}
	if err := ctx.Err(); err != nil {
		return 0, fmt.Errorf("pokernow.FindLastHand: %w", err)
	}

	slog.Debug("last hand located", "table", tableID, "hand", last, "probes", probes)
	return last, nil
}

// FetchHand devuelve las líneas de la mano n (newest-first, como las sirve el servicio).
// Cualquier fallo, incluida una respuesta vacía, se reporta como ok=false.
func (c *Client) FetchHand(ctx context.Context, tableID string, n int) ([]domain.LogLine, bool) {
	lines, err := c.fetchHand(ctx, tableID, n)
	switch {
	case err == nil && len(lines) > 0:
		c.record(probeFound)
		return lines, true
	case err == nil, isMissing(err):
		c.record(probeMissing)
	default:
		c.record(probeError)
		slog.Debug("hand fetch failed", "table", tableID, "hand", n, "err", err)
	}
	return nil, false
}

func (c *Client) fetchHand(ctx context.Context, tableID string, n int) ([]domain.LogLine, error) {
	u := fmt.Sprintf("%s"+logPath+"?hand_number=%d", c.cfg.BaseURL, url.PathEscape(tableID), n)
	body, err := c.get(ctx, u)
	if err != nil {
		return nil, fmt.Errorf("pokernow.fetchHand %d: %w", n, err)
	}
	lines, err := decodeLog(body)
	if err != nil {
		return nil, fmt.Errorf("pokernow.fetchHand %d: %w", n, err)
	}
	return lines, nil
}

// FetchHandRange devuelve las manos [start, end] que se pudieron obtener, ordenadas.
// Las que fallan se omiten sin afectar al resto.
func (c *Client) FetchHandRange(ctx context.Context, tableID string, start, end int) []domain.HandLog {
	if start < 1 {
		start = 1
	}
	if end < start {
		return nil
	}

	numbers := make([]int, 0, end-start+1)
	for n := start; n <= end; n++ {
		numbers = append(numbers, n)
	}

	var hands []domain.HandLog
	for i, batch := range splitBatches(numbers, c.cfg.BatchSize) {
		if i > 0 && !c.pause(ctx) {
			break
		}
		hands = append(hands, c.fetchBatch(ctx, tableID, batch)...)
	}

	sort.Slice(hands, func(i, j int) bool { return hands[i].Number < hands[j].Number })
	slog.Debug("hand range fetched",
		"table", tableID,
		"start", start,
		"end", end,
		"fetched", len(hands),
	)
	return hands
}

// fetchBatch pide las manos del batch en paralelo y descarta las que fallan.
func (c *Client) fetchBatch(ctx context.Context, tableID string, batch []int) []domain.HandLog {
	resultCh := make(chan domain.HandLog, len(batch))
	var wg sync.WaitGroup

	for _, n := range batch {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if lines, ok := c.FetchHand(ctx, tableID, n); ok {
				resultCh <- domain.HandLog{Number: n, Lines: lines}
			}
		}()
	}

	// Cerrar el canal cuando todos los goroutines terminen
	go func() {
		wg.Wait()
		close(resultCh)
	}()

	out := make([]domain.HandLog, 0, len(batch))
	for h := range resultCh {
		out = append(out, h)
	}
	return out
}

// pause espera BatchDelay. Devuelve false si el contexto se canceló.
func (c *Client) pause(ctx context.Context) bool {
	if c.cfg.BatchDelay <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(c.cfg.BatchDelay)
	defer t.Stop()
	select {
	case <-t.C:
		return true
	case <-ctx.Done():
		return false
	}
}

// splitBatches divide numbers en slices de tamaño máximo size.
func splitBatches(numbers []int, size int) [][]int {
	if size <= 0 {
		size = defaultBatchSize
	}
	batches := make([][]int, 0, (len(numbers)+size-1)/size)
	for i := 0; i < len(numbers); i += size {
		batches = append(batches, numbers[i:min(i+size, len(numbers))])
	}
	return batches
}
