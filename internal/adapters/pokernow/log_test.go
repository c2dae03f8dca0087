package pokernow_test

import (
	"context"
	"fmt"
	"net/http"
	"net/http/httptest"
	"os"
	"strconv"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/alejandrodnm/pokeroracle/internal/adapters/pokernow"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// --- helpers ---

func newTestClient(srv *httptest.Server, maxHand int) *pokernow.Client {
	return pokernow.NewClient(pokernow.Config{
		BaseURL:    srv.URL,
		MaxHand:    maxHand,
		BatchSize:  3,
		BatchDelay: time.Millisecond,
		RatePerSec: 10000,
		Burst:      1000,
		MaxRetries: 2,
		RetryWait:  time.Millisecond,
	})
}

// tableServer sirve manos 1..last; el resto devuelve 404.
func tableServer(t *testing.T, last int) (*httptest.Server, *atomic.Int64) {
	t.Helper()
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		assert.Equal(t, "/games/tbl1/log_v3", r.URL.Path)
		n, err := strconv.Atoi(r.URL.Query().Get("hand_number"))
		if err != nil || n < 1 || n > last {
			http.NotFound(w, r)
			return
		}
		w.Header().Set("Content-Type", "application/json")
		fmt.Fprintf(w, `[{"createdAt": %d, "msg": "-- ending hand #%d --"}, {"createdAt": %d, "msg": "-- starting hand #%d (id: x) --"}]`,
			1700000001000+n, n, 1700000000000+n, n)
	}))
	t.Cleanup(srv.Close)
	return srv, &hits
}

// --- tests ---

func TestFindLastHand(t *testing.T) {
	for _, last := range []int{0, 1, 2, 37, 63, 64} {
		t.Run(strconv.Itoa(last), func(t *testing.T) {
			srv, hits := tableServer(t, last)
			client := newTestClient(srv, 64)

			got, err := client.FindLastHand(context.Background(), "tbl1")
			require.NoError(t, err)
			assert.Equal(t, last, got)
			assert.LessOrEqual(t, hits.Load(), int64(8), "binary search must stay logarithmic")
		})
	}
}

func TestFindLastHand_RetriesTransientProbe(t *testing.T) {
	const last = 40
	var failed sync.Map
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("hand_number"))
		// Primera petición de cada mano: 503.
		if _, seen := failed.LoadOrStore(n, true); !seen {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if n > last {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `[{"createdAt": 1700000000000, "msg": "hand %d"}]`, n)
	}))
	defer srv.Close()

	client := newTestClient(srv, 64)
	got, err := client.FindLastHand(context.Background(), "tbl1")
	require.NoError(t, err)
	assert.Equal(t, last, got)
}

func TestFindLastHand_PersistentErrorCountsAsAbsent(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	client := newTestClient(srv, 16)
	got, err := client.FindLastHand(context.Background(), "tbl1")
	require.NoError(t, err)
	assert.Equal(t, 0, got)
}

func TestFindLastHand_ContextCancelled(t *testing.T) {
	srv, _ := tableServer(t, 10)
	client := newTestClient(srv, 64)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	_, err := client.FindLastHand(ctx, "tbl1")
	assert.ErrorIs(t, err, context.Canceled)
}

func TestFetchHand_Fixture(t *testing.T) {
	data, err := os.ReadFile("../../../testdata/fixtures/pokernow_hand_12.json")
	require.NoError(t, err)

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "12", r.URL.Query().Get("hand_number"))
		w.Header().Set("Content-Type", "application/json")
		w.Write(data)
	}))
	defer srv.Close()

	client := newTestClient(srv, 64)
	lines, ok := client.FetchHand(context.Background(), "tbl1", 12)
	require.True(t, ok)
	require.Len(t, lines, 21)
	assert.Equal(t, "-- ending hand #12 --", lines[0].Msg)
	assert.Equal(t, time.UnixMilli(1700000020000).UTC(), lines[0].At)
}

func TestFetchHand_EnvelopeAndISOTimestamps(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"logs": [{"at": "2024-05-01T18:30:00.000Z", "msg": "\"A @ 1\" checks"}]}`))
	}))
	defer srv.Close()

	client := newTestClient(srv, 64)
	lines, ok := client.FetchHand(context.Background(), "tbl1", 1)
	require.True(t, ok)
	require.Len(t, lines, 1)
	assert.Equal(t, `"A @ 1" checks`, lines[0].Msg)
	assert.Equal(t, time.Date(2024, 5, 1, 18, 30, 0, 0, time.UTC), lines[0].At)
}

func TestFetchHand_FailuresAreAbsence(t *testing.T) {
	cases := map[string]http.HandlerFunc{
		"not found":   func(w http.ResponseWriter, r *http.Request) { http.NotFound(w, r) },
		"bad json":    func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`{not json`)) },
		"empty array": func(w http.ResponseWriter, r *http.Request) { w.Write([]byte(`[]`)) },
		"server error": func(w http.ResponseWriter, r *http.Request) {
			w.WriteHeader(http.StatusBadGateway)
		},
	}
	for name, h := range cases {
		t.Run(name, func(t *testing.T) {
			srv := httptest.NewServer(h)
			defer srv.Close()

			lines, ok := newTestClient(srv, 64).FetchHand(context.Background(), "tbl1", 3)
			assert.False(t, ok)
			assert.Nil(t, lines)
		})
	}
}

func TestFetchHand_ClientErrorNotRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusForbidden)
	}))
	defer srv.Close()

	_, ok := newTestClient(srv, 64).FetchHand(context.Background(), "tbl1", 3)
	assert.False(t, ok)
	assert.Equal(t, int64(1), hits.Load())
}

func TestFetchHand_ServerErrorRetried(t *testing.T) {
	var hits atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		hits.Add(1)
		w.WriteHeader(http.StatusInternalServerError)
	}))
	defer srv.Close()

	_, ok := newTestClient(srv, 64).FetchHand(context.Background(), "tbl1", 3)
	assert.False(t, ok)
	assert.Equal(t, int64(3), hits.Load()) // 1 intento + 2 reintentos
}

func TestFetchHandRange_FiltersFailures(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		n, _ := strconv.Atoi(r.URL.Query().Get("hand_number"))
		if n == 4 {
			http.NotFound(w, r)
			return
		}
		fmt.Fprintf(w, `[{"createdAt": 1700000000000, "msg": "hand %d"}]`, n)
	}))
	defer srv.Close()

	hands := newTestClient(srv, 64).FetchHandRange(context.Background(), "tbl1", 1, 8)
	require.Len(t, hands, 7)

	numbers := make([]int, len(hands))
	for i, h := range hands {
		numbers[i] = h.Number
	}
	assert.Equal(t, []int{1, 2, 3, 5, 6, 7, 8}, numbers)
	assert.Equal(t, "hand 7", hands[5].Lines[0].Msg)
}

func TestFetchHandRange_EmptyRange(t *testing.T) {
	srv, hits := tableServer(t, 10)
	assert.Empty(t, newTestClient(srv, 64).FetchHandRange(context.Background(), "tbl1", 5, 4))
	assert.Equal(t, int64(0), hits.Load())
}

type probeCounter struct {
	mu     sync.Mutex
	counts map[string]int
}

func (p *probeCounter) RecordProbe(result string) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.counts[result]++
}

func TestFetchHand_RecordsProbes(t *testing.T) {
	srv, _ := tableServer(t, 2)
	client := newTestClient(srv, 64)
	rec := &probeCounter{counts: map[string]int{}}
	client.SetProbeRecorder(rec)

	client.FetchHand(context.Background(), "tbl1", 1)
	client.FetchHand(context.Background(), "tbl1", 9)

	assert.Equal(t, map[string]int{"found": 1, "missing": 1}, rec.counts)
}
