package pokernow

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"math"
	"net/http"
	"time"

	"golang.org/x/time/rate"
)

const (
	defaultBase = "https://www.pokernow.club"

	// El log público no documenta límites; 5 req/s con ráfaga de 5 es lo que
	// aguanta sin devolver 429 con varias mesas en paralelo.
	defaultRatePerSec = 5
	defaultBurst      = 5

	defaultMaxHand    = 5000
	defaultBatchSize  = 5
	defaultBatchDelay = time.Second

	defaultMaxRetries = 2
	baseRetryWait     = 500 * time.Millisecond
)

// Config controla el cliente del log de PokerNow.
type Config struct {
	BaseURL    string
	MaxHand    int           // techo de la búsqueda binaria
	BatchSize  int           // manos en paralelo por batch en FetchHandRange
	BatchDelay time.Duration // pausa entre batches
	RatePerSec float64
	Burst      int
	MaxRetries int           // reintentos por request ante 5xx o error de red
	RetryWait  time.Duration // base del backoff exponencial
	Timeout    time.Duration
}

// DefaultConfig devuelve la configuración de producción.
func DefaultConfig() Config {
	return Config{
		BaseURL:    defaultBase,
		MaxHand:    defaultMaxHand,
		BatchSize:  defaultBatchSize,
		BatchDelay: defaultBatchDelay,
		RatePerSec: defaultRatePerSec,
		Burst:      defaultBurst,
		MaxRetries: defaultMaxRetries,
		RetryWait:  baseRetryWait,
		Timeout:    10 * time.Second,
	}
}

// ProbeRecorder recibe el resultado de cada request de mano (found, missing, error).
type ProbeRecorder interface {
	RecordProbe(result string)
}

// Client es el HTTP client del log de mesas con rate limiting y retries.
// Implementa ports.HandSource.
type Client struct {
	http    *http.Client
	cfg     Config
	limiter *rate.Limiter
	probes  ProbeRecorder
}

// NewClient crea un Client. Los campos vacíos de cfg toman el valor por defecto.
func NewClient(cfg Config) *Client {
	def := DefaultConfig()
	if cfg.BaseURL == "" {
		cfg.BaseURL = def.BaseURL
	}
	if cfg.MaxHand <= 0 {
		cfg.MaxHand = def.MaxHand
	}
	if cfg.BatchSize <= 0 {
		cfg.BatchSize = def.BatchSize
	}
	if cfg.BatchDelay < 0 {
		cfg.BatchDelay = 0
	}
	if cfg.RatePerSec <= 0 {
		cfg.RatePerSec = def.RatePerSec
	}
	if cfg.Burst <= 0 {
		cfg.Burst = def.Burst
	}
	if cfg.MaxRetries < 0 {
		cfg.MaxRetries = 0
	}
	if cfg.RetryWait <= 0 {
		cfg.RetryWait = def.RetryWait
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = def.Timeout
	}
	return &Client{
		http:    &http.Client{Timeout: cfg.Timeout},
		cfg:     cfg,
		limiter: rate.NewLimiter(rate.Limit(cfg.RatePerSec), cfg.Burst),
	}
}

// SetProbeRecorder conecta las métricas de requests.
func (c *Client) SetProbeRecorder(r ProbeRecorder) {
	c.probes = r
}

// statusError es una respuesta 4xx: la mano no existe (o no es accesible).
type statusError struct {
	code int
	body string
}

func (e *statusError) Error() string {
	return fmt.Sprintf("client error %d: %s", e.code, e.body)
}

func isMissing(err error) bool {
	var se *statusError
	return errors.As(err, &se)
}

// get hace un GET con rate limiting y retries y devuelve el body crudo.
func (c *Client) get(ctx context.Context, url string) ([]byte, error) {
	return c.doWithRetry(ctx, func() (*http.Response, error) {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, url, nil)
		if err != nil {
			return nil, err
		}
		req.Header.Set("Accept", "application/json")
		return c.http.Do(req)
	})
}

// doWithRetry reintenta con backoff exponencial los errores de red y los 5xx.
// Un 4xx no se reintenta: devuelve *statusError.
func (c *Client) doWithRetry(ctx context.Context, fn func() (*http.Response, error)) ([]byte, error) {
	maxRetries := c.cfg.MaxRetries
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := c.limiter.Wait(ctx); err != nil {
			return nil, fmt.Errorf("rate limiter: %w", err)
		}

		resp, err := fn()
		if err != nil {
			if ctx.Err() != nil || attempt == maxRetries {
				return nil, fmt.Errorf("request failed after %d retries: %w", attempt, err)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode == http.StatusTooManyRequests {
			resp.Body.Close()
			slog.Warn("rate limited by poker log API", "attempt", attempt+1)
			if attempt == maxRetries {
				return nil, fmt.Errorf("rate limited after %d retries", maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 500 {
			resp.Body.Close()
			if attempt == maxRetries {
				return nil, fmt.Errorf("server error %d after %d retries", resp.StatusCode, maxRetries)
			}
			c.sleep(ctx, attempt)
			continue
		}

		if resp.StatusCode >= 400 {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			resp.Body.Close()
			return nil, &statusError{code: resp.StatusCode, body: string(body)}
		}

		body, err := io.ReadAll(resp.Body)
		resp.Body.Close()
		if err != nil {
			return nil, fmt.Errorf("read body: %w", err)
		}
		return body, nil
	}
	return nil, fmt.Errorf("exhausted %d retries", maxRetries)
}

// sleep espera con backoff exponencial, respetando el contexto.
func (c *Client) sleep(ctx context.Context, attempt int) {
	wait := time.Duration(math.Pow(2, float64(attempt))) * c.cfg.RetryWait
	select {
	case <-time.After(wait):
	case <-ctx.Done():
	}
}

func (c *Client) record(result string) {
	if c.probes != nil {
		c.probes.RecordProbe(result)
	}
}
