// Package redislock reparte leases por torneo entre instancias del worker usando Redis.
package redislock

import (
	"context"
	"crypto/tls"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// unlockLua borra la clave solo si sigue guardando el token de quien la tomó.
const unlockLua = `
if redis.call('GET', KEYS[1]) == ARGV[1] then
    return redis.call('DEL', KEYS[1])
end
return 0
`

// Config contiene los parámetros de conexión a Redis.
type Config struct {
	Addr       string
	Password   string
	DB         int
	PoolSize   int
	TLSEnabled bool
}

// LockManager implementa ports.LockManager con SETNX + TTL y liberación por Lua.
type LockManager struct {
	rdb    redis.UniversalClient
	unlock *redis.Script
}

// New conecta con Redis, verifica la conexión y devuelve el LockManager.
func New(ctx context.Context, cfg Config) (*LockManager, error) {
	opts := &redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
		PoolSize: cfg.PoolSize,
	}
	if cfg.TLSEnabled {
		opts.TLSConfig = &tls.Config{MinVersion: tls.VersionTLS12}
	}

	rdb := redis.NewClient(opts)
	if err := rdb.Ping(ctx).Err(); err != nil {
		_ = rdb.Close()
		return nil, fmt.Errorf("redislock.New: ping %s: %w", cfg.Addr, err)
	}
	return NewWithClient(rdb), nil
}

// NewWithClient crea un LockManager sobre un cliente ya construido.
func NewWithClient(rdb redis.UniversalClient) *LockManager {
	return &LockManager{rdb: rdb, unlock: redis.NewScript(unlockLua)}
}

// Close cierra la conexión.
func (l *LockManager) Close() error {
	return l.rdb.Close()
}

func lockKey(key string) string {
	return "lock:" + key
}

// Acquire toma el lease de key durante ttl. Devuelve domain.ErrLockHeld si otra
// instancia lo tiene. La función de liberación es idempotente y usa su propio
// contexto, así funciona aunque el del llamador ya esté cancelado.
func (l *LockManager) Acquire(ctx context.Context, key string, ttl time.Duration) (func(), error) {
	token := uuid.NewString()
	lk := lockKey(key)

	ok, err := l.rdb.SetNX(ctx, lk, token, ttl).Result()
	if err != nil {
		return nil, fmt.Errorf("redislock.Acquire: %s: %w", key, err)
	}
	if !ok {
		return nil, domain.ErrLockHeld
	}

	released := false
	return func() {
		if released {
			return
		}
		released = true
		unlockCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = l.unlock.Run(unlockCtx, l.rdb, []string{lk}, token).Err()
	}, nil
}

var _ ports.LockManager = (*LockManager)(nil)
