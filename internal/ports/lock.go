package ports

import (
	"context"
	"time"
)

// LockManager reparte leases por torneo entre instancias del worker.
type LockManager interface {
	// Acquire toma el lease de key durante ttl. Devuelve la función que lo libera.
	// Error domain.ErrLockHeld si otra instancia lo tiene.
	Acquire(ctx context.Context, key string, ttl time.Duration) (release func(), err error)
}
