package domain

import "errors"

var (
	// ErrNotFound se devuelve cuando un mercado, outcome o torneo no existe.
	ErrNotFound = errors.New("not found")
	// ErrLockHeld se devuelve cuando otra instancia tiene el lease del torneo.
	ErrLockHeld = errors.New("lock held by another instance")
	// ErrInvalidTransition se devuelve cuando el mercado no admite el cambio de estado pedido.
	ErrInvalidTransition = errors.New("invalid market transition")
)
