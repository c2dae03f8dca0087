package notify

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/pokeroracle/internal/domain"
	"github.com/alejandrodnm/pokeroracle/internal/ports"
)

// Notifier implementa ports.Notifier: el resumen de cada tick va a la consola
// y los eventos, además, a los canales externos cuyo tipo esté permitido.
type Notifier struct {
	console *Console
	senders []Sender
	events  map[domain.EventKind]bool // vacío = todos
}

// NewNotifier crea el notificador. console puede ser nil (sin salida por terminal).
func NewNotifier(console *Console, senders []Sender, events []string) *Notifier {
	allowed := make(map[domain.EventKind]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[domain.EventKind(e)] = true
		}
	}
	return &Notifier{console: console, senders: senders, events: allowed}
}

// Notify delega el resumen del tick en la consola.
func (n *Notifier) Notify(ctx context.Context, results []domain.SyncResult) error {
	if n.console == nil {
		return nil
	}
	return n.console.Notify(ctx, results)
}

// Alert imprime el evento y lo reparte a todos los canales. El fallo de un
// canal no impide la entrega a los demás; los errores se devuelven juntos.
func (n *Notifier) Alert(ctx context.Context, e domain.Event) error {
	if n.console != nil {
		_ = n.console.Alert(ctx, e)
	}
	if len(n.events) > 0 && !n.events[e.Kind] {
		slog.Debug("event filtered out", "kind", e.Kind)
		return nil
	}

	title := fmt.Sprintf("[%s] %s", e.TournamentID, e.Title)
	message := e.Message
	if len(e.MarketIDs) > 0 {
		message += "\nmarkets: " + strings.Join(e.MarketIDs, ", ")
	}

	var errs []error
	for _, s := range n.senders {
		if err := s.Send(ctx, title, message); err != nil {
			slog.Error("sender failed", "sender", s.Name(), "err", err)
			errs = append(errs, err)
			continue
		}
		slog.Debug("notification sent", "sender", s.Name(), "kind", e.Kind)
	}
	return errors.Join(errs...)
}

var _ ports.Notifier = (*Notifier)(nil)
var _ ports.Notifier = (*Console)(nil)
