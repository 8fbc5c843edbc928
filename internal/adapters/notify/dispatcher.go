package notify

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// Eventos filtrables por configuración.
const (
	EventProposal  = "proposal"
	EventExecution = "execution"
	EventSummary   = "summary"
)

// Sender es un canal de notificación.
type Sender interface {
	Send(ctx context.Context, title, message string) error
	Name() string
}

// Dispatcher implementa ports.Notifier repartiendo cada evento a todos los
// senders. Un sender que falla no impide entregar a los demás.
type Dispatcher struct {
	senders []Sender
	events  map[string]bool // vacío = todos
}

// NewDispatcher crea un dispatcher. Si events está vacío se aceptan todos.
func NewDispatcher(senders []Sender, events []string) *Dispatcher {
	allowed := make(map[string]bool, len(events))
	for _, e := range events {
		if e = strings.TrimSpace(e); e != "" {
			allowed[e] = true
		}
	}
	return &Dispatcher{senders: senders, events: allowed}
}

// NotifyProposal avisa de una nueva propuesta live.
func (d *Dispatcher) NotifyProposal(ctx context.Context, t *domain.PendingTrade) error {
	title, msg := ProposalMessage(t)
	return d.Notify(ctx, EventProposal, title, msg)
}

// NotifyExecution avisa del resultado de un batch de ejecución.
func (d *Dispatcher) NotifyExecution(ctx context.Context, results []domain.ExecutionResult) error {
	if len(results) == 0 {
		return nil
	}
	title, msg := ExecutionMessage(results)
	return d.Notify(ctx, EventExecution, title, msg)
}

// NotifySummary envía el resumen del ciclo.
func (d *Dispatcher) NotifySummary(ctx context.Context, s domain.CycleSummary) error {
	if len(s.Runs) == 0 {
		return nil
	}
	title, msg := SummaryMessage(s)
	return d.Notify(ctx, EventSummary, title, msg)
}

// Notify envía si el evento está permitido.
func (d *Dispatcher) Notify(ctx context.Context, event, title, message string) error {
	if len(d.events) > 0 && !d.events[event] {
		slog.Debug("notify: event filtered", "event", event)
		return nil
	}

	var errs []string
	for _, s := range d.senders {
		if err := s.Send(ctx, title, message); err != nil {
			slog.Warn("notify: sender failed", "sender", s.Name(), "err", err)
			errs = append(errs, fmt.Sprintf("%s: %v", s.Name(), err))
		}
	}
	if len(errs) > 0 {
		return fmt.Errorf("notify: %d sender(s) failed: %s", len(errs), strings.Join(errs, "; "))
	}
	return nil
}
