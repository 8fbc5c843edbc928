package ports

import (
	"context"

	"github.com/alejandrodnm/geobot/internal/domain"
)

// Notifier avisa de eventos del bot a los canales configurados.
// Es best effort: quien llama registra el error y sigue.
type Notifier interface {
	NotifyProposal(ctx context.Context, t *domain.PendingTrade) error
	NotifyExecution(ctx context.Context, results []domain.ExecutionResult) error
	NotifySummary(ctx context.Context, s domain.CycleSummary) error
}
