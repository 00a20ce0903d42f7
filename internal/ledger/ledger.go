package ledger

import (
	"context"
	"time"

	"github.com/google/uuid"

	"stock-alert-service/internal/models"
)

// Ledger is the append-only record of alert events. Implementations must
// make Append atomic and return List results in insertion order.
type Ledger interface {
	Append(ctx context.Context, e models.AlertEvent) error
	Get(ctx context.Context, id uuid.UUID) (models.AlertEvent, error)
	List(ctx context.Context, f models.AlertFilter) ([]models.AlertEvent, error)
	UpdateStatus(ctx context.Context, id uuid.UUID, status models.AlertStatus) (models.AlertEvent, error)

	// ClaimEvents marks the given undispatched events as dispatched at `at`
	// and returns the ones this call claimed.
	ClaimEvents(ctx context.Context, ids []uuid.UUID, at time.Time) ([]models.AlertEvent, error)
	// ClaimPending claims every pending, undispatched event of the given
	// frequency created before `before`.
	ClaimPending(ctx context.Context, freq models.Frequency, before, at time.Time) ([]models.AlertEvent, error)
}
