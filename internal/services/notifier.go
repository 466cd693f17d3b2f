package services

import (
	"context"

	"github.com/freshfoldapp/freshfold/internal/models"
)

// OrderNotifier receives lifecycle events after they have been committed.
// Implementations must not block order processing; failures are theirs to
// log and retry.
type OrderNotifier interface {
	OrderCreated(ctx context.Context, order *models.Order)
	OrderStatusChanged(ctx context.Context, order *models.Order, entry models.StatusHistoryEntry)
}

type noopOrderNotifier struct{}

func (noopOrderNotifier) OrderCreated(context.Context, *models.Order) {}

func (noopOrderNotifier) OrderStatusChanged(context.Context, *models.Order, models.StatusHistoryEntry) {
}
