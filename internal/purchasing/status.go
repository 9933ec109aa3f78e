package purchasing

import (
	"tienda-backend/internal/apperr"
	"tienda-backend/internal/models"
)

var statusRank = map[models.OrderStatus]int{
	models.OrderStatusQuoting:   0,
	models.OrderStatusPaid:      1,
	models.OrderStatusInTransit: 2,
	models.OrderStatusReceived:  3,
}

func ValidStatus(s models.OrderStatus) bool {
	_, ok := statusRank[s]
	return ok || s == models.OrderStatusCancelled
}

// Frozen reports whether an order in status s no longer accepts changes
// to its lines or status.
func Frozen(s models.OrderStatus) bool {
	return s == models.OrderStatusReceived || s == models.OrderStatusCancelled
}

// Transition checks a status change. Orders only move forward
// (quoting, paid, in_transit, received) and may be cancelled until
// received. Staying in the same status is always allowed.
func Transition(from, to models.OrderStatus) error {
	if !ValidStatus(to) {
		return apperr.Validation("invalid status %q", to)
	}
	if from == to {
		return nil
	}
	if Frozen(from) {
		return apperr.Validation("order is %s and its status can no longer change", from)
	}
	if to == models.OrderStatusCancelled {
		return nil
	}
	if statusRank[to] < statusRank[from] {
		return apperr.Validation("cannot move order from %s back to %s", from, to)
	}
	return nil
}
