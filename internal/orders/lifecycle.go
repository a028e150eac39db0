package orders

import (
	"github.com/google/uuid"

	"github.com/angelmondragon/orderstock-backend/pkg/enums"
	pkgerrors "github.com/angelmondragon/orderstock-backend/pkg/errors"
)

// forwardTransitions lists, per status, the statuses AdvanceStatus may move to.
var forwardTransitions = map[enums.OrderStatus][]enums.OrderStatus{
	enums.OrderStatusPending:    {enums.OrderStatusConfirmed},
	enums.OrderStatusConfirmed:  {enums.OrderStatusInProgress},
	enums.OrderStatusInProgress: {enums.OrderStatusDelivered},
	enums.OrderStatusDelivered:  {},
	enums.OrderStatusCancelled:  {},
}

var cancellableFrom = []enums.OrderStatus{
	enums.OrderStatusPending,
	enums.OrderStatusConfirmed,
}

var returnableFrom = []enums.OrderStatus{
	enums.OrderStatusDelivered,
	enums.OrderStatusConfirmed,
}

type terminationKind string

const (
	terminationCancel terminationKind = "cancel"
	terminationReturn terminationKind = "return"
)

// AllowedTransitions returns the statuses reachable from current via AdvanceStatus.
func AllowedTransitions(current enums.OrderStatus) []enums.OrderStatus {
	next := forwardTransitions[current]
	out := make([]enums.OrderStatus, len(next))
	copy(out, next)
	return out
}

// CanAdvance reports whether AdvanceStatus may move an order from current to target.
func CanAdvance(current, target enums.OrderStatus) bool {
	return contains(forwardTransitions[current], target)
}

func checkAdvance(orderID uuid.UUID, current, target enums.OrderStatus) error {
	if CanAdvance(current, target) {
		return nil
	}
	return illegalTransition(orderID, current, target)
}

func checkTermination(orderID uuid.UUID, current enums.OrderStatus, kind terminationKind) error {
	if current == enums.OrderStatusCancelled {
		return pkgerrors.New(pkgerrors.CodeAlreadyCancelled, "order already cancelled").
			WithDetails(map[string]any{"order_id": orderID.String(), "operation": string(kind)})
	}
	allowed := cancellableFrom
	if kind == terminationReturn {
		allowed = returnableFrom
	}
	if !contains(allowed, current) {
		err := illegalTransition(orderID, current, enums.OrderStatusCancelled)
		err.Details().(map[string]any)["operation"] = string(kind)
		return err
	}
	return nil
}

func illegalTransition(orderID uuid.UUID, from, to enums.OrderStatus) *pkgerrors.Error {
	return pkgerrors.New(pkgerrors.CodeIllegalTransition, "order cannot move from "+from.String()+" to "+to.String()).
		WithDetails(map[string]any{
			"order_id": orderID.String(),
			"from":     from,
			"to":       to,
		})
}

func contains(statuses []enums.OrderStatus, target enums.OrderStatus) bool {
	for _, s := range statuses {
		if s == target {
			return true
		}
	}
	return false
}
