package services

import (
	"time"

	"muebles/internal/models"
)

// StateMachine validates order status changes and who may make them. It
// performs no I/O.
type StateMachine struct {
	now func() time.Time
}

func NewStateMachine() *StateMachine {
	return &StateMachine{now: func() time.Time { return time.Now().UTC() }}
}

// Transition builds the history entry for an administrator moving order to
// target. Authorization is checked before the transition table.
func (m *StateMachine) Transition(order *models.Order, target models.Status, actor models.Actor, comment string) (models.StatusChange, error) {
	if !actor.IsAdmin() {
		return models.StatusChange{}, models.ErrForbidden
	}
	if !target.Valid() {
		return models.StatusChange{}, models.NewValidationError("status", "unknown status '"+string(target)+"'")
	}
	if !order.Status.CanTransitionTo(target) {
		return models.StatusChange{}, &models.TransitionError{
			From:    order.Status,
			To:      target,
			Allowed: order.Status.AllowedTransitions(),
		}
	}
	changedBy := actor.ID
	return models.StatusChange{
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   target,
		ChangedBy:  &changedBy,
		Comment:    comment,
		ChangedAt:  m.now(),
	}, nil
}

// RequestQuote builds the system-attributed move from new to quoting that an
// owner may trigger on their own order.
func (m *StateMachine) RequestQuote(order *models.Order, actor models.Actor) (models.StatusChange, error) {
	if !actor.CanAccess(order.OwnerID) {
		return models.StatusChange{}, models.ErrForbidden
	}
	if order.Status != models.StatusNew {
		return models.StatusChange{}, &models.TransitionError{
			From:    order.Status,
			To:      models.StatusQuoting,
			Allowed: order.Status.AllowedTransitions(),
		}
	}
	return models.StatusChange{
		OrderID:    order.ID,
		FromStatus: order.Status,
		ToStatus:   models.StatusQuoting,
		Comment:    "Quote requested by the customer",
		ChangedAt:  m.now(),
	}, nil
}

// RecordQuote keeps the line prices that refer to lines of order and
// reports the ids that do not.
func (m *StateMachine) RecordQuote(order *models.Order, quote models.Quote, actor models.Actor) (models.Quote, []int64, error) {
	if !actor.IsAdmin() {
		return models.Quote{}, nil, models.ErrForbidden
	}
	owned := make(map[int64]bool, len(order.Lines))
	for _, l := range order.Lines {
		owned[l.ID] = true
	}
	matched := models.Quote{EstimatedTotal: quote.EstimatedTotal}
	var unmatched []int64
	for _, lq := range quote.Lines {
		if owned[lq.LineID] {
			matched.Lines = append(matched.Lines, lq)
		} else {
			unmatched = append(unmatched, lq.LineID)
		}
	}
	return matched, unmatched, nil
}
