package models

// Status is the lifecycle state of an order.
type Status string

const (
	StatusDraft        Status = "draft" // only ever carried by in-memory drafts
	StatusNew          Status = "new"
	StatusQuoting      Status = "quoting"
	StatusApproved     Status = "approved"
	StatusInProduction Status = "in_production"
	StatusDelivered    Status = "delivered"
	StatusCancelled    Status = "cancelled"
)

// OrderStatuses lists the persisted statuses in lifecycle order.
var OrderStatuses = []Status{
	StatusNew,
	StatusQuoting,
	StatusApproved,
	StatusInProduction,
	StatusDelivered,
	StatusCancelled,
}

var transitions = map[Status][]Status{
	StatusNew:          {StatusQuoting, StatusCancelled},
	StatusQuoting:      {StatusApproved, StatusCancelled},
	StatusApproved:     {StatusInProduction, StatusCancelled},
	StatusInProduction: {StatusDelivered},
	StatusDelivered:    {},
	StatusCancelled:    {},
}

// Valid reports whether s is one of the persisted order statuses.
func (s Status) Valid() bool {
	_, ok := transitions[s]
	return ok
}

// Terminal reports whether no transition leaves s.
func (s Status) Terminal() bool {
	return s.Valid() && len(transitions[s]) == 0
}

// AllowedTransitions returns a copy of the destinations reachable from s.
func (s Status) AllowedTransitions() []Status {
	allowed := transitions[s]
	out := make([]Status, len(allowed))
	copy(out, allowed)
	return out
}

// CanTransitionTo reports whether the table has an edge s -> target.
func (s Status) CanTransitionTo(target Status) bool {
	for _, next := range transitions[s] {
		if next == target {
			return true
		}
	}
	return false
}
