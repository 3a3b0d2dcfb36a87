package domain

import "slices"

// OrderStatus enumerates the order lifecycle states across both channels.
type OrderStatus string

const (
	StatusPending        OrderStatus = "pending"
	StatusPreparing      OrderStatus = "preparing"
	StatusOutForDelivery OrderStatus = "out_for_delivery"
	StatusReadyForPickup OrderStatus = "ready_for_pickup"
	StatusDelivered      OrderStatus = "delivered"
	StatusPickedUp       OrderStatus = "picked_up"
	StatusCancelled      OrderStatus = "cancelled"
)

// StatusFlow is a closed transition graph over order statuses. Delivery and
// takeaway orders run two instances of the same machine with channel-specific
// fulfilment states.
type StatusFlow struct {
	Initial     OrderStatus
	Transitions map[OrderStatus][]OrderStatus
}

var deliveryFlow = StatusFlow{
	Initial: StatusPending,
	Transitions: map[OrderStatus][]OrderStatus{
		StatusPending:        {StatusPreparing, StatusCancelled},
		StatusPreparing:      {StatusOutForDelivery, StatusCancelled},
		StatusOutForDelivery: {StatusDelivered, StatusCancelled},
	},
}

var takeawayFlow = StatusFlow{
	Initial: StatusPending,
	Transitions: map[OrderStatus][]OrderStatus{
		StatusPending:        {StatusPreparing, StatusCancelled},
		StatusPreparing:      {StatusReadyForPickup, StatusCancelled},
		StatusReadyForPickup: {StatusPickedUp, StatusCancelled},
	},
}

// FlowFor returns the status flow governing the given channel.
func FlowFor(channel OrderChannel) StatusFlow {
	if channel == ChannelTakeaway {
		return takeawayFlow
	}
	return deliveryFlow
}

// Knows reports whether the status belongs to this flow's enumeration.
func (f StatusFlow) Knows(status OrderStatus) bool {
	if status == f.Initial || status == StatusCancelled {
		return true
	}
	for from, next := range f.Transitions {
		if status == from || slices.Contains(next, status) {
			return true
		}
	}
	return false
}

// CanTransition reports whether the flow permits moving from current to
// target. Terminal states have no outgoing transitions.
func (f StatusFlow) CanTransition(current, target OrderStatus) bool {
	next, ok := f.Transitions[current]
	if !ok {
		return false
	}
	return slices.Contains(next, target)
}

// IsTerminal reports whether the status has no outgoing transitions in this
// flow.
func (f StatusFlow) IsTerminal(status OrderStatus) bool {
	next, ok := f.Transitions[status]
	return !ok || len(next) == 0
}
