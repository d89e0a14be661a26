// Package cache reconstructs Account, Order, and Position aggregates by
// replaying serialized events from a store.Store, and holds per-strategy
// state as a plain hash.
package cache

import "github.com/troubladore/venuecore/book"

// EventKind tags the concrete payload carried by an Event envelope.
type EventKind string

const (
	KindAccountState     EventKind = "AccountState"
	KindOrderInitialized EventKind = "OrderInitialized"
	KindOrderUpdated     EventKind = "OrderUpdated"
	KindOrderFilled      EventKind = "OrderFilled"
	KindOrderCanceled    EventKind = "OrderCanceled"
	KindOrderRejected    EventKind = "OrderRejected"
	KindOrderExpired     EventKind = "OrderExpired"
)

// Event is the append-only envelope stored for every aggregate mutation.
// Payload is one of the Kind-tagged structs below, carried as `any` so the
// Serializer can marshal the concrete type without a central switch here.
type Event struct {
	Kind    EventKind `json:"kind"`
	Payload any       `json:"payload"`
}

// AccountStateEvent carries one currency's balance snapshot.
type AccountStateEvent struct {
	AccountID string     `json:"account_id"`
	Currency  string     `json:"currency"`
	Total     book.Price `json:"total"`
	Free      book.Price `json:"free"`
	Locked    book.Price `json:"locked"`
	Ts        int64      `json:"ts"`
}

// OrderInitializedEvent is the constructor event for an Order aggregate.
type OrderInitializedEvent struct {
	OrderID      string      `json:"order_id"`
	InstrumentID string      `json:"instrument_id"`
	Side         book.Side   `json:"side"`
	OrderType    string      `json:"order_type"`
	Price        book.Price  `json:"price"`
	TriggerPrice book.Price  `json:"trigger_price"`
	Volume       book.Quantity `json:"volume"`
	Ts           int64       `json:"ts"`
}

// OrderUpdatedEvent records an amend to price and/or volume.
type OrderUpdatedEvent struct {
	OrderID   string        `json:"order_id"`
	NewPrice  book.Price    `json:"new_price"`
	NewVolume book.Quantity `json:"new_volume"`
	Ts        int64         `json:"ts"`
}

// OrderFilledEvent is one execution slice against an order. PositionID
// links the fill to the position it opened, flipped, or reduced.
type OrderFilledEvent struct {
	OrderID    string        `json:"order_id"`
	PositionID string        `json:"position_id"`
	Side       book.Side     `json:"side"`
	FillPrice  book.Price    `json:"fill_price"`
	FillQty    book.Quantity `json:"fill_qty"`
	Commission book.Price    `json:"commission"`
	Ts         int64         `json:"ts"`
}

// OrderCanceledEvent is a terminal cancel.
type OrderCanceledEvent struct {
	OrderID string `json:"order_id"`
	Ts      int64  `json:"ts"`
}

// OrderRejectedEvent is a terminal reject, naming the reason.
type OrderRejectedEvent struct {
	OrderID string `json:"order_id"`
	Reason  string `json:"reason"`
	Ts      int64  `json:"ts"`
}

// OrderExpiredEvent is a terminal expiry.
type OrderExpiredEvent struct {
	OrderID string `json:"order_id"`
	Ts      int64  `json:"ts"`
}
