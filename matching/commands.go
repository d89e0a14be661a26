package matching

import "github.com/troubladore/venuecore/book"

// SubmitOrder requests a new working order. LinkID, when set, pairs this
// order with the next (or previous) accepted order carrying the same
// LinkID into a standalone OCO pair: filling or canceling either leg
// cancels the other. A bracket's take-profit/stop-loss children are linked
// the same way internally, but LinkID lets two otherwise-independent
// SubmitOrder commands form a pair without going through
// SubmitBracketOrder at all.
type SubmitOrder struct {
	ClientOrderID string
	InstrumentID  string
	AccountID     string
	Side          book.Side
	Type          OrderType
	TimeInForce   TimeInForce
	Instruction   ExecutionInstruction
	Price         book.Price
	TriggerPrice  book.Price
	Volume        book.Quantity
	ExpireTimeNs  int64
	LinkID        string
}

// SubmitBracketOrder submits an entry plus a linked take-profit and/or
// stop-loss: the children activate only once the entry fills, and are
// canceled together if the entry is rejected or canceled first.
type SubmitBracketOrder struct {
	Entry      SubmitOrder
	TakeProfit *SubmitOrder
	StopLoss   *SubmitOrder
}

// UpdateOrder amends price and/or volume of a resting order.
type UpdateOrder struct {
	AccountID     string
	VenueOrderID  string
	ClientOrderID string
	NewPrice      book.Price
	NewVolume     book.Quantity
}

// CancelOrder cancels a resting order.
type CancelOrder struct {
	AccountID     string
	VenueOrderID  string
	ClientOrderID string
}
