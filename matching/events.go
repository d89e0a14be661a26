package matching

import "github.com/troubladore/venuecore/book"

// OrderAccepted acknowledges a working order was accepted onto the book.
type OrderAccepted struct {
	VenueOrderID  string
	ClientOrderID string
	InstrumentID  string
	Ts            int64
}

// OrderRejected acknowledges a command was rejected. It is emitted for
// SubmitOrder rejections and, distinctly, for reject_update/reject_cancel
// on unknown ids, with the Command field naming the offending command.
type OrderRejected struct {
	ClientOrderID string
	VenueOrderID  string
	InstrumentID  string
	Reason        string
	Command       string // "submit" | "update" | "cancel"
	Ts            int64
}

// OrderTriggered marks a stop order's (stop-market or stop-limit)
// transition from ACCEPTED to TRIGGERED once its stop condition fires.
type OrderTriggered struct {
	VenueOrderID string
	Ts           int64
}

// OrderFilled is one execution slice.
type OrderFilled struct {
	VenueOrderID string
	ExecutionID  string
	InstrumentID string
	PositionID   string
	Side         book.Side
	FillPrice    book.Price
	FillQty      book.Quantity
	Commission   book.Price
	Currency     string
	Ts           int64
}

// OrderCanceled marks a working order as terminally canceled.
type OrderCanceled struct {
	VenueOrderID string
	Ts           int64
}

// OrderExpired marks a working order as terminally expired past its
// ExpireTimeNs.
type OrderExpired struct {
	VenueOrderID string
	Ts           int64
}

// OrderUpdated acknowledges a successful amend.
type OrderUpdated struct {
	VenueOrderID string
	NewPrice     book.Price
	NewVolume    book.Quantity
	Ts           int64
}

// AccountState reports a post-mutation balance snapshot for one currency.
type AccountState struct {
	AccountID string
	Currency  string
	Total     book.Price
	Free      book.Price
	Locked    book.Price
	Ts        int64
}
