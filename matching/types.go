// Package matching implements the simulated exchange: per-instrument
// order books, a working-order state machine, OCO/bracket linkage, and
// account/commission accounting.
package matching

import "github.com/troubladore/venuecore/book"

// OrderType enumerates the supported order styles.
type OrderType int

const (
	Limit OrderType = iota
	Market
	StopMarket
	StopLimit
)

func (t OrderType) String() string {
	switch t {
	case Limit:
		return "LIMIT"
	case Market:
		return "MARKET"
	case StopMarket:
		return "STOP_MARKET"
	case StopLimit:
		return "STOP_LIMIT"
	default:
		return "UNKNOWN"
	}
}

// OrderStatus is the working-order state machine's current state.
type OrderStatus int

const (
	StatusSubmitted OrderStatus = iota
	StatusAccepted
	StatusTriggered
	StatusFilled
	StatusCanceled
	StatusRejected
	StatusExpired
)

func (s OrderStatus) String() string {
	switch s {
	case StatusSubmitted:
		return "SUBMITTED"
	case StatusAccepted:
		return "ACCEPTED"
	case StatusTriggered:
		return "TRIGGERED"
	case StatusFilled:
		return "FILLED"
	case StatusCanceled:
		return "CANCELED"
	case StatusRejected:
		return "REJECTED"
	case StatusExpired:
		return "EXPIRED"
	default:
		return "UNKNOWN"
	}
}

func (s OrderStatus) terminal() bool {
	switch s {
	case StatusFilled, StatusCanceled, StatusRejected, StatusExpired:
		return true
	default:
		return false
	}
}

// TimeInForce records the order's time-in-force. The expiration pass keys
// off ExpireTimeNs alone and does not read TimeInForce.
type TimeInForce int

const (
	GTC TimeInForce = iota
	GTD
)

// ExecutionInstruction marks order-entry constraints. Both are checked once,
// when the order is submitted; fills do not re-check reduce-only.
type ExecutionInstruction struct {
	PostOnly   bool
	ReduceOnly bool
}

// WorkingOrder is the exchange's live, mutable representation of one
// order; it is distinct from cache.Order, the read-only event-sourced
// projection strategies query after the fact.
type WorkingOrder struct {
	VenueOrderID  string
	ClientOrderID string
	InstrumentID  string
	Side          book.Side
	Type          OrderType
	TimeInForce   TimeInForce
	Instruction   ExecutionInstruction
	Price         book.Price // limit price; meaningless for Market
	TriggerPrice  book.Price // stop trigger; meaningless for Limit/Market
	Volume        book.Quantity
	FilledVolume  book.Quantity
	Status        OrderStatus
	ExpireTimeNs  int64 // 0 means GTC / never
	OCOGroupID    string // shared with exactly one other working order; see registerOCOLink
	BracketParent string // VenueOrderID of the parent, empty if none

	// NotionalLocked is the portion of the account's Locked balance still
	// reserved against this order's unfilled remainder. It is set once the
	// order actually reserves balance (accept, or bracket-child activation)
	// and drawn down as fills consume it, so a staged-but-never-activated
	// bracket child (which reserved nothing) can't accidentally unlock
	// balance it never held.
	NotionalLocked book.Price
}

func (o *WorkingOrder) remaining() book.Quantity {
	return o.Volume - o.FilledVolume
}

// Balance is one currency's accounting: total, free (usable), and locked
// (reserved against working orders) amounts, all in the currency's
// scaled-integer representation.
type Balance struct {
	Total  book.Price
	Free   book.Price
	Locked book.Price
}

// Account holds per-currency balances plus cumulative commissions paid,
// with an optional frozen mode that suppresses balance mutation while
// still emitting derived events for observability.
type Account struct {
	ID          string
	Balances    map[string]Balance
	Commissions map[string]book.Price
	Frozen      bool
}

// NewAccount builds an account with the given starting free balance in
// one currency.
func NewAccount(id, currency string, startingFree book.Price) *Account {
	return &Account{
		ID:          id,
		Balances:    map[string]Balance{currency: {Total: startingFree, Free: startingFree}},
		Commissions: make(map[string]book.Price),
	}
}

// Position is the exchange's live per-instrument net position.
type Position struct {
	ID           string
	InstrumentID string
	Side         book.Side
	Volume       book.Quantity
	AvgPrice     book.Price
	RealizedPnL  book.Price
}
