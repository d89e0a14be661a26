// Package book implements the price-time-priority limit order book: Ladder,
// Level and the L1/L2/L3 OrderBook variants.
package book

import (
	"fmt"

	"github.com/troubladore/venuecore/internal/xerrors"
)

// Side is the direction of an order or a trade aggressor.
type Side int

const (
	// Buy is a bid.
	Buy Side = iota
	// Sell is an ask.
	Sell
	// Invalid marks a trade that could not be classified against the book.
	Invalid
)

func (s Side) String() string {
	switch s {
	case Buy:
		return "BUY"
	case Sell:
		return "SELL"
	default:
		return "INVALID"
	}
}

// Level is the granularity at which an OrderBook is maintained.
type Level int

const (
	// L1 keeps at most one level per side (top of book only).
	L1 Level = iota
	// L2 keeps at most one order per level (aggregated depth).
	L2
	// L3 keeps full order-by-order depth per level.
	L3
)

func (l Level) String() string {
	switch l {
	case L1:
		return "L1"
	case L2:
		return "L2"
	case L3:
		return "L3"
	default:
		return "UNKNOWN"
	}
}

// Price is a scaled integer: the value is `raw / 10^precision` for the
// precision configured on the owning OrderBook. Kept as a plain int64
// rather than a decimal type, matching how the corpus represents money.
type Price int64

// Quantity is a scaled integer, same convention as Price.
type Quantity int64

// Order is a single resting order. In L2 books Id is overwritten with a
// canonical string derived from Price ("one order per level"); in L1 books
// Id is overwritten with the side name ("one level per side").
type Order struct {
	ID       string
	Side     Side
	Price    Price
	Volume   Quantity
	Sequence int64
}

// L2ID formats the canonical per-price id used by L2 books.
func L2ID(price Price) string {
	return fmt.Sprintf("L2-%d", price)
}

// L1ID formats the canonical per-side id used by L1 books.
func L1ID(side Side) string {
	return "L1-" + side.String()
}

func quantizePrice(precision int) error {
	if precision < 0 {
		return xerrors.New("price precision must be non-negative")
	}
	return nil
}

func quantizeSize(precision int) error {
	if precision < 0 {
		return xerrors.New("size precision must be non-negative")
	}
	return nil
}
