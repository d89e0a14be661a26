package book

import (
	"github.com/troubladore/venuecore/internal/xerrors"
)

// OrderBook combines both ladders for one instrument and enforces the
// structural invariants of its variant (L1/L2/L3). Variant behavior is
// modeled as a tag plus dispatch, not inheritance, per the design notes.
type OrderBook struct {
	InstrumentID          string
	BookLevel             Level
	PricePrecision        int
	SizePrecision         int
	Bids                  *Ladder
	Asks                  *Ladder
	LastUpdateTimestampNs int64
}

// NewOrderBook constructs an empty book of the given variant.
func NewOrderBook(instrumentID string, level Level, pricePrecision, sizePrecision int) (*OrderBook, error) {
	if err := quantizePrice(pricePrecision); err != nil {
		return nil, err
	}
	if err := quantizeSize(sizePrecision); err != nil {
		return nil, err
	}
	return &OrderBook{
		InstrumentID:   instrumentID,
		BookLevel:      level,
		PricePrecision: pricePrecision,
		SizePrecision:  sizePrecision,
		Bids:           NewLadder(true),
		Asks:           NewLadder(false),
	}, nil
}

func (b *OrderBook) ladderFor(side Side) *Ladder {
	if side == Buy {
		return b.Bids
	}
	return b.Asks
}

// canonicalize applies the per-variant id-overwrite rule and reports
// whether a resting entry with that canonical id already exists.
func (b *OrderBook) canonicalize(o *Order) (existed bool, err error) {
	ladder := b.ladderFor(o.Side)
	switch b.BookLevel {
	case L3:
		if o.ID == "" {
			return false, xerrors.New("L3 order requires an id")
		}
	case L2:
		o.ID = L2ID(o.Price)
	case L1:
		o.ID = L1ID(o.Side)
	default:
		return false, xerrors.New("unknown book level")
	}
	_, existed = ladder.locations[o.ID]
	return existed, nil
}

// Add inserts a new resting order, dispatched by order.Side. Unsupported
// for L1 books, which only ever move through Update / UpdateTop.
func (b *OrderBook) Add(o Order) error {
	if b.BookLevel == L1 {
		return xerrors.New("L1 order book does not support add")
	}
	if _, err := b.canonicalize(&o); err != nil {
		return err
	}
	return b.ladderFor(o.Side).Add(o)
}

// Update upserts an order: replaces it if present, adds it if not, and
// deletes it if the incoming volume is zero. This upsert behavior is what
// lets ApplySnapshot call Update uniformly across L1/L2/L3.
func (b *OrderBook) Update(o Order) error {
	existed, err := b.canonicalize(&o)
	if err != nil {
		return err
	}
	if b.BookLevel == L1 {
		b.absorbCrossedFeed(o.Side, o.Price)
	}
	ladder := b.ladderFor(o.Side)
	switch {
	case o.Volume <= 0:
		if existed {
			return ladder.Delete(o)
		}
		return nil
	case b.BookLevel == L2 && existed:
		// Whole-level replacement: drop the existing single order at this
		// price then reinsert fresh, per the L2 "one order per level" rule.
		if err := ladder.Delete(o); err != nil {
			return err
		}
		return ladder.Add(o)
	case existed:
		return ladder.Update(o)
	default:
		return ladder.Add(o)
	}
}

func (b *OrderBook) hasCanonical(side Side, id string) bool {
	_, ok := b.ladderFor(side).locations[id]
	return ok
}

// Delete removes the resting order for the given side/id (L3) or the
// canonical per-price / per-side entry (L2 / L1).
func (b *OrderBook) Delete(o Order) error {
	if _, err := b.canonicalize(&o); err != nil {
		return err
	}
	ladder := b.ladderFor(o.Side)
	if !b.hasCanonical(o.Side, o.ID) {
		return nil
	}
	return ladder.Delete(o)
}

// absorbCrossedFeed clears the opposite side before an L1 insertion that
// would otherwise leave the book crossed, absorbing common feed races
// where bid and ask update non-atomically.
func (b *OrderBook) absorbCrossedFeed(side Side, price Price) {
	if side == Buy {
		if top := b.Asks.Top(); top != nil && price >= top.Price {
			b.Asks.Clear()
		}
	} else {
		if top := b.Bids.Top(); top != nil && price <= top.Price {
			b.Bids.Clear()
		}
	}
}

// ApplyDelta applies one incremental change, requiring an exact level
// match, then advances the timestamp to the delta's own.
func (b *OrderBook) ApplyDelta(d Delta) error {
	if d.Level != b.BookLevel {
		return xerrors.New("delta level does not match book level")
	}
	if err := b.applyDeltaOp(d); err != nil {
		return err
	}
	b.advanceTimestamp(d.TimestampNs)
	return nil
}

func (b *OrderBook) applyDeltaOp(d Delta) error {
	switch d.Type {
	case Add:
		return b.Add(d.Order)
	case UpdateDelta:
		return b.Update(d.Order)
	case Delete:
		return b.Delete(d.Order)
	default:
		return xerrors.New("unknown delta type")
	}
}

// ApplyDeltas applies a batch atomically: on any failure the book is left
// exactly as it was before the call.
func (b *OrderBook) ApplyDeltas(ds Deltas) error {
	if ds.Level != b.BookLevel {
		return xerrors.New("deltas level does not match book level")
	}
	snapshot := b.clone()
	for _, d := range ds.List {
		if d.Level != b.BookLevel {
			*b = *snapshot
			return xerrors.New("delta level does not match book level")
		}
		if err := b.applyDeltaOp(d); err != nil {
			*b = *snapshot
			return err
		}
		b.advanceTimestamp(d.TimestampNs)
	}
	return nil
}

func (b *OrderBook) clone() *OrderBook {
	c := &OrderBook{
		InstrumentID:          b.InstrumentID,
		BookLevel:             b.BookLevel,
		PricePrecision:        b.PricePrecision,
		SizePrecision:         b.SizePrecision,
		LastUpdateTimestampNs: b.LastUpdateTimestampNs,
		Bids:                  cloneLadder(b.Bids),
		Asks:                  cloneLadder(b.Asks),
	}
	return c
}

func cloneLadder(l *Ladder) *Ladder {
	out := NewLadder(l.Reverse)
	out.Levels = make([]PriceLevel, len(l.Levels))
	for i, lvl := range l.Levels {
		out.Levels[i] = PriceLevel{Price: lvl.Price, Orders: append([]Order(nil), lvl.Orders...)}
	}
	for k, v := range l.locations {
		out.locations[k] = v
	}
	return out
}

func (b *OrderBook) advanceTimestamp(ts int64) {
	if ts > b.LastUpdateTimestampNs {
		b.LastUpdateTimestampNs = ts
	}
}

// ApplySnapshot replaces both sides wholesale: Clear() then Update() each
// entry, uniformly across variants.
func (b *OrderBook) ApplySnapshot(s Snapshot) error {
	if s.Level != b.BookLevel {
		return xerrors.New("snapshot level does not match book level")
	}
	snapshot := b.clone()
	b.Bids.Clear()
	b.Asks.Clear()
	for _, e := range s.Bids {
		if err := b.Update(Order{Side: Buy, Price: e.Price, Volume: e.Volume}); err != nil {
			*b = *snapshot
			return err
		}
	}
	for _, e := range s.Asks {
		if err := b.Update(Order{Side: Sell, Price: e.Price, Volume: e.Volume}); err != nil {
			*b = *snapshot
			return err
		}
	}
	b.advanceTimestamp(s.TimestampNs)
	return nil
}

// UpdateTop mutates an L1 book directly from a top-of-book tick.
func (b *OrderBook) UpdateTop(quote *QuoteTick, trade *TradeTick) error {
	if b.BookLevel != L1 {
		return xerrors.New("UpdateTop is only valid for L1 books")
	}
	switch {
	case quote != nil:
		if err := b.Update(Order{Side: Buy, Price: quote.BidPrice, Volume: quote.BidSize}); err != nil {
			return err
		}
		if err := b.Update(Order{Side: Sell, Price: quote.AskPrice, Volume: quote.AskSize}); err != nil {
			return err
		}
		b.advanceTimestamp(quote.TimestampNs)
	case trade != nil:
		if err := b.Update(Order{Side: trade.AggressorSide, Price: trade.Price, Volume: trade.Size}); err != nil {
			return err
		}
		// Snap the opposite side to the aggressor price if it would
		// otherwise leave the book crossed.
		if trade.AggressorSide == Buy {
			if top := b.Asks.Top(); top != nil && top.Price <= trade.Price {
				if err := b.Update(Order{Side: Sell, Price: trade.Price, Volume: top.Volume()}); err != nil {
					return err
				}
			}
		} else {
			if top := b.Bids.Top(); top != nil && top.Price >= trade.Price {
				if err := b.Update(Order{Side: Buy, Price: trade.Price, Volume: top.Volume()}); err != nil {
					return err
				}
			}
		}
		b.advanceTimestamp(trade.TimestampNs)
	default:
		return xerrors.New("UpdateTop requires a quote or a trade")
	}
	return nil
}

// BestBidPrice returns the best bid price, if any.
func (b *OrderBook) BestBidPrice() (Price, bool) {
	if top := b.Bids.Top(); top != nil {
		return top.Price, true
	}
	return 0, false
}

// BestAskPrice returns the best ask price, if any.
func (b *OrderBook) BestAskPrice() (Price, bool) {
	if top := b.Asks.Top(); top != nil {
		return top.Price, true
	}
	return 0, false
}

// BestBidQty returns the resting volume at the best bid, if any.
func (b *OrderBook) BestBidQty() (Quantity, bool) {
	if top := b.Bids.Top(); top != nil {
		return top.Volume(), true
	}
	return 0, false
}

// BestAskQty returns the resting volume at the best ask, if any.
func (b *OrderBook) BestAskQty() (Quantity, bool) {
	if top := b.Asks.Top(); top != nil {
		return top.Volume(), true
	}
	return 0, false
}

// Spread returns AskPrice - BidPrice, if both sides are populated.
func (b *OrderBook) Spread() (Price, bool) {
	bid, ok1 := b.BestBidPrice()
	ask, ok2 := b.BestAskPrice()
	if !ok1 || !ok2 {
		return 0, false
	}
	return ask - bid, true
}

// Midpoint returns the average of best bid and best ask, if both exist,
// as a float64 in the book's own scaled price units.
func (b *OrderBook) Midpoint() (float64, bool) {
	bid, ok1 := b.BestBidPrice()
	ask, ok2 := b.BestAskPrice()
	if !ok1 || !ok2 {
		return 0, false
	}
	return (float64(bid) + float64(ask)) / 2, true
}

// TradeSide classifies a trade's aggressor against the current top of book.
func (b *OrderBook) TradeSide(trade TradeTick) Side {
	if ask, ok := b.BestAskPrice(); ok && trade.Price >= ask {
		return Buy
	}
	if bid, ok := b.BestBidPrice(); ok && trade.Price <= bid {
		return Sell
	}
	return Invalid
}

// CheckIntegrity asserts I1-I3. A violation is a bug signal (fatal
// assertion), not a runtime condition callers are meant to recover from.
func (b *OrderBook) CheckIntegrity() error {
	if bid, ok := b.BestBidPrice(); ok {
		if ask, ok2 := b.BestAskPrice(); ok2 && bid >= ask {
			return xerrors.New("integrity violation: crossed book")
		}
	}
	if err := checkStrictOrder(b.Bids); err != nil {
		return err
	}
	if err := checkStrictOrder(b.Asks); err != nil {
		return err
	}
	switch b.BookLevel {
	case L1:
		if len(b.Bids.Levels) > 1 || len(b.Asks.Levels) > 1 {
			return xerrors.New("integrity violation: L1 book holds more than one level per side")
		}
	case L2:
		for _, lvl := range append(append([]PriceLevel{}, b.Bids.Levels...), b.Asks.Levels...) {
			if len(lvl.Orders) != 1 {
				return xerrors.New("integrity violation: L2 level does not hold exactly one order")
			}
		}
	}
	return nil
}

func checkStrictOrder(l *Ladder) error {
	for i := 1; i < len(l.Levels); i++ {
		if l.Reverse && l.Levels[i-1].Price <= l.Levels[i].Price {
			return xerrors.New("integrity violation: bid ladder not strictly decreasing")
		}
		if !l.Reverse && l.Levels[i-1].Price >= l.Levels[i].Price {
			return xerrors.New("integrity violation: ask ladder not strictly increasing")
		}
	}
	return nil
}
