package book

import (
	"sort"

	"github.com/troubladore/venuecore/internal/xerrors"
)

// Ladder is one side of a book: an ordered sequence of PriceLevels, sorted
// descending when Reverse (bids) and ascending otherwise (asks). Within a
// level, orders preserve insertion order (price-time priority).
type Ladder struct {
	Reverse   bool
	Levels    []PriceLevel
	locations map[string]Price
}

// NewLadder builds an empty ladder for one side of a book.
func NewLadder(reverse bool) *Ladder {
	return &Ladder{Reverse: reverse, locations: make(map[string]Price)}
}

func (l *Ladder) less(a, b Price) bool {
	if l.Reverse {
		return a > b
	}
	return a < b
}

// search returns the index at which price is, or would be inserted.
func (l *Ladder) search(price Price) int {
	return sort.Search(len(l.Levels), func(i int) bool {
		if l.Levels[i].Price == price {
			return true
		}
		return !l.less(l.Levels[i].Price, price)
	})
}

func (l *Ladder) findLevel(price Price) (int, bool) {
	idx := l.search(price)
	if idx < len(l.Levels) && l.Levels[idx].Price == price {
		return idx, true
	}
	return idx, false
}

// Add inserts an order into the ladder, creating a new level if needed.
func (l *Ladder) Add(o Order) error {
	if l.locations == nil {
		l.locations = make(map[string]Price)
	}
	if _, exists := l.locations[o.ID]; exists {
		return xerrors.New("order id already present in ladder: " + o.ID)
	}
	idx, ok := l.findLevel(o.Price)
	if ok {
		l.Levels[idx].add(o)
	} else {
		lvl := PriceLevel{Price: o.Price, Orders: []Order{o}}
		l.Levels = append(l.Levels, PriceLevel{})
		copy(l.Levels[idx+1:], l.Levels[idx:])
		l.Levels[idx] = lvl
	}
	l.locations[o.ID] = o.Price
	return nil
}

// Update locates the order by id and replaces it in place. A zero-volume
// update deletes the order (mirrors the underlying feed semantics where a
// depleted level is announced as a zero-size update rather than a delete).
func (l *Ladder) Update(o Order) error {
	oldPrice, exists := l.locations[o.ID]
	if !exists {
		return xerrors.New("update of unknown order id: " + o.ID)
	}
	if o.Volume <= 0 {
		return l.Delete(o)
	}
	if oldPrice == o.Price {
		idx, ok := l.findLevel(oldPrice)
		if !ok {
			return xerrors.New("ladder index corrupt for price level")
		}
		l.Levels[idx].replace(o)
		return nil
	}
	if err := l.Delete(Order{ID: o.ID, Price: oldPrice}); err != nil {
		return err
	}
	return l.Add(o)
}

// Delete removes the order by id, dropping the level if it becomes empty.
func (l *Ladder) Delete(o Order) error {
	price, exists := l.locations[o.ID]
	if !exists {
		return xerrors.New("delete of unknown order id: " + o.ID)
	}
	idx, ok := l.findLevel(price)
	if !ok {
		return xerrors.New("ladder index corrupt for price level")
	}
	if !l.Levels[idx].removeByID(o.ID) {
		return xerrors.New("order id not found at expected level: " + o.ID)
	}
	delete(l.locations, o.ID)
	if len(l.Levels[idx].Orders) == 0 {
		l.Levels = append(l.Levels[:idx], l.Levels[idx+1:]...)
	}
	return nil
}

// Top returns the best level, or nil if the ladder is empty.
func (l *Ladder) Top() *PriceLevel {
	if len(l.Levels) == 0 {
		return nil
	}
	return &l.Levels[0]
}

// Depth returns up to the top n levels.
func (l *Ladder) Depth(n int) []PriceLevel {
	if n > len(l.Levels) {
		n = len(l.Levels)
	}
	out := make([]PriceLevel, n)
	copy(out, l.Levels[:n])
	return out
}

// Prices returns the set of resting price points, best first.
func (l *Ladder) Prices() []Price {
	out := make([]Price, len(l.Levels))
	for i, lvl := range l.Levels {
		out[i] = lvl.Price
	}
	return out
}

// Volumes returns the per-level resting volume, best first.
func (l *Ladder) Volumes() []Quantity {
	out := make([]Quantity, len(l.Levels))
	for i, lvl := range l.Levels {
		out[i] = lvl.Volume()
	}
	return out
}

// Exposures returns the cumulative notional (price*volume) reachable by
// walking the ladder from the top through each level in turn.
func (l *Ladder) Exposures() []float64 {
	out := make([]float64, len(l.Levels))
	var cum float64
	for i, lvl := range l.Levels {
		cum += float64(lvl.Price) * float64(lvl.Volume())
		out[i] = cum
	}
	return out
}

// Clear empties the ladder. Idempotent.
func (l *Ladder) Clear() {
	l.Levels = nil
	l.locations = make(map[string]Price)
}

// crosses reports whether limitPrice, held by an order on the opposite side
// of this ladder, still reaches into level price. Buy limits walk asks
// (ascending) while limitPrice >= level price; sell limits walk bids
// (descending) while limitPrice <= level price.
func crosses(incomingSide Side, limitPrice, levelPrice Price) bool {
	if incomingSide == Buy {
		return limitPrice >= levelPrice
	}
	return limitPrice <= levelPrice
}

// Crosses reports whether an order on incomingSide at limitPrice reaches
// a resting level at levelPrice, exported for callers outside this
// package (e.g. the matching engine) that walk a ladder themselves.
func Crosses(incomingSide Side, limitPrice, levelPrice Price) bool {
	return crosses(incomingSide, limitPrice, levelPrice)
}

// SimulateFills is a pure, non-mutating query: if an order of the given
// side/price/volume executed against this ladder right now, what fills
// would it produce? It never mutates ladder state.
func (l *Ladder) SimulateFills(order Order) []Fill {
	return l.simulate(order, false)
}

// SimulateMarketFills is the unbounded counterpart used for market orders,
// which have no limit price to stop the walk.
func (l *Ladder) SimulateMarketFills(order Order) []Fill {
	return l.simulate(order, true)
}

func (l *Ladder) simulate(order Order, unbounded bool) []Fill {
	var fills []Fill
	remaining := order.Volume
	for _, lvl := range l.Levels {
		if remaining <= 0 {
			break
		}
		if !unbounded && !crosses(order.Side, order.Price, lvl.Price) {
			break
		}
		for _, resting := range lvl.Orders {
			if remaining <= 0 {
				break
			}
			qty := resting.Volume
			if qty > remaining {
				qty = remaining
			}
			fills = append(fills, Fill{Price: lvl.Price, Quantity: qty})
			remaining -= qty
		}
	}
	return fills
}
