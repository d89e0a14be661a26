package matching

import "github.com/troubladore/venuecore/book"

// consumeOppositeSide walks the ladder opposite incomingSide top-down,
// filling and shrinking (or removing) resting orders in place, exactly as
// far as remaining volume and, unless unbounded, limitPrice allow. This
// mirrors Ladder.SimulateFills's read path but actually mutates book
// state, since a real aggressive fill must consume the liquidity it took.
func consumeOppositeSide(ob *book.OrderBook, incomingSide book.Side, limitPrice book.Price, remaining book.Quantity, unbounded bool) ([]book.Fill, error) {
	opposite := ob.Asks
	if incomingSide == book.Sell {
		opposite = ob.Bids
	}

	var fills []book.Fill
	for remaining > 0 {
		top := opposite.Top()
		if top == nil || len(top.Orders) == 0 {
			break
		}
		if !unbounded && !book.Crosses(incomingSide, limitPrice, top.Price) {
			break
		}
		resting := top.Orders[0]
		qty := resting.Volume
		if qty > remaining {
			qty = remaining
		}
		fills = append(fills, book.Fill{Price: top.Price, Quantity: qty})
		remaining -= qty

		upd := book.Order{ID: resting.ID, Side: resting.Side, Price: top.Price, Volume: resting.Volume - qty}
		if err := opposite.Update(upd); err != nil {
			return fills, err
		}
	}
	return fills, nil
}
