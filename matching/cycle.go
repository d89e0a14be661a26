package matching

import (
	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
)

func (x *SimulatedExchange) warn(msg string, err error) {
	if x.log != nil {
		x.log.Warn(msg, zap.Error(err))
	}
}

// runMatchingCycle executes step 3-6 of the matching cycle for one
// instrument: trigger checks, marketable/passive fills, and expiration.
func (x *SimulatedExchange) runMatchingCycle(instrumentID string) {
	ob, ok := x.books[instrumentID]
	if !ok {
		return
	}
	for _, wo := range x.ordersFor(instrumentID) {
		if wo.Status.terminal() {
			continue
		}
		x.checkTrigger(ob, wo)
		if wo.Status.terminal() {
			continue
		}
		x.tryFill(ob, wo)
	}
	x.expirationPass(instrumentID)
}

// ordersFor returns a stable snapshot of working orders for an
// instrument, since fills can mutate x.working (bracket activation) while
// this cycle iterates.
func (x *SimulatedExchange) ordersFor(instrumentID string) []*WorkingOrder {
	var out []*WorkingOrder
	for _, wo := range x.working {
		if wo.InstrumentID == instrumentID {
			out = append(out, wo)
		}
	}
	return out
}

// checkTrigger evaluates a stop order's trigger condition. A triggered
// stop-market executes immediately in the same pass; a triggered
// stop-limit becomes TRIGGERED and is picked up by tryFill this cycle.
func (x *SimulatedExchange) checkTrigger(ob *book.OrderBook, wo *WorkingOrder) {
	if wo.Type != StopMarket && wo.Type != StopLimit {
		return
	}
	if wo.Status != StatusAccepted {
		return
	}
	var triggered bool
	if wo.Side == book.Buy {
		if ask, ok := ob.BestAskPrice(); ok && ask >= wo.TriggerPrice {
			triggered = true
		}
	} else {
		if bid, ok := ob.BestBidPrice(); ok && bid <= wo.TriggerPrice {
			triggered = true
		}
	}
	if !triggered {
		return
	}
	x.emit(OrderTriggered{VenueOrderID: wo.VenueOrderID, Ts: x.nowNs})
	if wo.Type == StopLimit {
		wo.Status = StatusTriggered
		if err := ob.Add(book.Order{ID: wo.VenueOrderID, Side: wo.Side, Price: wo.Price, Volume: wo.remaining()}); err != nil {
			x.warn("failed to rest triggered stop-limit", err)
		}
		return
	}
	// StopMarket has no intermediate TRIGGERED state: it executes right
	// here, unbounded, like a genuine Market order.
	x.fillAggressive(ob, wo, true)
}

// tryFill attempts a marketable (aggressive) fill, then a passive fill
// for an already-resting limit that the current top just traded through.
func (x *SimulatedExchange) tryFill(ob *book.OrderBook, wo *WorkingOrder) {
	switch wo.Type {
	case Market:
		x.fillAggressive(ob, wo, true)
	case StopMarket:
		// Handled entirely in checkTrigger: it either hasn't triggered yet
		// (nothing to do) or already filled there.
	case Limit:
		if wo.Status != StatusAccepted {
			return
		}
		if x.marketable(ob, wo) {
			x.fillAggressive(ob, wo, false)
			return
		}
		x.tryPassiveFill(ob, wo)
	case StopLimit:
		// Only live once checkTrigger has promoted it past its stop
		// condition; before that it has no market presence to fill.
		if wo.Status != StatusTriggered {
			return
		}
		if x.marketable(ob, wo) {
			x.fillAggressive(ob, wo, false)
			return
		}
		x.tryPassiveFill(ob, wo)
	}
}

func (x *SimulatedExchange) marketable(ob *book.OrderBook, wo *WorkingOrder) bool {
	if wo.Side == book.Buy {
		ask, ok := ob.BestAskPrice()
		return ok && wo.Price >= ask
	}
	bid, ok := ob.BestBidPrice()
	return ok && wo.Price <= bid
}

// tryPassiveFill asks the fill model whether a resting limit fills, given
// that the top of book is presently at exactly the order's price (trading
// through it is handled by marketable/fillAggressive instead).
func (x *SimulatedExchange) tryPassiveFill(ob *book.OrderBook, wo *WorkingOrder) {
	var topPrice book.Price
	var ok bool
	if wo.Side == book.Buy {
		topPrice, ok = ob.BestAskPrice()
	} else {
		topPrice, ok = ob.BestBidPrice()
	}
	if !ok || topPrice != wo.Price {
		return
	}
	if x.fillModel == nil || !x.fillModel.ShouldFillAtLimit() {
		return
	}
	qty := wo.remaining()
	if wo.Side == book.Buy {
		if avail, ok := ob.BestAskQty(); ok && avail < qty {
			qty = avail
		}
	} else {
		if avail, ok := ob.BestBidQty(); ok && avail < qty {
			qty = avail
		}
	}
	if qty <= 0 {
		return
	}
	fills, err := consumeOppositeSide(ob, wo.Side, wo.Price, qty, false)
	if err != nil {
		x.warn("passive fill consumption failed", err)
		return
	}
	x.applyFills(ob, wo, fills)
}

// fillAggressive walks the opposite ladder to fill a marketable order.
// unbounded is true for genuine Market orders, false for a limit that
// happens to already cross (its own price still bounds the walk).
func (x *SimulatedExchange) fillAggressive(ob *book.OrderBook, wo *WorkingOrder, unbounded bool) {
	wasResting := isResting(wo)
	fills, err := consumeOppositeSide(ob, wo.Side, wo.Price, wo.remaining(), unbounded)
	if err != nil {
		x.warn("aggressive fill consumption failed", err)
		return
	}
	if wasResting {
		// The order had its own entry in this ladder; remove it so a
		// partial fill can re-rest fresh with the correct remaining size.
		_ = ob.Delete(book.Order{ID: wo.VenueOrderID, Side: wo.Side})
	}
	x.applyFills(ob, wo, fills)
	if wo.remaining() > 0 && wasResting {
		if err := ob.Add(book.Order{ID: wo.VenueOrderID, Side: wo.Side, Price: wo.Price, Volume: wo.remaining()}); err != nil {
			x.warn("failed to re-rest partially filled order", err)
		}
	}
}

// isResting reports whether a working order currently has its own entry on
// the book: an accepted limit, or a stop-limit that has already triggered.
func isResting(wo *WorkingOrder) bool {
	return (wo.Type == Limit && wo.Status == StatusAccepted) || (wo.Type == StopLimit && wo.Status == StatusTriggered)
}

// applyFills books each fill slice against the account, position, and
// working-order state, applying model-driven slippage on the first slice
// of an aggressive fill.
func (x *SimulatedExchange) applyFills(ob *book.OrderBook, wo *WorkingOrder, fills []book.Fill) {
	if len(fills) == 0 {
		return
	}
	inst := x.instruments[wo.InstrumentID]
	for i, f := range fills {
		price := f.Price
		if i == 0 && x.fillModel != nil && x.fillModel.ShouldSlip() {
			price = slip(price, wo.Side)
		}
		x.executeFill(wo, inst, price, f.Quantity)
	}
	if wo.remaining() <= 0 {
		wo.Status = StatusFilled
		// A market-priced estimate rarely matches the fills it actually
		// walked into; release whatever notional lock is left over rather
		// than let it strand itself against the account forever.
		x.unlockOnTerminal(wo)
		if _, isParent := x.bracketChildren[wo.VenueOrderID]; isParent {
			x.activateBracketChildren(wo.VenueOrderID)
		}
		if sibling, ok := x.ocoLinks[wo.VenueOrderID]; ok {
			x.cancelSibling(sibling)
		}
	}
}

func (x *SimulatedExchange) cancelSibling(siblingID string) {
	sib, ok := x.working[siblingID]
	if !ok || sib.Status.terminal() {
		return
	}
	x.terminate(siblingID, StatusCanceled)
	x.emit(OrderCanceled{VenueOrderID: siblingID, Ts: x.nowNs})
	x.unlockOnTerminal(sib)
}

func slip(price book.Price, side book.Side) book.Price {
	if side == book.Buy {
		return price + 1
	}
	return price - 1
}

// executeFill debits commission, credits/updates the position, unlocks
// the consumed portion of the original reservation, and emits OrderFilled
// plus a refreshed AccountState.
func (x *SimulatedExchange) executeFill(wo *WorkingOrder, inst Instrument, price book.Price, qty book.Quantity) {
	notional := book.Price(int64(price) * int64(qty))
	commission := book.Price(inst.CommissionRateBps * int64(notional) / 10000)

	wo.FilledVolume += qty
	pos := x.updatePosition(wo, inst, price, qty)

	if !x.account.Frozen {
		bal := x.account.Balances[inst.Currency]
		reserved := notional
		if reserved > wo.NotionalLocked {
			reserved = wo.NotionalLocked
		}
		wo.NotionalLocked -= reserved
		bal.Locked -= reserved
		bal.Free += reserved
		bal.Free -= commission
		bal.Total -= commission
		x.account.Balances[inst.Currency] = bal
		x.account.Commissions[inst.Currency] += commission
	}

	x.emit(OrderFilled{
		VenueOrderID: wo.VenueOrderID,
		ExecutionID:  x.execSeq.Next(wo.InstrumentID),
		InstrumentID: wo.InstrumentID,
		PositionID:   pos.ID,
		Side:         wo.Side,
		FillPrice:    price,
		FillQty:      qty,
		Commission:   commission,
		Currency:     inst.Currency,
		Ts:           x.nowNs,
	})
	x.emitAccountState(inst.Currency)
}

func (x *SimulatedExchange) updatePosition(wo *WorkingOrder, inst Instrument, price book.Price, qty book.Quantity) *Position {
	pos, ok := x.positions[wo.InstrumentID]
	if !ok || pos.Volume == 0 {
		pos = &Position{ID: x.posSeq.Next(wo.InstrumentID), InstrumentID: wo.InstrumentID, Side: wo.Side, Volume: qty, AvgPrice: price}
		x.positions[wo.InstrumentID] = pos
		return pos
	}
	if pos.Side == wo.Side {
		total := pos.Volume + qty
		pos.AvgPrice = book.Price((int64(pos.AvgPrice)*int64(pos.Volume) + int64(price)*int64(qty)) / int64(total))
		pos.Volume = total
		return pos
	}
	switch {
	case qty < pos.Volume:
		pos.RealizedPnL += realizedPnL(pos.Side, pos.AvgPrice, price, qty)
		pos.Volume -= qty
	case qty == pos.Volume:
		pos.RealizedPnL += realizedPnL(pos.Side, pos.AvgPrice, price, qty)
		pos.Volume = 0
	default:
		closingQty := pos.Volume
		pos.RealizedPnL += realizedPnL(pos.Side, pos.AvgPrice, price, closingQty)
		pos.ID = x.posSeq.Next(wo.InstrumentID)
		pos.Side = wo.Side
		pos.Volume = qty - closingQty
		pos.AvgPrice = price
	}
	return pos
}

func realizedPnL(side book.Side, entryPrice, exitPrice book.Price, qty book.Quantity) book.Price {
	diff := int64(exitPrice) - int64(entryPrice)
	if side == book.Sell {
		diff = -diff
	}
	return book.Price(diff * int64(qty))
}

// expirationPass moves any non-terminal order past its ExpireTimeNs to
// EXPIRED, unlocking its reservation.
func (x *SimulatedExchange) expirationPass(instrumentID string) {
	for _, wo := range x.ordersFor(instrumentID) {
		if wo.Status.terminal() || wo.ExpireTimeNs == 0 {
			continue
		}
		if x.nowNs < wo.ExpireTimeNs {
			continue
		}
		x.terminate(wo.VenueOrderID, StatusExpired)
		x.emit(OrderExpired{VenueOrderID: wo.VenueOrderID, Ts: x.nowNs})
		x.unlockOnTerminal(wo)
		if _, isParent := x.bracketChildren[wo.VenueOrderID]; isParent {
			x.cancelBracketChildren(wo.VenueOrderID)
		}
	}
}
