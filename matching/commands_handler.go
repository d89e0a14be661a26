package matching

import "github.com/troubladore/venuecore/book"

// SubmitOrder validates and accepts (or rejects) a new order. Exactly one
// acknowledgment event is emitted.
func (x *SimulatedExchange) SubmitOrder(cmd SubmitOrder) {
	wo := x.submitOrderNoCycle(cmd)
	if wo != nil {
		x.runMatchingCycle(wo.InstrumentID)
	}
}

// submitOrderNoCycle runs every accept/reject check and, on acceptance,
// registers the order but stops short of running the matching cycle: the
// bracket path needs to register OCO/child linkage before the entry's own
// fill (which can happen inline for a marketable entry) can look for it.
func (x *SimulatedExchange) submitOrderNoCycle(cmd SubmitOrder) *WorkingOrder {
	inst, ok := x.instruments[cmd.InstrumentID]
	if !ok {
		x.rejectSubmit(cmd.ClientOrderID, "", cmd.InstrumentID, "unknown instrument")
		return nil
	}
	if cmd.Volume <= 0 {
		x.rejectSubmit(cmd.ClientOrderID, "", cmd.InstrumentID, "quantity must be positive")
		return nil
	}
	ob := x.books[cmd.InstrumentID]

	if reason, ok := x.checkEntryConstraints(ob, cmd); !ok {
		x.rejectSubmit(cmd.ClientOrderID, "", cmd.InstrumentID, reason)
		return nil
	}

	notional := estimateNotional(ob, cmd)
	if !x.lockNotional(inst.Currency, notional) {
		x.rejectSubmit(cmd.ClientOrderID, "", cmd.InstrumentID, "insufficient free balance")
		return nil
	}

	wo := &WorkingOrder{
		VenueOrderID:   x.orderSeq.Next(cmd.InstrumentID),
		ClientOrderID:  cmd.ClientOrderID,
		InstrumentID:   cmd.InstrumentID,
		Side:           cmd.Side,
		Type:           cmd.Type,
		TimeInForce:    cmd.TimeInForce,
		Instruction:    cmd.Instruction,
		Price:          cmd.Price,
		TriggerPrice:   cmd.TriggerPrice,
		Volume:         cmd.Volume,
		Status:         StatusAccepted,
		ExpireTimeNs:   cmd.ExpireTimeNs,
		NotionalLocked: notional,
		OCOGroupID:     cmd.LinkID,
	}
	x.accept(ob, wo)
	return wo
}

func (x *SimulatedExchange) accept(ob *book.OrderBook, wo *WorkingOrder) {
	x.working[wo.VenueOrderID] = wo
	x.byClientID[wo.ClientOrderID] = wo.VenueOrderID
	if wo.Type == Limit {
		_ = ob.Add(book.Order{ID: wo.VenueOrderID, Side: wo.Side, Price: wo.Price, Volume: wo.Volume})
	}
	x.registerOCOLink(wo)
	x.emit(OrderAccepted{VenueOrderID: wo.VenueOrderID, ClientOrderID: wo.ClientOrderID, InstrumentID: wo.InstrumentID, Ts: x.nowNs})
	x.emitAccountState(x.instruments[wo.InstrumentID].Currency)
}

// registerOCOLink pairs wo with a previously accepted, still-unpaired order
// sharing the same LinkID: the first arrival waits in pendingOCO, the
// second completes the pair in ocoLinks and both legs now cancel each
// other on fill or explicit cancel, same as a bracket's linked children.
func (x *SimulatedExchange) registerOCOLink(wo *WorkingOrder) {
	if wo.OCOGroupID == "" {
		return
	}
	if sibling, ok := x.pendingOCO[wo.OCOGroupID]; ok {
		x.ocoLinks[wo.VenueOrderID] = sibling
		x.ocoLinks[sibling] = wo.VenueOrderID
		delete(x.pendingOCO, wo.OCOGroupID)
		return
	}
	x.pendingOCO[wo.OCOGroupID] = wo.VenueOrderID
}

func (x *SimulatedExchange) rejectSubmit(clientOrderID, venueOrderID, instrumentID, reason string) {
	x.emit(OrderRejected{ClientOrderID: clientOrderID, VenueOrderID: venueOrderID, InstrumentID: instrumentID, Reason: reason, Command: "submit", Ts: x.nowNs})
}

// SubmitBracketOrder submits the entry, registers its OCO'd children, and
// only then runs the matching cycle — so a marketable entry that fills
// immediately still finds its bracket linkage in place.
func (x *SimulatedExchange) SubmitBracketOrder(cmd SubmitBracketOrder) {
	entry := x.submitOrderNoCycle(cmd.Entry)
	if entry == nil {
		return
	}

	var childIDs []string
	if cmd.TakeProfit != nil {
		childIDs = append(childIDs, x.stageBracketChild(*cmd.TakeProfit, entry.VenueOrderID))
	}
	if cmd.StopLoss != nil {
		childIDs = append(childIDs, x.stageBracketChild(*cmd.StopLoss, entry.VenueOrderID))
	}
	if len(childIDs) == 2 {
		x.ocoLinks[childIDs[0]] = childIDs[1]
		x.ocoLinks[childIDs[1]] = childIDs[0]
	}
	x.bracketChildren[entry.VenueOrderID] = childIDs

	x.runMatchingCycle(entry.InstrumentID)
}

// stageBracketChild registers a child order in SUBMITTED status without
// resting it on the book or reserving balance; activateBracketChildren
// promotes it once the parent fills.
func (x *SimulatedExchange) stageBracketChild(cmd SubmitOrder, parentID string) string {
	venueID := x.orderSeq.Next(cmd.InstrumentID)
	wo := &WorkingOrder{
		VenueOrderID:  venueID,
		ClientOrderID: cmd.ClientOrderID,
		InstrumentID:  cmd.InstrumentID,
		Side:          cmd.Side,
		Type:          cmd.Type,
		TimeInForce:   cmd.TimeInForce,
		Instruction:   cmd.Instruction,
		Price:         cmd.Price,
		TriggerPrice:  cmd.TriggerPrice,
		Volume:        cmd.Volume,
		Status:        StatusSubmitted,
		ExpireTimeNs:  cmd.ExpireTimeNs,
		BracketParent: parentID,
	}
	x.working[wo.VenueOrderID] = wo
	x.byClientID[wo.ClientOrderID] = wo.VenueOrderID
	return wo.VenueOrderID
}

// activateBracketChildren promotes each staged child to ACCEPTED, locking
// notional the same way a freshly submitted order would; a child that can't
// clear that check is rejected rather than left dangling.
func (x *SimulatedExchange) activateBracketChildren(parentID string) {
	inst := x.instruments[x.working[parentID].InstrumentID]
	ob := x.books[inst.ID]
	for _, childID := range x.bracketChildren[parentID] {
		child, ok := x.working[childID]
		if !ok || child.Status != StatusSubmitted {
			continue
		}
		notional := book.Price(int64(child.Price) * int64(child.Volume))
		if !x.lockNotional(inst.Currency, notional) {
			child.Status = StatusRejected
			delete(x.byClientID, child.ClientOrderID)
			x.rejectSubmit(child.ClientOrderID, child.VenueOrderID, child.InstrumentID, "insufficient free balance")
			continue
		}
		child.NotionalLocked = notional
		child.Status = StatusAccepted
		if child.Type == Limit {
			_ = ob.Add(book.Order{ID: child.VenueOrderID, Side: child.Side, Price: child.Price, Volume: child.Volume})
		}
		x.emit(OrderAccepted{VenueOrderID: child.VenueOrderID, ClientOrderID: child.ClientOrderID, InstrumentID: child.InstrumentID, Ts: x.nowNs})
	}
	delete(x.bracketChildren, parentID)
}

func (x *SimulatedExchange) cancelBracketChildren(parentID string) {
	for _, childID := range x.bracketChildren[parentID] {
		x.terminate(childID, StatusCanceled)
		x.emit(OrderCanceled{VenueOrderID: childID, Ts: x.nowNs})
	}
	delete(x.bracketChildren, parentID)
}

// UpdateOrder amends a resting order's price and/or volume.
func (x *SimulatedExchange) UpdateOrder(cmd UpdateOrder) {
	venueID := x.resolveID(cmd.VenueOrderID, cmd.ClientOrderID)
	wo, ok := x.working[venueID]
	if !ok || wo.Status.terminal() {
		x.emit(OrderRejected{ClientOrderID: cmd.ClientOrderID, VenueOrderID: cmd.VenueOrderID, Reason: "unknown or terminal order id", Command: "update", Ts: x.nowNs})
		return
	}
	ob := x.books[wo.InstrumentID]
	inst := x.instruments[wo.InstrumentID]
	newNotional := book.Price(int64(cmd.NewPrice) * int64(cmd.NewVolume-wo.FilledVolume))
	delta := newNotional - wo.NotionalLocked
	if delta > 0 && !x.lockNotional(inst.Currency, delta) {
		x.emit(OrderRejected{ClientOrderID: wo.ClientOrderID, VenueOrderID: wo.VenueOrderID, Reason: "insufficient free balance", Command: "update", Ts: x.nowNs})
		return
	}
	if isResting(wo) {
		if err := ob.Update(book.Order{ID: wo.VenueOrderID, Side: wo.Side, Price: cmd.NewPrice, Volume: cmd.NewVolume - wo.FilledVolume}); err != nil {
			if delta > 0 {
				x.unlockNotional(inst.Currency, delta)
			}
			x.emit(OrderRejected{ClientOrderID: wo.ClientOrderID, VenueOrderID: wo.VenueOrderID, Reason: err.Error(), Command: "update", Ts: x.nowNs})
			return
		}
	}
	if delta < 0 {
		x.unlockNotional(inst.Currency, -delta)
	}
	wo.NotionalLocked = newNotional
	wo.Price = cmd.NewPrice
	wo.Volume = cmd.NewVolume
	x.emit(OrderUpdated{VenueOrderID: wo.VenueOrderID, NewPrice: cmd.NewPrice, NewVolume: cmd.NewVolume, Ts: x.nowNs})
	x.runMatchingCycle(wo.InstrumentID)
}

// CancelOrder cancels a resting (or pending-bracket) order and, if it was
// one leg of an OCO pair, cancels its sibling too.
func (x *SimulatedExchange) CancelOrder(cmd CancelOrder) {
	venueID := x.resolveID(cmd.VenueOrderID, cmd.ClientOrderID)
	wo, ok := x.working[venueID]
	if !ok || wo.Status.terminal() {
		x.emit(OrderRejected{ClientOrderID: cmd.ClientOrderID, VenueOrderID: cmd.VenueOrderID, Reason: "unknown or terminal order id", Command: "cancel", Ts: x.nowNs})
		return
	}
	x.terminate(venueID, StatusCanceled)
	x.emit(OrderCanceled{VenueOrderID: venueID, Ts: x.nowNs})
	x.unlockOnTerminal(wo)
	if sibling, ok := x.ocoLinks[venueID]; ok {
		if sib, ok := x.working[sibling]; ok && !sib.Status.terminal() {
			x.terminate(sibling, StatusCanceled)
			x.emit(OrderCanceled{VenueOrderID: sibling, Ts: x.nowNs})
			x.unlockOnTerminal(sib)
		}
	}
	if _, isParent := x.bracketChildren[venueID]; isParent {
		x.cancelBracketChildren(venueID)
	}
}

func (x *SimulatedExchange) resolveID(venueOrderID, clientOrderID string) string {
	if venueOrderID != "" {
		return venueOrderID
	}
	return x.byClientID[clientOrderID]
}

// terminate removes a working order from its book (if resting) and marks
// it terminal, without emitting an event itself.
func (x *SimulatedExchange) terminate(venueID string, status OrderStatus) {
	wo, ok := x.working[venueID]
	if !ok {
		return
	}
	if isResting(wo) {
		ob := x.books[wo.InstrumentID]
		_ = ob.Delete(book.Order{ID: wo.VenueOrderID, Side: wo.Side})
	}
	wo.Status = status
	if wo.OCOGroupID != "" && x.pendingOCO[wo.OCOGroupID] == venueID {
		delete(x.pendingOCO, wo.OCOGroupID)
	}
}

func estimateNotional(ob *book.OrderBook, cmd SubmitOrder) book.Price {
	price := cmd.Price
	if cmd.Type == Market {
		if cmd.Side == book.Buy {
			if ask, ok := ob.BestAskPrice(); ok {
				price = ask
			}
		} else {
			if bid, ok := ob.BestBidPrice(); ok {
				price = bid
			}
		}
	}
	return book.Price(int64(price) * int64(cmd.Volume))
}

func (x *SimulatedExchange) checkEntryConstraints(ob *book.OrderBook, cmd SubmitOrder) (string, bool) {
	if cmd.Instruction.PostOnly {
		if cmd.Side == book.Buy {
			if ask, ok := ob.BestAskPrice(); ok && cmd.Price >= ask {
				return "post-only order would immediately match", false
			}
		} else {
			if bid, ok := ob.BestBidPrice(); ok && cmd.Price <= bid {
				return "post-only order would immediately match", false
			}
		}
	}
	if cmd.Instruction.ReduceOnly {
		pos := x.positions[cmd.InstrumentID]
		if pos == nil || pos.Volume == 0 {
			return "reduce-only order would open a new position", false
		}
		if pos.Side == cmd.Side {
			return "reduce-only order would open a new position", false
		}
	}
	return "", true
}

func (x *SimulatedExchange) lockNotional(currency string, notional book.Price) bool {
	if x.account.Frozen {
		return true
	}
	bal := x.account.Balances[currency]
	if bal.Free < notional {
		return false
	}
	bal.Free -= notional
	bal.Locked += notional
	x.account.Balances[currency] = bal
	return true
}

func (x *SimulatedExchange) unlockNotional(currency string, notional book.Price) {
	if x.account.Frozen {
		return
	}
	bal := x.account.Balances[currency]
	bal.Locked -= notional
	bal.Free += notional
	x.account.Balances[currency] = bal
}

// unlockOnTerminal releases whatever this order still holds in
// NotionalLocked — zero for an order that never reserved balance (a staged
// bracket child that was canceled before activation).
func (x *SimulatedExchange) unlockOnTerminal(wo *WorkingOrder) {
	inst, ok := x.instruments[wo.InstrumentID]
	if !ok {
		return
	}
	if x.account.Frozen || wo.NotionalLocked == 0 {
		wo.NotionalLocked = 0
		return
	}
	bal := x.account.Balances[inst.Currency]
	bal.Locked -= wo.NotionalLocked
	bal.Free += wo.NotionalLocked
	x.account.Balances[inst.Currency] = bal
	wo.NotionalLocked = 0
	x.emitAccountState(inst.Currency)
}

func (x *SimulatedExchange) emitAccountState(currency string) {
	bal := x.account.Balances[currency]
	x.emit(AccountState{AccountID: x.account.ID, Currency: currency, Total: bal.Total, Free: bal.Free, Locked: bal.Locked, Ts: x.nowNs})
}
