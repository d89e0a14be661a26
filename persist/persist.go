// Package persist bridges the execution engine's command and event stream
// into the event-sourced cache (cache.Cache). It is the same
// ClientOrderID-to-VenueOrderID bridge sim.ThrottledClient uses: the cache
// keys an order aggregate by VenueOrderID, but a SubmitOrder command only
// carries a ClientOrderID until the exchange assigns one on acceptance.
package persist

import (
	"errors"
	"sync"

	"go.uber.org/zap"

	"github.com/troubladore/venuecore/cache"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/msgengine"
)

// Sink appends every order/account/position mutation the venue's execution
// engine produces to a Cache. Wire HandleCommand as an execution CommandSink
// and HandleEvent as an execution.Sink; both must run on the same
// consumer goroutine execution dispatches on, so the pending-submit map
// below needs no lock against anything but itself.
type Sink struct {
	cache *cache.Cache
	log   *zap.Logger

	mu      sync.Mutex
	pending map[string]matching.SubmitOrder // ClientOrderID -> submit, before acceptance
}

// New builds a Sink writing through c.
func New(c *cache.Cache, log *zap.Logger) *Sink {
	return &Sink{cache: c, log: log, pending: make(map[string]matching.SubmitOrder)}
}

// HandleCommand stashes every SubmitOrder (including bracket legs) so its
// side/type/price/volume survive until the matching engine's acceptance
// event names a VenueOrderID to persist them under.
func (s *Sink) HandleCommand(cmd msgengine.Command) {
	switch p := cmd.Payload.(type) {
	case matching.SubmitOrder:
		s.stash(p)
	case matching.SubmitBracketOrder:
		s.stash(p.Entry)
		if p.TakeProfit != nil {
			s.stash(*p.TakeProfit)
		}
		if p.StopLoss != nil {
			s.stash(*p.StopLoss)
		}
	}
}

func (s *Sink) stash(sub matching.SubmitOrder) {
	s.mu.Lock()
	s.pending[sub.ClientOrderID] = sub
	s.mu.Unlock()
}

func (s *Sink) takePending(clientOrderID string) (matching.SubmitOrder, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	sub, ok := s.pending[clientOrderID]
	if ok {
		delete(s.pending, clientOrderID)
	}
	return sub, ok
}

// HandleEvent appends the cache-relevant projection of one exchange event.
func (s *Sink) HandleEvent(evt any) {
	switch e := evt.(type) {
	case matching.OrderAccepted:
		s.onAccepted(e)
	case matching.OrderRejected:
		s.onRejected(e)
	case matching.OrderFilled:
		s.onFilled(e)
	case matching.OrderCanceled:
		s.appendOrder(e.VenueOrderID, cache.Event{Kind: cache.KindOrderCanceled, Payload: cache.OrderCanceledEvent{OrderID: e.VenueOrderID, Ts: e.Ts}})
	case matching.OrderExpired:
		s.appendOrder(e.VenueOrderID, cache.Event{Kind: cache.KindOrderExpired, Payload: cache.OrderExpiredEvent{OrderID: e.VenueOrderID, Ts: e.Ts}})
	case matching.OrderUpdated:
		s.appendOrder(e.VenueOrderID, cache.Event{Kind: cache.KindOrderUpdated, Payload: cache.OrderUpdatedEvent{OrderID: e.VenueOrderID, NewPrice: e.NewPrice, NewVolume: e.NewVolume, Ts: e.Ts}})
	case matching.AccountState:
		s.onAccountState(e)
	}
}

func (s *Sink) onAccepted(e matching.OrderAccepted) {
	sub, ok := s.takePending(e.ClientOrderID)
	if !ok {
		if s.log != nil {
			s.log.Warn("persist: accepted order has no pending submit", zap.String("client_order_id", e.ClientOrderID), zap.String("venue_order_id", e.VenueOrderID))
		}
		return
	}
	initEvt := cache.OrderInitializedEvent{
		OrderID:      e.VenueOrderID,
		InstrumentID: sub.InstrumentID,
		Side:         sub.Side,
		OrderType:    sub.Type.String(),
		Price:        sub.Price,
		TriggerPrice: sub.TriggerPrice,
		Volume:       sub.Volume,
		Ts:           e.Ts,
	}
	if err := s.cache.AppendOrderEvent(e.VenueOrderID, cache.Event{Kind: cache.KindOrderInitialized, Payload: initEvt}, true); err != nil {
		s.logAppendErr("order-initialized", e.VenueOrderID, err)
	}
}

func (s *Sink) onRejected(e matching.OrderRejected) {
	if e.Command == "submit" && e.VenueOrderID == "" {
		// Rejected before an order aggregate ever existed; nothing to persist.
		s.takePending(e.ClientOrderID)
		return
	}
	s.appendOrder(e.VenueOrderID, cache.Event{Kind: cache.KindOrderRejected, Payload: cache.OrderRejectedEvent{OrderID: e.VenueOrderID, Reason: e.Reason, Ts: e.Ts}})
}

func (s *Sink) onFilled(e matching.OrderFilled) {
	fillEvt := cache.OrderFilledEvent{
		OrderID:    e.VenueOrderID,
		PositionID: e.PositionID,
		Side:       e.Side,
		FillPrice:  e.FillPrice,
		FillQty:    e.FillQty,
		Commission: e.Commission,
		Ts:         e.Ts,
	}
	s.appendOrder(e.VenueOrderID, cache.Event{Kind: cache.KindOrderFilled, Payload: fillEvt})

	_, err := s.cache.LoadPosition(e.PositionID, e.InstrumentID)
	isConstructor := errors.Is(err, cache.ErrNotFound)
	if err := s.cache.AppendPositionEvent(e.PositionID, fillEvt, isConstructor); err != nil {
		s.logAppendErr("position-filled", e.PositionID, err)
	}
}

func (s *Sink) onAccountState(e matching.AccountState) {
	_, err := s.cache.LoadAccount(e.AccountID)
	isConstructor := errors.Is(err, cache.ErrNotFound)
	accEvt := cache.AccountStateEvent{AccountID: e.AccountID, Currency: e.Currency, Total: e.Total, Free: e.Free, Locked: e.Locked, Ts: e.Ts}
	if err := s.cache.AppendAccountEvent(e.AccountID, accEvt, isConstructor); err != nil {
		s.logAppendErr("account-state", e.AccountID, err)
	}
}

func (s *Sink) appendOrder(venueOrderID string, e cache.Event) {
	if err := s.cache.AppendOrderEvent(venueOrderID, e, false); err != nil {
		s.logAppendErr(string(e.Kind), venueOrderID, err)
	}
}

func (s *Sink) logAppendErr(what, id string, err error) {
	if s.log != nil {
		s.log.Error("persist: append failed", zap.String("what", what), zap.String("id", id), zap.Error(err))
	}
}
