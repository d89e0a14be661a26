// Package sim implements the venue's random order-flow / market-making
// agents: bots submit through a risk.Engine-shaped CommandGate rather than
// touching the order book directly, and because the venue assigns its own
// VenueOrderId distinct from a bot's ClientOrderId, ownership of a fill is
// learned by bridging OrderAccepted back to the ClientOrderId that
// produced it rather than compared directly against a submitted order id.
package sim

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// CommandGate is the subset of risk.Engine's surface bots drive.
type CommandGate interface {
	Submit(matching.SubmitOrder)
	Cancel(matching.CancelOrder)
}

// BookReader is the read-only exchange surface bots query for a market view.
type BookReader interface {
	TopOfBook(instrumentID string) (matching.TopOfBook, bool)
}

// Bot is a trading agent runnable under a Supervisor.
type Bot interface {
	Start(ctx context.Context, client *ThrottledClient)
}

// ThrottledClient wraps a CommandGate and BookReader with rate limiting and
// the client-id/venue-id ownership bridge every bot needs to know which
// resting orders and fills are its own.
type ThrottledClient struct {
	gate         CommandGate
	books        BookReader
	instrumentID string
	tickSize     book.Price
	throttle     <-chan time.Time

	mu          sync.Mutex
	orderSeq    int64
	pendingSide map[string]book.Side // ClientOrderID -> side, before acceptance
	ownedIDs    map[string]struct{}  // VenueOrderID, after acceptance
}

// NewThrottledClient builds a client scoped to one instrument.
func NewThrottledClient(gate CommandGate, books BookReader, instrumentID string, tickSize book.Price, throttle <-chan time.Time) *ThrottledClient {
	return &ThrottledClient{
		gate:         gate,
		books:        books,
		instrumentID: instrumentID,
		tickSize:     tickSize,
		throttle:     throttle,
		pendingSide:  make(map[string]book.Side),
		ownedIDs:     make(map[string]struct{}),
	}
}

func (c *ThrottledClient) waitThrottle(ctx context.Context) error {
	if c.throttle == nil {
		return nil
	}
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-c.throttle:
		return nil
	}
}

// Submit throttles, mints a client order id, and submits a limit or
// stop-market order through the gate.
func (c *ThrottledClient) Submit(ctx context.Context, side book.Side, typ matching.OrderType, price book.Price, volume book.Quantity) (string, error) {
	if err := c.waitThrottle(ctx); err != nil {
		return "", err
	}
	id := c.NextID(prefixFor(side))

	c.mu.Lock()
	c.pendingSide[id] = side
	c.mu.Unlock()

	c.gate.Submit(matching.SubmitOrder{
		ClientOrderID: id,
		InstrumentID:  c.instrumentID,
		Side:          side,
		Type:          typ,
		Price:         price,
		Volume:        volume,
	})
	return id, nil
}

// Cancel cancels a still-pending or resting order by the client order id
// Submit returned.
func (c *ThrottledClient) Cancel(ctx context.Context, clientOrderID string) error {
	select {
	case <-ctx.Done():
		return ctx.Err()
	default:
	}
	c.gate.Cancel(matching.CancelOrder{ClientOrderID: clientOrderID})
	return nil
}

// TopOfBook reports the client's instrument's current best bid/ask.
func (c *ThrottledClient) TopOfBook() (matching.TopOfBook, bool) {
	return c.books.TopOfBook(c.instrumentID)
}

func (c *ThrottledClient) InstrumentID() string { return c.instrumentID }
func (c *ThrottledClient) TickSize() book.Price { return c.tickSize }

// NextID mints a monotonic, prefixed client order id.
func (c *ThrottledClient) NextID(prefix string) string {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.orderSeq++
	return fmt.Sprintf("%s-%d", prefix, c.orderSeq)
}

// HandleEvent bridges OrderAccepted's (ClientOrderID, VenueOrderID) pair
// into the ownedIDs set OwnsOrder and pnlTracker consult.
func (c *ThrottledClient) HandleEvent(evt any) {
	acc, ok := evt.(matching.OrderAccepted)
	if !ok {
		return
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	if _, pending := c.pendingSide[acc.ClientOrderID]; pending {
		c.ownedIDs[acc.VenueOrderID] = struct{}{}
		delete(c.pendingSide, acc.ClientOrderID)
	}
}

// OwnsOrder reports whether venueOrderID was accepted from a command this
// client submitted.
func (c *ThrottledClient) OwnsOrder(venueOrderID string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	_, ok := c.ownedIDs[venueOrderID]
	return ok
}

func prefixFor(side book.Side) string {
	if side == book.Buy {
		return "bid"
	}
	return "ask"
}

func midPrice(top matching.TopOfBook) book.Price {
	switch {
	case top.BidPrice > 0 && top.AskPrice > 0:
		return (top.BidPrice + top.AskPrice) / 2
	case top.BidPrice > 0:
		return top.BidPrice
	case top.AskPrice > 0:
		return top.AskPrice
	default:
		return 0
	}
}
