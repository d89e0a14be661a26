package risk

import (
	"sync"
	"testing"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/msgengine"
)

type forwardCollector struct {
	mu       sync.Mutex
	forwarded []msgengine.Command
}

func (c *forwardCollector) forward(cmd msgengine.Command) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.forwarded = append(c.forwarded, cmd)
}

func (c *forwardCollector) snapshot() []msgengine.Command {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]msgengine.Command(nil), c.forwarded...)
}

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(2 * time.Millisecond)
	}
	t.Fatalf("condition not met before deadline")
}

func TestRiskForwardsOrderWithinLimits(t *testing.T) {
	fwd := &forwardCollector{}
	e := New(16, fwd.forward, nil)
	e.SetLimits("BTC-USD", Limits{MaxOrderNotional: 100000, MaxPosition: 10})
	e.Start()
	defer e.Stop()

	e.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 5})

	waitFor(t, func() bool { return len(fwd.snapshot()) == 1 })
}

func TestRiskBlocksOrderExceedingMaxNotional(t *testing.T) {
	fwd := &forwardCollector{}
	e := New(16, fwd.forward, nil)
	e.SetLimits("BTC-USD", Limits{MaxOrderNotional: 100})
	e.Start()
	defer e.Stop()

	e.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 5})
	// Drain a harmless follow-up through the same single consumer so we know
	// the blocked submit has already been handled by the time we assert.
	e.Update(matching.UpdateOrder{VenueOrderID: "irrelevant", NewPrice: 1, NewVolume: 1})

	waitFor(t, func() bool { return len(fwd.snapshot()) == 1 })
	if fwd.snapshot()[0].Kind != "update_order" {
		t.Fatalf("expected only the update to be forwarded, got %v", fwd.snapshot())
	}
}

type eventCollector struct {
	mu     sync.Mutex
	events []any
}

func (c *eventCollector) sink(evt any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, evt)
}

func (c *eventCollector) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.events...)
}

func TestRiskEmitsOrderRejectedWhenBlockingSubmit(t *testing.T) {
	fwd := &forwardCollector{}
	evts := &eventCollector{}
	e := New(16, fwd.forward, nil)
	e.AddSink(evts.sink)
	e.SetLimits("BTC-USD", Limits{MaxOrderNotional: 100})
	e.Start()
	defer e.Stop()

	e.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 5})

	waitFor(t, func() bool { return len(evts.snapshot()) == 1 })
	rejected, ok := evts.snapshot()[0].(matching.OrderRejected)
	if !ok {
		t.Fatalf("expected a matching.OrderRejected, got %T", evts.snapshot()[0])
	}
	if rejected.ClientOrderID != "c1" || rejected.InstrumentID != "BTC-USD" || rejected.Command != "submit" {
		t.Fatalf("unexpected rejection event: %+v", rejected)
	}
	if rejected.VenueOrderID != "" {
		t.Fatalf("a risk-blocked order was never accepted onto the exchange, expected empty VenueOrderID, got %q", rejected.VenueOrderID)
	}
	if len(fwd.snapshot()) != 0 {
		t.Fatalf("expected the blocked submit not to be forwarded, got %v", fwd.snapshot())
	}
}

func TestRiskBlocksOrderExceedingMaxPosition(t *testing.T) {
	fwd := &forwardCollector{}
	e := New(16, fwd.forward, nil)
	e.SetLimits("BTC-USD", Limits{MaxPosition: 3})
	e.Start()
	defer e.Stop()

	e.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 10})
	e.Update(matching.UpdateOrder{VenueOrderID: "irrelevant", NewPrice: 1, NewVolume: 1})

	waitFor(t, func() bool { return len(fwd.snapshot()) == 1 })
	if fwd.snapshot()[0].Kind != "update_order" {
		t.Fatalf("expected only the update to be forwarded, got %v", fwd.snapshot())
	}
}

func TestRiskPassesUpdateAndCancelThroughUnchecked(t *testing.T) {
	fwd := &forwardCollector{}
	e := New(16, fwd.forward, nil)
	e.SetLimits("BTC-USD", Limits{MaxOrderNotional: 1})
	e.Start()
	defer e.Stop()

	e.Update(matching.UpdateOrder{VenueOrderID: "v1", NewPrice: 999999, NewVolume: 999999})
	e.Cancel(matching.CancelOrder{VenueOrderID: "v1"})

	waitFor(t, func() bool { return len(fwd.snapshot()) == 2 })
}

func TestRiskInstrumentWithoutLimitsPassesThrough(t *testing.T) {
	fwd := &forwardCollector{}
	e := New(16, fwd.forward, nil)
	e.Start()
	defer e.Stop()

	e.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "UNCONFIGURED", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 999999})

	waitFor(t, func() bool { return len(fwd.snapshot()) == 1 })
}

func TestRiskUpdatesBalanceSnapshotFromNotify(t *testing.T) {
	fwd := &forwardCollector{}
	e := New(16, fwd.forward, nil)
	e.Start()
	defer e.Stop()

	e.Notify(matching.AccountState{AccountID: "acct-1", Currency: "USD", Total: 500, Free: 500, Locked: 0})
	e.Update(matching.UpdateOrder{VenueOrderID: "sync"})
	waitFor(t, func() bool { return len(fwd.snapshot()) == 1 })

	e.mu.Lock()
	got := e.balances["USD"]
	e.mu.Unlock()
	if got != 500 {
		t.Fatalf("balances[USD] = %d, want 500", got)
	}
}
