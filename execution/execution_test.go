package execution

import (
	"sync"
	"testing"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/matching/fillmodel"
)

func newTestExchange(t *testing.T) (*matching.SimulatedExchange, *Engine, *eventCollector) {
	t.Helper()
	acct := matching.NewAccount("acct-1", "USD", 1_000_000)
	fm := fillmodel.New(fillmodel.Config{ProbFillAtLimit: 1, ProbSlippage: 0, RandomSeed: 3})
	collector := &eventCollector{}

	eng := New(16, nil)
	x := matching.New(acct, fm, eng.OnExchangeEvent, nil)
	eng.Attach(x)
	eng.AddSink(collector.record)

	if err := x.RegisterInstrument(matching.Instrument{
		ID: "BTC-USD", Currency: "USD", BookLevel: book.L3,
		PricePrecision: 2, SizePrecision: 4, CommissionRateBps: 10,
	}); err != nil {
		t.Fatalf("RegisterInstrument: %v", err)
	}
	return x, eng, collector
}

type eventCollector struct {
	mu     sync.Mutex
	events []any
}

func (c *eventCollector) record(e any) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.events = append(c.events, e)
}

func (c *eventCollector) snapshot() []any {
	c.mu.Lock()
	defer c.mu.Unlock()
	return append([]any(nil), c.events...)
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

func TestExecutionAppliesSubmittedOrderOnItsOwnConsumer(t *testing.T) {
	_, eng, collector := newTestExchange(t)
	eng.Start()
	defer eng.Stop()

	eng.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 1})

	waitFor(t, func() bool {
		for _, e := range collector.snapshot() {
			if _, ok := e.(matching.OrderAccepted); ok {
				return true
			}
		}
		return false
	})
}

func TestExecutionIngestsBookDeltasAndFillsRestingOrder(t *testing.T) {
	_, eng, collector := newTestExchange(t)
	eng.Start()
	defer eng.Stop()

	eng.Submit(matching.SubmitOrder{ClientOrderID: "buyer", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 2})
	waitFor(t, func() bool {
		for _, e := range collector.snapshot() {
			if _, ok := e.(matching.OrderAccepted); ok {
				return true
			}
		}
		return false
	})

	eng.ProcessBookDeltas("BTC-USD", book.Deltas{
		Level:       book.L3,
		TimestampNs: 1,
		List: []book.Delta{
			{Type: book.Add, Level: book.L3, TimestampNs: 1, Order: book.Order{ID: "seller-1", Side: book.Sell, Price: 100, Volume: 2}},
		},
	})

	waitFor(t, func() bool {
		for _, e := range collector.snapshot() {
			if f, ok := e.(matching.OrderFilled); ok && f.VenueOrderID != "" {
				return true
			}
		}
		return false
	})
}

func TestExecutionRejectsCommandForUnknownInstrument(t *testing.T) {
	_, eng, collector := newTestExchange(t)
	eng.Start()
	defer eng.Stop()

	eng.Submit(matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "ETH-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 1})

	waitFor(t, func() bool {
		for _, e := range collector.snapshot() {
			if r, ok := e.(matching.OrderRejected); ok && r.Command == "submit" {
				return true
			}
		}
		return false
	})
}
