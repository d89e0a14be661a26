package sim

import (
	"context"
	"testing"
	"time"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

type fakeGate struct {
	submitted []matching.SubmitOrder
	canceled  []matching.CancelOrder
}

func (g *fakeGate) Submit(cmd matching.SubmitOrder) { g.submitted = append(g.submitted, cmd) }
func (g *fakeGate) Cancel(cmd matching.CancelOrder) { g.canceled = append(g.canceled, cmd) }

type fakeBooks struct {
	top matching.TopOfBook
	ok  bool
}

func (b *fakeBooks) TopOfBook(string) (matching.TopOfBook, bool) { return b.top, b.ok }

func TestClientSubmitTracksPendingThenAcceptedOwnership(t *testing.T) {
	gate := &fakeGate{}
	books := &fakeBooks{ok: true, top: matching.TopOfBook{BidPrice: 100, AskPrice: 102}}
	client := NewThrottledClient(gate, books, "BTC-USD", 1, nil)

	id, err := client.Submit(context.Background(), book.Buy, matching.Limit, 100, 5)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if len(gate.submitted) != 1 || gate.submitted[0].ClientOrderID != id {
		t.Fatalf("expected submitted order with id %q, got %+v", id, gate.submitted)
	}
	if client.OwnsOrder("V1") {
		t.Fatalf("order should not be owned before acceptance")
	}

	client.HandleEvent(matching.OrderAccepted{ClientOrderID: id, VenueOrderID: "V1"})

	if !client.OwnsOrder("V1") {
		t.Fatalf("expected V1 owned after acceptance")
	}
}

func TestClientCancelForwardsClientOrderID(t *testing.T) {
	gate := &fakeGate{}
	client := NewThrottledClient(gate, &fakeBooks{}, "BTC-USD", 1, nil)

	if err := client.Cancel(context.Background(), "bid-1"); err != nil {
		t.Fatalf("cancel: %v", err)
	}
	if len(gate.canceled) != 1 || gate.canceled[0].ClientOrderID != "bid-1" {
		t.Fatalf("unexpected cancel: %+v", gate.canceled)
	}
}

func TestClientSubmitRespectsContextCancellationWhenThrottled(t *testing.T) {
	throttle := make(chan time.Time) // never fires
	gate := &fakeGate{}
	client := NewThrottledClient(gate, &fakeBooks{}, "BTC-USD", 1, throttle)

	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	if _, err := client.Submit(ctx, book.Buy, matching.Limit, 100, 1); err == nil {
		t.Fatalf("expected context error, got nil")
	}
	if len(gate.submitted) != 0 {
		t.Fatalf("expected no submission once context is canceled")
	}
}

func TestMidPriceHandlesOneSidedAndEmptyBooks(t *testing.T) {
	if got := midPrice(matching.TopOfBook{BidPrice: 100, AskPrice: 102}); got != 101 {
		t.Fatalf("mid = %d, want 101", got)
	}
	if got := midPrice(matching.TopOfBook{BidPrice: 100}); got != 100 {
		t.Fatalf("bid-only mid = %d, want 100", got)
	}
	if got := midPrice(matching.TopOfBook{AskPrice: 102}); got != 102 {
		t.Fatalf("ask-only mid = %d, want 102", got)
	}
	if got := midPrice(matching.TopOfBook{}); got != 0 {
		t.Fatalf("empty mid = %d, want 0", got)
	}
}

func TestRandomBidBotPlacesBuyBelowOrAtMid(t *testing.T) {
	gate := &fakeGate{}
	books := &fakeBooks{ok: true, top: matching.TopOfBook{BidPrice: 100, AskPrice: 104}}
	client := NewThrottledClient(gate, books, "BTC-USD", 1, nil)

	bot := NewRandomBidBot()
	bot.RangeTicks = 0 // deterministic: price == mid exactly
	bot.placeBid(context.Background(), client)

	if len(gate.submitted) != 1 {
		t.Fatalf("expected one submitted bid, got %d", len(gate.submitted))
	}
	got := gate.submitted[0]
	if got.Side != book.Buy || got.Price != 102 {
		t.Fatalf("unexpected bid: %+v", got)
	}
}

func TestRandomAskBotPlacesSellAboveOrAtMid(t *testing.T) {
	gate := &fakeGate{}
	books := &fakeBooks{ok: true, top: matching.TopOfBook{BidPrice: 100, AskPrice: 104}}
	client := NewThrottledClient(gate, books, "BTC-USD", 1, nil)

	bot := NewRandomAskBot()
	bot.RangeTicks = 0
	bot.placeAsk(context.Background(), client)

	if len(gate.submitted) != 1 {
		t.Fatalf("expected one submitted ask, got %d", len(gate.submitted))
	}
	got := gate.submitted[0]
	if got.Side != book.Sell || got.Price != 102 {
		t.Fatalf("unexpected ask: %+v", got)
	}
}

func TestSpreadCaptureBotPlacesPairThenRepricesOnMidMove(t *testing.T) {
	gate := &fakeGate{}
	books := &fakeBooks{ok: true, top: matching.TopOfBook{BidPrice: 100, AskPrice: 102}}
	client := NewThrottledClient(gate, books, "BTC-USD", 1, nil)

	bot := NewSpreadCaptureBot()
	pair := bot.refreshPair(context.Background(), client, books.top, nil)
	if pair == nil {
		t.Fatalf("expected a pair to be placed")
	}
	if len(gate.submitted) != 2 {
		t.Fatalf("expected two orders (bid+ask), got %d", len(gate.submitted))
	}

	// mid moves from 101 to 110, well past the 3-tick threshold: expect a
	// cancel of both legs and a replacement pair around the new mid within
	// this call.
	moved := matching.TopOfBook{BidPrice: 109, AskPrice: 111}
	pair = bot.refreshPair(context.Background(), client, moved, pair)
	if pair == nil {
		t.Fatalf("expected a replacement pair after mid moved past threshold")
	}
	if len(gate.canceled) != 2 {
		t.Fatalf("expected both legs canceled, got %d", len(gate.canceled))
	}
	if len(gate.submitted) != 4 || gate.submitted[2].Price != 109 || gate.submitted[3].Price != 111 {
		t.Fatalf("expected a repriced bid at 109 and ask at 111, got %+v", gate.submitted)
	}
}

func TestPnlTrackerOnlyRecordsOwnedFills(t *testing.T) {
	gate := &fakeGate{}
	client := NewThrottledClient(gate, &fakeBooks{}, "BTC-USD", 1, nil)
	id, _ := client.Submit(context.Background(), book.Buy, matching.Limit, 100, 5)
	client.HandleEvent(matching.OrderAccepted{ClientOrderID: id, VenueOrderID: "V1"})

	tracker := &pnlTracker{}
	tracker.Record(matching.OrderFilled{VenueOrderID: "V-other", Side: book.Sell, FillPrice: 100, FillQty: 5}, client)
	if pos, cash := tracker.Snapshot(); pos != 0 || cash != 0 {
		t.Fatalf("expected no change from an unowned fill, got pos=%d cash=%d", pos, cash)
	}

	tracker.Record(matching.OrderFilled{VenueOrderID: "V1", Side: book.Buy, FillPrice: 100, FillQty: 5}, client)
	pos, cash := tracker.Snapshot()
	if pos != 5 || cash != -500 {
		t.Fatalf("unexpected pnl after owned buy fill: pos=%d cash=%d", pos, cash)
	}
}

func TestSupervisorHandleEventBridgesAcceptanceAndFeedsPnl(t *testing.T) {
	gate := &fakeGate{}
	books := &fakeBooks{ok: true, top: matching.TopOfBook{BidPrice: 100, AskPrice: 102}}
	sup := NewSupervisor(gate, books, "BTC-USD", 1, time.Millisecond, nil)

	id, _ := sup.client.Submit(context.Background(), book.Buy, matching.Limit, 100, 2)
	sup.HandleEvent(matching.OrderAccepted{ClientOrderID: id, VenueOrderID: "V9"})
	sup.HandleEvent(matching.OrderFilled{VenueOrderID: "V9", Side: book.Buy, FillPrice: 100, FillQty: 2})

	pos, cash := sup.pnl.Snapshot()
	if pos != 2 || cash != -200 {
		t.Fatalf("unexpected supervisor pnl: pos=%d cash=%d", pos, cash)
	}
}
