package persist

import (
	"testing"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/cache"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/msgengine"
)

type memStore struct {
	lists map[string][][]byte
}

func newMemStore() *memStore { return &memStore{lists: make(map[string][][]byte)} }

func (m *memStore) ListAppend(key string, value []byte) (int, error) {
	m.lists[key] = append(m.lists[key], value)
	return len(m.lists[key]), nil
}
func (m *memStore) ListRange(key string) ([][]byte, error)           { return m.lists[key], nil }
func (m *memStore) HashSet(key, field string, value []byte) error    { return nil }
func (m *memStore) HashGetAll(key string) (map[string][]byte, error) { return nil, nil }
func (m *memStore) KeyScanPrefix(prefix string) ([]string, error)    { return nil, nil }
func (m *memStore) Delete(key string) error                          { delete(m.lists, key); return nil }
func (m *memStore) FlushDB() error                                   { m.lists = make(map[string][][]byte); return nil }
func (m *memStore) Close() error                                     { return nil }

func newTestSink() (*Sink, *cache.Cache) {
	c := cache.New(newMemStore(), nil)
	return New(c, nil), c
}

func TestSinkPersistsOrderInitializedOnAcceptance(t *testing.T) {
	sink, c := newTestSink()

	sink.HandleCommand(msgengine.Command{Payload: matching.SubmitOrder{
		ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 5,
	}})
	sink.HandleEvent(matching.OrderAccepted{ClientOrderID: "c1", VenueOrderID: "V1", InstrumentID: "BTC-USD", Ts: 1})

	order, err := c.LoadOrder("V1")
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.InstrumentID != "BTC-USD" || order.Price != 100 || order.Volume != 5 {
		t.Fatalf("unexpected order: %+v", order)
	}
}

func TestSinkDropsPendingSubmitOnPreAcceptanceRejection(t *testing.T) {
	sink, c := newTestSink()

	sink.HandleCommand(msgengine.Command{Payload: matching.SubmitOrder{ClientOrderID: "c1", InstrumentID: "BTC-USD"}})
	sink.HandleEvent(matching.OrderRejected{ClientOrderID: "c1", Command: "submit", Reason: "insufficient balance"})

	// A later, unrelated acceptance reusing the same client id must not
	// resurrect the dropped pending submit.
	sink.HandleEvent(matching.OrderAccepted{ClientOrderID: "c1", VenueOrderID: "V2"})
	if _, err := c.LoadOrder("V2"); err == nil {
		t.Fatalf("expected acceptance with no pending submit to persist nothing")
	}
}

func TestSinkAppendsFillToOrderAndPosition(t *testing.T) {
	sink, c := newTestSink()

	sink.HandleCommand(msgengine.Command{Payload: matching.SubmitOrder{
		ClientOrderID: "c1", InstrumentID: "BTC-USD", Side: book.Buy, Type: matching.Limit, Price: 100, Volume: 5,
	}})
	sink.HandleEvent(matching.OrderAccepted{ClientOrderID: "c1", VenueOrderID: "V1", InstrumentID: "BTC-USD"})
	sink.HandleEvent(matching.OrderFilled{
		VenueOrderID: "V1", InstrumentID: "BTC-USD", PositionID: "P1",
		Side: book.Buy, FillPrice: 100, FillQty: 5, Ts: 2,
	})

	order, err := c.LoadOrder("V1")
	if err != nil {
		t.Fatalf("load order: %v", err)
	}
	if order.FilledVolume != 5 {
		t.Fatalf("expected order filled volume 5, got %d", order.FilledVolume)
	}

	pos, err := c.LoadPosition("P1", "BTC-USD")
	if err != nil {
		t.Fatalf("load position: %v", err)
	}
	if pos.Volume != 5 {
		t.Fatalf("expected position volume 5, got %d", pos.Volume)
	}
}

func TestSinkPersistsAccountStateAsConstructorOnFirstObservation(t *testing.T) {
	sink, c := newTestSink()

	sink.HandleEvent(matching.AccountState{AccountID: "acct-1", Currency: "USD", Total: 1000, Free: 1000, Ts: 1})

	acct, err := c.LoadAccount("acct-1")
	if err != nil {
		t.Fatalf("load account: %v", err)
	}
	if bal := acct.Balances["USD"]; bal.Free != 1000 {
		t.Fatalf("unexpected balance: %+v", bal)
	}
}
