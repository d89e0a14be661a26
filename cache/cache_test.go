package cache

import (
	"testing"

	"github.com/troubladore/venuecore/book"
)

type memStore struct {
	lists map[string][][]byte
	hash  map[string]map[string][]byte
}

func newMemStore() *memStore {
	return &memStore{lists: make(map[string][][]byte), hash: make(map[string]map[string][]byte)}
}

func (m *memStore) ListAppend(key string, value []byte) (int, error) {
	m.lists[key] = append(m.lists[key], value)
	return len(m.lists[key]), nil
}
func (m *memStore) ListRange(key string) ([][]byte, error) { return m.lists[key], nil }
func (m *memStore) HashSet(key, field string, value []byte) error {
	if m.hash[key] == nil {
		m.hash[key] = make(map[string][]byte)
	}
	m.hash[key][field] = value
	return nil
}
func (m *memStore) HashGetAll(key string) (map[string][]byte, error) { return m.hash[key], nil }
func (m *memStore) KeyScanPrefix(prefix string) ([]string, error)    { return nil, nil }
func (m *memStore) Delete(key string) error {
	delete(m.lists, key)
	delete(m.hash, key)
	return nil
}
func (m *memStore) FlushDB() error {
	m.lists = make(map[string][][]byte)
	m.hash = make(map[string]map[string][]byte)
	return nil
}
func (m *memStore) Close() error { return nil }

func TestLoadAccountFoldsBalanceUpdates(t *testing.T) {
	c := New(newMemStore(), nil)
	if err := c.AppendAccountEvent("trader-1", AccountStateEvent{AccountID: "trader-1", Currency: "USD", Total: 1000, Free: 1000}, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	if err := c.AppendAccountEvent("trader-1", AccountStateEvent{AccountID: "trader-1", Currency: "USD", Total: 1000, Free: 400, Locked: 600}, false); err != nil {
		t.Fatalf("append: %v", err)
	}

	acc, err := c.LoadAccount("trader-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	bal := acc.Balances["USD"]
	if bal.Free != 400 || bal.Locked != 600 {
		t.Fatalf("unexpected balance after fold: %+v", bal)
	}
}

func TestLoadAccountNotFound(t *testing.T) {
	c := New(newMemStore(), nil)
	if _, err := c.LoadAccount("ghost"); err != ErrNotFound {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
}

func TestLoadOrderDispatchesConstructorAndFolds(t *testing.T) {
	c := New(newMemStore(), nil)
	init := OrderInitializedEvent{OrderID: "O-1", InstrumentID: "BTC-USD", Side: book.Buy, OrderType: "LIMIT", Price: 100, Volume: 10}
	if err := c.AppendOrderEvent("O-1", Event{Kind: KindOrderInitialized, Payload: init}, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	fill := OrderFilledEvent{OrderID: "O-1", PositionID: "P-1", Side: book.Buy, FillPrice: 100, FillQty: 4}
	if err := c.AppendOrderEvent("O-1", Event{Kind: KindOrderFilled, Payload: fill}, false); err != nil {
		t.Fatalf("append: %v", err)
	}

	o, err := c.LoadOrder("O-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if o.FilledVolume != 4 || o.Status != OrderStatusPartFilled {
		t.Fatalf("unexpected order state: %+v", o)
	}

	fill2 := OrderFilledEvent{OrderID: "O-1", PositionID: "P-1", Side: book.Buy, FillPrice: 101, FillQty: 6}
	if err := c.AppendOrderEvent("O-1", Event{Kind: KindOrderFilled, Payload: fill2}, false); err != nil {
		t.Fatalf("append: %v", err)
	}
	o, err = c.LoadOrder("O-1")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if o.Status != OrderStatusFilled {
		t.Fatalf("expected order fully filled, got %v", o.Status)
	}
}

func TestLoadPositionFoldsOppositeFillsAsReduction(t *testing.T) {
	c := New(newMemStore(), nil)
	open := OrderFilledEvent{OrderID: "O-1", PositionID: "P-1", Side: book.Buy, FillPrice: 100, FillQty: 10}
	if err := c.AppendPositionEvent("P-1", open, true); err != nil {
		t.Fatalf("append: %v", err)
	}
	reduce := OrderFilledEvent{OrderID: "O-2", PositionID: "P-1", Side: book.Sell, FillPrice: 110, FillQty: 4}
	if err := c.AppendPositionEvent("P-1", reduce, false); err != nil {
		t.Fatalf("append: %v", err)
	}

	pos, err := c.LoadPosition("P-1", "BTC-USD")
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	if pos.Volume != 6 {
		t.Fatalf("expected remaining volume 6, got %v", pos.Volume)
	}
	if pos.RealizedPnL != 40 {
		t.Fatalf("expected realized pnl 40, got %v", pos.RealizedPnL)
	}
}

func TestStrategyStateRoundTrip(t *testing.T) {
	c := New(newMemStore(), nil)
	if err := c.SetStrategyState("trader-1", "cursor", []byte("7")); err != nil {
		t.Fatalf("set: %v", err)
	}
	got, err := c.GetStrategyState("trader-1")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	if string(got["cursor"]) != "7" {
		t.Fatalf("unexpected state: %v", got)
	}
}
