package transport

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/troubladore/venuecore/matching"
)

type fakeGate struct {
	submitted []matching.SubmitOrder
	brackets  []matching.SubmitBracketOrder
	updates   []matching.UpdateOrder
	cancels   []matching.CancelOrder
}

func (g *fakeGate) Submit(cmd matching.SubmitOrder)               { g.submitted = append(g.submitted, cmd) }
func (g *fakeGate) SubmitBracket(cmd matching.SubmitBracketOrder) { g.brackets = append(g.brackets, cmd) }
func (g *fakeGate) Update(cmd matching.UpdateOrder)               { g.updates = append(g.updates, cmd) }
func (g *fakeGate) Cancel(cmd matching.CancelOrder)               { g.cancels = append(g.cancels, cmd) }

type fakeBooks struct {
	tops map[string]matching.TopOfBook
}

func (b *fakeBooks) TopOfBook(instrumentID string) (matching.TopOfBook, bool) {
	t, ok := b.tops[instrumentID]
	return t, ok
}

func newTestServer() (*Server, *fakeGate, *fakeBooks) {
	gate := &fakeGate{}
	books := &fakeBooks{tops: map[string]matching.TopOfBook{
		"BTC-USD": {BidPrice: 100, BidQty: 5, AskPrice: 101, AskQty: 3},
	}}
	return New(gate, books, "*", nil), gate, books
}

func TestHandleSubmitEnqueuesParsedOrder(t *testing.T) {
	s, gate, _ := newTestServer()
	body := `{"client_order_id":"c1","instrument_id":"BTC-USD","side":"buy","type":"limit","price":100,"volume":2}`
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusAccepted, w.Body.String())
	}
	if len(gate.submitted) != 1 {
		t.Fatalf("expected one submitted order, got %d", len(gate.submitted))
	}
	got := gate.submitted[0]
	if got.ClientOrderID != "c1" || got.InstrumentID != "BTC-USD" || got.Volume != 2 {
		t.Fatalf("unexpected command: %+v", got)
	}
}

func TestHandleSubmitRejectsUnknownSide(t *testing.T) {
	s, _, _ := newTestServer()
	body := `{"client_order_id":"c1","instrument_id":"BTC-USD","side":"sideways","type":"limit","price":100,"volume":2}`
	req := httptest.NewRequest(http.MethodPost, "/orders", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusBadRequest {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusBadRequest)
	}
}

func TestHandleSubmitBracketBuildsEntryAndLegs(t *testing.T) {
	s, gate, _ := newTestServer()
	body := `{
		"entry": {"client_order_id":"e1","instrument_id":"BTC-USD","side":"buy","type":"limit","price":100,"volume":2},
		"take_profit": {"client_order_id":"tp1","instrument_id":"BTC-USD","side":"sell","type":"limit","price":110,"volume":2},
		"stop_loss": {"client_order_id":"sl1","instrument_id":"BTC-USD","side":"sell","type":"stop_market","trigger_price":90,"volume":2}
	}`
	req := httptest.NewRequest(http.MethodPost, "/orders/bracket", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d, body=%s", w.Code, http.StatusAccepted, w.Body.String())
	}
	if len(gate.brackets) != 1 {
		t.Fatalf("expected one bracket order, got %d", len(gate.brackets))
	}
	got := gate.brackets[0]
	if got.TakeProfit == nil || got.StopLoss == nil {
		t.Fatalf("expected both legs present: %+v", got)
	}
	if got.StopLoss.Type != matching.StopMarket {
		t.Fatalf("expected stop-loss leg to parse as StopMarket, got %v", got.StopLoss.Type)
	}
}

func TestHandleCancelUsesPathVenueOrderID(t *testing.T) {
	s, gate, _ := newTestServer()
	req := httptest.NewRequest(http.MethodPost, "/orders/O-BTC-USD-1/cancel", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if len(gate.cancels) != 1 || gate.cancels[0].VenueOrderID != "O-BTC-USD-1" {
		t.Fatalf("unexpected cancel: %+v", gate.cancels)
	}
}

func TestHandleUpdatePatchesPriceAndVolume(t *testing.T) {
	s, gate, _ := newTestServer()
	body := `{"new_price":105,"new_volume":3}`
	req := httptest.NewRequest(http.MethodPatch, "/orders/O-BTC-USD-1", bytes.NewBufferString(body))
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusAccepted {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusAccepted)
	}
	if len(gate.updates) != 1 || gate.updates[0].NewPrice != 105 || gate.updates[0].NewVolume != 3 {
		t.Fatalf("unexpected update: %+v", gate.updates)
	}
}

func TestHandleTopOfBookReturnsKnownInstrument(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/instruments/BTC-USD/book", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
	var resp topOfBookResponse
	if err := json.Unmarshal(w.Body.Bytes(), &resp); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if resp.BidPrice != 100 || resp.AskPrice != 101 {
		t.Fatalf("unexpected response: %+v", resp)
	}
}

func TestHandleTopOfBookRejectsUnknownInstrument(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/instruments/ETH-USD/book", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusNotFound {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusNotFound)
	}
}

func TestHealthCheck(t *testing.T) {
	s, _, _ := newTestServer()
	req := httptest.NewRequest(http.MethodGet, "/health", nil)
	w := httptest.NewRecorder()

	s.Handler().ServeHTTP(w, req)

	if w.Code != http.StatusOK {
		t.Fatalf("status = %d, want %d", w.Code, http.StatusOK)
	}
}
