package transport

import (
	"encoding/json"
	"fmt"
	"net/http"
	"strings"

	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"
	"github.com/rs/cors"
	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// CommandGate is the subset of risk.Engine's surface transport drives: every
// inbound HTTP command is submitted through the risk engine first, never
// directly against execution.
type CommandGate interface {
	Submit(matching.SubmitOrder)
	SubmitBracket(matching.SubmitBracketOrder)
	Update(matching.UpdateOrder)
	Cancel(matching.CancelOrder)
}

// BookReader is the read-only exchange surface transport's snapshot
// endpoint queries.
type BookReader interface {
	TopOfBook(instrumentID string) (matching.TopOfBook, bool)
}

// Server is the venue's HTTP + WebSocket gateway.
type Server struct {
	gate   CommandGate
	books  BookReader
	router *mux.Router

	eventHub *hub[any]
	upgrader websocket.Upgrader

	corsOrigin string
	log        *zap.Logger
}

// New builds a Server that submits commands through gate and answers book
// reads through books.
func New(gate CommandGate, books BookReader, corsOrigin string, log *zap.Logger) *Server {
	s := &Server{
		gate:       gate,
		books:      books,
		router:     mux.NewRouter(),
		eventHub:   newHub[any](),
		upgrader:   websocket.Upgrader{CheckOrigin: func(*http.Request) bool { return true }},
		corsOrigin: corsOrigin,
		log:        log,
	}
	s.routes()
	return s
}

// Handler returns the CORS-wrapped router, ready for http.ListenAndServe.
func (s *Server) Handler() http.Handler {
	c := cors.New(cors.Options{
		AllowedOrigins: []string{s.corsOrigin},
		AllowedMethods: []string{http.MethodGet, http.MethodPost, http.MethodPatch, http.MethodOptions},
		AllowedHeaders: []string{"Content-Type", "Authorization"},
	})
	return c.Handler(s.router)
}

// PublishEvent feeds one exchange or risk event to every subscribed
// /ws/events client whose kind filter accepts it. Wired as both
// execution.Sink and risk.Sink.
func (s *Server) PublishEvent(evt any) {
	s.eventHub.Broadcast(eventTypeName(evt), evt)
}

func (s *Server) routes() {
	s.router.HandleFunc("/orders", s.handleSubmit).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/bracket", s.handleSubmitBracket).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/{id}/cancel", s.handleCancel).Methods(http.MethodPost)
	s.router.HandleFunc("/orders/{id}", s.handleUpdate).Methods(http.MethodPatch)
	s.router.HandleFunc("/instruments/{id}/book", s.handleTopOfBook).Methods(http.MethodGet)
	s.router.HandleFunc("/ws/events", s.handleEventStream)
	s.router.HandleFunc("/health", s.handleHealth).Methods(http.MethodGet)
}

func (s *Server) handleSubmit(w http.ResponseWriter, r *http.Request) {
	var req orderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.gate.Submit(cmd)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted", "client_order_id": cmd.ClientOrderID})
}

func (s *Server) handleSubmitBracket(w http.ResponseWriter, r *http.Request) {
	var req bracketRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	cmd, err := req.toCommand()
	if err != nil {
		writeError(w, http.StatusBadRequest, err)
		return
	}
	s.gate.SubmitBracket(cmd)
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "submitted", "client_order_id": cmd.Entry.ClientOrderID})
}

func (s *Server) handleCancel(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["id"]
	var req cancelRequest
	_ = json.NewDecoder(r.Body).Decode(&req) // body is optional

	s.gate.Cancel(matching.CancelOrder{AccountID: req.AccountID, VenueOrderID: venueID, ClientOrderID: req.ClientOrderID})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "cancel submitted", "venue_order_id": venueID})
}

func (s *Server) handleUpdate(w http.ResponseWriter, r *http.Request) {
	venueID := mux.Vars(r)["id"]
	var req updateRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, fmt.Errorf("invalid payload: %w", err))
		return
	}
	s.gate.Update(matching.UpdateOrder{
		AccountID:    req.AccountID,
		VenueOrderID: venueID,
		NewPrice:     book.Price(req.NewPrice),
		NewVolume:    book.Quantity(req.NewVolume),
	})
	writeJSON(w, http.StatusAccepted, map[string]string{"status": "update submitted", "venue_order_id": venueID})
}

func (s *Server) handleTopOfBook(w http.ResponseWriter, r *http.Request) {
	instrumentID := mux.Vars(r)["id"]
	top, ok := s.books.TopOfBook(instrumentID)
	if !ok {
		writeError(w, http.StatusNotFound, fmt.Errorf("unknown instrument %q", instrumentID))
		return
	}
	writeJSON(w, http.StatusOK, topOfBookResponse{
		BidPrice: int64(top.BidPrice), BidQty: int64(top.BidQty),
		AskPrice: int64(top.AskPrice), AskQty: int64(top.AskQty),
	})
}

// handleEventStream upgrades to a WebSocket and streams events until the
// client disconnects. An optional ?kinds=order_filled,order_rejected query
// parameter narrows delivery to those event kinds; omitted, the client
// receives everything.
func (s *Server) handleEventStream(w http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(w, r, nil)
	if err != nil {
		return
	}
	defer conn.Close()

	sub := s.eventHub.Subscribe(64, parseKindFilter(r.URL.Query().Get("kinds")))
	defer s.eventHub.Unsubscribe(sub)

	for evt := range sub.ch {
		if err := conn.WriteJSON(outboundMessage{Type: eventTypeName(evt), Data: evt}); err != nil {
			return
		}
	}
}

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"status":         "ok",
		"ws_subscribers": s.eventHub.Subscribers(),
	})
}

// parseKindFilter turns a comma-separated ?kinds= value into a lookup set;
// an empty value means "no filter, deliver everything".
func parseKindFilter(raw string) map[string]struct{} {
	if raw == "" {
		return nil
	}
	kinds := make(map[string]struct{})
	for _, part := range strings.Split(raw, ",") {
		part = strings.TrimSpace(part)
		if part != "" {
			kinds[part] = struct{}{}
		}
	}
	return kinds
}

func writeError(w http.ResponseWriter, code int, err error) {
	writeJSON(w, code, map[string]string{"error": err.Error()})
}

func writeJSON(w http.ResponseWriter, code int, payload any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	_ = json.NewEncoder(w).Encode(payload)
}

func eventTypeName(evt any) string {
	switch evt.(type) {
	case matching.OrderAccepted:
		return "order_accepted"
	case matching.OrderRejected:
		return "order_rejected"
	case matching.OrderTriggered:
		return "order_triggered"
	case matching.OrderFilled:
		return "order_filled"
	case matching.OrderCanceled:
		return "order_canceled"
	case matching.OrderExpired:
		return "order_expired"
	case matching.OrderUpdated:
		return "order_updated"
	case matching.AccountState:
		return "account_state"
	default:
		return "unknown"
	}
}

func parseSide(value string) (book.Side, error) {
	switch strings.ToLower(value) {
	case "buy", "bid", "b":
		return book.Buy, nil
	case "sell", "ask", "s":
		return book.Sell, nil
	default:
		return book.Buy, fmt.Errorf("unknown side %q", value)
	}
}

func parseOrderType(value string) (matching.OrderType, error) {
	switch strings.ToLower(value) {
	case "limit", "lmt":
		return matching.Limit, nil
	case "market", "mkt":
		return matching.Market, nil
	case "stop_market", "stop-market", "stopmarket":
		return matching.StopMarket, nil
	case "stop_limit", "stop-limit", "stoplimit":
		return matching.StopLimit, nil
	default:
		return 0, fmt.Errorf("unknown order type %q", value)
	}
}

func parseTIF(value string) (matching.TimeInForce, error) {
	switch strings.ToUpper(value) {
	case "", "GTC":
		return matching.GTC, nil
	case "GTD":
		return matching.GTD, nil
	default:
		return 0, fmt.Errorf("unknown time in force %q", value)
	}
}
