package matching

import (
	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/ids"
	"github.com/troubladore/venuecore/internal/xerrors"
	"github.com/troubladore/venuecore/matching/fillmodel"
)

// Instrument is the exchange's static per-symbol configuration.
type Instrument struct {
	ID                string
	Currency          string
	BookLevel         book.Level
	PricePrecision    int
	SizePrecision     int
	CommissionRateBps int64
}

// SimulatedExchange owns one account, its per-instrument order books, the
// working-order table, OCO/bracket link tables, the position index, and a
// fill model. It runs single-threaded and synchronously: callers (the
// owning engine loop) drive it via ProcessOrderBook*/ProcessTick and the
// command methods, per the venue's cooperative concurrency model.
type SimulatedExchange struct {
	instruments map[string]Instrument
	books       map[string]*book.OrderBook

	working    map[string]*WorkingOrder // VenueOrderID -> order
	byClientID map[string]string        // ClientOrderID -> VenueOrderID

	ocoLinks        map[string]string   // VenueOrderID -> sibling VenueOrderID
	bracketChildren map[string][]string // parent VenueOrderID -> child VenueOrderIDs
	pendingOCO      map[string]string   // LinkID -> first VenueOrderID awaiting its sibling

	positions map[string]*Position // InstrumentID -> net position
	account   *Account

	fillModel *fillmodel.Model
	orderSeq  *ids.Sequencer
	posSeq    *ids.Sequencer
	execSeq   *ids.Sequencer

	nowNs int64

	onEvent func(any)
	log     *zap.Logger
}

// New builds an exchange for one account.
func New(account *Account, fm *fillmodel.Model, onEvent func(any), log *zap.Logger) *SimulatedExchange {
	return &SimulatedExchange{
		instruments:     make(map[string]Instrument),
		books:           make(map[string]*book.OrderBook),
		working:         make(map[string]*WorkingOrder),
		byClientID:      make(map[string]string),
		ocoLinks:        make(map[string]string),
		bracketChildren: make(map[string][]string),
		pendingOCO:      make(map[string]string),
		positions:       make(map[string]*Position),
		account:         account,
		fillModel:       fm,
		orderSeq:        ids.NewSequencer("O"),
		posSeq:          ids.NewSequencer("P"),
		execSeq:         ids.NewSequencer("E"),
		onEvent:         onEvent,
		log:             log,
	}
}

func (x *SimulatedExchange) emit(evt any) {
	if x.onEvent != nil {
		x.onEvent(evt)
	}
}

// RegisterInstrument adds a tradable instrument with a fresh, empty book.
func (x *SimulatedExchange) RegisterInstrument(inst Instrument) error {
	ob, err := book.NewOrderBook(inst.ID, inst.BookLevel, inst.PricePrecision, inst.SizePrecision)
	if err != nil {
		return err
	}
	x.instruments[inst.ID] = inst
	x.books[inst.ID] = ob
	return nil
}

// ProcessOrderBookDeltas ingests an incremental book update and runs the
// matching cycle for its instrument.
func (x *SimulatedExchange) ProcessOrderBookDeltas(instrumentID string, ds book.Deltas) error {
	ob, err := x.bookFor(instrumentID)
	if err != nil {
		return err
	}
	if err := ob.ApplyDeltas(ds); err != nil {
		return err
	}
	x.advance(ds.TimestampNs)
	x.runMatchingCycle(instrumentID)
	return nil
}

// ProcessOrderBookSnapshot ingests a full book replacement and runs the
// matching cycle for its instrument.
func (x *SimulatedExchange) ProcessOrderBookSnapshot(instrumentID string, s book.Snapshot) error {
	ob, err := x.bookFor(instrumentID)
	if err != nil {
		return err
	}
	if err := ob.ApplySnapshot(s); err != nil {
		return err
	}
	x.advance(s.TimestampNs)
	x.runMatchingCycle(instrumentID)
	return nil
}

// ProcessTick ingests an L1 top-of-book tick (quote or trade, exactly one
// of which must be non-nil) and runs the matching cycle for its instrument.
func (x *SimulatedExchange) ProcessTick(instrumentID string, quote *book.QuoteTick, trade *book.TradeTick) error {
	ob, err := x.bookFor(instrumentID)
	if err != nil {
		return err
	}
	if err := ob.UpdateTop(quote, trade); err != nil {
		return err
	}
	if quote != nil {
		x.advance(quote.TimestampNs)
	}
	if trade != nil {
		x.advance(trade.TimestampNs)
	}
	x.runMatchingCycle(instrumentID)
	return nil
}

// TopOfBook is a read-only best-bid/best-ask view of one instrument's book.
type TopOfBook struct {
	BidPrice book.Price
	BidQty   book.Quantity
	AskPrice book.Price
	AskQty   book.Quantity
}

// TopOfBook reports the current best bid/ask for instrumentID. ok is false
// if the instrument is unknown; a known but empty side is simply zero.
func (x *SimulatedExchange) TopOfBook(instrumentID string) (TopOfBook, bool) {
	ob, ok := x.books[instrumentID]
	if !ok {
		return TopOfBook{}, false
	}
	var t TopOfBook
	t.BidPrice, _ = ob.BestBidPrice()
	t.BidQty, _ = ob.BestBidQty()
	t.AskPrice, _ = ob.BestAskPrice()
	t.AskQty, _ = ob.BestAskQty()
	return t, true
}

// Position returns the exchange's live net position for instrumentID.
func (x *SimulatedExchange) Position(instrumentID string) (Position, bool) {
	pos, ok := x.positions[instrumentID]
	if !ok {
		return Position{}, false
	}
	return *pos, true
}

func (x *SimulatedExchange) bookFor(instrumentID string) (*book.OrderBook, error) {
	ob, ok := x.books[instrumentID]
	if !ok {
		return nil, xerrors.New("unknown instrument: " + instrumentID)
	}
	return ob, nil
}

func (x *SimulatedExchange) advance(ts int64) {
	if ts > x.nowNs {
		x.nowNs = ts
	}
}
