package sim

import (
	"context"
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
)

// Supervisor orchestrates a swarm of bots sharing one ThrottledClient and a
// PnL tracker fed from the venue's fill events.
type Supervisor struct {
	bots     []Bot
	client   *ThrottledClient
	pnl      *pnlTracker
	throttle *time.Ticker
	log      *zap.Logger
}

// NewSupervisor builds a default bot swarm quoting one instrument.
func NewSupervisor(gate CommandGate, books BookReader, instrumentID string, tickSize book.Price, orderInterval time.Duration, log *zap.Logger) *Supervisor {
	throttle := time.NewTicker(orderInterval)
	client := NewThrottledClient(gate, books, instrumentID, tickSize, throttle.C)
	bots := []Bot{
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewRandomBidBot(),
		NewRandomAskBot(),
		NewSpreadCaptureBot(),
	}
	return &Supervisor{
		bots:     bots,
		client:   client,
		pnl:      &pnlTracker{},
		throttle: throttle,
		log:      log,
	}
}

// Start launches every bot and logs PnL on a fixed cadence until ctx is
// canceled.
func (s *Supervisor) Start(ctx context.Context) {
	logTicker := time.NewTicker(2 * time.Second)
	defer logTicker.Stop()
	defer s.throttle.Stop()

	for _, bot := range s.bots {
		b := bot
		go b.Start(ctx, s.client)
	}

	for {
		select {
		case <-ctx.Done():
			return
		case <-logTicker.C:
			pos, cash := s.pnl.Snapshot()
			if s.log != nil {
				s.log.Info("sim pnl", zap.Int64("position", int64(pos)), zap.Int64("cash", int64(cash)))
			}
		}
	}
}

// HandleEvent feeds one exchange event into the client's ownership bridge
// and, for fills, into PnL tracking. Wired as an execution.Sink.
func (s *Supervisor) HandleEvent(evt any) {
	s.client.HandleEvent(evt)
	if fill, ok := evt.(matching.OrderFilled); ok {
		s.pnl.Record(fill, s.client)
	}
}

type pnlTracker struct {
	mu       sync.Mutex
	position book.Quantity
	cash     book.Price
}

func (p *pnlTracker) Record(fill matching.OrderFilled, client *ThrottledClient) {
	if !client.OwnsOrder(fill.VenueOrderID) {
		return
	}
	p.mu.Lock()
	defer p.mu.Unlock()
	if fill.Side == book.Buy {
		p.position += fill.FillQty
		p.cash -= fill.FillPrice * book.Price(fill.FillQty)
	} else {
		p.position -= fill.FillQty
		p.cash += fill.FillPrice * book.Price(fill.FillQty)
	}
}

func (p *pnlTracker) Snapshot() (book.Quantity, book.Price) {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.position, p.cash
}
