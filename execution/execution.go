// Package execution wraps a msgengine.Engine around the matching engine's
// single-threaded SimulatedExchange. Its queue carries two distinct message
// flows: Commands are strategy-issued order instructions (already cleared
// by risk), Events are market-data ingestion (order book deltas/snapshots,
// ticks) — both drain on the same single consumer, so the exchange they
// drive never sees concurrent callers. Fills, accepts, and the rest of the
// exchange's own output events are fanned out to registered sinks directly
// on that same consumer goroutine rather than re-queued: the exchange
// already runs synchronously on it.
package execution

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/msgengine"
)

// Sink receives every event the exchange emits, in emission order.
type Sink func(any)

// CommandSink receives every command this engine dispatches, before the
// exchange applies it.
type CommandSink func(msgengine.Command)

// Engine is the execution message engine.
type Engine struct {
	msg      *msgengine.Engine
	exchange *matching.SimulatedExchange
	log      *zap.Logger

	mu           sync.Mutex
	sinks        []Sink
	commandSinks []CommandSink
	tops         map[string]matching.TopOfBook
}

type bookDeltasMsg struct {
	InstrumentID string
	Deltas       book.Deltas
}

type bookSnapshotMsg struct {
	InstrumentID string
	Snapshot     book.Snapshot
}

type tickMsg struct {
	InstrumentID string
	Quote        *book.QuoteTick
	Trade        *book.TradeTick
}

// New builds an execution engine with the given queue capacity (0 falls
// back to msgengine.DefaultCapacity). Attach must be called with the
// exchange this engine drives before Start: the exchange's own onEvent
// callback is this engine's OnExchangeEvent, so construction is two-phase.
func New(capacity int, log *zap.Logger) *Engine {
	e := &Engine{log: log, tops: make(map[string]matching.TopOfBook)}
	e.msg = msgengine.New("execution", capacity, e.handle, log)
	return e
}

// Attach binds the exchange this engine's consumer applies commands to.
func (e *Engine) Attach(exchange *matching.SimulatedExchange) {
	e.exchange = exchange
}

// AddSink registers a callback invoked for every exchange event.
func (e *Engine) AddSink(sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// AddCommandSink registers a callback invoked for every command this
// engine's consumer is about to apply to the exchange.
func (e *Engine) AddCommandSink(sink CommandSink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.commandSinks = append(e.commandSinks, sink)
}

// OnExchangeEvent is wired as the exchange's onEvent callback. It runs
// synchronously on this engine's consumer goroutine, so refreshing the
// top-of-book cache here is as safe as refreshing it after a dispatch.
func (e *Engine) OnExchangeEvent(evt any) {
	switch ev := evt.(type) {
	case matching.OrderAccepted:
		e.refreshTop(ev.InstrumentID)
	case matching.OrderFilled:
		e.refreshTop(ev.InstrumentID)
	}

	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()
	for _, sink := range sinks {
		sink(evt)
	}
}

// TopOfBook is the safe, cross-goroutine way to read an instrument's best
// bid/ask: the exchange itself has no internal locking (it is owned solely
// by this engine's consumer goroutine), so external callers such as
// transport and sim read this cache instead of the exchange directly.
func (e *Engine) TopOfBook(instrumentID string) (matching.TopOfBook, bool) {
	e.mu.Lock()
	defer e.mu.Unlock()
	top, ok := e.tops[instrumentID]
	return top, ok
}

// refreshTop must only be called from the consumer goroutine: it reads the
// exchange directly and republishes the result under the cache's lock.
func (e *Engine) refreshTop(instrumentID string) {
	top, ok := e.exchange.TopOfBook(instrumentID)
	if !ok {
		return
	}
	e.mu.Lock()
	e.tops[instrumentID] = top
	e.mu.Unlock()
}

// refreshKnownTops re-reads every instrument already in the cache, for
// commands (Update, Cancel) that carry no InstrumentID.
func (e *Engine) refreshKnownTops() {
	e.mu.Lock()
	ids := make([]string, 0, len(e.tops))
	for id := range e.tops {
		ids = append(ids, id)
	}
	e.mu.Unlock()
	for _, id := range ids {
		e.refreshTop(id)
	}
}

func (e *Engine) Start()     { e.msg.Start() }
func (e *Engine) Stop()      { e.msg.Stop() }
func (e *Engine) Kill()      { e.msg.Kill() }
func (e *Engine) Qsize() int { return e.msg.Qsize() }

// Forward enqueues a command risk has already approved, preserving the
// Command shape risk built. Wired as a risk.Forwarder.
func (e *Engine) Forward(cmd msgengine.Command) {
	e.msg.Execute(cmd)
}

// Submit, SubmitBracket, Update, and Cancel enqueue a strategy command for
// this engine's consumer to apply against the exchange.
func (e *Engine) Submit(cmd matching.SubmitOrder) {
	e.msg.Execute(msgengine.Command{Kind: "submit_order", Payload: cmd})
}

func (e *Engine) SubmitBracket(cmd matching.SubmitBracketOrder) {
	e.msg.Execute(msgengine.Command{Kind: "submit_bracket_order", Payload: cmd})
}

func (e *Engine) Update(cmd matching.UpdateOrder) {
	e.msg.Execute(msgengine.Command{Kind: "update_order", Payload: cmd})
}

func (e *Engine) Cancel(cmd matching.CancelOrder) {
	e.msg.Execute(msgengine.Command{Kind: "cancel_order", Payload: cmd})
}

// ProcessBookDeltas, ProcessBookSnapshot, and ProcessTick enqueue inbound
// market data for this engine's consumer to feed into the exchange.
func (e *Engine) ProcessBookDeltas(instrumentID string, deltas book.Deltas) {
	e.msg.Process(msgengine.Event{Kind: "book_deltas", Payload: bookDeltasMsg{InstrumentID: instrumentID, Deltas: deltas}})
}

func (e *Engine) ProcessBookSnapshot(instrumentID string, snap book.Snapshot) {
	e.msg.Process(msgengine.Event{Kind: "book_snapshot", Payload: bookSnapshotMsg{InstrumentID: instrumentID, Snapshot: snap}})
}

func (e *Engine) ProcessTick(instrumentID string, quote *book.QuoteTick, trade *book.TradeTick) {
	e.msg.Process(msgengine.Event{Kind: "tick", Payload: tickMsg{InstrumentID: instrumentID, Quote: quote, Trade: trade}})
}

func (e *Engine) handle(msg msgengine.Message) {
	switch m := msg.(type) {
	case msgengine.Command:
		e.dispatchCommand(m)
	case msgengine.Event:
		e.dispatchEvent(m)
	}
}

func (e *Engine) dispatchCommand(cmd msgengine.Command) {
	e.mu.Lock()
	sinks := append([]CommandSink(nil), e.commandSinks...)
	e.mu.Unlock()
	for _, sink := range sinks {
		sink(cmd)
	}

	switch p := cmd.Payload.(type) {
	case matching.SubmitOrder:
		e.exchange.SubmitOrder(p)
		e.refreshTop(p.InstrumentID)
	case matching.SubmitBracketOrder:
		e.exchange.SubmitBracketOrder(p)
		e.refreshTop(p.Entry.InstrumentID)
	case matching.UpdateOrder:
		e.exchange.UpdateOrder(p)
		e.refreshKnownTops()
	case matching.CancelOrder:
		e.exchange.CancelOrder(p)
		e.refreshKnownTops()
	default:
		if e.log != nil {
			e.log.Error("execution: unknown command payload, dropping", zap.String("kind", cmd.Kind))
		}
	}
}

func (e *Engine) dispatchEvent(evt msgengine.Event) {
	switch p := evt.Payload.(type) {
	case bookDeltasMsg:
		if err := e.exchange.ProcessOrderBookDeltas(p.InstrumentID, p.Deltas); err != nil && e.log != nil {
			e.log.Warn("execution: book deltas rejected", zap.String("instrument", p.InstrumentID), zap.Error(err))
		}
		e.refreshTop(p.InstrumentID)
	case bookSnapshotMsg:
		if err := e.exchange.ProcessOrderBookSnapshot(p.InstrumentID, p.Snapshot); err != nil && e.log != nil {
			e.log.Warn("execution: book snapshot rejected", zap.String("instrument", p.InstrumentID), zap.Error(err))
		}
		e.refreshTop(p.InstrumentID)
	case tickMsg:
		if err := e.exchange.ProcessTick(p.InstrumentID, p.Quote, p.Trade); err != nil && e.log != nil {
			e.log.Warn("execution: tick rejected", zap.String("instrument", p.InstrumentID), zap.Error(err))
		}
		e.refreshTop(p.InstrumentID)
	default:
		if e.log != nil {
			e.log.Error("execution: unknown event payload, dropping", zap.String("kind", evt.Kind))
		}
	}
}

// StartQueueGauge logs this engine's queue depth on a fixed interval until
// stop is closed.
func (e *Engine) StartQueueGauge(interval time.Duration, stop <-chan struct{}) {
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-stop:
				return
			case <-ticker.C:
				if e.log != nil {
					e.log.Info("execution queue depth", zap.String("engine", "execution"), zap.Int("depth", e.Qsize()))
				}
			}
		}
	}()
}
