// Package risk wraps a msgengine.Engine as the venue's pre-trade gate. It
// never touches the exchange directly — the exchange belongs to exactly one
// engine loop, execution's — so risk keeps its own eventually-consistent
// snapshot of free balances, kept current by AccountState events
// round-tripped to it from execution. Before forwarding an approved command
// on to execution it evaluates a configured per-instrument MaxOrderNotional
// (order price times volume) and MaxPosition (order volume); these checks
// do not read the balance snapshot.
package risk

import (
	"sync"
	"time"

	"go.uber.org/zap"

	"github.com/troubladore/venuecore/book"
	"github.com/troubladore/venuecore/matching"
	"github.com/troubladore/venuecore/msgengine"
)

// Limits are the pre-trade checks evaluated against one instrument's
// incoming orders.
type Limits struct {
	MaxOrderNotional book.Price
	MaxPosition      book.Quantity
}

// Forwarder sends an approved command onward to execution.
type Forwarder func(msgengine.Command)

// Sink receives every event this engine emits on its own account — today,
// only the OrderRejected a blocked pre-trade check produces, since every
// other order lifecycle event originates from execution once a command
// clears this gate.
type Sink func(any)

// Engine is the risk message engine.
type Engine struct {
	msg     *msgengine.Engine
	forward Forwarder
	log     *zap.Logger

	mu       sync.Mutex
	limits   map[string]Limits    // InstrumentID -> Limits
	balances map[string]book.Price // Currency -> last known free balance
	sinks    []Sink
}

// New builds a risk engine that forwards cleared commands via forward
// (typically an execution.Engine's Execute-shaped wrapper).
func New(capacity int, forward Forwarder, log *zap.Logger) *Engine {
	e := &Engine{
		forward:  forward,
		log:      log,
		limits:   make(map[string]Limits),
		balances: make(map[string]book.Price),
	}
	e.msg = msgengine.New("risk", capacity, e.handle, log)
	return e
}

// AddSink registers a callback invoked for every event this engine emits.
func (e *Engine) AddSink(sink Sink) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.sinks = append(e.sinks, sink)
}

// SetLimits configures the checks applied to one instrument's orders. Zero
// fields disable that particular check.
func (e *Engine) SetLimits(instrumentID string, l Limits) {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.limits[instrumentID] = l
}

func (e *Engine) Start()     { e.msg.Start() }
func (e *Engine) Stop()      { e.msg.Stop() }
func (e *Engine) Kill()      { e.msg.Kill() }
func (e *Engine) Qsize() int { return e.msg.Qsize() }

// Submit and SubmitBracket enqueue a new-order command for the risk check;
// Update and Cancel bypass the check and forward straight through, since
// amending down or unwinding exposure never needs gating.
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

// Notify feeds an AccountState produced by execution back into risk's
// balance snapshot. Between engines there is no ordering guarantee, so the
// snapshot can lag the exchange's own balances by the most recent fills.
func (e *Engine) Notify(state matching.AccountState) {
	e.msg.Process(msgengine.Event{Kind: "account_state", Payload: state})
}

func (e *Engine) handle(msg msgengine.Message) {
	switch m := msg.(type) {
	case msgengine.Command:
		e.handleCommand(m)
	case msgengine.Event:
		e.handleEvent(m)
	}
}

func (e *Engine) handleCommand(cmd msgengine.Command) {
	switch p := cmd.Payload.(type) {
	case matching.SubmitOrder:
		if reason, ok := e.check(p); !ok {
			e.reject(p.ClientOrderID, p.InstrumentID, reason)
			return
		}
	case matching.SubmitBracketOrder:
		if reason, ok := e.check(p.Entry); !ok {
			e.reject(p.Entry.ClientOrderID, p.Entry.InstrumentID, reason)
			return
		}
	}
	if e.forward != nil {
		e.forward(cmd)
	}
}

func (e *Engine) emit(evt any) {
	e.mu.Lock()
	sinks := append([]Sink(nil), e.sinks...)
	e.mu.Unlock()
	for _, sink := range sinks {
		sink(evt)
	}
}

func (e *Engine) handleEvent(evt msgengine.Event) {
	state, ok := evt.Payload.(matching.AccountState)
	if !ok {
		return
	}
	e.mu.Lock()
	e.balances[state.Currency] = state.Free
	e.mu.Unlock()
}

// reject logs and emits the OrderRejected a blocked pre-trade check
// produces on risk's own behalf: the command never reaches execution, so
// the exchange never gets a chance to acknowledge it, and every submitted
// order still needs exactly one acknowledgment event, accepted or rejected.
func (e *Engine) reject(clientOrderID, instrumentID, reason string) {
	if e.log != nil {
		e.log.Warn("risk check rejected order",
			zap.String("client_order_id", clientOrderID),
			zap.String("instrument", instrumentID),
			zap.String("reason", reason))
	}
	e.emit(matching.OrderRejected{
		ClientOrderID: clientOrderID,
		InstrumentID:  instrumentID,
		Reason:        reason,
		Command:       "submit",
		Ts:            time.Now().UnixNano(),
	})
}

func (e *Engine) check(order matching.SubmitOrder) (string, bool) {
	e.mu.Lock()
	limits, hasLimits := e.limits[order.InstrumentID]
	e.mu.Unlock()
	if !hasLimits {
		return "", true
	}
	if limits.MaxOrderNotional > 0 && order.Price > 0 {
		notional := book.Price(int64(order.Price) * int64(order.Volume))
		if notional > limits.MaxOrderNotional {
			return "order notional exceeds MaxOrderNotional", false
		}
	}
	if limits.MaxPosition > 0 && order.Volume > limits.MaxPosition {
		return "order volume exceeds MaxPosition", false
	}
	return "", true
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
					e.log.Info("risk queue depth", zap.String("engine", "risk"), zap.Int("depth", e.Qsize()))
				}
			}
		}
	}()
}
