// Package msgengine implements the bounded FIFO, single-consumer engine
// used to decouple the matching engine from the risk and execution
// pipelines: a blocking-put-on-full queue drained by exactly one consumer
// goroutine, with an explicit graceful Stop (drain to completion) and an
// abrupt Kill (discard and return immediately).
package msgengine

import (
	"sync"
	"sync/atomic"

	"go.uber.org/zap"
)

// DefaultCapacity is the default bounded queue depth (Q in the design).
const DefaultCapacity = 10000

// Message is anything the engine can carry: a command flowing in from a
// strategy, or an event flowing out of the matching engine.
type Message interface {
	isMessage()
}

// Command is an inbound instruction (e.g. SubmitOrder) routed to a Handler.
type Command struct {
	Kind    string
	Payload any
}

func (Command) isMessage() {}

// Event is an outbound notification (e.g. OrderFilled) routed to a Handler.
type Event struct {
	Kind    string
	Payload any
}

func (Event) isMessage() {}

// Handler processes one dequeued message. Handlers must be internally
// idempotent: a kill can interrupt processing without rollback.
type Handler func(Message)

// closeSignal is a dedicated sentinel value, never a bare nil, so that a
// genuinely nil-payloaded Command/Event can still flow through the queue
// without being mistaken for shutdown.
type closeSignal struct{}

func (closeSignal) isMessage() {}

// Engine is a bounded FIFO queue drained by a single cooperative consumer.
type Engine struct {
	name    string
	log     *zap.Logger
	handler Handler

	queue chan Message

	running int32
	mu      sync.Mutex
	done    chan struct{}
	killed  int32
}

// New builds an Engine with the given name (used in log lines), capacity,
// and message handler. Capacity <= 0 falls back to DefaultCapacity.
func New(name string, capacity int, handler Handler, log *zap.Logger) *Engine {
	if capacity <= 0 {
		capacity = DefaultCapacity
	}
	return &Engine{
		name:    name,
		log:     log,
		handler: handler,
		queue:   make(chan Message, capacity),
	}
}

// Execute enqueues a Command. See Process for the full enqueue contract.
func (e *Engine) Execute(cmd Command) {
	e.put(cmd)
}

// Process enqueues an Event. On a full queue this logs a warning and
// performs a blocking put: the caller waits until space appears rather
// than dropping the message.
func (e *Engine) Process(evt Event) {
	e.put(evt)
}

func (e *Engine) put(m Message) {
	select {
	case e.queue <- m:
		return
	default:
	}
	if e.log != nil {
		e.log.Warn("engine queue full, blocking producer", zap.String("engine", e.name), zap.Int("depth", len(e.queue)))
	}
	e.queue <- m
}

// Qsize reports the current queue depth.
func (e *Engine) Qsize() int {
	return len(e.queue)
}

// Start marks the engine running and spawns its consumer goroutine.
// Calling Start twice is a no-op.
func (e *Engine) Start() {
	e.mu.Lock()
	defer e.mu.Unlock()
	if atomic.LoadInt32(&e.running) == 1 {
		return
	}
	atomic.StoreInt32(&e.running, 1)
	atomic.StoreInt32(&e.killed, 0)
	e.done = make(chan struct{})
	go e.consume(e.done)
}

// Stop marks the engine not-running and pushes the close signal so the
// consumer wakes, observes the flag, and returns after draining what is
// already queued ahead of the signal.
func (e *Engine) Stop() {
	if !atomic.CompareAndSwapInt32(&e.running, 1, 0) {
		return
	}
	e.queue <- closeSignal{}
	<-e.done
}

// Kill abruptly cancels the consumer: residual messages are discarded and
// their count logged, unlike Stop's drain-to-sentinel behavior.
func (e *Engine) Kill() {
	if atomic.LoadInt32(&e.running) == 0 && atomic.LoadInt32(&e.killed) == 0 {
		return
	}
	atomic.StoreInt32(&e.running, 0)
	atomic.StoreInt32(&e.killed, 1)
	residual := len(e.queue)
	if e.log != nil {
		e.log.Warn("engine killed, discarding residual messages", zap.String("engine", e.name), zap.Int("residual", residual))
	}
	select {
	case e.queue <- closeSignal{}:
	default:
		// Queue is momentarily full; the consumer will still see killed=1
		// once it processes whatever is ahead and calls isKilled.
	}
}

func (e *Engine) isKilled() bool {
	return atomic.LoadInt32(&e.killed) == 1
}

func (e *Engine) consume(done chan struct{}) {
	defer close(done)
	for {
		if e.isKilled() {
			return
		}
		msg := <-e.queue
		switch msg.(type) {
		case closeSignal:
			if atomic.LoadInt32(&e.running) == 0 {
				return
			}
			continue
		}
		if e.isKilled() {
			return
		}
		e.dispatch(msg)
	}
}

func (e *Engine) dispatch(msg Message) {
	switch msg.(type) {
	case Command, Event:
		e.handler(msg)
	default:
		if e.log != nil {
			e.log.Error("unknown message kind, dropping", zap.String("engine", e.name))
		}
	}
}
