// Package ids generates identifiers for the matching engine: monotonic
// per-instrument sequence numbers for VenueOrderId/PositionId/ExecutionId,
// and UUID-based correlation ids for cross-engine tracing.
package ids

import (
	"fmt"
	"sync"

	"github.com/google/uuid"
)

// Sequencer hands out monotonically increasing identifiers scoped per
// instrument. Values are never reused across calls; only an explicit
// Reset clears a counter, matching the venue's "counters reset only with
// reset()" contract.
type Sequencer struct {
	mu     sync.Mutex
	prefix string
	counts map[string]uint64
}

// NewSequencer builds a Sequencer whose generated ids carry the given
// prefix, e.g. "O" for VenueOrderId, "P" for PositionId, "E" for ExecutionId.
func NewSequencer(prefix string) *Sequencer {
	return &Sequencer{prefix: prefix, counts: make(map[string]uint64)}
}

// Next returns the next id for the given instrument, e.g. "O-BTC-USD-1".
func (s *Sequencer) Next(instrumentID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.counts[instrumentID]++
	return fmt.Sprintf("%s-%s-%d", s.prefix, instrumentID, s.counts[instrumentID])
}

// Reset zeroes the counter for one instrument. Values already handed out
// are never reused even after a reset targets a different instrument;
// only counters explicitly reset restart from zero.
func (s *Sequencer) Reset(instrumentID string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.counts, instrumentID)
}

// Peek reports the last value handed out for an instrument, without
// consuming a new one.
func (s *Sequencer) Peek(instrumentID string) uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.counts[instrumentID]
}

// NewCorrelationID mints a random UUID for tracing a command across the
// risk and execution engines, which offer no ordering guarantee relative
// to each other.
func NewCorrelationID() string {
	return uuid.NewString()
}
