// Package fillmodel is the pure fill-decision function the matching
// engine consults for passive (resting-limit) fills and aggressive-order
// slippage: deterministic given a seed and a fixed sequence of queries,
// using math/rand's seeded Rand rather than crypto/rand since reproducible
// backtests, not unpredictability, are the requirement here.
package fillmodel

import "math/rand"

// Config enumerates the model's tunables.
type Config struct {
	// ProbFillAtLimit is the probability a resting limit order fills when
	// the top of book trades exactly at its price (rather than through it,
	// which always fills).
	ProbFillAtLimit float64
	// ProbSlippage is the probability an aggressive (marketable) order
	// slips one tick worse than the top-of-book price it targeted.
	ProbSlippage float64
	// RandomSeed seeds the model's Rand for deterministic replay.
	RandomSeed int64
}

// Model is a seeded, pure decision function over (order, book state).
type Model struct {
	cfg Config
	rng *rand.Rand
}

// New builds a Model from cfg, seeding its own Rand.
func New(cfg Config) *Model {
	return &Model{cfg: cfg, rng: rand.New(rand.NewSource(cfg.RandomSeed))}
}

// ShouldFillAtLimit decides whether a resting limit order fills when the
// market trades exactly at its price. Trading through the price always
// fills and does not call this.
func (m *Model) ShouldFillAtLimit() bool {
	if m.cfg.ProbFillAtLimit >= 1 {
		return true
	}
	if m.cfg.ProbFillAtLimit <= 0 {
		return false
	}
	return m.rng.Float64() < m.cfg.ProbFillAtLimit
}

// ShouldSlip decides whether an aggressive fill slips one tick worse than
// the top-of-book price it targeted.
func (m *Model) ShouldSlip() bool {
	if m.cfg.ProbSlippage >= 1 {
		return true
	}
	if m.cfg.ProbSlippage <= 0 {
		return false
	}
	return m.rng.Float64() < m.cfg.ProbSlippage
}
