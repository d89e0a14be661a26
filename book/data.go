package book

// DeltaType classifies an incremental book update.
type DeltaType int

const (
	// Add inserts a new resting order.
	Add DeltaType = iota
	// UpdateDelta replaces an existing resting order (or the whole level in L1/L2).
	UpdateDelta
	// Delete removes a resting order.
	Delete
)

// Delta is a single incremental book change.
type Delta struct {
	Type      DeltaType
	Order     Order
	Level     Level
	TimestampNs int64
}

// Deltas is an atomically-applied batch of Delta.
type Deltas struct {
	List        []Delta
	Level       Level
	TimestampNs int64
}

// SnapshotEntry is one (price, volume) pair in a Snapshot.
type SnapshotEntry struct {
	Price  Price
	Volume Quantity
}

// Snapshot is a full replacement of both sides of a book.
type Snapshot struct {
	Bids        []SnapshotEntry
	Asks        []SnapshotEntry
	Level       Level
	TimestampNs int64
}
