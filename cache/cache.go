package cache

import (
	"fmt"

	"go.uber.org/zap"

	"github.com/troubladore/venuecore/internal/xerrors"
	"github.com/troubladore/venuecore/store"
)

// Cache is the event-sourced reconstruction layer sitting in front of a
// store.Store. It never caches decoded aggregates across calls: every
// Load replays the full event list, matching the durability contract's
// "reconstruct by folding" semantics rather than an in-memory read cache.
type Cache struct {
	store store.Store
	codec Serializer
	log   *zap.Logger
}

// New builds a Cache over the given backing store.
func New(s store.Store, log *zap.Logger) *Cache {
	return &Cache{store: s, codec: JSONSerializer{}, log: log}
}

func accountKey(traderID string) string   { return fmt.Sprintf("venuecore:Accounts:%s", traderID) }
func orderKey(orderID string) string      { return fmt.Sprintf("venuecore:Orders:%s", orderID) }
func positionKey(positionID string) string { return fmt.Sprintf("venuecore:Positions:%s", positionID) }
func strategyStateKey(traderID string) string {
	return fmt.Sprintf("venuecore:Strategies:%s:State", traderID)
}

// ErrNotFound reports an empty event list for the requested aggregate.
var ErrNotFound = xerrors.New("cache: aggregate not found")

func (c *Cache) loadEvents(key string) ([]Event, error) {
	raw, err := c.store.ListRange(key)
	if err != nil {
		return nil, xerrors.Wrap(err, "list range")
	}
	events := make([]Event, 0, len(raw))
	for _, r := range raw {
		e, err := c.codec.Deserialize(r)
		if err != nil {
			return nil, err
		}
		events = append(events, e)
	}
	return events, nil
}

// LoadAccount reconstructs an Account by folding every AccountStateEvent
// on file for traderID.
func (c *Cache) LoadAccount(traderID string) (*Account, error) {
	events, err := c.loadEvents(accountKey(traderID))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	first, ok := events[0].Payload.(AccountStateEvent)
	if !ok {
		return nil, xerrors.New("first account event is not AccountState")
	}
	acc := newAccount(first)
	for _, e := range events[1:] {
		if p, ok := e.Payload.(AccountStateEvent); ok {
			acc.apply(p)
		}
	}
	return acc, nil
}

// AppendAccountEvent pushes one AccountStateEvent for traderID, warning if
// the append/construction reply length looks inconsistent with intent.
func (c *Cache) AppendAccountEvent(traderID string, e AccountStateEvent, isConstructor bool) error {
	return c.appendEvent(accountKey(traderID), Event{Kind: KindAccountState, Payload: e}, isConstructor)
}

// LoadOrder reconstructs an Order by seeding it from the first event, which
// must be an OrderInitializedEvent, and folding every later event into it.
// Every order type is rebuilt into the same Order struct: the
// OrderInitializedEvent.OrderType string is kept as a field and does not
// select a different constructor.
func (c *Cache) LoadOrder(orderID string) (*Order, error) {
	events, err := c.loadEvents(orderKey(orderID))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	first, ok := events[0].Payload.(OrderInitializedEvent)
	if !ok {
		return nil, xerrors.New("first order event is not OrderInitialized")
	}
	o := newOrder(first)
	for _, e := range events[1:] {
		o.apply(e)
	}
	return o, nil
}

// AppendOrderEvent pushes one order lifecycle event.
func (c *Cache) AppendOrderEvent(orderID string, e Event, isConstructor bool) error {
	return c.appendEvent(orderKey(orderID), e, isConstructor)
}

// LoadPosition reconstructs a Position, seeded by the first OrderFilled
// event and folding every later fill against the same PositionID.
func (c *Cache) LoadPosition(positionID, instrumentID string) (*Position, error) {
	events, err := c.loadEvents(positionKey(positionID))
	if err != nil {
		return nil, err
	}
	if len(events) == 0 {
		return nil, ErrNotFound
	}
	first, ok := events[0].Payload.(OrderFilledEvent)
	if !ok {
		return nil, xerrors.New("first position event is not OrderFilled")
	}
	pos := newPosition(instrumentID, first)
	for _, e := range events[1:] {
		fill, ok := e.Payload.(OrderFilledEvent)
		if !ok {
			continue
		}
		pos.apply(fill.Side, fill.FillQty, fill.FillPrice)
	}
	return pos, nil
}

// AppendPositionEvent pushes one OrderFilled event under a position's log.
func (c *Cache) AppendPositionEvent(positionID string, e OrderFilledEvent, isConstructor bool) error {
	return c.appendEvent(positionKey(positionID), Event{Kind: KindOrderFilled, Payload: e}, isConstructor)
}

// SetStrategyState sets one field of a strategy's opaque state hash.
func (c *Cache) SetStrategyState(traderID, field string, value []byte) error {
	return c.store.HashSet(strategyStateKey(traderID), field, value)
}

// GetStrategyState returns the full state hash for a strategy.
func (c *Cache) GetStrategyState(traderID string) (map[string][]byte, error) {
	return c.store.HashGetAll(strategyStateKey(traderID))
}

func (c *Cache) appendEvent(key string, e Event, isConstructor bool) error {
	data, err := c.codec.Serialize(e)
	if err != nil {
		return err
	}
	length, err := c.store.ListAppend(key, data)
	if err != nil {
		return xerrors.Wrap(err, "append event")
	}
	if isConstructor && length != 1 && c.log != nil {
		c.log.Warn("cache integrity: constructor append found a pre-existing key", zap.String("key", key), zap.Int("length", length))
	}
	if !isConstructor && length == 1 && c.log != nil {
		c.log.Warn("cache integrity: follow-up append found no pre-existing key", zap.String("key", key), zap.Int("length", length))
	}
	return nil
}
